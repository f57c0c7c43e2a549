package server

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"notelend/crypto"
	loansv1 "notelend/proto/loans/v1"
)

// CallerHeader carries the bech32 address an authenticated client acts for.
const CallerHeader = "x-caller"

// AuthConfig lists the credentials accepted on mutating RPCs.
type AuthConfig struct {
	APITokens        []string
	AllowedClientCNs []string
}

type callerContextKey struct{}

// NewAuthInterceptors constructs unary and stream interceptors that enforce
// authentication on mutating RPCs. Requests must present either a configured
// API token or an mTLS client certificate with an allowed common name, plus
// the caller address in the x-caller metadata header.
func NewAuthInterceptors(cfg AuthConfig) (grpc.UnaryServerInterceptor, grpc.StreamServerInterceptor) {
	authenticator := newAuthenticator(cfg)
	return authenticator.unaryInterceptor(), authenticator.streamInterceptor()
}

// WithCaller attaches an authenticated caller address to ctx.
func WithCaller(ctx context.Context, caller [20]byte) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the caller installed by the auth interceptor.
func CallerFromContext(ctx context.Context) ([20]byte, bool) {
	if ctx == nil {
		return [20]byte{}, false
	}
	caller, ok := ctx.Value(callerContextKey{}).([20]byte)
	return caller, ok
}

type authenticator struct {
	tokens       map[string]struct{}
	commonNames  map[string]struct{}
	allowByToken bool
	allowByMTLS  bool
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	tokens := make(map[string]struct{})
	for _, token := range cfg.APITokens {
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}
		tokens[trimmed] = struct{}{}
	}
	commonNames := make(map[string]struct{})
	for _, name := range cfg.AllowedClientCNs {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		commonNames[trimmed] = struct{}{}
	}
	return &authenticator{
		tokens:       tokens,
		commonNames:  commonNames,
		allowByToken: len(tokens) > 0,
		allowByMTLS:  len(commonNames) > 0,
	}
}

func (a *authenticator) unaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !isMutatingMethod(info.FullMethod) {
			return handler(ctx, req)
		}
		ctx, err := a.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (a *authenticator) streamInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if !isMutatingMethod(info.FullMethod) {
			return handler(srv, ss)
		}
		ctx, err := a.authenticate(ss.Context())
		if err != nil {
			return err
		}
		return handler(srv, &authStream{ServerStream: ss, ctx: ctx})
	}
}

func (a *authenticator) authenticate(ctx context.Context) (context.Context, error) {
	if a == nil {
		return ctx, status.Error(codes.Internal, "authenticator unavailable")
	}
	if !a.allowByToken && !a.allowByMTLS {
		return ctx, status.Error(codes.PermissionDenied, "authentication is not configured")
	}
	if !(a.allowByToken && a.authenticateByToken(ctx)) && !(a.allowByMTLS && a.authenticateByMTLS(ctx)) {
		return ctx, status.Error(codes.Unauthenticated, "authentication required")
	}
	caller, err := callerFromMetadata(ctx)
	if err != nil {
		return ctx, err
	}
	return WithCaller(ctx, caller), nil
}

func callerFromMetadata(ctx context.Context) ([20]byte, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(CallerHeader)
	if len(values) != 1 || strings.TrimSpace(values[0]) == "" {
		return [20]byte{}, status.Error(codes.Unauthenticated, "exactly one x-caller address required")
	}
	caller, err := crypto.ParseRaw(values[0])
	if err != nil {
		return [20]byte{}, status.Errorf(codes.InvalidArgument, "x-caller: %v", err)
	}
	return caller, nil
}

func (a *authenticator) authenticateByToken(ctx context.Context) bool {
	if ctx == nil || len(a.tokens) == 0 {
		return false
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return false
	}
	for _, header := range md.Get("authorization") {
		if token := parseBearerToken(header); token != "" {
			if _, exists := a.tokens[token]; exists {
				return true
			}
		}
	}
	for _, token := range md.Get("x-api-token") {
		if _, exists := a.tokens[strings.TrimSpace(token)]; exists {
			return true
		}
	}
	return false
}

func (a *authenticator) authenticateByMTLS(ctx context.Context) bool {
	if ctx == nil || len(a.commonNames) == 0 {
		return false
	}
	pr, ok := peer.FromContext(ctx)
	if !ok {
		return false
	}
	info, ok := pr.AuthInfo.(credentials.TLSInfo)
	if !ok {
		return false
	}
	for _, chain := range info.State.VerifiedChains {
		if len(chain) == 0 {
			continue
		}
		if a.commonNameAllowed(chain[0].Subject.CommonName) {
			return true
		}
	}
	return false
}

func (a *authenticator) commonNameAllowed(name string) bool {
	_, ok := a.commonNames[strings.TrimSpace(name)]
	return ok
}

func parseBearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(strings.TrimSpace(parts[0]), "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func isMutatingMethod(fullMethod string) bool {
	switch fullMethod {
	case loansv1.LoanService_InitiateLoan_FullMethodName,
		loansv1.LoanService_UpdateLoan_FullMethodName,
		loansv1.LoanService_PartialRepay_FullMethodName,
		loansv1.LoanService_Repay_FullMethodName,
		loansv1.LoanService_Liquidate_FullMethodName,
		loansv1.LoanService_Deposit_FullMethodName,
		loansv1.LoanService_Withdraw_FullMethodName,
		loansv1.LoanService_TransferNote_FullMethodName:
		return true
	default:
		return false
	}
}

type authStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authStream) Context() context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return s.ServerStream.Context()
}
