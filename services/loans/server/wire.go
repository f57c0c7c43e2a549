package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"notelend/observability"
)

// Config captures the settings required to construct gRPC server options.
type Config struct {
	TLSCertFile      string
	TLSKeyFile       string
	TLSClientCAFile  string
	AllowInsecure    bool
	AllowedClientCNs []string
	APITokens        []string
	// RateLimitPerMin bounds requests per caller address; requests without
	// an x-caller header share one bucket.
	RateLimitPerMin int
	Logger          *slog.Logger
}

// GrpcServerCreds builds the grpc.ServerOption configuring TLS credentials.
// It returns nil when TLS is disabled and AllowInsecure is set.
func GrpcServerCreds(cfg Config) (grpc.ServerOption, error) {
	certPath := strings.TrimSpace(cfg.TLSCertFile)
	keyPath := strings.TrimSpace(cfg.TLSKeyFile)
	clientCAPath := strings.TrimSpace(cfg.TLSClientCAFile)
	requireClientCert := len(cfg.AllowedClientCNs) > 0

	if certPath == "" || keyPath == "" {
		if requireClientCert {
			return nil, fmt.Errorf("mtls requires server certificate, key, and client ca configuration")
		}
		if cfg.AllowInsecure {
			return nil, nil
		}
		return nil, fmt.Errorf("tls certificate and key are required")
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load tls keypair: %w", err)
	}
	tlsCfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
	}
	if clientCAPath != "" {
		pem, err := os.ReadFile(clientCAPath)
		if err != nil {
			return nil, fmt.Errorf("read client ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("parse client ca: invalid pem data")
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.VerifyClientCertIfGiven
	}
	if requireClientCert {
		if tlsCfg.ClientCAs == nil {
			return nil, fmt.Errorf("client ca bundle required for mtls")
		}
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return grpc.Creds(credentials.NewTLS(tlsCfg)), nil
}

// Interceptors returns the unary interceptor chain: logging and metrics,
// panic recovery, per-caller rate limiting, then authentication.
func Interceptors(cfg Config) []grpc.ServerOption {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authUnary, authStream := NewAuthInterceptors(AuthConfig{
		APITokens:        cfg.APITokens,
		AllowedClientCNs: cfg.AllowedClientCNs,
	})

	unary := []grpc.UnaryServerInterceptor{
		loggingUnaryInterceptor(logger),
		recoveryUnaryInterceptor(logger),
	}
	if limiter := newCallerLimiter(cfg.RateLimitPerMin); limiter != nil {
		unary = append(unary, limiter.unaryInterceptor())
	}
	unary = append(unary, authUnary)

	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(authStream),
	}
}

func loggingUnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (_ interface{}, err error) {
		start := time.Now()
		defer func() {
			code := status.Code(err)
			elapsed := time.Since(start)
			observability.ModuleMetrics().Observe("grpc", info.FullMethod, int(code), elapsed)
			logger.Info("grpc unary", "method", info.FullMethod, "code", code.String(), "duration", elapsed)
		}()
		return handler(ctx, req)
	}
}

func recoveryUnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (_ interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in unary handler", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

type callerLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newCallerLimiter(perMinute int) *callerLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &callerLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *callerLimiter) allow(key string) bool {
	c.mu.Lock()
	limiter, ok := c.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(c.limit, c.burst)
		c.limiters[key] = limiter
	}
	c.mu.Unlock()
	return limiter.Allow()
}

func (c *callerLimiter) unaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		key := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(CallerHeader); len(values) > 0 {
				key = strings.TrimSpace(values[0])
			}
		}
		if !c.allow(key) {
			observability.ModuleMetrics().RecordThrottle("grpc", "caller_rate")
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}
