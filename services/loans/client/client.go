package client

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"notelend/crypto"
	loansv1 "notelend/proto/loans/v1"
)

// Client provides a thin wrapper around the loan service gRPC API.
type Client struct {
	conn   *grpc.ClientConn
	api    loansv1.LoanServiceClient
	token  string
	caller string
}

// Option customises the outgoing metadata attached by the client.
type Option func(*Client)

// WithToken attaches the API token as a bearer authorization header.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithCaller sets the address mutating calls are made on behalf of.
func WithCaller(caller [20]byte) Option {
	return func(c *Client) { c.caller = crypto.FormatRaw(caller) }
}

// Dial initialises a client connection to the loan service endpoint.
func Dial(ctx context.Context, target string, dialOpts []grpc.DialOption, opts ...Option) (*Client, error) {
	if len(dialOpts) == 0 {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return New(conn, opts...), nil
}

// New wraps an existing connection.
func New(conn *grpc.ClientConn, opts ...Option) *Client {
	c := &Client{conn: conn, api: loansv1.NewLoanServiceClient(conn)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Raw exposes the service client for calls the wrapper does not cover.
func (c *Client) Raw() loansv1.LoanServiceClient {
	if c == nil {
		return nil
	}
	return c.api
}

// Context decorates ctx with the configured token and caller.
func (c *Client) Context(ctx context.Context) context.Context {
	pairs := make([]string, 0, 4)
	if c.token != "" {
		pairs = append(pairs, "authorization", "Bearer "+c.token)
	}
	if c.caller != "" {
		pairs = append(pairs, "x-caller", c.caller)
	}
	if len(pairs) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

func (c *Client) InitiateLoan(ctx context.Context, terms *loansv1.Terms, signature []byte) (uint64, error) {
	resp, err := c.api.InitiateLoan(c.Context(ctx), &loansv1.InitiateLoanRequest{
		Terms:     terms,
		Signature: loansv1.EncodeSignature(signature),
	})
	if err != nil {
		return 0, err
	}
	return resp.LoanID, nil
}

func (c *Client) Repay(ctx context.Context, loanID uint64) (*loansv1.Settlement, error) {
	resp, err := c.api.Repay(c.Context(ctx), &loansv1.RepayRequest{LoanID: loanID})
	if err != nil {
		return nil, err
	}
	return resp.Settlement, nil
}

func (c *Client) Liquidate(ctx context.Context, loanID uint64) (string, error) {
	resp, err := c.api.Liquidate(c.Context(ctx), &loansv1.LiquidateRequest{LoanID: loanID})
	if err != nil {
		return "", err
	}
	return resp.Reason, nil
}

func (c *Client) GetLoan(ctx context.Context, loanID uint64) (*loansv1.Loan, error) {
	resp, err := c.api.GetLoan(c.Context(ctx), &loansv1.GetLoanRequest{LoanID: loanID})
	if err != nil {
		return nil, err
	}
	return resp.Loan, nil
}

func (c *Client) RepayAmount(ctx context.Context, loanID uint64) (string, error) {
	resp, err := c.api.RepayAmount(c.Context(ctx), &loansv1.RepayAmountRequest{LoanID: loanID})
	if err != nil {
		return "", err
	}
	return resp.Amount, nil
}

func (c *Client) ActiveLoans(ctx context.Context, borrower [20]byte) ([]uint64, error) {
	resp, err := c.api.GetActiveLoans(c.Context(ctx), &loansv1.GetActiveLoansRequest{Borrower: crypto.FormatRaw(borrower)})
	if err != nil {
		return nil, err
	}
	return resp.LoanIDs, nil
}
