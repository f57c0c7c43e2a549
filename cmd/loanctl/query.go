package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc/status"

	"notelend/crypto"
	loansv1 "notelend/proto/loans/v1"
	"notelend/services/loans/client"
)

const callTimeout = 15 * time.Second

// loanService is the subset of the gRPC client the CLI drives.
type loanService interface {
	GetLoan(ctx context.Context, loanID uint64) (*loansv1.Loan, error)
	RepayAmount(ctx context.Context, loanID uint64) (string, error)
	ActiveLoans(ctx context.Context, borrower [20]byte) ([]uint64, error)
	Repay(ctx context.Context, loanID uint64) (*loansv1.Settlement, error)
	Liquidate(ctx context.Context, loanID uint64) (string, error)
	Close() error
}

var dialLoanService = func(ctx context.Context, endpoint string, caller [20]byte) (loanService, error) {
	opts := []client.Option{client.WithToken(os.Getenv("NOTELEND_API_TOKEN"))}
	if caller != ([20]byte{}) {
		opts = append(opts, client.WithCaller(caller))
	}
	c, err := client.Dial(ctx, endpoint, nil, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type callFlags struct {
	fs       *flag.FlagSet
	endpoint string
	id       uint64
	caller   string
}

func newCallFlags(name string, stderr io.Writer, withID, withCaller bool) *callFlags {
	c := &callFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	c.fs.SetOutput(stderr)
	c.fs.StringVar(&c.endpoint, "endpoint", defaultEndpoint, "loan service gRPC endpoint")
	if withID {
		c.fs.Uint64Var(&c.id, "id", 0, "loan id")
	}
	if withCaller {
		c.fs.StringVar(&c.caller, "caller", "", "bech32 address acting on the loan")
	}
	return c
}

func (c *callFlags) parse(args []string, stderr io.Writer, needID, needCaller bool) ([20]byte, bool) {
	var caller [20]byte
	if err := c.fs.Parse(args); err != nil {
		return caller, false
	}
	if c.fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return caller, false
	}
	if needID && c.id == 0 {
		fmt.Fprintln(stderr, "Error: --id is required")
		return caller, false
	}
	if needCaller {
		parsed, err := crypto.ParseRaw(c.caller)
		if err != nil {
			fmt.Fprintf(stderr, "Error: --caller: %v\n", err)
			return caller, false
		}
		caller = parsed
	}
	return caller, true
}

func withService(endpoint string, caller [20]byte, stderr io.Writer, fn func(context.Context, loanService) error) int {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	svc, err := dialLoanService(ctx, strings.TrimSpace(endpoint), caller)
	if err != nil {
		fmt.Fprintf(stderr, "Error: dial %s: %v\n", endpoint, err)
		return 1
	}
	defer svc.Close()
	if err := fn(ctx, svc); err != nil {
		if st, ok := status.FromError(err); ok {
			fmt.Fprintf(stderr, "Error: %s: %s\n", st.Code(), st.Message())
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func runLoan(args []string, stdout, stderr io.Writer) int {
	flags := newCallFlags("loan", stderr, true, false)
	if _, ok := flags.parse(args, stderr, true, false); !ok {
		return 1
	}
	return withService(flags.endpoint, [20]byte{}, stderr, func(ctx context.Context, svc loanService) error {
		loan, err := svc.GetLoan(ctx, flags.id)
		if err != nil {
			return err
		}
		writeJSON(stdout, stderr, loan)
		return nil
	})
}

func runRepayAmount(args []string, stdout, stderr io.Writer) int {
	flags := newCallFlags("repay-amount", stderr, true, false)
	if _, ok := flags.parse(args, stderr, true, false); !ok {
		return 1
	}
	return withService(flags.endpoint, [20]byte{}, stderr, func(ctx context.Context, svc loanService) error {
		amount, err := svc.RepayAmount(ctx, flags.id)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, amount)
		return nil
	})
}

func runActive(args []string, stdout, stderr io.Writer) int {
	flags := newCallFlags("active", stderr, false, false)
	var borrower string
	flags.fs.StringVar(&borrower, "borrower", "", "bech32 borrower address")
	if _, ok := flags.parse(args, stderr, false, false); !ok {
		return 1
	}
	addr, err := crypto.ParseRaw(borrower)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --borrower: %v\n", err)
		return 1
	}
	return withService(flags.endpoint, [20]byte{}, stderr, func(ctx context.Context, svc loanService) error {
		ids, err := svc.ActiveLoans(ctx, addr)
		if err != nil {
			return err
		}
		writeJSON(stdout, stderr, &loansv1.GetActiveLoansResponse{LoanIDs: ids})
		return nil
	})
}

func runRepay(args []string, stdout, stderr io.Writer) int {
	flags := newCallFlags("repay", stderr, true, true)
	caller, ok := flags.parse(args, stderr, true, true)
	if !ok {
		return 1
	}
	return withService(flags.endpoint, caller, stderr, func(ctx context.Context, svc loanService) error {
		settlement, err := svc.Repay(ctx, flags.id)
		if err != nil {
			return err
		}
		writeJSON(stdout, stderr, settlement)
		return nil
	})
}

func runLiquidate(args []string, stdout, stderr io.Writer) int {
	flags := newCallFlags("liquidate", stderr, true, true)
	caller, ok := flags.parse(args, stderr, true, true)
	if !ok {
		return 1
	}
	return withService(flags.endpoint, caller, stderr, func(ctx context.Context, svc loanService) error {
		reason, err := svc.Liquidate(ctx, flags.id)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, reason)
		return nil
	})
}
