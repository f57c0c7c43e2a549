package engine

import (
	"context"
	"math/big"

	"notelend/native/loans"
	"notelend/native/notes"
	"notelend/native/vault"
)

// Engine describes the loan operations exposed by the gRPC and HTTP surfaces.
// Every mutating call is atomic: it either commits in full or leaves no trace.
type Engine interface {
	InitiateLoan(ctx context.Context, caller [20]byte, terms *loans.LoanTerms, signature []byte) (uint64, error)
	UpdateLoan(ctx context.Context, caller [20]byte, id uint64, terms *loans.LoanTerms, signature []byte) error
	PartialRepay(ctx context.Context, caller [20]byte, id uint64, payment *big.Int) (*loans.Settlement, error)
	Repay(ctx context.Context, caller [20]byte, id uint64) (*loans.Settlement, error)
	Liquidate(ctx context.Context, caller [20]byte, id uint64) (loans.Reason, error)
	Deposit(ctx context.Context, caller [20]byte, id uint64, amount *big.Int) error
	Withdraw(ctx context.Context, caller [20]byte, id uint64, amount *big.Int) error
	TransferNote(ctx context.Context, caller [20]byte, kind notes.Kind, id uint64, to [20]byte) error
	GetLoan(ctx context.Context, id uint64) (*LoanView, error)
	ActiveLoans(ctx context.Context, borrower [20]byte) ([]uint64, error)
	RepayAmount(ctx context.Context, id uint64) (*big.Int, error)
	Liquidatable(ctx context.Context, id uint64) (bool, loans.Reason, error)
}

// Integrator covers the collateral, currency and holder set-up a borrower or
// lender performs before taking part in a loan.
type Integrator interface {
	OpenPosition(ctx context.Context, owner, vaultAddr [20]byte) (vault.Ref, error)
	FundPosition(ctx context.Context, owner [20]byte, ref vault.Ref, amount *big.Int) error
	ApprovePosition(ctx context.Context, owner [20]byte, ref vault.Ref) error
	Position(ctx context.Context, ref vault.Ref) (*PositionView, error)
	ApproveSpending(ctx context.Context, owner [20]byte, token string, amount *big.Int) error
	Balance(ctx context.Context, addr [20]byte, token string) (*big.Int, error)
	RegisterHolder(ctx context.Context, holder [20]byte) error
	SetHolderSigner(ctx context.Context, holder, signer [20]byte, approved bool) error
}

// LoanView is a loan record enriched with its current note holders and the
// payoff quoted at read time.
type LoanView struct {
	Loan           *loans.Loan
	LenderHolder   [20]byte
	BorrowerHolder [20]byte
	Debt           *big.Int
}

// PositionView reports a collateral position at the pool's live rate.
type PositionView struct {
	Position  *vault.Position
	Asset     string
	Valuation *big.Int
}

// Stats summarises the loan table.
type Stats struct {
	Loans  uint64
	Active int
}
