package events

import (
	"math/big"
	"strconv"

	"notelend/core/types"
)

const (
	TypeLoanStarted         = "loans.started"
	TypeLoanUpdated         = "loans.updated"
	TypeLoanRepaidPartial   = "loans.repaid_partial"
	TypeLoanRepaid          = "loans.repaid"
	TypeLoanLiquidated      = "loans.liquidated"
	TypeCollateralDeposited = "loans.collateral_deposited"
	TypeCollateralWithdrawn = "loans.collateral_withdrawn"
	TypeNoteTransferred     = "notes.transferred"
)

type LoanStarted struct {
	LoanID           uint64
	Lender           [20]byte
	Borrower         [20]byte
	Vault            [20]byte
	PositionID       uint64
	Currency         string
	Amount           *big.Int
	InterestRate     uint64
	Duration         uint64
	PriceLiquidation bool
	Signer           [20]byte
	StartedAt        uint64
}

func (LoanStarted) EventType() string { return TypeLoanStarted }

func (e LoanStarted) Event() *types.Event {
	return &types.Event{
		Type: TypeLoanStarted,
		Attributes: map[string]string{
			"loanId":           uintToString(e.LoanID),
			"lender":           addr(e.Lender),
			"borrower":         addr(e.Borrower),
			"vault":            addr(e.Vault),
			"positionId":       uintToString(e.PositionID),
			"currency":         e.Currency,
			"amount":           formatAmount(e.Amount),
			"interestRate":     uintToString(e.InterestRate),
			"duration":         uintToString(e.Duration),
			"priceLiquidation": strconv.FormatBool(e.PriceLiquidation),
			"signer":           addr(e.Signer),
			"startedAt":        uintToString(e.StartedAt),
		},
	}
}

// LoanUpdated is raised when signed terms extend or increase a loan. Draw is
// the additional principal paid out to the borrower, which may be zero.
type LoanUpdated struct {
	LoanID       uint64
	Balance      *big.Int
	Draw         *big.Int
	Capitalized  *big.Int
	InterestRate uint64
	Duration     uint64
	Signer       [20]byte
	UpdatedAt    uint64
}

func (LoanUpdated) EventType() string { return TypeLoanUpdated }

func (e LoanUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeLoanUpdated,
		Attributes: map[string]string{
			"loanId":       uintToString(e.LoanID),
			"balance":      formatAmount(e.Balance),
			"draw":         formatAmount(e.Draw),
			"capitalized":  formatAmount(e.Capitalized),
			"interestRate": uintToString(e.InterestRate),
			"duration":     uintToString(e.Duration),
			"signer":       addr(e.Signer),
			"updatedAt":    uintToString(e.UpdatedAt),
		},
	}
}

// LoanRepaid covers both partial and full repayments; Full selects the type.
type LoanRepaid struct {
	LoanID    uint64
	Payer     [20]byte
	Recipient [20]byte
	Interest  *big.Int
	Principal *big.Int
	Fee       *big.Int
	Remaining *big.Int
	Full      bool
}

func (e LoanRepaid) EventType() string {
	if e.Full {
		return TypeLoanRepaid
	}
	return TypeLoanRepaidPartial
}

func (e LoanRepaid) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"loanId":    uintToString(e.LoanID),
			"payer":     addr(e.Payer),
			"recipient": addr(e.Recipient),
			"interest":  formatAmount(e.Interest),
			"principal": formatAmount(e.Principal),
			"fee":       formatAmount(e.Fee),
			"remaining": formatAmount(e.Remaining),
		},
	}
}

type LoanLiquidated struct {
	LoanID     uint64
	Liquidator [20]byte
	Recipient  [20]byte
	Debt       *big.Int
	Valuation  *big.Int
	Reason     string
}

func (LoanLiquidated) EventType() string { return TypeLoanLiquidated }

func (e LoanLiquidated) Event() *types.Event {
	return &types.Event{
		Type: TypeLoanLiquidated,
		Attributes: map[string]string{
			"loanId":     uintToString(e.LoanID),
			"liquidator": addr(e.Liquidator),
			"recipient":  addr(e.Recipient),
			"debt":       formatAmount(e.Debt),
			"valuation":  formatAmount(e.Valuation),
			"reason":     e.Reason,
		},
	}
}

// CollateralMoved reports a borrower deposit or withdrawal against the
// position backing a loan.
type CollateralMoved struct {
	LoanID    uint64
	Caller    [20]byte
	Amount    *big.Int
	Valuation *big.Int
	Withdrawn bool
}

func (e CollateralMoved) EventType() string {
	if e.Withdrawn {
		return TypeCollateralWithdrawn
	}
	return TypeCollateralDeposited
}

func (e CollateralMoved) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"loanId":    uintToString(e.LoanID),
			"caller":    addr(e.Caller),
			"amount":    formatAmount(e.Amount),
			"valuation": formatAmount(e.Valuation),
		},
	}
}

type NoteTransferred struct {
	LoanID uint64
	Kind   string
	From   [20]byte
	To     [20]byte
}

func (NoteTransferred) EventType() string { return TypeNoteTransferred }

func (e NoteTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeNoteTransferred,
		Attributes: map[string]string{
			"loanId": uintToString(e.LoanID),
			"kind":   e.Kind,
			"from":   addr(e.From),
			"to":     addr(e.To),
		},
	}
}
