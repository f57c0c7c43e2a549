package loans

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"notelend/native/vault"
)

// LoanState enumerates the lifecycle states of a loan.
type LoanState uint8

const (
	// StateNone is the implicit state of an id that was never issued.
	StateNone LoanState = iota
	// StateActive loans hold a lien on their collateral and have notes.
	StateActive
	// StateRepaid loans were settled in full.
	StateRepaid
	// StateLiquidated loans had their collateral handed to the lender.
	StateLiquidated
)

// Valid reports whether the state is a recognised enum value.
func (s LoanState) Valid() bool {
	return s <= StateLiquidated
}

// Terminal reports whether no further operation may act on the loan.
func (s LoanState) Terminal() bool {
	return s == StateRepaid || s == StateLiquidated
}

func (s LoanState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateActive:
		return "active"
	case StateRepaid:
		return "repaid"
	case StateLiquidated:
		return "liquidated"
	default:
		return "unknown"
	}
}

// LoanTerms is the signed description of a proposed or updated loan.
type LoanTerms struct {
	// Lender funds the loan and receives the lender note at origination.
	Lender [20]byte
	// LoanAmount is the principal owed after the terms take effect.
	LoanAmount *big.Int
	// InterestRate is the simple annual rate in basis points.
	InterestRate uint64
	// Duration is the loan term in seconds measured from origination.
	Duration uint64
	// CollateralAddress is the vault holding the collateral position.
	CollateralAddress [20]byte
	// CollateralID is the position id inside the vault.
	CollateralID uint64
	// Borrower originates the loan and receives the borrower note.
	Borrower [20]byte
	// Expiration is the unix time after which the signature is void.
	Expiration uint64
	// Currency is the token symbol the loan is denominated in.
	Currency string
	// PriceLiquidation enables the collateral-ratio liquidation trigger.
	PriceLiquidation bool
}

// Clone returns a deep copy of the terms.
func (t *LoanTerms) Clone() *LoanTerms {
	if t == nil {
		return nil
	}
	clone := *t
	if t.LoanAmount != nil {
		clone.LoanAmount = new(big.Int).Set(t.LoanAmount)
	}
	return &clone
}

// Collateral returns the vault position referenced by the terms.
func (t *LoanTerms) Collateral() vault.Ref {
	return vault.Ref{Vault: t.CollateralAddress, ID: t.CollateralID}
}

// Loan is the persisted record for a loan id.
type Loan struct {
	ID              uint64
	State           LoanState
	Terms           LoanTerms
	Balance         *big.Int
	InterestAccrued *big.Int
	StartedAt       uint64
	UpdatedAt       uint64
}

// Clone returns a deep copy of the loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Terms = *l.Terms.Clone()
	clone.Balance = amountOrZero(l.Balance)
	clone.InterestAccrued = amountOrZero(l.InterestAccrued)
	return &clone
}

func (l *Loan) ensureDefaults() {
	if l.Balance == nil {
		l.Balance = big.NewInt(0)
	}
	if l.InterestAccrued == nil {
		l.InterestAccrued = big.NewInt(0)
	}
	if l.Terms.LoanAmount == nil {
		l.Terms.LoanAmount = big.NewInt(0)
	}
}

// Settlement describes how a repayment was applied.
type Settlement struct {
	LoanID    uint64
	Interest  *big.Int
	Principal *big.Int
	Fee       *big.Int
	Proceeds  *big.Int
	Remaining *big.Int
	Recipient [20]byte
	Full      bool
}

// Authorization is the outcome of a successful terms verification.
type Authorization struct {
	Signer      [20]byte
	SignatureID [32]byte
}

// ModuleAddress holds collateral custody and routes repayment proceeds.
var ModuleAddress = func() [20]byte {
	var out [20]byte
	copy(out[:], ethcrypto.Keccak256([]byte("module/loans"))[12:])
	return out
}()

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
