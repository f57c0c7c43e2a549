package loans

import (
	"encoding/hex"
	"errors"
	"fmt"

	"notelend/native/bank"
	"notelend/native/common"
	"notelend/native/vault"
)

var (
	ErrInvalidState         = errors.New("loans: invalid state")
	ErrInvalidMsgSender     = errors.New("loans: invalid message sender")
	ErrInvalidLoanTerms     = errors.New("loans: invalid loan terms")
	ErrLoanTermsExpired     = errors.New("loans: loan terms expired")
	ErrSignatureUsed        = errors.New("loans: signature already used")
	ErrInvalidSigner        = errors.New("loans: invalid signer")
	ErrLoanAmountExceeded   = errors.New("loans: loan amount exceeded")
	ErrNotLiquidatable      = errors.New("loans: loan not liquidatable")
	ErrInsufficientBalance  = errors.New("loans: insufficient balance")
	ErrParameterOutOfBounds = errors.New("loans: parameter out of bounds")
	ErrInvalidAddress       = errors.New("loans: invalid address")
	ErrLoanNotFound         = errors.New("loans: loan not found")

	errNilState = errors.New("loans: state not configured")
)

// StateError reports an operation attempted against a loan in the wrong
// lifecycle state.
type StateError struct {
	LoanID  uint64
	Current LoanState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("loans: invalid state: loan %d is %s", e.LoanID, e.Current)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// SignatureUsedError names the replay-set entry that rejected a signature.
type SignatureUsedError struct {
	ID [32]byte
}

func (e *SignatureUsedError) Error() string {
	return fmt.Sprintf("loans: signature already used: %s", hex.EncodeToString(e.ID[:]))
}

func (e *SignatureUsedError) Unwrap() error { return ErrSignatureUsed }

// Kind returns the stable code for err, or "" when err is not a loan error.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidState):
		return "InvalidState"
	case errors.Is(err, ErrInvalidMsgSender):
		return "InvalidMsgSender"
	case errors.Is(err, ErrInvalidLoanTerms):
		return "InvalidLoanTerms"
	case errors.Is(err, ErrLoanTermsExpired):
		return "LoanTermsExpired"
	case errors.Is(err, ErrSignatureUsed):
		return "SignatureUsed"
	case errors.Is(err, ErrInvalidSigner):
		return "InvalidSigner"
	case errors.Is(err, ErrLoanAmountExceeded):
		return "LoanAmountExceeded"
	case errors.Is(err, ErrNotLiquidatable):
		return "NotLiquidatable"
	case errors.Is(err, ErrInsufficientBalance):
		return "InsufficientBalance"
	case errors.Is(err, ErrParameterOutOfBounds):
		return "ParameterOutOfBounds"
	case errors.Is(err, ErrInvalidAddress):
		return "InvalidAddress"
	case errors.Is(err, ErrLoanNotFound):
		return "LoanNotFound"
	case errors.Is(err, common.ErrModulePaused):
		return "ModulePaused"
	default:
		return ""
	}
}

// Retryable reports whether the caller can succeed by resubmitting with
// fresh input (new terms, more collateral or funds, or later in time).
func Retryable(err error) bool {
	switch Kind(err) {
	case "LoanTermsExpired", "SignatureUsed", "LoanAmountExceeded", "NotLiquidatable", "InsufficientBalance", "ModulePaused":
		return true
	default:
		return false
	}
}

// wrapCollaborator translates shortfalls reported by the vault and bank
// ledgers into the loan error taxonomy.
func wrapCollaborator(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, vault.ErrInsufficientShares),
		errors.Is(err, vault.ErrPoolEmpty),
		errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, bank.ErrInsufficientAllowance):
		return fmt.Errorf("%w: %s: %v", ErrInsufficientBalance, op, err)
	case errors.Is(err, vault.ErrNotOwner):
		return fmt.Errorf("%w: %s: %v", ErrInvalidMsgSender, op, err)
	case errors.Is(err, vault.ErrInvalidAmount), errors.Is(err, bank.ErrInvalidAmount):
		return fmt.Errorf("%w: %s: %v", ErrParameterOutOfBounds, op, err)
	default:
		return fmt.Errorf("loans: %s: %w", op, err)
	}
}
