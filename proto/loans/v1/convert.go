package loansv1

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"notelend/crypto"
	"notelend/native/loans"
)

var (
	ErrInvalidAmount    = errors.New("loansv1: amount must be a non-negative base-10 integer")
	ErrInvalidSignature = errors.New("loansv1: signature must be 0x-prefixed hex")
)

// ParseAmount decodes a decimal amount string.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrInvalidAmount
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return value, nil
}

// FormatAmount renders nil as "0".
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// ParseAddress decodes a required bech32 address.
func ParseAddress(field, raw string) ([20]byte, error) {
	addr, err := crypto.ParseRaw(raw)
	if err != nil {
		return addr, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

func EncodeSignature(sig []byte) string {
	return hexutil.Encode(sig)
}

func DecodeSignature(raw string) ([]byte, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return sig, nil
}

// TermsFromDomain converts engine terms to their wire form.
func TermsFromDomain(t *loans.LoanTerms) *Terms {
	if t == nil {
		return nil
	}
	return &Terms{
		Lender:            crypto.FormatRaw(t.Lender),
		LoanAmount:        FormatAmount(t.LoanAmount),
		InterestRate:      t.InterestRate,
		Duration:          t.Duration,
		CollateralAddress: crypto.FormatRaw(t.CollateralAddress),
		CollateralID:      t.CollateralID,
		Borrower:          crypto.FormatRaw(t.Borrower),
		Expiration:        t.Expiration,
		Currency:          t.Currency,
		PriceLiquidation:  t.PriceLiquidation,
	}
}

// ToDomain decodes the wire terms. Every address is required.
func (t *Terms) ToDomain() (*loans.LoanTerms, error) {
	if t == nil {
		return nil, errors.New("loansv1: terms required")
	}
	amount, err := ParseAmount(t.LoanAmount)
	if err != nil {
		return nil, fmt.Errorf("loanAmount: %w", err)
	}
	out := &loans.LoanTerms{
		LoanAmount:       amount,
		InterestRate:     t.InterestRate,
		Duration:         t.Duration,
		CollateralID:     t.CollateralID,
		Expiration:       t.Expiration,
		Currency:         strings.TrimSpace(t.Currency),
		PriceLiquidation: t.PriceLiquidation,
	}
	if out.Lender, err = ParseAddress("lender", t.Lender); err != nil {
		return nil, err
	}
	if out.CollateralAddress, err = ParseAddress("collateralAddress", t.CollateralAddress); err != nil {
		return nil, err
	}
	if out.Borrower, err = ParseAddress("borrower", t.Borrower); err != nil {
		return nil, err
	}
	return out, nil
}

// LoanFromDomain renders a loan record together with its note holders and
// the current payoff.
func LoanFromDomain(loan *loans.Loan, lenderHolder, borrowerHolder [20]byte, debt *big.Int) *Loan {
	if loan == nil {
		return nil
	}
	return &Loan{
		ID:              loan.ID,
		State:           loan.State.String(),
		Terms:           TermsFromDomain(&loan.Terms),
		Balance:         FormatAmount(loan.Balance),
		InterestAccrued: FormatAmount(loan.InterestAccrued),
		StartedAt:       loan.StartedAt,
		UpdatedAt:       loan.UpdatedAt,
		LenderHolder:    crypto.FormatRaw(lenderHolder),
		BorrowerHolder:  crypto.FormatRaw(borrowerHolder),
		Debt:            FormatAmount(debt),
	}
}

func SettlementFromDomain(s *loans.Settlement) *Settlement {
	if s == nil {
		return nil
	}
	return &Settlement{
		LoanID:    s.LoanID,
		Interest:  FormatAmount(s.Interest),
		Principal: FormatAmount(s.Principal),
		Fee:       FormatAmount(s.Fee),
		Proceeds:  FormatAmount(s.Proceeds),
		Remaining: FormatAmount(s.Remaining),
		Recipient: crypto.FormatRaw(s.Recipient),
		Full:      s.Full,
	}
}
