// Package loansv1 defines the wire messages and service descriptor of the
// notelend.loans.v1 API. Messages travel as JSON over gRPC; amounts are
// decimal strings and addresses are bech32 strings.
package loansv1

// Terms mirrors loans.LoanTerms on the wire.
type Terms struct {
	Lender            string `json:"lender"`
	LoanAmount        string `json:"loanAmount"`
	InterestRate      uint64 `json:"interestRate"`
	Duration          uint64 `json:"duration"`
	CollateralAddress string `json:"collateralAddress"`
	CollateralID      uint64 `json:"collateralId"`
	Borrower          string `json:"borrower"`
	Expiration        uint64 `json:"expiration"`
	Currency          string `json:"currency"`
	PriceLiquidation  bool   `json:"priceLiquidation"`
}

type Loan struct {
	ID              uint64 `json:"id"`
	State           string `json:"state"`
	Terms           *Terms `json:"terms"`
	Balance         string `json:"balance"`
	InterestAccrued string `json:"interestAccrued"`
	StartedAt       uint64 `json:"startedAt"`
	UpdatedAt       uint64 `json:"updatedAt"`
	LenderHolder    string `json:"lenderHolder,omitempty"`
	BorrowerHolder  string `json:"borrowerHolder,omitempty"`
	Debt            string `json:"debt"`
}

type Settlement struct {
	LoanID    uint64 `json:"loanId"`
	Interest  string `json:"interest"`
	Principal string `json:"principal"`
	Fee       string `json:"fee"`
	Proceeds  string `json:"proceeds"`
	Remaining string `json:"remaining"`
	Recipient string `json:"recipient"`
	Full      bool   `json:"full"`
}

type InitiateLoanRequest struct {
	Terms     *Terms `json:"terms"`
	Signature string `json:"signature"`
}

type InitiateLoanResponse struct {
	LoanID uint64 `json:"loanId"`
}

type UpdateLoanRequest struct {
	LoanID    uint64 `json:"loanId"`
	Terms     *Terms `json:"terms"`
	Signature string `json:"signature"`
}

type UpdateLoanResponse struct{}

type PartialRepayRequest struct {
	LoanID  uint64 `json:"loanId"`
	Payment string `json:"payment"`
}

type RepayRequest struct {
	LoanID uint64 `json:"loanId"`
}

type RepayResponse struct {
	Settlement *Settlement `json:"settlement"`
}

type LiquidateRequest struct {
	LoanID uint64 `json:"loanId"`
}

type LiquidateResponse struct {
	Reason string `json:"reason"`
}

// CollateralRequest is shared by Deposit and Withdraw.
type CollateralRequest struct {
	LoanID uint64 `json:"loanId"`
	Amount string `json:"amount"`
}

type CollateralResponse struct{}

type TransferNoteRequest struct {
	LoanID uint64 `json:"loanId"`
	Kind   string `json:"kind"`
	To     string `json:"to"`
}

type TransferNoteResponse struct{}

type GetLoanRequest struct {
	LoanID uint64 `json:"loanId"`
}

type GetLoanResponse struct {
	Loan *Loan `json:"loan"`
}

type GetActiveLoansRequest struct {
	Borrower string `json:"borrower"`
}

type GetActiveLoansResponse struct {
	LoanIDs []uint64 `json:"loanIds"`
}

type RepayAmountRequest struct {
	LoanID uint64 `json:"loanId"`
}

type RepayAmountResponse struct {
	Amount string `json:"amount"`
}

type LiquidatableRequest struct {
	LoanID uint64 `json:"loanId"`
}

type LiquidatableResponse struct {
	Liquidatable bool   `json:"liquidatable"`
	Reason       string `json:"reason,omitempty"`
}
