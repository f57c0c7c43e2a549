package routes

import (
	"context"
	"errors"
	"net/http"

	"notelend/gateway/middleware"
	"notelend/native/bank"
	"notelend/native/loans"
	"notelend/native/notes"
	"notelend/native/vault"
	loansv1 "notelend/proto/loans/v1"
	"notelend/services/loans/engine"
)

func statusForKind(kind string) int {
	switch kind {
	case "InvalidState", "SignatureUsed":
		return http.StatusConflict
	case "InvalidMsgSender", "InvalidSigner":
		return http.StatusForbidden
	case "InvalidLoanTerms", "ParameterOutOfBounds", "InvalidAddress":
		return http.StatusBadRequest
	case "LoanNotFound":
		return http.StatusNotFound
	case "LoanTermsExpired", "LoanAmountExceeded", "NotLiquidatable", "InsufficientBalance":
		return http.StatusUnprocessableEntity
	case "ModulePaused":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// classify maps an error onto an HTTP status and stable code.
func classify(err error) (int, string) {
	if kind := loans.Kind(err); kind != "" {
		return statusForKind(kind), kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "Timeout"
	case errors.Is(err, engine.ErrUnavailable):
		return http.StatusServiceUnavailable, "Unavailable"
	case errors.Is(err, engine.ErrUnauthorized),
		errors.Is(err, vault.ErrNotOwner),
		errors.Is(err, notes.ErrNotHolder):
		return http.StatusForbidden, "Unauthorized"
	case errors.Is(err, engine.ErrNotFound),
		errors.Is(err, vault.ErrVaultNotFound),
		errors.Is(err, vault.ErrPositionNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, vault.ErrInsufficientShares),
		errors.Is(err, vault.ErrPoolEmpty),
		errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, bank.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity, "InsufficientBalance"
	case errors.Is(err, vault.ErrInvalidAmount),
		errors.Is(err, vault.ErrInvalidAddress),
		errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrInvalidToken),
		errors.Is(err, loansv1.ErrInvalidAmount),
		errors.Is(err, loansv1.ErrInvalidSignature):
		return http.StatusBadRequest, "InvalidArgument"
	default:
		return http.StatusInternalServerError, "Internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	middleware.WriteError(w, status, code, message)
}

func badRequest(w http.ResponseWriter, message string) {
	middleware.WriteError(w, http.StatusBadRequest, "InvalidArgument", message)
}
