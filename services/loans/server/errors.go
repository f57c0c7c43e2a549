package server

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"notelend/native/loans"
	loansv1 "notelend/proto/loans/v1"
	"notelend/services/loans/engine"
)

// codeForKind maps a loan error kind onto a gRPC status code.
func codeForKind(kind string) codes.Code {
	switch kind {
	case "InvalidState", "LoanTermsExpired", "LoanAmountExceeded", "NotLiquidatable", "InsufficientBalance":
		return codes.FailedPrecondition
	case "InvalidMsgSender", "InvalidSigner":
		return codes.PermissionDenied
	case "InvalidLoanTerms", "ParameterOutOfBounds", "InvalidAddress":
		return codes.InvalidArgument
	case "SignatureUsed":
		return codes.AlreadyExists
	case "LoanNotFound":
		return codes.NotFound
	case "ModulePaused":
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}

// toStatus converts engine errors to gRPC statuses. Loan errors keep their
// kind as the message prefix so clients can branch on it.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	if kind := loans.Kind(err); kind != "" {
		return status.Error(codeForKind(kind), fmt.Sprintf("%s: %v", kind, err))
	}
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return status.Error(codes.NotFound, "resource not found")
	case errors.Is(err, engine.ErrUnavailable):
		return status.Error(codes.Unavailable, "loan engine unavailable")
	case errors.Is(err, engine.ErrUnauthorized):
		return status.Error(codes.PermissionDenied, "unauthorized")
	case errors.Is(err, loansv1.ErrInvalidAmount), errors.Is(err, loansv1.ErrInvalidSignature):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
