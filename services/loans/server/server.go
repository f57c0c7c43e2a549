package server

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"notelend/native/notes"
	loansv1 "notelend/proto/loans/v1"
	"notelend/services/loans/engine"
)

// Service implements notelend.loans.v1.LoanService on top of the loan engine.
type Service struct {
	loansv1.UnimplementedLoanServiceServer

	engine engine.Engine
	logger *slog.Logger
}

// New constructs a loan service instance.
func New(eng engine.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: eng, logger: logger}
}

func (s *Service) InitiateLoan(ctx context.Context, req *loansv1.InitiateLoanRequest) (*loansv1.InitiateLoanResponse, error) {
	caller, err := s.prepare(ctx, req != nil)
	if err != nil {
		return nil, err
	}
	terms, err := req.Terms.ToDomain()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	sig, err := loansv1.DecodeSignature(req.Signature)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	id, err := s.engine.InitiateLoan(ctx, caller, terms, sig)
	if err != nil {
		return nil, s.translate("initiate_loan", err)
	}
	return &loansv1.InitiateLoanResponse{LoanID: id}, nil
}

func (s *Service) UpdateLoan(ctx context.Context, req *loansv1.UpdateLoanRequest) (*loansv1.UpdateLoanResponse, error) {
	caller, err := s.prepare(ctx, req != nil)
	if err != nil {
		return nil, err
	}
	terms, err := req.Terms.ToDomain()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	sig, err := loansv1.DecodeSignature(req.Signature)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.engine.UpdateLoan(ctx, caller, req.LoanID, terms, sig); err != nil {
		return nil, s.translate("update_loan", err)
	}
	return &loansv1.UpdateLoanResponse{}, nil
}

func (s *Service) PartialRepay(ctx context.Context, req *loansv1.PartialRepayRequest) (*loansv1.RepayResponse, error) {
	caller, err := s.prepare(ctx, req != nil)
	if err != nil {
		return nil, err
	}
	payment, err := loansv1.ParseAmount(req.Payment)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	settlement, err := s.engine.PartialRepay(ctx, caller, req.LoanID, payment)
	if err != nil {
		return nil, s.translate("partial_repay", err)
	}
	return &loansv1.RepayResponse{Settlement: loansv1.SettlementFromDomain(settlement)}, nil
}

func (s *Service) Repay(ctx context.Context, req *loansv1.RepayRequest) (*loansv1.RepayResponse, error) {
	caller, err := s.prepare(ctx, req != nil)
	if err != nil {
		return nil, err
	}
	settlement, err := s.engine.Repay(ctx, caller, req.LoanID)
	if err != nil {
		return nil, s.translate("repay", err)
	}
	return &loansv1.RepayResponse{Settlement: loansv1.SettlementFromDomain(settlement)}, nil
}

func (s *Service) Liquidate(ctx context.Context, req *loansv1.LiquidateRequest) (*loansv1.LiquidateResponse, error) {
	caller, err := s.prepare(ctx, req != nil)
	if err != nil {
		return nil, err
	}
	reason, err := s.engine.Liquidate(ctx, caller, req.LoanID)
	if err != nil {
		return nil, s.translate("liquidate", err)
	}
	return &loansv1.LiquidateResponse{Reason: string(reason)}, nil
}

func (s *Service) Deposit(ctx context.Context, req *loansv1.CollateralRequest) (*loansv1.CollateralResponse, error) {
	caller, err := s.prepare(ctx, req != nil)
	if err != nil {
		return nil, err
	}
	amount, err := loansv1.ParseAmount(req.Amount)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.engine.Deposit(ctx, caller, req.LoanID, amount); err != nil {
		return nil, s.translate("deposit", err)
	}
	return &loansv1.CollateralResponse{}, nil
}

func (s *Service) Withdraw(ctx context.Context, req *loansv1.CollateralRequest) (*loansv1.CollateralResponse, error) {
	caller, err := s.prepare(ctx, req != nil)
	if err != nil {
		return nil, err
	}
	amount, err := loansv1.ParseAmount(req.Amount)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.engine.Withdraw(ctx, caller, req.LoanID, amount); err != nil {
		return nil, s.translate("withdraw", err)
	}
	return &loansv1.CollateralResponse{}, nil
}

func (s *Service) TransferNote(ctx context.Context, req *loansv1.TransferNoteRequest) (*loansv1.TransferNoteResponse, error) {
	caller, err := s.prepare(ctx, req != nil)
	if err != nil {
		return nil, err
	}
	kind, err := notes.ParseKind(req.Kind)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	to, err := loansv1.ParseAddress("to", req.To)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.engine.TransferNote(ctx, caller, kind, req.LoanID, to); err != nil {
		return nil, s.translate("transfer_note", err)
	}
	return &loansv1.TransferNoteResponse{}, nil
}

func (s *Service) GetLoan(ctx context.Context, req *loansv1.GetLoanRequest) (*loansv1.GetLoanResponse, error) {
	if err := s.ready(req != nil); err != nil {
		return nil, err
	}
	view, err := s.engine.GetLoan(ctx, req.LoanID)
	if err != nil {
		return nil, s.translate("get_loan", err)
	}
	return &loansv1.GetLoanResponse{
		Loan: loansv1.LoanFromDomain(view.Loan, view.LenderHolder, view.BorrowerHolder, view.Debt),
	}, nil
}

func (s *Service) GetActiveLoans(ctx context.Context, req *loansv1.GetActiveLoansRequest) (*loansv1.GetActiveLoansResponse, error) {
	if err := s.ready(req != nil); err != nil {
		return nil, err
	}
	borrower, err := loansv1.ParseAddress("borrower", req.Borrower)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ids, err := s.engine.ActiveLoans(ctx, borrower)
	if err != nil {
		return nil, s.translate("get_active_loans", err)
	}
	if ids == nil {
		ids = []uint64{}
	}
	return &loansv1.GetActiveLoansResponse{LoanIDs: ids}, nil
}

func (s *Service) RepayAmount(ctx context.Context, req *loansv1.RepayAmountRequest) (*loansv1.RepayAmountResponse, error) {
	if err := s.ready(req != nil); err != nil {
		return nil, err
	}
	amount, err := s.engine.RepayAmount(ctx, req.LoanID)
	if err != nil {
		return nil, s.translate("repay_amount", err)
	}
	return &loansv1.RepayAmountResponse{Amount: loansv1.FormatAmount(amount)}, nil
}

func (s *Service) Liquidatable(ctx context.Context, req *loansv1.LiquidatableRequest) (*loansv1.LiquidatableResponse, error) {
	if err := s.ready(req != nil); err != nil {
		return nil, err
	}
	ok, reason, err := s.engine.Liquidatable(ctx, req.LoanID)
	if err != nil {
		return nil, s.translate("liquidatable", err)
	}
	return &loansv1.LiquidatableResponse{Liquidatable: ok, Reason: string(reason)}, nil
}

func (s *Service) ready(hasRequest bool) error {
	if s == nil || s.engine == nil {
		return status.Error(codes.FailedPrecondition, "loan engine unavailable")
	}
	if !hasRequest {
		return status.Error(codes.InvalidArgument, "request required")
	}
	return nil
}

// prepare checks the service state and resolves the authenticated caller.
func (s *Service) prepare(ctx context.Context, hasRequest bool) ([20]byte, error) {
	if err := s.ready(hasRequest); err != nil {
		return [20]byte{}, err
	}
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return caller, status.Error(codes.Unauthenticated, "authentication required")
	}
	return caller, nil
}

func (s *Service) translate(action string, err error) error {
	stErr := toStatus(err)
	if status.Code(stErr) == codes.Internal {
		s.logger.Error("loan engine error", "action", action, "error", err)
	}
	return stErr
}
