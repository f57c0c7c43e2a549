package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"notelend/core/events"
	"notelend/gateway/middleware"
	"notelend/native/notes"
	loansv1 "notelend/proto/loans/v1"
	"notelend/services/loans/journal"
)

type handlers struct {
	svc     Service
	journal *journal.Journal
	hub     *events.Hub
	logger  *slog.Logger
	timeout time.Duration
}

type repayBody struct {
	Payment string `json:"payment"`
}

type amountBody struct {
	Amount string `json:"amount"`
}

type transferBody struct {
	To string `json:"to"`
}

type eventsResponse struct {
	Events []journal.Entry `json:"events"`
}

func (h *handlers) context(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

// caller resolves the authenticated account or writes a 401.
func (h *handlers) caller(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthenticated", middleware.ErrNoCaller.Error())
		return caller, false
	}
	return caller, true
}

func (h *handlers) ready(w http.ResponseWriter) bool {
	if h.svc == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Unavailable", "loan service unavailable")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, optional bool) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, requestBodyLimit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		badRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func loanID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	return uintParam(w, r, "id")
}

func uintParam(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		badRequest(w, fmt.Sprintf("invalid %s %q", name, raw))
		return 0, false
	}
	return id, true
}

func (h *handlers) initiateLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok || !h.ready(w) {
		return
	}
	var body loansv1.InitiateLoanRequest
	if !decodeBody(w, r, &body, false) {
		return
	}
	if body.Terms == nil {
		badRequest(w, "terms required")
		return
	}
	terms, err := body.Terms.ToDomain()
	if err != nil {
		writeError(w, err)
		return
	}
	sig, err := loansv1.DecodeSignature(body.Signature)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	id, err := h.svc.InitiateLoan(ctx, caller, terms, sig)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, &loansv1.InitiateLoanResponse{LoanID: id})
}

func (h *handlers) updateLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok || !h.ready(w) {
		return
	}
	id, ok := loanID(w, r)
	if !ok {
		return
	}
	var body loansv1.UpdateLoanRequest
	if !decodeBody(w, r, &body, false) {
		return
	}
	if body.Terms == nil {
		badRequest(w, "terms required")
		return
	}
	if body.LoanID != 0 && body.LoanID != id {
		badRequest(w, "loanId does not match path")
		return
	}
	terms, err := body.Terms.ToDomain()
	if err != nil {
		writeError(w, err)
		return
	}
	sig, err := loansv1.DecodeSignature(body.Signature)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	if err := h.svc.UpdateLoan(ctx, caller, id, terms, sig); err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &loansv1.UpdateLoanResponse{})
}

// repay settles in full unless the body names a payment.
func (h *handlers) repay(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok || !h.ready(w) {
		return
	}
	id, ok := loanID(w, r)
	if !ok {
		return
	}
	var body repayBody
	if !decodeBody(w, r, &body, true) {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	var err error
	var resp loansv1.RepayResponse
	if strings.TrimSpace(body.Payment) == "" {
		settlement, repayErr := h.svc.Repay(ctx, caller, id)
		resp.Settlement, err = loansv1.SettlementFromDomain(settlement), repayErr
	} else {
		payment, parseErr := loansv1.ParseAmount(body.Payment)
		if parseErr != nil {
			writeError(w, parseErr)
			return
		}
		settlement, repayErr := h.svc.PartialRepay(ctx, caller, id, payment)
		resp.Settlement, err = loansv1.SettlementFromDomain(settlement), repayErr
	}
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &resp)
}

func (h *handlers) liquidate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok || !h.ready(w) {
		return
	}
	id, ok := loanID(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	reason, err := h.svc.Liquidate(ctx, caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &loansv1.LiquidateResponse{Reason: string(reason)})
}

func (h *handlers) deposit(w http.ResponseWriter, r *http.Request) {
	h.collateral(w, r, true)
}

func (h *handlers) withdraw(w http.ResponseWriter, r *http.Request) {
	h.collateral(w, r, false)
}

func (h *handlers) collateral(w http.ResponseWriter, r *http.Request, deposit bool) {
	caller, ok := h.caller(w, r)
	if !ok || !h.ready(w) {
		return
	}
	id, ok := loanID(w, r)
	if !ok {
		return
	}
	var body amountBody
	if !decodeBody(w, r, &body, false) {
		return
	}
	amount, err := loansv1.ParseAmount(body.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	if deposit {
		err = h.svc.Deposit(ctx, caller, id, amount)
	} else {
		err = h.svc.Withdraw(ctx, caller, id, amount)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &loansv1.CollateralResponse{})
}

func (h *handlers) transferNote(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok || !h.ready(w) {
		return
	}
	id, ok := loanID(w, r)
	if !ok {
		return
	}
	kind, err := notes.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var body transferBody
	if !decodeBody(w, r, &body, false) {
		return
	}
	to, err := loansv1.ParseAddress("to", body.To)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	if err := h.svc.TransferNote(ctx, caller, kind, id, to); err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &loansv1.TransferNoteResponse{})
}

func (h *handlers) getLoan(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := loanID(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	view, err := h.svc.GetLoan(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	loan := loansv1.LoanFromDomain(view.Loan, view.LenderHolder, view.BorrowerHolder, view.Debt)
	middleware.WriteJSON(w, http.StatusOK, &loansv1.GetLoanResponse{Loan: loan})
}

func (h *handlers) repayAmount(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := loanID(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	amount, err := h.svc.RepayAmount(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &loansv1.RepayAmountResponse{Amount: loansv1.FormatAmount(amount)})
}

func (h *handlers) liquidatable(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := loanID(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	liquidatable, reason, err := h.svc.Liquidatable(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &loansv1.LiquidatableResponse{Liquidatable: liquidatable, Reason: string(reason)})
}

func (h *handlers) activeLoans(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	borrower, err := loansv1.ParseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	ids, err := h.svc.ActiveLoans(ctx, borrower)
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	middleware.WriteJSON(w, http.StatusOK, &loansv1.GetActiveLoansResponse{LoanIDs: ids})
}

func (h *handlers) loanEvents(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Unavailable", "event journal disabled")
		return
	}
	id, ok := loanID(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			badRequest(w, "invalid limit")
			return
		}
		limit = parsed
	}
	ctx, cancel := h.context(r)
	defer cancel()
	entries, err := h.journal.LoanEvents(ctx, id, limit)
	if err != nil {
		h.logger.Error("journal query failed", "loan_id", id, "error", err)
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &eventsResponse{Events: entries})
}
