package routes

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"notelend/crypto"
	"notelend/gateway/middleware"
	"notelend/native/vault"
	loansv1 "notelend/proto/loans/v1"
)

type openPositionBody struct {
	Vault string `json:"vault"`
}

type positionResponse struct {
	Vault     string `json:"vault"`
	ID        uint64 `json:"id"`
	Owner     string `json:"owner"`
	Approved  string `json:"approved,omitempty"`
	Shares    string `json:"shares"`
	Lien      string `json:"lien"`
	Asset     string `json:"asset"`
	Valuation string `json:"valuation"`
}

type approveSpendingBody struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type balanceResponse struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Balance string `json:"balance"`
}

type signerBody struct {
	Signer   string `json:"signer"`
	Approved bool   `json:"approved"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func positionRef(w http.ResponseWriter, r *http.Request) (vault.Ref, bool) {
	addr, err := loansv1.ParseAddress("vault", chi.URLParam(r, "vault"))
	if err != nil {
		writeError(w, err)
		return vault.Ref{}, false
	}
	id, ok := uintParam(w, r, "id")
	if !ok {
		return vault.Ref{}, false
	}
	return vault.Ref{Vault: addr, ID: id}, true
}

func (h *handlers) openPosition(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok || !h.ready(w) {
		return
	}
	var body openPositionBody
	if !decodeBody(w, r, &body, false) {
		return
	}
	addr, err := loansv1.ParseAddress("vault", body.Vault)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	ref, err := h.svc.OpenPosition(ctx, caller, addr)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"vault": crypto.FormatRaw(ref.Vault),
		"id":    ref.ID,
	})
}

func (h *handlers) getPosition(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	ref, ok := positionRef(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	view, err := h.svc.Position(ctx, ref)
	if err != nil {
		writeError(w, err)
		return
	}
	pos := view.Position
	middleware.WriteJSON(w, http.StatusOK, &positionResponse{
		Vault:     crypto.FormatRaw(pos.Vault),
		ID:        pos.ID,
		Owner:     crypto.FormatRaw(pos.Owner),
		Approved:  crypto.FormatRaw(pos.Approved),
		Shares:    loansv1.FormatAmount(pos.Shares),
		Lien:      loansv1.FormatAmount(pos.Lien),
		Asset:     view.Asset,
		Valuation: loansv1.FormatAmount(view.Valuation),
	})
}

func (h *handlers) fundPosition(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok || !h.ready(w) {
		return
	}
	ref, ok := positionRef(w, r)
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
	if err := h.svc.FundPosition(ctx, caller, ref, amount); err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &okResponse{OK: true})
}

// approvePosition lets the loan module place a lien on the position.
func (h *handlers) approvePosition(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok || !h.ready(w) {
		return
	}
	ref, ok := positionRef(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	if err := h.svc.ApprovePosition(ctx, caller, ref); err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &okResponse{OK: true})
}

func (h *handlers) approveSpending(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok || !h.ready(w) {
		return
	}
	var body approveSpendingBody
	if !decodeBody(w, r, &body, false) {
		return
	}
	token := strings.TrimSpace(body.Token)
	if token == "" {
		badRequest(w, "token required")
		return
	}
	amount, err := loansv1.ParseAmount(body.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	if err := h.svc.ApproveSpending(ctx, caller, token, amount); err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &okResponse{OK: true})
}

func (h *handlers) balance(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	addr, err := loansv1.ParseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	ctx, cancel := h.context(r)
	defer cancel()
	amount, err := h.svc.Balance(ctx, addr, token)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &balanceResponse{
		Address: crypto.FormatRaw(addr),
		Token:   token,
		Balance: loansv1.FormatAmount(amount),
	})
}

// registerHolder marks the caller as a programmable note holder.
func (h *handlers) registerHolder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok || !h.ready(w) {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	if err := h.svc.RegisterHolder(ctx, caller); err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &okResponse{OK: true})
}

func (h *handlers) setHolderSigner(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok || !h.ready(w) {
		return
	}
	var body signerBody
	if !decodeBody(w, r, &body, false) {
		return
	}
	signer, err := loansv1.ParseAddress("signer", body.Signer)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	if err := h.svc.SetHolderSigner(ctx, caller, signer, body.Approved); err != nil {
		writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &okResponse{OK: true})
}
