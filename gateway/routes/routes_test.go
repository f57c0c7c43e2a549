package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"notelend/core/events"
	"notelend/core/state"
	"notelend/crypto"
	"notelend/gateway/middleware"
	"notelend/native/bank"
	"notelend/native/loans"
	"notelend/native/vault"
	loansv1 "notelend/proto/loans/v1"
	"notelend/services/loans/engine"
	"notelend/services/loans/journal"
	"notelend/storage"
)

const testToken = "NLD"

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type gateway struct {
	server   *httptest.Server
	exec     *engine.Executor
	journal  *journal.Journal
	hub      *events.Hub
	signer   *crypto.PrivateKey
	clock    int64
	vault    [20]byte
	lender   [20]byte
	borrower [20]byte
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	g := &gateway{
		clock:    1_700_000_000,
		vault:    [20]byte{0xB1},
		lender:   [20]byte{0x1E},
		borrower: [20]byte{0xB0},
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	g.signer = key

	manager := state.NewManager(storage.NewMemDB())
	seed := manager.Begin()
	signer := key.PubKey().Address().Raw()
	if err := seed.SetRole(state.RoleTermsSigner, signer[:]); err != nil {
		t.Fatalf("set role: %v", err)
	}
	ledger := bank.NewLedger(seed)
	if err := ledger.Mint(g.borrower, testToken, units(40)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Mint(g.lender, testToken, units(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := vault.NewLedger(seed, ledger).CreateVault(g.vault, testToken); err != nil {
		t.Fatalf("create vault: %v", err)
	}
	if err := seed.Commit(); err != nil {
		t.Fatalf("commit seed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g.journal, err = journal.Open(journal.DriverSQLite, "", logger)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = g.journal.Close() })

	g.hub = events.NewHub(16)
	g.exec = engine.NewExecutor(manager, loans.DefaultParams(), logger)
	g.journal.SetPublisher(g.hub)
	g.exec.SetEmitter(g.journal)
	g.exec.SetNowFunc(func() int64 { return g.clock })

	handler := New(Config{
		Service:       g.exec,
		Journal:       g.journal,
		Hub:           g.hub,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{}, logger),
		Logger:        logger,
	})
	g.server = httptest.NewServer(handler)
	t.Cleanup(g.server.Close)
	return g
}

func (g *gateway) do(t *testing.T, method, path string, caller [20]byte, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, g.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if caller != ([20]byte{}) {
		req.Header.Set("X-Caller", crypto.FormatRaw(caller))
	}
	resp, err := g.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func (g *gateway) expect(t *testing.T, method, path string, caller [20]byte, body interface{}, status int, out interface{}) {
	t.Helper()
	got, data := g.do(t, method, path, caller, body)
	if got != status {
		t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, status, got, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
	}
}

// prepare opens and funds the borrower's collateral position and approves
// the lender's spending, all over HTTP.
func (g *gateway) prepare(t *testing.T) vault.Ref {
	t.Helper()
	var opened struct {
		Vault string `json:"vault"`
		ID    uint64 `json:"id"`
	}
	g.expect(t, http.MethodPost, "/v1/positions", g.borrower, map[string]string{"vault": crypto.FormatRaw(g.vault)}, http.StatusCreated, &opened)
	base := "/v1/positions/" + opened.Vault + "/" + strconv.FormatUint(opened.ID, 10)
	g.expect(t, http.MethodPost, base+"/fund", g.borrower, map[string]string{"amount": units(40).String()}, http.StatusOK, nil)
	g.expect(t, http.MethodPost, base+"/approve", g.borrower, nil, http.StatusOK, nil)
	g.expect(t, http.MethodPost, "/v1/bank/approve", g.lender, map[string]string{"token": testToken, "amount": units(100).String()}, http.StatusOK, nil)
	return vault.Ref{Vault: g.vault, ID: opened.ID}
}

func (g *gateway) initiateBody(t *testing.T, ref vault.Ref, amount *big.Int) *loansv1.InitiateLoanRequest {
	t.Helper()
	terms := &loans.LoanTerms{
		Lender:            g.lender,
		LoanAmount:        amount,
		InterestRate:      500,
		Duration:          10 * 24 * 60 * 60,
		CollateralAddress: ref.Vault,
		CollateralID:      ref.ID,
		Borrower:          g.borrower,
		Currency:          testToken,
		Expiration:        uint64(g.clock) + 24*60*60,
	}
	sig, err := loans.SignTerms(g.exec.Params().Domain, terms, g.signer)
	if err != nil {
		t.Fatalf("sign terms: %v", err)
	}
	return &loansv1.InitiateLoanRequest{Terms: loansv1.TermsFromDomain(terms), Signature: loansv1.EncodeSignature(sig)}
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	g := newGateway(t)
	ref := g.prepare(t)

	var created loansv1.InitiateLoanResponse
	g.expect(t, http.MethodPost, "/v1/loans", g.borrower, g.initiateBody(t, ref, units(10)), http.StatusCreated, &created)
	if created.LoanID != 1 {
		t.Fatalf("expected loan 1, got %d", created.LoanID)
	}

	var loan loansv1.GetLoanResponse
	g.expect(t, http.MethodGet, "/v1/loans/1", [20]byte{}, nil, http.StatusOK, &loan)
	if loan.Loan.State != "active" || loan.Loan.Debt != units(10).String() {
		t.Fatalf("unexpected loan %+v", loan.Loan)
	}
	if loan.Loan.LenderHolder != crypto.FormatRaw(g.lender) {
		t.Fatalf("unexpected lender holder %q", loan.Loan.LenderHolder)
	}

	var active loansv1.GetActiveLoansResponse
	g.expect(t, http.MethodGet, "/v1/borrowers/"+crypto.FormatRaw(g.borrower)+"/loans", [20]byte{}, nil, http.StatusOK, &active)
	if len(active.LoanIDs) != 1 || active.LoanIDs[0] != 1 {
		t.Fatalf("unexpected active loans %v", active.LoanIDs)
	}

	var partial loansv1.RepayResponse
	g.expect(t, http.MethodPost, "/v1/loans/1/repay", g.borrower, map[string]string{"payment": units(4).String()}, http.StatusOK, &partial)
	if partial.Settlement.Full {
		t.Fatalf("partial payment settled the loan")
	}

	var full loansv1.RepayResponse
	g.expect(t, http.MethodPost, "/v1/loans/1/repay", g.borrower, nil, http.StatusOK, &full)
	if !full.Settlement.Full || full.Settlement.Recipient != crypto.FormatRaw(g.lender) {
		t.Fatalf("unexpected settlement %+v", full.Settlement)
	}

	var history eventsResponse
	g.expect(t, http.MethodGet, "/v1/loans/1/events", [20]byte{}, nil, http.StatusOK, &history)
	if len(history.Events) < 2 {
		t.Fatalf("expected journaled events, got %d", len(history.Events))
	}
	if history.Events[0].Event.Type != events.TypeLoanStarted {
		t.Fatalf("expected first event %s, got %s", events.TypeLoanStarted, history.Events[0].Event.Type)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	g := newGateway(t)
	ref := g.prepare(t)
	body := g.initiateBody(t, ref, units(21))

	g.expect(t, http.MethodPost, "/v1/loans", g.borrower, body, http.StatusUnprocessableEntity, nil)
	g.expect(t, http.MethodPost, "/v1/loans", [20]byte{}, body, http.StatusUnauthorized, nil)
	g.expect(t, http.MethodGet, "/v1/loans/9", [20]byte{}, nil, http.StatusNotFound, nil)
	g.expect(t, http.MethodGet, "/v1/loans/abc", [20]byte{}, nil, http.StatusBadRequest, nil)
	g.expect(t, http.MethodPost, "/v1/loans/9/liquidate", g.lender, nil, http.StatusConflict, nil)
	g.expect(t, http.MethodPost, "/v1/loans/1/notes/admin/transfer", g.lender, map[string]string{"to": crypto.FormatRaw(g.lender)}, http.StatusBadRequest, nil)

	ok := g.initiateBody(t, ref, units(10))
	g.expect(t, http.MethodPost, "/v1/loans", g.lender, ok, http.StatusForbidden, nil)
	g.expect(t, http.MethodPost, "/v1/loans", g.borrower, ok, http.StatusCreated, nil)
	g.expect(t, http.MethodPost, "/v1/loans", g.borrower, ok, http.StatusConflict, nil)
	g.expect(t, http.MethodPost, "/v1/loans/1/repay", g.borrower, map[string]string{"payment": "0"}, http.StatusBadRequest, nil)

	var failure middleware.ErrorBody
	g.expect(t, http.MethodPost, "/v1/loans/1/liquidate", g.lender, nil, http.StatusUnprocessableEntity, &failure)
	if failure.Error.Code != "NotLiquidatable" {
		t.Fatalf("unexpected error code %q", failure.Error.Code)
	}
}

func TestPositionAndBalanceQueries(t *testing.T) {
	g := newGateway(t)
	ref := g.prepare(t)

	var pos positionResponse
	path := "/v1/positions/" + crypto.FormatRaw(ref.Vault) + "/" + strconv.FormatUint(ref.ID, 10)
	g.expect(t, http.MethodGet, path, [20]byte{}, nil, http.StatusOK, &pos)
	if pos.Owner != crypto.FormatRaw(g.borrower) || pos.Valuation != units(40).String() || pos.Asset != testToken {
		t.Fatalf("unexpected position %+v", pos)
	}
	if pos.Approved != crypto.FormatRaw(loans.ModuleAddress) {
		t.Fatalf("position not approved for the loan module: %q", pos.Approved)
	}

	var bal balanceResponse
	g.expect(t, http.MethodGet, "/v1/balances/"+crypto.FormatRaw(g.lender)+"/"+testToken, [20]byte{}, nil, http.StatusOK, &bal)
	if bal.Balance != units(100).String() {
		t.Fatalf("unexpected balance %s", bal.Balance)
	}

	stranger := [20]byte{0x5A}
	g.expect(t, http.MethodPost, path+"/fund", stranger, map[string]string{"amount": "1"}, http.StatusForbidden, nil)
	g.expect(t, http.MethodPost, "/v1/holders/signers", g.lender, map[string]interface{}{"signer": crypto.FormatRaw(stranger), "approved": true}, http.StatusForbidden, nil)
	g.expect(t, http.MethodPost, "/v1/holders", g.lender, nil, http.StatusOK, nil)
	g.expect(t, http.MethodPost, "/v1/holders/signers", g.lender, map[string]interface{}{"signer": crypto.FormatRaw(stranger), "approved": true}, http.StatusOK, nil)
}

func TestIdempotentInitiate(t *testing.T) {
	g := newGateway(t)
	ref := g.prepare(t)
	payload, err := json.Marshal(g.initiateBody(t, ref, units(10)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	send := func() (int, string) {
		req, _ := http.NewRequest(http.MethodPost, g.server.URL+"/v1/loans", bytes.NewReader(payload))
		req.Header.Set("X-Caller", crypto.FormatRaw(g.borrower))
		req.Header.Set(middleware.HeaderIdempotencyKey, "initiate-1")
		resp, err := g.server.Client().Do(req)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, strings.TrimSpace(string(body))
	}

	status, first := send()
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, first)
	}
	status, second := send()
	if status != http.StatusCreated || second != first {
		t.Fatalf("expected replay of %s, got %d %s", first, status, second)
	}
}

func TestEventStreamRelaysCommits(t *testing.T) {
	g := newGateway(t)
	ref := g.prepare(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/v1/events/stream"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// The handler subscribes after the upgrade completes.
	deadline := time.Now().Add(2 * time.Second)
	for g.hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stream never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	g.expect(t, http.MethodPost, "/v1/loans", g.borrower, g.initiateBody(t, ref, units(10)), http.StatusCreated, nil)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode stream message: %v", err)
	}
	if msg.Event == nil || msg.Event.Type != events.TypeLoanStarted {
		t.Fatalf("unexpected stream message %s", data)
	}
}

func readStream(ctx context.Context, t *testing.T, conn *websocket.Conn) streamMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode stream message: %v", err)
	}
	return msg
}

func TestEventStreamReplaysWithoutDuplicates(t *testing.T) {
	g := newGateway(t)
	ref := g.prepare(t)
	g.expect(t, http.MethodPost, "/v1/loans", g.borrower, g.initiateBody(t, ref, units(10)), http.StatusCreated, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	backlog, err := g.journal.Since(ctx, 0, 0)
	if err != nil || len(backlog) == 0 {
		t.Fatalf("expected journaled events, got %d (%v)", len(backlog), err)
	}

	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/v1/events/stream?cursor=0"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	var last uint64
	for i := range backlog {
		msg := readStream(ctx, t, conn)
		if msg.Seq != backlog[i].Seq || msg.Event.Type != backlog[i].Event.Type {
			t.Fatalf("replay %d: expected seq %d %s, got %d %s", i, backlog[i].Seq, backlog[i].Event.Type, msg.Seq, msg.Event.Type)
		}
		last = msg.Seq
	}

	// An event committed while the backlog was read reaches the hub too.
	g.hub.Publish(last, backlog[len(backlog)-1].Event)
	g.expect(t, http.MethodPost, "/v1/loans/1/collateral/deposit", g.borrower, map[string]string{"amount": units(1).String()}, http.StatusOK, nil)

	live := readStream(ctx, t, conn)
	if live.Seq != last+1 {
		t.Fatalf("expected live seq %d, got %d (%s)", last+1, live.Seq, live.Event.Type)
	}
	if live.Event.Type != events.TypeCollateralDeposited {
		t.Fatalf("unexpected live event %s", live.Event.Type)
	}
}
