package loans

import (
	"errors"
	"math/big"
	"testing"

	"notelend/core/events"
	"notelend/core/state"
	"notelend/crypto"
	nativecommon "notelend/native/common"
	"notelend/native/bank"
	"notelend/native/notes"
	"notelend/native/vault"
	"notelend/storage"
)

const (
	testToken = "NLD"
	day       = uint64(24 * 60 * 60)
	startTime = int64(1_700_000_000)
)

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type harness struct {
	t        *testing.T
	tx       *state.Tx
	engine   *Engine
	bank     *bank.Ledger
	vaults   *vault.Ledger
	notes    *notes.Registry
	pauses   *nativecommon.Pauses
	buffer   *events.Buffer
	signer   *crypto.PrivateKey
	clock    int64
	vault    [20]byte
	lender   [20]byte
	borrower [20]byte
	treasury [20]byte
	position vault.Ref
}

func newHarness(t *testing.T, collateral *big.Int) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		tx:       state.NewManager(storage.NewMemDB()).Begin(),
		clock:    startTime,
		vault:    [20]byte{0xB1},
		lender:   [20]byte{0x1E},
		borrower: [20]byte{0xB0},
		treasury: [20]byte{0x7E},
		pauses:   nativecommon.NewPauses(),
		buffer:   events.NewBuffer(),
	}
	h.bank = bank.NewLedger(h.tx)
	h.vaults = vault.NewLedger(h.tx, h.bank)
	h.notes = notes.NewRegistry(h.tx)

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}
	h.signer = key
	signer := key.PubKey().Address().Raw()
	if err := h.tx.SetRole(state.RoleTermsSigner, signer[:]); err != nil {
		t.Fatalf("grant signer: %v", err)
	}

	params := DefaultParams()
	params.ProtocolFeeBps = 1_000
	params.Treasury = h.treasury
	h.engine = NewEngine(params)
	h.engine.SetState(h.tx, state.NewRoleView(h.tx, state.RoleTermsSigner))
	h.engine.SetCollateral(h.vaults, h.vaults)
	h.engine.SetCurrency(h.bank)
	h.engine.SetNotes(h.notes)
	h.engine.SetPauses(h.pauses)
	h.engine.SetEmitter(h.buffer)
	h.engine.SetNowFunc(func() int64 { return h.clock })

	if _, err := h.vaults.CreateVault(h.vault, testToken); err != nil {
		t.Fatalf("create vault: %v", err)
	}
	h.fund(h.borrower, collateral)
	ref, err := h.vaults.OpenPosition(h.vault, h.borrower)
	if err != nil {
		t.Fatalf("open position: %v", err)
	}
	if _, err := h.vaults.Deposit(ref, h.borrower, collateral); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if err := h.vaults.Approve(ref, h.borrower, ModuleAddress); err != nil {
		t.Fatalf("approve position: %v", err)
	}
	h.position = ref
	h.fund(h.lender, units(100))
	h.allow(h.lender, units(100))
	return h
}

func (h *harness) fund(addr [20]byte, amount *big.Int) {
	h.t.Helper()
	if err := h.bank.Mint(addr, testToken, amount); err != nil {
		h.t.Fatalf("mint: %v", err)
	}
}

func (h *harness) allow(owner [20]byte, amount *big.Int) {
	h.t.Helper()
	if err := h.bank.Approve(owner, ModuleAddress, testToken, amount); err != nil {
		h.t.Fatalf("approve allowance: %v", err)
	}
}

func (h *harness) balance(addr [20]byte) *big.Int {
	h.t.Helper()
	bal, err := h.bank.BalanceOf(addr, testToken)
	if err != nil {
		h.t.Fatalf("balance: %v", err)
	}
	return bal
}

func (h *harness) advance(seconds uint64) {
	h.clock += int64(seconds)
}

func (h *harness) terms(amount *big.Int, priceLiquidation bool) *LoanTerms {
	return &LoanTerms{
		Lender:            h.lender,
		LoanAmount:        amount,
		InterestRate:      500,
		Duration:          10 * day,
		CollateralAddress: h.position.Vault,
		CollateralID:      h.position.ID,
		Borrower:          h.borrower,
		Expiration:        uint64(h.clock) + 3_600,
		Currency:          testToken,
		PriceLiquidation:  priceLiquidation,
	}
}

func (h *harness) sign(terms *LoanTerms, key *crypto.PrivateKey) []byte {
	h.t.Helper()
	sig, err := SignTerms(h.engine.Params().Domain, terms, key)
	if err != nil {
		h.t.Fatalf("sign terms: %v", err)
	}
	return sig
}

func (h *harness) initiate(amount *big.Int, priceLiquidation bool) uint64 {
	h.t.Helper()
	terms := h.terms(amount, priceLiquidation)
	id, err := h.engine.InitiateLoan(h.borrower, terms, h.sign(terms, h.signer))
	if err != nil {
		h.t.Fatalf("initiate loan: %v", err)
	}
	return id
}

func (h *harness) loan(id uint64) *Loan {
	h.t.Helper()
	loan, err := h.engine.GetLoan(id)
	if err != nil {
		h.t.Fatalf("get loan: %v", err)
	}
	return loan
}

func (h *harness) custodian() [20]byte {
	h.t.Helper()
	owner, err := h.vaults.OwnerOf(h.position)
	if err != nil {
		h.t.Fatalf("owner of: %v", err)
	}
	return owner
}

func expectState(t *testing.T, err error, want LoanState) {
	t.Helper()
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected state error, got %v", err)
	}
	if stateErr.Current != want {
		t.Fatalf("expected current state %s, got %s", want, stateErr.Current)
	}
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("state error must unwrap to ErrInvalidState")
	}
}

func TestInitiateLoanOriginates(t *testing.T) {
	h := newHarness(t, units(40))
	id := h.initiate(units(10), false)
	if id != 1 {
		t.Fatalf("expected first loan id 1, got %d", id)
	}

	loan := h.loan(id)
	if loan.State != StateActive {
		t.Fatalf("expected active loan, got %s", loan.State)
	}
	if loan.Balance.Cmp(units(10)) != 0 || loan.InterestAccrued.Sign() != 0 {
		t.Fatalf("unexpected balances: %s / %s", loan.Balance, loan.InterestAccrued)
	}
	if loan.StartedAt != uint64(startTime) || loan.UpdatedAt != uint64(startTime) {
		t.Fatalf("unexpected timestamps: %d / %d", loan.StartedAt, loan.UpdatedAt)
	}
	if got := h.balance(h.borrower); got.Cmp(units(10)) != 0 {
		t.Fatalf("borrower should receive principal, got %s", got)
	}
	if got := h.balance(h.lender); got.Cmp(units(90)) != 0 {
		t.Fatalf("lender should fund principal, got %s", got)
	}
	if h.custodian() != ModuleAddress {
		t.Fatalf("module should hold custody of collateral")
	}
	lien, err := h.vaults.Lien(h.position)
	if err != nil || lien.Cmp(units(10)) != 0 {
		t.Fatalf("expected lien of principal, got %v (%v)", lien, err)
	}
	for kind, want := range map[notes.Kind][20]byte{notes.KindLender: h.lender, notes.KindBorrower: h.borrower} {
		owner, ok, err := h.notes.OwnerOf(kind, id)
		if err != nil || !ok || owner != want {
			t.Fatalf("%s note: owner %x ok %v err %v", kind, owner, ok, err)
		}
	}
	active, err := h.engine.ActiveLoans(h.borrower)
	if err != nil || len(active) != 1 || active[0] != id {
		t.Fatalf("unexpected active loans %v (%v)", active, err)
	}
	evts := h.buffer.Events()
	if len(evts) != 1 || evts[0].EventType() != events.TypeLoanStarted {
		t.Fatalf("expected loan started event, got %v", evts)
	}
}

func TestInitiateLoanRatioBoundary(t *testing.T) {
	h := newHarness(t, units(40))
	over := new(big.Int).Add(units(20), big.NewInt(1))
	terms := h.terms(over, false)
	_, err := h.engine.InitiateLoan(h.borrower, terms, h.sign(terms, h.signer))
	if !errors.Is(err, ErrLoanAmountExceeded) {
		t.Fatalf("expected loan amount exceeded, got %v", err)
	}

	h = newHarness(t, units(40))
	if id := h.initiate(units(20), false); id != 1 {
		t.Fatalf("exactly at the ratio should originate, got id %d", id)
	}
}

func TestInitiateLoanRejectsReplay(t *testing.T) {
	h := newHarness(t, units(40))
	terms := h.terms(units(10), false)
	sig := h.sign(terms, h.signer)
	if _, err := h.engine.InitiateLoan(h.borrower, terms, sig); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	_, err := h.engine.InitiateLoan(h.borrower, terms, sig)
	var used *SignatureUsedError
	if !errors.As(err, &used) || !errors.Is(err, ErrSignatureUsed) {
		t.Fatalf("expected signature used, got %v", err)
	}

	legacy := append([]byte(nil), sig...)
	legacy[64] += 27
	if _, err := h.engine.InitiateLoan(h.borrower, terms, legacy); !errors.Is(err, ErrSignatureUsed) {
		t.Fatalf("re-encoded signature must also be rejected, got %v", err)
	}
}

func TestInitiateLoanAuthorization(t *testing.T) {
	h := newHarness(t, units(40))

	expired := h.terms(units(10), false)
	expired.Expiration = uint64(h.clock)
	if _, err := h.engine.InitiateLoan(h.borrower, expired, h.sign(expired, h.signer)); !errors.Is(err, ErrLoanTermsExpired) {
		t.Fatalf("expected expired terms, got %v", err)
	}

	stranger, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	terms := h.terms(units(10), false)
	if _, err := h.engine.InitiateLoan(h.borrower, terms, h.sign(terms, stranger)); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("expected invalid signer, got %v", err)
	}

	if _, err := h.engine.InitiateLoan(h.lender, terms, h.sign(terms, h.signer)); !errors.Is(err, ErrInvalidMsgSender) {
		t.Fatalf("expected invalid sender, got %v", err)
	}

	mismatched := h.terms(units(10), false)
	mismatched.Currency = "OTHER"
	if _, err := h.engine.InitiateLoan(h.borrower, mismatched, h.sign(mismatched, h.signer)); !errors.Is(err, ErrInvalidLoanTerms) {
		t.Fatalf("expected invalid terms for currency mismatch, got %v", err)
	}

	h.pauses.Set(moduleName, true)
	if _, err := h.engine.InitiateLoan(h.borrower, terms, h.sign(terms, h.signer)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused module, got %v", err)
	}
}

func TestRepayAmountAccruesSimpleInterest(t *testing.T) {
	h := newHarness(t, units(40))
	id := h.initiate(units(10), false)

	first, err := h.engine.RepayAmount(id)
	if err != nil {
		t.Fatalf("repay amount: %v", err)
	}
	if first.Cmp(units(10)) != 0 {
		t.Fatalf("no time elapsed, expected principal, got %s", first)
	}
	again, _ := h.engine.RepayAmount(id)
	if again.Cmp(first) != 0 {
		t.Fatalf("repay amount must be idempotent without elapsed time")
	}

	h.advance(5 * day)
	quote, err := h.engine.RepayAmount(id)
	if err != nil {
		t.Fatalf("repay amount: %v", err)
	}
	// 10 * 5% * 5 / 365, floored to the base unit.
	want := new(big.Int).Add(units(10), big.NewInt(6_849_315_068_493_150))
	if quote.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, quote)
	}
	if h.loan(id).InterestAccrued.Sign() != 0 {
		t.Fatalf("quoting must not mutate the loan")
	}

	h.advance(1)
	later, _ := h.engine.RepayAmount(id)
	if later.Cmp(quote) <= 0 {
		t.Fatalf("repay amount must grow with time: %s then %s", quote, later)
	}
}

func TestPartialRepayPaysInterestFirst(t *testing.T) {
	h := newHarness(t, units(40))
	id := h.initiate(units(10), false)
	h.advance(5 * day)
	interest := big.NewInt(6_849_315_068_493_150)

	small := big.NewInt(1_000)
	settlement, err := h.engine.PartialRepay(h.borrower, id, small)
	if err != nil {
		t.Fatalf("partial repay: %v", err)
	}
	if settlement.Full || settlement.Principal.Sign() != 0 || settlement.Interest.Cmp(small) != 0 {
		t.Fatalf("payment below interest must only pay interest: %+v", settlement)
	}
	loan := h.loan(id)
	if loan.Balance.Cmp(units(10)) != 0 {
		t.Fatalf("balance must be untouched, got %s", loan.Balance)
	}
	if want := new(big.Int).Sub(interest, small); loan.InterestAccrued.Cmp(want) != 0 {
		t.Fatalf("expected unpaid interest %s, got %s", want, loan.InterestAccrued)
	}

	lenderBefore := h.balance(h.lender)
	settlement, err = h.engine.PartialRepay(h.borrower, id, units(2))
	if err != nil {
		t.Fatalf("partial repay: %v", err)
	}
	remainingInterest := new(big.Int).Sub(interest, small)
	wantPrincipal := new(big.Int).Sub(units(2), remainingInterest)
	if settlement.Principal.Cmp(wantPrincipal) != 0 {
		t.Fatalf("expected principal %s, got %s", wantPrincipal, settlement.Principal)
	}
	loan = h.loan(id)
	if loan.State != StateActive || loan.InterestAccrued.Sign() != 0 {
		t.Fatalf("loan should stay active with interest cleared: %+v", loan)
	}
	if want := new(big.Int).Sub(units(10), wantPrincipal); loan.Balance.Cmp(want) != 0 {
		t.Fatalf("expected balance %s, got %s", want, loan.Balance)
	}
	lien, _ := h.vaults.Lien(h.position)
	if lien.Cmp(loan.Balance) != 0 {
		t.Fatalf("lien %s should track balance %s", lien, loan.Balance)
	}

	fee := new(big.Int).Mul(remainingInterest, big.NewInt(1_000))
	fee.Quo(fee, big.NewInt(Denominator))
	if got := h.balance(h.treasury); got.Cmp(new(big.Int).Add(fee, big.NewInt(100))) != 0 {
		t.Fatalf("treasury fee mismatch: %s", got)
	}
	gained := new(big.Int).Sub(h.balance(h.lender), lenderBefore)
	if want := new(big.Int).Sub(units(2), fee); gained.Cmp(want) != 0 {
		t.Fatalf("lender proceeds %s, want %s", gained, want)
	}

	if _, err := h.engine.PartialRepay(h.borrower, id, big.NewInt(0)); !errors.Is(err, ErrParameterOutOfBounds) {
		t.Fatalf("zero payment must be rejected, got %v", err)
	}
	if _, err := h.engine.PartialRepay(h.lender, id, big.NewInt(1)); !errors.Is(err, ErrInvalidMsgSender) {
		t.Fatalf("only the borrower-note holder may repay, got %v", err)
	}
}

func TestOverpaymentSettlesInFull(t *testing.T) {
	h := newHarness(t, units(40))
	id := h.initiate(units(10), false)
	h.advance(5 * day)
	payoff, _ := h.engine.RepayAmount(id)

	settlement, err := h.engine.PartialRepay(h.borrower, id, units(50))
	if err != nil {
		t.Fatalf("overpay: %v", err)
	}
	if !settlement.Full || settlement.Remaining.Sign() != 0 {
		t.Fatalf("expected full settlement, got %+v", settlement)
	}
	if paid := new(big.Int).Add(settlement.Interest, settlement.Principal); paid.Cmp(payoff) != 0 {
		t.Fatalf("payment must be capped at payoff %s, paid %s", payoff, paid)
	}
	loan := h.loan(id)
	if loan.State != StateRepaid {
		t.Fatalf("expected repaid, got %s", loan.State)
	}
	for _, kind := range []notes.Kind{notes.KindLender, notes.KindBorrower} {
		if _, ok, _ := h.notes.OwnerOf(kind, id); ok {
			t.Fatalf("%s note should be burned", kind)
		}
	}
	if h.custodian() != h.borrower {
		t.Fatalf("custody should return to the borrower")
	}
	if lien, _ := h.vaults.Lien(h.position); lien.Sign() != 0 {
		t.Fatalf("lien should be released, got %s", lien)
	}
	active, _ := h.engine.ActiveLoans(h.borrower)
	if len(active) != 0 {
		t.Fatalf("repaid loan should leave the active index, got %v", active)
	}
	quote, err := h.engine.RepayAmount(id)
	if err != nil || quote.Sign() != 0 {
		t.Fatalf("settled loan quotes zero, got %v (%v)", quote, err)
	}
}

func TestTerminalLoansRejectEveryOperation(t *testing.T) {
	h := newHarness(t, units(40))
	id := h.initiate(units(10), false)
	if _, err := h.engine.Repay(h.borrower, id); err != nil {
		t.Fatalf("repay: %v", err)
	}

	_, err := h.engine.Repay(h.borrower, id)
	expectState(t, err, StateRepaid)
	_, err = h.engine.PartialRepay(h.borrower, id, big.NewInt(1))
	expectState(t, err, StateRepaid)
	_, err = h.engine.Liquidate(h.lender, id)
	expectState(t, err, StateRepaid)
	expectState(t, h.engine.Deposit(h.borrower, id, big.NewInt(1)), StateRepaid)
	expectState(t, h.engine.Withdraw(h.borrower, id, big.NewInt(1)), StateRepaid)
	expectState(t, h.engine.TransferNote(h.borrower, notes.KindBorrower, id, h.lender), StateRepaid)
	update := h.terms(units(12), false)
	expectState(t, h.engine.UpdateLoan(h.borrower, id, update, h.sign(update, h.signer)), StateRepaid)

	_, err = h.engine.Repay(h.borrower, 99)
	expectState(t, err, StateNone)
	if _, err := h.engine.GetLoan(99); !errors.Is(err, ErrLoanNotFound) {
		t.Fatalf("expected loan not found, got %v", err)
	}
	if h.loan(id).State != StateRepaid {
		t.Fatalf("terminal state must not change")
	}
}

func TestPriceLiquidationTriggersBeforeMaturity(t *testing.T) {
	h := newHarness(t, units(40))
	id := h.initiate(units(20), true)

	if ok, _, err := h.engine.Liquidatable(id); err != nil || ok {
		t.Fatalf("healthy loan must not be liquidatable: %v %v", ok, err)
	}
	if _, err := h.engine.Liquidate(h.treasury, id); !errors.Is(err, ErrNotLiquidatable) {
		t.Fatalf("expected not liquidatable, got %v", err)
	}

	// 25 * 80% == 20 is exactly the liquidation boundary.
	if err := h.vaults.ReportYield(h.vault, new(big.Int).Neg(units(15))); err != nil {
		t.Fatalf("report loss: %v", err)
	}
	ok, reason, err := h.engine.Liquidatable(id)
	if err != nil || !ok || reason != ReasonUndercollateralized {
		t.Fatalf("expected undercollateralized, got %v %q %v", ok, reason, err)
	}
	reason, err = h.engine.Liquidate(h.treasury, id)
	if err != nil || reason != ReasonUndercollateralized {
		t.Fatalf("liquidate: %q %v", reason, err)
	}
	if h.loan(id).State != StateLiquidated {
		t.Fatalf("expected liquidated state")
	}
	if h.custodian() != h.lender {
		t.Fatalf("collateral should go to the lender-note holder")
	}
	if _, ok, _ := h.notes.OwnerOf(notes.KindBorrower, id); ok {
		t.Fatalf("borrower note should be burned")
	}
	evts := h.buffer.Events()
	last := events.Flatten(evts[len(evts)-1])
	if last.Type != events.TypeLoanLiquidated || last.Attr("reason") != string(ReasonUndercollateralized) {
		t.Fatalf("unexpected final event %+v", last)
	}
}

func TestTimeLiquidationIgnoresValuation(t *testing.T) {
	h := newHarness(t, units(40))
	id := h.initiate(units(20), false)
	if err := h.vaults.ReportYield(h.vault, new(big.Int).Neg(units(19))); err != nil {
		t.Fatalf("report loss: %v", err)
	}
	if _, err := h.engine.Liquidate(h.treasury, id); !errors.Is(err, ErrNotLiquidatable) {
		t.Fatalf("time-based loan must wait for maturity, got %v", err)
	}
	h.advance(10*day - 1)
	if ok, _, _ := h.engine.Liquidatable(id); ok {
		t.Fatalf("one second before maturity must not be liquidatable")
	}
	h.advance(1)
	reason, err := h.engine.Liquidate(h.treasury, id)
	if err != nil || reason != ReasonMatured {
		t.Fatalf("expected matured liquidation, got %q %v", reason, err)
	}
}

func TestLenderNoteTransferRedirectsProceedsAndVouching(t *testing.T) {
	h := newHarness(t, units(40))
	id := h.initiate(units(10), false)
	buyer := [20]byte{0xCA}

	if err := h.engine.TransferNote(h.borrower, notes.KindLender, id, buyer); !errors.Is(err, ErrInvalidMsgSender) {
		t.Fatalf("only the holder may transfer a note, got %v", err)
	}
	if err := h.engine.TransferNote(h.lender, notes.KindLender, id, buyer); err != nil {
		t.Fatalf("transfer lender note: %v", err)
	}

	if _, err := h.engine.PartialRepay(h.borrower, id, units(1)); err != nil {
		t.Fatalf("partial repay: %v", err)
	}
	if got := h.balance(buyer); got.Cmp(units(1)) != 0 {
		t.Fatalf("proceeds should reach the new holder, got %s", got)
	}
	if got := h.balance(h.lender); got.Cmp(units(90)) != 0 {
		t.Fatalf("previous lender must not receive proceeds, got %s", got)
	}

	if err := h.notes.RegisterProgrammable(buyer); err != nil {
		t.Fatalf("register programmable: %v", err)
	}
	h.fund(buyer, units(10))
	h.allow(buyer, units(10))
	h.advance(day)

	update := h.terms(units(12), false)
	update.Lender = buyer
	err := h.engine.UpdateLoan(h.borrower, id, update, h.sign(update, h.signer))
	if !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("programmable holder must vouch for the signer, got %v", err)
	}

	signer := h.signer.PubKey().Address().Raw()
	if err := h.notes.SetApprovedSigner(buyer, signer, true); err != nil {
		t.Fatalf("approve signer: %v", err)
	}
	owed, _ := h.engine.RepayAmount(id)
	borrowerBefore := h.balance(h.borrower)
	update = h.terms(units(12), false)
	update.Lender = buyer
	if err := h.engine.UpdateLoan(h.borrower, id, update, h.sign(update, h.signer)); err != nil {
		t.Fatalf("update loan: %v", err)
	}
	loan := h.loan(id)
	if loan.Balance.Cmp(units(12)) != 0 || loan.InterestAccrued.Sign() != 0 {
		t.Fatalf("update must reset balance and interest: %+v", loan)
	}
	draw := new(big.Int).Sub(units(12), owed)
	if got := new(big.Int).Sub(h.balance(h.borrower), borrowerBefore); got.Cmp(draw) != 0 {
		t.Fatalf("borrower should receive draw %s, got %s", draw, got)
	}
	if lien, _ := h.vaults.Lien(h.position); lien.Cmp(units(12)) != 0 {
		t.Fatalf("lien should follow the new principal, got %s", lien)
	}
}

func TestUpdateLoanRejectsReductionsAndImmutableChanges(t *testing.T) {
	h := newHarness(t, units(40))
	id := h.initiate(units(10), false)
	h.advance(day)

	shrink := h.terms(units(10), false)
	if err := h.engine.UpdateLoan(h.borrower, id, shrink, h.sign(shrink, h.signer)); !errors.Is(err, ErrInvalidLoanTerms) {
		t.Fatalf("amount below balance plus interest must be rejected, got %v", err)
	}

	moved := h.terms(units(12), false)
	moved.CollateralID++
	if err := h.engine.UpdateLoan(h.borrower, id, moved, h.sign(moved, h.signer)); !errors.Is(err, ErrInvalidLoanTerms) {
		t.Fatalf("collateral is immutable, got %v", err)
	}

	mode := h.terms(units(12), true)
	if err := h.engine.UpdateLoan(h.borrower, id, mode, h.sign(mode, h.signer)); !errors.Is(err, ErrInvalidLoanTerms) {
		t.Fatalf("liquidation mode is immutable, got %v", err)
	}

	greedy := h.terms(units(21), false)
	if err := h.engine.UpdateLoan(h.borrower, id, greedy, h.sign(greedy, h.signer)); !errors.Is(err, ErrLoanAmountExceeded) {
		t.Fatalf("update beyond the loan ratio must fail, got %v", err)
	}
}

func TestCollateralDepositAndWithdraw(t *testing.T) {
	h := newHarness(t, units(40))
	id := h.initiate(units(10), false)

	if err := h.engine.Withdraw(h.borrower, id, units(21)); !errors.Is(err, ErrLoanAmountExceeded) {
		t.Fatalf("withdraw below the loan ratio must fail, got %v", err)
	}
	if err := h.engine.Withdraw(h.borrower, id, units(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("withdraw above valuation must fail, got %v", err)
	}
	if err := h.engine.Withdraw(h.lender, id, units(1)); !errors.Is(err, ErrInvalidMsgSender) {
		t.Fatalf("only the borrower-note holder may withdraw, got %v", err)
	}
	if err := h.engine.Withdraw(h.borrower, id, units(20)); err != nil {
		t.Fatalf("withdraw to the exact ratio: %v", err)
	}
	if got := h.balance(h.borrower); got.Cmp(units(30)) != 0 {
		t.Fatalf("borrower should hold principal plus withdrawal, got %s", got)
	}

	if err := h.engine.Deposit(h.borrower, id, units(5)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	valuation, err := h.vaults.Valuation(h.position)
	if err != nil || valuation.Cmp(units(25)) != 0 {
		t.Fatalf("expected valuation 25, got %v (%v)", valuation, err)
	}
	if err := h.engine.Deposit(h.borrower, id, big.NewInt(0)); !errors.Is(err, ErrParameterOutOfBounds) {
		t.Fatalf("zero deposit must fail, got %v", err)
	}
}

func TestLoanIDsAreNeverReused(t *testing.T) {
	h := newHarness(t, units(40))
	first := h.initiate(units(10), false)
	if _, err := h.engine.Repay(h.borrower, first); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if err := h.vaults.Approve(h.position, h.borrower, ModuleAddress); err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	second := h.initiate(units(5), false)
	if second <= first {
		t.Fatalf("expected a fresh id after %d, got %d", first, second)
	}
	count, err := h.engine.LoanCount()
	if err != nil || count != 2 {
		t.Fatalf("expected two loans issued, got %d (%v)", count, err)
	}
}
