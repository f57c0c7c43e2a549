package loans

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"notelend/core/events"
	"notelend/crypto"
	nativecommon "notelend/native/common"
	"notelend/native/notes"
	"notelend/native/vault"
)

const moduleName = "loans"

// CollateralLedger is the share-ledger view of a collateral position.
type CollateralLedger interface {
	Asset(vault [20]byte) (string, error)
	Valuation(ref vault.Ref) (*big.Int, error)
	Debit(ref vault.Ref, amount *big.Int) error
	Credit(ref vault.Ref, amount *big.Int) error
	Deposit(ref vault.Ref, from [20]byte, amount *big.Int) (*big.Int, error)
	Withdraw(ref vault.Ref, to [20]byte, amount *big.Int) (*big.Int, error)
}

// Custodian moves custody of collateral positions.
type Custodian interface {
	OwnerOf(ref vault.Ref) ([20]byte, error)
	IsApproved(ref vault.Ref, operator [20]byte) (bool, error)
	TransferCustody(ref vault.Ref, from, to [20]byte) error
}

// Currency moves loan currency between accounts.
type Currency interface {
	Transfer(from, to [20]byte, token string, amount *big.Int) error
	TransferFrom(spender, from, to [20]byte, token string, amount *big.Int) error
}

// NoteRegistry tracks lender and borrower notes and resolves how a holder
// vouches for signers.
type NoteRegistry interface {
	Mint(kind notes.Kind, loanID uint64, owner [20]byte) error
	Burn(kind notes.Kind, loanID uint64) error
	Transfer(kind notes.Kind, loanID uint64, from, to [20]byte) error
	OwnerOf(kind notes.Kind, loanID uint64) ([20]byte, bool, error)
	VoucherFor(holder [20]byte) (notes.Voucher, error)
}

// Engine is the loan lifecycle state machine. It is bound to one state
// transaction; callers discard the transaction when an operation fails.
type Engine struct {
	state    Storage
	ledger   CollateralLedger
	custody  Custodian
	currency Currency
	notes    NoteRegistry
	verifier *Verifier
	params   Params
	policy   Policy
	pauses   nativecommon.PauseView
	emitter  events.Emitter
	nowFn    func() int64
}

// NewEngine constructs an engine with the provided parameters.
func NewEngine(params Params) *Engine {
	return &Engine{
		params:  params,
		policy:  PolicyFromParams(params),
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the state store and the replay set kept in it.
func (e *Engine) SetState(state Storage, signers SignerRegistry) {
	if e == nil {
		return
	}
	e.state = state
	e.verifier = NewVerifier(e.params.Domain, signers, NewSignatureSet(state))
}

// SetCollateral wires the vault ledger used for valuation and custody.
func (e *Engine) SetCollateral(ledger CollateralLedger, custody Custodian) {
	if e == nil {
		return
	}
	e.ledger = ledger
	e.custody = custody
}

func (e *Engine) SetCurrency(currency Currency) {
	if e == nil {
		return
	}
	e.currency = currency
}

func (e *Engine) SetNotes(registry NoteRegistry) {
	if e == nil {
		return
	}
	e.notes = registry
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock used for accrual, expiry and maturity.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Params returns the engine's module parameters.
func (e *Engine) Params() Params {
	return e.params
}

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.verifier == nil {
		return errNilState
	}
	if e.ledger == nil || e.custody == nil || e.currency == nil || e.notes == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

// activeLoan loads id and requires it to be Active.
func (e *Engine) activeLoan(id uint64) (*Loan, error) {
	loan, ok, err := e.loadLoan(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &StateError{LoanID: id, Current: StateNone}
	}
	if loan.State != StateActive {
		return nil, &StateError{LoanID: id, Current: loan.State}
	}
	return loan, nil
}

func (e *Engine) holder(kind notes.Kind, id uint64) ([20]byte, error) {
	owner, ok, err := e.notes.OwnerOf(kind, id)
	if err != nil {
		return owner, err
	}
	if !ok {
		return owner, fmt.Errorf("loans: %s note for active loan %d missing", kind, id)
	}
	return owner, nil
}

func (e *Engine) requireBorrowerHolder(caller [20]byte, id uint64) error {
	holder, err := e.holder(notes.KindBorrower, id)
	if err != nil {
		return err
	}
	if holder != caller {
		return fmt.Errorf("%w: %s does not hold the borrower note of loan %d", ErrInvalidMsgSender, crypto.FormatRaw(caller), id)
	}
	return nil
}

// withinLoanRatio reports amount <= valuation * LoanRatioBps / Denominator
// without rounding.
func (e *Engine) withinLoanRatio(amount, valuation *big.Int) bool {
	lhs := new(big.Int).Mul(amount, bigDenominator)
	rhs := new(big.Int).Mul(valuation, new(big.Int).SetUint64(e.params.LoanRatioBps))
	return lhs.Cmp(rhs) <= 0
}

// InitiateLoan originates a loan from signed terms and returns its id.
func (e *Engine) InitiateLoan(caller [20]byte, terms *LoanTerms, signature []byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if err := e.params.validateTerms(terms); err != nil {
		return 0, err
	}
	if caller != terms.Borrower {
		return 0, fmt.Errorf("%w: caller is not the terms borrower", ErrInvalidMsgSender)
	}
	now := e.now()
	auth, err := e.verifier.Verify(terms, signature, now)
	if err != nil {
		return 0, err
	}
	ref := terms.Collateral()
	asset, err := e.ledger.Asset(ref.Vault)
	if err != nil {
		return 0, fmt.Errorf("%w: collateral vault: %v", ErrInvalidLoanTerms, err)
	}
	if asset != terms.Currency {
		return 0, fmt.Errorf("%w: vault asset %s does not match currency %s", ErrInvalidLoanTerms, asset, terms.Currency)
	}
	owner, err := e.custody.OwnerOf(ref)
	if err != nil {
		return 0, fmt.Errorf("%w: collateral position: %v", ErrInvalidLoanTerms, err)
	}
	if owner != caller {
		return 0, fmt.Errorf("%w: caller does not own the collateral position", ErrInvalidMsgSender)
	}
	approved, err := e.custody.IsApproved(ref, ModuleAddress)
	if err != nil {
		return 0, err
	}
	if !approved {
		return 0, fmt.Errorf("%w: collateral position not approved for transfer", ErrInvalidMsgSender)
	}
	valuation, err := e.ledger.Valuation(ref)
	if err != nil {
		return 0, wrapCollaborator("valuation", err)
	}
	if !e.withinLoanRatio(terms.LoanAmount, valuation) {
		return 0, fmt.Errorf("%w: %s exceeds %d bps of valuation %s", ErrLoanAmountExceeded, terms.LoanAmount, e.params.LoanRatioBps, valuation)
	}

	id, err := e.allocateID()
	if err != nil {
		return 0, err
	}
	loan := &Loan{
		ID:              id,
		State:           StateActive,
		Terms:           *terms.Clone(),
		Balance:         new(big.Int).Set(terms.LoanAmount),
		InterestAccrued: big.NewInt(0),
		StartedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.putLoan(loan); err != nil {
		return 0, err
	}
	if err := e.indexActive(terms.Borrower, id); err != nil {
		return 0, err
	}
	if err := e.verifier.Consume(auth, now); err != nil {
		return 0, err
	}
	if err := e.notes.Mint(notes.KindLender, id, terms.Lender); err != nil {
		return 0, err
	}
	if err := e.notes.Mint(notes.KindBorrower, id, terms.Borrower); err != nil {
		return 0, err
	}
	if err := e.ledger.Debit(ref, terms.LoanAmount); err != nil {
		return 0, wrapCollaborator("debit collateral", err)
	}

	if err := e.custody.TransferCustody(ref, caller, ModuleAddress); err != nil {
		return 0, wrapCollaborator("take custody", err)
	}
	if err := e.currency.TransferFrom(ModuleAddress, terms.Lender, terms.Borrower, terms.Currency, terms.LoanAmount); err != nil {
		return 0, wrapCollaborator("fund loan", err)
	}

	e.emit(events.LoanStarted{
		LoanID:           id,
		Lender:           terms.Lender,
		Borrower:         terms.Borrower,
		Vault:            ref.Vault,
		PositionID:       ref.ID,
		Currency:         terms.Currency,
		Amount:           new(big.Int).Set(terms.LoanAmount),
		InterestRate:     terms.InterestRate,
		Duration:         terms.Duration,
		PriceLiquidation: terms.PriceLiquidation,
		Signer:           auth.Signer,
		StartedAt:        now,
	})
	return id, nil
}

func immutableFieldsMatch(current, next *LoanTerms) bool {
	return current.CollateralAddress == next.CollateralAddress &&
		current.CollateralID == next.CollateralID &&
		current.Borrower == next.Borrower &&
		current.Currency == next.Currency &&
		current.PriceLiquidation == next.PriceLiquidation
}

// UpdateLoan replaces the terms of an active loan. The new principal must
// cover the current balance plus accrued interest; any excess is drawn from
// the lender-note holder and paid to the borrower-note holder.
func (e *Engine) UpdateLoan(caller [20]byte, id uint64, terms *LoanTerms, signature []byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	loan, err := e.activeLoan(id)
	if err != nil {
		return err
	}
	if err := e.requireBorrowerHolder(caller, id); err != nil {
		return err
	}
	if err := e.params.validateTerms(terms); err != nil {
		return err
	}
	if !immutableFieldsMatch(&loan.Terms, terms) {
		return fmt.Errorf("%w: collateral, borrower, currency and liquidation mode are immutable", ErrInvalidLoanTerms)
	}
	now := e.now()
	auth, err := e.verifier.Verify(terms, signature, now)
	if err != nil {
		return err
	}
	lender, err := e.holder(notes.KindLender, id)
	if err != nil {
		return err
	}
	voucher, err := e.notes.VoucherFor(lender)
	if err != nil {
		return err
	}
	vouched, err := voucher.VouchesFor(auth.Signer)
	if err != nil {
		return err
	}
	if !vouched {
		return fmt.Errorf("%w: lender-note holder does not vouch for %s", ErrInvalidSigner, crypto.FormatRaw(auth.Signer))
	}

	loan.accrue(now)
	owed := new(big.Int).Add(loan.Balance, loan.InterestAccrued)
	if terms.LoanAmount.Cmp(owed) < 0 {
		return fmt.Errorf("%w: new amount %s below amount owed %s", ErrInvalidLoanTerms, terms.LoanAmount, owed)
	}
	ref := loan.Terms.Collateral()
	valuation, err := e.ledger.Valuation(ref)
	if err != nil {
		return wrapCollaborator("valuation", err)
	}
	if !e.withinLoanRatio(terms.LoanAmount, valuation) {
		return fmt.Errorf("%w: %s exceeds %d bps of valuation %s", ErrLoanAmountExceeded, terms.LoanAmount, e.params.LoanRatioBps, valuation)
	}
	draw := new(big.Int).Sub(terms.LoanAmount, owed)
	capitalized := new(big.Int).Set(loan.InterestAccrued)
	pledge := new(big.Int).Sub(terms.LoanAmount, loan.Balance)

	loan.Terms = *terms.Clone()
	loan.Balance = new(big.Int).Set(terms.LoanAmount)
	loan.InterestAccrued = big.NewInt(0)
	loan.UpdatedAt = now
	if err := e.putLoan(loan); err != nil {
		return err
	}
	if err := e.verifier.Consume(auth, now); err != nil {
		return err
	}
	if err := e.ledger.Debit(ref, pledge); err != nil {
		return wrapCollaborator("debit collateral", err)
	}

	if draw.Sign() > 0 {
		if err := e.currency.TransferFrom(ModuleAddress, lender, caller, terms.Currency, draw); err != nil {
			return wrapCollaborator("fund draw", err)
		}
	}

	e.emit(events.LoanUpdated{
		LoanID:       id,
		Balance:      new(big.Int).Set(loan.Balance),
		Draw:         draw,
		Capitalized:  capitalized,
		InterestRate: terms.InterestRate,
		Duration:     terms.Duration,
		Signer:       auth.Signer,
		UpdatedAt:    now,
	})
	return nil
}

// PartialRepay applies payment to an active loan, interest first. A payment
// that covers the full payoff is capped at the payoff and settles the loan.
func (e *Engine) PartialRepay(caller [20]byte, id uint64, payment *big.Int) (*Settlement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if payment == nil || payment.Sign() <= 0 {
		return nil, fmt.Errorf("%w: payment must be positive", ErrParameterOutOfBounds)
	}
	loan, err := e.activeLoan(id)
	if err != nil {
		return nil, err
	}
	if err := e.requireBorrowerHolder(caller, id); err != nil {
		return nil, err
	}
	now := e.now()
	loan.accrue(now)
	payoff := new(big.Int).Add(loan.Balance, loan.InterestAccrued)
	if payment.Cmp(payoff) >= 0 {
		return e.settleInFull(caller, loan, now)
	}

	interest := new(big.Int).Set(payment)
	if interest.Cmp(loan.InterestAccrued) > 0 {
		interest.Set(loan.InterestAccrued)
	}
	principal := new(big.Int).Sub(payment, interest)
	loan.InterestAccrued = new(big.Int).Sub(loan.InterestAccrued, interest)
	loan.Balance = new(big.Int).Sub(loan.Balance, principal)
	loan.UpdatedAt = now
	if err := e.putLoan(loan); err != nil {
		return nil, err
	}
	settlement, err := e.distribute(loan, payment, interest, principal, false)
	if err != nil {
		return nil, err
	}
	e.emit(events.LoanRepaid{
		LoanID:    id,
		Payer:     caller,
		Recipient: settlement.Recipient,
		Interest:  settlement.Interest,
		Principal: settlement.Principal,
		Fee:       settlement.Fee,
		Remaining: settlement.Remaining,
	})
	return settlement, nil
}

// Repay settles the loan in full.
func (e *Engine) Repay(caller [20]byte, id uint64) (*Settlement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	loan, err := e.activeLoan(id)
	if err != nil {
		return nil, err
	}
	if err := e.requireBorrowerHolder(caller, id); err != nil {
		return nil, err
	}
	now := e.now()
	loan.accrue(now)
	return e.settleInFull(caller, loan, now)
}

func (e *Engine) settleInFull(caller [20]byte, loan *Loan, now uint64) (*Settlement, error) {
	interest := new(big.Int).Set(loan.InterestAccrued)
	principal := new(big.Int).Set(loan.Balance)
	payoff := new(big.Int).Add(interest, principal)
	borrower, err := e.holder(notes.KindBorrower, loan.ID)
	if err != nil {
		return nil, err
	}

	loan.State = StateRepaid
	loan.Balance = big.NewInt(0)
	loan.InterestAccrued = big.NewInt(0)
	loan.UpdatedAt = now
	if err := e.putLoan(loan); err != nil {
		return nil, err
	}
	if err := e.unindexActive(loan.Terms.Borrower, loan.ID); err != nil {
		return nil, err
	}
	settlement, err := e.distribute(loan, payoff, interest, principal, true)
	if err != nil {
		return nil, err
	}
	if err := e.custody.TransferCustody(loan.Terms.Collateral(), ModuleAddress, borrower); err != nil {
		return nil, wrapCollaborator("release custody", err)
	}
	e.emit(events.LoanRepaid{
		LoanID:    loan.ID,
		Payer:     caller,
		Recipient: settlement.Recipient,
		Interest:  settlement.Interest,
		Principal: settlement.Principal,
		Fee:       settlement.Fee,
		Remaining: settlement.Remaining,
		Full:      true,
	})
	return settlement, nil
}

// distribute releases the repaid principal from the lien, redeems payment
// from the collateral position and pays the protocol fee and the lender-note
// holder. Notes are burned before any value moves when full is set.
func (e *Engine) distribute(loan *Loan, payment, interest, principal *big.Int, full bool) (*Settlement, error) {
	lender, err := e.holder(notes.KindLender, loan.ID)
	if err != nil {
		return nil, err
	}
	if full {
		if err := e.burnNotes(loan.ID); err != nil {
			return nil, err
		}
	}
	fee := new(big.Int).Mul(interest, new(big.Int).SetUint64(e.params.ProtocolFeeBps))
	fee.Quo(fee, bigDenominator)
	proceeds := new(big.Int).Sub(payment, fee)

	ref := loan.Terms.Collateral()
	if err := e.ledger.Credit(ref, principal); err != nil {
		return nil, wrapCollaborator("credit collateral", err)
	}
	if _, err := e.ledger.Withdraw(ref, ModuleAddress, payment); err != nil {
		return nil, wrapCollaborator("redeem collateral", err)
	}
	if fee.Sign() > 0 {
		if err := e.currency.Transfer(ModuleAddress, e.params.Treasury, loan.Terms.Currency, fee); err != nil {
			return nil, wrapCollaborator("pay protocol fee", err)
		}
	}
	if proceeds.Sign() > 0 {
		if err := e.currency.Transfer(ModuleAddress, lender, loan.Terms.Currency, proceeds); err != nil {
			return nil, wrapCollaborator("pay lender", err)
		}
	}
	return &Settlement{
		LoanID:    loan.ID,
		Interest:  interest,
		Principal: principal,
		Fee:       fee,
		Proceeds:  proceeds,
		Remaining: new(big.Int).Add(loan.Balance, loan.InterestAccrued),
		Recipient: lender,
		Full:      full,
	}, nil
}

func (e *Engine) burnNotes(id uint64) error {
	if err := e.notes.Burn(notes.KindLender, id); err != nil {
		return err
	}
	return e.notes.Burn(notes.KindBorrower, id)
}

// Liquidate hands the collateral of an eligible loan to the lender-note
// holder. Anyone may call it.
func (e *Engine) Liquidate(caller [20]byte, id uint64) (Reason, error) {
	if err := e.ready(); err != nil {
		return ReasonNone, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return ReasonNone, err
	}
	loan, err := e.activeLoan(id)
	if err != nil {
		return ReasonNone, err
	}
	now := e.now()
	ref := loan.Terms.Collateral()
	valuation, err := e.ledger.Valuation(ref)
	if err != nil {
		return ReasonNone, wrapCollaborator("valuation", err)
	}
	ok, reason := e.policy.Evaluate(now, loan, valuation)
	if !ok {
		return ReasonNone, fmt.Errorf("%w: loan %d matures at %d", ErrNotLiquidatable, id, e.policy.MaturesAt(loan))
	}
	lender, err := e.holder(notes.KindLender, id)
	if err != nil {
		return ReasonNone, err
	}
	loan.accrue(now)
	debt := new(big.Int).Add(loan.Balance, loan.InterestAccrued)
	released := new(big.Int).Set(loan.Balance)

	loan.State = StateLiquidated
	loan.UpdatedAt = now
	if err := e.putLoan(loan); err != nil {
		return ReasonNone, err
	}
	if err := e.unindexActive(loan.Terms.Borrower, id); err != nil {
		return ReasonNone, err
	}
	if err := e.burnNotes(id); err != nil {
		return ReasonNone, err
	}
	if err := e.ledger.Credit(ref, released); err != nil {
		return ReasonNone, wrapCollaborator("credit collateral", err)
	}

	if err := e.custody.TransferCustody(ref, ModuleAddress, lender); err != nil {
		return ReasonNone, wrapCollaborator("seize custody", err)
	}

	e.emit(events.LoanLiquidated{
		LoanID:     id,
		Liquidator: caller,
		Recipient:  lender,
		Debt:       debt,
		Valuation:  valuation,
		Reason:     string(reason),
	})
	return reason, nil
}

// Deposit adds value to the collateral position backing an active loan.
func (e *Engine) Deposit(caller [20]byte, id uint64, amount *big.Int) error {
	loan, err := e.collateralCall(caller, id, amount)
	if err != nil {
		return err
	}
	ref := loan.Terms.Collateral()
	if _, err := e.ledger.Deposit(ref, caller, amount); err != nil {
		return wrapCollaborator("deposit collateral", err)
	}
	valuation, err := e.ledger.Valuation(ref)
	if err != nil {
		return wrapCollaborator("valuation", err)
	}
	e.emit(events.CollateralMoved{LoanID: id, Caller: caller, Amount: new(big.Int).Set(amount), Valuation: valuation})
	return nil
}

// Withdraw removes value from the collateral position backing an active
// loan. The remaining valuation must keep the debt within the loan ratio.
func (e *Engine) Withdraw(caller [20]byte, id uint64, amount *big.Int) error {
	loan, err := e.collateralCall(caller, id, amount)
	if err != nil {
		return err
	}
	ref := loan.Terms.Collateral()
	valuation, err := e.ledger.Valuation(ref)
	if err != nil {
		return wrapCollaborator("valuation", err)
	}
	if amount.Cmp(valuation) > 0 {
		return fmt.Errorf("%w: position valued at %s", ErrInsufficientBalance, valuation)
	}
	debt := new(big.Int).Add(loan.Balance, loan.InterestAccrued)
	if !e.withinLoanRatio(debt, new(big.Int).Sub(valuation, amount)) {
		return fmt.Errorf("%w: debt %s exceeds %d bps of remaining valuation", ErrLoanAmountExceeded, debt, e.params.LoanRatioBps)
	}
	if _, err := e.ledger.Withdraw(ref, caller, amount); err != nil {
		return wrapCollaborator("withdraw collateral", err)
	}
	// Share rounding can leave slightly less than valuation-amount behind.
	valuation, err = e.ledger.Valuation(ref)
	if err != nil {
		return wrapCollaborator("valuation", err)
	}
	if !e.withinLoanRatio(debt, valuation) {
		return fmt.Errorf("%w: debt %s exceeds %d bps of remaining valuation %s", ErrLoanAmountExceeded, debt, e.params.LoanRatioBps, valuation)
	}
	e.emit(events.CollateralMoved{LoanID: id, Caller: caller, Amount: new(big.Int).Set(amount), Valuation: valuation, Withdrawn: true})
	return nil
}

// collateralCall performs the shared checks of Deposit and Withdraw and
// checkpoints accrual.
func (e *Engine) collateralCall(caller [20]byte, id uint64, amount *big.Int) (*Loan, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrParameterOutOfBounds)
	}
	loan, err := e.activeLoan(id)
	if err != nil {
		return nil, err
	}
	if err := e.requireBorrowerHolder(caller, id); err != nil {
		return nil, err
	}
	loan.accrue(e.now())
	if err := e.putLoan(loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// TransferNote moves a lender or borrower note of an active loan.
func (e *Engine) TransferNote(caller [20]byte, kind notes.Kind, id uint64, to [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return fmt.Errorf("%w: note recipient", ErrInvalidAddress)
	}
	if _, err := e.activeLoan(id); err != nil {
		return err
	}
	if err := e.notes.Transfer(kind, id, caller, to); err != nil {
		if errors.Is(err, notes.ErrNotHolder) {
			return fmt.Errorf("%w: %v", ErrInvalidMsgSender, err)
		}
		return err
	}
	e.emit(events.NoteTransferred{LoanID: id, Kind: kind.String(), From: caller, To: to})
	return nil
}

// GetLoan returns a copy of the stored loan record.
func (e *Engine) GetLoan(id uint64) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	loan, ok, err := e.loadLoan(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrLoanNotFound, id)
	}
	return loan, nil
}

// RepayAmount quotes the payoff of a loan at the current time without
// mutating state. Settled loans quote zero.
func (e *Engine) RepayAmount(id uint64) (*big.Int, error) {
	loan, err := e.GetLoan(id)
	if err != nil {
		return nil, err
	}
	if loan.State != StateActive {
		return big.NewInt(0), nil
	}
	return loan.Debt(e.now()), nil
}

// Liquidatable evaluates the liquidation policy for a loan without mutating
// state.
func (e *Engine) Liquidatable(id uint64) (bool, Reason, error) {
	loan, err := e.GetLoan(id)
	if err != nil {
		return false, ReasonNone, err
	}
	if loan.State != StateActive {
		return false, ReasonNone, nil
	}
	if e.ledger == nil {
		return false, ReasonNone, errNilState
	}
	valuation, err := e.ledger.Valuation(loan.Terms.Collateral())
	if err != nil {
		return false, ReasonNone, wrapCollaborator("valuation", err)
	}
	ok, reason := e.policy.Evaluate(e.now(), loan, valuation)
	return ok, reason, nil
}
