package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"notelend/core/events"
	"notelend/core/state"
	"notelend/native/bank"
	nativecommon "notelend/native/common"
	"notelend/native/loans"
	"notelend/native/notes"
	"notelend/native/vault"
	"notelend/observability"
	"notelend/observability/logging"
)

// Executor runs loan operations one at a time, each inside its own state
// transaction. Events raised by an operation reach the sink only after the
// transaction commits.
type Executor struct {
	mu      sync.RWMutex
	manager *state.Manager
	params  loans.Params
	pauses  nativecommon.PauseView
	sink    events.Emitter
	logger  *slog.Logger
	metrics *observability.LoanMetrics
	nowFn   func() int64
}

var (
	_ Engine     = (*Executor)(nil)
	_ Integrator = (*Executor)(nil)
)

// NewExecutor binds the loan modules to manager.
func NewExecutor(manager *state.Manager, params loans.Params, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		manager: manager,
		params:  params,
		sink:    events.NoopEmitter{},
		logger:  logger,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (x *Executor) SetPauses(p nativecommon.PauseView) {
	if x == nil {
		return
	}
	x.pauses = p
}

// SetEmitter configures where committed events are published.
func (x *Executor) SetEmitter(sink events.Emitter) {
	if x == nil {
		return
	}
	if sink == nil {
		sink = events.NoopEmitter{}
	}
	x.sink = sink
}

func (x *Executor) SetMetrics(m *observability.LoanMetrics) {
	if x == nil {
		return
	}
	x.metrics = m
}

// SetNowFunc overrides the clock handed to the loan engine.
func (x *Executor) SetNowFunc(now func() int64) {
	if x == nil || now == nil {
		return
	}
	x.nowFn = now
}

// Params returns the module parameters the executor runs with.
func (x *Executor) Params() loans.Params {
	return x.params
}

type session struct {
	tx     *state.Tx
	bank   *bank.Ledger
	vaults *vault.Ledger
	notes  *notes.Registry
	loans  *loans.Engine
	buffer *events.Buffer
}

func (x *Executor) open() *session {
	tx := x.manager.Begin()
	s := &session{
		tx:     tx,
		bank:   bank.NewLedger(tx),
		notes:  notes.NewRegistry(tx),
		buffer: events.NewBuffer(),
	}
	s.vaults = vault.NewLedger(tx, s.bank)
	s.loans = loans.NewEngine(x.params)
	s.loans.SetState(tx, state.NewRoleView(tx, state.RoleTermsSigner))
	s.loans.SetCollateral(s.vaults, s.vaults)
	s.loans.SetCurrency(s.bank)
	s.loans.SetNotes(s.notes)
	s.loans.SetPauses(x.pauses)
	s.loans.SetEmitter(s.buffer)
	s.loans.SetNowFunc(x.nowFn)
	return s
}

func (x *Executor) ready(ctx context.Context) error {
	if x == nil || x.manager == nil {
		return ErrUnavailable
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// mutate runs fn in a fresh transaction and commits it when fn succeeds.
// attrs are appended to the log line for the outcome.
func (x *Executor) mutate(ctx context.Context, op string, loanID uint64, fn func(*session) error, attrs ...any) error {
	if err := x.ready(ctx); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	start := time.Now()
	s := x.open()
	if err := fn(s); err != nil {
		s.tx.Discard()
		s.buffer.Discard()
		kind := loans.Kind(err)
		x.metrics.RecordRollback(op)
		x.metrics.ObserveOperation(op, kindLabel(kind), time.Since(start))
		x.logger.Warn("loan operation rejected", append([]any{"op", op, "loan_id", loanID, "error_kind", kind, "error", err}, attrs...)...)
		return err
	}
	pending := s.buffer.Events()
	if err := s.tx.Commit(); err != nil {
		s.buffer.Discard()
		x.metrics.ObserveOperation(op, "commit_failed", time.Since(start))
		x.logger.Error("commit loan operation", "op", op, "loan_id", loanID, "error", err)
		return fmt.Errorf("loans service: commit %s: %w", op, err)
	}
	x.metrics.RecordCommit()
	x.metrics.AdjustActive(activeDelta(pending))
	x.metrics.ObserveOperation(op, "", time.Since(start))
	s.buffer.Flush(x.sink)
	x.logger.Info("loan operation committed", append([]any{"op", op, "loan_id", loanID, "events", len(pending)}, attrs...)...)
	return nil
}

// view runs fn against a transaction that is always discarded.
func (x *Executor) view(ctx context.Context, fn func(*session) error) error {
	if err := x.ready(ctx); err != nil {
		return err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	s := x.open()
	defer s.tx.Discard()
	return fn(s)
}

func kindLabel(kind string) string {
	if kind == "" {
		return "internal"
	}
	return kind
}

func activeDelta(pending []events.Event) int {
	delta := 0
	for _, evt := range pending {
		switch e := evt.(type) {
		case events.LoanStarted:
			delta++
		case events.LoanRepaid:
			if e.Full {
				delta--
			}
		case events.LoanLiquidated:
			delta--
		}
	}
	return delta
}

func (x *Executor) InitiateLoan(ctx context.Context, caller [20]byte, terms *loans.LoanTerms, signature []byte) (uint64, error) {
	var id uint64
	err := x.mutate(ctx, "initiate", 0, func(s *session) error {
		var err error
		id, err = s.loans.InitiateLoan(caller, terms, signature)
		return err
	}, logging.MaskBytes("signature", signature))
	return id, err
}

func (x *Executor) UpdateLoan(ctx context.Context, caller [20]byte, id uint64, terms *loans.LoanTerms, signature []byte) error {
	return x.mutate(ctx, "update", id, func(s *session) error {
		return s.loans.UpdateLoan(caller, id, terms, signature)
	}, logging.MaskBytes("signature", signature))
}

func (x *Executor) PartialRepay(ctx context.Context, caller [20]byte, id uint64, payment *big.Int) (*loans.Settlement, error) {
	var settlement *loans.Settlement
	err := x.mutate(ctx, "partial_repay", id, func(s *session) error {
		var err error
		settlement, err = s.loans.PartialRepay(caller, id, payment)
		return err
	})
	return settlement, err
}

func (x *Executor) Repay(ctx context.Context, caller [20]byte, id uint64) (*loans.Settlement, error) {
	var settlement *loans.Settlement
	err := x.mutate(ctx, "repay", id, func(s *session) error {
		var err error
		settlement, err = s.loans.Repay(caller, id)
		return err
	})
	return settlement, err
}

func (x *Executor) Liquidate(ctx context.Context, caller [20]byte, id uint64) (loans.Reason, error) {
	var reason loans.Reason
	err := x.mutate(ctx, "liquidate", id, func(s *session) error {
		var err error
		reason, err = s.loans.Liquidate(caller, id)
		return err
	})
	return reason, err
}

func (x *Executor) Deposit(ctx context.Context, caller [20]byte, id uint64, amount *big.Int) error {
	return x.mutate(ctx, "deposit", id, func(s *session) error {
		return s.loans.Deposit(caller, id, amount)
	})
}

func (x *Executor) Withdraw(ctx context.Context, caller [20]byte, id uint64, amount *big.Int) error {
	return x.mutate(ctx, "withdraw", id, func(s *session) error {
		return s.loans.Withdraw(caller, id, amount)
	})
}

func (x *Executor) TransferNote(ctx context.Context, caller [20]byte, kind notes.Kind, id uint64, to [20]byte) error {
	return x.mutate(ctx, "transfer_note", id, func(s *session) error {
		return s.loans.TransferNote(caller, kind, id, to)
	})
}

func (x *Executor) GetLoan(ctx context.Context, id uint64) (*LoanView, error) {
	var view *LoanView
	err := x.view(ctx, func(s *session) error {
		loan, err := s.loans.GetLoan(id)
		if err != nil {
			return err
		}
		view = &LoanView{Loan: loan}
		if loan.State == loans.StateActive {
			view.Debt, err = s.loans.RepayAmount(id)
			if err != nil {
				return err
			}
			if view.LenderHolder, _, err = s.notes.OwnerOf(notes.KindLender, id); err != nil {
				return err
			}
			if view.BorrowerHolder, _, err = s.notes.OwnerOf(notes.KindBorrower, id); err != nil {
				return err
			}
		} else {
			view.Debt = big.NewInt(0)
		}
		return nil
	})
	return view, err
}

func (x *Executor) ActiveLoans(ctx context.Context, borrower [20]byte) ([]uint64, error) {
	var ids []uint64
	err := x.view(ctx, func(s *session) error {
		var err error
		ids, err = s.loans.ActiveLoans(borrower)
		return err
	})
	return ids, err
}

func (x *Executor) RepayAmount(ctx context.Context, id uint64) (*big.Int, error) {
	var amount *big.Int
	err := x.view(ctx, func(s *session) error {
		var err error
		amount, err = s.loans.RepayAmount(id)
		return err
	})
	return amount, err
}

func (x *Executor) Liquidatable(ctx context.Context, id uint64) (bool, loans.Reason, error) {
	var (
		ok     bool
		reason loans.Reason
	)
	err := x.view(ctx, func(s *session) error {
		var err error
		ok, reason, err = s.loans.Liquidatable(id)
		return err
	})
	return ok, reason, err
}

// Stats walks the loan table. It is meant for start-up and health checks,
// not for per-request use.
func (x *Executor) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := x.view(ctx, func(s *session) error {
		count, err := s.loans.LoanCount()
		if err != nil {
			return err
		}
		stats.Loans = count
		for id := uint64(1); id <= count; id++ {
			loan, err := s.loans.GetLoan(id)
			if err != nil {
				return err
			}
			if loan.State == loans.StateActive {
				stats.Active++
			}
		}
		return nil
	})
	return stats, err
}

func (x *Executor) OpenPosition(ctx context.Context, owner, vaultAddr [20]byte) (vault.Ref, error) {
	var ref vault.Ref
	err := x.mutate(ctx, "open_position", 0, func(s *session) error {
		var err error
		ref, err = s.vaults.OpenPosition(vaultAddr, owner)
		return err
	})
	return ref, err
}

func (x *Executor) FundPosition(ctx context.Context, owner [20]byte, ref vault.Ref, amount *big.Int) error {
	return x.mutate(ctx, "fund_position", 0, func(s *session) error {
		current, err := s.vaults.OwnerOf(ref)
		if err != nil {
			return err
		}
		if current != owner {
			return fmt.Errorf("%w: position is held by another account", ErrUnauthorized)
		}
		_, err = s.vaults.Deposit(ref, owner, amount)
		return err
	})
}

func (x *Executor) ApprovePosition(ctx context.Context, owner [20]byte, ref vault.Ref) error {
	return x.mutate(ctx, "approve_position", 0, func(s *session) error {
		err := s.vaults.Approve(ref, owner, loans.ModuleAddress)
		if errors.Is(err, vault.ErrNotOwner) {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return err
	})
}

func (x *Executor) Position(ctx context.Context, ref vault.Ref) (*PositionView, error) {
	var view *PositionView
	err := x.view(ctx, func(s *session) error {
		p, err := s.vaults.Position(ref)
		if err != nil {
			return err
		}
		asset, err := s.vaults.Asset(ref.Vault)
		if err != nil {
			return err
		}
		valuation, err := s.vaults.Valuation(ref)
		if err != nil {
			return err
		}
		view = &PositionView{Position: p, Asset: asset, Valuation: valuation}
		return nil
	})
	return view, err
}

func (x *Executor) ApproveSpending(ctx context.Context, owner [20]byte, token string, amount *big.Int) error {
	return x.mutate(ctx, "approve_spending", 0, func(s *session) error {
		return s.bank.Approve(owner, loans.ModuleAddress, token, amount)
	})
}

func (x *Executor) Balance(ctx context.Context, addr [20]byte, token string) (*big.Int, error) {
	var balance *big.Int
	err := x.view(ctx, func(s *session) error {
		var err error
		balance, err = s.bank.BalanceOf(addr, token)
		return err
	})
	return balance, err
}

func (x *Executor) RegisterHolder(ctx context.Context, holder [20]byte) error {
	return x.mutate(ctx, "register_holder", 0, func(s *session) error {
		return s.notes.RegisterProgrammable(holder)
	})
}

func (x *Executor) SetHolderSigner(ctx context.Context, holder, signer [20]byte, approved bool) error {
	return x.mutate(ctx, "set_holder_signer", 0, func(s *session) error {
		programmable, err := s.notes.IsProgrammable(holder)
		if err != nil {
			return err
		}
		if !programmable {
			return fmt.Errorf("%w: holder is not registered as programmable", ErrUnauthorized)
		}
		return s.notes.SetApprovedSigner(holder, signer, approved)
	})
}
