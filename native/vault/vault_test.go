package vault

import (
	"errors"
	"math/big"
	"testing"

	"notelend/core/state"
	"notelend/native/bank"
	"notelend/storage"
)

type fixture struct {
	ledger *Ledger
	bank   *bank.Ledger
	vault  [20]byte
	owner  [20]byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tx := state.NewManager(storage.NewMemDB()).Begin()
	currency := bank.NewLedger(tx)
	ledger := NewLedger(tx, currency)
	f := &fixture{ledger: ledger, bank: currency, vault: [20]byte{0xB1}, owner: [20]byte{0x0A}}
	if _, err := ledger.CreateVault(f.vault, "usdc"); err != nil {
		t.Fatalf("create vault: %v", err)
	}
	if err := currency.Mint(f.owner, "USDC", big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	return f
}

func (f *fixture) open(t *testing.T, deposit int64) Ref {
	t.Helper()
	ref, err := f.ledger.OpenPosition(f.vault, f.owner)
	if err != nil {
		t.Fatalf("open position: %v", err)
	}
	if deposit > 0 {
		if _, err := f.ledger.Deposit(ref, f.owner, big.NewInt(deposit)); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}
	return ref
}

func mustValuation(t *testing.T, l *Ledger, ref Ref) *big.Int {
	t.Helper()
	v, err := l.Valuation(ref)
	if err != nil {
		t.Fatalf("valuation: %v", err)
	}
	return v
}

func TestDepositMintsSharesAtLiveRate(t *testing.T) {
	f := newFixture(t)
	first := f.open(t, 100)
	if got := mustValuation(t, f.ledger, first); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("valuation: got %s want 100", got)
	}

	// Doubling pool assets doubles every position's valuation.
	if err := f.ledger.ReportYield(f.vault, big.NewInt(100)); err != nil {
		t.Fatalf("report yield: %v", err)
	}
	if got := mustValuation(t, f.ledger, first); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("valuation after yield: got %s want 200", got)
	}

	second := f.open(t, 50)
	pos, _ := f.ledger.Position(second)
	if pos.Shares.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("shares minted: got %s want 25", pos.Shares)
	}
	v, _ := f.ledger.Vault(f.vault)
	reserve, _ := f.bank.BalanceOf(v.Reserve, "USDC")
	if reserve.Cmp(v.TotalAssets) != 0 {
		t.Fatalf("reserve %s does not match total assets %s", reserve, v.TotalAssets)
	}
}

func TestDebitCannotExceedValuation(t *testing.T) {
	f := newFixture(t)
	ref := f.open(t, 100)
	if err := f.ledger.Debit(ref, big.NewInt(60)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if err := f.ledger.Debit(ref, big.NewInt(41)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected insufficient shares, got %v", err)
	}
	if err := f.ledger.Credit(ref, big.NewInt(500)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	lien, _ := f.ledger.Lien(ref)
	if lien.Sign() != 0 {
		t.Fatalf("lien should saturate at zero, got %s", lien)
	}
}

func TestWithdrawRespectsLien(t *testing.T) {
	f := newFixture(t)
	ref := f.open(t, 100)
	if err := f.ledger.Debit(ref, big.NewInt(70)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if _, err := f.ledger.Withdraw(ref, f.owner, big.NewInt(31)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected lien violation, got %v", err)
	}
	if _, err := f.ledger.Withdraw(ref, f.owner, big.NewInt(30)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := mustValuation(t, f.ledger, ref); got.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("valuation: got %s want 70", got)
	}
	bal, _ := f.bank.BalanceOf(f.owner, "USDC")
	if bal.Cmp(big.NewInt(930)) != 0 {
		t.Fatalf("owner balance: got %s want 930", bal)
	}
}

func TestWithdrawRoundsSharesUp(t *testing.T) {
	f := newFixture(t)
	ref := f.open(t, 3)
	other := f.open(t, 3)
	// 6 shares back 7 assets: redeeming 1 asset needs ceil(6/7) = 1 share.
	if err := f.ledger.ReportYield(f.vault, big.NewInt(1)); err != nil {
		t.Fatalf("report yield: %v", err)
	}
	shares, err := f.ledger.Withdraw(ref, f.owner, big.NewInt(1))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if shares.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("burned shares: got %s want 1", shares)
	}
	if got := mustValuation(t, f.ledger, other); got.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("other position diluted: got %s want 3", got)
	}
}

func TestNegativeYieldReducesValuation(t *testing.T) {
	f := newFixture(t)
	ref := f.open(t, 100)
	if err := f.ledger.ReportYield(f.vault, big.NewInt(-40)); err != nil {
		t.Fatalf("report loss: %v", err)
	}
	if got := mustValuation(t, f.ledger, ref); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("valuation: got %s want 60", got)
	}
	if err := f.ledger.ReportYield(f.vault, big.NewInt(-61)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected oversize loss to fail, got %v", err)
	}
}

func TestCustodyTransfer(t *testing.T) {
	f := newFixture(t)
	ref := f.open(t, 0)
	engine := [20]byte{0xEE}
	stranger := [20]byte{0x55}

	if ok, _ := f.ledger.IsApproved(ref, engine); ok {
		t.Fatalf("engine should not be approved yet")
	}
	if err := f.ledger.Approve(ref, stranger, engine); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
	if err := f.ledger.Approve(ref, f.owner, engine); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if ok, _ := f.ledger.IsApproved(ref, engine); !ok {
		t.Fatalf("engine should be approved")
	}
	if err := f.ledger.TransferCustody(ref, f.owner, engine); err != nil {
		t.Fatalf("transfer custody: %v", err)
	}
	owner, _ := f.ledger.OwnerOf(ref)
	if owner != engine {
		t.Fatalf("owner: got %x want %x", owner, engine)
	}
	pos, _ := f.ledger.Position(ref)
	if pos.Approved != ([20]byte{}) {
		t.Fatalf("approval should be cleared after transfer")
	}
}

func TestCreateVaultRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.CreateVault(f.vault, "USDC"); !errors.Is(err, ErrVaultExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := f.ledger.Valuation(Ref{Vault: f.vault, ID: 99}); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected missing position, got %v", err)
	}
}
