package vault

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"notelend/native/bank"
)

var (
	ErrVaultNotFound      = errors.New("vault: vault not found")
	ErrVaultExists        = errors.New("vault: vault already exists")
	ErrPositionNotFound   = errors.New("vault: position not found")
	ErrInsufficientShares = errors.New("vault: insufficient position balance")
	ErrNotOwner           = errors.New("vault: caller does not own position")
	ErrInvalidAmount      = errors.New("vault: amount must be positive")
	ErrInvalidAddress     = errors.New("vault: address must not be zero")
	ErrPoolEmpty          = errors.New("vault: pool holds no assets")
	errNilStore           = errors.New("vault: storage not configured")
)

// Storage is the subset of the state transaction used by the ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger implements the collateral share ledger and position custody on top
// of the bank ledger that holds each vault's underlying assets.
type Ledger struct {
	store Storage
	bank  *bank.Ledger
}

func NewLedger(store Storage, currency *bank.Ledger) *Ledger {
	return &Ledger{store: store, bank: currency}
}

func vaultKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("vault/pool/%x", addr[:]))
}

func positionKey(ref Ref) []byte {
	return []byte("vault/position/" + fmt.Sprintf("%x", ref.Vault[:]) + "/" + strconv.FormatUint(ref.ID, 10))
}

func (l *Ledger) ready() error {
	if l == nil || l.store == nil || l.bank == nil {
		return errNilStore
	}
	return nil
}

// Vault loads the pool record for addr.
func (l *Ledger) Vault(addr [20]byte) (*Vault, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	v := new(Vault)
	ok, err := l.store.KVGet(vaultKey(addr), v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	v.ensureDefaults()
	return v, nil
}

func (l *Ledger) putVault(v *Vault) error {
	return l.store.KVPut(vaultKey(v.Address), v)
}

// Position loads the position record.
func (l *Ledger) Position(ref Ref) (*Position, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	p := new(Position)
	ok, err := l.store.KVGet(positionKey(ref), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPositionNotFound
	}
	p.ensureDefaults()
	return p, nil
}

func (l *Ledger) putPosition(p *Position) error {
	return l.store.KVPut(positionKey(p.ref()), p)
}

func (l *Ledger) load(ref Ref) (*Vault, *Position, error) {
	v, err := l.Vault(ref.Vault)
	if err != nil {
		return nil, nil, err
	}
	p, err := l.Position(ref)
	if err != nil {
		return nil, nil, err
	}
	return v, p, nil
}

// CreateVault registers a new pool holding asset.
func (l *Ledger) CreateVault(addr [20]byte, asset string) (*Vault, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	if addr == ([20]byte{}) {
		return nil, ErrInvalidAddress
	}
	asset = bank.NormalizeToken(asset)
	if asset == "" {
		return nil, bank.ErrInvalidToken
	}
	if _, err := l.Vault(addr); err == nil {
		return nil, ErrVaultExists
	} else if !errors.Is(err, ErrVaultNotFound) {
		return nil, err
	}
	v := &Vault{
		Address:      addr,
		Asset:        asset,
		Reserve:      ReserveAddress(addr),
		TotalAssets:  big.NewInt(0),
		TotalShares:  big.NewInt(0),
		NextPosition: 1,
	}
	if err := l.putVault(v); err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

// Asset returns the currency a vault's valuation is denominated in.
func (l *Ledger) Asset(vault [20]byte) (string, error) {
	v, err := l.Vault(vault)
	if err != nil {
		return "", err
	}
	return v.Asset, nil
}

// OpenPosition mints an empty position owned by owner.
func (l *Ledger) OpenPosition(vault, owner [20]byte) (Ref, error) {
	if owner == ([20]byte{}) {
		return Ref{}, ErrInvalidAddress
	}
	v, err := l.Vault(vault)
	if err != nil {
		return Ref{}, err
	}
	if v.NextPosition == 0 {
		v.NextPosition = 1
	}
	p := &Position{
		Vault:  vault,
		ID:     v.NextPosition,
		Owner:  owner,
		Shares: big.NewInt(0),
		Lien:   big.NewInt(0),
	}
	v.NextPosition++
	if err := l.putVault(v); err != nil {
		return Ref{}, err
	}
	if err := l.putPosition(p); err != nil {
		return Ref{}, err
	}
	return p.ref(), nil
}

// Valuation returns the value currently backing the position at the pool's
// live exchange rate.
func (l *Ledger) Valuation(ref Ref) (*big.Int, error) {
	v, p, err := l.load(ref)
	if err != nil {
		return nil, err
	}
	return assetsForShares(v, p.Shares)
}

// Lien returns the value pledged against the position.
func (l *Ledger) Lien(ref Ref) (*big.Int, error) {
	p, err := l.Position(ref)
	if err != nil {
		return nil, err
	}
	return p.Lien, nil
}

// Debit pledges amount of the position's value to a loan.
func (l *Ledger) Debit(ref Ref, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	v, p, err := l.load(ref)
	if err != nil {
		return err
	}
	valuation, err := assetsForShares(v, p.Shares)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(p.Lien, amount)
	if next.Cmp(valuation) > 0 {
		return fmt.Errorf("%w: valuation %s below pledged %s", ErrInsufficientShares, valuation, next)
	}
	p.Lien = next
	return l.putPosition(p)
}

// Credit releases amount of pledged value. Releasing more than is pledged
// clears the lien.
func (l *Ledger) Credit(ref Ref, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	p, err := l.Position(ref)
	if err != nil {
		return err
	}
	if amount.Cmp(p.Lien) >= 0 {
		p.Lien = big.NewInt(0)
	} else {
		p.Lien = new(big.Int).Sub(p.Lien, amount)
	}
	return l.putPosition(p)
}

// Deposit moves amount of the vault asset from the depositor into the pool
// and credits the position with the corresponding shares.
func (l *Ledger) Deposit(ref Ref, from [20]byte, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	v, p, err := l.load(ref)
	if err != nil {
		return nil, err
	}
	shares, err := sharesForDeposit(v, amount)
	if err != nil {
		return nil, err
	}
	if shares.Sign() == 0 {
		return nil, fmt.Errorf("%w: deposit of %s mints no shares", ErrInvalidAmount, amount)
	}
	v.TotalAssets = new(big.Int).Add(v.TotalAssets, amount)
	v.TotalShares = new(big.Int).Add(v.TotalShares, shares)
	p.Shares = new(big.Int).Add(p.Shares, shares)
	if err := l.putVault(v); err != nil {
		return nil, err
	}
	if err := l.putPosition(p); err != nil {
		return nil, err
	}
	if err := l.bank.Transfer(from, v.Reserve, v.Asset, amount); err != nil {
		return nil, err
	}
	return shares, nil
}

// Withdraw redeems amount of value from the position and pays it to to. The
// remaining valuation must still cover the position's lien.
func (l *Ledger) Withdraw(ref Ref, to [20]byte, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	v, p, err := l.load(ref)
	if err != nil {
		return nil, err
	}
	shares, err := sharesForWithdraw(v, amount)
	if err != nil {
		return nil, err
	}
	if shares.Cmp(p.Shares) > 0 {
		return nil, fmt.Errorf("%w: need %s shares, position holds %s", ErrInsufficientShares, shares, p.Shares)
	}
	v.TotalAssets = new(big.Int).Sub(v.TotalAssets, amount)
	v.TotalShares = new(big.Int).Sub(v.TotalShares, shares)
	p.Shares = new(big.Int).Sub(p.Shares, shares)
	remaining, err := assetsForShares(v, p.Shares)
	if err != nil {
		return nil, err
	}
	if remaining.Cmp(p.Lien) < 0 {
		return nil, fmt.Errorf("%w: remaining valuation %s below pledged %s", ErrInsufficientShares, remaining, p.Lien)
	}
	if err := l.putVault(v); err != nil {
		return nil, err
	}
	if err := l.putPosition(p); err != nil {
		return nil, err
	}
	if err := l.bank.Transfer(v.Reserve, to, v.Asset, amount); err != nil {
		return nil, err
	}
	return shares, nil
}

// ReportYield applies a strategy result to the pool. A positive delta adds
// assets to the reserve; a negative delta writes assets off to the sink.
func (l *Ledger) ReportYield(vault [20]byte, delta *big.Int) error {
	if delta == nil || delta.Sign() == 0 {
		return ErrInvalidAmount
	}
	v, err := l.Vault(vault)
	if err != nil {
		return err
	}
	if delta.Sign() > 0 {
		v.TotalAssets = new(big.Int).Add(v.TotalAssets, delta)
		if err := l.putVault(v); err != nil {
			return err
		}
		return l.bank.Mint(v.Reserve, v.Asset, delta)
	}
	loss := new(big.Int).Neg(delta)
	if loss.Cmp(v.TotalAssets) > 0 {
		return fmt.Errorf("%w: loss %s exceeds pool assets %s", ErrInsufficientShares, loss, v.TotalAssets)
	}
	v.TotalAssets = new(big.Int).Sub(v.TotalAssets, loss)
	if err := l.putVault(v); err != nil {
		return err
	}
	return l.bank.Transfer(v.Reserve, SinkAddress, v.Asset, loss)
}

// OwnerOf returns the current custodian of the position.
func (l *Ledger) OwnerOf(ref Ref) ([20]byte, error) {
	p, err := l.Position(ref)
	if err != nil {
		return [20]byte{}, err
	}
	return p.Owner, nil
}

// Approve lets operator take custody of the position on the owner's behalf.
func (l *Ledger) Approve(ref Ref, owner, operator [20]byte) error {
	p, err := l.Position(ref)
	if err != nil {
		return err
	}
	if p.Owner != owner {
		return ErrNotOwner
	}
	p.Approved = operator
	return l.putPosition(p)
}

// IsApproved reports whether operator may move the position.
func (l *Ledger) IsApproved(ref Ref, operator [20]byte) (bool, error) {
	p, err := l.Position(ref)
	if err != nil {
		return false, err
	}
	return p.Owner == operator || (p.Approved != ([20]byte{}) && p.Approved == operator), nil
}

// TransferCustody moves the position from its current owner to to and clears
// any outstanding approval.
func (l *Ledger) TransferCustody(ref Ref, from, to [20]byte) error {
	if to == ([20]byte{}) {
		return ErrInvalidAddress
	}
	p, err := l.Position(ref)
	if err != nil {
		return err
	}
	if p.Owner != from {
		return ErrNotOwner
	}
	p.Owner = to
	p.Approved = [20]byte{}
	return l.putPosition(p)
}
