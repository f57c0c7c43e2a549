package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	ErrInvalidAmount         = errors.New("bank: amount must be positive")
	ErrInvalidToken          = errors.New("bank: token symbol required")
	errNilStore              = errors.New("bank: storage not configured")
)

// Storage is the subset of the state transaction used by the ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Ledger tracks fungible currency balances and spending allowances.
type Ledger struct {
	store Storage
}

func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// NormalizeToken trims and upper-cases a token symbol.
func NormalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

func balanceKey(token string, addr [20]byte) []byte {
	return []byte(fmt.Sprintf("bank/balance/%s/%x", token, addr[:]))
}

func allowanceKey(token string, owner, spender [20]byte) []byte {
	return []byte(fmt.Sprintf("bank/allowance/%s/%x/%x", token, owner[:], spender[:]))
}

func (l *Ledger) load(key []byte) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, errNilStore
	}
	amount := new(big.Int)
	ok, err := l.store.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (l *Ledger) put(key []byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return l.store.KVDelete(key)
	}
	return l.store.KVPut(key, amount)
}

// BalanceOf returns the balance of addr in token.
func (l *Ledger) BalanceOf(addr [20]byte, token string) (*big.Int, error) {
	token = NormalizeToken(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	return l.load(balanceKey(token, addr))
}

// Allowance returns how much spender may move out of owner's balance.
func (l *Ledger) Allowance(owner, spender [20]byte, token string) (*big.Int, error) {
	token = NormalizeToken(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	return l.load(allowanceKey(token, owner, spender))
}

// Mint credits amount to addr. Used by genesis allocation and strategy
// yield reports.
func (l *Ledger) Mint(addr [20]byte, token string, amount *big.Int) error {
	token = NormalizeToken(token)
	if token == "" {
		return ErrInvalidToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	key := balanceKey(token, addr)
	current, err := l.load(key)
	if err != nil {
		return err
	}
	return l.put(key, current.Add(current, amount))
}

// Approve sets the allowance of spender over owner's balance. A zero amount
// clears the allowance.
func (l *Ledger) Approve(owner, spender [20]byte, token string, amount *big.Int) error {
	token = NormalizeToken(token)
	if token == "" {
		return ErrInvalidToken
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if l == nil || l.store == nil {
		return errNilStore
	}
	return l.put(allowanceKey(token, owner, spender), new(big.Int).Set(amount))
}

// Transfer moves amount of token from one account to another.
func (l *Ledger) Transfer(from, to [20]byte, token string, amount *big.Int) error {
	token = NormalizeToken(token)
	if token == "" {
		return ErrInvalidToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromKey := balanceKey(token, from)
	fromBal, err := l.load(fromKey)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s need %s %s", ErrInsufficientBalance, fromBal, amount, token)
	}
	if from == to {
		return nil
	}
	toKey := balanceKey(token, to)
	toBal, err := l.load(toKey)
	if err != nil {
		return err
	}
	if err := l.put(fromKey, fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	return l.put(toKey, toBal.Add(toBal, amount))
}

// TransferFrom moves amount out of from's balance on behalf of spender,
// consuming allowance.
func (l *Ledger) TransferFrom(spender, from, to [20]byte, token string, amount *big.Int) error {
	token = NormalizeToken(token)
	if token == "" {
		return ErrInvalidToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if spender != from {
		key := allowanceKey(token, from, spender)
		allowed, err := l.load(key)
		if err != nil {
			return err
		}
		if allowed.Cmp(amount) < 0 {
			return fmt.Errorf("%w: allowed %s need %s %s", ErrInsufficientAllowance, allowed, amount, token)
		}
		if err := l.Transfer(from, to, token, amount); err != nil {
			return err
		}
		return l.put(key, allowed.Sub(allowed, amount))
	}
	return l.Transfer(from, to, token, amount)
}
