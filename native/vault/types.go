package vault

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Vault is a pooled-value share pool. TotalAssets is the value held for all
// shareholders and always sits in the Reserve account of the bank ledger.
type Vault struct {
	Address      [20]byte
	Asset        string
	Reserve      [20]byte
	TotalAssets  *big.Int
	TotalShares  *big.Int
	NextPosition uint64
}

// Position is a non-fungible claim on a slice of a vault. Lien is the value
// pledged to an open loan; the position's valuation may never drop below it.
type Position struct {
	Vault    [20]byte
	ID       uint64
	Owner    [20]byte
	Approved [20]byte
	Shares   *big.Int
	Lien     *big.Int
}

// Ref identifies a position by vault address and position id.
type Ref struct {
	Vault [20]byte
	ID    uint64
}

// Clone returns a deep copy of the vault.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	clone.TotalAssets = cloneAmount(v.TotalAssets)
	clone.TotalShares = cloneAmount(v.TotalShares)
	return &clone
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Shares = cloneAmount(p.Shares)
	clone.Lien = cloneAmount(p.Lien)
	return &clone
}

func (p *Position) ref() Ref {
	return Ref{Vault: p.Vault, ID: p.ID}
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (v *Vault) ensureDefaults() {
	if v.TotalAssets == nil {
		v.TotalAssets = big.NewInt(0)
	}
	if v.TotalShares == nil {
		v.TotalShares = big.NewInt(0)
	}
}

func (p *Position) ensureDefaults() {
	if p.Shares == nil {
		p.Shares = big.NewInt(0)
	}
	if p.Lien == nil {
		p.Lien = big.NewInt(0)
	}
}

// ReserveAddress derives the bank account holding a vault's assets.
func ReserveAddress(vault [20]byte) [20]byte {
	var out [20]byte
	copy(out[:], ethcrypto.Keccak256([]byte("vault/reserve"), vault[:])[12:])
	return out
}

// SinkAddress receives assets written off by negative strategy reports.
var SinkAddress = func() [20]byte {
	var out [20]byte
	copy(out[:], ethcrypto.Keccak256([]byte("vault/sink"))[12:])
	return out
}()
