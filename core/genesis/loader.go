package genesis

import (
	"errors"
	"fmt"
	"sort"

	"notelend/core/state"
	"notelend/crypto"
	"notelend/native/bank"
	"notelend/native/loans"
	"notelend/native/notes"
	"notelend/native/vault"
)

// ErrAlreadyApplied is returned when the store already carries a genesis.
var ErrAlreadyApplied = errors.New("genesis: already applied")

var appliedKey = []byte("genesis/applied")

// Result lists the collateral positions opened by Apply in spec order.
type Result struct {
	Positions []vault.Ref
}

// Applied reports whether tx's store already carries a genesis.
func Applied(tx *state.Tx) (bool, error) {
	return tx.KVGet(appliedKey, nil)
}

// Apply writes spec into tx. Map-keyed sections are applied in sorted order so
// the resulting state is deterministic. The caller commits tx.
func Apply(spec *GenesisSpec, tx *state.Tx) (*Result, error) {
	if spec == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	if tx == nil {
		return nil, fmt.Errorf("state transaction must not be nil")
	}
	applied, err := Applied(tx)
	if err != nil {
		return nil, err
	}
	if applied {
		return nil, ErrAlreadyApplied
	}

	currency := bank.NewLedger(tx)
	vaults := vault.NewLedger(tx, currency)
	registry := notes.NewRegistry(tx)

	// 1) Balances (sorted by address, then token)
	addrs := make([]string, 0, len(spec.Alloc))
	for addr := range spec.Alloc {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		raw, _ := crypto.ParseRaw(addr)
		tokens := make([]string, 0, len(spec.Alloc[addr]))
		for token := range spec.Alloc[addr] {
			tokens = append(tokens, token)
		}
		sort.Strings(tokens)
		for _, token := range tokens {
			amount, _ := parseAmountString(spec.Alloc[addr][token])
			if amount.Sign() == 0 {
				continue
			}
			if err := currency.Mint(raw, token, amount); err != nil {
				return nil, fmt.Errorf("alloc %s %s: %w", addr, token, err)
			}
		}
	}

	// 2) Vaults and their positions
	result := &Result{}
	for _, v := range spec.Vaults {
		addr, _ := crypto.ParseRaw(v.Address)
		if _, err := vaults.CreateVault(addr, v.Asset); err != nil {
			return nil, fmt.Errorf("vault %s: %w", v.Address, err)
		}
		for _, p := range v.Positions {
			owner, _ := crypto.ParseRaw(p.Owner)
			ref, err := vaults.OpenPosition(addr, owner)
			if err != nil {
				return nil, fmt.Errorf("vault %s position: %w", v.Address, err)
			}
			if p.Deposit != "" {
				amount, _ := parseAmountString(p.Deposit)
				if amount.Sign() > 0 {
					if _, err := vaults.Deposit(ref, owner, amount); err != nil {
						return nil, fmt.Errorf("vault %s position %d deposit: %w", v.Address, ref.ID, err)
					}
				}
			}
			if p.ApproveModule {
				if err := vaults.Approve(ref, owner, loans.ModuleAddress); err != nil {
					return nil, fmt.Errorf("vault %s position %d approve: %w", v.Address, ref.ID, err)
				}
			}
			result.Positions = append(result.Positions, ref)
		}
	}

	// 3) Allowances
	for _, a := range spec.Allowances {
		owner, _ := crypto.ParseRaw(a.Owner)
		spender := loans.ModuleAddress
		if a.Spender != ModuleSpender {
			spender, _ = crypto.ParseRaw(a.Spender)
		}
		amount, _ := parseAmountString(a.Amount)
		if err := currency.Approve(owner, spender, a.Token, amount); err != nil {
			return nil, fmt.Errorf("allowance %s: %w", a.Owner, err)
		}
	}

	// 4) Terms signers
	for _, signer := range spec.Signers {
		raw, _ := crypto.ParseRaw(signer)
		if err := tx.SetRole(state.RoleTermsSigner, raw[:]); err != nil {
			return nil, fmt.Errorf("signer %s: %w", signer, err)
		}
	}

	// 5) Programmable note holders
	for _, h := range spec.ProgrammableHolders {
		holder, _ := crypto.ParseRaw(h.Address)
		if err := registry.RegisterProgrammable(holder); err != nil {
			return nil, fmt.Errorf("holder %s: %w", h.Address, err)
		}
		for _, signer := range h.ApprovedSigners {
			raw, _ := crypto.ParseRaw(signer)
			if err := registry.SetApprovedSigner(holder, raw, true); err != nil {
				return nil, fmt.Errorf("holder %s signer %s: %w", h.Address, signer, err)
			}
		}
	}

	var appliedAt uint64
	if ts := spec.GenesisTimestamp(); ts.Unix() > 0 {
		appliedAt = uint64(ts.Unix())
	}
	if err := tx.KVPut(appliedKey, appliedAt); err != nil {
		return nil, err
	}
	return result, nil
}
