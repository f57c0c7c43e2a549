package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"notelend/crypto"
	"notelend/native/bank"
)

// ModuleSpender is accepted in place of an address for allowances granted to
// the loans module.
const ModuleSpender = "module:loans"

// GenesisSpec describes the initial state of a fresh store.
type GenesisSpec struct {
	GenesisTime         string                       `json:"genesisTime,omitempty"`
	Signers             []string                     `json:"signers"`
	Alloc               map[string]map[string]string `json:"alloc"` // addr -> token -> amount
	Allowances          []AllowanceSpec              `json:"allowances,omitempty"`
	Vaults              []VaultSpec                  `json:"vaults,omitempty"`
	ProgrammableHolders []HolderSpec                 `json:"programmableHolders,omitempty"`

	genesisTimestamp time.Time
}

type AllowanceSpec struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
}

type VaultSpec struct {
	Address   string         `json:"address"`
	Asset     string         `json:"asset"`
	Positions []PositionSpec `json:"positions,omitempty"`
}

// PositionSpec opens a position for Owner, funds it from Owner's allocation
// and optionally approves the loans module to take custody.
type PositionSpec struct {
	Owner         string `json:"owner"`
	Deposit       string `json:"deposit,omitempty"`
	ApproveModule bool   `json:"approveModule,omitempty"`
}

type HolderSpec struct {
	Address         string   `json:"address"`
	ApprovedSigners []string `json:"approvedSigners,omitempty"`
}

// LoadGenesisSpec reads and validates a JSON genesis file. Unknown fields are
// rejected.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	return ParseGenesisSpec(raw)
}

// ParseGenesisSpec decodes and validates raw JSON.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

func (s *GenesisSpec) validate() error {
	if trimmed := strings.TrimSpace(s.GenesisTime); trimmed != "" {
		ts, err := time.Parse(time.RFC3339, trimmed)
		if err != nil {
			return fmt.Errorf("genesisTime: %w", err)
		}
		s.genesisTimestamp = ts.UTC()
	}
	for i, signer := range s.Signers {
		if _, err := crypto.ParseRaw(signer); err != nil {
			return fmt.Errorf("signers[%d]: %w", i, err)
		}
	}
	for addr, tokens := range s.Alloc {
		if _, err := crypto.ParseRaw(addr); err != nil {
			return fmt.Errorf("alloc %q: %w", addr, err)
		}
		for token, amount := range tokens {
			if bank.NormalizeToken(token) == "" {
				return fmt.Errorf("alloc %q: empty token symbol", addr)
			}
			if _, err := parseAmountString(amount); err != nil {
				return fmt.Errorf("alloc %q %s: %w", addr, token, err)
			}
		}
	}
	for i, allowance := range s.Allowances {
		if _, err := crypto.ParseRaw(allowance.Owner); err != nil {
			return fmt.Errorf("allowances[%d].owner: %w", i, err)
		}
		if allowance.Spender != ModuleSpender {
			if _, err := crypto.ParseRaw(allowance.Spender); err != nil {
				return fmt.Errorf("allowances[%d].spender: %w", i, err)
			}
		}
		if bank.NormalizeToken(allowance.Token) == "" {
			return fmt.Errorf("allowances[%d]: token required", i)
		}
		if _, err := parseAmountString(allowance.Amount); err != nil {
			return fmt.Errorf("allowances[%d].amount: %w", i, err)
		}
	}
	seen := make(map[string]struct{}, len(s.Vaults))
	for i, v := range s.Vaults {
		if _, err := crypto.ParseRaw(v.Address); err != nil {
			return fmt.Errorf("vaults[%d].address: %w", i, err)
		}
		if _, dup := seen[v.Address]; dup {
			return fmt.Errorf("vaults[%d]: duplicate vault %s", i, v.Address)
		}
		seen[v.Address] = struct{}{}
		if bank.NormalizeToken(v.Asset) == "" {
			return fmt.Errorf("vaults[%d].asset required", i)
		}
		for j, p := range v.Positions {
			if _, err := crypto.ParseRaw(p.Owner); err != nil {
				return fmt.Errorf("vaults[%d].positions[%d].owner: %w", i, j, err)
			}
			if p.Deposit != "" {
				if _, err := parseAmountString(p.Deposit); err != nil {
					return fmt.Errorf("vaults[%d].positions[%d].deposit: %w", i, j, err)
				}
			}
		}
	}
	for i, h := range s.ProgrammableHolders {
		if _, err := crypto.ParseRaw(h.Address); err != nil {
			return fmt.Errorf("programmableHolders[%d].address: %w", i, err)
		}
		for j, signer := range h.ApprovedSigners {
			if _, err := crypto.ParseRaw(signer); err != nil {
				return fmt.Errorf("programmableHolders[%d].approvedSigners[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
