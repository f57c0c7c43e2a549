package loans

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"notelend/crypto"
	"notelend/native/bank"
)

const (
	// Denominator is the fixed-point basis for rates and ratios (basis points).
	Denominator = 10_000
	// SecondsPerYear annualises interest rates.
	SecondsPerYear = 31_536_000

	defaultLoanRatioBps        = 5_000
	defaultLiquidationRatioBps = 8_000
	defaultMaxInterestRateBps  = 10_000
	defaultMinDurationSeconds  = 24 * 60 * 60
	defaultMaxDurationSeconds  = 365 * 24 * 60 * 60
	defaultDomainName          = "notelend"
	defaultDomainVersion       = "1"
)

// Config captures the TOML-encoded parameters of the loans module.
type Config struct {
	LoanRatioBps        uint64       `toml:"LoanRatioBps"`
	LiquidationRatioBps uint64       `toml:"LiquidationRatioBps"`
	ProtocolFeeBps      uint64       `toml:"ProtocolFeeBps"`
	Treasury            string       `toml:"Treasury"`
	GracePeriodSeconds  uint64       `toml:"GracePeriodSeconds"`
	MaxInterestRateBps  uint64       `toml:"MaxInterestRateBps"`
	MinDurationSeconds  uint64       `toml:"MinDurationSeconds"`
	MaxDurationSeconds  uint64       `toml:"MaxDurationSeconds"`
	Domain              DomainConfig `toml:"domain"`
}

// DomainConfig describes the signing domain terms are bound to.
type DomainConfig struct {
	Name              string `toml:"Name"`
	Version           string `toml:"Version"`
	ChainID           uint64 `toml:"ChainID"`
	VerifyingContract string `toml:"VerifyingContract"`
}

// Params is the validated, decoded form of Config consumed by the engine.
type Params struct {
	LoanRatioBps        uint64
	LiquidationRatioBps uint64
	ProtocolFeeBps      uint64
	Treasury            [20]byte
	GracePeriodSeconds  uint64
	MaxInterestRateBps  uint64
	MinDurationSeconds  uint64
	MaxDurationSeconds  uint64
	Domain              Domain
}

// LoadConfig decodes a TOML parameter file and applies defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) == "" {
		cfg.EnsureDefaults()
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("loans config: %w", err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("loans config: decode %s: %w", path, err)
	}
	cfg.EnsureDefaults()
	return cfg, nil
}

// EnsureDefaults fills unset fields with the module defaults.
func (c *Config) EnsureDefaults() {
	if c == nil {
		return
	}
	if c.LoanRatioBps == 0 {
		c.LoanRatioBps = defaultLoanRatioBps
	}
	if c.LiquidationRatioBps == 0 {
		c.LiquidationRatioBps = defaultLiquidationRatioBps
	}
	if c.MaxInterestRateBps == 0 {
		c.MaxInterestRateBps = defaultMaxInterestRateBps
	}
	if c.MinDurationSeconds == 0 {
		c.MinDurationSeconds = defaultMinDurationSeconds
	}
	if c.MaxDurationSeconds == 0 {
		c.MaxDurationSeconds = defaultMaxDurationSeconds
	}
	c.Treasury = strings.TrimSpace(c.Treasury)
	c.Domain.Name = strings.TrimSpace(c.Domain.Name)
	if c.Domain.Name == "" {
		c.Domain.Name = defaultDomainName
	}
	c.Domain.Version = strings.TrimSpace(c.Domain.Version)
	if c.Domain.Version == "" {
		c.Domain.Version = defaultDomainVersion
	}
	c.Domain.VerifyingContract = strings.TrimSpace(c.Domain.VerifyingContract)
}

// Params validates the configuration and converts it for engine use.
func (c Config) Params() (Params, error) {
	p := Params{
		LoanRatioBps:        c.LoanRatioBps,
		LiquidationRatioBps: c.LiquidationRatioBps,
		ProtocolFeeBps:      c.ProtocolFeeBps,
		GracePeriodSeconds:  c.GracePeriodSeconds,
		MaxInterestRateBps:  c.MaxInterestRateBps,
		MinDurationSeconds:  c.MinDurationSeconds,
		MaxDurationSeconds:  c.MaxDurationSeconds,
		Domain: Domain{
			Name:    c.Domain.Name,
			Version: c.Domain.Version,
			ChainID: c.Domain.ChainID,
		},
	}
	if c.Treasury != "" {
		raw, err := crypto.ParseRaw(c.Treasury)
		if err != nil {
			return Params{}, fmt.Errorf("loans config: treasury: %w", err)
		}
		p.Treasury = raw
	}
	if c.Domain.VerifyingContract != "" {
		raw, err := crypto.ParseRaw(c.Domain.VerifyingContract)
		if err != nil {
			return Params{}, fmt.Errorf("loans config: verifying contract: %w", err)
		}
		p.Domain.VerifyingContract = raw
	} else {
		p.Domain.VerifyingContract = ModuleAddress
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// DefaultParams returns the defaults with the module address as the
// verifying contract.
func DefaultParams() Params {
	var cfg Config
	cfg.EnsureDefaults()
	p, err := cfg.Params()
	if err != nil {
		panic(err)
	}
	return p
}

// Validate checks the parameter invariants.
func (p Params) Validate() error {
	if p.LoanRatioBps == 0 || p.LoanRatioBps > Denominator {
		return fmt.Errorf("loans config: LoanRatioBps must be within (0, %d]", Denominator)
	}
	if p.LiquidationRatioBps == 0 || p.LiquidationRatioBps > Denominator {
		return fmt.Errorf("loans config: LiquidationRatioBps must be within (0, %d]", Denominator)
	}
	if p.LiquidationRatioBps <= p.LoanRatioBps {
		return fmt.Errorf("loans config: LiquidationRatioBps must exceed LoanRatioBps")
	}
	if p.ProtocolFeeBps > Denominator {
		return fmt.Errorf("loans config: ProtocolFeeBps must not exceed %d", Denominator)
	}
	if p.ProtocolFeeBps > 0 && p.Treasury == ([20]byte{}) {
		return fmt.Errorf("loans config: Treasury required when ProtocolFeeBps is set")
	}
	if p.MinDurationSeconds == 0 || p.MaxDurationSeconds < p.MinDurationSeconds {
		return fmt.Errorf("loans config: invalid duration bounds [%d, %d]", p.MinDurationSeconds, p.MaxDurationSeconds)
	}
	if p.Domain.Name == "" || p.Domain.Version == "" {
		return fmt.Errorf("loans config: signing domain name and version required")
	}
	return nil
}

// validateTerms applies the parameter bounds to a terms payload.
func (p Params) validateTerms(t *LoanTerms) error {
	if t == nil {
		return fmt.Errorf("%w: terms required", ErrInvalidLoanTerms)
	}
	if t.Lender == ([20]byte{}) {
		return fmt.Errorf("%w: lender", ErrInvalidAddress)
	}
	if t.Borrower == ([20]byte{}) {
		return fmt.Errorf("%w: borrower", ErrInvalidAddress)
	}
	if t.CollateralAddress == ([20]byte{}) {
		return fmt.Errorf("%w: collateral address", ErrInvalidAddress)
	}
	if t.LoanAmount == nil || t.LoanAmount.Sign() <= 0 {
		return fmt.Errorf("%w: loan amount must be positive", ErrParameterOutOfBounds)
	}
	if t.InterestRate > p.MaxInterestRateBps {
		return fmt.Errorf("%w: interest rate %d exceeds %d", ErrParameterOutOfBounds, t.InterestRate, p.MaxInterestRateBps)
	}
	if t.Duration < p.MinDurationSeconds || t.Duration > p.MaxDurationSeconds {
		return fmt.Errorf("%w: duration %d outside [%d, %d]", ErrParameterOutOfBounds, t.Duration, p.MinDurationSeconds, p.MaxDurationSeconds)
	}
	if t.Currency == "" || t.Currency != bank.NormalizeToken(t.Currency) {
		return fmt.Errorf("%w: currency %q must be a normalised token symbol", ErrInvalidLoanTerms, t.Currency)
	}
	return nil
}
