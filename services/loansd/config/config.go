package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	gatewayconfig "notelend/gateway/config"
	"notelend/services/loans/journal"
	"notelend/storage"
)

// Config captures the runtime settings for the loans daemon.
type Config struct {
	ListenAddress string               `yaml:"listen"`
	Environment   string               `yaml:"environment"`
	Storage       StorageConfig        `yaml:"storage"`
	TLS           TLSConfig            `yaml:"tls"`
	Auth          AuthConfig           `yaml:"auth"`
	RateLimit     int                  `yaml:"rate_limit_per_min"`
	Gateway       gatewayconfig.Config `yaml:"gateway"`
	Journal       JournalConfig        `yaml:"journal"`
	ParamsFile    string               `yaml:"params_file"`
	GenesisFile   string               `yaml:"genesis_file"`
	Pauses        []string             `yaml:"pauses"`
	Log           LogConfig            `yaml:"log"`
}

// StorageConfig selects the key-value backend holding module state.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// TLSConfig describes the TLS material for the gRPC server.
type TLSConfig struct {
	CertPath      string `yaml:"cert"`
	KeyPath       string `yaml:"key"`
	ClientCAPath  string `yaml:"client_ca"`
	AllowInsecure bool   `yaml:"allow_insecure"`
}

// AuthConfig lists the authenticators accepted by the gRPC service.
type AuthConfig struct {
	APITokens []string       `yaml:"api_tokens"`
	MTLS      MTLSAuthConfig `yaml:"mtls"`
}

// MTLSAuthConfig enumerates the allowed client certificate identities.
type MTLSAuthConfig struct {
	AllowedCommonNames []string `yaml:"allowed_common_names"`
}

// JournalConfig points the event journal at a SQL database. An empty driver
// disables the journal, the events endpoint and idempotency keys.
type JournalConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used before a file is decoded.
func Default() Config {
	return Config{
		ListenAddress: ":50061",
		Storage:       StorageConfig{Backend: storage.BackendLevelDB, Path: "data/loans"},
		Gateway:       gatewayconfig.Default(),
		Log:           LogConfig{Level: "info"},
	}
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Development reports whether the daemon runs in the dev environment.
func (cfg Config) Development() bool {
	return strings.EqualFold(cfg.Environment, "dev")
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":50061"
	}
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = storage.BackendLevelDB
	}
	cfg.Storage.Path = strings.TrimSpace(cfg.Storage.Path)
	cfg.Journal.Driver = strings.ToLower(strings.TrimSpace(cfg.Journal.Driver))
	cfg.Journal.DSN = strings.TrimSpace(cfg.Journal.DSN)
	cfg.ParamsFile = strings.TrimSpace(cfg.ParamsFile)
	cfg.GenesisFile = strings.TrimSpace(cfg.GenesisFile)
	cfg.Pauses = trimAll(cfg.Pauses)
	cfg.TLS.normalize()
	cfg.Auth.normalize()
	cfg.Gateway.ApplyDefaults()
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	switch cfg.Storage.Backend {
	case storage.BackendLevelDB, storage.BackendBolt:
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage: path required for %s backend", cfg.Storage.Backend)
		}
	case storage.BackendMemory:
		if !cfg.Development() {
			return fmt.Errorf("storage: memory backend is restricted to the dev environment")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", cfg.Storage.Backend)
	}
	switch cfg.Journal.Driver {
	case "", journal.DriverSQLite:
	case journal.DriverPostgres:
		if cfg.Journal.DSN == "" {
			return fmt.Errorf("journal: dsn required for postgres")
		}
	default:
		return fmt.Errorf("journal: unknown driver %q", cfg.Journal.Driver)
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("rate_limit_per_min must not be negative")
	}
	if err := cfg.TLS.validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if err := cfg.Auth.validate(cfg.TLS); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := cfg.Gateway.Validate(cfg.Development()); err != nil {
		return err
	}
	return nil
}

func (cfg *TLSConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.CertPath = strings.TrimSpace(cfg.CertPath)
	cfg.KeyPath = strings.TrimSpace(cfg.KeyPath)
	cfg.ClientCAPath = strings.TrimSpace(cfg.ClientCAPath)
}

func (cfg TLSConfig) validate() error {
	hasCert := cfg.CertPath != ""
	hasKey := cfg.KeyPath != ""
	if hasCert != hasKey {
		return fmt.Errorf("cert and key must either both be provided or both be empty")
	}
	if !cfg.AllowInsecure && !hasCert {
		return fmt.Errorf("cert and key are required unless allow_insecure=true")
	}
	if cfg.ClientCAPath != "" && !hasCert {
		return fmt.Errorf("client_ca requires a server certificate and key")
	}
	return nil
}

// MTLSEnabled reports whether mutual TLS verification is configured.
func (cfg TLSConfig) MTLSEnabled() bool {
	return strings.TrimSpace(cfg.ClientCAPath) != ""
}

func (cfg *AuthConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.APITokens = trimAll(cfg.APITokens)
	cfg.MTLS.AllowedCommonNames = trimAll(cfg.MTLS.AllowedCommonNames)
}

func (cfg AuthConfig) validate(tls TLSConfig) error {
	hasTokens := len(cfg.APITokens) > 0
	hasMTLS := len(cfg.MTLS.AllowedCommonNames) > 0
	if !hasTokens && !hasMTLS {
		return fmt.Errorf("at least one api token or mTLS common name must be configured")
	}
	if hasMTLS && strings.TrimSpace(tls.ClientCAPath) == "" {
		return fmt.Errorf("mtls.allowed_common_names requires tls.client_ca to be configured")
	}
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
