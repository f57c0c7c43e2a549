package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"notelend/gateway/middleware"
)

type RateLimitConfig struct {
	ID                string  `yaml:"id"`
	RequestsPerMinute float64 `yaml:"requestsPerMinute"`
	RatePerSecond     float64 `yaml:"ratePerSecond"`
	Burst             int     `yaml:"burst"`
}

type ObservabilityConfig struct {
	ServiceName   string `yaml:"serviceName"`
	Metrics       bool   `yaml:"metrics"`
	LogRequests   bool   `yaml:"logRequests"`
	MetricsPrefix string `yaml:"metricsPrefix"`
}

type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
}

// Config is the HTTP gateway section of the daemon configuration.
type Config struct {
	ListenAddress  string              `yaml:"listen"`
	ReadTimeout    time.Duration       `yaml:"readTimeout"`
	WriteTimeout   time.Duration       `yaml:"writeTimeout"`
	IdleTimeout    time.Duration       `yaml:"idleTimeout"`
	RequestTimeout time.Duration       `yaml:"requestTimeout"`
	RateLimits     []RateLimitConfig   `yaml:"rateLimits"`
	Observability  ObservabilityConfig `yaml:"observability"`
	Auth           AuthConfig          `yaml:"auth"`
	CORS           CORSConfig          `yaml:"cors"`
}

type AuthConfig struct {
	Enabled           bool          `yaml:"enabled"`
	HMACSecret        string        `yaml:"hmacSecret"`
	Issuer            string        `yaml:"issuer"`
	Audience          string        `yaml:"audience"`
	ScopeClaim        string        `yaml:"scopeClaim"`
	OptionalPaths     []string      `yaml:"optionalPaths"`
	AllowAnonymous    bool          `yaml:"allowAnonymous"`
	ClockSkew         time.Duration `yaml:"clockSkew"`
	allowAnonymousSet bool          `yaml:"-"`
	enabledSet        bool          `yaml:"-"`
}

func (a *AuthConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawAuthConfig struct {
		Enabled        *bool         `yaml:"enabled"`
		HMACSecret     string        `yaml:"hmacSecret"`
		Issuer         string        `yaml:"issuer"`
		Audience       string        `yaml:"audience"`
		ScopeClaim     string        `yaml:"scopeClaim"`
		OptionalPaths  []string      `yaml:"optionalPaths"`
		AllowAnonymous *bool         `yaml:"allowAnonymous"`
		ClockSkew      time.Duration `yaml:"clockSkew"`
	}
	var raw rawAuthConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}
	a.Enabled, a.enabledSet = false, false
	if raw.Enabled != nil {
		a.Enabled, a.enabledSet = *raw.Enabled, true
	}
	a.HMACSecret = raw.HMACSecret
	a.Issuer = raw.Issuer
	a.Audience = raw.Audience
	a.ScopeClaim = raw.ScopeClaim
	a.OptionalPaths = raw.OptionalPaths
	a.AllowAnonymous, a.allowAnonymousSet = false, false
	if raw.AllowAnonymous != nil {
		a.AllowAnonymous, a.allowAnonymousSet = *raw.AllowAnonymous, true
	}
	a.ClockSkew = raw.ClockSkew
	return nil
}

// Default returns the gateway section with auth enabled.
func Default() Config {
	return Config{
		ListenAddress:  ":8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		RequestTimeout: 10 * time.Second,
		RateLimits: []RateLimitConfig{
			{ID: "read", RequestsPerMinute: 600, Burst: 60},
			{ID: "write", RequestsPerMinute: 120, Burst: 20},
		},
		Observability: ObservabilityConfig{
			ServiceName:   "notelend-gateway",
			Metrics:       true,
			LogRequests:   true,
			MetricsPrefix: "gateway",
		},
		Auth: AuthConfig{
			Enabled:    true,
			ScopeClaim: "scope",
			ClockSkew:  2 * time.Minute,
			enabledSet: true,
		},
	}
}

// ApplyDefaults fills zero values after decoding.
func (cfg *Config) ApplyDefaults() {
	if cfg == nil {
		return
	}
	def := Default()
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = def.ListenAddress
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = def.Observability.ServiceName
	}
	if cfg.Observability.MetricsPrefix == "" {
		cfg.Observability.MetricsPrefix = def.Observability.MetricsPrefix
	}
	if !cfg.Auth.enabledSet {
		cfg.Auth.Enabled = true
		cfg.Auth.enabledSet = true
	}
	if cfg.Auth.ClockSkew <= 0 {
		cfg.Auth.ClockSkew = 2 * time.Minute
	}
	if cfg.Auth.ScopeClaim == "" {
		cfg.Auth.ScopeClaim = "scope"
	}
	if !cfg.Auth.allowAnonymousSet {
		cfg.Auth.AllowAnonymous = false
	}
}

var (
	ErrAuthSecretMissing = errors.New("gateway.auth.hmacSecret is required when auth is enabled")
	ErrAuthDisabled      = errors.New("gateway.auth.enabled must stay true outside development")
)

// Validate checks the section. Auth may only be disabled in development.
func (cfg *Config) Validate(development bool) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if !cfg.Auth.Enabled && !development {
		return ErrAuthDisabled
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return ErrAuthSecretMissing
	}
	if cfg.Auth.AllowAnonymous && !cfg.Auth.allowAnonymousSet {
		return fmt.Errorf("gateway.auth.allowAnonymous must be explicitly set to true to enable anonymous access")
	}
	trimmed := make([]string, len(cfg.Auth.OptionalPaths))
	for i, path := range cfg.Auth.OptionalPaths {
		trimmedPath := strings.TrimSpace(path)
		if trimmedPath == "" {
			return fmt.Errorf("gateway.auth.optionalPaths[%d] cannot be empty", i)
		}
		if !strings.HasPrefix(trimmedPath, "/") {
			return fmt.Errorf("gateway.auth.optionalPaths[%d] must start with '/'", i)
		}
		trimmed[i] = trimmedPath
	}
	cfg.Auth.OptionalPaths = trimmed
	if cfg.Auth.Enabled && cfg.Auth.AllowAnonymous && len(cfg.Auth.OptionalPaths) == 0 {
		return fmt.Errorf("gateway.auth.optionalPaths must list at least one entry when gateway.auth.allowAnonymous is true")
	}
	seen := make(map[string]struct{}, len(cfg.RateLimits))
	for i, limit := range cfg.RateLimits {
		id := strings.TrimSpace(limit.ID)
		if id == "" {
			return fmt.Errorf("gateway.rateLimits[%d].id cannot be empty", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("gateway.rateLimits[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
		if limit.Burst < 0 || limit.RequestsPerMinute < 0 || limit.RatePerSecond < 0 {
			return fmt.Errorf("gateway.rateLimits[%d]: values must not be negative", i)
		}
	}
	return nil
}

// Limits converts the configured buckets for the rate limiter. A rate given
// per second takes precedence over the per-minute value.
func (cfg Config) Limits() map[string]middleware.RateLimit {
	out := make(map[string]middleware.RateLimit, len(cfg.RateLimits))
	for _, limit := range cfg.RateLimits {
		perMinute := limit.RequestsPerMinute
		if limit.RatePerSecond > 0 {
			perMinute = limit.RatePerSecond * 60
		}
		out[strings.TrimSpace(limit.ID)] = middleware.RateLimit{RequestsPerMinute: perMinute, Burst: limit.Burst}
	}
	return out
}

func (cfg Config) Middleware() middleware.AuthConfig {
	return middleware.AuthConfig{
		Enabled:        cfg.Auth.Enabled,
		HMACSecret:     cfg.Auth.HMACSecret,
		Issuer:         cfg.Auth.Issuer,
		Audience:       cfg.Auth.Audience,
		ScopeClaim:     cfg.Auth.ScopeClaim,
		OptionalPaths:  cfg.Auth.OptionalPaths,
		AllowAnonymous: cfg.Auth.AllowAnonymous,
		ClockSkew:      cfg.Auth.ClockSkew,
	}
}

func (cfg Config) ObservabilityMiddleware() middleware.ObservabilityConfig {
	return middleware.ObservabilityConfig{
		ServiceName:   cfg.Observability.ServiceName,
		MetricsPrefix: cfg.Observability.MetricsPrefix,
		LogRequests:   cfg.Observability.LogRequests,
		Enabled:       cfg.Observability.Metrics,
	}
}

func (cfg Config) CORSMiddleware() middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowCredentials: cfg.CORS.AllowCredentials,
	}
}
