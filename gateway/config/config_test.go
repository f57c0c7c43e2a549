package config

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func decode(t *testing.T, content string) Config {
	t.Helper()
	cfg := Default()
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestDefaultsSecureByDefault(t *testing.T) {
	cfg := Default()
	cfg.ApplyDefaults()
	if !cfg.Auth.Enabled {
		t.Fatalf("expected auth.enabled to default to true")
	}
	if cfg.Auth.AllowAnonymous {
		t.Fatalf("expected auth.allowAnonymous to default to false")
	}
	if err := cfg.Validate(false); err != ErrAuthSecretMissing {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestOmittedEnabledStaysOn(t *testing.T) {
	cfg := decode(t, "auth:\n  hmacSecret: s3cret\n")
	if !cfg.Auth.Enabled {
		t.Fatalf("expected auth to remain enabled when the key is omitted")
	}
	if err := cfg.Validate(false); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestDisabledAuthOnlyInDevelopment(t *testing.T) {
	cfg := decode(t, "auth:\n  enabled: false\n")
	if err := cfg.Validate(false); err != ErrAuthDisabled {
		t.Fatalf("expected ErrAuthDisabled, got %v", err)
	}
	if err := cfg.Validate(true); err != nil {
		t.Fatalf("development validate: %v", err)
	}
}

func TestAllowAnonymousRequiresOptionalPaths(t *testing.T) {
	cfg := decode(t, "auth:\n  enabled: true\n  hmacSecret: s\n  allowAnonymous: true\n")
	if err := cfg.Validate(false); err == nil {
		t.Fatalf("expected failure when allowAnonymous is set without optional paths")
	}
	cfg = decode(t, "auth:\n  enabled: true\n  hmacSecret: s\n  allowAnonymous: true\n  optionalPaths: [\" /healthz \"]\n")
	if err := cfg.Validate(false); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Auth.OptionalPaths[0] != "/healthz" {
		t.Fatalf("expected optional path to be trimmed, got %q", cfg.Auth.OptionalPaths[0])
	}
}

func TestRateLimitsConvert(t *testing.T) {
	cfg := decode(t, "auth:\n  hmacSecret: s\nrateLimits:\n  - id: write\n    ratePerSecond: 2\n    burst: 4\n  - id: read\n    requestsPerMinute: 30\n")
	if err := cfg.Validate(false); err != nil {
		t.Fatalf("validate: %v", err)
	}
	limits := cfg.Limits()
	if limits["write"].RequestsPerMinute != 120 || limits["write"].Burst != 4 {
		t.Fatalf("unexpected write limit %+v", limits["write"])
	}
	if limits["read"].RequestsPerMinute != 30 {
		t.Fatalf("unexpected read limit %+v", limits["read"])
	}

	dup := decode(t, "auth:\n  hmacSecret: s\nrateLimits:\n  - id: read\n  - id: read\n")
	if err := dup.Validate(false); err == nil {
		t.Fatalf("expected duplicate rate limit ids to fail validation")
	}
}
