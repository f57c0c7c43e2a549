package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitWithoutExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "loansd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = secret ,broken, =empty,tenant=loans")
	require.Equal(t, map[string]string{"api-key": "secret", "tenant": "loans"}, headers)
}

func TestConfigFromEnv(t *testing.T) {
	env := map[string]string{
		"OTEL_EXPORTER_OTLP_ENDPOINT": " collector:4318 ",
		"OTEL_EXPORTER_OTLP_INSECURE": "false",
		"OTEL_EXPORTER_OTLP_HEADERS":  "tenant=loans",
		"OTEL_TRACES_SAMPLER_ARG":     "0.25",
	}
	cfg := ConfigFromEnv("loansd", "prod", func(key string) string { return env[key] })
	require.Equal(t, "collector:4318", cfg.Endpoint)
	require.False(t, cfg.Insecure)
	require.True(t, cfg.Enabled())
	require.Equal(t, 0.25, cfg.SampleRatio)
	require.Equal(t, map[string]string{"tenant": "loans"}, cfg.Headers)

	empty := ConfigFromEnv("loansd", "dev", func(string) string { return "" })
	require.False(t, empty.Enabled())
	require.True(t, empty.Insecure)
}
