package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "loansd.log")
	logger, closer := SetupWithOptions("loansd", "test", Options{Level: "debug", File: path, Output: &buf})
	defer closer.Close()

	logger.Debug("loan started", "loanId", 7, MaskField("signature", "0xdeadbeef"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "loansd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "loan started", line["message"])
	require.Equal(t, RedactedValue, line["signature"])
	require.Contains(t, line, "timestamp")

	persisted, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, buf.String(), string(persisted))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestMaskFieldAllowlist(t *testing.T) {
	require.Equal(t, "12", MaskField("loanId", "12").Value.String())
	require.Equal(t, RedactedValue, MaskField("api_token", "secret").Value.String())
	require.Equal(t, "", MaskField("api_token", "").Value.String())
	require.Contains(t, RedactionAllowlist(), "loanid")
}

func TestMaskBytes(t *testing.T) {
	require.Equal(t, RedactedValue, MaskBytes("signature", []byte{0xde, 0xad}).Value.String())
	require.Equal(t, "", MaskBytes("signature", nil).Value.String())
	require.True(t, IsAllowlisted(" Loan_ID "))
	require.False(t, IsAllowlisted("api_token"))
}
