package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"notelend/core/state"
	"notelend/crypto"
	gatewayconfig "notelend/gateway/config"
	"notelend/services/loans/client"
	"notelend/services/loansd/config"
	"notelend/storage"
)

func addr(b byte) string {
	return crypto.FormatRaw([20]byte{b})
}

func writeGenesis(t *testing.T) string {
	t.Helper()
	spec := `{
  "signers": ["` + addr(0x51) + `"],
  "alloc": {
    "` + addr(0x1E) + `": {"NLD": "5000"},
    "` + addr(0xB0) + `": {"NLD": "1000"}
  },
  "vaults": [
    {"address": "` + addr(0xA1) + `", "asset": "NLD", "positions": [
      {"owner": "` + addr(0xB0) + `", "deposit": "600", "approveModule": true}
    ]}
  ]
}`
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(spec), 0o600))
	return path
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Environment = "dev"
	cfg.Storage = config.StorageConfig{Backend: storage.BackendMemory}
	cfg.TLS.AllowInsecure = true
	cfg.Auth.APITokens = []string{"test-token"}
	cfg.Journal.Driver = "sqlite"
	cfg.GenesisFile = writeGenesis(t)
	cfg.Gateway = gatewayconfig.Default()
	cfg.Gateway.Auth.Enabled = false
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAppServesGatewayAndGRPC(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := newApp(ctx, testConfig(t), quietLogger())
	require.NoError(t, err)
	defer application.close()

	grpcListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	httpListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- application.serve(ctx, grpcListener, httpListener) }()

	base := "http://" + httpListener.Addr().String()
	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", health["status"])

	resp, err = http.Get(base + "/v1/balances/" + addr(0x1E) + "/NLD")
	require.NoError(t, err)
	var balance struct {
		Balance string `json:"balance"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&balance))
	resp.Body.Close()
	require.Equal(t, "5000", balance.Balance)

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	c, err := client.Dial(dialCtx, grpcListener.Addr().String(), nil, client.WithToken("test-token"))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.GetLoan(dialCtx, 1)
	require.Equal(t, codes.NotFound, status.Code(err))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}

func TestApplyGenesisOnlyOnce(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	path := writeGenesis(t)

	require.NoError(t, applyGenesis(manager, path, quietLogger()))
	require.NoError(t, applyGenesis(manager, path, quietLogger()))
	require.NoError(t, applyGenesis(manager, "", quietLogger()))
}
