package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"

	"notelend/core/events"
	"notelend/core/genesis"
	"notelend/core/state"
	"notelend/gateway/middleware"
	"notelend/gateway/routes"
	nativecommon "notelend/native/common"
	"notelend/native/loans"
	"notelend/observability"
	loansv1 "notelend/proto/loans/v1"
	"notelend/services/loans/engine"
	"notelend/services/loans/journal"
	loansserver "notelend/services/loans/server"
	"notelend/services/loansd/config"
	"notelend/storage"
)

const shutdownTimeout = 5 * time.Second

// app owns every long-lived component of the daemon.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	manager  *state.Manager
	executor *engine.Executor
	journal  *journal.Journal
	hub      *events.Hub
	grpc     *grpc.Server
	http     *http.Server
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	db, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	manager := state.NewManager(db)
	a := &app{cfg: cfg, logger: logger, manager: manager}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	if err := applyGenesis(a.manager, a.cfg.GenesisFile, a.logger); err != nil {
		return err
	}
	paramsCfg, err := loans.LoadConfig(a.cfg.ParamsFile)
	if err != nil {
		return err
	}
	params, err := paramsCfg.Params()
	if err != nil {
		return fmt.Errorf("loans params: %w", err)
	}

	a.hub = events.NewHub(256)
	sink := events.MultiEmitter{observability.Events()}
	if a.cfg.Journal.Driver != "" {
		a.journal, err = journal.Open(a.cfg.Journal.Driver, a.cfg.Journal.DSN, a.logger)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		// Journaled events reach the hub with their sequence number.
		a.journal.SetPublisher(a.hub)
		sink = append(sink, a.journal)
	} else {
		sink = append(sink, a.hub)
	}

	a.executor = engine.NewExecutor(a.manager, params, a.logger)
	a.executor.SetPauses(nativecommon.NewPauses(a.cfg.Pauses...))
	a.executor.SetEmitter(sink)
	a.executor.SetMetrics(observability.Loans())
	stats, err := a.executor.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read loan stats: %w", err)
	}
	observability.Loans().SetActive(stats.Active)
	a.logger.Info("loan state loaded", "loans", stats.Loans, "active", stats.Active, "paused", a.cfg.Pauses)

	if err := a.buildGRPC(); err != nil {
		return err
	}
	a.buildHTTP()
	return nil
}

func applyGenesis(manager *state.Manager, path string, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	tx := manager.Begin()
	defer tx.Discard()
	applied, err := genesis.Applied(tx)
	if err != nil {
		return err
	}
	if applied {
		logger.Info("genesis already applied", "path", path)
		return nil
	}
	spec, err := genesis.LoadGenesisSpec(path)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	result, err := genesis.Apply(spec, tx)
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}
	logger.Info("genesis applied", "path", path, "positions", len(result.Positions))
	return nil
}

func (a *app) buildGRPC() error {
	serverCfg := loansserver.Config{
		TLSCertFile:      a.cfg.TLS.CertPath,
		TLSKeyFile:       a.cfg.TLS.KeyPath,
		TLSClientCAFile:  a.cfg.TLS.ClientCAPath,
		AllowInsecure:    a.cfg.TLS.AllowInsecure,
		AllowedClientCNs: a.cfg.Auth.MTLS.AllowedCommonNames,
		APITokens:        a.cfg.Auth.APITokens,
		RateLimitPerMin:  a.cfg.RateLimit,
		Logger:           a.logger,
	}
	options := []grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}
	options = append(options, loansserver.Interceptors(serverCfg)...)
	creds, err := loansserver.GrpcServerCreds(serverCfg)
	if err != nil {
		return fmt.Errorf("configure tls: %w", err)
	}
	if creds != nil {
		options = append(options, creds)
	}
	a.grpc = grpc.NewServer(options...)
	loansv1.RegisterLoanServiceServer(a.grpc, loansserver.New(a.executor, a.logger))
	return nil
}

func (a *app) buildHTTP() {
	gw := a.cfg.Gateway
	registry := prometheus.NewRegistry()
	metrics := promhttp.HandlerFor(prometheus.Gatherers{prometheus.DefaultGatherer, registry}, promhttp.HandlerOpts{})

	handler := routes.New(routes.Config{
		Service:        a.executor,
		Journal:        a.journal,
		Hub:            a.hub,
		Authenticator:  middleware.NewAuthenticator(gw.Middleware(), a.logger),
		RateLimiter:    middleware.NewRateLimiter(gw.Limits(), a.logger),
		Observability:  middleware.NewObservability(gw.ObservabilityMiddleware(), registry, a.logger),
		CORS:           gw.CORSMiddleware(),
		MetricsHandler: metrics,
		HealthHandler:  http.HandlerFunc(a.health),
		RequestTimeout: gw.RequestTimeout,
		Logger:         a.logger,
	})
	a.http = &http.Server{
		Addr:         gw.ListenAddress,
		Handler:      otelhttp.NewHandler(handler, "loansd-gateway"),
		ReadTimeout:  gw.ReadTimeout,
		WriteTimeout: gw.WriteTimeout,
		IdleTimeout:  gw.IdleTimeout,
	}
}

func (a *app) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	stats, err := a.executor.Stats(ctx)
	if err != nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Unavailable", err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"loans":       stats.Loans,
		"active":      stats.Active,
		"subscribers": a.hub.Subscribers(),
	})
}

// serve runs both listeners until ctx ends or one of them fails, then stops
// them gracefully.
func (a *app) serve(ctx context.Context, grpcListener, httpListener net.Listener) error {
	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("grpc listening", "addr", grpcListener.Addr().String())
		errCh <- a.grpc.Serve(grpcListener)
	}()
	go func() {
		a.logger.Info("gateway listening", "addr", httpListener.Addr().String())
		if err := a.http.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			a.logger.Error("listener failed", "error", serveErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("gateway shutdown", "error", err)
	}
	done := make(chan struct{})
	go func() {
		a.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		a.logger.Warn("forcing grpc stop")
		a.grpc.Stop()
	}
	return serveErr
}

func (a *app) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("close journal", "error", err)
		}
	}
	if a.manager != nil {
		if err := a.manager.Close(); err != nil {
			a.logger.Warn("close storage", "error", err)
		}
	}
}
