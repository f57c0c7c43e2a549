package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"notelend/observability/logging"
	telemetry "notelend/observability/otel"
	"notelend/services/loansd/config"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/loansd/config.yaml", "path to loansd config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	env := cfg.Environment
	if value := strings.TrimSpace(os.Getenv("NOTELEND_ENV")); value != "" {
		env = value
	}
	logger, closer := logging.SetupWithOptions("loansd", env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer closer.Close()

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv("loansd", env, os.Getenv))
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := newApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("start loansd: %v", err)
	}
	defer application.close()

	grpcListener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Fatalf("listen on %s: %v", cfg.ListenAddress, err)
	}
	if cfg.TLS.AllowInsecure {
		tcpAddr, _ := grpcListener.Addr().(*net.TCPAddr)
		loopback := tcpAddr != nil && tcpAddr.IP != nil && tcpAddr.IP.IsLoopback()
		if !cfg.Development() && !loopback {
			log.Fatalf("plaintext loansd mode is restricted to loopback listeners or dev environment")
		}
	}
	httpListener, err := net.Listen("tcp", cfg.Gateway.ListenAddress)
	if err != nil {
		log.Fatalf("listen on %s: %v", cfg.Gateway.ListenAddress, err)
	}

	if err := application.serve(ctx, grpcListener, httpListener); err != nil {
		logger.Error("loansd stopped", "error", err)
		os.Exit(1)
	}
}
