package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"notelend/core/events"
	"notelend/gateway/middleware"
	"notelend/services/loans/engine"
	"notelend/services/loans/journal"
)

const (
	// ScopeRead gates query routes, ScopeWrite every mutating route.
	ScopeRead  = "loans:read"
	ScopeWrite = "loans:write"

	requestBodyLimit = 1 << 20
)

// Service is the loan backend the HTTP surface drives.
type Service interface {
	engine.Engine
	engine.Integrator
}

type Config struct {
	Service        Service
	Journal        *journal.Journal
	Hub            *events.Hub
	Authenticator  *middleware.Authenticator
	RateLimiter    *middleware.RateLimiter
	Observability  *middleware.Observability
	CORS           middleware.CORSConfig
	MetricsHandler http.Handler
	HealthHandler  http.Handler
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// New assembles the chi router serving /v1 plus health and metrics.
func New(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	h := &handlers{svc: cfg.Service, journal: cfg.Journal, hub: cfg.Hub, logger: logger, timeout: timeout}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware)
	}

	health := cfg.HealthHandler
	if health == nil {
		health = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
	}
	r.Handle("/healthz", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	auth := func(scopes ...string) func(http.Handler) http.Handler {
		if cfg.Authenticator == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return cfg.Authenticator.Middleware(scopes...)
	}
	limit := func(key string) func(http.Handler) http.Handler {
		if cfg.RateLimiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return cfg.RateLimiter.Middleware(key)
	}
	var idempotency func(http.Handler) http.Handler
	if cfg.Journal != nil {
		idempotency = middleware.Idempotency(cfg.Journal, logger)
	} else {
		idempotency = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(read chi.Router) {
			read.Use(auth(ScopeRead), limit("read"))
			read.Get("/loans/{id}", h.getLoan)
			read.Get("/loans/{id}/repay-amount", h.repayAmount)
			read.Get("/loans/{id}/liquidatable", h.liquidatable)
			read.Get("/loans/{id}/events", h.loanEvents)
			read.Get("/borrowers/{address}/loans", h.activeLoans)
			read.Get("/positions/{vault}/{id}", h.getPosition)
			read.Get("/balances/{address}/{token}", h.balance)
			read.Get("/events/stream", h.stream)
		})
		v1.Group(func(write chi.Router) {
			write.Use(auth(ScopeWrite), limit("write"), idempotency)
			write.Post("/loans", h.initiateLoan)
			write.Post("/loans/{id}/update", h.updateLoan)
			write.Post("/loans/{id}/repay", h.repay)
			write.Post("/loans/{id}/liquidate", h.liquidate)
			write.Post("/loans/{id}/collateral/deposit", h.deposit)
			write.Post("/loans/{id}/collateral/withdraw", h.withdraw)
			write.Post("/loans/{id}/notes/{kind}/transfer", h.transferNote)
			write.Post("/positions", h.openPosition)
			write.Post("/positions/{vault}/{id}/fund", h.fundPosition)
			write.Post("/positions/{vault}/{id}/approve", h.approvePosition)
			write.Post("/bank/approve", h.approveSpending)
			write.Post("/holders", h.registerHolder)
			write.Post("/holders/signers", h.setHolderSigner)
		})
	})
	return r
}
