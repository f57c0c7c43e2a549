package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"

	"notelend/crypto"
	"notelend/services/loans/journal"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// IdempotencyStore claims keys before the request runs and keeps the first
// response served for each.
type IdempotencyStore interface {
	ReserveIdempotency(ctx context.Context, rec *journal.IdempotencyKey) (bool, *journal.IdempotencyKey, error)
	CompleteIdempotency(ctx context.Context, key string, status int, response string) error
	ReleaseIdempotency(ctx context.Context, key string) error
}

// Idempotency replays the recorded response when a POST carries an
// Idempotency-Key already seen for the same caller. The key is reserved
// before the handler runs, so a concurrent duplicate gets 409 instead of
// executing twice. Responses of 500 and above release the key for retry.
func Idempotency(store IdempotencyStore, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
			if store == nil || key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > 128 {
				WriteError(w, http.StatusBadRequest, "InvalidIdempotencyKey", "idempotency key exceeds 128 bytes")
				return
			}
			caller := ""
			if raw, ok := CallerFromContext(r.Context()); ok {
				caller = crypto.FormatRaw(raw)
			}
			scoped := caller + ":" + key

			reserved, record, err := store.ReserveIdempotency(r.Context(), &journal.IdempotencyKey{
				Key:       scoped,
				Caller:    caller,
				RequestID: RequestIDFromContext(r.Context()),
				Method:    r.Method,
				Path:      r.URL.Path,
			})
			if err != nil {
				logger.Error("idempotency reserve failed", "error", err)
				WriteError(w, http.StatusServiceUnavailable, "Unavailable", "idempotency store unavailable")
				return
			}
			if !reserved {
				replay(w, r, record)
				return
			}

			recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			// Detached so a client disconnect cannot leave the key pending.
			ctx := context.WithoutCancel(r.Context())
			defer func() {
				if recovered := recover(); recovered != nil {
					_ = store.ReleaseIdempotency(ctx, scoped)
					panic(recovered)
				}
			}()
			next.ServeHTTP(recorder, r)
			if recorder.status >= http.StatusInternalServerError {
				if err := store.ReleaseIdempotency(ctx, scoped); err != nil {
					logger.Error("idempotency release failed", "error", err)
				}
				return
			}
			if err := store.CompleteIdempotency(ctx, scoped, recorder.status, recorder.buf.String()); err != nil {
				logger.Error("idempotency record failed", "error", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, r *http.Request, record *journal.IdempotencyKey) {
	if record.Method != r.Method || record.Path != r.URL.Path {
		WriteError(w, http.StatusUnprocessableEntity, "IdempotencyKeyReused", "idempotency key was used for a different request")
		return
	}
	if record.Status == journal.StatusPending {
		WriteError(w, http.StatusConflict, "IdempotencyKeyInFlight", "a request with this idempotency key is still running")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Idempotent-Replay", "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write([]byte(record.Response))
}

type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}
