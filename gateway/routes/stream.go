package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"nhooyr.io/websocket"

	"notelend/core/types"
	"notelend/gateway/middleware"
)

const (
	wsWriteTimeout = 10 * time.Second
	replayPageSize = 500
)

// streamMessage carries a committed event. Seq is the journal sequence
// number and is omitted only when no journal is configured.
type streamMessage struct {
	Seq   uint64       `json:"seq,omitempty"`
	Event *types.Event `json:"event"`
}

// stream upgrades to a websocket and relays committed events. A cursor
// query parameter replays journal entries after that sequence first.
func (h *handlers) stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Unavailable", "event stream disabled")
		return
	}
	var (
		cursor uint64
		replay bool
	)
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(w, "invalid cursor")
			return
		}
		cursor, replay = parsed, true
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := conn.CloseRead(r.Context())
	if err := h.relay(ctx, conn, cursor, replay); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

// relay subscribes before replaying so nothing committed during the replay
// is lost. Live deliveries at or below the last replayed sequence were
// already sent and are skipped.
func (h *handlers) relay(ctx context.Context, conn *websocket.Conn, cursor uint64, replay bool) error {
	updates, cancel := h.hub.Subscribe()
	defer cancel()

	last := cursor
	if replay && h.journal != nil {
		for {
			page, err := h.journal.Since(ctx, last, replayPageSize)
			if err != nil {
				return err
			}
			for _, entry := range page {
				last = entry.Seq
				if err := writeStreamMessage(ctx, conn, streamMessage{Seq: entry.Seq, Event: entry.Event}); err != nil {
					return err
				}
			}
			if len(page) < replayPageSize {
				break
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-updates:
			if !ok {
				return nil
			}
			if delivery.Seq != 0 && delivery.Seq <= last {
				continue
			}
			if err := writeStreamMessage(ctx, conn, streamMessage{Seq: delivery.Seq, Event: delivery.Event}); err != nil {
				return err
			}
		}
	}
}

func writeStreamMessage(ctx context.Context, conn *websocket.Conn, msg streamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
