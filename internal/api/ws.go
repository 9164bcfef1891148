package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itstheanurag/judgexec/internal/records"
)

const writeWait = 10 * time.Second

// Feed streams published run records. An empty requestID means every record.
type Feed interface {
	Subscribe(ctx context.Context, requestID string) (<-chan *records.Record, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Stream upgrades to a websocket and forwards run records as JSON until the
// peer goes away.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		http.Error(w, "live feed not configured", http.StatusServiceUnavailable)
		return
	}
	requestID := r.URL.Query().Get("request_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	recs, err := h.feed.Subscribe(ctx, requestID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to subscribe to run records")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable"),
			time.Now().Add(writeWait))
		return
	}

	// The read loop only notices the peer closing.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-recs:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(rec); err != nil {
				h.logger.Debug().Err(err).Str("request_id", rec.ID).Msg("websocket write failed")
				return
			}
		}
	}
}
