package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/clearline/riskwatch/internal/events"
)

// LiveEventsHandler streams bus events to websocket clients.
type LiveEventsHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewLiveEventsHandler creates a new live events handler
func NewLiveEventsHandler(bus *events.Bus, log zerolog.Logger) *LiveEventsHandler {
	return &LiveEventsHandler{
		bus: bus,
		log: log.With().Str("handler", "live_events").Logger(),
	}
}

// ServeHTTP handles GET /api/events/live
// Upgrades to a websocket and forwards every bus event as JSON until
// the client disconnects.
func (h *LiveEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browser dashboards connect cross-origin in dev setups
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ch, unsubscribe := h.bus.Subscribe(64)
	defer unsubscribe()

	h.log.Debug().Msg("Websocket client connected")

	// The request context carries the server's request timeout, which
	// would sever healthy long-lived streams. Detach from it and let
	// CloseRead cancel the context when the client goes away.
	ctx := conn.CloseRead(context.WithoutCancel(r.Context()))
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "event bus closed")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				status := websocket.CloseStatus(err)
				if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
					h.log.Debug().Err(err).Msg("Websocket write failed")
				}
				return
			}
		}
	}
}
