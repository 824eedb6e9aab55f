package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/clearline/riskwatch/internal/events"
)

func TestLiveEventsOutlivesRequestTimeout(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	handler := NewLiveEventsHandler(bus, zerolog.Nop())

	r := chi.NewRouter()
	r.Use(middleware.Timeout(100 * time.Millisecond))
	r.Get("/api/events/live", handler.ServeHTTP)

	ts := httptest.NewServer(r)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/live"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Publish only after the request deadline has long expired. The
	// stream must still be alive to deliver it.
	time.Sleep(300 * time.Millisecond)
	bus.Publish(events.ScanCompleted, "scanner", map[string]interface{}{"scan_id": "s1"})

	var got events.Event
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, events.ScanCompleted, got.Type)
	assert.Equal(t, "scanner", got.Module)
}
