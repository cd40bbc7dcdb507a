package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"askpurposely/internal/generator"
	"askpurposely/internal/queue"
	"askpurposely/internal/seed"
)

func TestWSReaderStaysResponsiveDuringAsk(t *testing.T) {
	gen := generator.NewFake()
	gen.Block = make(chan struct{})
	defer close(gen.Block)

	registry := NewRegistry(func(ctx context.Context, userID string) *queue.Service {
		return queue.New(ctx, userID, seed.NewMemoryStore(), gen, nil, queue.Config{MinQueue: 1})
	}, time.Millisecond)
	t.Cleanup(registry.CloseAll)
	registry.GetOrCreate(context.Background(), "u1")

	mux := http.NewServeMux()
	NewHandler(registry).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ask/ws?user_id=u1"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	// The ask hangs inside the generator; a ping sent afterwards must still
	// be answered.
	require.NoError(t, conn.WriteJSON(wsInbound{Type: "ask", Question: "Should I plan a third date already?"}))
	require.NoError(t, conn.WriteJSON(wsInbound{Type: "ping"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var out wsOutbound
		require.NoError(t, conn.ReadJSON(&out))
		if out.Type == "pong" {
			return
		}
	}
}
