package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinsane/ClassicRides/internal/memory"
	"github.com/justinsane/ClassicRides/internal/pipeline"
)

func TestPublish_NeverBlocks(t *testing.T) {
	hub := NewEventHub()
	// Nothing is draining the hub; fill the buffer and keep publishing.
	for i := 0; i < 300; i++ {
		hub.Publish(pipeline.Event{Type: pipeline.EventStage})
	}
}

func TestEventFanOut(t *testing.T) {
	hub := NewEventHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	session := pipeline.NewSession(happyGen(), memory.NewMemStore(), hub)
	handlers := NewHandlers(happyGen(), session, memory.NewMemStore(), hub, "sk-test")
	srv := httptest.NewServer(NewRouter(handlers))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Publishing before the hub registers the client would drop the
	// event on the floor, which is allowed; wait for registration.
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Publish(pipeline.Event{
		Type:    pipeline.EventStage,
		Stage:   pipeline.StateNarrating,
		Message: "Gramps is tinkering in the garage...",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt pipeline.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	assert.Equal(t, pipeline.EventStage, evt.Type)
	assert.Equal(t, pipeline.StateNarrating, evt.Stage)
	assert.Equal(t, "Gramps is tinkering in the garage...", evt.Message)

	// Disconnecting unregisters the client.
	conn.Close()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
