package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AdamBeresnev/padel-tournament/internal/events"
	"github.com/AdamBeresnev/padel-tournament/internal/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversEventsToTournamentRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.Nop())
	go hub.Run(ctx)

	tournamentID := uuid.New()
	room := RoomFor(tournamentID)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, room)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount(room) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Notify(ctx, events.New(events.MatchUpdated, tournamentID, uuid.New(), nil)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var received events.Event
	require.NoError(t, json.Unmarshal(data, &received))
	assert.Equal(t, events.MatchUpdated, received.Type)
	assert.Equal(t, tournamentID, received.TournamentID)
}

func TestBroadcastToEmptyRoom(t *testing.T) {
	hub := NewHub(logger.Nop())
	assert.NoError(t, hub.Broadcast("tournament_nobody", map[string]string{"type": "noop"}))
	assert.Zero(t, hub.ClientCount("tournament_nobody"))
}
