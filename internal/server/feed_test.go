package server

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentarena/arena/sdk"
)

func TestFeedDeliversBurstOfBumps(t *testing.T) {
	logger := log.New(io.Discard)
	srv := New(logger, WithSeed(42))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	transport := sdk.NewTransport(ts.URL, logger)
	ctx := context.Background()

	client := sdk.NewChessClient(transport, logger)
	session, err := client.CreatePlayground(ctx, "agent-1", nil, "")
	require.NoError(t, err)

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/games/" + session.ID + "/feed"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var snapshot feedMessage
	require.NoError(t, conn.ReadJSON(&snapshot))
	require.Equal(t, "snapshot", snapshot.Type)

	// Bump the session repeatedly with no pacing. Bumps landing while the
	// feed is between its snapshot read and its wait must still be delivered,
	// including the last one, which nothing after it would flush.
	sess, ok := srv.store.Get(session.ID)
	require.True(t, ok)

	const bumps = 25
	go func() {
		for i := 0; i < bumps; i++ {
			round := i + 1
			sess.Bump(func(snap *sdk.GameSession) {
				snap.Events = append(snap.Events, srv.newEvent(round, sdk.EventChessDrawOffered,
					sdk.ChessDrawOffered{PlayerID: "w"}))
			})
		}
	}()

	var rounds []int
	for len(rounds) < bumps {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg feedMessage
		require.NoError(t, conn.ReadJSON(&msg), "feed stalled with %d of %d events delivered", len(rounds), bumps)
		for _, ev := range msg.Events {
			rounds = append(rounds, ev.RoundNumber)
		}
	}

	require.Len(t, rounds, bumps)
	for i, round := range rounds {
		assert.Equal(t, i+1, round, "events must arrive in log order")
	}
}

func TestFeedStreamsEventsInOrder(t *testing.T) {
	logger := log.New(io.Discard)
	srv := New(logger, WithSeed(42))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	transport := sdk.NewTransport(ts.URL, logger)
	ctx := context.Background()

	client := sdk.NewChessClient(transport, logger)
	session, err := client.CreatePlayground(ctx, "agent-1", nil, "")
	require.NoError(t, err)

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/games/" + session.ID + "/feed"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	readMessage := func() feedMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg feedMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	// The connect frame carries the full log so far.
	snapshot := readMessage()
	require.Equal(t, "snapshot", snapshot.Type)
	require.Len(t, snapshot.Events, 1)
	assert.Equal(t, sdk.EventChessGameStarted, snapshot.Events[0].Type)

	// Each turn arrives as an ordered batch of only the new events.
	_, err = client.SubmitTurn(ctx, session.NextPlayerID, nil, sdk.TurnOptions{MoveOverride: "e2e4"})
	require.NoError(t, err)

	batch := readMessage()
	require.Equal(t, "events", batch.Type)
	require.Len(t, batch.Events, 1)
	assert.Equal(t, sdk.EventChessMovePlayed, batch.Events[0].Type)
	assert.Greater(t, batch.Version, snapshot.Version)

	result, err := client.SubmitTurn(ctx, session.Players[1].ID, nil, sdk.TurnOptions{MoveOverride: "e7e5"})
	require.NoError(t, err)

	second := readMessage()
	require.Len(t, second.Events, 1)
	assert.Equal(t, result.Events[0].ID, second.Events[0].ID, "feed order matches the log order")
	assert.Greater(t, second.Version, batch.Version)
}
