package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentarena/arena/sdk"
)

// feedMessage is one frame on the spectator stream.
type feedMessage struct {
	Type    string      `json:"type"`
	Version int64       `json:"version,omitempty"`
	Events  []sdk.Event `json:"events,omitempty"`
}

// handleFeed upgrades to a websocket and streams the session's events in
// order: the full log on connect, then each batch appended by a version
// bump. Read-only; the sync protocol itself stays HTTP long-poll.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("feed upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Drain the read side so we notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snap := sess.Snapshot()
	sent := len(snap.Events)
	if err := conn.WriteJSON(feedMessage{Type: "snapshot", Version: snap.Version, Events: snap.Events}); err != nil {
		return
	}

	for {
		// Grab the channel before re-reading the snapshot: a bump landing
		// between the two closes the channel we hold, and a bump landing
		// before the channel grab is visible in the snapshot. Blocking first
		// would sleep through any bump in that window until the one after it.
		changed := sess.WaitChanged()

		snap = sess.Snapshot()
		if len(snap.Events) > sent {
			batch := snap.Events[sent:]
			sent = len(snap.Events)
			if err := conn.WriteJSON(feedMessage{Type: "events", Version: snap.Version, Events: batch}); err != nil {
				return
			}
			continue
		}

		select {
		case <-changed:
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
