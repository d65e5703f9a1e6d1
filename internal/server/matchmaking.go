package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/agentarena/arena/sdk"
)

// mmTicket is the server-side record of one pairing request.
type mmTicket struct {
	mu       sync.Mutex
	snapshot sdk.MatchmakingTicket
	agentID  string
	config   json.RawMessage

	// changed is closed exactly once, on the waiting -> terminal
	// transition (or on a player-count change before that).
	changed chan struct{}
}

// Matchmaker pairs waiting tickets into ranked sessions. Tickets are paired
// first-come-first-served per game kind; two tickets from the same agent can
// pair with each other, since deduplication is the caller's job.
type Matchmaker struct {
	logger *log.Logger
	clock  quartz.Clock
	window time.Duration

	newSession func(kind sdk.GameKind, agentIDs []string, config json.RawMessage) (sdk.GameSession, error)

	mu      sync.Mutex
	tickets map[string]*mmTicket
	waiting map[sdk.GameKind][]*mmTicket
}

// NewMatchmaker creates a matchmaker. newSession is called to create the
// ranked session when a pair forms.
func NewMatchmaker(logger *log.Logger, clock quartz.Clock, window time.Duration,
	newSession func(sdk.GameKind, []string, json.RawMessage) (sdk.GameSession, error)) *Matchmaker {
	return &Matchmaker{
		logger:     logger.WithPrefix("matchmaker"),
		clock:      clock,
		window:     window,
		newSession: newSession,
		tickets:    make(map[string]*mmTicket),
		waiting:    make(map[sdk.GameKind][]*mmTicket),
	}
}

// Join enqueues a pairing request. If a partner is already waiting the
// session is created immediately and the returned ticket is matched.
func (m *Matchmaker) Join(kind sdk.GameKind, agentID string, config json.RawMessage) (sdk.MatchmakingTicket, error) {
	ticket := &mmTicket{
		agentID: agentID,
		config:  config,
		changed: make(chan struct{}),
		snapshot: sdk.MatchmakingTicket{
			ID:             uuid.NewString(),
			Kind:           kind,
			Status:         sdk.TicketWaiting,
			CurrentPlayers: 1,
			MinPlayers:     2,
			MaxPlayers:     2,
			Deadline:       m.clock.Now().Add(m.window),
		},
	}

	m.mu.Lock()
	m.tickets[ticket.snapshot.ID] = ticket

	// Pop the first ticket that is still actually waiting; a sweep may have
	// cancelled queue entries we have not pruned yet.
	var partner *mmTicket
	queue := m.waiting[kind]
	for len(queue) > 0 {
		candidate := queue[0]
		queue = queue[1:]
		candidate.mu.Lock()
		live := candidate.snapshot.Status == sdk.TicketWaiting
		candidate.mu.Unlock()
		if live {
			partner = candidate
			break
		}
	}

	if partner == nil {
		m.waiting[kind] = append(queue, ticket)
		m.mu.Unlock()
		m.logger.Info("ticket queued", "ticket", ticket.snapshot.ID, "kind", kind, "agent", agentID)
		return m.ticketSnapshot(ticket), nil
	}
	m.waiting[kind] = queue
	m.mu.Unlock()

	snap, err := m.newSession(kind, []string{partner.agentID, agentID}, config)
	if err != nil {
		// Put the partner back and fail the join.
		m.mu.Lock()
		m.waiting[kind] = append([]*mmTicket{partner}, m.waiting[kind]...)
		delete(m.tickets, ticket.snapshot.ID)
		m.mu.Unlock()
		return sdk.MatchmakingTicket{}, err
	}

	gameID := snap.ID
	for _, t := range []*mmTicket{partner, ticket} {
		t.mu.Lock()
		if t.snapshot.Status == sdk.TicketWaiting {
			t.snapshot.Status = sdk.TicketMatched
			t.snapshot.GameID = &gameID
			t.snapshot.CurrentPlayers = 2
			close(t.changed)
		}
		t.mu.Unlock()
	}

	m.logger.Info("tickets matched", "session", gameID, "kind", kind,
		"agents", []string{partner.agentID, agentID})
	return m.ticketSnapshot(ticket), nil
}

// Wait blocks until the ticket changes, the hold elapses, or ctx is done.
// A ticket that is already terminal returns immediately.
func (m *Matchmaker) Wait(ctx context.Context, ticketID string, hold time.Duration) (sdk.MatchmakingTicket, bool, bool) {
	m.mu.Lock()
	ticket, ok := m.tickets[ticketID]
	m.mu.Unlock()
	if !ok {
		return sdk.MatchmakingTicket{}, false, false
	}

	ticket.mu.Lock()
	terminal := ticket.snapshot.Status != sdk.TicketWaiting
	changed := ticket.changed
	ticket.mu.Unlock()

	if terminal {
		return m.ticketSnapshot(ticket), true, true
	}

	timeout := make(chan struct{})
	if hold > 0 {
		timer := m.clock.AfterFunc(hold, func() { close(timeout) })
		defer timer.Stop()
	} else {
		close(timeout)
	}

	select {
	case <-changed:
		return m.ticketSnapshot(ticket), true, true
	case <-timeout:
		// If the deadline lapsed during the hold, report the expired
		// snapshot (timeRemaining <= 0) instead of "no change" so the
		// caller can detect expiry without waiting for the sweep.
		if snap := m.ticketSnapshot(ticket); snap.TimeRemainingSeconds <= 0 {
			return snap, true, true
		}
		return sdk.MatchmakingTicket{}, false, true
	case <-ctx.Done():
		return sdk.MatchmakingTicket{}, false, true
	}
}

// Leave cancels a waiting ticket. Cancelling a matched, cancelled, or
// missing ticket is a no-op.
func (m *Matchmaker) Leave(ticketID string) {
	m.mu.Lock()
	ticket, ok := m.tickets[ticketID]
	m.mu.Unlock()
	if !ok {
		return
	}

	ticket.mu.Lock()
	if ticket.snapshot.Status == sdk.TicketWaiting {
		ticket.snapshot.Status = sdk.TicketCancelled
		close(ticket.changed)
	}
	ticket.mu.Unlock()

	m.removeFromQueue(ticket)
	m.logger.Info("ticket cancelled", "ticket", ticketID)
}

// Sweep cancels tickets whose waiting deadline has passed and drops terminal
// tickets that nobody will poll again.
func (m *Matchmaker) Sweep() {
	now := m.clock.Now()

	m.mu.Lock()
	expired := make([]*mmTicket, 0)
	for _, ticket := range m.tickets {
		ticket.mu.Lock()
		if ticket.snapshot.Status == sdk.TicketWaiting && now.After(ticket.snapshot.Deadline) {
			ticket.snapshot.Status = sdk.TicketCancelled
			close(ticket.changed)
			expired = append(expired, ticket)
		}
		ticket.mu.Unlock()
	}
	m.mu.Unlock()

	for _, ticket := range expired {
		m.removeFromQueue(ticket)
		m.logger.Info("ticket expired", "ticket", ticket.snapshot.ID)
	}
}

func (m *Matchmaker) removeFromQueue(ticket *mmTicket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.waiting[ticket.snapshot.Kind]
	for i, t := range queue {
		if t == ticket {
			m.waiting[ticket.snapshot.Kind] = append(queue[:i], queue[i+1:]...)
			break
		}
	}
}

func (s *Server) handleMatchmakingJoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind    sdk.GameKind    `json:"kind"`
		AgentID string          `json:"agent_id"`
		Config  json.RawMessage `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !req.Kind.Valid() {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown game kind %q", req.Kind))
		return
	}
	if req.AgentID == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "agent_id is required")
		return
	}

	ticket, err := s.matchmaker.Join(req.Kind, req.AgentID, req.Config)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, ticket)
}

func (s *Server) handleMatchmakingStatus(w http.ResponseWriter, r *http.Request) {
	ticketID := r.URL.Query().Get("ticket_id")
	holdSeconds, _ := strconv.Atoi(r.URL.Query().Get("timeout"))
	hold := min(time.Duration(holdSeconds)*time.Second, maxHold)

	ticket, changed, found := s.matchmaker.Wait(r.Context(), ticketID, hold)
	if !found {
		s.writeError(w, http.StatusNotFound, "ticket not found")
		return
	}
	if !changed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, ticket)
}

func (s *Server) handleMatchmakingLeave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TicketID string `json:"ticket_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.matchmaker.Leave(req.TicketID)
	w.WriteHeader(http.StatusNoContent)
}

// ticketSnapshot copies the ticket with the countdown computed at call time.
func (m *Matchmaker) ticketSnapshot(ticket *mmTicket) sdk.MatchmakingTicket {
	ticket.mu.Lock()
	defer ticket.mu.Unlock()
	snap := ticket.snapshot
	snap.TimeRemainingSeconds = ticket.snapshot.Deadline.Sub(m.clock.Now()).Seconds()
	return snap
}
