package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// MatchmakingCoordinator drives the pairing state machine that precedes a
// ranked session: not_queued -> waiting -> matched | cancelled. It tracks a
// single ticket. It deliberately does NOT deduplicate concurrent joins for
// the same agent; keeping at most one active ticket per agent is the
// caller's responsibility.
type MatchmakingCoordinator struct {
	transport *Transport
	logger    *log.Logger

	mu     sync.Mutex
	ticket *MatchmakingTicket
}

// NewMatchmakingCoordinator creates a coordinator on the given transport.
func NewMatchmakingCoordinator(transport *Transport, logger *log.Logger) *MatchmakingCoordinator {
	return &MatchmakingCoordinator{
		transport: transport,
		logger:    logger.WithPrefix("matchmaking"),
	}
}

// Ticket returns the latest ticket snapshot, or nil when not queued.
func (m *MatchmakingCoordinator) Ticket() *MatchmakingTicket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticket
}

// Join queues the agent for a ranked game of the given kind. The returned
// ticket carries a waiting deadline; once TimeRemainingSeconds reaches zero
// the ticket is expired and the caller must stop treating it as live.
func (m *MatchmakingCoordinator) Join(ctx context.Context, kind GameKind, agentID string, config json.RawMessage) (*MatchmakingTicket, error) {
	body := struct {
		Kind    GameKind        `json:"kind"`
		AgentID string          `json:"agent_id"`
		Config  json.RawMessage `json:"config,omitempty"`
	}{Kind: kind, AgentID: agentID, Config: config}

	var ticket MatchmakingTicket
	if _, err := m.transport.do(ctx, request{
		method: http.MethodPost,
		path:   "/matchmaking/join",
		body:   body,
	}, &ticket); err != nil {
		return nil, fmt.Errorf("join matchmaking: %w", err)
	}

	m.mu.Lock()
	m.ticket = &ticket
	m.mu.Unlock()

	m.logger.Info("joined matchmaking queue",
		"ticket", ticket.ID, "kind", kind,
		"players", fmt.Sprintf("%d/%d", ticket.CurrentPlayers, ticket.MinPlayers))
	return &ticket, nil
}

// Status long-polls for a change to the ticket, using the same contract as
// session polling: the server holds the request for up to hold, and "no
// change" comes back as (nil, false, nil), a routine outcome rather than an
// error.
func (m *MatchmakingCoordinator) Status(ctx context.Context, hold time.Duration) (*MatchmakingTicket, bool, error) {
	m.mu.Lock()
	ticketID := ""
	if m.ticket != nil {
		ticketID = m.ticket.ID
	}
	m.mu.Unlock()
	if ticketID == "" {
		return nil, false, fmt.Errorf("matchmaking status: no active ticket")
	}

	query := url.Values{
		"ticket_id": {ticketID},
		"timeout":   {strconv.Itoa(int(hold / time.Second))},
	}

	var ticket MatchmakingTicket
	status, err := m.transport.do(ctx, request{
		method:     http.MethodGet,
		path:       "/matchmaking/status",
		query:      query,
		timeout:    hold + PollSlack,
		idempotent: true,
	}, &ticket)
	if err != nil {
		return nil, false, err
	}
	if status == http.StatusNoContent {
		return nil, false, nil
	}

	m.mu.Lock()
	m.ticket = &ticket
	m.mu.Unlock()

	if ticket.Status == TicketMatched && ticket.GameID != nil {
		m.logger.Info("matched", "ticket", ticket.ID, "session", *ticket.GameID)
	}
	return &ticket, true, nil
}

// Leave cancels the active ticket. Safe to call when the ticket already
// resolved; the server treats cancellation of a matched or missing ticket as
// a no-op.
func (m *MatchmakingCoordinator) Leave(ctx context.Context) error {
	m.mu.Lock()
	ticket := m.ticket
	m.mu.Unlock()
	if ticket == nil {
		return nil
	}

	body := struct {
		TicketID string  `json:"ticket_id"`
		GameID   *string `json:"session_id,omitempty"`
	}{TicketID: ticket.ID, GameID: ticket.GameID}

	if _, err := m.transport.do(ctx, request{
		method: http.MethodPost,
		path:   "/matchmaking/leave",
		body:   body,
	}, nil); err != nil {
		return fmt.Errorf("leave matchmaking: %w", err)
	}

	m.mu.Lock()
	if m.ticket != nil && m.ticket.ID == ticket.ID {
		m.ticket.Status = TicketCancelled
	}
	m.mu.Unlock()
	return nil
}

// WaitForMatch polls until the ticket resolves or its deadline expires.
// Returns the terminal ticket; callers check Status/Expired to distinguish
// matched from cancelled from timed out.
func (m *MatchmakingCoordinator) WaitForMatch(ctx context.Context, hold time.Duration) (*MatchmakingTicket, error) {
	for {
		ticket, changed, err := m.Status(ctx, hold)
		if err != nil {
			return nil, err
		}
		if !changed {
			// No change within the hold window; check the deadline on the
			// snapshot we already have, then go straight back to polling.
			if current := m.Ticket(); current != nil && current.Expired() {
				return current, nil
			}
			continue
		}
		if ticket.Terminal() {
			return ticket, nil
		}
	}
}
