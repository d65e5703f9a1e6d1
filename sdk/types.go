// Package sdk is the client for the arena game session protocol: long-poll
// state synchronization under optimistic concurrency, turn submission, event
// log replay, and matchmaking.
package sdk

import (
	"encoding/json"
	"time"
)

// GameKind identifies which game a session plays.
type GameKind string

const (
	GameChess GameKind = "chess"
	GamePoker GameKind = "poker"
)

// Valid reports whether the kind is one the protocol knows about.
func (k GameKind) Valid() bool {
	return k == GameChess || k == GamePoker
}

// SessionStatus is the authoritative lifecycle status of a session.
type SessionStatus string

const (
	SessionWaiting    SessionStatus = "waiting"
	SessionInProgress SessionStatus = "in_progress"
	SessionFinished   SessionStatus = "finished"
	SessionCancelled  SessionStatus = "cancelled"
)

// Player is a participant in a session. Seat carries the game-specific seat
// attribute: "white"/"black" for chess, a numeric seat string for poker.
type Player struct {
	ID             string `json:"id"`
	AgentVersionID string `json:"agent_version_id"`
	DisplayName    string `json:"display_name"`
	Rating         *int   `json:"rating,omitempty"`
	Seat           string `json:"seat,omitempty"`
}

// Event is one entry in a session's authoritative event log. Payload is
// decoded per game kind by DecodeChessEvent / DecodePokerEvent; the set of
// types is closed per kind.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Timestamp   time.Time       `json:"timestamp"`
	RoundNumber int             `json:"round_number"`
	Payload     json.RawMessage `json:"payload"`
}

// GameSession is a snapshot of a remote session at a specific version.
// Version only ever increases; the state at version V is a pure function of
// the event prefix events[0..V].
type GameSession struct {
	ID           string          `json:"id"`
	Kind         GameKind        `json:"kind"`
	Version      int64           `json:"version"`
	Status       SessionStatus   `json:"status"`
	State        json.RawMessage `json:"state"`
	Events       []Event         `json:"events"`
	Config       json.RawMessage `json:"config"`
	Players      []Player        `json:"players"`
	TurnNumber   int             `json:"turn_number"`
	NextPlayerID string          `json:"next_player_id,omitempty"`
	IsPlayground bool            `json:"is_playground"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TurnResult is produced only by a successful turn submission round trip.
type TurnResult struct {
	State        json.RawMessage `json:"state"`
	Events       []Event         `json:"events"`
	Version      int64           `json:"version"`
	TurnNumber   int             `json:"turn_number"`
	IsFinished   bool            `json:"is_finished"`
	NextPlayerID string          `json:"next_player_id,omitempty"`

	// CreditsRemaining reports the caller's resource balance after the
	// authoritative side ran the turn. Informational only, never part of
	// game state.
	CreditsRemaining *int64 `json:"credits_remaining,omitempty"`
}

// TicketStatus is the matchmaking ticket state machine:
// not_queued -> waiting -> matched | cancelled.
type TicketStatus string

const (
	TicketNotQueued TicketStatus = "not_queued"
	TicketWaiting   TicketStatus = "waiting"
	TicketMatched   TicketStatus = "matched"
	TicketCancelled TicketStatus = "cancelled"
)

// MatchmakingTicket is a snapshot of a pairing request.
type MatchmakingTicket struct {
	ID             string       `json:"id"`
	Kind           GameKind     `json:"kind"`
	GameID         *string      `json:"game_id,omitempty"`
	Status         TicketStatus `json:"status"`
	CurrentPlayers int          `json:"current_players"`
	MinPlayers     int          `json:"min_players"`
	MaxPlayers     int          `json:"max_players"`
	Deadline       time.Time    `json:"deadline"`

	// TimeRemainingSeconds counts down to the waiting deadline. At or below
	// zero the ticket is expired: a terminal condition callers must render
	// distinctly from "still waiting".
	TimeRemainingSeconds float64 `json:"time_remaining_seconds"`
}

// Expired reports whether the ticket's waiting deadline has passed.
func (t *MatchmakingTicket) Expired() bool {
	return t.Status == TicketWaiting && t.TimeRemainingSeconds <= 0
}

// Terminal reports whether the ticket can no longer transition.
func (t *MatchmakingTicket) Terminal() bool {
	return t.Status == TicketMatched || t.Status == TicketCancelled || t.Expired()
}
