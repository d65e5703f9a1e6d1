package sdk

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/agentarena/arena/cards"
)

// Poker playground defaults, applied whenever a seed omits them.
const (
	DefaultSmallBlind    = 10
	DefaultBigBlind      = 20
	DefaultStartingStack = 1000
)

// PokerConfig is the session configuration for poker games.
type PokerConfig struct {
	SmallBlind    int `json:"small_blind,omitempty"`
	BigBlind      int `json:"big_blind,omitempty"`
	StartingStack int `json:"starting_stack,omitempty"`
	MaxHands      int `json:"max_hands,omitempty"`
}

// DefaultPokerConfig returns the standard playground configuration.
func DefaultPokerConfig() *PokerConfig {
	return &PokerConfig{
		SmallBlind:    DefaultSmallBlind,
		BigBlind:      DefaultBigBlind,
		StartingStack: DefaultStartingStack,
	}
}

// PokerActionType enumerates the legal action verbs.
type PokerActionType string

const (
	ActionFold  PokerActionType = "fold"
	ActionCheck PokerActionType = "check"
	ActionCall  PokerActionType = "call"
	ActionRaise PokerActionType = "raise"
	ActionAllIn PokerActionType = "all_in"
)

// PokerAction is one betting decision.
type PokerAction struct {
	Type   PokerActionType `json:"type"`
	Amount int             `json:"amount,omitempty"`
}

// PokerPlayerState is one seat's view within the live state.
type PokerPlayerState struct {
	PlayerID  string       `json:"player_id"`
	Seat      int          `json:"seat"`
	Stack     int          `json:"stack"`
	Bet       int          `json:"bet"`
	Folded    bool         `json:"folded"`
	AllIn     bool         `json:"all_in"`
	HoleCards []cards.Card `json:"hole_cards,omitempty"`
}

// PokerState is the live state of a poker session.
type PokerState struct {
	HandNumber      int                `json:"hand_number"`
	Street          string             `json:"street"`
	Board           []cards.Card       `json:"board"`
	Pot             int                `json:"pot"`
	ToCall          int                `json:"to_call"`
	ButtonSeat      int                `json:"button_seat"`
	ActingPlayerID  string             `json:"acting_player_id,omitempty"`
	Players         []PokerPlayerState `json:"players"`
	SmallBlind      int                `json:"small_blind"`
	BigBlind        int                `json:"big_blind"`
	HandsRemaining  int                `json:"hands_remaining,omitempty"`
	WinnerPlayerID  string             `json:"winner_player_id,omitempty"`
}

// PokerSeed is an explicit starting state for a seeded playground. All fields
// are optional: an empty seed produces a session with the default config
// (small blind 10, big blind 20, starting stack 1000).
//
// Stacks is keyed by seat number ("0", "1") rather than agent ID, so the two
// seats of a self-play playground can start with different stacks.
type PokerSeed struct {
	Config     *PokerConfig   `json:"config,omitempty"`
	Stacks     map[string]int `json:"stacks,omitempty"`
	ButtonSeat *int           `json:"button_seat,omitempty"`
}

// PokerClient is a SessionClient specialized for poker sessions.
type PokerClient struct {
	*SessionClient
}

// NewPokerClient creates a client for poker sessions.
func NewPokerClient(transport *Transport, logger *log.Logger, opts ...SessionOption) *PokerClient {
	return &PokerClient{SessionClient: NewSessionClient(transport, GamePoker, logger, opts...)}
}

type pokerPlaygroundRequest struct {
	AgentID  string       `json:"agent_id"`
	Config   *PokerConfig `json:"config,omitempty"`
	Opponent string       `json:"opponent,omitempty"`
}

// CreatePlayground creates a practice session with default or explicit
// config. With no opponent the same agent plays both seats.
func (c *PokerClient) CreatePlayground(ctx context.Context, agentID string, config *PokerConfig, opponent string) (*GameSession, error) {
	return c.create(ctx, "/games/playground/poker", pokerPlaygroundRequest{
		AgentID:  agentID,
		Config:   config,
		Opponent: opponent,
	})
}

// CreateFromState creates a playground session seeded from an explicit state.
// An empty seed is valid and yields the default configuration.
func (c *PokerClient) CreateFromState(ctx context.Context, agentID string, seed *PokerSeed) (*GameSession, error) {
	if seed == nil {
		seed = &PokerSeed{}
	}
	body := struct {
		pokerPlaygroundRequest
		Seed *PokerSeed `json:"seed"`
	}{pokerPlaygroundRequest{AgentID: agentID}, seed}
	return c.create(ctx, "/games/playground/poker/from_state", body)
}

// State decodes the latest applied snapshot as a poker state.
func (c *PokerClient) State() (*PokerState, error) {
	session := c.Session()
	if session == nil {
		return nil, fmt.Errorf("poker state: client not bound to a session")
	}
	var state PokerState
	if err := json.Unmarshal(session.State, &state); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("malformed poker state: %v", err)}
	}
	return &state, nil
}

// SubmitAction submits a betting action for the given player. expectedTurn
// carries the optimistic concurrency check; see SessionClient.SubmitTurn.
func (c *PokerClient) SubmitAction(ctx context.Context, playerID string, action PokerAction, expectedTurn *int) (*TurnResult, error) {
	payload, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("encode action: %w", err)
	}
	return c.SubmitTurn(ctx, playerID, payload, TurnOptions{ExpectedTurn: expectedTurn})
}
