package sdk

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
)

// StartingFEN is the standard chess starting position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ChessConfig is the session configuration for chess games.
type ChessConfig struct {
	TimeControlSeconds int `json:"time_control_seconds,omitempty"`
	IncrementSeconds   int `json:"increment_seconds,omitempty"`
}

// ChessState is the live state of a chess session.
type ChessState struct {
	FEN           string   `json:"fen"`
	Moves         []string `json:"moves"`
	WhitePlayerID string   `json:"white_player_id"`
	BlackPlayerID string   `json:"black_player_id"`
	ActiveColor   string   `json:"active_color"`
	Result        string   `json:"result,omitempty"`
	DrawOfferedBy string   `json:"draw_offered_by,omitempty"`
}

// ChessClient is a SessionClient specialized for chess sessions.
type ChessClient struct {
	*SessionClient
}

// NewChessClient creates a client for chess sessions.
func NewChessClient(transport *Transport, logger *log.Logger, opts ...SessionOption) *ChessClient {
	return &ChessClient{SessionClient: NewSessionClient(transport, GameChess, logger, opts...)}
}

type chessPlaygroundRequest struct {
	AgentID  string       `json:"agent_id"`
	Config   *ChessConfig `json:"config,omitempty"`
	Opponent string       `json:"opponent,omitempty"`
}

// CreatePlayground creates a practice session from the starting position.
// With no opponent the same agent controls both colors.
func (c *ChessClient) CreatePlayground(ctx context.Context, agentID string, config *ChessConfig, opponent string) (*GameSession, error) {
	return c.create(ctx, "/games/playground/chess", chessPlaygroundRequest{
		AgentID:  agentID,
		Config:   config,
		Opponent: opponent,
	})
}

// CreateFromFEN creates a playground session seeded from a FEN position.
func (c *ChessClient) CreateFromFEN(ctx context.Context, agentID, fen string, config *ChessConfig) (*GameSession, error) {
	body := struct {
		chessPlaygroundRequest
		FEN string `json:"fen"`
	}{chessPlaygroundRequest{AgentID: agentID, Config: config}, fen}
	return c.create(ctx, "/games/playground/chess/from_fen", body)
}

// CreateFromMoves creates a playground session seeded by replaying a move
// list from the starting position.
func (c *ChessClient) CreateFromMoves(ctx context.Context, agentID string, moves []string, config *ChessConfig) (*GameSession, error) {
	body := struct {
		chessPlaygroundRequest
		Moves []string `json:"moves"`
	}{chessPlaygroundRequest{AgentID: agentID, Config: config}, moves}
	return c.create(ctx, "/games/playground/chess/from_moves", body)
}

// CreateFromState creates a playground session seeded from an explicit state.
func (c *ChessClient) CreateFromState(ctx context.Context, agentID string, state *ChessState, config *ChessConfig) (*GameSession, error) {
	body := struct {
		chessPlaygroundRequest
		State *ChessState `json:"state"`
	}{chessPlaygroundRequest{AgentID: agentID, Config: config}, state}
	return c.create(ctx, "/games/playground/chess/from_state", body)
}

// State decodes the latest applied snapshot as a chess state.
func (c *ChessClient) State() (*ChessState, error) {
	session := c.Session()
	if session == nil {
		return nil, fmt.Errorf("chess state: client not bound to a session")
	}
	var state ChessState
	if err := json.Unmarshal(session.State, &state); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("malformed chess state: %v", err)}
	}
	return &state, nil
}

// SubmitMove submits a move (UCI or SAN, as the server accepts) for the
// given player. expectedTurn carries the optimistic concurrency check; see
// SessionClient.SubmitTurn.
func (c *ChessClient) SubmitMove(ctx context.Context, playerID, move string, expectedTurn *int) (*TurnResult, error) {
	payload, err := json.Marshal(struct {
		Move string `json:"move"`
	}{Move: move})
	if err != nil {
		return nil, fmt.Errorf("encode move: %w", err)
	}
	return c.SubmitTurn(ctx, playerID, payload, TurnOptions{ExpectedTurn: expectedTurn})
}

// RequestAgentTurn asks the server to let the controlling agent choose the
// next move itself (no move payload).
func (c *ChessClient) RequestAgentTurn(ctx context.Context, playerID string, expectedTurn *int) (*TurnResult, error) {
	return c.SubmitTurn(ctx, playerID, nil, TurnOptions{ExpectedTurn: expectedTurn})
}
