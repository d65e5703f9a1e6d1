package server

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentarena/arena/sdk"
)

// scriptedLine is the canned opening the playground server advances through.
// The server carries no chess engine (move legality is out of scope), so
// positions come from this line regardless of the move text a turn submits;
// the submitted text is still recorded so replays show what the caller sent.
var scriptedLine = []struct {
	move string
	fen  string
}{
	{"e2e4", "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"},
	{"e7e5", "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2"},
	{"g1f3", "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKB1R b KQkq - 1 2"},
	{"b8c6", "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/8/PPPP1PPP/RNBQKB1R w KQkq - 2 3"},
	{"f1b5", "r1bqkbnr/pppp1ppp/2n5/1B2p3/4P3/8/PPPP1PPP/RNBQK2R b KQkq - 3 3"},
	{"a7a6", "r1bqkbnr/1ppp1ppp/p1n5/1B2p3/4P3/8/PPPP1PPP/RNBQK2R w KQkq - 0 4"},
	{"b5a4", "r1bqkbnr/1ppp1ppp/p1n5/4p3/B3P3/8/PPPP1PPP/RNBQK2R b KQkq - 1 4"},
	{"g8f6", "r1bqkb1r/1ppp1ppp/p1n2n2/4p3/B3P3/8/PPPP1PPP/RNBQK2R w KQkq - 2 5"},
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal internal payload: %v", err))
	}
	return data
}

func (s *Server) newEvent(round int, typ string, payload any) sdk.Event {
	return sdk.Event{
		ID:          uuid.NewString(),
		Type:        typ,
		Timestamp:   s.clock.Now(),
		RoundNumber: round,
		Payload:     mustJSON(payload),
	}
}

// newChessSession builds a session snapshot at version 1, optionally seeded
// from an explicit FEN or a move-list prefix.
func (s *Server) newChessSession(players []sdk.Player, config *sdk.ChessConfig, playground bool, initialFEN string, seedMoves []string) (sdk.GameSession, error) {
	if len(players) != 2 {
		return sdk.GameSession{}, fmt.Errorf("chess requires exactly two players, got %d", len(players))
	}
	players[0].Seat = "white"
	players[1].Seat = "black"

	if config == nil {
		config = &sdk.ChessConfig{}
	}
	if initialFEN == "" {
		initialFEN = sdk.StartingFEN
	}

	state := sdk.ChessState{
		FEN:           initialFEN,
		WhitePlayerID: players[0].ID,
		BlackPlayerID: players[1].ID,
		ActiveColor:   "white",
	}

	events := []sdk.Event{
		s.newEvent(0, sdk.EventChessGameStarted, sdk.ChessGameStarted{
			WhitePlayerID:      players[0].ID,
			BlackPlayerID:      players[1].ID,
			InitialFEN:         initialFEN,
			TimeControlSeconds: config.TimeControlSeconds,
		}),
	}

	for i, move := range seedMoves {
		fen := state.FEN
		if i < len(scriptedLine) {
			fen = scriptedLine[i].fen
		}
		actor := players[i%2].ID
		events = append(events, s.newEvent(i+1, sdk.EventChessMovePlayed, sdk.ChessMovePlayed{
			PlayerID: actor,
			Move:     move,
			FENAfter: fen,
		}))
		state.Moves = append(state.Moves, move)
		state.FEN = fen
	}
	if len(seedMoves)%2 == 1 {
		state.ActiveColor = "black"
	}

	next := players[len(seedMoves)%2].ID

	return sdk.GameSession{
		ID:           uuid.NewString(),
		Kind:         sdk.GameChess,
		Version:      1,
		Status:       sdk.SessionInProgress,
		State:        mustJSON(state),
		Events:       events,
		Config:       mustJSON(config),
		Players:      players,
		TurnNumber:   len(seedMoves) + 1,
		NextPlayerID: next,
		IsPlayground: playground,
		CreatedAt:    s.clock.Now(),
	}, nil
}

// applyChessTurn advances the scripted line by one move. The snapshot is
// mutated in place; Try handles the version bump.
func (s *Server) applyChessTurn(snap *sdk.GameSession, req turnRequest) ([]sdk.Event, error) {
	var state sdk.ChessState
	if err := json.Unmarshal(snap.State, &state); err != nil {
		return nil, fmt.Errorf("corrupt chess state: %w", err)
	}

	move := req.MoveOverride
	if move == "" && len(req.Turn) > 0 {
		var turn struct {
			Move string `json:"move"`
		}
		if err := json.Unmarshal(req.Turn, &turn); err != nil {
			return nil, &badRequestError{message: "malformed turn payload"}
		}
		move = turn.Move
	}

	ply := len(state.Moves)
	var fen string
	switch {
	case ply < len(scriptedLine):
		fen = scriptedLine[ply].fen
		if move == "" {
			move = scriptedLine[ply].move
		}
	default:
		// Script exhausted: finish the game.
		finish := s.newEvent(snap.TurnNumber, sdk.EventChessGameFinished, sdk.ChessGameFinished{
			Result: "1/2-1/2",
			Reason: "scripted line complete",
		})
		state.Result = "1/2-1/2"
		snap.State = mustJSON(state)
		snap.Status = sdk.SessionFinished
		snap.NextPlayerID = ""
		snap.Events = append(snap.Events, finish)
		return []sdk.Event{finish}, nil
	}

	event := s.newEvent(snap.TurnNumber, sdk.EventChessMovePlayed, sdk.ChessMovePlayed{
		PlayerID: req.PlayerID,
		Move:     move,
		FENAfter: fen,
	})

	state.Moves = append(state.Moves, move)
	state.FEN = fen
	if state.ActiveColor == "white" {
		state.ActiveColor = "black"
	} else {
		state.ActiveColor = "white"
	}

	snap.State = mustJSON(state)
	snap.TurnNumber++
	snap.NextPlayerID = otherPlayer(snap.Players, req.PlayerID)
	snap.Events = append(snap.Events, event)

	return []sdk.Event{event}, nil
}

// finalizeChessTimeout force-finishes the game against the player whose
// clock expired.
func (s *Server) finalizeChessTimeout(snap *sdk.GameSession, playerID string) ([]sdk.Event, error) {
	var state sdk.ChessState
	if err := json.Unmarshal(snap.State, &state); err != nil {
		return nil, fmt.Errorf("corrupt chess state: %w", err)
	}

	result := "0-1"
	if playerID == state.BlackPlayerID {
		result = "1-0"
	}

	event := s.newEvent(snap.TurnNumber, sdk.EventChessGameFinished, sdk.ChessGameFinished{
		Result: result,
		Reason: "time forfeit",
	})

	state.Result = result
	snap.State = mustJSON(state)
	snap.Status = sdk.SessionFinished
	snap.NextPlayerID = ""
	snap.Events = append(snap.Events, event)

	return []sdk.Event{event}, nil
}

func otherPlayer(players []sdk.Player, playerID string) string {
	for _, p := range players {
		if p.ID != playerID {
			return p.ID
		}
	}
	return ""
}

func hasPlayer(players []sdk.Player, playerID string) bool {
	for _, p := range players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// agentPlayers builds the player roster for a set of agent version IDs.
func agentPlayers(agentIDs ...string) []sdk.Player {
	players := make([]sdk.Player, 0, len(agentIDs))
	for _, id := range agentIDs {
		players = append(players, sdk.Player{
			ID:             uuid.NewString(),
			AgentVersionID: id,
			DisplayName:    id,
		})
	}
	return players
}
