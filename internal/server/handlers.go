package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentarena/arena/sdk"
)

// Hold windows beyond this are clamped so a stuck client cannot pin a
// handler goroutine indefinitely.
const maxHold = 60 * time.Second

// turnRequest is the wire shape of POST /games/{id}/turns.
type turnRequest struct {
	PlayerID     string          `json:"player_id"`
	Turn         json.RawMessage `json:"turn,omitempty"`
	MoveOverride string          `json:"move_override,omitempty"`
	ExpectedTurn *int            `json:"expected_turn,omitempty"`
}

// badRequestError maps to 422: the request was understood and rejected.
type badRequestError struct {
	message string
}

func (e *badRequestError) Error() string { return e.message }

// conflictError maps to 409: the optimistic-concurrency check failed.
type conflictError struct {
	current  int
	expected int
}

func (e *conflictError) Error() string {
	return fmt.Sprintf("turn %d already applied (current turn %d)", e.expected, e.current)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/games", s.handleCreateRanked)
	r.Post("/games/playground/chess", s.handleCreateChessPlayground)
	r.Post("/games/playground/chess/from_fen", s.handleCreateChessPlayground)
	r.Post("/games/playground/chess/from_moves", s.handleCreateChessPlayground)
	r.Post("/games/playground/chess/from_state", s.handleCreateChessPlayground)
	r.Post("/games/playground/poker", s.handleCreatePokerPlayground)
	r.Post("/games/playground/poker/from_state", s.handleCreatePokerPlayground)

	r.Get("/games/{id}", s.handlePollGame)
	r.Post("/games/{id}/turns", s.handleSubmitTurn)
	r.Post("/games/{id}/timeout", s.handleTimeout)
	r.Get("/games/{id}/events", s.handleListEvents)
	r.Get("/games/{kind}/{id}/state_at_event/{index}", s.handleStateAtEvent)
	r.Delete("/games/{id}", s.handleDeleteGame)
	r.Get("/games/{id}/feed", s.handleFeed)

	r.Post("/matchmaking/join", s.handleMatchmakingJoin)
	r.Get("/matchmaking/status", s.handleMatchmakingStatus)
	r.Post("/matchmaking/leave", s.handleMatchmakingLeave)

	return r
}

func (s *Server) handleCreateRanked(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind     sdk.GameKind    `json:"kind"`
		Config   json.RawMessage `json:"config"`
		AgentIDs []string        `json:"agent_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !req.Kind.Valid() {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown game kind %q", req.Kind))
		return
	}
	if len(req.AgentIDs) != 2 {
		s.writeError(w, http.StatusUnprocessableEntity, "ranked sessions require exactly two agents")
		return
	}

	snap, err := s.createSession(req.Kind, req.AgentIDs, req.Config, false, nil)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.logger.Info("ranked session created", "session", snap.ID, "kind", snap.Kind)
	s.writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": snap.ID,
		"message":    fmt.Sprintf("ranked %s session created", snap.Kind),
	})
}

// createSession builds and stores a session for the given agents, parsing
// the kind-specific config shape.
func (s *Server) createSession(kind sdk.GameKind, agentIDs []string, rawConfig json.RawMessage, playground bool, pokerSeed *sdk.PokerSeed) (sdk.GameSession, error) {
	players := agentPlayers(agentIDs...)

	var snap sdk.GameSession
	var err error
	switch kind {
	case sdk.GameChess:
		var config *sdk.ChessConfig
		if len(rawConfig) > 0 {
			config = &sdk.ChessConfig{}
			if uerr := json.Unmarshal(rawConfig, config); uerr != nil {
				return sdk.GameSession{}, fmt.Errorf("malformed chess config")
			}
		}
		snap, err = s.newChessSession(players, config, playground, "", nil)
	case sdk.GamePoker:
		var config *sdk.PokerConfig
		if len(rawConfig) > 0 {
			config = &sdk.PokerConfig{}
			if uerr := json.Unmarshal(rawConfig, config); uerr != nil {
				return sdk.GameSession{}, fmt.Errorf("malformed poker config")
			}
		}
		snap, err = s.newPokerSession(players, config, playground, pokerSeed)
	}
	if err != nil {
		return sdk.GameSession{}, err
	}

	s.store.Put(snap, s.startingCredits)
	return snap, nil
}

func (s *Server) handleCreateChessPlayground(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID  string           `json:"agent_id"`
		Opponent string           `json:"opponent"`
		Config   *sdk.ChessConfig `json:"config"`
		FEN      string           `json:"fen"`
		Moves    []string         `json:"moves"`
		State    *sdk.ChessState  `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.AgentID == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "agent_id is required")
		return
	}

	// Single-agent playgrounds have the same agent on both sides.
	opponent := req.Opponent
	if opponent == "" {
		opponent = req.AgentID
	}
	players := agentPlayers(req.AgentID, opponent)

	initialFEN := req.FEN
	moves := req.Moves
	if req.State != nil {
		initialFEN = req.State.FEN
		moves = req.State.Moves
	}
	if initialFEN != "" && len(moves) > 0 {
		// An explicit position wins; the move list is dropped, since moves
		// replayed from the starting position cannot lead to it.
		moves = nil
	}

	snap, err := s.newChessSession(players, req.Config, true, initialFEN, moves)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.store.Put(snap, s.startingCredits)

	s.logger.Info("chess playground created", "session", snap.ID, "seeded", initialFEN != "" || len(moves) > 0)
	s.writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleCreatePokerPlayground(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID  string           `json:"agent_id"`
		Opponent string           `json:"opponent"`
		Config   *sdk.PokerConfig `json:"config"`
		Seed     *sdk.PokerSeed   `json:"seed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.AgentID == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "agent_id is required")
		return
	}

	opponent := req.Opponent
	if opponent == "" {
		opponent = req.AgentID
	}
	players := agentPlayers(req.AgentID, opponent)

	snap, err := s.newPokerSession(players, req.Config, true, req.Seed)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.store.Put(snap, s.startingCredits)

	s.logger.Info("poker playground created", "session", snap.ID)
	s.writeJSON(w, http.StatusCreated, snap)
}

// handlePollGame is the long-poll endpoint. With current_version the request
// is held until the session moves past it or the hold elapses (204).
func (s *Server) handlePollGame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	after, _ := strconv.ParseInt(r.URL.Query().Get("current_version"), 10, 64)
	holdSeconds, _ := strconv.Atoi(r.URL.Query().Get("timeout"))
	hold := min(time.Duration(holdSeconds)*time.Second, maxHold)

	snap, changed := sess.WaitForVersion(r.Context(), s.clock, after, hold)
	if !changed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var events []sdk.Event
	snap, err := sess.Try(func(snapshot *sdk.GameSession) error {
		if snapshot.Status == sdk.SessionFinished {
			return &badRequestError{message: "session is finished"}
		}
		if !hasPlayer(snapshot.Players, req.PlayerID) {
			return &badRequestError{message: fmt.Sprintf("player %s is not in this session", req.PlayerID)}
		}
		if req.ExpectedTurn != nil && *req.ExpectedTurn != snapshot.TurnNumber {
			// The counter already moved past the expected turn: the caller
			// is acting on stale state. 409, never applied.
			return &conflictError{current: snapshot.TurnNumber, expected: *req.ExpectedTurn}
		}

		var aerr error
		switch snapshot.Kind {
		case sdk.GameChess:
			events, aerr = s.applyChessTurn(snapshot, req)
		case sdk.GamePoker:
			events, aerr = s.applyPokerTurn(snapshot, req)
		}
		return aerr
	})
	if err != nil {
		s.writeTurnError(w, err, req)
		return
	}

	remaining := sess.SpendCredits(s.creditsPerTurn)
	s.writeJSON(w, http.StatusOK, sdk.TurnResult{
		State:            snap.State,
		Events:           events,
		Version:          snap.Version,
		TurnNumber:       snap.TurnNumber,
		IsFinished:       snap.Status == sdk.SessionFinished,
		NextPlayerID:     snap.NextPlayerID,
		CreditsRemaining: &remaining,
	})
}

func (s *Server) handleTimeout(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var events []sdk.Event
	snap, err := sess.Try(func(snapshot *sdk.GameSession) error {
		if snapshot.Status == sdk.SessionFinished {
			return &badRequestError{message: "session is finished"}
		}
		if !hasPlayer(snapshot.Players, req.PlayerID) {
			return &badRequestError{message: fmt.Sprintf("player %s is not in this session", req.PlayerID)}
		}

		var aerr error
		switch snapshot.Kind {
		case sdk.GameChess:
			events, aerr = s.finalizeChessTimeout(snapshot, req.PlayerID)
		case sdk.GamePoker:
			events, aerr = s.finalizePokerTimeout(snapshot, req.PlayerID)
		}
		return aerr
	})
	if err != nil {
		s.writeTurnError(w, err, turnRequest{PlayerID: req.PlayerID})
		return
	}

	remaining := sess.Credits()
	s.writeJSON(w, http.StatusOK, sdk.TurnResult{
		State:            snap.State,
		Events:           events,
		Version:          snap.Version,
		TurnNumber:       snap.TurnNumber,
		IsFinished:       snap.Status == sdk.SessionFinished,
		NextPlayerID:     snap.NextPlayerID,
		CreditsRemaining: &remaining,
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	snap := sess.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"events": snap.Events,
	})
}

func (s *Server) handleStateAtEvent(w http.ResponseWriter, r *http.Request) {
	kind := sdk.GameKind(chi.URLParam(r, "kind"))
	sess, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	snap := sess.Snapshot()
	if kind != snap.Kind {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("session %s is %s, not %s", snap.ID, snap.Kind, kind))
		return
	}
	if index < 0 || index >= len(snap.Events) {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("index %d out of range [0, %d)", index, len(snap.Events)))
		return
	}

	var state any
	switch snap.Kind {
	case sdk.GameChess:
		state, err = sdk.ReplayChess(snap.Events, index)
	case sdk.GamePoker:
		state, err = sdk.ReplayPoker(snap.Events, index)
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"index": index,
		"state": state,
	})
}

// handleDeleteGame is idempotent: deleting a missing session still succeeds,
// so lost fire-and-forget deletions never matter.
func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.store.Delete(id)

	s.mu.Lock()
	delete(s.pokerRT, id)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeTurnError(w http.ResponseWriter, err error, req turnRequest) {
	var conflict *conflictError
	if errors.As(err, &conflict) {
		expected := 0
		if req.ExpectedTurn != nil {
			expected = *req.ExpectedTurn
		}
		s.writeJSON(w, http.StatusConflict, map[string]any{
			"error":         "stale_turn",
			"message":       conflict.Error(),
			"current_turn":  conflict.current,
			"expected_turn": expected,
		})
		return
	}

	var bad *badRequestError
	if errors.As(err, &bad) {
		s.writeError(w, http.StatusUnprocessableEntity, bad.message)
		return
	}

	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
