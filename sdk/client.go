package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Default request policies. Turn submission gets a deadline measured in
// minutes because the authoritative side may invoke slow agent computation
// before resolving the turn; polling is a separate, short request class.
const (
	DefaultPollHold     = 25 * time.Second
	DefaultTurnDeadline = 5 * time.Minute
)

// CreditsHook receives the caller's resource balance reported alongside a
// turn result. Informational; never part of game state.
type CreditsHook func(remaining int64)

// SessionClient tracks one remote game session: creation, long-poll state
// retrieval, and turn submission under optimistic concurrency. All applied
// state passes through a single VersionGate so duplicate or out-of-order
// responses can never regress what the caller sees.
type SessionClient struct {
	transport *Transport
	poller    *StatePoller
	logger    *log.Logger
	kind      GameKind

	pollHold     time.Duration
	turnDeadline time.Duration
	onCredits    CreditsHook

	mu       sync.Mutex
	gate     VersionGate
	session  *GameSession
	inflight map[string]bool
}

// SessionOption configures a SessionClient.
type SessionOption func(*SessionClient)

// WithPollHold sets how long the server holds a poll before "no change".
func WithPollHold(d time.Duration) SessionOption {
	return func(c *SessionClient) { c.pollHold = d }
}

// WithTurnDeadline sets the turn submission request deadline.
func WithTurnDeadline(d time.Duration) SessionOption {
	return func(c *SessionClient) { c.turnDeadline = d }
}

// WithCreditsHook registers a hook for the credits side-channel.
func WithCreditsHook(hook CreditsHook) SessionOption {
	return func(c *SessionClient) { c.onCredits = hook }
}

// NewSessionClient creates an unbound client for the given game kind. Bind it
// by creating a session or attaching to an existing one.
func NewSessionClient(transport *Transport, kind GameKind, logger *log.Logger, opts ...SessionOption) *SessionClient {
	c := &SessionClient{
		transport:    transport,
		poller:       NewStatePoller(transport, logger),
		logger:       logger.WithPrefix(string(kind)),
		kind:         kind,
		pollHold:     DefaultPollHold,
		turnDeadline: DefaultTurnDeadline,
		inflight:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID returns the bound session ID, or "" before binding.
func (c *SessionClient) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.ID
}

// Session returns the latest applied snapshot, or nil before binding.
func (c *SessionClient) Session() *GameSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Version returns the highest applied version.
func (c *SessionClient) Version() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate.Version()
}

// rankedCreateResponse is the wire shape of POST /games.
type rankedCreateResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// CreateRanked asks the server to create a ranked session between the given
// agents. The response carries only an ID and an acknowledgement message; the
// first snapshot arrives through Attach or Poll.
func (c *SessionClient) CreateRanked(ctx context.Context, config json.RawMessage, agentIDs []string) (string, error) {
	body := struct {
		Kind     GameKind        `json:"kind"`
		Config   json.RawMessage `json:"config,omitempty"`
		AgentIDs []string        `json:"agent_ids"`
	}{Kind: c.kind, Config: config, AgentIDs: agentIDs}

	var resp rankedCreateResponse
	if _, err := c.transport.do(ctx, request{
		method: http.MethodPost,
		path:   "/games",
		body:   body,
	}, &resp); err != nil {
		return "", fmt.Errorf("create ranked session: %w", err)
	}

	c.logger.Info("created ranked session", "session", resp.SessionID, "message", resp.Message)
	return resp.SessionID, nil
}

// Attach binds the client to an existing session and fetches its current
// snapshot without waiting for a version advance.
func (c *SessionClient) Attach(ctx context.Context, sessionID string) (*GameSession, error) {
	session, changed, err := c.poller.Poll(ctx, sessionID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("attach to session %s: %w", sessionID, err)
	}
	if !changed {
		return nil, &ProtocolError{Message: fmt.Sprintf("attach to session %s: empty snapshot at version 0", sessionID)}
	}
	c.apply(session)
	return session, nil
}

// create posts a playground creation request and binds to the returned
// session snapshot. Used by the per-kind clients for their seed paths.
func (c *SessionClient) create(ctx context.Context, path string, body any) (*GameSession, error) {
	var session GameSession
	if _, err := c.transport.do(ctx, request{
		method: http.MethodPost,
		path:   path,
		body:   body,
	}, &session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if session.ID == "" {
		return nil, &ProtocolError{Message: "create session: snapshot missing id"}
	}

	c.apply(&session)
	c.logger.Info("created session", "session", session.ID, "playground", session.IsPlayground)
	return &session, nil
}

// Poll asks for the state once it moves past the highest version applied so
// far. Returns (nil, false, nil) when nothing changed within the hold window;
// callers treat that as a license to re-poll immediately.
func (c *SessionClient) Poll(ctx context.Context) (*GameSession, bool, error) {
	c.mu.Lock()
	sessionID := ""
	if c.session != nil {
		sessionID = c.session.ID
	}
	known := c.gate.Version()
	c.mu.Unlock()

	if sessionID == "" {
		return nil, false, fmt.Errorf("poll: client not bound to a session")
	}

	session, changed, err := c.poller.Poll(ctx, sessionID, known, c.pollHold)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return nil, false, nil
	}
	if !c.apply(session) {
		// A concurrent path already applied a newer version.
		return nil, false, nil
	}
	return session, true, nil
}

// apply admits a snapshot through the version gate. Returns false when the
// snapshot is stale and was dropped.
func (c *SessionClient) apply(session *GameSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.gate.Admit(session.Version) {
		return false
	}
	c.session = session
	return true
}

// TurnOptions qualifies a turn submission.
type TurnOptions struct {
	// ExpectedTurn is the turn number this submission believes it is acting
	// on. When set, a server whose counter already passed it answers with a
	// stale-turn conflict instead of applying the turn, and the submission
	// becomes safe to retry on transient failures.
	ExpectedTurn *int

	// MoveOverride substitutes an explicit move for the agent's own choice
	// (playground only).
	MoveOverride string
}

type turnRequest struct {
	PlayerID     string          `json:"player_id"`
	Turn         json.RawMessage `json:"turn,omitempty"`
	MoveOverride string          `json:"move_override,omitempty"`
	ExpectedTurn *int            `json:"expected_turn,omitempty"`
}

// SubmitTurn submits a turn for the given player. At most one submission may
// be outstanding per (session, player); a second concurrent submission fails
// with ErrTurnInFlight. On success the result is applied through the version
// gate and the credits side-channel hook fires.
//
// A StaleTurnError means the authoritative turn counter already moved past
// opts.ExpectedTurn: the turn was not applied by this request, and the caller
// must re-poll before deciding whether to act again. Never blindly resubmit
// the same turn number.
func (c *SessionClient) SubmitTurn(ctx context.Context, playerID string, turn json.RawMessage, opts TurnOptions) (*TurnResult, error) {
	sessionID, err := c.beginTurn(playerID)
	if err != nil {
		return nil, err
	}
	defer c.endTurn(playerID)

	body := turnRequest{
		PlayerID:     playerID,
		Turn:         turn,
		MoveOverride: opts.MoveOverride,
		ExpectedTurn: opts.ExpectedTurn,
	}

	var result TurnResult
	if _, err := c.transport.do(ctx, request{
		method:     http.MethodPost,
		path:       "/games/" + sessionID + "/turns",
		body:       body,
		timeout:    c.turnDeadline,
		idempotent: opts.ExpectedTurn != nil,
	}, &result); err != nil {
		return nil, err
	}

	c.applyTurn(&result)
	return &result, nil
}

// SubmitTimeout asks the server to force-finalize the turn of a player whose
// clock expired.
func (c *SessionClient) SubmitTimeout(ctx context.Context, playerID string) (*TurnResult, error) {
	sessionID, err := c.beginTurn(playerID)
	if err != nil {
		return nil, err
	}
	defer c.endTurn(playerID)

	body := struct {
		PlayerID string `json:"player_id"`
	}{PlayerID: playerID}

	var result TurnResult
	if _, err := c.transport.do(ctx, request{
		method:  http.MethodPost,
		path:    "/games/" + sessionID + "/timeout",
		body:    body,
		timeout: c.turnDeadline,
	}, &result); err != nil {
		return nil, err
	}

	c.applyTurn(&result)
	return &result, nil
}

func (c *SessionClient) beginTurn(playerID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return "", fmt.Errorf("submit turn: client not bound to a session")
	}
	if c.inflight[playerID] {
		return "", fmt.Errorf("player %s: %w", playerID, ErrTurnInFlight)
	}
	c.inflight[playerID] = true
	return c.session.ID, nil
}

func (c *SessionClient) endTurn(playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, playerID)
}

// applyTurn folds a turn result into the tracked session through the gate.
func (c *SessionClient) applyTurn(result *TurnResult) {
	c.mu.Lock()
	if c.session != nil && c.gate.Admit(result.Version) {
		c.session.Version = result.Version
		c.session.State = result.State
		c.session.TurnNumber = result.TurnNumber
		c.session.NextPlayerID = result.NextPlayerID
		c.session.Events = append(c.session.Events, result.Events...)
		if result.IsFinished {
			c.session.Status = SessionFinished
		}
	}
	hook := c.onCredits
	credits := result.CreditsRemaining
	c.mu.Unlock()

	if hook != nil && credits != nil {
		hook(*credits)
	}
}

// Delete removes the session, waiting for the server's acknowledgement.
// Deleting an already-deleted session is not an error.
func (c *SessionClient) Delete(ctx context.Context) error {
	c.mu.Lock()
	sessionID := ""
	if c.session != nil {
		sessionID = c.session.ID
	}
	c.mu.Unlock()
	if sessionID == "" {
		return nil
	}

	_, err := c.transport.do(ctx, request{
		method:     http.MethodDelete,
		path:       "/games/" + sessionID,
		idempotent: true,
	}, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// DeleteAsync issues a best-effort, at-most-one-attempt deletion and returns
// immediately. Used on view teardown, where the navigation must not wait and
// a lost request is benign: the server reclaims abandoned sessions on its
// own schedule.
func (c *SessionClient) DeleteAsync() {
	c.mu.Lock()
	sessionID := ""
	if c.session != nil {
		sessionID = c.session.ID
	}
	c.mu.Unlock()
	if sessionID == "" {
		return
	}

	c.transport.forget(request{
		method: http.MethodDelete,
		path:   "/games/" + sessionID,
	})
}
