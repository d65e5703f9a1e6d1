package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
)

// LifecycleManager chooses the creation path for a session (ranked through
// matchmaking output, or one of the playground paths) and owns deletion,
// including the best-effort teardown variant.
type LifecycleManager struct {
	transport *Transport
	logger    *log.Logger
	opts      []SessionOption
}

// NewLifecycleManager creates a manager; opts are applied to every session
// client it produces.
func NewLifecycleManager(transport *Transport, logger *log.Logger, opts ...SessionOption) *LifecycleManager {
	return &LifecycleManager{
		transport: transport,
		logger:    logger.WithPrefix("lifecycle"),
		opts:      opts,
	}
}

// ChessCreateRequest selects one chess creation path. At most one of FEN,
// Moves, State may seed a playground; Ranked ignores all three.
type ChessCreateRequest struct {
	Ranked   bool
	AgentIDs []string // ranked: the competing agents
	AgentID  string   // playground: the controlling agent
	Opponent string   // playground: optional second agent
	Config   *ChessConfig
	FEN      string
	Moves    []string
	State    *ChessState
}

// CreateChess creates a chess session along the requested path and returns a
// bound client.
func (m *LifecycleManager) CreateChess(ctx context.Context, req ChessCreateRequest) (*ChessClient, error) {
	client := NewChessClient(m.transport, m.logger, m.opts...)

	if req.Ranked {
		var config json.RawMessage
		if req.Config != nil {
			var err error
			if config, err = marshalConfig(req.Config); err != nil {
				return nil, err
			}
		}
		sessionID, err := client.CreateRanked(ctx, config, req.AgentIDs)
		if err != nil {
			return nil, err
		}
		if _, err := client.Attach(ctx, sessionID); err != nil {
			return nil, err
		}
		return client, nil
	}

	if err := oneSeed(req.FEN != "", len(req.Moves) > 0, req.State != nil); err != nil {
		return nil, err
	}

	var err error
	switch {
	case req.FEN != "":
		_, err = client.CreateFromFEN(ctx, req.AgentID, req.FEN, req.Config)
	case len(req.Moves) > 0:
		_, err = client.CreateFromMoves(ctx, req.AgentID, req.Moves, req.Config)
	case req.State != nil:
		_, err = client.CreateFromState(ctx, req.AgentID, req.State, req.Config)
	default:
		_, err = client.CreatePlayground(ctx, req.AgentID, req.Config, req.Opponent)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// PokerCreateRequest selects one poker creation path.
type PokerCreateRequest struct {
	Ranked   bool
	AgentIDs []string
	AgentID  string
	Opponent string
	Config   *PokerConfig
	Seed     *PokerSeed
}

// CreatePoker creates a poker session along the requested path and returns a
// bound client.
func (m *LifecycleManager) CreatePoker(ctx context.Context, req PokerCreateRequest) (*PokerClient, error) {
	client := NewPokerClient(m.transport, m.logger, m.opts...)

	if req.Ranked {
		var config json.RawMessage
		if req.Config != nil {
			var err error
			if config, err = marshalConfig(req.Config); err != nil {
				return nil, err
			}
		}
		sessionID, err := client.CreateRanked(ctx, config, req.AgentIDs)
		if err != nil {
			return nil, err
		}
		if _, err := client.Attach(ctx, sessionID); err != nil {
			return nil, err
		}
		return client, nil
	}

	var err error
	if req.Seed != nil {
		_, err = client.CreateFromState(ctx, req.AgentID, req.Seed)
	} else {
		_, err = client.CreatePlayground(ctx, req.AgentID, req.Config, req.Opponent)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Delete removes the session and waits for acknowledgement.
func (m *LifecycleManager) Delete(ctx context.Context, client *SessionClient) error {
	return client.Delete(ctx)
}

// Teardown issues a best-effort deletion for a session whose owning view is
// going away. Returns immediately; the request may be lost, which the server
// tolerates via its reclamation sweep. After Teardown the caller must ignore
// any in-flight poll results for the session.
func (m *LifecycleManager) Teardown(client *SessionClient) {
	m.logger.Debug("teardown", "session", client.SessionID())
	client.DeleteAsync()
}

// DeleteSession removes a session by ID without binding a client to it.
// Deleting an already-deleted session is not an error.
func DeleteSession(ctx context.Context, transport *Transport, sessionID string) error {
	_, err := transport.do(ctx, request{
		method:     http.MethodDelete,
		path:       "/games/" + sessionID,
		idempotent: true,
	}, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func marshalConfig(config any) (json.RawMessage, error) {
	if config == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return encoded, nil
}

func oneSeed(flags ...bool) error {
	count := 0
	for _, f := range flags {
		if f {
			count++
		}
	}
	if count > 1 {
		return fmt.Errorf("at most one of fen, moves, or state may seed a session")
	}
	return nil
}
