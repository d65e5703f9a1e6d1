package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/agentarena/arena/cards"
)

// ListEvents fetches the authoritative ordered event log for the bound
// session. This is the single source of truth for history, independent of
// whatever filtered event view the live snapshot carries.
func (c *SessionClient) ListEvents(ctx context.Context) ([]Event, error) {
	c.mu.Lock()
	sessionID := ""
	if c.session != nil {
		sessionID = c.session.ID
	}
	c.mu.Unlock()
	if sessionID == "" {
		return nil, fmt.Errorf("list events: client not bound to a session")
	}

	var resp struct {
		Events []Event `json:"events"`
	}
	if _, err := c.transport.do(ctx, request{
		method:     http.MethodGet,
		path:       "/games/" + sessionID + "/events",
		idempotent: true,
	}, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// StateAtEvent asks the server to reconstruct the session state after
// applying events[0..index]. Deterministic: the same index always yields the
// same state.
func (c *SessionClient) StateAtEvent(ctx context.Context, index int) (json.RawMessage, error) {
	c.mu.Lock()
	sessionID := ""
	if c.session != nil {
		sessionID = c.session.ID
	}
	c.mu.Unlock()
	if sessionID == "" {
		return nil, fmt.Errorf("state at event: client not bound to a session")
	}

	var resp struct {
		Index int             `json:"index"`
		State json.RawMessage `json:"state"`
	}
	if _, err := c.transport.do(ctx, request{
		method:     http.MethodGet,
		path:       "/games/" + string(c.kind) + "/" + sessionID + "/state_at_event/" + strconv.Itoa(index),
		idempotent: true,
	}, &resp); err != nil {
		return nil, err
	}
	return resp.State, nil
}

// ChessReplayState is the state reconstructed by folding a chess event
// prefix.
type ChessReplayState struct {
	FEN           string   `json:"fen"`
	Moves         []string `json:"moves"`
	WhitePlayerID string   `json:"white_player_id"`
	BlackPlayerID string   `json:"black_player_id"`
	DrawOfferedBy string   `json:"draw_offered_by,omitempty"`
	Result        string   `json:"result,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	Finished      bool     `json:"finished"`
}

// ReplayChess folds events[0..upto] (inclusive) into a chess state. Every
// event type must decode; an unrecognized type aborts the replay with a
// ProtocolError rather than producing a silently wrong state.
func ReplayChess(events []Event, upto int) (*ChessReplayState, error) {
	if upto < 0 || upto >= len(events) {
		return nil, fmt.Errorf("replay index %d out of range [0, %d)", upto, len(events))
	}

	state := &ChessReplayState{FEN: StartingFEN}
	for i := 0; i <= upto; i++ {
		decoded, err := DecodeChessEvent(events[i])
		if err != nil {
			return nil, err
		}

		switch ev := decoded.(type) {
		case *ChessGameStarted:
			state.WhitePlayerID = ev.WhitePlayerID
			state.BlackPlayerID = ev.BlackPlayerID
			if ev.InitialFEN != "" {
				state.FEN = ev.InitialFEN
			}
		case *ChessMovePlayed:
			state.Moves = append(state.Moves, ev.Move)
			state.FEN = ev.FENAfter
			state.DrawOfferedBy = ""
		case *ChessDrawOffered:
			state.DrawOfferedBy = ev.PlayerID
		case *ChessDrawDeclined:
			state.DrawOfferedBy = ""
		case *ChessGameFinished:
			state.Result = ev.Result
			state.Reason = ev.Reason
			state.Finished = true
		default:
			return nil, &ProtocolError{Message: fmt.Sprintf("chess replay: unhandled event type %T", decoded)}
		}
	}
	return state, nil
}

// PokerReplayState is the state reconstructed by folding a poker event
// prefix.
type PokerReplayState struct {
	HandNumber  int                     `json:"hand_number"`
	Street      string                  `json:"street"`
	Stacks      map[string]int          `json:"stacks"`
	Pot         int                     `json:"pot"`
	Board       []cards.Card            `json:"board"`
	Folded      map[string]bool         `json:"folded"`
	HoleCards   map[string][]cards.Card `json:"hole_cards"`
	FinalStacks map[string]int          `json:"final_stacks,omitempty"`
	Finished    bool                    `json:"finished"`
}

// ReplayPoker folds events[0..upto] (inclusive) into a poker state. Same
// contract as ReplayChess: exhaustive or abort.
func ReplayPoker(events []Event, upto int) (*PokerReplayState, error) {
	if upto < 0 || upto >= len(events) {
		return nil, fmt.Errorf("replay index %d out of range [0, %d)", upto, len(events))
	}

	state := &PokerReplayState{
		Stacks:    make(map[string]int),
		Folded:    make(map[string]bool),
		HoleCards: make(map[string][]cards.Card),
	}

	for i := 0; i <= upto; i++ {
		decoded, err := DecodePokerEvent(events[i])
		if err != nil {
			return nil, err
		}

		switch ev := decoded.(type) {
		case *PokerHandStarted:
			state.HandNumber = ev.HandNumber
			state.Street = "preflop"
			state.Pot = 0
			state.Board = nil
			state.Folded = make(map[string]bool)
			state.HoleCards = make(map[string][]cards.Card)
			for id, stack := range ev.Stacks {
				state.Stacks[id] = stack
			}
			for id, hole := range ev.HoleCards {
				state.HoleCards[id] = hole
			}
		case *PokerBlindPosted:
			state.Stacks[ev.PlayerID] -= ev.Amount
			state.Pot += ev.Amount
		case *PokerActionTaken:
			state.Stacks[ev.PlayerID] -= ev.Amount
			state.Pot += ev.Amount
			if ev.Action == ActionFold {
				state.Folded[ev.PlayerID] = true
			}
		case *PokerStreetDealt:
			state.Street = ev.Street
			state.Board = append(state.Board, ev.Cards...)
		case *PokerHandFinished:
			for _, w := range ev.Winners {
				state.Stacks[w.PlayerID] += w.Amount
				state.Pot -= w.Amount
			}
		case *PokerGameFinished:
			state.FinalStacks = ev.FinalStacks
			state.Finished = true
		default:
			return nil, &ProtocolError{Message: fmt.Sprintf("poker replay: unhandled event type %T", decoded)}
		}
	}
	return state, nil
}
