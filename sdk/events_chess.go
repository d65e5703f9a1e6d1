package sdk

import (
	"encoding/json"
	"fmt"
)

// Chess event types. The set is closed: the decoder rejects anything else as
// a fatal protocol error, so a new server-side type can never be silently
// skipped by a consumer.
const (
	EventChessGameStarted  = "game_started"
	EventChessMovePlayed   = "move_played"
	EventChessDrawOffered  = "draw_offered"
	EventChessDrawDeclined = "draw_declined"
	EventChessGameFinished = "game_finished"
)

// ChessEvent is the tagged union of chess event payloads. Consumers switch
// over the concrete types; the compiler keeps the switch honest wherever a
// default case raises an error.
type ChessEvent interface {
	chessEvent()
}

// ChessGameStarted opens the log.
type ChessGameStarted struct {
	WhitePlayerID      string `json:"white_player_id"`
	BlackPlayerID      string `json:"black_player_id"`
	InitialFEN         string `json:"initial_fen"`
	TimeControlSeconds int    `json:"time_control_seconds,omitempty"`
}

// ChessMovePlayed records one applied move. FENAfter is the authoritative
// position after the move, which makes replay independent of any move
// generation logic on the client.
type ChessMovePlayed struct {
	PlayerID         string `json:"player_id"`
	Move             string `json:"move"`
	FENAfter         string `json:"fen_after"`
	ClockRemainingMS int64  `json:"clock_remaining_ms,omitempty"`
}

// ChessDrawOffered records a standing draw offer.
type ChessDrawOffered struct {
	PlayerID string `json:"player_id"`
}

// ChessDrawDeclined clears a standing draw offer.
type ChessDrawDeclined struct {
	PlayerID string `json:"player_id"`
}

// ChessGameFinished closes the log. Result is "1-0", "0-1" or "1/2-1/2".
type ChessGameFinished struct {
	Result string `json:"result"`
	Reason string `json:"reason,omitempty"`
}

func (ChessGameStarted) chessEvent()  {}
func (ChessMovePlayed) chessEvent()   {}
func (ChessDrawOffered) chessEvent()  {}
func (ChessDrawDeclined) chessEvent() {}
func (ChessGameFinished) chessEvent() {}

// DecodeChessEvent decodes an event's payload into its concrete type. An
// unrecognized type or malformed payload is a ProtocolError: replay must
// abort loudly rather than guess.
func DecodeChessEvent(ev Event) (ChessEvent, error) {
	decode := func(into ChessEvent) (ChessEvent, error) {
		if err := json.Unmarshal(ev.Payload, into); err != nil {
			return nil, &ProtocolError{Message: fmt.Sprintf("event %s (%s): malformed payload: %v", ev.ID, ev.Type, err)}
		}
		return into, nil
	}

	switch ev.Type {
	case EventChessGameStarted:
		return decode(&ChessGameStarted{})
	case EventChessMovePlayed:
		return decode(&ChessMovePlayed{})
	case EventChessDrawOffered:
		return decode(&ChessDrawOffered{})
	case EventChessDrawDeclined:
		return decode(&ChessDrawDeclined{})
	case EventChessGameFinished:
		return decode(&ChessGameFinished{})
	default:
		return nil, &ProtocolError{Message: fmt.Sprintf("event %s: unrecognized chess event type %q", ev.ID, ev.Type)}
	}
}
