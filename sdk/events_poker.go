package sdk

import (
	"encoding/json"
	"fmt"

	"github.com/agentarena/arena/cards"
)

// Poker event types. Closed set, same contract as the chess decoder.
const (
	EventPokerHandStarted  = "hand_started"
	EventPokerBlindPosted  = "blind_posted"
	EventPokerActionTaken  = "action_taken"
	EventPokerStreetDealt  = "street_dealt"
	EventPokerHandFinished = "hand_finished"
	EventPokerGameFinished = "game_finished"
)

// PokerEvent is the tagged union of poker event payloads.
type PokerEvent interface {
	pokerEvent()
}

// PokerHandStarted opens a hand: stacks and hole cards as dealt.
type PokerHandStarted struct {
	HandNumber int                     `json:"hand_number"`
	ButtonSeat int                     `json:"button_seat"`
	Stacks     map[string]int          `json:"stacks"`
	HoleCards  map[string][]cards.Card `json:"hole_cards,omitempty"`
}

// PokerBlindPosted records a forced bet. Blind is "small" or "big".
type PokerBlindPosted struct {
	PlayerID string `json:"player_id"`
	Blind    string `json:"blind"`
	Amount   int    `json:"amount"`
}

// PokerActionTaken records one voluntary betting decision. Amount is the
// incremental chips paid with this action.
type PokerActionTaken struct {
	PlayerID string          `json:"player_id"`
	Action   PokerActionType `json:"action"`
	Amount   int             `json:"amount"`
}

// PokerStreetDealt records community cards hitting the board.
type PokerStreetDealt struct {
	Street string       `json:"street"`
	Cards  []cards.Card `json:"cards"`
}

// PokerWinner is one payout at hand end.
type PokerWinner struct {
	PlayerID string `json:"player_id"`
	Amount   int    `json:"amount"`
}

// PokerHandFinished closes a hand and distributes the pot.
type PokerHandFinished struct {
	Winners  []PokerWinner           `json:"winners"`
	Pot      int                     `json:"pot"`
	Showdown map[string][]cards.Card `json:"showdown,omitempty"`
}

// PokerGameFinished closes the session.
type PokerGameFinished struct {
	WinnerPlayerID string         `json:"winner_player_id,omitempty"`
	FinalStacks    map[string]int `json:"final_stacks"`
}

func (PokerHandStarted) pokerEvent()  {}
func (PokerBlindPosted) pokerEvent()  {}
func (PokerActionTaken) pokerEvent()  {}
func (PokerStreetDealt) pokerEvent()  {}
func (PokerHandFinished) pokerEvent() {}
func (PokerGameFinished) pokerEvent() {}

// DecodePokerEvent decodes an event's payload into its concrete type. An
// unrecognized type or malformed payload is a ProtocolError.
func DecodePokerEvent(ev Event) (PokerEvent, error) {
	decode := func(into PokerEvent) (PokerEvent, error) {
		if err := json.Unmarshal(ev.Payload, into); err != nil {
			return nil, &ProtocolError{Message: fmt.Sprintf("event %s (%s): malformed payload: %v", ev.ID, ev.Type, err)}
		}
		return into, nil
	}

	switch ev.Type {
	case EventPokerHandStarted:
		return decode(&PokerHandStarted{})
	case EventPokerBlindPosted:
		return decode(&PokerBlindPosted{})
	case EventPokerActionTaken:
		return decode(&PokerActionTaken{})
	case EventPokerStreetDealt:
		return decode(&PokerStreetDealt{})
	case EventPokerHandFinished:
		return decode(&PokerHandFinished{})
	case EventPokerGameFinished:
		return decode(&PokerGameFinished{})
	default:
		return nil, &ProtocolError{Message: fmt.Sprintf("event %s: unrecognized poker event type %q", ev.ID, ev.Type)}
	}
}
