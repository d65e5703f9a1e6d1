package sdk

import (
	"encoding/json"
	"testing"

	"github.com/agentarena/arena/cards"
)

func testEvent(t *testing.T, typ string, payload any) Event {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return Event{ID: "ev-" + typ, Type: typ, Payload: data}
}

func chessTestLog(t *testing.T) []Event {
	return []Event{
		testEvent(t, EventChessGameStarted, ChessGameStarted{
			WhitePlayerID: "w", BlackPlayerID: "b", InitialFEN: StartingFEN,
		}),
		testEvent(t, EventChessMovePlayed, ChessMovePlayed{
			PlayerID: "w", Move: "e2e4",
			FENAfter: "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
		}),
		testEvent(t, EventChessMovePlayed, ChessMovePlayed{
			PlayerID: "b", Move: "e7e5",
			FENAfter: "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2",
		}),
		testEvent(t, EventChessDrawOffered, ChessDrawOffered{PlayerID: "w"}),
		testEvent(t, EventChessDrawDeclined, ChessDrawDeclined{PlayerID: "b"}),
		testEvent(t, EventChessGameFinished, ChessGameFinished{Result: "1-0", Reason: "resignation"}),
	}
}

func TestReplayChessPrefixes(t *testing.T) {
	events := chessTestLog(t)

	// After the opening event only.
	state, err := ReplayChess(events, 0)
	if err != nil {
		t.Fatalf("ReplayChess(0): %v", err)
	}
	if state.FEN != StartingFEN || len(state.Moves) != 0 || state.Finished {
		t.Errorf("unexpected state at index 0: %+v", state)
	}

	// Mid-game: the draw offer is standing.
	state, err = ReplayChess(events, 3)
	if err != nil {
		t.Fatalf("ReplayChess(3): %v", err)
	}
	if len(state.Moves) != 2 || state.DrawOfferedBy != "w" {
		t.Errorf("unexpected state at index 3: %+v", state)
	}

	// One event later the offer is cleared.
	state, err = ReplayChess(events, 4)
	if err != nil {
		t.Fatalf("ReplayChess(4): %v", err)
	}
	if state.DrawOfferedBy != "" {
		t.Errorf("draw offer should be cleared, got %q", state.DrawOfferedBy)
	}

	// Full log.
	state, err = ReplayChess(events, len(events)-1)
	if err != nil {
		t.Fatalf("ReplayChess(full): %v", err)
	}
	if !state.Finished || state.Result != "1-0" || state.Reason != "resignation" {
		t.Errorf("unexpected final state: %+v", state)
	}
}

func TestReplayChessIsDeterministic(t *testing.T) {
	events := chessTestLog(t)
	first, err := ReplayChess(events, len(events)-1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ReplayChess(events, len(events)-1)
	if err != nil {
		t.Fatal(err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("same prefix produced different states:\n%s\n%s", a, b)
	}
}

func TestReplayChessRejectsUnknownEventType(t *testing.T) {
	events := chessTestLog(t)
	events[2].Type = "quantum_move"

	_, err := ReplayChess(events, len(events)-1)
	if !IsFatal(err) {
		t.Fatalf("an unknown event type must abort the replay, got %v", err)
	}
}

func TestReplayChessIndexOutOfRange(t *testing.T) {
	events := chessTestLog(t)
	if _, err := ReplayChess(events, len(events)); err == nil {
		t.Error("index past the end must fail")
	}
	if _, err := ReplayChess(events, -1); err == nil {
		t.Error("negative index must fail")
	}
}

func TestReplayPoker(t *testing.T) {
	flop := cards.MustParse("As")
	events := []Event{
		testEvent(t, EventPokerHandStarted, PokerHandStarted{
			HandNumber: 1,
			ButtonSeat: 0,
			Stacks:     map[string]int{"p1": 1000, "p2": 1000},
		}),
		testEvent(t, EventPokerBlindPosted, PokerBlindPosted{PlayerID: "p1", Blind: "small", Amount: 10}),
		testEvent(t, EventPokerBlindPosted, PokerBlindPosted{PlayerID: "p2", Blind: "big", Amount: 20}),
		testEvent(t, EventPokerActionTaken, PokerActionTaken{PlayerID: "p1", Action: ActionCall, Amount: 10}),
		testEvent(t, EventPokerActionTaken, PokerActionTaken{PlayerID: "p2", Action: ActionCheck, Amount: 0}),
		testEvent(t, EventPokerStreetDealt, PokerStreetDealt{Street: "flop", Cards: []cards.Card{flop}}),
		testEvent(t, EventPokerActionTaken, PokerActionTaken{PlayerID: "p2", Action: ActionFold, Amount: 0}),
		testEvent(t, EventPokerHandFinished, PokerHandFinished{
			Winners: []PokerWinner{{PlayerID: "p1", Amount: 40}},
			Pot:     40,
		}),
	}

	// After both blinds and the call: 40 in the pot, stacks down accordingly.
	state, err := ReplayPoker(events, 3)
	if err != nil {
		t.Fatalf("ReplayPoker(3): %v", err)
	}
	if state.Pot != 40 {
		t.Errorf("pot = %d, want 40", state.Pot)
	}
	if state.Stacks["p1"] != 980 || state.Stacks["p2"] != 980 {
		t.Errorf("stacks = %v, want 980/980", state.Stacks)
	}

	// Flop on the board, p2 folded.
	state, err = ReplayPoker(events, 6)
	if err != nil {
		t.Fatalf("ReplayPoker(6): %v", err)
	}
	if state.Street != "flop" || len(state.Board) != 1 {
		t.Errorf("street = %q board = %v", state.Street, state.Board)
	}
	if !state.Folded["p2"] {
		t.Error("p2 should be folded")
	}

	// Hand resolved: the pot moved to the winner.
	state, err = ReplayPoker(events, 7)
	if err != nil {
		t.Fatalf("ReplayPoker(7): %v", err)
	}
	if state.Stacks["p1"] != 1020 || state.Stacks["p2"] != 980 {
		t.Errorf("final stacks = %v, want p1=1020 p2=980", state.Stacks)
	}
	if state.Pot != 0 {
		t.Errorf("pot = %d, want 0 after payout", state.Pot)
	}
}

func TestReplayPokerRejectsUnknownEventType(t *testing.T) {
	events := []Event{
		testEvent(t, EventPokerHandStarted, PokerHandStarted{HandNumber: 1}),
		testEvent(t, "side_pot_materialized", struct{}{}),
	}
	_, err := ReplayPoker(events, 1)
	if !IsFatal(err) {
		t.Fatalf("an unknown event type must abort the replay, got %v", err)
	}
}
