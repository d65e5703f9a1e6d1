package server

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentarena/arena/cards"
	"github.com/agentarena/arena/sdk"
)

// pokerRuntime is server-side hand bookkeeping that is not part of the wire
// state: the shuffled deck and how many acts the current street has seen.
type pokerRuntime struct {
	deck           []cards.Card
	next           int
	actsThisStreet int
}

func (rt *pokerRuntime) shuffle(s *Server) {
	rt.deck = rt.deck[:0]
	for rank := cards.Two; rank <= cards.Ace; rank++ {
		for _, suit := range []cards.Suit{cards.Spades, cards.Hearts, cards.Diamonds, cards.Clubs} {
			rt.deck = append(rt.deck, cards.NewCard(rank, suit))
		}
	}
	s.rng.Shuffle(len(rt.deck), func(i, j int) {
		rt.deck[i], rt.deck[j] = rt.deck[j], rt.deck[i]
	})
	rt.next = 0
	rt.actsThisStreet = 0
}

func (rt *pokerRuntime) deal(n int) []cards.Card {
	dealt := append([]cards.Card(nil), rt.deck[rt.next:rt.next+n]...)
	rt.next += n
	return dealt
}

func (s *Server) pokerRuntimeFor(sessionID string) *pokerRuntime {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.pokerRT[sessionID]
	if !ok {
		rt = &pokerRuntime{}
		s.pokerRT[sessionID] = rt
	}
	return rt
}

// newPokerSession builds a heads-up session snapshot at version 1 with the
// first hand already dealt. Seed fields are all optional; an empty seed
// yields the default configuration (blinds 10/20, stacks 1000).
func (s *Server) newPokerSession(players []sdk.Player, config *sdk.PokerConfig, playground bool, seed *sdk.PokerSeed) (sdk.GameSession, error) {
	if len(players) != 2 {
		return sdk.GameSession{}, fmt.Errorf("poker requires exactly two players, got %d", len(players))
	}

	if seed != nil && seed.Config != nil {
		config = seed.Config
	}
	if config == nil {
		config = &sdk.PokerConfig{}
	}
	if config.SmallBlind == 0 {
		config.SmallBlind = sdk.DefaultSmallBlind
	}
	if config.BigBlind == 0 {
		config.BigBlind = sdk.DefaultBigBlind
	}
	if config.StartingStack == 0 {
		config.StartingStack = sdk.DefaultStartingStack
	}

	for i := range players {
		players[i].Seat = fmt.Sprintf("%d", i)
	}

	state := sdk.PokerState{
		SmallBlind: config.SmallBlind,
		BigBlind:   config.BigBlind,
		ButtonSeat: 1, // flips to 0 when the first hand starts
		Players: []sdk.PokerPlayerState{
			{PlayerID: players[0].ID, Seat: 0, Stack: config.StartingStack},
			{PlayerID: players[1].ID, Seat: 1, Stack: config.StartingStack},
		},
	}
	if seed != nil {
		// Stacks are keyed by seat, not agent: in a self-play playground both
		// seats carry the same agent ID.
		for i := range state.Players {
			if stack, ok := seed.Stacks[players[i].Seat]; ok {
				state.Players[i].Stack = stack
			}
		}
		if seed.ButtonSeat != nil {
			state.ButtonSeat = 1 - *seed.ButtonSeat
		}
	}

	sessionID := uuid.NewString()
	rt := s.pokerRuntimeFor(sessionID)

	snap := sdk.GameSession{
		ID:           sessionID,
		Kind:         sdk.GamePoker,
		Version:      1,
		Status:       sdk.SessionInProgress,
		Config:       mustJSON(config),
		Players:      players,
		TurnNumber:   1,
		IsPlayground: playground,
		CreatedAt:    s.clock.Now(),
	}

	events := s.startPokerHand(&state, rt, 0)
	snap.Events = events
	snap.State = mustJSON(state)
	snap.NextPlayerID = state.ActingPlayerID

	return snap, nil
}

// startPokerHand shuffles, deals, posts blinds, and returns the opening
// events for the hand after handNumber.
func (s *Server) startPokerHand(state *sdk.PokerState, rt *pokerRuntime, round int) []sdk.Event {
	rt.shuffle(s)

	state.HandNumber++
	state.Street = "preflop"
	state.Board = nil
	state.Pot = 0
	state.ButtonSeat = 1 - state.ButtonSeat

	stacks := make(map[string]int, len(state.Players))
	holes := make(map[string][]cards.Card, len(state.Players))
	for i := range state.Players {
		p := &state.Players[i]
		p.Bet = 0
		p.Folded = false
		p.AllIn = false
		p.HoleCards = rt.deal(2)
		stacks[p.PlayerID] = p.Stack
		holes[p.PlayerID] = p.HoleCards
	}

	events := []sdk.Event{
		s.newEvent(round, sdk.EventPokerHandStarted, sdk.PokerHandStarted{
			HandNumber: state.HandNumber,
			ButtonSeat: state.ButtonSeat,
			Stacks:     stacks,
			HoleCards:  holes,
		}),
	}

	// Heads up: the button posts the small blind and acts first preflop.
	sb := &state.Players[state.ButtonSeat]
	bb := &state.Players[1-state.ButtonSeat]
	events = append(events,
		s.postBlind(state, sb, "small", state.SmallBlind, round),
		s.postBlind(state, bb, "big", state.BigBlind, round),
	)

	state.ToCall = bb.Bet - sb.Bet
	state.ActingPlayerID = sb.PlayerID
	return events
}

func (s *Server) postBlind(state *sdk.PokerState, p *sdk.PokerPlayerState, blind string, amount int, round int) sdk.Event {
	if amount > p.Stack {
		amount = p.Stack
	}
	p.Stack -= amount
	p.Bet += amount
	state.Pot += amount
	return s.newEvent(round, sdk.EventPokerBlindPosted, sdk.PokerBlindPosted{
		PlayerID: p.PlayerID,
		Blind:    blind,
		Amount:   amount,
	})
}

// applyPokerTurn applies one betting action. The server validates only turn
// order and basic arithmetic, not strategy; it is a protocol reference, not a
// rules engine.
func (s *Server) applyPokerTurn(snap *sdk.GameSession, req turnRequest) ([]sdk.Event, error) {
	var state sdk.PokerState
	if err := json.Unmarshal(snap.State, &state); err != nil {
		return nil, fmt.Errorf("corrupt poker state: %w", err)
	}

	var action sdk.PokerAction
	if len(req.Turn) > 0 {
		if err := json.Unmarshal(req.Turn, &action); err != nil {
			return nil, &badRequestError{message: "malformed action payload"}
		}
	} else {
		// No payload: the controlling agent chooses. The reference server
		// always checks or calls.
		action = sdk.PokerAction{Type: sdk.ActionCheck}
		if state.ToCall > 0 {
			action = sdk.PokerAction{Type: sdk.ActionCall}
		}
	}

	if state.ActingPlayerID != req.PlayerID {
		return nil, &badRequestError{message: fmt.Sprintf("player %s is not to act", req.PlayerID)}
	}

	actor := playerState(&state, req.PlayerID)
	opponent := playerState(&state, otherPlayer(snap.Players, req.PlayerID))
	rt := s.pokerRuntimeFor(snap.ID)

	round := snap.TurnNumber
	streetBefore := state.Street
	handBefore := state.HandNumber
	var events []sdk.Event
	record := func(paid int) {
		events = append(events, s.newEvent(round, sdk.EventPokerActionTaken, sdk.PokerActionTaken{
			PlayerID: req.PlayerID,
			Action:   action.Type,
			Amount:   paid,
		}))
	}

	switch action.Type {
	case sdk.ActionFold:
		record(0)
		actor.Folded = true
		events = append(events, s.finishPokerHand(&state, rt, opponent.PlayerID, round)...)

	case sdk.ActionCheck:
		if state.ToCall > 0 {
			return nil, &badRequestError{message: "cannot check facing a bet"}
		}
		record(0)
		rt.actsThisStreet++
		events = append(events, s.maybeAdvanceStreet(&state, rt, round)...)

	case sdk.ActionCall:
		paid := min(state.ToCall, actor.Stack)
		actor.Stack -= paid
		actor.Bet += paid
		state.Pot += paid
		state.ToCall = 0
		record(paid)
		rt.actsThisStreet++
		events = append(events, s.maybeAdvanceStreet(&state, rt, round)...)

	case sdk.ActionRaise, sdk.ActionAllIn:
		raise := action.Amount
		if action.Type == sdk.ActionAllIn {
			raise = actor.Stack - state.ToCall
		}
		if raise <= 0 && action.Type == sdk.ActionRaise {
			return nil, &badRequestError{message: "raise amount must be positive"}
		}
		paid := min(state.ToCall+raise, actor.Stack)
		actor.Stack -= paid
		actor.Bet += paid
		state.Pot += paid
		if actor.Stack == 0 {
			actor.AllIn = true
		}
		state.ToCall = actor.Bet - opponent.Bet
		record(paid)
		rt.actsThisStreet = 1
		state.ActingPlayerID = opponent.PlayerID

	default:
		return nil, &badRequestError{message: fmt.Sprintf("unknown action %q", action.Type)}
	}

	// When the street and hand are unchanged, the action simply passes the
	// initiative; street advances and new hands set the actor themselves.
	if (action.Type == sdk.ActionCheck || action.Type == sdk.ActionCall) &&
		state.Street == streetBefore && state.HandNumber == handBefore && !sessionFinished(&state) {
		state.ActingPlayerID = opponent.PlayerID
	}

	snap.State = mustJSON(state)
	snap.TurnNumber++
	snap.NextPlayerID = state.ActingPlayerID
	if sessionFinished(&state) {
		snap.Status = sdk.SessionFinished
		snap.NextPlayerID = ""
	}
	snap.Events = append(snap.Events, events...)

	return events, nil
}

// maybeAdvanceStreet deals the next street once both players have acted with
// nothing left to call, running out to showdown after the river.
func (s *Server) maybeAdvanceStreet(state *sdk.PokerState, rt *pokerRuntime, round int) []sdk.Event {
	if rt.actsThisStreet < 2 || state.ToCall != 0 {
		return nil
	}
	rt.actsThisStreet = 0
	for i := range state.Players {
		state.Players[i].Bet = 0
	}

	var events []sdk.Event
	deal := func(street string, n int) {
		dealt := rt.deal(n)
		state.Street = street
		state.Board = append(state.Board, dealt...)
		events = append(events, s.newEvent(round, sdk.EventPokerStreetDealt, sdk.PokerStreetDealt{
			Street: street,
			Cards:  dealt,
		}))
	}

	switch state.Street {
	case "preflop":
		deal("flop", 3)
	case "flop":
		deal("turn", 1)
	case "turn":
		deal("river", 1)
	case "river":
		// Showdown. No hand evaluation here; the reference server picks the
		// winner at random among the live players.
		winner := state.Players[s.rng.Intn(len(state.Players))].PlayerID
		return s.finishPokerHand(state, rt, winner, round)
	}

	// Postflop the non-button player acts first.
	state.ActingPlayerID = state.Players[1-state.ButtonSeat].PlayerID
	return events
}

func (s *Server) finishPokerHand(state *sdk.PokerState, rt *pokerRuntime, winnerID string, round int) []sdk.Event {
	winner := playerState(state, winnerID)
	pot := state.Pot

	showdown := make(map[string][]cards.Card)
	for i := range state.Players {
		p := &state.Players[i]
		if !p.Folded {
			showdown[p.PlayerID] = p.HoleCards
		}
	}

	events := []sdk.Event{
		s.newEvent(round, sdk.EventPokerHandFinished, sdk.PokerHandFinished{
			Winners:  []sdk.PokerWinner{{PlayerID: winnerID, Amount: pot}},
			Pot:      pot,
			Showdown: showdown,
		}),
	}

	winner.Stack += pot
	state.Pot = 0
	state.ToCall = 0
	state.WinnerPlayerID = ""

	// Session ends when a player is felted; otherwise the next hand starts
	// immediately.
	for i := range state.Players {
		if state.Players[i].Stack == 0 {
			final := make(map[string]int, len(state.Players))
			for j := range state.Players {
				final[state.Players[j].PlayerID] = state.Players[j].Stack
			}
			state.Street = ""
			state.ActingPlayerID = ""
			state.WinnerPlayerID = winnerID
			events = append(events, s.newEvent(round, sdk.EventPokerGameFinished, sdk.PokerGameFinished{
				WinnerPlayerID: winnerID,
				FinalStacks:    final,
			}))
			return events
		}
	}

	return append(events, s.startPokerHand(state, rt, round)...)
}

// finalizePokerTimeout folds the timed-out player's hand.
func (s *Server) finalizePokerTimeout(snap *sdk.GameSession, playerID string) ([]sdk.Event, error) {
	return s.applyPokerTurn(snap, turnRequest{
		PlayerID: playerID,
		Turn:     mustJSON(sdk.PokerAction{Type: sdk.ActionFold}),
	})
}

func playerState(state *sdk.PokerState, playerID string) *sdk.PokerPlayerState {
	for i := range state.Players {
		if state.Players[i].PlayerID == playerID {
			return &state.Players[i]
		}
	}
	return nil
}

func sessionFinished(state *sdk.PokerState) bool {
	return state.WinnerPlayerID != "" && state.Street == ""
}
