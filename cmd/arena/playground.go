package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/agentarena/arena/sdk"
)

type PlaygroundCmd struct {
	clientFlags

	Kind     string   `arg:"" enum:"chess,poker" help:"Game kind (chess or poker)"`
	Agent    string   `help:"Controlling agent ID" env:"ARENA_AGENT_ID" required:""`
	Opponent string   `help:"Optional second agent (defaults to self-play)"`
	FEN      string   `help:"Chess: seed position as FEN"`
	Moves    []string `help:"Chess: seed by replaying a move list"`

	SmallBlind    int `help:"Poker: small blind" default:"10"`
	BigBlind      int `help:"Poker: big blind" default:"20"`
	StartingStack int `help:"Poker: starting stack" default:"1000"`
}

func (c *PlaygroundCmd) Run(logger *log.Logger) error {
	transport, cfg, err := c.setup(logger)
	if err != nil {
		return err
	}
	ctx := context.Background()

	manager := sdk.NewLifecycleManager(transport, logger, sessionOptions(cfg)...)

	var session *sdk.GameSession
	switch sdk.GameKind(c.Kind) {
	case sdk.GameChess:
		client, err := manager.CreateChess(ctx, sdk.ChessCreateRequest{
			AgentID:  c.Agent,
			Opponent: c.Opponent,
			FEN:      c.FEN,
			Moves:    c.Moves,
		})
		if err != nil {
			return err
		}
		session = client.Session()
	case sdk.GamePoker:
		client, err := manager.CreatePoker(ctx, sdk.PokerCreateRequest{
			AgentID:  c.Agent,
			Opponent: c.Opponent,
			Config: &sdk.PokerConfig{
				SmallBlind:    c.SmallBlind,
				BigBlind:      c.BigBlind,
				StartingStack: c.StartingStack,
			},
		})
		if err != nil {
			return err
		}
		session = client.Session()
	}

	fmt.Println(headerStyle.Render("playground session created"))
	fmt.Printf("%s %s\n", labelStyle.Render("session:"), session.ID)
	fmt.Printf("%s %s\n", labelStyle.Render("kind:   "), session.Kind)
	fmt.Printf("%s %d\n", labelStyle.Render("version:"), session.Version)
	for _, p := range session.Players {
		fmt.Printf("%s %s (seat %s)\n", labelStyle.Render("player: "), p.ID, p.Seat)
	}
	return nil
}
