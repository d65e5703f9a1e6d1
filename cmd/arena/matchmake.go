package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/agentarena/arena/sdk"
)

type MatchmakeCmd struct {
	clientFlags

	Kind  string        `arg:"" enum:"chess,poker" help:"Game kind to queue for"`
	Agent string        `help:"Agent ID to enter the queue" env:"ARENA_AGENT_ID" required:""`
	Hold  time.Duration `help:"Long-poll hold per status request" default:"25s"`
}

func (c *MatchmakeCmd) Run(logger *log.Logger) error {
	transport, _, err := c.setup(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coordinator := sdk.NewMatchmakingCoordinator(transport, logger)
	ticket, err := coordinator.Join(ctx, sdk.GameKind(c.Kind), c.Agent, nil)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("queued for " + c.Kind))
	fmt.Printf("%s %s\n", labelStyle.Render("ticket:  "), ticket.ID)
	fmt.Printf("%s %.0fs\n", labelStyle.Render("deadline:"), ticket.TimeRemainingSeconds)

	resolved, err := coordinator.WaitForMatch(ctx, c.Hold)
	if err != nil {
		// Best effort: pull the ticket back out of the queue before leaving.
		if ctx.Err() != nil {
			leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if lerr := coordinator.Leave(leaveCtx); lerr != nil {
				logger.Warn("could not cancel ticket", "error", lerr)
			}
			return nil
		}
		return err
	}

	switch {
	case resolved.Status == sdk.TicketMatched && resolved.GameID != nil:
		fmt.Println(finalStyle.Render("matched"))
		fmt.Printf("%s %s\n", labelStyle.Render("session:"), *resolved.GameID)
	case resolved.Status == sdk.TicketCancelled:
		fmt.Println(errorStyle.Render("ticket cancelled"))
	default:
		fmt.Println(errorStyle.Render("matchmaking window expired"))
	}
	return nil
}
