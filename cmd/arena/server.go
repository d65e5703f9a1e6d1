package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/agentarena/arena/internal/server"
)

type ServerCmd struct {
	Addr          string        `help:"Listen address" default:":8080"`
	Seed          int64         `help:"RNG seed for deterministic dealing (0 means random)"`
	SessionTTL    time.Duration `help:"Idle session lifetime before reclamation" default:"2h"`
	SweepInterval time.Duration `help:"Reclamation sweep interval" default:"1m"`
	MatchWindow   time.Duration `help:"Matchmaking waiting deadline" default:"2m"`
}

func (c *ServerCmd) Run(logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []server.Option{
		server.WithSessionTTL(c.SessionTTL),
		server.WithSweepInterval(c.SweepInterval),
		server.WithMatchWindow(c.MatchWindow),
	}
	if c.Seed != 0 {
		opts = append(opts, server.WithSeed(c.Seed))
	}

	return server.New(logger, opts...).Run(ctx, c.Addr)
}
