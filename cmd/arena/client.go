package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/agentarena/arena/sdk"
	"github.com/agentarena/arena/sdk/config"
)

// clientFlags are shared by every command that talks to a server.
type clientFlags struct {
	Config string `help:"Path to an HCL config file" default:"arena.hcl"`
	Server string `help:"Server base URL (overrides config)"`
	Token  string `help:"Auth token (overrides config)" env:"ARENA_TOKEN"`
}

// setup loads configuration, applies flag overrides, and builds a transport.
func (f *clientFlags) setup(logger *log.Logger) (*sdk.Transport, *config.Config, error) {
	cfg, err := config.Load(f.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if f.Server != "" {
		cfg.Server.URL = f.Server
	}
	if f.Token != "" {
		cfg.Server.AuthToken = f.Token
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	if level, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	opts := []sdk.TransportOption{
		sdk.WithRetry(cfg.Server.RetryAttempts, time.Duration(cfg.Server.RetryDelayMS)*time.Millisecond),
	}
	if cfg.Server.AuthToken != "" {
		opts = append(opts, sdk.WithTokenProvider(staticTokens{token: cfg.Server.AuthToken}))
	}

	return sdk.NewTransport(cfg.Server.URL, logger, opts...), cfg, nil
}

// sessionOptions translates config polling settings into client options.
func sessionOptions(cfg *config.Config) []sdk.SessionOption {
	return []sdk.SessionOption{
		sdk.WithPollHold(time.Duration(cfg.Polling.HoldSeconds) * time.Second),
		sdk.WithTurnDeadline(time.Duration(cfg.Polling.TurnDeadlineSeconds) * time.Second),
	}
}

// staticTokens supplies a fixed token from flags or config. There is nothing
// to refresh, so an expired token surfaces as a hard auth failure.
type staticTokens struct {
	token string
}

func (s staticTokens) Token(ctx context.Context) (string, error) { return s.token, nil }

func (s staticTokens) Refresh(ctx context.Context) error {
	return fmt.Errorf("static token cannot be refreshed")
}
