package main

import (
	"context"
	"fmt"
	"net/url"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/agentarena/arena/sdk"
)

type WatchCmd struct {
	clientFlags

	SessionID string `arg:"" help:"Session to follow"`
	Kind      string `enum:"chess,poker" default:"chess" help:"Game kind"`
	Live      bool   `help:"Stream events over the websocket feed instead of long polling"`
}

func (c *WatchCmd) Run(logger *log.Logger) error {
	transport, cfg, err := c.setup(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Live {
		return c.watchLive(ctx, cfg.Server.URL)
	}

	client := sdk.NewSessionClient(transport, sdk.GameKind(c.Kind), logger, sessionOptions(cfg)...)
	session, err := client.Attach(ctx, c.SessionID)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("watching %s (%s)", session.ID, session.Kind)))
	printSession(session)
	for _, ev := range session.Events {
		printEvent(ev)
	}

	for session.Status != sdk.SessionFinished {
		next, changed, err := client.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if sdk.IsTransient(err) {
				logger.Warn("poll failed, retrying", "error", err)
				continue
			}
			return err
		}
		if !changed {
			continue
		}

		for _, ev := range next.Events[len(session.Events):] {
			printEvent(ev)
		}
		printSession(next)
		session = next
	}

	fmt.Println(finalStyle.Render("session finished"))
	return nil
}

// watchLive consumes the read-only spectator feed. The sync protocol itself is
// HTTP long poll; the feed is a convenience stream of the same event log.
func (c *WatchCmd) watchLive(ctx context.Context, serverURL string) error {
	target, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}
	target.Path = "/games/" + c.SessionID + "/feed"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	fmt.Println(headerStyle.Render("live feed for " + c.SessionID))
	for {
		var msg struct {
			Type    string      `json:"type"`
			Version int64       `json:"version"`
			Events  []sdk.Event `json:"events"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read feed: %w", err)
		}
		for _, ev := range msg.Events {
			printEvent(ev)
		}
		fmt.Println(labelStyle.Render(fmt.Sprintf("version %d", msg.Version)))
	}
}

func printSession(session *sdk.GameSession) {
	line := fmt.Sprintf("version %d, turn %d", session.Version, session.TurnNumber)
	if session.NextPlayerID != "" {
		line += ", to act: " + session.NextPlayerID
	}
	fmt.Println(labelStyle.Render(line))
}

func printEvent(ev sdk.Event) {
	line := fmt.Sprintf("[%d] %s", ev.RoundNumber, ev.Type)
	if len(ev.Payload) > 0 {
		line += " " + string(ev.Payload)
	}
	fmt.Println(eventStyle.Render(line))
}
