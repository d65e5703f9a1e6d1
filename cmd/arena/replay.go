package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/agentarena/arena/sdk"
)

type ReplayCmd struct {
	clientFlags

	SessionID string `arg:"" help:"Session to reconstruct"`
	Kind      string `enum:"chess,poker" default:"chess" help:"Game kind"`
	At        int    `default:"-1" help:"Reconstruct up to this event index (-1 means the full log)"`
	Verify    bool   `help:"Cross-check the local reconstruction against the server"`
}

func (c *ReplayCmd) Run(logger *log.Logger) error {
	transport, cfg, err := c.setup(logger)
	if err != nil {
		return err
	}
	ctx := context.Background()

	client := sdk.NewSessionClient(transport, sdk.GameKind(c.Kind), logger, sessionOptions(cfg)...)
	if _, err := client.Attach(ctx, c.SessionID); err != nil {
		return err
	}

	events, err := client.ListEvents(ctx)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("session %s has no events", c.SessionID)
	}

	upto := c.At
	if upto < 0 {
		upto = len(events) - 1
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("replaying %s: %d of %d events", c.SessionID, upto+1, len(events))))
	for i := 0; i <= upto; i++ {
		fmt.Printf("%s ", labelStyle.Render(fmt.Sprintf("%3d", i)))
		printEvent(events[i])
	}

	var state any
	switch sdk.GameKind(c.Kind) {
	case sdk.GameChess:
		state, err = sdk.ReplayChess(events, upto)
	case sdk.GamePoker:
		state, err = sdk.ReplayPoker(events, upto)
	}
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(finalStyle.Render("reconstructed state"))
	fmt.Println(string(encoded))

	if c.Verify {
		remote, err := client.StateAtEvent(ctx, upto)
		if err != nil {
			return err
		}
		fmt.Println(finalStyle.Render("server state at index " + fmt.Sprint(upto)))
		var pretty json.RawMessage = remote
		if indented, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			fmt.Println(string(indented))
		} else {
			fmt.Println(string(remote))
		}
	}
	return nil
}
