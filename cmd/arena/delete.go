package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/agentarena/arena/sdk"
)

type DeleteCmd struct {
	clientFlags

	SessionID string `arg:"" help:"Session to delete"`
}

func (c *DeleteCmd) Run(logger *log.Logger) error {
	transport, _, err := c.setup(logger)
	if err != nil {
		return err
	}
	ctx := context.Background()

	if err := sdk.DeleteSession(ctx, transport, c.SessionID); err != nil {
		return err
	}

	fmt.Println(finalStyle.Render("session deleted"))
	return nil
}
