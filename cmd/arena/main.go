package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Debug   bool             `help:"Enable debug logging"`

	Server     ServerCmd     `cmd:"" help:"Run the reference arena server"`
	Playground PlaygroundCmd `cmd:"" help:"Create a playground session"`
	Watch      WatchCmd      `cmd:"" help:"Follow a session's state via long polling"`
	Replay     ReplayCmd     `cmd:"" help:"Reconstruct a session's history from its event log"`
	Matchmake  MatchmakeCmd  `cmd:"" help:"Queue an agent for a ranked game"`
	Delete     DeleteCmd     `cmd:"" help:"Delete a session"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("arena"),
		kong.Description("Client and reference server for the arena game session protocol"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)

	logger := setupLogger(cli.Debug)
	err := ctx.Run(logger)
	ctx.FatalIfErrorf(err)
}

func setupLogger(debug bool) *log.Logger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})
}
