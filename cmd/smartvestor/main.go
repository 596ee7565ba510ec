// Command smartvestor runs the ledger core, state publisher, and terminal
// UI client, and carries the migrate/cutover operator subcommands.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	xlog "github.com/luxfi/smartvestor/log"
)

const clientIdentifier = "smartvestor"

var app = &cli.App{
	Name:    clientIdentifier,
	Usage:   "automated crypto-investment ledger, reconciliation, and terminal UI",
	Version: "0.1.0",
}

func init() {
	app.Commands = []*cli.Command{
		runCommand,
		migrateCommand,
		cutoverCommand,
	}
	app.Before = func(c *cli.Context) error {
		level, err := xlog.LvlFromString(c.String("log-level"))
		if err != nil {
			level = xlog.LevelInfo
		}
		lv := new(slog.LevelVar)
		lv.Set(level)
		xlog.SetDefault(xlog.NewLogger(xlog.NewTerminalHandlerWithLevel(xlog.Stderr, lv, true)))
		return nil
	}
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "trace|debug|info|warn|error|crit"},
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
