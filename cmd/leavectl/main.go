/*
main.go - Operator CLI for the leave record store

PURPOSE:
  Maintenance tasks that should not be exposed over HTTP. Uses the same
  configuration and store factory as the server, so it always acts on
  the store the server is configured with.

COMMANDS:
  list    [-status pending|approved|rejected] [-employee id]
  summary -employee id [-year 2026]
  clear   [-yes]     Back up the store next to its file, then empty it

EXAMPLES:
  leavectl list -status pending
  leavectl -config ./config/leave.yaml summary -employee alice
  leavectl clear -yes
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/warp/leave-tracker/config"
	"github.com/warp/leave-tracker/store"
	"go.uber.org/zap"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: leavectl [-config file] <list|summary|clear> [flags]\n")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		color.Red("Failed to load config: %v", err)
		os.Exit(1)
	}

	// The CLI only reports warnings from the store.
	logger, err := config.NewLogger(config.LogConfig{Level: "warn", Format: "console"})
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	records, closer, err := store.Open(cfg.Store, logger)
	if err != nil {
		color.Red("Failed to open store: %v", err)
		os.Exit(1)
	}
	defer closer.Close()

	loc, err := cfg.Location()
	if err != nil {
		color.Red("Invalid time zone: %v", err)
		os.Exit(1)
	}

	c := &cli{store: records, storePath: cfg.Store.Path, out: os.Stdout, loc: loc}
	ctx := context.Background()
	args := flag.Args()

	switch args[0] {
	case "list":
		err = c.list(ctx, args[1:])
	case "summary":
		err = c.summary(ctx, args[1:])
	case "clear":
		err = c.clear(ctx, args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		color.Red("%s: %v", args[0], err)
		os.Exit(1)
	}
}
