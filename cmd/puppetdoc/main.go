package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/puppetdoc-mcp/internal/cli"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	// Cancel on shutdown signals so serve and index stop gracefully
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := cli.BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
	if err := cli.Execute(ctx, build, os.Args[1:]); err != nil {
		stop()
		os.Exit(1)
	}
}
