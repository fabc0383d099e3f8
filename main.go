package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mapfold/regiongraph-cli/cmd"
)

// main is the entry point for the regiongraph CLI.
func main() {
	// A signal-aware context lets a long join or export abort cleanly
	// on Ctrl+C instead of leaving a partial artifact directory behind.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
