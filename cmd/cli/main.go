// Package main is the entry point for the partquote CLI.
package main

import (
	"context"
	"os"
	"os/signal"

	"partquote/cmd/cli/cmd"
	"partquote/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cmd.Execute(ctx)
	stop()
	logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}
