// Autonomous Factorio agent. Connects the LLM decision loop to a running
// Factorio server over RCON and plays until the step budget runs out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	goal := flag.String("goal", "Establish basic iron mining and smelting", "objective for the agent session")
	flag.Parse()

	loop, cleanup, err := createAgent(*configPath, *goal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
