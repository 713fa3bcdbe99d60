package main

import (
	"context"
	"fmt"
	"os"

	"github.com/okian/edurating/internal/cli"
	"github.com/okian/edurating/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	// Snapshot loads log at info; keep stderr quiet unless something fails.
	_ = logger.SetLevelString("warn")

	app := &cli.App{
		RulesFile: os.Getenv("EDURATING_RULES_FILE"),
		Logger:    logger.Named("ratingctl"),
	}
	return cli.NewRootCmd(app).ExecuteContext(context.Background())
}
