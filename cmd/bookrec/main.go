// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

// Package main is the bookrec command.
//
// bookrec runs the book recommender evaluation pipeline over Book-Crossing
// style CSV files: it loads ratings and books, reports matrix diagnostics,
// withholds one rating per sampled user, trains an ALS model with holdout
// monitoring, builds a similarity graph for KNN prediction, compares both
// models on the holdout and prints top-N recommendations.
//
// # Subcommands
//
//	bookrec run   [flags]   one pipeline run, console and JSON report (default)
//	bookrec serve [flags]   HTTP API over the latest run, periodic retraining
//
// # Configuration
//
// Settings are layered (highest priority wins):
//   - command-line flags
//   - BOOKREC_* environment variables (a .env file is read first)
//   - the YAML file given by -config or BOOKREC_CONFIG, else bookrec.yaml
//   - built-in defaults
//
// # Example Usage
//
//	bookrec run -ratings BX-Book-Ratings.csv -books BX-Books.csv -query "harry potter"
//
//	BOOKREC_DUCKDB_ENABLED=true BOOKREC_RETRAIN_EVERY=6h bookrec serve -config bookrec.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tomtom215/bookrec/internal/logging"
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := execute(ctx, os.Args[1:], os.Stdout)
	if errors.Is(err, errUsage) {
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("bookrec failed")
		stop()
		os.Exit(1)
	}
}

// execute dispatches a subcommand.
func execute(ctx context.Context, args []string, stdout io.Writer) error {
	inv, err := parseArgs(args, os.Stderr)
	if err != nil {
		return err
	}

	cfg, err := inv.config()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(cfg.Logging.ToLogging())

	res, err := openResources(cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	switch inv.command {
	case commandServe:
		return serve(ctx, cfg, res)
	default:
		return runOnce(ctx, cfg, res, stdout)
	}
}
