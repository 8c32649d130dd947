// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/tomtom215/bookrec/internal/config"
)

const (
	commandRun   = "run"
	commandServe = "serve"
)

var errUsage = errors.New("usage")

// invocation is a parsed command line.
type invocation struct {
	command    string
	configPath string

	// Overrides applied after config.Load; empty means unset.
	ratings string
	books   string
	query   string
	report  string
	users   string
	port    int
}

// parseArgs reads "[run|serve] [flags]". Without a subcommand it runs.
func parseArgs(args []string, stderr io.Writer) (*invocation, error) {
	inv := &invocation{command: commandRun}
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		switch args[0] {
		case commandRun, commandServe:
			inv.command = args[0]
			args = args[1:]
		default:
			_, _ = fmt.Fprintf(stderr, "unknown command %q (want run or serve)\n", args[0])
			return nil, errUsage
		}
	}

	fs := flag.NewFlagSet("bookrec "+inv.command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&inv.configPath, "config", "", "YAML config file (default: $BOOKREC_CONFIG or ./bookrec.yaml)")
	fs.StringVar(&inv.ratings, "ratings", "", "ratings CSV file")
	fs.StringVar(&inv.books, "books", "", "books CSV file")
	fs.StringVar(&inv.query, "query", "", "restrict recommendations to books matching this search text")
	fs.StringVar(&inv.report, "report", "", "write the JSON report to this path")
	fs.StringVar(&inv.users, "users", "", "comma-separated users to recommend for")
	fs.IntVar(&inv.port, "port", 0, "HTTP port (serve)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, errUsage
		}
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return nil, errUsage
	}
	return inv, nil
}

// config loads the layered configuration and applies flag overrides.
func (inv *invocation) config() (*config.Config, error) {
	cfg, err := config.Load(inv.configPath)
	if err != nil {
		return nil, err
	}
	if inv.ratings != "" {
		cfg.Data.Ratings = inv.ratings
	}
	if inv.books != "" {
		cfg.Data.Books = inv.books
	}
	if inv.query != "" {
		cfg.Recommend.Query = inv.query
	}
	if inv.report != "" {
		cfg.Report.Path = inv.report
	}
	if inv.users != "" {
		cfg.Recommend.Users = splitList(inv.users)
	}
	if inv.port != 0 {
		cfg.Server.Port = inv.port
	}
	return cfg, cfg.Validate()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
