// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

/*
Package supervisor runs serve mode under a suture supervisor tree.

The tree has two layers so a crashing retrain cannot take the API down:

	bookrec (root)
	├── training-layer
	│   └── retrain-service   runs the pipeline, publishes snapshots
	└── api-layer
	    └── api-service       serves the current snapshot

Supervisor events (panics, terminations, backoff) go through sutureslog
into a zerolog-backed slog.Logger (logging.NewSlogLogger) with
component=supervisor.

Service wrappers live in the services subpackage.
*/
package supervisor
