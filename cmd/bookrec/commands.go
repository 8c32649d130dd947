// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tomtom215/bookrec/internal/api"
	"github.com/tomtom215/bookrec/internal/config"
	"github.com/tomtom215/bookrec/internal/database"
	"github.com/tomtom215/bookrec/internal/logging"
	"github.com/tomtom215/bookrec/internal/pipeline"
	"github.com/tomtom215/bookrec/internal/recommend/storage"
	"github.com/tomtom215/bookrec/internal/report"
	"github.com/tomtom215/bookrec/internal/supervisor"
	"github.com/tomtom215/bookrec/internal/supervisor/services"
)

// resources are the optional stores shared by both commands.
type resources struct {
	db     *database.DB
	models *storage.Store
}

func openResources(cfg *config.Config) (*resources, error) {
	res := &resources{}
	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		res.db = db
	}
	if cfg.ModelStore.Enabled {
		models, err := storage.Open(storage.Config{Path: cfg.ModelStore.Path, InMemory: cfg.ModelStore.InMemory})
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("open model store: %w", err)
		}
		res.models = models
	}
	return res, nil
}

func (r *resources) Close() {
	if r.models != nil {
		if err := r.models.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing model store")
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}
}

func (r *resources) pipeline(cfg *config.Config) *pipeline.Pipeline {
	var opts []pipeline.Option
	if r.db != nil {
		opts = append(opts, pipeline.WithDatabase(r.db))
	}
	if r.models != nil {
		opts = append(opts, pipeline.WithModelStore(r.models))
	}
	return pipeline.New(cfg, opts...)
}

// runOnce executes one pipeline run and writes the reports.
func runOnce(ctx context.Context, cfg *config.Config, res *resources, stdout io.Writer) error {
	result, snap, err := res.pipeline(cfg).Run(ctx)
	if err != nil {
		return err
	}
	if err := writeReport(cfg, result); err != nil {
		return err
	}
	if cfg.Report.Console {
		return report.Render(stdout, result, report.SnapshotTitles(snap))
	}
	return nil
}

func writeReport(cfg *config.Config, result *pipeline.Result) error {
	if cfg.Report.Path == "" {
		return nil
	}
	if err := report.WriteJSON(cfg.Report.Path, result); err != nil {
		return err
	}
	logging.Info().Str("path", cfg.Report.Path).Msg("Report written")
	return nil
}

// serve runs the supervisor tree until ctx is canceled.
func serve(ctx context.Context, cfg *config.Config, res *resources) error {
	holder := &pipeline.Holder{}

	tree := supervisor.NewSupervisorTree(logging.Logger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})

	tree.AddTrainingService(services.NewRetrainService(res.pipeline(cfg), holder, services.RetrainServiceConfig{
		Interval: cfg.Server.RetrainInterval,
		Timeout:  cfg.Server.RetrainTimeout,
		OnResult: func(r *pipeline.Result) {
			if err := writeReport(cfg, r); err != nil {
				logging.Warn().Err(err).Msg("Failed to write report")
			}
		},
	}, logging.Logger()))

	handler := api.NewHandler(holder, res.db, res.models, cfg.Recommend)
	router := api.NewRouter(handler, api.NewMiddleware(api.MiddlewareConfigFromServer(&cfg.Server)))
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	tree.AddAPIService(services.NewAPIService(router.Setup(), services.APIServiceConfig{
		Addr:            addr,
		ReadTimeout:     cfg.Server.Timeout,
		WriteTimeout:    cfg.Server.Timeout,
		ShutdownTimeout: 10 * time.Second,
	}, holder, logging.Logger()))
	logging.Info().
		Str("addr", addr).
		Dur("retrain_interval", cfg.Server.RetrainInterval).
		Dur("retrain_timeout", cfg.Server.RetrainTimeout).
		Msg("Serving")

	err := tree.Serve(ctx)

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
