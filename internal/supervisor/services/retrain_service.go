// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bookrec/internal/pipeline"
)

// Trainer runs the pipeline once. *pipeline.Pipeline implements it.
type Trainer interface {
	Run(ctx context.Context) (*pipeline.Result, *pipeline.Snapshot, error)
}

// Publisher receives each new snapshot. *pipeline.Holder implements it.
type Publisher interface {
	Store(s *pipeline.Snapshot)
}

// RetrainServiceConfig holds configuration for the retrain service.
type RetrainServiceConfig struct {
	// Interval between runs. 0 trains once at startup only.
	Interval time.Duration

	// Timeout bounds a single run. 0 means no limit beyond the service
	// context.
	Timeout time.Duration

	// OnResult, when set, is called after every successful run, before
	// the snapshot is published.
	OnResult func(*pipeline.Result)
}

// RetrainService trains at startup and then on a fixed interval, swapping
// the published snapshot after each success. A failed run keeps the
// previous snapshot in service.
type RetrainService struct {
	trainer   Trainer
	publisher Publisher
	config    RetrainServiceConfig
	logger    zerolog.Logger
	name      string
}

// NewRetrainService creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRetrainService(trainer Trainer, publisher Publisher, cfg RetrainServiceConfig, logger zerolog.Logger) *RetrainService {
	return &RetrainService{
		trainer:   trainer,
		publisher: publisher,
		config:    cfg,
		logger:    logger.With().Str("service", "retrain").Logger(),
		name:      "retrain-service",
	}
}

// Serve implements suture.Service.
func (s *RetrainService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.config.Interval).Msg("Retrain service starting")

	if err := s.train(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn().Err(err).Msg("Initial training failed")
	}

	if s.config.Interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Retrain service shutting down")
			return ctx.Err()

		case <-ticker.C:
			if err := s.train(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("Scheduled training failed, keeping previous model")
			}
		}
	}
}

func (s *RetrainService) train(ctx context.Context) error {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, snap, err := s.trainer.Run(ctx)
	if err != nil {
		return err
	}
	if s.config.OnResult != nil {
		s.config.OnResult(res)
	}
	s.publisher.Store(snap)

	s.logger.Info().
		Str("run_id", res.RunID).
		Str("state", string(res.Fit.State)).
		Int("model_version", res.ModelVersion).
		Dur("duration", time.Since(start)).
		Msg("Snapshot published")
	return nil
}

// String implements fmt.Stringer for suture's logs.
func (s *RetrainService) String() string {
	return s.name
}
