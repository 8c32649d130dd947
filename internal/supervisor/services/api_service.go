// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

// Package services adapts bookrec components to suture.Service.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bookrec/internal/pipeline"
)

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// SnapshotSource reports the snapshot being served. *pipeline.Holder
// implements it.
type SnapshotSource interface {
	Load() *pipeline.Snapshot
}

// APIServiceConfig holds the listener settings of the API service.
type APIServiceConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// APIService serves the recommendation API until its context is canceled,
// then drains in-flight requests.
//
// An *http.Server cannot listen again after Shutdown, so every Serve call
// builds a fresh server. A restart by the supervisor therefore rebinds the
// address instead of returning ErrServerClosed at once.
type APIService struct {
	handler   http.Handler
	config    APIServiceConfig
	snapshots SnapshotSource
	logger    zerolog.Logger
	name      string

	newServer func() HTTPServer
}

// NewAPIService creates the service. A non-positive ShutdownTimeout means 10s.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAPIService(handler http.Handler, cfg APIServiceConfig, snapshots SnapshotSource, logger zerolog.Logger) *APIService {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &APIService{
		handler:   handler,
		config:    cfg,
		snapshots: snapshots,
		logger:    logger.With().Str("service", "api").Logger(),
		name:      "api-service",
	}
	s.newServer = s.httpServer
	return s
}

func (s *APIService) httpServer() HTTPServer {
	return &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
}

// servingRun is the run id behind the published snapshot, empty before the
// first run completes.
func (s *APIService) servingRun() string {
	if s.snapshots == nil {
		return ""
	}
	if snap := s.snapshots.Load(); snap != nil {
		return snap.RunID
	}
	return ""
}

// Serve implements suture.Service. http.ErrServerClosed is not an error.
func (s *APIService) Serve(ctx context.Context) error {
	server := s.newServer()
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info().Str("addr", s.config.Addr).Str("run_id", s.servingRun()).Msg("API listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api server shutdown failed: %w", err)
		}
		<-errCh
		s.logger.Info().Str("run_id", s.servingRun()).Msg("API stopped")
		return ctx.Err()
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *APIService) String() string {
	return s.name
}
