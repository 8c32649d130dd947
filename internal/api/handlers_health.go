// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/bookrec/internal/recommend"
	"github.com/tomtom215/bookrec/internal/recommend/algorithms"
)

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status            string    `json:"status"`
	Uptime            float64   `json:"uptime_seconds"`
	RunID             string    `json:"run_id,omitempty"`
	TrainedAt         time.Time `json:"trained_at,omitempty"`
	DatabaseConnected *bool     `json:"database_connected,omitempty"`
}

// Health reports "ok" once a snapshot is published and "starting" before.
// It always answers 200 so liveness probes do not restart a process that
// is still training.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status: "starting",
		Uptime: time.Since(h.startTime).Seconds(),
	}
	if s := h.snapshots.Load(); s != nil {
		status.Status = "ok"
		status.RunID = s.RunID
		status.TrainedAt = s.CreatedAt
	}
	if h.db != nil {
		ok := h.db.Ping(r.Context()) == nil
		status.DatabaseConnected = &ok
		if !ok {
			status.Status = "degraded"
		}
	}
	NewResponseWriter(w, r).Success(status)
}

// StatsResponse is the /api/v1/stats payload.
type StatsResponse struct {
	recommend.Summary
	TrainRatings int                      `json:"train_ratings"`
	Holdout      int                      `json:"holdout"`
	FactorUsers  int                      `json:"factor_users"`
	FactorItems  int                      `json:"factor_items"`
	Rank         int                      `json:"rank"`
	CatalogBooks int                      `json:"catalog_books"`
	SearchTokens int                      `json:"search_tokens"`
	State        algorithms.TrainingState `json:"state"`
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	s, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	resp := StatsResponse{
		Summary:      s.Summary,
		TrainRatings: s.Train.Count(),
		Holdout:      s.Holdout.Len(),
		FactorUsers:  len(s.Model.UserFactors),
		FactorItems:  len(s.Model.ItemFactors),
		Rank:         s.Model.Rank,
		State:        s.State,
	}
	if s.Catalog != nil {
		resp.CatalogBooks = s.Catalog.Len()
	}
	if s.Search != nil {
		resp.SearchTokens = s.Search.Tokens()
	}
	NewResponseWriter(w, r).SuccessWithMeta(resp, &APIMeta{RunID: s.RunID})
}

// TrainingIterations handles GET /api/v1/training/iterations.
func (h *Handler) TrainingIterations(w http.ResponseWriter, r *http.Request) {
	s, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	NewResponseWriter(w, r).SuccessWithMeta(map[string]any{
		"state":      s.State,
		"iterations": s.Iterations,
	}, &APIMeta{RunID: s.RunID, Count: intPtr(len(s.Iterations))})
}
