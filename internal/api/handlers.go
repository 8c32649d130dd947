// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/bookrec/internal/config"
	"github.com/tomtom215/bookrec/internal/database"
	"github.com/tomtom215/bookrec/internal/pipeline"
	"github.com/tomtom215/bookrec/internal/recommend/storage"
	"github.com/tomtom215/bookrec/internal/validation"
)

const (
	defaultSearchSize = 20
	defaultRunsLimit  = 20
)

// SnapshotSource yields the snapshot requests are answered from.
// *pipeline.Holder implements it.
type SnapshotSource interface {
	Load() *pipeline.Snapshot
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, shared helpers
//   - handlers_health.go: health and diagnostics endpoints
//   - handlers_recommend.go: recommendation, prediction and search endpoints
//   - handlers_db.go: DuckDB-backed endpoints
//   - handlers_models.go: model store endpoints
type Handler struct {
	snapshots SnapshotSource
	db        *database.DB
	models    *storage.Store
	recommend config.RecommendConfig
	startTime time.Time
}

// NewHandler creates a handler. db and models may be nil; their endpoints
// then answer 503.
func NewHandler(snapshots SnapshotSource, db *database.DB, models *storage.Store, rc config.RecommendConfig) *Handler {
	return &Handler{
		snapshots: snapshots,
		db:        db,
		models:    models,
		recommend: rc,
		startTime: time.Now(),
	}
}

// BookView is catalog metadata in responses.
type BookView struct {
	ISBN      string `json:"isbn"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Year      int    `json:"year"`
	Publisher string `json:"publisher"`
}

func bookView(s *pipeline.Snapshot, id string) *BookView {
	it, ok := s.Book(id)
	if !ok {
		return nil
	}
	return &BookView{ISBN: it.ItemID, Title: it.Title, Author: it.Author, Year: it.Year, Publisher: it.Publisher}
}

// snapshot returns the current snapshot or answers 503.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (*pipeline.Snapshot, bool) {
	s := h.snapshots.Load()
	if s == nil {
		NewResponseWriter(w, r).ServiceUnavailable("No model trained yet")
		return nil, false
	}
	return s, true
}

// invalidParam stands in for an unparsable integer. Every request struct
// bounds its integers at zero or above, so validation rejects it.
const invalidParam = -1

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	return parseIntParam(r.URL.Query().Get(key), defaultValue)
}

// parseIntParam parses a path or query value. Empty yields defaultValue.
func parseIntParam(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return invalidParam
	}
	return n
}

// getListParam splits a comma-separated query parameter, dropping blanks.
func getListParam(r *http.Request, key string) []string {
	var out []string
	for _, v := range strings.Split(r.URL.Query().Get(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// validateRequest checks req against its validate tags and answers 400 with
// every field error when it fails.
func validateRequest(rw *ResponseWriter, req interface{}) bool {
	verr := validation.ValidateStruct(req)
	if verr == nil {
		return true
	}
	details := make(map[string]string, len(verr.Errors()))
	for _, fe := range verr.Errors() {
		details[fe.Field()] = fe.Error()
	}
	rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeBadRequest, verr.First().Error(), details)
	return false
}
