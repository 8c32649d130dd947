// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/bookrec/internal/database"
	"github.com/tomtom215/bookrec/internal/recommend"
)

func (h *Handler) requireDB(w http.ResponseWriter, r *http.Request) bool {
	if h.db == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Database not enabled")
		return false
	}
	return true
}

// TopBooks handles GET /api/v1/books/top?author=&from=&to=&min=&n=.
func (h *Handler) TopBooks(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w, r) {
		return
	}
	rw := NewResponseWriter(w, r)

	req := TopBooksRequest{
		Author:     strings.TrimSpace(r.URL.Query().Get("author")),
		From:       getIntParam(r, "from", 0),
		To:         getIntParam(r, "to", 0),
		MinRatings: getIntParam(r, "min", 1),
		N:          getIntParam(r, "n", defaultSearchSize),
	}
	if !validateRequest(rw, &req) {
		return
	}

	books, err := h.db.TopRatedBooks(r.Context(), database.BookFilter{
		Author:     req.Author,
		YearFrom:   req.From,
		YearTo:     req.To,
		MinRatings: req.MinRatings,
		Limit:      req.N,
	})
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if books == nil {
		books = []database.BookStats{}
	}
	rw.SuccessWithMeta(books, &APIMeta{Count: intPtr(len(books))})
}

// RatingDistribution handles GET /api/v1/ratings/distribution. It counts the
// persisted ratings table, zero-filled over the rating scale.
func (h *Handler) RatingDistribution(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w, r) {
		return
	}
	rw := NewResponseWriter(w, r)

	dist, err := h.db.RatingDistribution(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(zeroFilled(dist))
}

// Runs handles GET /api/v1/runs?n=.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w, r) {
		return
	}
	rw := NewResponseWriter(w, r)

	req := RunsRequest{N: getIntParam(r, "n", defaultRunsLimit)}
	if !validateRequest(rw, &req) {
		return
	}
	runs, err := h.db.Runs(r.Context(), req.N)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if runs == nil {
		runs = []database.Run{}
	}
	rw.SuccessWithMeta(runs, &APIMeta{Count: intPtr(len(runs))})
}

// RunIterations handles GET /api/v1/runs/{id}/iterations. A run without a
// stored series is reported as not found.
func (h *Handler) RunIterations(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w, r) {
		return
	}
	rw := NewResponseWriter(w, r)

	req := RunRequest{RunID: chi.URLParam(r, "id")}
	if !validateRequest(rw, &req) {
		return
	}
	series, err := h.db.Iterations(r.Context(), req.RunID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if len(series) == 0 {
		rw.NotFound(ErrCodeNotFound, "No iterations stored for run "+req.RunID)
		return
	}
	rw.SuccessWithMeta(map[string]any{
		"state":      series[len(series)-1].State,
		"iterations": series,
	}, &APIMeta{RunID: req.RunID, Count: intPtr(len(series))})
}

// RunRecommendations handles GET /api/v1/runs/{id}/recommendations?user=a,b.
// Lists come from the recommendations table joined with books.
func (h *Handler) RunRecommendations(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w, r) {
		return
	}
	rw := NewResponseWriter(w, r)

	req := RunRequest{RunID: chi.URLParam(r, "id"), Users: getListParam(r, "user")}
	if !validateRequest(rw, &req) {
		return
	}
	views, err := h.db.RecommendationsWithCatalog(r.Context(), req.RunID, req.Users...)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if len(views) == 0 {
		rw.NotFound(ErrCodeNotFound, "No recommendations stored for run "+req.RunID)
		return
	}
	rw.SuccessWithMeta(views, &APIMeta{RunID: req.RunID, Count: intPtr(len(views))})
}

// zeroFilled maps a sparse per-value count onto every rating value.
func zeroFilled(dist map[int]int) map[int]int {
	out := make(map[int]int, recommend.MaxRatingValue)
	for v := recommend.MinRatingValue; v <= recommend.MaxRatingValue; v++ {
		out[v] = dist[v]
	}
	return out
}
