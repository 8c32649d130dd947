// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/bookrec/internal/metrics"
	"github.com/tomtom215/bookrec/internal/pipeline"
	"github.com/tomtom215/bookrec/internal/recommend"
	"github.com/tomtom215/bookrec/internal/recommend/algorithms"
)

// RecommendationView is one ranked entry with catalog metadata when known.
type RecommendationView struct {
	recommend.Recommendation
	Book *BookView `json:"book,omitempty"`
}

// Recommendations handles GET /api/v1/users/{id}/recommendations.
//
// Query parameters: n (list length), q (search filter), exclude_rated
// (true/false, default from configuration).
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	start := time.Now()
	s, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	req := RecommendationsRequest{
		UserID:       chi.URLParam(r, "id"),
		N:            getIntParam(r, "n", h.recommend.N),
		Query:        strings.TrimSpace(r.URL.Query().Get("q")),
		ExcludeRated: strings.ToLower(r.URL.Query().Get("exclude_rated")),
	}
	if !validateRequest(rw, &req) {
		return
	}
	exclude := h.recommend.ExcludeRated
	if req.ExcludeRated != "" {
		exclude = req.ExcludeRated == "true" || req.ExcludeRated == "1"
	}

	recs, err := s.Recommend(req.UserID, pipeline.RecommendOptions{
		N:            req.N,
		Query:        req.Query,
		QueryLimit:   h.recommend.QueryCandidates,
		ExcludeRated: exclude,
	})
	if err != nil {
		var uue *recommend.UnknownUserError
		if errors.As(err, &uue) {
			metrics.RecordRecommend("api_topn", "unknown_user", time.Since(start))
			rw.NotFound(ErrCodeUnknownUser, uue.Error())
			return
		}
		metrics.RecordRecommend("api_topn", "error", time.Since(start))
		rw.InternalError("Failed to generate recommendations", err)
		return
	}
	metrics.RecordRecommend("api_topn", "ok", time.Since(start))

	views := make([]RecommendationView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, RecommendationView{Recommendation: rec, Book: bookView(s, rec.ItemID)})
	}
	rw.SuccessWithMeta(views, &APIMeta{RunID: s.RunID, Count: intPtr(len(views))})
}

// PredictionResponse is the /predict payload.
type PredictionResponse struct {
	UserID string `json:"user_id"`
	ISBN   string `json:"isbn"`
	algorithms.Prediction
	ALS  *float64  `json:"als,omitempty"`
	Book *BookView `json:"book,omitempty"`
}

// Predict handles GET /api/v1/users/{id}/predict/{isbn}?k=.
// The ALS estimate is included when both factor vectors exist.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	start := time.Now()
	s, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	req := PredictRequest{
		UserID: chi.URLParam(r, "id"),
		ISBN:   strings.ToUpper(chi.URLParam(r, "isbn")),
		K:      getIntParam(r, "k", 0),
	}
	if !validateRequest(rw, &req) {
		return
	}

	p, err := s.Predict(req.UserID, req.ISBN, req.K)
	if err != nil {
		var (
			ine *recommend.InsufficientNeighborsError
			uue *recommend.UnknownUserError
		)
		switch {
		case errors.As(err, &ine):
			metrics.RecordRecommend("api_knn", "no_neighbors", time.Since(start))
			rw.NotFound(ErrCodeInsufficientNeighbors, ine.Error())
			return
		case errors.As(err, &uue):
			metrics.RecordRecommend("api_knn", "unknown_user", time.Since(start))
			rw.NotFound(ErrCodeUnknownUser, uue.Error())
			return
		}
		metrics.RecordRecommend("api_knn", "error", time.Since(start))
		rw.InternalError("Failed to predict rating", err)
		return
	}
	metrics.RecordRecommend("api_knn", "ok", time.Since(start))

	resp := PredictionResponse{UserID: req.UserID, ISBN: req.ISBN, Prediction: p, Book: bookView(s, req.ISBN)}
	if v, ok := s.Model.Predict(req.UserID, req.ISBN); ok {
		resp.ALS = &v
	}
	rw.SuccessWithMeta(resp, &APIMeta{RunID: s.RunID})
}

// SearchHitView is one search result.
type SearchHitView struct {
	ISBN    string    `json:"isbn"`
	Matched int       `json:"matched"`
	TF      int       `json:"tf"`
	Book    *BookView `json:"book,omitempty"`
}

// Search handles GET /api/v1/search?q=&n=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	s, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	if s.Search == nil {
		rw.ServiceUnavailable("No catalog loaded")
		return
	}
	req := SearchRequest{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		N:     getIntParam(r, "n", defaultSearchSize),
	}
	if !validateRequest(rw, &req) {
		return
	}

	hits := s.SearchBooks(req.Query, req.N)
	views := make([]SearchHitView, 0, len(hits))
	for _, hit := range hits {
		views = append(views, SearchHitView{ISBN: hit.ItemID, Matched: hit.Matched, TF: hit.TF, Book: bookView(s, hit.ItemID)})
	}
	rw.SuccessWithMeta(views, &APIMeta{RunID: s.RunID, Count: intPtr(len(views))})
}
