// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package api

// Request structs declare the accepted query and path parameters of each
// endpoint with go-playground/validator tags. Handlers fill them from the
// request and check them with validateRequest before touching a snapshot
// or the database:
//
//	req := SearchRequest{
//	    Query: strings.TrimSpace(r.URL.Query().Get("q")),
//	    N:     getIntParam(r, "n", defaultSearchSize),
//	}
//	if !validateRequest(rw, &req) {
//	    return
//	}

// RecommendationsRequest is GET /api/v1/users/{id}/recommendations.
//
// Fields:
//   - UserID: path parameter
//   - N: list length (1-1000, default from configuration)
//   - Query: optional search filter over the catalog
//   - ExcludeRated: "true"/"false" (or 1/0); empty uses the configured default
type RecommendationsRequest struct {
	UserID       string `validate:"required,max=64"`
	N            int    `validate:"min=1,max=1000"`
	Query        string `validate:"max=200"`
	ExcludeRated string `validate:"omitempty,oneof=true false 1 0"`
}

// PredictRequest is GET /api/v1/users/{id}/predict/{isbn}. K of 0 uses the
// configured neighbourhood size.
type PredictRequest struct {
	UserID string `validate:"required,max=64"`
	ISBN   string `validate:"len=10"`
	K      int    `validate:"min=0,max=1000"`
}

// SearchRequest is GET /api/v1/search.
type SearchRequest struct {
	Query string `validate:"required,max=200"`
	N     int    `validate:"min=1,max=1000"`
}

// TopBooksRequest is GET /api/v1/books/top. Zero years leave the range open;
// a closed range must not be inverted.
type TopBooksRequest struct {
	Author     string `validate:"max=200"`
	From       int    `validate:"gte=0"`
	To         int    `validate:"omitempty,gte=0,gtefield=From"`
	MinRatings int    `validate:"min=1"`
	N          int    `validate:"min=1,max=1000"`
}

// RunsRequest is GET /api/v1/runs.
type RunsRequest struct {
	N int `validate:"min=1,max=1000"`
}

// RunRequest addresses one stored run: GET /api/v1/runs/{id}/iterations and
// /api/v1/runs/{id}/recommendations?user=a,b.
type RunRequest struct {
	RunID string   `validate:"required,max=64"`
	Users []string `validate:"max=100,dive,required,max=64"`
}

// ModelRequest is GET /api/v1/models/{version}.
type ModelRequest struct {
	Version int `validate:"min=1"`
}
