// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package pipeline

import (
	"time"

	"github.com/tomtom215/bookrec/internal/ingest"
	"github.com/tomtom215/bookrec/internal/recommend"
	"github.com/tomtom215/bookrec/internal/recommend/algorithms"
)

// Result is everything a run reports. It holds no factor matrices.
type Result struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`

	RatingsFile ingest.FileReport  `json:"ratings_file"`
	BooksFile   *ingest.FileReport `json:"books_file,omitempty"`

	CatalogLoad *recommend.LoadStats `json:"catalog_load,omitempty"`
	RatingLoad  recommend.LoadStats  `json:"rating_load"`

	Summary   recommend.Summary          `json:"summary"`
	MostRated []recommend.ItemPopularity `json:"most_rated"`

	Holdout HoldoutReport `json:"holdout"`
	Fit     FitReport     `json:"fit"`

	Similarity SimilarityReport `json:"similarity"`

	Query           string                     `json:"query,omitempty"`
	QueryHits       int                        `json:"query_hits,omitempty"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
	ColdUsers       []string                   `json:"cold_users,omitempty"`

	Evaluations []algorithms.Evaluation `json:"evaluations"`

	ModelVersion int `json:"model_version,omitempty"`
}

// HoldoutReport describes the train/holdout split.
type HoldoutReport struct {
	Withheld      int `json:"withheld"`
	TrainRatings  int `json:"train_ratings"`
	DroppedUsers  int `json:"dropped_users"`
	DroppedItems  int `json:"dropped_items"`
	TrainUsers    int `json:"train_users"`
	TrainItems    int `json:"train_items"`
	HoldoutUsable int `json:"holdout_usable"`
}

// FitReport describes the ALS fit.
type FitReport struct {
	State      algorithms.TrainingState   `json:"state"`
	Iterations []algorithms.IterationStat `json:"iterations"`
	Warning    string                     `json:"warning,omitempty"`
	Duration   time.Duration              `json:"duration_ns"`
}

// SimilarityReport describes the similarity graph.
type SimilarityReport struct {
	Axis      algorithms.Axis    `json:"axis"`
	Measure   algorithms.Measure `json:"measure"`
	Threshold float64            `json:"threshold"`
	Entities  int                `json:"entities"`
	Pairs     int                `json:"pairs"`
}

// Evaluation returns the named evaluation, if present.
func (r *Result) Evaluation(name string) (algorithms.Evaluation, bool) {
	for _, e := range r.Evaluations {
		if e.Name == name {
			return e, true
		}
	}
	return algorithms.Evaluation{}, false
}
