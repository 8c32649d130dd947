// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/tomtom215/bookrec/internal/recommend"
	"github.com/tomtom215/bookrec/internal/recommend/algorithms"
	"github.com/tomtom215/bookrec/internal/search"
)

// Snapshot is the read-only serving state produced by one run. Every field
// is immutable once published, so a Snapshot can be shared by concurrent
// requests and replaced wholesale by a retrain.
type Snapshot struct {
	RunID     string
	CreatedAt time.Time

	// ModelVersion is the model store version of Model, 0 when the run
	// was not persisted.
	ModelVersion int

	// Catalog and Search are nil when the run had no books file.
	Catalog *recommend.Catalog
	Search  *search.Index

	Store   *recommend.RatingStore
	Train   *recommend.RatingStore
	Holdout *recommend.HoldoutSet
	Model   *recommend.FactorModel
	KNN     *algorithms.KNN

	Summary    recommend.Summary
	Iterations []algorithms.IterationStat
	State      algorithms.TrainingState
}

// RecommendOptions shapes one Recommend call.
type RecommendOptions struct {
	N int

	// Query restricts candidates to search hits; QueryLimit caps the hits.
	Query      string
	QueryLimit int

	// ExcludeRated drops the user's training items.
	ExcludeRated bool
}

// Recommend produces a top-N list for userID.
func (s *Snapshot) Recommend(userID string, opts RecommendOptions) ([]recommend.Recommendation, error) {
	q := algorithms.Query{UserID: userID, N: opts.N}
	if opts.Query != "" && s.Search != nil {
		q.Candidates = s.Search.Candidates(opts.Query, opts.QueryLimit)
	}
	if opts.ExcludeRated {
		rated := s.Train.ByUser(userID)
		q.Exclude = make(recommend.ItemSet, len(rated))
		for _, r := range rated {
			q.Exclude[r.ItemID] = struct{}{}
		}
	}
	return algorithms.TopN(s.Model, q)
}

// Predict estimates a rating with KNN. k <= 0 uses the configured K.
func (s *Snapshot) Predict(userID, itemID string, k int) (algorithms.Prediction, error) {
	if k <= 0 {
		return s.KNN.Predict(userID, itemID)
	}
	return algorithms.PredictKNN(s.KNN.Graph(), s.Train, userID, itemID, k)
}

// SearchBooks runs a catalog query. It returns nil without a catalog.
func (s *Snapshot) SearchBooks(text string, n int) []search.Hit {
	if s.Search == nil {
		return nil
	}
	return s.Search.Query(text, n)
}

// Book looks up catalog metadata.
func (s *Snapshot) Book(itemID string) (recommend.Item, bool) {
	if s.Catalog == nil {
		return recommend.Item{}, false
	}
	return s.Catalog.Get(itemID)
}

// Holder publishes the current Snapshot to concurrent readers. A retrain
// swaps in a new snapshot without blocking requests in flight.
type Holder struct {
	p atomic.Pointer[Snapshot]
}

// Load returns the current snapshot, or nil before the first run completes.
func (h *Holder) Load() *Snapshot { return h.p.Load() }

// Store publishes s.
func (h *Holder) Store(s *Snapshot) { h.p.Store(s) }
