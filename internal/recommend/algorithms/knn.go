// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package algorithms

import (
	"errors"

	"github.com/tomtom215/bookrec/internal/recommend"
)

// KNNConfig contains configuration for neighbour-weighted prediction.
type KNNConfig struct {
	// K is the maximum number of neighbours averaged.
	K int `json:"k" koanf:"k" validate:"gte=1"`

	// Fallback makes Predict answer with the item mean (or the global mean)
	// instead of failing when no neighbour qualifies.
	Fallback bool `json:"fallback" koanf:"fallback"`
}

// DefaultKNNConfig returns K=20 with fallback disabled.
func DefaultKNNConfig() KNNConfig {
	return KNNConfig{K: 20}
}

// Prediction is a KNN rating estimate.
type Prediction struct {
	Value     float64 `json:"value"`
	Neighbors int     `json:"neighbors"`
	Fallback  bool    `json:"fallback"`
}

// PredictKNN estimates user's rating of item as the similarity-weighted
// average over at most k neighbours:
//
//	user axis: the most similar users to user who rated item
//	item axis: the most similar items to item that user rated
//
// It returns *recommend.UnknownUserError for a user outside the store and
// *recommend.InsufficientNeighborsError when no neighbour qualifies.
func PredictKNN(g *SimilarityGraph, store *recommend.RatingStore, user, item string, k int) (Prediction, error) {
	if !store.HasUser(user) {
		return Prediction{}, &recommend.UnknownUserError{UserID: user}
	}
	if k <= 0 {
		k = DefaultKNNConfig().K
	}

	anchor := user
	if g.Axis() == AxisItem {
		anchor = item
	}

	var num, den float64
	used := 0
	for _, n := range g.Neighbors(anchor) {
		if used == k {
			break
		}
		var r recommend.Rating
		var ok bool
		if g.Axis() == AxisItem {
			r, ok = store.Get(user, n.ID)
		} else {
			r, ok = store.Get(n.ID, item)
		}
		if !ok {
			continue
		}
		num += n.Score * float64(r.Value)
		den += n.Score
		used++
	}

	if used == 0 || den == 0 {
		return Prediction{}, &recommend.InsufficientNeighborsError{ID: anchor, ItemID: item, Found: used}
	}
	return Prediction{Value: num / den, Neighbors: used}, nil
}

// ItemMean returns the mean rating of item, or the store mean when the item
// has no ratings.
func ItemMean(store *recommend.RatingStore, item string) float64 {
	rs := store.ByItem(item)
	if len(rs) == 0 {
		return store.MeanRating()
	}
	var s int
	for _, r := range rs {
		s += r.Value
	}
	return float64(s) / float64(len(rs))
}

// KNN binds a similarity graph to the store it was built from.
type KNN struct {
	graph  *SimilarityGraph
	store  *recommend.RatingStore
	config KNNConfig
}

// NewKNN creates a predictor.
func NewKNN(g *SimilarityGraph, store *recommend.RatingStore, cfg KNNConfig) *KNN {
	if cfg.K <= 0 {
		cfg.K = DefaultKNNConfig().K
	}
	return &KNN{graph: g, store: store, config: cfg}
}

// Graph returns the underlying similarity graph.
func (k *KNN) Graph() *SimilarityGraph { return k.graph }

// Predict runs PredictKNN and, with Fallback enabled, answers
// InsufficientNeighborsError with ItemMean.
func (k *KNN) Predict(user, item string) (Prediction, error) {
	p, err := PredictKNN(k.graph, k.store, user, item, k.config.K)
	if err == nil || !k.config.Fallback {
		return p, err
	}
	var ine *recommend.InsufficientNeighborsError
	if errors.As(err, &ine) {
		return Prediction{Value: ItemMean(k.store, item), Fallback: true}, nil
	}
	return p, err
}
