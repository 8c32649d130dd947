// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package recommend

import (
	"sort"
	"time"
)

// FactorModel is the output of one ALS fit. It is never mutated after the
// fit returns; retraining produces a new model. Version is the trainer's fit
// counter, or the stored version when the model was read from a model store.
type FactorModel struct {
	UserFactors map[string][]float64 `json:"user_factors"`
	ItemFactors map[string][]float64 `json:"item_factors"`
	GlobalMean  float64              `json:"global_mean"`
	Rank        int                  `json:"rank"`
	Version     int                  `json:"version"`
	TrainedAt   time.Time            `json:"trained_at"`

	itemIDs []string
}

// NewFactorModel assembles a model. The factor maps are owned by the model
// afterwards.
func NewFactorModel(users, items map[string][]float64, globalMean float64, rank int) *FactorModel {
	m := &FactorModel{
		UserFactors: users,
		ItemFactors: items,
		GlobalMean:  globalMean,
		Rank:        rank,
		TrainedAt:   time.Now().UTC(),
	}
	m.index()
	return m
}

func (m *FactorModel) index() {
	m.itemIDs = make([]string, 0, len(m.ItemFactors))
	for id := range m.ItemFactors {
		m.itemIDs = append(m.itemIDs, id)
	}
	sort.Strings(m.itemIDs)
}

// ItemIDs returns the items with a factor vector, ascending. Models decoded
// from storage must go through NewFactorModel for this list to be populated.
func (m *FactorModel) ItemIDs() []string {
	return m.itemIDs
}

// HasUser reports whether the user has a factor vector.
func (m *FactorModel) HasUser(userID string) bool {
	_, ok := m.UserFactors[userID]
	return ok
}

// Predict returns dot(user, item) + GlobalMean. ok is false when either
// vector is missing.
func (m *FactorModel) Predict(userID, itemID string) (float64, bool) {
	u, ok := m.UserFactors[userID]
	if !ok {
		return 0, false
	}
	v, ok := m.ItemFactors[itemID]
	if !ok {
		return 0, false
	}
	return Dot(u, v) + m.GlobalMean, true
}

// Dot is the inner product of two equal-length vectors.
func Dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
