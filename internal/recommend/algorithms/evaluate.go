// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package algorithms

import (
	"fmt"
	"math"

	"github.com/tomtom215/bookrec/internal/recommend"
)

// Evaluation summarises prediction error over a holdout.
type Evaluation struct {
	Name      string  `json:"name"`
	Evaluated int     `json:"evaluated"`
	Skipped   int     `json:"skipped"`
	Fallbacks int     `json:"fallbacks"`
	RMSE      float64 `json:"rmse"`
	MAE       float64 `json:"mae"`
}

// Coverage is the share of holdout ratings that received a prediction.
func (e Evaluation) Coverage() float64 {
	total := e.Evaluated + e.Skipped
	if total == 0 {
		return 0
	}
	return float64(e.Evaluated) / float64(total)
}

// Predictor answers one held-out rating. fallback marks estimates that did
// not come from the model proper.
type Predictor func(r recommend.Rating) (value float64, fallback bool, err error)

// EvaluateHoldout scores every holdout rating with predict. Ratings the
// predictor errors on are skipped and counted.
func EvaluateHoldout(name string, h *recommend.HoldoutSet, predict Predictor) Evaluation {
	ev := Evaluation{Name: name}
	var se, ae float64
	for _, r := range h.Ratings() {
		v, fb, err := predict(r)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			ev.Skipped++
			continue
		}
		if fb {
			ev.Fallbacks++
		}
		d := v - float64(r.Value)
		se += d * d
		ae += math.Abs(d)
		ev.Evaluated++
	}
	if ev.Evaluated > 0 {
		ev.RMSE = math.Sqrt(se / float64(ev.Evaluated))
		ev.MAE = ae / float64(ev.Evaluated)
	}
	return ev
}

// FactorPredictor adapts a FactorModel to Predictor.
func FactorPredictor(m *recommend.FactorModel) Predictor {
	return func(r recommend.Rating) (float64, bool, error) {
		v, ok := m.Predict(r.UserID, r.ItemID)
		if !ok {
			if !m.HasUser(r.UserID) {
				return 0, false, &recommend.UnknownUserError{UserID: r.UserID}
			}
			return 0, false, fmt.Errorf("%w: %s", recommend.ErrUnknownItem, r.ItemID)
		}
		return v, false, nil
	}
}

// KNNPredictor adapts a KNN to Predictor.
func KNNPredictor(k *KNN) Predictor {
	return func(r recommend.Rating) (float64, bool, error) {
		p, err := k.Predict(r.UserID, r.ItemID)
		return p.Value, p.Fallback, err
	}
}
