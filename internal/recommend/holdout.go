// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package recommend

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// HoldoutConfig controls SampleHoldout.
type HoldoutConfig struct {
	// Fraction of eligible users that lose one rating, in (0, 1].
	Fraction float64 `json:"fraction" koanf:"fraction" validate:"gt=0,lte=1"`

	// Seed drives user selection and the choice of withheld rating.
	Seed int64 `json:"seed" koanf:"seed"`

	// MinUserRatings excludes users with fewer ratings from selection.
	// 0 makes every user eligible.
	MinUserRatings int `json:"min_user_ratings" koanf:"min_user_ratings" validate:"gte=0"`
}

// DefaultHoldoutConfig withholds one rating from 20% of users that keep at
// least one training rating afterwards.
func DefaultHoldoutConfig() HoldoutConfig {
	return HoldoutConfig{Fraction: 0.2, Seed: 42, MinUserRatings: 2}
}

// HoldoutSet maps a user to the single rating withheld from training.
// It is immutable after SampleHoldout returns.
type HoldoutSet struct {
	byUser map[string]Rating
	users  []string
}

// NewHoldoutSet builds a holdout from explicit ratings. A later rating for
// the same user replaces an earlier one.
func NewHoldoutSet(ratings []Rating) *HoldoutSet {
	h := &HoldoutSet{byUser: make(map[string]Rating, len(ratings))}
	for _, r := range ratings {
		h.byUser[r.UserID] = r
	}
	for u := range h.byUser {
		h.users = append(h.users, u)
	}
	sort.Strings(h.users)
	return h
}

// Len returns the number of withheld ratings.
func (h *HoldoutSet) Len() int {
	if h == nil {
		return 0
	}
	return len(h.users)
}

// Get returns the withheld rating of a user.
func (h *HoldoutSet) Get(userID string) (Rating, bool) {
	if h == nil {
		return Rating{}, false
	}
	r, ok := h.byUser[userID]
	return r, ok
}

// Withholds reports whether r is the rating withheld for its user.
func (h *HoldoutSet) Withholds(r Rating) bool {
	got, ok := h.Get(r.UserID)
	return ok && got.ItemID == r.ItemID
}

// Ratings returns the withheld ratings ordered by user.
func (h *HoldoutSet) Ratings() []Rating {
	if h == nil {
		return nil
	}
	out := make([]Rating, len(h.users))
	for i, u := range h.users {
		out[i] = h.byUser[u]
	}
	return out
}

// SampleHoldout withholds exactly one uniformly chosen rating from
// round(Fraction * eligible) users chosen by a seeded permutation of the
// sorted user list. It returns the training store (same universes, holdout
// ratings removed) and the holdout. Identical seed and store yield identical
// output.
func SampleHoldout(s *RatingStore, cfg HoldoutConfig) (*RatingStore, *HoldoutSet, error) {
	if cfg.Fraction <= 0 || cfg.Fraction > 1 || math.IsNaN(cfg.Fraction) {
		return nil, nil, fmt.Errorf("holdout fraction must be in (0, 1], got %g", cfg.Fraction)
	}

	eligible := make([]string, 0, len(s.users))
	for _, u := range s.users {
		if len(s.byUser[u]) >= cfg.MinUserRatings {
			eligible = append(eligible, u)
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // reproducible sampling, not security
	perm := rng.Perm(len(eligible))
	n := int(math.Round(cfg.Fraction * float64(len(eligible))))

	withheld := make([]Rating, 0, n)
	for _, p := range perm[:n] {
		u := eligible[p]
		idx := s.byUser[u]
		if len(idx) == 0 {
			return nil, nil, &DataInsufficientError{
				Reason:     "holdout selected a user with no ratings",
				EmptyUsers: []string{u},
			}
		}
		withheld = append(withheld, s.ratings[idx[rng.Intn(len(idx))]])
	}

	h := NewHoldoutSet(withheld)
	return s.Without(h), h, nil
}
