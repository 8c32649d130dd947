// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package recommend

import "sort"

// Sparsity returns 1 - count/(users*items). For a matrix with no users or no
// items it returns 1.0 together with ErrDegenerateMatrix.
func Sparsity(s *RatingStore) (float64, error) {
	cells := float64(s.DistinctUsers()) * float64(s.DistinctItems())
	if cells == 0 {
		return 1.0, ErrDegenerateMatrix
	}
	return 1 - float64(s.Count())/cells, nil
}

// RatingHistogram counts ratings per value. Every value of the 1-10 scale is
// present, zero-filled.
func RatingHistogram(s *RatingStore) map[int]int {
	h := make(map[int]int, MaxRatingValue)
	for v := MinRatingValue; v <= MaxRatingValue; v++ {
		h[v] = 0
	}
	for _, r := range s.ratings {
		h[r.Value]++
	}
	return h
}

// Summary holds the diagnostics printed before training.
type Summary struct {
	Ratings          int         `json:"ratings"`
	Users            int         `json:"users"`
	Items            int         `json:"items"`
	Sparsity         float64     `json:"sparsity"`
	MeanRating       float64     `json:"mean_rating"`
	Histogram        map[int]int `json:"histogram"`
	MinUserRatings   int         `json:"min_user_ratings"`
	MaxUserRatings   int         `json:"max_user_ratings"`
	MeanUserRatings  float64     `json:"mean_user_ratings"`
	MaxItemRatings   int         `json:"max_item_ratings"`
	MeanItemRatings  float64     `json:"mean_item_ratings"`
	SingleRatingUser int         `json:"single_rating_users"`
}

// Summarize computes Summary. The error is ErrDegenerateMatrix for an empty
// store; the Summary is still filled in that case.
func Summarize(s *RatingStore) (Summary, error) {
	sp, err := Sparsity(s)
	sum := Summary{
		Ratings:    s.Count(),
		Users:      s.DistinctUsers(),
		Items:      s.DistinctItems(),
		Sparsity:   sp,
		MeanRating: s.MeanRating(),
		Histogram:  RatingHistogram(s),
	}

	for i, u := range s.users {
		n := len(s.byUser[u])
		if i == 0 || n < sum.MinUserRatings {
			sum.MinUserRatings = n
		}
		if n > sum.MaxUserRatings {
			sum.MaxUserRatings = n
		}
		if n == 1 {
			sum.SingleRatingUser++
		}
	}
	for _, it := range s.items {
		if n := len(s.byItem[it]); n > sum.MaxItemRatings {
			sum.MaxItemRatings = n
		}
	}
	if sum.Users > 0 {
		sum.MeanUserRatings = float64(sum.Ratings) / float64(sum.Users)
	}
	if sum.Items > 0 {
		sum.MeanItemRatings = float64(sum.Ratings) / float64(sum.Items)
	}
	return sum, err
}

// ItemPopularity is one row of the most-rated table.
type ItemPopularity struct {
	ItemID string  `json:"item_id"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
}

// MostRated returns the n items with the most ratings, ties by ascending ISBN.
func MostRated(s *RatingStore, n int) []ItemPopularity {
	out := make([]ItemPopularity, 0, len(s.items))
	for _, it := range s.items {
		idx := s.byItem[it]
		if len(idx) == 0 {
			continue
		}
		total := 0
		for _, j := range idx {
			total += s.ratings[j].Value
		}
		out = append(out, ItemPopularity{
			ItemID: it,
			Count:  len(idx),
			Mean:   float64(total) / float64(len(idx)),
		})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].ItemID < out[b].ItemID
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
