// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package algorithms

import (
	"container/heap"
	"sort"

	"github.com/tomtom215/bookrec/internal/recommend"
)

// Query describes one top-N request.
type Query struct {
	UserID string
	N      int

	// Candidates restricts scoring to these items when non-nil. An empty,
	// non-nil set yields no recommendations.
	Candidates recommend.ItemSet

	// Exclude removes items from the result, typically those already rated.
	Exclude recommend.ItemSet
}

type scored struct {
	id    string
	score float64
}

// better orders by score descending, then item id ascending.
func better(a, b scored) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.id < b.id
}

// worstFirst is a min-heap under the better ordering; its root is the
// weakest entry kept so far.
type worstFirst []scored

func (h worstFirst) Len() int            { return len(h) }
func (h worstFirst) Less(i, j int) bool  { return better(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x interface{}) { *h = append(*h, x.(scored)) }
func (h *worstFirst) Pop() interface{} {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// TopN returns at most q.N items ranked by dot(user, item) + GlobalMean,
// ties broken by ascending item id. Ranks start at 1. A user without a
// factor vector yields *recommend.UnknownUserError.
func TopN(model *recommend.FactorModel, q Query) ([]recommend.Recommendation, error) {
	u, ok := model.UserFactors[q.UserID]
	if !ok {
		return nil, &recommend.UnknownUserError{UserID: q.UserID}
	}
	if q.N <= 0 {
		return []recommend.Recommendation{}, nil
	}

	ids := model.ItemIDs()
	if q.Candidates != nil && len(q.Candidates) < len(ids) {
		ids = q.Candidates.Sorted()
	}

	h := make(worstFirst, 0, q.N+1)
	for _, id := range ids {
		if q.Candidates != nil && !q.Candidates.Contains(id) {
			continue
		}
		if q.Exclude.Contains(id) {
			continue
		}
		v, ok := model.ItemFactors[id]
		if !ok {
			continue
		}
		s := scored{id: id, score: recommend.Dot(u, v) + model.GlobalMean}
		if h.Len() < q.N {
			heap.Push(&h, s)
			continue
		}
		if better(s, h[0]) {
			h[0] = s
			heap.Fix(&h, 0)
		}
	}

	sort.Slice(h, func(i, j int) bool { return better(h[i], h[j]) })
	out := make([]recommend.Recommendation, len(h))
	for i, s := range h {
		out[i] = recommend.Recommendation{
			UserID: q.UserID,
			ItemID: s.id,
			Rank:   i + 1,
			Score:  s.score,
		}
	}
	return out, nil
}
