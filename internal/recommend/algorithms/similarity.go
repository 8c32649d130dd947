// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package algorithms

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/tomtom215/bookrec/internal/recommend"
)

// Axis selects whether the graph relates users or items.
type Axis string

const (
	AxisUser Axis = "user"
	AxisItem Axis = "item"
)

// Measure is the similarity function.
type Measure string

const (
	MeasureCosine  Measure = "cosine"
	MeasurePearson Measure = "pearson"
)

// SimilarityConfig contains configuration for BuildSimilarity.
type SimilarityConfig struct {
	Axis    Axis    `json:"axis" koanf:"axis" validate:"oneof=user item"`
	Measure Measure `json:"measure" koanf:"measure" validate:"oneof=cosine pearson"`

	// Threshold is the minimum retained score. It must be positive: entities
	// with no co-rated counterpart score exactly 0, which is what makes the
	// inverted-index candidate pruning lossless.
	Threshold float64 `json:"threshold" koanf:"threshold" validate:"gt=0,lte=1"`

	// MinCommon is the minimum number of co-rated counterparts.
	MinCommon int `json:"min_common" koanf:"min_common" validate:"gte=1"`

	// Shrinkage damps pairs with few co-ratings:
	// sim * n / (n + shrinkage). 0 disables it.
	Shrinkage float64 `json:"shrinkage" koanf:"shrinkage" validate:"gte=0"`

	NumWorkers int `json:"num_workers" koanf:"num_workers" validate:"gte=0"`
}

// DefaultSimilarityConfig returns user-axis cosine similarity at 0.5.
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		Axis:      AxisUser,
		Measure:   MeasureCosine,
		Threshold: 0.5,
		MinCommon: 1,
	}
}

// Neighbor is one adjacency entry.
type Neighbor struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// SimilarityGraph is a symmetric thresholded neighbour graph. Neighbour lists
// are ordered by score descending, ties by id ascending. It is rebuilt
// wholesale and never updated in place.
type SimilarityGraph struct {
	config    SimilarityConfig
	neighbors map[string][]Neighbor
	ids       []string
	pairs     int
}

// Axis returns the entity kind the graph relates.
func (g *SimilarityGraph) Axis() Axis { return g.config.Axis }

// Config returns the configuration used to build the graph.
func (g *SimilarityGraph) Config() SimilarityConfig { return g.config }

// Neighbors returns the adjacency list of id, or nil.
func (g *SimilarityGraph) Neighbors(id string) []Neighbor {
	return g.neighbors[id]
}

// Similarity returns the stored score of a pair and whether it was retained.
func (g *SimilarityGraph) Similarity(a, b string) (float64, bool) {
	for _, n := range g.neighbors[a] {
		if n.ID == b {
			return n.Score, true
		}
	}
	return 0, false
}

// IDs returns every entity of the built axis, ascending.
func (g *SimilarityGraph) IDs() []string { return g.ids }

// Pairs returns the number of retained unordered pairs.
func (g *SimilarityGraph) Pairs() int { return g.pairs }

// sparseVec is one entity's rating vector, sorted by counterpart index so
// that overlaps are merge-joined in a fixed order.
type sparseVec struct {
	idx  []int
	vals []float64
	norm float64
}

// overlap calls fn for every counterpart both vectors rated, ascending.
func overlap(a, b *sparseVec, fn func(va, vb float64)) {
	i, j := 0, 0
	for i < len(a.idx) && j < len(b.idx) {
		switch {
		case a.idx[i] < b.idx[j]:
			i++
		case a.idx[i] > b.idx[j]:
			j++
		default:
			fn(a.vals[i], b.vals[j])
			i++
			j++
		}
	}
}

type pair struct {
	a, b  int
	score float64
}

// BuildSimilarity computes the similarity of every pair of entities that
// share at least one rated counterpart and keeps pairs scoring at least
// cfg.Threshold. Candidate pairs come from the counterpart inverted index,
// each pair is scored once and stored in both directions.
func BuildSimilarity(ctx context.Context, store *recommend.RatingStore, cfg SimilarityConfig) (*SimilarityGraph, error) {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 || math.IsNaN(cfg.Threshold) {
		return nil, fmt.Errorf("similarity threshold must be in (0, 1], got %g", cfg.Threshold)
	}
	if cfg.Axis == "" {
		cfg.Axis = AxisUser
	}
	if cfg.Measure == "" {
		cfg.Measure = MeasureCosine
	}
	if cfg.Measure != MeasureCosine && cfg.Measure != MeasurePearson {
		return nil, fmt.Errorf("unknown similarity measure %q", cfg.Measure)
	}
	if cfg.MinCommon < 1 {
		cfg.MinCommon = 1
	}

	var ids, others []string
	switch cfg.Axis {
	case AxisUser:
		ids, others = store.Users(), store.Items()
	case AxisItem:
		ids, others = store.Items(), store.Users()
	default:
		return nil, fmt.Errorf("unknown similarity axis %q", cfg.Axis)
	}

	idIdx := make(map[string]int, len(ids))
	for i, id := range ids {
		idIdx[id] = i
	}
	otherIdx := make(map[string]int, len(others))
	for i, id := range others {
		otherIdx[id] = i
	}

	// inverted[c] lists entities that rated counterpart c, ascending.
	inverted := make([][]int, len(others))
	for _, r := range store.All() {
		e, c := r.UserID, r.ItemID
		if cfg.Axis == AxisItem {
			e, c = c, e
		}
		ci := otherIdx[c]
		inverted[ci] = append(inverted[ci], idIdx[e])
	}
	// Walking counterparts in index order yields sorted vectors for free.
	vecs := make([]sparseVec, len(ids))
	for c, ents := range inverted {
		sort.Ints(ents)
		for _, e := range ents {
			v := float64(valueOf(store, cfg.Axis, ids[e], others[c]))
			vecs[e].idx = append(vecs[e].idx, c)
			vecs[e].vals = append(vecs[e].vals, v)
		}
	}
	for i := range vecs {
		var s float64
		for _, v := range vecs[i].vals {
			s += v * v
		}
		vecs[i].norm = math.Sqrt(s)
	}

	workers := defaultWorkers(cfg.NumWorkers)
	found := make([][]pair, workers)

	parallelChunks(len(ids), workers, func(w, start, end int) {
		common := make(map[int]int)
		for a := start; a < end; a++ {
			if ContextCancelled(ctx) {
				return
			}
			for k := range common {
				delete(common, k)
			}
			for _, c := range vecs[a].idx {
				for _, b := range inverted[c] {
					if b > a {
						common[b]++
					}
				}
			}
			for b, n := range common {
				if n < cfg.MinCommon {
					continue
				}
				s := score(cfg, &vecs[a], &vecs[b], n)
				if s >= cfg.Threshold {
					found[w] = append(found[w], pair{a: a, b: b, score: s})
				}
			}
		}
	})
	if ContextCancelled(ctx) {
		return nil, ctx.Err()
	}

	g := &SimilarityGraph{
		config:    cfg,
		neighbors: make(map[string][]Neighbor),
		ids:       ids,
	}
	for _, ps := range found {
		for _, p := range ps {
			a, b := ids[p.a], ids[p.b]
			g.neighbors[a] = append(g.neighbors[a], Neighbor{ID: b, Score: p.score})
			g.neighbors[b] = append(g.neighbors[b], Neighbor{ID: a, Score: p.score})
			g.pairs++
		}
	}
	for _, ns := range g.neighbors {
		sort.Slice(ns, func(i, j int) bool {
			if ns[i].Score != ns[j].Score {
				return ns[i].Score > ns[j].Score
			}
			return ns[i].ID < ns[j].ID
		})
	}
	return g, nil
}

func valueOf(store *recommend.RatingStore, axis Axis, id, other string) int {
	user, item := id, other
	if axis == AxisItem {
		user, item = other, id
	}
	r, _ := store.Get(user, item)
	return r.Value
}

func score(cfg SimilarityConfig, a, b *sparseVec, common int) float64 {
	var s float64
	switch cfg.Measure {
	case MeasurePearson:
		s = pearsonSim(a, b)
	default:
		s = cosineSim(a, b)
	}
	if cfg.Shrinkage > 0 {
		s = s * float64(common) / (float64(common) + cfg.Shrinkage)
	}
	return s
}

// cosineSim uses full-vector norms, so ratings outside the overlap lower
// the score.
func cosineSim(a, b *sparseVec) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	overlap(a, b, func(va, vb float64) { dot += va * vb })
	return dot / (a.norm * b.norm)
}

// pearsonSim correlates the two vectors over their overlap, centring each on
// its overlap mean. Fewer than two common counterparts or zero variance
// score 0.
func pearsonSim(a, b *sparseVec) float64 {
	var xs, ys []float64
	overlap(a, b, func(va, vb float64) {
		xs = append(xs, va)
		ys = append(ys, vb)
	})
	n := len(xs)
	if n < 2 {
		return 0
	}
	var sx, sy float64
	for i := 0; i < n; i++ {
		sx += xs[i]
		sy += ys[i]
	}
	mx, my := sx/float64(n), sy/float64(n)

	var num, dx, dy float64
	for i := 0; i < n; i++ {
		ax, ay := xs[i]-mx, ys[i]-my
		num += ax * ay
		dx += ax * ax
		dy += ay * ay
	}
	if dx == 0 || dy == 0 {
		return 0
	}
	return num / math.Sqrt(dx*dy)
}
