// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package recommend

import (
	"sort"

	"github.com/tomtom215/bookrec/internal/validation"
)

type pairKey struct {
	user string
	item string
}

// RatingStore is an in-memory sparse rating table. Ratings live in one slice;
// the per-user and per-item views are index lists into it.
//
// The user and item universes may contain entities with zero ratings after
// Without removes a holdout. Compact drops them.
type RatingStore struct {
	ratings []Rating
	byUser  map[string][]int
	byItem  map[string][]int
	pairs   map[pairKey]int
	users   []string
	items   []string
	sum     int64
}

// Load validates ratings and builds a store. Rows that fail validation are
// dropped and counted. When catalog is non-nil, ratings for ISBNs outside it
// are dropped as unmatched. A repeated (user, item) pair keeps the position
// of its first occurrence and the value of its last.
func Load(ratings []Rating, catalog *Catalog) (*RatingStore, LoadStats) {
	stats := LoadStats{Input: len(ratings)}
	kept := make([]Rating, 0, len(ratings))
	seen := make(map[pairKey]int, len(ratings))

	for i := range ratings {
		r := ratings[i]
		if verr := validation.ValidateStruct(&r); verr != nil {
			stats.reject(i+1, verr.First())
			continue
		}
		if catalog != nil && !catalog.Contains(r.ItemID) {
			stats.Unmatched++
			continue
		}
		k := pairKey{r.UserID, r.ItemID}
		if at, dup := seen[k]; dup {
			stats.Duplicates++
			kept[at].Value = r.Value
			continue
		}
		seen[k] = len(kept)
		kept = append(kept, r)
	}

	stats.Kept = len(kept)
	return build(kept, nil, nil), stats
}

// build indexes already-clean ratings. Extra universe members with no
// ratings can be passed in users and items.
func build(ratings []Rating, users, items []string) *RatingStore {
	s := &RatingStore{
		ratings: ratings,
		byUser:  make(map[string][]int),
		byItem:  make(map[string][]int),
		pairs:   make(map[pairKey]int, len(ratings)),
	}
	for _, u := range users {
		s.byUser[u] = nil
	}
	for _, it := range items {
		s.byItem[it] = nil
	}
	for i, r := range ratings {
		s.byUser[r.UserID] = append(s.byUser[r.UserID], i)
		s.byItem[r.ItemID] = append(s.byItem[r.ItemID], i)
		s.pairs[pairKey{r.UserID, r.ItemID}] = i
		s.sum += int64(r.Value)
	}
	s.users = sortedKeys(s.byUser)
	s.items = sortedKeys(s.byItem)
	return s
}

func sortedKeys(m map[string][]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ByUser returns the user's ratings in load order.
func (s *RatingStore) ByUser(userID string) []Rating {
	return s.collect(s.byUser[userID])
}

// ByItem returns the item's ratings in load order.
func (s *RatingStore) ByItem(itemID string) []Rating {
	return s.collect(s.byItem[itemID])
}

func (s *RatingStore) collect(idx []int) []Rating {
	out := make([]Rating, len(idx))
	for i, j := range idx {
		out[i] = s.ratings[j]
	}
	return out
}

// UserCount returns how many ratings the user has.
func (s *RatingStore) UserCount(userID string) int { return len(s.byUser[userID]) }

// ItemCount returns how many ratings the item has.
func (s *RatingStore) ItemCount(itemID string) int { return len(s.byItem[itemID]) }

// Get returns the rating of a (user, item) pair.
func (s *RatingStore) Get(userID, itemID string) (Rating, bool) {
	i, ok := s.pairs[pairKey{userID, itemID}]
	if !ok {
		return Rating{}, false
	}
	return s.ratings[i], true
}

// HasUser reports whether the user is part of the store's universe.
func (s *RatingStore) HasUser(userID string) bool {
	_, ok := s.byUser[userID]
	return ok
}

// HasItem reports whether the item is part of the store's universe.
func (s *RatingStore) HasItem(itemID string) bool {
	_, ok := s.byItem[itemID]
	return ok
}

// Users returns the user universe in ascending order.
func (s *RatingStore) Users() []string {
	out := make([]string, len(s.users))
	copy(out, s.users)
	return out
}

// Items returns the item universe in ascending order.
func (s *RatingStore) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// DistinctUsers returns the size of the user universe.
func (s *RatingStore) DistinctUsers() int { return len(s.users) }

// DistinctItems returns the size of the item universe.
func (s *RatingStore) DistinctItems() int { return len(s.items) }

// Count returns the number of stored ratings.
func (s *RatingStore) Count() int { return len(s.ratings) }

// All returns a copy of every rating in load order.
func (s *RatingStore) All() []Rating {
	out := make([]Rating, len(s.ratings))
	copy(out, s.ratings)
	return out
}

// MeanRating returns the mean rating value, or 0 for an empty store.
func (s *RatingStore) MeanRating() float64 {
	if len(s.ratings) == 0 {
		return 0
	}
	return float64(s.sum) / float64(len(s.ratings))
}

// EmptyUsers returns users of the universe that have no ratings, ascending.
func (s *RatingStore) EmptyUsers() []string {
	return emptyKeys(s.users, s.byUser)
}

// EmptyItems returns items of the universe that have no ratings, ascending.
func (s *RatingStore) EmptyItems() []string {
	return emptyKeys(s.items, s.byItem)
}

func emptyKeys(keys []string, idx map[string][]int) []string {
	var out []string
	for _, k := range keys {
		if len(idx[k]) == 0 {
			out = append(out, k)
		}
	}
	return out
}

// Without returns a new store lacking the holdout's ratings. The user and
// item universes are unchanged, so entities can end up with zero ratings.
func (s *RatingStore) Without(h *HoldoutSet) *RatingStore {
	kept := make([]Rating, 0, len(s.ratings))
	for _, r := range s.ratings {
		if h != nil && h.Withholds(r) {
			continue
		}
		kept = append(kept, r)
	}
	return build(kept, s.users, s.items)
}

// Compact returns a store whose universes contain only entities with at
// least one rating.
func (s *RatingStore) Compact() *RatingStore {
	kept := make([]Rating, len(s.ratings))
	copy(kept, s.ratings)
	return build(kept, nil, nil)
}
