// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package recommend

import "sort"

// Rating scale bounds of the Book-Crossing explicit ratings.
const (
	MinRatingValue = 1
	MaxRatingValue = 10

	// ISBNLength is the required length of an item identifier.
	ISBNLength = 10
)

// Rating is one explicit user rating of a book.
type Rating struct {
	// UserID is the opaque user identifier from the ratings file.
	UserID string `json:"user_id" validate:"notblank"`

	// ItemID is the 10-character ISBN.
	ItemID string `json:"item_id" validate:"required,len=10"`

	// Value is the rating on the 1-10 scale.
	Value int `json:"value" validate:"gte=1,lte=10"`
}

// Item is one catalog entry.
type Item struct {
	ItemID    string `json:"item_id" validate:"required,len=10"`
	Title     string `json:"title" validate:"notblank"`
	Author    string `json:"author" validate:"notblank"`
	Year      int    `json:"year" validate:"gte=0"`
	Publisher string `json:"publisher" validate:"notblank"`
}

// Recommendation is one ranked entry of a top-N list.
type Recommendation struct {
	UserID string  `json:"user_id"`
	ItemID string  `json:"item_id"`
	Rank   int     `json:"rank"`
	Score  float64 `json:"score"`
}

// ItemSet is a set of item identifiers, used as a candidate filter or an
// exclusion list.
type ItemSet map[string]struct{}

// NewItemSet builds a set from ids.
func NewItemSet(ids ...string) ItemSet {
	s := make(ItemSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set. A nil set contains nothing.
func (s ItemSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order.
func (s ItemSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
