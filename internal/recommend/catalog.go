// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package recommend

import (
	"sort"

	"github.com/tomtom215/bookrec/internal/validation"
)

// maxSampledErrors bounds how many individual ValidationErrors a LoadStats keeps.
const maxSampledErrors = 20

// LoadStats aggregates what happened to the rows handed to a loader.
// Input == Kept + Invalid + Unmatched + Duplicates.
type LoadStats struct {
	Input          int               `json:"input"`
	Kept           int               `json:"kept"`
	Invalid        int               `json:"invalid"`
	InvalidByField map[string]int    `json:"invalid_by_field,omitempty"`
	Unmatched      int               `json:"unmatched"`
	Duplicates     int               `json:"duplicates"`
	Samples        []ValidationError `json:"samples,omitempty"`
}

func (s *LoadStats) reject(row int, fe *validation.FieldError) {
	s.Invalid++
	if s.InvalidByField == nil {
		s.InvalidByField = make(map[string]int)
	}
	s.InvalidByField[fe.Field()]++
	if len(s.Samples) < maxSampledErrors {
		s.Samples = append(s.Samples, ValidationError{
			Row:    row,
			Field:  fe.Field(),
			Reason: fe.Error(),
			Value:  fe.Value(),
		})
	}
}

// Catalog is the book metadata table. It is used for the ratings inner join
// and for presentation, never for scoring.
type Catalog struct {
	items map[string]Item
	ids   []string
}

// NewCatalog validates items and indexes them by ISBN. Invalid rows are
// dropped; a repeated ISBN replaces the earlier entry.
func NewCatalog(items []Item) (*Catalog, LoadStats) {
	c := &Catalog{items: make(map[string]Item, len(items))}
	stats := LoadStats{Input: len(items)}

	for i := range items {
		if verr := validation.ValidateStruct(&items[i]); verr != nil {
			stats.reject(i+1, verr.First())
			continue
		}
		if _, dup := c.items[items[i].ItemID]; dup {
			stats.Duplicates++
		}
		c.items[items[i].ItemID] = items[i]
	}

	c.ids = make([]string, 0, len(c.items))
	for id := range c.items {
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)
	stats.Kept = len(c.ids)
	return c, stats
}

// Get looks up an item by ISBN.
func (c *Catalog) Get(id string) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// Contains reports whether the ISBN is in the catalog.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.items[id]
	return ok
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.ids)
}

// IDs returns all ISBNs in ascending order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Items returns all entries ordered by ISBN.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.ids))
	for i, id := range c.ids {
		out[i] = c.items[id]
	}
	return out
}
