// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

// Package search is a token index over catalog text used to narrow
// recommendation candidates. It ranks by how many distinct query tokens an
// item matches, then by summed term frequency, then by ascending ISBN; it is
// a filter, not a relevance engine.
package search

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tomtom215/bookrec/internal/recommend"
)

// Field names an indexable catalog column.
type Field string

const (
	FieldTitle     Field = "title"
	FieldAuthor    Field = "author"
	FieldPublisher Field = "publisher"
	FieldYear      Field = "year"
)

// DefaultFields are indexed when none are given.
var DefaultFields = []Field{FieldTitle, FieldAuthor}

// ParseFields converts names such as "title,author" into Fields.
func ParseFields(names []string) ([]Field, error) {
	out := make([]Field, 0, len(names))
	for _, n := range names {
		f := Field(strings.ToLower(strings.TrimSpace(n)))
		switch f {
		case FieldTitle, FieldAuthor, FieldPublisher, FieldYear:
			out = append(out, f)
		case "":
		default:
			return nil, fmt.Errorf("unknown search field %q", n)
		}
	}
	return out, nil
}

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenize lowercases text and splits it on anything that is not a letter
// or digit.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// Hit is one ranked query result.
type Hit struct {
	ItemID  string `json:"item_id"`
	Matched int    `json:"matched"`
	TF      int    `json:"tf"`
}

// Index maps token -> item -> occurrences. It is read-only after
// BuildIndex and safe for concurrent queries.
type Index struct {
	postings map[string]map[string]int
	fields   []Field
	items    int
}

// BuildIndex tokenizes the chosen fields of every item.
func BuildIndex(items []recommend.Item, fields []Field) *Index {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	idx := &Index{
		postings: make(map[string]map[string]int),
		fields:   fields,
		items:    len(items),
	}
	for i := range items {
		for _, f := range fields {
			for _, tok := range Tokenize(fieldText(&items[i], f)) {
				p := idx.postings[tok]
				if p == nil {
					p = make(map[string]int)
					idx.postings[tok] = p
				}
				p[items[i].ItemID]++
			}
		}
	}
	return idx
}

func fieldText(it *recommend.Item, f Field) string {
	switch f {
	case FieldTitle:
		return it.Title
	case FieldAuthor:
		return it.Author
	case FieldPublisher:
		return it.Publisher
	case FieldYear:
		if it.Year == 0 {
			return ""
		}
		return strconv.Itoa(it.Year)
	default:
		return ""
	}
}

// Tokens returns the vocabulary size.
func (x *Index) Tokens() int { return len(x.postings) }

// Items returns how many items were indexed.
func (x *Index) Items() int { return x.items }

// Fields returns the indexed fields.
func (x *Index) Fields() []Field { return x.fields }

// Query returns at most n hits for text; n <= 0 returns every match.
// Repeated query tokens count once.
func (x *Index) Query(text string, n int) []Hit {
	seen := make(map[string]struct{})
	acc := make(map[string]*Hit)
	for _, tok := range Tokenize(text) {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		for id, tf := range x.postings[tok] {
			h := acc[id]
			if h == nil {
				h = &Hit{ItemID: id}
				acc[id] = h
			}
			h.Matched++
			h.TF += tf
		}
	}

	hits := make([]Hit, 0, len(acc))
	for _, h := range acc {
		hits = append(hits, *h)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Matched != hits[j].Matched {
			return hits[i].Matched > hits[j].Matched
		}
		if hits[i].TF != hits[j].TF {
			return hits[i].TF > hits[j].TF
		}
		return hits[i].ItemID < hits[j].ItemID
	})
	if n > 0 && len(hits) > n {
		hits = hits[:n]
	}
	return hits
}

// Candidates runs Query and returns the hits as a set for TopN.
func (x *Index) Candidates(text string, n int) recommend.ItemSet {
	hits := x.Query(text, n)
	s := make(recommend.ItemSet, len(hits))
	for _, h := range hits {
		s[h.ItemID] = struct{}{}
	}
	return s
}
