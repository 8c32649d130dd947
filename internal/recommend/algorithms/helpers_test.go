// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package algorithms

import (
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bookrec/internal/recommend"
)

const (
	isbn1 = "0000000001"
	isbn2 = "0000000002"
)

func quietLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func exampleStore(t *testing.T) *recommend.RatingStore {
	t.Helper()
	s, _ := recommend.Load([]recommend.Rating{
		{UserID: "u1", ItemID: isbn1, Value: 5},
		{UserID: "u1", ItemID: isbn2, Value: 3},
		{UserID: "u2", ItemID: isbn1, Value: 4},
		{UserID: "u2", ItemID: isbn2, Value: 5},
		{UserID: "u3", ItemID: isbn1, Value: 2},
	}, nil)
	return s
}

func isbn(i int) string {
	return fmt.Sprintf("%010d", i)
}

// syntheticStore generates a rank-2 rating pattern. Every user rates between
// 4 and 9 items and every item is rated at least once.
func syntheticStore(t *testing.T, users, items int) *recommend.RatingStore {
	t.Helper()
	var rs []recommend.Rating
	for u := 0; u < users; u++ {
		n := 4 + u%6
		for j := 0; j < n; j++ {
			i := (u*3 + j*5) % items
			taste := (u%2)*2 - 1
			genre := (i%2)*2 - 1
			v := 6 + 2*taste*genre + (u+i)%3 - 1
			rs = append(rs, recommend.Rating{UserID: fmt.Sprintf("user%03d", u), ItemID: isbn(i), Value: v})
		}
	}
	s, stats := recommend.Load(rs, nil)
	if stats.Invalid > 0 {
		t.Fatalf("synthetic data produced %d invalid rows", stats.Invalid)
	}
	if len(s.EmptyItems()) > 0 {
		t.Fatalf("synthetic data left items unrated: %v", s.EmptyItems())
	}
	return s
}
