// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package recommend

import "testing"

const (
	isbn1 = "0000000001"
	isbn2 = "0000000002"
	isbn3 = "0000000003"
)

// exampleRatings is the three-user, two-item matrix used across tests.
func exampleRatings() []Rating {
	return []Rating{
		{UserID: "u1", ItemID: isbn1, Value: 5},
		{UserID: "u1", ItemID: isbn2, Value: 3},
		{UserID: "u2", ItemID: isbn1, Value: 4},
		{UserID: "u2", ItemID: isbn2, Value: 5},
		{UserID: "u3", ItemID: isbn1, Value: 2},
	}
}

func exampleStore(t *testing.T) *RatingStore {
	t.Helper()
	s, stats := Load(exampleRatings(), nil)
	if stats.Kept != 5 {
		t.Fatalf("example store kept %d ratings, want 5", stats.Kept)
	}
	return s
}
