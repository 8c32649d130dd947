// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package recommend

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func largerStore(t *testing.T) *RatingStore {
	t.Helper()
	var rs []Rating
	for u := 0; u < 50; u++ {
		for i := 0; i < 1+u%5; i++ {
			rs = append(rs, Rating{
				UserID: fmt.Sprintf("user%02d", u),
				ItemID: fmt.Sprintf("%010d", (u*7+i*3)%40),
				Value:  1 + (u+i)%10,
			})
		}
	}
	s, _ := Load(rs, nil)
	return s
}

func TestSampleHoldoutFullFraction(t *testing.T) {
	t.Parallel()

	s := exampleStore(t)
	train, h, err := SampleHoldout(s, HoldoutConfig{Fraction: 1.0, Seed: 42})
	if err != nil {
		t.Fatalf("SampleHoldout: %v", err)
	}

	if h.Len() != 3 {
		t.Fatalf("holdout size = %d, want 3", h.Len())
	}
	for _, u := range s.Users() {
		if got, want := train.UserCount(u), s.UserCount(u)-1; got != want {
			t.Errorf("user %s keeps %d ratings, want %d", u, got, want)
		}
		r, ok := h.Get(u)
		if !ok {
			t.Errorf("user %s has no withheld rating", u)
			continue
		}
		if _, inTrain := train.Get(u, r.ItemID); inTrain {
			t.Errorf("withheld rating %+v still in training store", r)
		}
	}
}

func TestSampleHoldoutDeterministic(t *testing.T) {
	t.Parallel()

	s := largerStore(t)
	cfg := HoldoutConfig{Fraction: 0.2, Seed: 7, MinUserRatings: 2}

	_, a, err := SampleHoldout(s, cfg)
	if err != nil {
		t.Fatal(err)
	}
	_, b, err := SampleHoldout(s, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Ratings(), b.Ratings()) {
		t.Error("same seed produced different holdouts")
	}

	cfg.Seed = 8
	_, c, _ := SampleHoldout(s, cfg)
	if reflect.DeepEqual(a.Ratings(), c.Ratings()) {
		t.Error("different seeds produced identical holdouts")
	}
}

func TestSampleHoldoutFractionOfEligible(t *testing.T) {
	t.Parallel()

	s := largerStore(t)
	train, h, err := SampleHoldout(s, HoldoutConfig{Fraction: 0.25, Seed: 1, MinUserRatings: 2})
	if err != nil {
		t.Fatal(err)
	}
	// 40 of the 50 users have two or more ratings.
	if h.Len() != 10 {
		t.Errorf("holdout size = %d, want 10", h.Len())
	}
	for _, r := range h.Ratings() {
		if s.UserCount(r.UserID) < 2 {
			t.Errorf("ineligible user %s selected", r.UserID)
		}
	}
	if train.Count() != s.Count()-h.Len() {
		t.Errorf("train count = %d, want %d", train.Count(), s.Count()-h.Len())
	}
}

func TestSampleHoldoutEmptyUser(t *testing.T) {
	t.Parallel()

	s := exampleStore(t).Without(NewHoldoutSet([]Rating{{UserID: "u3", ItemID: isbn1}}))
	_, _, err := SampleHoldout(s, HoldoutConfig{Fraction: 1.0, Seed: 42})

	var die *DataInsufficientError
	if !errors.As(err, &die) {
		t.Fatalf("err = %v, want DataInsufficientError", err)
	}
	if !reflect.DeepEqual(die.EmptyUsers, []string{"u3"}) {
		t.Errorf("EmptyUsers = %v", die.EmptyUsers)
	}
}

func TestSampleHoldoutRejectsFraction(t *testing.T) {
	t.Parallel()

	for _, f := range []float64{0, -0.5, 1.5} {
		if _, _, err := SampleHoldout(exampleStore(t), HoldoutConfig{Fraction: f}); err == nil {
			t.Errorf("fraction %v accepted", f)
		}
	}
}
