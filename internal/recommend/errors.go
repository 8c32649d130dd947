// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package recommend

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDegenerateMatrix is returned alongside a sparsity of 1.0 when the
	// rating matrix has no users or no items.
	ErrDegenerateMatrix = errors.New("rating matrix has zero users or zero items")

	// ErrEmptyStore is returned by operations that need at least one rating.
	ErrEmptyStore = errors.New("rating store is empty")

	// ErrUnknownItem is returned when an item has no factor vector or is not
	// in the catalog.
	ErrUnknownItem = errors.New("unknown item")
)

// ValidationError describes one rejected input row. Loaders recover by
// dropping the row and counting it.
type ValidationError struct {
	Row    int
	Field  string
	Reason string
	Value  interface{}
}

func (e *ValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// DataInsufficientError means a training partition cannot produce a
// well-posed least-squares system. It is fatal to that run.
type DataInsufficientError struct {
	Reason     string
	EmptyUsers []string
	EmptyItems []string
}

func (e *DataInsufficientError) Error() string {
	var b strings.Builder
	b.WriteString("insufficient data: ")
	b.WriteString(e.Reason)
	if n := len(e.EmptyUsers); n > 0 {
		fmt.Fprintf(&b, " (%d users without ratings, first %q)", n, e.EmptyUsers[0])
	}
	if n := len(e.EmptyItems); n > 0 {
		fmt.Fprintf(&b, " (%d items without ratings, first %q)", n, e.EmptyItems[0])
	}
	return b.String()
}

// UnknownUserError is returned for a user without a factor vector or
// similarity row (cold start).
type UnknownUserError struct {
	UserID string
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("unknown user %q", e.UserID)
}

// InsufficientNeighborsError means no neighbour qualified for a KNN
// prediction. Callers pick a fallback such as the item mean.
type InsufficientNeighborsError struct {
	ID     string
	ItemID string
	Found  int
}

func (e *InsufficientNeighborsError) Error() string {
	return fmt.Sprintf("no qualifying neighbours for %q on item %q (found %d)", e.ID, e.ItemID, e.Found)
}

// ConvergenceWarning is attached to a training result that stopped without
// meeting the improvement criterion. It is reported, not returned as an error.
type ConvergenceWarning struct {
	State      string
	Iterations int
	LastDelta  float64
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("training stopped in state %s after %d iterations (last holdout improvement %.6g)",
		w.State, w.Iterations, w.LastDelta)
}
