// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

// Package recommend holds the data model of the book recommender: explicit
// ratings, the book catalog, the sparse RatingStore and the diagnostics and
// holdout sampling computed from it.
//
// # Data flow
//
//	raw ratings + Catalog -> RatingStore.Load (integrity filters)
//	RatingStore -> Summarize / Sparsity / RatingHistogram
//	RatingStore -> SampleHoldout -> (training store, HoldoutSet)
//
// Training, ranking and neighbourhood models live in the algorithms
// subpackage and take a *RatingStore explicitly; nothing here keeps ambient
// session state.
//
// # Determinism
//
// Every key listing (Users, Items, Catalog.IDs) is sorted ascending and all
// randomness is driven by an explicit seed, so two runs over the same input
// produce identical holdouts and models.
//
// # Thread Safety
//
// A RatingStore is immutable once Load returns. Derived stores (Without,
// Compact) are new values. Concurrent readers need no locking.
package recommend
