// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

// Package algorithms implements the models trained on a RatingStore:
//
//   - ALSTrainer: explicit-feedback alternating least squares with
//     holdout-monitored convergence
//   - TopN: ranking of items for a user from a FactorModel
//   - BuildSimilarity: thresholded cosine or Pearson neighbour graph
//   - KNN: neighbour-weighted rating prediction over that graph
//
// # Thread Safety
//
// Trainers serialise Fit calls with an exclusive lock. Models and graphs are
// immutable once returned and may be shared by any number of readers.
package algorithms

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// BaseAlgorithm tracks training state shared by trainers.
type BaseAlgorithm struct {
	name          string
	trained       bool
	version       int
	lastTrainedAt time.Time
	mu            sync.RWMutex
}

// NewBaseAlgorithm creates a base with the given name.
func NewBaseAlgorithm(name string) BaseAlgorithm {
	return BaseAlgorithm{name: name}
}

// Name returns the algorithm identifier.
func (b *BaseAlgorithm) Name() string {
	return b.name
}

// IsTrained reports whether a fit has completed.
func (b *BaseAlgorithm) IsTrained() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.trained
}

// Version returns the number of completed fits.
func (b *BaseAlgorithm) Version() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// LastTrainedAt returns when the last fit completed.
func (b *BaseAlgorithm) LastTrainedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastTrainedAt
}

// markTrained must be called with the training lock held. It returns the
// new version.
func (b *BaseAlgorithm) markTrained() int {
	b.trained = true
	b.version++
	b.lastTrainedAt = time.Now()
	return b.version
}

func (b *BaseAlgorithm) acquireTrainLock() { b.mu.Lock() }
func (b *BaseAlgorithm) releaseTrainLock() { b.mu.Unlock() }

// ContextCancelled reports whether ctx is done without blocking.
func ContextCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func defaultWorkers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

// parallelChunks splits [0, n) into contiguous chunks, runs fn on each chunk
// in its own goroutine and waits for all of them. Chunk w always covers the
// same range for a given (n, workers), so results that depend only on the
// index are independent of scheduling.
func parallelChunks(n, workers int, fn func(worker, start, end int)) {
	if n == 0 {
		return
	}
	workers = defaultWorkers(workers)
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			fn(w, start, end)
		}(w, start, end)
	}
	wg.Wait()
}
