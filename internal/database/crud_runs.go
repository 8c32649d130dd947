// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/bookrec/internal/recommend/algorithms"
)

// Run is one row of training_runs.
type Run struct {
	RunID        string        `json:"run_id"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
	Ratings      int           `json:"ratings"`
	Users        int           `json:"users"`
	Items        int           `json:"items"`
	Sparsity     float64       `json:"sparsity"`
	HoldoutSize  int           `json:"holdout_size"`
	Rank         int           `json:"rank"`
	FinalState   string        `json:"final_state"`
	Iterations   int           `json:"iterations"`
	ALSRMSE      *float64      `json:"als_rmse,omitempty"`
	ALSMAE       *float64      `json:"als_mae,omitempty"`
	KNNRMSE      *float64      `json:"knn_rmse,omitempty"`
	KNNMAE       *float64      `json:"knn_mae,omitempty"`
	ModelVersion int           `json:"model_version"`
}

// Metric returns a pointer for an optional run metric; NaN maps to nil.
func Metric(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// SaveRun inserts a run and its iteration series in one transaction.
func (db *DB) SaveRun(ctx context.Context, run *Run, iterations []algorithms.IterationStat) error {
	return timed("insert", "training_runs", func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer rollbackQuietly(tx)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO training_runs (run_id, started_at, duration_ms, ratings, users, items, sparsity,
				holdout_size, factor_rank, final_state, iterations, als_rmse, als_mae, knn_rmse, knn_mae, model_version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.StartedAt.UTC(), run.Duration.Milliseconds(), run.Ratings, run.Users, run.Items, run.Sparsity,
			run.HoldoutSize, run.Rank, run.FinalState, run.Iterations,
			nullable(run.ALSRMSE), nullable(run.ALSMAE), nullable(run.KNNRMSE), nullable(run.KNNMAE), run.ModelVersion)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", run.RunID, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO training_iterations (run_id, iteration, train_objective, train_rmse, holdout_rmse,
				holdout_count, state, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer closeQuietly(stmt)

		for _, it := range iterations {
			if _, err := stmt.ExecContext(ctx, run.RunID, it.Iteration, it.TrainObjective, it.TrainRMSE,
				it.HoldoutObjective, it.HoldoutCount, string(it.State), it.Duration.Milliseconds()); err != nil {
				return fmt.Errorf("insert iteration %d: %w", it.Iteration, err)
			}
		}
		return tx.Commit()
	})
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// Runs returns the most recent runs first. limit <= 0 returns all.
func (db *DB) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT run_id, started_at, duration_ms, ratings, users, items, sparsity, holdout_size, factor_rank,
			final_state, iterations, als_rmse, als_mae, knn_rmse, knn_mae, model_version
		FROM training_runs ORDER BY started_at DESC, run_id`
	args := []interface{}{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	var out []Run
	err := timed("select", "training_runs", func() error {
		ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
		defer cancel()
		rows, err := db.conn.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r          Run
				durationMS int64
				als, alsM  sql.NullFloat64
				knn, knnM  sql.NullFloat64
			)
			if err := rows.Scan(&r.RunID, &r.StartedAt, &durationMS, &r.Ratings, &r.Users, &r.Items, &r.Sparsity,
				&r.HoldoutSize, &r.Rank, &r.FinalState, &r.Iterations, &als, &alsM, &knn, &knnM, &r.ModelVersion); err != nil {
				return fmt.Errorf("scan run: %w", err)
			}
			r.Duration = time.Duration(durationMS) * time.Millisecond
			r.ALSRMSE, r.ALSMAE = fromNull(als), fromNull(alsM)
			r.KNNRMSE, r.KNNMAE = fromNull(knn), fromNull(knnM)
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// Iterations returns the ALS series of a run in iteration order.
func (db *DB) Iterations(ctx context.Context, runID string) ([]algorithms.IterationStat, error) {
	var out []algorithms.IterationStat
	err := timed("select", "training_iterations", func() error {
		ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
		defer cancel()
		rows, err := db.conn.QueryContext(ctx, `
			SELECT iteration, train_objective, train_rmse, holdout_rmse, holdout_count, state, duration_ms
			FROM training_iterations WHERE run_id = ? ORDER BY iteration`, runID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				it         algorithms.IterationStat
				state      string
				durationMS int64
			)
			if err := rows.Scan(&it.Iteration, &it.TrainObjective, &it.TrainRMSE, &it.HoldoutObjective,
				&it.HoldoutCount, &state, &durationMS); err != nil {
				return fmt.Errorf("scan iteration: %w", err)
			}
			it.State = algorithms.TrainingState(state)
			it.Duration = time.Duration(durationMS) * time.Millisecond
			out = append(out, it)
		}
		return rows.Err()
	})
	return out, err
}
