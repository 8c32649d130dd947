// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package database

var schema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		isbn      VARCHAR PRIMARY KEY,
		title     VARCHAR NOT NULL,
		author    VARCHAR NOT NULL,
		year      INTEGER NOT NULL,
		publisher VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		user_id VARCHAR NOT NULL,
		isbn    VARCHAR NOT NULL,
		rating  INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 10),
		PRIMARY KEY (user_id, isbn)
	)`,
	`CREATE TABLE IF NOT EXISTS training_runs (
		run_id           VARCHAR PRIMARY KEY,
		started_at       TIMESTAMP NOT NULL,
		duration_ms      BIGINT NOT NULL,
		ratings          INTEGER NOT NULL,
		users            INTEGER NOT NULL,
		items            INTEGER NOT NULL,
		sparsity         DOUBLE NOT NULL,
		holdout_size     INTEGER NOT NULL,
		factor_rank      INTEGER NOT NULL,
		final_state      VARCHAR NOT NULL,
		iterations       INTEGER NOT NULL,
		als_rmse         DOUBLE,
		als_mae          DOUBLE,
		knn_rmse         DOUBLE,
		knn_mae          DOUBLE,
		model_version    INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS training_iterations (
		run_id            VARCHAR NOT NULL,
		iteration         INTEGER NOT NULL,
		train_objective   DOUBLE NOT NULL,
		train_rmse        DOUBLE NOT NULL,
		holdout_rmse      DOUBLE NOT NULL,
		holdout_count     INTEGER NOT NULL,
		state             VARCHAR NOT NULL,
		duration_ms       BIGINT NOT NULL,
		PRIMARY KEY (run_id, iteration)
	)`,
	`CREATE TABLE IF NOT EXISTS recommendations (
		run_id  VARCHAR NOT NULL,
		user_id VARCHAR NOT NULL,
		position INTEGER NOT NULL,
		isbn    VARCHAR NOT NULL,
		score   DOUBLE NOT NULL,
		PRIMARY KEY (run_id, user_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ratings_isbn ON ratings (isbn)`,
}
