// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/bookrec/internal/recommend"
)

// ReplaceCatalog truncates books and inserts the catalog in one transaction.
func (db *DB) ReplaceCatalog(ctx context.Context, c *recommend.Catalog) error {
	return timed("replace", "books", func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer rollbackQuietly(tx)

		if _, err := tx.ExecContext(ctx, "DELETE FROM books"); err != nil {
			return fmt.Errorf("clear books: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO books (isbn, title, author, year, publisher) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer closeQuietly(stmt)

		for _, it := range c.Items() {
			if _, err := stmt.ExecContext(ctx, it.ItemID, it.Title, it.Author, it.Year, it.Publisher); err != nil {
				return fmt.Errorf("insert book %s: %w", it.ItemID, err)
			}
		}
		return tx.Commit()
	})
}

// ReplaceRatings truncates ratings and inserts every rating of s.
func (db *DB) ReplaceRatings(ctx context.Context, s *recommend.RatingStore) error {
	return timed("replace", "ratings", func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer rollbackQuietly(tx)

		if _, err := tx.ExecContext(ctx, "DELETE FROM ratings"); err != nil {
			return fmt.Errorf("clear ratings: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO ratings (user_id, isbn, rating) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer closeQuietly(stmt)

		for _, r := range s.All() {
			if _, err := stmt.ExecContext(ctx, r.UserID, r.ItemID, r.Value); err != nil {
				return fmt.Errorf("insert rating %s/%s: %w", r.UserID, r.ItemID, err)
			}
		}
		return tx.Commit()
	})
}

// CountRows returns the row count of one of the bookrec tables.
func (db *DB) CountRows(ctx context.Context, table string) (int, error) {
	switch table {
	case "books", "ratings", "training_runs", "training_iterations", "recommendations":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	err := timed("count", table, func() error {
		ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
		defer cancel()
		return db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	})
	return n, err
}
