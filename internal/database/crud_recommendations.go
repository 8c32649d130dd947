// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tomtom215/bookrec/internal/database/query"
	"github.com/tomtom215/bookrec/internal/recommend"
)

// RecommendationView is a ranked recommendation joined with its catalog
// entry. Catalog fields are empty when the book is not in books.
type RecommendationView struct {
	recommend.Recommendation
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Year      int    `json:"year,omitempty"`
	Publisher string `json:"publisher,omitempty"`
}

// SaveRecommendations stores the ranked lists of a run.
func (db *DB) SaveRecommendations(ctx context.Context, runID string, recs []recommend.Recommendation) error {
	return timed("insert", "recommendations", func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer rollbackQuietly(tx)

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO recommendations (run_id, user_id, position, isbn, score) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer closeQuietly(stmt)

		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx, runID, r.UserID, r.Rank, r.ItemID, r.Score); err != nil {
				return fmt.Errorf("insert recommendation %s#%d: %w", r.UserID, r.Rank, err)
			}
		}
		return tx.Commit()
	})
}

// RecommendationsWithCatalog returns the stored lists of runID joined with
// the books table, ordered by user and rank. Without userIDs every user of
// the run is returned.
func (db *DB) RecommendationsWithCatalog(ctx context.Context, runID string, userIDs ...string) ([]RecommendationView, error) {
	where, args := query.NewWhereBuilder().
		AddClause("r.run_id = ?", runID).
		AddIn("r.user_id", userIDs).
		BuildWithPrefix()
	q := fmt.Sprintf(`
		SELECT r.user_id, r.isbn, r.position, r.score,
			b.title, b.author, b.year, b.publisher
		FROM recommendations r
		LEFT JOIN books b ON b.isbn = r.isbn
		%s
		ORDER BY r.user_id, r.position`, where)

	var out []RecommendationView
	err := timed("select", "recommendations", func() error {
		ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
		defer cancel()
		rows, err := db.conn.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				v                        RecommendationView
				title, author, publisher sql.NullString
				year                     sql.NullInt64
			)
			if err := rows.Scan(&v.UserID, &v.ItemID, &v.Rank, &v.Score, &title, &author, &year, &publisher); err != nil {
				return fmt.Errorf("scan recommendation: %w", err)
			}
			v.Title, v.Author, v.Publisher = title.String, author.String, publisher.String
			v.Year = int(year.Int64)
			out = append(out, v)
		}
		return rows.Err()
	})
	return out, err
}
