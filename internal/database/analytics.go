// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/bookrec/internal/database/query"
)

// BookStats is one row of the popularity table.
type BookStats struct {
	ISBN       string  `json:"isbn"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Year       int     `json:"year"`
	Ratings    int     `json:"ratings"`
	MeanRating float64 `json:"mean_rating"`
}

// BookFilter narrows TopRatedBooks. Zero values do not filter.
type BookFilter struct {
	Author     string
	YearFrom   int
	YearTo     int
	MinRatings int
	Limit      int
}

// TopRatedBooks returns catalog books ordered by rating count, then mean
// rating, then ISBN.
func (db *DB) TopRatedBooks(ctx context.Context, f BookFilter) ([]BookStats, error) {
	wb := query.NewWhereBuilder().
		AddContains("b.author", f.Author).
		AddYearRange("b.year", f.YearFrom, f.YearTo)
	where, args := wb.BuildWithPrefix()

	q := fmt.Sprintf(`
		SELECT b.isbn, b.title, b.author, b.year, COUNT(*) AS n, AVG(r.rating) AS mean
		FROM ratings r
		JOIN books b ON b.isbn = r.isbn
		%s
		GROUP BY b.isbn, b.title, b.author, b.year
		HAVING COUNT(*) >= ?
		ORDER BY n DESC, mean DESC, b.isbn`, where)
	minRatings := f.MinRatings
	if minRatings < 1 {
		minRatings = 1
	}
	args = append(args, minRatings)
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var out []BookStats
	err := timed("select", "ratings", func() error {
		ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
		defer cancel()
		rows, err := db.conn.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s BookStats
			if err := rows.Scan(&s.ISBN, &s.Title, &s.Author, &s.Year, &s.Ratings, &s.MeanRating); err != nil {
				return fmt.Errorf("scan book stats: %w", err)
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}

// RatingDistribution counts ratings per value with SQL. Values without
// ratings are absent.
func (db *DB) RatingDistribution(ctx context.Context) (map[int]int, error) {
	out := make(map[int]int)
	err := timed("select", "ratings", func() error {
		ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
		defer cancel()
		rows, err := db.conn.QueryContext(ctx, "SELECT rating, COUNT(*) FROM ratings GROUP BY rating")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var v, n int
			if err := rows.Scan(&v, &n); err != nil {
				return err
			}
			out[v] = n
		}
		return rows.Err()
	})
	return out, err
}
