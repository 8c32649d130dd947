// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

// Package ingest reads the Book-Crossing style CSV exports.
//
// Files are semicolon-delimited and ISO-8859-1 encoded. Columns are located
// by header name, so column order and extra columns do not matter. Header
// names are compared after lowercasing and stripping everything that is not
// a letter or digit, which maps "Book-Rating", "book_rating" and "BookRating"
// to the same column.
//
// Rows that cannot be turned into a typed record (missing cells, a
// non-numeric rating or year) are counted as malformed in the FileReport and
// skipped. Domain validation (rating range, ISBN length) is left to
// recommend.Load and recommend.NewCatalog.
//
//	ds, err := ingest.LoadFiles(ctx, ingest.Files{
//	    Ratings: "data/BX-Book-Ratings.csv",
//	    Books:   "data/BX-Books.csv",
//	}, ingest.DefaultOptions())
package ingest
