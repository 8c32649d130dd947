// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/bookrec/internal/logging"
	"github.com/tomtom215/bookrec/internal/metrics"
	"github.com/tomtom215/bookrec/internal/recommend"
)

// Files names the inputs of one load. Books is optional; without it no
// catalog join is performed.
type Files struct {
	Ratings string `koanf:"ratings" validate:"required"`
	Books   string `koanf:"books"`
}

// Dataset is the raw, parsed but not yet validated input.
type Dataset struct {
	Ratings       []recommend.Rating `json:"-"`
	Items         []recommend.Item   `json:"-"`
	RatingsReport FileReport         `json:"ratings_report"`
	BooksReport   *FileReport        `json:"books_report,omitempty"`
	Duration      time.Duration      `json:"duration"`
}

// HasCatalog reports whether a books file was read.
func (d *Dataset) HasCatalog() bool {
	return d.BooksReport != nil
}

// LoadFiles reads the ratings and books files concurrently. A failure of
// either file cancels the other and fails the load.
func LoadFiles(ctx context.Context, files Files, opts Options) (*Dataset, error) {
	start := time.Now()
	ds := &Dataset{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ratings, report, err := readFile(gctx, files.Ratings, func(r io.Reader) (int, FileReport, error) {
			rs, rep, err := ReadRatings(files.Ratings, r, opts)
			ds.Ratings = rs
			return len(rs), rep, err
		})
		ds.RatingsReport = report
		recordReport("ratings", report)
		if err != nil {
			return fmt.Errorf("ratings: %w", err)
		}
		logging.Debug().Str("file", files.Ratings).Int("ratings", ratings).Msg("Ratings file parsed")
		return nil
	})

	if files.Books != "" {
		g.Go(func() error {
			items, report, err := readFile(gctx, files.Books, func(r io.Reader) (int, FileReport, error) {
				its, rep, err := ReadBooks(files.Books, r, opts)
				ds.Items = its
				return len(its), rep, err
			})
			ds.BooksReport = &report
			recordReport("books", report)
			if err != nil {
				return fmt.Errorf("books: %w", err)
			}
			logging.Debug().Str("file", files.Books).Int("items", items).Msg("Books file parsed")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	ds.Duration = time.Since(start)

	ev := logging.Info().
		Int("ratings_rows", ds.RatingsReport.Rows).
		Int("ratings_malformed", ds.RatingsReport.Malformed)
	if ds.BooksReport != nil {
		ev = ev.Int("books_rows", ds.BooksReport.Rows).Int("books_malformed", ds.BooksReport.Malformed)
	}
	ev.Dur("duration", ds.Duration).Msg("Input files loaded")
	return ds, nil
}

func readFile(ctx context.Context, path string, parse func(io.Reader) (int, FileReport, error)) (int, FileReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, FileReport{File: path}, err
	}
	defer f.Close()
	return parse(bufio.NewReader(&ctxReader{ctx: ctx, r: f}))
}

func recordReport(file string, r FileReport) {
	metrics.RecordIngest(file, "parsed", r.Parsed)
	metrics.RecordIngest(file, "malformed", r.Malformed)
}

// ctxReader stops a long parse once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
