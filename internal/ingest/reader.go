// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"

	"github.com/tomtom215/bookrec/internal/recommend"
)

// Supported input encodings.
const (
	EncodingLatin1 = "latin1"
	EncodingUTF8   = "utf8"
)

// maxRowErrors bounds the row errors kept per file.
const maxRowErrors = 20

// Options controls CSV parsing.
type Options struct {
	Delimiter string `koanf:"delimiter" validate:"len=1"`
	Encoding  string `koanf:"encoding" validate:"oneof=latin1 utf8"`
}

// DefaultOptions matches the Book-Crossing exports.
func DefaultOptions() Options {
	return Options{Delimiter: ";", Encoding: EncodingLatin1}
}

// RowError describes one malformed row.
type RowError struct {
	Line   int    `json:"line"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Column, e.Reason)
}

// FileReport summarises one parsed file. Rows == Parsed + Malformed.
type FileReport struct {
	File      string     `json:"file"`
	Rows      int        `json:"rows"`
	Parsed    int        `json:"parsed"`
	Malformed int        `json:"malformed"`
	Errors    []RowError `json:"errors,omitempty"`
}

func (r *FileReport) malformed(e RowError) {
	r.Malformed++
	if len(r.Errors) < maxRowErrors {
		r.Errors = append(r.Errors, e)
	}
}

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("required column missing")

// Logical column names and the normalised header spellings that map to them.
const (
	colUser      = "user"
	colISBN      = "isbn"
	colRating    = "rating"
	colTitle     = "title"
	colAuthor    = "author"
	colYear      = "year"
	colPublisher = "publisher"
)

var headerAliases = map[string]string{
	"userid":            colUser,
	"user":              colUser,
	"isbn":              colISBN,
	"itemid":            colISBN,
	"bookrating":        colRating,
	"rating":            colRating,
	"value":             colRating,
	"booktitle":         colTitle,
	"title":             colTitle,
	"bookauthor":        colAuthor,
	"author":            colAuthor,
	"yearofpublication": colYear,
	"year":              colYear,
	"publisher":         colPublisher,
}

var (
	ratingColumns = []string{colUser, colISBN, colRating}
	bookColumns   = []string{colISBN, colTitle, colAuthor, colYear, colPublisher}
)

// NormalizeHeader lowercases h and drops every rune that is not a letter
// or digit.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func newCSVReader(r io.Reader, opts Options) (*csv.Reader, error) {
	if len(opts.Delimiter) != 1 {
		return nil, fmt.Errorf("delimiter must be a single byte, got %q", opts.Delimiter)
	}
	switch opts.Encoding {
	case EncodingLatin1, "":
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	case EncodingUTF8:
	default:
		return nil, fmt.Errorf("unsupported encoding %q", opts.Encoding)
	}

	cr := csv.NewReader(r)
	cr.Comma = rune(opts.Delimiter[0])
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr, nil
}

// columnIndex maps logical columns to positions. Unknown headers are
// ignored; the first occurrence of a logical column wins.
func columnIndex(header []string, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(required))
	for i, h := range header {
		name, ok := headerAliases[NormalizeHeader(h)]
		if !ok {
			continue
		}
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}
	var missing []string
	for _, c := range required {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

// scan drives the csv reader and hands each data record to fn. Parse
// errors of individual records are reported as malformed rows.
func scan(name string, r io.Reader, opts Options, required []string,
	fn func(line int, cell func(col string) (string, bool)) *RowError) (FileReport, error) {
	report := FileReport{File: name}

	cr, err := newCSVReader(r, opts)
	if err != nil {
		return report, err
	}
	header, err := cr.Read()
	if err == io.EOF {
		return report, fmt.Errorf("%s: empty file", name)
	}
	if err != nil {
		return report, fmt.Errorf("%s: read header: %w", name, err)
	}
	idx, err := columnIndex(header, required)
	if err != nil {
		return report, fmt.Errorf("%s: %w", name, err)
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		report.Rows++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				report.malformed(RowError{Line: perr.Line, Reason: perr.Err.Error()})
				continue
			}
			return report, fmt.Errorf("%s: %w", name, err)
		}
		line, _ := cr.FieldPos(0)
		cell := func(col string) (string, bool) {
			i := idx[col]
			if i >= len(rec) {
				return "", false
			}
			return strings.TrimSpace(rec[i]), true
		}
		if rerr := fn(line, cell); rerr != nil {
			report.malformed(*rerr)
			continue
		}
		report.Parsed++
	}
	return report, nil
}

// ReadRatings parses a ratings file. Ratings are returned in file order.
func ReadRatings(name string, r io.Reader, opts Options) ([]recommend.Rating, FileReport, error) {
	var out []recommend.Rating
	report, err := scan(name, r, opts, ratingColumns, func(line int, cell func(string) (string, bool)) *RowError {
		vals, rerr := cells(line, cell, ratingColumns)
		if rerr != nil {
			return rerr
		}
		v, err := strconv.Atoi(vals[2])
		if err != nil {
			return &RowError{Line: line, Column: colRating, Reason: fmt.Sprintf("not an integer: %q", vals[2])}
		}
		out = append(out, recommend.Rating{UserID: vals[0], ItemID: vals[1], Value: v})
		return nil
	})
	return out, report, err
}

// ReadBooks parses a books file.
func ReadBooks(name string, r io.Reader, opts Options) ([]recommend.Item, FileReport, error) {
	var out []recommend.Item
	report, err := scan(name, r, opts, bookColumns, func(line int, cell func(string) (string, bool)) *RowError {
		vals, rerr := cells(line, cell, bookColumns)
		if rerr != nil {
			return rerr
		}
		year, err := strconv.Atoi(vals[3])
		if err != nil {
			return &RowError{Line: line, Column: colYear, Reason: fmt.Sprintf("not an integer: %q", vals[3])}
		}
		out = append(out, recommend.Item{
			ItemID:    vals[0],
			Title:     vals[1],
			Author:    vals[2],
			Year:      year,
			Publisher: vals[4],
		})
		return nil
	})
	return out, report, err
}

func cells(line int, cell func(string) (string, bool), cols []string) ([]string, *RowError) {
	vals := make([]string, len(cols))
	for i, c := range cols {
		v, ok := cell(c)
		if !ok {
			return nil, &RowError{Line: line, Column: c, Reason: "missing cell"}
		}
		vals[i] = v
	}
	return vals, nil
}
