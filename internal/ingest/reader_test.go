// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package ingest

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"User-ID", "userid"},
		{"Book-Rating", "bookrating"},
		{"Year-Of-Publication", "yearofpublication"},
		{" isbn ", "isbn"},
		{"\ufeffUser-ID", "userid"},
		{"book_title", "booktitle"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeHeader(tt.in); got != tt.want {
				t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReadRatings(t *testing.T) {
	input := `"User-ID";"ISBN";"Book-Rating"
"u1";"0000000001";"5"
"u1";"0000000002";"3"
"u2";"0000000001";"0"
"u3";"0000000003";"abc"
"u4"
`
	ratings, report, err := ReadRatings("ratings.csv", strings.NewReader(input), DefaultOptions())
	if err != nil {
		t.Fatalf("ReadRatings: %v", err)
	}

	if report.Rows != 5 || report.Parsed != 3 || report.Malformed != 2 {
		t.Errorf("report = %+v, want rows=5 parsed=3 malformed=2", report)
	}
	if len(ratings) != 3 {
		t.Fatalf("got %d ratings, want 3", len(ratings))
	}
	if ratings[0].UserID != "u1" || ratings[0].ItemID != "0000000001" || ratings[0].Value != 5 {
		t.Errorf("first rating = %+v", ratings[0])
	}
	// Zero is an implicit rating; range validation happens in the store.
	if ratings[2].Value != 0 {
		t.Errorf("third rating value = %d, want 0", ratings[2].Value)
	}
	if report.Errors[0].Column != colRating {
		t.Errorf("first error column = %q, want %q", report.Errors[0].Column, colRating)
	}
}

func TestReadRatings_ColumnOrderAndExtras(t *testing.T) {
	input := "rating;extra;isbn;user\n7;x;0000000009;u9\n"
	ratings, _, err := ReadRatings("r.csv", strings.NewReader(input), Options{Delimiter: ";", Encoding: EncodingUTF8})
	if err != nil {
		t.Fatalf("ReadRatings: %v", err)
	}
	if len(ratings) != 1 || ratings[0].UserID != "u9" || ratings[0].ItemID != "0000000009" || ratings[0].Value != 7 {
		t.Errorf("ratings = %+v", ratings)
	}
}

func TestReadRatings_MissingColumn(t *testing.T) {
	_, _, err := ReadRatings("r.csv", strings.NewReader("User-ID;ISBN\nu1;0000000001\n"), DefaultOptions())
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn", err)
	}
}

func TestReadRatings_EmptyFile(t *testing.T) {
	if _, _, err := ReadRatings("r.csv", strings.NewReader(""), DefaultOptions()); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestReadBooks_Latin1(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(`"ISBN";"Book-Title";"Book-Author";"Year-Of-Publication";"Publisher";"Image-URL-S"` + "\n")
	// 0xE9 is é and 0xF1 is ñ in ISO-8859-1.
	buf.WriteString(`"0000000001";"Caf`)
	buf.WriteByte(0xE9)
	buf.WriteString(`";"Pe`)
	buf.WriteByte(0xF1)
	buf.WriteString(`a";"1999";"Plaza";"http://x"` + "\n")
	buf.WriteString(`"0000000002";"Broken";"Someone";"DK Publishing Inc";"2000"` + "\n")

	items, report, err := ReadBooks("books.csv", &buf, DefaultOptions())
	if err != nil {
		t.Fatalf("ReadBooks: %v", err)
	}
	if report.Parsed != 1 || report.Malformed != 1 {
		t.Errorf("report = %+v, want parsed=1 malformed=1", report)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Title != "Café" || items[0].Author != "Peña" || items[0].Year != 1999 {
		t.Errorf("item = %+v", items[0])
	}
	if report.Errors[0].Column != colYear {
		t.Errorf("error column = %q, want year", report.Errors[0].Column)
	}
}

func TestReadRatings_LazyQuotes(t *testing.T) {
	input := "User-ID;ISBN;Book-Rating\nu1;\"000000000\"1\";4\n"
	_, report, err := ReadRatings("r.csv", strings.NewReader(input), DefaultOptions())
	if err != nil {
		t.Fatalf("ReadRatings: %v", err)
	}
	if report.Rows != 1 {
		t.Errorf("rows = %d, want 1", report.Rows)
	}
}

func TestOptionsRejected(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"multi-byte delimiter", Options{Delimiter: ";;", Encoding: EncodingUTF8}},
		{"empty delimiter", Options{Delimiter: "", Encoding: EncodingUTF8}},
		{"unknown encoding", Options{Delimiter: ";", Encoding: "ebcdic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ReadRatings("r.csv", strings.NewReader("a;b;c\n"), tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}
