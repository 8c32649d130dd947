// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tomtom215/bookrec/internal/ingest"
	"github.com/tomtom215/bookrec/internal/pipeline"
	"github.com/tomtom215/bookrec/internal/recommend"
	"github.com/tomtom215/bookrec/internal/recommend/algorithms"
)

func sampleResult() *pipeline.Result {
	books := ingest.FileReport{File: "books.csv", Rows: 3, Parsed: 3}
	catalog := recommend.LoadStats{Input: 3, Kept: 3}
	return &pipeline.Result{
		RunID:       "run-1",
		StartedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:    1500 * time.Millisecond,
		RatingsFile: ingest.FileReport{File: "ratings.csv", Rows: 6, Parsed: 5, Malformed: 1},
		BooksFile:   &books,
		CatalogLoad: &catalog,
		RatingLoad:  recommend.LoadStats{Input: 5, Kept: 4, Invalid: 1},
		Summary: recommend.Summary{
			Ratings: 4, Users: 2, Items: 3, Sparsity: 0.333333, MeanRating: 7.5,
			Histogram: map[int]int{5: 1, 8: 2, 9: 1},
		},
		MostRated: []recommend.ItemPopularity{{ItemID: "0000000001", Count: 2, Mean: 8}},
		Holdout:   pipeline.HoldoutReport{Withheld: 1, TrainRatings: 3, TrainUsers: 2, TrainItems: 3, HoldoutUsable: 1},
		Fit: pipeline.FitReport{
			State: algorithms.StateConverged,
			Iterations: []algorithms.IterationStat{
				{Iteration: 1, TrainObjective: 2.5, TrainRMSE: 0.9, HoldoutObjective: 1.1, HoldoutCount: 1, State: algorithms.StateIterating},
				{Iteration: 2, TrainObjective: 2.4, TrainRMSE: 0.8, HoldoutObjective: 1.0, HoldoutCount: 1, State: algorithms.StateConverged},
			},
		},
		Similarity: pipeline.SimilarityReport{Axis: algorithms.AxisUser, Measure: algorithms.MeasureCosine, Threshold: 0.1, Entities: 2, Pairs: 1},
		Recommendations: []recommend.Recommendation{
			{UserID: "u1", ItemID: "0000000003", Rank: 1, Score: 8.25},
		},
		ColdUsers: []string{"u9"},
		Evaluations: []algorithms.Evaluation{
			{Name: "als", Evaluated: 1, RMSE: 1.0, MAE: 1.0},
			{Name: "knn", Evaluated: 1, Fallbacks: 1, RMSE: 0.5, MAE: 0.5},
		},
		ModelVersion: 3,
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	res := sampleResult()

	if err := WriteJSON(path, res); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	got, err := ReadJSON(path)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.RunID != res.RunID || got.ModelVersion != 3 {
		t.Errorf("run = %q v%d, want %q v3", got.RunID, got.ModelVersion, res.RunID)
	}
	if len(got.Fit.Iterations) != 2 || got.Fit.Iterations[1].State != algorithms.StateConverged {
		t.Errorf("iterations = %+v", got.Fit.Iterations)
	}
	if ev, ok := got.Evaluation("knn"); !ok || ev.RMSE != 0.5 {
		t.Errorf("knn evaluation = %+v, %v", ev, ok)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the report", len(entries))
	}
}

func TestRender(t *testing.T) {
	res := sampleResult()
	titles := func(id string) (string, bool) {
		switch id {
		case "0000000001":
			return "The Hobbit", true
		case "0000000003":
			return strings.Repeat("Long Title ", 10), true
		}
		return "", false
	}

	var buf bytes.Buffer
	if err := Render(&buf, res, titles); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"bookrec run run-1",
		"ratings.csv",
		"books.csv",
		"sparsity",
		"The Hobbit",
		"holdout rmse",
		"converged",
		"knn",
		"u1",
		"0000000003",
		"…",
		"no factors for 1 users: u9",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestRenderWarningAndNoTitles(t *testing.T) {
	res := sampleResult()
	res.Fit.State = algorithms.StateMaxIterReached
	res.Fit.Warning = "stopped after 2 iterations"
	res.Recommendations = nil
	res.Query = "dragon"

	var buf bytes.Buffer
	if err := Render(&buf, res, nil); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"warning: stopped after 2 iterations", `matching "dragon"`, "none"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestTable(t *testing.T) {
	st := newStyles(lipgloss.NewRenderer(&bytes.Buffer{}))
	got := table(st, nil, [][]string{{"a", "1"}, {"long", "22"}})
	want := "a     1\nlong  22"
	if got != want {
		t.Errorf("table() = %q, want %q", got, want)
	}
}
