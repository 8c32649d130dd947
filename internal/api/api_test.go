// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/bookrec/internal/config"
	"github.com/tomtom215/bookrec/internal/database"
	"github.com/tomtom215/bookrec/internal/ingest"
	"github.com/tomtom215/bookrec/internal/logging"
	"github.com/tomtom215/bookrec/internal/metrics"
	"github.com/tomtom215/bookrec/internal/pipeline"
	"github.com/tomtom215/bookrec/internal/recommend"
	"github.com/tomtom215/bookrec/internal/recommend/storage"
)

func isbn(i int) string {
	return fmt.Sprintf("%010d", i+1)
}

// testDataset: 12 users rate 6 of 8 books; even books are "Dragon" titles.
func testDataset() *ingest.Dataset {
	ds := &ingest.Dataset{BooksReport: &ingest.FileReport{File: "books.csv"}}
	for i := 0; i < 8; i++ {
		title := fmt.Sprintf("Quiet Garden %d", i)
		if i%2 == 0 {
			title = fmt.Sprintf("Dragon Saga %d", i)
		}
		ds.Items = append(ds.Items, recommend.Item{
			ItemID: isbn(i), Title: title, Author: "Some Author", Year: 1990 + i, Publisher: "Press",
		})
	}
	for u := 0; u < 12; u++ {
		for i := 0; i < 8; i++ {
			if (u+i)%4 == 0 {
				continue
			}
			ds.Ratings = append(ds.Ratings, recommend.Rating{
				UserID: fmt.Sprintf("u%02d", u),
				ItemID: isbn(i),
				Value:  1 + (u*3+i*5)%10,
			})
		}
	}
	ds.RatingsReport = ingest.FileReport{File: "ratings.csv", Rows: len(ds.Ratings), Parsed: len(ds.Ratings)}
	return ds
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ALS.Rank = 3
	cfg.ALS.MaxIterations = 8
	cfg.ALS.NumWorkers = 2
	cfg.Similarity.Threshold = 0.1
	cfg.Recommend.N = 5
	cfg.Recommend.SampleUsers = 2
	return cfg
}

var (
	snapOnce sync.Once
	snap     *pipeline.Snapshot
	snapErr  error
)

// testSnapshot trains once per package run.
func testSnapshot(t *testing.T) *pipeline.Snapshot {
	t.Helper()
	snapOnce.Do(func() {
		p := pipeline.New(testConfig(), pipeline.WithLogger(logging.NewTestLogger(io.Discard)))
		_, snap, snapErr = p.RunDataset(context.Background(), testDataset())
	})
	if snapErr != nil {
		t.Fatalf("RunDataset: %v", snapErr)
	}
	return snap
}

func newTestServer(t *testing.T, s *pipeline.Snapshot, db *database.DB, mw *Middleware) http.Handler {
	t.Helper()
	return newStoreServer(t, s, db, nil, mw)
}

func newStoreServer(t *testing.T, s *pipeline.Snapshot, db *database.DB, models *storage.Store, mw *Middleware) http.Handler {
	t.Helper()
	holder := &pipeline.Holder{}
	if s != nil {
		holder.Store(s)
	}
	h := NewHandler(holder, db, models, testConfig().Recommend)
	return NewRouter(h, mw).Setup()
}

// persistedRun trains once with an in-memory DuckDB and model store.
func persistedRun(t *testing.T) (*pipeline.Snapshot, *database.DB, *storage.Store) {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", Threads: 1})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	models, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("storage.OpenInMemory: %v", err)
	}
	t.Cleanup(func() { models.Close() })

	p := pipeline.New(testConfig(),
		pipeline.WithDatabase(db),
		pipeline.WithModelStore(models),
		pipeline.WithLogger(logging.NewTestLogger(io.Discard)))
	_, s, err := p.RunDataset(context.Background(), testDataset())
	if err != nil {
		t.Fatal(err)
	}
	return s, db, models
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func get(t *testing.T, srv http.Handler, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s: %v\n%s", target, err, w.Body.String())
		}
	}
	return w, env
}

func decode(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		snap   *pipeline.Snapshot
		status string
	}{
		{"before first run", nil, "starting"},
		{"with snapshot", &pipeline.Snapshot{RunID: "r1"}, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := get(t, newTestServer(t, tt.snap, nil, nil), "/health")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			var hs HealthStatus
			decode(t, env.Data, &hs)
			if hs.Status != tt.status {
				t.Errorf("status = %q, want %q", hs.Status, tt.status)
			}
		})
	}
}

func TestNoSnapshot(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)
	for _, target := range []string{
		"/api/v1/stats",
		"/api/v1/training/iterations",
		"/api/v1/users/u00/recommendations",
		"/api/v1/search?q=dragon",
	} {
		w, env := get(t, srv, target)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", target, w.Code)
		}
		if env.Error == nil || env.Error.Code != ErrCodeServiceUnavailable {
			t.Errorf("%s: error = %+v", target, env.Error)
		}
	}
}

func TestStatsAndIterations(t *testing.T) {
	s := testSnapshot(t)
	srv := newTestServer(t, s, nil, nil)

	w, env := get(t, srv, "/api/v1/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var stats StatsResponse
	decode(t, env.Data, &stats)
	if stats.Users != 12 || stats.Items != 8 || stats.Rank != 3 || stats.CatalogBooks != 8 {
		t.Errorf("stats = %+v", stats)
	}
	if env.Meta == nil || env.Meta.RunID != s.RunID {
		t.Errorf("meta = %+v, want run %s", env.Meta, s.RunID)
	}

	w, env = get(t, srv, "/api/v1/training/iterations")
	if w.Code != http.StatusOK {
		t.Fatalf("iterations status = %d", w.Code)
	}
	if env.Meta == nil || env.Meta.Count == nil || *env.Meta.Count != len(s.Iterations) {
		t.Errorf("meta = %+v, want count %d", env.Meta, len(s.Iterations))
	}
}

func TestRecommendations(t *testing.T) {
	srv := newTestServer(t, testSnapshot(t), nil, nil)

	tests := []struct {
		name     string
		target   string
		status   int
		code     string
		wantLen  int
		dragonly bool
	}{
		{name: "default n", target: "/api/v1/users/u00/recommendations?exclude_rated=false", status: 200, wantLen: 5},
		{name: "explicit n", target: "/api/v1/users/u00/recommendations?n=2", status: 200, wantLen: 2},
		{name: "search filter", target: "/api/v1/users/u01/recommendations?q=dragon&n=10&exclude_rated=false", status: 200, wantLen: 4, dragonly: true},
		{name: "unknown user", target: "/api/v1/users/nobody/recommendations", status: 404, code: ErrCodeUnknownUser},
		{name: "bad n", target: "/api/v1/users/u00/recommendations?n=zero", status: 400, code: ErrCodeBadRequest},
		{name: "bad exclude", target: "/api/v1/users/u00/recommendations?exclude_rated=maybe", status: 400, code: ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := get(t, srv, tt.target)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if tt.code != "" {
				if env.Error == nil || env.Error.Code != tt.code {
					t.Errorf("error = %+v, want %s", env.Error, tt.code)
				}
				return
			}
			var recs []RecommendationView
			decode(t, env.Data, &recs)
			if len(recs) != tt.wantLen {
				t.Fatalf("got %d recommendations, want %d", len(recs), tt.wantLen)
			}
			for i, rec := range recs {
				if rec.Rank != i+1 {
					t.Errorf("rank[%d] = %d", i, rec.Rank)
				}
				if rec.Book == nil {
					t.Errorf("recommendation %s missing catalog data", rec.ItemID)
					continue
				}
				if tt.dragonly && !strings.Contains(rec.Book.Title, "Dragon") {
					t.Errorf("filtered recommendation %q is not a search hit", rec.Book.Title)
				}
			}
		})
	}
}

func TestPredict(t *testing.T) {
	srv := newTestServer(t, testSnapshot(t), nil, nil)

	w, env := get(t, srv, "/api/v1/users/u00/predict/"+isbn(0)+"?k=3")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var p PredictionResponse
	decode(t, env.Data, &p)
	if p.Neighbors < 1 || p.Neighbors > 3 || p.Value < 1 || p.Value > 10 {
		t.Errorf("prediction = %+v", p)
	}
	if p.Book == nil || p.Book.ISBN != isbn(0) {
		t.Errorf("book = %+v", p.Book)
	}

	tests := []struct {
		target string
		status int
		code   string
	}{
		{"/api/v1/users/u00/predict/123", 400, ErrCodeBadRequest},
		{"/api/v1/users/u00/predict/" + isbn(0) + "?k=-1", 400, ErrCodeBadRequest},
		{"/api/v1/users/nobody/predict/" + isbn(0), 404, ErrCodeUnknownUser},
	}
	for _, tt := range tests {
		w, env := get(t, srv, tt.target)
		if w.Code != tt.status || env.Error == nil || env.Error.Code != tt.code {
			t.Errorf("%s: status %d error %+v, want %d %s", tt.target, w.Code, env.Error, tt.status, tt.code)
		}
	}
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t, testSnapshot(t), nil, nil)

	w, env := get(t, srv, "/api/v1/search?q=Dragon+saga&n=3")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var hits []SearchHitView
	decode(t, env.Data, &hits)
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	for i, h := range hits {
		if h.Matched != 2 || h.Book == nil || !strings.HasPrefix(h.Book.Title, "Dragon") {
			t.Errorf("hit %d = %+v", i, h)
		}
		if i > 0 && hits[i-1].ISBN > h.ISBN {
			t.Errorf("hits not ordered by isbn on ties: %s before %s", hits[i-1].ISBN, h.ISBN)
		}
	}

	if w, _ := get(t, srv, "/api/v1/search"); w.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d, want 400", w.Code)
	}

	noCatalog := newTestServer(t, &pipeline.Snapshot{RunID: "r"}, nil, nil)
	if w, _ := get(t, noCatalog, "/api/v1/search?q=x"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no catalog: status = %d, want 503", w.Code)
	}
}

func TestDatabaseRoutes(t *testing.T) {
	srv := newTestServer(t, testSnapshot(t), nil, nil)
	for _, target := range []string{"/api/v1/books/top", "/api/v1/runs"} {
		if w, _ := get(t, srv, target); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s without db: status = %d, want 503", target, w.Code)
		}
	}

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", Threads: 1})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	defer db.Close()
	p := pipeline.New(testConfig(), pipeline.WithDatabase(db), pipeline.WithLogger(logging.NewTestLogger(io.Discard)))
	_, s, err := p.RunDataset(context.Background(), testDataset())
	if err != nil {
		t.Fatal(err)
	}
	srv = newTestServer(t, s, db, nil)

	w, env := get(t, srv, "/api/v1/books/top?n=3&min=2")
	if w.Code != http.StatusOK {
		t.Fatalf("top status = %d: %s", w.Code, w.Body.String())
	}
	var books []database.BookStats
	decode(t, env.Data, &books)
	if len(books) != 3 {
		t.Errorf("got %d books, want 3", len(books))
	}

	if w, _ := get(t, srv, "/api/v1/books/top?from=2000&to=1990"); w.Code != http.StatusBadRequest {
		t.Errorf("inverted year range: status = %d, want 400", w.Code)
	}

	w, env = get(t, srv, "/api/v1/runs")
	if w.Code != http.StatusOK {
		t.Fatalf("runs status = %d", w.Code)
	}
	var runs []database.Run
	decode(t, env.Data, &runs)
	if len(runs) != 1 || runs[0].RunID != s.RunID {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRequestValidation(t *testing.T) {
	s, db, models := persistedRun(t)
	srv := newStoreServer(t, s, db, models, nil)

	tests := []struct {
		name   string
		target string
		field  string
	}{
		{"top n zero", "/api/v1/books/top?n=0", "N"},
		{"top n above cap", "/api/v1/books/top?n=1001", "N"},
		{"top min not a number", "/api/v1/books/top?min=many", "MinRatings"},
		{"top inverted years", "/api/v1/books/top?from=2000&to=1990", "To"},
		{"top negative year", "/api/v1/books/top?from=-3", "From"},
		{"runs n negative", "/api/v1/runs?n=-5", "N"},
		{"search n above cap", "/api/v1/search?q=dragon&n=5000", "N"},
		{"search without q", "/api/v1/search", "Query"},
		{"recommendations n not a number", "/api/v1/users/u00/recommendations?n=zero", "N"},
		{"recommendations bad exclude", "/api/v1/users/u00/recommendations?exclude_rated=maybe", "ExcludeRated"},
		{"predict short isbn", "/api/v1/users/u00/predict/123", "ISBN"},
		{"predict negative k", "/api/v1/users/u00/predict/" + isbn(0) + "?k=-1", "K"},
		{"model version zero", "/api/v1/models/0", "Version"},
		{"model version not a number", "/api/v1/models/latest", "Version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := get(t, srv, tt.target)
			if w.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != ErrCodeBadRequest {
				t.Fatalf("status %d error %+v", w.Code, env.Error)
			}
			details, ok := env.Error.Details.(map[string]interface{})
			if !ok {
				t.Fatalf("details = %#v", env.Error.Details)
			}
			if _, ok := details[tt.field]; !ok {
				t.Errorf("details %v missing field %s", details, tt.field)
			}
		})
	}

	if w, _ := get(t, srv, "/api/v1/books/top?from=1990&to=1995&n=1000"); w.Code != http.StatusOK {
		t.Errorf("valid closed range: status = %d", w.Code)
	}
}

func TestRunRoutes(t *testing.T) {
	s, db, _ := persistedRun(t)
	srv := newTestServer(t, s, db, nil)

	w, env := get(t, srv, "/api/v1/runs/"+s.RunID+"/iterations")
	if w.Code != http.StatusOK {
		t.Fatalf("iterations status = %d: %s", w.Code, w.Body.String())
	}
	var series struct {
		State      string            `json:"state"`
		Iterations []json.RawMessage `json:"iterations"`
	}
	decode(t, env.Data, &series)
	if len(series.Iterations) != len(s.Iterations) || series.State != string(s.State) {
		t.Errorf("stored series: %d iterations state %q, want %d %q",
			len(series.Iterations), series.State, len(s.Iterations), s.State)
	}

	w, env = get(t, srv, "/api/v1/runs/"+s.RunID+"/recommendations?user=u00")
	if w.Code != http.StatusOK {
		t.Fatalf("recommendations status = %d: %s", w.Code, w.Body.String())
	}
	var views []database.RecommendationView
	decode(t, env.Data, &views)
	if len(views) == 0 {
		t.Fatal("no stored recommendations for u00")
	}
	for _, v := range views {
		if v.UserID != "u00" || v.Title == "" {
			t.Errorf("view = %+v, want u00 joined with a title", v)
		}
	}

	w, env = get(t, srv, "/api/v1/ratings/distribution")
	if w.Code != http.StatusOK {
		t.Fatalf("distribution status = %d", w.Code)
	}
	var dist map[int]int
	decode(t, env.Data, &dist)
	total := 0
	for _, n := range dist {
		total += n
	}
	if len(dist) != recommend.MaxRatingValue || total != s.Store.Count() {
		t.Errorf("distribution = %v (total %d), want 10 values totalling %d", dist, total, s.Store.Count())
	}

	for _, target := range []string{
		"/api/v1/runs/no-such-run/iterations",
		"/api/v1/runs/no-such-run/recommendations",
		"/api/v1/runs/" + s.RunID + "/recommendations?user=nobody",
	} {
		if w, env := get(t, srv, target); w.Code != http.StatusNotFound || env.Error.Code != ErrCodeNotFound {
			t.Errorf("%s: status = %d", target, w.Code)
		}
	}
}

func TestModelRoutes(t *testing.T) {
	if w, _ := get(t, newTestServer(t, testSnapshot(t), nil, nil), "/api/v1/models"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("without model store: status = %d, want 503", w.Code)
	}

	s, _, models := persistedRun(t)
	if s.ModelVersion != 1 {
		t.Fatalf("ModelVersion = %d, want 1", s.ModelVersion)
	}
	srv := newStoreServer(t, s, nil, models, nil)

	w, env := get(t, srv, "/api/v1/models")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list []ModelView
	decode(t, env.Data, &list)
	if len(list) != 1 || list[0].Version != 1 || !list[0].Serving || list[0].Checksum == "" {
		t.Errorf("models = %+v", list)
	}

	w, env = get(t, srv, "/api/v1/models/1")
	if w.Code != http.StatusOK {
		t.Fatalf("model status = %d: %s", w.Code, w.Body.String())
	}
	var one ModelView
	decode(t, env.Data, &one)
	if one.Users != len(s.Model.UserFactors) || one.Items != len(s.Model.ItemFactors) || !one.Serving {
		t.Errorf("model = %+v", one)
	}

	if w, env := get(t, srv, "/api/v1/models/9"); w.Code != http.StatusNotFound || env.Error.Code != ErrCodeNotFound {
		t.Errorf("missing version: status = %d", w.Code)
	}
}

func TestMiddleware(t *testing.T) {
	t.Run("request id echoed", func(t *testing.T) {
		srv := newTestServer(t, nil, nil, nil)
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
			t.Errorf("X-Request-ID = %q", got)
		}
		var env envelope
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatal(err)
		}
		if env.Meta == nil || env.Meta.RequestID != "abc-123" {
			t.Errorf("meta = %+v", env.Meta)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		mw := NewMiddleware(&MiddlewareConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute})
		srv := newTestServer(t, nil, nil, mw)
		codes := make([]int, 0, 2)
		for i := 0; i < 2; i++ {
			w, _ := get(t, srv, "/api/v1/stats")
			codes = append(codes, w.Code)
		}
		if codes[0] != http.StatusServiceUnavailable || codes[1] != http.StatusTooManyRequests {
			t.Errorf("codes = %v, want [503 429]", codes)
		}
	})

	t.Run("metrics by route pattern", func(t *testing.T) {
		srv := newTestServer(t, nil, nil, nil)
		counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/users/{id}/recommendations", "503")
		before := testutil.ToFloat64(counter)
		get(t, srv, "/api/v1/users/u07/recommendations")
		if after := testutil.ToFloat64(counter); after != before+1 {
			t.Errorf("counter = %v, want %v", after, before+1)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		w, env := get(t, newTestServer(t, nil, nil, nil), "/nope")
		if w.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrCodeNotFound {
			t.Errorf("status %d error %+v", w.Code, env.Error)
		}
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		w, _ := get(t, newTestServer(t, nil, nil, nil), "/metrics")
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "bookrec_") {
			t.Errorf("status %d", w.Code)
		}
	})
}
