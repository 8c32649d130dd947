// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

/*
Package metrics registers the Prometheus collectors of bookrec.

Collectors are package-level and registered with the default registry via
promauto, so any package can record without plumbing. In serve mode they are
exposed at /metrics:

	curl http://localhost:8080/metrics

# Families

  - bookrec_ingest_rows_total: CSV rows by file and outcome
  - bookrec_store_*: size of the current rating store
  - bookrec_als_*: iteration count, objectives and fit duration
  - bookrec_similarity_pairs: retained pairs of the last graph
  - bookrec_recommend_*: top-N and KNN request counts and latency
  - bookrec_duckdb_query_duration_seconds: persistence latency
  - bookrec_api_*: HTTP request counts and latency
*/
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	IngestRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_ingest_rows_total",
			Help: "CSV rows read, by file and outcome",
		},
		[]string{"file", "outcome"}, // outcome: parsed, malformed, kept, invalid, unmatched, duplicate
	)

	StoreRatings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookrec_store_ratings",
		Help: "Ratings in the current rating store",
	})

	StoreUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookrec_store_users",
		Help: "Distinct users in the current rating store",
	})

	StoreItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookrec_store_items",
		Help: "Distinct items in the current rating store",
	})

	StoreSparsity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookrec_store_sparsity",
		Help: "Sparsity of the current rating matrix",
	})

	// Training
	ALSIterations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookrec_als_iterations_total",
		Help: "Completed ALS iterations across all fits",
	})

	ALSTrainObjective = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookrec_als_train_objective",
		Help: "Regularised training objective of the latest iteration",
	})

	ALSHoldoutRMSE = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookrec_als_holdout_rmse",
		Help: "Holdout RMSE of the latest iteration",
	})

	ALSFitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookrec_als_fit_duration_seconds",
			Help:    "Wall-clock duration of ALS fits by final state",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
		},
		[]string{"state"},
	)

	SimilarityPairs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bookrec_similarity_pairs",
			Help: "Retained pairs of the latest similarity graph",
		},
		[]string{"axis", "measure"},
	)

	// Serving
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_recommend_requests_total",
			Help: "Recommendation and prediction requests by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: topn, knn; outcome: ok, unknown_user, insufficient_neighbors, error
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookrec_recommend_duration_seconds",
			Help:    "Latency of recommendation and prediction requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookrec_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB statements",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_duckdb_query_errors_total",
			Help: "Failed DuckDB statements",
		},
		[]string{"operation", "table"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_api_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookrec_api_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ModelSnapshots = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_model_snapshots_total",
			Help: "Model store operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// RecordIngest adds n rows with the given outcome for file.
func RecordIngest(file, outcome string, n int) {
	if n <= 0 {
		return
	}
	IngestRows.WithLabelValues(file, outcome).Add(float64(n))
}

// SetStoreSize publishes the current store dimensions.
func SetStoreSize(ratings, users, items int, sparsity float64) {
	StoreRatings.Set(float64(ratings))
	StoreUsers.Set(float64(users))
	StoreItems.Set(float64(items))
	StoreSparsity.Set(sparsity)
}

// RecordALSIteration records one completed iteration. holdoutCount of 0
// leaves the holdout gauge untouched.
func RecordALSIteration(trainObjective, holdoutRMSE float64, holdoutCount int) {
	ALSIterations.Inc()
	ALSTrainObjective.Set(trainObjective)
	if holdoutCount > 0 {
		ALSHoldoutRMSE.Set(holdoutRMSE)
	}
}

// RecordALSFit records the duration of a finished fit.
func RecordALSFit(state string, d time.Duration) {
	ALSFitDuration.WithLabelValues(state).Observe(d.Seconds())
}

// RecordRecommend records one top-N or KNN request.
func RecordRecommend(kind, outcome string, d time.Duration) {
	RecommendRequests.WithLabelValues(kind, outcome).Inc()
	RecommendDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordDBQuery records one DuckDB statement.
func RecordDBQuery(operation, table string, d time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(d.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, route, status string, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordSnapshot records a model store save, load or prune.
func RecordSnapshot(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ModelSnapshots.WithLabelValues(operation, outcome).Inc()
}
