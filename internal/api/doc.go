// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

/*
Package api serves the latest pipeline snapshot over HTTP.

Routes:

	GET /health                                   liveness and snapshot status
	GET /metrics                                  Prometheus exposition
	GET /api/v1/stats                             rating matrix diagnostics
	GET /api/v1/training/iterations               ALS iteration series
	GET /api/v1/users/{id}/recommendations?n=&q=  top-N, optionally search filtered
	GET /api/v1/users/{id}/predict/{isbn}?k=      KNN rating estimate
	GET /api/v1/search?q=&n=                      catalog token search
	GET /api/v1/books/top?author=&from=&to=&min=&n=  DuckDB popularity table
	GET /api/v1/ratings/distribution              persisted rating counts per value
	GET /api/v1/runs?n=                           persisted run history
	GET /api/v1/runs/{id}/iterations              stored ALS series of a run
	GET /api/v1/runs/{id}/recommendations?user=   stored lists joined with books
	GET /api/v1/models                            model store versions
	GET /api/v1/models/{version}                  one version, checksum verified

The books, ratings and runs routes need a database and the models routes a
model store; without them they answer 503. Every other /api/v1 route
answers 503 until the first snapshot is published.

Query and path parameters are declared as request structs with validate
tags (requests.go); a failing request answers 400 with one detail per field.

Responses share the APIResponse envelope. Handlers never mutate a
snapshot; a retrain replaces it through pipeline.Holder.
*/
package api
