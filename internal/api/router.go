// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router binds handlers and middleware to routes.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates a router.
func NewRouter(handler *Handler, mw *Middleware) *Router {
	if mw == nil {
		mw = NewMiddleware(nil)
	}
	return &Router{handler: handler, middleware: mw}
}

// Setup configures all routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(Instrument)
	r.Use(router.middleware.CORS()) // global so OPTIONS preflight is answered

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound(ErrCodeNotFound, "Route not found")
	})

	r.Get("/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())

		r.Get("/stats", router.handler.Stats)
		r.Get("/training/iterations", router.handler.TrainingIterations)
		r.Get("/search", router.handler.Search)
		r.Get("/books/top", router.handler.TopBooks)
		r.Get("/ratings/distribution", router.handler.RatingDistribution)

		r.Get("/runs", router.handler.Runs)
		r.Route("/runs/{id}", func(r chi.Router) {
			r.Get("/iterations", router.handler.RunIterations)
			r.Get("/recommendations", router.handler.RunRecommendations)
		})

		r.Get("/models", router.handler.Models)
		r.Get("/models/{version}", router.handler.Model)

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/recommendations", router.handler.Recommendations)
			r.Get("/predict/{isbn}", router.handler.Predict)
		})
	})

	return r
}
