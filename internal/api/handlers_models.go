// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/bookrec/internal/pipeline"
	"github.com/tomtom215/bookrec/internal/recommend/storage"
)

// ModelView is one stored model version. Users and Items are only filled
// by the single-version endpoint, which decodes and verifies the payload.
type ModelView struct {
	storage.ModelMetadata
	Serving bool `json:"serving"`
	Users   int  `json:"factor_users,omitempty"`
	Items   int  `json:"factor_items,omitempty"`
}

func (h *Handler) requireModels(w http.ResponseWriter, r *http.Request) bool {
	if h.models == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Model store not enabled")
		return false
	}
	return true
}

// servingVersion is the model store version of the published snapshot.
func (h *Handler) servingVersion() int {
	if s := h.snapshots.Load(); s != nil {
		return s.ModelVersion
	}
	return 0
}

// Models handles GET /api/v1/models.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	if !h.requireModels(w, r) {
		return
	}
	rw := NewResponseWriter(w, r)

	list, err := h.models.List(r.Context(), pipeline.ModelName)
	if err != nil {
		rw.InternalError("Failed to list models", err)
		return
	}
	serving := h.servingVersion()
	views := make([]ModelView, 0, len(list))
	for _, meta := range list {
		views = append(views, ModelView{ModelMetadata: meta, Serving: meta.Version == serving})
	}
	rw.SuccessWithMeta(views, &APIMeta{Count: intPtr(len(views))})
}

// Model handles GET /api/v1/models/{version}. The version is read back and
// its checksum verified; a corrupt payload answers 500.
func (h *Handler) Model(w http.ResponseWriter, r *http.Request) {
	if !h.requireModels(w, r) {
		return
	}
	rw := NewResponseWriter(w, r)

	req := ModelRequest{Version: parseIntParam(chi.URLParam(r, "version"), invalidParam)}
	if !validateRequest(rw, &req) {
		return
	}

	m, meta, err := h.models.Load(r.Context(), pipeline.ModelName, req.Version)
	if errors.Is(err, storage.ErrNotFound) {
		rw.NotFound(ErrCodeNotFound, err.Error())
		return
	}
	if err != nil {
		rw.InternalError("Failed to load model", err)
		return
	}
	rw.Success(ModelView{
		ModelMetadata: meta,
		Serving:       meta.Version == h.servingVersion(),
		Users:         len(m.UserFactors),
		Items:         len(m.ItemFactors),
	})
}
