// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNewRunID(t *testing.T) {
	t.Parallel()

	a, b := NewRunID(), NewRunID()
	if len(a) != 8 {
		t.Errorf("run id length = %d, want 8", len(a))
	}
	if a == b {
		t.Error("expected distinct run ids")
	}
	if len(NewRequestID()) != 36 {
		t.Error("expected UUID-formatted request id")
	}
}

func TestContextIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if RunIDFromContext(ctx) != "" || RequestIDFromContext(ctx) != "" {
		t.Fatal("expected empty ids on background context")
	}

	ctx = ContextWithRunID(ctx, "run1")
	ctx = ContextWithRequestID(ctx, "req1")
	if got := RunIDFromContext(ctx); got != "run1" {
		t.Errorf("run id = %q", got)
	}
	if got := RequestIDFromContext(ctx); got != "req1" {
		t.Errorf("request id = %q", got)
	}
}

func TestCtxAddsFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithRunID(ctx, "abcd1234")

	Ctx(ctx).Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"abcd1234"`) {
		t.Errorf("missing run_id in %s", out)
	}
	if strings.Contains(out, "request_id") {
		t.Errorf("unexpected request_id in %s", out)
	}
}
