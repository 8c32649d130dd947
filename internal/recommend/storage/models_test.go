// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/bookrec/internal/recommend"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testModel(mean float64) *recommend.FactorModel {
	return recommend.NewFactorModel(
		map[string][]float64{"u1": {0.1, 0.2}, "u2": {-0.3, 0.4}},
		map[string][]float64{"0000000002": {1, 0}, "0000000001": {0, 1}},
		mean, 2,
	)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Save(ctx, "als", testModel(3.8), ModelMetadata{RatingCount: 5, FinalState: "converged"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if meta.Version != 1 || meta.Checksum == "" || meta.SizeBytes == 0 {
		t.Errorf("meta = %+v", meta)
	}

	m, got, err := s.Load(ctx, "als", 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Version != 1 || got.RatingCount != 5 || got.FinalState != "converged" {
		t.Errorf("loaded meta = %+v", got)
	}
	if m.GlobalMean != 3.8 || m.Rank != 2 || m.Version != 1 {
		t.Errorf("model header = mean %v rank %d version %d", m.GlobalMean, m.Rank, m.Version)
	}
	// Decoded models must carry the sorted item index.
	ids := m.ItemIDs()
	if len(ids) != 2 || ids[0] != "0000000001" {
		t.Errorf("ItemIDs() = %v", ids)
	}
	if p, ok := m.Predict("u1", "0000000001"); !ok || p != 3.8+0.2 {
		t.Errorf("Predict = %v, %v", p, ok)
	}
}

func TestVersionsAreMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		meta, err := s.Save(ctx, "als", testModel(float64(i)), ModelMetadata{})
		if err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
		if meta.Version != i {
			t.Errorf("save %d got version %d", i, meta.Version)
		}
	}
	if _, err := s.Save(ctx, "other", testModel(0), ModelMetadata{}); err != nil {
		t.Fatal(err)
	}

	latest, ok, err := s.LatestVersion("als")
	if err != nil || !ok || latest != 3 {
		t.Errorf("LatestVersion = %d, %v, %v", latest, ok, err)
	}

	m, _, err := s.Load(ctx, "als", 2)
	if err != nil {
		t.Fatal(err)
	}
	if m.GlobalMean != 2 {
		t.Errorf("version 2 mean = %v", m.GlobalMean)
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].Name != "als" || all[3].Name != "other" {
		t.Errorf("List(all) = %+v", all)
	}
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := s.Save(ctx, "als", testModel(float64(i)), ModelMetadata{}); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.Prune(ctx, "als", 2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	list, err := s.List(ctx, "als")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Version != 4 || list[1].Version != 5 {
		t.Errorf("remaining = %+v", list)
	}

	// Pruned versions are not reused.
	meta, err := s.Save(ctx, "als", testModel(9), ModelMetadata{})
	if err != nil {
		t.Fatal(err)
	}
	if meta.Version != 6 {
		t.Errorf("next version = %d, want 6", meta.Version)
	}
}

func TestLoadErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.Load(ctx, "missing", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing name: err = %v, want ErrNotFound", err)
	}
	if _, err := s.Save(ctx, "als", testModel(1), ModelMetadata{}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Load(ctx, "als", 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing version: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "als", 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete missing: err = %v, want ErrNotFound", err)
	}
}

func TestChecksumMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Save(ctx, "als", testModel(1), ModelMetadata{}); err != nil {
		t.Fatal(err)
	}
	other, err := s.Save(ctx, "als", testModel(2), ModelMetadata{})
	if err != nil {
		t.Fatal(err)
	}

	// Swap version 2's payload into version 1.
	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(versionKey("data", "als", other.Version))
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return txn.Set(versionKey("data", "als", 1), v)
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.Load(ctx, "als", 1); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("err = %v, want ErrChecksumMismatch", err)
	}
}

func TestSaveRejectsBadNames(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"", "a:b"} {
		if _, err := s.Save(context.Background(), name, testModel(0), ModelMetadata{}); err == nil {
			t.Errorf("Save(%q) succeeded", name)
		}
	}
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Config{Path: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Save(context.Background(), "als", testModel(1), ModelMetadata{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(Config{Path: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if v, ok, _ := s.LatestVersion("als"); !ok || v != 1 {
		t.Errorf("LatestVersion after reopen = %d, %v", v, ok)
	}
}
