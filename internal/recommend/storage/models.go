// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

// Package storage persists trained factor models in BadgerDB.
//
// Every Save creates a new, monotonically increasing version of a named
// model. A version is two keys written in one transaction:
//
//	meta:{name}:v00000003  JSON ModelMetadata
//	data:{name}:v00000003  gzip(gob(snapshot))
//
// The SHA-256 of the uncompressed gob payload is recorded in the metadata
// and verified on Load, so a truncated or bit-flipped value is reported
// instead of silently producing a wrong model.
//
// Stores are safe for concurrent use.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/bookrec/internal/logging"
	"github.com/tomtom215/bookrec/internal/metrics"
	"github.com/tomtom215/bookrec/internal/recommend"
)

// ErrNotFound is returned when a model name or version does not exist.
var ErrNotFound = errors.New("model not found")

// ErrChecksumMismatch is returned when stored bytes do not match the
// recorded checksum.
var ErrChecksumMismatch = errors.New("model checksum mismatch")

// ModelMetadata describes one stored model version.
type ModelMetadata struct {
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	SavedAt   time.Time `json:"saved_at"`

	Rank        int     `json:"rank"`
	GlobalMean  float64 `json:"global_mean"`
	RatingCount int     `json:"rating_count"`
	UserCount   int     `json:"user_count"`
	ItemCount   int     `json:"item_count"`

	// FinalState and Iterations come from the ALS fit.
	FinalState         string  `json:"final_state,omitempty"`
	Iterations         int     `json:"iterations,omitempty"`
	HoldoutRMSE        float64 `json:"holdout_rmse,omitempty"`
	TrainingDurationMS int64   `json:"training_duration_ms"`

	Checksum  string `json:"checksum"`
	SizeBytes int64  `json:"size_bytes"`
}

// Config controls how the store is opened.
type Config struct {
	Path     string
	InMemory bool
}

// Store manages versioned model snapshots.
type Store struct {
	db *badger.DB

	// mu serialises version assignment so two concurrent Saves of the same
	// name cannot allocate the same version.
	mu sync.Mutex
}

// snapshot is the gob payload of a model version.
type snapshot struct {
	UserFactors map[string][]float64
	ItemFactors map[string][]float64
	GlobalMean  float64
	Rank        int
	TrainedAt   time.Time
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("model store path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	logging.Info().Str("path", cfg.Path).Bool("in_memory", cfg.InMemory).Msg("Model store opened")
	return &Store{db: db}, nil
}

// OpenInMemory opens a store that lives only in memory.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func versionKey(kind, name string, version int) []byte {
	return []byte(fmt.Sprintf("%s:%s:v%08d", kind, name, version))
}

func metaPrefix(name string) []byte {
	if name == "" {
		return []byte("meta:")
	}
	return []byte("meta:" + name + ":v")
}

// parseVersion extracts the version from a meta key of the given name.
func parseVersion(key []byte) (string, int, bool) {
	k := strings.TrimPrefix(string(key), "meta:")
	i := strings.LastIndex(k, ":v")
	if i < 0 {
		return "", 0, false
	}
	v, err := strconv.Atoi(k[i+2:])
	if err != nil {
		return "", 0, false
	}
	return k[:i], v, true
}

// Save encodes m as the next version of name. meta supplies the training
// facts; Name, Version, SavedAt, Checksum and SizeBytes are filled in.
func (s *Store) Save(ctx context.Context, name string, m *recommend.FactorModel, meta ModelMetadata) (ModelMetadata, error) {
	meta, err := s.save(ctx, name, m, meta)
	metrics.RecordSnapshot("save", err)
	return meta, err
}

func (s *Store) save(ctx context.Context, name string, m *recommend.FactorModel, meta ModelMetadata) (ModelMetadata, error) {
	if err := ctx.Err(); err != nil {
		return meta, err
	}
	if name == "" || strings.Contains(name, ":") {
		return meta, fmt.Errorf("invalid model name %q", name)
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(snapshot{
		UserFactors: m.UserFactors,
		ItemFactors: m.ItemFactors,
		GlobalMean:  m.GlobalMean,
		Rank:        m.Rank,
		TrainedAt:   m.TrainedAt,
	}); err != nil {
		return meta, fmt.Errorf("encode model: %w", err)
	}
	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return meta, fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return meta, fmt.Errorf("finalize compression: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	latest, _, err := s.LatestVersion(name)
	if err != nil {
		return meta, err
	}

	meta.Name = name
	meta.Version = latest + 1
	meta.SavedAt = time.Now().UTC()
	meta.TrainedAt = m.TrainedAt
	meta.Rank = m.Rank
	meta.GlobalMean = m.GlobalMean
	meta.Checksum = hex.EncodeToString(sum[:])
	meta.SizeBytes = int64(compressed.Len())

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return meta, fmt.Errorf("encode metadata: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(versionKey("data", name, meta.Version), compressed.Bytes()); err != nil {
			return err
		}
		return txn.Set(versionKey("meta", name, meta.Version), metaJSON)
	})
	if err != nil {
		return meta, fmt.Errorf("write model: %w", err)
	}

	logging.Debug().
		Str("model", name).
		Int("version", meta.Version).
		Int64("size_bytes", meta.SizeBytes).
		Msg("Model saved")
	return meta, nil
}

// Load decodes a model version. Version 0 loads the latest.
func (s *Store) Load(ctx context.Context, name string, version int) (*recommend.FactorModel, ModelMetadata, error) {
	m, meta, err := s.load(ctx, name, version)
	metrics.RecordSnapshot("load", err)
	return m, meta, err
}

func (s *Store) load(ctx context.Context, name string, version int) (*recommend.FactorModel, ModelMetadata, error) {
	var meta ModelMetadata
	if err := ctx.Err(); err != nil {
		return nil, meta, err
	}
	if version == 0 {
		latest, ok, err := s.LatestVersion(name)
		if err != nil {
			return nil, meta, err
		}
		if !ok {
			return nil, meta, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		version = latest
	}

	var compressed []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(versionKey("meta", name, version))
		if err != nil {
			return err
		}
		if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &meta) }); err != nil {
			return fmt.Errorf("decode metadata: %w", err)
		}
		item, err = txn.Get(versionKey("data", name, version))
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, meta, fmt.Errorf("%w: %s v%d", ErrNotFound, name, version)
	}
	if err != nil {
		return nil, meta, fmt.Errorf("read model: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, meta, fmt.Errorf("decompress model: %w", err)
	}
	defer func() { _ = gzr.Close() }()
	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, meta, fmt.Errorf("read decompressed data: %w", err)
	}

	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != meta.Checksum {
		return nil, meta, fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, meta.Checksum, got)
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return nil, meta, fmt.Errorf("decode model: %w", err)
	}

	m := recommend.NewFactorModel(snap.UserFactors, snap.ItemFactors, snap.GlobalMean, snap.Rank)
	m.TrainedAt = snap.TrainedAt
	m.Version = meta.Version
	return m, meta, nil
}

// LatestVersion returns the highest stored version of name.
func (s *Store) LatestVersion(name string) (int, bool, error) {
	latest := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := metaPrefix(name)
		// Reverse iteration starts at the largest key <= seek key.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if _, v, ok := parseVersion(it.Item().Key()); ok {
				latest = v
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("scan versions: %w", err)
	}
	return latest, latest > 0, nil
}

// List returns metadata for every stored version of name, or of all models
// when name is empty, ordered by name then version.
func (s *Store) List(ctx context.Context, name string) ([]ModelMetadata, error) {
	var out []ModelMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := metaPrefix(name)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var meta ModelMetadata
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &meta) }); err != nil {
				return fmt.Errorf("decode metadata %s: %w", it.Item().Key(), err)
			}
			out = append(out, meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Zero-padded versions already sort, names sort lexically.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// Delete removes one version.
func (s *Store) Delete(ctx context.Context, name string, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(versionKey("meta", name, version)); err != nil {
			return err
		}
		if err := txn.Delete(versionKey("meta", name, version)); err != nil {
			return err
		}
		return txn.Delete(versionKey("data", name, version))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s v%d", ErrNotFound, name, version)
	}
	return err
}

// Prune keeps the newest keep versions of name and deletes the rest.
// keep < 1 is treated as 1. It returns the number of deleted versions.
func (s *Store) Prune(ctx context.Context, name string, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.List(ctx, name)
	if err != nil {
		metrics.RecordSnapshot("prune", err)
		return 0, err
	}
	if len(versions) <= keep {
		return 0, nil
	}

	removed := 0
	for _, meta := range versions[:len(versions)-keep] {
		if err := s.Delete(ctx, name, meta.Version); err != nil {
			metrics.RecordSnapshot("prune", err)
			return removed, err
		}
		removed++
	}
	metrics.RecordSnapshot("prune", nil)
	logging.Debug().Str("model", name).Int("removed", removed).Int("kept", keep).Msg("Model versions pruned")
	return removed, nil
}
