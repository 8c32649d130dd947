// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

// Package config loads bookrec configuration.
//
// Loading order (later layers override earlier ones):
//  1. Defaults: defaultConfig()
//  2. Config file: optional YAML (bookrec.yaml or the path in BOOKREC_CONFIG)
//  3. Environment variables: the BOOKREC_* names listed in envMappings
//
// Each pipeline stage owns its configuration type (recommend.HoldoutConfig,
// algorithms.ALSConfig, ...); Config only nests them under a koanf key so
// the same struct tags drive both the file layout and validation.
package config

import (
	"time"

	"github.com/tomtom215/bookrec/internal/ingest"
	"github.com/tomtom215/bookrec/internal/logging"
	"github.com/tomtom215/bookrec/internal/recommend"
	"github.com/tomtom215/bookrec/internal/recommend/algorithms"
)

// Config holds the complete application configuration.
type Config struct {
	Data       DataConfig                  `koanf:"data"`
	Holdout    recommend.HoldoutConfig     `koanf:"holdout"`
	ALS        algorithms.ALSConfig        `koanf:"als"`
	Similarity algorithms.SimilarityConfig `koanf:"similarity"`
	KNN        algorithms.KNNConfig        `koanf:"knn"`
	Recommend  RecommendConfig             `koanf:"recommend"`
	Search     SearchConfig                `koanf:"search"`
	Report     ReportConfig                `koanf:"report"`
	Database   DatabaseConfig              `koanf:"database"`
	ModelStore ModelStoreConfig            `koanf:"model_store"`
	Server     ServerConfig                `koanf:"server"`
	Logging    LoggingConfig               `koanf:"logging"`
}

// DataConfig locates and describes the input CSV files.
type DataConfig struct {
	Ratings   string `koanf:"ratings" validate:"required"`
	Books     string `koanf:"books"`
	Delimiter string `koanf:"delimiter" validate:"len=1"`
	Encoding  string `koanf:"encoding" validate:"oneof=latin1 utf8"`
}

// Files returns the ingest file set.
func (d DataConfig) Files() ingest.Files {
	return ingest.Files{Ratings: d.Ratings, Books: d.Books}
}

// Options returns the ingest parse options.
func (d DataConfig) Options() ingest.Options {
	return ingest.Options{Delimiter: d.Delimiter, Encoding: d.Encoding}
}

// RecommendConfig controls the top-N stage of a pipeline run.
type RecommendConfig struct {
	// N is the list length per user.
	N int `koanf:"n" validate:"gte=1,lte=1000"`

	// Users limits the run to these users. Empty means SampleUsers.
	Users []string `koanf:"users"`

	// SampleUsers is how many users (ascending id) get lists when Users is
	// empty. 0 scores every user.
	SampleUsers int `koanf:"sample_users" validate:"gte=0"`

	// Query, when set, restricts candidates to search hits.
	Query string `koanf:"query"`

	// QueryCandidates caps the search hits used as candidates. 0 keeps all.
	QueryCandidates int `koanf:"query_candidates" validate:"gte=0"`

	// ExcludeRated drops items the user already rated in training.
	ExcludeRated bool `koanf:"exclude_rated"`
}

// SearchConfig controls the catalog token index.
type SearchConfig struct {
	Fields []string `koanf:"fields" validate:"min=1,dive,oneof=title author publisher year"`
}

// ReportConfig controls run output.
type ReportConfig struct {
	// Path of the JSON report. Empty disables the file.
	Path string `koanf:"path"`

	// Console prints the styled summary to stdout.
	Console bool `koanf:"console"`

	// MostRated is the length of the popularity table.
	MostRated int `koanf:"most_rated" validate:"gte=0"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"gte=0"`
}

// ModelStoreConfig holds the badger model snapshot store settings.
type ModelStoreConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// Retain is how many versions Prune keeps. 0 keeps all.
	Retain int `koanf:"retain" validate:"gte=0"`
}

// ServerConfig holds serve-mode settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	RetrainInterval time.Duration `koanf:"retrain_interval" validate:"gte=0"`
	// RetrainTimeout bounds one serve-mode pipeline run. 0 means no limit.
	RetrainTimeout  time.Duration `koanf:"retrain_timeout" validate:"gte=0"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gte=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled off"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ToLogging converts to the logging package configuration.
func (l LoggingConfig) ToLogging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = l.Level
	cfg.Format = l.Format
	cfg.Caller = l.Caller
	return cfg
}

// defaultConfig returns the configuration applied before file and env.
func defaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Ratings:   "data/BX-Book-Ratings.csv",
			Books:     "data/BX-Books.csv",
			Delimiter: ";",
			Encoding:  ingest.EncodingLatin1,
		},
		Holdout:    recommend.DefaultHoldoutConfig(),
		ALS:        algorithms.DefaultALSConfig(),
		Similarity: algorithms.DefaultSimilarityConfig(),
		KNN:        algorithms.DefaultKNNConfig(),
		Recommend: RecommendConfig{
			N:            10,
			SampleUsers:  5,
			ExcludeRated: true,
		},
		Search: SearchConfig{
			Fields: []string{"title", "author"},
		},
		Report: ReportConfig{
			Path:      "",
			Console:   true,
			MostRated: 10,
		},
		Database: DatabaseConfig{
			Enabled:   false,
			Path:      "data/bookrec.duckdb",
			MaxMemory: "1GB",
		},
		ModelStore: ModelStoreConfig{
			Enabled: false,
			Path:    "data/models",
			Retain:  5,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			RetrainInterval: 0,
			RetrainTimeout:  30 * time.Minute,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns a copy of the built-in defaults.
func Default() *Config {
	return defaultConfig()
}
