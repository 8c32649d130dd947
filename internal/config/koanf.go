// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"bookrec.yaml",
	"bookrec.yml",
	"/etc/bookrec/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "BOOKREC_CONFIG"

const envPrefix = "BOOKREC_"

// envMappings maps lowercased environment names (without the BOOKREC_
// prefix) to koanf paths. Unlisted variables are ignored.
var envMappings = map[string]string{
	"ratings_path":    "data.ratings",
	"books_path":      "data.books",
	"csv_delimiter":   "data.delimiter",
	"csv_encoding":    "data.encoding",
	"holdout_frac":    "holdout.fraction",
	"holdout_seed":    "holdout.seed",
	"holdout_min":     "holdout.min_user_ratings",
	"als_rank":        "als.rank",
	"als_max_iter":    "als.max_iterations",
	"als_window":      "als.stagnation_window",
	"als_threshold":   "als.improvement_threshold",
	"als_lambda":      "als.regularization",
	"als_seed":        "als.seed",
	"als_workers":     "als.num_workers",
	"als_timeout":     "als.timeout",
	"sim_axis":        "similarity.axis",
	"sim_measure":     "similarity.measure",
	"sim_threshold":   "similarity.threshold",
	"sim_min_common":  "similarity.min_common",
	"sim_shrinkage":   "similarity.shrinkage",
	"knn_k":           "knn.k",
	"knn_fallback":    "knn.fallback",
	"top_n":           "recommend.n",
	"users":           "recommend.users",
	"sample_users":    "recommend.sample_users",
	"query":           "recommend.query",
	"search_fields":   "search.fields",
	"report_path":     "report.path",
	"report_console":  "report.console",
	"duckdb_enabled":  "database.enabled",
	"duckdb_path":     "database.path",
	"duckdb_memory":   "database.max_memory",
	"duckdb_threads":  "database.threads",
	"models_enabled":  "model_store.enabled",
	"models_path":     "model_store.path",
	"models_retain":   "model_store.retain",
	"http_host":       "server.host",
	"http_port":       "server.port",
	"http_timeout":    "server.timeout",
	"retrain_every":   "server.retrain_interval",
	"retrain_timeout": "server.retrain_timeout",
	"rate_limit":      "server.rate_limit_reqs",
	"cors_origins":    "server.cors_origins",
	"log_level":       "logging.level",
	"log_format":      "logging.format",
	"log_caller":      "logging.caller",
}

// sliceConfigPaths are split on commas when they arrive as strings.
var sliceConfigPaths = []string{
	"recommend.users",
	"search.fields",
	"server.cors_origins",
}

// Load builds the configuration from defaults, the YAML file at path (or
// the first of DefaultConfigPaths that exists when path is empty) and
// BOOKREC_* environment variables, then validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return envMappings[key]
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
