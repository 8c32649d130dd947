// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package config

import (
	"fmt"

	"github.com/tomtom215/bookrec/internal/validation"
)

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateModelStore(); err != nil {
		return err
	}
	return c.validateServer()
}

func (c *Config) validateDatabase() error {
	if c.Database.Enabled && c.Database.Path == "" {
		return fmt.Errorf("database.path is required when database.enabled=true")
	}
	return nil
}

func (c *Config) validateModelStore() error {
	m := c.ModelStore
	if m.Enabled && !m.InMemory && m.Path == "" {
		return fmt.Errorf("model_store.path is required unless model_store.in_memory=true")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server.rate_limit_window must be positive when server.rate_limit_reqs > 0")
	}
	return nil
}
