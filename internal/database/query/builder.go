// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

// Package query provides SQL query building utilities for the database package.
package query

import (
	"fmt"
	"strings"
)

// WhereBuilder constructs SQL WHERE clauses with parameterized arguments.
//
// Example usage:
//
//	wb := query.NewWhereBuilder()
//	wb.AddYearRange("b.year", 1990, 2000)
//	wb.AddIn("b.isbn", isbns)
//	whereClause, args := wb.Build()
//	// b.year >= ? AND b.year <= ? AND b.isbn IN (?, ?)
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder creates a new WhereBuilder instance.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{
		clauses: []string{},
		args:    []interface{}{},
	}
}

// AddClause adds a raw WHERE clause with its arguments.
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddIn adds "column IN (?, ...)". An empty value list is skipped.
func (wb *WhereBuilder) AddIn(column string, values []string) *WhereBuilder {
	if len(values) == 0 {
		return wb
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		wb.args = append(wb.args, v)
	}
	wb.clauses = append(wb.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
	return wb
}

// AddYearRange bounds an integer year column. Zero bounds are skipped.
func (wb *WhereBuilder) AddYearRange(column string, from, to int) *WhereBuilder {
	if from > 0 {
		wb.AddClause(column+" >= ?", from)
	}
	if to > 0 {
		wb.AddClause(column+" <= ?", to)
	}
	return wb
}

// AddContains adds a case-insensitive substring match. Empty text is skipped.
func (wb *WhereBuilder) AddContains(column, text string) *WhereBuilder {
	text = strings.TrimSpace(text)
	if text == "" {
		return wb
	}
	return wb.AddClause(column+" ILIKE ?", "%"+text+"%")
}

// Build joins the clauses with AND. It returns ("1=1", []) when empty.
//
//	whereClause, args := wb.Build()
//	query := fmt.Sprintf("SELECT * FROM books WHERE %s", whereClause)
//	db.Query(query, args...)
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", []interface{}{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// BuildWithPrefix returns the WHERE clause with "WHERE " prefix, or an
// empty string when no clause was added.
func (wb *WhereBuilder) BuildWithPrefix() (string, []interface{}) {
	if wb.IsEmpty() {
		return "", []interface{}{}
	}
	whereClause, args := wb.Build()
	return "WHERE " + whereClause, args
}

// IsEmpty returns true if no clauses have been added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}
