// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

// Package pagination provides shared types and helpers for API list endpoints.
//
// # Overview
//
// It standardizes how limit/offset windows and sort directives are requested
// via query parameters. Search responses report the un-windowed total next to
// the page items, so there is no separate metadata block.
package pagination

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the number of items per page if not specified.
	DefaultLimit = 25
	// MinLimit and MaxLimit bound the items per page to prevent system abuse.
	MinLimit = 20
	MaxLimit = 1000

	// DefaultSortBy orders results by recency of their last edit.
	DefaultSortBy = "last_edited_at"

	// SortAscending and SortDescending are the normalized sort directions.
	SortAscending  = "ASC"
	SortDescending = "DESC"
)

// ErrInvalidSortOrder is returned when sort_order is neither "asc" nor "desc".
var ErrInvalidSortOrder = errors.New(`sort_order must be "asc" or "desc"`)

// Params holds the parsed window and sort directives from a request's query string.
type Params struct {
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// FromRequest parses "limit", "offset", "sort_by" and "sort_order" query
// parameters from an HTTP request.
//
// # Clamping
//
// Invalid or out-of-range limits are clamped into [MinLimit, MaxLimit];
// negative offsets become 0. A bad sort_order is the one parameter that is
// NOT silently repaired: it changes which rows the caller receives, so it
// fails with [ErrInvalidSortOrder] before any query runs.
func FromRequest(r *http.Request) (Params, error) {
	params := Params{
		Limit:     parseIntParam(r, "limit", DefaultLimit),
		Offset:    parseIntParam(r, "offset", 0),
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: r.URL.Query().Get("sort_order"),
	}

	if params.Limit < MinLimit {
		params.Limit = MinLimit
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	if params.SortBy == "" {
		params.SortBy = DefaultSortBy
	}

	switch strings.ToLower(params.SortOrder) {
	case "", "desc":
		params.SortOrder = SortDescending
	case "asc":
		params.SortOrder = SortAscending
	default:
		return Params{}, ErrInvalidSortOrder
	}

	return params, nil
}

// parseIntParam parses a single integer query parameter with a fallback default.
func parseIntParam(r *http.Request, key string, defaultVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}

	return n
}
