package search

import "errors"

var (
	// ErrInvalidQuery rejects a request before any upstream call is made.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUpstreamUnavailable wraps embedding provider and store failures.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrGraphDisabled       = errors.New("citation graph projection is not configured")
)
