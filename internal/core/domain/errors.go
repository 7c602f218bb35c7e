package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed coordinates or empty query text.
	// Never retried; surfaced to the caller immediately.
	ErrInvalidInput = errors.New("invalid input")

	// ErrResolution means no geocode provider could resolve the input.
	ErrResolution = errors.New("location not found")
)

// ProviderError is a transient external-provider failure (network error,
// timeout, non-success status, provider-side quota). It is always recovered
// locally by falling back to the next tier and never reaches API callers.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// CacheBuildError marks one route's failed rebuild during a full sweep.
// The sweep logs it and continues with the next route.
type CacheBuildError struct {
	RouteID   string
	Direction Direction
	Err       error
}

func (e *CacheBuildError) Error() string {
	return fmt.Sprintf("rebuild route %s %s: %v", e.RouteID, e.Direction, e.Err)
}

func (e *CacheBuildError) Unwrap() error { return e.Err }
