package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"voicetransit/internal/model"
)

// TransitClient is the interface for journey-planner backends
type TransitClient interface {
	// Name identifies the backend in logs, cache keys and plan logs
	Name() string

	// SearchLocations returns stations and stops matching a free-text name
	SearchLocations(ctx context.Context, query string) ([]model.StopLocation, error)

	// SearchNearby returns stations and stops around a coordinate, closest first
	SearchNearby(ctx context.Context, lat, lon float64, radius int) ([]model.StopLocation, error)

	// SearchJourneys returns trip proposals between two station IDs
	SearchJourneys(ctx context.Context, originID, destID string, opts JourneyOptions) ([]model.Trip, error)
}

// JourneyOptions holds optional trip search parameters
type JourneyOptions struct {
	Profile   string     // model.Profile*, empty means standard
	Departure *time.Time // nil means now
	Results   int        // maximum trips, 0 means DefaultTripResults
}

// DefaultTripResults is the number of trips requested when none is given
const DefaultTripResults = 3

func (o JourneyOptions) results() int {
	if o.Results <= 0 {
		return DefaultTripResults
	}
	return o.Results
}

// UpstreamError represents a failed call to a transit backend.
// Status is zero when no HTTP response was received.
type UpstreamError struct {
	Backend   string
	Operation string
	Status    int
	Body      string
	Err       error
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s %s: status %d: %s", e.Backend, e.Operation, e.Status, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Backend, e.Operation, e.Err)
	default:
		return fmt.Sprintf("%s %s: failed", e.Backend, e.Operation)
	}
}

// Unwrap returns the transport error, if any
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the call may succeed: transport
// failures including client timeouts, 429 and 5xx responses
func (e *UpstreamError) Retryable() bool {
	if e.Status == 0 {
		return e.Err != nil && !errors.Is(e.Err, context.Canceled)
	}
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsRetryable reports whether err is a transient upstream failure
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable()
	}
	return false
}
