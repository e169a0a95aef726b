package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"voicetransit/internal/config"
	"voicetransit/internal/logger"
	"voicetransit/internal/model"
	"voicetransit/internal/resilience"
)

// NewTransitClient builds the configured backend chain. Each backend retries
// transient failures on its own and sits behind a circuit breaker; calls go
// to the first backend whose breaker is closed and fall through to the next
// on failure.
func NewTransitClient(cfg *config.Config, log *logger.Logger) (TransitClient, error) {
	if log == nil {
		log = logger.Discard()
	}
	policy := NewRetryPolicy(cfg.Retry)

	var backends []TransitClient
	for _, name := range cfg.Transit.Backends {
		var client TransitClient
		switch name {
		case config.BackendTransportRest:
			client = NewTransportRestClient(cfg.Transit, log)
		case config.BackendDBAPI:
			client = NewDBAPIClient(cfg.Transit, log)
		case config.BackendHafas:
			client = NewHafasClient(cfg.Transit, log)
		default:
			return nil, fmt.Errorf("unknown transit backend %q", name)
		}
		backends = append(backends, WithRetry(client, policy, log))
	}
	if len(backends) == 0 {
		return nil, errors.New("no transit backend configured")
	}

	return NewFailoverClient(backends, resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.Breaker.MaxFailures,
		ResetTimeout: cfg.Breaker.ResetTimeout,
		Logger:       log.Logger,
	}), nil
}

// FailoverClient is a TransitClient over an ordered list of backends
type FailoverClient struct {
	group *resilience.FallbackGroup[TransitClient]
	name  string
}

// NewFailoverClient composes backends in priority order. breaker configures
// the circuit breaker kept per backend.
func NewFailoverClient(backends []TransitClient, breaker resilience.CircuitBreakerConfig) *FailoverClient {
	if breaker.IsFailure == nil {
		breaker.IsFailure = isOutage
	}
	group := resilience.NewFallbackGroup(backends[0], backends[0].Name(), resilience.FallbackConfig{
		CircuitBreaker: breaker,
	})
	for _, b := range backends[1:] {
		group.AddFallback(b.Name(), b)
	}
	return &FailoverClient{
		group: group,
		name:  strings.Join(group.Names(), "+"),
	}
}

// isOutage reports whether err says something about backend health.
// Client errors such as an unknown station ID do not.
func isOutage(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.Status >= 400 && ue.Status < 500 && ue.Status != http.StatusTooManyRequests {
		return false
	}
	return true
}

// Name returns the chain, e.g. "transportrest+hafas"
func (c *FailoverClient) Name() string {
	return c.name
}

// Health reports the breaker state per backend
func (c *FailoverClient) Health() map[string]string {
	out := make(map[string]string)
	for name, state := range c.group.States() {
		out[name] = state.String()
	}
	return out
}

// SearchLocations implements TransitClient
func (c *FailoverClient) SearchLocations(ctx context.Context, query string) ([]model.StopLocation, error) {
	return resilience.ExecuteWithResult(c.group, func(b TransitClient) ([]model.StopLocation, error) {
		return b.SearchLocations(ctx, query)
	})
}

// SearchNearby implements TransitClient
func (c *FailoverClient) SearchNearby(ctx context.Context, lat, lon float64, radius int) ([]model.StopLocation, error) {
	return resilience.ExecuteWithResult(c.group, func(b TransitClient) ([]model.StopLocation, error) {
		return b.SearchNearby(ctx, lat, lon, radius)
	})
}

// SearchJourneys implements TransitClient. Station IDs are backend specific,
// so a fallback backend may reject IDs resolved by another one.
func (c *FailoverClient) SearchJourneys(ctx context.Context, originID, destID string, opts JourneyOptions) ([]model.Trip, error) {
	return resilience.ExecuteWithResult(c.group, func(b TransitClient) ([]model.Trip, error) {
		return b.SearchJourneys(ctx, originID, destID, opts)
	})
}
