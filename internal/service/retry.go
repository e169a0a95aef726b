package service

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"voicetransit/internal/config"
	"voicetransit/internal/logger"
	"voicetransit/internal/model"
)

// RetryPolicy bounds how often transient upstream failures are repeated
type RetryPolicy struct {
	MaxAttempts int           // total attempts per call, including the first
	BaseDelay   time.Duration // first backoff, doubled per retry
	MaxDelay    time.Duration // cap for a single backoff
	MaxLookups  int           // upstream lookups allowed per location name
}

// NewRetryPolicy creates a policy from configuration
func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		MaxLookups:  cfg.MaxLookups,
	}
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// Do runs fn until it succeeds, fails permanently, the attempts are used up
// or ctx ends. Only errors accepted by IsRetryable are repeated.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.do(ctx, fn, nil)
}

func (p RetryPolicy) do(ctx context.Context, fn func(ctx context.Context) error, onRetryable func(error)) error {
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && IsRetryable(err) {
			if onRetryable != nil {
				onRetryable(err)
			}
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *retryingClient) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempt := 0
	return c.policy.do(ctx, fn, func(err error) {
		attempt++
		c.log.Debug("transient upstream failure",
			"backend", c.next.Name(),
			"operation", operation,
			"attempt", attempt,
			"error", err)
	})
}

// retryingClient repeats transient failures of one backend before the
// failover chain moves on to the next
type retryingClient struct {
	next   TransitClient
	policy RetryPolicy
	log    *logger.Logger
}

// WithRetry wraps client so every call follows policy
func WithRetry(client TransitClient, policy RetryPolicy, log *logger.Logger) TransitClient {
	if log == nil {
		log = logger.Discard()
	}
	return &retryingClient{next: client, policy: policy, log: log}
}

func (c *retryingClient) Name() string {
	return c.next.Name()
}

func (c *retryingClient) SearchLocations(ctx context.Context, query string) ([]model.StopLocation, error) {
	var result []model.StopLocation
	err := c.call(ctx, "locations", func(ctx context.Context) error {
		var err error
		result, err = c.next.SearchLocations(ctx, query)
		return err
	})
	return result, err
}

func (c *retryingClient) SearchNearby(ctx context.Context, lat, lon float64, radius int) ([]model.StopLocation, error) {
	var result []model.StopLocation
	err := c.call(ctx, "nearby", func(ctx context.Context) error {
		var err error
		result, err = c.next.SearchNearby(ctx, lat, lon, radius)
		return err
	})
	return result, err
}

func (c *retryingClient) SearchJourneys(ctx context.Context, originID, destID string, opts JourneyOptions) ([]model.Trip, error) {
	var result []model.Trip
	err := c.call(ctx, "journeys", func(ctx context.Context) error {
		var err error
		result, err = c.next.SearchJourneys(ctx, originID, destID, opts)
		return err
	})
	return result, err
}
