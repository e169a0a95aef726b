package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"voicetransit/internal/config"
	"voicetransit/internal/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Transit: config.TransitConfig{
			Backends:          []string{config.BackendTransportRest},
			TransportRestBase: "http://127.0.0.1:1",
			Timeout:           time.Second,
		},
		Retry:   config.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxLookups: 4},
		Breaker: config.BreakerConfig{MaxFailures: 3, ResetTimeout: time.Second},
		Cache:   config.CacheConfig{Size: 16, TTL: time.Minute},
		Ranking: config.RankingConfig{WeightText: 0.6, WeightPhonetic: 0.25, WeightOrder: 0.15},
		Planner: config.PlannerConfig{
			DefaultOrigin: "Frankfurt Hauptbahnhof",
			NearbyRadius:  1000,
			MaxTrips:      3,
			TimeZone:      "Europe/Berlin",
		},
	}
}

func TestNew(t *testing.T) {
	a, err := New(context.Background(), testConfig(), logger.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Planner == nil {
		t.Fatal("Planner is nil")
	}
	if a.Repo != nil {
		t.Error("Repo set without database configuration")
	}
	if got := a.Planner.Backends(); len(got) == 0 {
		t.Error("Backends() is empty")
	}
}

func TestNew_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Cache.RedisURL = "redis://" + mr.Addr()

	a, err := New(context.Background(), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(a.closers) != 1 {
		t.Errorf("closers = %d, want 1 for redis", len(a.closers))
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "bad timezone", mutate: func(c *config.Config) { c.Planner.TimeZone = "Mars/Olympus" }},
		{name: "unknown backend", mutate: func(c *config.Config) { c.Transit.Backends = []string{"teletext"} }},
		{name: "unreachable redis", mutate: func(c *config.Config) { c.Cache.RedisURL = "redis://127.0.0.1:1" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			if _, err := New(context.Background(), cfg, logger.Discard()); err == nil {
				t.Error("New() error = nil")
			}
		})
	}
}
