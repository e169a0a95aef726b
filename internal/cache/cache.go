// Package cache keeps resolved station lookups so repeated utterances do
// not hit the transit backends again.
package cache

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"voicetransit/internal/model"
	"voicetransit/internal/utils"
)

// Cache stores location lookup results by key. Implementations never fail
// the caller: a broken cache behaves like an empty one.
type Cache interface {
	GetLocations(ctx context.Context, key string) ([]model.StopLocation, bool)
	SetLocations(ctx context.Context, key string, locations []model.StopLocation)
}

// LocationKey builds the key for a name lookup on a backend chain
func LocationKey(backend, query string) string {
	return fmt.Sprintf("loc:%s:%s", backend, utils.NormalizeText(query))
}

// NearbyKey builds the key for a nearby lookup. Coordinates are rounded to
// three decimals, roughly 100 m.
func NearbyKey(backend string, lat, lon float64, radius int) string {
	return fmt.Sprintf("near:%s:%.3f:%.3f:%d", backend, round3(lat), round3(lon), radius)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Memory is an in-process LRU cache with per-entry expiry
type Memory struct {
	lru *expirable.LRU[string, []model.StopLocation]
}

// NewMemory creates a cache holding at most size entries for ttl each
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = 512
	}
	return &Memory{lru: expirable.NewLRU[string, []model.StopLocation](size, nil, ttl)}
}

// GetLocations implements Cache
func (m *Memory) GetLocations(_ context.Context, key string) ([]model.StopLocation, bool) {
	return m.lru.Get(key)
}

// SetLocations implements Cache
func (m *Memory) SetLocations(_ context.Context, key string, locations []model.StopLocation) {
	m.lru.Add(key, locations)
}

// Len returns the number of live entries
func (m *Memory) Len() int {
	return m.lru.Len()
}
