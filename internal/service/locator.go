package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"voicetransit/internal/apperr"
	"voicetransit/internal/cache"
	"voicetransit/internal/logger"
	"voicetransit/internal/model"
	"voicetransit/internal/utils"
)

// StationStore persists stations seen in successful lookups. It serves as
// an offline fallback when no backend answers.
type StationStore interface {
	RememberStations(ctx context.Context, stations []model.StopLocation) error
	KnownStations(ctx context.Context, normalizedPrefix string, limit int) ([]model.StopLocation, error)
}

const (
	knownStationPrefixLen = 3
	knownStationLimit     = 50
	storeTimeout          = 5 * time.Second
)

// Locator turns spoken place names into ranked stations
type Locator struct {
	client TransitClient
	ranker *Ranker
	cache  cache.Cache
	store  StationStore
	policy RetryPolicy
	log    *logger.Logger
}

// NewLocator creates a locator. cache and store may be nil.
func NewLocator(client TransitClient, ranker *Ranker, c cache.Cache, store StationStore, policy RetryPolicy, log *logger.Logger) *Locator {
	if log == nil {
		log = logger.Discard()
	}
	return &Locator{
		client: client,
		ranker: ranker,
		cache:  c,
		store:  store,
		policy: policy,
		log:    log.WithComponent("locator"),
	}
}

// Resolve looks up name and returns the candidates best first. Variants of
// the name are tried one after another until a backend returns stations:
// the name as spoken, umlaut restorations, phonetic corrections and finally
// single words. An empty result without error means nothing matched.
func (l *Locator) Resolve(ctx context.Context, name string) ([]model.RankedLocation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("Kein Ortsname angegeben.")
	}

	key := cache.LocationKey(l.client.Name(), name)
	if l.cache != nil {
		if locations, ok := l.cache.GetLocations(ctx, key); ok {
			return l.ranker.RankLocations(name, locations), nil
		}
	}

	var lastErr error
	lookups := 0
	for _, variant := range LocationVariants(name) {
		if l.policy.MaxLookups > 0 && lookups >= l.policy.MaxLookups {
			break
		}
		lookups++

		locations, err := l.client.SearchLocations(ctx, variant)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil || isOutage(err) {
				break
			}
			continue
		}
		if len(locations) == 0 {
			continue
		}

		if variant != name {
			l.log.Debug("resolved via variant", "name", name, "variant", variant, "lookups", lookups)
		}
		if l.cache != nil {
			l.cache.SetLocations(ctx, key, locations)
		}
		l.remember(locations)
		return l.ranker.RankLocations(name, locations), nil
	}

	if lastErr == nil {
		return nil, nil
	}
	if errors.Is(lastErr, context.Canceled) {
		return nil, lastErr
	}

	if known := l.knownStations(ctx, name); len(known) > 0 {
		l.log.Warn("backends unavailable, using known stations", "name", name, "error", lastErr)
		return l.ranker.RankLocations(name, known), nil
	}
	return nil, apperr.Unavailable(MsgUnavailable, lastErr)
}

// Nearby returns stations around a coordinate, closest first
func (l *Locator) Nearby(ctx context.Context, lat, lon float64, radius int) ([]model.StopLocation, error) {
	key := cache.NearbyKey(l.client.Name(), lat, lon, radius)
	if l.cache != nil {
		if locations, ok := l.cache.GetLocations(ctx, key); ok {
			return locations, nil
		}
	}

	locations, err := l.client.SearchNearby(ctx, lat, lon, radius)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, apperr.Unavailable(MsgUnavailable, err)
	}

	sort.SliceStable(locations, func(i, j int) bool {
		di, dj := locations[i].Distance, locations[j].Distance
		if di == nil || dj == nil {
			return di != nil && dj == nil
		}
		return *di < *dj
	})

	if len(locations) > 0 {
		if l.cache != nil {
			l.cache.SetLocations(ctx, key, locations)
		}
		l.remember(locations)
	}
	return locations, nil
}

// remember stores stations in the background; lookups never wait for it
func (l *Locator) remember(locations []model.StopLocation) {
	if l.store == nil {
		return
	}
	stations := append([]model.StopLocation(nil), locations...)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := l.store.RememberStations(ctx, stations); err != nil {
			l.log.Warn("failed to remember stations", "error", err)
		}
	}()
}

// knownStations matches name against stored stations sharing its first letters
func (l *Locator) knownStations(ctx context.Context, name string) []model.StopLocation {
	if l.store == nil {
		return nil
	}
	normalized := utils.NormalizeText(name)
	if utf8.RuneCountInString(normalized) < knownStationPrefixLen {
		return nil
	}
	prefix := string([]rune(normalized)[:knownStationPrefixLen])

	stored, err := l.store.KnownStations(ctx, prefix, knownStationLimit)
	if err != nil {
		l.log.Warn("known station lookup failed", "error", err)
		return nil
	}

	matches := utils.FindBestMatches(name, stored, func(s model.StopLocation) string { return s.Name },
		utils.DefaultMatchThreshold, utils.DefaultMatchLimit)
	out := make([]model.StopLocation, len(matches))
	for i, m := range matches {
		out[i] = m.Item
	}
	return out
}

// LocationVariants lists the search strings tried for a spoken name, in
// order and without duplicates
func LocationVariants(name string) []string {
	name = strings.TrimSpace(name)
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" || seen[strings.ToLower(s)] {
			return
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}

	add(name)
	for _, v := range utils.UmlautVariants(strings.ToLower(name)) {
		add(v)
	}
	for _, v := range utils.ApplyPhoneticCorrections(name) {
		add(v)
	}
	for _, word := range strings.Fields(name) {
		if utf8.RuneCountInString(word) > 2 {
			add(word)
		}
	}
	return out
}
