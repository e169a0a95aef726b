package service

import (
	"context"
	"strings"
	"sync"

	"voicetransit/internal/model"
)

// fakeTransit is an in-memory TransitClient. Locations are looked up by
// exact query; every call is recorded.
type fakeTransit struct {
	name string

	mu        sync.Mutex
	locations map[string][]model.StopLocation
	nearby    []model.StopLocation
	trips     []model.Trip
	err       error
	queries   []string
	journeys  []JourneyOptions
}

func newFakeTransit(name string) *fakeTransit {
	return &fakeTransit{name: name, locations: map[string][]model.StopLocation{}}
}

func (f *fakeTransit) Name() string { return f.name }

func (f *fakeTransit) SearchLocations(_ context.Context, query string) ([]model.StopLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.locations[strings.ToLower(query)], nil
}

func (f *fakeTransit) SearchNearby(_ context.Context, _, _ float64, _ int) ([]model.StopLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.nearby, nil
}

func (f *fakeTransit) SearchJourneys(_ context.Context, _, _ string, opts JourneyOptions) ([]model.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.journeys = append(f.journeys, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.trips, nil
}

func (f *fakeTransit) queryLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func stop(id, name string) model.StopLocation {
	return model.StopLocation{ID: id, Name: name, Lat: 50.1, Lon: 8.6}
}

// fakeStore records persisted stations and plans
type fakeStore struct {
	mu         sync.Mutex
	known      []model.StopLocation
	prefixes   []string
	remembered chan []model.StopLocation
	plans      chan model.PlanLog
	feedback   []model.FeedbackRequest
	err        error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		remembered: make(chan []model.StopLocation, 16),
		plans:      make(chan model.PlanLog, 16),
	}
}

func (s *fakeStore) RememberStations(_ context.Context, stations []model.StopLocation) error {
	s.remembered <- stations
	return nil
}

func (s *fakeStore) KnownStations(_ context.Context, prefix string, _ int) ([]model.StopLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefixes = append(s.prefixes, prefix)
	return s.known, s.err
}

func (s *fakeStore) LogPlan(_ context.Context, entry model.PlanLog) error {
	s.plans <- entry
	return nil
}

func (s *fakeStore) LogFeedback(_ context.Context, req model.FeedbackRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.feedback = append(s.feedback, req)
	return nil
}
