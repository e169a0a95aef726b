package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"voicetransit/internal/apperr"
	"voicetransit/internal/config"
	"voicetransit/internal/logger"
	"voicetransit/internal/model"
)

// PlanStore persists plan outcomes and the feedback given on them
type PlanStore interface {
	LogPlan(ctx context.Context, entry model.PlanLog) error
	LogFeedback(ctx context.Context, req model.FeedbackRequest) error
}

// PlanEventCallback is called for every progress event of a streamed plan
type PlanEventCallback func(event string, data any) error

// Planner handles trip planning from an utterance to announced trips
type Planner struct {
	intent  *IntentParser
	locator *Locator
	client  TransitClient
	store   PlanStore
	cfg     config.PlannerConfig
	log     *logger.Logger
}

// NewPlanner creates a new planner. store may be nil.
func NewPlanner(
	intentParser *IntentParser,
	locator *Locator,
	client TransitClient,
	store PlanStore,
	cfg config.PlannerConfig,
	log *logger.Logger,
) *Planner {
	if log == nil {
		log = logger.Discard()
	}
	return &Planner{
		intent:  intentParser,
		locator: locator,
		client:  client,
		store:   store,
		cfg:     cfg,
		log:     log.WithComponent("planner"),
	}
}

// Plan parses the utterance, resolves both ends and searches trips
func (p *Planner) Plan(ctx context.Context, req *model.PlanRequest) (*model.PlanResponse, error) {
	return p.plan(ctx, req, nil)
}

// PlanStream is Plan with progress events reported through callback.
// A callback error aborts planning.
func (p *Planner) PlanStream(ctx context.Context, req *model.PlanRequest, callback PlanEventCallback) (*model.PlanResponse, error) {
	return p.plan(ctx, req, callback)
}

// resolvedStop is one end of a planned trip
type resolvedStop struct {
	stop  model.StopLocation
	label string // how the stop is referred to in messages
}

func (p *Planner) plan(ctx context.Context, req *model.PlanRequest, callback PlanEventCallback) (*model.PlanResponse, error) {
	startTime := time.Now()
	entry := model.PlanLog{
		PlanID:    uuid.NewString(),
		Utterance: req.Text,
		Backend:   p.client.Name(),
	}

	emit := func(stage, message string, data any) error {
		if callback == nil {
			return nil
		}
		return callback(stage, model.PlanProgress{Stage: stage, Message: message, Data: data})
	}
	fail := func(err error) (*model.PlanResponse, error) {
		entry.ErrorMessage = err.Error()
		entry.ResponseTimeMs = time.Since(startTime).Milliseconds()
		p.record(entry)
		return nil, err
	}

	if err := emit(model.StageParsing, "Ich verstehe deine Anfrage...", nil); err != nil {
		return nil, err
	}

	intent := p.intent.Parse(req.Text)
	entry.IntentFrom, entry.IntentTo = intent.From, intent.To
	if !intent.HasDestination() {
		return fail(apperr.Validation(MsgNoDestination))
	}
	if err := emit(model.StageIntent, "Anfrage verstanden.", intent); err != nil {
		return nil, err
	}

	resolving := "Suche Haltestellen..."
	if intent.FromCurrentLocation() {
		resolving = MsgLocating
	}
	if err := emit(model.StageResolving, resolving, nil); err != nil {
		return nil, err
	}

	origin, dest, err := p.resolveEnds(ctx, intent, req)
	if err != nil {
		return fail(err)
	}
	entry.OriginID, entry.DestinationID = origin.stop.ID, dest.stop.ID

	originMsg := origin.stop.Name
	if intent.FromCurrentLocation() {
		originMsg = NearestStopAnnouncement(origin.stop)
	}
	if err := emit(model.StageOrigin, originMsg, origin.stop); err != nil {
		return nil, err
	}
	if err := emit(model.StageDestination, dest.stop.Name, dest.stop); err != nil {
		return nil, err
	}
	if err := emit(model.StageSearching, "Suche Verbindungen...", nil); err != nil {
		return nil, err
	}

	trips, err := p.client.SearchJourneys(ctx, origin.stop.ID, dest.stop.ID, JourneyOptions{
		Profile:   req.Profile,
		Departure: intent.Time,
		Results:   p.cfg.MaxTrips,
	})
	if err != nil {
		return fail(upstreamFailure(err))
	}
	if len(trips) == 0 {
		return fail(apperr.NotFound(MsgNoConnections))
	}
	if p.cfg.MaxTrips > 0 && len(trips) > p.cfg.MaxTrips {
		trips = trips[:p.cfg.MaxTrips]
	}

	took := time.Since(startTime).Milliseconds()
	entry.TripCount = len(trips)
	entry.Transports = TransportNames(trips[0].Legs)
	entry.ResponseTimeMs = took
	p.record(entry)

	return &model.PlanResponse{
		PlanID:       entry.PlanID,
		Intent:       *intent,
		Origin:       origin.stop,
		Destination:  dest.stop,
		OriginLabel:  origin.label,
		Trips:        trips,
		Announcement: Announce(origin.stop.Name, dest.stop.Name, trips[0]),
		Took:         took,
	}, nil
}

// resolveEnds looks up origin and destination concurrently. When both
// fail the origin's error is reported.
func (p *Planner) resolveEnds(ctx context.Context, intent *model.Intent, req *model.PlanRequest) (resolvedStop, resolvedStop, error) {
	var origin, dest resolvedStop
	var originErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		origin, originErr = p.resolveOrigin(gctx, intent, req)
		return originErr
	})
	g.Go(func() error {
		var err error
		dest, err = p.resolveDestination(gctx, intent.To)
		return err
	})

	err := g.Wait()
	if originErr != nil && !errors.Is(originErr, context.Canceled) {
		err = originErr
	}
	return origin, dest, err
}

func (p *Planner) resolveOrigin(ctx context.Context, intent *model.Intent, req *model.PlanRequest) (resolvedStop, error) {
	if intent.FromCurrentLocation() {
		if !req.HasPosition() {
			return resolvedStop{}, apperr.Validation(MsgNoPosition)
		}
		nearby, err := p.locator.Nearby(ctx, *req.Lat, *req.Lon, p.cfg.NearbyRadius)
		if err != nil {
			return resolvedStop{}, err
		}
		if len(nearby) == 0 {
			return resolvedStop{}, apperr.NotFound(MsgNoNearbyStop)
		}
		return resolvedStop{stop: nearby[0], label: MsgCurrentLocation}, nil
	}

	name := intent.From
	if name == "" {
		name = p.cfg.DefaultOrigin
	}
	ranked, err := p.locator.Resolve(ctx, name)
	if err != nil {
		return resolvedStop{}, err
	}
	if len(ranked) == 0 {
		return resolvedStop{}, apperr.NotFound(OriginNotFound(name))
	}
	return resolvedStop{stop: ranked[0].StopLocation, label: ranked[0].Name}, nil
}

func (p *Planner) resolveDestination(ctx context.Context, name string) (resolvedStop, error) {
	ranked, err := p.locator.Resolve(ctx, name)
	if err != nil {
		return resolvedStop{}, err
	}
	if len(ranked) == 0 {
		return resolvedStop{}, apperr.NotFound(DestinationNotFound(name))
	}
	return resolvedStop{stop: ranked[0].StopLocation, label: ranked[0].Name}, nil
}

// record logs a plan outcome (non-blocking)
func (p *Planner) record(entry model.PlanLog) {
	if p.store == nil {
		return
	}
	entry.CreatedAt = time.Now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := p.store.LogPlan(ctx, entry); err != nil {
			p.log.Warn("failed to log plan", "plan_id", entry.PlanID, "error", err)
		}
	}()
}

// ParseIntent extracts the travel intent without planning
func (p *Planner) ParseIntent(text string) *model.Intent {
	return p.intent.Parse(text)
}

// SearchLocations resolves a place name to ranked stations
func (p *Planner) SearchLocations(ctx context.Context, query string) ([]model.RankedLocation, error) {
	return p.locator.Resolve(ctx, query)
}

// SearchNearby lists stations around a coordinate. A radius of zero uses
// the configured default.
func (p *Planner) SearchNearby(ctx context.Context, lat, lon float64, radius int) ([]model.StopLocation, error) {
	if radius <= 0 {
		radius = p.cfg.NearbyRadius
	}
	return p.locator.Nearby(ctx, lat, lon, radius)
}

// SearchTrips searches journeys between two known station IDs
func (p *Planner) SearchTrips(ctx context.Context, req *model.TripRequest) ([]model.Trip, error) {
	trips, err := p.client.SearchJourneys(ctx, req.OriginID, req.DestID, JourneyOptions{
		Profile:   req.Profile,
		Departure: req.Departure,
		Results:   p.cfg.MaxTrips,
	})
	if err != nil {
		return nil, upstreamFailure(err)
	}
	return trips, nil
}

// LogFeedback stores feedback on a proposed trip
func (p *Planner) LogFeedback(ctx context.Context, req *model.FeedbackRequest) error {
	if p.store == nil {
		return apperr.Unavailable("Feedback kann gerade nicht gespeichert werden.", nil)
	}
	if err := p.store.LogFeedback(ctx, *req); err != nil {
		return apperr.Internal("Feedback konnte nicht gespeichert werden.", err)
	}
	return nil
}

// Backends reports the circuit state per transit backend, if known
func (p *Planner) Backends() map[string]string {
	if h, ok := p.client.(interface{ Health() map[string]string }); ok {
		return h.Health()
	}
	return map[string]string{p.client.Name(): "unknown"}
}

// upstreamFailure maps a transit client error to a domain error. Requests
// the backend rejected are upstream errors, everything else means no
// backend could be reached.
func upstreamFailure(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if !isOutage(err) {
		return apperr.Upstream(MsgRejected, err)
	}
	return apperr.Unavailable(MsgUnavailable, err)
}
