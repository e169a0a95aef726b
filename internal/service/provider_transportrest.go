package service

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"voicetransit/internal/config"
	"voicetransit/internal/logger"
	"voicetransit/internal/model"
	"voicetransit/internal/utils"
)

// TransportRestClient talks to the community transport.rest wrapper around
// the DB HAFAS endpoint (v6.db.transport.rest). Times arrive as ISO-8601
// timestamps with planned and real-time variants side by side.
type TransportRestClient struct {
	http         *upstream
	maxLocations int
}

// NewTransportRestClient creates a client for cfg.TransportRestBase
func NewTransportRestClient(cfg config.TransitConfig, log *logger.Logger) *TransportRestClient {
	return &TransportRestClient{
		http: newUpstream(upstreamOptions{
			Backend: config.BackendTransportRest,
			BaseURL: cfg.TransportRestBase,
			Timeout: cfg.Timeout,
			Rate:    cfg.UpstreamRate,
			Burst:   cfg.UpstreamBurst,
			Logger:  log,
		}),
		maxLocations: maxLocations(cfg.MaxLocationResults),
	}
}

// Name returns the backend name
func (c *TransportRestClient) Name() string {
	return config.BackendTransportRest
}

type trLocation struct {
	Type     string           `json:"type"`
	ID       utils.FlexString `json:"id"`
	Name     string           `json:"name"`
	Distance *int             `json:"distance"`
	Location *struct {
		Latitude  utils.FlexFloat `json:"latitude"`
		Longitude utils.FlexFloat `json:"longitude"`
	} `json:"location"`
}

func (l trLocation) isStop() bool {
	return l.Type == "station" || l.Type == "stop"
}

func (l trLocation) toModel() model.StopLocation {
	loc := model.StopLocation{ID: l.ID.String(), Name: l.Name, Distance: l.Distance}
	if l.Location != nil {
		loc.Lat = l.Location.Latitude.Float()
		loc.Lon = l.Location.Longitude.Float()
	}
	return loc
}

// SearchLocations implements TransitClient
func (c *TransportRestClient) SearchLocations(ctx context.Context, query string) ([]model.StopLocation, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("results", strconv.Itoa(c.maxLocations))
	params.Set("poi", "false")
	params.Set("addresses", "false")

	var raw []trLocation
	if err := c.http.getJSON(ctx, "locations", "/locations", params, &raw); err != nil {
		return nil, err
	}
	return c.collect(raw), nil
}

// SearchNearby implements TransitClient
func (c *TransportRestClient) SearchNearby(ctx context.Context, lat, lon float64, radius int) ([]model.StopLocation, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("distance", strconv.Itoa(radius))
	params.Set("results", strconv.Itoa(c.maxLocations))

	var raw []trLocation
	if err := c.http.getJSON(ctx, "nearby", "/stops/nearby", params, &raw); err != nil {
		return nil, err
	}
	return c.collect(raw), nil
}

func (c *TransportRestClient) collect(raw []trLocation) []model.StopLocation {
	out := make([]model.StopLocation, 0, len(raw))
	for _, l := range raw {
		if !l.isStop() || l.ID == "" {
			continue
		}
		out = append(out, l.toModel())
		if len(out) == c.maxLocations {
			break
		}
	}
	return out
}

type trStop struct {
	Name     string `json:"name"`
	Location *struct {
		Latitude  utils.FlexFloat `json:"latitude"`
		Longitude utils.FlexFloat `json:"longitude"`
	} `json:"location"`
}

type trLeg struct {
	Origin                   trStop  `json:"origin"`
	Destination              trStop  `json:"destination"`
	Departure                *string `json:"departure"`
	PlannedDeparture         *string `json:"plannedDeparture"`
	Arrival                  *string `json:"arrival"`
	PlannedArrival           *string `json:"plannedArrival"`
	DeparturePlatform        string  `json:"departurePlatform"`
	PlannedDeparturePlatform string  `json:"plannedDeparturePlatform"`
	ArrivalPlatform          string  `json:"arrivalPlatform"`
	PlannedArrivalPlatform   string  `json:"plannedArrivalPlatform"`
	Direction                string  `json:"direction"`
	Walking                  bool    `json:"walking"`
	Distance                 *int    `json:"distance"`
	Line                     *struct {
		Name    string `json:"name"`
		Mode    string `json:"mode"`
		Product string `json:"product"`
	} `json:"line"`
	Stopovers []struct {
		Stop              trStop  `json:"stop"`
		Arrival           *string `json:"arrival"`
		Departure         *string `json:"departure"`
		DeparturePlatform string  `json:"departurePlatform"`
		ArrivalPlatform   string  `json:"arrivalPlatform"`
	} `json:"stopovers"`
	Remarks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"remarks"`
}

type trJourneysResponse struct {
	Journeys []struct {
		Legs  []trLeg `json:"legs"`
		Price *struct {
			Amount *float64 `json:"amount"`
		} `json:"price"`
	} `json:"journeys"`
}

// SearchJourneys implements TransitClient
func (c *TransportRestClient) SearchJourneys(ctx context.Context, originID, destID string, opts JourneyOptions) ([]model.Trip, error) {
	params := url.Values{}
	params.Set("from", originID)
	params.Set("to", destID)
	params.Set("results", strconv.Itoa(opts.results()))
	params.Set("stopovers", "true")
	params.Set("remarks", "true")
	if opts.Departure != nil {
		params.Set("departure", opts.Departure.Format(time.RFC3339))
	}
	switch opts.Profile {
	case model.ProfileWheelchair:
		params.Set("accessibility", "complete")
	case model.ProfileMobilityImpaired:
		params.Set("accessibility", "partial")
	}

	var raw trJourneysResponse
	if err := c.http.getJSON(ctx, "journeys", "/journeys", params, &raw); err != nil {
		return nil, err
	}

	trips := make([]model.Trip, 0, len(raw.Journeys))
	for _, j := range raw.Journeys {
		if len(j.Legs) == 0 {
			continue
		}
		trip := mapTransportRestTrip(j.Legs)
		if j.Price != nil {
			trip.Price = j.Price.Amount
		}
		trips = append(trips, trip)
		if len(trips) == opts.results() {
			break
		}
	}
	return trips, nil
}

func mapTransportRestTrip(raw []trLeg) model.Trip {
	legs := make([]model.Leg, 0, len(raw))
	var prevArrival time.Time
	for i, l := range raw {
		dep, plannedDep := parseISOTime(l.Departure), parseISOTime(l.PlannedDeparture)
		arr, plannedArr := parseISOTime(l.Arrival), parseISOTime(l.PlannedArrival)

		leg := model.Leg{
			Origin:      trLegStop(l.Origin, dep, plannedDep, l.DeparturePlatform, l.PlannedDeparturePlatform),
			Destination: trLegStop(l.Destination, arr, plannedArr, l.ArrivalPlatform, l.PlannedArrivalPlatform),
			Direction:   l.Direction,
			Walking:     l.Walking,
			Distance:    l.Distance,
		}

		switch {
		case l.Line != nil && l.Line.Name != "":
			leg.Name, leg.Type = l.Line.Name, l.Line.Mode
		case l.Walking:
			leg.Name, leg.Type = "Fußweg", "walking"
		default:
			leg.Name, leg.Type = "Zug", "train"
		}
		if leg.Type == "" {
			leg.Type = "train"
		}

		if !dep.IsZero() && !arr.IsZero() {
			leg.Duration = intPtr(int(arr.Sub(dep) / time.Minute))
		}
		if i > 0 && !prevArrival.IsZero() && !dep.IsZero() {
			wait := int(dep.Sub(prevArrival) / time.Minute)
			if wait < 0 {
				wait = 0
			}
			leg.TransferDuration = intPtr(wait)
		}
		if !arr.IsZero() {
			prevArrival = arr
		}

		for _, s := range l.Stopovers {
			track := s.DeparturePlatform
			if track == "" {
				track = s.ArrivalPlatform
			}
			leg.Stopovers = append(leg.Stopovers, model.Stopover{
				Name:      s.Stop.Name,
				Arrival:   clockOf(parseISOTime(s.Arrival)),
				Departure: clockOf(parseISOTime(s.Departure)),
				Track:     track,
			})
		}
		for _, r := range l.Remarks {
			if r.Text == "" {
				continue
			}
			if r.Type == "warning" || r.Type == "status" {
				leg.Messages = append(leg.Messages, r.Text)
			} else {
				leg.Notes = append(leg.Notes, r.Text)
			}
		}
		legs = append(legs, leg)
	}

	trip := model.Trip{Legs: legs}
	first, last := legs[0], legs[len(legs)-1]
	trip.StartTime, trip.StartDate = first.Origin.Time, first.Origin.Date
	trip.EndTime, trip.EndDate = last.Destination.Time, last.Destination.Date

	start := firstNonZero(parseISOTime(raw[0].PlannedDeparture), parseISOTime(raw[0].Departure))
	end := firstNonZero(parseISOTime(raw[len(raw)-1].PlannedArrival), parseISOTime(raw[len(raw)-1].Arrival))
	if !start.IsZero() && !end.IsZero() {
		trip.Duration = utils.ISODuration(end.Sub(start))
	}
	return trip
}

// trLegStop fills the scheduled fields from the planned values and the
// real-time fields only where they differ
func trLegStop(s trStop, actual, planned time.Time, platform, plannedPlatform string) model.LegStop {
	stop := model.LegStop{Name: s.Name}
	if s.Location != nil {
		lat, lon := s.Location.Latitude.Float(), s.Location.Longitude.Float()
		stop.Lat, stop.Lon = &lat, &lon
	}

	scheduled := firstNonZero(planned, actual)
	stop.Time, stop.Date = clockOf(scheduled), dateOf(scheduled)
	if !actual.IsZero() && !planned.IsZero() && !actual.Equal(planned) {
		stop.RtTime, stop.RtDate = clockOf(actual), dateOf(actual)
	}

	stop.Track = plannedPlatform
	if stop.Track == "" {
		stop.Track = platform
	} else if platform != "" && platform != plannedPlatform {
		stop.RtTrack = platform
	}
	return stop
}

func parseISOTime(s *string) time.Time {
	if s == nil || *s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func firstNonZero(ts ...time.Time) time.Time {
	for _, t := range ts {
		if !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

// clockOf renders t in its own offset, which is the station's local time
func clockOf(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04")
}

func dateOf(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func intPtr(v int) *int {
	return &v
}

func maxLocations(n int) int {
	if n <= 0 {
		return 10
	}
	return n
}
