package service

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"voicetransit/internal/config"
	"voicetransit/internal/logger"
	"voicetransit/internal/model"
	"voicetransit/internal/utils"
)

// HafasClient talks to a HAFAS ReST endpoint such as the RMV one
// (www.rmv.de/hapi). Authentication is the accessId query parameter.
type HafasClient struct {
	http         *upstream
	accessID     string
	maxLocations int
}

// NewHafasClient creates a client for cfg.HafasBase
func NewHafasClient(cfg config.TransitConfig, log *logger.Logger) *HafasClient {
	return &HafasClient{
		http: newUpstream(upstreamOptions{
			Backend: config.BackendHafas,
			BaseURL: cfg.HafasBase,
			Timeout: cfg.Timeout,
			Rate:    cfg.UpstreamRate,
			Burst:   cfg.UpstreamBurst,
			Logger:  log,
		}),
		accessID:     cfg.HafasAccessID,
		maxLocations: maxLocations(cfg.MaxLocationResults),
	}
}

// Name returns the backend name
func (c *HafasClient) Name() string {
	return config.BackendHafas
}

type hafasLocation struct {
	Type      string           `json:"type"`
	ID        utils.FlexString `json:"id"`
	ExtID     utils.FlexString `json:"extId"`
	Name      string           `json:"name"`
	Lat       utils.FlexFloat  `json:"lat"`
	Lon       utils.FlexFloat  `json:"lon"`
	Dist      *int             `json:"dist"`
	Latitude  utils.FlexFloat  `json:"latitude"`
	Longitude utils.FlexFloat  `json:"longitude"`
	Distance  *int             `json:"distance"`
}

func (l hafasLocation) toModel() model.StopLocation {
	loc := model.StopLocation{
		ID:       l.ID.String(),
		Name:     l.Name,
		Lat:      l.Lat.Float(),
		Lon:      l.Lon.Float(),
		Distance: l.Dist,
	}
	if loc.ID == "" {
		loc.ID = l.ExtID.String()
	}
	if loc.Lat == 0 && loc.Lon == 0 {
		loc.Lat, loc.Lon = l.Latitude.Float(), l.Longitude.Float()
	}
	if loc.Distance == nil {
		loc.Distance = l.Distance
	}
	return loc
}

type hafasLocationResponse struct {
	StopLocationOrCoordLocation []struct {
		StopLocation *hafasLocation `json:"StopLocation"`
	} `json:"stopLocationOrCoordLocation"`
}

func (r hafasLocationResponse) stops(limit int) []model.StopLocation {
	out := make([]model.StopLocation, 0, len(r.StopLocationOrCoordLocation))
	for _, entry := range r.StopLocationOrCoordLocation {
		if entry.StopLocation == nil {
			continue
		}
		loc := entry.StopLocation.toModel()
		if loc.ID == "" {
			continue
		}
		out = append(out, loc)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (c *HafasClient) params() url.Values {
	params := url.Values{}
	params.Set("accessId", c.accessID)
	params.Set("format", "json")
	return params
}

// SearchLocations implements TransitClient
func (c *HafasClient) SearchLocations(ctx context.Context, query string) ([]model.StopLocation, error) {
	params := c.params()
	params.Set("input", query)
	params.Set("type", "S")
	params.Set("maxNo", strconv.Itoa(c.maxLocations))

	var raw hafasLocationResponse
	if err := c.http.getJSON(ctx, "locations", "/location.name", params, &raw); err != nil {
		return nil, err
	}
	return raw.stops(c.maxLocations), nil
}

// SearchNearby implements TransitClient
func (c *HafasClient) SearchNearby(ctx context.Context, lat, lon float64, radius int) ([]model.StopLocation, error) {
	params := c.params()
	params.Set("originCoordLat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("originCoordLong", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("r", strconv.Itoa(radius))
	params.Set("maxNo", strconv.Itoa(c.maxLocations))

	var raw hafasLocationResponse
	if err := c.http.getJSON(ctx, "nearby", "/location.nearbystops", params, &raw); err != nil {
		return nil, err
	}
	return raw.stops(c.maxLocations), nil
}

// SearchJourneys implements TransitClient
func (c *HafasClient) SearchJourneys(ctx context.Context, originID, destID string, opts JourneyOptions) ([]model.Trip, error) {
	params := c.params()
	params.Set("originId", originID)
	params.Set("destId", destID)
	params.Set("numF", strconv.Itoa(opts.results()))
	setHafasDeparture(params, opts.Departure)

	var raw hafasTripResponse
	if err := c.http.getJSON(ctx, "journeys", "/trip", params, &raw); err != nil {
		return nil, err
	}
	return raw.trips(opts.results()), nil
}

func setHafasDeparture(params url.Values, departure *time.Time) {
	if departure == nil {
		return
	}
	params.Set("date", departure.Format("2006-01-02"))
	params.Set("time", departure.Format("15:04"))
}

// HAFAS trip payloads are shared by the RMV and the DB fahrplan-plus APIs.
// Single-element lists may arrive as plain objects.

type hafasStop struct {
	Name    string           `json:"name"`
	Time    string           `json:"time"`
	Date    string           `json:"date"`
	Track   utils.FlexString `json:"track"`
	RtTime  string           `json:"rtTime"`
	RtDate  string           `json:"rtDate"`
	RtTrack utils.FlexString `json:"rtTrack"`
	Lat     *utils.FlexFloat `json:"lat"`
	Lon     *utils.FlexFloat `json:"lon"`
}

type hafasLeg struct {
	Origin      hafasStop `json:"Origin"`
	Destination hafasStop `json:"Destination"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Direction   string    `json:"direction"`
	Dist        *int      `json:"dist"`
	Duration    string    `json:"duration"`
	Product     utils.OneOrMany[struct {
		Name   string `json:"name"`
		CatOut string `json:"catOut"`
	}] `json:"Product"`
	Stops *struct {
		Stop utils.OneOrMany[struct {
			Name     string           `json:"name"`
			ArrTime  string           `json:"arrTime"`
			DepTime  string           `json:"depTime"`
			ArrTrack utils.FlexString `json:"arrTrack"`
			DepTrack utils.FlexString `json:"depTrack"`
		}] `json:"Stop"`
	} `json:"Stops"`
	Notes *struct {
		Note utils.OneOrMany[struct {
			Value string `json:"value"`
		}] `json:"Note"`
	} `json:"Notes"`
	Messages *struct {
		Message utils.OneOrMany[struct {
			Head string `json:"head"`
			Text string `json:"text"`
		}] `json:"Message"`
	} `json:"Messages"`
}

type hafasTrip struct {
	Duration string `json:"duration"`
	LegList  struct {
		Leg utils.OneOrMany[hafasLeg] `json:"Leg"`
	} `json:"LegList"`
}

type hafasTripResponse struct {
	Trip utils.OneOrMany[hafasTrip] `json:"Trip"`
}

func (r hafasTripResponse) trips(limit int) []model.Trip {
	out := make([]model.Trip, 0, len(r.Trip))
	for _, t := range r.Trip {
		if len(t.LegList.Leg) == 0 {
			continue
		}
		out = append(out, mapHafasTrip(t))
		if len(out) == limit {
			break
		}
	}
	return out
}

func mapHafasTrip(t hafasTrip) model.Trip {
	legs := make([]model.Leg, 0, len(t.LegList.Leg))
	for i, l := range t.LegList.Leg {
		leg := model.Leg{
			Origin:      hafasLegStop(l.Origin),
			Destination: hafasLegStop(l.Destination),
			Name:        strings.Join(strings.Fields(l.Name), " "),
			Type:        l.Type,
			Direction:   l.Direction,
			Walking:     isHafasWalk(l.Type),
			Distance:    l.Dist,
		}
		if leg.Name == "" && len(l.Product) > 0 {
			leg.Name = l.Product[0].Name
		}
		if leg.Name == "" {
			if leg.Walking {
				leg.Name = "Fußweg"
			} else {
				leg.Name = "Transfer"
			}
		}

		if d, ok := utils.ParseISODuration(l.Duration); ok {
			leg.Duration = intPtr(int(d / time.Minute))
		} else if m, ok := minutesBetween(l.Origin.Date, l.Origin.Time, l.Destination.Date, l.Destination.Time); ok {
			leg.Duration = intPtr(m)
		}
		if i > 0 {
			prev := t.LegList.Leg[i-1].Destination
			if m, ok := minutesBetween(prev.Date, prev.Time, l.Origin.Date, l.Origin.Time); ok {
				if m < 0 {
					m = 0
				}
				leg.TransferDuration = intPtr(m)
			}
		}

		if l.Stops != nil {
			for _, s := range l.Stops.Stop {
				track := s.DepTrack.String()
				if track == "" {
					track = s.ArrTrack.String()
				}
				leg.Stopovers = append(leg.Stopovers, model.Stopover{
					Name:      s.Name,
					Arrival:   utils.FormatClock(s.ArrTime),
					Departure: utils.FormatClock(s.DepTime),
					Track:     track,
				})
			}
		}
		if l.Notes != nil {
			for _, n := range l.Notes.Note {
				if n.Value != "" {
					leg.Notes = append(leg.Notes, n.Value)
				}
			}
		}
		if l.Messages != nil {
			for _, m := range l.Messages.Message {
				text := m.Text
				if text == "" {
					text = m.Head
				}
				if text != "" {
					leg.Messages = append(leg.Messages, text)
				}
			}
		}
		legs = append(legs, leg)
	}

	first, last := legs[0], legs[len(legs)-1]
	trip := model.Trip{
		Legs:      legs,
		Duration:  t.Duration,
		StartTime: first.Origin.Time,
		StartDate: first.Origin.Date,
		EndTime:   last.Destination.Time,
		EndDate:   last.Destination.Date,
	}
	if trip.Duration == "" {
		if m, ok := minutesBetween(first.Origin.Date, first.Origin.Time, last.Destination.Date, last.Destination.Time); ok {
			trip.Duration = utils.ISODuration(time.Duration(m) * time.Minute)
		}
	}
	return trip
}

func hafasLegStop(s hafasStop) model.LegStop {
	stop := model.LegStop{
		Name:  s.Name,
		Time:  utils.FormatClock(s.Time),
		Date:  s.Date,
		Track: s.Track.String(),
	}
	if rt := utils.FormatClock(s.RtTime); rt != "" && rt != stop.Time {
		stop.RtTime = rt
		stop.RtDate = s.RtDate
		if stop.RtDate == "" {
			stop.RtDate = s.Date
		}
	}
	if rt := s.RtTrack.String(); rt != "" && rt != stop.Track {
		stop.RtTrack = rt
	}
	if s.Lat != nil && s.Lon != nil {
		lat, lon := s.Lat.Float(), s.Lon.Float()
		stop.Lat, stop.Lon = &lat, &lon
	}
	return stop
}

func isHafasWalk(legType string) bool {
	switch strings.ToUpper(legType) {
	case "WALK", "TRSF", "GIS":
		return true
	}
	return false
}

// minutesBetween computes the scheduled minutes from one date/clock pair to
// another. Dates are ISO (2006-01-02), clocks "15:04" or "15:04:05".
func minutesBetween(fromDate, fromClock, toDate, toClock string) (int, bool) {
	from, ok := parseDateClock(fromDate, fromClock)
	if !ok {
		return 0, false
	}
	to, ok := parseDateClock(toDate, toClock)
	if !ok {
		return 0, false
	}
	return int(to.Sub(from) / time.Minute), true
}

func parseDateClock(date, clock string) (time.Time, bool) {
	clock = utils.FormatClock(clock)
	if date == "" || clock == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02 15:04", date+" "+clock)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
