package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"voicetransit/internal/config"
	"voicetransit/internal/logger"
	"voicetransit/internal/model"
	"voicetransit/internal/utils"
)

const dbAPIPrefix = "/fahrplan-plus/v1"

// DBAPIClient talks to the official Deutsche Bahn API marketplace
// (fahrplan-plus). Requests carry the DB-Client-Id and DB-Api-Key headers.
type DBAPIClient struct {
	http         *upstream
	maxLocations int
}

// NewDBAPIClient creates a client for cfg.DBAPIBase
func NewDBAPIClient(cfg config.TransitConfig, log *logger.Logger) *DBAPIClient {
	headers := http.Header{}
	headers.Set("DB-Client-Id", cfg.DBClientID)
	headers.Set("DB-Api-Key", cfg.DBAPIKey)

	return &DBAPIClient{
		http: newUpstream(upstreamOptions{
			Backend: config.BackendDBAPI,
			BaseURL: cfg.DBAPIBase,
			Headers: headers,
			Timeout: cfg.Timeout,
			Rate:    cfg.UpstreamRate,
			Burst:   cfg.UpstreamBurst,
			Logger:  log,
		}),
		maxLocations: maxLocations(cfg.MaxLocationResults),
	}
}

// Name returns the backend name
func (c *DBAPIClient) Name() string {
	return config.BackendDBAPI
}

// SearchLocations implements TransitClient
func (c *DBAPIClient) SearchLocations(ctx context.Context, query string) ([]model.StopLocation, error) {
	var raw utils.OneOrMany[hafasLocation]
	if err := c.http.getJSON(ctx, "locations", dbAPIPrefix+"/location/"+url.PathEscape(query), nil, &raw); err != nil {
		return nil, err
	}
	return c.stations(raw), nil
}

// SearchNearby implements TransitClient. The radius is not part of the
// fahrplan-plus API and is applied to the returned distances instead.
func (c *DBAPIClient) SearchNearby(ctx context.Context, lat, lon float64, radius int) ([]model.StopLocation, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))

	var raw utils.OneOrMany[hafasLocation]
	if err := c.http.getJSON(ctx, "nearby", dbAPIPrefix+"/location/nearby", params, &raw); err != nil {
		return nil, err
	}

	stations := c.stations(raw)
	if radius <= 0 {
		return stations, nil
	}
	within := stations[:0]
	for _, s := range stations {
		if s.Distance == nil || *s.Distance <= radius {
			within = append(within, s)
		}
	}
	return within, nil
}

func (c *DBAPIClient) stations(raw []hafasLocation) []model.StopLocation {
	out := make([]model.StopLocation, 0, len(raw))
	for _, l := range raw {
		if l.Type != "station" && l.Type != "ST" {
			continue
		}
		loc := l.toModel()
		if loc.ID == "" {
			continue
		}
		out = append(out, loc)
		if len(out) == c.maxLocations {
			break
		}
	}
	return out
}

// SearchJourneys implements TransitClient
func (c *DBAPIClient) SearchJourneys(ctx context.Context, originID, destID string, opts JourneyOptions) ([]model.Trip, error) {
	params := url.Values{}
	params.Set("originId", originID)
	params.Set("destId", destID)
	setHafasDeparture(params, opts.Departure)

	var raw hafasTripResponse
	if err := c.http.getJSON(ctx, "journeys", dbAPIPrefix+"/journey", params, &raw); err != nil {
		return nil, err
	}
	return raw.trips(opts.results()), nil
}
