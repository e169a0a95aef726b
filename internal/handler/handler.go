// Package handler exposes the trip planner over HTTP.
package handler

import (
	"context"

	"voicetransit/internal/model"
	"voicetransit/internal/service"
)

// TripPlanner is the service the handlers delegate to
type TripPlanner interface {
	Plan(ctx context.Context, req *model.PlanRequest) (*model.PlanResponse, error)
	PlanStream(ctx context.Context, req *model.PlanRequest, callback service.PlanEventCallback) (*model.PlanResponse, error)
	ParseIntent(text string) *model.Intent
	SearchLocations(ctx context.Context, query string) ([]model.RankedLocation, error)
	SearchNearby(ctx context.Context, lat, lon float64, radius int) ([]model.StopLocation, error)
	SearchTrips(ctx context.Context, req *model.TripRequest) ([]model.Trip, error)
	LogFeedback(ctx context.Context, req *model.FeedbackRequest) error
	Backends() map[string]string
}

var _ TripPlanner = (*service.Planner)(nil)
