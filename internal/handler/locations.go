package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voicetransit/internal/logger"
	"voicetransit/internal/model"
)

// LocationHandler handles station lookups
type LocationHandler struct {
	planner TripPlanner
	log     *logger.Logger
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(planner TripPlanner, log *logger.Logger) *LocationHandler {
	return &LocationHandler{planner: planner, log: log}
}

// Search handles GET /api/locations/search
func (h *LocationHandler) Search(c *gin.Context) {
	var req model.LocationSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	locations, err := h.planner.SearchLocations(c.Request.Context(), req.Query)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if locations == nil {
		locations = []model.RankedLocation{}
	}
	c.JSON(http.StatusOK, locations)
}

// Nearby handles GET /api/locations/nearby
func (h *LocationHandler) Nearby(c *gin.Context) {
	var req model.NearbyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	stops, err := h.planner.SearchNearby(c.Request.Context(), *req.Lat, *req.Lon, req.Radius)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if stops == nil {
		stops = []model.StopLocation{}
	}
	c.JSON(http.StatusOK, stops)
}
