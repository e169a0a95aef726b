package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voicetransit/internal/logger"
	"voicetransit/internal/model"
)

// TripHandler handles journey searches between known stations
type TripHandler struct {
	planner TripPlanner
	log     *logger.Logger
}

// NewTripHandler creates a new trip handler
func NewTripHandler(planner TripPlanner, log *logger.Logger) *TripHandler {
	return &TripHandler{planner: planner, log: log}
}

// Search handles GET /api/trips
func (h *TripHandler) Search(c *gin.Context) {
	var req model.TripRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	trips, err := h.planner.SearchTrips(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if trips == nil {
		trips = []model.Trip{}
	}
	c.JSON(http.StatusOK, trips)
}
