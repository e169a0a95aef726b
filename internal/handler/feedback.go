package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voicetransit/internal/logger"
	"voicetransit/internal/model"
)

// FeedbackHandler handles feedback-related HTTP requests
type FeedbackHandler struct {
	planner TripPlanner
	log     *logger.Logger
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(planner TripPlanner, log *logger.Logger) *FeedbackHandler {
	return &FeedbackHandler{planner: planner, log: log}
}

// Submit handles POST /api/feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req model.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.planner.LogFeedback(c.Request.Context(), &req); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, model.FeedbackResponse{
		Success: true,
		Message: "Danke für dein Feedback!",
	})
}
