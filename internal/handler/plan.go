package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"voicetransit/internal/apperr"
	"voicetransit/internal/logger"
	"voicetransit/internal/model"
)

// PlanHandler handles utterance parsing and trip planning
type PlanHandler struct {
	planner TripPlanner
	log     *logger.Logger
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(planner TripPlanner, log *logger.Logger) *PlanHandler {
	return &PlanHandler{planner: planner, log: log}
}

// Intent handles POST /api/intent
func (h *PlanHandler) Intent(c *gin.Context) {
	var req model.IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.planner.ParseIntent(req.Text))
}

// Plan handles POST /api/plan
func (h *PlanHandler) Plan(c *gin.Context) {
	var req model.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	response, err := h.planner.Plan(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// PlanStream handles POST /api/plan/stream - SSE streaming plan
func (h *PlanHandler) PlanStream(c *gin.Context) {
	var req model.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "streaming_unsupported"})
		return
	}

	ctx := c.Request.Context()
	send := func(event string, data any) error {
		sendSSE(c, event, data)
		flusher.Flush()
		return ctx.Err()
	}

	_ = send("start", map[string]any{"text": req.Text})

	response, err := h.planner.PlanStream(ctx, &req, send)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e, ok := apperr.As(err)
		if !ok {
			h.log.WithContext(ctx).Error("plan stream failed", "error", err)
			e = apperr.Internal("Ein Fehler ist aufgetreten.", err)
		}
		_ = send("error", model.ErrorResponse{Error: e.Kind.String(), Message: e.Message})
		return
	}

	_ = send("results", response)
	_ = send("done", nil)
}

// sendSSE sends a Server-Sent Event
func sendSSE(c *gin.Context, event string, data any) {
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\": \"JSON marshal failed\"}\n\n")
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, string(jsonData))
	} else {
		fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", event)
	}
}
