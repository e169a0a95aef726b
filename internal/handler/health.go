package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BuildInfo describes the running binary
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// HealthHandler reports liveness, version and backend state
type HealthHandler struct {
	planner TripPlanner
	build   BuildInfo
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(planner TripPlanner, build BuildInfo) *HealthHandler {
	return &HealthHandler{planner: planner, build: build}
}

// Health handles GET /health. The service stays healthy while at least one
// backend circuit is not open.
func (h *HealthHandler) Health(c *gin.Context) {
	backends := h.planner.Backends()
	status, code := "healthy", http.StatusOK
	if !anyAvailable(backends) {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"service":    "voicetransit",
		"version":    h.build.Version,
		"build_time": h.build.BuildTime,
		"git_commit": h.build.GitCommit,
		"backends":   backends,
	})
}

// Version handles GET /version
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    h.build.Version,
		"build_time": h.build.BuildTime,
		"git_commit": h.build.GitCommit,
	})
}

func anyAvailable(backends map[string]string) bool {
	if len(backends) == 0 {
		return true
	}
	for _, state := range backends {
		if state != "open" {
			return true
		}
	}
	return false
}
