package handler

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"voicetransit/internal/logger"
)

// RouterOptions configures NewRouter
type RouterOptions struct {
	AllowedOrigins []string
	RateLimit      float64 // requests per second per client IP, 0 disables limiting
	RateBurst      int
	Build          BuildInfo
}

// NewRouter wires middleware and API routes. Static assets are added by
// the caller.
func NewRouter(planner TripPlanner, opts RouterOptions, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(log))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	if containsWildcard(opts.AllowedOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", RequestIDHeader}
	corsConfig.ExposeHeaders = []string{RequestIDHeader}
	router.Use(cors.New(corsConfig))

	healthHandler := NewHealthHandler(planner, opts.Build)
	router.GET("/health", healthHandler.Health)
	router.GET("/version", healthHandler.Version)

	locationHandler := NewLocationHandler(planner, log)
	tripHandler := NewTripHandler(planner, log)
	planHandler := NewPlanHandler(planner, log)
	feedbackHandler := NewFeedbackHandler(planner, log)

	api := router.Group("/api")
	if opts.RateLimit > 0 {
		api.Use(NewIPRateLimiter(rate.Limit(opts.RateLimit), opts.RateBurst, log).RateLimit())
	}
	{
		api.GET("/locations/search", locationHandler.Search)
		api.GET("/locations/nearby", locationHandler.Nearby)
		api.GET("/trips", tripHandler.Search)
		api.POST("/intent", planHandler.Intent)
		api.POST("/plan", planHandler.Plan)
		api.POST("/plan/stream", planHandler.PlanStream)
		api.POST("/feedback", feedbackHandler.Submit)
	}

	return router
}

func containsWildcard(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
