//go:build !embed

package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"voicetransit/internal/logger"
	"voicetransit/internal/model"
)

// setupStaticFiles configures static file serving for development (no embedding)
func setupStaticFiles(router *gin.Engine, log *logger.Logger) {
	log.Info("frontend served separately in development mode", "dev_url", "http://localhost:5173")

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not_found", Message: "API endpoint not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Frontend is running separately",
			"dev_url": "http://localhost:5173",
			"hint":    "Run 'cd web && npm run dev' to start the frontend",
		})
	})
}
