//go:build embed

package main

import (
	"embed"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"voicetransit/internal/logger"
	"voicetransit/internal/model"
)

//go:embed web/dist
var webDist embed.FS

// setupStaticFiles serves the embedded voice frontend
func setupStaticFiles(router *gin.Engine, log *logger.Logger) {
	log.Info("using embedded frontend assets")

	distFS, err := fs.Sub(webDist, "web/dist")
	if err != nil {
		log.Error("failed to open embedded dist directory", "error", err)
		os.Exit(1)
	}

	router.NoRoute(func(c *gin.Context) {
		urlPath := c.Request.URL.Path

		if strings.HasPrefix(urlPath, "/api") {
			c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not_found", Message: "API endpoint not found"})
			return
		}

		cleanPath := path.Clean(urlPath)
		if cleanPath == "/" {
			cleanPath = "index.html"
		} else {
			cleanPath = strings.TrimPrefix(cleanPath, "/")
		}

		if content, ok := readAsset(distFS, cleanPath); ok {
			contentType := mime.TypeByExtension(path.Ext(cleanPath))
			if contentType == "" {
				contentType = "text/html; charset=utf-8"
			}
			c.Data(http.StatusOK, contentType, content)
			return
		}

		// Unknown paths fall back to index.html for client-side routing
		content, ok := readAsset(distFS, "index.html")
		if !ok {
			c.String(http.StatusNotFound, "404 page not found")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", content)
	})
}

func readAsset(fsys fs.FS, name string) ([]byte, bool) {
	file, err := fsys.Open(name)
	if err != nil {
		return nil, false
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil || stat.IsDir() {
		return nil, false
	}
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, false
	}
	return content, true
}
