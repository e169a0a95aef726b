package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"voicetransit/internal/apperr"
	"voicetransit/internal/logger"
	"voicetransit/internal/model"
)

// statusClientClosedRequest is reported when the caller went away
const statusClientClosedRequest = 499

const maxStationIDLength = 256

// RegisterValidators adds the custom binding rules used by request models
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return v.RegisterValidation("stationid", validateStationID)
}

// validateStationID accepts backend station IDs: plain numbers from the
// community API as well as HAFAS location strings such as
// "A=1@O=Frankfurt (Main) Hauptbahnhof@L=3000010@"
func validateStationID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if strings.TrimSpace(id) == "" || len(id) > maxStationIDLength || !utf8.ValidString(id) {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// respondError maps err to a status code and a German message
func respondError(c *gin.Context, log *logger.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		c.AbortWithStatus(statusClientClosedRequest)
		return
	}

	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal("Ein Fehler ist aufgetreten.", err)
	}
	status := e.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.WithContext(c.Request.Context()).HTTPError(c.Request.Method, c.Request.URL.Path, status, err, c.ClientIP())
	}
	c.JSON(status, model.ErrorResponse{Error: e.Kind.String(), Message: e.Message})
}

// respondBindError reports a request that failed binding or validation
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Error:   apperr.KindValidation.String(),
		Message: bindMessage(err),
	})
}

func bindMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "Ungültige Anfrage."
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return "Ungültige Anfrage: " + strings.Join(fields, ", ") + "."
}
