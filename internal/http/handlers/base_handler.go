// README: Base handler utilities (JSON helpers, id parsing, trip error mapping).
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"routetrip/internal/modules/location"
	"routetrip/internal/modules/trip"
	"routetrip/internal/service"
	"routetrip/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// pathID reads a uuid path parameter, writing 400 when it is malformed.
func pathID(c *gin.Context, name string) (types.ID, bool) {
	v := c.Param(name)
	if err := uuid.Validate(v); err != nil {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return "", false
	}
	return types.ID(v), true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeTripError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, trip.ErrBadRequest),
		errors.Is(err, trip.ErrInvalidBreakWindow),
		errors.Is(err, location.ErrInvalidPosition):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, trip.ErrNoCurrentTrip), errors.Is(err, trip.ErrTripNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, trip.ErrOptimizationInProgress),
		errors.Is(err, trip.ErrOptimizationStale),
		errors.Is(err, trip.ErrTripClosed),
		errors.Is(err, trip.ErrInvalidTransition):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, trip.ErrInsufficientStops),
		errors.Is(err, trip.ErrRouteNotOptimized),
		errors.Is(err, trip.ErrNoLocations),
		errors.Is(err, trip.ErrMissingOrigin),
		errors.Is(err, service.ErrEmptyManifest):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, trip.ErrOptimizationFailed):
		writeError(c, http.StatusBadGateway, err.Error())
	default:
		log.Printf("[http] %s %s: %v", c.Request.Method, c.FullPath(), err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
