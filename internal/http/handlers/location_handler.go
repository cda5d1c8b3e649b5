// README: Device location handlers; the last fix is the optimization origin fallback.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"routetrip/internal/http/middleware"
	"routetrip/internal/modules/location"
	"routetrip/internal/types"
)

type LocationHandler struct {
	location *location.Service
}

func NewLocationHandler(svc *location.Service) *LocationHandler {
	return &LocationHandler{location: svc}
}

type locationReq struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	RecordedAt time.Time `json:"recordedAt"`
}

func (h *LocationHandler) Update(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	// Only drivers report positions when auth is on.
	if uid := middleware.CallerUID(c); uid != "" && middleware.CallerRole(c) != "driver" {
		writeError(c, http.StatusForbidden, "forbidden: driver role required")
		return
	}
	res, err := h.location.Update(c.Request.Context(), location.Update{
		Position:   types.Point{Latitude: req.Latitude, Longitude: req.Longitude},
		Accuracy:   req.Accuracy,
		RecordedAt: req.RecordedAt,
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (h *LocationHandler) Current(c *gin.Context) {
	fix, ok, err := h.location.Current(c.Request.Context(), "")
	if err != nil {
		writeTripError(c, err)
		return
	}
	if !ok {
		writeError(c, http.StatusNotFound, "no device location")
		return
	}
	writeJSON(c, http.StatusOK, fix)
}
