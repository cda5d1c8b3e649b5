// README: Preferences handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"routetrip/internal/modules/trip"
)

func (h *TripHandler) Preferences(c *gin.Context) {
	writeJSON(c, http.StatusOK, h.trips.Preferences(c.Request.Context()))
}

func (h *TripHandler) SetPreferences(c *gin.Context) {
	var req trip.Preferences
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.trips.SetPreferences(c.Request.Context(), req)
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}
