// README: Place search proxy with optional location bias.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"routetrip/internal/modules/trip"
	"routetrip/internal/types"
)

func (h *TripHandler) SearchPlaces(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		writeError(c, http.StatusBadRequest, "missing q")
		return
	}
	var bias *types.Point
	if lat, lng := c.Query("lat"), c.Query("lng"); lat != "" || lng != "" {
		la, errLat := strconv.ParseFloat(lat, 64)
		ln, errLng := strconv.ParseFloat(lng, 64)
		if errLat != nil || errLng != nil {
			writeError(c, http.StatusBadRequest, "invalid lat/lng")
			return
		}
		bias = &types.Point{Latitude: la, Longitude: ln}
	}
	candidates, err := h.trips.SearchPlaces(c.Request.Context(), q, bias)
	if err != nil {
		writeTripError(c, err)
		return
	}
	if candidates == nil {
		candidates = []trip.Candidate{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"candidates": candidates})
}
