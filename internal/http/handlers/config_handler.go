// README: Trip configuration handlers: start location, end policy, break and schedule.
package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"routetrip/internal/modules/trip"
	"routetrip/internal/types"
)

// AddressLookup labels a start location that arrived without an address.
type AddressLookup interface {
	ReverseGeocode(ctx context.Context, p types.Point) (string, error)
}

type ConfigHandler struct {
	trips   *trip.Service
	lookup  AddressLookup
	timeout time.Duration
}

// NewConfigHandler accepts a nil lookup; start locations then keep whatever address the client sent.
func NewConfigHandler(svc *trip.Service, lookup AddressLookup) *ConfigHandler {
	return &ConfigHandler{trips: svc, lookup: lookup, timeout: 5 * time.Second}
}

type startReq struct {
	// A null or missing coordinates clears the start; optimization then falls back to the device location.
	Coordinates *types.Point `json:"coordinates"`
	Address     string       `json:"address"`
}

func (h *ConfigHandler) SetStart(c *gin.Context) {
	var req startReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	var loc *trip.Location
	if req.Coordinates != nil {
		if req.Coordinates.IsZero() {
			writeError(c, http.StatusBadRequest, "invalid coordinates")
			return
		}
		loc = &trip.Location{Coordinates: *req.Coordinates, Address: req.Address}
		if loc.Address == "" && h.lookup != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
			addr, err := h.lookup.ReverseGeocode(ctx, loc.Coordinates)
			cancel()
			if err != nil {
				log.Printf("[geocoding] reverse %s: %v", loc.Coordinates, err)
			} else {
				loc.Address = addr
			}
		}
	}
	respondTrip(c)(h.trips.SetStartLocation(c.Request.Context(), loc))
}

func (h *ConfigHandler) SetEnd(c *gin.Context) {
	var req trip.EndPolicy
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	respondTrip(c)(h.trips.SetEndPolicy(c.Request.Context(), req))
}

type breakReq struct {
	// Clear removes the break window; the other fields are ignored.
	Clear           bool      `json:"clear"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"durationMinutes"`
}

func (h *ConfigHandler) SetBreak(c *gin.Context) {
	var req breakReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	var b *trip.BreakWindow
	if !req.Clear {
		b = &trip.BreakWindow{Start: req.Start, End: req.End, DurationMinutes: req.DurationMinutes}
	}
	respondTrip(c)(h.trips.SetBreakWindow(c.Request.Context(), b))
}

type scheduleReq struct {
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
}

func (h *ConfigHandler) SetSchedule(c *gin.Context) {
	var req scheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	respondTrip(c)(h.trips.SetSchedule(c.Request.Context(), req.StartTime, req.EndTime))
}

func respondTrip(c *gin.Context) func(trip.RouteTrip, error) {
	return func(t trip.RouteTrip, err error) {
		if err != nil {
			writeTripError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, t)
	}
}
