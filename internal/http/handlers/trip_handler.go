// README: Trip handlers: create, select, rename, optimize and the execution lifecycle.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"routetrip/internal/modules/trip"
)

type TripHandler struct {
	trips *trip.Service
}

func NewTripHandler(svc *trip.Service) *TripHandler {
	return &TripHandler{trips: svc}
}

type createTripReq struct {
	Name string `json:"name"`
	// Date is YYYY-MM-DD; empty means today.
	Date string `json:"date"`
}

func (h *TripHandler) Create(c *gin.Context) {
	var req createTripReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	var date time.Time
	if req.Date != "" {
		d, err := time.ParseInLocation(time.DateOnly, req.Date, time.Local)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
		date = d
	}
	t, err := h.trips.NewTrip(c.Request.Context(), trip.NewTripCommand{Name: strings.TrimSpace(req.Name), Date: date})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, t)
}

func (h *TripHandler) Current(c *gin.Context) {
	t, err := h.trips.Current(c.Request.Context())
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

type renameReq struct {
	Name string `json:"name"`
}

func (h *TripHandler) Rename(c *gin.Context) {
	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(c, http.StatusBadRequest, "missing name")
		return
	}
	respondTrip(c)(h.trips.Rename(c.Request.Context(), name))
}

func (h *TripHandler) Select(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	respondTrip(c)(h.trips.SelectTrip(c.Request.Context(), id))
}

func (h *TripHandler) History(c *gin.Context) {
	history, err := h.trips.History(c.Request.Context())
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"trips": history})
}

func (h *TripHandler) Archive(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	trips, err := h.trips.Archived(c.Request.Context(), limit)
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"trips": trips})
}

func (h *TripHandler) ArchivedTrip(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	respondTrip(c)(h.trips.ArchivedTrip(c.Request.Context(), id))
}

func (h *TripHandler) Progress(c *gin.Context) {
	t, err := h.trips.Current(c.Request.Context())
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, trip.ProgressOf(t))
}

// Optimize blocks until the provider answers or the optimizer timeout fires.
func (h *TripHandler) Optimize(c *gin.Context) {
	respondTrip(c)(h.trips.Optimize(c.Request.Context()))
}

func (h *TripHandler) StartTrip(c *gin.Context) {
	respondTrip(c)(h.trips.Start(c.Request.Context()))
}

func (h *TripHandler) Complete(c *gin.Context) {
	respondTrip(c)(h.trips.Complete(c.Request.Context()))
}

func (h *TripHandler) Cancel(c *gin.Context) {
	respondTrip(c)(h.trips.Cancel(c.Request.Context()))
}
