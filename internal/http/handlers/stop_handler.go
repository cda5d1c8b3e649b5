// README: Stop handlers: add, duplicate, remove, patch and delivery outcomes.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"routetrip/internal/modules/trip"
	"routetrip/internal/types"
)

type addStopReq struct {
	PlaceID       string              `json:"placeId"`
	Title         string              `json:"title"`
	Address       string              `json:"address"`
	Coordinates   *types.Point        `json:"coordinates"`
	OrderHint     trip.OrderHint      `json:"orderHint"`
	StopType      trip.StopType       `json:"stopType"`
	PackageCount  int                 `json:"packageCount"`
	PackageFinder *trip.PackageFinder `json:"packageFinder"`
	ArrivalWindow *trip.ArrivalWindow `json:"arrivalWindow"`
	TimeAtStop    *trip.TimeAtStop    `json:"timeAtStop"`
	Notes         string              `json:"notes"`
}

type addStopResp struct {
	Trip trip.RouteTrip `json:"trip"`
	// Warning is set when the stop was kept without coordinates.
	Warning string `json:"warning,omitempty"`
}

func (h *TripHandler) AddStop(c *gin.Context) {
	var req addStopReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Coordinates == nil && req.PlaceID == "" && req.Address == "" && req.Title == "" {
		writeError(c, http.StatusBadRequest, "need coordinates, placeId, address or title")
		return
	}
	if req.PackageCount < 0 {
		writeError(c, http.StatusBadRequest, "invalid packageCount")
		return
	}
	s := trip.Stop{
		PlaceID:       req.PlaceID,
		Title:         req.Title,
		Address:       req.Address,
		OrderHint:     req.OrderHint,
		StopType:      req.StopType,
		PackageCount:  req.PackageCount,
		PackageFinder: req.PackageFinder,
		ArrivalWindow: req.ArrivalWindow,
		TimeAtStop:    req.TimeAtStop,
		Notes:         req.Notes,
	}
	if req.Coordinates != nil {
		s.Coordinates = *req.Coordinates
	}

	t, err := h.trips.AddStop(c.Request.Context(), trip.AddStopCommand{Stop: s})
	var unresolved *trip.GeocodingUnresolvedError
	switch {
	case err == nil:
		writeJSON(c, http.StatusCreated, addStopResp{Trip: t})
	case errors.As(err, &unresolved):
		writeJSON(c, http.StatusCreated, addStopResp{Trip: t, Warning: unresolved.Error()})
	default:
		writeTripError(c, err)
	}
}

func (h *TripHandler) DuplicateStop(c *gin.Context) {
	id, ok := pathID(c, "stopId")
	if !ok {
		return
	}
	respondTrip(c)(h.trips.DuplicateStop(c.Request.Context(), id))
}

func (h *TripHandler) RemoveStop(c *gin.Context) {
	id, ok := pathID(c, "stopId")
	if !ok {
		return
	}
	respondTrip(c)(h.trips.RemoveStop(c.Request.Context(), id))
}

func (h *TripHandler) UpdateStop(c *gin.Context) {
	id, ok := pathID(c, "stopId")
	if !ok {
		return
	}
	var patch trip.StopPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	respondTrip(c)(h.trips.UpdateStop(c.Request.Context(), id, patch))
}

type outcomeReq struct {
	Outcome trip.Outcome `json:"outcome"`
}

func (h *TripHandler) MarkOutcome(c *gin.Context) {
	id, ok := pathID(c, "stopId")
	if !ok {
		return
	}
	var req outcomeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !req.Outcome.Valid() {
		writeError(c, http.StatusBadRequest, "invalid outcome")
		return
	}
	respondTrip(c)(h.trips.MarkStopOutcome(c.Request.Context(), trip.OutcomeCommand{StopID: id, Outcome: req.Outcome}))
}

func (h *TripHandler) UndoOutcome(c *gin.Context) {
	id, ok := pathID(c, "stopId")
	if !ok {
		return
	}
	respondTrip(c)(h.trips.UndoStopOutcome(c.Request.Context(), id))
}
