// README: Trip execution state machine and per-stop delivery outcomes.
package trip

import (
	"time"

	"routetrip/internal/types"
)

// Start moves a not-started trip to started. The route must be optimized and non-empty.
func Start(t RouteTrip, now time.Time) (RouteTrip, error) {
	if !t.IsOptimized || IsStale(t) {
		return t, ErrRouteNotOptimized
	}
	if len(t.Locations) == 0 {
		return t, ErrNoLocations
	}
	if !CanTransition(t.TripStatus, StatusStarted) {
		return t, ErrInvalidTransition
	}
	out := t.Clone()
	out.TripStatus = StatusStarted
	start := now
	out.StartTime = &start
	out.EndTime = nil
	out.UpdatedAt = now
	return out, nil
}

// MarkStopOutcome records a delivery outcome on a started trip. Unknown stops are a no-op.
func MarkStopOutcome(t RouteTrip, id types.ID, outcome Outcome, now time.Time) (RouteTrip, error) {
	if !outcome.Valid() {
		return t, ErrBadRequest
	}
	if t.TripStatus != StatusStarted {
		return t, ErrInvalidTransition
	}
	i := t.indexOf(id)
	if i < 0 {
		return t, nil
	}
	s := t.Locations[i]
	s.Status = outcome
	at := now
	s.StatusUpdateTime = &at
	out := withStopAt(t, i, s)
	out.UpdatedAt = now
	return out, nil
}

// UndoStopOutcome clears a recorded outcome.
func UndoStopOutcome(t RouteTrip, id types.ID, now time.Time) (RouteTrip, error) {
	if t.TripStatus != StatusStarted {
		return t, ErrInvalidTransition
	}
	i := t.indexOf(id)
	if i < 0 {
		return t, nil
	}
	s := t.Locations[i]
	s.Status = ""
	s.StatusUpdateTime = nil
	out := withStopAt(t, i, s)
	out.UpdatedAt = now
	return out, nil
}

// Complete closes a started trip regardless of how many stops have an outcome.
func Complete(t RouteTrip, now time.Time) (RouteTrip, error) {
	if !CanTransition(t.TripStatus, StatusCompleted) {
		return t, ErrInvalidTransition
	}
	out := t.Clone()
	out.TripStatus = StatusCompleted
	end := now
	out.EndTime = &end
	out.IsOptimizing = false
	out.UpdatedAt = now
	return out, nil
}

func Cancel(t RouteTrip, now time.Time) (RouteTrip, error) {
	if !CanTransition(t.TripStatus, StatusCancelled) {
		return t, ErrInvalidTransition
	}
	out := t.Clone()
	out.TripStatus = StatusCancelled
	end := now
	out.EndTime = &end
	out.IsOptimizing = false
	out.UpdatedAt = now
	return out, nil
}

// Progress counts stops by outcome; Pending has none yet.
type Progress struct {
	Total     int `json:"total"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	PickedUp  int `json:"pickedUp"`
	Pending   int `json:"pending"`
}

func ProgressOf(t RouteTrip) Progress {
	p := Progress{Total: len(t.Locations)}
	for _, s := range t.Locations {
		switch s.Status {
		case OutcomeDelivered:
			p.Delivered++
		case OutcomeFailed:
			p.Failed++
		case OutcomePickedUp:
			p.PickedUp++
		default:
			p.Pending++
		}
	}
	return p
}
