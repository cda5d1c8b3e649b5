// README: Trip configuration manager: start, end policy, schedule and break window.
package trip

import (
	"time"

	"routetrip/internal/types"
)

// MaxBreakMinutes caps a configured break.
const MaxBreakMinutes = 120

// SetStartLocation replaces the start. A started trip is rolled back to not_started.
func SetStartLocation(t RouteTrip, loc *Location, now time.Time) (RouteTrip, error) {
	if t.TripStatus.Closed() {
		return t, ErrTripClosed
	}
	c := t.Config
	if loc != nil {
		l := *loc
		c.StartLocation = &l
	} else {
		c.StartLocation = nil
	}
	out := resetIfStarted(invalidate(WithConfig(t, c)))
	out.UpdatedAt = now
	return out, nil
}

// SetEndPolicy replaces the end policy. A started trip is rolled back to not_started.
func SetEndPolicy(t RouteTrip, p EndPolicy, now time.Time) (RouteTrip, error) {
	if t.TripStatus.Closed() {
		return t, ErrTripClosed
	}
	switch p.Kind {
	case EndRoundtrip, EndLastStop:
		p.Coordinates = nil
	case EndCustom:
		if p.Coordinates == nil || p.Coordinates.IsZero() {
			return t, ErrBadRequest
		}
		pt := *p.Coordinates
		p.Coordinates = &pt
	default:
		return t, ErrBadRequest
	}
	c := t.Config
	c.EndPolicy = p
	out := resetIfStarted(invalidate(WithConfig(t, c)))
	out.UpdatedAt = now
	return out, nil
}

// SetBreakWindow replaces the break (nil clears it). It invalidates optimization but
// never rolls back a started trip.
func SetBreakWindow(t RouteTrip, b *BreakWindow, now time.Time) (RouteTrip, error) {
	if t.TripStatus.Closed() {
		return t, ErrTripClosed
	}
	c := t.Config
	if b != nil {
		if b.DurationMinutes < 0 || b.DurationMinutes > MaxBreakMinutes {
			return t, ErrInvalidBreakWindow
		}
		if !b.Start.IsZero() && !b.End.IsZero() && !b.Start.Before(b.End) {
			return t, ErrInvalidBreakWindow
		}
		bw := *b
		c.BreakWindow = &bw
	} else {
		c.BreakWindow = nil
	}
	out := invalidate(WithConfig(t, c))
	out.UpdatedAt = now
	return out, nil
}

// SetSchedule sets the planned start/end time. Planning times do not affect the stop order.
func SetSchedule(t RouteTrip, start, end *time.Time, now time.Time) (RouteTrip, error) {
	if t.TripStatus.Closed() {
		return t, ErrTripClosed
	}
	if start != nil && end != nil && end.Before(*start) {
		return t, ErrBadRequest
	}
	c := t.Config
	c.StartTime = start
	c.EndTime = end
	out := WithConfig(t, c)
	out.UpdatedAt = now
	return out, nil
}

func Rename(t RouteTrip, name string, now time.Time) (RouteTrip, error) {
	if name == "" {
		return t, ErrBadRequest
	}
	out := t.Clone()
	out.RouteName = name
	out.UpdatedAt = now
	return out, nil
}

func resetIfStarted(t RouteTrip) RouteTrip {
	if t.TripStatus == StatusStarted && CanTransition(StatusStarted, StatusNotStarted) {
		t.TripStatus = StatusNotStarted
		t.StartTime = nil
		t.IsOptimized = false
	}
	return t
}

// originOf resolves the optimizer origin: the configured start, else the device fix.
func originOf(t RouteTrip, device *types.Point) (types.Point, bool) {
	if t.Config.StartLocation != nil && !t.Config.StartLocation.Coordinates.IsZero() {
		return t.Config.StartLocation.Coordinates, true
	}
	if device != nil && !device.IsZero() {
		return *device, true
	}
	return types.Point{}, false
}
