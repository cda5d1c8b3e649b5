// README: Trip error taxonomy shared by the engine, the service and the HTTP layer.
package trip

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStops      = errors.New("at least 2 stops are required to optimize")
	ErrRouteNotOptimized      = errors.New("route is not optimized")
	ErrNoLocations            = errors.New("trip has no locations")
	ErrOptimizationInProgress = errors.New("optimization already in progress")
	ErrOptimizationFailed     = errors.New("optimization failed")
	ErrOptimizationStale      = errors.New("optimization result discarded: trip changed while optimizing")
	ErrMissingOrigin          = errors.New("no start location or device location available")
	ErrTripClosed             = errors.New("trip is completed or cancelled")
	ErrInvalidTransition      = errors.New("invalid trip status transition")
	ErrInvalidBreakWindow     = errors.New("invalid break window")
	ErrNoCurrentTrip          = errors.New("no current trip")
	ErrTripNotFound           = errors.New("trip not found")
	ErrBadRequest             = errors.New("bad request")
)

// ErrTripCompleted is returned for edits on completed or cancelled trips.
var ErrTripCompleted = ErrTripClosed

// OptimizationFailedError wraps a provider, transport or response-shape failure.
type OptimizationFailedError struct {
	Cause error
}

func (e *OptimizationFailedError) Error() string {
	return fmt.Sprintf("%s: %v", ErrOptimizationFailed, e.Cause)
}

func (e *OptimizationFailedError) Unwrap() error {
	return e.Cause
}

func (e *OptimizationFailedError) Is(target error) bool {
	return target == ErrOptimizationFailed
}

// GeocodingUnresolvedError is soft: the stop is kept at (0,0) and resolution is retried before optimizing.
type GeocodingUnresolvedError struct {
	Query  string
	Reason string
}

func (e *GeocodingUnresolvedError) Error() string {
	return fmt.Sprintf("geocoding unresolved for %q: %s", e.Query, e.Reason)
}

func failed(cause error) error {
	return &OptimizationFailedError{Cause: cause}
}
