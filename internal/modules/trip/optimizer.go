// README: Optimization orchestrator: partition, provider request, validation and merge.
package trip

import (
	"context"
	"errors"
	"fmt"

	"routetrip/internal/types"
)

// Optimizer is the external routing provider. Order is a permutation of waypoint indices.
type Optimizer interface {
	OptimizeOrder(ctx context.Context, req OptimizeRequest) (*OptimizeResult, error)
}

type OptimizeRequest struct {
	Origin      types.Point
	Destination types.Point
	Waypoints   []types.Point
	AvoidTolls  bool
}

type Leg struct {
	DistanceMeters  int
	DurationSeconds int
}

type OptimizeResult struct {
	Order    []int
	Legs     []Leg
	Polyline string
}

// Plan is the request-time snapshot of an optimization. Fingerprint is compared against
// the trip when the provider answers.
type Plan struct {
	TripID      types.ID
	Fingerprint string
	First       []types.ID
	Auto        []types.ID
	Last        []types.ID
	Resolved    map[types.ID]types.Point
	Request     OptimizeRequest
}

// NeedsProvider reports whether the auto segment has to be sent to the optimizer.
func (p *Plan) NeedsProvider() bool {
	return len(p.Auto) > 0
}

// BeginOptimization checks preconditions and marks the trip as optimizing.
func BeginOptimization(t RouteTrip) (RouteTrip, error) {
	if t.TripStatus.Closed() {
		return t, ErrTripClosed
	}
	if t.IsOptimizing {
		return t, ErrOptimizationInProgress
	}
	if len(t.Locations) < 2 {
		return t, ErrInsufficientStops
	}
	out := t.Clone()
	out.IsOptimizing = true
	out.IsOptimized = false
	return out, nil
}

// Unresolved lists stops still waiting for coordinates.
func Unresolved(t RouteTrip) []Stop {
	var out []Stop
	for _, s := range t.Locations {
		if s.Coordinates.IsZero() {
			out = append(out, s)
		}
	}
	return out
}

func applyResolved(t RouteTrip, resolved map[types.ID]types.Point) RouteTrip {
	if len(resolved) == 0 {
		return t
	}
	out := t.Clone()
	for i, s := range out.Locations {
		if p, ok := resolved[s.UniqueID]; ok && s.Coordinates.IsZero() {
			out.Locations[i].Coordinates = p
		}
	}
	return out
}

func partition(stops []Stop) (first, auto, last []Stop) {
	for _, s := range stops {
		switch s.OrderHint {
		case OrderFirst:
			first = append(first, s)
		case OrderLast:
			last = append(last, s)
		default:
			auto = append(auto, s)
		}
	}
	return first, auto, last
}

func ids(stops []Stop) []types.ID {
	out := make([]types.ID, len(stops))
	for i, s := range stops {
		out[i] = s.UniqueID
	}
	return out
}

// BuildPlan partitions the stops, resolves origin and destination and prepares the provider
// request. resolved carries coordinates found by a lazy geocoding retry.
func BuildPlan(t RouteTrip, device *types.Point, resolved map[types.ID]types.Point, avoidTolls bool) (*Plan, error) {
	t = applyResolved(t, resolved)
	if missing := Unresolved(t); len(missing) > 0 {
		s := missing[0]
		return nil, failed(&GeocodingUnresolvedError{Query: firstNonEmpty(s.Address, s.Title, string(s.UniqueID)), Reason: "stop has no coordinates"})
	}

	origin, ok := originOf(t, device)
	if !ok {
		return nil, ErrMissingOrigin
	}

	first, auto, last := partition(t.Locations)

	var dest types.Point
	switch t.Config.EndPolicy.Kind {
	case EndCustom:
		if t.Config.EndPolicy.Coordinates == nil {
			return nil, ErrBadRequest
		}
		dest = *t.Config.EndPolicy.Coordinates
	case EndLastStop:
		// Positional default taken from pre-optimization order, not from the optimizer output.
		switch {
		case len(last) > 0:
			dest = last[len(last)-1].Coordinates
		case len(auto) > 0:
			dest = auto[len(auto)-1].Coordinates
		default:
			dest = first[len(first)-1].Coordinates
		}
	default:
		dest = origin
	}

	waypoints := make([]types.Point, len(auto))
	for i, s := range auto {
		waypoints[i] = s.Coordinates
	}

	return &Plan{
		TripID:      t.TripID,
		Fingerprint: ComputeFingerprint(t),
		First:       ids(first),
		Auto:        ids(auto),
		Last:        ids(last),
		Resolved:    resolved,
		Request: OptimizeRequest{
			Origin:      origin,
			Destination: dest,
			Waypoints:   waypoints,
			AvoidTolls:  avoidTolls,
		},
	}, nil
}

// ValidateResult rejects non-permutations and missing results.
func ValidateResult(res *OptimizeResult, waypoints int) error {
	if res == nil {
		return errors.New("empty optimizer response")
	}
	if len(res.Order) != waypoints {
		return fmt.Errorf("malformed order: got %d indices, want %d", len(res.Order), waypoints)
	}
	seen := make([]bool, waypoints)
	for _, idx := range res.Order {
		if idx < 0 || idx >= waypoints {
			return fmt.Errorf("malformed order: index %d out of range", idx)
		}
		if seen[idx] {
			return fmt.Errorf("malformed order: duplicate index %d", idx)
		}
		seen[idx] = true
	}
	return nil
}

// FinishOptimization applies the provider outcome to cur, the trip as it is now.
// isOptimizing is always cleared. The result is discarded when cur no longer matches
// the request-time fingerprint or has been completed or cancelled meanwhile.
// On failure the stop order is left as is.
func FinishOptimization(cur RouteTrip, plan *Plan, res *OptimizeResult, callErr error) (RouteTrip, error) {
	out := cur.Clone()
	out.IsOptimizing = false

	if plan == nil || out.TripID != plan.TripID {
		return out, ErrOptimizationStale
	}
	// Completed and cancelled trips are final; late results are dropped untouched.
	if out.TripStatus.Closed() {
		return out, ErrOptimizationStale
	}
	out = applyResolved(out, plan.Resolved)
	if ComputeFingerprint(out) != plan.Fingerprint {
		out.IsOptimized = false
		return out, ErrOptimizationStale
	}
	if callErr != nil {
		out.IsOptimized = false
		var fe *OptimizationFailedError
		if errors.As(callErr, &fe) {
			return out, callErr
		}
		return out, failed(callErr)
	}

	var distance, duration int
	order := make([]int, len(plan.Auto))
	if plan.NeedsProvider() {
		if err := ValidateResult(res, len(plan.Auto)); err != nil {
			out.IsOptimized = false
			return out, failed(err)
		}
		copy(order, res.Order)
		for _, leg := range res.Legs {
			distance += leg.DistanceMeters
			duration += leg.DurationSeconds
		}
	}

	byID := make(map[types.ID]Stop, len(out.Locations))
	for _, s := range out.Locations {
		byID[s.UniqueID] = s
	}
	merged := make([]Stop, 0, len(out.Locations))
	for _, id := range plan.First {
		merged = append(merged, byID[id])
	}
	for _, idx := range order {
		merged = append(merged, byID[plan.Auto[idx]])
	}
	for _, id := range plan.Last {
		merged = append(merged, byID[id])
	}

	out.Locations = merged
	out.DistanceMeters = distance
	out.DurationSeconds = duration
	out.Polyline = ""
	if res != nil && plan.NeedsProvider() {
		out.Polyline = res.Polyline
	}
	out.IsOptimized = true
	out.OptimizationFingerprint = ComputeFingerprint(out)
	return out, nil
}

// AbortOptimization clears the in-flight flag when no provider call could be made.
// Coordinates resolved so far are kept.
func AbortOptimization(cur RouteTrip, tripID types.ID, resolved map[types.ID]types.Point, cause error) (RouteTrip, error) {
	out := cur.Clone()
	out.IsOptimizing = false
	if out.TripID != tripID {
		return out, cause
	}
	out = applyResolved(out, resolved)
	out.IsOptimized = false
	return out, cause
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
