package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"routetrip/internal/modules/trip"
)

// RouteService asks the Directions API for an optimized waypoint order.
type RouteService struct {
	client   *maps.Client
	language string
	region   string
}

func NewRouteService(client *maps.Client, cfg ClientConfig) *RouteService {
	return &RouteService{client: client, language: cfg.Language, region: cfg.Region}
}

// OptimizeOrder sends origin, destination and the auto waypoints with optimize:true.
// It assumes driving mode.
func (s *RouteService) OptimizeOrder(ctx context.Context, req trip.OptimizeRequest) (*trip.OptimizeResult, error) {
	r := &maps.DirectionsRequest{
		Origin:      req.Origin.String(),
		Destination: req.Destination.String(),
		Mode:        maps.TravelModeDriving,
		Optimize:    true,
		Language:    s.language,
		Region:      s.region,
	}
	for _, wp := range req.Waypoints {
		r.Waypoints = append(r.Waypoints, wp.String())
	}
	if req.AvoidTolls {
		r.Avoid = []maps.Avoid{maps.AvoidTolls}
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 {
		return nil, errors.New("no route found")
	}

	route := routes[0]
	order := route.WaypointOrder
	if len(order) == 0 && len(req.Waypoints) == 1 {
		order = []int{0}
	}
	out := &trip.OptimizeResult{
		Order:    append([]int(nil), order...),
		Legs:     make([]trip.Leg, 0, len(route.Legs)),
		Polyline: route.OverviewPolyline.Points,
	}
	for _, leg := range route.Legs {
		if leg == nil {
			continue
		}
		out.Legs = append(out.Legs, trip.Leg{
			DistanceMeters:  leg.Distance.Meters,
			DurationSeconds: int(leg.Duration.Seconds()),
		})
	}
	return out, nil
}
