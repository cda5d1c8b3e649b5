// README: Fingerprint of optimization-relevant inputs and eager staleness invalidation.
package trip

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"routetrip/internal/types"
)

type fingerprintStop struct {
	ID   types.ID    `json:"id"`
	At   types.Point `json:"at"`
	Hint OrderHint   `json:"hint"`
}

type fingerprintInput struct {
	Stops []fingerprintStop `json:"stops"`
	Start *types.Point      `json:"start"`
	End   EndPolicy         `json:"end"`
	Break *BreakWindow      `json:"break"`
}

// ComputeFingerprint hashes the stop identity set (with each stop's coordinates and
// order hint), the start coordinates, the end policy and the break window. Stop order,
// descriptive fields and delivery outcomes do not contribute.
func ComputeFingerprint(t RouteTrip) string {
	in := fingerprintInput{
		Stops: make([]fingerprintStop, 0, len(t.Locations)),
		End:   EndPolicy{Kind: t.Config.EndPolicy.Kind},
		Break: t.Config.BreakWindow,
	}
	for _, s := range t.Locations {
		hint := s.OrderHint
		if hint == "" {
			hint = OrderAuto
		}
		in.Stops = append(in.Stops, fingerprintStop{ID: s.UniqueID, At: s.Coordinates, Hint: hint})
	}
	sort.Slice(in.Stops, func(i, j int) bool { return in.Stops[i].ID < in.Stops[j].ID })
	if t.Config.StartLocation != nil {
		p := t.Config.StartLocation.Coordinates
		in.Start = &p
	}
	if in.End.Kind == "" {
		in.End.Kind = EndRoundtrip
	}
	if in.End.Kind == EndCustom {
		in.End.Coordinates = t.Config.EndPolicy.Coordinates
	}

	// Marshal of plain structs and sorted slices cannot fail.
	b, _ := json.Marshal(in)
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

func IsStale(t RouteTrip) bool {
	return t.IsOptimized && ComputeFingerprint(t) != t.OptimizationFingerprint
}

// Revalidate clears IsOptimized when the trip no longer matches its captured fingerprint.
func Revalidate(t RouteTrip) RouteTrip {
	if IsStale(t) {
		t.IsOptimized = false
	}
	return t
}
