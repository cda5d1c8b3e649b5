// README: Manifest importer turns AI-parsed manifest entries into stops on the current trip.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"routetrip/internal/ai"
	"routetrip/internal/modules/trip"
)

// MaxManifestStops caps a single import.
const MaxManifestStops = 200

var ErrEmptyManifest = errors.New("manifest contains no stops")

// StopAdder is the part of the trip service the importer drives.
type StopAdder interface {
	AddStop(ctx context.Context, cmd trip.AddStopCommand) (trip.RouteTrip, error)
}

type ManifestImporter struct {
	parser ai.ManifestParser
	trips  StopAdder
	region string
	now    func() time.Time
}

func NewManifestImporter(parser ai.ManifestParser, trips StopAdder, region string) *ManifestImporter {
	return &ManifestImporter{parser: parser, trips: trips, region: region, now: time.Now}
}

type ImportResult struct {
	Trip  trip.RouteTrip `json:"trip"`
	Added int            `json:"added"`
	// Unresolved lists addresses kept at (0,0) because geocoding failed.
	Unresolved []string `json:"unresolved"`
}

// Import parses text and adds every entry as a stop, in manifest order.
func (m *ManifestImporter) Import(ctx context.Context, text string) (*ImportResult, error) {
	entries, err := m.parser.ParseManifest(ctx, text, ai.ManifestHints{
		Region:      m.region,
		CurrentTime: m.now().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("[import] AI Error: %v", err)
		return nil, fmt.Errorf("ai error: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyManifest
	}
	if len(entries) > MaxManifestStops {
		entries = entries[:MaxManifestStops]
	}

	res := &ImportResult{Unresolved: []string{}}
	for _, e := range entries {
		out, err := m.trips.AddStop(ctx, trip.AddStopCommand{Stop: stopFromEntry(e)})
		var soft *trip.GeocodingUnresolvedError
		switch {
		case err == nil:
		case errors.As(err, &soft):
			res.Unresolved = append(res.Unresolved, soft.Query)
		default:
			return res, fmt.Errorf("add stop %q: %w", e.Address, err)
		}
		res.Trip = out
		res.Added++
	}
	return res, nil
}

func stopFromEntry(e ai.ManifestEntry) trip.Stop {
	s := trip.Stop{
		Title:        e.Title,
		Address:      e.Address,
		PackageCount: e.PackageCount,
		Notes:        e.Notes,
		StopType:     trip.StopType(e.StopType),
		OrderHint:    trip.OrderHint(e.OrderHint),
	}
	if !s.StopType.Valid() {
		s.StopType = trip.StopDelivery
	}
	if !s.OrderHint.Valid() {
		s.OrderHint = trip.OrderAuto
	}
	if s.PackageCount < 0 {
		s.PackageCount = 0
	}
	if e.ArrivalFrom != "" || e.ArrivalTo != "" {
		s.ArrivalWindow = &trip.ArrivalWindow{From: e.ArrivalFrom, To: e.ArrivalTo}
	}
	return s
}
