// README: Live Gemini manifest import; skipped unless GEMINI_API_KEY is set.
package service

import (
	"context"
	"os"
	"testing"
	"time"

	"routetrip/internal/ai"
	"routetrip/internal/modules/trip"
	"routetrip/internal/session"
	"routetrip/internal/types"
)

type anywhereGeocoder struct{}

func (anywhereGeocoder) Search(context.Context, string, *types.Point) ([]trip.Candidate, error) {
	return nil, nil
}

func (anywhereGeocoder) Resolve(context.Context, trip.Candidate) (types.Point, error) {
	return types.Point{Latitude: 25.04, Longitude: 121.51}, nil
}

func TestLiveGeminiManifestImport(t *testing.T) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	provider, err := ai.NewGeminiProvider(ctx, key, os.Getenv("ROUTETRIP_GEMINI_MODEL"))
	if err != nil {
		t.Fatalf("gemini: %v", err)
	}
	defer provider.Close()

	svc := trip.NewService(trip.ServiceDeps{Sessions: session.NewMemoryStore(), Geocoder: anywhereGeocoder{}}, trip.Options{})
	importer := NewManifestImporter(provider, svc, "tw")
	res, err := importer.Import(ctx, `1. Chen Bakery, 12 Zhongshan Rd Sec 1, Taipei - 3 boxes, first stop
2. Pick up returns at Lin Hardware, 88 Minsheng E Rd
3. 45 Heping W Rd Sec 2 - 2 parcels`)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Added < 3 || len(res.Trip.Locations) != res.Added {
		t.Fatalf("expected 3 stops, got added=%d locations=%d", res.Added, len(res.Trip.Locations))
	}
	var pickups int
	for _, s := range res.Trip.Locations {
		if s.StopType == trip.StopPickup {
			pickups++
		}
	}
	if pickups == 0 {
		t.Logf("model did not classify the pickup: %+v", res.Trip.Locations)
	}
}
