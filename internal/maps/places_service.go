package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"routetrip/internal/modules/trip"
	"routetrip/internal/types"
)

// biasRadiusMeters limits autocomplete bias around the device location.
const biasRadiusMeters = 50000

// PlacesService handles autocomplete search and geocoding of selected places.
type PlacesService struct {
	client   *maps.Client
	language string
	region   string
}

func NewPlacesService(client *maps.Client, cfg ClientConfig) *PlacesService {
	return &PlacesService{client: client, language: cfg.Language, region: cfg.Region}
}

// Search returns autocomplete predictions. Predictions carry no coordinates; they are
// resolved when the place is added as a stop.
func (s *PlacesService) Search(ctx context.Context, text string, bias *types.Point) ([]trip.Candidate, error) {
	r := &maps.PlaceAutocompleteRequest{
		Input:    text,
		Language: s.language,
	}
	if bias != nil && !bias.IsZero() {
		r.Location = latLng(bias.Latitude, bias.Longitude)
		r.Radius = biasRadiusMeters
	}

	resp, err := s.client.PlaceAutocomplete(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	out := make([]trip.Candidate, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		title := p.StructuredFormatting.MainText
		if title == "" {
			title = p.Description
		}
		out = append(out, trip.Candidate{
			PlaceID: p.PlaceID,
			Title:   title,
			Address: p.Description,
		})
	}
	return out, nil
}

// Resolve geocodes a candidate by place id, falling back to its address or title.
func (s *PlacesService) Resolve(ctx context.Context, c trip.Candidate) (types.Point, error) {
	var (
		results []maps.GeocodingResult
		err     error
	)
	switch {
	case c.PlaceID != "":
		results, err = s.client.ReverseGeocode(ctx, &maps.GeocodingRequest{PlaceID: c.PlaceID, Language: s.language})
	case c.Address != "" || c.Title != "":
		query := c.Address
		if query == "" {
			query = c.Title
		}
		results, err = s.client.Geocode(ctx, &maps.GeocodingRequest{Address: query, Region: s.region, Language: s.language})
	default:
		return types.Point{}, errors.New("nothing to geocode")
	}
	if err != nil {
		return types.Point{}, fmt.Errorf("geocoding api error: %w", err)
	}
	if len(results) == 0 {
		return types.Point{}, errors.New("no results")
	}
	loc := results[0].Geometry.Location
	return types.Point{Latitude: loc.Lat, Longitude: loc.Lng}, nil
}

// ReverseGeocode returns the formatted address at p, used to label start and end locations.
func (s *PlacesService) ReverseGeocode(ctx context.Context, p types.Point) (string, error) {
	results, err := s.client.ReverseGeocode(ctx, &maps.GeocodingRequest{LatLng: latLng(p.Latitude, p.Longitude), Language: s.language})
	if err != nil {
		return "", fmt.Errorf("geocoding api error: %w", err)
	}
	if len(results) == 0 {
		return "", errors.New("no results")
	}
	return results[0].FormattedAddress, nil
}
