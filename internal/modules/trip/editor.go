// README: Location list editor: add, duplicate, remove and update stops by identity.
package trip

import (
	"context"
	"errors"
	"time"

	"routetrip/internal/types"
)

// NewRouteName is used when adding a stop to a closed trip forks a fresh one.
const NewRouteName = "My New Route"

// Candidate is a place suggestion produced by a geocoding/autocomplete provider.
type Candidate struct {
	PlaceID     string      `json:"placeId,omitempty"`
	Title       string      `json:"title"`
	Address     string      `json:"address,omitempty"`
	Coordinates types.Point `json:"coordinates"`
}

type Geocoder interface {
	Search(ctx context.Context, text string, bias *types.Point) ([]Candidate, error)
	Resolve(ctx context.Context, c Candidate) (types.Point, error)
}

type Editor struct {
	geocoder Geocoder
}

func NewEditor(geocoder Geocoder) *Editor {
	return &Editor{geocoder: geocoder}
}

func candidateOf(s Stop) Candidate {
	return Candidate{PlaceID: s.PlaceID, Title: s.Title, Address: s.Address, Coordinates: s.Coordinates}
}

// AddStop appends a new stop built from proto and assigns it a fresh id.
// Zero coordinates get a single resolution attempt. When that fails the returned trip
// still carries the stop at (0,0) and the error is a *GeocodingUnresolvedError.
// Adding to a completed or cancelled trip starts a new single-stop trip instead.
func (e *Editor) AddStop(ctx context.Context, t RouteTrip, proto Stop, now time.Time) (RouteTrip, error) {
	s, err := e.PrepareStop(ctx, proto)
	var soft *GeocodingUnresolvedError
	if err != nil && !errors.As(err, &soft) {
		return t, err
	}
	return AppendStop(t, s, now), err
}

// PrepareStop validates proto, assigns a fresh id and resolves zero coordinates once.
// It does not touch any trip, so callers can run it outside their trip lock.
func (e *Editor) PrepareStop(ctx context.Context, proto Stop) (Stop, error) {
	s := proto
	s.UniqueID = types.NewID()
	s.Status = ""
	s.StatusUpdateTime = nil
	if s.OrderHint == "" {
		s.OrderHint = OrderAuto
	}
	if s.StopType == "" {
		s.StopType = StopDelivery
	}
	if !s.OrderHint.Valid() || !s.StopType.Valid() {
		return Stop{}, ErrBadRequest
	}
	if !s.Coordinates.IsZero() {
		return s, nil
	}
	p, err := e.resolve(ctx, candidateOf(s))
	if err != nil {
		return s, err
	}
	s.Coordinates = p
	return s, nil
}

// AppendStop adds a prepared stop, forking a fresh trip when t is closed.
func AppendStop(t RouteTrip, s Stop, now time.Time) RouteTrip {
	if t.TripStatus.Closed() {
		t = NewTrip(NewRouteName, now)
	}
	out := invalidate(WithStop(t, s))
	out.UpdatedAt = now
	return out
}

func (e *Editor) resolve(ctx context.Context, c Candidate) (types.Point, error) {
	query := c.Address
	if query == "" {
		query = c.Title
	}
	if e.geocoder == nil {
		return types.Point{}, &GeocodingUnresolvedError{Query: query, Reason: "no geocoder configured"}
	}
	p, err := e.geocoder.Resolve(ctx, c)
	if err != nil {
		return types.Point{}, &GeocodingUnresolvedError{Query: query, Reason: err.Error()}
	}
	if p.IsZero() {
		return types.Point{}, &GeocodingUnresolvedError{Query: query, Reason: "no coordinates returned"}
	}
	return p, nil
}

// DuplicateStop appends a copy of the stop under a new id. The copy carries no outcome.
func DuplicateStop(t RouteTrip, id types.ID, now time.Time) (RouteTrip, error) {
	if t.TripStatus.Closed() {
		return t, ErrTripClosed
	}
	src, ok := t.Stop(id)
	if !ok {
		return t, nil
	}
	dup := src
	dup.UniqueID = types.NewID()
	dup.Status = ""
	dup.StatusUpdateTime = nil

	out := invalidate(WithStop(t, dup))
	out.UpdatedAt = now
	return out, nil
}

// RemoveStop drops the stop. Unknown ids are a no-op so repeated calls are idempotent.
func RemoveStop(t RouteTrip, id types.ID, now time.Time) (RouteTrip, error) {
	if t.TripStatus.Closed() {
		return t, ErrTripClosed
	}
	if t.indexOf(id) < 0 {
		return t, nil
	}
	out := invalidate(WithoutStop(t, id))
	out.UpdatedAt = now
	return out, nil
}

// StopPatch holds optional field updates; nil fields are left untouched.
type StopPatch struct {
	Coordinates   *types.Point   `json:"coordinates,omitempty"`
	OrderHint     *OrderHint     `json:"orderHint,omitempty"`
	StopType      *StopType      `json:"stopType,omitempty"`
	Title         *string        `json:"title,omitempty"`
	Address       *string        `json:"address,omitempty"`
	PlaceID       *string        `json:"placeId,omitempty"`
	PackageCount  *int           `json:"packageCount,omitempty"`
	PackageFinder *PackageFinder `json:"packageFinder,omitempty"`
	ArrivalWindow *ArrivalWindow `json:"arrivalWindow,omitempty"`
	TimeAtStop    *TimeAtStop    `json:"timeAtStop,omitempty"`
	Notes         *string        `json:"notes,omitempty"`
}

func (p StopPatch) apply(s Stop) Stop {
	if p.Coordinates != nil {
		s.Coordinates = *p.Coordinates
	}
	if p.OrderHint != nil {
		s.OrderHint = *p.OrderHint
	}
	if p.StopType != nil {
		s.StopType = *p.StopType
	}
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Address != nil {
		s.Address = *p.Address
	}
	if p.PlaceID != nil {
		s.PlaceID = *p.PlaceID
	}
	if p.PackageCount != nil {
		s.PackageCount = *p.PackageCount
	}
	if p.PackageFinder != nil {
		s.PackageFinder = p.PackageFinder
	}
	if p.ArrivalWindow != nil {
		s.ArrivalWindow = p.ArrivalWindow
	}
	if p.TimeAtStop != nil {
		s.TimeAtStop = p.TimeAtStop
	}
	if p.Notes != nil {
		s.Notes = *p.Notes
	}
	return s
}

// UpdateStop merges patch into the stop. Coordinate or order hint changes invalidate
// optimization; descriptive-only patches leave it intact.
func UpdateStop(t RouteTrip, id types.ID, patch StopPatch, now time.Time) (RouteTrip, error) {
	if t.TripStatus.Closed() {
		return t, ErrTripClosed
	}
	if patch.OrderHint != nil && !patch.OrderHint.Valid() {
		return t, ErrBadRequest
	}
	if patch.StopType != nil && !patch.StopType.Valid() {
		return t, ErrBadRequest
	}
	i := t.indexOf(id)
	if i < 0 {
		return t, nil
	}
	before := t.Locations[i]
	after := patch.apply(before)

	out := withStopAt(t, i, after)
	if before.Coordinates != after.Coordinates || before.OrderHint != after.OrderHint {
		out = invalidate(out)
	}
	out.UpdatedAt = now
	return out, nil
}
