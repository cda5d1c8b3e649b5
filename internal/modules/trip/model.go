// README: RouteTrip aggregate, stop model and the trip execution status flow.
package trip

import (
	"time"

	"routetrip/internal/types"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusStarted    Status = "started"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// AllowedTransitions represents the trip execution flow as code.
// started -> not_started is the forced rollback after a start/end change.
var AllowedTransitions = map[Status][]Status{
	StatusNotStarted: {StatusStarted, StatusCancelled},
	StatusStarted:    {StatusCompleted, StatusCancelled, StatusNotStarted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Closed reports whether the trip reached a terminal status.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type OrderHint string

const (
	OrderFirst OrderHint = "first"
	OrderAuto  OrderHint = "auto"
	OrderLast  OrderHint = "last"
)

func (h OrderHint) Valid() bool {
	return h == OrderFirst || h == OrderAuto || h == OrderLast
}

type StopType string

const (
	StopDelivery StopType = "delivery"
	StopPickup   StopType = "pickup"
)

func (t StopType) Valid() bool {
	return t == StopDelivery || t == StopPickup
}

type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
	OutcomePickedUp  Outcome = "pickuped"
)

func (o Outcome) Valid() bool {
	return o == OutcomeDelivered || o == OutcomeFailed || o == OutcomePickedUp
}

type PackageFinder struct {
	Size     string `json:"size,omitempty"`
	Type     string `json:"type,omitempty"`
	Position string `json:"position,omitempty"`
}

type ArrivalWindow struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

type TimeAtStop struct {
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

type Stop struct {
	UniqueID    types.ID    `json:"uniqueId"`
	Coordinates types.Point `json:"coordinates"`
	OrderHint   OrderHint   `json:"orderHint"`
	StopType    StopType    `json:"stopType"`

	Status           Outcome    `json:"status,omitempty"`
	StatusUpdateTime *time.Time `json:"statusUpdateTime,omitempty"`

	// Descriptive fields. Carried through unchanged, never optimization-relevant.
	Title         string         `json:"title,omitempty"`
	Address       string         `json:"address,omitempty"`
	PlaceID       string         `json:"placeId,omitempty"`
	PackageCount  int            `json:"packageCount,omitempty"`
	PackageFinder *PackageFinder `json:"packageFinder,omitempty"`
	ArrivalWindow *ArrivalWindow `json:"arrivalWindow,omitempty"`
	TimeAtStop    *TimeAtStop    `json:"timeAtStop,omitempty"`
	Notes         string         `json:"notes,omitempty"`
}

type EndKind string

const (
	EndRoundtrip EndKind = "roundtrip"
	EndCustom    EndKind = "custom"
	EndLastStop  EndKind = "lastStop"
)

// EndPolicy is a tagged choice; Coordinates is only meaningful for EndCustom.
type EndPolicy struct {
	Kind        EndKind      `json:"kind"`
	Coordinates *types.Point `json:"coordinates,omitempty"`
	Address     string       `json:"address,omitempty"`
}

type Location struct {
	Coordinates types.Point `json:"coordinates"`
	Address     string      `json:"address,omitempty"`
}

type BreakWindow struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"durationMinutes"`
}

type Config struct {
	StartLocation *Location    `json:"startLocation,omitempty"`
	EndPolicy     EndPolicy    `json:"endPolicy"`
	StartTime     *time.Time   `json:"startTime,omitempty"`
	EndTime       *time.Time   `json:"endTime,omitempty"`
	BreakWindow   *BreakWindow `json:"breakWindow,omitempty"`
}

func DefaultConfig() Config {
	return Config{EndPolicy: EndPolicy{Kind: EndRoundtrip}}
}

type RouteTrip struct {
	TripID    types.ID  `json:"tripId"`
	RouteName string    `json:"routeName"`
	Date      time.Time `json:"date"`
	Locations []Stop    `json:"locations"`
	Config    Config    `json:"config"`

	IsOptimized     bool   `json:"isOptimized"`
	IsOptimizing    bool   `json:"isOptimizing"`
	DistanceMeters  int    `json:"distanceMeters"`
	DurationSeconds int    `json:"durationSeconds"`
	Polyline        string `json:"polyline,omitempty"`

	TripStatus Status     `json:"tripStatus"`
	StartTime  *time.Time `json:"startTime,omitempty"`
	EndTime    *time.Time `json:"endTime,omitempty"`

	OptimizationFingerprint string    `json:"optimizationFingerprint,omitempty"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

// NewTrip creates an empty not-started trip. An empty name defaults to the weekday of date.
func NewTrip(name string, date time.Time) RouteTrip {
	if name == "" {
		name = date.Weekday().String()
	}
	return RouteTrip{
		TripID:     types.NewID(),
		RouteName:  name,
		Date:       date,
		Locations:  []Stop{},
		Config:     DefaultConfig(),
		TripStatus: StatusNotStarted,
		UpdatedAt:  date,
	}
}

// Clone returns a copy whose stop slice does not alias t's.
func (t RouteTrip) Clone() RouteTrip {
	out := t
	out.Locations = make([]Stop, len(t.Locations))
	copy(out.Locations, t.Locations)
	return out
}

func (t RouteTrip) indexOf(id types.ID) int {
	for i, s := range t.Locations {
		if s.UniqueID == id {
			return i
		}
	}
	return -1
}

// Stop returns the stop with the given id.
func (t RouteTrip) Stop(id types.ID) (Stop, bool) {
	i := t.indexOf(id)
	if i < 0 {
		return Stop{}, false
	}
	return t.Locations[i], true
}

// WithStop returns a copy of t with s appended.
func WithStop(t RouteTrip, s Stop) RouteTrip {
	out := t.Clone()
	out.Locations = append(out.Locations, s)
	return out
}

// WithoutStop returns a copy of t without the stop id. Unknown ids return an unchanged copy.
func WithoutStop(t RouteTrip, id types.ID) RouteTrip {
	out := t.Clone()
	i := out.indexOf(id)
	if i < 0 {
		return out
	}
	out.Locations = append(out.Locations[:i], out.Locations[i+1:]...)
	return out
}

// WithConfig returns a copy of t carrying c.
func WithConfig(t RouteTrip, c Config) RouteTrip {
	out := t.Clone()
	out.Config = c
	return out
}

func withStopAt(t RouteTrip, i int, s Stop) RouteTrip {
	out := t.Clone()
	out.Locations[i] = s
	return out
}

func invalidate(t RouteTrip) RouteTrip {
	t.IsOptimized = false
	return t
}
