// README: Trip engine tests (pure operations, fingerprints, orchestration and lifecycle).
package trip

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"routetrip/internal/types"
)

var testNow = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

func stopAt(id types.ID, lat, lng float64, hint OrderHint) Stop {
	return Stop{
		UniqueID:    id,
		Coordinates: types.Point{Latitude: lat, Longitude: lng},
		OrderHint:   hint,
		StopType:    StopDelivery,
	}
}

func testTrip(stops ...Stop) RouteTrip {
	t := NewTrip("Monday", testNow)
	t.Locations = append(t.Locations, stops...)
	t.Config.StartLocation = &Location{Coordinates: types.Point{Latitude: 25.03, Longitude: 121.56}}
	return t
}

func stopIDs(t RouteTrip) []types.ID {
	out := make([]types.ID, len(t.Locations))
	for i, s := range t.Locations {
		out[i] = s.UniqueID
	}
	return out
}

// optimized runs a provider-free orchestration round to get a trip with isOptimized=true.
func optimized(t *testing.T, trip RouteTrip, order []int) RouteTrip {
	t.Helper()
	began, err := BeginOptimization(trip)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	plan, err := BuildPlan(began, nil, nil, false)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	var res *OptimizeResult
	if plan.NeedsProvider() {
		res = &OptimizeResult{Order: order, Legs: []Leg{{DistanceMeters: 100, DurationSeconds: 10}}}
	}
	out, err := FinishOptimization(began, plan, res, nil)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	return out
}

type stubGeocoder struct {
	point types.Point
	err   error
	calls int
}

func (g *stubGeocoder) Search(ctx context.Context, text string, bias *types.Point) ([]Candidate, error) {
	return []Candidate{{Title: text, Coordinates: g.point}}, g.err
}

func (g *stubGeocoder) Resolve(ctx context.Context, c Candidate) (types.Point, error) {
	g.calls++
	return g.point, g.err
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusNotStarted, StatusStarted, true},
		{StatusNotStarted, StatusCancelled, true},
		{StatusStarted, StatusCompleted, true},
		{StatusStarted, StatusCancelled, true},
		// forced rollback after start/end change
		{StatusStarted, StatusNotStarted, true},
		// terminal states have no outgoing transitions
		{StatusCompleted, StatusStarted, false},
		{StatusCancelled, StatusNotStarted, false},
		// skipping states
		{StatusNotStarted, StatusCompleted, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNewTripDefaults(t *testing.T) {
	trip := NewTrip("", testNow)
	if trip.RouteName != "Monday" {
		t.Fatalf("expected weekday name, got %q", trip.RouteName)
	}
	if trip.TripStatus != StatusNotStarted || trip.Config.EndPolicy.Kind != EndRoundtrip {
		t.Fatalf("unexpected defaults: %+v", trip)
	}
	if trip.TripID == "" || trip.Locations == nil {
		t.Fatalf("expected id and empty locations")
	}
}

func TestFingerprintIgnoresOrderAndDescriptiveFields(t *testing.T) {
	a := stopAt("a", 1, 1, OrderAuto)
	b := stopAt("b", 2, 2, OrderAuto)
	base := testTrip(a, b)

	swapped := base.Clone()
	swapped.Locations = []Stop{b, a}
	if ComputeFingerprint(base) != ComputeFingerprint(swapped) {
		t.Fatalf("fingerprint must not depend on stop order")
	}

	described := base.Clone()
	described.Locations[0].Notes = "ring twice"
	described.Locations[0].PackageCount = 3
	described.Locations[1].Status = OutcomeDelivered
	described.RouteName = "renamed"
	if ComputeFingerprint(base) != ComputeFingerprint(described) {
		t.Fatalf("descriptive fields and outcomes must not change the fingerprint")
	}

	empty := a
	empty.OrderHint = ""
	implicit := testTrip(empty, b)
	if ComputeFingerprint(base) != ComputeFingerprint(implicit) {
		t.Fatalf("missing order hint must be treated as auto")
	}
}

func TestFingerprintTracksRelevantInputs(t *testing.T) {
	base := testTrip(stopAt("a", 1, 1, OrderAuto), stopAt("b", 2, 2, OrderAuto))
	fp := ComputeFingerprint(base)

	cases := []struct {
		name   string
		mutate func(RouteTrip) RouteTrip
	}{
		{"stop added", func(t RouteTrip) RouteTrip { return WithStop(t, stopAt("c", 3, 3, OrderAuto)) }},
		{"stop removed", func(t RouteTrip) RouteTrip { return WithoutStop(t, "b") }},
		{"start moved", func(t RouteTrip) RouteTrip {
			t.Config.StartLocation = &Location{Coordinates: types.Point{Latitude: 9, Longitude: 9}}
			return t
		}},
		{"end policy", func(t RouteTrip) RouteTrip {
			t.Config.EndPolicy = EndPolicy{Kind: EndLastStop}
			return t
		}},
		{"break window", func(t RouteTrip) RouteTrip {
			t.Config.BreakWindow = &BreakWindow{Start: testNow, End: testNow.Add(time.Hour), DurationMinutes: 30}
			return t
		}},
		{"hint changed", func(t RouteTrip) RouteTrip {
			t.Locations[0].OrderHint = OrderFirst
			return t
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if ComputeFingerprint(tc.mutate(base.Clone())) == fp {
				t.Fatalf("expected fingerprint to change")
			}
		})
	}
}

func TestRevalidateClearsStaleOptimization(t *testing.T) {
	trip := optimized(t, testTrip(stopAt("a", 1, 1, OrderAuto), stopAt("b", 2, 2, OrderFirst)), []int{0})
	if !trip.IsOptimized || IsStale(trip) {
		t.Fatalf("expected fresh optimized trip")
	}
	if !Revalidate(trip).IsOptimized {
		t.Fatalf("fresh trip must stay optimized")
	}
	trip.Config.EndPolicy = EndPolicy{Kind: EndLastStop}
	if Revalidate(trip).IsOptimized {
		t.Fatalf("expected stale trip to be invalidated")
	}
}

func TestAddStopInvalidatesOptimization(t *testing.T) {
	trip := optimized(t, testTrip(stopAt("a", 1, 1, OrderAuto), stopAt("b", 2, 2, OrderAuto)), []int{1, 0})
	editor := NewEditor(nil)

	out, err := editor.AddStop(context.Background(), trip, stopAt("", 3, 3, ""), testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("add stop: %v", err)
	}
	if out.IsOptimized {
		t.Fatalf("expected isOptimized=false")
	}
	if len(out.Locations) != 3 || out.Locations[2].UniqueID == "" {
		t.Fatalf("expected appended stop with fresh id, got %+v", out.Locations)
	}
	if out.Locations[2].OrderHint != OrderAuto || out.Locations[2].StopType != StopDelivery {
		t.Fatalf("expected defaults, got %+v", out.Locations[2])
	}

	// Everything but locations, updatedAt and isOptimized is untouched.
	want := trip
	want.Locations = out.Locations
	want.UpdatedAt = out.UpdatedAt
	want.IsOptimized = false
	if !reflect.DeepEqual(want, out) {
		t.Fatalf("unexpected field change:\nwant %+v\ngot  %+v", want, out)
	}
	if !trip.IsOptimized || len(trip.Locations) != 2 {
		t.Fatalf("input trip must not be mutated")
	}
}

func TestAddStopGeocoding(t *testing.T) {
	ctx := context.Background()
	proto := Stop{Address: "1 Main St"}

	ok := &stubGeocoder{point: types.Point{Latitude: 5, Longitude: 6}}
	out, err := NewEditor(ok).AddStop(ctx, testTrip(), proto, testNow)
	if err != nil {
		t.Fatalf("add stop: %v", err)
	}
	if out.Locations[0].Coordinates != ok.point {
		t.Fatalf("expected resolved coordinates, got %+v", out.Locations[0].Coordinates)
	}

	bad := &stubGeocoder{err: errors.New("ZERO_RESULTS")}
	out, err = NewEditor(bad).AddStop(ctx, testTrip(), proto, testNow)
	var soft *GeocodingUnresolvedError
	if !errors.As(err, &soft) {
		t.Fatalf("expected soft geocoding error, got %v", err)
	}
	if len(out.Locations) != 1 || !out.Locations[0].Coordinates.IsZero() {
		t.Fatalf("stop must be kept at (0,0), got %+v", out.Locations)
	}
	if bad.calls != 1 {
		t.Fatalf("expected a single resolution attempt, got %d", bad.calls)
	}
}

func TestAddStopRejectsInvalidHint(t *testing.T) {
	trip := testTrip()
	_, err := NewEditor(nil).AddStop(context.Background(), trip, Stop{OrderHint: "sometimes", Coordinates: types.Point{Latitude: 1, Longitude: 1}}, testNow)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestAddStopToClosedTripForks(t *testing.T) {
	trip := testTrip(stopAt("a", 1, 1, OrderAuto))
	trip.TripStatus = StatusCompleted

	out, err := NewEditor(nil).AddStop(context.Background(), trip, stopAt("", 2, 2, OrderAuto), testNow)
	if err != nil {
		t.Fatalf("add stop: %v", err)
	}
	if out.TripID == trip.TripID || out.RouteName != NewRouteName {
		t.Fatalf("expected a new trip, got %+v", out)
	}
	if out.TripStatus != StatusNotStarted || len(out.Locations) != 1 {
		t.Fatalf("expected fresh single-stop trip, got %+v", out)
	}
}

func TestDuplicateStop(t *testing.T) {
	src := stopAt("a", 1, 1, OrderFirst)
	src.Notes = "gate code 12"
	src.Status = OutcomeFailed
	trip := testTrip(src)

	out, err := DuplicateStop(trip, "a", testNow)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if len(out.Locations) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(out.Locations))
	}
	dup := out.Locations[1]
	if dup.UniqueID == "a" || dup.Notes != src.Notes || dup.OrderHint != OrderFirst {
		t.Fatalf("unexpected duplicate: %+v", dup)
	}
	if dup.Status != "" || dup.StatusUpdateTime != nil {
		t.Fatalf("duplicate must not carry an outcome")
	}
}

func TestRemoveStopIsIdempotent(t *testing.T) {
	trip := optimized(t, testTrip(stopAt("a", 1, 1, OrderAuto), stopAt("b", 2, 2, OrderAuto)), []int{0, 1})

	once, err := RemoveStop(trip, "a", testNow)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	twice, err := RemoveStop(once, "a", testNow)
	if err != nil {
		t.Fatalf("remove again: %v", err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("second remove must be a no-op")
	}
	if once.IsOptimized || !reflect.DeepEqual(stopIDs(once), []types.ID{"b"}) {
		t.Fatalf("unexpected result: %+v", once)
	}

	missing, err := RemoveStop(trip, "zzz", testNow)
	if err != nil || !reflect.DeepEqual(missing, trip) {
		t.Fatalf("unknown id must leave trip unchanged")
	}
}

func TestUpdateStopInvalidation(t *testing.T) {
	trip := optimized(t, testTrip(stopAt("a", 1, 1, OrderAuto), stopAt("b", 2, 2, OrderAuto)), []int{0, 1})

	notes := "leave at door"
	out, err := UpdateStop(trip, "a", StopPatch{Notes: &notes}, testNow)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !out.IsOptimized || out.Locations[0].Notes != notes {
		t.Fatalf("descriptive edit must keep optimization, got %+v", out)
	}

	hint := OrderLast
	out, err = UpdateStop(trip, "a", StopPatch{OrderHint: &hint}, testNow)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if out.IsOptimized {
		t.Fatalf("order hint change must invalidate")
	}

	moved := types.Point{Latitude: 7, Longitude: 7}
	out, err = UpdateStop(trip, "b", StopPatch{Coordinates: &moved}, testNow)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if out.IsOptimized || out.Locations[1].Coordinates != moved {
		t.Fatalf("coordinate change must invalidate, got %+v", out)
	}
}

func TestEditsRejectedOnClosedTrip(t *testing.T) {
	trip := testTrip(stopAt("a", 1, 1, OrderAuto))
	trip.TripStatus = StatusCancelled
	notes := "x"

	if _, err := DuplicateStop(trip, "a", testNow); !errors.Is(err, ErrTripClosed) {
		t.Fatalf("duplicate: expected ErrTripClosed, got %v", err)
	}
	if _, err := RemoveStop(trip, "a", testNow); !errors.Is(err, ErrTripClosed) {
		t.Fatalf("remove: expected ErrTripClosed, got %v", err)
	}
	if _, err := UpdateStop(trip, "a", StopPatch{Notes: &notes}, testNow); !errors.Is(err, ErrTripClosed) {
		t.Fatalf("update: expected ErrTripClosed, got %v", err)
	}
	if _, err := SetEndPolicy(trip, EndPolicy{Kind: EndLastStop}, testNow); !errors.Is(err, ErrTripClosed) {
		t.Fatalf("end policy: expected ErrTripClosed, got %v", err)
	}
}

func TestSetStartRollsBackStartedTrip(t *testing.T) {
	trip := optimized(t, testTrip(stopAt("a", 1, 1, OrderAuto), stopAt("b", 2, 2, OrderAuto)), []int{0, 1})
	started, err := Start(trip, testNow)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	out, err := SetStartLocation(started, &Location{Coordinates: types.Point{Latitude: 8, Longitude: 8}}, testNow)
	if err != nil {
		t.Fatalf("set start: %v", err)
	}
	if out.TripStatus != StatusNotStarted || out.StartTime != nil || out.IsOptimized {
		t.Fatalf("expected rollback, got status=%s startTime=%v optimized=%v", out.TripStatus, out.StartTime, out.IsOptimized)
	}

	out, err = SetEndPolicy(started, EndPolicy{Kind: EndLastStop}, testNow)
	if err != nil {
		t.Fatalf("set end: %v", err)
	}
	if out.TripStatus != StatusNotStarted || out.StartTime != nil {
		t.Fatalf("expected rollback on end change, got %s", out.TripStatus)
	}
}

func TestSetBreakWindow(t *testing.T) {
	trip := optimized(t, testTrip(stopAt("a", 1, 1, OrderAuto), stopAt("b", 2, 2, OrderAuto)), []int{0, 1})
	started, err := Start(trip, testNow)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	cases := []struct {
		name    string
		window  *BreakWindow
		wantErr error
	}{
		{"valid", &BreakWindow{Start: testNow, End: testNow.Add(time.Hour), DurationMinutes: 30}, nil},
		{"clear", nil, nil},
		{"too long", &BreakWindow{Start: testNow, End: testNow.Add(time.Hour), DurationMinutes: MaxBreakMinutes + 1}, ErrInvalidBreakWindow},
		{"negative", &BreakWindow{DurationMinutes: -1}, ErrInvalidBreakWindow},
		{"inverted", &BreakWindow{Start: testNow.Add(time.Hour), End: testNow, DurationMinutes: 10}, ErrInvalidBreakWindow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := SetBreakWindow(started, tc.window, testNow)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if err != nil {
				return
			}
			if out.TripStatus != StatusStarted {
				t.Fatalf("break change must not roll back a started trip")
			}
		})
	}
}

func TestSetEndPolicyValidation(t *testing.T) {
	trip := testTrip()
	if _, err := SetEndPolicy(trip, EndPolicy{Kind: EndCustom}, testNow); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("custom without coordinates: expected ErrBadRequest, got %v", err)
	}
	if _, err := SetEndPolicy(trip, EndPolicy{Kind: "somewhere"}, testNow); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("unknown kind: expected ErrBadRequest, got %v", err)
	}
	out, err := SetEndPolicy(trip, EndPolicy{Kind: EndRoundtrip, Coordinates: &types.Point{Latitude: 1, Longitude: 1}}, testNow)
	if err != nil {
		t.Fatalf("roundtrip: %v", err)
	}
	if out.Config.EndPolicy.Coordinates != nil {
		t.Fatalf("roundtrip must drop coordinates")
	}
}

func TestSetScheduleKeepsOptimization(t *testing.T) {
	trip := optimized(t, testTrip(stopAt("a", 1, 1, OrderAuto), stopAt("b", 2, 2, OrderAuto)), []int{0, 1})
	start := testNow.Add(time.Hour)
	end := testNow.Add(5 * time.Hour)
	out, err := SetSchedule(trip, &start, &end, testNow)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !out.IsOptimized || !out.Config.StartTime.Equal(start) {
		t.Fatalf("unexpected result: %+v", out)
	}
	if _, err := SetSchedule(trip, &end, &start, testNow); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest for inverted schedule, got %v", err)
	}
}

func TestOptimizeReordersAutoStops(t *testing.T) {
	trip := testTrip(stopAt("A", 1, 1, OrderAuto), stopAt("B", 2, 2, OrderAuto))

	began, err := BeginOptimization(trip)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !began.IsOptimizing {
		t.Fatalf("expected isOptimizing=true")
	}
	plan, err := BuildPlan(began, nil, nil, false)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.Request.Destination != plan.Request.Origin {
		t.Fatalf("roundtrip destination must equal origin")
	}
	res := &OptimizeResult{
		Order:    []int{1, 0},
		Legs:     []Leg{{DistanceMeters: 500, DurationSeconds: 60}, {DistanceMeters: 700, DurationSeconds: 90}},
		Polyline: "abc",
	}
	out, err := FinishOptimization(began, plan, res, nil)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if !reflect.DeepEqual(stopIDs(out), []types.ID{"B", "A"}) {
		t.Fatalf("unexpected order %v", stopIDs(out))
	}
	if out.DistanceMeters != 1200 || out.DurationSeconds != 150 {
		t.Fatalf("unexpected totals %d m / %d s", out.DistanceMeters, out.DurationSeconds)
	}
	if !out.IsOptimized || out.IsOptimizing || out.Polyline != "abc" {
		t.Fatalf("unexpected flags: %+v", out)
	}
	if out.OptimizationFingerprint != ComputeFingerprint(out) {
		t.Fatalf("fingerprint not captured")
	}
}

func TestOptimizeRequiresTwoStops(t *testing.T) {
	trip := testTrip(stopAt("A", 1, 1, OrderAuto))
	out, err := BeginOptimization(trip)
	if !errors.Is(err, ErrInsufficientStops) {
		t.Fatalf("expected ErrInsufficientStops, got %v", err)
	}
	if !reflect.DeepEqual(out, trip) {
		t.Fatalf("trip must be unchanged")
	}
}

func TestBeginOptimizationRejectsReentry(t *testing.T) {
	trip := testTrip(stopAt("A", 1, 1, OrderAuto), stopAt("B", 2, 2, OrderAuto))
	began, err := BeginOptimization(trip)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := BeginOptimization(began); !errors.Is(err, ErrOptimizationInProgress) {
		t.Fatalf("expected ErrOptimizationInProgress, got %v", err)
	}
}

func TestOptimizeKeepsFirstAndLastSegments(t *testing.T) {
	trip := testTrip(
		stopAt("L1", 1, 1, OrderLast),
		stopAt("A1", 2, 2, OrderAuto),
		stopAt("F1", 3, 3, OrderFirst),
		stopAt("A2", 4, 4, OrderAuto),
		stopAt("F2", 5, 5, OrderFirst),
		stopAt("A3", 6, 6, OrderAuto),
	)
	began, _ := BeginOptimization(trip)
	plan, err := BuildPlan(began, nil, nil, true)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if len(plan.Request.Waypoints) != 3 || !plan.Request.AvoidTolls {
		t.Fatalf("unexpected request %+v", plan.Request)
	}
	out, err := FinishOptimization(began, plan, &OptimizeResult{Order: []int{2, 0, 1}}, nil)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	want := []types.ID{"F1", "F2", "A3", "A1", "A2", "L1"}
	if !reflect.DeepEqual(stopIDs(out), want) {
		t.Fatalf("got %v, want %v", stopIDs(out), want)
	}
}

func TestOptimizeWithoutAutoStopsSkipsProvider(t *testing.T) {
	trip := testTrip(stopAt("F", 1, 1, OrderFirst), stopAt("L", 2, 2, OrderLast))
	began, _ := BeginOptimization(trip)
	plan, err := BuildPlan(began, nil, nil, false)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.NeedsProvider() {
		t.Fatalf("no auto stops must not need the provider")
	}
	out, err := FinishOptimization(began, plan, nil, nil)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if !out.IsOptimized || out.Polyline != "" || !reflect.DeepEqual(stopIDs(out), []types.ID{"F", "L"}) {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestBuildPlanDestination(t *testing.T) {
	custom := types.Point{Latitude: 50, Longitude: 50}
	cases := []struct {
		name  string
		end   EndPolicy
		stops []Stop
		want  types.Point
	}{
		{"roundtrip", EndPolicy{Kind: EndRoundtrip}, []Stop{stopAt("a", 1, 1, OrderAuto), stopAt("b", 2, 2, OrderAuto)}, types.Point{Latitude: 25.03, Longitude: 121.56}},
		{"custom", EndPolicy{Kind: EndCustom, Coordinates: &custom}, []Stop{stopAt("a", 1, 1, OrderAuto), stopAt("b", 2, 2, OrderAuto)}, custom},
		{"last stop prefers last segment", EndPolicy{Kind: EndLastStop}, []Stop{stopAt("l", 9, 9, OrderLast), stopAt("a", 1, 1, OrderAuto)}, types.Point{Latitude: 9, Longitude: 9}},
		{"last stop falls back to last auto", EndPolicy{Kind: EndLastStop}, []Stop{stopAt("a", 1, 1, OrderAuto), stopAt("b", 2, 2, OrderAuto), stopAt("f", 3, 3, OrderFirst)}, types.Point{Latitude: 2, Longitude: 2}},
		{"last stop falls back to last first", EndPolicy{Kind: EndLastStop}, []Stop{stopAt("f1", 1, 1, OrderFirst), stopAt("f2", 4, 4, OrderFirst)}, types.Point{Latitude: 4, Longitude: 4}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			trip := testTrip(tc.stops...)
			trip.Config.EndPolicy = tc.end
			plan, err := BuildPlan(trip, nil, nil, false)
			if err != nil {
				t.Fatalf("build plan: %v", err)
			}
			if plan.Request.Destination != tc.want {
				t.Fatalf("destination = %+v, want %+v", plan.Request.Destination, tc.want)
			}
		})
	}
}

func TestBuildPlanOrigin(t *testing.T) {
	trip := testTrip(stopAt("a", 1, 1, OrderAuto), stopAt("b", 2, 2, OrderAuto))
	trip.Config.StartLocation = nil

	if _, err := BuildPlan(trip, nil, nil, false); !errors.Is(err, ErrMissingOrigin) {
		t.Fatalf("expected ErrMissingOrigin, got %v", err)
	}
	device := types.Point{Latitude: 42, Longitude: 42}
	plan, err := BuildPlan(trip, &device, nil, false)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.Request.Origin != device {
		t.Fatalf("expected device origin, got %+v", plan.Request.Origin)
	}
}

func TestBuildPlanUnresolvedStop(t *testing.T) {
	unresolved := Stop{UniqueID: "u", OrderHint: OrderAuto, Address: "nowhere"}
	trip := testTrip(stopAt("a", 1, 1, OrderAuto), unresolved)

	_, err := BuildPlan(trip, nil, nil, false)
	var geo *GeocodingUnresolvedError
	if !errors.Is(err, ErrOptimizationFailed) || !errors.As(err, &geo) {
		t.Fatalf("expected optimization failure wrapping geocoding, got %v", err)
	}

	plan, err := BuildPlan(trip, nil, map[types.ID]types.Point{"u": {Latitude: 3, Longitude: 3}}, false)
	if err != nil {
		t.Fatalf("resolved retry: %v", err)
	}
	out, err := FinishOptimization(trip, plan, &OptimizeResult{Order: []int{0, 1}}, nil)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if s, _ := out.Stop("u"); s.Coordinates.IsZero() {
		t.Fatalf("resolved coordinates must be written back")
	}
}

func TestFinishOptimizationFailures(t *testing.T) {
	trip := testTrip(stopAt("A", 1, 1, OrderAuto), stopAt("B", 2, 2, OrderAuto))
	began, _ := BeginOptimization(trip)
	plan, _ := BuildPlan(began, nil, nil, false)

	cases := []struct {
		name    string
		res     *OptimizeResult
		callErr error
	}{
		{"provider error", nil, errors.New("REQUEST_DENIED")},
		{"nil result", nil, nil},
		{"short order", &OptimizeResult{Order: []int{0}}, nil},
		{"duplicate index", &OptimizeResult{Order: []int{0, 0}}, nil},
		{"out of range", &OptimizeResult{Order: []int{0, 2}}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := FinishOptimization(began, plan, tc.res, tc.callErr)
			if !errors.Is(err, ErrOptimizationFailed) {
				t.Fatalf("expected ErrOptimizationFailed, got %v", err)
			}
			if out.IsOptimizing || out.IsOptimized {
				t.Fatalf("expected cleared flags, got %+v", out)
			}
			if !reflect.DeepEqual(stopIDs(out), []types.ID{"A", "B"}) {
				t.Fatalf("order must be unchanged on failure")
			}
		})
	}
}

func TestOptimizeDiscardsResultAfterEdit(t *testing.T) {
	trip := testTrip(stopAt("A", 1, 1, OrderAuto), stopAt("B", 2, 2, OrderAuto), stopAt("C", 3, 3, OrderAuto))
	began, _ := BeginOptimization(trip)
	plan, err := BuildPlan(began, nil, nil, false)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}

	// Stop removed while the provider is working.
	edited, err := RemoveStop(began, "B", testNow)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}

	out, err := FinishOptimization(edited, plan, &OptimizeResult{Order: []int{2, 1, 0}}, nil)
	if !errors.Is(err, ErrOptimizationStale) {
		t.Fatalf("expected ErrOptimizationStale, got %v", err)
	}
	if out.IsOptimizing || out.IsOptimized {
		t.Fatalf("expected isOptimizing=false and isOptimized=false, got %+v", out)
	}
	if !reflect.DeepEqual(stopIDs(out), []types.ID{"A", "C"}) {
		t.Fatalf("locations must reflect the removal, got %v", stopIDs(out))
	}
}

func TestFinishOptimizationDropsResultForCancelledTrip(t *testing.T) {
	trip := testTrip(stopAt("A", 1, 1, OrderAuto), stopAt("B", 2, 2, OrderAuto))
	began, _ := BeginOptimization(trip)
	plan, err := BuildPlan(began, nil, nil, false)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	cancelled, err := Cancel(began, testNow)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	res := &OptimizeResult{Order: []int{1, 0}, Legs: []Leg{{DistanceMeters: 600, DurationSeconds: 60}}}
	out, err := FinishOptimization(cancelled, plan, res, nil)
	if !errors.Is(err, ErrOptimizationStale) {
		t.Fatalf("expected ErrOptimizationStale, got %v", err)
	}
	if out.TripStatus != StatusCancelled || out.IsOptimized || out.IsOptimizing {
		t.Fatalf("cancelled trip must stay untouched, got %+v", out)
	}
	if out.DistanceMeters != 0 || !reflect.DeepEqual(stopIDs(out), []types.ID{"A", "B"}) {
		t.Fatalf("result must not be merged, got distance=%d order=%v", out.DistanceMeters, stopIDs(out))
	}
}

func TestFinishOptimizationOtherTrip(t *testing.T) {
	trip := testTrip(stopAt("A", 1, 1, OrderAuto), stopAt("B", 2, 2, OrderAuto))
	began, _ := BeginOptimization(trip)
	plan, _ := BuildPlan(began, nil, nil, false)

	other := testTrip(stopAt("A", 1, 1, OrderAuto), stopAt("B", 2, 2, OrderAuto))
	if _, err := FinishOptimization(other, plan, &OptimizeResult{Order: []int{1, 0}}, nil); !errors.Is(err, ErrOptimizationStale) {
		t.Fatalf("expected ErrOptimizationStale, got %v", err)
	}
}

func TestAbortOptimizationKeepsResolvedCoordinates(t *testing.T) {
	trip := testTrip(stopAt("a", 1, 1, OrderAuto), Stop{UniqueID: "u", OrderHint: OrderAuto})
	began, _ := BeginOptimization(trip)
	out, err := AbortOptimization(began, began.TripID, map[types.ID]types.Point{"u": {Latitude: 2, Longitude: 2}}, ErrMissingOrigin)
	if !errors.Is(err, ErrMissingOrigin) {
		t.Fatalf("expected cause, got %v", err)
	}
	if out.IsOptimizing {
		t.Fatalf("expected isOptimizing=false")
	}
	if s, _ := out.Stop("u"); s.Coordinates.IsZero() {
		t.Fatalf("resolved coordinates must be kept")
	}
}

func TestStartRequiresOptimization(t *testing.T) {
	trip := testTrip(stopAt("A", 1, 1, OrderAuto), stopAt("B", 2, 2, OrderAuto))
	out, err := Start(trip, testNow)
	if !errors.Is(err, ErrRouteNotOptimized) {
		t.Fatalf("expected ErrRouteNotOptimized, got %v", err)
	}
	if out.TripStatus != StatusNotStarted {
		t.Fatalf("status must be unchanged, got %s", out.TripStatus)
	}

	stale := optimized(t, trip, []int{0, 1})
	stale.Config.EndPolicy = EndPolicy{Kind: EndLastStop}
	if _, err := Start(stale, testNow); !errors.Is(err, ErrRouteNotOptimized) {
		t.Fatalf("stale fingerprint: expected ErrRouteNotOptimized, got %v", err)
	}
}

func TestLifecycleFlow(t *testing.T) {
	trip := optimized(t, testTrip(stopAt("A", 1, 1, OrderAuto), stopAt("B", 2, 2, OrderAuto)), []int{0, 1})

	if _, err := MarkStopOutcome(trip, "A", OutcomeDelivered, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("outcome before start: expected ErrInvalidTransition, got %v", err)
	}

	started, err := Start(trip, testNow)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.TripStatus != StatusStarted || started.StartTime == nil {
		t.Fatalf("unexpected started trip: %+v", started)
	}
	if _, err := Start(started, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double start: expected ErrInvalidTransition, got %v", err)
	}

	marked, err := MarkStopOutcome(started, "A", OutcomeDelivered, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if s, _ := marked.Stop("A"); s.Status != OutcomeDelivered || s.StatusUpdateTime == nil {
		t.Fatalf("unexpected stop: %+v", s)
	}
	if !marked.IsOptimized {
		t.Fatalf("outcomes must not invalidate optimization")
	}
	if _, err := MarkStopOutcome(started, "A", "lost", testNow); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}

	p := ProgressOf(marked)
	if p.Total != 2 || p.Delivered != 1 || p.Pending != 1 {
		t.Fatalf("unexpected progress %+v", p)
	}

	undone, err := UndoStopOutcome(marked, "A", testNow)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if s, _ := undone.Stop("A"); s.Status != "" || s.StatusUpdateTime != nil {
		t.Fatalf("outcome not cleared: %+v", s)
	}

	done, err := Complete(marked, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.TripStatus != StatusCompleted || done.EndTime == nil {
		t.Fatalf("unexpected completed trip: %+v", done)
	}
	if _, err := Cancel(done, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel after complete: expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancelBeforeStart(t *testing.T) {
	trip := testTrip(stopAt("A", 1, 1, OrderAuto))
	out, err := Cancel(trip, testNow)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out.TripStatus != StatusCancelled || out.EndTime == nil {
		t.Fatalf("unexpected cancelled trip: %+v", out)
	}
	if _, err := Complete(trip, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete before start: expected ErrInvalidTransition, got %v", err)
	}
}
