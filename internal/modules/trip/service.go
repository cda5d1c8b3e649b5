// README: Trip service owns the current-trip session cell and runs engine operations on it.
package trip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"routetrip/internal/metrics"
	"routetrip/internal/session"
	"routetrip/internal/types"
)

// Sessions is the subset of the session store the service writes through.
type Sessions interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Archive persists completed trips outside the session.
type Archive interface {
	Archive(ctx context.Context, t RouteTrip) error
	Get(ctx context.Context, id types.ID) (RouteTrip, error)
	List(ctx context.Context, limit int) ([]RouteTrip, error)
}

type DeviceLocator interface {
	LastKnown(ctx context.Context) (types.Point, bool)
}

type Preferences struct {
	DistanceUnit      string     `json:"distanceUnit"`
	AverageTimeAtStop TimeAtStop `json:"averageTimeAtStop"`
	AvoidTolls        bool       `json:"avoidTolls"`
	VehicleType       string     `json:"vehicleType"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		DistanceUnit:      "Kilometers",
		AverageTimeAtStop: TimeAtStop{Minutes: 1},
		VehicleType:       "car",
	}
}

type ServiceDeps struct {
	Sessions  Sessions
	Geocoder  Geocoder
	Optimizer Optimizer
	Locator   DeviceLocator
	Archive   Archive
}

type Options struct {
	OptimizeTimeout time.Duration
	Preferences     Preferences
}

type Service struct {
	// mu serializes read-modify-write of the current trip.
	mu        sync.Mutex
	sessions  Sessions
	editor    *Editor
	geocoder  Geocoder
	optimizer Optimizer
	locator   DeviceLocator
	archive   Archive
	opts      Options
	now       func() time.Time
}

func NewService(deps ServiceDeps, opts Options) *Service {
	if opts.OptimizeTimeout <= 0 {
		opts.OptimizeTimeout = 30 * time.Second
	}
	if opts.Preferences == (Preferences{}) {
		opts.Preferences = DefaultPreferences()
	}
	return &Service{
		sessions:  deps.Sessions,
		editor:    NewEditor(deps.Geocoder),
		geocoder:  deps.Geocoder,
		optimizer: deps.Optimizer,
		locator:   deps.Locator,
		archive:   deps.Archive,
		opts:      opts,
		now:       time.Now,
	}
}

type NewTripCommand struct {
	Name string
	Date time.Time
}

type AddStopCommand struct {
	Stop Stop
}

type OutcomeCommand struct {
	StopID  types.ID
	Outcome Outcome
}

// Current returns the current trip or ErrNoCurrentTrip.
func (s *Service) Current(ctx context.Context) (RouteTrip, error) {
	t, ok, err := s.loadCurrent(ctx)
	if err != nil {
		return RouteTrip{}, err
	}
	if !ok {
		return RouteTrip{}, ErrNoCurrentTrip
	}
	return t, nil
}

func (s *Service) History(ctx context.Context) ([]RouteTrip, error) {
	return s.loadHistory(ctx)
}

// Archived lists completed trips. Without an archive it falls back to session history.
func (s *Service) Archived(ctx context.Context, limit int) ([]RouteTrip, error) {
	if s.archive != nil {
		return s.archive.List(ctx, limit)
	}
	history, err := s.loadHistory(ctx)
	if err != nil {
		return nil, err
	}
	out := []RouteTrip{}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].TripStatus == StatusCompleted {
			out = append(out, history[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Service) ArchivedTrip(ctx context.Context, id types.ID) (RouteTrip, error) {
	if s.archive != nil {
		return s.archive.Get(ctx, id)
	}
	history, err := s.loadHistory(ctx)
	if err != nil {
		return RouteTrip{}, err
	}
	for _, h := range history {
		if h.TripID == id && h.TripStatus == StatusCompleted {
			return h, nil
		}
	}
	return RouteTrip{}, ErrTripNotFound
}

// NewTrip replaces the current trip with an empty one; the previous trip moves to history.
func (s *Service) NewTrip(ctx context.Context, cmd NewTripCommand) (RouteTrip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := cmd.Date
	if date.IsZero() {
		date = s.now()
	}
	cur, ok, err := s.loadCurrent(ctx)
	if err != nil {
		return RouteTrip{}, err
	}
	if ok {
		if cur.IsOptimizing {
			return cur, ErrOptimizationInProgress
		}
		if err := s.pushHistory(ctx, cur); err != nil {
			return RouteTrip{}, err
		}
	}
	t := NewTrip(cmd.Name, date)
	t.UpdatedAt = s.now()
	if err := s.saveCurrent(ctx, t); err != nil {
		return RouteTrip{}, err
	}
	return t, nil
}

// SelectTrip makes a history trip current and moves the current one into history.
func (s *Service) SelectTrip(ctx context.Context, id types.ID) (RouteTrip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.loadHistory(ctx)
	if err != nil {
		return RouteTrip{}, err
	}
	idx := -1
	for i, h := range history {
		if h.TripID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return RouteTrip{}, ErrTripNotFound
	}
	cur, ok, err := s.loadCurrent(ctx)
	if err != nil {
		return RouteTrip{}, err
	}
	if ok && cur.IsOptimizing {
		return cur, ErrOptimizationInProgress
	}

	selected := history[idx]
	selected.IsOptimizing = false
	history = append(history[:idx], history[idx+1:]...)
	if ok {
		history = upsert(history, cur)
	}
	if err := s.saveHistory(ctx, history); err != nil {
		return RouteTrip{}, err
	}
	if err := s.saveCurrent(ctx, selected); err != nil {
		return RouteTrip{}, err
	}
	return selected, nil
}

func (s *Service) Rename(ctx context.Context, name string) (RouteTrip, error) {
	return s.mutate(ctx, func(t RouteTrip) (RouteTrip, error) { return Rename(t, name, s.now()) })
}

// AddStop adds a stop to the current trip, creating one when none exists.
// A *GeocodingUnresolvedError is soft: it is returned together with the saved trip.
// Validation and geocoding run before the trip lock is taken.
func (s *Service) AddStop(ctx context.Context, cmd AddStopCommand) (RouteTrip, error) {
	proto := cmd.Stop
	if proto.TimeAtStop == nil {
		prefs := s.preferences(ctx)
		tas := prefs.AverageTimeAtStop
		proto.TimeAtStop = &tas
	}

	stop, err := s.editor.PrepareStop(ctx, proto)
	var soft *GeocodingUnresolvedError
	switch {
	case err == nil && proto.Coordinates.IsZero():
		metrics.Geocodes.WithLabelValues("resolved").Inc()
	case err == nil:
	case errors.As(err, &soft):
		metrics.Geocodes.WithLabelValues("unresolved").Inc()
		log.Printf("[geocoding] %v; stop kept at (0,0)", soft)
	default:
		return RouteTrip{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok, loadErr := s.loadCurrent(ctx)
	if loadErr != nil {
		return RouteTrip{}, loadErr
	}
	now := s.now()
	if !ok {
		cur = NewTrip("", now)
	} else if cur.TripStatus.Closed() {
		if err := s.pushHistory(ctx, cur); err != nil {
			return RouteTrip{}, err
		}
	}

	out := AppendStop(cur, stop, now)
	if saveErr := s.saveCurrent(ctx, out); saveErr != nil {
		return RouteTrip{}, saveErr
	}
	return out, err
}

func (s *Service) DuplicateStop(ctx context.Context, id types.ID) (RouteTrip, error) {
	return s.mutate(ctx, func(t RouteTrip) (RouteTrip, error) { return DuplicateStop(t, id, s.now()) })
}

func (s *Service) RemoveStop(ctx context.Context, id types.ID) (RouteTrip, error) {
	return s.mutate(ctx, func(t RouteTrip) (RouteTrip, error) { return RemoveStop(t, id, s.now()) })
}

func (s *Service) UpdateStop(ctx context.Context, id types.ID, patch StopPatch) (RouteTrip, error) {
	return s.mutate(ctx, func(t RouteTrip) (RouteTrip, error) { return UpdateStop(t, id, patch, s.now()) })
}

func (s *Service) SetStartLocation(ctx context.Context, loc *Location) (RouteTrip, error) {
	return s.mutate(ctx, func(t RouteTrip) (RouteTrip, error) { return SetStartLocation(t, loc, s.now()) })
}

func (s *Service) SetEndPolicy(ctx context.Context, p EndPolicy) (RouteTrip, error) {
	return s.mutate(ctx, func(t RouteTrip) (RouteTrip, error) { return SetEndPolicy(t, p, s.now()) })
}

func (s *Service) SetBreakWindow(ctx context.Context, b *BreakWindow) (RouteTrip, error) {
	return s.mutate(ctx, func(t RouteTrip) (RouteTrip, error) { return SetBreakWindow(t, b, s.now()) })
}

func (s *Service) SetSchedule(ctx context.Context, start, end *time.Time) (RouteTrip, error) {
	return s.mutate(ctx, func(t RouteTrip) (RouteTrip, error) { return SetSchedule(t, start, end, s.now()) })
}

func (s *Service) Start(ctx context.Context) (RouteTrip, error) {
	return s.mutate(ctx, func(t RouteTrip) (RouteTrip, error) { return Start(t, s.now()) })
}

func (s *Service) MarkStopOutcome(ctx context.Context, cmd OutcomeCommand) (RouteTrip, error) {
	return s.mutate(ctx, func(t RouteTrip) (RouteTrip, error) {
		return MarkStopOutcome(t, cmd.StopID, cmd.Outcome, s.now())
	})
}

func (s *Service) UndoStopOutcome(ctx context.Context, id types.ID) (RouteTrip, error) {
	return s.mutate(ctx, func(t RouteTrip) (RouteTrip, error) { return UndoStopOutcome(t, id, s.now()) })
}

func (s *Service) Cancel(ctx context.Context) (RouteTrip, error) {
	return s.mutate(ctx, func(t RouteTrip) (RouteTrip, error) { return Cancel(t, s.now()) })
}

// Complete closes the current trip, archives it into history and clears the current slot.
func (s *Service) Complete(ctx context.Context) (RouteTrip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok, err := s.loadCurrent(ctx)
	if err != nil {
		return RouteTrip{}, err
	}
	if !ok {
		return RouteTrip{}, ErrNoCurrentTrip
	}
	done, err := Complete(cur, s.now())
	if err != nil {
		return cur, err
	}
	if err := s.pushHistory(ctx, done); err != nil {
		return RouteTrip{}, err
	}
	if s.archive != nil {
		if err := s.archive.Archive(ctx, done); err != nil {
			log.Printf("[trip] archive %s: %v", done.TripID, err)
		}
	}
	if err := s.sessions.Delete(ctx, session.KeyCurrentTrip); err != nil {
		return RouteTrip{}, err
	}
	return done, nil
}

// Optimize runs the orchestrator against the current trip. The provider call happens
// outside the lock; its result is only applied if the trip did not change meanwhile.
func (s *Service) Optimize(ctx context.Context) (RouteTrip, error) {
	began, err := s.mutate(ctx, BeginOptimization)
	if err != nil {
		metrics.Optimizations.WithLabelValues("rejected").Inc()
		return began, err
	}
	tripID := began.TripID
	// Finishing must persist even if the caller went away.
	finishCtx := context.WithoutCancel(ctx)

	resolved := s.resolveMissing(ctx, began)

	var device *types.Point
	if s.locator != nil {
		if p, ok := s.locator.LastKnown(ctx); ok {
			device = &p
		}
	}

	plan, err := BuildPlan(began, device, resolved, s.preferences(ctx).AvoidTolls)
	if err != nil {
		metrics.Optimizations.WithLabelValues("failed").Inc()
		log.Printf("[optimizer] trip %s: %v", tripID, err)
		return s.finish(finishCtx, func(cur RouteTrip) (RouteTrip, error) {
			return AbortOptimization(cur, tripID, resolved, err)
		})
	}

	var res *OptimizeResult
	var callErr error
	if plan.NeedsProvider() {
		res, callErr = s.callOptimizer(ctx, plan.Request)
	}

	out, err := s.finish(finishCtx, func(cur RouteTrip) (RouteTrip, error) {
		return FinishOptimization(cur, plan, res, callErr)
	})
	switch {
	case err == nil && !plan.NeedsProvider():
		metrics.Optimizations.WithLabelValues("skipped").Inc()
	case err == nil:
		metrics.Optimizations.WithLabelValues("ok").Inc()
		log.Printf("[optimizer] trip %s: %d stops, %d m, %d s", tripID, len(out.Locations), out.DistanceMeters, out.DurationSeconds)
	case errors.Is(err, ErrOptimizationStale):
		metrics.Optimizations.WithLabelValues("stale").Inc()
		log.Printf("[optimizer] trip %s: result discarded, trip changed while optimizing", tripID)
	default:
		metrics.Optimizations.WithLabelValues("failed").Inc()
		log.Printf("[optimizer] trip %s: %v", tripID, err)
	}
	return out, err
}

func (s *Service) callOptimizer(ctx context.Context, req OptimizeRequest) (*OptimizeResult, error) {
	if s.optimizer == nil {
		return nil, errors.New("no routing provider configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, s.opts.OptimizeTimeout)
	defer cancel()
	started := time.Now()
	res, err := s.optimizer.OptimizeOrder(callCtx, req)
	metrics.OptimizerLatency.Observe(time.Since(started).Seconds())
	return res, err
}

// resolveMissing makes one lazy geocoding attempt per stop still at (0,0).
func (s *Service) resolveMissing(ctx context.Context, t RouteTrip) map[types.ID]types.Point {
	missing := Unresolved(t)
	if len(missing) == 0 {
		return nil
	}
	resolved := make(map[types.ID]types.Point, len(missing))
	for _, stop := range missing {
		p, err := s.editor.resolve(ctx, candidateOf(stop))
		if err != nil {
			metrics.Geocodes.WithLabelValues("unresolved").Inc()
			log.Printf("[geocoding] retry for stop %s: %v", stop.UniqueID, err)
			continue
		}
		metrics.Geocodes.WithLabelValues("resolved").Inc()
		resolved[stop.UniqueID] = p
	}
	return resolved
}

// Recover clears an in-flight flag left behind by a previous process.
func (s *Service) Recover(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok, err := s.loadCurrent(ctx)
	if err != nil || !ok || !cur.IsOptimizing {
		return err
	}
	cur.IsOptimizing = false
	log.Printf("[trip] cleared stale optimizing flag on %s", cur.TripID)
	return s.saveCurrent(ctx, cur)
}

// SearchPlaces proxies the geocoder, biased to the device location when no bias is given.
func (s *Service) SearchPlaces(ctx context.Context, text string, bias *types.Point) ([]Candidate, error) {
	if text == "" {
		return nil, ErrBadRequest
	}
	if s.geocoder == nil {
		return nil, errors.New("no geocoder configured")
	}
	if bias == nil && s.locator != nil {
		if p, ok := s.locator.LastKnown(ctx); ok {
			bias = &p
		}
	}
	return s.geocoder.Search(ctx, text, bias)
}

func (s *Service) Preferences(ctx context.Context) Preferences {
	return s.preferences(ctx)
}

func (s *Service) SetPreferences(ctx context.Context, p Preferences) (Preferences, error) {
	if p.DistanceUnit == "" {
		p.DistanceUnit = s.opts.Preferences.DistanceUnit
	}
	if p.VehicleType == "" {
		p.VehicleType = s.opts.Preferences.VehicleType
	}
	if p.AverageTimeAtStop.Minutes < 0 || p.AverageTimeAtStop.Seconds < 0 || p.AverageTimeAtStop.Seconds >= 60 {
		return Preferences{}, ErrBadRequest
	}
	b, err := json.Marshal(p)
	if err != nil {
		return Preferences{}, err
	}
	if err := s.sessions.Set(ctx, session.KeyPreferences, b); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

func (s *Service) preferences(ctx context.Context) Preferences {
	raw, ok, err := s.sessions.Get(ctx, session.KeyPreferences)
	if err != nil || !ok {
		return s.opts.Preferences
	}
	p := s.opts.Preferences
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Printf("[trip] bad preferences payload: %v", err)
		return s.opts.Preferences
	}
	return p
}

// mutate loads the current trip, applies fn and saves on success.
func (s *Service) mutate(ctx context.Context, fn func(RouteTrip) (RouteTrip, error)) (RouteTrip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok, err := s.loadCurrent(ctx)
	if err != nil {
		return RouteTrip{}, err
	}
	if !ok {
		return RouteTrip{}, ErrNoCurrentTrip
	}
	out, err := fn(cur)
	if err != nil {
		return cur, err
	}
	if err := s.saveCurrent(ctx, out); err != nil {
		return RouteTrip{}, err
	}
	return out, nil
}

// finish applies fn and always saves, since fn clears the in-flight flag.
func (s *Service) finish(ctx context.Context, fn func(RouteTrip) (RouteTrip, error)) (RouteTrip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok, err := s.loadCurrent(ctx)
	if err != nil {
		return RouteTrip{}, err
	}
	if !ok {
		return RouteTrip{}, ErrOptimizationStale
	}
	out, opErr := fn(cur)
	if err := s.saveCurrent(ctx, out); err != nil {
		return RouteTrip{}, err
	}
	return out, opErr
}

func (s *Service) loadCurrent(ctx context.Context) (RouteTrip, bool, error) {
	raw, ok, err := s.sessions.Get(ctx, session.KeyCurrentTrip)
	if err != nil || !ok {
		return RouteTrip{}, false, err
	}
	var t RouteTrip
	if err := json.Unmarshal(raw, &t); err != nil {
		return RouteTrip{}, false, fmt.Errorf("decode current trip: %w", err)
	}
	if t.Locations == nil {
		t.Locations = []Stop{}
	}
	return t, true, nil
}

func (s *Service) saveCurrent(ctx context.Context, t RouteTrip) error {
	t = Revalidate(t)
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.sessions.Set(ctx, session.KeyCurrentTrip, b)
}

func (s *Service) loadHistory(ctx context.Context) ([]RouteTrip, error) {
	raw, ok, err := s.sessions.Get(ctx, session.KeyTripHistory)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []RouteTrip{}, nil
	}
	var out []RouteTrip
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode trip history: %w", err)
	}
	return out, nil
}

func (s *Service) saveHistory(ctx context.Context, history []RouteTrip) error {
	b, err := json.Marshal(history)
	if err != nil {
		return err
	}
	return s.sessions.Set(ctx, session.KeyTripHistory, b)
}

func (s *Service) pushHistory(ctx context.Context, t RouteTrip) error {
	history, err := s.loadHistory(ctx)
	if err != nil {
		return err
	}
	t.IsOptimizing = false
	return s.saveHistory(ctx, upsert(history, t))
}

func upsert(history []RouteTrip, t RouteTrip) []RouteTrip {
	for i, h := range history {
		if h.TripID == t.TripID {
			history[i] = t
			return history
		}
	}
	return append(history, t)
}
