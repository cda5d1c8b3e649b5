// README: Location service keeps the last known device fix used as the optimization origin.
package location

import (
	"context"
	"errors"
	"log"
	"time"

	"routetrip/internal/types"
)

var ErrInvalidPosition = errors.New("invalid position")

type Options struct {
	// MinMoveMeters drops fixes that barely moved, unless the stored fix is older than Refresh.
	MinMoveMeters float64
	Refresh       time.Duration
	// MaxAge makes LastKnown ignore fixes older than this. Zero disables the check.
	MaxAge time.Duration
}

func DefaultOptions() Options {
	return Options{MinMoveMeters: 10, Refresh: time.Minute, MaxAge: 30 * time.Minute}
}

type Service struct {
	store    Store
	opts     Options
	deviceID types.ID
	now      func() time.Time
}

func NewService(store Store, opts Options) *Service {
	return &Service{store: store, opts: opts, deviceID: DefaultDeviceID, now: time.Now}
}

func (s *Service) Update(ctx context.Context, u Update) (UpdateResult, error) {
	p := u.Position
	if p.IsZero() || p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return UpdateResult{}, ErrInvalidPosition
	}
	if u.DeviceID == "" {
		u.DeviceID = s.deviceID
	}
	if u.RecordedAt.IsZero() {
		u.RecordedAt = s.now()
	}

	prev, ok, err := s.store.Load(ctx, u.DeviceID)
	if err != nil {
		return UpdateResult{}, err
	}
	if ok {
		if u.RecordedAt.Before(prev.RecordedAt) {
			return UpdateResult{Accepted: false, Reason: "out_of_order"}, nil
		}
		moved := haversineKm(prev.Position.Latitude, prev.Position.Longitude, p.Latitude, p.Longitude) * 1000
		if moved < s.opts.MinMoveMeters && u.RecordedAt.Sub(prev.RecordedAt) < s.opts.Refresh {
			return UpdateResult{Accepted: false, Reason: "too_close"}, nil
		}
	}

	f := Fix{DeviceID: u.DeviceID, Position: p, Accuracy: u.Accuracy, RecordedAt: u.RecordedAt}
	if err := s.store.Save(ctx, f); err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Accepted: true}, nil
}

// LastKnown implements the trip device locator for the default device.
func (s *Service) LastKnown(ctx context.Context) (types.Point, bool) {
	f, ok, err := s.store.Load(ctx, s.deviceID)
	if err != nil {
		log.Printf("[location] load %s: %v", s.deviceID, err)
		return types.Point{}, false
	}
	if !ok {
		return types.Point{}, false
	}
	if s.opts.MaxAge > 0 && s.now().Sub(f.RecordedAt) > s.opts.MaxAge {
		return types.Point{}, false
	}
	return f.Position, true
}

// Current returns the stored fix regardless of age.
func (s *Service) Current(ctx context.Context, id types.ID) (Fix, bool, error) {
	if id == "" {
		id = s.deviceID
	}
	return s.store.Load(ctx, id)
}
