// README: Location store backed by Redis GEO, with an in-memory fallback.
package location

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"routetrip/internal/types"
)

type Store interface {
	Save(ctx context.Context, f Fix) error
	Load(ctx context.Context, id types.ID) (Fix, bool, error)
}

// RedisStore keeps positions in a GEO set and fix metadata in a hash per device.
type RedisStore struct {
	redis     *redis.Client
	namespace string
}

func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	if namespace == "" {
		namespace = "routetrip"
	}
	return &RedisStore{redis: client, namespace: namespace}
}

func (s *RedisStore) geoKey() string {
	return s.namespace + ":geo:devices"
}

func (s *RedisStore) metaKey(id types.ID) string {
	return fmt.Sprintf("%s:device:%s", s.namespace, id)
}

func (s *RedisStore) Save(ctx context.Context, f Fix) error {
	pipe := s.redis.TxPipeline()
	pipe.GeoAdd(ctx, s.geoKey(), &redis.GeoLocation{
		Name:      string(f.DeviceID),
		Longitude: f.Position.Longitude,
		Latitude:  f.Position.Latitude,
	})
	pipe.HSet(ctx, s.metaKey(f.DeviceID),
		"recorded_at", f.RecordedAt.UnixMilli(),
		"accuracy", strconv.FormatFloat(f.Accuracy, 'f', -1, 64),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save device location: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id types.ID) (Fix, bool, error) {
	pos, err := s.redis.GeoPos(ctx, s.geoKey(), string(id)).Result()
	if err != nil {
		return Fix{}, false, fmt.Errorf("load device location: %w", err)
	}
	if len(pos) == 0 || pos[0] == nil {
		return Fix{}, false, nil
	}
	meta, err := s.redis.HGetAll(ctx, s.metaKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Fix{}, false, fmt.Errorf("load device metadata: %w", err)
	}
	f := Fix{
		DeviceID: id,
		Position: types.Point{Latitude: pos[0].Latitude, Longitude: pos[0].Longitude},
	}
	if ms, err := strconv.ParseInt(meta["recorded_at"], 10, 64); err == nil {
		f.RecordedAt = time.UnixMilli(ms).UTC()
	}
	if acc, err := strconv.ParseFloat(meta["accuracy"], 64); err == nil {
		f.Accuracy = acc
	}
	return f, true, nil
}

type MemoryStore struct {
	mu    sync.RWMutex
	fixes map[types.ID]Fix
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{fixes: map[types.ID]Fix{}}
}

func (s *MemoryStore) Save(_ context.Context, f Fix) error {
	s.mu.Lock()
	s.fixes[f.DeviceID] = f
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id types.ID) (Fix, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fixes[id]
	return f, ok, nil
}
