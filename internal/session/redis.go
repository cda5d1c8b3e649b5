// README: Redis-backed session store; change notification over Redis Pub/Sub.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	valueKeyFormat   = "%s:session:%s"
	channelKeyFormat = "%s:session:changed:%s"
)

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

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.redis.Get(ctx, s.valueKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.write(ctx, key, value)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.write(ctx, key, nil)
}

func (s *RedisStore) write(ctx context.Context, key string, value []byte) error {
	payload, err := json.Marshal(Change{Key: key, Value: value, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	if value == nil {
		pipe.Del(ctx, s.valueKey(key))
	} else {
		pipe.Set(ctx, s.valueKey(key), value, 0)
	}
	pipe.Publish(ctx, s.channelKey(key), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session write %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Subscribe(key string) (<-chan Change, func()) {
	ch := make(chan Change, subscriberBuffer)
	ctx := context.Background()
	ps := s.redis.Subscribe(ctx, s.channelKey(key))
	// Wait for the subscription confirmation so no change published after return is missed.
	if _, err := ps.Receive(ctx); err != nil {
		log.Printf("[session] subscribe %s: %v", key, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				log.Printf("[session] bad change payload on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case ch <- c:
			default:
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = ps.Close()
			<-done
			close(ch)
		})
	}
	return ch, cancel
}

func (s *RedisStore) valueKey(key string) string {
	return fmt.Sprintf(valueKeyFormat, s.namespace, key)
}

func (s *RedisStore) channelKey(key string) string {
	return fmt.Sprintf(channelKeyFormat, s.namespace, key)
}
