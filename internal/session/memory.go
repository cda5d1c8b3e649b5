// README: In-process session store with broker fan-out to subscribers.
package session

import (
	"context"
	"sync"
	"time"
)

const subscriberBuffer = 8

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	broker *broker
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string][]byte{}, broker: newBroker()}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	s.mu.Lock()
	s.values[key] = v
	s.mu.Unlock()
	s.broker.publish(Change{Key: key, Value: v, At: time.Now()})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	s.broker.publish(Change{Key: key, At: time.Now()})
	return nil
}

func (s *MemoryStore) Subscribe(key string) (<-chan Change, func()) {
	return s.broker.subscribe(key)
}

// broker fans changes out per key. Slow subscribers drop changes instead of blocking writers.
type broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Change]struct{}
}

func newBroker() *broker {
	return &broker{subs: map[string]map[chan Change]struct{}{}}
}

func (b *broker) subscribe(key string) (<-chan Change, func()) {
	ch := make(chan Change, subscriberBuffer)
	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = map[chan Change]struct{}{}
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if m := b.subs[key]; m != nil {
				delete(m, ch)
				if len(m) == 0 {
					delete(b.subs, key)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (b *broker) publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[c.Key] {
		select {
		case ch <- c:
		default:
		}
	}
}
