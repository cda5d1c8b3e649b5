// README: Session store contract: a key/value cell with change notification.
package session

import (
	"context"
	"time"
)

const (
	KeyCurrentTrip = "current_route_trip"
	KeyTripHistory = "route_trip_data"
	KeyPreferences = "preferences"
)

// Change is delivered to subscribers after every Set or Delete. Value is nil on delete.
type Change struct {
	Key   string    `json:"key"`
	Value []byte    `json:"value,omitempty"`
	At    time.Time `json:"at"`
}

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Subscribe returns a buffered change channel and a cancel func that closes it.
	Subscribe(key string) (<-chan Change, func())
}
