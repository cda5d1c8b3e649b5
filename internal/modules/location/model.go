// README: Device location fix reported by the driver's phone.
package location

import (
	"time"

	"routetrip/internal/types"
)

// DefaultDeviceID is used when a single-driver deployment does not name its device.
const DefaultDeviceID types.ID = "device"

type Fix struct {
	DeviceID   types.ID    `json:"deviceId"`
	Position   types.Point `json:"position"`
	Accuracy   float64     `json:"accuracy,omitempty"`
	RecordedAt time.Time   `json:"recordedAt"`
}

type Update struct {
	DeviceID types.ID
	Position types.Point
	Accuracy float64
	// RecordedAt defaults to the receive time when zero.
	RecordedAt time.Time
}

type UpdateResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}
