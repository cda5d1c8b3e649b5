// README: Coordinate value object used by trips, geocoding and device location.
package types

import "strconv"

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether the point is still unresolved (0,0).
func (p Point) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

// String renders "lat,lng", the textual form accepted by routing providers.
func (p Point) String() string {
	return strconv.FormatFloat(p.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(p.Longitude, 'f', -1, 64)
}
