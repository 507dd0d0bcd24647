package monitoring

import (
	"errors"
	"math"
)

// ErrInvalidSample marks a location sample with coordinates outside the
// valid range or non-finite values. Such samples never touch session state.
var ErrInvalidSample = errors.New("monitoring: invalid location sample")

// Coordinate is a WGS84 position.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Validate checks value ranges and rejects NaN and infinities.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return ErrInvalidSample
	}
	if c.Lat < -90 || c.Lat > 90 {
		return ErrInvalidSample
	}
	if c.Lng < -180 || c.Lng > 180 {
		return ErrInvalidSample
	}
	return nil
}

const earthRadiusKM = 6371.0

// DistanceKM returns the great-circle distance between two coordinates
// using the haversine formula.
func DistanceKM(a, b Coordinate) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKM * c
}
