package monitoring

import "fmt"

// Geofence is the school-centered circle pair that drives zone
// classification. ArrivalRadiusKM must sit strictly inside RadiusKM;
// anything else is a configuration error and the process must not start.
type Geofence struct {
	Center          Coordinate
	RadiusKM        float64
	ArrivalRadiusKM float64
}

// NewGeofence validates and builds a geofence.
func NewGeofence(center Coordinate, radiusKM, arrivalRadiusKM float64) (Geofence, error) {
	if err := center.Validate(); err != nil {
		return Geofence{}, fmt.Errorf("monitoring: geofence center: %w", err)
	}
	if radiusKM <= 0 {
		return Geofence{}, fmt.Errorf("monitoring: radius must be positive, got %v", radiusKM)
	}
	if arrivalRadiusKM <= 0 {
		return Geofence{}, fmt.Errorf("monitoring: arrival radius must be positive, got %v", arrivalRadiusKM)
	}
	if arrivalRadiusKM >= radiusKM {
		return Geofence{}, fmt.Errorf("monitoring: arrival radius %v must be smaller than radius %v", arrivalRadiusKM, radiusKM)
	}
	return Geofence{Center: center, RadiusKM: radiusKM, ArrivalRadiusKM: arrivalRadiusKM}, nil
}

// Classify maps a distance from the center to a zone. Boundaries are
// inclusive: exactly on a radius counts as inside it.
func (g Geofence) Classify(distanceKM float64) Zone {
	switch {
	case distanceKM <= g.ArrivalRadiusKM:
		return ZoneArrived
	case distanceKM <= g.RadiusKM:
		return ZoneNear
	default:
		return ZoneFar
	}
}

// ClassifyCoordinate computes the distance to the center and classifies it.
func (g Geofence) ClassifyCoordinate(c Coordinate) (Zone, float64) {
	d := DistanceKM(g.Center, c)
	return g.Classify(d), d
}
