package geo

import (
	"errors"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used by [DistanceMeters].
const EarthRadiusMeters = 6371000.0

var (
	// ErrInvalidRadius is returned when a perimeter radius is not a positive finite number.
	ErrInvalidRadius = errors.New("perimeter radius must be a positive finite number")
	// ErrInvalidCenter is returned when a perimeter centre is outside WGS 84 bounds.
	ErrInvalidCenter = errors.New("perimeter center out of range")
)

// Coordinate is an immutable WGS 84 point in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Valid reports whether c lies within latitude [-90, 90] and longitude [-180, 180].
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Perimeter is a circular fence around a centre point.
type Perimeter struct {
	Center       Coordinate `json:"center" yaml:"center"`
	RadiusMeters float64    `json:"radius_meters" yaml:"radius_meters"`
}

// Validate checks that the perimeter can be evaluated.
func (p Perimeter) Validate() error {
	if math.IsNaN(p.RadiusMeters) || math.IsInf(p.RadiusMeters, 0) || p.RadiusMeters <= 0 {
		return ErrInvalidRadius
	}
	if !p.Center.Valid() {
		return ErrInvalidCenter
	}
	return nil
}

// Distance returns the distance in meters from the perimeter centre to c.
func (p Perimeter) Distance(c Coordinate) float64 {
	return DistanceMeters(c, p.Center)
}

// Contains is shorthand for [IsWithinPerimeter](c, p).
func (p Perimeter) Contains(c Coordinate) bool {
	return IsWithinPerimeter(c, p)
}

// DistanceMeters returns the great-circle distance between a and b using the
// Haversine formula.
func DistanceMeters(a, b Coordinate) float64 {
	phi1 := toRadians(a.Latitude)
	phi2 := toRadians(b.Latitude)
	dPhi := toRadians(b.Latitude - a.Latitude)
	dLambda := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// IsWithinPerimeter reports whether user is at most p.RadiusMeters from the centre.
// The boundary is inclusive.
func IsWithinPerimeter(user Coordinate, p Perimeter) bool {
	return DistanceMeters(user, p.Center) <= p.RadiusMeters
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
