// Package geo holds the great-circle math shared by the search engine.
//
// Every distance in the system is expressed in statute miles. Kilometres are
// never accepted or returned; MilesToMeters exists only to feed PostGIS, whose
// geography functions work in meters.
package geo

import (
	"fmt"
	"math"
)

const (
	// EarthRadiusMiles is the mean earth radius used by the haversine formula.
	EarthRadiusMiles = 3958.8

	// MetersPerMile converts miles to the meters PostGIS geography functions expect.
	MetersPerMile = 1609.344
)

// Point is a coordinate pair in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewPoint returns a point, or nil when either coordinate is missing.
func NewPoint(lat, lon *float64) *Point {
	if lat == nil || lon == nil {
		return nil
	}
	return &Point{Latitude: *lat, Longitude: *lon}
}

// Validate checks that a coordinate pair lies within the global ranges.
func Validate(lat, lon float64) error {
	if err := ValidateLatitude(lat); err != nil {
		return err
	}
	return ValidateLongitude(lon)
}

// ValidateLatitude checks lat lies in [-90, 90].
func ValidateLatitude(lat float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	return nil
}

// ValidateLongitude checks lon lies in [-180, 180].
func ValidateLongitude(lon float64) error {
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lon)
	}
	return nil
}

// DistanceMiles returns the haversine great-circle distance between two points.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degreesToRadians(lat1))*math.Cos(degreesToRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMiles * c
}

// Distance returns the distance from center to p. A nil point is infinitely far.
func Distance(center Point, p *Point) float64 {
	if p == nil {
		return math.Inf(1)
	}
	return DistanceMiles(center.Latitude, center.Longitude, p.Latitude, p.Longitude)
}

// WithinRadius reports whether p lies within radiusMiles of center. A nil point never does.
func WithinRadius(center Point, radiusMiles float64, p *Point) bool {
	if p == nil {
		return false
	}
	return Distance(center, p) <= radiusMiles
}

// MilesToMeters converts a distance for PostGIS.
func MilesToMeters(miles float64) float64 {
	return miles * MetersPerMile
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
