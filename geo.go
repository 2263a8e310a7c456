package main

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// Location is a WGS84 point as sent by browsers' geolocation API.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (l Location) Validate() error {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lon) {
		return fmt.Errorf("%w: NaN coordinate", ErrInvalidLocation)
	}
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("%w: lat %v out of range", ErrInvalidLocation, l.Lat)
	}
	if l.Lon < -180 || l.Lon > 180 {
		return fmt.Errorf("%w: lon %v out of range", ErrInvalidLocation, l.Lon)
	}
	return nil
}

// Distance returns the great-circle distance between a and b in kilometers
// (haversine on a spherical earth).
func Distance(a, b Location) float64 {
	dLat := deg2rad(b.Lat - a.Lat)
	dLon := deg2rad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(a.Lat))*math.Cos(deg2rad(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180
}
