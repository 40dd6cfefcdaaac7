package model

import "math"

// GeoRegion is static reference data for one provider region, used for
// geo-shard distance computation only.
type GeoRegion struct {
	ID        string  `json:"id" yaml:"id"`
	Provider  string  `json:"provider" yaml:"provider"`
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two regions in
// kilometers, via the haversine formula.
func (r GeoRegion) DistanceKm(other GeoRegion) float64 {
	return HaversineKm(r.Latitude, r.Longitude, other.Latitude, other.Longitude)
}

// HaversineKm computes the great-circle distance between two lat/long pairs
// (degrees) in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
