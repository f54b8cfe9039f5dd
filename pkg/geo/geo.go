package geo

import "math"

const (
	// MetersPerDegreeLat is the equirectangular approximation constant:
	// one degree of latitude is very close to 111,320 meters everywhere.
	MetersPerDegreeLat = 111320.0

	earthRadiusMeters = 6371000.0
)

// MetersPerDegreeLng returns the east-west meters covered by one degree of
// longitude at the given latitude.
func MetersPerDegreeLng(lat float64) float64 {
	return MetersPerDegreeLat * math.Cos(lat*math.Pi/180)
}

// CellIndex maps a coordinate onto a square grid of cellSizeMeters. The
// longitude axis is scaled by the latitude so cells stay roughly square.
func CellIndex(lat, lng, cellSizeMeters float64) (int64, int64) {
	cellY := int64(math.Floor(lat * MetersPerDegreeLat / cellSizeMeters))
	cellX := int64(math.Floor(lng * MetersPerDegreeLng(lat) / cellSizeMeters))
	return cellX, cellY
}

// HaversineMeters returns the great-circle distance between two coordinates.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}
