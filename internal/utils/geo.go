package utils

import "math"

const earthRadiusMeters = 6371000

// Haversine returns the great-circle distance in meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaPhi := (lat2 - lat1) * math.Pi / 180
	deltaLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// BearingBetweenPoints returns the initial bearing in degrees from point 1
// to point 2.
func BearingBetweenPoints(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(deltaLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLon)

	return math.Mod(math.Atan2(y, x)*180/math.Pi+360, 360)
}

func BearingToCompass(bearing float64) string {
	directions := []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	return directions[int((bearing+22.5)/45.0)%8]
}

// CompassDirection is the 8-point heading of a walk from point 1 to point 2.
func CompassDirection(lat1, lon1, lat2, lon2 float64) string {
	return BearingToCompass(BearingBetweenPoints(lat1, lon1, lat2, lon2))
}

// WalkingSeconds converts a distance to a walking duration, rounded up.
func WalkingSeconds(meters, speed float64) int32 {
	if speed <= 0 {
		return 0
	}
	return int32(math.Ceil(meters / speed))
}
