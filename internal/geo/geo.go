package geo

import (
	"math"

	"github.com/chrisdamba/dronesim/internal/models"
)

// EarthRadiusKm is Earth's radius in kilometers for great-circle calculations.
const EarthRadiusKm = 6371.0

// DistanceKm calculates the great-circle distance between two points on Earth
// in kilometers using the Haversine formula.
func DistanceKm(a, b models.Location) float64 {
	lat1 := degreesToRadians(a.Lat)
	lon1 := degreesToRadians(a.Lon)
	lat2 := degreesToRadians(b.Lat)
	lon2 := degreesToRadians(b.Lon)

	dlat := lat2 - lat1
	dlon := lon2 - lon1
	h := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// DestinationPoint returns the point reached after flying at speedKmh for the
// given number of seconds along the initial bearing from current towards
// target. The travel distance is not clamped to the target; callers run their
// arrival-threshold check before moving, which is what prevents visible
// overshoot.
func DestinationPoint(current, target models.Location, speedKmh float64, seconds int) models.Location {
	distKm := speedKmh * float64(seconds) / 3600.0
	angular := distKm / EarthRadiusKm
	bearing := InitialBearing(current, target)

	lat1 := degreesToRadians(current.Lat)
	lon1 := degreesToRadians(current.Lon)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angular) +
		math.Cos(lat1)*math.Sin(angular)*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(
		math.Sin(bearing)*math.Sin(angular)*math.Cos(lat1),
		math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2),
	)

	return models.Location{
		Lat: radiansToDegrees(lat2),
		Lon: normalizeLon(radiansToDegrees(lon2)),
	}
}

// InitialBearing returns the forward azimuth in radians from one point
// towards another.
func InitialBearing(from, to models.Location) float64 {
	lat1 := degreesToRadians(from.Lat)
	lat2 := degreesToRadians(to.Lat)
	dlon := degreesToRadians(to.Lon - from.Lon)

	y := math.Sin(dlon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dlon)
	return math.Atan2(y, x)
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func radiansToDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
