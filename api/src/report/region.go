package report

import (
	"math"

	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
)

const (
	LocationPrecision = "~1km"
	earthRadiusKm     = 6371.0
)

// Region is the service area as a lat/long bounding box.
type Region struct {
	LatMin  float64
	LatMax  float64
	LongMin float64
	LongMax float64
}

// DefaultRegion covers Bolivia.
var DefaultRegion = Region{LatMin: -23.0, LatMax: -9.5, LongMin: -69.7, LongMax: -57.4}

func (r Region) Contains(lat, long float64) bool {
	return lat >= r.LatMin && lat <= r.LatMax && long >= r.LongMin && long <= r.LongMax
}

func (r Region) Check(lat, long float64) error {
	if math.IsNaN(lat) || math.IsNaN(long) || !r.Contains(lat, long) {
		return apperror.Geofence()
	}
	return nil
}

// RoundCoordinate keeps two decimals, roughly one kilometre.
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100) / 100
}

// DistanceKm is the haversine distance between two points.
func DistanceKm(lat1, long1, lat2, long2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLong := toRad(long2 - long1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLong/2)*math.Sin(dLong/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
