// Package geo computes great-circle distances between coordinates and orders
// things by how far they are from a reference point.
package geo

import (
	"math"
	"slices"
	"strconv"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Locatable is anything with a position.
type Locatable interface {
	Coordinates() (lat, lng float64)
}

// Ranked pairs an item with its distance in kilometers from a reference point.
type Ranked[T Locatable] struct {
	Item     T
	Distance float64
}

// Distance returns the haversine distance in kilometers between two
// coordinates, rounded to two decimal places.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)
	deltaLat := toRadians(lat2 - lat1)
	deltaLng := toRadians(lng2 - lng1)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return math.Round(EarthRadiusKm*c*100) / 100
}

// DistanceTo is Distance from p to q.
func (p Point) DistanceTo(q Point) float64 {
	return Distance(p.Lat, p.Lng, q.Lat, q.Lng)
}

// SortByDistance returns a new slice of items annotated with their distance
// from ref, nearest first. Ties keep their input order.
func SortByDistance[T Locatable](items []T, ref Point) []Ranked[T] {
	ranked := make([]Ranked[T], len(items))
	for i, item := range items {
		lat, lng := item.Coordinates()
		ranked[i] = Ranked[T]{
			Item:     item,
			Distance: Distance(ref.Lat, ref.Lng, lat, lng),
		}
	}

	slices.SortStableFunc(ranked, func(a, b Ranked[T]) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})

	return ranked
}

// FormatDistance renders kilometers for display: whole meters below 1 km
// ("350m"), one decimal with a km suffix otherwise ("1.2km").
func FormatDistance(km float64) string {
	if km < 1 {
		return strconv.FormatFloat(math.Round(km*1000), 'f', 0, 64) + "m"
	}
	// Round half up; FormatFloat alone rounds exact ties to even.
	return strconv.FormatFloat(math.Round(km*10)/10, 'f', 1, 64) + "km"
}

// ValidCoordinates reports whether lat/lng are finite and within range.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
