package service

import (
	"math"
	"sort"

	"github.com/jcuenca6779/urbandrive/internal/domain"
)

const earthRadiusKM = 6371.0

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := deg2rad(lat2 - lat1)
	dLon := deg2rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKM * c
}

// boundingBox is a cheap rectangular prefilter; exact distance is decided by
// haversine afterwards. Longitude degrees shrink with latitude.
func boundingBox(lat, lng, radiusKM float64) (minLat, maxLat, minLng, maxLng float64) {
	latDelta := radiusKM / 111.0

	cosLat := math.Cos(deg2rad(lat))
	if cosLat < 0.01 {
		cosLat = 0.01 // near the poles every longitude qualifies
	}
	lngDelta := radiusKM / (111.0 * cosLat)

	return lat - latDelta, lat + latDelta, lng - lngDelta, lng + lngDelta
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func roundKM(km float64) float64 {
	return math.Round(km*100) / 100
}

func sortFeaturesByDistance(features []domain.IncidentFeature) {
	sort.Slice(features, func(i, j int) bool {
		di, _ := features[i].Properties["distancia_km"].(float64)
		dj, _ := features[j].Properties["distancia_km"].(float64)
		return di < dj
	})
}
