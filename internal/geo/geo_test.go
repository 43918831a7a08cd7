package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/langchou/runtrack/internal/models"
)

func TestDistanceKmZero(t *testing.T) {
	p := models.GeoPoint{Latitude: 18.7883, Longitude: 98.9853}
	assert.Equal(t, 0.0, DistanceKm(p, p))
}

func TestDistanceKmSymmetric(t *testing.T) {
	points := []models.GeoPoint{
		{Latitude: 18.7883, Longitude: 98.9853},
		{Latitude: -6.2, Longitude: 106.816},
		{Latitude: 51.5007, Longitude: -0.1246},
		{Latitude: -33.8568, Longitude: 151.2153},
	}
	for _, a := range points {
		for _, b := range points {
			assert.InDelta(t, DistanceKm(a, b), DistanceKm(b, a), 1e-9)
		}
	}
}

func TestDistanceKmKnownPair(t *testing.T) {
	// Jakarta -> Bandung, roughly 115-120 km
	d := DistanceKm(
		models.GeoPoint{Latitude: -6.2, Longitude: 106.816},
		models.GeoPoint{Latitude: -6.9175, Longitude: 107.6191},
	)
	assert.Greater(t, d, 100.0)
	assert.Less(t, d, 140.0)
}

func TestDistanceKmOneHundredthDegree(t *testing.T) {
	// 0.01° of latitude is ~1.112 km on a 6371 km sphere
	d := DistanceKm(
		models.GeoPoint{Latitude: 0, Longitude: 0},
		models.GeoPoint{Latitude: 0.01, Longitude: 0},
	)
	assert.InDelta(t, 6371*0.01*math.Pi/180, d, 1e-9)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(models.GeoPoint{Latitude: 1, Longitude: 2}))
	assert.False(t, Valid(models.GeoPoint{Latitude: math.NaN(), Longitude: 2}))
	assert.False(t, Valid(models.GeoPoint{Latitude: 1, Longitude: math.Inf(1)}))
}
