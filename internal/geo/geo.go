package geo

import (
	"math"

	"github.com/langchou/runtrack/internal/models"
)

// EarthRadiusKm 地球半径 (km)
const EarthRadiusKm = 6371.0

// DistanceKm 使用 Haversine 公式计算两点间的大圆距离 (km)
func DistanceKm(a, b models.GeoPoint) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)
	lat1 := toRad(a.Latitude)
	lat2 := toRad(b.Latitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Valid 检查经纬度是否为有限数值
func Valid(p models.GeoPoint) bool {
	return finite(p.Latitude) && finite(p.Longitude)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
