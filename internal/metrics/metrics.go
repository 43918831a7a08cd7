package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// 默认参数
const (
	DefaultStrideM        = 0.78
	DefaultKcalPerKmPerKg = 1.036
	DefaultWeightKg       = 65.0
)

// FormatPace 配速 (每公里用时)，格式 m:ss；无法计算时返回 "--"
func FormatPace(seconds, distanceKm float64) string {
	if !finite(seconds) || !finite(distanceKm) || distanceKm <= 0 {
		return "--"
	}

	paceSeconds := int(math.Round(seconds / distanceKm))
	return fmt.Sprintf("%d:%02d", paceSeconds/60, paceSeconds%60)
}

// FormatClock 计时显示，超过一小时为 h:mm:ss，否则 m:ss
func FormatClock(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// AverageSpeedKmh 平均速度 (km/h)
func AverageSpeedKmh(distanceKm float64, seconds int) float64 {
	if seconds <= 0 {
		return 0
	}
	return distanceKm / (float64(seconds) / 3600)
}

// Calories 按距离和体重估算卡路里
func Calories(distanceKm, weightKg, kcalPerKmPerKg float64) int {
	kcal := math.Round(distanceKm * weightKg * kcalPerKmPerKg)
	if !finite(kcal) || kcal < 0 {
		return 0
	}
	return int(kcal)
}

// EstimateSteps 无计步传感器时按步幅估算步数
func EstimateSteps(distanceKm, strideM float64) int {
	if strideM <= 0 {
		strideM = DefaultStrideM
	}
	steps := math.Round(distanceKm * 1000 / strideM)
	if !finite(steps) || steps < 0 {
		return 0
	}
	return int(steps)
}

// CadenceSpm 步频 (步/分钟)
func CadenceSpm(steps, seconds int) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Round(float64(steps) / float64(seconds) * 60))
}

// Round 保留 digits 位小数，四舍五入
func Round(v float64, digits int) float64 {
	return scalar.Round(v, digits)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
