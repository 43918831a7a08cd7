package tracker

import (
	"github.com/langchou/runtrack/internal/metrics"
	"github.com/langchou/runtrack/internal/models"
)

// Steps 步数来源：计步器累计值或按距离估算
type Steps struct {
	strideM   float64
	useSensor bool
	count     int
}

// NewSteps 创建步数累计器
func NewSteps(strideM float64) *Steps {
	if strideM <= 0 {
		strideM = metrics.DefaultStrideM
	}
	return &Steps{strideM: strideM}
}

// UseSensor 切换到计步器模式
func (s *Steps) UseSensor(on bool) {
	s.useSensor = on
}

// SetSensorCount 记录计步器上报的累计步数，负数和回退忽略
func (s *Steps) SetSensorCount(n int) {
	if n < 0 || n < s.count {
		return
	}
	s.count = n
}

// Total 当前步数
func (s *Steps) Total(distanceKm float64) int {
	if s.useSensor {
		return s.count
	}
	return metrics.EstimateSteps(distanceKm, s.strideM)
}

// Source 步数来源
func (s *Steps) Source() models.StepSource {
	if s.useSensor {
		return models.StepSourceSensor
	}
	return models.StepSourceEstimated
}

// Reset 清零并回到估算模式
func (s *Steps) Reset() {
	s.useSensor = false
	s.count = 0
}
