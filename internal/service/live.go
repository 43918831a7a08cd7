package service

import (
	"context"

	"github.com/langchou/runtrack/internal/metrics"
	"github.com/langchou/runtrack/internal/models"
	"github.com/langchou/runtrack/internal/state"
)

// LiveState 实时跑步数据，每次读取时重新计算
type LiveState struct {
	UserID          string            `json:"user_id"`
	Status          string            `json:"status"`
	Busy            bool              `json:"busy"`
	ElapsedSeconds  int               `json:"elapsed_seconds"`
	Clock           string            `json:"clock"`
	DistanceKm      float64           `json:"distance_km"`
	Pace            string            `json:"pace"`
	SpeedKmh        float64           `json:"speed_kmh"` // 瞬时速度，无则为平均速度
	AverageSpeedKmh float64           `json:"average_speed_kmh"`
	CadenceSpm      int               `json:"cadence_spm"`
	Calories        int               `json:"calories"`
	ElevationGainM  float64           `json:"elevation_gain_m"`
	Steps           int               `json:"steps"`
	StepSource      models.StepSource `json:"step_source"`
	Location        *models.GeoPoint  `json:"location,omitempty"`
	Route           []models.GeoPoint `json:"route"`
}

// idleState 没有会话的用户的状态
func idleState(userID string) LiveState {
	return LiveState{
		UserID:     userID,
		Status:     state.StateIdle,
		Clock:      metrics.FormatClock(0),
		Pace:       metrics.FormatPace(0, 0),
		StepSource: models.StepSourceEstimated,
		Route:      []models.GeoPoint{},
	}
}

// Store 跑步记录存储
type Store interface {
	// UserWeight 用户体重，未设置时 ok 为 false
	UserWeight(ctx context.Context, userID string) (float64, bool, error)
	// AppendRun 追加一条跑步记录，返回新记录 ID
	AppendRun(ctx context.Context, userID string, rec *models.RunRecord) (string, error)
}
