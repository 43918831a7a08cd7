package models

// StepSource 步数来源
type StepSource string

const (
	StepSourceSensor    StepSource = "sensor"
	StepSourceEstimated StepSource = "estimated"
)

// RunRecord 跑步记录，写入后不可变
// 历史、仪表盘、个人资料等页面都读取这一结构
type RunRecord struct {
	ID              string     `json:"id" db:"id"`
	UserID          string     `json:"user_id" db:"user_id"`
	Time            int        `json:"time" db:"time_s"`                       // 秒
	Distance        float64    `json:"distance" db:"distance_km"`              // km, 两位小数
	Pace            string     `json:"pace" db:"pace"`                         // m:ss 或 --
	Route           Route      `json:"route" db:"route"`                       // 轨迹
	MapImage        *string    `json:"mapImage" db:"map_image"`                // 地图快照 URI
	Steps           int        `json:"steps" db:"steps"`                       // 步数
	StepSource      StepSource `json:"stepSource" db:"step_source"`            // sensor | estimated
	AverageSpeedKmh float64    `json:"averageSpeedKmh" db:"average_speed_kmh"` // 两位小数
	ElevationGainM  float64    `json:"elevationGainM" db:"elevation_gain_m"`   // 一位小数
	Calories        int        `json:"calories" db:"calories"`                 // kcal
	CreatedAt       int64      `json:"createdAt" db:"created_at"`              // epoch ms
	StartedAt       int64      `json:"startedAt" db:"started_at"`              // epoch ms
	EndedAt         int64      `json:"endedAt" db:"ended_at"`                  // epoch ms
}
