package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// GeoPoint 经纬度坐标 (度)
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationFix 定位源上报的一次原始定位
type LocationFix struct {
	Point     GeoPoint `json:"point"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // 水平精度 (米)
	Speed     *float64 `json:"speed,omitempty"`    // 设备速度 (m/s)
	Altitude  *float64 `json:"altitude,omitempty"` // 海拔 (米)
	Timestamp int64    `json:"timestamp"`          // epoch ms, 0 表示不可用
}

// Route 轨迹点序列，以 JSONB 存储
type Route []GeoPoint

// Value 实现 driver.Valuer 接口，用于存储到数据库
func (r Route) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]GeoPoint(r))
}

// Scan 实现 sql.Scanner 接口，用于从数据库读取
func (r *Route) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]GeoPoint)(r))
	case string:
		return json.Unmarshal([]byte(v), (*[]GeoPoint)(r))
	default:
		return fmt.Errorf("scan route: unsupported type %T", value)
	}
}
