package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/langchou/runtrack/internal/models"
)

// ParseFix 解析逗号分隔的定位数据
// 字段顺序: timestamp,lat,lng,accuracy,speed,altitude，空字段表示未上报
func ParseFix(value string) (models.LocationFix, error) {
	var fix models.LocationFix

	parts := strings.Split(strings.TrimSpace(value), ",")
	if len(parts) < 3 {
		return fix, fmt.Errorf("incomplete fix: %d fields", len(parts))
	}

	// 时间戳解析失败视为不可用
	fix.Timestamp, _ = strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return fix, fmt.Errorf("parse latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return fix, fmt.Errorf("parse longitude: %w", err)
	}
	fix.Point = models.GeoPoint{Latitude: lat, Longitude: lng}

	fix.Accuracy = optionalField(parts, 3)
	fix.Speed = optionalField(parts, 4)
	fix.Altitude = optionalField(parts, 5)
	return fix, nil
}

func optionalField(parts []string, i int) *float64 {
	if i >= len(parts) {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
	if err != nil {
		return nil
	}
	return &v
}
