package tracker

import (
	"math"

	"github.com/langchou/runtrack/internal/geo"
	"github.com/langchou/runtrack/internal/models"
)

// Result 单个定位点的处理结果
type Result int

const (
	Accepted Result = iota
	Jitter
	RejectedInvalid
	RejectedAccuracy
	RejectedTeleport
	RejectedSpeed
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Jitter:
		return "jitter"
	case RejectedInvalid:
		return "rejected_invalid"
	case RejectedAccuracy:
		return "rejected_accuracy"
	case RejectedTeleport:
		return "rejected_teleport"
	case RejectedSpeed:
		return "rejected_speed"
	default:
		return "unknown"
	}
}

// Rejected 是否被丢弃 (不影响任何状态)
func (r Result) Rejected() bool {
	return r >= RejectedInvalid
}

// Config 过滤阈值
type Config struct {
	MaxAccuracyM      float64
	MaxSegmentKm      float64
	MinSegmentKm      float64
	MaxSpeedKmh       float64
	MaxElevationStepM float64
}

// DefaultConfig 默认阈值
func DefaultConfig() Config {
	return Config{
		MaxAccuracyM:      30,
		MaxSegmentKm:      0.3,
		MinSegmentKm:      0.003,
		MaxSpeedKmh:       35,
		MaxElevationStepM: 4,
	}
}

// Filter 单次跑步的定位过滤器，非并发安全，由所属会话串行调用
type Filter struct {
	cfg Config

	trajectory []models.GeoPoint
	distanceKm float64

	hasRef      bool
	lastPoint   models.GeoPoint
	lastTime    int64
	hasAltitude bool
	lastAlt     float64
	elevationM  float64

	instantKmh float64
	current    models.GeoPoint
	hasCurrent bool
}

// NewFilter 创建过滤器
func NewFilter(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Ingest 处理一个定位点
func (f *Filter) Ingest(fix models.LocationFix) Result {
	if !geo.Valid(fix.Point) {
		return RejectedInvalid
	}
	if fix.Accuracy != nil && *fix.Accuracy > f.cfg.MaxAccuracyM {
		return RejectedAccuracy
	}

	if !f.hasRef {
		f.accept(fix, 0)
		f.touch(fix)
		return Accepted
	}

	segment := geo.DistanceKm(f.lastPoint, fix.Point)
	if segment > f.cfg.MaxSegmentKm {
		return RejectedTeleport
	}
	if segment < f.cfg.MinSegmentKm {
		f.touch(fix)
		return Jitter
	}

	if f.lastTime > 0 && fix.Timestamp > f.lastTime {
		hours := float64(fix.Timestamp-f.lastTime) / 3_600_000
		if segment/hours > f.cfg.MaxSpeedKmh {
			return RejectedSpeed
		}
	}

	f.accept(fix, segment)
	f.touch(fix)
	return Accepted
}

// Seed 用初始定位点初始化轨迹
func (f *Filter) Seed(fix models.LocationFix) {
	f.Reset()
	f.accept(fix, 0)
	f.touch(fix)
}

func (f *Filter) accept(fix models.LocationFix, segment float64) {
	f.trajectory = append(f.trajectory, fix.Point)
	f.distanceKm += segment
	f.hasRef = true
	f.lastPoint = fix.Point
	f.lastTime = fix.Timestamp
}

// touch 更新当前位置、瞬时速度和海拔参考
func (f *Filter) touch(fix models.LocationFix) {
	f.current = fix.Point
	f.hasCurrent = true

	if fix.Speed != nil && finite(*fix.Speed) && *fix.Speed > 0 {
		f.instantKmh = *fix.Speed * 3.6
	} else {
		f.instantKmh = 0
	}

	if fix.Altitude == nil || !finite(*fix.Altitude) {
		return
	}
	alt := *fix.Altitude
	if f.hasAltitude {
		gain := alt - f.lastAlt
		if gain > 0 && gain < f.cfg.MaxElevationStepM {
			f.elevationM += gain
		}
	}
	f.lastAlt = alt
	f.hasAltitude = true
}

// Trajectory 已接受的轨迹副本
func (f *Filter) Trajectory() []models.GeoPoint {
	out := make([]models.GeoPoint, len(f.trajectory))
	copy(out, f.trajectory)
	return out
}

// DistanceKm 累计距离
func (f *Filter) DistanceKm() float64 {
	return f.distanceKm
}

// ElevationGainM 累计爬升
func (f *Filter) ElevationGainM() float64 {
	return f.elevationM
}

// InstantSpeedKmh 最近一次定位的瞬时速度
func (f *Filter) InstantSpeedKmh() float64 {
	return f.instantKmh
}

// Current 当前显示位置
func (f *Filter) Current() (models.GeoPoint, bool) {
	return f.current, f.hasCurrent
}

// Reset 清空所有累计状态
func (f *Filter) Reset() {
	*f = Filter{cfg: f.cfg}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
