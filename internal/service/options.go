package service

import (
	"time"

	"github.com/langchou/runtrack/internal/config"
	"github.com/langchou/runtrack/internal/metrics"
	"github.com/langchou/runtrack/internal/tracker"
)

// Options 会话参数
type Options struct {
	Filter                 tracker.Config
	StrideM                float64
	InitialFixAttempts     int
	TargetInitialAccuracyM float64
	InitialFixTimeout      time.Duration
	TimerInterval          time.Duration
	MinSaveSeconds         int
	MinSaveDistanceKm      float64
	MapCaptureTimeout      time.Duration
	SaveTimeout            time.Duration
	DefaultWeightKg        float64
	KcalPerKmPerKg         float64

	// Now 时钟，测试时可替换
	Now func() time.Time
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		Filter:                 tracker.DefaultConfig(),
		StrideM:                metrics.DefaultStrideM,
		InitialFixAttempts:     4,
		TargetInitialAccuracyM: 20,
		InitialFixTimeout:      12 * time.Second,
		TimerInterval:          500 * time.Millisecond,
		MinSaveSeconds:         15,
		MinSaveDistanceKm:      0.05,
		MapCaptureTimeout:      10 * time.Second,
		SaveTimeout:            30 * time.Second,
		DefaultWeightKg:        metrics.DefaultWeightKg,
		KcalPerKmPerKg:         metrics.DefaultKcalPerKmPerKg,
		Now:                    time.Now,
	}
}

// OptionsFromConfig 从配置构建参数
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Filter: tracker.Config{
			MaxAccuracyM:      cfg.MaxAccuracyM,
			MaxSegmentKm:      cfg.MaxSegmentKm,
			MinSegmentKm:      cfg.MinSegmentKm,
			MaxSpeedKmh:       cfg.MaxSpeedKmh,
			MaxElevationStepM: cfg.MaxElevationStepM,
		},
		StrideM:                cfg.StrideM,
		InitialFixAttempts:     cfg.InitialFixAttempts,
		TargetInitialAccuracyM: cfg.TargetInitialAccuracyM,
		InitialFixTimeout:      cfg.InitialFixTimeout,
		TimerInterval:          cfg.TimerInterval,
		MinSaveSeconds:         cfg.MinSaveSeconds,
		MinSaveDistanceKm:      cfg.MinSaveDistanceKm,
		MapCaptureTimeout:      cfg.MapCaptureTimeout,
		SaveTimeout:            cfg.SaveTimeout,
		DefaultWeightKg:        cfg.DefaultWeightKg,
		KcalPerKmPerKg:         cfg.KcalPerKmPerKg,
		Now:                    time.Now,
	}
}
