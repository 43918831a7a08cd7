package service

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/langchou/runtrack/internal/geo"
	"github.com/langchou/runtrack/internal/models"
)

// acquireInitialFix 多次请求当前定位，保留精度最好的一次
// 达到目标精度提前结束；最佳结果精度仍不达标时不做初始化
func (s *Session) acquireInitialFix(ctx context.Context) (models.LocationFix, bool) {
	var best *models.LocationFix

	for attempt := 1; attempt <= s.opts.InitialFixAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.InitialFixTimeout)
		fix, err := s.location.CurrentFix(attemptCtx)
		cancel()
		if err != nil {
			s.logger.Debug("Initial fix attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		if betterFix(fix, best) {
			candidate := fix
			best = &candidate
		}

		if acc, ok := accuracyOf(fix); ok && acc <= s.opts.TargetInitialAccuracyM {
			break
		}
	}

	if best == nil || !geo.Valid(best.Point) {
		return models.LocationFix{}, false
	}
	if acc, ok := accuracyOf(*best); ok && acc > s.opts.Filter.MaxAccuracyM {
		s.logger.Debug("Initial fix too inaccurate", zap.Float64("accuracy_m", acc))
		return models.LocationFix{}, false
	}
	return *best, true
}

// betterFix 有精度的候选优于无精度的，精度值越小越好
func betterFix(candidate models.LocationFix, best *models.LocationFix) bool {
	if best == nil {
		return true
	}
	acc, ok := accuracyOf(candidate)
	if !ok {
		return false
	}
	bestAcc, bestOK := accuracyOf(*best)
	return !bestOK || acc < bestAcc
}

func accuracyOf(fix models.LocationFix) (float64, bool) {
	if fix.Accuracy == nil || math.IsNaN(*fix.Accuracy) || math.IsInf(*fix.Accuracy, 0) {
		return 0, false
	}
	return *fix.Accuracy, true
}
