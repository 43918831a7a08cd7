package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/runtrack/internal/metrics"
	"github.com/langchou/runtrack/internal/models"
)

// runSnapshot 结束时冻结的会话数据
type runSnapshot struct {
	elapsed     int
	distanceKm  float64
	route       []models.GeoPoint
	useSensor   bool
	sensorSteps int
	elevationM  float64
	weightKg    float64
	startedAt   time.Time
}

// finalize 校验、组装并保存跑步记录
func (s *Session) finalize(ctx context.Context, snap runSnapshot) StopResult {
	distance := metrics.Round(snap.distanceKm, 2)

	if snap.elapsed < s.opts.MinSaveSeconds || distance < s.opts.MinSaveDistanceKm {
		s.logger.Info("Run discarded",
			zap.Int("elapsed_s", snap.elapsed),
			zap.Float64("distance_km", distance))
		return StopResult{
			Outcome: OutcomeDiscarded,
			Message: fmt.Sprintf(msgTooShortFormat, s.opts.MinSaveSeconds, s.opts.MinSaveDistanceKm),
		}
	}

	if s.store == nil {
		s.logger.Error("No run store configured")
		return StopResult{Outcome: OutcomeFailed, Message: MsgSaveFailed}
	}

	rec := s.assemble(snap, distance)
	rec.MapImage = s.captureMap(ctx, rec.Route)

	id, err := s.store.AppendRun(ctx, s.userID, rec)
	if err != nil {
		s.logger.Error("Failed to save run",
			zap.Float64("distance_km", rec.Distance),
			zap.Int("time_s", rec.Time),
			zap.Error(err))
		return StopResult{Outcome: OutcomeFailed, Message: MsgSaveFailed}
	}
	rec.ID = id

	s.logger.Info("Run saved",
		zap.String("run_id", id),
		zap.Float64("distance_km", rec.Distance),
		zap.Int("time_s", rec.Time),
		zap.String("pace", rec.Pace))
	return StopResult{Outcome: OutcomeSaved, Message: MsgRunSaved, Record: rec}
}

// assemble 计算记录的派生字段
func (s *Session) assemble(snap runSnapshot, distance float64) *models.RunRecord {
	now := s.opts.Now().UnixMilli()

	startedAt := now - int64(snap.elapsed)*1000
	if !snap.startedAt.IsZero() {
		startedAt = snap.startedAt.UnixMilli()
	}

	steps := metrics.EstimateSteps(distance, s.opts.StrideM)
	source := models.StepSourceEstimated
	if snap.useSensor {
		steps = snap.sensorSteps
		source = models.StepSourceSensor
	}

	return &models.RunRecord{
		UserID:          s.userID,
		Time:            snap.elapsed,
		Distance:        distance,
		Pace:            metrics.FormatPace(float64(snap.elapsed), distance),
		Route:           models.Route(snap.route),
		Steps:           steps,
		StepSource:      source,
		AverageSpeedKmh: metrics.Round(metrics.AverageSpeedKmh(distance, snap.elapsed), 2),
		ElevationGainM:  metrics.Round(snap.elevationM, 1),
		Calories:        metrics.Calories(distance, snap.weightKg, s.opts.KcalPerKmPerKg),
		CreatedAt:       now,
		StartedAt:       startedAt,
		EndedAt:         now,
	}
}

// captureMap 生成地图快照，失败时返回 nil 不影响保存
func (s *Session) captureMap(ctx context.Context, route models.Route) *string {
	if !s.snapshotter.Enabled() || len(route) == 0 {
		return nil
	}

	if s.opts.MapCaptureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.MapCaptureTimeout)
		defer cancel()
	}

	uri, err := s.snapshotter.Capture(ctx, route)
	if err != nil {
		s.logger.Warn("Failed to capture map snapshot", zap.Error(err))
		return nil
	}
	return &uri
}
