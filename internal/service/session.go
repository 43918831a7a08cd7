package service

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/runtrack/internal/metrics"
	"github.com/langchou/runtrack/internal/models"
	"github.com/langchou/runtrack/internal/sensor"
	"github.com/langchou/runtrack/internal/snapshot"
	"github.com/langchou/runtrack/internal/state"
	"github.com/langchou/runtrack/internal/tracker"
)

// Session 单个用户的跑步会话
// 定位、计步回调与计时器都在 mu 下串行处理
type Session struct {
	userID      string
	opts        Options
	logger      *zap.Logger
	location    sensor.LocationProvider
	steps       sensor.StepSensor
	store       Store
	snapshotter snapshot.Snapshotter
	machine     *state.Machine
	publish     func(LiveState)

	mu         sync.Mutex
	busy       bool
	retired    bool // 已从服务中移除
	gen        int // 每次开始或离开时递增，旧回调据此丢弃
	filter     *tracker.Filter
	stepCount  *tracker.Steps
	weightKg   float64
	startedAt  time.Time
	elapsed    int
	locSub     sensor.Subscription
	stepSub    sensor.Subscription
	timerStop  chan struct{}
	prepCancel context.CancelFunc
}

// NewSession 创建会话
func NewSession(
	userID string,
	opts Options,
	logger *zap.Logger,
	location sensor.LocationProvider,
	steps sensor.StepSensor,
	store Store,
	snapshotter snapshot.Snapshotter,
	machine *state.Machine,
	publish func(LiveState),
) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if snapshotter == nil {
		snapshotter = snapshot.Nop{}
	}
	if machine == nil {
		machine = state.NewMachine(userID, nil)
	}

	return &Session{
		userID:      userID,
		opts:        opts,
		logger:      logger.With(zap.String("uid", userID)),
		location:    location,
		steps:       steps,
		store:       store,
		snapshotter: snapshotter,
		machine:     machine,
		publish:     publish,
		filter:      tracker.NewFilter(opts.Filter),
		stepCount:   tracker.NewSteps(opts.StrideM),
		weightKg:    opts.DefaultWeightKg,
	}
}

// UserID 会话所属用户
func (s *Session) UserID() string {
	return s.userID
}

// Start 开始跑步：权限检查、初始定位、启动计时与定位订阅
func (s *Session) Start(ctx context.Context) StartResult {
	if s.userID == "" {
		return StartResult{Outcome: OutcomeFailed, Message: MsgNoUserSession}
	}

	s.mu.Lock()
	if s.busy || s.retired || !s.machine.Is(state.StateIdle) {
		s.mu.Unlock()
		return StartResult{Outcome: OutcomeIgnored}
	}
	if err := s.machine.Trigger(state.EventPrepare); err != nil {
		s.mu.Unlock()
		s.logger.Warn("Failed to enter preparing state", zap.Error(err))
		return StartResult{Outcome: OutcomeIgnored}
	}
	s.busy = true
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(ctx)
	s.prepCancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		if s.gen == gen {
			s.prepCancel = nil
		}
		s.busy = false
		s.mu.Unlock()
		s.publishState()
	}()

	granted, err := s.location.RequestPermission(ctx)
	if err != nil {
		s.logger.Warn("Location permission request failed", zap.Error(err))
		return s.failStart(gen, MsgPermissionError)
	}
	if !granted {
		return s.failStart(gen, MsgPermissionDenied)
	}

	enabled, err := s.location.ServicesEnabled(ctx)
	if err != nil {
		s.logger.Warn("Location services check failed", zap.Error(err))
		return s.failStart(gen, MsgStartFailed)
	}
	if !enabled {
		return s.failStart(gen, MsgServicesDisabled)
	}

	if err := s.location.EnableHighAccuracy(ctx); err != nil {
		s.logger.Debug("High accuracy provider not enabled", zap.Error(err))
	}

	weight := s.loadWeight(ctx)

	s.mu.Lock()
	s.resetLocked()
	s.weightKg = weight
	s.startedAt = s.opts.Now()
	s.mu.Unlock()

	s.startSteps(ctx, gen)

	fix, seeded := s.acquireInitialFix(ctx)
	if ctx.Err() != nil {
		return s.failStart(gen, MsgStartFailed)
	}
	if seeded {
		if fix.Timestamp <= 0 {
			fix.Timestamp = s.opts.Now().UnixMilli()
		}
		s.mu.Lock()
		if s.gen == gen {
			s.filter.Seed(fix)
		}
		s.mu.Unlock()
	} else {
		s.logger.Info("No usable initial fix, waiting for location updates")
	}

	s.startTimer(gen)

	sub, err := s.location.Watch(ctx, func(fix models.LocationFix) {
		s.onFix(gen, fix)
	})
	if err != nil {
		s.logger.Warn("Failed to watch location", zap.Error(err))
		return s.failStart(gen, MsgStartFailed)
	}

	s.mu.Lock()
	if s.gen != gen || !s.machine.Is(state.StatePreparing) {
		// 准备期间用户已离开
		s.mu.Unlock()
		sub.Cancel()
		return StartResult{Outcome: OutcomeIgnored}
	}
	s.locSub = sub
	if err := s.machine.Trigger(state.EventTrack); err != nil {
		s.mu.Unlock()
		s.logger.Warn("Failed to enter tracking state", zap.Error(err))
		return s.failStart(gen, MsgStartFailed)
	}
	s.mu.Unlock()

	s.logger.Info("Run started",
		zap.Bool("seeded", seeded),
		zap.Float64("weight_kg", weight))
	return StartResult{Outcome: OutcomeStarted}
}

// failStart 撤销准备阶段的所有资源并回到 idle
func (s *Session) failStart(gen int, message string) StartResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return StartResult{Outcome: OutcomeIgnored}
	}
	s.cancelSubsLocked()
	s.stopTimerLocked()
	s.resetLocked()
	if s.machine.CanTransition(state.EventAbort) {
		if err := s.machine.Trigger(state.EventAbort); err != nil {
			s.logger.Warn("Failed to abort start", zap.Error(err))
		}
	}

	s.logger.Info("Run start aborted", zap.String("reason", message))
	return StartResult{Outcome: OutcomeFailed, Message: message}
}

// loadWeight 读取用户体重，失败时使用默认值
func (s *Session) loadWeight(ctx context.Context) float64 {
	if s.store == nil {
		return s.opts.DefaultWeightKg
	}

	weight, ok, err := s.store.UserWeight(ctx, s.userID)
	if err != nil {
		s.logger.Warn("Failed to load user weight", zap.Error(err))
		return s.opts.DefaultWeightKg
	}
	if !ok || math.IsNaN(weight) || math.IsInf(weight, 0) || weight <= 0 {
		return s.opts.DefaultWeightKg
	}
	return weight
}

// startSteps 计步器可用且已授权时订阅，否则按距离估算
func (s *Session) startSteps(ctx context.Context, gen int) {
	if s.steps == nil {
		return
	}

	available, err := s.steps.IsAvailable(ctx)
	if err != nil || !available {
		s.logger.Debug("Step sensor unavailable, estimating steps", zap.Error(err))
		return
	}
	granted, err := s.steps.RequestPermission(ctx)
	if err != nil || !granted {
		s.logger.Debug("Step permission not granted, estimating steps", zap.Error(err))
		return
	}

	sub, err := s.steps.Watch(ctx, func(n int) {
		s.onSteps(gen, n)
	})
	if err != nil {
		s.logger.Warn("Failed to watch step sensor, estimating steps", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		sub.Cancel()
		return
	}
	s.stepSub = sub
	s.stepCount.UseSensor(true)
}

func (s *Session) onFix(gen int, fix models.LocationFix) {
	s.mu.Lock()
	if s.gen != gen || !s.machine.Is(state.StateTracking) {
		s.mu.Unlock()
		return
	}
	res := s.filter.Ingest(fix)
	s.mu.Unlock()

	if res.Rejected() {
		s.logger.Debug("Location fix rejected",
			zap.String("result", res.String()),
			zap.Float64("lat", fix.Point.Latitude),
			zap.Float64("lng", fix.Point.Longitude))
		return
	}
	s.publishState()
}

func (s *Session) onSteps(gen int, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return
	}
	if s.machine.Is(state.StatePreparing) || s.machine.Is(state.StateTracking) {
		s.stepCount.SetSensorCount(n)
	}
}

// startTimer 定时刷新计时并推送实时状态
func (s *Session) startTimer(gen int) {
	if s.opts.TimerInterval <= 0 {
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	stop := make(chan struct{})
	s.timerStop = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.opts.TimerInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.tick(gen)
			}
		}
	}()
}

func (s *Session) tick(gen int) {
	s.mu.Lock()
	if s.gen != gen || !s.machine.Is(state.StateTracking) {
		s.mu.Unlock()
		return
	}
	s.elapsed = s.elapsedLocked()
	s.mu.Unlock()

	s.publishState()
}

func (s *Session) elapsedLocked() int {
	if s.startedAt.IsZero() {
		return 0
	}
	secs := int(s.opts.Now().Sub(s.startedAt) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// State 当前实时状态
func (s *Session) State() LiveState {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := s.elapsed
	tracking := s.machine.Is(state.StateTracking)
	if tracking {
		elapsed = s.elapsedLocked()
	}

	distance := s.filter.DistanceKm()
	avg := metrics.AverageSpeedKmh(distance, elapsed)
	speed := s.filter.InstantSpeedKmh()
	if speed <= 0 {
		speed = avg
	}
	steps := s.stepCount.Total(distance)

	ls := LiveState{
		UserID:          s.userID,
		Status:          s.machine.CurrentState(),
		Busy:            s.busy,
		ElapsedSeconds:  elapsed,
		Clock:           metrics.FormatClock(elapsed),
		DistanceKm:      distance,
		Pace:            metrics.FormatPace(float64(elapsed), distance),
		SpeedKmh:        speed,
		AverageSpeedKmh: avg,
		CadenceSpm:      metrics.CadenceSpm(steps, elapsed),
		Calories:        metrics.Calories(distance, s.weightKg, s.opts.KcalPerKmPerKg),
		ElevationGainM:  s.filter.ElevationGainM(),
		Steps:           steps,
		StepSource:      s.stepCount.Source(),
		Route:           s.filter.Trajectory(),
	}
	if cur, ok := s.filter.Current(); ok {
		ls.Location = &cur
	}
	return ls
}

// Stop 结束跑步并保存记录，重复调用只会保存一次
func (s *Session) Stop(ctx context.Context) StopResult {
	s.mu.Lock()
	if s.busy || !s.machine.Is(state.StateTracking) {
		s.mu.Unlock()
		return StopResult{Outcome: OutcomeIgnored}
	}
	if err := s.machine.Trigger(state.EventStop); err != nil {
		s.mu.Unlock()
		s.logger.Warn("Failed to enter stopping state", zap.Error(err))
		return StopResult{Outcome: OutcomeIgnored}
	}
	s.busy = true
	s.cancelSubsLocked()
	s.stopTimerLocked()
	s.elapsed = s.elapsedLocked()
	snap := runSnapshot{
		elapsed:     s.elapsed,
		distanceKm:  s.filter.DistanceKm(),
		route:       s.filter.Trajectory(),
		useSensor:   s.stepCount.Source() == models.StepSourceSensor,
		sensorSteps: s.stepCount.Total(0),
		elevationM:  s.filter.ElevationGainM(),
		weightKg:    s.weightKg,
		startedAt:   s.startedAt,
	}
	s.mu.Unlock()

	s.publishState()

	// 保存不随调用方取消，客户端断开时记录照常写入
	saveCtx, cancel := s.saveContext(ctx)
	result := s.finalize(saveCtx, snap)
	cancel()

	s.mu.Lock()
	s.resetLocked()
	if s.machine.Is(state.StateStopping) {
		if err := s.machine.Trigger(state.EventFinish); err != nil {
			s.logger.Warn("Failed to finish run", zap.Error(err))
		}
	}
	s.busy = false
	s.mu.Unlock()

	s.publishState()
	return result
}

func (s *Session) saveContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.opts.SaveTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.SaveTimeout)
}

// Close 离开页面：取消订阅和计时，不保存
func (s *Session) Close() {
	s.mu.Lock()

	s.gen++
	if s.prepCancel != nil {
		s.prepCancel()
		s.prepCancel = nil
	}
	s.cancelSubsLocked()
	s.stopTimerLocked()

	// 保存流程进行中时由 Stop 自行收尾
	abandoned := false
	if !s.machine.Is(state.StateStopping) && s.machine.CanTransition(state.EventAbandon) {
		s.resetLocked()
		if err := s.machine.Trigger(state.EventAbandon); err != nil {
			s.logger.Warn("Failed to abandon run", zap.Error(err))
		} else {
			abandoned = true
		}
	}
	s.mu.Unlock()

	if abandoned {
		s.logger.Info("Run abandoned")
		s.publishState()
	}
}

// retire 空闲时停用会话，成功后 Start 不再生效
func (s *Session) retire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy || !s.machine.Is(state.StateIdle) {
		return false
	}
	s.retired = true
	return true
}

func (s *Session) cancelSubsLocked() {
	if s.locSub != nil {
		s.locSub.Cancel()
		s.locSub = nil
	}
	if s.stepSub != nil {
		s.stepSub.Cancel()
		s.stepSub = nil
	}
}

func (s *Session) stopTimerLocked() {
	if s.timerStop != nil {
		close(s.timerStop)
		s.timerStop = nil
	}
}

// resetLocked 清空本次跑步的累计数据
func (s *Session) resetLocked() {
	s.filter.Reset()
	s.stepCount.Reset()
	s.startedAt = time.Time{}
	s.elapsed = 0
}

func (s *Session) publishState() {
	if s.publish != nil {
		s.publish(s.State())
	}
}
