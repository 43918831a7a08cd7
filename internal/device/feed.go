// Package device 接收手机上报的传感器数据，并以 sensor 接口提供给跑步会话
package device

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/langchou/runtrack/internal/models"
	"github.com/langchou/runtrack/internal/sensor"
)

// Capabilities 手机上报的权限与能力
type Capabilities struct {
	LocationPermission  bool `json:"location_permission"`
	ServicesEnabled     bool `json:"services_enabled"`
	HighAccuracy        bool `json:"high_accuracy"`
	StepSensorAvailable bool `json:"step_sensor_available"`
	StepPermission      bool `json:"step_permission"`
}

var (
	errNoLocationPermission = errors.New("location permission not granted")
	errNoStepSensor         = errors.New("step sensor not available")
)

// Feed 单个用户的设备数据源，同时实现 sensor.LocationProvider 和 sensor.StepSensor
type Feed struct {
	logger *zap.Logger
	userID string

	mu        sync.Mutex
	caps      Capabilities
	closed    bool
	nextID    int
	fixSubs   map[int]func(models.LocationFix)
	stepSubs  map[int]*stepWatch
	waiters   []chan models.LocationFix
	lastSteps int
}

type stepWatch struct {
	baseline int // 订阅时的累计值
	raw      int // 最近一次上报的累计值
	offset   int // 计步器重启前已累计的步数
	onSteps  func(int)
}

// NewFeed 创建设备数据源
func NewFeed(logger *zap.Logger, userID string) *Feed {
	return &Feed{
		logger:   logger,
		userID:   userID,
		fixSubs:  make(map[int]func(models.LocationFix)),
		stepSubs: make(map[int]*stepWatch),
	}
}

// SetCapabilities 更新能力上报
func (f *Feed) SetCapabilities(caps Capabilities) {
	f.mu.Lock()
	f.caps = caps
	f.mu.Unlock()

	f.logger.Debug("Device capabilities updated",
		zap.String("uid", f.userID),
		zap.Bool("location_permission", caps.LocationPermission),
		zap.Bool("services_enabled", caps.ServicesEnabled),
		zap.Bool("step_sensor", caps.StepSensorAvailable))
}

// Capabilities 当前能力
func (f *Feed) Capabilities() Capabilities {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.caps
}

// PushFix 分发一个定位点给订阅者和等待者
func (f *Feed) PushFix(fix models.LocationFix) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	subs := make([]func(models.LocationFix), 0, len(f.fixSubs))
	for _, fn := range f.fixSubs {
		subs = append(subs, fn)
	}
	waiters := f.waiters
	f.waiters = nil
	f.mu.Unlock()

	for _, ch := range waiters {
		ch <- fix
	}
	// 回调在锁外执行，订阅者可能持有自己的锁
	for _, fn := range subs {
		fn(fix)
	}
}

// PushSteps 分发计步器累计值
func (f *Feed) PushSteps(total int) {
	if total < 0 {
		return
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.lastSteps = total
	type delivery struct {
		fn    func(int)
		steps int
	}
	out := make([]delivery, 0, len(f.stepSubs))
	for _, w := range f.stepSubs {
		// 手机计步器重启后累计值会变小，已送达的步数保留
		if total < w.raw {
			w.offset += w.raw - w.baseline
			w.baseline = 0
		}
		w.raw = total
		out = append(out, delivery{fn: w.onSteps, steps: w.offset + total - w.baseline})
	}
	f.mu.Unlock()

	for _, d := range out {
		d.fn(d.steps)
	}
}

// RequestPermission 定位权限
func (f *Feed) RequestPermission(ctx context.Context) (bool, error) {
	return f.Capabilities().LocationPermission, nil
}

// ServicesEnabled 定位服务是否开启
func (f *Feed) ServicesEnabled(ctx context.Context) (bool, error) {
	return f.Capabilities().ServicesEnabled, nil
}

// EnableHighAccuracy 高精度模式由手机端决定，这里只记录
func (f *Feed) EnableHighAccuracy(ctx context.Context) error {
	if !f.Capabilities().HighAccuracy {
		f.logger.Debug("Device did not report high accuracy mode", zap.String("uid", f.userID))
	}
	return nil
}

// CurrentFix 等待下一个上报的定位点
func (f *Feed) CurrentFix(ctx context.Context) (models.LocationFix, error) {
	ch := make(chan models.LocationFix, 1)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return models.LocationFix{}, sensor.ErrClosed
	}
	f.waiters = append(f.waiters, ch)
	f.mu.Unlock()

	select {
	case fix, ok := <-ch:
		if !ok {
			return models.LocationFix{}, sensor.ErrClosed
		}
		return fix, nil
	case <-ctx.Done():
		f.dropWaiter(ch)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.LocationFix{}, sensor.ErrTimeout
		}
		return models.LocationFix{}, ctx.Err()
	}
}

func (f *Feed) dropWaiter(ch chan models.LocationFix) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.waiters {
		if w == ch {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

// Watch 订阅定位点
func (f *Feed) Watch(ctx context.Context, onFix func(models.LocationFix)) (sensor.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, sensor.ErrClosed
	}
	if !f.caps.LocationPermission {
		return nil, errNoLocationPermission
	}

	id := f.nextID
	f.nextID++
	f.fixSubs[id] = onFix
	return f.subscription(func() { delete(f.fixSubs, id) }), nil
}

// IsAvailable 计步器是否可用
func (f *Feed) IsAvailable(ctx context.Context) (bool, error) {
	return f.Capabilities().StepSensorAvailable, nil
}

// WatchSteps 订阅计步器，回调值为订阅以来的步数
func (f *Feed) WatchSteps(ctx context.Context, onSteps func(int)) (sensor.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, sensor.ErrClosed
	}
	if !f.caps.StepSensorAvailable {
		return nil, errNoStepSensor
	}

	id := f.nextID
	f.nextID++
	f.stepSubs[id] = &stepWatch{baseline: f.lastSteps, raw: f.lastSteps, onSteps: onSteps}
	return f.subscription(func() { delete(f.stepSubs, id) }), nil
}

// Close 关闭数据源，等待中的 CurrentFix 返回 ErrClosed
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	f.fixSubs = make(map[int]func(models.LocationFix))
	f.stepSubs = make(map[int]*stepWatch)
	for _, ch := range f.waiters {
		close(ch)
	}
	f.waiters = nil
}

func (f *Feed) subscription(remove func()) sensor.Subscription {
	return &subscription{cancel: func() {
		f.mu.Lock()
		remove()
		f.mu.Unlock()
	}}
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Cancel() {
	s.once.Do(s.cancel)
}

// stepSensor 以 sensor.StepSensor 形式暴露 Feed 的计步能力
type stepSensor struct {
	*Feed
}

// RequestPermission 计步权限
func (s stepSensor) RequestPermission(ctx context.Context) (bool, error) {
	return s.Capabilities().StepPermission, nil
}

// Watch 订阅计步器
func (s stepSensor) Watch(ctx context.Context, onSteps func(int)) (sensor.Subscription, error) {
	return s.WatchSteps(ctx, onSteps)
}

// Steps 返回计步器视图
func (f *Feed) Steps() sensor.StepSensor {
	return stepSensor{f}
}
