package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/langchou/runtrack/internal/models"
	"github.com/langchou/runtrack/internal/sensor"
)

const kmPerDegree = 6371 * math.Pi / 180

const startLat, startLng = 18.7883, 98.9853

func ptr(v float64) *float64 { return &v }

func northFix(km float64, ts int64, accuracy float64) models.LocationFix {
	return models.LocationFix{
		Point:     models.GeoPoint{Latitude: startLat + km/kmPerDegree, Longitude: startLng},
		Accuracy:  ptr(accuracy),
		Timestamp: ts,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeSub struct {
	once   sync.Once
	cancel func()
}

func (s *fakeSub) Cancel() { s.once.Do(s.cancel) }

type fakeLocation struct {
	mu         sync.Mutex
	permission bool
	permErr    error
	services   bool
	fixes      []models.LocationFix
	fixCalls   int
	watchErr   error
	onFix      func(models.LocationFix)
	cancelled  int
}

func newFakeLocation(fixes ...models.LocationFix) *fakeLocation {
	return &fakeLocation{permission: true, services: true, fixes: fixes}
}

func (l *fakeLocation) RequestPermission(ctx context.Context) (bool, error) {
	return l.permission, l.permErr
}

func (l *fakeLocation) ServicesEnabled(ctx context.Context) (bool, error) {
	return l.services, nil
}

func (l *fakeLocation) EnableHighAccuracy(ctx context.Context) error {
	return errors.New("not supported")
}

func (l *fakeLocation) CurrentFix(ctx context.Context) (models.LocationFix, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.fixCalls++
	if len(l.fixes) == 0 {
		return models.LocationFix{}, sensor.ErrTimeout
	}
	fix := l.fixes[0]
	l.fixes = l.fixes[1:]
	return fix, nil
}

func (l *fakeLocation) Watch(ctx context.Context, onFix func(models.LocationFix)) (sensor.Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watchErr != nil {
		return nil, l.watchErr
	}
	l.onFix = onFix
	return &fakeSub{cancel: func() {
		l.mu.Lock()
		l.onFix = nil
		l.cancelled++
		l.mu.Unlock()
	}}, nil
}

func (l *fakeLocation) Push(fix models.LocationFix) {
	l.mu.Lock()
	fn := l.onFix
	l.mu.Unlock()
	if fn != nil {
		fn(fix)
	}
}

func (l *fakeLocation) Watching() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.onFix != nil
}

type fakeSteps struct {
	mu        sync.Mutex
	available bool
	granted   bool
	onSteps   func(int)
	cancelled int
}

func (s *fakeSteps) IsAvailable(ctx context.Context) (bool, error) { return s.available, nil }

func (s *fakeSteps) RequestPermission(ctx context.Context) (bool, error) { return s.granted, nil }

func (s *fakeSteps) Watch(ctx context.Context, onSteps func(int)) (sensor.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSteps = onSteps
	return &fakeSub{cancel: func() {
		s.mu.Lock()
		s.onSteps = nil
		s.cancelled++
		s.mu.Unlock()
	}}, nil
}

func (s *fakeSteps) Push(n int) {
	s.mu.Lock()
	fn := s.onSteps
	s.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

type fakeStore struct {
	mu        sync.Mutex
	weight    float64
	hasWeight bool
	weightErr error
	appendErr error
	block     chan struct{}
	runs      []*models.RunRecord
}

func (s *fakeStore) UserWeight(ctx context.Context, userID string) (float64, bool, error) {
	return s.weight, s.hasWeight, s.weightErr
}

func (s *fakeStore) AppendRun(ctx context.Context, userID string, rec *models.RunRecord) (string, error) {
	// 与 pgx Exec 一样在 ctx 结束时返回
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return "", s.appendErr
	}
	s.runs = append(s.runs, rec)
	return "run-1", nil
}

func (s *fakeStore) Runs() []*models.RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.RunRecord(nil), s.runs...)
}

type fakeSnapshotter struct {
	uri string
	err error
}

func (f fakeSnapshotter) Enabled() bool { return true }

func (f fakeSnapshotter) Capture(ctx context.Context, route models.Route) (string, error) {
	return f.uri, f.err
}

type fakeSource struct {
	location *fakeLocation
	steps    *fakeSteps
}

func (f fakeSource) Location(userID string) sensor.LocationProvider { return f.location }

func (f fakeSource) Steps(userID string) sensor.StepSensor { return f.steps }

type broadcast struct {
	userID  string
	msgType string
	data    interface{}
}

type fakeHub struct {
	mu   sync.Mutex
	msgs []broadcast
}

func (h *fakeHub) BroadcastToUser(userID, msgType string, data interface{}) {
	h.mu.Lock()
	h.msgs = append(h.msgs, broadcast{userID, msgType, data})
	h.mu.Unlock()
}

func (h *fakeHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}
