package device

import (
	"sync"

	"go.uber.org/zap"

	"github.com/langchou/runtrack/internal/sensor"
)

// Registry 用户设备数据源注册表，实现 sensor.Source
type Registry struct {
	logger *zap.Logger

	mu    sync.RWMutex
	feeds map[string]*Feed
}

// NewRegistry 创建注册表
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger,
		feeds:  make(map[string]*Feed),
	}
}

// Feed 获取或创建用户的数据源
func (r *Registry) Feed(userID string) *Feed {
	r.mu.RLock()
	feed, ok := r.feeds[userID]
	r.mu.RUnlock()
	if ok {
		return feed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if feed, ok := r.feeds[userID]; ok {
		return feed
	}
	feed = NewFeed(r.logger, userID)
	r.feeds[userID] = feed
	return feed
}

// Location 实现 sensor.Source
func (r *Registry) Location(userID string) sensor.LocationProvider {
	return r.Feed(userID)
}

// Steps 实现 sensor.Source
func (r *Registry) Steps(userID string) sensor.StepSensor {
	return r.Feed(userID).Steps()
}

// Close 关闭所有数据源
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, feed := range r.feeds {
		feed.Close()
		delete(r.feeds, userID)
	}
}
