// Package snapshot 生成跑步轨迹地图快照
package snapshot

import (
	"context"
	"errors"

	"github.com/langchou/runtrack/internal/models"
)

// ErrDisabled 快照功能未开启
var ErrDisabled = errors.New("snapshot: capture disabled")

// Snapshotter 地图快照能力
type Snapshotter interface {
	Enabled() bool
	Capture(ctx context.Context, route models.Route) (string, error)
}

// Nop 未开启快照时使用
type Nop struct{}

// Enabled 始终为 false
func (Nop) Enabled() bool { return false }

// Capture 始终返回 ErrDisabled
func (Nop) Capture(ctx context.Context, route models.Route) (string, error) {
	return "", ErrDisabled
}
