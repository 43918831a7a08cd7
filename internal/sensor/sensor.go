// Package sensor 定义跑步会话消费的定位与计步能力
package sensor

import (
	"context"
	"errors"

	"github.com/langchou/runtrack/internal/models"
)

var (
	// ErrTimeout 等待定位超时
	ErrTimeout = errors.New("sensor: timed out waiting for fix")
	// ErrClosed 数据源已关闭
	ErrClosed = errors.New("sensor: source closed")
)

// Subscription 推送订阅，Cancel 可重复调用
type Subscription interface {
	Cancel()
}

// LocationProvider 定位提供者
type LocationProvider interface {
	RequestPermission(ctx context.Context) (bool, error)
	ServicesEnabled(ctx context.Context) (bool, error)
	EnableHighAccuracy(ctx context.Context) error
	CurrentFix(ctx context.Context) (models.LocationFix, error)
	Watch(ctx context.Context, onFix func(models.LocationFix)) (Subscription, error)
}

// StepSensor 计步器，回调参数为本次订阅以来的累计步数
type StepSensor interface {
	IsAvailable(ctx context.Context) (bool, error)
	RequestPermission(ctx context.Context) (bool, error)
	Watch(ctx context.Context, onSteps func(int)) (Subscription, error)
}

// Source 按用户获取传感器
type Source interface {
	Location(userID string) LocationProvider
	Steps(userID string) StepSensor
}

