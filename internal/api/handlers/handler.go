package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/runtrack/internal/device"
	"github.com/langchou/runtrack/internal/models"
	"github.com/langchou/runtrack/internal/service"
	"github.com/langchou/runtrack/pkg/ws"
)

// RunReader 读取已保存的跑步记录
type RunReader interface {
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
}

// Handler HTTP 处理器
type Handler struct {
	logger     *zap.Logger
	runService *service.RunService
	devices    *device.Registry
	runs       RunReader
	wsHub      *ws.Hub
	upgrader   websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	runService *service.RunService,
	devices *device.Registry,
	runs RunReader,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:     logger,
		runService: runService,
		devices:    devices,
		runs:       runs,
		wsHub:      wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ws_clients": h.wsHub.ClientCount(),
		"sessions":   len(h.runService.GetAllStates()),
	})
}
