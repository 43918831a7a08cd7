package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// 跑步会话
		api.GET("/users/:uid/run", h.GetRunState)
		api.POST("/users/:uid/run/start", h.StartRun)
		api.POST("/users/:uid/run/stop", h.StopRun)
		api.DELETE("/users/:uid/run", h.LeaveRun)

		// 手机上报
		api.POST("/users/:uid/device", h.ReportCapabilities)
		api.POST("/users/:uid/device/fixes", h.PushFixes)
		api.POST("/users/:uid/device/steps", h.PushSteps)

		// 跑步记录
		api.GET("/runs/:id", h.GetRun)
	}

	// WebSocket
	r.GET("/ws/device/:uid", h.HandleDeviceSocket)
	r.GET("/ws/live/:uid", h.HandleLiveSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}
