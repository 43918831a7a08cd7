package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/runtrack/internal/device"
	"github.com/langchou/runtrack/internal/models"
)

type stepsRequest struct {
	Steps *int `json:"steps" binding:"required,min=0"`
}

// ReportCapabilities 手机上报权限与能力
// POST /api/users/:uid/device
func (h *Handler) ReportCapabilities(c *gin.Context) {
	var caps device.Capabilities
	if err := c.ShouldBindJSON(&caps); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid capabilities"})
		return
	}

	uid := c.Param("uid")
	h.devices.Feed(uid).SetCapabilities(caps)
	c.JSON(http.StatusOK, gin.H{"data": caps})
}

// PushFixes 批量上报定位点
// POST /api/users/:uid/device/fixes
func (h *Handler) PushFixes(c *gin.Context) {
	var fixes []models.LocationFix
	if err := c.ShouldBindJSON(&fixes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid location fixes"})
		return
	}

	feed := h.devices.Feed(c.Param("uid"))
	for _, fix := range fixes {
		feed.PushFix(fix)
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"received": len(fixes)}})
}

// PushSteps 上报计步器累计值
// POST /api/users/:uid/device/steps
func (h *Handler) PushSteps(c *gin.Context) {
	var req stepsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid step count"})
		return
	}

	h.devices.Feed(c.Param("uid")).PushSteps(*req.Steps)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"steps": *req.Steps}})
}

// HandleDeviceSocket 手机上报数据流
// GET /ws/device/:uid
func (h *Handler) HandleDeviceSocket(c *gin.Context) {
	uid := c.Param("uid")
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	h.logger.Info("Device connected", zap.String("uid", uid))
	go h.readDevice(uid, conn)
}
