package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/runtrack/internal/repository"
	"github.com/langchou/runtrack/internal/service"
)

// GetRunState 获取实时跑步状态
// GET /api/users/:uid/run
func (h *Handler) GetRunState(c *gin.Context) {
	ls, err := h.runService.State(c.Param("uid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.MsgNoUserSession})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ls})
}

// StartRun 开始跑步
// POST /api/users/:uid/run/start
// 阻塞直到拿到初始定位或放弃，期间手机需要继续上报定位
func (h *Handler) StartRun(c *gin.Context) {
	uid := c.Param("uid")
	res := h.runService.Start(c.Request.Context(), uid)

	h.logger.Info("Start run requested",
		zap.String("uid", uid),
		zap.String("outcome", string(res.Outcome)))
	c.JSON(http.StatusOK, gin.H{"data": res})
}

// StopRun 结束跑步并保存
// POST /api/users/:uid/run/stop
func (h *Handler) StopRun(c *gin.Context) {
	uid := c.Param("uid")
	res := h.runService.Stop(c.Request.Context(), uid)

	h.logger.Info("Stop run requested",
		zap.String("uid", uid),
		zap.String("outcome", string(res.Outcome)))
	c.JSON(http.StatusOK, gin.H{"data": res})
}

// LeaveRun 离开跑步页面，丢弃进行中的跑步
// DELETE /api/users/:uid/run
func (h *Handler) LeaveRun(c *gin.Context) {
	if err := h.runService.Close(c.Param("uid")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.MsgNoUserSession})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetRun 获取跑步记录
// GET /api/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	rec, err := h.runs.GetRun(c.Request.Context(), id)
	if errors.Is(err, repository.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get run", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get run"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rec})
}
