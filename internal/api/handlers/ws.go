package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/runtrack/pkg/ws"
)

// HandleLiveSocket 观看端实时状态流
// GET /ws/live/:uid
func (h *Handler) HandleLiveSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, c.Param("uid"), conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// readDevice 读取设备消息直到连接断开
func (h *Handler) readDevice(uid string, conn *websocket.Conn) {
	defer func() {
		conn.Close()
		h.logger.Info("Device disconnected", zap.String("uid", uid))
	}()

	feed := h.devices.Feed(uid)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Device stream error", zap.String("uid", uid), zap.Error(err))
			}
			return
		}

		if err := feed.Apply(raw); err != nil {
			h.logger.Debug("Invalid device message", zap.String("uid", uid), zap.Error(err))
			reply := ws.Message{Type: ws.MsgTypeError, Data: err.Error()}
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	}
}
