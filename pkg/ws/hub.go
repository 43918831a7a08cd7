package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MessageType WebSocket 消息类型
const (
	MsgTypeInit      = "init"       // 连接时的当前状态
	MsgTypeLiveState = "live_state" // 实时跑步状态
	MsgTypeError     = "error"      // 错误消息
)

// Redis 频道 runtrack:live:{uid}
const (
	channelPrefix  = "runtrack:live:"
	channelPattern = channelPrefix + "*"
)

// Message WebSocket 消息结构
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// envelope 跨实例转发的消息
type envelope struct {
	Origin  string          `json:"origin"`
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

type outbound struct {
	userID string
	data   []byte
}

// Client WebSocket 客户端
type Client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub WebSocket 连接管理中心，按用户分组
type Hub struct {
	logger     *zap.Logger
	id         string
	redis      *redis.Client
	clients    map[string]map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	// 初始数据提供者回调
	getInitData func(userID string) interface{}
}

// NewHub 创建 Hub，redisClient 为 nil 时只在本实例内广播
func NewHub(logger *zap.Logger, redisClient *redis.Client) *Hub {
	return &Hub{
		logger:     logger,
		id:         uuid.NewString(),
		redis:      redisClient,
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetInitDataProvider 设置初始数据提供者，Run 启动后也可调用
func (h *Hub) SetInitDataProvider(provider func(userID string) interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.getInitData = provider
}

// Run 运行 Hub，直到 ctx 结束
func (h *Hub) Run(ctx context.Context) {
	if h.redis != nil {
		go h.relay(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			h.mu.Unlock()
			h.logger.Info("WebSocket client connected",
				zap.String("uid", client.userID),
				zap.Int("total_clients", h.ClientCount()))

			// 发送初始数据
			h.sendInitData(client)

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Info("WebSocket client disconnected",
				zap.String("uid", client.userID),
				zap.Int("total_clients", h.ClientCount()))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients[msg.userID] {
		select {
		case client.send <- msg.data:
		default:
			// 慢消费者，关闭连接
			close(client.send)
			delete(h.clients[msg.userID], client)
		}
	}
	if len(h.clients[msg.userID]) == 0 {
		delete(h.clients, msg.userID)
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if group, ok := h.clients[client.userID]; ok {
		if _, ok := group[client]; ok {
			delete(group, client)
			close(client.send)
		}
		if len(group) == 0 {
			delete(h.clients, client.userID)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, group := range h.clients {
		for client := range group {
			close(client.send)
		}
		delete(h.clients, userID)
	}
}

// sendInitData 发送初始数据给新连接的客户端
func (h *Hub) sendInitData(client *Client) {
	h.mu.RLock()
	provider := h.getInitData
	h.mu.RUnlock()
	if provider == nil {
		return
	}

	data, err := json.Marshal(Message{
		Type: MsgTypeInit,
		Data: provider(client.userID),
	})
	if err != nil {
		h.logger.Error("Failed to marshal init data", zap.Error(err))
		return
	}

	select {
	case client.send <- data:
	default:
		h.logger.Warn("Failed to send init data, client buffer full")
	}
}

// BroadcastToUser 推送消息给某个用户的所有连接，并转发到其他实例
func (h *Hub) BroadcastToUser(userID, msgType string, data interface{}) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.enqueue(userID, payload)
	h.publish(userID, payload)
}

func (h *Hub) enqueue(userID string, payload []byte) {
	select {
	case h.broadcast <- outbound{userID: userID, data: payload}:
	default:
		h.logger.Warn("Broadcast queue full, dropping message", zap.String("uid", userID))
	}
}

func (h *Hub) publish(userID string, payload []byte) {
	if h.redis == nil {
		return
	}

	data, err := json.Marshal(envelope{Origin: h.id, UserID: userID, Payload: payload})
	if err != nil {
		h.logger.Error("Failed to marshal relay envelope", zap.Error(err))
		return
	}
	if err := h.redis.Publish(context.Background(), channelPrefix+userID, data).Err(); err != nil {
		h.logger.Warn("Redis publish error", zap.String("uid", userID), zap.Error(err))
	}
}

// relay 接收其他实例发布的消息
func (h *Hub) relay(ctx context.Context) {
	pubsub := h.redis.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		h.logger.Warn("Redis subscribe failed", zap.Error(err))
		return
	}
	h.logger.Info("Live state relay subscribed", zap.String("pattern", channelPattern))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("Failed to decode relay message",
					zap.String("channel", msg.Channel),
					zap.Error(err))
				continue
			}
			if env.Origin == h.id {
				continue
			}
			if env.UserID == "" {
				env.UserID = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			h.enqueue(env.UserID, env.Payload)
		}
	}
}

// ClientCount 获取客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, group := range h.clients {
		n += len(group)
	}
	return n
}

// UserClientCount 获取某个用户的连接数
func (h *Hub) UserClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// NewClient 创建客户端
func NewClient(hub *Hub, userID string, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 256),
	}
}

// Register 注册客户端
func (c *Client) Register() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		close(c.send)
	}
}

// Unregister 注销客户端
func (c *Client) Unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// ReadPump 读取消息（保持连接活跃）
func (c *Client) ReadPump() {
	defer func() {
		c.Unregister()
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		// 观看端不发送消息，仅保持连接
	}
}

// WritePump 发送消息
func (c *Client) WritePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}
