package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/langchou/runtrack/internal/sensor"
	"github.com/langchou/runtrack/internal/snapshot"
	"github.com/langchou/runtrack/internal/state"
	"github.com/langchou/runtrack/pkg/ws"
)

// Broadcaster 实时状态推送
type Broadcaster interface {
	BroadcastToUser(userID, msgType string, data interface{})
}

// RunService 跑步服务，按用户管理会话
type RunService struct {
	opts         Options
	logger       *zap.Logger
	sensors      sensor.Source
	store        Store
	snapshotter  snapshot.Snapshotter
	stateManager *state.Manager
	wsHub        Broadcaster // WebSocket Hub

	mu          sync.RWMutex
	sessions    map[string]*Session
	subscribers []chan LiveState
	closed      bool
}

// NewRunService 创建跑步服务
func NewRunService(
	opts Options,
	logger *zap.Logger,
	sensors sensor.Source,
	store Store,
	snapshotter snapshot.Snapshotter,
	wsHub Broadcaster,
) *RunService {
	svc := &RunService{
		opts:        opts,
		logger:      logger,
		sensors:     sensors,
		store:       store,
		snapshotter: snapshotter,
		wsHub:       wsHub,
		sessions:    make(map[string]*Session),
	}

	// 创建状态管理器
	svc.stateManager = state.NewManager(svc.onStateChange)

	return svc
}

// Session 获取或创建用户会话
func (s *RunService) Session(userID string) (*Session, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess, nil
	}

	sess = NewSession(
		userID,
		s.opts,
		s.logger,
		s.sensors.Location(userID),
		s.sensors.Steps(userID),
		s.store,
		s.snapshotter,
		s.stateManager.GetOrCreate(userID),
		s.publish,
	)
	s.sessions[userID] = sess
	return sess, nil
}

// lookup 只读查找会话，不会创建
func (s *RunService) lookup(userID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Start 开始跑步
func (s *RunService) Start(ctx context.Context, userID string) StartResult {
	sess, err := s.Session(userID)
	if err != nil {
		return StartResult{Outcome: OutcomeFailed, Message: MsgNoUserSession}
	}
	return sess.Start(ctx)
}

// Stop 结束跑步
func (s *RunService) Stop(ctx context.Context, userID string) StopResult {
	if userID == "" {
		return StopResult{Outcome: OutcomeFailed, Message: MsgNotLoggedIn}
	}
	sess, ok := s.lookup(userID)
	if !ok {
		return StopResult{Outcome: OutcomeIgnored}
	}
	return sess.Stop(ctx)
}

// State 获取实时状态，没有会话的用户返回 idle
func (s *RunService) State(userID string) (LiveState, error) {
	if userID == "" {
		return LiveState{}, ErrNoUser
	}
	sess, ok := s.lookup(userID)
	if !ok {
		return idleState(userID), nil
	}
	return sess.State(), nil
}

// Close 离开跑步页面，丢弃进行中的跑步，空闲会话随之移除
func (s *RunService) Close(userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	sess, ok := s.lookup(userID)
	if !ok {
		return nil
	}
	sess.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[userID]; ok && cur == sess && sess.retire() {
		delete(s.sessions, userID)
		s.stateManager.Remove(userID)
	}
	return nil
}

// GetAllStates 获取所有会话的状态机状态
func (s *RunService) GetAllStates() map[string]state.Status {
	return s.stateManager.All()
}

// Subscribe 订阅实时状态
func (s *RunService) Subscribe() <-chan LiveState {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan LiveState, 10)
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Shutdown 关闭所有会话
func (s *RunService) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	s.logger.Info("Stopping run service", zap.Int("sessions", len(sessions)))
	for _, sess := range sessions {
		sess.Close()
	}

	s.mu.Lock()
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
	s.mu.Unlock()
	s.logger.Info("Run service stopped")
}

// onStateChange 状态变化回调
func (s *RunService) onStateChange(userID, from, to string) {
	s.logger.Info("Run state changed", zap.String("uid", userID), zap.String("from", from), zap.String("to", to))
}

// publish 推送实时状态给订阅者和 WebSocket
func (s *RunService) publish(ls LiveState) {
	s.notifySubscribers(ls)
	s.broadcastState(ls)
}

// notifySubscribers 通知订阅者（内部 channel 订阅者）
func (s *RunService) notifySubscribers(ls LiveState) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- ls:
		default:
			// 跳过慢消费者
		}
	}
}

// broadcastState 广播状态到 WebSocket
func (s *RunService) broadcastState(ls LiveState) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.BroadcastToUser(ls.UserID, ws.MsgTypeLiveState, ls)
}
