package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 跑步会话状态常量
const (
	StateIdle      = "idle"
	StatePreparing = "preparing"
	StateTracking  = "tracking"
	StateStopping  = "stopping"
)

// 事件常量
const (
	EventPrepare = "prepare"
	EventTrack   = "track"
	EventAbort   = "abort"
	EventStop    = "stop"
	EventFinish  = "finish"
	EventAbandon = "abandon"
)

// Status 会话状态快照
type Status struct {
	UserID       string    `json:"user_id"`
	CurrentState string    `json:"state"`
	Since        time.Time `json:"since"`
}

// Machine 跑步会话状态机
type Machine struct {
	mu            sync.RWMutex
	userID        string
	fsm           *fsm.FSM
	since         time.Time
	onStateChange func(userID, from, to string)
}

// NewMachine 创建状态机，初始为 idle
func NewMachine(userID string, onStateChange func(userID, from, to string)) *Machine {
	m := &Machine{
		userID:        userID,
		since:         time.Now(),
		onStateChange: onStateChange,
	}

	m.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: EventPrepare, Src: []string{StateIdle}, Dst: StatePreparing},

			// 准备阶段：权限、初始定位
			{Name: EventTrack, Src: []string{StatePreparing}, Dst: StateTracking},
			{Name: EventAbort, Src: []string{StatePreparing}, Dst: StateIdle},

			{Name: EventStop, Src: []string{StateTracking}, Dst: StateStopping},
			{Name: EventFinish, Src: []string{StateStopping}, Dst: StateIdle},

			// 离开页面
			{Name: EventAbandon, Src: []string{StatePreparing, StateTracking, StateStopping}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(m.userID, e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// CurrentState 获取当前状态
func (m *Machine) CurrentState() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// Is 是否处于指定状态
func (m *Machine) Is(state string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Is(state)
}

// Since 进入当前状态的时间
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// Status 获取状态快照
func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		UserID:       m.userID,
		CurrentState: m.fsm.Current(),
		Since:        m.since,
	}
}

// Trigger 触发事件
func (m *Machine) Trigger(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}

	m.since = time.Now()
	return nil
}

// CanTransition 检查是否可以转换
func (m *Machine) CanTransition(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(event)
}

// Manager 状态机管理器
type Manager struct {
	mu       sync.RWMutex
	machines map[string]*Machine
	onChange func(userID, from, to string)
}

// NewManager 创建管理器
func NewManager(onChange func(userID, from, to string)) *Manager {
	return &Manager{
		machines: make(map[string]*Machine),
		onChange: onChange,
	}
}

// GetOrCreate 获取或创建状态机
func (m *Manager) GetOrCreate(userID string) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if machine, ok := m.machines[userID]; ok {
		return machine
	}

	machine := NewMachine(userID, m.onChange)
	m.machines[userID] = machine
	return machine
}

// Get 获取状态机
func (m *Manager) Get(userID string) (*Machine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	machine, ok := m.machines[userID]
	return machine, ok
}

// Remove 移除状态机
func (m *Manager) Remove(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.machines, userID)
}

// All 获取所有会话状态
func (m *Manager) All() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]Status, len(m.machines))
	for userID, machine := range m.machines {
		states[userID] = machine.Status()
	}
	return states
}
