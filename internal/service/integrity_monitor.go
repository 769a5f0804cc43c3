package service

import (
	"sync"
	"time"
)

// Monitor 单个会话的违规状态机。状态仅内存维护，持久化由 IntegrityService 包装。
//
// CLEAN → WARNED(1) → TERMINATED；SUSPENDED 为正交标志，表示一个未解除的
// 失焦/隐藏 episode 正在处理中。违规计数单调递增，TERMINATED 为终态。
type Monitor struct {
	mu sync.Mutex

	maxViolations int
	violations    int
	suspended     bool
	terminated    bool

	lastHeartbeat time.Time
	lastVisible   bool
}

// Transition 一次事件处理的结果，由上层转成持久化和客户端指令。
type Transition struct {
	Counted     bool // 本次计入了一次违规
	ViolationNo int  // 计入后的违规序号（Counted 时有效）
	Suspended   bool
	Terminated  bool // 本次事件触发了终止
}

type MonitorState struct {
	ViolationCount int  `json:"violationCount"`
	Suspended      bool `json:"suspended"`
	Terminated     bool `json:"terminated"`
}

func NewMonitor(maxViolations int, violations int, suspended bool, terminated bool) *Monitor {
	return &Monitor{
		maxViolations: maxViolations,
		violations:    violations,
		suspended:     suspended,
		terminated:    terminated,
		lastVisible:   true,
	}
}

func (m *Monitor) State() MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MonitorState{
		ViolationCount: m.violations,
		Suspended:      m.suspended,
		Terminated:     m.terminated,
	}
}

// OnBlur 失焦/页面隐藏。同一 episode 内的重复事件不重复计数。
func (m *Monitor) OnBlur() Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.terminated {
		return Transition{Suspended: m.suspended, Terminated: false}
	}
	if m.suspended {
		// episode 已在处理中
		return Transition{Suspended: true}
	}

	m.suspended = true
	m.violations++
	t := Transition{
		Counted:     true,
		ViolationNo: m.violations,
		Suspended:   true,
	}
	if m.violations >= m.maxViolations {
		m.terminated = true
		t.Terminated = true
	}
	return t
}

// OnFocus 重新聚焦/可见，解除当前 episode。终止后不可恢复。
func (m *Monitor) OnFocus() Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.terminated {
		return Transition{Suspended: m.suspended}
	}
	m.suspended = false
	return Transition{Suspended: false}
}

// OnFullscreenExit 非失焦状态下退出全屏：致命，不经过告警直接终止。
// 已处于失焦 episode 时退出全屏是同一违规的一部分，不再升级。
func (m *Monitor) OnFullscreenExit() Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.terminated {
		return Transition{Suspended: m.suspended}
	}
	if m.suspended {
		return Transition{Suspended: true}
	}

	m.terminated = true
	return Transition{Terminated: true}
}

// Heartbeat 客户端周期性上报的可见性，供看门狗判断遗漏的离焦事件。
func (m *Monitor) Heartbeat(visible bool, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastHeartbeat = now
	m.lastVisible = visible
}

// CheckStale 看门狗周期检查：心跳过期或最近一次心跳报告不可见，且当前
// 没有在处理的 episode，则按一次失焦计入。已在处理中的 episode 不重复计数。
func (m *Monitor) CheckStale(now time.Time, staleAfter time.Duration) (Transition, bool) {
	m.mu.Lock()
	hidden := !m.lastVisible || (!m.lastHeartbeat.IsZero() && now.Sub(m.lastHeartbeat) > staleAfter)
	open := m.suspended || m.terminated
	m.mu.Unlock()

	if !hidden || open {
		return Transition{}, false
	}
	return m.OnBlur(), true
}

func (m *Monitor) Terminated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminated
}
