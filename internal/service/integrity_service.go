package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sidhuiwnl/lordminds-sub000/internal/config"
	"github.com/sidhuiwnl/lordminds-sub000/internal/model"
	"github.com/sidhuiwnl/lordminds-sub000/internal/util"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/logger"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/monitoring"

	"go.uber.org/zap"
)

// IntegrityVerdict 事件处理后下发给客户端的指令集合。
// 遮罩、剪贴板清空、跳转首页都由客户端执行，但决策集中在服务端。
type IntegrityVerdict struct {
	MonitorState
	Warning        string `json:"warning,omitempty"`  // "Warning 1/2"
	Dialog         string `json:"dialog,omitempty"`   // 终止时的阻断式弹窗文案
	Toast          string `json:"toast,omitempty"`    // 按键拦截的瞬时提示
	Lockdown       bool   `json:"lockdown"`           // 应用全屏模糊遮罩
	ClearClipboard bool   `json:"clearClipboard"`     // 清空系统剪贴板
	RedirectHome   bool   `json:"redirectHome"`       // 强制退出到首页
}

// IntegrityEventStore 监考事件审计持久化能力，由 repository.IntegrityRepository 实现。
type IntegrityEventStore interface {
	Create(e *model.IntegrityEvent) error
	ListBySession(sessionID string) ([]model.IntegrityEvent, error)
}

// IntegrityService 维护每个会话的监考状态机，负责持久化、指标和终止副作用。
// 看门狗协程在 Attach 时启动、Detach 时停止，不跨会话泄漏。
type IntegrityService struct {
	SessionSvc *SessionService
	Events     IntegrityEventStore
	cfg        config.ProctorConfig

	mu       sync.Mutex
	monitors map[string]*Monitor
	stops    map[string]chan struct{}
}

func NewIntegrityService(sessionSvc *SessionService, events IntegrityEventStore, cfg config.ProctorConfig) *IntegrityService {
	return &IntegrityService{
		SessionSvc: sessionSvc,
		Events:     events,
		cfg:        cfg,
		monitors:   make(map[string]*Monitor),
		stops:      make(map[string]chan struct{}),
	}
}

// Attach 为会话建立监考状态机（从持久化字段恢复）并启动看门狗。
// 重复 Attach 幂等。
func (s *IntegrityService) Attach(session *model.ProctorSession) *Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.monitors[session.ID]; ok {
		return m
	}

	m := NewMonitor(s.cfg.MaxViolations, session.ViolationCount, session.Suspended, session.Terminated())
	s.monitors[session.ID] = m

	stop := make(chan struct{})
	s.stops[session.ID] = stop
	go s.watchdog(session.ID, m, stop)

	return m
}

// Detach 停止看门狗并释放状态机，会话结束/终止时调用。
func (s *IntegrityService) Detach(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.stops[sessionID]; ok {
		close(stop)
		delete(s.stops, sessionID)
	}
	delete(s.monitors, sessionID)
}

func (s *IntegrityService) monitorFor(session *model.ProctorSession) *Monitor {
	s.mu.Lock()
	m, ok := s.monitors[session.ID]
	s.mu.Unlock()
	if ok {
		return m
	}
	return s.Attach(session)
}

// watchdog 周期兜底检查，补捕获客户端漏报的离焦（如外部录屏工具抢焦点）。
func (s *IntegrityService) watchdog(sessionID string, m *Monitor, stop chan struct{}) {
	interval := time.Duration(s.cfg.HeartbeatIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t, counted := m.CheckStale(time.Now(), s.cfg.HeartbeatStale())
			if !counted {
				continue
			}
			session, err := s.SessionSvc.Get(context.Background(), sessionID)
			if err != nil {
				continue
			}
			s.persistTransition(context.Background(), session, m, t, model.EventWatchdogStale, "stale heartbeat", "watchdog")
		}
	}
}

// State 返回当前监考状态。
func (s *IntegrityService) State(session *model.ProctorSession) MonitorState {
	return s.monitorFor(session).State()
}

// Blocked 暂挂或已终止时，评分与导航一律拒绝。
func (s *IntegrityService) Blocked(session *model.ProctorSession) error {
	st := s.State(session)
	if st.Terminated {
		return util.ErrSessionTerminated
	}
	if st.Suspended {
		return util.ErrSessionSuspended
	}
	return nil
}

// Heartbeat 记录客户端可见性心跳。
func (s *IntegrityService) Heartbeat(session *model.ProctorSession, visible bool) MonitorState {
	m := s.monitorFor(session)
	m.Heartbeat(visible, time.Now())
	return m.State()
}

// ReportEvent 处理客户端上报的监考事件，返回应执行的客户端指令。
func (s *IntegrityService) ReportEvent(ctx context.Context, session *model.ProctorSession, event model.IntegrityEventType, detail string) (*IntegrityVerdict, error) {
	m := s.monitorFor(session)

	switch event {
	case model.EventBlur, model.EventHidden:
		t := m.OnBlur()
		if t.Counted {
			if err := s.persistTransition(ctx, session, m, t, event, detail, string(event)); err != nil {
				return nil, err
			}
		}
		return s.blurVerdict(m, t), nil

	case model.EventFocus, model.EventVisible:
		t := m.OnFocus()
		if !t.Suspended && session.Suspended {
			session.Suspended = false
			if err := s.SessionSvc.Sessions.Update(session); err != nil {
				logger.Log.Error("failed to persist refocus", zap.Error(err))
			}
		}
		s.logEvent(session.ID, event, detail, 0)
		v := &IntegrityVerdict{MonitorState: m.State()}
		return v, nil

	case model.EventFullscreenExit, model.EventFullscreenFailed:
		t := m.OnFullscreenExit()
		if t.Terminated {
			s.logEvent(session.ID, event, detail, session.ViolationCount)
			if err := s.terminate(ctx, session, m, event, detail); err != nil {
				return nil, err
			}
			return &IntegrityVerdict{
				MonitorState: m.State(),
				Dialog:       "检测到退出全屏，考试已终止",
				RedirectHome: true,
			}, nil
		}
		s.logEvent(session.ID, event, detail, 0)
		return &IntegrityVerdict{MonitorState: m.State(), Lockdown: t.Suspended}, nil

	case model.EventKeyCombo:
		// 拦截类按键只提示并清剪贴板，不计违规
		s.logEvent(session.ID, event, detail, 0)
		return &IntegrityVerdict{
			MonitorState:   m.State(),
			Toast:          "该操作在考试中被禁用",
			ClearClipboard: true,
		}, nil

	default:
		return nil, fmt.Errorf("unknown integrity event: %s", event)
	}
}

func (s *IntegrityService) blurVerdict(m *Monitor, t Transition) *IntegrityVerdict {
	st := m.State()
	v := &IntegrityVerdict{MonitorState: st}

	if st.Terminated {
		v.Dialog = "检测到多次违规，考试已终止"
		v.RedirectHome = true
		return v
	}

	v.Lockdown = st.Suspended
	if t.Counted {
		v.Warning = fmt.Sprintf("Warning %d/%d", t.ViolationNo, s.cfg.MaxViolations)
	}
	return v
}

// persistTransition 把一次计数的状态迁移写回会话行和审计表，必要时触发终止。
func (s *IntegrityService) persistTransition(ctx context.Context, session *model.ProctorSession, m *Monitor, t Transition, event model.IntegrityEventType, detail, trigger string) error {
	session.ViolationCount = t.ViolationNo
	session.Suspended = t.Suspended
	if err := s.SessionSvc.Sessions.Update(session); err != nil {
		logger.Log.Error("failed to persist violation", zap.String("session", session.ID), zap.Error(err))
	}

	s.logEvent(session.ID, event, detail, t.ViolationNo)
	monitoring.ViolationCounter.WithLabelValues(trigger).Inc()

	logger.Log.Warn("integrity violation counted",
		zap.String("session", session.ID),
		zap.String("event", string(event)),
		zap.Int("violation", t.ViolationNo),
	)

	if t.Terminated {
		return s.terminate(ctx, session, m, event, detail)
	}
	return nil
}

// terminate 终止副作用：关闭会话、释放看门狗。状态机已是终态，
// 触发事件由调用方写审计表。
func (s *IntegrityService) terminate(ctx context.Context, session *model.ProctorSession, m *Monitor, event model.IntegrityEventType, detail string) error {
	monitoring.TerminationCounter.Inc()

	logger.Log.Warn("session terminated by integrity monitor",
		zap.String("session", session.ID),
		zap.String("event", string(event)),
	)

	if err := s.SessionSvc.Close(ctx, session.ID, model.SessionTerminated); err != nil {
		logger.Log.Error("failed to close terminated session", zap.String("session", session.ID), zap.Error(err))
		return err
	}

	// 看门狗停掉，状态机保留为终态，后续请求仍会被拒绝
	s.mu.Lock()
	if stop, ok := s.stops[session.ID]; ok {
		close(stop)
		delete(s.stops, session.ID)
	}
	s.mu.Unlock()

	return nil
}

func (s *IntegrityService) logEvent(sessionID string, event model.IntegrityEventType, detail string, violationNo int) {
	e := &model.IntegrityEvent{
		SessionID:   sessionID,
		EventType:   event,
		Detail:      detail,
		ViolationNo: violationNo,
	}
	if err := s.Events.Create(e); err != nil {
		logger.Log.Error("failed to record integrity event", zap.Error(err))
	}
}
