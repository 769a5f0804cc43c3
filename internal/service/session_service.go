package service

import (
	"context"
	"errors"
	"time"

	"github.com/sidhuiwnl/lordminds-sub000/internal/model"
	"github.com/sidhuiwnl/lordminds-sub000/internal/util"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SessionStore 会话持久化能力，由 repository.SessionRepository 实现。
type SessionStore interface {
	Create(s *model.ProctorSession) error
	FindByID(id string) (*model.ProctorSession, error)
	FindOpenByUserAndAssignment(userID, assignmentID uint) (*model.ProctorSession, error)
	FindTerminatedByUserAndAssignment(userID, assignmentID uint) (*model.ProctorSession, error)
	Update(s *model.ProctorSession) error
	Close(id string, status model.SessionStatus, endedAt time.Time) error
}

// SessionService 负责会话的开启与关闭边界。
type SessionService struct {
	Sessions SessionStore
}

func NewSessionService(sessions SessionStore) *SessionService {
	return &SessionService{Sessions: sessions}
}

// Open 开启（或续用）一次作答会话。同一学生同一作业最多一个未结束会话；
// 被终止过的作业永久封锁。创建遇瞬时失败重试2次，退避1s起；重试耗尽向
// 上层报错，考试保持不可交互（宁可拒绝服务，不可越权放行）。
func (s *SessionService) Open(ctx context.Context, userID, assignmentID uint) (*model.ProctorSession, bool, error) {
	terminated, err := s.Sessions.FindTerminatedByUserAndAssignment(userID, assignmentID)
	if err != nil {
		return nil, false, err
	}
	if terminated != nil {
		return nil, false, util.ErrSessionTerminated
	}

	existing, err := s.Sessions.FindOpenByUserAndAssignment(userID, assignmentID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}

	session := &model.ProctorSession{
		UserID:       userID,
		AssignmentID: assignmentID,
		Status:       model.SessionInProgress,
		CurrentStep:  1,
		StartedAt:    time.Now(),
	}

	delay := time.Second
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		lastErr = s.Sessions.Create(session)
		if lastErr == nil {
			logger.Log.Info("proctor session opened",
				zap.String("session", session.ID),
				zap.Uint("user", userID),
				zap.Uint("assignment", assignmentID),
			)
			return session, false, nil
		}
		if attempt == 2 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	logger.Log.Error("failed to open proctor session", zap.Error(lastErr))
	return nil, false, lastErr
}

func (s *SessionService) Get(ctx context.Context, id string) (*model.ProctorSession, error) {
	session, err := s.Sessions.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Close 结束会话。幂等：已结束的会话再次 Close 是无副作用的成功，
// 不覆盖首次的结束时间戳。
func (s *SessionService) Close(ctx context.Context, id string, status model.SessionStatus) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if session.Ended() {
		return nil
	}

	if err := s.Sessions.Close(id, status, time.Now()); err != nil {
		return err
	}

	logger.Log.Info("proctor session closed",
		zap.String("session", id),
		zap.String("status", string(status)),
	)
	return nil
}
