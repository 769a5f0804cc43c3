package service

import (
	"context"

	"github.com/sidhuiwnl/lordminds-sub000/internal/client"
	"github.com/sidhuiwnl/lordminds-sub000/internal/model"
	"github.com/sidhuiwnl/lordminds-sub000/internal/util"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/logger"

	"go.uber.org/zap"
)

// MarksReporter 成绩上报协作方能力，由 client.LMSClient 实现。
type MarksReporter interface {
	StoreMarks(ctx context.Context, marks client.StoreMarksRequest) error
}

// SubmitResult 交卷结果。
type SubmitResult struct {
	SessionID     string `json:"sessionId"`
	MarksObtained int    `json:"marksObtained"`
	MaxMarks      int    `json:"maxMarks"`
	RedirectHome  bool   `json:"redirectHome"`
}

// NavigationService 控制答题前进/回退与交卷：当前题到终态才能前进，
// 回退要求目标题已到终态，全部终态才能交卷，成绩上报成功才关闭会话。
type NavigationService struct {
	Sessions  *SessionService
	Questions *QuestionService
	Attempts  AttemptStore
	Integrity *IntegrityService
	Marks     MarksReporter
}

func NewNavigationService(sessions *SessionService, questions *QuestionService, attempts AttemptStore, integrity *IntegrityService, marks MarksReporter) *NavigationService {
	return &NavigationService{
		Sessions:  sessions,
		Questions: questions,
		Attempts:  attempts,
		Integrity: integrity,
		Marks:     marks,
	}
}

// Advance 推进到下一题。当前题未到终态（未答对且未揭示答案）时拒绝。
func (s *NavigationService) Advance(ctx context.Context, session *model.ProctorSession) (int, error) {
	questions, err := s.Questions.QuestionsInOrder(ctx, session.UserID, session.AssignmentID)
	if err != nil {
		return 0, err
	}
	if session.CurrentStep < 1 || session.CurrentStep > len(questions) {
		return 0, util.ErrStepOutOfRange
	}

	current := questions[session.CurrentStep-1]
	attempt, err := s.Attempts.FindBySessionAndQuestion(session.ID, current.ID)
	if err != nil {
		return 0, err
	}
	if attempt == nil || !attempt.Terminal() {
		return 0, util.ErrQuestionNotTerminal
	}

	if session.CurrentStep >= len(questions) {
		// 已是最后一题，停在原地等交卷
		return session.CurrentStep, nil
	}

	session.CurrentStep++
	if err := s.Sessions.Sessions.Update(session); err != nil {
		return 0, err
	}
	return session.CurrentStep, nil
}

// Retreat 回退到上一题复查。目标题必须已到终态，已在第一题停在原地。
func (s *NavigationService) Retreat(ctx context.Context, session *model.ProctorSession) (int, error) {
	questions, err := s.Questions.QuestionsInOrder(ctx, session.UserID, session.AssignmentID)
	if err != nil {
		return 0, err
	}
	if session.CurrentStep < 1 || session.CurrentStep > len(questions) {
		return 0, util.ErrStepOutOfRange
	}
	if session.CurrentStep == 1 {
		return session.CurrentStep, nil
	}

	target := questions[session.CurrentStep-2]
	attempt, err := s.Attempts.FindBySessionAndQuestion(session.ID, target.ID)
	if err != nil {
		return 0, err
	}
	if attempt == nil || !attempt.Terminal() {
		return 0, util.ErrQuestionNotTerminal
	}

	session.CurrentStep--
	if err := s.Sessions.Sessions.Update(session); err != nil {
		return 0, err
	}
	return session.CurrentStep, nil
}

// Submit 交卷：全部题目到终态后计分并上报，上报成功才关闭会话、
// 清顺序缓存、摘除监考。上报失败会话保持打开，提示学生重试。
func (s *NavigationService) Submit(ctx context.Context, session *model.ProctorSession) (*SubmitResult, error) {
	pending, err := s.Attempts.CountNonTerminal(session.ID)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, util.ErrNotAllTerminal
	}

	correct, err := s.Attempts.CountCorrect(session.ID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.Attempts.ListBySession(session.ID)
	if err != nil {
		return nil, err
	}

	marks := int(correct)
	maxMarks := len(attempts)

	if err := s.Marks.StoreMarks(ctx, client.StoreMarksRequest{
		StudentID:     session.UserID,
		AssignmentID:  session.AssignmentID,
		MarksObtained: marks,
		MaxMarks:      maxMarks,
	}); err != nil {
		logger.Log.Error("failed to report marks",
			zap.String("session", session.ID),
			zap.Error(err),
		)
		return nil, util.ErrMarksUnavailable
	}

	session.MarksObtained = &marks
	session.MaxMarks = &maxMarks
	if err := s.Sessions.Sessions.Update(session); err != nil {
		return nil, err
	}
	if err := s.Sessions.Close(ctx, session.ID, model.SessionSubmitted); err != nil {
		return nil, err
	}

	if err := s.Questions.ClearOrder(ctx, session.UserID, session.AssignmentID); err != nil {
		logger.Log.Warn("failed to clear order cache", zap.Error(err))
	}
	s.Integrity.Detach(session.ID)

	logger.Log.Info("session submitted",
		zap.String("session", session.ID),
		zap.Int("marks", marks),
		zap.Int("max", maxMarks),
	)

	return &SubmitResult{
		SessionID:     session.ID,
		MarksObtained: marks,
		MaxMarks:      maxMarks,
		RedirectHome:  true,
	}, nil
}
