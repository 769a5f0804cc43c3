package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sidhuiwnl/lordminds-sub000/internal/client"
	"github.com/sidhuiwnl/lordminds-sub000/internal/model"
	"github.com/sidhuiwnl/lordminds-sub000/internal/repository"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// fakeSessionStore 内存版 SessionStore。
type fakeSessionStore struct {
	mu        sync.Mutex
	sessions  map[string]*model.ProctorSession
	createErr []error // 依次弹出，模拟瞬时失败
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*model.ProctorSession{}}
}

func (f *fakeSessionStore) Create(s *model.ProctorSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createErr) > 0 {
		err := f.createErr[0]
		f.createErr = f.createErr[1:]
		if err != nil {
			return err
		}
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessionStore) FindByID(id string) (*model.ProctorSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) FindOpenByUserAndAssignment(userID, assignmentID uint) (*model.ProctorSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserID == userID && s.AssignmentID == assignmentID && s.EndedAt == nil {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) FindTerminatedByUserAndAssignment(userID, assignmentID uint) (*model.ProctorSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserID == userID && s.AssignmentID == assignmentID && s.Status == model.SessionTerminated {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) Update(s *model.ProctorSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessionStore) Close(id string, status model.SessionStatus, endedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.EndedAt != nil {
		return nil
	}
	s.Status = status
	s.EndedAt = &endedAt
	return nil
}

// fakeAttemptStore 内存版 AttemptStore。
type fakeAttemptStore struct {
	mu   sync.Mutex
	rows map[string]map[uint]*model.QuestionAttempt
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{rows: map[string]map[uint]*model.QuestionAttempt{}}
}

func (f *fakeAttemptStore) InitForSession(sessionID string, questions []model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows[sessionID] == nil {
		f.rows[sessionID] = map[uint]*model.QuestionAttempt{}
	}
	for _, q := range questions {
		if _, ok := f.rows[sessionID][q.ID]; ok {
			continue
		}
		f.rows[sessionID][q.ID] = &model.QuestionAttempt{
			SessionID:    sessionID,
			QuestionID:   q.ID,
			QuestionType: q.Type,
			Correctness:  model.CorrectnessUnknown,
			Phase:        model.PhaseReady,
		}
	}
	return nil
}

func (f *fakeAttemptStore) ListBySession(sessionID string) ([]model.QuestionAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.QuestionAttempt
	for _, a := range f.rows[sessionID] {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeAttemptStore) FindBySessionAndQuestion(sessionID string, questionID uint) (*model.QuestionAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[sessionID][questionID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttemptStore) Update(a *model.QuestionAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows[a.SessionID] == nil {
		f.rows[a.SessionID] = map[uint]*model.QuestionAttempt{}
	}
	cp := *a
	f.rows[a.SessionID][a.QuestionID] = &cp
	return nil
}

func (f *fakeAttemptStore) CountNonTerminal(sessionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, a := range f.rows[sessionID] {
		if !a.Terminal() {
			n++
		}
	}
	return n, nil
}

func (f *fakeAttemptStore) CountCorrect(sessionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, a := range f.rows[sessionID] {
		if a.Correctness == model.CorrectnessCorrect {
			n++
		}
	}
	return n, nil
}

// fakeQuestionSource 返回固定题集的题库。
type fakeQuestionSource struct {
	questions []client.RawQuestion
	err       error
	calls     int
}

func (f *fakeQuestionSource) FetchQuestions(ctx context.Context, assignmentID uint) ([]client.RawQuestion, error) {
	f.calls++
	return f.questions, f.err
}

// memOrderCache 内存版出题顺序缓存。
type memOrderCache struct {
	mu      sync.Mutex
	entries map[uint]*repository.CachedOrder
}

func newMemOrderCache() *memOrderCache {
	return &memOrderCache{entries: map[uint]*repository.CachedOrder{}}
}

func (c *memOrderCache) Get(ctx context.Context, userID, assignmentID uint) (*repository.CachedOrder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[assignmentID], nil
}

func (c *memOrderCache) Set(ctx context.Context, userID, assignmentID uint, order []uint, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[assignmentID] = &repository.CachedOrder{Order: order, Timestamp: now}
	return nil
}

func (c *memOrderCache) Delete(ctx context.Context, userID, assignmentID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, assignmentID)
	return nil
}

// fakeMarksReporter 记录成绩上报调用。
type fakeMarksReporter struct {
	reports []client.StoreMarksRequest
	err     error
}

func (f *fakeMarksReporter) StoreMarks(ctx context.Context, marks client.StoreMarksRequest) error {
	if f.err != nil {
		return f.err
	}
	f.reports = append(f.reports, marks)
	return nil
}

// fakeTranscriber 固定识别结果。
type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Analyze(ctx context.Context, wavPath string) (string, error) {
	return f.text, f.err
}
