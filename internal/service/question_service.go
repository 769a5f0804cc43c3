package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sidhuiwnl/lordminds-sub000/internal/client"
	"github.com/sidhuiwnl/lordminds-sub000/internal/model"
	"github.com/sidhuiwnl/lordminds-sub000/internal/repository"
	"github.com/sidhuiwnl/lordminds-sub000/internal/util"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/logger"

	"go.uber.org/zap"
)

// QuestionSource 题库协作方能力，由 client.LMSClient 实现。
type QuestionSource interface {
	FetchQuestions(ctx context.Context, assignmentID uint) ([]client.RawQuestion, error)
}

// OrderCache 出题顺序缓存能力，由 repository.OrderCacheRepository 实现。
type OrderCache interface {
	Get(ctx context.Context, userID, assignmentID uint) (*repository.CachedOrder, error)
	Set(ctx context.Context, userID, assignmentID uint, order []uint, now time.Time) error
	Delete(ctx context.Context, userID, assignmentID uint) error
}

// AttemptStore 每题作答状态持久化能力，由 repository.AttemptRepository 实现。
type AttemptStore interface {
	InitForSession(sessionID string, questions []model.Question) error
	ListBySession(sessionID string) ([]model.QuestionAttempt, error)
	FindBySessionAndQuestion(sessionID string, questionID uint) (*model.QuestionAttempt, error)
	Update(a *model.QuestionAttempt) error
	CountNonTerminal(sessionID string) (int64, error)
	CountCorrect(sessionID string) (int64, error)
}

// fillBlankDistractors 填空题的固定干扰词池，题库未提供备选项时从这里补齐。
var fillBlankDistractors = []string{
	"apple", "river", "happy", "school", "window", "garden",
	"music", "yellow", "market", "bridge", "doctor", "planet",
	"forest", "silver", "summer", "travel",
}

// QuestionService 拉取题库载荷并归一化成统一题型，派生出题顺序。
type QuestionService struct {
	Source   QuestionSource
	Orders   OrderCache
	Attempts AttemptStore
	ttl      time.Duration

	mu     sync.Mutex
	cache  map[uint]cachedSet // 归一化结果的短期内存缓存，避免每次评分都回源
	maxAge time.Duration
}

type cachedSet struct {
	questions []model.Question
	fetchedAt time.Time
}

func NewQuestionService(source QuestionSource, orders OrderCache, attempts AttemptStore, orderTTL time.Duration) *QuestionService {
	return &QuestionService{
		Source:   source,
		Orders:   orders,
		Attempts: attempts,
		ttl:      orderTTL,
		cache:    make(map[uint]cachedSet),
		maxAge:   5 * time.Minute,
	}
}

// load 拉取并归一化整份题集。
func (s *QuestionService) load(ctx context.Context, assignmentID uint) ([]model.Question, error) {
	s.mu.Lock()
	if set, ok := s.cache[assignmentID]; ok && time.Since(set.fetchedAt) < s.maxAge {
		s.mu.Unlock()
		return set.questions, nil
	}
	s.mu.Unlock()

	raws, err := s.Source.FetchQuestions(ctx, assignmentID)
	if err != nil {
		logger.Log.Error("failed to fetch questions", zap.Uint("assignment", assignmentID), zap.Error(err))
		return nil, util.ErrQuestionsUnavailable
	}

	questions := make([]model.Question, 0, len(raws))
	for _, raw := range raws {
		q, err := NormalizeQuestion(raw)
		if err != nil {
			logger.Log.Warn("skipping malformed question",
				zap.Uint("question", raw.QuestionID),
				zap.Error(err),
			)
			continue
		}
		questions = append(questions, q)
	}

	s.mu.Lock()
	s.cache[assignmentID] = cachedSet{questions: questions, fetchedAt: time.Now()}
	s.mu.Unlock()

	return questions, nil
}

// QuestionsInOrder 按本次会话应呈现的顺序返回题集。顺序缓存命中且有效时
// 复用（刷新页面看到相同顺序），过期或题集结构变化时重洗并写回缓存。
func (s *QuestionService) QuestionsInOrder(ctx context.Context, userID, assignmentID uint) ([]model.Question, error) {
	questions, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(questions))
	byID := make(map[uint]model.Question, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
		byID[q.ID] = q
	}

	cached, err := s.Orders.Get(ctx, userID, assignmentID)
	if err != nil {
		// 缓存不可用降级为重洗，不阻断考试
		logger.Log.Warn("order cache unavailable", zap.Error(err))
		cached = nil
	}

	now := time.Now()
	order, reused := ResolveOrder(ids, cached, now, s.ttl)
	if !reused {
		if err := s.Orders.Set(ctx, userID, assignmentID, order, now); err != nil {
			logger.Log.Warn("failed to persist presentation order", zap.Error(err))
		}
	}

	ordered := make([]model.Question, 0, len(order))
	for _, id := range order {
		ordered = append(ordered, byID[id])
	}
	return ordered, nil
}

// InitAttempts 题集加载时为会话建立每题作答状态，幂等。
func (s *QuestionService) InitAttempts(sessionID string, questions []model.Question) error {
	return s.Attempts.InitForSession(sessionID, questions)
}

// Question 按ID取单题（评分用）。
func (s *QuestionService) Question(ctx context.Context, assignmentID, questionID uint) (*model.Question, error) {
	questions, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		if questions[i].ID == questionID {
			return &questions[i], nil
		}
	}
	return nil, util.ErrQuestionNotFound
}

// ClearOrder 交卷后清除顺序缓存。
func (s *QuestionService) ClearOrder(ctx context.Context, userID, assignmentID uint) error {
	return s.Orders.Delete(ctx, userID, assignmentID)
}

// NormalizeQuestion 把题库的异构载荷归一化成闭合题型。载荷不完整时报错，
// 调用方跳过该题。
func NormalizeQuestion(raw client.RawQuestion) (model.Question, error) {
	q := model.Question{
		ID:     raw.QuestionID,
		Type:   model.QuestionType(raw.QuestionType),
		Prompt: strings.TrimSpace(raw.QuestionText),
	}

	switch q.Type {
	case model.QuestionMCQ:
		q.Options = collectLetteredOptions(raw)
		if len(q.Options) < 2 {
			return q, fmt.Errorf("mcq %d has fewer than 2 options", raw.QuestionID)
		}
		correct := resolveCorrectOption(raw.CorrectOption, q.Options)
		if correct == "" {
			return q, fmt.Errorf("mcq %d has no resolvable correct option", raw.QuestionID)
		}
		q.CorrectOption = correct

	case model.QuestionTrueFalse:
		q.CorrectBool = normalizeBool(raw.Answer)

	case model.QuestionFillBlank:
		q.Acceptable = splitAnswers(raw.Answer, raw.AlternateAnswers)
		if len(q.Acceptable) == 0 {
			return q, fmt.Errorf("fill_blank %d has no acceptable answers", raw.QuestionID)
		}
		q.Options = collectLetteredOptions(raw)
		if len(q.Options) == 0 {
			q.Options = buildDistractorOptions(q.Acceptable[0], q.Acceptable)
		}

	case model.QuestionPronunciation:
		q.Acceptable = splitAnswers(raw.Answer, raw.AlternateAnswers)
		if len(q.Acceptable) == 0 {
			return q, fmt.Errorf("pronunciation %d has no acceptable answers", raw.QuestionID)
		}

	case model.QuestionMatch:
		if len(raw.LeftOptions) == 0 || len(raw.RightOptions) == 0 || len(raw.Matches) == 0 {
			return q, fmt.Errorf("match %d is missing pairing payload", raw.QuestionID)
		}
		q.Match = &model.MatchSpec{
			Left:  raw.LeftOptions,
			Right: raw.RightOptions,
			Pairs: raw.Matches,
		}

	default:
		return q, fmt.Errorf("unknown question type: %s", raw.QuestionType)
	}

	return q, nil
}

// collectLetteredOptions 把 option_a..option_d 按字母序收集成选项列表。
func collectLetteredOptions(raw client.RawQuestion) []string {
	var options []string
	for _, opt := range []string{raw.OptionA, raw.OptionB, raw.OptionC, raw.OptionD} {
		opt = strings.TrimSpace(opt)
		if opt != "" {
			options = append(options, opt)
		}
	}
	return options
}

// resolveCorrectOption 正确项可能给字母（"B"）也可能给全文，统一成全文。
func resolveCorrectOption(correct string, options []string) string {
	correct = strings.TrimSpace(correct)
	if correct == "" {
		return ""
	}

	if len(correct) == 1 {
		idx := int(strings.ToUpper(correct)[0] - 'A')
		if idx >= 0 && idx < len(options) {
			return options[idx]
		}
		return ""
	}

	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), correct) {
			return opt
		}
	}
	return correct
}

func normalizeBool(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "true", "t", "1", "yes":
		return true
	}
	return false
}

// splitAnswers 主答案 + 逗号分隔的备选答案，去空去重。
func splitAnswers(answer, alternates string) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	add(answer)
	for _, part := range strings.Split(alternates, ",") {
		add(part)
	}
	return out
}

// buildDistractorOptions 题库没给备选项时，从固定干扰池挑3个凑成展示选项，
// 正确答案插入随机位置。
func buildDistractorOptions(answer string, acceptable []string) []string {
	accepted := make(map[string]bool, len(acceptable))
	for _, a := range acceptable {
		accepted[strings.ToLower(a)] = true
	}

	pool := make([]string, 0, len(fillBlankDistractors))
	for _, d := range fillBlankDistractors {
		if !accepted[d] {
			pool = append(pool, d)
		}
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	n := 3
	if len(pool) < n {
		n = len(pool)
	}
	options := append([]string{}, pool[:n]...)

	pos := rand.Intn(len(options) + 1)
	options = append(options[:pos], append([]string{answer}, options[pos:]...)...)
	return options
}
