package service

import (
	"context"
	"testing"
	"time"

	"github.com/sidhuiwnl/lordminds-sub000/internal/client"
	"github.com/sidhuiwnl/lordminds-sub000/internal/model"
	"github.com/sidhuiwnl/lordminds-sub000/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gradingFixture struct {
	attempts *fakeAttemptStore
	svc      *GradingService
	session  *model.ProctorSession
}

func newGradingFixture(t *testing.T) *gradingFixture {
	t.Helper()

	source := &fakeQuestionSource{questions: []client.RawQuestion{
		{QuestionID: 1, QuestionType: "mcq", QuestionText: "Capital of France?", OptionA: "London", OptionB: "Paris", CorrectOption: "B"},
	}}
	sessions := newFakeSessionStore()
	attempts := newFakeAttemptStore()

	sessionSvc := NewSessionService(sessions)
	questionSvc := NewQuestionService(source, newMemOrderCache(), attempts, 2*time.Hour)
	gradingSvc := NewGradingService(questionSvc, attempts, sessionSvc, nil, &fakeTranscriber{}, 2)

	session, _, err := sessionSvc.Open(context.Background(), 7, 42)
	require.NoError(t, err)

	ordered, err := questionSvc.QuestionsInOrder(context.Background(), 7, 42)
	require.NoError(t, err)
	require.NoError(t, questionSvc.InitAttempts(session.ID, ordered))

	return &gradingFixture{attempts: attempts, svc: gradingSvc, session: session}
}

func (f *gradingFixture) attempt(t *testing.T) *model.QuestionAttempt {
	t.Helper()
	a, err := f.attempts.FindBySessionAndQuestion(f.session.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a
}

func TestStartRecording(t *testing.T) {
	f := newGradingFixture(t)

	require.NoError(t, f.svc.StartRecording(context.Background(), f.session, 1))
	assert.Equal(t, model.PhaseRecording, f.attempt(t).Phase)

	// 重复开始被拒绝
	err := f.svc.StartRecording(context.Background(), f.session, 1)
	assert.ErrorIs(t, err, util.ErrAlreadyRecording)
}

func TestStartRecordingUnknownQuestion(t *testing.T) {
	f := newGradingFixture(t)
	err := f.svc.StartRecording(context.Background(), f.session, 99)
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)
}

func TestStartRecordingRejectsTerminalQuestion(t *testing.T) {
	f := newGradingFixture(t)

	a := f.attempt(t)
	a.Correctness = model.CorrectnessCorrect
	require.NoError(t, f.attempts.Update(a))

	err := f.svc.StartRecording(context.Background(), f.session, 1)
	assert.ErrorIs(t, err, util.ErrAttemptTerminal)
}

func TestStartRecordingRejectsExhaustedAttempts(t *testing.T) {
	f := newGradingFixture(t)

	a := f.attempt(t)
	a.AttemptCount = 2
	a.Correctness = model.CorrectnessIncorrect
	a.Revealed = true
	require.NoError(t, f.attempts.Update(a))

	err := f.svc.StartRecording(context.Background(), f.session, 1)
	assert.ErrorIs(t, err, util.ErrAttemptTerminal)

	// 未揭示但次数用尽同样拒绝
	a = f.attempt(t)
	a.Revealed = false
	require.NoError(t, f.attempts.Update(a))

	err = f.svc.StartRecording(context.Background(), f.session, 1)
	assert.ErrorIs(t, err, util.ErrAttemptExhausted)
}

func TestCancelRecording(t *testing.T) {
	f := newGradingFixture(t)

	// 未在录音中不能取消
	err := f.svc.CancelRecording(context.Background(), f.session, 1)
	assert.ErrorIs(t, err, util.ErrNotRecording)

	require.NoError(t, f.svc.StartRecording(context.Background(), f.session, 1))
	require.NoError(t, f.svc.CancelRecording(context.Background(), f.session, 1))

	a := f.attempt(t)
	assert.Equal(t, model.PhaseReady, a.Phase)
	// 取消不消耗作答次数
	assert.Equal(t, 0, a.AttemptCount)
}

func (f *gradingFixture) question(t *testing.T) *model.Question {
	t.Helper()
	q, err := f.svc.Questions.Question(context.Background(), 42, 1)
	require.NoError(t, err)
	return q
}

// 进入识别中状态，模拟 StopAndAnalyze 在送识别前的状态迁移。
func (f *gradingFixture) analyzing(t *testing.T) *model.QuestionAttempt {
	t.Helper()
	a := f.attempt(t)
	a.Phase = model.PhaseAnalyzing
	require.NoError(t, f.attempts.Update(a))
	return a
}

func TestSettleTranscriptConsumesExactlyOneAttempt(t *testing.T) {
	f := newGradingFixture(t)
	q := f.question(t)
	a := f.analyzing(t)

	result, err := f.svc.settleTranscript(context.Background(), f.session, q, a, "London")
	require.NoError(t, err)

	assert.False(t, result.Correct)
	assert.Equal(t, 1, result.AttemptCount)
	assert.Equal(t, 1, result.AttemptsLeft)
	assert.False(t, result.Revealed)
	assert.Empty(t, result.CorrectAnswer)
	assert.Equal(t, "Incorrect. Please try again.", result.Speech)

	stored := f.attempt(t)
	assert.Equal(t, 1, stored.AttemptCount)
	assert.Equal(t, model.PhaseReady, stored.Phase)
	assert.Equal(t, model.CorrectnessIncorrect, stored.Correctness)
	assert.False(t, stored.Terminal())
}

func TestSettleTranscriptRevealsOnSecondIncorrect(t *testing.T) {
	f := newGradingFixture(t)
	q := f.question(t)

	a := f.analyzing(t)
	a.AttemptCount = 1
	a.Correctness = model.CorrectnessIncorrect
	require.NoError(t, f.attempts.Update(a))

	result, err := f.svc.settleTranscript(context.Background(), f.session, q, a, "London")
	require.NoError(t, err)

	assert.False(t, result.Correct)
	assert.Equal(t, 2, result.AttemptCount)
	assert.Equal(t, 0, result.AttemptsLeft)
	assert.True(t, result.Revealed)
	assert.Equal(t, "Paris", result.CorrectAnswer)
	assert.Equal(t, "Incorrect. The correct answer is Paris.", result.Speech)

	// 揭示后该题到终态，不能再开始录音
	err = f.svc.StartRecording(context.Background(), f.session, 1)
	assert.ErrorIs(t, err, util.ErrAttemptTerminal)
}

func TestSettleTranscriptCorrectEndsQuestion(t *testing.T) {
	f := newGradingFixture(t)
	q := f.question(t)
	a := f.analyzing(t)

	result, err := f.svc.settleTranscript(context.Background(), f.session, q, a, "Paris")
	require.NoError(t, err)

	assert.True(t, result.Correct)
	assert.Equal(t, 1, result.AttemptCount)
	assert.Equal(t, "Correct!", result.Speech)
	assert.True(t, f.attempt(t).Terminal())
}

func TestSettleTranscriptDiscardedAfterTermination(t *testing.T) {
	f := newGradingFixture(t)
	q := f.question(t)
	a := f.analyzing(t)

	// 识别进行中会话被监考终止
	require.NoError(t, f.svc.Sessions.Close(context.Background(), f.session.ID, model.SessionTerminated))

	result, err := f.svc.settleTranscript(context.Background(), f.session, q, a, "Paris")
	require.NoError(t, err)

	assert.True(t, result.Discarded)
	assert.False(t, result.Correct)

	// 作废不计次，状态回到就绪
	stored := f.attempt(t)
	assert.Equal(t, 0, stored.AttemptCount)
	assert.Equal(t, model.PhaseReady, stored.Phase)
}

func TestSpeak(t *testing.T) {
	f := newGradingFixture(t)

	speech, err := f.svc.Speak(context.Background(), f.session, 1, -1)
	require.NoError(t, err)
	assert.Equal(t, "Capital of France?", speech)

	speech, err = f.svc.Speak(context.Background(), f.session, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "Option B: Paris", speech)

	_, err = f.svc.Speak(context.Background(), f.session, 1, 5)
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)
}

func TestCorrectAnswerText(t *testing.T) {
	assert.Equal(t, "Paris", correctAnswerText(&model.Question{Type: model.QuestionMCQ, CorrectOption: "Paris"}))
	assert.Equal(t, "True", correctAnswerText(&model.Question{Type: model.QuestionTrueFalse, CorrectBool: true}))
	assert.Equal(t, "False", correctAnswerText(&model.Question{Type: model.QuestionTrueFalse}))
	assert.Equal(t, "elephant", correctAnswerText(&model.Question{Type: model.QuestionFillBlank, Acceptable: []string{"elephant"}}))
	assert.Equal(t, "A to 2", correctAnswerText(&model.Question{
		Type: model.QuestionMatch,
		Match: &model.MatchSpec{
			Left:  []string{"Dog"},
			Right: []string{"Meow", "Woof"},
			Pairs: map[string]int{"A": 2},
		},
	}))
}
