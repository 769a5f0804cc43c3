package service

import (
	"context"
	"testing"
	"time"

	"github.com/sidhuiwnl/lordminds-sub000/internal/client"
	"github.com/sidhuiwnl/lordminds-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeQuestionMCQ(t *testing.T) {
	q, err := NormalizeQuestion(client.RawQuestion{
		QuestionID:    1,
		QuestionType:  "mcq",
		QuestionText:  "Capital of France?",
		OptionA:       "London",
		OptionB:       "Paris",
		OptionC:       "Berlin",
		CorrectOption: "B",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"London", "Paris", "Berlin"}, q.Options)
	assert.Equal(t, "Paris", q.CorrectOption)

	// 正确项给全文也能解析
	q, err = NormalizeQuestion(client.RawQuestion{
		QuestionID:    2,
		QuestionType:  "mcq",
		OptionA:       "Red",
		OptionB:       "Blue",
		CorrectOption: "blue",
	})
	require.NoError(t, err)
	assert.Equal(t, "Blue", q.CorrectOption)

	// 选项不足
	_, err = NormalizeQuestion(client.RawQuestion{
		QuestionID:    3,
		QuestionType:  "mcq",
		OptionA:       "Only",
		CorrectOption: "A",
	})
	assert.Error(t, err)
}

func TestNormalizeQuestionTrueFalse(t *testing.T) {
	for _, answer := range []string{"true", "True", "T", "1", "yes"} {
		q, err := NormalizeQuestion(client.RawQuestion{
			QuestionID:   1,
			QuestionType: "true_false",
			Answer:       answer,
		})
		require.NoError(t, err)
		assert.True(t, q.CorrectBool, "answer=%q", answer)
	}

	q, err := NormalizeQuestion(client.RawQuestion{
		QuestionID:   2,
		QuestionType: "true_false",
		Answer:       "false",
	})
	require.NoError(t, err)
	assert.False(t, q.CorrectBool)
}

func TestNormalizeQuestionFillBlank(t *testing.T) {
	q, err := NormalizeQuestion(client.RawQuestion{
		QuestionID:       1,
		QuestionType:     "fill_blank",
		Answer:           "Elephant",
		AlternateAnswers: "an elephant, Elephant , ",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"elephant", "an elephant"}, q.Acceptable)
	// 题库没给选项时由干扰池补齐：正确答案 + 3个干扰项
	assert.Len(t, q.Options, 4)
	assert.Contains(t, q.Options, "elephant")

	// 题库给了选项就原样保留
	q, err = NormalizeQuestion(client.RawQuestion{
		QuestionID:   2,
		QuestionType: "fill_blank",
		Answer:       "cat",
		OptionA:      "cat",
		OptionB:      "dog",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog"}, q.Options)

	_, err = NormalizeQuestion(client.RawQuestion{
		QuestionID:   3,
		QuestionType: "fill_blank",
	})
	assert.Error(t, err)
}

func TestNormalizeQuestionMatch(t *testing.T) {
	q, err := NormalizeQuestion(client.RawQuestion{
		QuestionID:   1,
		QuestionType: "match",
		LeftOptions:  []string{"Dog", "Cat"},
		RightOptions: []string{"Meow", "Woof"},
		Matches:      map[string]int{"A": 2, "B": 1},
	})
	require.NoError(t, err)
	require.NotNil(t, q.Match)
	assert.Equal(t, 2, q.Match.Pairs["A"])

	_, err = NormalizeQuestion(client.RawQuestion{
		QuestionID:   2,
		QuestionType: "match",
		LeftOptions:  []string{"Dog"},
	})
	assert.Error(t, err)
}

func TestNormalizeQuestionUnknownType(t *testing.T) {
	_, err := NormalizeQuestion(client.RawQuestion{QuestionID: 1, QuestionType: "essay"})
	assert.Error(t, err)
}

func TestQuestionsInOrderStableAcrossCalls(t *testing.T) {
	source := &fakeQuestionSource{questions: []client.RawQuestion{
		{QuestionID: 1, QuestionType: "true_false", Answer: "true"},
		{QuestionID: 2, QuestionType: "true_false", Answer: "false"},
		{QuestionID: 3, QuestionType: "pronunciation", Answer: "hello"},
	}}
	svc := NewQuestionService(source, newMemOrderCache(), newFakeAttemptStore(), 2*time.Hour)

	first, err := svc.QuestionsInOrder(context.Background(), 7, 42)
	require.NoError(t, err)
	require.Len(t, first, 3)

	// 刷新页面：顺序从缓存复用
	second, err := svc.QuestionsInOrder(context.Background(), 7, 42)
	require.NoError(t, err)
	require.Len(t, second, 3)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestQuestionsInOrderSkipsMalformed(t *testing.T) {
	source := &fakeQuestionSource{questions: []client.RawQuestion{
		{QuestionID: 1, QuestionType: "pronunciation", Answer: "hello"},
		{QuestionID: 2, QuestionType: "mcq"}, // 缺选项，跳过
	}}
	svc := NewQuestionService(source, newMemOrderCache(), newFakeAttemptStore(), 2*time.Hour)

	questions, err := svc.QuestionsInOrder(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.Len(t, questions, 1)
	assert.Equal(t, uint(1), questions[0].ID)
}

func TestQuestionLookupUsesMemoryCache(t *testing.T) {
	source := &fakeQuestionSource{questions: []client.RawQuestion{
		{QuestionID: 5, QuestionType: "pronunciation", Answer: "hello"},
	}}
	svc := NewQuestionService(source, newMemOrderCache(), newFakeAttemptStore(), 2*time.Hour)

	q, err := svc.Question(context.Background(), 42, 5)
	require.NoError(t, err)
	assert.Equal(t, model.QuestionPronunciation, q.Type)

	_, err = svc.Question(context.Background(), 42, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls, "second lookup should hit the in-memory cache")
}
