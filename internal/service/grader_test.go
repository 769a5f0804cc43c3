package service

import (
	"testing"

	"github.com/sidhuiwnl/lordminds-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTranscript(t *testing.T) {
	assert.Equal(t, "hello world", NormalizeTranscript("  Hello, World!  "))
	assert.Equal(t, "option b", NormalizeTranscript("Option B."))
	assert.Equal(t, "a to 2", NormalizeTranscript("A to 2"))
	assert.Equal(t, "", NormalizeTranscript("!!!"))
}

func TestGradeFillBlank(t *testing.T) {
	q := &model.Question{
		Type:       model.QuestionFillBlank,
		Acceptable: []string{"elephant", "an elephant"},
	}

	tests := []struct {
		transcript string
		want       bool
	}{
		{"elephant", true},
		{"The answer is Elephant.", true},
		{"an elephant", true},
		{"giraffe", false},
		{"", false},
	}
	for _, tt := range tests {
		got, err := GradeTranscript(q, tt.transcript)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "transcript=%q", tt.transcript)
	}
}

func TestGradePronunciation(t *testing.T) {
	q := &model.Question{
		Type:       model.QuestionPronunciation,
		Acceptable: []string{"blackboard"},
	}

	got, err := GradeTranscript(q, "blackboard")
	require.NoError(t, err)
	assert.True(t, got)

	// 识别服务把长词拆成两段
	got, err = GradeTranscript(q, "black board")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = GradeTranscript(q, "whiteboard")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestGradeTrueFalse(t *testing.T) {
	qTrue := &model.Question{Type: model.QuestionTrueFalse, CorrectBool: true}
	qFalse := &model.Question{Type: model.QuestionTrueFalse, CorrectBool: false}

	tests := []struct {
		q          *model.Question
		transcript string
		want       bool
	}{
		{qTrue, "true", true},
		{qTrue, "Yes, that is correct", true},
		{qTrue, "false", false},
		{qFalse, "no", true},
		{qFalse, "that is wrong", true},
		{qFalse, "true", false},
		// 同时出现肯定和否定，按答错处理
		{qTrue, "yes no", false},
		// 两组都未命中也按答错处理，不是免费重试
		{qTrue, "banana", false},
		{qTrue, "", false},
	}
	for _, tt := range tests {
		got, err := GradeTranscript(tt.q, tt.transcript)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "transcript=%q", tt.transcript)
	}
}

func TestGradeMCQ(t *testing.T) {
	q := &model.Question{
		Type:          model.QuestionMCQ,
		Options:       []string{"Paris", "London", "Berlin"},
		CorrectOption: "London",
	}

	tests := []struct {
		transcript string
		want       bool
	}{
		{"London", true},
		{"I think it's london", true},
		{"B", true},
		{"option b", true},
		{"Paris", false},
		{"A", false},
		// 字母必须是独立的词
		{"bring me the answer", false},
	}
	for _, tt := range tests {
		got, err := GradeTranscript(q, tt.transcript)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "transcript=%q", tt.transcript)
	}
}

func TestGradeMatch(t *testing.T) {
	q := &model.Question{
		Type: model.QuestionMatch,
		Match: &model.MatchSpec{
			Left:  []string{"Dog", "Cat"},
			Right: []string{"Meow", "Woof"},
			Pairs: map[string]int{"A": 2, "B": 1},
		},
	}

	tests := []struct {
		transcript string
		want       bool
	}{
		{"A to 2 and B to 1", true},
		{"a 2 b 1", true},
		{"2 a then 1 b", true},
		{"dog goes woof and cat goes meow", true},
		// 只说对一组不得分
		{"A to 2", false},
		{"A to 1 and B to 1", false},
		// 完全说反的配对不能靠整段串扰得分
		{"A to 1 and B to 2", false},
		{"a to 1 b to 2", false},
		{"dog meow cat woof", false},
		{"", false},
	}
	for _, tt := range tests {
		got, err := GradeTranscript(q, tt.transcript)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "transcript=%q", tt.transcript)
	}
}

func TestGradeUnknownType(t *testing.T) {
	q := &model.Question{Type: "essay"}
	_, err := GradeTranscript(q, "anything")
	assert.Error(t, err)
}
