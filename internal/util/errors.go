package util

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionTerminated    = errors.New("会话已因违规被终止")
	ErrSessionEnded         = errors.New("session already ended")
	ErrSessionSuspended     = errors.New("监考暂挂中，请回到考试窗口")
	ErrNoOpenSession        = errors.New("no open session for this assignment")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrAttemptExhausted     = errors.New("该题作答次数已用完")
	ErrAttemptTerminal      = errors.New("该题已完成作答")
	ErrNotRecording         = errors.New("recording not started")
	ErrAlreadyRecording     = errors.New("recording already in progress")
	ErrAnalysisInFlight     = errors.New("上一次作答仍在识别中")
	ErrQuestionNotTerminal  = errors.New("当前题目未完成，不能切换")
	ErrNotAllTerminal       = errors.New("仍有题目未完成，不能交卷")
	ErrStepOutOfRange       = errors.New("step out of range")
	ErrQuestionsUnavailable = errors.New("题库服务暂不可用，请稍后重试")
	ErrVoiceUnavailable     = errors.New("语音识别服务暂不可用，请重新作答")
	ErrMarksUnavailable     = errors.New("成绩上报失败，请重试交卷")
)
