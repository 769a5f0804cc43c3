package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sidhuiwnl/lordminds-sub000/internal/model"
	"github.com/sidhuiwnl/lordminds-sub000/internal/util"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/logger"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/monitoring"

	"go.uber.org/zap"
)

// Transcriber 语音识别协作方能力，由 client.VoiceClient 实现。
type Transcriber interface {
	Analyze(ctx context.Context, wavPath string) (string, error)
}

// GradeResult 单次作答的评分结果，含给客户端TTS播报的文案。
type GradeResult struct {
	QuestionID    uint   `json:"questionId"`
	Transcript    string `json:"transcript"`
	Correct       bool   `json:"correct"`
	AttemptCount  int    `json:"attemptCount"`
	AttemptsLeft  int    `json:"attemptsLeft"`
	Revealed      bool   `json:"revealed"`
	CorrectAnswer string `json:"correctAnswer,omitempty"` // 仅揭示后返回
	Speech        string `json:"speech"`                  // 客户端TTS播报文案
	Discarded     bool   `json:"discarded,omitempty"`     // 会话已终止，结果作废
}

// GradingService 语音作答评分管线：录音状态机、转码、识别、按题型判分。
type GradingService struct {
	Questions   *QuestionService
	Attempts    AttemptStore
	Sessions    *SessionService
	Storage     *StorageService
	Voice       Transcriber
	maxAttempts int
}

func NewGradingService(questions *QuestionService, attempts AttemptStore, sessions *SessionService, storage *StorageService, voice Transcriber, maxAttempts int) *GradingService {
	return &GradingService{
		Questions:   questions,
		Attempts:    attempts,
		Sessions:    sessions,
		Storage:     storage,
		Voice:       voice,
		maxAttempts: maxAttempts,
	}
}

// StartRecording 开始录音。终态题、次数用尽、识别进行中均拒绝。
func (s *GradingService) StartRecording(ctx context.Context, session *model.ProctorSession, questionID uint) error {
	attempt, err := s.Attempts.FindBySessionAndQuestion(session.ID, questionID)
	if err != nil {
		return err
	}
	if attempt == nil {
		return util.ErrAttemptNotFound
	}
	if attempt.Terminal() {
		return util.ErrAttemptTerminal
	}
	if attempt.AttemptCount >= s.maxAttempts {
		return util.ErrAttemptExhausted
	}

	switch attempt.Phase {
	case model.PhaseRecording:
		return util.ErrAlreadyRecording
	case model.PhaseAnalyzing:
		return util.ErrAnalysisInFlight
	}

	attempt.Phase = model.PhaseRecording
	return s.Attempts.Update(attempt)
}

// CancelRecording 放弃本段录音，不消耗作答次数。
func (s *GradingService) CancelRecording(ctx context.Context, session *model.ProctorSession, questionID uint) error {
	attempt, err := s.Attempts.FindBySessionAndQuestion(session.ID, questionID)
	if err != nil {
		return err
	}
	if attempt == nil {
		return util.ErrAttemptNotFound
	}
	if attempt.Phase != model.PhaseRecording {
		return util.ErrNotRecording
	}

	attempt.Phase = model.PhaseReady
	return s.Attempts.Update(attempt)
}

// StopAndAnalyze 结束录音并走完整评分管线：
// 落盘 → 转码16kHz单声道WAV → 归档 → 识别 → 按题型判分。
// 识别成功即消耗一次作答次数；识别服务不可用不消耗，作答状态回到就绪。
func (s *GradingService) StopAndAnalyze(ctx context.Context, session *model.ProctorSession, questionID uint, file multipart.File, header *multipart.FileHeader) (*GradeResult, error) {
	attempt, err := s.Attempts.FindBySessionAndQuestion(session.ID, questionID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, util.ErrAttemptNotFound
	}
	if attempt.Phase != model.PhaseRecording {
		return nil, util.ErrNotRecording
	}

	question, err := s.Questions.Question(ctx, session.AssignmentID, questionID)
	if err != nil {
		return nil, err
	}

	attempt.Phase = model.PhaseAnalyzing
	if err := s.Attempts.Update(attempt); err != nil {
		return nil, err
	}

	wavPath, cleanup, err := s.prepareAudio(file, header)
	if err != nil {
		s.resetPhase(attempt)
		return nil, err
	}
	defer cleanup()

	if info, probeErr := util.GetAudioInfo(wavPath); probeErr == nil {
		logger.Log.Debug("recording normalized",
			zap.String("session", session.ID),
			zap.Uint("question", questionID),
			zap.Float64("seconds", info.Duration),
		)
	}

	// 录音归档供复核，失败不阻断评分
	ref := fmt.Sprintf("recordings/%s/%d_%d.wav", session.ID, questionID, time.Now().UnixNano())
	if url, err := s.Storage.UploadFile(ctx, ref, wavPath, util.MimeWav); err != nil {
		logger.Log.Warn("failed to archive recording", zap.String("session", session.ID), zap.Error(err))
	} else {
		attempt.AudioRef = url
	}

	transcript, err := s.Voice.Analyze(ctx, wavPath)
	if err != nil {
		logger.Log.Error("voice analysis failed",
			zap.String("session", session.ID),
			zap.Uint("question", questionID),
			zap.Error(err),
		)
		s.resetPhase(attempt)
		return nil, util.ErrVoiceUnavailable
	}

	return s.settleTranscript(ctx, session, question, attempt, transcript)
}

// settleTranscript 识别成功后的判分收尾：作废检查、判分、计次一次、
// 末次答错揭示答案并生成播报文案。
func (s *GradingService) settleTranscript(ctx context.Context, session *model.ProctorSession, question *model.Question, attempt *model.QuestionAttempt, transcript string) (*GradeResult, error) {
	// 识别期间会话可能已被监考终止，结果作废且不计次
	fresh, err := s.Sessions.Get(ctx, session.ID)
	if err == nil && fresh.Ended() {
		s.resetPhase(attempt)
		monitoring.GradingCounter.WithLabelValues(string(question.Type), "discarded").Inc()
		return &GradeResult{QuestionID: question.ID, Discarded: true}, nil
	}

	correct, err := GradeTranscript(question, transcript)
	if err != nil {
		s.resetPhase(attempt)
		return nil, err
	}

	attempt.AttemptCount++
	attempt.Transcript = transcript
	attempt.Phase = model.PhaseReady
	if correct {
		attempt.Correctness = model.CorrectnessCorrect
	} else {
		attempt.Correctness = model.CorrectnessIncorrect
		if attempt.AttemptCount >= s.maxAttempts {
			attempt.Revealed = true
		}
	}
	if err := s.Attempts.Update(attempt); err != nil {
		return nil, err
	}

	result := &GradeResult{
		QuestionID:   question.ID,
		Transcript:   transcript,
		Correct:      correct,
		AttemptCount: attempt.AttemptCount,
		AttemptsLeft: s.maxAttempts - attempt.AttemptCount,
		Revealed:     attempt.Revealed,
	}

	verdict := "incorrect"
	switch {
	case correct:
		verdict = "correct"
		result.Speech = "Correct!"
	case attempt.Revealed:
		verdict = "revealed"
		result.CorrectAnswer = correctAnswerText(question)
		result.Speech = fmt.Sprintf("Incorrect. The correct answer is %s.", result.CorrectAnswer)
	default:
		result.Speech = "Incorrect. Please try again."
	}
	monitoring.GradingCounter.WithLabelValues(string(question.Type), verdict).Inc()

	logger.Log.Info("answer graded",
		zap.String("session", session.ID),
		zap.Uint("question", question.ID),
		zap.String("verdict", verdict),
		zap.Int("attempt", attempt.AttemptCount),
	)

	return result, nil
}

// Speak 返回题面或选项的TTS播报文案。optionIndex 为 -1 时读题面。
func (s *GradingService) Speak(ctx context.Context, session *model.ProctorSession, questionID uint, optionIndex int) (string, error) {
	question, err := s.Questions.Question(ctx, session.AssignmentID, questionID)
	if err != nil {
		return "", err
	}
	if optionIndex < 0 {
		return question.Prompt, nil
	}
	if optionIndex >= len(question.Options) {
		return "", util.ErrQuestionNotFound
	}
	return fmt.Sprintf("Option %s: %s", model.OptionLetter(optionIndex), question.Options[optionIndex]), nil
}

// prepareAudio 把上传分片落到临时目录并转码成识别服务要求的WAV格式。
func (s *GradingService) prepareAudio(file multipart.File, header *multipart.FileHeader) (string, func(), error) {
	if header.Size > util.MaxAudioUploadBytes {
		return "", nil, fmt.Errorf("audio too large: %d bytes", header.Size)
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	allowed := false
	for _, e := range util.AllowedAudioExtensions {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", nil, fmt.Errorf("unsupported audio format: %s", ext)
	}

	tmpDir, err := os.MkdirTemp("", "proctor-audio-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	rawPath := filepath.Join(tmpDir, "raw"+ext)
	out, err := os.Create(rawPath)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		cleanup()
		return "", nil, err
	}
	out.Close()

	wavPath := filepath.Join(tmpDir, "normalized.wav")
	if err := util.TranscodeToWav(rawPath, wavPath); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("audio transcode failed: %w", err)
	}

	return wavPath, cleanup, nil
}

func (s *GradingService) resetPhase(attempt *model.QuestionAttempt) {
	attempt.Phase = model.PhaseReady
	if err := s.Attempts.Update(attempt); err != nil {
		logger.Log.Error("failed to reset attempt phase", zap.String("session", attempt.SessionID), zap.Error(err))
	}
}

// correctAnswerText 揭示答案时的播报文本。
func correctAnswerText(q *model.Question) string {
	switch q.Type {
	case model.QuestionMCQ:
		return q.CorrectOption
	case model.QuestionTrueFalse:
		if q.CorrectBool {
			return "True"
		}
		return "False"
	case model.QuestionFillBlank, model.QuestionPronunciation:
		if len(q.Acceptable) > 0 {
			return q.Acceptable[0]
		}
	case model.QuestionMatch:
		if q.Match != nil {
			pairs := make([]string, 0, len(q.Match.Left))
			for i := range q.Match.Left {
				letter := model.OptionLetter(i)
				if num, ok := q.Match.Pairs[letter]; ok {
					pairs = append(pairs, fmt.Sprintf("%s to %d", letter, num))
				}
			}
			return strings.Join(pairs, ", ")
		}
	}
	return ""
}
