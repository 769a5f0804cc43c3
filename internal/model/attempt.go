package model

type Correctness string

const (
	CorrectnessUnknown   Correctness = "unknown"
	CorrectnessCorrect   Correctness = "correct"
	CorrectnessIncorrect Correctness = "incorrect"
)

// AttemptPhase 作答采集状态机：READY → RECORDING → ANALYZING → READY/终态。
type AttemptPhase string

const (
	PhaseReady     AttemptPhase = "ready"
	PhaseRecording AttemptPhase = "recording"
	PhaseAnalyzing AttemptPhase = "analyzing"
)

// QuestionAttempt 每题一行，题集加载时创建，只由评分管线修改，会话开始后不重置。
// swagger:model QuestionAttempt
type QuestionAttempt struct {
	UUIDBase
	SessionID    string       `gorm:"index:idx_session_question,unique;type:varchar(36)" json:"sessionId"`
	QuestionID   uint         `gorm:"index:idx_session_question,unique;type:bigint unsigned" json:"questionId"`
	QuestionType QuestionType `gorm:"size:20" json:"questionType"`

	AttemptCount int          `gorm:"default:0" json:"attemptCount"` // 0..2
	Correctness  Correctness  `gorm:"size:10;default:'unknown'" json:"correctness"`
	Revealed     bool         `gorm:"default:false" json:"revealed"`
	Phase        AttemptPhase `gorm:"size:10;default:'ready'" json:"phase"`

	Transcript string `gorm:"type:text" json:"transcript"`
	AudioRef   string `gorm:"size:255" json:"audioRef"` // 最近一次录音的存储地址
}

func (QuestionAttempt) TableName() string {
	return "question_attempts"
}

// Terminal 判断该题是否到达终态（答对或已揭示答案），终态后才允许前进。
func (a *QuestionAttempt) Terminal() bool {
	return a.Correctness == CorrectnessCorrect || a.Revealed
}
