package model

import "time"

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionSubmitted  SessionStatus = "submitted"
	SessionTerminated SessionStatus = "terminated"
)

// ProctorSession 一次监考作答会话。同一学生同一作业最多一个未结束会话。
// swagger:model ProctorSession
type ProctorSession struct {
	UUIDBase
	UserID       uint          `gorm:"index:idx_user_assignment;type:bigint unsigned" json:"userId"`
	AssignmentID uint          `gorm:"index:idx_user_assignment;type:bigint unsigned" json:"assignmentId"`
	Status       SessionStatus `gorm:"size:20;default:'in_progress'" json:"status"`
	CurrentStep  int           `gorm:"default:1" json:"currentStep"` // 1起步

	// 监考状态（违规计数单调递增，终止后不可恢复）
	ViolationCount int  `gorm:"default:0" json:"violationCount"`
	Suspended      bool `gorm:"default:false" json:"suspended"`

	StartedAt     time.Time  `json:"startedAt"`
	EndedAt       *time.Time `json:"endedAt"`
	MarksObtained *int       `json:"marksObtained,omitempty"`
	MaxMarks      *int       `json:"maxMarks,omitempty"`
}

func (ProctorSession) TableName() string {
	return "proctor_sessions"
}

func (s *ProctorSession) Terminated() bool {
	return s.Status == SessionTerminated
}

func (s *ProctorSession) Ended() bool {
	return s.EndedAt != nil
}
