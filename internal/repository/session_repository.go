package repository

import (
	"errors"
	"time"

	"github.com/sidhuiwnl/lordminds-sub000/internal/model"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(s *model.ProctorSession) error {
	return r.DB.Create(s).Error
}

func (r *SessionRepository) FindByID(id string) (*model.ProctorSession, error) {
	var s model.ProctorSession
	err := r.DB.Where("id = ?", id).First(&s).Error
	return &s, err
}

// FindOpenByUserAndAssignment 查找未结束的会话，没有则返回 nil。
func (r *SessionRepository) FindOpenByUserAndAssignment(userID, assignmentID uint) (*model.ProctorSession, error) {
	var s model.ProctorSession
	err := r.DB.Where("user_id = ? AND assignment_id = ? AND ended_at IS NULL", userID, assignmentID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindTerminatedByUserAndAssignment 终止过的会话永久封锁该作业的再次进入。
func (r *SessionRepository) FindTerminatedByUserAndAssignment(userID, assignmentID uint) (*model.ProctorSession, error) {
	var s model.ProctorSession
	err := r.DB.Where("user_id = ? AND assignment_id = ? AND status = ?", userID, assignmentID, model.SessionTerminated).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) Update(s *model.ProctorSession) error {
	return r.DB.Save(s).Error
}

// Close 只在 ended_at 为空时写入结束时间，重复调用不会覆盖首次时间戳。
func (r *SessionRepository) Close(id string, status model.SessionStatus, endedAt time.Time) error {
	return r.DB.Model(&model.ProctorSession{}).
		Where("id = ? AND ended_at IS NULL", id).
		Updates(map[string]interface{}{
			"status":   status,
			"ended_at": endedAt,
		}).Error
}
