package repository

import (
	"errors"

	"github.com/sidhuiwnl/lordminds-sub000/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// InitForSession 题集加载时为每题建一行，已存在的行保持不变（会话开始后不重置）。
func (r *AttemptRepository) InitForSession(sessionID string, questions []model.Question) error {
	rows := make([]model.QuestionAttempt, len(questions))
	for i, q := range questions {
		rows[i] = model.QuestionAttempt{
			SessionID:    sessionID,
			QuestionID:   q.ID,
			QuestionType: q.Type,
			Correctness:  model.CorrectnessUnknown,
			Phase:        model.PhaseReady,
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *AttemptRepository) ListBySession(sessionID string) ([]model.QuestionAttempt, error) {
	var rows []model.QuestionAttempt
	err := r.DB.Where("session_id = ?", sessionID).Find(&rows).Error
	return rows, err
}

func (r *AttemptRepository) FindBySessionAndQuestion(sessionID string, questionID uint) (*model.QuestionAttempt, error) {
	var a model.QuestionAttempt
	err := r.DB.Where("session_id = ? AND question_id = ?", sessionID, questionID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) Update(a *model.QuestionAttempt) error {
	return r.DB.Save(a).Error
}

// CountNonTerminal 未到终态的题数，交卷前必须为0。
func (r *AttemptRepository) CountNonTerminal(sessionID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuestionAttempt{}).
		Where("session_id = ? AND correctness <> ? AND revealed = ?", sessionID, model.CorrectnessCorrect, false).
		Count(&count).Error
	return count, err
}

// CountCorrect 得分 = 答对题数。
func (r *AttemptRepository) CountCorrect(sessionID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuestionAttempt{}).
		Where("session_id = ? AND correctness = ?", sessionID, model.CorrectnessCorrect).
		Count(&count).Error
	return count, err
}
