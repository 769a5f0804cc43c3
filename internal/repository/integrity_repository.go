package repository

import (
	"github.com/sidhuiwnl/lordminds-sub000/internal/model"

	"gorm.io/gorm"
)

type IntegrityRepository struct {
	DB *gorm.DB
}

func NewIntegrityRepository(db *gorm.DB) *IntegrityRepository {
	return &IntegrityRepository{DB: db}
}

func (r *IntegrityRepository) Create(e *model.IntegrityEvent) error {
	return r.DB.Create(e).Error
}

func (r *IntegrityRepository) ListBySession(sessionID string) ([]model.IntegrityEvent, error) {
	var events []model.IntegrityEvent
	err := r.DB.Where("session_id = ?", sessionID).Order("created_at asc").Find(&events).Error
	return events, err
}
