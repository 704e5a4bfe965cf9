package repository

import (
	"mytutor_backend/internal/model"

	"gorm.io/gorm"
)

type TrainingRepository struct {
	DB *gorm.DB
}

func NewTrainingRepository(db *gorm.DB) *TrainingRepository {
	return &TrainingRepository{DB: db}
}

func (r *TrainingRepository) Create(rec *model.TrainingRecord) error {
	return r.DB.Create(rec).Error
}

func (r *TrainingRepository) FindByID(id string) (*model.TrainingRecord, error) {
	var rec model.TrainingRecord
	err := r.DB.First(&rec, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *TrainingRepository) ListByUser(userID uint, limit int) ([]model.TrainingRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []model.TrainingRecord
	err := r.DB.Where("user_id = ?", userID).
		Order("ended_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (r *TrainingRepository) ListByKnowledgeBase(kbID string, limit int) ([]model.TrainingRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []model.TrainingRecord
	err := r.DB.Where("knowledge_base_id = ?", kbID).
		Order("ended_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
