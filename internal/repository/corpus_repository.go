package repository

import (
	"errors"

	"mytutor_backend/internal/model"
	"mytutor_backend/internal/util"

	"gorm.io/gorm"
)

type CorpusRepository struct {
	DB *gorm.DB
}

func NewCorpusRepository(db *gorm.DB) *CorpusRepository {
	return &CorpusRepository{DB: db}
}

func (r *CorpusRepository) Create(rec *model.KnowledgeCorpusRecord) error {
	return r.DB.Create(rec).Error
}

func (r *CorpusRepository) FindByID(id string) (*model.KnowledgeCorpusRecord, error) {
	var rec model.KnowledgeCorpusRecord
	err := r.DB.First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCorpusNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *CorpusRepository) ListByUser(userID uint) ([]model.KnowledgeCorpusRecord, error) {
	var recs []model.KnowledgeCorpusRecord
	err := r.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Omit("aggregated_text").
		Find(&recs).Error
	return recs, err
}

func (r *CorpusRepository) Delete(id string) error {
	return r.DB.Delete(&model.KnowledgeCorpusRecord{}, "id = ?", id).Error
}
