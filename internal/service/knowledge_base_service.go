package service

import (
	"mytutor_backend/internal/model"
	"mytutor_backend/internal/repository"
)

// KnowledgeBaseService 已完成课程语料的查询入口
type KnowledgeBaseService struct {
	corpusRepo *repository.CorpusRepository
}

func NewKnowledgeBaseService(corpusRepo *repository.CorpusRepository) *KnowledgeBaseService {
	return &KnowledgeBaseService{corpusRepo: corpusRepo}
}

// List 当前用户的知识库列表，不含正文
func (s *KnowledgeBaseService) List(userID uint) ([]model.KnowledgeCorpusRecord, error) {
	return s.corpusRepo.ListByUser(userID)
}

// LearningContent 训练前的学习内容概览
type LearningContent struct {
	KnowledgeBaseID       string                `json:"knowledge_base_id"`
	Name                  string                `json:"name"`
	Topics                []string              `json:"topics"`
	LearningObjectives    []string              `json:"learning_objectives"`
	ModuleSummaries       []model.ModuleSummary `json:"module_summaries"`
	TotalVideos           int                   `json:"total_videos"`
	TotalAudios           int                   `json:"total_audios"`
	TotalFiles            int                   `json:"total_files"`
	EstimatedStudyMinutes int                   `json:"estimated_study_minutes"`
}

// GetLearningContent 按知识库取学习概览
func (s *KnowledgeBaseService) GetLearningContent(id string) (*LearningContent, error) {
	rec, err := s.corpusRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	corpus, err := rec.ToCorpus()
	if err != nil {
		return nil, err
	}

	return &LearningContent{
		KnowledgeBaseID:       corpus.ID,
		Name:                  corpus.Name,
		Topics:                corpus.Topics,
		LearningObjectives:    corpus.LearningObjectives,
		ModuleSummaries:       corpus.ModuleSummaries,
		TotalVideos:           corpus.TotalVideos,
		TotalAudios:           corpus.TotalAudios,
		TotalFiles:            corpus.TotalFiles,
		EstimatedStudyMinutes: corpus.EstimatedStudyMinutes,
	}, nil
}

// Delete 删除知识库
func (s *KnowledgeBaseService) Delete(id string) error {
	return s.corpusRepo.Delete(id)
}
