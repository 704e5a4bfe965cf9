package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// ModuleSummary 聚合后语料中保留的单模块概要
type ModuleSummary struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	WordCount  int    `json:"wordCount"`
	VideoCount int    `json:"videoCount"`
	AudioCount int    `json:"audioCount"`
	FileCount  int    `json:"fileCount"`
	Truncated  bool   `json:"truncated"`
	Failed     bool   `json:"failed"`
}

// KnowledgeCorpus 聚合后的课程知识语料，是训练会话的出题依据
type KnowledgeCorpus struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	SourceURL             string          `json:"sourceUrl"`
	AggregatedText        string          `json:"aggregatedText"`
	Topics                []string        `json:"topics"`
	LearningObjectives    []string        `json:"learningObjectives"`
	ModuleSummaries       []ModuleSummary `json:"moduleSummaries"`
	TotalVideos           int             `json:"totalVideos"`
	TotalAudios           int             `json:"totalAudios"`
	TotalFiles            int             `json:"totalFiles"`
	EstimatedStudyMinutes int             `json:"estimatedStudyMinutes"`
}

// Empty 没有可出题文本的语料不能开启训练
func (c *KnowledgeCorpus) Empty() bool {
	return c == nil || len(c.AggregatedText) == 0
}

// JSONColumn 存成 JSON 文本列的任意结构
type JSONColumn json.RawMessage

func (j JSONColumn) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSONColumn) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = JSONColumn(v)
	default:
		return errors.New("unsupported type for JSONColumn")
	}
	return nil
}

// KnowledgeCorpusRecord 语料的持久化记录
// swagger:model
type KnowledgeCorpusRecord struct {
	UUIDBase
	UserID                uint       `gorm:"index" json:"userId"`
	Name                  string     `gorm:"size:255;not null" json:"name"`
	SourceURL             string     `gorm:"size:1024" json:"sourceUrl"`
	AggregatedText        string     `gorm:"type:longtext" json:"-"`
	Topics                JSONColumn `gorm:"type:json" json:"topics"`
	LearningObjectives    JSONColumn `gorm:"type:json" json:"learningObjectives"`
	ModuleSummaries       JSONColumn `gorm:"type:json" json:"moduleSummaries"`
	TotalVideos           int        `json:"totalVideos"`
	TotalAudios           int        `json:"totalAudios"`
	TotalFiles            int        `json:"totalFiles"`
	EstimatedStudyMinutes int        `json:"estimatedStudyMinutes"`
}

func (KnowledgeCorpusRecord) TableName() string {
	return "knowledge_corpora"
}

// ToCorpus 把持久化记录还原成内存语料
func (r *KnowledgeCorpusRecord) ToCorpus() (*KnowledgeCorpus, error) {
	c := &KnowledgeCorpus{
		ID:                    r.ID,
		Name:                  r.Name,
		SourceURL:             r.SourceURL,
		AggregatedText:        r.AggregatedText,
		TotalVideos:           r.TotalVideos,
		TotalAudios:           r.TotalAudios,
		TotalFiles:            r.TotalFiles,
		EstimatedStudyMinutes: r.EstimatedStudyMinutes,
	}
	if len(r.Topics) > 0 {
		if err := json.Unmarshal(r.Topics, &c.Topics); err != nil {
			return nil, err
		}
	}
	if len(r.LearningObjectives) > 0 {
		if err := json.Unmarshal(r.LearningObjectives, &c.LearningObjectives); err != nil {
			return nil, err
		}
	}
	if len(r.ModuleSummaries) > 0 {
		if err := json.Unmarshal(r.ModuleSummaries, &c.ModuleSummaries); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NewCorpusRecord 把内存语料转成持久化记录
func NewCorpusRecord(c *KnowledgeCorpus, userID uint) (*KnowledgeCorpusRecord, error) {
	topics, err := json.Marshal(c.Topics)
	if err != nil {
		return nil, err
	}
	objectives, err := json.Marshal(c.LearningObjectives)
	if err != nil {
		return nil, err
	}
	summaries, err := json.Marshal(c.ModuleSummaries)
	if err != nil {
		return nil, err
	}

	rec := &KnowledgeCorpusRecord{
		UserID:                userID,
		Name:                  c.Name,
		SourceURL:             c.SourceURL,
		AggregatedText:        c.AggregatedText,
		Topics:                JSONColumn(topics),
		LearningObjectives:    JSONColumn(objectives),
		ModuleSummaries:       JSONColumn(summaries),
		TotalVideos:           c.TotalVideos,
		TotalAudios:           c.TotalAudios,
		TotalFiles:            c.TotalFiles,
		EstimatedStudyMinutes: c.EstimatedStudyMinutes,
	}
	rec.ID = c.ID
	return rec, nil
}
