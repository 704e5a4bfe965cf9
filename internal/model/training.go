package model

import (
	"encoding/json"
	"time"
)

// TrainingStatus 训练会话状态
type TrainingStatus string

const (
	TrainingActive    TrainingStatus = "active"
	TrainingCompleted TrainingStatus = "completed"
)

// AnsweredQuestion 答题历史中的一条记录
type AnsweredQuestion struct {
	QuestionID string       `json:"questionId"`
	Type       QuestionType `json:"type"`
	Prompt     string       `json:"question"`
	Difficulty Difficulty   `json:"difficulty"`
	Answer     Answer       `json:"answer"`
	Correct    bool         `json:"correct"`
	AnsweredAt time.Time    `json:"answeredAt"`
}

// TrainingSession 一次自适应训练会话
type TrainingSession struct {
	ID                string             `json:"id"`
	KnowledgeBaseID   string             `json:"knowledgeBaseId"`
	UserID            uint               `json:"userId"`
	Status            TrainingStatus     `json:"status"`
	QuestionTypes     []QuestionType     `json:"questionTypes"`
	StudyTime         string             `json:"studyTime,omitempty"`
	Current           *Question          `json:"currentQuestion,omitempty"`
	History           []AnsweredQuestion `json:"history,omitempty"`
	QuestionsAnswered int                `json:"questionsAnswered"`
	CorrectAnswers    int                `json:"correctAnswers"`
	Score             float64            `json:"score"`
	Difficulty        Difficulty         `json:"difficulty"`
	CorrectStreak     int                `json:"correctStreak"`
	IncorrectStreak   int                `json:"incorrectStreak"`
	CreatedAt         time.Time          `json:"createdAt"`
	CompletedAt       *time.Time         `json:"completedAt,omitempty"`
}

// RecordResult 更新计分与连对连错计数，分数保持 100*正确/已答
func (s *TrainingSession) RecordResult(correct bool) {
	s.QuestionsAnswered++
	if correct {
		s.CorrectAnswers++
		s.CorrectStreak++
		s.IncorrectStreak = 0
	} else {
		s.IncorrectStreak++
		s.CorrectStreak = 0
	}
	s.Score = float64(s.CorrectAnswers) / float64(s.QuestionsAnswered) * 100
}

// Accuracy 百分比正确率，未答题时为 0
func (s *TrainingSession) Accuracy() float64 {
	if s.QuestionsAnswered == 0 {
		return 0
	}
	return float64(s.CorrectAnswers) / float64(s.QuestionsAnswered) * 100
}

// TrainingRecord 训练会话结束后的归档记录
// swagger:model
type TrainingRecord struct {
	UUIDBase
	KnowledgeBaseID   string     `gorm:"size:36;index" json:"knowledgeBaseId"`
	UserID            uint       `gorm:"index" json:"userId"`
	QuestionsAnswered int        `json:"questionsAnswered"`
	CorrectAnswers    int        `json:"correctAnswers"`
	FinalScore        float64    `json:"finalScore"`
	StudyTime         string     `gorm:"size:64" json:"studyTime,omitempty"`
	History           JSONColumn `gorm:"type:json" json:"history,omitempty"`
	StartedAt         time.Time  `json:"startedAt"`
	EndedAt           time.Time  `json:"endedAt"`
}

func (TrainingRecord) TableName() string {
	return "training_records"
}

// NewTrainingRecord 从已结束的会话生成归档记录
func NewTrainingRecord(s *TrainingSession) (*TrainingRecord, error) {
	history, err := json.Marshal(s.History)
	if err != nil {
		return nil, err
	}
	endedAt := time.Now()
	if s.CompletedAt != nil {
		endedAt = *s.CompletedAt
	}
	rec := &TrainingRecord{
		KnowledgeBaseID:   s.KnowledgeBaseID,
		UserID:            s.UserID,
		QuestionsAnswered: s.QuestionsAnswered,
		CorrectAnswers:    s.CorrectAnswers,
		FinalScore:        s.Score,
		StudyTime:         s.StudyTime,
		History:           JSONColumn(history),
		StartedAt:         s.CreatedAt,
		EndedAt:           endedAt,
	}
	rec.ID = s.ID
	return rec, nil
}
