package service

import (
	"context"
	"fmt"
	"time"

	"mytutor_backend/internal/config"
	"mytutor_backend/internal/model"
	"mytutor_backend/internal/store"
	"mytutor_backend/internal/util"
	"mytutor_backend/pkg/logger"
	"mytutor_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// CorpusFinder 按 ID 取语料记录
type CorpusFinder interface {
	FindByID(id string) (*model.KnowledgeCorpusRecord, error)
}

// TrainingArchiver 训练记录的归档与查询
type TrainingArchiver interface {
	Create(rec *model.TrainingRecord) error
	ListByUser(userID uint, limit int) ([]model.TrainingRecord, error)
	ListByKnowledgeBase(kbID string, limit int) ([]model.TrainingRecord, error)
}

// TrainingService 自适应训练会话。出题走生成服务，闭合题型本地判卷，
// 开放题型交给评分细则判卷，难度随连对连错自动升降
type TrainingService struct {
	store        store.SessionStore
	corpusRepo   CorpusFinder
	trainingRepo TrainingArchiver
	generator    QuestionGenerator
	evaluator    RubricEvaluator
	cfg          config.TrainingConfig
}

func NewTrainingService(
	sessionStore store.SessionStore,
	corpusRepo CorpusFinder,
	trainingRepo TrainingArchiver,
	generator QuestionGenerator,
	evaluator RubricEvaluator,
	cfg config.TrainingConfig,
) *TrainingService {
	return &TrainingService{
		store:        sessionStore,
		corpusRepo:   corpusRepo,
		trainingRepo: trainingRepo,
		generator:    generator,
		evaluator:    evaluator,
		cfg:          cfg,
	}
}

// StartOptions 开启训练会话的参数
type StartOptions struct {
	KnowledgeBaseID string               `json:"knowledge_base_id" binding:"required"`
	QuestionTypes   []model.QuestionType `json:"question_types"`
	StudyTime       string               `json:"study_time"`
}

// StartTrainingResult 开启训练会话的响应
type StartTrainingResult struct {
	SessionID string              `json:"session_id"`
	Question  *model.QuestionView `json:"question"`
}

// Start 校验语料非空后创建训练会话并生成第一道题
func (s *TrainingService) Start(ctx context.Context, userID uint, opts StartOptions) (*StartTrainingResult, error) {
	rec, err := s.corpusRepo.FindByID(opts.KnowledgeBaseID)
	if err != nil {
		return nil, err
	}
	corpus, err := rec.ToCorpus()
	if err != nil {
		return nil, err
	}
	if corpus.Empty() {
		return nil, util.ErrEmptyCorpus
	}

	types := opts.QuestionTypes
	if len(types) == 0 {
		types = []model.QuestionType{model.MCQ, model.OpenEnded}
	}
	for _, t := range types {
		if !t.Valid() {
			return nil, fmt.Errorf("unknown question type %q", t)
		}
	}

	session := &model.TrainingSession{
		ID:              model.GenerateUUID(),
		KnowledgeBaseID: opts.KnowledgeBaseID,
		UserID:          userID,
		Status:          model.TrainingActive,
		QuestionTypes:   types,
		StudyTime:       opts.StudyTime,
		Difficulty:      model.Beginner,
		CreatedAt:       time.Now(),
	}

	question, err := s.generator.Generate(ctx, corpus, s.nextType(session), session.Difficulty)
	if err != nil {
		return nil, err
	}
	session.Current = question

	if err := s.store.PutTraining(ctx, session); err != nil {
		return nil, err
	}
	monitoring.ActiveTrainingSessions.Inc()

	logger.Log.Info("training session started",
		zap.String("session_id", session.ID),
		zap.String("knowledge_base_id", opts.KnowledgeBaseID))

	return &StartTrainingResult{SessionID: session.ID, Question: question.View()}, nil
}

// nextType 按请求的题型循环出题
func (s *TrainingService) nextType(session *model.TrainingSession) model.QuestionType {
	return session.QuestionTypes[session.QuestionsAnswered%len(session.QuestionTypes)]
}

// AnswerResult 判卷结果
type AnswerResult struct {
	Correct           bool                `json:"correct"`
	CorrectAnswer     string              `json:"correct_answer"`
	Explanation       string              `json:"explanation"`
	Score             float64             `json:"score"`
	QuestionsAnswered int                 `json:"questions_answered"`
	Difficulty        model.Difficulty    `json:"difficulty"`
	NextQuestion      *model.QuestionView `json:"next_question,omitempty"`
}

// SubmitAnswer 判当前题并生成下一题。答案形态不匹配时同步拒绝，
// 不改动会话状态
func (s *TrainingService) SubmitAnswer(ctx context.Context, sessionID string, answer model.Answer) (*AnswerResult, error) {
	release, err := s.store.TryAcquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.store.GetTraining(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.TrainingActive || session.Current == nil {
		return nil, util.ErrSessionCompleted
	}

	question := session.Current
	if !question.CheckShape(&answer) {
		return nil, util.ErrInvalidAnswerShape
	}

	var correct bool
	explanation := question.Explanation
	if question.Type.FreeForm() {
		var feedback string
		correct, feedback, err = s.evaluator.Evaluate(ctx, question, answer.Text)
		if err != nil {
			return nil, err
		}
		if feedback != "" {
			explanation = feedback
		}
	} else {
		correct = question.GradeClosed(&answer)
	}

	session.History = append(session.History, model.AnsweredQuestion{
		QuestionID: question.ID,
		Type:       question.Type,
		Prompt:     question.Prompt,
		Difficulty: question.Difficulty,
		Answer:     answer,
		Correct:    correct,
		AnsweredAt: time.Now(),
	})
	session.RecordResult(correct)
	s.adaptDifficulty(session)

	result := &AnswerResult{
		Correct:           correct,
		CorrectAnswer:     question.CanonicalAnswer(),
		Explanation:       explanation,
		Score:             session.Score,
		QuestionsAnswered: session.QuestionsAnswered,
		Difficulty:        session.Difficulty,
	}

	// 生成下一题。失败时会话仍然有效，本次判卷结果照常返回
	next, err := s.generateNext(ctx, session)
	if err != nil {
		logger.Log.Warn("next question generation failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		session.Current = nil
	} else {
		session.Current = next
		result.NextQuestion = next.View()
	}

	if err := s.store.PutTraining(ctx, session); err != nil {
		return nil, err
	}
	return result, nil
}

// adaptDifficulty 连对 RaiseStreak 次升一档，连错 LowerStreak 次降一档，
// 升降后清零计数
func (s *TrainingService) adaptDifficulty(session *model.TrainingSession) {
	if session.CorrectStreak >= s.cfg.RaiseStreak {
		session.Difficulty = session.Difficulty.Harder()
		session.CorrectStreak = 0
	}
	if session.IncorrectStreak >= s.cfg.LowerStreak {
		session.Difficulty = session.Difficulty.Easier()
		session.IncorrectStreak = 0
	}
}

func (s *TrainingService) generateNext(ctx context.Context, session *model.TrainingSession) (*model.Question, error) {
	rec, err := s.corpusRepo.FindByID(session.KnowledgeBaseID)
	if err != nil {
		return nil, err
	}
	corpus, err := rec.ToCorpus()
	if err != nil {
		return nil, err
	}
	return s.generator.Generate(ctx, corpus, s.nextType(session), session.Difficulty)
}

// Get 训练会话快照
func (s *TrainingService) Get(ctx context.Context, sessionID string) (*model.TrainingSession, error) {
	return s.store.GetTraining(ctx, sessionID)
}

// EndResult 结束训练的汇总
type EndResult struct {
	SessionID         string  `json:"session_id"`
	FinalScore        float64 `json:"final_score"`
	QuestionsAnswered int     `json:"questions_answered"`
	CorrectAnswers    int     `json:"correct_answers"`
	Accuracy          float64 `json:"accuracy"`
	ElapsedSeconds    int64   `json:"elapsed_seconds"`
}

// End 结束会话并归档。重复调用返回同样的汇总
func (s *TrainingService) End(ctx context.Context, sessionID string) (*EndResult, error) {
	release, err := s.store.TryAcquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.store.GetTraining(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status == model.TrainingActive {
		now := time.Now()
		session.Status = model.TrainingCompleted
		session.CompletedAt = &now
		session.Current = nil
		if err := s.store.PutTraining(ctx, session); err != nil {
			return nil, err
		}
		monitoring.ActiveTrainingSessions.Dec()

		if s.trainingRepo != nil {
			rec, err := model.NewTrainingRecord(session)
			if err == nil {
				if err := s.trainingRepo.Create(rec); err != nil {
					logger.Log.Error("archive training session", zap.String("session_id", sessionID), zap.Error(err))
				}
			}
		}
	}

	var elapsed int64
	if session.CompletedAt != nil {
		elapsed = int64(session.CompletedAt.Sub(session.CreatedAt).Seconds())
	}

	return &EndResult{
		SessionID:         session.ID,
		FinalScore:        session.Score,
		QuestionsAnswered: session.QuestionsAnswered,
		CorrectAnswers:    session.CorrectAnswers,
		Accuracy:          session.Accuracy(),
		ElapsedSeconds:    elapsed,
	}, nil
}

// HistoryByUser 用户训练历史
func (s *TrainingService) HistoryByUser(userID uint, limit int) ([]model.TrainingRecord, error) {
	return s.trainingRepo.ListByUser(userID, limit)
}

// HistoryByKnowledgeBase 某个知识库下的训练历史
func (s *TrainingService) HistoryByKnowledgeBase(kbID string, limit int) ([]model.TrainingRecord, error) {
	return s.trainingRepo.ListByKnowledgeBase(kbID, limit)
}
