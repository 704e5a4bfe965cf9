package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mytutor_backend/internal/config"
	"mytutor_backend/internal/model"
	"mytutor_backend/internal/store"
	"mytutor_backend/internal/util"
)

type stubCorpusFinder struct {
	records map[string]*model.KnowledgeCorpusRecord
}

func (f *stubCorpusFinder) FindByID(id string) (*model.KnowledgeCorpusRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, util.ErrCorpusNotFound
	}
	return rec, nil
}

type stubArchiver struct {
	created []*model.TrainingRecord
}

func (a *stubArchiver) Create(rec *model.TrainingRecord) error {
	a.created = append(a.created, rec)
	return nil
}

func (a *stubArchiver) ListByUser(userID uint, limit int) ([]model.TrainingRecord, error) {
	return nil, nil
}

func (a *stubArchiver) ListByKnowledgeBase(kbID string, limit int) ([]model.TrainingRecord, error) {
	return nil, nil
}

// stubGenerator 按题型返回固定答案的题目并记录每次请求的难度
type stubGenerator struct {
	difficulties []model.Difficulty
	failNext     error
}

func (g *stubGenerator) Generate(ctx context.Context, corpus *model.KnowledgeCorpus, qtype model.QuestionType, difficulty model.Difficulty) (*model.Question, error) {
	if g.failNext != nil {
		err := g.failNext
		g.failNext = nil
		return nil, err
	}
	g.difficulties = append(g.difficulties, difficulty)

	q := &model.Question{
		ID:         fmt.Sprintf("q%d", len(g.difficulties)),
		Type:       qtype,
		Prompt:     "stub question",
		Difficulty: difficulty,
	}
	switch qtype {
	case model.MCQ:
		q.MCQ = &model.MCQPayload{
			Options:    []model.Choice{{Key: "A", Text: "right"}, {Key: "B", Text: "wrong"}},
			CorrectKey: "A",
		}
	case model.TrueFalse:
		q.TrueFalse = &model.TrueFalsePayload{CorrectKey: "true"}
	case model.OpenEnded:
		q.FreeForm = &model.FreeFormPayload{SampleAnswer: "sample", Rubric: "rubric"}
	}
	return q, nil
}

type stubEvaluator struct {
	correct  bool
	feedback string
}

func (e *stubEvaluator) Evaluate(ctx context.Context, q *model.Question, answer string) (bool, string, error) {
	return e.correct, e.feedback, nil
}

func corpusRecord(t *testing.T, id, text string) *model.KnowledgeCorpusRecord {
	t.Helper()
	rec, err := model.NewCorpusRecord(&model.KnowledgeCorpus{
		ID:             id,
		Name:           "Test Course",
		AggregatedText: text,
		Topics:         []string{"testing"},
	}, 1)
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func newTestTraining(t *testing.T, gen *stubGenerator, eval *stubEvaluator) (*TrainingService, *stubArchiver) {
	t.Helper()
	finder := &stubCorpusFinder{records: map[string]*model.KnowledgeCorpusRecord{
		"kb1":   corpusRecord(t, "kb1", "Go is a statically typed language."),
		"empty": corpusRecord(t, "empty", ""),
	}}
	archiver := &stubArchiver{}
	cfg := config.TrainingConfig{QuestionCount: 10, RaiseStreak: 3, LowerStreak: 2}
	svc := NewTrainingService(store.NewMemoryStore(), finder, archiver, gen, eval, cfg)
	return svc, archiver
}

func startMCQSession(t *testing.T, svc *TrainingService) string {
	t.Helper()
	result, err := svc.Start(context.Background(), 1, StartOptions{
		KnowledgeBaseID: "kb1",
		QuestionTypes:   []model.QuestionType{model.MCQ},
	})
	if err != nil {
		t.Fatal(err)
	}
	return result.SessionID
}

func submitKey(t *testing.T, svc *TrainingService, sessionID, key string) *AnswerResult {
	t.Helper()
	result, err := svc.SubmitAnswer(context.Background(), sessionID, model.Answer{Kind: model.AnswerKey, Key: key, Text: key})
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func TestStartRejectsEmptyCorpus(t *testing.T) {
	svc, _ := newTestTraining(t, &stubGenerator{}, &stubEvaluator{})

	_, err := svc.Start(context.Background(), 1, StartOptions{KnowledgeBaseID: "empty"})
	if !errors.Is(err, util.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}

	_, err = svc.Start(context.Background(), 1, StartOptions{KnowledgeBaseID: "missing"})
	if !errors.Is(err, util.ErrCorpusNotFound) {
		t.Fatalf("expected ErrCorpusNotFound, got %v", err)
	}
}

func TestStartReturnsSanitizedQuestion(t *testing.T) {
	svc, _ := newTestTraining(t, &stubGenerator{}, &stubEvaluator{})

	result, err := svc.Start(context.Background(), 1, StartOptions{
		KnowledgeBaseID: "kb1",
		QuestionTypes:   []model.QuestionType{model.TrueFalse},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Question == nil || result.Question.Type != model.TrueFalse {
		t.Fatalf("expected a true_false question, got %+v", result.Question)
	}

	session, err := svc.Get(context.Background(), result.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if session.QuestionsAnswered != 0 || session.Score != 0 {
		t.Errorf("fresh session should have no answers, got %+v", session)
	}
	if session.Current == nil {
		t.Error("fresh session should hold the pending question")
	}
}

func TestScoreIsPercentCorrect(t *testing.T) {
	svc, _ := newTestTraining(t, &stubGenerator{}, &stubEvaluator{})
	sessionID := startMCQSession(t, svc)

	submitKey(t, svc, sessionID, "A")
	submitKey(t, svc, sessionID, "A")
	submitKey(t, svc, sessionID, "A")
	result := submitKey(t, svc, sessionID, "B")

	if result.QuestionsAnswered != 4 {
		t.Errorf("expected 4 answered, got %d", result.QuestionsAnswered)
	}
	if result.Score != 75 {
		t.Errorf("expected score 75, got %v", result.Score)
	}
	if result.Correct {
		t.Error("last answer was wrong")
	}
	if result.CorrectAnswer != "A" {
		t.Errorf("expected canonical answer A, got %q", result.CorrectAnswer)
	}
}

func TestDifficultyRaisesAfterStreak(t *testing.T) {
	gen := &stubGenerator{}
	svc, _ := newTestTraining(t, gen, &stubEvaluator{})
	sessionID := startMCQSession(t, svc)

	submitKey(t, svc, sessionID, "A")
	submitKey(t, svc, sessionID, "A")
	result := submitKey(t, svc, sessionID, "A")

	if result.Difficulty != model.Intermediate {
		t.Errorf("expected intermediate after 3 straight correct, got %s", result.Difficulty)
	}
	// 第 4 次出题应当用新难度
	last := gen.difficulties[len(gen.difficulties)-1]
	if last != model.Intermediate {
		t.Errorf("next question should be generated at intermediate, got %s", last)
	}
}

func TestDifficultyLowersAfterMisses(t *testing.T) {
	gen := &stubGenerator{}
	svc, _ := newTestTraining(t, gen, &stubEvaluator{})
	sessionID := startMCQSession(t, svc)

	// 先升到 intermediate，再连错两次降回 beginner
	submitKey(t, svc, sessionID, "A")
	submitKey(t, svc, sessionID, "A")
	submitKey(t, svc, sessionID, "A")
	submitKey(t, svc, sessionID, "B")
	result := submitKey(t, svc, sessionID, "B")

	if result.Difficulty != model.Beginner {
		t.Errorf("expected drop back to beginner, got %s", result.Difficulty)
	}

	// 已在最低档时继续答错保持不变
	result = submitKey(t, svc, sessionID, "B")
	result = submitKey(t, svc, sessionID, "B")
	if result.Difficulty != model.Beginner {
		t.Errorf("beginner should clamp, got %s", result.Difficulty)
	}
}

func TestSubmitRejectsWrongShapeWithoutMutation(t *testing.T) {
	svc, _ := newTestTraining(t, &stubGenerator{}, &stubEvaluator{})
	sessionID := startMCQSession(t, svc)

	_, err := svc.SubmitAnswer(context.Background(), sessionID, model.Answer{
		Kind:  model.AnswerPairs,
		Pairs: map[string]string{"a": "b"},
	})
	if !errors.Is(err, util.ErrInvalidAnswerShape) {
		t.Fatalf("expected ErrInvalidAnswerShape, got %v", err)
	}

	session, err := svc.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if session.QuestionsAnswered != 0 || len(session.History) != 0 {
		t.Error("rejected submission must not mutate the session")
	}
}

func TestSubmitUnknownSession(t *testing.T) {
	svc, _ := newTestTraining(t, &stubGenerator{}, &stubEvaluator{})

	_, err := svc.SubmitAnswer(context.Background(), "missing", model.Answer{Kind: model.AnswerKey, Key: "A"})
	if !errors.Is(err, util.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestFreeFormUsesRubricEvaluator(t *testing.T) {
	eval := &stubEvaluator{correct: true, feedback: "covers the key points"}
	svc, _ := newTestTraining(t, &stubGenerator{}, eval)

	result, err := svc.Start(context.Background(), 1, StartOptions{
		KnowledgeBaseID: "kb1",
		QuestionTypes:   []model.QuestionType{model.OpenEnded},
	})
	if err != nil {
		t.Fatal(err)
	}

	answer, err := svc.SubmitAnswer(context.Background(), result.SessionID, model.Answer{
		Kind: model.AnswerKey,
		Key:  "interfaces describe behavior",
		Text: "interfaces describe behavior",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !answer.Correct {
		t.Error("evaluator verdict should be used")
	}
	if answer.Explanation != "covers the key points" {
		t.Errorf("evaluator feedback should replace explanation, got %q", answer.Explanation)
	}
}

func TestEndIsIdempotentAndArchives(t *testing.T) {
	svc, archiver := newTestTraining(t, &stubGenerator{}, &stubEvaluator{})
	sessionID := startMCQSession(t, svc)
	submitKey(t, svc, sessionID, "A")

	first, err := svc.End(context.Background(), sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if first.FinalScore != 100 || first.QuestionsAnswered != 1 {
		t.Errorf("unexpected summary %+v", first)
	}

	second, err := svc.End(context.Background(), sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if *second != *first {
		t.Errorf("repeated end should return the same summary: %+v vs %+v", second, first)
	}
	if len(archiver.created) != 1 {
		t.Errorf("session should be archived exactly once, got %d", len(archiver.created))
	}

	// 结束后不能再答题
	_, err = svc.SubmitAnswer(context.Background(), sessionID, model.Answer{Kind: model.AnswerKey, Key: "A"})
	if !errors.Is(err, util.ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted, got %v", err)
	}
}

func TestNextGenerationFailureKeepsResult(t *testing.T) {
	gen := &stubGenerator{}
	svc, _ := newTestTraining(t, gen, &stubEvaluator{})
	sessionID := startMCQSession(t, svc)

	gen.failNext = errors.New("ThrottlingException: Too many requests")
	result := submitKey(t, svc, sessionID, "A")

	if !result.Correct {
		t.Error("grading result should survive generation failure")
	}
	if result.NextQuestion != nil {
		t.Error("no next question expected after generation failure")
	}
}
