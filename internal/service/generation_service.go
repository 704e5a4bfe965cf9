package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mytutor_backend/internal/config"
	"mytutor_backend/internal/model"
	"mytutor_backend/pkg/logger"
	"mytutor_backend/pkg/monitoring"
	"mytutor_backend/pkg/resilience"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// QuestionGenerator 按语料和难度生成一道题
type QuestionGenerator interface {
	Generate(ctx context.Context, corpus *model.KnowledgeCorpus, qtype model.QuestionType, difficulty model.Difficulty) (*model.Question, error)
}

// RubricEvaluator 按评分细则判开放题
type RubricEvaluator interface {
	Evaluate(ctx context.Context, q *model.Question, answer string) (correct bool, feedback string, err error)
}

// CourseSynthesizer 课程处理收尾时生成主题和目标
type CourseSynthesizer interface {
	Synthesize(ctx context.Context, corpus *model.KnowledgeCorpus) error
}

// GenerationService 出题、判卷和课程分析的统一实现，走 OpenAI 兼容接口。
// 所有外呼都经过重试调用器，限流类失败按指数退避重试
type GenerationService struct {
	client  *openai.Client
	model   string
	invoker *resilience.Invoker
}

func NewGenerationService(cfg config.AIConfig) *GenerationService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	invoker := resilience.NewInvoker(cfg.MaxAttempts, cfg.BackoffBaseSeconds, cfg.BackoffCapSeconds)
	invoker.OnRetry = func(attempt int) {
		monitoring.GenerationRetries.Inc()
		logger.Log.Warn("generation throttled, backing off", zap.Int("attempt", attempt))
	}

	return &GenerationService{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		invoker: invoker,
	}
}

func (s *GenerationService) complete(ctx context.Context, system, user string) (string, error) {
	var content string
	err := s.invoker.Do(ctx, func(ctx context.Context) error {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Temperature: 0.7,
		})
		if err != nil {
			return classifyUpstream(err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty completion response")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	return content, err
}

// classifyUpstream 把上游错误分成限流类和其余
func classifyUpstream(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "429") || resilience.IsThrottle(err) {
		return &resilience.ThrottleError{Message: msg}
	}
	return err
}

// generatedQuestion 生成服务回传的 JSON 结构
type generatedQuestion struct {
	Question               string            `json:"question"`
	Options                map[string]string `json:"options,omitempty"`
	CorrectAnswer          json.RawMessage   `json:"correct_answer"`
	Explanation            string            `json:"explanation"`
	Topic                  string            `json:"topic"`
	CognitiveLevel         string            `json:"cognitive_level"`
	LearningObjective      string            `json:"learning_objective"`
	EstimatedTime          int               `json:"estimated_time"`
	ContextClues           string            `json:"context_clues,omitempty"`
	MisconceptionAddressed string            `json:"misconception_addressed,omitempty"`
	LeftColumn             []string          `json:"left_column,omitempty"`
	RightColumn            []string          `json:"right_column,omitempty"`
	CorrectMatches         map[string]string `json:"correct_matches,omitempty"`
	SampleAnswer           string            `json:"sample_answer,omitempty"`
	AssessmentRubric       string            `json:"assessment_rubric,omitempty"`
	ScenarioContext        string            `json:"scenario_context,omitempty"`
	KeyConsiderations      []string          `json:"key_considerations,omitempty"`
	AssessmentCriteria     []string          `json:"assessment_criteria,omitempty"`
}

func (s *GenerationService) Generate(ctx context.Context, corpus *model.KnowledgeCorpus, qtype model.QuestionType, difficulty model.Difficulty) (*model.Question, error) {
	system := "你是一名出题老师。只输出一个 JSON 对象，不要输出任何其他文本。"
	user := buildQuestionPrompt(corpus, qtype, difficulty)

	content, err := s.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	var gen generatedQuestion
	if err := json.Unmarshal([]byte(content), &gen); err != nil {
		return nil, fmt.Errorf("malformed question payload: %w", err)
	}

	q, err := gen.toQuestion(qtype, difficulty)
	if err != nil {
		return nil, err
	}

	logger.Log.Debug("question generated",
		zap.String("type", string(qtype)),
		zap.String("difficulty", string(difficulty)),
		zap.String("topic", q.Topic))
	return q, nil
}

func (g *generatedQuestion) toQuestion(qtype model.QuestionType, difficulty model.Difficulty) (*model.Question, error) {
	q := &model.Question{
		ID:                model.GenerateUUID(),
		Type:              qtype,
		Prompt:            g.Question,
		Explanation:       g.Explanation,
		Difficulty:        difficulty,
		Topic:             g.Topic,
		CognitiveLevel:    g.CognitiveLevel,
		LearningObjective: g.LearningObjective,
		EstimatedSeconds:  g.EstimatedTime,
	}

	var correctText string
	if len(g.CorrectAnswer) > 0 {
		// correct_answer 可能是字符串，也可能是字符串数组（填空的多个可接受答案）
		if err := json.Unmarshal(g.CorrectAnswer, &correctText); err != nil {
			var list []string
			if err := json.Unmarshal(g.CorrectAnswer, &list); err == nil && len(list) > 0 {
				correctText = list[0]
				if qtype == model.FillBlank {
					q.FillBlank = &model.FillBlankPayload{Acceptable: list, ContextClues: g.ContextClues}
				}
			}
		}
	}

	switch qtype {
	case model.MCQ:
		if len(g.Options) == 0 {
			return nil, fmt.Errorf("mcq without options")
		}
		payload := &model.MCQPayload{CorrectKey: correctText}
		for _, key := range []string{"A", "B", "C", "D", "E", "F"} {
			if text, ok := g.Options[key]; ok {
				payload.Options = append(payload.Options, model.Choice{Key: key, Text: text})
			}
		}
		q.MCQ = payload
	case model.TrueFalse:
		q.TrueFalse = &model.TrueFalsePayload{
			CorrectKey:             strings.ToLower(correctText),
			MisconceptionAddressed: g.MisconceptionAddressed,
		}
	case model.FillBlank:
		if q.FillBlank == nil {
			q.FillBlank = &model.FillBlankPayload{
				Acceptable:   []string{correctText},
				ContextClues: g.ContextClues,
			}
		}
	case model.Match:
		if len(g.CorrectMatches) == 0 {
			return nil, fmt.Errorf("match without correct_matches")
		}
		q.Match = &model.MatchPayload{
			LeftColumn:     g.LeftColumn,
			RightColumn:    g.RightColumn,
			CorrectMatches: g.CorrectMatches,
		}
	case model.OpenEnded:
		q.FreeForm = &model.FreeFormPayload{
			SampleAnswer: g.SampleAnswer,
			Rubric:       g.AssessmentRubric,
		}
	case model.Scenario:
		q.FreeForm = &model.FreeFormPayload{
			ScenarioContext:    g.ScenarioContext,
			SampleAnswer:       g.SampleAnswer,
			KeyConsiderations:  g.KeyConsiderations,
			AssessmentCriteria: g.AssessmentCriteria,
		}
	default:
		return nil, fmt.Errorf("unsupported question type %q", qtype)
	}

	return q, nil
}

func buildQuestionPrompt(corpus *model.KnowledgeCorpus, qtype model.QuestionType, difficulty model.Difficulty) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "基于以下课程内容，出一道 %s 难度的 %s 题。\n\n", difficulty, qtype)

	switch qtype {
	case model.MCQ:
		sb.WriteString("JSON 字段: question, options(A/B/C/D 映射), correct_answer(选项字母), explanation, topic, cognitive_level, learning_objective, estimated_time(秒)\n")
	case model.TrueFalse:
		sb.WriteString("JSON 字段: question, correct_answer(\"true\"或\"false\"), explanation, misconception_addressed, topic, cognitive_level, learning_objective, estimated_time(秒)\n")
	case model.FillBlank:
		sb.WriteString("JSON 字段: question(含 _____ 空格), correct_answer(字符串或可接受答案数组), context_clues, explanation, topic, cognitive_level, learning_objective, estimated_time(秒)\n")
	case model.Match:
		sb.WriteString("JSON 字段: question, left_column, right_column, correct_matches(左到右映射), explanation, topic, cognitive_level, learning_objective, estimated_time(秒)\n")
	case model.OpenEnded:
		sb.WriteString("JSON 字段: question, sample_answer, assessment_rubric, explanation, topic, cognitive_level, learning_objective, estimated_time(秒)\n")
	case model.Scenario:
		sb.WriteString("JSON 字段: question, scenario_context, key_considerations, assessment_criteria, sample_answer, explanation, topic, cognitive_level, learning_objective, estimated_time(秒)\n")
	}

	sb.WriteString("\n课程内容:\n")
	text := corpus.AggregatedText
	if len(text) > 12000 {
		text = text[:12000]
	}
	sb.WriteString(text)
	return sb.String()
}

// rubricResult 判卷服务回传的 JSON 结构
type rubricResult struct {
	Correct  bool   `json:"correct"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

func (s *GenerationService) Evaluate(ctx context.Context, q *model.Question, answer string) (bool, string, error) {
	system := "你是一名判卷老师。根据评分细则判断学生答案是否达标。只输出 JSON 对象: {\"correct\": bool, \"score\": 0-100, \"feedback\": string}"

	var sb strings.Builder
	fmt.Fprintf(&sb, "题目: %s\n", q.Prompt)
	if q.FreeForm != nil {
		if q.FreeForm.ScenarioContext != "" {
			fmt.Fprintf(&sb, "情境: %s\n", q.FreeForm.ScenarioContext)
		}
		if q.FreeForm.Rubric != "" {
			fmt.Fprintf(&sb, "评分细则: %s\n", q.FreeForm.Rubric)
		}
		if len(q.FreeForm.AssessmentCriteria) > 0 {
			fmt.Fprintf(&sb, "评估标准: %s\n", strings.Join(q.FreeForm.AssessmentCriteria, "; "))
		}
		fmt.Fprintf(&sb, "参考答案: %s\n", q.FreeForm.SampleAnswer)
	}
	fmt.Fprintf(&sb, "学生答案: %s\n", answer)

	content, err := s.complete(ctx, system, sb.String())
	if err != nil {
		return false, "", err
	}

	var result rubricResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return false, "", fmt.Errorf("malformed grading payload: %w", err)
	}
	return result.Correct, result.Feedback, nil
}

// synthesisResult 课程分析回传的 JSON 结构
type synthesisResult struct {
	Topics             []string `json:"topics"`
	LearningObjectives []string `json:"learning_objectives"`
}

// Synthesize 对聚合语料做一次收尾分析，补充主题与学习目标。
// 分析失败不是致命的，语料仍然可用
func (s *GenerationService) Synthesize(ctx context.Context, corpus *model.KnowledgeCorpus) error {
	system := "你是一名课程分析师。只输出 JSON 对象: {\"topics\": [string], \"learning_objectives\": [string]}"

	text := corpus.AggregatedText
	if len(text) > 12000 {
		text = text[:12000]
	}
	user := "提取以下课程内容的核心主题和学习目标:\n\n" + text

	content, err := s.complete(ctx, system, user)
	if err != nil {
		return err
	}

	var result synthesisResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return fmt.Errorf("malformed synthesis payload: %w", err)
	}

	corpus.Topics = mergeUnique(corpus.Topics, result.Topics)
	corpus.LearningObjectives = mergeUnique(corpus.LearningObjectives, result.LearningObjectives)
	return nil
}

func mergeUnique(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range extra {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			base = append(base, s)
		}
	}
	return base
}
