package model

import (
	"strings"
)

// QuestionType 题目类型
type QuestionType string

const (
	MCQ       QuestionType = "mcq"
	TrueFalse QuestionType = "true_false"
	FillBlank QuestionType = "fill_blank"
	Match     QuestionType = "match"
	OpenEnded QuestionType = "open_ended"
	Scenario  QuestionType = "scenario"
)

// AllQuestionTypes 生成请求中合法的题型集合
var AllQuestionTypes = []QuestionType{MCQ, TrueFalse, FillBlank, Match, OpenEnded, Scenario}

func (t QuestionType) Valid() bool {
	switch t {
	case MCQ, TrueFalse, FillBlank, Match, OpenEnded, Scenario:
		return true
	}
	return false
}

// FreeForm 需要评分细则判卷的题型
func (t QuestionType) FreeForm() bool {
	return t == OpenEnded || t == Scenario
}

// Difficulty 难度层级，beginner < intermediate < advanced
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// Harder 上调一档，最高档保持不变
func (d Difficulty) Harder() Difficulty {
	switch d {
	case Beginner:
		return Intermediate
	case Intermediate:
		return Advanced
	}
	return Advanced
}

// Easier 下调一档，最低档保持不变
func (d Difficulty) Easier() Difficulty {
	switch d {
	case Advanced:
		return Intermediate
	case Intermediate:
		return Beginner
	}
	return Beginner
}

// Choice 选择题选项
type Choice struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// MCQPayload 单选题数据
type MCQPayload struct {
	Options    []Choice `json:"options"`
	CorrectKey string   `json:"correctKey"`
}

// TrueFalsePayload 判断题数据
type TrueFalsePayload struct {
	CorrectKey             string `json:"correctKey"` // "true" | "false"
	MisconceptionAddressed string `json:"misconceptionAddressed,omitempty"`
}

// FillBlankPayload 填空题数据
type FillBlankPayload struct {
	Acceptable   []string `json:"acceptable"`
	ContextClues string   `json:"contextClues,omitempty"`
}

// MatchPayload 连线题数据，CorrectMatches 是左列到右列的完全双射
type MatchPayload struct {
	LeftColumn     []string          `json:"leftColumn"`
	RightColumn    []string          `json:"rightColumn"`
	CorrectMatches map[string]string `json:"correctMatches"`
}

// FreeFormPayload 开放题与情景题数据
type FreeFormPayload struct {
	ScenarioContext    string   `json:"scenarioContext,omitempty"`
	SampleAnswer       string   `json:"sampleAnswer"`
	Rubric             string   `json:"rubric,omitempty"`
	KeyConsiderations  []string `json:"keyConsiderations,omitempty"`
	AssessmentCriteria []string `json:"assessmentCriteria,omitempty"`
}

// Question 一道题目。Type 决定哪一个 payload 指针非空，题目生成后不可变
type Question struct {
	ID                string       `json:"id"`
	Type              QuestionType `json:"type"`
	Prompt            string       `json:"question"`
	Explanation       string       `json:"explanation,omitempty"`
	Difficulty        Difficulty   `json:"difficulty"`
	Topic             string       `json:"topic,omitempty"`
	CognitiveLevel    string       `json:"cognitiveLevel,omitempty"`
	LearningObjective string       `json:"learningObjective,omitempty"`
	EstimatedSeconds  int          `json:"estimatedSeconds,omitempty"`

	MCQ       *MCQPayload       `json:"mcq,omitempty"`
	TrueFalse *TrueFalsePayload `json:"trueFalse,omitempty"`
	FillBlank *FillBlankPayload `json:"fillBlank,omitempty"`
	Match     *MatchPayload     `json:"match,omitempty"`
	FreeForm  *FreeFormPayload  `json:"freeForm,omitempty"`
}

// QuestionView 下发给客户端的题面，不包含标准答案和解析
type QuestionView struct {
	ID               string       `json:"id"`
	Type             QuestionType `json:"type"`
	Prompt           string       `json:"question"`
	Difficulty       Difficulty   `json:"difficulty"`
	Topic            string       `json:"topic,omitempty"`
	EstimatedSeconds int          `json:"estimatedSeconds,omitempty"`
	Options          []Choice     `json:"options,omitempty"`
	ContextClues     string       `json:"contextClues,omitempty"`
	LeftColumn       []string     `json:"leftColumn,omitempty"`
	RightColumn      []string     `json:"rightColumn,omitempty"`
	ScenarioContext  string       `json:"scenarioContext,omitempty"`
}

// View 去掉答案后的题面
func (q *Question) View() *QuestionView {
	if q == nil {
		return nil
	}
	v := &QuestionView{
		ID:               q.ID,
		Type:             q.Type,
		Prompt:           q.Prompt,
		Difficulty:       q.Difficulty,
		Topic:            q.Topic,
		EstimatedSeconds: q.EstimatedSeconds,
	}
	switch q.Type {
	case MCQ:
		v.Options = q.MCQ.Options
	case FillBlank:
		v.ContextClues = q.FillBlank.ContextClues
	case Match:
		v.LeftColumn = q.Match.LeftColumn
		v.RightColumn = q.Match.RightColumn
	case OpenEnded, Scenario:
		if q.FreeForm != nil {
			v.ScenarioContext = q.FreeForm.ScenarioContext
		}
	}
	return v
}

// CanonicalAnswer 判卷结果中回传给学员的标准答案文本
func (q *Question) CanonicalAnswer() string {
	switch q.Type {
	case MCQ:
		return q.MCQ.CorrectKey
	case TrueFalse:
		return q.TrueFalse.CorrectKey
	case FillBlank:
		if len(q.FillBlank.Acceptable) > 0 {
			return q.FillBlank.Acceptable[0]
		}
		return ""
	case Match:
		pairs := make([]string, 0, len(q.Match.CorrectMatches))
		for _, left := range q.Match.LeftColumn {
			if right, ok := q.Match.CorrectMatches[left]; ok {
				pairs = append(pairs, left+" -> "+right)
			}
		}
		return strings.Join(pairs, "; ")
	case OpenEnded, Scenario:
		return q.FreeForm.SampleAnswer
	}
	return ""
}

// CheckShape 校验答案形态是否与题型匹配，不匹配时不判卷
func (q *Question) CheckShape(a *Answer) bool {
	switch q.Type {
	case MCQ, TrueFalse:
		return a.Kind == AnswerKey
	case FillBlank:
		return a.Kind == AnswerKey || a.Kind == AnswerText
	case Match:
		return a.Kind == AnswerPairs
	case OpenEnded, Scenario:
		return a.Kind == AnswerText || a.Kind == AnswerKey
	}
	return false
}

// GradeClosed 判闭合题型。开放题型由评分细则服务判卷，调用方不应传进来
func (q *Question) GradeClosed(a *Answer) bool {
	switch q.Type {
	case MCQ:
		return a.Key == q.MCQ.CorrectKey
	case TrueFalse:
		return strings.EqualFold(a.Key, q.TrueFalse.CorrectKey)
	case FillBlank:
		given := strings.ToLower(strings.TrimSpace(a.Text))
		if given == "" {
			given = strings.ToLower(strings.TrimSpace(a.Key))
		}
		for _, accept := range q.FillBlank.Acceptable {
			if given == strings.ToLower(strings.TrimSpace(accept)) {
				return true
			}
		}
		return false
	case Match:
		// 必须是与标准答案完全一致的双射，缺对或错对都算答错
		if len(a.Pairs) != len(q.Match.CorrectMatches) {
			return false
		}
		for left, right := range q.Match.CorrectMatches {
			if a.Pairs[left] != right {
				return false
			}
		}
		return true
	}
	return false
}
