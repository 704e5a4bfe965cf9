package model

import (
	"encoding/json"
	"errors"
)

// AnswerKind 提交答案的形态
type AnswerKind int

const (
	AnswerKey AnswerKind = iota + 1
	AnswerText
	AnswerPairs
)

// Answer 学员提交的答案。JSON 中可以是一个字符串（选项键或自由文本），
// 也可以是一个对象（连线题的左右配对）
type Answer struct {
	Kind  AnswerKind
	Key   string
	Text  string
	Pairs map[string]string
}

var errAnswerShape = errors.New("answer must be a string or an object of string pairs")

func (a *Answer) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		// 字符串形态同时充当选项键和自由文本，由题型决定用哪一个
		a.Kind = AnswerKey
		a.Key = s
		a.Text = s
		return nil
	}

	var pairs map[string]string
	if err := json.Unmarshal(data, &pairs); err == nil {
		a.Kind = AnswerPairs
		a.Pairs = pairs
		return nil
	}

	return errAnswerShape
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerPairs:
		return json.Marshal(a.Pairs)
	case AnswerText:
		return json.Marshal(a.Text)
	default:
		return json.Marshal(a.Key)
	}
}
