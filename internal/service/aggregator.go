package service

import (
	"strings"

	"mytutor_backend/internal/model"
)

// BuildCorpus 把采集到的模块列表聚合成知识语料。纯函数，重复调用
// 对同一输入产生同样的结果
func BuildCorpus(name, sourceURL string, modules []model.CourseModule, textLimit int) *model.KnowledgeCorpus {
	if textLimit <= 0 {
		textLimit = 10000
	}

	corpus := &model.KnowledgeCorpus{
		Name:      name,
		SourceURL: sourceURL,
	}

	var sb strings.Builder
	totalWords := 0
	seenTopics := make(map[string]bool)
	seenObjectives := make(map[string]bool)

	for _, m := range modules {
		summary := model.ModuleSummary{
			Title:      m.Title,
			URL:        m.URL,
			VideoCount: len(m.Videos),
			AudioCount: len(m.Audios),
			FileCount:  len(m.Files),
			Failed:     !m.Extracted,
		}

		corpus.TotalVideos += len(m.Videos)
		corpus.TotalAudios += len(m.Audios)
		corpus.TotalFiles += len(m.Files)

		if m.Extracted {
			text := m.Text
			if len(text) > textLimit {
				text = text[:textLimit]
				summary.Truncated = true
			}
			words := len(strings.Fields(text))
			summary.WordCount = words
			totalWords += words

			if text != "" {
				sb.WriteString("## ")
				sb.WriteString(m.Title)
				sb.WriteString("\n\n")
				sb.WriteString(text)
				sb.WriteString("\n\n")
			}
		}

		topic := strings.TrimSpace(m.Title)
		if topic != "" && !seenTopics[topic] {
			seenTopics[topic] = true
			corpus.Topics = append(corpus.Topics, topic)
		}

		objective := objectiveFromTitle(topic)
		if objective != "" && !seenObjectives[objective] {
			seenObjectives[objective] = true
			corpus.LearningObjectives = append(corpus.LearningObjectives, objective)
		}

		corpus.ModuleSummaries = append(corpus.ModuleSummaries, summary)
	}

	corpus.AggregatedText = strings.TrimSpace(sb.String())
	corpus.EstimatedStudyMinutes = estimateStudyMinutes(totalWords)
	return corpus
}

// objectiveFromTitle 模块标题转成学习目标短语
func objectiveFromTitle(title string) string {
	if title == "" {
		return ""
	}
	return "Understand " + title
}

// estimateStudyMinutes 按 200 词/分钟估算学习时长，夹在 5 到 30 分钟之间
func estimateStudyMinutes(words int) int {
	if words == 0 {
		return 0
	}
	minutes := words / 200
	if minutes < 5 {
		minutes = 5
	}
	if minutes > 30 {
		minutes = 30
	}
	return minutes
}
