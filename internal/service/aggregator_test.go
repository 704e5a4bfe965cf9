package service

import (
	"strings"
	"testing"

	"mytutor_backend/internal/model"
)

func TestBuildCorpusAggregates(t *testing.T) {
	modules := []model.CourseModule{
		{
			Title:     "Concurrency Basics",
			URL:       "https://c.example.com/m1",
			Text:      "Goroutines are lightweight threads managed by the runtime.",
			Videos:    []model.MediaRef{{Kind: "video", URL: "v1"}},
			Files:     []model.MediaRef{{Kind: "file", URL: "f1"}},
			Extracted: true,
		},
		{
			Title:     "Channels",
			URL:       "https://c.example.com/m2",
			Text:      "Channels connect goroutines.",
			Audios:    []model.MediaRef{{Kind: "audio", URL: "a1"}},
			Extracted: true,
		},
	}

	corpus := BuildCorpus("Go Course", "https://c.example.com", modules, 10000)

	if corpus.Empty() {
		t.Fatal("corpus with extracted text should not be empty")
	}
	if !strings.Contains(corpus.AggregatedText, "Goroutines are lightweight") {
		t.Error("module text missing from aggregate")
	}
	if !strings.Contains(corpus.AggregatedText, "## Channels") {
		t.Error("module heading missing from aggregate")
	}
	if corpus.TotalVideos != 1 || corpus.TotalAudios != 1 || corpus.TotalFiles != 1 {
		t.Errorf("media counts wrong: %d/%d/%d", corpus.TotalVideos, corpus.TotalAudios, corpus.TotalFiles)
	}
	if len(corpus.ModuleSummaries) != 2 {
		t.Fatalf("expected 2 module summaries, got %d", len(corpus.ModuleSummaries))
	}
	if corpus.EstimatedStudyMinutes < 5 {
		t.Errorf("study minutes should clamp at 5, got %d", corpus.EstimatedStudyMinutes)
	}
}

func TestBuildCorpusDeduplicatesTopics(t *testing.T) {
	modules := []model.CourseModule{
		{Title: "Intro", Text: "a", Extracted: true},
		{Title: "Intro", Text: "b", Extracted: true},
		{Title: "Advanced", Text: "c", Extracted: true},
	}

	corpus := BuildCorpus("Course", "", modules, 10000)

	if len(corpus.Topics) != 2 {
		t.Errorf("expected deduplicated topics [Intro Advanced], got %v", corpus.Topics)
	}
	if len(corpus.LearningObjectives) != 2 {
		t.Errorf("expected deduplicated objectives, got %v", corpus.LearningObjectives)
	}
}

func TestBuildCorpusTruncatesLongModules(t *testing.T) {
	long := strings.Repeat("word ", 500)
	modules := []model.CourseModule{
		{Title: "Long", Text: long, Extracted: true},
	}

	corpus := BuildCorpus("Course", "", modules, 100)

	if !corpus.ModuleSummaries[0].Truncated {
		t.Error("module over the limit should be marked truncated")
	}
	if len(corpus.AggregatedText) > 200 {
		t.Errorf("aggregate text not truncated, len=%d", len(corpus.AggregatedText))
	}
}

func TestBuildCorpusSkipsFailedModules(t *testing.T) {
	modules := []model.CourseModule{
		{Title: "Good", Text: "content here", Extracted: true},
		{Title: "Bad", ExtractError: "timeout", Extracted: false},
	}

	corpus := BuildCorpus("Course", "", modules, 10000)

	if strings.Contains(corpus.AggregatedText, "Bad") && strings.Contains(corpus.AggregatedText, "timeout") {
		t.Error("failed module text should not appear in aggregate")
	}
	if !corpus.ModuleSummaries[1].Failed {
		t.Error("failed module should be marked in its summary")
	}
}

func TestBuildCorpusEmptyInput(t *testing.T) {
	corpus := BuildCorpus("Empty", "", nil, 10000)

	if !corpus.Empty() {
		t.Error("no modules should produce an empty corpus")
	}
	if corpus.EstimatedStudyMinutes != 0 {
		t.Errorf("empty corpus study minutes should be 0, got %d", corpus.EstimatedStudyMinutes)
	}
}

func TestBuildCorpusDeterministic(t *testing.T) {
	modules := []model.CourseModule{
		{Title: "A", Text: "alpha", Extracted: true},
		{Title: "B", Text: "beta", Extracted: true},
	}

	first := BuildCorpus("Course", "u", modules, 10000)
	second := BuildCorpus("Course", "u", modules, 10000)

	if first.AggregatedText != second.AggregatedText {
		t.Error("aggregation is not deterministic")
	}
	if strings.Join(first.Topics, ",") != strings.Join(second.Topics, ",") {
		t.Error("topic order is not deterministic")
	}
}
