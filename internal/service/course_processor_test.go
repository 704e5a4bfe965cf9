package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"mytutor_backend/internal/config"
	"mytutor_backend/internal/model"
	"mytutor_backend/internal/store"
	"mytutor_backend/internal/util"
	"mytutor_backend/pkg/logger"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// fakeDriver 可编排的浏览器驱动。按模块标题决定提取是否失败
type fakeDriver struct {
	mu        sync.Mutex
	pageTitle string
	links     []ModuleLink
	failOn    map[string]bool
	current   string
	closed    bool
	extracts  int
}

func (d *fakeDriver) Open(ctx context.Context, courseURL string) (string, error) {
	return d.pageTitle, nil
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = url
	return nil
}

func (d *fakeDriver) Title(ctx context.Context) (string, error) {
	return d.pageTitle, nil
}

func (d *fakeDriver) DiscoverModules(ctx context.Context) ([]ModuleLink, error) {
	return d.links, nil
}

func (d *fakeDriver) ExtractContent(ctx context.Context) (*PageContent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.extracts++
	if d.failOn[d.current] {
		return nil, errors.New("extraction timed out")
	}
	return &PageContent{
		Text:   "Lesson content for " + d.current,
		Videos: []model.MediaRef{{Kind: "video", URL: d.current + "/v1"}},
	}, nil
}

func (d *fakeDriver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type fakeCorpusWriter struct {
	mu      sync.Mutex
	created []*model.KnowledgeCorpusRecord
}

func (w *fakeCorpusWriter) Create(rec *model.KnowledgeCorpusRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.created = append(w.created, rec)
	return nil
}

func (w *fakeCorpusWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.created)
}

type fakeSynthesizer struct {
	err error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, corpus *model.KnowledgeCorpus) error {
	if f.err != nil {
		return f.err
	}
	corpus.Topics = append(corpus.Topics, "synthesized topic")
	return nil
}

func newTestProcessor(driver BrowserDriver, writer *fakeCorpusWriter) *CourseProcessorService {
	cfg := config.ProcessingConfig{
		MaxConsecutiveFailures: 3,
		ModuleTextLimit:        10000,
		SessionStore:           "memory",
	}
	return NewCourseProcessorService(
		store.NewMemoryStore(),
		writer,
		nil,
		&fakeSynthesizer{},
		func(sessionID string) BrowserDriver { return driver },
		cfg,
	)
}

func startAndContinue(t *testing.T, svc *CourseProcessorService) string {
	t.Helper()
	result, err := svc.Start(context.Background(), 1, "https://lms.example.com/course/42")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != string(model.StatusAwaitingLogin) {
		t.Fatalf("expected awaiting_login after start, got %s", result.Status)
	}
	if err := svc.ContinueAfterLogin(context.Background(), result.SessionID); err != nil {
		t.Fatal(err)
	}
	return result.SessionID
}

func waitDone(t *testing.T, svc *CourseProcessorService, sessionID string) *model.ProcessingSession {
	t.Helper()
	if !svc.Wait(sessionID, 5*time.Second) {
		t.Fatal("session goroutine did not finish in time")
	}
	session, err := svc.GetStatus(context.Background(), sessionID)
	if err != nil {
		t.Fatal(err)
	}
	return session
}

func TestProcessCourseToCompletion(t *testing.T) {
	driver := &fakeDriver{
		pageTitle: "Intro to Go",
		links: []ModuleLink{
			{Title: "Basics", URL: "https://lms.example.com/m/1"},
			{Title: "Concurrency", URL: "https://lms.example.com/m/2"},
			{Title: "Testing", URL: "https://lms.example.com/m/3"},
		},
	}
	writer := &fakeCorpusWriter{}
	svc := newTestProcessor(driver, writer)

	sessionID := startAndContinue(t, svc)
	session := waitDone(t, svc, sessionID)

	if session.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", session.Status, session.ErrorDetail)
	}
	if session.TotalModules != 3 || len(session.Modules) != 3 {
		t.Errorf("expected 3 modules, got total=%d extracted=%d", session.TotalModules, len(session.Modules))
	}
	if session.CurrentModule > session.TotalModules {
		t.Errorf("current module %d exceeds total %d", session.CurrentModule, session.TotalModules)
	}
	if session.Progress != 100 {
		t.Errorf("expected progress 100, got %d", session.Progress)
	}
	if session.Summary == nil {
		t.Fatal("completed session must carry a summary")
	}
	if session.Summary.ModulesCompleted != 3 || session.Summary.ModulesFailed != 0 {
		t.Errorf("unexpected summary %+v", session.Summary)
	}
	if session.Summary.TotalVideos != 3 {
		t.Errorf("expected 3 videos counted, got %d", session.Summary.TotalVideos)
	}
	if session.Summary.KnowledgeBaseID == "" {
		t.Error("summary should reference the persisted knowledge base")
	}
	if writer.count() != 1 {
		t.Errorf("expected one corpus record, got %d", writer.count())
	}
	if !driver.closed {
		t.Error("driver should be closed when the session goroutine exits")
	}
}

func TestProcessAbortsAfterConsecutiveFailures(t *testing.T) {
	driver := &fakeDriver{
		pageTitle: "Broken Course",
		links: []ModuleLink{
			{Title: "One", URL: "https://lms.example.com/m/1"},
			{Title: "Two", URL: "https://lms.example.com/m/2"},
			{Title: "Three", URL: "https://lms.example.com/m/3"},
			{Title: "Four", URL: "https://lms.example.com/m/4"},
		},
		failOn: map[string]bool{
			"https://lms.example.com/m/1": true,
			"https://lms.example.com/m/2": true,
			"https://lms.example.com/m/3": true,
		},
	}
	writer := &fakeCorpusWriter{}
	svc := newTestProcessor(driver, writer)

	sessionID := startAndContinue(t, svc)
	session := waitDone(t, svc, sessionID)

	if session.Status != model.StatusError {
		t.Fatalf("expected error status, got %s", session.Status)
	}
	if session.ErrorDetail == "" {
		t.Error("error sessions must carry detail")
	}
	// 第三次连续失败即中止，第四个模块不再访问
	if driver.extracts != 3 {
		t.Errorf("expected 3 extraction attempts, got %d", driver.extracts)
	}
	if writer.count() != 0 {
		t.Errorf("failed session must not persist a corpus, got %d", writer.count())
	}
}

func TestFailureStreakResetsOnSuccess(t *testing.T) {
	driver := &fakeDriver{
		pageTitle: "Flaky Course",
		links: []ModuleLink{
			{Title: "One", URL: "https://lms.example.com/m/1"},
			{Title: "Two", URL: "https://lms.example.com/m/2"},
			{Title: "Three", URL: "https://lms.example.com/m/3"},
			{Title: "Four", URL: "https://lms.example.com/m/4"},
		},
		failOn: map[string]bool{
			"https://lms.example.com/m/1": true,
			"https://lms.example.com/m/2": true,
			"https://lms.example.com/m/4": true,
		},
	}
	writer := &fakeCorpusWriter{}
	svc := newTestProcessor(driver, writer)

	sessionID := startAndContinue(t, svc)
	session := waitDone(t, svc, sessionID)

	if session.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", session.Status, session.ErrorDetail)
	}
	if session.Summary.ModulesCompleted != 1 || session.Summary.ModulesFailed != 3 {
		t.Errorf("unexpected summary %+v", session.Summary)
	}
}

func TestEmptyDiscoveryFallsBackToCurrentPage(t *testing.T) {
	driver := &fakeDriver{pageTitle: "Single Page Course"}
	writer := &fakeCorpusWriter{}
	svc := newTestProcessor(driver, writer)

	sessionID := startAndContinue(t, svc)
	session := waitDone(t, svc, sessionID)

	if session.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", session.Status, session.ErrorDetail)
	}
	if session.TotalModules != 1 {
		t.Fatalf("fallback should yield one module, got %d", session.TotalModules)
	}
	if session.Modules[0].Title != "Single Page Course" {
		t.Errorf("fallback module should use the page title, got %q", session.Modules[0].Title)
	}
}

func TestStopBeforeLoginIsIdempotent(t *testing.T) {
	driver := &fakeDriver{pageTitle: "Any Course"}
	svc := newTestProcessor(driver, &fakeCorpusWriter{})

	result, err := svc.Start(context.Background(), 1, "https://lms.example.com/course/1")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Stop(context.Background(), result.SessionID); err != nil {
		t.Fatal(err)
	}
	session := waitDone(t, svc, result.SessionID)
	if session.Status != model.StatusStopped {
		t.Fatalf("expected stopped, got %s", session.Status)
	}

	// 终态后再次停止仍然成功
	if err := svc.Stop(context.Background(), result.SessionID); err != nil {
		t.Fatalf("stop must be idempotent, got %v", err)
	}

	// 已停止的会话不能再推进
	err = svc.ContinueAfterLogin(context.Background(), result.SessionID)
	if !errors.Is(err, util.ErrNotAwaitingLogin) {
		t.Fatalf("expected ErrNotAwaitingLogin, got %v", err)
	}
}

func TestStopUnknownSession(t *testing.T) {
	svc := newTestProcessor(&fakeDriver{}, &fakeCorpusWriter{})

	err := svc.Stop(context.Background(), "missing")
	if !errors.Is(err, util.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestContinueAfterProcessingBegan(t *testing.T) {
	blocker := make(chan struct{})
	driver := &blockingDriver{fakeDriver: fakeDriver{pageTitle: "Slow Course"}, release: blocker}
	svc := newTestProcessor(driver, &fakeCorpusWriter{})

	result, err := svc.Start(context.Background(), 1, "https://lms.example.com/course/1")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.ContinueAfterLogin(context.Background(), result.SessionID); err != nil {
		t.Fatal(err)
	}

	// 等协程消费指令并进入模块发现
	deadline := time.Now().Add(5 * time.Second)
	for {
		session, err := svc.GetStatus(context.Background(), result.SessionID)
		if err != nil {
			t.Fatal(err)
		}
		if session.Status == model.StatusDiscoveringModules {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never reached discovering_modules, stuck at %s", session.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	err = svc.ContinueAfterLogin(context.Background(), result.SessionID)
	if !errors.Is(err, util.ErrNotAwaitingLogin) {
		t.Fatalf("expected ErrNotAwaitingLogin once processing began, got %v", err)
	}

	close(blocker)
	session := waitDone(t, svc, result.SessionID)
	if session.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %s", session.Status)
	}
}

// blockingDriver 在模块发现时等待放行信号
type blockingDriver struct {
	fakeDriver
	release chan struct{}
}

func (d *blockingDriver) DiscoverModules(ctx context.Context) ([]ModuleLink, error) {
	select {
	case <-d.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return d.fakeDriver.DiscoverModules(ctx)
}

func TestStopDuringProcessing(t *testing.T) {
	blocker := make(chan struct{})
	driver := &blockingDriver{fakeDriver: fakeDriver{
		pageTitle: "Long Course",
		links:     []ModuleLink{{Title: "Only", URL: "https://lms.example.com/m/1"}},
	}, release: blocker}
	svc := newTestProcessor(driver, &fakeCorpusWriter{})

	result, err := svc.Start(context.Background(), 1, "https://lms.example.com/course/1")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.ContinueAfterLogin(context.Background(), result.SessionID); err != nil {
		t.Fatal(err)
	}

	// 协程此时阻塞在模块发现，停止应当通过取消解除阻塞
	if err := svc.Stop(context.Background(), result.SessionID); err != nil {
		t.Fatal(err)
	}

	session := waitDone(t, svc, result.SessionID)
	if session.Status != model.StatusStopped {
		t.Fatalf("expected stopped, got %s", session.Status)
	}
}
