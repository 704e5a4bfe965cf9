package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mytutor_backend/internal/config"
	"mytutor_backend/internal/model"
	"mytutor_backend/internal/store"
	"mytutor_backend/internal/util"
	"mytutor_backend/pkg/logger"
	"mytutor_backend/pkg/monitoring"
	"mytutor_backend/pkg/resilience"

	"go.uber.org/zap"
)

// processorCommand 会话协程接收的指令
type processorCommand int

const (
	cmdContinue processorCommand = iota + 1
	cmdStop
)

// sessionRuntime 每个采集会话对应一个处理协程和一条指令通道
type sessionRuntime struct {
	cancel   context.CancelFunc
	commands chan processorCommand
	done     chan struct{}
}

// DriverFactory 为每个会话创建浏览器驱动
type DriverFactory func(sessionID string) BrowserDriver

// CorpusWriter 语料落库
type CorpusWriter interface {
	Create(rec *model.KnowledgeCorpusRecord) error
}

// CourseProcessorService 课程采集会话编排。每个会话由独立协程驱动，
// 对外通过会话存储暴露状态快照，指令走通道传递
type CourseProcessorService struct {
	store       store.SessionStore
	corpusRepo  CorpusWriter
	storage     *StorageService
	synthesizer CourseSynthesizer
	newDriver   DriverFactory
	cfg         config.ProcessingConfig

	mu       sync.Mutex
	runtimes map[string]*sessionRuntime
}

func NewCourseProcessorService(
	sessionStore store.SessionStore,
	corpusRepo CorpusWriter,
	storage *StorageService,
	synthesizer CourseSynthesizer,
	newDriver DriverFactory,
	cfg config.ProcessingConfig,
) *CourseProcessorService {
	return &CourseProcessorService{
		store:       sessionStore,
		corpusRepo:  corpusRepo,
		storage:     storage,
		synthesizer: synthesizer,
		newDriver:   newDriver,
		cfg:         cfg,
		runtimes:    make(map[string]*sessionRuntime),
	}
}

// StartResult 打开课程后的首个响应
type StartResult struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	PageTitle string `json:"page_title"`
}

// Start 打开课程首页并创建会话，返回 awaiting_login。
// 登录由用户在浏览器里完成，之后调用 ContinueAfterLogin
func (s *CourseProcessorService) Start(ctx context.Context, userID uint, courseURL string) (*StartResult, error) {
	session := &model.ProcessingSession{
		ID:        model.GenerateUUID(),
		UserID:    userID,
		CourseURL: courseURL,
		Status:    model.StatusInitializing,
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	driver := s.newDriver(session.ID)
	title, err := driver.Open(ctx, courseURL)
	if err != nil {
		driver.Close(context.Background())
		return nil, fmt.Errorf("open course page: %w", err)
	}

	session.PageTitle = title
	session.Status = model.StatusAwaitingLogin
	if err := s.store.PutProcessing(ctx, session); err != nil {
		driver.Close(context.Background())
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	rt := &sessionRuntime{
		cancel:   cancel,
		commands: make(chan processorCommand, 1),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.runtimes[session.ID] = rt
	s.mu.Unlock()

	go s.run(runCtx, session, driver, rt)

	logger.Log.Info("processing session started",
		zap.String("session_id", session.ID),
		zap.String("course_url", courseURL))

	return &StartResult{
		SessionID: session.ID,
		Status:    string(model.StatusAwaitingLogin),
		PageTitle: title,
	}, nil
}

// ContinueAfterLogin 用户完成登录后推进会话
func (s *CourseProcessorService) ContinueAfterLogin(ctx context.Context, sessionID string) error {
	session, err := s.store.GetProcessing(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != model.StatusAwaitingLogin {
		return util.ErrNotAwaitingLogin
	}

	s.mu.Lock()
	rt, ok := s.runtimes[sessionID]
	s.mu.Unlock()
	if !ok {
		return util.ErrSessionNotFound
	}

	select {
	case rt.commands <- cmdContinue:
		return nil
	default:
		return util.ErrOperationInFlight
	}
}

// Stop 停止会话。从任意状态调用都是幂等的，处理协程会在步骤间
// 和重试休眠中观察到取消
func (s *CourseProcessorService) Stop(ctx context.Context, sessionID string) error {
	if _, err := s.store.GetProcessing(ctx, sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	rt, ok := s.runtimes[sessionID]
	s.mu.Unlock()
	if ok {
		rt.cancel()
		return nil
	}

	// 协程已退出的终态会话，停止是空操作
	return nil
}

// GetStatus 会话状态快照，供轮询
func (s *CourseProcessorService) GetStatus(ctx context.Context, sessionID string) (*model.ProcessingSession, error) {
	return s.store.GetProcessing(ctx, sessionID)
}

func (s *CourseProcessorService) run(ctx context.Context, session *model.ProcessingSession, driver BrowserDriver, rt *sessionRuntime) {
	defer close(rt.done)
	defer func() {
		s.mu.Lock()
		delete(s.runtimes, session.ID)
		s.mu.Unlock()
		driver.Close(context.Background())
	}()

	// 等待登录完成或停止
	select {
	case <-ctx.Done():
		s.finish(session, model.StatusStopped, "")
		return
	case cmd := <-rt.commands:
		if cmd == cmdStop {
			s.finish(session, model.StatusStopped, "")
			return
		}
	}

	if err := s.process(ctx, session, driver); err != nil {
		if errors.Is(err, context.Canceled) {
			s.finish(session, model.StatusStopped, "")
			return
		}
		logger.Log.Error("processing session failed",
			zap.String("session_id", session.ID),
			zap.Error(err))
		s.finish(session, model.StatusError, err.Error())
	}
}

// finish 写入终态并打点
func (s *CourseProcessorService) finish(session *model.ProcessingSession, status model.ProcessingStatus, detail string) {
	session.Status = status
	session.ErrorDetail = detail
	session.UpdatedAt = time.Now()
	if err := s.store.PutProcessing(context.Background(), session); err != nil {
		logger.Log.Error("persist terminal session state", zap.String("session_id", session.ID), zap.Error(err))
	}
	monitoring.ProcessingSessionsTotal.WithLabelValues(string(status)).Inc()
}

func (s *CourseProcessorService) save(ctx context.Context, session *model.ProcessingSession) error {
	session.UpdatedAt = time.Now()
	return s.store.PutProcessing(ctx, session)
}

func (s *CourseProcessorService) process(ctx context.Context, session *model.ProcessingSession, driver BrowserDriver) error {
	session.Status = model.StatusDiscoveringModules
	if err := s.save(ctx, session); err != nil {
		return err
	}

	links, err := driver.DiscoverModules(ctx)
	if err != nil {
		return fmt.Errorf("discover modules: %w", err)
	}

	// 没有找到模块列表时把当前页面当成唯一模块处理
	if len(links) == 0 {
		title, err := driver.Title(ctx)
		if err == nil && title != "" {
			links = []ModuleLink{{Title: title, URL: session.CourseURL}}
		}
	}

	session.TotalModules = len(links)
	session.Modules = make([]model.CourseModule, 0, len(links))

	if len(links) == 0 {
		// 空课程：直接进入分析，生成零模块总结
		session.Status = model.StatusAnalyzing
		if err := s.save(ctx, session); err != nil {
			return err
		}
		session.Summary = &model.CourseSummary{CourseTitle: session.PageTitle}
		s.finish(session, model.StatusCompleted, "")
		return nil
	}

	session.Status = model.StatusProcessingModules
	if err := s.save(ctx, session); err != nil {
		return err
	}

	consecutiveFailures := 0
	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return err
		}

		session.CurrentModule = i + 1
		session.Progress = i * 100 / len(links)
		if err := s.save(ctx, session); err != nil {
			return err
		}

		mod := s.extractModule(ctx, session.ID, driver, link, i)
		session.Modules = append(session.Modules, mod)

		if mod.Extracted {
			consecutiveFailures = 0
		} else {
			if errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			consecutiveFailures++
			logger.Log.Warn("module extraction failed",
				zap.String("session_id", session.ID),
				zap.String("module", link.Title),
				zap.Int("consecutive_failures", consecutiveFailures))
			if consecutiveFailures >= s.cfg.MaxConsecutiveFailures {
				return fmt.Errorf("aborted after %d consecutive module failures: %s", consecutiveFailures, mod.ExtractError)
			}
		}
	}

	session.Progress = 100
	session.Status = model.StatusAnalyzing
	if err := s.save(ctx, session); err != nil {
		return err
	}

	return s.analyze(ctx, session)
}

// extractModule 提取单个模块。失败只记录在模块上，由调用方决定是否中止
func (s *CourseProcessorService) extractModule(ctx context.Context, sessionID string, driver BrowserDriver, link ModuleLink, order int) model.CourseModule {
	mod := model.CourseModule{
		Title: link.Title,
		URL:   link.URL,
		Order: order,
	}

	start := time.Now()
	defer func() {
		monitoring.ModuleExtractionDuration.Observe(time.Since(start).Seconds())
	}()

	if err := driver.Navigate(ctx, link.URL); err != nil {
		mod.ExtractError = err.Error()
		return mod
	}

	content, err := driver.ExtractContent(ctx)
	if err != nil {
		mod.ExtractError = err.Error()
		return mod
	}

	text := content.Text
	if len(text) > s.cfg.ModuleTextLimit {
		text = text[:s.cfg.ModuleTextLimit]
	}
	mod.Text = text
	mod.Videos = content.Videos
	mod.Audios = content.Audios
	mod.Files = content.Files
	mod.Extracted = true

	if len(content.Screenshot) > 0 && s.storage != nil {
		key, err := s.storage.UploadScreenshot(ctx, sessionID, order, content.Screenshot)
		if err != nil {
			// 截图归档失败不影响模块本身
			logger.Log.Warn("screenshot archive failed", zap.String("session_id", sessionID), zap.Error(err))
		} else {
			mod.ScreenshotKey = key
		}
	}

	return mod
}

func (s *CourseProcessorService) analyze(ctx context.Context, session *model.ProcessingSession) error {
	corpus := BuildCorpus(session.PageTitle, session.CourseURL, session.Modules, s.cfg.ModuleTextLimit)
	corpus.ID = model.GenerateUUID()

	if !corpus.Empty() && s.synthesizer != nil {
		if err := s.synthesizer.Synthesize(ctx, corpus); err != nil {
			var exhausted *resilience.ExhaustedError
			if errors.As(err, &exhausted) || errors.Is(err, context.Canceled) {
				return err
			}
			// 其他分析失败不致命，语料退回聚合结果
			logger.Log.Warn("course synthesis failed", zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	completed, failed := 0, 0
	for _, m := range session.Modules {
		if m.Extracted {
			completed++
		} else {
			failed++
		}
	}

	summary := &model.CourseSummary{
		CourseTitle:      session.PageTitle,
		ModulesCompleted: completed,
		ModulesFailed:    failed,
		TotalVideos:      corpus.TotalVideos,
		TotalAudios:      corpus.TotalAudios,
		TotalFiles:       corpus.TotalFiles,
		Topics:           corpus.Topics,
	}

	if !corpus.Empty() && s.corpusRepo != nil {
		rec, err := model.NewCorpusRecord(corpus, session.UserID)
		if err != nil {
			return err
		}
		if err := s.corpusRepo.Create(rec); err != nil {
			return fmt.Errorf("persist knowledge corpus: %w", err)
		}
		summary.KnowledgeBaseID = corpus.ID
	}

	session.Summary = summary
	s.finish(session, model.StatusCompleted, "")
	return nil
}

// Wait 等待会话协程退出，测试用
func (s *CourseProcessorService) Wait(sessionID string, timeout time.Duration) bool {
	s.mu.Lock()
	rt, ok := s.runtimes[sessionID]
	s.mu.Unlock()
	if !ok {
		return true
	}
	select {
	case <-rt.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
