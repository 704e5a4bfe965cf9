package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mytutor_backend/internal/config"
	"mytutor_backend/internal/controller"
	"mytutor_backend/internal/repository"
	"mytutor_backend/internal/service"
	"mytutor_backend/internal/store"
	"mytutor_backend/pkg/database"
	"mytutor_backend/pkg/logger"
	"mytutor_backend/pkg/monitoring"
	"mytutor_backend/pkg/security"
	"mytutor_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	configCallbacks []func(*config.Config)
}

type repositories struct {
	corpus   *repository.CorpusRepository
	training *repository.TrainingRepository
}

type services struct {
	storage       *service.StorageService
	generation    *service.GenerationService
	processor     *service.CourseProcessorService
	training      *service.TrainingService
	knowledgeBase *service.KnowledgeBaseService
}

type controllers struct {
	course        *controller.CourseController
	training      *controller.TrainingController
	knowledgeBase *controller.KnowledgeBaseController
	health        *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ReloadConfig 配置热更新入口，通知所有注册的回调
func (a *App) ReloadConfig(newCfg *config.Config) {
	*a.Config = *newCfg
	for _, cb := range a.configCallbacks {
		cb(newCfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		corpus:   repository.NewCorpusRepository(db),
		training: repository.NewTrainingRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.generation = service.NewGenerationService(cfg.AI)

	var sessionStore store.SessionStore
	if cfg.Processing.SessionStore == "redis" {
		sessionStore = store.NewRedisStore(rdb)
	} else {
		sessionStore = store.NewMemoryStore()
	}

	newDriver := func(sessionID string) service.BrowserDriver {
		return service.NewGatewayDriver(cfg.Browser, sessionID)
	}

	s.processor = service.NewCourseProcessorService(
		sessionStore,
		repos.corpus,
		s.storage,
		s.generation,
		newDriver,
		cfg.Processing,
	)

	s.training = service.NewTrainingService(
		sessionStore,
		repos.corpus,
		repos.training,
		s.generation,
		s.generation,
		cfg.Training,
	)

	s.knowledgeBase = service.NewKnowledgeBaseService(repos.corpus)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		course:        controller.NewCourseController(s.processor),
		training:      controller.NewTrainingController(s.training),
		knowledgeBase: controller.NewKnowledgeBaseController(s.knowledgeBase),
		health:        controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("mytutor-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
