package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sidhuiwnl/lordminds-sub000/internal/client"
	"github.com/sidhuiwnl/lordminds-sub000/internal/config"
	"github.com/sidhuiwnl/lordminds-sub000/internal/controller"
	"github.com/sidhuiwnl/lordminds-sub000/internal/repository"
	"github.com/sidhuiwnl/lordminds-sub000/internal/service"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/configwatcher"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/database"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/logger"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/monitoring"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/security"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services

	// 进程退出时刷掉未导出的span
	tracerShutdown func(context.Context) error
}

type repositories struct {
	session    *repository.SessionRepository
	attempt    *repository.AttemptRepository
	integrity  *repository.IntegrityRepository
	orderCache *repository.OrderCacheRepository
}

type services struct {
	storage    *service.StorageService
	session    *service.SessionService
	question   *service.QuestionService
	integrity  *service.IntegrityService
	grading    *service.GradingService
	navigation *service.NavigationService
}

type controllers struct {
	session    *controller.SessionController
	integrity  *controller.IntegrityController
	grading    *controller.GradingController
	navigation *controller.NavigationController
	health     *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	return &repositories{
		session:    repository.NewSessionRepository(db),
		attempt:    repository.NewAttemptRepository(db),
		integrity:  repository.NewIntegrityRepository(db),
		orderCache: repository.NewOrderCacheRepository(rdb, cfg.Proctor.OrderTTL()),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	lms := client.NewLMSClient(&cfg.LMS)
	voice := client.NewVoiceClient(&cfg.Voice)

	s.storage = service.NewStorageService(cfg)
	s.session = service.NewSessionService(repos.session)
	s.question = service.NewQuestionService(lms, repos.orderCache, repos.attempt, cfg.Proctor.OrderTTL())
	s.integrity = service.NewIntegrityService(s.session, repos.integrity, cfg.Proctor)
	s.grading = service.NewGradingService(s.question, repos.attempt, s.session, s.storage, voice, cfg.Proctor.MaxAttempts)
	s.navigation = service.NewNavigationService(s.session, s.question, repos.attempt, s.integrity, lms)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		session:    controller.NewSessionController(s.session, s.question, s.integrity),
		integrity:  controller.NewIntegrityController(s.session, s.integrity),
		grading:    controller.NewGradingController(s.session, s.integrity, s.grading),
		navigation: controller.NewNavigationController(s.session, s.integrity, s.navigation),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

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
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb, cfg)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("proctor-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerShutdown = tp.Shutdown
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	// 配置热更新：协作方地址调整无需重启，客户端持有的是 cfg 字段指针
	go func() {
		if err := configwatcher.Watch("configs/config.yaml", func(next *config.Config) {
			cfg.LMS = next.LMS
			cfg.Voice = next.Voice
			logger.Log.Info("config reloaded",
				zap.String("lms", cfg.LMS.BaseURL),
				zap.String("voice", cfg.Voice.AnalyzeURL),
			)
		}); err != nil {
			logger.Log.Warn("config hot reload disabled", zap.Error(err))
		}
	}()

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

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
