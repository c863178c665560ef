package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"elevate_backend/internal/config"
	"elevate_backend/internal/controller"
	"elevate_backend/internal/repository"
	"elevate_backend/internal/service"
	"elevate_backend/pkg/database"
	"elevate_backend/pkg/logger"
	"elevate_backend/pkg/monitoring"
	"elevate_backend/pkg/security"
	"elevate_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
	tracer   *sdktrace.TracerProvider
}

type repositories struct {
	contest     *repository.ContestRepository
	participant *repository.ParticipantRepository
	question    *repository.QuestionRepository
	attempt     *repository.AttemptRepository
	response    *repository.ResponseRepository
}

type services struct {
	storage     *service.StorageService
	judge       *service.JudgeService
	scores      *service.ScoreService
	grading     *service.GradingService
	queue       *service.GradingQueue
	session     *service.SessionService
	question    *service.QuestionService
	contest     *service.ContestService
	leaderboard *service.LeaderboardService
	sweeper     *service.SweeperService
}

type controllers struct {
	contest  *controller.ContestController
	session  *controller.SessionController
	admin    *controller.AdminController
	question *controller.QuestionController
	health   *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		contest:     repository.NewContestRepository(db),
		participant: repository.NewParticipantRepository(db),
		question:    repository.NewQuestionRepository(db),
		attempt:     repository.NewAttemptRepository(db),
		response:    repository.NewResponseRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*services, error) {
	s := &services{}

	storage, err := service.NewStorageService(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	s.judge = service.NewJudgeService(&cfg.Judge0)
	s.scores = service.NewScoreService(db, repos.attempt, repos.response, repos.question)
	s.grading = service.NewGradingService(db, repos.attempt, repos.response, repos.question, s.judge, s.scores)
	s.queue = service.NewGradingQueue(&cfg.Grading, s.grading.ExecuteCodingJob)
	s.grading.AttachQueue(s.queue)

	s.session = service.NewSessionService(cfg, repos.contest, repos.participant, repos.question, repos.attempt, repos.response, s.grading, s.storage, s.judge)
	s.question = service.NewQuestionService(repos.question, repos.contest)
	s.contest = service.NewContestService(repos.contest, repos.attempt)
	s.leaderboard = service.NewLeaderboardService(rdb)
	s.sweeper = service.NewSweeperService(&cfg.Sweeper, repos.contest, repos.participant, repos.attempt, repos.response, s.grading, s.leaderboard)

	return s, nil
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		contest:  controller.NewContestController(s.contest, s.session, s.leaderboard),
		session:  controller.NewSessionController(s.session),
		admin:    controller.NewAdminController(s.contest, s.session, s.grading, repos.attempt),
		question: controller.NewQuestionController(s.question),
		health:   controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100000
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

func (a *App) startBackgroundTasks(s *services) {
	s.queue.Start()
	s.sweeper.Start()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg.Server.Mode)
	defer logger.Log.Sync()

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

	repos := app.initRepositories(db)
	services, err := app.initServices(repos, cfg, db, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
		log.Fatalf("Failed to initialize services: %v", err)
	}
	app.services = services
	controllers := app.initControllers(services, repos, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("contest-platform", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/snapshots", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

	return app
}

// ApplyConfig hot-applies the tunables that are safe to change while
// running. Connection settings still require a restart.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Config.Session = cfg.Session
	a.Config.Sweeper.LeaderboardSize = cfg.Sweeper.LeaderboardSize
	a.Config.Sweeper.LeaderboardTTL = cfg.Sweeper.LeaderboardTTL
	a.Config.Judge0.PollInterval = cfg.Judge0.PollInterval
	a.Config.Judge0.MaxWait = cfg.Judge0.MaxWait
	logger.Log.Info("config reloaded")
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

	// 后台任务先停，避免关库后还在评分
	if a.services != nil {
		a.services.sweeper.Stop()
		a.services.queue.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	// 最后刷新未导出的 span
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
