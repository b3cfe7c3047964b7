package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grading_backend/internal/client"
	"grading_backend/internal/config"
	"grading_backend/internal/controller"
	"grading_backend/internal/piston"
	"grading_backend/internal/queue"
	"grading_backend/internal/repository"
	"grading_backend/internal/service"
	"grading_backend/internal/worker"
	"grading_backend/pkg/configwatcher"
	"grading_backend/pkg/database"
	"grading_backend/pkg/logger"
	"grading_backend/pkg/monitoring"
	"grading_backend/pkg/security"
	"grading_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	pistonClient  *piston.Client
	consumer      *queue.Consumer
	cancelWorkers context.CancelFunc
	tracerProv    *sdktrace.TracerProvider
}

type controllers struct {
	submission *controller.SubmissionController
	health     *controller.HealthController
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

	// 判题流水线装配：仓库 → 沙箱客户端 → 入队/消费
	submissionRepo := repository.NewSubmissionRepository(db)
	app.pistonClient = piston.NewClient(cfg.Piston)
	publisher := queue.NewPublisher(rdb, cfg.Queue.Name)
	contentClient := client.NewContentClient(cfg.Content.ServiceURL)
	submissionService := service.NewSubmissionService(submissionRepo, publisher, contentClient)
	grader := worker.NewGrader(submissionRepo, app.pistonClient)
	app.consumer = queue.NewConsumer(rdb, cfg.Queue.Name, cfg.Queue.Workers, grader)

	c := &controllers{
		submission: controller.NewSubmissionController(submissionService),
		health:     controller.NewHealthController(db, rdb),
	}

	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("grading-service", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerProv = tp
	}

	app.registerRoutes(router, c)

	// 配置热更新：沙箱语言版本表、超时上限无需重启即可调整
	go configwatcher.WatchConfig("configs/config.yaml", func(newCfg *config.Config) {
		app.pistonClient.UpdateConfig(newCfg.Piston)
		logger.Log.Info("Piston config reloaded")
	})

	workerCtx, cancel := context.WithCancel(context.Background())
	app.cancelWorkers = cancel
	app.consumer.Start(workerCtx)

	return app
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	windowMinutes := cfg.RateLimit.WindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = 1
	}
	router.Use(security.RateLimiter(maxRequests, time.Duration(windowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 先停 worker：在途任务写完终态后再退出，避免提交卡在 GRADING
	a.cancelWorkers()
	a.consumer.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracerProv != nil {
		if err := a.tracerProv.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	if err := a.Redis.Close(); err != nil {
		logger.Log.Error("Failed to close redis client", zap.Error(err))
	}

	log.Println("Server exiting")
}
