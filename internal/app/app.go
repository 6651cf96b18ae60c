package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/geolens/engine/internal/config"
	"github.com/geolens/engine/internal/database"
	"github.com/geolens/engine/internal/middleware"
	"github.com/geolens/engine/internal/modules/promptrun"
	"github.com/geolens/engine/internal/modules/provider"
	"github.com/geolens/engine/internal/modules/signal"
	pkgcron "github.com/geolens/engine/internal/pkg/cron"
	pkgredis "github.com/geolens/engine/internal/pkg/redis"
	"github.com/geolens/engine/internal/pkg/taskqueue"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	db       *gorm.DB
	rc       *pkgredis.Client // nil without redis
	tasks    *taskqueue.Service
	registry *provider.Registry
	executor *promptrun.Executor
	status   *promptrun.StatusStore
	orch     *promptrun.Orchestrator
	logger   *zap.Logger
	cancel   context.CancelFunc
	sched    *pkgcron.Scheduler
}

// New initializes the application: config → DB → Redis → providers → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := applyRuntimeSettings(cfg, logger); err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	a := &App{cfg: cfg, db: db, logger: logger}

	if rc, err := pkgredis.Connect(cfg.RedisURL); err != nil {
		logger.Warn("redis unavailable, task records and trigger rate limit disabled", zap.Error(err))
	} else {
		a.rc = rc
		a.tasks = taskqueue.NewService(rc)
	}

	a.registry = provider.NewRegistryFromConfig(cfg.Providers, cfg.Batch.Concurrency, provider.WithLogger(logger))

	var classifier signal.Classifier
	if cls, err := signal.NewLLMClassifier(cfg.Classifier); err != nil {
		logger.Warn("classifier disabled, only the substring heuristic runs", zap.Error(err))
	} else {
		classifier = cls
	}
	extractor := signal.NewExtractor(classifier, signal.WithLogger(logger))

	a.status = promptrun.NewStatusStore(db, cfg.Batch.StaleAfter())
	a.executor = promptrun.NewExecutor(db, a.registry, extractor, promptrun.WithExecutorLogger(logger))
	opts := []promptrun.OrchestratorOption{
		promptrun.WithLogger(logger),
		promptrun.WithConcurrency(cfg.Batch.Concurrency),
		promptrun.WithMaxDuration(cfg.Batch.MaxDuration),
	}
	if a.tasks != nil {
		opts = append(opts, promptrun.WithTasks(a.tasks))
	}
	a.orch = promptrun.NewOrchestrator(db, a.executor, a.registry, a.status, opts...)

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))
	a.router = router

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.sched = pkgcron.New(logger)
	a.registerCronJobs()
	a.sched.Start(ctx)

	a.registerRoutes()
	return a, nil
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		c.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		c.AllowOriginFunc = func(origin string) bool { return true }
	}
	return c
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops the scheduler, interrupts running batches and waits until
// they are finalized or ctx expires, then releases the redis and database pools.
func (a *App) Shutdown(ctx context.Context) error {
	a.cancel()
	a.orch.Close()

	done := make(chan struct{})
	go func() {
		a.orch.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("batches still running: %w", ctx.Err())
	}

	if a.rc != nil {
		_ = a.rc.Close()
	}
	if sqlDB, dbErr := a.db.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}
	return err
}

var processStart = time.Now()
