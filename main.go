package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "github.com/Asuura666/game-habits/api/rest"
	"github.com/Asuura666/game-habits/api/sse"
	"github.com/Asuura666/game-habits/audit"
	"github.com/Asuura666/game-habits/cache"
	"github.com/Asuura666/game-habits/config"
	dbadapter "github.com/Asuura666/game-habits/db"
	"github.com/Asuura666/game-habits/game/badge"
	"github.com/Asuura666/game-habits/game/engine"
	"github.com/Asuura666/game-habits/game/evaluator"
	mw "github.com/Asuura666/game-habits/middleware"
	"github.com/Asuura666/game-habits/model"
	"github.com/Asuura666/game-habits/scheduler"
	"github.com/Asuura666/game-habits/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading environment variables directly")
	}

	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}
	if cfg.Security.JWTSecret == "" {
		logger.Fatal("security.jwt_secret is required")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, logger)

	// ---- Cache / PubSub ----
	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	pubsub, err := cache.NewPubSub(cfg.Cache)
	if err != nil {
		logger.Fatal("pubsub", zap.Error(err))
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Rules engine ----
	eng, err := engine.New(cfg, badge.DefaultCatalog(), engine.Deps{
		DB:     db,
		Cache:  c,
		PubSub: pubsub,
		Audit:  auditSvc,
		Logger: logger.Named("engine"),
	})
	if err != nil {
		logger.Fatal("engine", zap.Error(err))
	}
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	if err := eng.SyncCatalog(startCtx); err != nil {
		logger.Fatal("badge catalog sync", zap.Error(err))
	}
	if n, err := eng.RefreshRanking(startCtx); err != nil {
		logger.Warn("ranking warm-up failed", zap.Error(err))
	} else {
		logger.Info("ranking warmed", zap.Int("users", n))
	}
	cancelStart()

	// ---- Difficulty evaluator ----
	var provider evaluator.Provider
	if cfg.Evaluator.Enabled {
		provider = evaluator.NewRetrying(
			evaluator.NewHTTPProvider(cfg.Evaluator.BaseURL, cfg.Evaluator.Model, nil),
			cfg.Evaluator,
			evaluator.WithLogger(logger.Named("evaluator")),
		)
		logger.Info("evaluator enabled", zap.String("base_url", cfg.Evaluator.BaseURL), zap.String("model", cfg.Evaluator.Model))
	}

	// ---- Scheduler ----
	sched, err := scheduler.New(logger, scheduler.WithLocation(eng.Location()))
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	if err := registerJobs(sched, cfg, eng, provider, logger); err != nil {
		logger.Fatal("scheduler jobs", zap.Error(err))
	}
	sched.Start()

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers := &apirest.Handlers{
		Auth:     apirest.NewAuthHandler(db, c, cfg.Security, eng, auditSvc, logger),
		Profile:  apirest.NewProfileHandler(eng),
		Activity: apirest.NewActivityHandler(eng),
		Combat:   apirest.NewCombatHandler(eng),
		Badges:   apirest.NewBadgeHandler(eng),
		Ranking:  apirest.NewRankingHandler(eng),
		Admin:    apirest.NewAdminHandler(eng, sched, provider, logger),
	}
	handlers.Register(r, mw.Auth(cfg.Security, c), mw.AdminOnly(cfg.Server.AdminKey, cfg.Server.AdminIPs))

	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/sse", sseH.ServeSSE)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := sched.Stop(); err != nil {
		logger.Warn("scheduler shutdown", zap.Error(err))
	}
	auditSvc.Stop(shutdownCtx)
}

// loadConfig reads the YAML file when present; otherwise the built-in
// defaults apply, still overridable through HABITQUEST_ variables.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Printf("config file %s not found, using defaults", path)
		return config.Default(), nil
	}
	return config.Load(path)
}

func registerJobs(sched *scheduler.Scheduler, cfg *config.Config, eng *engine.Service, provider evaluator.Provider, logger *zap.Logger) error {
	day, err := scheduler.ParseWeekday(cfg.Scheduler.FreezeReplenishWeekday)
	if err != nil {
		return err
	}
	if err := sched.Weekly("streak_freeze_replenish", day, cfg.Scheduler.FreezeReplenishHour, func(ctx context.Context) {
		n, err := eng.ReplenishFreezes(ctx)
		if err != nil {
			logger.Error("freeze replenish failed", zap.Error(err))
			return
		}
		logger.Info("freezes replenished", zap.Int64("users", n))
	}); err != nil {
		return err
	}

	if err := sched.Every("ranking_refresh", cfg.Scheduler.RankingRefreshInterval, func(ctx context.Context) {
		if _, err := eng.RefreshRanking(ctx); err != nil {
			logger.Warn("ranking refresh failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	if provider == nil {
		return nil
	}
	worker := workers.NewEvaluationWorker(eng, provider,
		cfg.Scheduler.EvaluationBatchSize, cfg.Scheduler.EvaluationConcurrency, logger.Named("evaluation"))
	return sched.Every("task_evaluation", cfg.Scheduler.EvaluationInterval, worker.Run)
}
