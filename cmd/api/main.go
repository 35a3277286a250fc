package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"typing-duel/internal/bus"
	"typing-duel/internal/config"
	"typing-duel/internal/database"
	"typing-duel/internal/handlers"
	appmetrics "typing-duel/internal/metrics"
	"typing-duel/internal/middleware/ratelimit"
	"typing-duel/internal/results"
	"typing-duel/internal/services"
	"typing-duel/internal/session"
	"typing-duel/internal/store"
	"typing-duel/internal/words"
)

func main() {
	// Load configuration
	cfg := config.Load()
	setupLogging(cfg)

	// Match store and event bus
	var (
		st        store.Store
		eventBus  bus.Bus
		closeFunc = func() {}
	)
	switch strings.ToLower(cfg.StoreBackend) {
	case "memory":
		log.Warn().Msg("using in-memory store; matches are lost on restart and not shared between processes")
		st = store.NewMemoryStore(cfg.MatchTTL)
		eventBus = bus.NewMemoryBus()
	default:
		redisClient, err := database.NewRedisConnection(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		closeFunc = func() { _ = redisClient.Close() }
		st = store.NewRedisStore(redisClient, cfg.MatchTTL)
		eventBus = bus.NewRedisBus(redisClient)
	}
	defer closeFunc()

	// Optional results archive
	var (
		recorder     results.Recorder = results.Nop{}
		resultsCheck handlers.Pinger
	)
	if cfg.ResultsDSN != "" {
		db, err := database.NewConnection(cfg.ResultsDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to results database")
		}
		defer db.Close()
		mysqlRecorder := results.NewMySQLRecorder(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := mysqlRecorder.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare results schema")
		}
		cancel()
		recorder, resultsCheck = mysqlRecorder, mysqlRecorder
	}

	// Word lists
	wordPool, err := words.Load(cfg.WordsEasyFile, cfg.WordsHardFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load word lists")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appmetrics.MustRegister(reg)

	// Initialize services
	svc := services.NewMatchService(st, eventBus, wordPool, services.Options{
		TickInterval: cfg.TickInterval,
		Recorder:     recorder,
	})
	rateLimiter := ratelimit.NewRateLimiter(cfg.SubmitRateLimit, time.Minute)
	defer rateLimiter.Stop()
	tokens := session.NewTokens(cfg.SessionSecret, cfg.MatchTTL)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Routes
	handlers.NewHandler(svc, eventBus, tokens, rateLimiter, st, resultsCheck).Register(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Start server
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreBackend).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := svc.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("tick loops did not stop")
	}
	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
