package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"phone-agent/internal/auth"
	"phone-agent/internal/config"
	"phone-agent/internal/conversation"
	"phone-agent/internal/decision"
	"phone-agent/internal/events"
	"phone-agent/internal/oracle"
	"phone-agent/internal/progress"
	"phone-agent/internal/store"
	"phone-agent/internal/telephony"
	"phone-agent/internal/tts"
	"phone-agent/internal/workflow"
	"phone-agent/pkg/logger"
	"phone-agent/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	st := store.NewPostgresStore(db)

	// The decision oracle is the only optional collaborator: without an
	// API key every decision goes straight to the heuristic.
	var decider decision.Oracle
	if cfg.OpenAI.APIKey != "" {
		decider, err = oracle.NewOpenAIOracle(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		if err != nil {
			log.Error("oracle init failed", "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("OPENAI_API_KEY not set, running heuristic-only decisions")
		decider = decision.NewHeuristicOracle()
	}

	// Event pipeline. Construction order does not matter; subscription
	// happens in the Register calls below.
	bus := events.NewBus()

	dialer := telephony.NewTwilioDialer(
		cfg.Twilio.AccountSID,
		cfg.Twilio.AuthToken,
		cfg.Twilio.FromNumber,
		cfg.Twilio.PublicBaseURL,
	)
	waiter := telephony.NewPlaybackWaiter()
	tracker := progress.NewTracker()

	engine := decision.NewEngine(bus, decider, st, log)
	engine.DecisionTimeout = cfg.Calls.DecisionTimeout

	convo := conversation.NewHandler(bus, st, log)
	speech := tts.NewManager(bus, &telephony.TwilioSynthesizer{Dialer: dialer, Waiter: waiter}, log)
	bridge := telephony.NewBridge(bus, dialer, log)

	flows := workflow.NewService(bus, dialer, st, log)
	flows.VerificationTimeout = cfg.Calls.VerificationTimeout
	flows.InformationTimeout = cfg.Calls.InformationTimeout
	flows.Limiter = workflow.NewRedisLimiter(rdb, cfg.Calls.MaxConcurrent)

	recorder := store.NewRecorder(st, log)

	engine.Register()
	convo.Register()
	speech.Register()
	bridge.Register()
	tracker.Register(bus)
	flows.Register()
	recorder.Register(bus)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		Auth:    authManager,
		Bus:     bus,
		Store:   st,
		Dialer:  dialer,
		Tracker: tracker,
		Waiter:  waiter,
		Flows:   flows,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
