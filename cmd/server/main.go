package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/tuneedit/api/internal/auth"
	"github.com/tuneedit/api/internal/bridge"
	"github.com/tuneedit/api/internal/client"
	"github.com/tuneedit/api/internal/config"
	"github.com/tuneedit/api/internal/log"
	"github.com/tuneedit/api/internal/server"
	"github.com/tuneedit/api/internal/service"
	ws "github.com/tuneedit/api/internal/websocket"
	"github.com/tuneedit/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger := log.WithComponent("main")
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	log.Configure(log.Config{Level: cfg.Server.LogLevel, Service: "tuneedit-api"})
	logger := log.WithComponent("main")

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis not available")
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	// External clients
	backendClient := client.NewBackendClient(&cfg.Backend)
	if !backendClient.IsConfigured() {
		logger.Warn().Msg("BACKEND_URL not set, submissions will fail")
	}

	var previewStorage client.PreviewStorage
	r2Client, err := client.NewR2Client(&cfg.R2)
	if err != nil {
		logger.Info().Err(err).Msg("R2 not configured, previews are served inline")
	} else {
		previewStorage = r2Client
	}

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()
	hostBridge := bridge.NewHubBridge(hub)

	sessionTTL := time.Duration(cfg.Session.TTLHours) * time.Hour
	issuer := auth.NewIssuer(cfg.Session.Secret, sessionTTL)
	store := service.NewRedisSessionStore(redisClient, sessionTTL)

	// The flag must outlive the client's full retry budget.
	submitHold := backendClient.Budget() + time.Minute

	// Initialize services
	sessionService := service.NewSessionService(store, issuer, previewStorage, hostBridge)
	submitService := service.NewSubmitService(store, asynqClient, backendClient, hostBridge, hub, submitHold)

	app := server.New(server.Deps{
		Config:            cfg,
		Redis:             redisClient,
		Hub:               hub,
		Issuer:            issuer,
		Sessions:          sessionService,
		Submits:           submitService,
		Validator:         validator.New(),
		BackendConfigured: backendClient.IsConfigured(),
		R2Configured:      previewStorage != nil,
		AccessLog:         true,
	})

	// Start Asynq worker server
	workerServer := worker.NewServer(redisOpt, map[string]int{service.QueueSubmit: 1}, 10, cfg.Server.LogLevel)
	mux := worker.NewServeMux(service.TaskTypeSubmit, worker.NewSubmitWorker(submitService))
	if err := workerServer.Start(mux); err != nil {
		logger.Error().Err(err).Msg("asynq worker error")
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info().Msg("shutting down server")
		workerServer.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	logger.Info().Str("addr", addr).Msg("server starting")
	if err := app.Listen(addr); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
