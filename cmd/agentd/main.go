// Package main is the entry point for agentd, the agent action execution
// service: session management, sandboxed tool execution, and streaming
// turn events over SSE and WebSocket.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentd/agentd/internal/api"
	"github.com/agentd/agentd/internal/common/config"
	"github.com/agentd/agentd/internal/common/logger"
	"github.com/agentd/agentd/internal/events/bus"
	"github.com/agentd/agentd/internal/model"
	"github.com/agentd/agentd/internal/sandbox/docker"
	"github.com/agentd/agentd/internal/session"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting agentd service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Event bus: NATS when configured, in-memory otherwise
	var eventBus bus.EventBus
	if cfg.NATS.URL != "" {
		natsBus, err := bus.NewNATSEventBus(cfg.NATS, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		eventBus = natsBus
		log.Info("Connected to NATS event bus", zap.String("url", cfg.NATS.URL))
	} else {
		eventBus = bus.NewMemoryEventBus(log)
		log.Info("Using in-memory event bus")
	}
	defer eventBus.Close()

	// 4. Docker client for sandboxed sessions; sessions fall back to the
	// local shell backend when the daemon is unreachable.
	var dockerClient *docker.Client
	if cfg.Docker.Enabled {
		dockerClient, err = docker.NewClient(cfg.Docker, log)
		if err != nil {
			log.Warn("Docker client unavailable, sandboxing disabled", zap.Error(err))
			dockerClient = nil
		} else if err := dockerClient.Ping(ctx); err != nil {
			log.Warn("Docker daemon unreachable, sandboxing disabled", zap.Error(err))
			dockerClient.Close()
			dockerClient = nil
		} else {
			log.Info("Connected to Docker daemon")
			defer dockerClient.Close()
		}
	}

	// 5. Session service. No provider client is wired in this build, so
	// every catalog entry resolves to a static placeholder model.
	factory := func(info model.Info) model.Model {
		return model.NewStatic(info.ProviderID,
			"No model provider is configured for "+info.DisplayName+".")
	}
	svc := session.NewService(session.NewStore(), dockerClient, cfg, factory, eventBus, log)

	// 6. HTTP server with Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(api.Recovery(log))
	router.Use(api.RequestLogger(log))
	router.Use(api.ErrorHandler(log))
	router.Use(api.CORS())

	apiV1 := router.Group("/api/v1")
	api.SetupRoutes(apiV1, svc, eventBus, log)

	handler := api.NewHandler(svc, log)
	router.GET("/health", handler.HealthCheck)

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// 7. Serve until a shutdown signal arrives
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening", zap.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down agentd service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		// Tear down live sessions so no sandbox containers leak.
		for _, sess := range svc.ListSessions() {
			if err := svc.DeleteSession(shutdownCtx, sess.ID); err != nil {
				log.Error("Failed to delete session during shutdown",
					zap.String("session_id", sess.ID), zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal("Service error", zap.Error(err))
	}
	log.Info("agentd service stopped")
}
