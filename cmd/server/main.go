package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/core/ports"
	"campuspulse/internal/core/services"
	httphandlers "campuspulse/internal/handlers/http"
	"campuspulse/internal/infrastructure/hub"
	"campuspulse/internal/infrastructure/middleware"
	"campuspulse/internal/infrastructure/monitoring"
	"campuspulse/internal/infrastructure/repositories"
	"campuspulse/internal/infrastructure/risk"
	"campuspulse/internal/infrastructure/stream"
	"campuspulse/pkg/config"
	"campuspulse/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/campuspulse/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	issueRepo := repoFactory.CreateIssueRepository()

	// Initialize monitoring. The collector always runs; the /metrics
	// endpoint is gated on config.
	collector := monitoring.NewPrometheusCollector()

	// Initialize services
	authService := services.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	statsService := services.NewStatsService(issueRepo)

	engine := services.NewAggregationEngine(issueRepo, cfg.Aggregation.CacheTTL, collector, log)
	defer engine.Close()

	// Broadcast hub for websocket clients
	hubOpts := hub.Options{
		PingInterval:    cfg.Realtime.PingInterval,
		PongTimeout:     cfg.Realtime.PongTimeout,
		WriteTimeout:    cfg.Realtime.WriteTimeout,
		SendBufferSize:  cfg.Realtime.SendBufferSize,
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
	}
	broadcastHub := hub.New(authService, hubOpts, collector, log)

	// Streaming session manager for SSE clients
	streamOpts := stream.Options{
		MinUpdateInterval:     cfg.Streaming.MinUpdateInterval,
		DefaultUpdateInterval: cfg.Streaming.DefaultUpdateInterval,
		HeartbeatInterval:     cfg.Streaming.HeartbeatInterval,
		EventBufferSize:       cfg.Streaming.EventBufferSize,
	}
	streamManager := stream.NewManager(engine, issueRepo, streamOpts, collector, log)

	// Change notifier fans mutations out to both distribution layers
	notifier := services.NewChangeNotifier(statsService, log, broadcastHub, streamManager)
	notifier.Start()

	// Optional external risk scorer
	var riskScorer ports.RiskScorer
	if cfg.Risk.Enabled {
		riskScorer = risk.NewClient(cfg.Risk.BaseURL, cfg.Risk.Timeout, log)
	}

	// Server-side aggregation defaults, overridable per request
	defaults := domain.DefaultAggregationConfig()
	defaults.GridSizeMeters = cfg.Aggregation.GridSizeMeters
	defaults.SeverityMultiplier = cfg.Aggregation.SeverityMultiplier
	defaults.TimeDecayFactor = cfg.Aggregation.TimeDecayFactor

	// Initialize HTTP handlers
	authHandler := httphandlers.NewAuthHandler(authService)
	issueHandler := httphandlers.NewIssueHandler(issueRepo, notifier)
	heatmapHandler := httphandlers.NewHeatmapHandler(engine, streamManager, broadcastHub, defaults, log)
	riskHandler := httphandlers.NewRiskHandler(riskScorer)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	// Public auth routes
	authHandler.SetupRoutes(router)

	// Websocket endpoint authenticates in-band after the upgrade
	router.GET("/ws", gin.WrapF(broadcastHub.HandleWebSocket))

	// API routes behind token authentication
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(authService))
	{
		issueHandler.SetupRoutes(api)
		heatmapHandler.SetupRoutes(api)
		riskHandler.SetupRoutes(api)
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	// Readiness endpoint checks repository health (Redis connection if enabled)
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := repoFactory.HealthCheck(ctx); err != nil {
			c.JSON(503, gin.H{
				"status":       "not_ready",
				"timestamp":    time.Now(),
				"dependencies": "unhealthy",
				"error":        err.Error(),
			})
			return
		}

		c.JSON(200, gin.H{
			"status":       "ready",
			"timestamp":    time.Now(),
			"dependencies": "ok",
		})
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:        cfg.Server.Address,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// No WriteTimeout: SSE and websocket connections are long-lived.
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting CampusPulse server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down CampusPulse server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	// Tear down the realtime layers before the event source
	streamManager.Close()
	broadcastHub.Close()
	notifier.Stop()

	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("CampusPulse server stopped")
}
