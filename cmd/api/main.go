package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lablens/internal/analyzer"
	"lablens/internal/auth"
	"lablens/internal/config"
	"lablens/internal/database"
	"lablens/internal/handlers"
	"lablens/internal/logger"
	"lablens/internal/middleware"
	"lablens/internal/repository"
	"lablens/internal/safety"
	"lablens/internal/service"
	"lablens/internal/upload"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level: cfg.Log.Level,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
	)

	// Initialize database
	db, err := database.New(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func(db *database.Database) {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}(db)

	slog.Info("Database connection established")

	// Run database migrations
	migrator := database.NewMigrationExecutor(db.DB)
	if err := migrator.RunMigrations("./migrations"); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	// Initialize repositories
	reportRepo := repository.NewReportRepository(db.DB)
	policyRepo := repository.NewPolicyRepository(db.DB)
	flaggedRepo := repository.NewFlaggedRepository(db.DB)
	feedbackRepo := repository.NewFeedbackRepository(db.DB)

	// Initialize services
	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiration)
	policyService := service.NewPolicyService(policyRepo)
	moderationService := service.NewModerationService(flaggedRepo, feedbackRepo)
	filter := safety.NewFilter(moderationService)
	validator := upload.NewValidator(cfg.Upload.AcceptedTypes, cfg.Upload.MaxSizeBytes())
	analyzerClient := analyzer.NewClient(cfg.Analyzer.BaseURL, cfg.Analyzer.Timeout)

	analysisService := service.NewAnalysisService(validator, analyzerClient, reportRepo, policyService, filter, cfg.Workflow)
	analysisService.Start()
	defer analysisService.Stop()

	chatService := service.NewChatService(analyzerClient, reportRepo, policyService, filter)

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(authService)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, &cfg.Auth)
	analyzeHandler := handlers.NewAnalyzeHandler(analysisService, cfg.Upload)
	reportHandler := handlers.NewReportHandler(analysisService)
	chatHandler := handlers.NewChatHandler(chatService, moderationService)
	adminHandler := handlers.NewAdminHandler(policyService, moderationService)

	// Setup router
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)

	// Protected routes
	mux.Handle("POST /api/analyze", authMw.Authenticate(http.HandlerFunc(analyzeHandler.Analyze)))
	mux.Handle("GET /api/upload/status/{id}", authMw.Authenticate(http.HandlerFunc(analyzeHandler.UploadStatus)))
	mux.Handle("GET /api/reports/{id}", authMw.Authenticate(http.HandlerFunc(reportHandler.GetReport)))
	mux.Handle("GET /api/history", authMw.Authenticate(http.HandlerFunc(reportHandler.GetHistory)))
	mux.Handle("POST /api/chat", authMw.Authenticate(http.HandlerFunc(chatHandler.Chat)))
	mux.Handle("POST /api/feedback", authMw.Authenticate(http.HandlerFunc(chatHandler.SubmitFeedback)))

	// Admin routes
	mux.Handle("GET /api/admin/rules",
		authMw.Authenticate(authMw.RequireAdmin(http.HandlerFunc(adminHandler.GetRules))))
	mux.Handle("PUT /api/admin/rules",
		authMw.Authenticate(authMw.RequireAdmin(http.HandlerFunc(adminHandler.UpdateRules))))
	mux.Handle("GET /api/admin/flagged",
		authMw.Authenticate(authMw.RequireAdmin(http.HandlerFunc(adminHandler.GetFlagged))))
	mux.Handle("PUT /api/admin/flagged/{id}",
		authMw.Authenticate(authMw.RequireAdmin(http.HandlerFunc(adminHandler.ReviewFlagged))))
	mux.Handle("GET /api/admin/feedback",
		authMw.Authenticate(authMw.RequireAdmin(http.HandlerFunc(adminHandler.GetFeedback))))
	mux.Handle("PUT /api/admin/feedback/{id}",
		authMw.Authenticate(authMw.RequireAdmin(http.HandlerFunc(adminHandler.UpdateFeedback))))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte(`{"status":"unhealthy","database":"error"}`)); err != nil {
				slog.Error("Failed to write health check response", "error", err)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"healthy","version":"` + cfg.App.Version + `"}`)); err != nil {
			slog.Error("Failed to write health check response", "error", err)
		}
	})

	// Apply global middleware
	handler := middleware.LoggingMiddleware(
		middleware.SecurityHeaders(
			corsMw.Handler(
				rateLimiter.Limit(mux),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped")
}
