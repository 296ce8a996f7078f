package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/healthtech/filemanager/internal/api"
	"github.com/healthtech/filemanager/internal/auth"
	"github.com/healthtech/filemanager/internal/config"
	"github.com/healthtech/filemanager/internal/metrics"
	"github.com/healthtech/filemanager/internal/processor"
	"github.com/healthtech/filemanager/internal/repository"
	"github.com/healthtech/filemanager/internal/service"
	"github.com/healthtech/filemanager/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Version represents the application version
const Version = "0.1.0"

// Service represents the application service
type Service struct {
	config   *config.Config
	logger   *zap.Logger
	sugar    *zap.SugaredLogger
	router   chi.Router
	server   *http.Server
	db       *sql.DB
	registry *prometheus.Registry
}

// NewService creates a new application service
func NewService() (*Service, error) {
	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	var logger *zap.Logger
	switch cfg.Environment {
	case "production":
		logger, err = zap.NewProduction()
	case "test":
		logger = zap.NewNop()
	default:
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	sugar := logger.Sugar()

	// Load upload policy
	policy, err := config.LoadUploadPolicy(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load upload policy: %w", err)
	}

	// Initialize storage
	var storageClient storage.Interface
	if cfg.Environment != "test" {
		storageClient, err = storage.NewS3Client(storage.Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Endpoint:        cfg.S3.Endpoint,
			UsePathStyle:    cfg.S3.UsePathStyle,
			PresignExpiry:   cfg.S3.PresignExpiry,
		}, sugar)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
	} else {
		// Use mock storage for testing
		storageClient = storage.NewMockS3Client("https://test-bucket.example.com")
	}

	// Initialize database and repository
	var (
		dbConn *sql.DB
		repo   repository.ExamRepository
		pinger api.Pinger
	)
	if cfg.Environment != "test" {
		ctx := context.Background()
		dbConn, err = repository.NewDBConnection(ctx, repository.DBConfig{
			DSN: cfg.DB.DSN(),
			URL: cfg.DB.URL(),
		}, sugar)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := repository.Migrate(cfg.DB.URL(), sugar); err != nil {
			repository.CloseDB(dbConn, sugar)
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}

		postgresRepo := repository.NewPostgresExamRepository(dbConn, sugar)
		repo = postgresRepo
		pinger = postgresRepo
	} else {
		// Use mock repository for testing
		mockRepo := repository.NewMockExamRepository()
		repo = mockRepo
		pinger = mockRepo
	}

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Initialize exam service
	pdfProcessor := processor.New(sugar)
	examService := service.NewExamService(repo, storageClient, pdfProcessor, policy, m, sugar)

	// Initialize JWT middleware
	var authMW func(http.Handler) http.Handler
	if cfg.JWT.Enabled {
		authMW = auth.NewJWTMiddleware(auth.Config{
			PublicKeyURL: cfg.JWT.PublicKeyURL,
			Secret:       cfg.JWT.Secret,
			Algorithm:    cfg.JWT.Algorithm,
		}, sugar).Middleware
	}

	// Initialize router
	router := chi.NewRouter()

	// Initialize API handler
	handler := api.NewHandler(examService, api.UploadLimits{
		MaxFileSize: policy.MaxFileSize(),
		Timeout:     cfg.Upload.Timeout,
	}, sugar)

	// Register routes
	api.RegisterRoutes(router, handler, api.RouteOptions{
		Version:              Version,
		Environment:          cfg.Environment,
		Auth:                 authMW,
		Pinger:               pinger,
		Metrics:              m,
		Gatherer:             registry,
		RequestsPerSecond:    cfg.Rate.RequestsPerSecond,
		Burst:                cfg.Rate.Burst,
		MaxUploadRequestSize: int64(cfg.Upload.MaxRequestSizeMB) * 1024 * 1024,
		RequestTimeout:       cfg.Upload.RequestTimeout,
		Logger:               sugar,
	})

	// Initialize HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Service{
		config:   cfg,
		logger:   logger,
		sugar:    sugar,
		router:   router,
		server:   server,
		db:       dbConn,
		registry: registry,
	}, nil
}

// Handler returns the service's HTTP handler
func (s *Service) Handler() http.Handler {
	return s.router
}

// Start starts the service
func (s *Service) Start() error {
	// Log service startup
	s.sugar.Infow("Starting file manager service",
		"version", Version,
		"environment", s.config.Environment,
		"port", s.config.Port,
		"jwtEnabled", s.config.JWT.Enabled,
	)

	// Start server in a goroutine
	go func() {
		s.sugar.Infof("Server listening on port %d", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.sugar.Fatalf("Server failed: %v", err)
		}
	}()

	return nil
}

// WaitForShutdown waits for a shutdown signal and gracefully shuts down the server
func (s *Service) WaitForShutdown() {
	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received
	sig := <-quit
	s.sugar.Infof("Shutting down server: %v", sig)

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.server.Shutdown(ctx); err != nil {
		s.sugar.Errorf("Server forced to shutdown: %v", err)
		return
	}

	s.sugar.Info("Server exited gracefully")
}

// Cleanup performs cleanup tasks
func (s *Service) Cleanup() {
	repository.CloseDB(s.db, s.sugar)

	// Sync logger
	if err := s.logger.Sync(); err != nil {
		fmt.Printf("Failed to sync logger: %v\n", err)
	}
}
