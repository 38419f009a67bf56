package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"study-sms-server/internal/config"
	"study-sms-server/internal/db"
	"study-sms-server/internal/handlers"
	"study-sms-server/internal/schedule"
	"study-sms-server/internal/services"
	"study-sms-server/internal/twilio"
	"study-sms-server/pkg/logger"
	"study-sms-server/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const version = "1.0.0"

// Server bundles the HTTP server with the resources it owns: the database
// connection and the optional in-process cron trigger
type Server struct {
	http     *http.Server
	database *db.Database
	cron     *cron.Cron
}

// SetupServer wires repositories, services, and routes into a ready server
func SetupServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if cfg.Server.Port <= 0 {
		return nil, errors.New("invalid server port")
	}

	// Initialize database
	database, err := db.NewDatabase(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Seed database if enabled
	if cfg.Seed.Enable {
		if err := database.SeedDatabase(); err != nil {
			return nil, fmt.Errorf("failed to seed database: %w", err)
		}
	}

	// Initialize repositories
	participantRepo := db.NewParticipantRepository(database.GetDB())
	contentRepo := db.NewContentRepository(database.GetDB())
	messageRepo := db.NewMessageRepository(database.GetDB())
	fitbitRepo := db.NewFitbitTokenRepository(database.GetDB(), cfg.Security.TokenEncryptionKey)

	// Initialize services
	dispatcher := twilio.NewClient(cfg)
	participantService := services.NewParticipantService(participantRepo)
	contentService := services.NewContentService(contentRepo)
	messageService := services.NewMessageService(messageRepo, participantRepo, dispatcher, cfg.Server.ExternalBaseURL)
	fitbitService := services.NewFitbitService(fitbitRepo, participantRepo, cfg)
	credentials := services.NewConfigCredentialStore(cfg)

	// Scheduled send pipeline
	selector := schedule.NewSelector(contentRepo, messageRepo, nil)
	runner := schedule.NewRunner(participantRepo, selector, messageService)

	// Initialize router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.RequestSizeLimitMiddleware(1 << 20))
	router.Use(middleware.AuditLogMiddleware())

	setupRoutes(router, cfg, credentials, participantService, contentService, messageService, fitbitService, runner)

	srv := &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           router,
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		database: database,
	}

	// In-process scheduled runs; empty spec leaves triggering to the manual
	// endpoint or an external cron
	if cfg.Scheduler.Cron != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.Scheduler.Cron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			sent, err := runner.RunOnce(ctx)
			if err != nil {
				logger.Error("Scheduled run failed", zap.Error(err))
				return
			}
			logger.Info("Scheduled run finished", zap.Int("sent", sent))
		})
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("invalid scheduler cron spec %q: %w", cfg.Scheduler.Cron, err)
		}
		srv.cron = c
	}

	return srv, nil
}

// setupRoutes configures all the HTTP routes
func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	credentials services.CredentialStore,
	participantService *services.ParticipantService,
	contentService *services.ContentService,
	messageService *services.MessageService,
	fitbitService *services.FitbitService,
	runner *schedule.Runner,
) {
	authHandler := handlers.NewAuthHandler(credentials, cfg)
	participantHandler := handlers.NewParticipantHandler(participantService)
	contentHandler := handlers.NewContentHandler(contentService)
	smsHandler := handlers.NewSMSHandler(messageService, participantService, runner)
	fitbitHandler := handlers.NewFitbitHandler(fitbitService)

	// Public endpoints: health, login, the provider delivery callback, and
	// the OAuth redirect target
	router.GET("/health", handleHealthCheck)
	router.POST("/api/auth/token", authHandler.Token)
	router.POST("/api/sms/status-callback/:id", smsHandler.StatusCallback)
	router.GET("/api/fitbit/callback", fitbitHandler.Callback)

	// Everything else requires the researcher session
	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(cfg))
	{
		protected.POST("/participants", participantHandler.Create)
		protected.GET("/participants", participantHandler.List)
		protected.GET("/participants/:id", participantHandler.Get)
		protected.GET("/participants/pid/:pid", participantHandler.GetByPID)
		protected.PATCH("/participants/:id", participantHandler.Update)
		protected.DELETE("/participants/:id", participantHandler.Delete)

		protected.POST("/templates", contentHandler.Create)
		protected.GET("/templates", contentHandler.List)
		protected.GET("/templates/:id", contentHandler.Get)
		protected.PATCH("/templates/:id", contentHandler.Update)
		protected.DELETE("/templates/:id", contentHandler.Delete)

		protected.GET("/sms/history", smsHandler.History)
		protected.GET("/sms/stats", smsHandler.Stats)
		protected.GET("/sms/window-times", smsHandler.WindowTimes)
		protected.POST("/sms/resend/:id", smsHandler.Resend)
		protected.POST("/sms/send-scheduled", smsHandler.SendScheduled)

		protected.GET("/fitbit/authorize/:pid", fitbitHandler.Authorize)
		protected.POST("/fitbit/refresh/:pid", fitbitHandler.Refresh)
		protected.GET("/fitbit/status/:pid", fitbitHandler.Status)
		protected.DELETE("/fitbit/:pid", fitbitHandler.Disconnect)
	}
}

// handleHealthCheck handles the health check endpoint
func handleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"version": version,
		"service": "study-sms-server",
	})
}

// Start runs the HTTP server and the cron trigger until an interrupt signal,
// then shuts down gracefully
func (s *Server) Start() error {
	if s.cron != nil {
		s.cron.Start()
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return s.Stop()
}

// Stop shuts down the HTTP server, waiting out in-flight requests and any
// running cron job
func (s *Server) Stop() error {
	logger.Info("Shutting down server...")

	if s.cron != nil {
		// Stop returns a context that completes when running jobs finish
		<-s.cron.Stop().Done()
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := s.http.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}

// Close releases the server's resources
func (s *Server) Close() {
	if err := s.database.Close(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}
