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
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"clearinvoice/onboarding-portal/onboarding-portal-backend/internal/auth"
	"clearinvoice/onboarding-portal/onboarding-portal-backend/internal/config"
	"clearinvoice/onboarding-portal/onboarding-portal-backend/internal/notifications"
	"clearinvoice/onboarding-portal/onboarding-portal-backend/internal/onboarding"
	"clearinvoice/onboarding-portal/onboarding-portal-backend/internal/reminders"
)

func main() {
	// Local env files are optional
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	if os.Getenv("APP_ENV") == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Connect to database
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxConnections)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}

	// Resume thresholds: engine defaults unless configured
	policy := onboarding.DefaultResumePolicy()
	if d := cfg.Onboarding.ResumeMinGap(); d > 0 {
		policy.MinGap = d
	}
	if d := cfg.Onboarding.ResumeMaxGap(); d > 0 {
		policy.MaxGap = d
	}
	if d := cfg.Onboarding.CredentialExpiry(); d > 0 {
		policy.CredentialExpiry = d
	}

	// Initialize Onboarding Module
	clock := onboarding.SystemClock{}
	hub := notifications.NewHub(logger)
	repo := onboarding.NewPostgresRepository(db)
	service := onboarding.NewService(repo, clock, policy, hub, logger)
	handler := onboarding.NewHandler(service, logger)

	// Reminder sweeper pushes resume prompts to connected clients
	sweepCfg := reminders.DefaultSweeperConfig()
	if cfg.Onboarding.ReminderSweepSchedule != "" {
		sweepCfg.Schedule = cfg.Onboarding.ReminderSweepSchedule
	}
	if cfg.Onboarding.ReminderSweepBatchSize > 0 {
		sweepCfg.BatchSize = cfg.Onboarding.ReminderSweepBatchSize
	}
	sweeper := reminders.NewSweeper(repo, hub, policy, clock, logger, sweepCfg)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start reminder sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	// Setup Router
	if os.Getenv("APP_ENV") != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	api.Use(auth.Middleware(cfg.Security.JWTSecret, logger))
	{
		handler.RegisterRoutes(api)

		api.GET("/ws", func(c *gin.Context) {
			userID := auth.UserID(c)
			if userID == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
				return
			}
			if err := hub.HandleConnection(c.Writer, c.Request, userID); err != nil {
				logger.Error("Websocket upgrade failed", zap.Error(err))
			}
		})
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.Int("port", cfg.Server.Port))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
