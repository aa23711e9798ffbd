package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"clearinvoice/onboarding-portal/onboarding-portal-backend/internal/config"
	"clearinvoice/onboarding-portal/onboarding-portal-backend/internal/onboarding"
	"clearinvoice/onboarding-portal/onboarding-portal-backend/internal/reminders"
)

// promptLogNotifier emits resume prompts as structured log events for the
// downstream notification pipeline. The worker runs outside the API process
// and has no websocket clients of its own, so prompts leave via the log
// stream instead of the hub.
type promptLogNotifier struct {
	logger *zap.Logger
}

func (n *promptLogNotifier) ProgressSaved(string, onboarding.ProgressMetrics, onboarding.AutosaveStatus) {
	// Saves happen in the API process; the worker never sees them.
}

func (n *promptLogNotifier) ResumePrompt(userID string, session onboarding.ResumeSession) {
	n.logger.Info("Resume prompt",
		zap.String("user_id", userID),
		zap.String("role", string(session.Role)),
		zap.String("step_id", session.Recommendation.StepID),
		zap.String("reason", session.Recommendation.Reason),
		zap.Int("estimated_minutes", session.Recommendation.EstimatedMinutes),
		zap.Int("progress", session.EstimatedProgress),
		zap.Bool("can_resume", session.CanResume),
		zap.Time("interrupted_at", session.InterruptedAt))
}

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

	sweepCfg := reminders.DefaultSweeperConfig()
	if cfg.Onboarding.ReminderSweepSchedule != "" {
		sweepCfg.Schedule = cfg.Onboarding.ReminderSweepSchedule
	}
	if cfg.Onboarding.ReminderSweepBatchSize > 0 {
		sweepCfg.BatchSize = cfg.Onboarding.ReminderSweepBatchSize
	}

	repo := onboarding.NewPostgresRepository(db)
	notifier := &promptLogNotifier{logger: logger}
	sweeper := reminders.NewSweeper(repo, notifier, policy, onboarding.SystemClock{}, logger, sweepCfg)

	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start reminder sweeper", zap.Error(err))
	}

	logger.Info("Reminder worker started", zap.String("schedule", sweepCfg.Schedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down reminder worker...")
	sweeper.Stop()
	logger.Info("Reminder worker exiting")
}
