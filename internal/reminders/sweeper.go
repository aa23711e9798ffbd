package reminders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"clearinvoice/onboarding-portal/onboarding-portal-backend/internal/onboarding"
)

// Sweeper periodically scans for interrupted onboarding sessions and pushes
// resume prompts to connected clients. It is the server-side counterpart of
// the dashboard's on-mount resume check, for users who left a tab open or
// subscribed to notifications.
type Sweeper struct {
	repo     onboarding.Repository
	notifier onboarding.Notifier
	policy   onboarding.ResumePolicy
	clock    onboarding.Clock
	logger   *zap.Logger
	config   SweeperConfig

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// SweeperConfig configuration for the reminder sweeper
type SweeperConfig struct {
	Schedule     string        `json:"schedule"`
	BatchSize    int           `json:"batch_size"`
	SweepTimeout time.Duration `json:"sweep_timeout"`
}

// DefaultSweeperConfig returns default configuration
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Schedule:     "@every 10m",
		BatchSize:    200,
		SweepTimeout: 30 * time.Second,
	}
}

// NewSweeper creates a new reminder sweeper.
func NewSweeper(repo onboarding.Repository, notifier onboarding.Notifier, policy onboarding.ResumePolicy, clock onboarding.Clock, logger *zap.Logger, config SweeperConfig) *Sweeper {
	return &Sweeper{
		repo:     repo,
		notifier: notifier,
		policy:   policy,
		clock:    clock,
		logger:   logger,
		config:   config,
		cron:     cron.New(),
	}
}

// Start schedules the sweep and starts the cron loop.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("reminder sweeper already running")
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, s.sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.config.Schedule, err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Reminder sweeper started", zap.String("schedule", s.config.Schedule))
	return nil
}

// Stop stops the cron loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("Reminder sweeper stopped")
}

// sweep runs one pass over records whose last activity falls inside the
// resumable window and pushes a prompt for each analyzable session.
func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.SweepTimeout)
	defer cancel()

	now := s.clock.Now()
	activeAfter := now.Add(-s.policy.MaxGap)
	activeBefore := now.Add(-s.policy.MinGap)

	states, err := s.repo.ListResumable(ctx, activeAfter, activeBefore, s.config.BatchSize)
	if err != nil {
		s.logger.Error("Reminder sweep failed to list sessions", zap.Error(err))
		return
	}

	prompted := 0
	for _, state := range states {
		graph, err := onboarding.GraphForRole(state.Role)
		if err != nil {
			// Records for retired roles are skipped, not errors.
			s.logger.Warn("Skipping progress record with unknown role",
				zap.String("user_id", state.UserID),
				zap.String("role", string(state.Role)))
			continue
		}

		session := onboarding.AnalyzeResume(graph, state, now, s.policy)
		if session == nil {
			continue
		}

		s.notifier.ResumePrompt(state.UserID, *session)
		prompted++
	}

	if prompted > 0 {
		s.logger.Info("Reminder sweep completed",
			zap.Int("scanned", len(states)),
			zap.Int("prompted", prompted))
	}
}
