package onboarding

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Notifier receives engine events for fan-out to connected dashboard
// clients. Implementations must not block.
type Notifier interface {
	ProgressSaved(userID string, metrics ProgressMetrics, status AutosaveStatus)
	ResumePrompt(userID string, session ResumeSession)
}

// Service provides business logic for onboarding progress operations. It
// keeps one autosave coordinator per (user, role) session, hydrated from the
// repository on first touch.
type Service struct {
	repo     Repository
	clock    Clock
	policy   ResumePolicy
	notifier Notifier
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*Coordinator
}

type sessionKey struct {
	userID string
	role   Role
}

// NewService creates a new onboarding service. notifier may be nil.
func NewService(repo Repository, clock Clock, policy ResumePolicy, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		clock:    clock,
		policy:   policy,
		notifier: notifier,
		logger:   logger,
		sessions: make(map[sessionKey]*Coordinator),
	}
}

// GetProgress returns derived progress metrics and the current autosave
// status for a user's onboarding session.
func (s *Service) GetProgress(ctx context.Context, userID string, role Role) (ProgressMetrics, AutosaveStatus, error) {
	coord, graph, err := s.coordinator(ctx, userID, role)
	if err != nil {
		return ProgressMetrics{}, AutosaveStatus{}, err
	}
	return ComputeProgress(graph, coord.Snapshot()), coord.Status(), nil
}

// RecordStep persists a step interaction (complete or advance) and returns
// the re-derived metrics. On persistence failure the returned metrics still
// reflect the last confirmed state.
func (s *Service) RecordStep(ctx context.Context, userID string, role Role, stepID string, markComplete bool) (ProgressMetrics, AutosaveStatus, error) {
	coord, graph, err := s.coordinator(ctx, userID, role)
	if err != nil {
		return ProgressMetrics{}, AutosaveStatus{}, err
	}

	saveErr := coord.RecordStepProgress(ctx, stepID, markComplete)
	metrics := ComputeProgress(graph, coord.Snapshot())
	status := coord.Status()

	if saveErr != nil {
		s.logger.Error("Failed to save onboarding step",
			zap.String("user_id", userID),
			zap.String("role", string(role)),
			zap.String("step_id", stepID),
			zap.Error(saveErr))
		return metrics, status, saveErr
	}

	s.logger.Info("Onboarding step recorded",
		zap.String("user_id", userID),
		zap.String("role", string(role)),
		zap.String("step_id", stepID),
		zap.Bool("completed", markComplete),
		zap.Int("percent", metrics.Percent))

	if s.notifier != nil {
		s.notifier.ProgressSaved(userID, metrics, status)
	}

	return metrics, status, nil
}

// AnalyzeResume inspects the session and decides whether to surface a
// resume prompt. A nil session means no prompt.
func (s *Service) AnalyzeResume(ctx context.Context, userID string, role Role) (*ResumeSession, error) {
	coord, graph, err := s.coordinator(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	return AnalyzeResume(graph, coord.Snapshot(), s.clock.Now(), s.policy), nil
}

// Restart rewinds the session to the first step and returns fresh metrics.
func (s *Service) Restart(ctx context.Context, userID string, role Role) (ProgressMetrics, error) {
	coord, graph, err := s.coordinator(ctx, userID, role)
	if err != nil {
		return ProgressMetrics{}, err
	}

	if err := coord.Restart(ctx); err != nil {
		s.logger.Error("Failed to restart onboarding",
			zap.String("user_id", userID),
			zap.String("role", string(role)),
			zap.Error(err))
		return ComputeProgress(graph, coord.Snapshot()), err
	}

	s.logger.Info("Onboarding restarted",
		zap.String("user_id", userID),
		zap.String("role", string(role)))

	return ComputeProgress(graph, coord.Snapshot()), nil
}

// AutosaveStatus returns the save status of the session.
func (s *Service) AutosaveStatus(ctx context.Context, userID string, role Role) (AutosaveStatus, error) {
	coord, _, err := s.coordinator(ctx, userID, role)
	if err != nil {
		return AutosaveStatus{}, err
	}
	return coord.Status(), nil
}

// Policy returns the resume thresholds the service runs with.
func (s *Service) Policy() ResumePolicy { return s.policy }

// coordinator returns the session coordinator for a user and role, creating
// and hydrating it on first touch.
func (s *Service) coordinator(ctx context.Context, userID string, role Role) (*Coordinator, *Graph, error) {
	graph, err := GraphForRole(role)
	if err != nil {
		return nil, nil, err
	}

	key := sessionKey{userID: userID, role: role}

	s.mu.Lock()
	coord, ok := s.sessions[key]
	s.mu.Unlock()
	if ok {
		return coord, graph, nil
	}

	state, err := s.repo.GetProgress(ctx, userID, role)
	if err != nil {
		if !errors.Is(err, ErrProgressNotFound) {
			return nil, nil, err
		}
		state = NewProgressState(userID, graph)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another request may have hydrated the session meanwhile.
	if coord, ok := s.sessions[key]; ok {
		return coord, graph, nil
	}
	coord = NewCoordinator(graph, s.repo, s.clock, state)
	s.sessions[key] = coord
	return coord, graph, nil
}
