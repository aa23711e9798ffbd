package onboarding

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// =====================================================
// Enums and Constants
// =====================================================

// Role represents the onboarding track a user belongs to
type Role string

const (
	RoleSystemIntegrator Role = "si"
	RoleAppProvider      Role = "app"
	RoleHybrid           Role = "hybrid"
)

// StepStatus represents the derived status of a single step
type StepStatus string

const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusCurrent   StepStatus = "current"
	StepStatusBlocked   StepStatus = "blocked"
	StepStatusUpcoming  StepStatus = "upcoming"
)

// AutosaveState represents the state of the autosave coordinator
type AutosaveState string

const (
	AutosaveIdle   AutosaveState = "idle"
	AutosaveSaving AutosaveState = "saving"
	AutosaveSaved  AutosaveState = "saved"
	AutosaveError  AutosaveState = "error"
)

// TerminalStepID is the designated final step of every role's graph.
const TerminalStepID = "onboarding_complete"

// =====================================================
// Step Graph Types
// =====================================================

// Step is a single unit of onboarding work.
type Step struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	EstimatedMinutes int      `json:"estimated_minutes"`
	Required         bool     `json:"required"`
	// Dependencies lists step ids that must be completed before this step
	// becomes available. Empty means always available.
	Dependencies []string `json:"dependencies,omitempty"`
	// Volatile marks steps backed by external credentials or sessions that
	// degrade over time (bank connections, ERP tokens). The resume analyzer
	// steps users back through these after a long absence.
	Volatile bool `json:"volatile,omitempty"`
}

// =====================================================
// Progress State
// =====================================================

// ProgressState is the persisted record of a user's onboarding progress.
type ProgressState struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	UserID         string         `json:"user_id" db:"user_id"`
	Role           Role           `json:"role" db:"role"`
	CurrentStep    string         `json:"current_step" db:"current_step"`
	CompletedSteps pq.StringArray `json:"completed_steps" db:"completed_steps"`
	HasStarted     bool           `json:"has_started" db:"has_started"`
	IsComplete     bool           `json:"is_complete" db:"is_complete"`
	StartedAt      *time.Time     `json:"started_at,omitempty" db:"started_at"`
	LastActiveAt   time.Time      `json:"last_active_at" db:"last_active_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// HasCompleted reports whether the given step id is in the completed set.
func (p *ProgressState) HasCompleted(stepID string) bool {
	for _, id := range p.CompletedSteps {
		if id == stepID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to read-only consumers.
func (p *ProgressState) Clone() *ProgressState {
	cp := *p
	cp.CompletedSteps = append(pq.StringArray(nil), p.CompletedSteps...)
	if p.StartedAt != nil {
		t := *p.StartedAt
		cp.StartedAt = &t
	}
	return &cp
}

// =====================================================
// Derived Types
// =====================================================

// StepMetric is the per-step portion of ProgressMetrics.
type StepMetric struct {
	Step   Step       `json:"step"`
	Status StepStatus `json:"status"`
}

// ProgressMetrics is the output of ComputeProgress.
type ProgressMetrics struct {
	Role             Role         `json:"role"`
	TotalSteps       int          `json:"total_steps"`
	CompletedCount   int          `json:"completed_count"`
	Percent          int          `json:"percent"`
	CompletedMinutes int          `json:"completed_minutes"`
	RemainingMinutes int          `json:"remaining_minutes"`
	IsComplete       bool         `json:"is_complete"`
	Steps            []StepMetric `json:"steps"`
}

// ResumeRecommendation names the step a returning user should pick up at.
type ResumeRecommendation struct {
	StepID           string `json:"step_id"`
	Reason           string `json:"reason"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

// ResumeSession is the ephemeral result of analyzing an interrupted session.
// It is recomputed on each call and never persisted.
type ResumeSession struct {
	UserID            string               `json:"user_id"`
	Role              Role                 `json:"role"`
	InterruptedAt     time.Time            `json:"interrupted_at"`
	EstimatedProgress int                  `json:"estimated_progress"`
	Recommendation    ResumeRecommendation `json:"recommendation"`
	CanResume         bool                 `json:"can_resume"`
}

// AutosaveStatus is the UI-facing view of the autosave coordinator.
type AutosaveStatus struct {
	State       AutosaveState `json:"state"`
	Message     string        `json:"message,omitempty"`
	LastSavedAt *time.Time    `json:"last_saved_at,omitempty"`
}
