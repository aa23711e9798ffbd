package onboarding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clearinvoice/onboarding-portal/onboarding-portal-backend/pkg/workflows"
)

const saveFailedMessage = "We couldn't save your progress. Please try again."

// autosaveTransitions is the coordinator's status table: idle only starts a
// save, and once a save has started the status tracks whichever call settled
// most recently.
var autosaveTransitions = workflows.NewStateMachine(map[string][]string{
	string(AutosaveIdle):   {string(AutosaveSaving)},
	string(AutosaveSaving): {string(AutosaveSaving), string(AutosaveSaved), string(AutosaveError)},
	string(AutosaveSaved):  {string(AutosaveSaving), string(AutosaveSaved), string(AutosaveError)},
	string(AutosaveError):  {string(AutosaveSaving), string(AutosaveSaved), string(AutosaveError)},
})

// Coordinator sequences writes of progress changes to the repository and
// exposes a save status to the UI layer. It owns the in-memory ProgressState
// for one user session; read paths only ever get copies.
//
// Local state is updated two-phase: a mutation is applied only after the
// repository confirms the write, so observed progress never reflects an
// in-flight or failed save. Overlapping calls are not queued or merged; each
// is issued immediately and the status reflects the last settled one.
type Coordinator struct {
	graph *Graph
	repo  Repository
	clock Clock

	mu          sync.Mutex
	state       *ProgressState
	status      AutosaveState
	message     string
	lastSavedAt *time.Time
}

// NewCoordinator creates a coordinator around a hydrated (or fresh) state.
func NewCoordinator(graph *Graph, repo Repository, clock Clock, state *ProgressState) *Coordinator {
	return &Coordinator{
		graph:  graph,
		repo:   repo,
		clock:  clock,
		state:  state,
		status: AutosaveIdle,
	}
}

// NewProgressState returns the initial state for a user who has not
// interacted with onboarding yet.
func NewProgressState(userID string, graph *Graph) *ProgressState {
	return &ProgressState{
		UserID:         userID,
		Role:           graph.Role(),
		CurrentStep:    graph.FirstStep().ID,
		CompletedSteps: []string{},
	}
}

// RecordStepProgress persists a step interaction and, on confirmed success,
// applies it to the local state. No retries: an error status is terminal
// until the next explicit mutation attempt.
func (c *Coordinator) RecordStepProgress(ctx context.Context, stepID string, markComplete bool) error {
	step, ok := c.graph.StepByID(stepID)
	if !ok {
		return fmt.Errorf("unknown step %q for role %q", stepID, c.graph.Role())
	}

	c.mu.Lock()
	c.transition(AutosaveSaving)
	c.message = ""
	userID := c.state.UserID
	c.mu.Unlock()

	now := c.clock.Now()
	err := c.repo.UpsertStepCompletion(ctx, userID, c.graph.Role(), stepID, markComplete, now)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.transition(AutosaveError)
		c.message = saveFailedMessage
		return fmt.Errorf("autosave failed for step %q: %w", stepID, err)
	}

	c.transition(AutosaveSaved)
	c.lastSavedAt = &now
	c.applyLocked(step, markComplete, now)
	return nil
}

// Restart rewinds the progress record to the first step. The record is
// kept; only the completed set and current pointer change.
func (c *Coordinator) Restart(ctx context.Context) error {
	first := c.graph.FirstStep()

	c.mu.Lock()
	c.transition(AutosaveSaving)
	c.message = ""
	userID := c.state.UserID
	c.mu.Unlock()

	now := c.clock.Now()
	err := c.repo.ResetProgress(ctx, userID, c.graph.Role(), first.ID, now)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case errors.Is(err, ErrProgressNotFound):
		// Nothing was ever persisted for this session, so there is no
		// record to rewind and nothing was written.
		c.transition(AutosaveSaved)
	case err != nil:
		c.transition(AutosaveError)
		c.message = saveFailedMessage
		return fmt.Errorf("restart failed: %w", err)
	default:
		c.transition(AutosaveSaved)
		c.lastSavedAt = &now
	}
	c.state.CompletedSteps = []string{}
	c.state.CurrentStep = first.ID
	c.state.IsComplete = false
	c.state.LastActiveAt = now
	c.state.UpdatedAt = now
	return nil
}

// Snapshot returns a read-only copy of the progress state.
func (c *Coordinator) Snapshot() *ProgressState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Status returns the UI-facing autosave status.
func (c *Coordinator) Status() AutosaveStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := AutosaveStatus{State: c.status, Message: c.message}
	if c.lastSavedAt != nil {
		t := *c.lastSavedAt
		status.LastSavedAt = &t
	}
	return status
}

// applyLocked commits a confirmed write to the local state. Caller holds mu.
func (c *Coordinator) applyLocked(step Step, markComplete bool, now time.Time) {
	if markComplete && !c.state.HasCompleted(step.ID) {
		c.state.CompletedSteps = append(c.state.CompletedSteps, step.ID)
	}
	c.state.CurrentStep = step.ID
	c.state.HasStarted = true
	if c.state.StartedAt == nil {
		t := now
		c.state.StartedAt = &t
	}
	if markComplete && step.ID == TerminalStepID {
		c.state.IsComplete = true
	}
	c.state.LastActiveAt = now
	c.state.UpdatedAt = now
}

// transition moves the status along the transition table; a move the table
// does not allow leaves the status unchanged. Caller holds mu.
func (c *Coordinator) transition(to AutosaveState) {
	if autosaveTransitions.CanTransition(string(c.status), string(to)) {
		c.status = to
	}
}
