package onboarding

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func progressState(role Role, current string, completed ...string) *ProgressState {
	return &ProgressState{
		UserID:         "user-1",
		Role:           role,
		CurrentStep:    current,
		CompletedSteps: completed,
		HasStarted:     len(completed) > 0 || current != "",
	}
}

func stepStatusOf(t *testing.T, metrics ProgressMetrics, stepID string) StepStatus {
	t.Helper()
	for _, sm := range metrics.Steps {
		if sm.Step.ID == stepID {
			return sm.Status
		}
	}
	t.Fatalf("step %s not in metrics", stepID)
	return ""
}

func TestComputeProgressFreshState(t *testing.T) {
	graph, err := GraphForRole(RoleSystemIntegrator)
	require.NoError(t, err)

	state := progressState(RoleSystemIntegrator, "service_introduction")
	metrics := ComputeProgress(graph, state)

	assert.Equal(t, 0, metrics.Percent)
	assert.Equal(t, 0, metrics.CompletedCount)
	assert.Equal(t, graph.Len(), metrics.TotalSteps)
	assert.False(t, metrics.IsComplete)
	assert.Equal(t, 0, metrics.CompletedMinutes)

	// Unmet dependency: integration_choice is not completed yet.
	assert.Equal(t, StepStatusBlocked, stepStatusOf(t, metrics, "business_systems_setup"))
	assert.Equal(t, StepStatusCurrent, stepStatusOf(t, metrics, "service_introduction"))
}

func TestComputeProgressPercentFormula(t *testing.T) {
	graph, err := GraphForRole(RoleAppProvider)
	require.NoError(t, err)

	steps := graph.Steps()
	completed := []string{}
	for i := 0; i <= len(steps); i++ {
		state := progressState(RoleAppProvider, "", completed...)
		metrics := ComputeProgress(graph, state)

		want := int(float64(i)/float64(len(steps))*100 + 0.5)
		assert.Equal(t, want, metrics.Percent, "with %d completed", i)
		assert.Equal(t, i, metrics.CompletedCount)

		if i < len(steps) {
			completed = append(completed, steps[i].ID)
		}
	}
}

func TestComputeProgressIdempotent(t *testing.T) {
	graph, err := GraphForRole(RoleHybrid)
	require.NoError(t, err)

	state := progressState(RoleHybrid, "bank_connection", "service_introduction", "company_profile")
	first := ComputeProgress(graph, state)
	second := ComputeProgress(graph, state)

	assert.Equal(t, first, second)
}

func TestComputeProgressMonotonic(t *testing.T) {
	graph, err := GraphForRole(RoleSystemIntegrator)
	require.NoError(t, err)

	completed := []string{}
	last := -1
	for _, step := range graph.Steps() {
		completed = append(completed, step.ID)
		metrics := ComputeProgress(graph, progressState(RoleSystemIntegrator, "", completed...))
		assert.GreaterOrEqual(t, metrics.Percent, last)
		last = metrics.Percent
	}
	assert.Equal(t, 100, last)
}

func TestComputeProgressStatusPriority(t *testing.T) {
	graph, err := GraphForRole(RoleSystemIntegrator)
	require.NoError(t, err)

	// Stale current pointer: the step is completed and the pointer was never
	// advanced. Completed wins.
	state := progressState(RoleSystemIntegrator, "service_introduction", "service_introduction")
	metrics := ComputeProgress(graph, state)

	assert.Equal(t, StepStatusCompleted, stepStatusOf(t, metrics, "service_introduction"))
	assert.Equal(t, StepStatusUpcoming, stepStatusOf(t, metrics, "integration_choice"))
	assert.Equal(t, StepStatusBlocked, stepStatusOf(t, metrics, "erp_credentials"))
}

func TestComputeProgressTimeAggregates(t *testing.T) {
	graph, err := GraphForRole(RoleAppProvider)
	require.NoError(t, err)

	state := progressState(RoleAppProvider, "bank_connection", "service_introduction", "company_profile")
	metrics := ComputeProgress(graph, state)

	assert.Equal(t, 15, metrics.CompletedMinutes)
	// Optional steps count toward remaining time as well.
	assert.Equal(t, 42, metrics.RemainingMinutes)

	total := 0
	for _, step := range graph.Steps() {
		total += step.EstimatedMinutes
	}
	assert.Equal(t, total, metrics.CompletedMinutes+metrics.RemainingMinutes)
}

func TestComputeProgressIgnoresUnknownCompletedIDs(t *testing.T) {
	graph, err := GraphForRole(RoleSystemIntegrator)
	require.NoError(t, err)

	// A step id persisted before a graph change must not break anything.
	state := progressState(RoleSystemIntegrator, "", "service_introduction", "retired_step")
	metrics := ComputeProgress(graph, state)

	assert.Equal(t, 1, metrics.CompletedCount)
	for _, sm := range metrics.Steps {
		assert.NotEqual(t, "retired_step", sm.Step.ID)
	}
}

func TestComputeProgressEmptyGraph(t *testing.T) {
	graph := newGraph(Role("empty"), nil)
	metrics := ComputeProgress(graph, progressState("empty", ""))

	assert.Equal(t, 0, metrics.Percent)
	assert.Equal(t, 0, metrics.RemainingMinutes)
	assert.Empty(t, metrics.Steps)
}

func TestComputeProgressTerminalCompletion(t *testing.T) {
	graph, err := GraphForRole(RoleAppProvider)
	require.NoError(t, err)

	all := []string{}
	for _, step := range graph.Steps() {
		all = append(all, step.ID)
	}

	metrics := ComputeProgress(graph, progressState(RoleAppProvider, TerminalStepID, all...))
	assert.True(t, metrics.IsComplete)
	assert.Equal(t, 100, metrics.Percent)
	assert.Equal(t, 0, metrics.RemainingMinutes)
}

func TestComputeProgressBlockedNeverAvailable(t *testing.T) {
	for _, role := range Roles() {
		graph, err := GraphForRole(role)
		require.NoError(t, err)

		// With nothing completed, every step with dependencies must be
		// blocked (none of them is the current pointer here).
		metrics := ComputeProgress(graph, progressState(role, ""))
		for _, sm := range metrics.Steps {
			if len(sm.Step.Dependencies) > 0 {
				assert.Equal(t, StepStatusBlocked, sm.Status,
					fmt.Sprintf("role %s step %s", role, sm.Step.ID))
			}
		}
	}
}
