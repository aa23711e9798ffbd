package onboarding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphForRoleUnknownRole(t *testing.T) {
	_, err := GraphForRole(Role("reseller"))

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Error(), "reseller")
}

func TestGraphForRoleKnownRoles(t *testing.T) {
	for _, role := range Roles() {
		graph, err := GraphForRole(role)
		require.NoError(t, err, "role %s", role)
		assert.Equal(t, role, graph.Role())
		assert.Greater(t, graph.Len(), 0)
	}
}

// Every role's table must be a DAG whose dependencies all reference steps in
// the same table, with unique ids and a terminal step. Validated here once,
// not at runtime.
func TestRoleGraphsAreValid(t *testing.T) {
	for _, role := range Roles() {
		graph, err := GraphForRole(role)
		require.NoError(t, err)

		seen := make(map[string]bool)
		for _, step := range graph.Steps() {
			assert.False(t, seen[step.ID], "role %s: duplicate step id %s", role, step.ID)
			seen[step.ID] = true

			assert.GreaterOrEqual(t, step.EstimatedMinutes, 0, "role %s: step %s", role, step.ID)

			for _, dep := range step.Dependencies {
				_, ok := graph.StepByID(dep)
				assert.True(t, ok, "role %s: step %s depends on unknown step %s", role, step.ID, dep)
			}
		}

		terminal, ok := graph.StepByID(TerminalStepID)
		require.True(t, ok, "role %s: missing terminal step", role)
		assert.True(t, terminal.Required)

		assertAcyclic(t, role, graph)
	}
}

func assertAcyclic(t *testing.T, role Role, graph *Graph) {
	t.Helper()

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	colors := make(map[string]int)

	var visit func(id string) bool
	visit = func(id string) bool {
		switch colors[id] {
		case visiting:
			return false
		case done:
			return true
		}
		colors[id] = visiting
		step, ok := graph.StepByID(id)
		if ok {
			for _, dep := range step.Dependencies {
				if !visit(dep) {
					return false
				}
			}
		}
		colors[id] = done
		return true
	}

	for _, step := range graph.Steps() {
		assert.True(t, visit(step.ID), "role %s: dependency cycle through %s", role, step.ID)
	}
}

func TestStepByID(t *testing.T) {
	graph, err := GraphForRole(RoleSystemIntegrator)
	require.NoError(t, err)

	step, ok := graph.StepByID("business_systems_setup")
	require.True(t, ok)
	assert.Equal(t, []string{"integration_choice"}, step.Dependencies)

	_, ok = graph.StepByID("no_such_step")
	assert.False(t, ok)
}

func TestVolatileStepsConfigured(t *testing.T) {
	volatile := map[Role]string{
		RoleSystemIntegrator: "erp_credentials",
		RoleAppProvider:      "bank_connection",
		RoleHybrid:           "bank_connection",
	}

	for role, stepID := range volatile {
		graph, err := GraphForRole(role)
		require.NoError(t, err)

		step, ok := graph.StepByID(stepID)
		require.True(t, ok, "role %s", role)
		assert.True(t, step.Volatile, "role %s: step %s", role, stepID)
	}
}
