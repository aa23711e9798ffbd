package onboarding

import "math"

// ComputeProgress derives progress metrics from a graph and a progress
// snapshot. It is pure: safe to call on every request without side effects.
//
// Completed-step ids that no longer exist in the graph are ignored so that
// graph changes never break previously persisted progress.
func ComputeProgress(graph *Graph, state *ProgressState) ProgressMetrics {
	metrics := ProgressMetrics{
		Role:       graph.Role(),
		TotalSteps: graph.Len(),
	}
	if graph.Len() == 0 {
		return metrics
	}

	completedTime := 0
	remainingTime := 0
	steps := make([]StepMetric, 0, graph.Len())

	for _, step := range graph.Steps() {
		status := stepStatus(graph, step, state)
		if status == StepStatusCompleted {
			metrics.CompletedCount++
			completedTime += step.EstimatedMinutes
		} else {
			// Optional steps stay in the remaining total; the UI labels
			// them separately.
			remainingTime += step.EstimatedMinutes
		}
		steps = append(steps, StepMetric{Step: step, Status: status})
	}

	metrics.Percent = int(math.Round(100 * float64(metrics.CompletedCount) / float64(graph.Len())))
	metrics.CompletedMinutes = completedTime
	metrics.RemainingMinutes = remainingTime
	metrics.IsComplete = state.HasCompleted(TerminalStepID)
	metrics.Steps = steps

	return metrics
}

// stepStatus applies the status priority order: a completed step is never
// reported blocked or current, even when the current-step pointer is stale.
func stepStatus(graph *Graph, step Step, state *ProgressState) StepStatus {
	switch {
	case state.HasCompleted(step.ID):
		return StepStatusCompleted
	case step.ID == state.CurrentStep:
		return StepStatusCurrent
	case !graph.DependenciesMet(step, state):
		return StepStatusBlocked
	default:
		return StepStatusUpcoming
	}
}
