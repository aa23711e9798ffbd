package onboarding

import (
	"time"
)

// Clock supplies the current time. Injected so the analyzer is testable
// without real time passing.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ResumePolicy holds the elapsed-time thresholds of the resume analyzer.
type ResumePolicy struct {
	// MinGap is the minimum absence before a session counts as interrupted.
	// Anything shorter is an active, continuing session.
	MinGap time.Duration
	// MaxGap is the absence after which a session counts as abandoned and
	// the UI offers a fresh start instead of a resume prompt.
	MaxGap time.Duration
	// CredentialExpiry is the absence after which volatile steps (bank
	// connections, ERP tokens) are assumed to need redoing.
	CredentialExpiry time.Duration
}

// DefaultResumePolicy returns the standard thresholds.
func DefaultResumePolicy() ResumePolicy {
	return ResumePolicy{
		MinGap:           5 * time.Minute,
		MaxGap:           7 * 24 * time.Hour,
		CredentialExpiry: 24 * time.Hour,
	}
}

// AnalyzeResume decides whether an interrupted onboarding session should be
// offered a resume prompt, and if so at which step. A nil result means no
// prompt: the session is either still active, already finished, never
// started, or abandoned.
//
// The analyzer is pure and stateless between calls. It takes no action
// itself; the caller acts on its output.
func AnalyzeResume(graph *Graph, state *ProgressState, now time.Time, policy ResumePolicy) *ResumeSession {
	if graph == nil || graph.Len() == 0 || state == nil {
		return nil
	}
	if !state.HasStarted || state.IsComplete {
		return nil
	}

	elapsed := now.Sub(state.LastActiveAt)
	if elapsed < policy.MinGap || elapsed > policy.MaxGap {
		return nil
	}

	rec := recommend(graph, state, elapsed, policy)

	canResume := false
	if step, ok := graph.StepByID(rec.StepID); ok {
		canResume = graph.DependenciesMet(step, state)
	}

	return &ResumeSession{
		UserID:            state.UserID,
		Role:              graph.Role(),
		InterruptedAt:     state.LastActiveAt,
		EstimatedProgress: ComputeProgress(graph, state).Percent,
		Recommendation:    rec,
		CanResume:         canResume,
	}
}

func recommend(graph *Graph, state *ProgressState, elapsed time.Duration, policy ResumePolicy) ResumeRecommendation {
	// Long absence on a credential-style step: the external session has
	// likely expired, so step back to its prerequisite and budget for
	// redoing the setup, not just picking it up.
	if elapsed > policy.CredentialExpiry {
		if current, ok := graph.StepByID(state.CurrentStep); ok && current.Volatile && !state.HasCompleted(current.ID) {
			target := current
			if len(current.Dependencies) > 0 {
				if prereq, ok := graph.StepByID(current.Dependencies[0]); ok {
					target = prereq
				}
			}
			return ResumeRecommendation{
				StepID:           target.ID,
				Reason:           "Your connection credentials may have expired. Revisit the setup before reconnecting.",
				EstimatedMinutes: target.EstimatedMinutes + current.EstimatedMinutes,
			}
		}
	}

	if len(state.CompletedSteps) == 0 {
		first := graph.FirstStep()
		return ResumeRecommendation{
			StepID:           first.ID,
			Reason:           "Start fresh with a quick overview",
			EstimatedMinutes: first.EstimatedMinutes,
		}
	}

	next := nextAvailableStep(graph, state)
	return ResumeRecommendation{
		StepID:           next.ID,
		Reason:           "Continue where you left off",
		EstimatedMinutes: next.EstimatedMinutes,
	}
}

// nextAvailableStep picks the step a returning user should land on: the
// nominal current step if it is still open, otherwise the first non-blocked,
// non-completed step in display order. Falls back to the last step when
// everything but the terminal step is done.
func nextAvailableStep(graph *Graph, state *ProgressState) Step {
	if current, ok := graph.StepByID(state.CurrentStep); ok && !state.HasCompleted(current.ID) {
		if graph.DependenciesMet(current, state) {
			return current
		}
	}
	for _, step := range graph.Steps() {
		if state.HasCompleted(step.ID) {
			continue
		}
		if graph.DependenciesMet(step, state) {
			return step
		}
	}
	steps := graph.Steps()
	return steps[len(steps)-1]
}
