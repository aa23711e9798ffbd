package onboarding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) UpsertStepCompletion(ctx context.Context, userID string, role Role, stepID string, markComplete bool, now time.Time) error {
	args := m.Called(ctx, userID, role, stepID, markComplete, now)
	return args.Error(0)
}

func (m *MockRepository) GetProgress(ctx context.Context, userID string, role Role) (*ProgressState, error) {
	args := m.Called(ctx, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProgressState), args.Error(1)
}

func (m *MockRepository) ResetProgress(ctx context.Context, userID string, role Role, firstStepID string, now time.Time) error {
	args := m.Called(ctx, userID, role, firstStepID, now)
	return args.Error(0)
}

func (m *MockRepository) ListResumable(ctx context.Context, activeAfter, activeBefore time.Time, limit int) ([]*ProgressState, error) {
	args := m.Called(ctx, activeAfter, activeBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ProgressState), args.Error(1)
}

type fakeClock struct {
	now time.Time
}

func (f fakeClock) Now() time.Time { return f.now }

func newTestCoordinator(t *testing.T, repo Repository) (*Coordinator, *Graph, fakeClock) {
	t.Helper()
	graph, err := GraphForRole(RoleSystemIntegrator)
	require.NoError(t, err)
	clock := fakeClock{now: time.Date(2026, time.March, 12, 9, 30, 0, 0, time.UTC)}
	coord := NewCoordinator(graph, repo, clock, NewProgressState("user-1", graph))
	return coord, graph, clock
}

func TestRecordStepProgressSuccess(t *testing.T) {
	mockRepo := new(MockRepository)
	coord, _, clock := newTestCoordinator(t, mockRepo)
	ctx := context.Background()

	assert.Equal(t, AutosaveIdle, coord.Status().State)

	mockRepo.On("UpsertStepCompletion", ctx, "user-1", RoleSystemIntegrator,
		"service_introduction", true, clock.now).Return(nil)

	err := coord.RecordStepProgress(ctx, "service_introduction", true)
	require.NoError(t, err)

	status := coord.Status()
	assert.Equal(t, AutosaveSaved, status.State)
	assert.Empty(t, status.Message)
	require.NotNil(t, status.LastSavedAt)
	assert.Equal(t, clock.now, *status.LastSavedAt)

	state := coord.Snapshot()
	assert.True(t, state.HasCompleted("service_introduction"))
	assert.Equal(t, "service_introduction", state.CurrentStep)
	assert.True(t, state.HasStarted)
	require.NotNil(t, state.StartedAt)
	assert.Equal(t, clock.now, state.LastActiveAt)

	mockRepo.AssertExpectations(t)
}

func TestRecordStepProgressFailureLeavesStateUntouched(t *testing.T) {
	mockRepo := new(MockRepository)
	coord, _, _ := newTestCoordinator(t, mockRepo)
	ctx := context.Background()

	before := coord.Snapshot()

	mockRepo.On("UpsertStepCompletion", ctx, "user-1", RoleSystemIntegrator,
		"service_introduction", true, mock.Anything).Return(errors.New("connection refused")).Once()

	err := coord.RecordStepProgress(ctx, "service_introduction", true)
	require.Error(t, err)

	status := coord.Status()
	assert.Equal(t, AutosaveError, status.State)
	assert.NotEmpty(t, status.Message)
	assert.Nil(t, status.LastSavedAt)

	after := coord.Snapshot()
	assert.Equal(t, before.CompletedSteps, after.CompletedSteps)
	assert.Equal(t, before.CurrentStep, after.CurrentStep)
	assert.Equal(t, before.HasStarted, after.HasStarted)

	// Retrying the same action succeeds and commits the update.
	mockRepo.On("UpsertStepCompletion", ctx, "user-1", RoleSystemIntegrator,
		"service_introduction", true, mock.Anything).Return(nil).Once()

	err = coord.RecordStepProgress(ctx, "service_introduction", true)
	require.NoError(t, err)

	status = coord.Status()
	assert.Equal(t, AutosaveSaved, status.State)
	assert.Empty(t, status.Message)
	assert.True(t, coord.Snapshot().HasCompleted("service_introduction"))

	mockRepo.AssertExpectations(t)
}

func TestRecordStepProgressUnknownStep(t *testing.T) {
	mockRepo := new(MockRepository)
	coord, _, _ := newTestCoordinator(t, mockRepo)

	err := coord.RecordStepProgress(context.Background(), "no_such_step", true)
	require.Error(t, err)

	// Nothing was attempted: no write, no status change.
	assert.Equal(t, AutosaveIdle, coord.Status().State)
	mockRepo.AssertNotCalled(t, "UpsertStepCompletion")
}

func TestRecordStepProgressAdvanceOnly(t *testing.T) {
	mockRepo := new(MockRepository)
	coord, _, _ := newTestCoordinator(t, mockRepo)
	ctx := context.Background()

	mockRepo.On("UpsertStepCompletion", ctx, "user-1", RoleSystemIntegrator,
		"integration_choice", false, mock.Anything).Return(nil)

	err := coord.RecordStepProgress(ctx, "integration_choice", false)
	require.NoError(t, err)

	state := coord.Snapshot()
	assert.Equal(t, "integration_choice", state.CurrentStep)
	assert.False(t, state.HasCompleted("integration_choice"))
	assert.True(t, state.HasStarted)
}

func TestRecordStepProgressIdempotentCompletion(t *testing.T) {
	mockRepo := new(MockRepository)
	coord, _, _ := newTestCoordinator(t, mockRepo)
	ctx := context.Background()

	mockRepo.On("UpsertStepCompletion", ctx, "user-1", RoleSystemIntegrator,
		"service_introduction", true, mock.Anything).Return(nil).Twice()

	require.NoError(t, coord.RecordStepProgress(ctx, "service_introduction", true))
	require.NoError(t, coord.RecordStepProgress(ctx, "service_introduction", true))

	state := coord.Snapshot()
	count := 0
	for _, id := range state.CompletedSteps {
		if id == "service_introduction" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRecordStepProgressTerminalStep(t *testing.T) {
	mockRepo := new(MockRepository)
	coord, _, _ := newTestCoordinator(t, mockRepo)
	ctx := context.Background()

	mockRepo.On("UpsertStepCompletion", ctx, "user-1", RoleSystemIntegrator,
		mock.Anything, true, mock.Anything).Return(nil)

	require.NoError(t, coord.RecordStepProgress(ctx, TerminalStepID, true))
	assert.True(t, coord.Snapshot().IsComplete)
}

func TestRestart(t *testing.T) {
	mockRepo := new(MockRepository)
	coord, _, _ := newTestCoordinator(t, mockRepo)
	ctx := context.Background()

	mockRepo.On("UpsertStepCompletion", ctx, "user-1", RoleSystemIntegrator,
		mock.Anything, true, mock.Anything).Return(nil)
	mockRepo.On("ResetProgress", ctx, "user-1", RoleSystemIntegrator,
		"service_introduction", mock.Anything).Return(nil)

	require.NoError(t, coord.RecordStepProgress(ctx, "service_introduction", true))
	require.NoError(t, coord.RecordStepProgress(ctx, "integration_choice", true))
	require.NoError(t, coord.Restart(ctx))

	state := coord.Snapshot()
	assert.Empty(t, state.CompletedSteps)
	assert.Equal(t, "service_introduction", state.CurrentStep)
	assert.False(t, state.IsComplete)
	// The record survives a restart; only progress is rewound.
	assert.True(t, state.HasStarted)
	assert.Equal(t, AutosaveSaved, coord.Status().State)
}

func TestRecordStepProgressOverlappingCalls(t *testing.T) {
	mockRepo := new(MockRepository)
	coord, _, _ := newTestCoordinator(t, mockRepo)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})

	// The first write stalls in the repository until released; the second
	// goes through immediately while the first is still in flight.
	mockRepo.On("UpsertStepCompletion", ctx, "user-1", RoleSystemIntegrator,
		"service_introduction", true, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(errors.New("write timeout")).Once()
	mockRepo.On("UpsertStepCompletion", ctx, "user-1", RoleSystemIntegrator,
		"integration_choice", false, mock.Anything).Return(nil).Once()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- coord.RecordStepProgress(ctx, "service_introduction", true)
	}()
	<-entered
	assert.Equal(t, AutosaveSaving, coord.Status().State)

	// The overlapping call is issued immediately, not queued behind the
	// stalled one.
	require.NoError(t, coord.RecordStepProgress(ctx, "integration_choice", false))
	assert.Equal(t, AutosaveSaved, coord.Status().State)

	// Once the stalled call settles with a failure, the status reflects it:
	// last settled wins, regardless of issue order.
	close(release)
	require.Error(t, <-firstDone)

	status := coord.Status()
	assert.Equal(t, AutosaveError, status.State)
	assert.NotEmpty(t, status.Message)

	// Only the confirmed write reached the local state.
	state := coord.Snapshot()
	assert.False(t, state.HasCompleted("service_introduction"))
	assert.Equal(t, "integration_choice", state.CurrentStep)

	mockRepo.AssertExpectations(t)
}

func TestRestartWithoutPersistedRecord(t *testing.T) {
	mockRepo := new(MockRepository)
	coord, _, _ := newTestCoordinator(t, mockRepo)
	ctx := context.Background()

	mockRepo.On("ResetProgress", ctx, "user-1", RoleSystemIntegrator,
		"service_introduction", mock.Anything).Return(ErrProgressNotFound)

	// A session that was never saved has nothing to rewind; restarting it
	// is a successful no-op rather than a failure.
	require.NoError(t, coord.Restart(ctx))

	status := coord.Status()
	assert.Equal(t, AutosaveSaved, status.State)
	assert.Empty(t, status.Message)
	assert.Nil(t, status.LastSavedAt)

	state := coord.Snapshot()
	assert.Empty(t, state.CompletedSteps)
	assert.Equal(t, "service_introduction", state.CurrentStep)
	assert.False(t, state.IsComplete)
}

func TestSnapshotIsACopy(t *testing.T) {
	mockRepo := new(MockRepository)
	coord, _, _ := newTestCoordinator(t, mockRepo)
	ctx := context.Background()

	mockRepo.On("UpsertStepCompletion", ctx, "user-1", RoleSystemIntegrator,
		mock.Anything, true, mock.Anything).Return(nil)
	require.NoError(t, coord.RecordStepProgress(ctx, "service_introduction", true))

	snap := coord.Snapshot()
	snap.CompletedSteps[0] = "tampered"
	snap.CurrentStep = "tampered"

	fresh := coord.Snapshot()
	assert.Equal(t, "service_introduction", fresh.CompletedSteps[0])
	assert.Equal(t, "service_introduction", fresh.CurrentStep)
}
