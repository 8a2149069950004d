package wizard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrstack/arrstack/internal/core/domain"
)

type memStore struct {
	mu    sync.Mutex
	saved []domain.InstallStatus
}

func (s *memStore) SaveInstallStatus(_ context.Context, status domain.InstallStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, status)
	return nil
}

func (s *memStore) last() domain.InstallStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[len(s.saved)-1]
}

func noopExecutors() Executors {
	exec := make(Executors, len(StageOrder))
	for _, stage := range StageOrder {
		exec[stage] = func(_ context.Context, rep Reporter) error {
			rep.Progress(50)
			return nil
		}
	}
	return exec
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunFullSequence(t *testing.T) {
	store := &memStore{}
	var visited []string
	exec := make(Executors, len(StageOrder))
	for _, stage := range StageOrder {
		stage := stage
		exec[stage] = func(_ context.Context, _ Reporter) error {
			visited = append(visited, stage)
			return nil
		}
	}

	m := New(exec, store, testLogger())
	require.NoError(t, m.Run(context.Background()))

	assert.Equal(t, StageOrder, visited)

	status := m.Status()
	assert.Equal(t, domain.InstallCompleted, status.State)
	assert.True(t, status.Terminal())
	assert.Equal(t, 100, status.Progress)
	assert.NotEmpty(t, status.RunID)
	assert.NotNil(t, status.StartedAt)
	assert.NotNil(t, status.EndedAt)
	assert.Empty(t, status.Errors)

	assert.Equal(t, domain.InstallCompleted, store.last().State)
}

func TestProgressMonotonic(t *testing.T) {
	store := &memStore{}
	m := New(noopExecutors(), store, testLogger())
	require.NoError(t, m.Run(context.Background()))

	prev := 0
	for _, snap := range store.saved {
		assert.GreaterOrEqual(t, snap.Progress, prev, "progress must never decrease")
		if snap.Progress == 100 {
			assert.Equal(t, domain.InstallCompleted, snap.State, "100 only at completed")
		}
		prev = snap.Progress
	}
	assert.Equal(t, 100, prev)
}

func TestStageFailureHaltsInPlace(t *testing.T) {
	store := &memStore{}
	boom := errors.New("apt exploded")
	exec := noopExecutors()
	exec[StageDependencyInstall] = func(_ context.Context, _ Reporter) error {
		return boom
	}

	m := New(exec, store, testLogger())
	err := m.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStage))

	var serr *StageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, StageDependencyInstall, serr.Stage)

	status := m.Status()
	assert.Equal(t, domain.InstallError, status.State)
	assert.True(t, status.Terminal(), "an error record stops advancing until retried")
	assert.Equal(t, StageDependencyInstall, status.CurrentStage)
	require.NotEmpty(t, status.Errors)
	assert.Contains(t, status.Errors[0], "apt exploded")
	assert.Nil(t, status.EndedAt)
}

func TestRetryAfterFailureResumes(t *testing.T) {
	store := &memStore{}
	attempts := 0
	exec := noopExecutors()
	exec[StageDockerSetup] = func(_ context.Context, _ Reporter) error {
		attempts++
		if attempts == 1 {
			return errors.New("daemon not ready")
		}
		return nil
	}

	m := New(exec, store, testLogger())
	require.Error(t, m.Run(context.Background()))
	assert.Equal(t, StageDockerSetup, m.Status().CurrentStage)

	// No auto-retry happened; the second attempt is this explicit call.
	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, 2, attempts)
	assert.Equal(t, domain.InstallCompleted, m.Status().State)
}

func TestRunStageSingle(t *testing.T) {
	m := New(noopExecutors(), &memStore{}, testLogger())

	require.NoError(t, m.RunStage(context.Background(), StagePreCheck))
	status := m.Status()
	assert.Equal(t, StagePreCheck, status.CurrentStage)
	assert.Equal(t, 100, status.StageProgress)
	assert.Equal(t, domain.InstallInProgress, status.State)

	require.NoError(t, m.RunStage(context.Background(), StageDependencyInstall))
	assert.Equal(t, StageDependencyInstall, m.Status().CurrentStage)
}

func TestRunStageRejectsSkippingAhead(t *testing.T) {
	m := New(noopExecutors(), &memStore{}, testLogger())

	err := m.RunStage(context.Background(), StageFinalization)
	assert.True(t, errors.Is(err, ErrStageOrder))

	err = m.RunStage(context.Background(), "bogus")
	assert.True(t, errors.Is(err, ErrUnknownStage))
}

func TestRunStageErrorBlocksNextStage(t *testing.T) {
	exec := noopExecutors()
	exec[StagePreCheck] = func(_ context.Context, _ Reporter) error {
		return errors.New("not enough memory")
	}

	m := New(exec, &memStore{}, testLogger())
	require.Error(t, m.RunStage(context.Background(), StagePreCheck))

	err := m.RunStage(context.Background(), StageDependencyInstall)
	assert.True(t, errors.Is(err, ErrStageOrder), "the failing stage must succeed before the next runs")
}

func TestRunAfterCompleted(t *testing.T) {
	m := New(noopExecutors(), &memStore{}, testLogger())
	require.NoError(t, m.Run(context.Background()))

	assert.True(t, errors.Is(m.Run(context.Background()), ErrRunComplete))
	assert.True(t, errors.Is(m.RunStage(context.Background(), StagePreCheck), ErrRunComplete))
}

func TestResumeTrustsPersistedRecord(t *testing.T) {
	persisted := domain.InstallStatus{
		RunID:        "run-1",
		CurrentStage: StageContainerCreation,
		StageName:    StageNames[StageContainerCreation],
		State:        domain.InstallInProgress,
		Progress:     62,
	}

	var visited []string
	exec := make(Executors, len(StageOrder))
	for _, stage := range StageOrder {
		stage := stage
		exec[stage] = func(_ context.Context, _ Reporter) error {
			visited = append(visited, stage)
			return nil
		}
	}

	m := New(exec, &memStore{}, testLogger())
	m.Resume(persisted)
	assert.Equal(t, 62, m.Status().Progress)

	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, []string{StageContainerCreation, StagePostInstall, StageFinalization}, visited,
		"earlier stages are not re-verified")
	assert.Equal(t, "run-1", m.Status().RunID)
}

func TestReporterUpdatesVisibleWhileRunning(t *testing.T) {
	release := make(chan struct{})
	progressed := make(chan struct{})

	exec := noopExecutors()
	exec[StagePreCheck] = func(_ context.Context, rep Reporter) error {
		rep.Progress(40)
		rep.Log("pulling manifest")
		close(progressed)
		<-release
		return nil
	}

	m := New(exec, &memStore{}, testLogger())
	done := make(chan error, 1)
	go func() { done <- m.RunStage(context.Background(), StagePreCheck) }()

	<-progressed
	status := m.Status()
	assert.Equal(t, 40, status.StageProgress)
	assert.Equal(t, domain.InstallInProgress, status.State)
	assert.Contains(t, status.Logs[len(status.Logs)-1], "pulling manifest")

	close(release)
	require.NoError(t, <-done)
}

func TestExecutionSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	exec := noopExecutors()
	exec[StagePreCheck] = func(_ context.Context, rep Reporter) error {
		close(started)
		<-release
		return nil
	}

	m := New(exec, &memStore{}, testLogger())
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	<-started
	assert.ErrorIs(t, m.RunStage(context.Background(), StagePreCheck), ErrStageRunning)
	assert.ErrorIs(t, m.Run(context.Background()), ErrStageRunning)

	close(release)
	require.NoError(t, <-done)

	// The marker clears once the run finishes; the completed guard takes over.
	assert.ErrorIs(t, m.RunStage(context.Background(), StageFinalization), ErrRunComplete)
}
