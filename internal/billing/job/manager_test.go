package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/housebill/internal/billing/domain"
	"github.com/smallbiznis/housebill/internal/clock"
	"github.com/smallbiznis/housebill/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	mu     sync.Mutex
	months []string
	steps  int
	err    error
	block  chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context, month string, progress domain.ProgressFunc) (domain.RunResult, error) {
	r.mu.Lock()
	r.months = append(r.months, month)
	r.mu.Unlock()

	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return domain.RunResult{}, ctx.Err()
		}
	}
	for i := 1; i <= r.steps; i++ {
		if progress != nil {
			progress(i, r.steps)
		}
	}
	if r.err != nil {
		return domain.RunResult{}, r.err
	}
	return domain.RunResult{Status: domain.RunStatusCompleted, Month: month}, nil
}

type recordingDispatcher struct {
	tasks []domain.Task
}

func (d *recordingDispatcher) Dispatch(_ context.Context, task domain.Task) error {
	d.tasks = append(d.tasks, task)
	return nil
}

func newTestManager(t *testing.T, runner Runner, dispatcher domain.Dispatcher) (*Manager, *MemoryLocker) {
	t.Helper()
	c := clock.NewSystemClock()
	locker := NewMemoryLocker(c)
	m := newManager(
		zap.NewNop(),
		config.JobsConfig{LockTTL: time.Minute, StatusTTL: time.Hour, ExecTimeout: time.Minute},
		c,
		NewMemoryStore(time.Hour, c),
		locker,
		runner,
		dispatcher,
		nil,
	)
	t.Cleanup(func() {
		_ = m.Stop(context.Background())
	})
	return m, locker
}

func TestStatusUnknownIDIsPending(t *testing.T) {
	m, _ := newTestManager(t, &fakeRunner{}, nil)

	status, err := m.Status(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, domain.PendingStatus(), status)
}

func TestSubmitRunsInProcess(t *testing.T) {
	runner := &fakeRunner{steps: 2}
	m, _ := newTestManager(t, runner, nil)
	ctx := context.Background()

	id, err := m.Submit(ctx, "2024-03-01")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		status, err := m.Status(ctx, id)
		return err == nil && status.State == domain.JobStateSuccess
	}, 2*time.Second, 10*time.Millisecond)

	status, err := m.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Current)
	assert.Equal(t, 2, status.Total)
	assert.Equal(t, map[string]string{"status": "completed", "month": "2024-03-01"}, status.Result)
}

func TestSubmitRequiresMonth(t *testing.T) {
	m, _ := newTestManager(t, &fakeRunner{}, nil)

	_, err := m.Submit(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrMissingMonth)
}

func TestSubmitUsesDispatcher(t *testing.T) {
	runner := &fakeRunner{}
	dispatcher := &recordingDispatcher{}
	m, _ := newTestManager(t, runner, dispatcher)
	ctx := context.Background()

	id, err := m.Submit(ctx, "2024-03-01")
	require.NoError(t, err)

	require.Len(t, dispatcher.tasks, 1)
	assert.Equal(t, domain.Task{ID: id, Month: "2024-03-01"}, dispatcher.tasks[0])

	status, err := m.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatePending, status.State)
	assert.Empty(t, runner.months)
}

func TestExecuteInvalidMonthFails(t *testing.T) {
	runner := &fakeRunner{}
	m, _ := newTestManager(t, runner, nil)
	ctx := context.Background()

	err := m.Execute(ctx, domain.Task{ID: "job-1", Month: "2024-03"})
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)

	status, err := m.Status(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailure, status.State)
	assert.Equal(t, map[string]string{"error": "invalid_month"}, status.Result)
	assert.Empty(t, runner.months)
}

func TestExecuteFailsWhenMonthLocked(t *testing.T) {
	runner := &fakeRunner{}
	m, locker := newTestManager(t, runner, nil)
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, lockKey("2024-03-01"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = m.Execute(ctx, domain.Task{ID: "job-2", Month: "2024-03-01"})
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	status, err := m.Status(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailure, status.State)
	assert.Equal(t, map[string]string{"error": "billing_run_in_progress"}, status.Result)
}

func TestExecuteReleasesLockAfterRun(t *testing.T) {
	m, locker := newTestManager(t, &fakeRunner{steps: 1}, nil)
	ctx := context.Background()

	require.NoError(t, m.Execute(ctx, domain.Task{ID: "job-3", Month: "2024-03-01"}))

	_, ok, err := locker.TryLock(ctx, lockKey("2024-03-01"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExecuteRunnerErrorIsOpaque(t *testing.T) {
	runner := &fakeRunner{steps: 1, err: errors.New("pq: relation \"payments\" does not exist")}
	m, _ := newTestManager(t, runner, nil)
	ctx := context.Background()

	require.Error(t, m.Execute(ctx, domain.Task{ID: "job-4", Month: "2024-03-01"}))

	status, err := m.Status(ctx, "job-4")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailure, status.State)
	assert.Equal(t, 1, status.Current)
	assert.Equal(t, map[string]string{"error": "internal_error"}, status.Result)
}

func TestConcurrentRunsOfSameMonthAreSerialized(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	m, _ := newTestManager(t, runner, nil)
	ctx := context.Background()

	first, err := m.Submit(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		status, _ := m.Status(ctx, first)
		return status.State == domain.JobStateProgress
	}, 2*time.Second, 10*time.Millisecond)

	second, err := m.Submit(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		status, _ := m.Status(ctx, second)
		return status.State == domain.JobStateFailure
	}, 2*time.Second, 10*time.Millisecond)

	close(runner.block)
	require.Eventually(t, func() bool {
		status, _ := m.Status(ctx, first)
		return status.State == domain.JobStateSuccess
	}, 2*time.Second, 10*time.Millisecond)
}

type ttlRecordingLocker struct {
	*MemoryLocker
	ttls []time.Duration
}

func (l *ttlRecordingLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.ttls = append(l.ttls, ttl)
	return l.MemoryLocker.TryLock(ctx, key, ttl)
}

func TestLockOutlivesExecutionTimeout(t *testing.T) {
	c := clock.NewSystemClock()
	locker := &ttlRecordingLocker{MemoryLocker: NewMemoryLocker(c)}
	m := newManager(
		zap.NewNop(),
		config.JobsConfig{LockTTL: time.Minute, StatusTTL: time.Hour, ExecTimeout: 10 * time.Minute},
		c,
		NewMemoryStore(time.Hour, c),
		locker,
		&fakeRunner{steps: 1},
		nil,
		nil,
	)
	t.Cleanup(func() {
		_ = m.Stop(context.Background())
	})

	require.NoError(t, m.Execute(context.Background(), domain.Task{ID: "job-5", Month: "2024-03-01"}))
	assert.Equal(t, []time.Duration{10 * time.Minute}, locker.ttls)
}

func TestFailureCode(t *testing.T) {
	assert.Equal(t, "deadline_exceeded", failureCode(context.DeadlineExceeded))
	assert.Equal(t, "missing_month", failureCode(domain.ErrMissingMonth))
	assert.Equal(t, "internal_error", failureCode(errors.New("boom")))
}
