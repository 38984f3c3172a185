package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/housebill/internal/billing/domain"
	"github.com/smallbiznis/housebill/internal/clock"
	"github.com/smallbiznis/housebill/internal/config"
	obscontext "github.com/smallbiznis/housebill/internal/observability/context"
	obslogger "github.com/smallbiznis/housebill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/housebill/internal/observability/metrics"
	obstracing "github.com/smallbiznis/housebill/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	jobName = "calculate_payments"

	failureInternal = "internal_error"
	failureTimeout  = "deadline_exceeded"
)

// Runner executes one billing run for a "YYYY-MM-01" month.
type Runner interface {
	Run(ctx context.Context, month string, progress domain.ProgressFunc) (domain.RunResult, error)
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Clock      clock.Clock
	Store      Store
	Locker     Locker
	Runner     domain.Service
	Dispatcher domain.Dispatcher          `optional:"true"`
	Metrics    *obsmetrics.BillingMetrics `optional:"true"`
}

// Manager submits billing jobs, tracks their status and executes them.
// Without a dispatcher, jobs run on goroutines owned by the manager.
type Manager struct {
	log        *zap.Logger
	clock      clock.Clock
	store      Store
	locker     Locker
	runner     Runner
	dispatcher domain.Dispatcher
	metrics    *obsmetrics.BillingMetrics

	lockTTL     time.Duration
	execTimeout time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewManager(p Params) *Manager {
	return newManager(p.Log, p.Config.Jobs, p.Clock, p.Store, p.Locker, p.Runner, p.Dispatcher, p.Metrics)
}

func newManager(
	log *zap.Logger,
	cfg config.JobsConfig,
	c clock.Clock,
	store Store,
	locker Locker,
	runner Runner,
	dispatcher domain.Dispatcher,
	metrics *obsmetrics.BillingMetrics,
) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if c == nil {
		c = clock.NewSystemClock()
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Manager{
		log:         log.Named("billing.job"),
		clock:       c,
		store:       store,
		locker:      locker,
		runner:      runner,
		dispatcher:  dispatcher,
		metrics:     metrics,
		lockTTL:     cfg.RunLockTTL(),
		execTimeout: cfg.RunTimeout(),
		baseCtx:     baseCtx,
		cancel:      cancel,
	}
}

// Submit records a PENDING job for month and hands it off. The month format
// is validated when the job executes.
func (m *Manager) Submit(ctx context.Context, month string) (string, error) {
	month = strings.TrimSpace(month)
	if month == "" {
		return "", domain.ErrMissingMonth
	}

	task := domain.Task{ID: ulid.Make().String(), Month: month}
	if err := m.save(ctx, task.ID, domain.PendingStatus()); err != nil {
		return "", fmt.Errorf("save job status: %w", err)
	}

	if m.dispatcher != nil {
		if err := m.dispatcher.Dispatch(ctx, task); err != nil {
			return "", fmt.Errorf("dispatch job: %w", err)
		}
		return task.ID, nil
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = m.Execute(m.baseCtx, task)
	}()
	return task.ID, nil
}

// Status returns the stored status, or the pending default for unknown ids.
func (m *Manager) Status(ctx context.Context, id string) (domain.JobStatus, error) {
	status, ok, err := m.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.JobStatus{}, err
	}
	if !ok {
		return domain.PendingStatus(), nil
	}
	return status, nil
}

// Execute runs task to completion and records its terminal status. The
// returned error mirrors a FAILURE status.
func (m *Manager) Execute(parent context.Context, task domain.Task) error {
	start := m.clock.Now()
	ctx, cancel := context.WithTimeout(parent, m.execTimeout)
	defer cancel()

	ctx = obscontext.WithJobID(ctx, task.ID)
	ctx = obscontext.WithBillingMonth(ctx, task.Month)
	ctx, endSpan := obstracing.StartJob(ctx, jobName, task.ID, task.Month)
	log := obslogger.WithContext(ctx, m.log).With(
		zap.String("job", jobName),
		zap.String("run_id", task.ID),
	)
	m.metrics.IncJobRun(jobName)
	log.Info("billing.job.start")

	processed, err := m.execute(ctx, log, task)
	endSpan(err)

	duration := m.clock.Now().Sub(start)
	m.metrics.ObserveJobDuration(jobName, duration)
	errorCount := 0
	if err != nil {
		errorCount = 1
		if errors.Is(err, context.DeadlineExceeded) {
			m.metrics.IncJobTimeout(jobName)
		}
		m.metrics.IncJobError(jobName, err)
	}
	log.Info("billing.job.finish",
		zap.Int64("duration_ms", duration.Milliseconds()),
		zap.Int("processed_count", processed),
		zap.Int("error_count", errorCount),
		zap.Error(err),
	)

	if err != nil {
		return fmt.Errorf("%s: %w", jobName, err)
	}
	return nil
}

func (m *Manager) execute(ctx context.Context, log *zap.Logger, task domain.Task) (int, error) {
	if _, err := domain.ParseMonthStart(task.Month); err != nil {
		m.fail(ctx, log, task.ID, domain.JobStatus{}, err)
		return 0, err
	}

	key := lockKey(task.Month)
	token, ok, err := m.locker.TryLock(ctx, key, m.lockTTL)
	if err != nil {
		err = fmt.Errorf("acquire month lock: %w", err)
		m.fail(ctx, log, task.ID, domain.JobStatus{}, err)
		return 0, err
	}
	if !ok {
		m.fail(ctx, log, task.ID, domain.JobStatus{}, domain.ErrRunInProgress)
		return 0, domain.ErrRunInProgress
	}
	defer func() {
		// The run context may already be cancelled; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.locker.Release(releaseCtx, key, token); err != nil {
			log.Warn("billing.job.lock_release_failed", zap.Error(err))
		}
	}()

	last := domain.JobStatus{State: domain.JobStateProgress}
	if err := m.save(ctx, task.ID, last); err != nil {
		log.Warn("billing.job.status_save_failed", zap.Error(err))
	}

	result, err := m.runner.Run(ctx, task.Month, func(current, total int) {
		last.Current = current
		last.Total = total
		if err := m.save(ctx, task.ID, last); err != nil {
			log.Warn("billing.job.status_save_failed", zap.Error(err))
		}
	})
	if err != nil {
		m.fail(ctx, log, task.ID, last, err)
		return last.Current, err
	}

	done := domain.JobStatus{
		State:   domain.JobStateSuccess,
		Current: last.Current,
		Total:   last.Total,
		Result: map[string]string{
			"status": result.Status,
			"month":  result.Month,
		},
	}
	if err := m.save(ctx, task.ID, done); err != nil {
		log.Warn("billing.job.status_save_failed", zap.Error(err))
	}
	return last.Current, nil
}

func (m *Manager) fail(ctx context.Context, log *zap.Logger, id string, progress domain.JobStatus, cause error) {
	status := domain.JobStatus{
		State:   domain.JobStateFailure,
		Current: progress.Current,
		Total:   progress.Total,
		Result:  map[string]string{"error": failureCode(cause)},
	}
	// Record the failure even when the run context has expired.
	saveCtx := context.WithoutCancel(ctx)
	if err := m.save(saveCtx, id, status); err != nil {
		log.Warn("billing.job.status_save_failed", zap.Error(err))
	}
}

func (m *Manager) save(ctx context.Context, id string, status domain.JobStatus) error {
	status.UpdatedAt = m.clock.Now()
	return m.store.Save(ctx, id, status)
}

// Stop cancels in-process runs and waits for them to record their status.
func (m *Manager) Stop(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func failureCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		return domain.ErrRunInProgress.Error()
	case errors.Is(err, domain.ErrInvalidMonth):
		return domain.ErrInvalidMonth.Error()
	case errors.Is(err, domain.ErrMissingMonth):
		return domain.ErrMissingMonth.Error()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return failureTimeout
	default:
		return failureInternal
	}
}
