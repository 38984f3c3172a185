package queue

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/housebill/internal/billing/domain"
	"github.com/smallbiznis/housebill/internal/config"
	obsmetrics "github.com/smallbiznis/housebill/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Executor runs a billing task and records its status.
type Executor interface {
	Execute(ctx context.Context, task domain.Task) error
}

// Worker consumes billing tasks, reconnecting with backoff when the broker
// connection drops.
type Worker struct {
	cfg      config.AMQPConfig
	executor Executor
	log      *zap.Logger
	connect  func() (consumer, error)
}

type consumer interface {
	Consume(ctx context.Context, handler func(context.Context, *TaskMessage) error) error
	Close() error
}

func NewWorker(cfg config.Config, executor Executor, log *zap.Logger) *Worker {
	w := &Worker{
		cfg:      cfg.AMQP,
		executor: executor,
		log:      log.Named("billing.worker"),
	}
	w.connect = func() (consumer, error) {
		return NewClient(w.cfg.URL, w.cfg.Exchange, w.cfg.Queue, log)
	}
	return w
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	retry := newReconnectBackoff()
	attempt := 0
	for {
		client, err := w.connect()
		if err == nil {
			retry.Reset()
			attempt = 0
			err = client.Consume(ctx, w.handle)
			client.Close()
		}
		if ctx.Err() != nil {
			return nil
		}

		delay := retry.NextBackOff()
		attempt++
		w.log.Warn("billing.worker.reconnect",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// handle returns an error only for failures worth redelivering. Terminal
// failures are already recorded in the job status.
func (w *Worker) handle(ctx context.Context, msg *TaskMessage) error {
	err := w.executor.Execute(ctx, msg.Task())
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && obsmetrics.IsRetryable(err) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	w.log.Info("billing.task.finished_with_failure",
		zap.String("job_id", msg.TaskID),
		zap.Error(err),
	)
	return nil
}

func newReconnectBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.MaxInterval = maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.Reset()
	return b
}
