package queue

import (
	"context"

	"github.com/smallbiznis/housebill/internal/billing/domain"
	"github.com/smallbiznis/housebill/internal/billing/job"
	"github.com/smallbiznis/housebill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the AMQP dispatcher when AMQP_URL is set.
var Module = fx.Module("billing.queue",
	fx.Provide(NewDispatcher),
)

// WorkerModule consumes queued billing tasks for the worker process.
var WorkerModule = fx.Module("billing.worker",
	fx.Provide(func(cfg config.Config, m *job.Manager, log *zap.Logger) *Worker {
		return NewWorker(cfg, m, log)
	}),
	fx.Invoke(startWorker),
)

func NewDispatcher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (domain.Dispatcher, error) {
	if !cfg.AMQP.Enabled() {
		return nil, nil
	}
	client, err := NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func startWorker(lc fx.Lifecycle, w *Worker, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := w.Run(ctx); err != nil {
					log.Error("billing worker stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
