package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/housebill/internal/billing/calculator"
	"github.com/smallbiznis/housebill/internal/billing/domain"
	"github.com/smallbiznis/housebill/internal/clock"
	"github.com/smallbiznis/housebill/internal/config"
	housedomain "github.com/smallbiznis/housebill/internal/house/domain"
	obscontext "github.com/smallbiznis/housebill/internal/observability/context"
	obslogger "github.com/smallbiznis/housebill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/housebill/internal/observability/metrics"
	"github.com/smallbiznis/housebill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultBatchSize = 100

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Config  config.Config
	Billing *config.BillingConfigHolder
	Clock   clock.Clock
	Metrics *obsmetrics.BillingMetrics `optional:"true"`
	Locker  domain.MonthLocker         `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	billing   *config.BillingConfigHolder
	clock     clock.Clock
	metrics   *obsmetrics.BillingMetrics
	locker    domain.MonthLocker
	lockTTL   time.Duration
	batchSize int
}

func NewService(p Params) domain.Service {
	batchSize := p.Config.Jobs.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("billing.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		billing:   p.Billing,
		clock:     p.Clock,
		metrics:   p.Metrics,
		locker:    p.Locker,
		lockTTL:   p.Config.Jobs.RunLockTTL(),
		batchSize: batchSize,
	}
}

func (s *Service) ProcessPayments(ctx context.Context, month, prev time.Time) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := s.process(ctx, domain.MonthStart(month), domain.MonthStart(prev), func(p *domain.Payment) {
		payments = append(payments, *p)
	}, nil)
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Service) Run(ctx context.Context, month string, progress domain.ProgressFunc) (domain.RunResult, error) {
	start, err := domain.ParseMonthStart(month)
	if err != nil {
		return domain.RunResult{}, err
	}
	if err := s.process(ctx, start, domain.PreviousMonth(start), nil, progress); err != nil {
		return domain.RunResult{}, err
	}
	return domain.RunResult{Status: domain.RunStatusCompleted, Month: month}, nil
}

func (s *Service) CalculatePayment(ctx context.Context, month string) (*domain.CalculatePaymentResponse, error) {
	start, prev, err := domain.ParseBillingMonth(month)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockMonth(ctx, domain.FormatMonth(start))
	if err != nil {
		return nil, err
	}
	defer unlock()

	payments, err := s.ProcessPayments(ctx, start, prev)
	if err != nil {
		return nil, err
	}
	return &domain.CalculatePaymentResponse{
		Status:          "success",
		Message:         fmt.Sprintf("payments calculated for %s", month),
		CreatedPayments: len(payments),
	}, nil
}

func (s *Service) ListPayments(ctx context.Context, req domain.ListPaymentsRequest) (domain.ListPaymentsResponse, error) {
	start, _, err := domain.ParseBillingMonth(req.Month)
	if err != nil {
		return domain.ListPaymentsResponse{}, err
	}

	items, err := s.repo.ListPayments(ctx, s.db, start, req.Pagination)
	if err != nil {
		return domain.ListPaymentsResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, req.Limit(), func(p *domain.Payment) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: p.FlatID.String()})
		if err != nil {
			return ""
		}
		return token
	})

	payments := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		payments = append(payments, *item)
	}
	return domain.ListPaymentsResponse{PageInfo: pageInfo, Payments: payments}, nil
}

// lockMonth takes the same month lock as background jobs so a synchronous
// run never overlaps a job of the same month.
func (s *Service) lockMonth(ctx context.Context, month string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := domain.RunLockKey(month)
	token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrRunInProgress
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.log.Warn("billing.run.lock_release_failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (s *Service) process(
	ctx context.Context,
	month, prev time.Time,
	onPayment func(*domain.Payment),
	progress domain.ProgressFunc,
) error {
	ctx = obscontext.WithBillingMonth(ctx, domain.FormatMonth(month))
	log := obslogger.WithContext(ctx, s.log)

	engine := s.newEngine()

	total, err := s.repo.CountFlats(ctx, s.db)
	if err != nil {
		return fmt.Errorf("count flats: %w", err)
	}
	if total == 0 {
		log.Info("billing.run.empty")
		return nil
	}

	var current, billed, skipped int
	err = s.repo.IterateFlats(ctx, s.db, s.batchSize, func(batch []housedomain.Flat) error {
		for _, flat := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}

			payment, err := s.billFlat(ctx, engine, flat, month, prev)
			if err != nil {
				return fmt.Errorf("flat %s: %w", flat.ID, err)
			}
			if payment == nil {
				skipped++
				log.Debug("billing.flat.skipped",
					zap.String("flat_id", flat.ID.String()),
					zap.String("reason", obsmetrics.SkipReasonMissingReading),
				)
			} else {
				billed++
				if onPayment != nil {
					onPayment(payment)
				}
			}

			current++
			if progress != nil {
				progress(current, max(current, int(total)))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("billing.run.finished",
		zap.Int("flat_count", current),
		zap.Int("billed_count", billed),
		zap.Int("skipped_count", skipped),
	)
	return nil
}

// billFlat returns nil when the flat has nothing to bill.
func (s *Service) billFlat(ctx context.Context, engine *calculator.Engine, flat housedomain.Flat, month, prev time.Time) (*domain.Payment, error) {
	fees, strategy, ok, err := engine.Calculate(ctx, flat, month, prev)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.IncFlatSkipped(obsmetrics.SkipReasonMissingReading)
		return nil, nil
	}
	s.metrics.IncFlatProcessed(string(strategy))

	now := s.clock.Now()
	payment, err := s.repo.UpsertPayment(ctx, s.db, &domain.Payment{
		ID:            s.genID.Generate(),
		FlatID:        flat.ID,
		Month:         datatypes.Date(month),
		WaterFee:      fees.WaterFee,
		CommonAreaFee: fees.CommonAreaFee,
		TotalFee:      fees.TotalFee,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert payment: %w", err)
	}
	s.metrics.IncPaymentUpserted()
	return payment, nil
}

// newEngine snapshots the current billing config for one run.
func (s *Service) newEngine() *calculator.Engine {
	cfg := config.DefaultBillingConfig()
	if s.billing != nil {
		cfg = s.billing.Get()
	}
	return calculator.NewEngine(calculator.EngineConfig{
		DB:       s.db,
		Readings: s.repo,
		Counters: s.repo,
		Calculator: calculator.New(domain.Rates{
			WaterRate:      cfg.WaterRate,
			CommonAreaRate: cfg.CommonAreaRate,
		}),
		CounterFallback: cfg.CounterFallback,
	})
}
