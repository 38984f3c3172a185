package calculator

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/housebill/internal/billing/domain"
	housedomain "github.com/smallbiznis/housebill/internal/house/domain"
	"gorm.io/gorm"
)

// Engine picks the billing strategy for a flat and runs the calculator.
type Engine struct {
	db              *gorm.DB
	readings        domain.ReadingStore
	counters        domain.CounterStore
	calc            *Calculator
	counterFallback bool
}

type EngineConfig struct {
	DB              *gorm.DB
	Readings        domain.ReadingStore
	Counters        domain.CounterStore
	Calculator      *Calculator
	CounterFallback bool
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		db:              cfg.DB,
		readings:        cfg.Readings,
		counters:        cfg.Counters,
		calc:            cfg.Calculator,
		counterFallback: cfg.CounterFallback,
	}
}

// Calculate returns the fees of flat for month. ok is false when there is
// nothing to bill; store failures are returned as errors.
func (e *Engine) Calculate(ctx context.Context, flat housedomain.Flat, month, prev time.Time) (domain.Fees, domain.Strategy, bool, error) {
	current, err := e.readings.FindReading(ctx, e.db, flat.ID, month)
	if err != nil {
		return domain.Fees{}, "", false, fmt.Errorf("find reading %s: %w", domain.FormatMonth(month), err)
	}
	previous, err := e.readings.FindReading(ctx, e.db, flat.ID, prev)
	if err != nil {
		return domain.Fees{}, "", false, fmt.Errorf("find reading %s: %w", domain.FormatMonth(prev), err)
	}

	if fees, ok := e.calc.CalculateFees(flat, current, previous); ok {
		return fees, domain.StrategyMonthlyReading, true, nil
	}

	// A flat with one of the two readings is skipped even when the fallback is on.
	if !e.counterFallback || current != nil || previous != nil {
		return domain.Fees{}, "", false, nil
	}

	counters, err := e.counters.ListCounters(ctx, e.db, flat.ID)
	if err != nil {
		return domain.Fees{}, "", false, fmt.Errorf("list counters: %w", err)
	}
	return e.calc.CalculateForCounters(flat, counters), domain.StrategyCounterDelta, true, nil
}
