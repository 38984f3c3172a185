// Package calculator computes monthly fees for a flat.
package calculator

import (
	"github.com/smallbiznis/housebill/internal/billing/domain"
	housedomain "github.com/smallbiznis/housebill/internal/house/domain"
)

// Calculator applies a fixed set of rates. It holds no other state.
type Calculator struct {
	rates domain.Rates
}

func New(rates domain.Rates) *Calculator {
	return &Calculator{rates: rates}
}

// CalculateFees bills a flat from two monthly readings. It reports false when
// either reading is missing.
func (c *Calculator) CalculateFees(flat housedomain.Flat, current, previous *domain.MeterReading) (domain.Fees, bool) {
	if current == nil || previous == nil {
		return domain.Fees{}, false
	}
	return c.fees(flat, current.Reading-previous.Reading), true
}

// CalculateForCounters bills a flat from the last/current delta of its water
// counters. Counters of other types or with a missing reading are ignored.
func (c *Calculator) CalculateForCounters(flat housedomain.Flat, counters []housedomain.Counter) domain.Fees {
	var usage float64
	for _, counter := range counters {
		if counter.CounterType != housedomain.CounterWater {
			continue
		}
		if counter.LastReading == nil || counter.CurrentReading == nil {
			continue
		}
		usage += *counter.CurrentReading - *counter.LastReading
	}
	return c.fees(flat, usage)
}

func (c *Calculator) fees(flat housedomain.Flat, consumption float64) domain.Fees {
	var water float64
	if consumption > 0 {
		water = consumption * c.rates.WaterRate
	}
	common := float64(flat.Square) * c.rates.CommonAreaRate
	return domain.Fees{
		WaterFee:      water,
		CommonAreaFee: common,
		TotalFee:      water + common,
	}
}
