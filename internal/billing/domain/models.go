package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// MeterReading is the reading recorded for a flat in a given month.
type MeterReading struct {
	ID      snowflake.ID   `json:"id" gorm:"primaryKey"`
	FlatID  snowflake.ID   `json:"flat_id" gorm:"not null;uniqueIndex:ux_meter_readings_flat_month,priority:1"`
	Reading float64        `json:"reading" gorm:"not null"`
	Month   datatypes.Date `json:"month" gorm:"not null;uniqueIndex:ux_meter_readings_flat_month,priority:2"`
}

func (MeterReading) TableName() string { return "meter_readings" }

// Payment holds the fees billed to a flat for one month. (flat_id, month) is unique.
type Payment struct {
	ID            snowflake.ID   `json:"id" gorm:"primaryKey"`
	FlatID        snowflake.ID   `json:"flat_id" gorm:"not null;uniqueIndex:ux_payments_flat_month,priority:1"`
	Month         datatypes.Date `json:"month" gorm:"not null;uniqueIndex:ux_payments_flat_month,priority:2"`
	WaterFee      float64        `json:"water_fee" gorm:"not null"`
	CommonAreaFee float64        `json:"common_area_fee" gorm:"not null"`
	TotalFee      float64        `json:"total_fee" gorm:"not null"`
	CreatedAt     time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

// Rates is the tariff applied by the fee calculator.
type Rates struct {
	WaterRate      float64
	CommonAreaRate float64
}

func DefaultRates() Rates {
	return Rates{WaterRate: 10, CommonAreaRate: 5}
}

// Fees is the fee breakdown for one flat. TotalFee is always WaterFee + CommonAreaFee.
type Fees struct {
	WaterFee      float64 `json:"water_fee"`
	CommonAreaFee float64 `json:"common_area_fee"`
	TotalFee      float64 `json:"total_fee"`
}

// Strategy names how the water usage of a flat was derived.
type Strategy string

const (
	StrategyMonthlyReading Strategy = "monthly_reading"
	StrategyCounterDelta   Strategy = "counter_delta"
)
