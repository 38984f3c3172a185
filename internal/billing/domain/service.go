package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	housedomain "github.com/smallbiznis/housebill/internal/house/domain"
	"github.com/smallbiznis/housebill/pkg/db/pagination"
	"gorm.io/gorm"
)

//go:generate mockgen -destination=mock/stores_mock.go -package=mock github.com/smallbiznis/housebill/internal/billing/domain ReadingStore,CounterStore

// ReadingStore looks up monthly meter readings.
type ReadingStore interface {
	FindReading(ctx context.Context, db *gorm.DB, flatID snowflake.ID, month time.Time) (*MeterReading, error)
}

// CounterStore lists the counters installed in a flat.
type CounterStore interface {
	ListCounters(ctx context.Context, db *gorm.DB, flatID snowflake.ID) ([]housedomain.Counter, error)
}

// FlatSource streams flats in id order.
type FlatSource interface {
	CountFlats(ctx context.Context, db *gorm.DB) (int64, error)
	IterateFlats(ctx context.Context, db *gorm.DB, batchSize int, fn func(batch []housedomain.Flat) error) error
}

// PaymentLedger stores one payment per (flat, month).
type PaymentLedger interface {
	UpsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) (*Payment, error)
	FindPayment(ctx context.Context, db *gorm.DB, flatID snowflake.ID, month time.Time) (*Payment, error)
	// ListPayments pages through the payments of month in flat id order.
	ListPayments(ctx context.Context, db *gorm.DB, month time.Time, page pagination.Pagination) ([]*Payment, error)
}

type Repository interface {
	ReadingStore
	CounterStore
	FlatSource
	PaymentLedger
}

// ProgressFunc receives (processed, total) after each flat of a run.
type ProgressFunc func(current, total int)

// RunResult is the terminal payload of a billing job.
type RunResult struct {
	Status string `json:"status"`
	Month  string `json:"month"`
}

const RunStatusCompleted = "completed"

type Service interface {
	// ProcessPayments bills every flat for month using prev as the comparison month.
	ProcessPayments(ctx context.Context, month, prev time.Time) ([]Payment, error)
	// Run is the job form: month must be "YYYY-MM-01".
	Run(ctx context.Context, month string, progress ProgressFunc) (RunResult, error)
	// CalculatePayment is the synchronous form: month must be "YYYY-MM".
	CalculatePayment(ctx context.Context, month string) (*CalculatePaymentResponse, error)
	// ListPayments returns one page of the payments billed for a "YYYY-MM" month.
	ListPayments(ctx context.Context, req ListPaymentsRequest) (ListPaymentsResponse, error)
}

type ListPaymentsRequest struct {
	Month string
	pagination.Pagination
}

type ListPaymentsResponse struct {
	pagination.PageInfo
	Payments []Payment `json:"payments"`
}

type CalculatePaymentResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	CreatedPayments int    `json:"created_payments"`
}

var (
	ErrMissingMonth  = errors.New("missing_month")
	ErrInvalidMonth  = errors.New("invalid_month")
	ErrRunInProgress = errors.New("billing_run_in_progress")
)
