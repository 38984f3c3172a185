package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/housebill/internal/billing/domain"
	housedomain "github.com/smallbiznis/housebill/internal/house/domain"
	"github.com/smallbiznis/housebill/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindReading(ctx context.Context, db *gorm.DB, flatID snowflake.ID, month time.Time) (*domain.MeterReading, error) {
	var reading domain.MeterReading
	err := db.WithContext(ctx).Raw(
		`SELECT id, flat_id, reading, month
		 FROM meter_readings WHERE flat_id = ? AND month = ?`,
		flatID,
		domain.MonthStart(month),
	).Scan(&reading).Error
	if err != nil {
		return nil, err
	}
	if reading.ID == 0 {
		return nil, nil
	}
	return &reading, nil
}

func (r *repo) ListCounters(ctx context.Context, db *gorm.DB, flatID snowflake.ID) ([]housedomain.Counter, error) {
	var counters []housedomain.Counter
	err := db.WithContext(ctx).Raw(
		`SELECT id, flat_id, counter_type, last_reading, current_reading
		 FROM counters WHERE flat_id = ? ORDER BY id`,
		flatID,
	).Scan(&counters).Error
	if err != nil {
		return nil, err
	}
	return counters, nil
}

func (r *repo) CountFlats(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	if err := db.WithContext(ctx).Model(&housedomain.Flat{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// IterateFlats walks flats in primary key order, batchSize rows at a time.
func (r *repo) IterateFlats(ctx context.Context, db *gorm.DB, batchSize int, fn func(batch []housedomain.Flat) error) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	var batch []housedomain.Flat
	return db.WithContext(ctx).
		Model(&housedomain.Flat{}).
		FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}

// UpsertPayment writes the payment for (flat_id, month), overwriting the fees
// of an existing row, and returns the stored row.
func (r *repo) UpsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) (*domain.Payment, error) {
	payment.Month = datatypes.Date(domain.MonthStart(time.Time(payment.Month)))
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "flat_id"}, {Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"water_fee", "common_area_fee", "total_fee", "updated_at"}),
	}).Create(payment).Error
	if err != nil {
		return nil, err
	}
	return r.FindPayment(ctx, db, payment.FlatID, time.Time(payment.Month))
}

func (r *repo) FindPayment(ctx context.Context, db *gorm.DB, flatID snowflake.ID, month time.Time) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, flat_id, month, water_fee, common_area_fee, total_fee, created_at, updated_at
		 FROM payments WHERE flat_id = ? AND month = ?`,
		flatID,
		domain.MonthStart(month),
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

// ListPayments fetches one row past the page size so callers can tell
// whether another page exists. The cursor id is the last flat id served.
func (r *repo) ListPayments(ctx context.Context, db *gorm.DB, month time.Time, page pagination.Pagination) ([]*domain.Payment, error) {
	var afterFlatID snowflake.ID
	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		afterFlatID, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
	}

	var payments []*domain.Payment
	err = db.WithContext(ctx).Raw(
		`SELECT id, flat_id, month, water_fee, common_area_fee, total_fee, created_at, updated_at
		 FROM payments WHERE month = ? AND flat_id > ? ORDER BY flat_id LIMIT ?`,
		domain.MonthStart(month),
		afterFlatID,
		page.Limit()+1,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
