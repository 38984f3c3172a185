package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	billingdomain "github.com/smallbiznis/housebill/internal/billing/domain"
	"gorm.io/gorm"
)

const (
	JobReasonDeadlineExceeded     = "deadline_exceeded"
	JobReasonInvalidMonth         = "invalid_month"
	JobReasonRunInProgress        = "run_in_progress"
	JobReasonDBLockTimeout        = "db_lock_timeout"
	JobReasonSerializationFailure = "serialization_failure"
	JobReasonUniqueViolation      = "unique_violation"
	JobReasonDB                   = "db"
	JobReasonUnknown              = "unknown"
)

const (
	SkipReasonMissingReading = "missing_reading"
)

const (
	HouseLookupFound    = "found"
	HouseLookupNotFound = "not_found"
	HouseLookupError    = "error"
)

// BillingMetrics captures billing run and house lookup health signals.
type BillingMetrics struct {
	jobRuns          *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	jobTimeouts      *prometheus.CounterVec
	jobErrors        *prometheus.CounterVec
	flatsProcessed   *prometheus.CounterVec
	flatsSkipped     *prometheus.CounterVec
	paymentsUpserted prometheus.Counter
	houseLookups     *prometheus.CounterVec
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the singleton billing metrics registry.
func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

// BillingWithConfig returns the singleton billing metrics registry using config labels.
func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

// ResetBillingMetricsForTest resets the billing metrics singleton for tests.
func ResetBillingMetricsForTest() {
	billingMetricsOnce = sync.Once{}
	billingMetrics = nil
}

func newBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "housebill_billing_job_runs_total",
		Help:        "Billing job runs by name.",
		ConstLabels: labels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "housebill_billing_job_duration_seconds",
		Help:        "Billing job latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: labels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "housebill_billing_job_timeouts_total",
		Help:        "Billing jobs that hit their deadline.",
		ConstLabels: labels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "housebill_billing_job_errors_total",
		Help:        "Billing job errors by low-cardinality reason.",
		ConstLabels: labels,
	}, []string{"job", "reason"})
	flatsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "housebill_billing_flats_processed_total",
		Help:        "Flats visited by billing runs.",
		ConstLabels: labels,
	}, []string{"strategy"})
	flatsSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "housebill_billing_flats_skipped_total",
		Help:        "Flats left without a payment by reason.",
		ConstLabels: labels,
	}, []string{"reason"})
	paymentsUpserted := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "housebill_billing_payments_upserted_total",
		Help:        "Payments created or overwritten.",
		ConstLabels: labels,
	})
	houseLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "housebill_house_lookups_total",
		Help:        "House view lookups by result.",
		ConstLabels: labels,
	}, []string{"result"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		flatsProcessed,
		flatsSkipped,
		paymentsUpserted,
		houseLookups,
	)

	return &BillingMetrics{
		jobRuns:          jobRuns,
		jobDuration:      jobDuration,
		jobTimeouts:      jobTimeouts,
		jobErrors:        jobErrors,
		flatsProcessed:   flatsProcessed,
		flatsSkipped:     flatsSkipped,
		paymentsUpserted: paymentsUpserted,
		houseLookups:     houseLookups,
	}
}

func (m *BillingMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *BillingMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *BillingMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the job error counter with classification.
func (m *BillingMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
}

func (m *BillingMetrics) IncFlatProcessed(strategy string) {
	if m == nil {
		return
	}
	m.flatsProcessed.WithLabelValues(strategy).Inc()
}

func (m *BillingMetrics) IncFlatSkipped(reason string) {
	if m == nil {
		return
	}
	m.flatsSkipped.WithLabelValues(reason).Inc()
}

func (m *BillingMetrics) IncPaymentUpserted() {
	if m == nil {
		return
	}
	m.paymentsUpserted.Inc()
}

func (m *BillingMetrics) IncHouseLookup(result string) {
	if m == nil {
		return
	}
	m.houseLookups.WithLabelValues(result).Inc()
}

// ClassifyJobReason maps billing job errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	switch {
	case err == nil:
		return JobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return JobReasonDeadlineExceeded
	case errors.Is(err, billingdomain.ErrInvalidMonth), errors.Is(err, billingdomain.ErrMissingMonth):
		return JobReasonInvalidMonth
	case errors.Is(err, billingdomain.ErrRunInProgress):
		return JobReasonRunInProgress
	case hasPGCode(err, "55P03"):
		return JobReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return JobReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return JobReasonUniqueViolation
	case isDBError(err):
		return JobReasonDB
	default:
		return JobReasonUnknown
	}
}

// IsRetryable reports whether a failed run is worth resubmitting.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	return isDBError(err)
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
