package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	billingdomain "github.com/smallbiznis/housebill/internal/billing/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: JobReasonDeadlineExceeded},
		{name: "invalid_month", err: fmt.Errorf("parse: %w", billingdomain.ErrInvalidMonth), want: JobReasonInvalidMonth},
		{name: "run_in_progress", err: billingdomain.ErrRunInProgress, want: JobReasonRunInProgress},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: JobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: JobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: JobReasonUniqueViolation},
		{name: "db", err: &pgconn.PgError{Code: "08006"}, want: JobReasonDB},
		{name: "unknown", err: errors.New("boom"), want: JobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyJobReason(tc.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsRetryable(billingdomain.ErrInvalidMonth))
	assert.False(t, IsRetryable(nil))
}

func TestBillingMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newBillingMetrics(registry, Config{ServiceName: "housebill", Environment: "test"})

	m.IncFlatSkipped(SkipReasonMissingReading)
	m.IncFlatSkipped(SkipReasonMissingReading)
	m.IncPaymentUpserted()
	m.IncJobError("calculate_payments", billingdomain.ErrRunInProgress)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.flatsSkipped.WithLabelValues(SkipReasonMissingReading)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentsUpserted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobErrors.WithLabelValues("calculate_payments", JobReasonRunInProgress)))
}

func TestNilBillingMetricsIsSafe(t *testing.T) {
	var m *BillingMetrics
	m.IncJobRun("calculate_payments")
	m.IncFlatSkipped(SkipReasonMissingReading)
	m.IncHouseLookup(HouseLookupFound)
}

func TestHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	first := newHTTPMetrics(registry, Config{Environment: "test"})
	second := newHTTPMetrics(registry, Config{Environment: "test"})

	r := gin.New()
	r.Use(GinMiddleware(second))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(first.requests.WithLabelValues(http.MethodGet, "/health", "200")))
}
