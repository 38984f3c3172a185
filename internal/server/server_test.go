package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/housebill/internal/billing/domain"
	housedomain "github.com/smallbiznis/housebill/internal/house/domain"
	"github.com/smallbiznis/housebill/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeHouseService struct {
	view      *housedomain.HouseView
	getErr    error
	createErr error
	created   []housedomain.CreateRequest
}

func (f *fakeHouseService) GetByAddress(_ context.Context, address string) (*housedomain.HouseView, error) {
	if address == "" {
		return nil, housedomain.ErrInvalidAddress
	}
	return f.view, f.getErr
}

func (f *fakeHouseService) Create(_ context.Context, req housedomain.CreateRequest) (*housedomain.CreateResponse, error) {
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &housedomain.CreateResponse{HouseID: "42"}, nil
}

type fakeBillingService struct {
	resp     *billingdomain.CalculatePaymentResponse
	err      error
	listed   []billingdomain.ListPaymentsRequest
	listResp billingdomain.ListPaymentsResponse
}

func (f *fakeBillingService) ProcessPayments(context.Context, time.Time, time.Time) ([]billingdomain.Payment, error) {
	return nil, nil
}

func (f *fakeBillingService) Run(context.Context, string, billingdomain.ProgressFunc) (billingdomain.RunResult, error) {
	return billingdomain.RunResult{}, nil
}

func (f *fakeBillingService) CalculatePayment(_ context.Context, month string) (*billingdomain.CalculatePaymentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, _, err := billingdomain.ParseBillingMonth(month); err != nil {
		return nil, err
	}
	return f.resp, nil
}

func (f *fakeBillingService) ListPayments(_ context.Context, req billingdomain.ListPaymentsRequest) (billingdomain.ListPaymentsResponse, error) {
	f.listed = append(f.listed, req)
	if _, _, err := billingdomain.ParseBillingMonth(req.Month); err != nil {
		return billingdomain.ListPaymentsResponse{}, err
	}
	if req.PageToken == "bad" {
		return billingdomain.ListPaymentsResponse{}, pagination.ErrInvalidPageToken
	}
	return f.listResp, nil
}

type fakeJobService struct {
	statuses  map[string]billingdomain.JobStatus
	submitted []string
}

func (f *fakeJobService) Submit(_ context.Context, month string) (string, error) {
	if month == "" {
		return "", billingdomain.ErrMissingMonth
	}
	f.submitted = append(f.submitted, month)
	return "01HXTASK", nil
}

func (f *fakeJobService) Status(_ context.Context, id string) (billingdomain.JobStatus, error) {
	if status, ok := f.statuses[id]; ok {
		return status, nil
	}
	return billingdomain.PendingStatus(), nil
}

type testServer struct {
	router  *gin.Engine
	house   *fakeHouseService
	billing *fakeBillingService
	jobs    *fakeJobService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		house:   &fakeHouseService{},
		billing: &fakeBillingService{},
		jobs:    &fakeJobService{statuses: map[string]billingdomain.JobStatus{}},
	}
	router := gin.New()
	router.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:        router,
		Log:        zap.NewNop(),
		HouseSvc:   ts.house,
		BillingSvc: ts.billing,
		Jobs:       ts.jobs,
	})
	srv.RegisterRoutes()
	ts.router = router
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func TestSubmitCalculatePayments(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/payments/calculate_payments", `{"month":"2024-03-01"}`)

	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.JSONEq(t, `{"data":{"task_id":"01HXTASK"}}`, resp.Body.String())
	assert.Equal(t, []string{"2024-03-01"}, ts.jobs.submitted)
}

func TestSubmitCalculatePaymentsMissingMonth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/payments/calculate_payments", `{}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), `"code":"missing_month"`)

	resp = ts.do(http.MethodPost, "/api/payments/calculate_payments", ``)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetTaskStatusPendingForUnknownID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/payments/task_status/unknown", "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"data":{"state":"PENDING","current":0,"total":1,"result":null}}`, resp.Body.String())
}

func TestGetTaskStatusFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.jobs.statuses["abc"] = billingdomain.JobStatus{
		State:  billingdomain.JobStateFailure,
		Result: map[string]string{"error": "billing_run_in_progress"},
	}

	resp := ts.do(http.MethodGet, "/api/payments/task_status/abc", "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"data":{"state":"FAILURE","current":0,"total":0,"result":{"error":"billing_run_in_progress"}}}`, resp.Body.String())
}

func TestCalculatePayment(t *testing.T) {
	ts := newTestServer(t)
	ts.billing.resp = &billingdomain.CalculatePaymentResponse{
		Status:          "success",
		Message:         "payments calculated for 2024-03",
		CreatedPayments: 3,
	}

	resp := ts.do(http.MethodPost, "/api/payments/calculate_payment", `{"month":"2024-03"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.JSONEq(t, `{"data":{"status":"success","message":"payments calculated for 2024-03","created_payments":3}}`, resp.Body.String())

	resp = ts.do(http.MethodPost, "/api/payments/calculate_payment", `{"month":"03/2024"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), `"code":"invalid_month"`)
}

func TestCalculatePaymentInternalErrorIsOpaque(t *testing.T) {
	ts := newTestServer(t)
	ts.billing.err = errors.New(`pq: relation "payments" does not exist`)

	resp := ts.do(http.MethodPost, "/api/payments/calculate_payment", `{"month":"2024-03"}`)

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.JSONEq(t, `{"error":{"type":"internal_error","message":"internal server error"}}`, resp.Body.String())
}

func TestCalculatePaymentConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.billing.err = billingdomain.ErrRunInProgress

	resp := ts.do(http.MethodPost, "/api/payments/calculate_payment", `{"month":"2024-03"}`)

	require.Equal(t, http.StatusConflict, resp.Code)
	assert.JSONEq(t, `{"error":{"type":"conflict","message":"conflict"}}`, resp.Body.String())
}

func TestListPayments(t *testing.T) {
	ts := newTestServer(t)
	ts.billing.listResp = billingdomain.ListPaymentsResponse{
		PageInfo: pagination.PageInfo{NextPageToken: "next", HasMore: true},
		Payments: []billingdomain.Payment{{ID: 7, FlatID: 3, TotalFee: 750}},
	}

	resp := ts.do(http.MethodGet, "/api/payments?month=2024-03&page_size=1&page_token=abc", "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"next_page_token":"next"`)
	assert.Contains(t, resp.Body.String(), `"has_more":true`)
	assert.Contains(t, resp.Body.String(), `"total_fee":750`)
	require.Len(t, ts.billing.listed, 1)
	assert.Equal(t, billingdomain.ListPaymentsRequest{
		Month:      "2024-03",
		Pagination: pagination.Pagination{PageToken: "abc", PageSize: 1},
	}, ts.billing.listed[0])
}

func TestListPaymentsValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/payments", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), `"code":"missing_month"`)

	resp = ts.do(http.MethodGet, "/api/payments?month=2024-03&page_token=bad", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), `"field":"page_token"`)

	resp = ts.do(http.MethodGet, "/api/payments?month=2024-03&page_size=many", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), `"code":"invalid_request"`)
}

func TestGetHouseInfo(t *testing.T) {
	ts := newTestServer(t)
	ts.house.view = &housedomain.HouseView{
		HouseID: "1",
		Flats: map[string]*housedomain.FlatView{
			"10": {
				FlatID:         "10",
				FlatNumber:     5,
				Counters:       []housedomain.CounterView{},
				CounterHistory: []housedomain.CounterHistoryView{},
				Inhabitants:    []housedomain.InhabitantView{},
			},
		},
	}

	resp := ts.do(http.MethodGet, "/houses/info?house_street=Lenina%201", "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{
		"status": "success",
		"data": {
			"house_id": "1",
			"flats": {
				"10": {
					"flat_id": "10",
					"flat_number": 5,
					"flat_floor": 0,
					"square": 0,
					"counters": [],
					"counter_history": [],
					"inhabitants": [],
					"balance": null
				}
			}
		}
	}`, resp.Body.String())
}

func TestGetHouseInfoNotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.house.getErr = housedomain.ErrHouseNotFound

	resp := ts.do(http.MethodGet, "/houses/info?house_street=Nowhere", "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"not_found","message":"house not found"}`, resp.Body.String())
}

func TestGetHouseInfoDatabaseFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.house.getErr = errors.New("dial tcp 10.0.0.1:5432: connection refused")

	resp := ts.do(http.MethodGet, "/houses/info?house_street=Lenina%201", "")

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.NotContains(t, resp.Body.String(), "10.0.0.1")
}

func TestGetHouseInfoRequiresStreet(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/houses/info", "")

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateHouse(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/houses/new", `{"house_street":"Lenina 1"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.JSONEq(t, `{"data":{"house_id":"42"}}`, resp.Body.String())
	assert.Equal(t, []housedomain.CreateRequest{{Address: "Lenina 1"}}, ts.house.created)

	ts.house.createErr = housedomain.ErrAddressExists
	resp = ts.do(http.MethodPost, "/houses/new", `{"house_street":"Lenina 1"}`)
	assert.Equal(t, http.StatusConflict, resp.Code)

	ts.house.createErr = housedomain.ErrInvalidAddress
	resp = ts.do(http.MethodPost, "/houses/new", `{"house_street":" "}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMapErrorClassification(t *testing.T) {
	status, payload := mapError(billingdomain.ErrInvalidMonth)
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "month", payload.Errors[0].Field)

	errType, code := classifyErrorForLog(housedomain.ErrAddressExists)
	assert.Equal(t, "conflict", errType)
	assert.Equal(t, "conflict", code)
}
