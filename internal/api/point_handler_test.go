package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointflow/internal/concurrent"
	"pointflow/internal/domain"
	"pointflow/internal/repository"
	"pointflow/internal/service"
	"pointflow/pkg/logger"
)

func newTestServer(t *testing.T, requireExisting bool) *httptest.Server {
	t.Helper()

	points := service.NewPointService(
		repository.NewMemoryUserPointRepository(requireExisting),
		repository.NewMemoryPointHistoryRepository(),
		concurrent.NewLockManager(),
		time.Second,
		logger.Nop(),
	)
	batch := service.NewBatchService(points, 2, 8, logger.Nop())
	t.Cleanup(batch.Shutdown)

	mux := http.NewServeMux()
	NewPointHandler(points, batch, logger.Nop()).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestPointHandler_ChargeUseAndRead(t *testing.T) {
	srv := newTestServer(t, false)

	resp := do(t, http.MethodPatch, srv.URL+"/point/1/charge", "1000")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1000), decode[domain.UserPoint](t, resp).Point)

	resp = do(t, http.MethodPatch, srv.URL+"/point/1/use", `{"amount": 300}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(700), decode[domain.UserPoint](t, resp).Point)

	resp = do(t, http.MethodGet, srv.URL+"/point/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	point := decode[domain.UserPoint](t, resp)
	assert.Equal(t, int64(1), point.ID)
	assert.Equal(t, int64(700), point.Point)

	resp = do(t, http.MethodGet, srv.URL+"/point/1/histories", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	histories := decode[[]domain.PointHistory](t, resp)
	require.Len(t, histories, 2)
	assert.Equal(t, domain.TransactionTypeCharge, histories[0].Type)
	assert.Equal(t, domain.TransactionTypeUse, histories[1].Type)
}

func TestPointHandler_RuleViolations(t *testing.T) {
	srv := newTestServer(t, false)

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode string
	}{
		{"charge below minimum", "/point/1/charge", "499", "BELOW_MIN_CHARGE"},
		{"use above maximum", "/point/1/use", "5001", "EXCEEDS_MAX_USE"},
		{"use without balance", "/point/1/use", "1000", "INSUFFICIENT_BALANCE"},
		{"use zero", "/point/1/use", "0", "INVALID_AMOUNT"},
		{"charge of max int64", "/point/1/charge", "9223372036854775807", "EXCEEDS_MAX_HOLD"},
		{"malformed amount", "/point/1/charge", `"lots"`, "INVALID_REQUEST"},
		{"missing amount", "/point/1/charge", `{}`, "INVALID_REQUEST"},
		{"empty body", "/point/1/charge", "", "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPatch, srv.URL+tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, resp).Code)
		})
	}
}

func TestPointHandler_InvalidUserID(t *testing.T) {
	srv := newTestServer(t, false)

	for _, id := range []string{"abc", "0", "-3"} {
		resp := do(t, http.MethodGet, srv.URL+"/point/"+id, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, id)
	}
}

func TestPointHandler_UnknownUser(t *testing.T) {
	srv := newTestServer(t, true)

	resp := do(t, http.MethodGet, srv.URL+"/point/5", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "USER_NOT_FOUND", decode[ErrorResponse](t, resp).Code)

	resp = do(t, http.MethodPost, srv.URL+"/point/5/init", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPatch, srv.URL+"/point/5/charge", "500")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPointHandler_Batch(t *testing.T) {
	srv := newTestServer(t, false)

	body := `{"commands":[
		{"user_id":1,"amount":1000,"type":"CHARGE"},
		{"user_id":1,"amount":2000,"type":"USE"},
		{"user_id":2,"amount":800,"type":"CHARGE"},
		{"user_id":0,"amount":1000,"type":"CHARGE"},
		{"user_id":-3,"amount":1000,"type":"CHARGE"}
	]}`
	resp := do(t, http.MethodPost, srv.URL+"/point/batch", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[BatchResponse](t, resp)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 3, result.Failed)
	require.Len(t, result.Results, 5)
	assert.Nil(t, result.Results[0].Error)
	require.NotNil(t, result.Results[1].Error)
	assert.Equal(t, "INSUFFICIENT_BALANCE", result.Results[1].Error.Code)
	assert.Equal(t, int64(800), result.Results[2].UserPoint.Point)
	for _, r := range result.Results[3:] {
		require.NotNil(t, r.Error)
		assert.Equal(t, "INVALID_USER_ID", r.Error.Code)
		assert.Nil(t, r.UserPoint)
	}

	resp = do(t, http.MethodPost, srv.URL+"/point/batch", `{"commands":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/point/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 8, decode[StatsResponse](t, resp).QueueCapacity)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{domain.ErrBelowMinCharge, http.StatusBadRequest},
		{domain.ErrExceedsMaxHold, http.StatusBadRequest},
		{domain.ErrInvalidUserID, http.StatusBadRequest},
		{domain.ErrUserNotFound, http.StatusNotFound},
		{domain.ErrLockTimeout, http.StatusServiceUnavailable},
		{domain.ErrQueueFull, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		_, status := classify(tt.err)
		assert.Equal(t, tt.wantStatus, status, tt.err.Error())
	}

	resp := toErrorResponse(errors.New("connection reset"))
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
	assert.NotContains(t, resp.Message, "connection reset")
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus string
		wantCode   int
	}{
		{
			name:       "all healthy",
			checks:     []HealthCheck{{Name: "database", Pinger: stubPinger{}, Critical: true}},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
		{
			name: "cache down",
			checks: []HealthCheck{
				{Name: "database", Pinger: stubPinger{}, Critical: true},
				{Name: "cache", Pinger: stubPinger{err: errors.New("refused")}},
			},
			wantStatus: "degraded",
			wantCode:   http.StatusOK,
		},
		{
			name:       "database down",
			checks:     []HealthCheck{{Name: "database", Pinger: stubPinger{err: errors.New("refused")}, Critical: true}},
			wantStatus: "unhealthy",
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			NewHealthHandler(tt.checks, logger.Nop()).RegisterRoutes(mux)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var resp HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
		})
	}
}
