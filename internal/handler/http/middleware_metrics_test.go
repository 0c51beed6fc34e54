package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MKhiriev/go-todo-auth/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func scrape(t *testing.T, h *Handler) string {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Init().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return string(body)
}

func TestWithMetrics_RecordsRoutePattern(t *testing.T) {
	h, m := newMockedHandler(t)
	m.auth.EXPECT().Login(gomock.Any(), gomock.Any()).Return(models.LoginResult{Tokens: &testPair}, nil)

	serve(t, h, http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Email: "alice@example.com", Password: "hunter2"})
	serve(t, h, http.MethodGet, "/no/such/route", nil)

	out := scrape(t, h)
	assert.Contains(t, out, `todo_auth_http_requests_total{method="POST",path="/api/v1/auth/login",status="200"} 1`)
	assert.Contains(t, out, `todo_auth_http_requests_total{method="GET",path="unmatched",status="404"} 1`)
	assert.Contains(t, out, "todo_auth_http_requests_in_flight")
}

func TestWithMetrics_NilMetrics(t *testing.T) {
	h, _ := newMockedHandler(t)
	h.metrics = nil

	rr := httptest.NewRecorder()
	h.withMetrics(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
}
