package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MKhiriev/go-todo-auth/internal/config"
	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/metrics"
	"github.com/MKhiriev/go-todo-auth/internal/mock"
	"github.com/MKhiriev/go-todo-auth/internal/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var handlerEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type handlerMocks struct {
	auth    *mock.MockAuthService
	tokens  *mock.MockTokenService
	appInfo *mock.MockAppInfoService
	health  *mock.MockHealthService
}

func newMockedHandler(t *testing.T) (*Handler, handlerMocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	m := handlerMocks{
		auth:    mock.NewMockAuthService(ctrl),
		tokens:  mock.NewMockTokenService(ctrl),
		appInfo: mock.NewMockAppInfoService(ctrl),
		health:  mock.NewMockHealthService(ctrl),
	}
	services := &service.Services{
		AuthService:    m.auth,
		TokenService:   m.tokens,
		AppInfoService: m.appInfo,
		HealthService:  m.health,
		Now:            func() time.Time { return handlerEpoch },
	}

	return NewHandler(services, metrics.New(), config.Server{}, logger.Nop()), m
}

// serve runs a request through the full router.
func serve(t *testing.T, h *Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rr := httptest.NewRecorder()
	h.Init().ServeHTTP(rr, req)
	return rr
}

func decodeResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func bearer(token string) []string {
	return []string{"Authorization", "Bearer " + token}
}

// injectNopLogger puts a nop logger into the request context, as withTraceID
// would.
func injectNopLogger(r *http.Request) *http.Request {
	return r.WithContext(logger.Nop().WithContext(r.Context()))
}
