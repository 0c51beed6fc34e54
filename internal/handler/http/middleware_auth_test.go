package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MKhiriev/go-todo-auth/internal/service"
	"github.com/MKhiriev/go-todo-auth/internal/utils"
	"github.com/MKhiriev/go-todo-auth/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func executeAuth(h *Handler, authHeader string, next http.Handler) *httptest.ResponseRecorder {
	req := injectNopLogger(httptest.NewRequest(http.MethodGet, "/test", nil))
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	h.auth(next).ServeHTTP(rr, req)
	return rr
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_Middleware_TableTest(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		setup      func(m handlerMocks)
		wantStatus int
		wantError  string
	}{
		{
			name:       "no header",
			wantStatus: http.StatusUnauthorized,
			wantError:  "unauthenticated",
		},
		{
			name:       "missing token",
			header:     "Bearer",
			wantStatus: http.StatusUnauthorized,
			wantError:  "unauthenticated",
		},
		{
			name:       "basic scheme",
			header:     "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
			wantError:  "unauthenticated",
		},
		{
			name:   "expired token",
			header: "Bearer expired",
			setup: func(m handlerMocks) {
				m.tokens.EXPECT().VerifyAccess(gomock.Any(), "expired").Return("", service.ErrTokenExpired)
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "token expired",
		},
		{
			name:   "forged token",
			header: "Bearer forged",
			setup: func(m handlerMocks) {
				m.tokens.EXPECT().VerifyAccess(gomock.Any(), "forged").Return("", service.ErrTokenInvalid)
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "unauthenticated",
		},
		{
			name:   "valid token",
			header: "Bearer good",
			setup: func(m handlerMocks) {
				m.tokens.EXPECT().VerifyAccess(gomock.Any(), "good").Return("user-1", nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "lowercase scheme",
			header: "bearer good",
			setup: func(m handlerMocks) {
				m.tokens.EXPECT().VerifyAccess(gomock.Any(), "good").Return("user-1", nil)
			},
			wantStatus: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m := newMockedHandler(t)
			if tt.setup != nil {
				tt.setup(m)
			}

			rr := executeAuth(h, tt.header, okHandler())

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeResponse[models.ErrorResponse](t, rr).Error)
				assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestAuth_UserIDInContext(t *testing.T) {
	h, m := newMockedHandler(t)
	m.tokens.EXPECT().VerifyAccess(gomock.Any(), "good").Return("user-42", nil)

	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = utils.GetUserIDFromContext(r.Context())
	})

	executeAuth(h, "Bearer good", next)

	assert.Equal(t, "user-42", got)
}

func TestAuth_NextNotCalledOnFailure(t *testing.T) {
	h, _ := newMockedHandler(t)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	executeAuth(h, "", next)

	assert.False(t, called)
}

func TestAuth_ConcurrentRequests(t *testing.T) {
	h, m := newMockedHandler(t)
	m.tokens.EXPECT().VerifyAccess(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, token string) (string, error) { return "user-" + token, nil }).Times(20)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token := fmt.Sprint(i)
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				userID, _ := utils.GetUserIDFromContext(r.Context())
				assert.Equal(t, "user-"+token, userID)
			})
			rr := executeAuth(h, "Bearer "+token, next)
			assert.Equal(t, http.StatusOK, rr.Code)
		}()
	}
	wg.Wait()
}
