package http

import (
	"net/http"
	"testing"

	"github.com/MKhiriev/go-todo-auth/internal/service"
	"github.com/MKhiriev/go-todo-auth/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// authorized builds a handler whose token service accepts "good-token" for
// user-1.
func authorized(t *testing.T) (*Handler, handlerMocks) {
	t.Helper()
	h, m := newMockedHandler(t)
	m.tokens.EXPECT().VerifyAccess(gomock.Any(), "good-token").Return("user-1", nil).AnyTimes()
	return h, m
}

func TestProfile(t *testing.T) {
	h, m := authorized(t)
	remaining := 7
	profile := models.ProfileResponse{
		UserID:               "user-1",
		Email:                "alice@example.com",
		Name:                 "Alice",
		TwoFactorEnabled:     true,
		CreatedAt:            handlerEpoch,
		BackupCodesRemaining: &remaining,
	}
	m.auth.EXPECT().Profile(gomock.Any(), "user-1").Return(profile, nil).Times(2)

	for _, path := range []string{"/api/v1/users/me", "/api/v1/users/me/"} {
		rr := serve(t, h, http.MethodGet, path, nil, bearer("good-token")...)

		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, profile, decodeResponse[models.ProfileResponse](t, rr))
		assert.Contains(t, rr.Body.String(), `"backup_codes_remaining":7`)
	}
}

func TestProfile_WithoutTwoFactorOmitsBackupCodes(t *testing.T) {
	h, m := authorized(t)
	m.auth.EXPECT().Profile(gomock.Any(), "user-1").Return(models.ProfileResponse{UserID: "user-1", Email: "alice@example.com"}, nil)

	rr := serve(t, h, http.MethodGet, "/api/v1/users/me", nil, bearer("good-token")...)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "backup_codes_remaining")
}

func TestUpdateEmail(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "email taken", err: service.ErrDuplicateEmail, wantStatus: http.StatusConflict},
		{name: "wrong password", err: service.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized},
		{name: "validation", err: service.ErrValidation, wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m := authorized(t)
			req := models.UpdateEmailRequest{Email: "alice@example.org", Password: "hunter2"}
			m.auth.EXPECT().UpdateEmail(gomock.Any(), "user-1", req).
				Return(models.ProfileResponse{UserID: "user-1", Email: "alice@example.org"}, tt.err)

			rr := serve(t, h, http.MethodPatch, "/api/v1/users/me", req, bearer("good-token")...)

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.err == nil {
				assert.Equal(t, "alice@example.org", decodeResponse[models.ProfileResponse](t, rr).Email)
			}
		})
	}
}

func TestProfile_UserGone(t *testing.T) {
	h, m := authorized(t)
	m.auth.EXPECT().Profile(gomock.Any(), "user-1").Return(models.ProfileResponse{}, service.ErrUnauthenticated)

	rr := serve(t, h, http.MethodGet, "/api/v1/users/me", nil, bearer("good-token")...)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestChangePassword(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "success", wantStatus: http.StatusNoContent},
		{name: "wrong current password", err: service.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized},
		{name: "validation", err: service.ErrValidation, wantStatus: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m := authorized(t)
			req := models.ChangePasswordRequest{CurrentPassword: "hunter2", NewPassword: "hunter3"}
			m.auth.EXPECT().ChangePassword(gomock.Any(), "user-1", req).Return(tt.err)

			rr := serve(t, h, http.MethodPost, "/api/v1/users/me/password", req, bearer("good-token")...)

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestEnableTwoFactor(t *testing.T) {
	h, m := authorized(t)
	enrollment := models.TwoFactorEnrollment{
		Secret:     "JBSWY3DPEHPK3PXP",
		OTPAuthURI: "otpauth://totp/Todo:alice@example.com?secret=JBSWY3DPEHPK3PXP",
		QRCode:     "data:image/png;base64,AAAA",
	}
	m.auth.EXPECT().EnableTwoFactor(gomock.Any(), "user-1", models.EnableTwoFactorRequest{Password: "hunter2"}).Return(enrollment, nil)

	rr := serve(t, h, http.MethodPost, "/api/v1/users/me/2fa/enable", models.EnableTwoFactorRequest{Password: "hunter2"}, bearer("good-token")...)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, enrollment, decodeResponse[models.TwoFactorEnrollment](t, rr))
}

func TestEnableTwoFactor_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "wrong password", err: service.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized},
		{name: "already enabled", err: service.ErrTwoFactorAlreadyEnabled, wantStatus: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m := authorized(t)
			m.auth.EXPECT().EnableTwoFactor(gomock.Any(), "user-1", gomock.Any()).Return(models.TwoFactorEnrollment{}, tt.err)

			rr := serve(t, h, http.MethodPost, "/api/v1/users/me/2fa/enable", models.EnableTwoFactorRequest{Password: "x"}, bearer("good-token")...)

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestConfirmTwoFactor(t *testing.T) {
	tests := []struct {
		name       string
		codes      []string
		err        error
		wantStatus int
	}{
		{name: "success", codes: []string{"abcde-fghij", "klmno-pqrst"}, wantStatus: http.StatusOK},
		{name: "wrong code", err: service.ErrInvalidCode, wantStatus: http.StatusUnauthorized},
		{name: "pending expired", err: service.ErrPendingExpired, wantStatus: http.StatusGone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m := authorized(t)
			req := models.TwoFactorCodeRequest{Code: "123456"}
			m.auth.EXPECT().ConfirmTwoFactor(gomock.Any(), "user-1", req).Return(tt.codes, tt.err)

			rr := serve(t, h, http.MethodPost, "/api/v1/users/me/2fa/confirm", req, bearer("good-token")...)

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.err == nil {
				assert.Equal(t, models.TwoFactorStatusResponse{TwoFactorEnabled: true, BackupCodes: tt.codes}, decodeResponse[models.TwoFactorStatusResponse](t, rr))
			}
		})
	}
}

func TestDisableTwoFactor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "wrong password", err: service.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized},
		{name: "wrong code", err: service.ErrInvalidCode, wantStatus: http.StatusUnauthorized},
		{name: "not enabled", err: service.ErrTwoFactorNotEnabled, wantStatus: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m := authorized(t)
			req := models.DisableTwoFactorRequest{Password: "hunter2", Code: "123456"}
			m.auth.EXPECT().DisableTwoFactor(gomock.Any(), "user-1", req).Return(tt.err)

			rr := serve(t, h, http.MethodPost, "/api/v1/users/me/2fa/disable", req, bearer("good-token")...)

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.err == nil {
				assert.False(t, decodeResponse[models.TwoFactorStatusResponse](t, rr).TwoFactorEnabled)
			}
		})
	}
}

func TestRegenerateBackupCodes(t *testing.T) {
	h, m := authorized(t)
	codes := []string{"abcde-fghij"}
	m.auth.EXPECT().RegenerateBackupCodes(gomock.Any(), "user-1", models.TwoFactorCodeRequest{Code: "123456"}).Return(codes, nil)

	rr := serve(t, h, http.MethodPost, "/api/v1/users/me/2fa/backup-codes", models.TwoFactorCodeRequest{Code: "123456"}, bearer("good-token")...)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.BackupCodesResponse{BackupCodes: codes}, decodeResponse[models.BackupCodesResponse](t, rr))
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/users/me"},
		{http.MethodPost, "/api/v1/users/me/password"},
		{http.MethodPost, "/api/v1/users/me/2fa/enable"},
		{http.MethodPost, "/api/v1/users/me/2fa/confirm"},
		{http.MethodPost, "/api/v1/users/me/2fa/disable"},
		{http.MethodPost, "/api/v1/users/me/2fa/backup-codes"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			h, _ := newMockedHandler(t)

			rr := serve(t, h, p.method, p.path, "{}")

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, `Bearer realm="api"`, rr.Header().Get("WWW-Authenticate"))
		})
	}
}
