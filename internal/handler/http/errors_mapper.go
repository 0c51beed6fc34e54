package http

import (
	"errors"
	"net/http"

	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/service"
	"github.com/MKhiriev/go-todo-auth/internal/utils"
	"github.com/MKhiriev/go-todo-auth/internal/validators"
	"github.com/MKhiriev/go-todo-auth/models"
)

const (
	msgInvalidCredentials = "invalid credentials"
	msgInternalError      = "internal error"
	msgUnavailable        = "service temporarily unavailable"
)

type errorStatus struct {
	status  int
	message string
}

// errorStatusMap maps service errors to a status and a stable client message.
// Wrong passwords and wrong codes share one message.
var errorStatusMap = map[error]errorStatus{
	service.ErrValidation:              {http.StatusUnprocessableEntity, "validation failed"},
	service.ErrInvalidCredentials:      {http.StatusUnauthorized, msgInvalidCredentials},
	service.ErrInvalidCode:             {http.StatusUnauthorized, msgInvalidCredentials},
	service.ErrDuplicateEmail:          {http.StatusConflict, "email already registered"},
	service.ErrChallengeExpired:        {http.StatusGone, "login challenge expired"},
	service.ErrPendingExpired:          {http.StatusGone, "two-factor enrollment expired"},
	service.ErrTwoFactorAlreadyEnabled: {http.StatusConflict, "two-factor authentication already enabled"},
	service.ErrTwoFactorNotEnabled:     {http.StatusConflict, "two-factor authentication not enabled"},
	service.ErrTokenExpired:            {http.StatusUnauthorized, "token expired"},
	service.ErrTokenUnknown:            {http.StatusUnauthorized, "refresh token unknown"},
	service.ErrTokenAlreadyUsed:        {http.StatusUnauthorized, "refresh token already used"},
	service.ErrTokenInvalid:            {http.StatusUnauthorized, "invalid token"},
	service.ErrUnauthenticated:         {http.StatusUnauthorized, "unauthenticated"},
	service.ErrStoreUnavailable:        {http.StatusServiceUnavailable, msgUnavailable},
	service.ErrHasherBusy:              {http.StatusServiceUnavailable, msgUnavailable},
	service.ErrInternalFatal:           {http.StatusInternalServerError, msgInternalError},
}

func statusFromError(err error) errorStatus {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return errorStatus{http.StatusInternalServerError, msgInternalError}
}

// writeError logs err and answers with its mapped status. Validation failures
// carry the per-field messages.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromRequest(r)

	mapped := statusFromError(err)
	body := models.ErrorResponse{Error: mapped.message}

	var verr *validators.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields()
	}

	if mapped.status >= http.StatusInternalServerError {
		log.Err(err).Int("status", mapped.status).Msg("request failed")
	} else {
		log.Info().Err(err).Int("status", mapped.status).Msg("request rejected")
	}

	utils.WriteJSON(w, body, mapped.status)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	utils.WriteJSON(w, models.ErrorResponse{Error: message}, status)
}
