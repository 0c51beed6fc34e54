package http

import (
	"errors"
	"net/http"

	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/utils"
	"github.com/MKhiriev/go-todo-auth/models"
)

const msgInvalidJSON = "invalid JSON was passed"

// decode reads the JSON body into dst. On failure it answers 400, or 413 for
// an oversized body, and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := utils.DecodeJSON(w, r, dst); err != nil {
		logger.FromRequest(r).Info().Err(err).Msg(msgInvalidJSON)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeMessage(w, http.StatusBadRequest, msgInvalidJSON)
		return false
	}
	return true
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.services.AuthService.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, models.SignupResponse{UserID: user.UserID}, http.StatusCreated)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.services.AuthService.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if result.Challenge != nil {
		utils.WriteJSON(w, models.ChallengeResponse{
			TwoFactorRequired: true,
			ChallengeID:       result.Challenge.ChallengeID,
			ExpiresIn:         int64(result.Challenge.ExpiresAt.Sub(h.now()).Seconds()),
		}, http.StatusOK)
		return
	}

	utils.WriteJSON(w, result.Tokens, http.StatusOK)
}

func (h *Handler) loginCode(w http.ResponseWriter, r *http.Request) {
	var req models.LoginCodeRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.services.AuthService.VerifyLoginCode(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, pair, http.StatusOK)
}

func (h *Handler) loginBackupCode(w http.ResponseWriter, r *http.Request) {
	var req models.LoginBackupCodeRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.services.AuthService.VerifyLoginBackupCode(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, pair, http.StatusOK)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.services.AuthService.Refresh(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, pair, http.StatusOK)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.services.AuthService.Logout(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
