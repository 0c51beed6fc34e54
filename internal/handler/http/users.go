package http

import (
	"net/http"

	"github.com/MKhiriev/go-todo-auth/internal/service"
	"github.com/MKhiriev/go-todo-auth/internal/utils"
	"github.com/MKhiriev/go-todo-auth/models"
)

// userID returns the id stored by the auth middleware. Routes in this file
// are only mounted behind it, so a miss answers 401.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, service.ErrUnauthenticated)
	}
	return id, ok
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	profile, err := h.services.AuthService.Profile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, profile, http.StatusOK)
}

func (h *Handler) updateEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req models.UpdateEmailRequest
	if !decode(w, r, &req) {
		return
	}

	profile, err := h.services.AuthService.UpdateEmail(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, profile, http.StatusOK)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.services.AuthService.ChangePassword(r.Context(), id, req); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableTwoFactor(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req models.EnableTwoFactorRequest
	if !decode(w, r, &req) {
		return
	}

	enrollment, err := h.services.AuthService.EnableTwoFactor(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, enrollment, http.StatusOK)
}

func (h *Handler) confirmTwoFactor(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req models.TwoFactorCodeRequest
	if !decode(w, r, &req) {
		return
	}

	codes, err := h.services.AuthService.ConfirmTwoFactor(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, models.TwoFactorStatusResponse{TwoFactorEnabled: true, BackupCodes: codes}, http.StatusOK)
}

func (h *Handler) disableTwoFactor(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req models.DisableTwoFactorRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.services.AuthService.DisableTwoFactor(r.Context(), id, req); err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, models.TwoFactorStatusResponse{TwoFactorEnabled: false}, http.StatusOK)
}

func (h *Handler) regenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req models.TwoFactorCodeRequest
	if !decode(w, r, &req) {
		return
	}

	codes, err := h.services.AuthService.RegenerateBackupCodes(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, models.BackupCodesResponse{BackupCodes: codes}, http.StatusOK)
}
