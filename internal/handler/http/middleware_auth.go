package http

import (
	"errors"
	"net/http"

	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/service"
	"github.com/MKhiriev/go-todo-auth/internal/utils"
)

// auth requires a valid bearer access token. On success the user id is put
// into the request context under [utils.UserIDCtxKey] and added to the
// request logger.
//
// Any failure answers 401 with a WWW-Authenticate challenge; an expired
// token is reported as such so clients know to refresh.
func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromRequest(r)

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Info().Err(ErrEmptyAuthorizationHeader).Send()
			unauthorized(w, r, service.ErrUnauthenticated)
			return
		}

		tokenString, err := utils.ParseBearerToken(authHeader)
		if err != nil {
			log.Info().Err(err).Msg("malformed authorization header")
			unauthorized(w, r, service.ErrUnauthenticated)
			return
		}

		ctx := r.Context()
		userID, err := h.services.TokenService.VerifyAccess(ctx, tokenString)
		if err != nil {
			if !errors.Is(err, service.ErrTokenExpired) {
				err = service.ErrUnauthenticated
			}
			unauthorized(w, r, err)
			return
		}

		ctx = utils.WithUserID(ctx, userID)
		ctx = log.WithUserID(userID).WithContext(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeError(w, r, err)
}
