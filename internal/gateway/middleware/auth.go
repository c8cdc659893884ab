package middleware

import (
	"errors"
	"net/http"

	"deckshot/internal/gateway/auth"

	"go.uber.org/zap"
)

// RequireBearer verifies the bearer token and stores the user in the
// request context. A missing header is 401; a rejected token is 403.
func RequireBearer(v auth.Verifier, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r.Header.Get("Authorization"))
			if errors.Is(err, auth.ErrMissingToken) {
				http.Error(w, "Authorization header missing", http.StatusUnauthorized)
				return
			}
			if err == nil {
				user, verr := v.Verify(r.Context(), token)
				if verr == nil {
					next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
					return
				}
				err = verr
			}
			logger.Warn("token verification failed", zap.String("path", r.URL.Path), zap.Error(err))
			http.Error(w, "Unauthorized", http.StatusForbidden)
		})
	}
}
