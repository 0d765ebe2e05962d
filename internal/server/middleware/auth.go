package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/fitsync/internal/server/handlers"
	"github.com/iudanet/fitsync/internal/server/jwt"
)

const authRealm = "fitsync"

// TokenValidator проверяет bearer-токен и возвращает его claims
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// AuthMiddleware requires a valid bearer token and puts its owner into the
// request context. Rejections carry a WWW-Authenticate challenge; an expired
// token is reported separately so clients know to obtain a new one.
func AuthMiddleware(logger *slog.Logger, validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				logger.Warn("Missing or malformed Authorization header", "path", r.URL.Path)
				w.Header().Set("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q", authRealm))
				writeError(w, http.StatusUnauthorized, "bearer token required")
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				reason := "invalid token"
				if errors.Is(err, gojwt.ErrTokenExpired) {
					reason = "token expired"
				}
				logger.Warn("Access token rejected", "reason", reason, "error", err)
				w.Header().Set("WWW-Authenticate",
					fmt.Sprintf("Bearer realm=%q, error=\"invalid_token\", error_description=%q", authRealm, reason))
				writeError(w, http.StatusUnauthorized, reason)
				return
			}

			next.ServeHTTP(w, r.WithContext(handlers.WithOwnerID(r.Context(), claims.OwnerID)))
		})
	}
}

// bearerToken извлекает токен из "Authorization: Bearer <token>"
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
