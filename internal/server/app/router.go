// Package app собирает HTTP сервер записей: хранилище, аутентификацию и middleware.
package app

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/fitsync/internal/server/handlers"
	"github.com/iudanet/fitsync/internal/server/middleware"
	"github.com/iudanet/fitsync/internal/server/storage"
)

const healthPath = "/api/v1/health"

// NewRouter регистрирует маршруты API.
// Health check открыт, записи требуют bearer-токен и ограничены по частоте
func NewRouter(
	logger *slog.Logger,
	store storage.RecordStorage,
	validator middleware.TokenValidator,
	limiter *middleware.RateLimiter,
) http.Handler {
	health := handlers.NewHealthHandler(logger, store)
	records := handlers.NewRecordsHandler(logger, store)

	protect := func(h http.HandlerFunc) http.Handler {
		limited := middleware.RateLimitMiddleware(limiter, logger)(h)
		return middleware.AuthMiddleware(logger, validator)(limited)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+healthPath, health.Health)
	mux.Handle("GET /api/v1/records/{type}/{id}", protect(records.Get))
	mux.Handle("PUT /api/v1/records/{type}/{id}", protect(records.Put))
	mux.Handle("DELETE /api/v1/records/{type}/{id}", protect(records.Delete))

	// recovery -> logging -> mux
	logged := middleware.LoggingWithSkip(logger, []string{healthPath})(mux)
	return middleware.RecoveryMiddleware(logger)(logged)
}
