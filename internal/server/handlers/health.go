package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/fitsync/pkg/api"
)

// healthCheckTimeout ограничивает проверку хранилища
const healthCheckTimeout = 2 * time.Second

// Pinger checks that a dependency can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger *slog.Logger
	store  Pinger
	now    func() time.Time
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, store Pinger) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		store:  store,
		now:    time.Now,
	}
}

// Health обрабатывает GET /api/v1/health
// Клиенты используют его как пробу доступности сервера: пока хранилище
// недоступно, сервер отвечает 503 и клиенты остаются офлайн
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status: "ok",
		Time:   h.now().UTC(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error("Storage health check failed", "error", err)
		resp.Status = "unavailable"
		sendJSON(h.logger, w, resp, http.StatusServiceUnavailable)
		return
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}
