package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/iudanet/fitsync/internal/server/handlers"
)

// headerTracker запоминает, начал ли обработчик ответ
type headerTracker struct {
	http.ResponseWriter
	started bool
}

func (t *headerTracker) WriteHeader(code int) {
	t.started = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *headerTracker) Write(b []byte) (int, error) {
	t.started = true
	return t.ResponseWriter.Write(b)
}

// RecoveryMiddleware turns a handler panic into a 500 api.ErrorResponse and
// logs the stack. If the handler had already started the response, the
// connection is aborted instead: appending an error to a partially written
// record would hand the client a corrupt body with a success status.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracker := &headerTracker{ResponseWriter: w}

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				ownerID, _ := handlers.GetOwnerID(r.Context())
				logger.Error("Panic recovered",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"owner_id", ownerID,
					"response_started", tracker.started,
					"stack", string(debug.Stack()),
				)

				if tracker.started {
					panic(http.ErrAbortHandler)
				}
				// Детали паники клиенту не раскрываем
				writeError(w, http.StatusInternalServerError, "")
			}()

			next.ServeHTTP(tracker, r)
		})
	}
}
