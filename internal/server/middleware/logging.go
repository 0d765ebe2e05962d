package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader связывает запись access-лога с ответом клиенту
const RequestIDHeader = "X-Request-ID"

// statusRecorder запоминает статус и размер ответа для access-лога
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

// LoggingMiddleware writes one access-log line per request.
//
// Record ids are logged only as part of the path; headers and bodies
// (bearer tokens, record payloads) never reach the log.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := requestIDOf(r)
			w.Header().Set(RequestIDHeader, requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.Log(r.Context(), levelFor(rec.status), "HTTP request",
				"request_id", requestID,
				"method", r.Method,
				"route", routeOf(r),
				"record_type", r.PathValue("type"),
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes_written", rec.bytes,
			)
		})
	}
}

// requestIDOf берет идентификатор клиента, если он похож на UUID, иначе выдает новый
func requestIDOf(r *http.Request) string {
	if id, err := uuid.Parse(r.Header.Get(RequestIDHeader)); err == nil {
		return id.String()
	}
	return uuid.New().String()
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// routeOf возвращает шаблон ServeMux, по которому прошел запрос
func routeOf(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}

// LoggingWithSkip не пишет access-лог для skipPaths.
// Клиенты опрашивают health check каждые несколько секунд
func LoggingWithSkip(logger *slog.Logger, skipPaths []string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		logged := LoggingMiddleware(logger)(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			logged.ServeHTTP(w, r)
		})
	}
}
