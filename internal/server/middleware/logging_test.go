package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger() (*slog.Logger, *strings.Builder) {
	var buf strings.Builder
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

// recordsMux повторяет маршруты записей сервера
func recordsMux(status int, body string) *http.ServeMux {
	mux := http.NewServeMux()
	h := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
	mux.HandleFunc("GET /api/v1/records/{type}/{id}", h)
	mux.HandleFunc("PUT /api/v1/records/{type}/{id}", h)
	return mux
}

func TestLoggingMiddleware_Levels(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		wantLevel string
		status    int
	}{
		{name: "stored record", method: http.MethodPut, status: http.StatusOK, wantLevel: "level=INFO"},
		{name: "missing record", method: http.MethodGet, status: http.StatusNotFound, wantLevel: "level=WARN"},
		{name: "stale version", method: http.MethodPut, status: http.StatusConflict, wantLevel: "level=WARN"},
		{name: "storage failure", method: http.MethodGet, status: http.StatusInternalServerError, wantLevel: "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger()
			handler := LoggingMiddleware(logger)(recordsMux(tt.status, "{}"))

			req := httptest.NewRequest(tt.method, "/api/v1/records/session/s-1", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			req.Header.Set("User-Agent", "fitsync/1.0")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)

			line := buf.String()
			assert.Contains(t, line, tt.wantLevel)
			assert.Contains(t, line, "method="+tt.method)
			assert.Contains(t, line, "record_type=session")
			assert.Contains(t, line, "path=/api/v1/records/session/s-1")
			assert.Contains(t, line, "remote_addr=192.168.1.1:12345")
			assert.Contains(t, line, "user_agent=fitsync/1.0")
		})
	}
}

func TestLoggingMiddleware_RouteAndSize(t *testing.T) {
	logger, buf := newBufferLogger()
	handler := LoggingMiddleware(logger)(recordsMux(http.StatusOK, `{"version":12}`))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records/checkin/c-9", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	assert.Contains(t, line, `route="GET /api/v1/records/{type}/{id}"`)
	assert.Contains(t, line, "bytes_written=14")
	assert.Contains(t, line, "status=200")
	assert.Contains(t, line, "duration_ms=")

	// Запрос мимо маршрутов
	buf.Reset()
	req = httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), "route=unmatched")
	assert.Contains(t, buf.String(), "status=404")
	assert.Contains(t, buf.String(), `record_type=""`)
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	logger, buf := newBufferLogger()
	handler := LoggingMiddleware(logger)(recordsMux(http.StatusOK, ""))

	t.Run("generated", func(t *testing.T) {
		buf.Reset()
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records/session/a", nil))

		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "request_id="+id)
	})

	t.Run("propagated from client", func(t *testing.T) {
		buf.Reset()
		clientID := uuid.New().String()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/records/session/a", nil)
		req.Header.Set(RequestIDHeader, clientID)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, clientID, w.Header().Get(RequestIDHeader))
		assert.Contains(t, buf.String(), "request_id="+clientID)
	})

	t.Run("garbage replaced", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/records/session/a", nil)
		req.Header.Set(RequestIDHeader, "x\ninjected=1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.NotEqual(t, "x\ninjected=1", w.Header().Get(RequestIDHeader))
		assert.NotContains(t, buf.String(), "injected=1")
	})
}

func TestLoggingMiddleware_DoesNotLogSecrets(t *testing.T) {
	logger, buf := newBufferLogger()
	handler := LoggingMiddleware(logger)(recordsMux(http.StatusOK, ""))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/records/session/abc", strings.NewReader(`{"payload":{"weight":81}}`))
	req.Header.Set("Authorization", "Bearer super-secret-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotContains(t, buf.String(), "super-secret-token")
	assert.NotContains(t, buf.String(), "weight")
}

func TestLoggingWithSkip(t *testing.T) {
	logger, buf := newBufferLogger()

	mux := recordsMux(http.StatusOK, "ok")
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {})
	handler := LoggingWithSkip(logger, []string{"/api/v1/health"})(mux)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, buf.String())
	assert.Empty(t, w.Header().Get(RequestIDHeader))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/records/checkin/2", nil))
	assert.Contains(t, buf.String(), "path=/api/v1/records/checkin/2")
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, levelFor(http.StatusNoContent))
	assert.Equal(t, slog.LevelInfo, levelFor(http.StatusNotModified))
	assert.Equal(t, slog.LevelWarn, levelFor(http.StatusTooManyRequests))
	assert.Equal(t, slog.LevelError, levelFor(http.StatusServiceUnavailable))
}
