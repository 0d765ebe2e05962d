package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/fitsync/internal/client/syncer"
	"github.com/iudanet/fitsync/internal/models"
	"github.com/iudanet/fitsync/pkg/api"
)

var testRecord = &models.Record{
	UpdatedAt:  time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	ID:         "session-1",
	OwnerID:    "owner-1",
	EntityType: models.EntityTypeSession,
	DeviceID:   "device-a",
	Payload:    json.RawMessage(`{"minutes":30}`),
	Version:    3,
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/", "token")

	assert.Equal(t, "http://localhost:8080", client.baseURL, "trailing slash is trimmed")
	assert.Equal(t, "token", client.token)
	assert.Equal(t, DefaultUserAgent, client.userAgent)
	require.NotNil(t, client.httpClient)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
}

func TestNewClient_Options(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	client := NewClient("http://localhost:8080", "", WithHTTPClient(hc), WithUserAgent("fitsync/1.2.3"))

	assert.Same(t, hc, client.httpClient)
	assert.Equal(t, "fitsync/1.2.3", client.userAgent)

	// Пустые значения не сбрасывают настройки по умолчанию
	client = NewClient("http://localhost:8080", "", WithHTTPClient(nil), WithUserAgent(""))
	assert.NotNil(t, client.httpClient)
	assert.Equal(t, DefaultUserAgent, client.userAgent)
}

func TestClient_SendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "fitsync/test", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Authorization"), "no token, no header")
		_ = json.NewEncoder(w).Encode(api.HealthResponse{Status: "ok"})
	}))
	defer server.Close()

	require.NoError(t, NewClient(server.URL, "", WithUserAgent("fitsync/test")).Check(context.Background()))
}

func TestClient_DoesNotFollowRedirects(t *testing.T) {
	var leaked bool
	elsewhere := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		leaked = true
	}))
	defer elsewhere.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, elsewhere.URL+r.URL.Path, http.StatusFound)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "secret").Fetch(context.Background(), "session", "s1")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusFound, statusErr.StatusCode)
	assert.False(t, leaked, "token must not be sent to the redirect target")
}

func TestClient_ResponseTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"payload":"`))
		_, _ = w.Write(bytes.Repeat([]byte("x"), maxResponseBytes))
		_, _ = w.Write([]byte(`"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "").Fetch(context.Background(), "session", "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

// TestClient_Upsert проверяет успешную отправку записи
func TestClient_Upsert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Проверяем метод, путь и заголовки
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/records/session/session-1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer test_token", r.Header.Get("Authorization"))

		var req api.Record
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(3), req.Version)
		assert.JSONEq(t, `{"minutes":30}`, string(req.Payload))

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(req)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test_token")

	confirmed, err := client.Upsert(context.Background(), testRecord)

	require.NoError(t, err)
	assert.True(t, testRecord.Equal(confirmed))
}

// TestClient_Upsert_Conflict проверяет преобразование 409 в конфликт версий
func TestClient_Upsert_Conflict(t *testing.T) {
	current := RecordToAPI(testRecord)
	current.Version = 9
	current.DeviceID = "device-b"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ConflictResponse{
			Error:   "version_conflict",
			Current: current,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")

	_, err := client.Upsert(context.Background(), testRecord)

	var conflictErr *syncer.VersionConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, int64(9), conflictErr.Remote.Version)
	assert.Equal(t, "device-b", conflictErr.Remote.DeviceID)
	assert.False(t, syncer.IsTransient(err))
}

// TestClient_Errors проверяет обработку ошибочных ответов
func TestClient_Errors(t *testing.T) {
	tests := []struct {
		responseBody   interface{}
		wantIs         error
		name           string
		expectedErrMsg string
		statusCode     int
		transient      bool
	}{
		{
			name:         "Not found",
			statusCode:   http.StatusNotFound,
			responseBody: api.ErrorResponse{Error: "not_found", Message: "record not found"},
			wantIs:       syncer.ErrNotFound,
		},
		{
			name:           "Conflict without current record",
			statusCode:     http.StatusConflict,
			responseBody:   api.ErrorResponse{Error: "conflict"},
			expectedErrMsg: "conflict without current record",
			transient:      true,
		},
		{
			name:           "Unauthorized",
			statusCode:     http.StatusUnauthorized,
			responseBody:   api.ErrorResponse{Error: "unauthorized", Message: "invalid token"},
			expectedErrMsg: "server error (401): invalid token",
			transient:      true,
		},
		{
			name:           "Internal server error",
			statusCode:     http.StatusInternalServerError,
			responseBody:   "Internal Server Error",
			expectedErrMsg: "request failed with status 500",
			transient:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				if errResp, ok := tt.responseBody.(api.ErrorResponse); ok {
					_ = json.NewEncoder(w).Encode(errResp)
				} else {
					_, _ = w.Write([]byte(tt.responseBody.(string)))
				}
			}))
			defer server.Close()

			client := NewClient(server.URL, "")

			_, err := client.Fetch(context.Background(), models.EntityTypeSession, "session-1")

			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.expectedErrMsg != "" {
				assert.Contains(t, err.Error(), tt.expectedErrMsg)
			}
			assert.Equal(t, tt.transient, syncer.IsTransient(err))
		})
	}
}

// TestClient_Fetch проверяет получение записи
func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/records/checkin/day%201", r.URL.EscapedPath())

		rec := RecordToAPI(testRecord)
		rec.EntityType = models.EntityTypeCheckIn
		rec.ID = "day 1"
		_ = json.NewEncoder(w).Encode(rec)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")

	rec, err := client.Fetch(context.Background(), models.EntityTypeCheckIn, "day 1")

	require.NoError(t, err)
	assert.Equal(t, "day 1", rec.ID)
	assert.Equal(t, int64(3), rec.Version)
}

// TestClient_Delete проверяет удаление с базовой версией
func TestClient_Delete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/records/session/session-1", r.URL.Path)
		assert.Equal(t, "4", r.URL.Query().Get("base_version"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")

	err := client.Delete(context.Background(), models.EntityTypeSession, "session-1", 4)

	require.NoError(t, err)
}

// TestClient_Check проверяет проверку доступности
func TestClient_Check(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		code    int
		wantErr bool
	}{
		{name: "healthy", status: "ok", code: http.StatusOK},
		{name: "degraded", status: "degraded", code: http.StatusOK, wantErr: true},
		{name: "unavailable", status: "", code: http.StatusServiceUnavailable, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/health", r.URL.Path)
				w.WriteHeader(tt.code)
				_ = json.NewEncoder(w).Encode(api.HealthResponse{Status: tt.status})
			}))
			defer server.Close()

			err := NewClient(server.URL, "").Check(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestClient_Unreachable проверяет, что сетевая ошибка считается временной
func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, "")

	_, err := client.Upsert(context.Background(), testRecord)
	require.Error(t, err)
	assert.True(t, syncer.IsTransient(err))
	assert.Error(t, client.Check(context.Background()))
}

// TestClient_ContextCancelled проверяет отмену запроса контекстом
func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Fetch(ctx, models.EntityTypeSession, "session-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
