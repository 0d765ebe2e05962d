package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/fitsync/internal/server/storage"
	"github.com/iudanet/fitsync/pkg/api"
)

func TestHealthHandler_Health(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		pingErr    error
		name       string
		wantStatus string
		wantCode   int
	}{
		{name: "storage ok", wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "storage down", pingErr: errors.New("database is closed"), wantCode: http.StatusServiceUnavailable, wantStatus: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &storage.RecordStorageMock{
				PingFunc: func(ctx context.Context) error {
					_, hasDeadline := ctx.Deadline()
					assert.True(t, hasDeadline, "ping must be bounded")
					return tt.pingErr
				},
			}
			handler := NewHealthHandler(setupTestLogger(), mock)
			handler.now = func() time.Time { return fixed }

			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			w := httptest.NewRecorder()

			handler.Health(w, req)

			resp := w.Result()
			defer func() {
				err := resp.Body.Close()
				assert.NoError(t, err)
			}()

			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var healthResp api.HealthResponse
			err := json.NewDecoder(resp.Body).Decode(&healthResp)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, healthResp.Status)
			assert.True(t, fixed.Equal(healthResp.Time))
			assert.Len(t, mock.PingCalls(), 1)
		})
	}
}
