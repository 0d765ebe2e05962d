package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientapi "github.com/iudanet/fitsync/internal/client/api"
	"github.com/iudanet/fitsync/internal/client/syncer"
	"github.com/iudanet/fitsync/internal/models"
	"github.com/iudanet/fitsync/internal/server/jwt"
)

const testSecret = "test-secret"

func testConfig(t *testing.T) Config {
	return Config{
		Addr:       "127.0.0.1:0",
		DBPath:     filepath.Join(t.TempDir(), "server.db"),
		JWTSecret:  testSecret,
		RateLimit:  DefaultRateLimit,
		RateWindow: DefaultRateWindow,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func issueToken(t *testing.T, ownerID string) string {
	token, err := jwt.NewService(testSecret).Issue(ownerID, time.Hour)
	require.NoError(t, err)
	return token
}

// startServer поднимает сервер на httptest и возвращает его адрес
func startServer(t *testing.T, cfg Config) string {
	srv, err := New(context.Background(), cfg, discardLogger())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.store.Close()
	})
	return ts.URL
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		modify  func(c *Config)
		name    string
		wantErr bool
	}{
		{name: "valid", modify: func(c *Config) {}},
		{name: "missing secret", modify: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "zero rate", modify: func(c *Config) { c.RateLimit = 0 }, wantErr: true},
		{name: "zero window", modify: func(c *Config) { c.RateWindow = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServer_ClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	baseURL := startServer(t, testConfig(t))

	phone := clientapi.NewClient(baseURL, issueToken(t, "owner-1"))
	laptop := clientapi.NewClient(baseURL, issueToken(t, "owner-1"))

	require.NoError(t, phone.Check(ctx))

	rec := &models.Record{
		ID:         "session-1",
		EntityType: models.EntityTypeSession,
		DeviceID:   "phone",
		Payload:    json.RawMessage(`{"reps":10}`),
		Version:    1,
		UpdatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	stored, err := phone.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", stored.OwnerID)
	assert.Equal(t, int64(1), stored.Version)

	// Второе устройство видит запись
	fetched, err := laptop.Fetch(ctx, models.EntityTypeSession, "session-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"reps":10}`, string(fetched.Payload))

	// Устаревшая версия дает конфликт с текущей записью
	stale := rec.Clone()
	stale.DeviceID = "laptop"
	_, err = laptop.Upsert(ctx, stale)
	var conflict *syncer.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	require.NotNil(t, conflict.Remote)
	assert.Equal(t, "phone", conflict.Remote.DeviceID)

	// Удаление от устаревшей версии тоже конфликтует
	next := rec.Clone()
	next.Version = 2
	_, err = phone.Upsert(ctx, next)
	require.NoError(t, err)

	err = laptop.Delete(ctx, models.EntityTypeSession, "session-1", 1)
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(2), conflict.Remote.Version)

	require.NoError(t, laptop.Delete(ctx, models.EntityTypeSession, "session-1", 2))

	_, err = phone.Fetch(ctx, models.EntityTypeSession, "session-1")
	assert.ErrorIs(t, err, syncer.ErrNotFound)
}

func TestServer_OwnerIsolation(t *testing.T) {
	ctx := context.Background()
	baseURL := startServer(t, testConfig(t))

	alice := clientapi.NewClient(baseURL, issueToken(t, "alice"))
	bob := clientapi.NewClient(baseURL, issueToken(t, "bob"))

	_, err := alice.Upsert(ctx, &models.Record{
		ID:         "pref-1",
		EntityType: models.EntityTypePreference,
		// Чужой владелец в теле игнорируется
		OwnerID: "bob",
		Payload: json.RawMessage(`{"units":"kg"}`),
		Version: 1,
	})
	require.NoError(t, err)

	_, err = bob.Fetch(ctx, models.EntityTypePreference, "pref-1")
	assert.ErrorIs(t, err, syncer.ErrNotFound)
}

func TestServer_RequiresToken(t *testing.T) {
	baseURL := startServer(t, testConfig(t))

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "no token", token: "", status: http.StatusUnauthorized},
		{name: "foreign token", token: "garbage", status: http.StatusUnauthorized},
		{name: "valid token, missing record", token: issueToken(t, "owner-1"), status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/records/session/x", nil)
			require.NoError(t, err)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer func() {
				_ = resp.Body.Close()
			}()

			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestServer_HealthIsPublic(t *testing.T) {
	baseURL := startServer(t, testConfig(t))

	// Проба доступности работает без токена
	require.NoError(t, clientapi.NewClient(baseURL, "").Check(context.Background()))
}

func TestServer_RateLimitPerOwner(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit = 2
	baseURL := startServer(t, cfg)

	client := clientapi.NewClient(baseURL, issueToken(t, "owner-1"))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.Fetch(ctx, models.EntityTypeSession, "x")
		require.ErrorIs(t, err, syncer.ErrNotFound)
	}

	_, err := client.Fetch(ctx, models.EntityTypeSession, "x")
	var statusErr *clientapi.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	srv, err := New(context.Background(), testConfig(t), discardLogger())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	baseURL := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		return clientapi.NewClient(baseURL, "").Check(context.Background()) == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}

	// Хранилище закрыто вместе с сервером
	assert.Error(t, srv.store.DB().Ping())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = ""

	_, err := New(context.Background(), cfg, discardLogger())
	require.Error(t, err)
}
