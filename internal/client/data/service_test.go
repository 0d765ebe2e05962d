package data

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/fitsync/internal/client/cache"
	"github.com/iudanet/fitsync/internal/client/changelog"
	"github.com/iudanet/fitsync/internal/client/storage/memory"
	"github.com/iudanet/fitsync/internal/client/syncer"
	"github.com/iudanet/fitsync/internal/clock"
	"github.com/iudanet/fitsync/internal/conflict"
	"github.com/iudanet/fitsync/internal/models"
)

var epoch = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

var testIdentity = Identity{OwnerID: "owner-1", DeviceID: "device-a"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	service Service
	engine  *syncer.Engine
	log     *changelog.Log
	cache   *cache.Cache
	clock   *clock.Fake
	remote  *syncer.RemoteStoreMock
}

func newTestEnv(t *testing.T, remote *syncer.RemoteStoreMock) *testEnv {
	t.Helper()

	medium := memory.New()
	clk := clock.NewFake(epoch)
	resolver, err := conflict.NewResolver(clk, nil)
	require.NoError(t, err)

	log := changelog.New(medium, clk, changelog.DefaultConfig(), testLogger())
	c := cache.New(medium, clk, nil, cache.DefaultConfig(), testLogger())
	engine := syncer.New(syncer.Deps{
		Remote:   remote,
		Log:      log,
		Cache:    c,
		Resolver: resolver,
		Clock:    clk,
		Logger:   testLogger(),
	}, syncer.DefaultConfig())

	var rs syncer.RemoteStore
	if remote != nil {
		rs = remote
	}

	return &testEnv{
		service: NewService(engine, c, rs, clk, testIdentity, testLogger()),
		engine:  engine,
		log:     log,
		cache:   c,
		clock:   clk,
		remote:  remote,
	}
}

func TestService_SaveCreate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	rec, err := env.service.Save(ctx, models.EntityTypeSession, "", json.RawMessage(`{"minutes":45}`), models.PriorityHigh)
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID, "id generated")
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, "owner-1", rec.OwnerID)
	assert.Equal(t, "device-a", rec.DeviceID)
	assert.Equal(t, epoch, rec.UpdatedAt)

	// Запись видна сразу, даже без сети
	got, err := env.service.Get(ctx, models.EntityTypeSession, rec.ID)
	require.NoError(t, err)
	assert.True(t, rec.Equal(got))

	pending := env.log.ListByPriority()
	require.Len(t, pending, 1)
	assert.Equal(t, models.ChangeCreate, pending[0].Kind)
	assert.Equal(t, int64(0), pending[0].BaseVersion)
	assert.Equal(t, models.PriorityHigh, pending[0].Priority)
	assert.Equal(t, "device-a", pending[0].DeviceID)
}

func TestService_SaveUpdateChainsVersions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first, err := env.service.Save(ctx, models.EntityTypeCheckIn, "day-1", json.RawMessage(`{"mood":3}`), models.PriorityMedium)
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	second, err := env.service.Save(ctx, models.EntityTypeCheckIn, "day-1", json.RawMessage(`{"mood":4}`), models.PriorityMedium)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, int64(2), second.Version)

	pending := env.log.ListByPriority()
	require.Len(t, pending, 2)
	assert.Equal(t, models.ChangeUpdate, pending[1].Kind)
	assert.Equal(t, int64(1), pending[1].BaseVersion)

	got, err := env.service.Get(ctx, models.EntityTypeCheckIn, "day-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"mood":4}`, string(got.Payload))
}

func TestService_SaveValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	tests := []struct {
		name       string
		entityType string
		payload    json.RawMessage
	}{
		{name: "empty entity type", entityType: " ", payload: json.RawMessage(`{}`)},
		{name: "invalid payload", entityType: models.EntityTypeSession, payload: json.RawMessage(`{oops`)},
		{name: "empty payload", entityType: models.EntityTypeSession, payload: nil},
		{name: "uppercase entity type", entityType: "Session", payload: json.RawMessage(`{}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.Save(ctx, tt.entityType, "id-1", tt.payload, models.PriorityLow)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}

	_, err := env.service.Save(ctx, models.EntityTypeSession, "a/b", json.RawMessage(`{}`), models.PriorityLow)
	assert.ErrorIs(t, err, models.ErrValidation, "id must fit one path segment")

	_, err = env.service.Save(ctx, models.EntityTypeSession, "id-1", json.RawMessage(`{}`), "urgent")
	assert.ErrorIs(t, err, models.ErrValidation, "unknown priority is rejected by the log")
	assert.Equal(t, 0, env.log.Len())

	_, ok := env.cache.GetRecord(models.EntityTypeSession, "id-1")
	assert.False(t, ok, "rejected write must not reach the cache")
}

func TestService_Delete(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	rec, err := env.service.Save(ctx, models.EntityTypePreference, "units", json.RawMessage(`{"metric":true}`), models.PriorityLow)
	require.NoError(t, err)

	require.NoError(t, env.service.Delete(ctx, models.EntityTypePreference, rec.ID, models.PriorityLow))

	_, err = env.service.Get(ctx, models.EntityTypePreference, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	pending := env.log.ListByPriority()
	require.Len(t, pending, 2)
	assert.Equal(t, models.ChangeDelete, pending[1].Kind)
	assert.Equal(t, int64(1), pending[1].BaseVersion)

	assert.ErrorIs(t, env.service.Delete(ctx, "", "x", models.PriorityLow), models.ErrValidation)
}

func TestService_GetOfflineMiss(t *testing.T) {
	env := newTestEnv(t, &syncer.RemoteStoreMock{})

	_, err := env.service.Get(context.Background(), models.EntityTypeSession, "unknown")
	assert.ErrorIs(t, err, ErrNotCached)
	assert.Empty(t, env.remote.FetchCalls())
}

func TestService_GetFetchesRemoteWhenOnline(t *testing.T) {
	remoteRec := &models.Record{
		UpdatedAt:  epoch.Add(-time.Hour),
		ID:         "session-9",
		OwnerID:    "owner-1",
		EntityType: models.EntityTypeSession,
		DeviceID:   "device-b",
		Payload:    json.RawMessage(`{"minutes":20}`),
		Version:    7,
	}
	remote := &syncer.RemoteStoreMock{
		FetchFunc: func(ctx context.Context, entityType, id string) (*models.Record, error) {
			if id == remoteRec.ID {
				return remoteRec.Clone(), nil
			}
			return nil, syncer.ErrNotFound
		},
	}
	env := newTestEnv(t, remote)
	env.engine.OnOnline()
	ctx := context.Background()

	got, err := env.service.Get(ctx, models.EntityTypeSession, "session-9")
	require.NoError(t, err)
	assert.True(t, remoteRec.Equal(got))

	// Повторное чтение обслуживается кешем
	_, err = env.service.Get(ctx, models.EntityTypeSession, "session-9")
	require.NoError(t, err)
	assert.Len(t, remote.FetchCalls(), 1)

	// Следующая локальная запись строится от серверной версии
	updated, err := env.service.Save(ctx, models.EntityTypeSession, "session-9", json.RawMessage(`{"minutes":25}`), models.PriorityLow)
	require.NoError(t, err)
	assert.Equal(t, int64(8), updated.Version)

	_, err = env.service.Get(ctx, models.EntityTypeSession, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_GetRemoteFailure(t *testing.T) {
	remote := &syncer.RemoteStoreMock{
		FetchFunc: func(ctx context.Context, entityType, id string) (*models.Record, error) {
			return nil, errors.New("502 bad gateway")
		},
	}
	env := newTestEnv(t, remote)
	env.engine.OnOnline()

	_, err := env.service.Get(context.Background(), models.EntityTypeSession, "session-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "502")
}

func TestService_WriteThenSync(t *testing.T) {
	remote := &syncer.RemoteStoreMock{
		UpsertFunc: func(ctx context.Context, rec *models.Record) (*models.Record, error) {
			return rec.Clone(), nil
		},
	}
	env := newTestEnv(t, remote)
	ctx := context.Background()

	rec, err := env.service.Save(ctx, models.EntityTypeAchievement, "first-5k", json.RawMessage(`{"unlocked":["5k"]}`), models.PriorityHigh)
	require.NoError(t, err)

	env.engine.OnOnline()
	res, err := env.engine.ForceSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	calls := remote.UpsertCalls()
	require.Len(t, calls, 1)
	assert.True(t, rec.Equal(calls[0].Rec))
	assert.Equal(t, 0, env.log.Len())

	got, err := env.service.Get(ctx, models.EntityTypeAchievement, "first-5k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
}
