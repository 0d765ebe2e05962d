package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/fitsync/internal/client/storage"
	"github.com/iudanet/fitsync/internal/models"
)

func TestStorage_ReadWriteRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Read(ctx, storage.BucketCacheEntries, "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	value := []byte("v1")
	require.NoError(t, s.Write(ctx, storage.BucketCacheEntries, "k", value))

	// Мутация исходного слайса не влияет на сохранённое значение
	value[0] = 'X'
	got, err := s.Read(ctx, storage.BucketCacheEntries, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	// И прочитанное значение тоже копия
	got[0] = 'Y'
	got, err = s.Read(ctx, storage.BucketCacheEntries, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, s.Remove(ctx, storage.BucketCacheEntries, "k"))
	require.NoError(t, s.Remove(ctx, storage.BucketCacheEntries, "k"))

	_, err = s.Read(ctx, storage.BucketCacheEntries, "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_ReadAll(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Write(ctx, storage.BucketPendingChanges, "a", []byte("1")))
	require.NoError(t, s.Write(ctx, storage.BucketPendingChanges, "b", []byte("2")))
	require.NoError(t, s.Write(ctx, storage.BucketDeviceIdentity, "identity", []byte("3")))

	all, err := s.ReadAll(ctx, storage.BucketPendingChanges)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, all)
}

func TestStorage_UnknownBucket(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.Write(ctx, "nope", "k", nil)
	assert.ErrorIs(t, err, storage.ErrMedium)
	assert.Contains(t, err.Error(), "bucket nope not found")
}

func TestStorage_Checkpoint(t *testing.T) {
	ctx := context.Background()
	s := New()

	cp, err := s.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.True(t, cp.LastSyncAt.IsZero())
	assert.Empty(t, cp.LastError)

	want := models.SyncCheckpoint{
		LastSyncAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		LastError:  "boom",
	}
	require.NoError(t, s.SaveCheckpoint(ctx, want))

	cp, err = s.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, cp)
}

func TestStorage_Closed(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())

	_, err := s.Read(ctx, storage.BucketMetadata, "k")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	_, err = s.ReadAll(ctx, storage.BucketMetadata)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	err = s.SaveCheckpoint(ctx, models.SyncCheckpoint{LastSyncAt: time.Now()})
	assert.ErrorIs(t, err, storage.ErrMedium)
}
