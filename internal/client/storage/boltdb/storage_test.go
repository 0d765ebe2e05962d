package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/fitsync/internal/client/storage"
)

func bucketsExist(t *testing.T, db *bbolt.DB) {
	t.Helper()
	err := db.View(func(tx *bbolt.Tx) error {
		for _, b := range storage.Buckets {
			if tx.Bucket([]byte(b)) == nil {
				return os.ErrNotExist
			}
		}
		return nil
	})
	require.NoError(t, err, "every client bucket must exist")
}

func TestNew_CreatesFileAndBuckets(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "client.db")

	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	// Файл доступен только владельцу
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	bucketsExist(t, store.db)
}

func TestNew_InvalidPath(t *testing.T) {
	// Каталог вместо файла не может быть открыт как база
	store, err := New(context.Background(), t.TempDir())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrLocked)
	assert.Nil(t, store)
}

func TestOpen_LockedByAnotherHandle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "client.db")
	ctx := context.Background()

	daemon, err := New(ctx, dbPath)
	require.NoError(t, err)
	defer func() {
		_ = daemon.Close()
	}()

	// Второй дескриптор ждет flock и сдается по таймауту
	_, err = Open(ctx, dbPath, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrLocked)
	assert.Contains(t, err.Error(), dbPath)

	// После освобождения блокировки база открывается
	require.NoError(t, daemon.Close())
	again, err := Open(ctx, dbPath, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestClose_Idempotent(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)

	require.NoError(t, store.Close())
	assert.Nil(t, store.db)
	assert.NoError(t, store.Close())
}

func TestInitBuckets_ExistingDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "client.db")

	// База, созданная без коллекций клиента (например, старой версией)
	db, err := bbolt.Open(dbPath, 0600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucket([]byte(storage.BucketMetadata))
		return err
	}))
	require.NoError(t, db.Close())

	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	defer func() {
		_ = store.Close()
	}()

	bucketsExist(t, store.db)
	// Повторная инициализация идемпотентна
	assert.NoError(t, store.initBuckets())
}

func TestStorage_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	store, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, storage.BucketPendingChanges, "chg-1", []byte(`{"a":1}`)))
	require.NoError(t, store.Close())

	// Данные должны пережить перезапуск процесса
	store, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer func() {
		_ = store.Close()
	}()

	value, err := store.Read(ctx, storage.BucketPendingChanges, "chg-1")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(value))
}
