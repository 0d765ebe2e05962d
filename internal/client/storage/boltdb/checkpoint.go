package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/fitsync/internal/client/storage"
	"github.com/iudanet/fitsync/internal/models"
)

var _ storage.CheckpointStorage = (*Storage)(nil)

// SaveCheckpoint stores the sync checkpoint as JSON in the metadata bucket.
func (s *Storage) SaveCheckpoint(ctx context.Context, cp models.SyncCheckpoint) error {
	if s.db == nil {
		return storage.NewMediumError("write", storage.BucketMetadata, storage.KeySyncCheckpoint, storage.ErrStorageClosed)
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(storage.BucketMetadata))
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}
		return bucket.Put([]byte(storage.KeySyncCheckpoint), data)
	})
	if err != nil {
		return storage.NewMediumError("write", storage.BucketMetadata, storage.KeySyncCheckpoint, err)
	}
	return nil
}

// LoadCheckpoint returns the stored checkpoint, or a zero one before the
// first sync.
func (s *Storage) LoadCheckpoint(ctx context.Context) (models.SyncCheckpoint, error) {
	var cp models.SyncCheckpoint
	if s.db == nil {
		return cp, storage.NewMediumError("read", storage.BucketMetadata, storage.KeySyncCheckpoint, storage.ErrStorageClosed)
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(storage.BucketMetadata))
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		data := bucket.Get([]byte(storage.KeySyncCheckpoint))
		if data == nil {
			// Синхронизации ещё не было
			return nil
		}
		if err := json.Unmarshal(data, &cp); err != nil {
			return fmt.Errorf("corrupted sync checkpoint: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.SyncCheckpoint{}, storage.NewMediumError("read", storage.BucketMetadata, storage.KeySyncCheckpoint, err)
	}

	return cp, nil
}
