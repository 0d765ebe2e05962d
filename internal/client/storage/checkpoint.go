package storage

import (
	"context"

	"github.com/iudanet/fitsync/internal/models"
)

// KeySyncCheckpoint ключ контрольной точки в BucketMetadata
const KeySyncCheckpoint = "sync_checkpoint"

//go:generate moq -out checkpoint_mock.go . CheckpointStorage

// CheckpointStorage persists the sync checkpoint between client runs.
type CheckpointStorage interface {
	// SaveCheckpoint replaces the stored checkpoint
	SaveCheckpoint(ctx context.Context, cp models.SyncCheckpoint) error

	// LoadCheckpoint returns the stored checkpoint,
	// or a zero checkpoint if the client never synced
	LoadCheckpoint(ctx context.Context) (models.SyncCheckpoint, error)
}
