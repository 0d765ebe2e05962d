package syncer

import (
	"context"

	"github.com/iudanet/fitsync/internal/models"
)

//go:generate moq -out remote_mock.go . RemoteStore

// RemoteStore is the persistent remote store as seen by the engine.
// Every call is idempotent from the engine's perspective and safe to retry.
type RemoteStore interface {
	// Fetch returns the current remote version of a record
	// Returns ErrNotFound if the record doesn't exist
	Fetch(ctx context.Context, entityType, id string) (*models.Record, error)

	// Upsert writes rec if rec.Version is greater than the stored version
	// Returns *VersionConflictError carrying the stored record otherwise
	Upsert(ctx context.Context, rec *models.Record) (*models.Record, error)

	// Delete removes a record authored against baseVersion
	// Returns *VersionConflictError if the stored version is newer, ErrNotFound if absent
	Delete(ctx context.Context, entityType, id string, baseVersion int64) error
}
