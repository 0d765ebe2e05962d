package storage

import (
	"context"

	"github.com/iudanet/fitsync/internal/models"
)

//go:generate moq -out records_mock.go . RecordStorage

// RecordStorage defines interface for versioned record persistence.
// Records are scoped by owner: one owner never sees another owner's records.
type RecordStorage interface {
	// GetRecord retrieves a single record.
	// Returns ErrRecordNotFound if record doesn't exist
	GetRecord(ctx context.Context, ownerID, entityType, id string) (*models.Record, error)

	// UpsertRecord stores rec if its version is greater than the stored one
	// (any positive version creates a missing record).
	// Returns *ConflictError carrying the stored record otherwise
	UpsertRecord(ctx context.Context, rec *models.Record) (*models.Record, error)

	// DeleteRecord removes the record unless it was changed since baseVersion.
	// Returns ErrRecordNotFound if record doesn't exist and *ConflictError
	// if the stored version is greater than baseVersion
	DeleteRecord(ctx context.Context, ownerID, entityType, id string, baseVersion int64) error

	// Ping reports whether the storage is able to serve requests
	Ping(ctx context.Context) error
}
