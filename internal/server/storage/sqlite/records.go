package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/fitsync/internal/models"
	"github.com/iudanet/fitsync/internal/server/storage"
)

const selectRecordQuery = `
	SELECT owner_id, entity_type, id, version, updated_at, device_id, payload
	FROM records
	WHERE owner_id = ? AND entity_type = ? AND id = ?
`

// queryer общий интерфейс *sql.DB и *sql.Tx для чтения записи
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetRecord retrieves a single record of the owner
// Returns ErrRecordNotFound if record doesn't exist
func (s *Storage) GetRecord(ctx context.Context, ownerID, entityType, id string) (*models.Record, error) {
	return getRecord(ctx, s.db, ownerID, entityType, id)
}

// UpsertRecord creates or replaces a record when its version is newer than the stored one.
// Check and write happen in one transaction, so concurrent writers of the same
// version can't both succeed.
func (s *Storage) UpsertRecord(ctx context.Context, rec *models.Record) (*models.Record, error) {
	if rec.Version <= 0 {
		return nil, fmt.Errorf("invalid record version %d", rec.Version)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := getRecord(ctx, tx, rec.OwnerID, rec.EntityType, rec.ID)
	if err != nil && !errors.Is(err, storage.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing record: %w", err)
	}

	// Сохраненная версия не старше присланной - конфликт
	if current != nil && rec.Version <= current.Version {
		return nil, &storage.ConflictError{Current: current}
	}

	query := `
		INSERT INTO records (owner_id, entity_type, id, version, updated_at, device_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, entity_type, id) DO UPDATE SET
			version = excluded.version,
			updated_at = excluded.updated_at,
			device_id = excluded.device_id,
			payload = excluded.payload
	`

	_, err = tx.ExecContext(ctx, query,
		rec.OwnerID,
		rec.EntityType,
		rec.ID,
		rec.Version,
		rec.UpdatedAt.UnixNano(),
		rec.DeviceID,
		[]byte(rec.Payload),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	stored := rec.Clone()
	stored.UpdatedAt = fromUnixNano(stored.UpdatedAt.UnixNano())
	return stored, nil
}

// DeleteRecord removes the record authored against baseVersion (hard delete)
func (s *Storage) DeleteRecord(ctx context.Context, ownerID, entityType, id string, baseVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := getRecord(ctx, tx, ownerID, entityType, id)
	if err != nil {
		return err
	}

	// Запись изменена после версии, от которой сделано удаление
	if current.Version > baseVersion {
		return &storage.ConflictError{Current: current}
	}

	query := `DELETE FROM records WHERE owner_id = ? AND entity_type = ? AND id = ?`
	if _, err := tx.ExecContext(ctx, query, ownerID, entityType, id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func getRecord(ctx context.Context, q queryer, ownerID, entityType, id string) (*models.Record, error) {
	rec := &models.Record{}
	var updatedAt int64
	var payload []byte

	err := q.QueryRowContext(ctx, selectRecordQuery, ownerID, entityType, id).Scan(
		&rec.OwnerID,
		&rec.EntityType,
		&rec.ID,
		&rec.Version,
		&updatedAt,
		&rec.DeviceID,
		&payload,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	rec.UpdatedAt = fromUnixNano(updatedAt)
	rec.Payload = payload

	return rec, nil
}

func fromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
