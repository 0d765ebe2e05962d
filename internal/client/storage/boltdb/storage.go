// Package boltdb implements the durable client storage medium on bbolt.
package boltdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	bolterrors "go.etcd.io/bbolt/errors"

	"github.com/iudanet/fitsync/internal/client/storage"
)

// DefaultOpenTimeout ограничивает ожидание file lock, если база занята
// другим процессом (например, запущенным `fitsync run`)
const DefaultOpenTimeout = 2 * time.Second

// Storage is the bbolt-backed medium: one bucket per client collection.
type Storage struct {
	db *bbolt.DB
}

// New opens the database at dbPath with DefaultOpenTimeout.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	return Open(ctx, dbPath, DefaultOpenTimeout)
}

// Open opens (or creates) the database at dbPath and makes sure every client
// bucket exists. It returns storage.ErrLocked if the file lock is not
// acquired within lockTimeout.
func Open(ctx context.Context, dbPath string, lockTimeout time.Duration) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: lockTimeout})
	if errors.Is(err, bolterrors.ErrTimeout) {
		return nil, fmt.Errorf("%s: %w", dbPath, storage.ErrLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close releases the file lock. Repeated calls are no-ops.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает недостающие buckets коллекций
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range storage.Buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}
