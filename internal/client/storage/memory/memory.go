// Package memory implements the client storage medium in process memory.
// Useful for tests and for running without a database file.
package memory

import (
	"context"
	"sync"

	"github.com/iudanet/fitsync/internal/client/storage"
	"github.com/iudanet/fitsync/internal/models"
)

var (
	_ storage.Medium            = (*Storage)(nil)
	_ storage.CheckpointStorage = (*Storage)(nil)
)

// Storage хранит buckets в map, значения копируются на входе и выходе
type Storage struct {
	checkpoint models.SyncCheckpoint
	buckets    map[string]map[string][]byte
	mu         sync.RWMutex
	closed     bool
}

// New creates an empty in-memory storage with every client bucket.
func New() *Storage {
	buckets := make(map[string]map[string][]byte, len(storage.Buckets))
	for _, name := range storage.Buckets {
		buckets[name] = make(map[string][]byte)
	}
	return &Storage{buckets: buckets}
}

// Close marks the storage closed; further calls fail with ErrStorageClosed.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Storage) bucketLocked(op, bucket, key string) (map[string][]byte, error) {
	if s.closed {
		return nil, storage.NewMediumError(op, bucket, key, storage.ErrStorageClosed)
	}
	b, ok := s.buckets[bucket]
	if !ok {
		return nil, storage.NewMediumError(op, bucket, key, errBucketNotFound(bucket))
	}
	return b, nil
}

func (s *Storage) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.bucketLocked("read", bucket, key)
	if err != nil {
		return nil, err
	}
	value, ok := b[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *Storage) Write(ctx context.Context, bucket, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucketLocked("write", bucket, key)
	if err != nil {
		return err
	}
	b[key] = append([]byte(nil), value...)
	return nil
}

func (s *Storage) Remove(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucketLocked("remove", bucket, key)
	if err != nil {
		return err
	}
	delete(b, key)
	return nil
}

func (s *Storage) ReadAll(ctx context.Context, bucket string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.bucketLocked("read_all", bucket, "")
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(b))
	for k, v := range b {
		result[k] = append([]byte(nil), v...)
	}
	return result, nil
}

// SaveCheckpoint replaces the stored sync checkpoint.
func (s *Storage) SaveCheckpoint(ctx context.Context, cp models.SyncCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.NewMediumError("write", storage.BucketMetadata, storage.KeySyncCheckpoint, storage.ErrStorageClosed)
	}
	s.checkpoint = cp
	return nil
}

// LoadCheckpoint returns the stored sync checkpoint.
func (s *Storage) LoadCheckpoint(ctx context.Context) (models.SyncCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return models.SyncCheckpoint{}, storage.NewMediumError("read", storage.BucketMetadata, storage.KeySyncCheckpoint, storage.ErrStorageClosed)
	}
	return s.checkpoint, nil
}

type errBucketNotFound string

func (e errBucketNotFound) Error() string {
	return "bucket " + string(e) + " not found"
}
