package boltdb

import (
	"context"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/fitsync/internal/client/storage"
)

var _ storage.Medium = (*Storage)(nil)

// Read returns the value stored under key in bucket
func (s *Storage) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	if s.db == nil {
		return nil, storage.NewMediumError("read", bucket, key, storage.ErrStorageClosed)
	}

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}

		data := b.Get([]byte(key))
		if data == nil {
			return storage.ErrNotFound
		}

		// Слайс из bbolt валиден только внутри транзакции - копируем
		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})

	if errors.Is(err, storage.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.NewMediumError("read", bucket, key, err)
	}

	return value, nil
}

// Write stores value under key in bucket
func (s *Storage) Write(ctx context.Context, bucket, key string, value []byte) error {
	if s.db == nil {
		return storage.NewMediumError("write", bucket, key, storage.ErrStorageClosed)
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}

		if err := b.Put([]byte(key), value); err != nil {
			return fmt.Errorf("failed to put value: %w", err)
		}
		return nil
	})

	if err != nil {
		return storage.NewMediumError("write", bucket, key, err)
	}
	return nil
}

// Remove deletes key from bucket; a missing key is not an error
func (s *Storage) Remove(ctx context.Context, bucket, key string) error {
	if s.db == nil {
		return storage.NewMediumError("remove", bucket, key, storage.ErrStorageClosed)
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}

		// Delete для отсутствующего ключа возвращает nil
		if err := b.Delete([]byte(key)); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}
		return nil
	})

	if err != nil {
		return storage.NewMediumError("remove", bucket, key, err)
	}
	return nil
}

// ReadAll returns every key/value pair of bucket
func (s *Storage) ReadAll(ctx context.Context, bucket string) (map[string][]byte, error) {
	if s.db == nil {
		return nil, storage.NewMediumError("read_all", bucket, "", storage.ErrStorageClosed)
	}

	result := make(map[string][]byte)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}

		return b.ForEach(func(k, v []byte) error {
			value := make([]byte, len(v))
			copy(value, v)
			result[string(k)] = value
			return nil
		})
	})

	if err != nil {
		return nil, storage.NewMediumError("read_all", bucket, "", err)
	}

	return result, nil
}
