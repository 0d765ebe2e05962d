package storage

import "context"

// Коллекции, которые переживают перезапуск процесса.
// Каждая загружается и сохраняется независимо, транзакций между ними нет.
const (
	BucketPendingChanges = "pending_changes"
	BucketCacheEntries   = "cache_entries"
	BucketDeviceIdentity = "device_identity"
	BucketMetadata       = "metadata"
)

// Buckets lists every collection a Medium must provide.
var Buckets = []string{
	BucketPendingChanges,
	BucketCacheEntries,
	BucketDeviceIdentity,
	BucketMetadata,
}

//go:generate moq -out medium_mock.go . Medium

// Medium is the flat durable key/value medium backing the pending change log,
// the cache and the device registry.
type Medium interface {
	// Read returns the value stored under key
	// Returns ErrNotFound if the key doesn't exist
	Read(ctx context.Context, bucket, key string) ([]byte, error)

	// Write stores value under key, replacing any previous value
	Write(ctx context.Context, bucket, key string, value []byte) error

	// Remove deletes key; removing a missing key is not an error
	Remove(ctx context.Context, bucket, key string) error

	// ReadAll returns every key/value pair of the bucket
	// Used to load a collection on start
	ReadAll(ctx context.Context, bucket string) (map[string][]byte, error)
}
