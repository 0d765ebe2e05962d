package cache

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/snappy"
)

// Entry is a read-only snapshot of a cache entry.
type Entry struct {
	InsertedAt     time.Time       `json:"inserted_at"`
	LastAccessedAt time.Time       `json:"last_accessed_at"`
	Key            string          `json:"key"`
	Value          json.RawMessage `json:"value"`
	AccessCount    int64           `json:"access_count"`
	SizeBytes      int64           `json:"size_bytes"`
}

// entry внутреннее представление; счетчики доступа атомарные,
// чтобы Get работал под RLock
type entry struct {
	insertedAt   time.Time
	key          string
	value        []byte
	size         int64
	seq          uint64       // порядок вставки (fifo)
	touch        atomic.Int64 // логическое время последнего обращения (lru)
	lastAccessed atomic.Int64 // unix nano
	accessCount  atomic.Int64
	dirty        atomic.Bool // статистика доступа не сохранена в носитель
}

func entrySize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}

func (e *entry) snapshot() Entry {
	return Entry{
		InsertedAt:     e.insertedAt,
		LastAccessedAt: time.Unix(0, e.lastAccessed.Load()).UTC(),
		Key:            e.key,
		Value:          append(json.RawMessage(nil), e.value...),
		AccessCount:    e.accessCount.Load(),
		SizeBytes:      e.size,
	}
}

func (e *entry) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(e.insertedAt) > ttl
}

// encodeEntry сериализует запись в JSON и сжимает snappy
func encodeEntry(e *entry) ([]byte, error) {
	data, err := json.Marshal(e.snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return snappy.Encode(nil, data), nil
}

func decodeEntry(data []byte) (*entry, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress cache entry: %w", err)
	}

	var snap Entry
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	e := &entry{
		insertedAt: snap.InsertedAt,
		key:        snap.Key,
		value:      []byte(snap.Value),
		size:       entrySize(snap.Key, snap.Value),
	}
	e.lastAccessed.Store(snap.LastAccessedAt.UnixNano())
	e.accessCount.Store(snap.AccessCount)
	return e, nil
}
