// Package data is the write/read facade used by the UI layer: local writes are
// applied to the cache optimistically and queued for dispatch, reads are
// served cache-first.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/iudanet/fitsync/internal/client/syncer"
	"github.com/iudanet/fitsync/internal/clock"
	"github.com/iudanet/fitsync/internal/models"
	"github.com/iudanet/fitsync/internal/validation"
)

var (
	// ErrNotFound indicates that neither the cache nor the remote store has the record
	ErrNotFound = errors.New("record not found")

	// ErrNotCached indicates a cache miss while the remote store is unreachable
	ErrNotCached = errors.New("record is not cached and the client is offline")
)

// Queue accepts local changes for dispatch. *syncer.Engine satisfies it.
type Queue interface {
	Enqueue(ctx context.Context, change *models.Change) (*models.Change, error)
	HasPending(entityType, id string) bool
	IsOnline() bool
}

// RecordCache is the subset of the local cache the facade needs.
type RecordCache interface {
	GetRecord(entityType, id string) (*models.Record, bool)
	PutRecord(ctx context.Context, rec *models.Record) error
	InvalidateRecord(ctx context.Context, entityType, id string) error
}

// Service определяет интерфейс клиентского data сервиса
type Service interface {
	// Save creates or updates a record; the write is visible to Get at once
	Save(ctx context.Context, entityType, id string, payload json.RawMessage, priority models.Priority) (*models.Record, error)

	// Delete removes a record locally and queues the remote delete
	Delete(ctx context.Context, entityType, id string, priority models.Priority) error

	// Get returns a record, cache first
	Get(ctx context.Context, entityType, id string) (*models.Record, error)
}

// Identity of the writer stamped on every local change.
type Identity struct {
	OwnerID  string
	DeviceID string
}

type service struct {
	queue    Queue
	cache    RecordCache
	remote   syncer.RemoteStore
	clock    clock.Clock
	logger   *slog.Logger
	identity Identity
}

// NewService creates a new data service. remote may be nil: cache misses are
// then reported as ErrNotCached.
func NewService(queue Queue, cache RecordCache, remote syncer.RemoteStore, clk clock.Clock, identity Identity, logger *slog.Logger) Service {
	return &service{
		queue:    queue,
		cache:    cache,
		remote:   remote,
		clock:    clk,
		logger:   logger,
		identity: identity,
	}
}

// Save records a local mutation. An empty id creates a new record.
func (s *service) Save(ctx context.Context, entityType, id string, payload json.RawMessage, priority models.Priority) (*models.Record, error) {
	entityType = strings.TrimSpace(entityType)
	if err := validation.ValidateEntityType(entityType); err != nil {
		return nil, &models.ValidationError{Field: "entity_type", Reason: err.Error()}
	}
	if !json.Valid(payload) {
		return nil, &models.ValidationError{Field: "payload", Reason: "must be valid JSON"}
	}

	// Генерируем ID если не задан
	if id == "" {
		id = uuid.New().String()
	}
	if err := validation.ValidateRecordID(id); err != nil {
		return nil, &models.ValidationError{Field: "id", Reason: err.Error()}
	}

	kind := models.ChangeCreate
	var base int64
	if current, ok := s.cache.GetRecord(entityType, id); ok {
		kind = models.ChangeUpdate
		base = current.Version
	}

	rec := &models.Record{
		UpdatedAt:  s.clock.Now().UTC(),
		ID:         id,
		OwnerID:    s.identity.OwnerID,
		EntityType: entityType,
		DeviceID:   s.identity.DeviceID,
		Payload:    payload,
		Version:    base + 1,
	}

	change, err := s.queue.Enqueue(ctx, &models.Change{
		Kind:        kind,
		EntityType:  entityType,
		Record:      rec,
		DeviceID:    s.identity.DeviceID,
		Priority:    priority,
		BaseVersion: base,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue change: %w", err)
	}

	// Оптимистичное обновление: изменение уже в журнале, ошибка кеша не критична
	if err := s.cache.PutRecord(ctx, rec); err != nil {
		s.logger.Warn("Failed to cache local write",
			"change_id", change.ChangeID,
			"entity_type", entityType,
			"entity_id", id,
			"error", err,
		)
	}

	s.logger.Debug("Local change queued",
		"change_id", change.ChangeID,
		"kind", string(kind),
		"entity_type", entityType,
		"entity_id", id,
		"version", rec.Version,
	)
	return rec.Clone(), nil
}

// Delete records a local delete. The delete is authored against the version
// the client last saw; an unknown record is deleted against version 0.
func (s *service) Delete(ctx context.Context, entityType, id string, priority models.Priority) error {
	if err := validation.ValidateKey(entityType, id); err != nil {
		return &models.ValidationError{Field: "id", Reason: err.Error()}
	}

	var base int64
	if current, ok := s.cache.GetRecord(entityType, id); ok {
		base = current.Version
	}

	change, err := s.queue.Enqueue(ctx, &models.Change{
		Kind:       models.ChangeDelete,
		EntityType: entityType,
		Record: &models.Record{
			UpdatedAt:  s.clock.Now().UTC(),
			ID:         id,
			OwnerID:    s.identity.OwnerID,
			EntityType: entityType,
			DeviceID:   s.identity.DeviceID,
			Version:    base,
		},
		DeviceID:    s.identity.DeviceID,
		Priority:    priority,
		BaseVersion: base,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue delete: %w", err)
	}

	if err := s.cache.InvalidateRecord(ctx, entityType, id); err != nil {
		s.logger.Warn("Failed to invalidate deleted record",
			"change_id", change.ChangeID,
			"entity_type", entityType,
			"entity_id", id,
			"error", err,
		)
	}
	return nil
}

// Get returns the cached record. On a miss it falls back to the remote store
// while online and caches the result.
func (s *service) Get(ctx context.Context, entityType, id string) (*models.Record, error) {
	if rec, ok := s.cache.GetRecord(entityType, id); ok {
		return rec, nil
	}

	// Промах при ожидающем изменении означает локальное удаление
	if s.queue.HasPending(entityType, id) {
		return nil, ErrNotFound
	}
	if s.remote == nil || !s.queue.IsOnline() {
		return nil, ErrNotCached
	}

	rec, err := s.remote.Fetch(ctx, entityType, id)
	if errors.Is(err, syncer.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch record: %w", err)
	}

	// За время запроса могло появиться локальное изменение
	if !s.queue.HasPending(entityType, id) {
		if err := s.cache.PutRecord(ctx, rec); err != nil {
			s.logger.Warn("Failed to cache fetched record", "entity_type", entityType, "entity_id", id, "error", err)
		}
	}
	return rec, nil
}
