// Package changelog implements the durable pending change log: local
// mutations not yet confirmed by the remote store, surviving restarts.
package changelog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/fitsync/internal/client/storage"
	"github.com/iudanet/fitsync/internal/clock"
	"github.com/iudanet/fitsync/internal/models"
)

// Значения по умолчанию для бюджета повторов
const (
	DefaultMaxRetries = 3
	DefaultRetryBase  = time.Second
	DefaultRetryCap   = 60 * time.Second
)

// Config задает бюджет повторов и параметры backoff
type Config struct {
	RetryBase  time.Duration
	RetryCap   time.Duration
	MaxRetries int
}

// DefaultConfig returns the default retry budget.
func DefaultConfig() Config {
	return Config{
		RetryBase:  DefaultRetryBase,
		RetryCap:   DefaultRetryCap,
		MaxRetries: DefaultMaxRetries,
	}
}

// Outcome is the result of MarkFailed.
type Outcome struct {
	NextRetryAt time.Time      // время следующей попытки, если не Terminal
	Change      *models.Change // состояние изменения после неудачи
	Terminal    bool           // бюджет исчерпан, изменение удалено из журнала
}

// Log is the pending change log. Every mutation is written through to the
// medium before it becomes visible in memory.
type Log struct {
	medium  storage.Medium
	clock   clock.Clock
	logger  *slog.Logger
	entries map[string]*models.Change
	cfg     Config
	seq     int64
	mu      sync.Mutex
}

// New creates an empty log. Call Load to restore persisted changes.
func New(medium storage.Medium, clk clock.Clock, cfg Config, logger *slog.Logger) *Log {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = DefaultRetryCap
	}

	return &Log{
		medium:  medium,
		clock:   clk,
		logger:  logger,
		entries: make(map[string]*models.Change),
		cfg:     cfg,
	}
}

// Load restores the log from the medium, replacing the in-memory state.
// Entries that cannot be decoded are skipped and left on the medium.
func (l *Log) Load(ctx context.Context) error {
	raw, err := l.medium.ReadAll(ctx, storage.BucketPendingChanges)
	if err != nil {
		return fmt.Errorf("failed to load pending changes: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make(map[string]*models.Change, len(raw))
	l.seq = 0
	for key, data := range raw {
		var c models.Change
		if err := json.Unmarshal(data, &c); err != nil {
			l.logger.Warn("Skipping corrupted pending change", "change_id", key, "error", err)
			continue
		}
		if c.ChangeID == "" {
			c.ChangeID = key
		}
		l.entries[c.ChangeID] = &c
		if c.Seq > l.seq {
			l.seq = c.Seq
		}
	}

	l.logger.Info("Pending change log loaded", "count", len(l.entries))
	return nil
}

// Append validates and persists a new change.
// Missing ChangeID, CreatedAt, Priority and MaxRetries are filled in;
// RetryCount is reset. Returns a copy of the stored change.
func (l *Log) Append(ctx context.Context, change *models.Change) (*models.Change, error) {
	if change == nil {
		return nil, &models.ValidationError{Field: "change", Reason: "must not be nil"}
	}

	c := change.Clone()
	if c.ChangeID == "" {
		c.ChangeID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = l.clock.Now()
	}
	if c.Priority == "" {
		c.Priority = models.PriorityMedium
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = l.cfg.MaxRetries
	}
	if c.EntityType == "" && c.Record != nil {
		c.EntityType = c.Record.EntityType
	}
	if c.DeviceID == "" && c.Record != nil {
		c.DeviceID = c.Record.DeviceID
	}
	c.RetryCount = 0
	c.NextRetryAt = nil
	c.LastError = ""

	if err := c.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[c.ChangeID]; exists {
		return nil, &models.ValidationError{Field: "change_id", Reason: fmt.Sprintf("change %s is already queued", c.ChangeID)}
	}

	c.Seq = l.seq + 1
	if err := l.persist(ctx, c); err != nil {
		return nil, err
	}
	l.seq = c.Seq
	l.entries[c.ChangeID] = c

	l.logger.Debug("Change appended",
		"change_id", c.ChangeID,
		"entity_type", c.EntityType,
		"entity_id", c.EntityID(),
		"priority", string(c.Priority),
	)

	return c.Clone(), nil
}

// Remove deletes a change. Removing an unknown id is a no-op.
func (l *Log) Remove(ctx context.Context, changeID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.medium.Remove(ctx, storage.BucketPendingChanges, changeID); err != nil {
		return fmt.Errorf("failed to remove change %s: %w", changeID, err)
	}
	delete(l.entries, changeID)
	return nil
}

// Replace overwrites a queued change, keeping its position in the log.
func (l *Log) Replace(ctx context.Context, change *models.Change) error {
	if err := change.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, ok := l.entries[change.ChangeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChangeNotFound, change.ChangeID)
	}

	c := change.Clone()
	c.Seq = existing.Seq
	c.CreatedAt = existing.CreatedAt
	if err := l.persist(ctx, c); err != nil {
		return err
	}
	l.entries[c.ChangeID] = c
	return nil
}

// Get returns a copy of the change with the given id.
func (l *Log) Get(changeID string) (*models.Change, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.entries[changeID]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// HasPending reports whether any change for the given record is queued.
func (l *Log) HasPending(entityType, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range l.entries {
		if c.EntityType == entityType && c.EntityID() == id {
			return true
		}
	}
	return false
}

// Len returns the number of queued changes.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ListByPriority returns copies of all changes ordered high -> medium -> low,
// and by creation time within a priority tier.
func (l *Log) ListByPriority() []*models.Change {
	l.mu.Lock()
	list := make([]*models.Change, 0, len(l.entries))
	for _, c := range l.entries {
		list = append(list, c.Clone())
	}
	l.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Seq < b.Seq
	})

	return list
}

// MarkFailed records a failed dispatch attempt.
// Once RetryCount reaches MaxRetries the change is removed and the outcome is
// terminal; otherwise NextRetryAt is scheduled with exponential backoff.
func (l *Log) MarkFailed(ctx context.Context, changeID string, cause error) (Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, ok := l.entries[changeID]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrChangeNotFound, changeID)
	}

	c := existing.Clone()
	c.RetryCount++
	if cause != nil {
		c.LastError = cause.Error()
	}

	if c.RetryCount >= c.MaxRetries {
		// Бюджет исчерпан: удаляем из журнала, вызывающий обязан уведомить наблюдателей
		if err := l.medium.Remove(ctx, storage.BucketPendingChanges, changeID); err != nil {
			return Outcome{}, fmt.Errorf("failed to remove exhausted change %s: %w", changeID, err)
		}
		delete(l.entries, changeID)

		l.logger.Warn("Change exhausted retry budget",
			"change_id", changeID,
			"retry_count", c.RetryCount,
			"error", c.LastError,
		)
		return Outcome{Change: c, Terminal: true}, nil
	}

	next := l.clock.Now().Add(l.Backoff(c.RetryCount))
	c.NextRetryAt = &next
	if err := l.persist(ctx, c); err != nil {
		return Outcome{}, err
	}
	l.entries[changeID] = c

	l.logger.Debug("Change retry scheduled",
		"change_id", changeID,
		"retry_count", c.RetryCount,
		"next_retry_at", next,
	)
	return Outcome{Change: c.Clone(), NextRetryAt: next}, nil
}

// Backoff returns base * 2^retryCount, capped at the configured maximum.
func (l *Log) Backoff(retryCount int) time.Duration {
	delay := l.cfg.RetryBase
	for i := 0; i < retryCount; i++ {
		// Удвоение с проверкой на cap, чтобы не переполнить Duration
		if delay >= l.cfg.RetryCap/2 {
			return l.cfg.RetryCap
		}
		delay *= 2
	}
	if delay > l.cfg.RetryCap {
		return l.cfg.RetryCap
	}
	return delay
}

// persist записывает изменение в носитель; вызывается под l.mu
func (l *Log) persist(ctx context.Context, c *models.Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	if err := l.medium.Write(ctx, storage.BucketPendingChanges, c.ChangeID, data); err != nil {
		return fmt.Errorf("failed to persist change %s: %w", c.ChangeID, err)
	}
	return nil
}
