package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/iudanet/fitsync/internal/client/events"
	"github.com/iudanet/fitsync/internal/models"
)

// DrainResult summarizes one or more coalesced drain cycles.
type DrainResult struct {
	Applied   int  // изменения, подтверждённые удалённым хранилищем
	Conflicts int  // разрешённые конфликты
	Retrying  int  // изменения с запланированным повтором
	Terminal  int  // изменения, исчерпавшие бюджет попыток
	Deferred  int  // изменения, которые ещё не пора отправлять или ждут предыдущих
	Cycles    int  // выполненные циклы
	Aborted   bool // цикл прерван переходом в offline или отменой контекста
}

func (r *DrainResult) add(o DrainResult) {
	r.Applied += o.Applied
	r.Conflicts += o.Conflicts
	r.Retrying += o.Retrying
	r.Terminal += o.Terminal
	r.Deferred += o.Deferred
	r.Cycles += o.Cycles
	r.Aborted = r.Aborted || o.Aborted
}

// dispatchOutcome итог обработки одного изменения
type dispatchOutcome int

const (
	outcomeApplied dispatchOutcome = iota
	outcomeRetrying
	outcomeTerminal
	outcomeFailed // ошибка носителя: состояние сущности неизвестно
)

// Drain runs a drain cycle. If another cycle is in progress the call returns
// immediately and the running cycle performs one more pass when it finishes.
func (e *Engine) Drain(ctx context.Context) (DrainResult, error) {
	var total DrainResult

	for {
		if !e.drainMu.TryLock() {
			e.rerun.Store(true)
			// Владелец мог отпустить блокировку до того, как увидел флаг
			if !e.drainMu.TryLock() {
				return total, nil
			}
		}
		e.rerun.Store(false)

		res, err := e.drainOnce(ctx)
		e.drainMu.Unlock()

		total.add(res)
		if err != nil {
			return total, err
		}
		if !e.rerun.Load() || ctx.Err() != nil || res.Aborted {
			return total, nil
		}
	}
}

// drainOnce один проход по журналу; вызывается под drainMu
func (e *Engine) drainOnce(ctx context.Context) (DrainResult, error) {
	var res DrainResult

	if !e.IsOnline() {
		return res, nil
	}

	pending := e.log.ListByPriority()
	now := e.clock.Now()
	due := 0
	for _, c := range pending {
		if c.IsDue(now) {
			due++
		}
	}
	// Пустой журнал или нечего отправлять: цикл не начинается, события не публикуются
	if due == 0 {
		return res, nil
	}

	res.Cycles = 1
	e.setInProgress(true)
	defer e.setInProgress(false)

	e.logger.Info("Drain cycle started", "pending", len(pending), "due", due)
	e.publish(events.Event{Type: events.SyncStart, Pending: len(pending)})

	for _, group := range groupByEntity(pending) {
		if e.drainGroup(ctx, group, &res) {
			res.Aborted = true
			break
		}
	}

	remaining := e.log.Len()
	e.statusMu.Lock()
	e.status.PendingCount = remaining
	e.statusMu.Unlock()

	e.logger.Info("Drain cycle finished",
		"applied", res.Applied,
		"conflicts", res.Conflicts,
		"retrying", res.Retrying,
		"terminal", res.Terminal,
		"pending", remaining,
		"aborted", res.Aborted,
	)
	e.publish(events.Event{
		Type:    events.SyncComplete,
		Applied: res.Applied,
		Failed:  res.Retrying + res.Terminal,
		Pending: remaining,
	})

	return res, ctx.Err()
}

// drainGroup отправляет изменения одной сущности строго в порядке создания.
// Возвращает true, если цикл нужно прервать.
func (e *Engine) drainGroup(ctx context.Context, group []*models.Change, res *DrainResult) bool {
	var prev *models.Change
	var confirmed int64

	for i, c := range group {
		if ctx.Err() != nil || !e.IsOnline() {
			return true
		}
		if !c.IsDue(e.clock.Now()) {
			// Последующие изменения сущности ждут исхода этого
			res.Deferred += len(group) - i
			return false
		}

		if prev != nil {
			rebased, err := e.rebase(ctx, c, prev, confirmed)
			if err != nil {
				e.reportMediumError(c, err)
				res.Deferred += len(group) - i
				return false
			}
			c = rebased
		}

		outcome, version := e.dispatch(ctx, c, res)
		switch outcome {
		case outcomeApplied:
			prev, confirmed = c, version
		case outcomeTerminal:
			prev = nil
		case outcomeRetrying, outcomeFailed:
			res.Deferred += len(group) - i - 1
			return false
		}
	}
	return false
}

// rebase переносит следующее изменение сущности на версию, подтверждённую
// сервером для предыдущего, если разрешение конфликта сдвинуло версию.
func (e *Engine) rebase(ctx context.Context, c, prev *models.Change, confirmed int64) (*models.Change, error) {
	if prev.Record == nil || c.BaseVersion != prev.Record.Version || confirmed == prev.Record.Version {
		return c, nil
	}

	rebased := c.Clone()
	rebased.BaseVersion = confirmed
	if rebased.Kind != models.ChangeDelete {
		rebased.Record.Version = confirmed + 1
	}
	if err := e.log.Replace(ctx, rebased); err != nil {
		return nil, err
	}

	e.logger.Debug("Change rebased on confirmed version",
		"change_id", c.ChangeID,
		"base_version", confirmed,
	)
	return rebased, nil
}

// dispatch отправляет одно изменение. Возвращает исход и подтверждённую версию записи.
func (e *Engine) dispatch(ctx context.Context, c *models.Change, res *DrainResult) (dispatchOutcome, int64) {
	confirmed, err := e.apply(ctx, c)

	var conflictErr *VersionConflictError
	if errors.As(err, &conflictErr) {
		res.Conflicts++
		return e.handleConflict(ctx, c, conflictErr.Remote, res)
	}
	if err != nil {
		return e.handleFailure(ctx, c, err, res), 0
	}
	return e.complete(ctx, c, confirmed, res)
}

// apply выполняет один вызов удалённого хранилища с таймаутом
func (e *Engine) apply(ctx context.Context, c *models.Change) (*models.Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	defer cancel()

	if c.Kind == models.ChangeDelete {
		err := e.remote.Delete(callCtx, c.EntityType, c.EntityID(), c.BaseVersion)
		if errors.Is(err, ErrNotFound) {
			// Запись уже удалена - цель изменения достигнута
			return nil, nil
		}
		return nil, err
	}

	confirmed, err := e.remote.Upsert(callCtx, c.Record)
	if err == nil && confirmed == nil {
		confirmed = c.Record
	}
	return confirmed, err
}

// handleConflict разрешает конфликт версий и повторяет отправку один раз
func (e *Engine) handleConflict(ctx context.Context, c *models.Change, remote *models.Record, res *DrainResult) (dispatchOutcome, int64) {
	if remote == nil {
		return e.handleFailure(ctx, c, errors.New("version conflict without remote record"), res), 0
	}

	resolution := e.resolver.Resolve(c.Record, remote, c)
	e.trail.Append(resolution)

	e.logger.Info("Conflict resolved",
		"change_id", c.ChangeID,
		"entity_type", c.EntityType,
		"entity_id", c.EntityID(),
		"strategy", string(resolution.Strategy),
		"winner", string(resolution.Winner),
		"reason", resolution.Reason,
	)
	e.publish(events.Event{
		Type:       events.ConflictResolved,
		At:         resolution.ResolvedAt,
		ChangeID:   c.ChangeID,
		EntityType: c.EntityType,
		EntityID:   c.EntityID(),
		Resolution: &resolution,
	})

	if resolution.Winner == models.WinnerRemote {
		// Удалённая версия остаётся как есть: повторная запись не нужна
		return e.completeWithRemote(ctx, c, resolution.ResolvedRecord, res)
	}

	retry := c.Clone()
	retry.BaseVersion = remote.Version
	if c.Kind != models.ChangeDelete {
		retry.Record = resolution.ResolvedRecord.Clone()
	}
	if err := e.log.Replace(ctx, retry); err != nil {
		e.reportMediumError(c, err)
		return outcomeFailed, 0
	}

	// Немедленная повторная попытка, дальше обычный backoff
	confirmed, err := e.apply(ctx, retry)
	if err != nil {
		return e.handleFailure(ctx, retry, err, res), 0
	}
	return e.complete(ctx, retry, confirmed, res)
}

// complete удаляет подтверждённое изменение из журнала и обновляет кеш
func (e *Engine) complete(ctx context.Context, c *models.Change, confirmed *models.Record, res *DrainResult) (dispatchOutcome, int64) {
	if err := e.log.Remove(ctx, c.ChangeID); err != nil {
		e.reportMediumError(c, err)
		return outcomeFailed, 0
	}
	delete(e.notified, c.ChangeID)

	var version int64
	if confirmed != nil {
		version = confirmed.Version
	}

	e.refreshCache(ctx, c, confirmed)
	e.markSynced(ctx, e.clock.Now())
	res.Applied++

	e.logger.Debug("Change applied",
		"change_id", c.ChangeID,
		"entity_type", c.EntityType,
		"entity_id", c.EntityID(),
		"version", version,
	)
	e.publish(events.Event{
		Type:       events.ChangeApplied,
		ChangeID:   c.ChangeID,
		EntityType: c.EntityType,
		EntityID:   c.EntityID(),
		Record:     confirmed.Clone(),
	})
	return outcomeApplied, version
}

// completeWithRemote завершает изменение, уступившее удалённой версии
func (e *Engine) completeWithRemote(ctx context.Context, c *models.Change, remote *models.Record, res *DrainResult) (dispatchOutcome, int64) {
	if err := e.log.Remove(ctx, c.ChangeID); err != nil {
		e.reportMediumError(c, err)
		return outcomeFailed, 0
	}
	delete(e.notified, c.ChangeID)

	e.refreshCache(ctx, c, remote)
	e.markSynced(ctx, e.clock.Now())
	res.Applied++

	e.publish(events.Event{
		Type:       events.ChangeApplied,
		ChangeID:   c.ChangeID,
		EntityType: c.EntityType,
		EntityID:   c.EntityID(),
		Record:     remote.Clone(),
	})
	return outcomeApplied, remote.Version
}

// refreshCache кладёт в кеш подтверждённую сервером запись, если по этой
// сущности не осталось локальных изменений с более свежим оптимистичным значением
func (e *Engine) refreshCache(ctx context.Context, c *models.Change, confirmed *models.Record) {
	if e.cache == nil || e.log.HasPending(c.EntityType, c.EntityID()) {
		return
	}

	var err error
	if confirmed == nil {
		err = e.cache.InvalidateRecord(ctx, c.EntityType, c.EntityID())
	} else {
		err = e.cache.PutRecord(ctx, confirmed)
	}
	if err != nil {
		e.reportMediumError(c, fmt.Errorf("failed to refresh cache: %w", err))
	}
}

// handleFailure планирует повтор или завершает изменение терминальной ошибкой
func (e *Engine) handleFailure(ctx context.Context, c *models.Change, cause error, res *DrainResult) dispatchOutcome {
	outcome, err := e.log.MarkFailed(ctx, c.ChangeID, cause)
	if err != nil {
		e.reportMediumError(c, err)
		return outcomeFailed
	}

	if !outcome.Terminal {
		res.Retrying++
		e.logger.Warn("Change failed, retry scheduled",
			"change_id", c.ChangeID,
			"entity_type", c.EntityType,
			"retry_count", outcome.Change.RetryCount,
			"next_retry_at", outcome.NextRetryAt,
			"error", cause,
		)
		return outcomeRetrying
	}

	res.Terminal++
	terminal := &TerminalSyncError{
		ChangeID:   c.ChangeID,
		EntityType: c.EntityType,
		EntityID:   c.EntityID(),
		LastError:  outcome.Change.LastError,
		RetryCount: outcome.Change.RetryCount,
	}
	e.setLastError(terminal.Error())
	e.saveCheckpoint(ctx)
	e.logger.Error("Change failed permanently",
		"change_id", c.ChangeID,
		"entity_type", c.EntityType,
		"entity_id", c.EntityID(),
		"retry_count", terminal.RetryCount,
		"error", terminal.LastError,
	)

	// Одно уведомление на changeId
	if _, seen := e.notified[c.ChangeID]; !seen {
		e.notified[c.ChangeID] = struct{}{}
		e.publish(events.Event{
			Type:       events.SyncError,
			ChangeID:   c.ChangeID,
			EntityType: c.EntityType,
			EntityID:   c.EntityID(),
			Err:        terminal,
		})
	}
	return outcomeTerminal
}

// reportMediumError сообщает наблюдателям об ошибке локального носителя.
// Такие ошибки не повторяются, диспетчер продолжает с остальными сущностями.
func (e *Engine) reportMediumError(c *models.Change, err error) {
	e.setLastError(err.Error())
	e.logger.Error("Local storage failure during drain",
		"change_id", c.ChangeID,
		"entity_type", c.EntityType,
		"error", err,
	)
	e.publish(events.Event{
		Type:       events.SyncError,
		ChangeID:   c.ChangeID,
		EntityType: c.EntityType,
		EntityID:   c.EntityID(),
		Err:        err,
	})
}

// groupByEntity группирует изменения по записи. Группы упорядочены по первому
// появлению в приоритетном списке, изменения внутри группы по времени создания.
func groupByEntity(changes []*models.Change) [][]*models.Change {
	index := make(map[string]int)
	var groups [][]*models.Change

	for _, c := range changes {
		key := c.EntityType + "/" + c.EntityID()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], c)
	}

	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool {
			if !g[i].CreatedAt.Equal(g[j].CreatedAt) {
				return g[i].CreatedAt.Before(g[j].CreatedAt)
			}
			return g[i].Seq < g[j].Seq
		})
	}
	return groups
}
