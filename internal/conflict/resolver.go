// Package conflict reconciles divergent local and remote versions of a record
// and keeps the audit trail of every resolution.
package conflict

import (
	"fmt"

	"github.com/iudanet/fitsync/internal/clock"
	"github.com/iudanet/fitsync/internal/models"
)

// Resolver выбирает стратегию по типу сущности:
// явное переопределение, затем field-merge для аддитивных типов, иначе LWW.
// Resolve не изменяет входные записи.
type Resolver struct {
	clock     clock.Clock
	overrides map[string]strategy
}

// NewResolver creates a resolver. overrides maps entity types to a strategy
// that replaces the default choice for that type.
func NewResolver(clk clock.Clock, overrides map[string]models.Strategy) (*Resolver, error) {
	r := &Resolver{
		clock:     clk,
		overrides: make(map[string]strategy, len(overrides)),
	}

	for entityType, name := range overrides {
		s, err := strategyByName(name)
		if err != nil {
			return nil, fmt.Errorf("entity type %s: %w", entityType, err)
		}
		r.overrides[entityType] = s
	}
	return r, nil
}

func strategyByName(name models.Strategy) (strategy, error) {
	switch name {
	case models.StrategyLastWriteWins:
		return lastWriteWins{}, nil
	case models.StrategyFieldMerge:
		return fieldMerge{}, nil
	case models.StrategyManual:
		return manual{}, nil
	default:
		return nil, fmt.Errorf("unknown conflict strategy %q", name)
	}
}

// StrategyFor returns the strategy applied to records of entityType.
func (r *Resolver) StrategyFor(entityType string) models.Strategy {
	return r.strategyFor(entityType).name()
}

func (r *Resolver) strategyFor(entityType string) strategy {
	if s, ok := r.overrides[entityType]; ok {
		return s
	}
	if models.IsAdditive(entityType) {
		return fieldMerge{}
	}
	return lastWriteWins{}
}

// Resolve reconciles local (the record the change tried to write) with remote
// (the newer version held by the remote store).
//
// When the local side wins or the versions merge, the resolved record's
// Version is remote.Version+1, ready to be written back. When the remote side
// wins the resolved record equals remote.
func (r *Resolver) Resolve(local, remote *models.Record, change *models.Change) models.ConflictResolution {
	res := models.ConflictResolution{
		ResolvedAt:   r.clock.Now(),
		LocalRecord:  local.Clone(),
		RemoteRecord: remote.Clone(),
	}
	if change != nil {
		res.ChangeID = change.ChangeID
	}

	switch {
	case remote == nil && local == nil:
		res.Strategy = models.StrategyLastWriteWins
		res.Winner = models.WinnerRemote
		res.Reason = "both versions missing"
		return res
	case remote == nil:
		res.Strategy = models.StrategyLastWriteWins
		res.Winner = models.WinnerLocal
		res.ResolvedRecord = local.Clone()
		res.Reason = "remote version missing; local kept"
		return res
	case local == nil:
		res.Strategy = models.StrategyLastWriteWins
		res.Winner = models.WinnerRemote
		res.ResolvedRecord = remote.Clone()
		res.Reason = "local version missing; remote kept"
		return res
	}

	entityType := remote.EntityType
	if change != nil && change.EntityType != "" {
		entityType = change.EntityType
	}

	s := r.strategyFor(entityType)
	// Удаление не сливается по полям: либо удаляем, либо сохраняем удалённую версию
	if change != nil && change.Kind == models.ChangeDelete {
		if _, isMerge := s.(fieldMerge); isMerge {
			s = lastWriteWins{}
		}
	}

	out := s.resolve(local, remote)
	res.Strategy = s.name()
	res.Winner = out.winner
	res.ResolvedRecord = out.resolved
	res.Reason = out.reason
	return res
}
