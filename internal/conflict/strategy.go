package conflict

import (
	"fmt"
	"time"

	"github.com/iudanet/fitsync/internal/models"
)

// outcome результат стратегии до оформления записи аудита
type outcome struct {
	resolved *models.Record
	winner   models.Winner
	reason   string
}

// strategy выбирает или строит итоговую запись для пары версий
type strategy interface {
	name() models.Strategy
	resolve(local, remote *models.Record) outcome
}

// lastWriteWins выбирает запись с большим UpdatedAt, при равенстве с большим DeviceID
type lastWriteWins struct{}

func (lastWriteWins) name() models.Strategy {
	return models.StrategyLastWriteWins
}

func (lastWriteWins) resolve(local, remote *models.Record) outcome {
	if local.IsNewerThan(remote) {
		resolved := local.Clone()
		resolved.Version = remote.Version + 1
		return outcome{resolved: resolved, winner: models.WinnerLocal, reason: lwwReason("local", local, remote)}
	}
	return outcome{resolved: remote.Clone(), winner: models.WinnerRemote, reason: lwwReason("remote", remote, local)}
}

func lwwReason(side string, winner, loser *models.Record) string {
	if winner.UpdatedAt.Equal(loser.UpdatedAt) {
		return fmt.Sprintf("updated_at tie at %s; %s wins by device_id %q > %q",
			formatTime(winner.UpdatedAt), side, winner.DeviceID, loser.DeviceID)
	}
	return fmt.Sprintf("%s updated_at %s is newer than %s",
		side, formatTime(winner.UpdatedAt), formatTime(loser.UpdatedAt))
}

// fieldMerge объединяет аддитивные записи: массивы объединяются, числа складываются
type fieldMerge struct{}

func (fieldMerge) name() models.Strategy {
	return models.StrategyFieldMerge
}

func (fieldMerge) resolve(local, remote *models.Record) outcome {
	base := lastWriteWins{}.resolve(local, remote)

	payload, stats, err := mergePayloads(local.Payload, remote.Payload, base.winner == models.WinnerLocal)
	if err != nil {
		// Неструктурированные данные сливать нельзя - откатываемся на LWW
		base.reason = fmt.Sprintf("payload not mergeable (%v); %s", err, base.reason)
		return base
	}

	resolved := local.Clone()
	if remote.UpdatedAt.After(resolved.UpdatedAt) {
		resolved.UpdatedAt = remote.UpdatedAt
	}
	resolved.Payload = payload
	resolved.Version = remote.Version + 1

	return outcome{
		resolved: resolved,
		winner:   models.WinnerMerged,
		reason: fmt.Sprintf("additive entity type %s merged: %d arrays unioned, %d numbers summed, %d fields taken by %s",
			local.EntityType, stats.unioned, stats.summed, stats.picked, base.winner),
	}
}

// manual сохраняет удалённую версию; локальная остаётся только в журнале аудита
type manual struct{}

func (manual) name() models.Strategy {
	return models.StrategyManual
}

func (manual) resolve(local, remote *models.Record) outcome {
	return outcome{
		resolved: remote.Clone(),
		winner:   models.WinnerRemote,
		reason: fmt.Sprintf("entity type %s requires manual resolution; remote version %d kept, local version %d preserved in audit trail",
			remote.EntityType, remote.Version, local.Version),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
