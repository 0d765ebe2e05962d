package conflict

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/fitsync/internal/clock"
	"github.com/iudanet/fitsync/internal/models"
)

var (
	t1 = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	t2 = t1.Add(5 * time.Minute)
)

func newTestResolver(t *testing.T, overrides map[string]models.Strategy) *Resolver {
	t.Helper()
	r, err := NewResolver(clock.NewFake(t2.Add(time.Hour)), overrides)
	require.NoError(t, err)
	return r
}

func record(entityType string, version int64, updatedAt time.Time, deviceID, payload string) *models.Record {
	return &models.Record{
		UpdatedAt:  updatedAt,
		ID:         "rec-1",
		OwnerID:    "owner-1",
		EntityType: entityType,
		DeviceID:   deviceID,
		Payload:    json.RawMessage(payload),
		Version:    version,
	}
}

func changeFor(rec *models.Record, kind models.ChangeKind) *models.Change {
	return &models.Change{
		ChangeID:    "chg-1",
		Kind:        kind,
		EntityType:  rec.EntityType,
		Record:      rec,
		BaseVersion: rec.Version - 1,
	}
}

func TestResolve_RemoteNewerWins(t *testing.T) {
	r := newTestResolver(t, nil)

	local := record(models.EntityTypeSession, 3, t1, "dev-a", `{"minutes":30}`)
	remote := record(models.EntityTypeSession, 4, t2, "dev-b", `{"minutes":45}`)

	res := r.Resolve(local, remote, changeFor(local, models.ChangeUpdate))

	assert.Equal(t, models.StrategyLastWriteWins, res.Strategy)
	assert.Equal(t, models.WinnerRemote, res.Winner)
	assert.True(t, remote.Equal(res.ResolvedRecord))
	assert.Equal(t, "chg-1", res.ChangeID)
	assert.Contains(t, res.Reason, t2.Format(time.RFC3339Nano))
	assert.Contains(t, res.Reason, "remote updated_at")
}

func TestResolve_LocalNewerWins(t *testing.T) {
	r := newTestResolver(t, nil)

	local := record(models.EntityTypeSession, 3, t2, "dev-a", `{"minutes":30}`)
	remote := record(models.EntityTypeSession, 4, t1, "dev-b", `{"minutes":45}`)

	res := r.Resolve(local, remote, changeFor(local, models.ChangeUpdate))

	assert.Equal(t, models.WinnerLocal, res.Winner)
	assert.JSONEq(t, `{"minutes":30}`, string(res.ResolvedRecord.Payload))
	assert.Equal(t, int64(5), res.ResolvedRecord.Version, "resolved version supersedes remote")
	assert.Equal(t, "dev-a", res.ResolvedRecord.DeviceID)
}

func TestResolve_TieBrokenByDeviceID(t *testing.T) {
	r := newTestResolver(t, nil)

	tests := []struct {
		name   string
		local  string
		remote string
		winner models.Winner
	}{
		{name: "local device greater", local: "dev-z", remote: "dev-a", winner: models.WinnerLocal},
		{name: "remote device greater", local: "dev-a", remote: "dev-z", winner: models.WinnerRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := record(models.EntityTypePreference, 2, t1, tt.local, `{"units":"kg"}`)
			remote := record(models.EntityTypePreference, 3, t1, tt.remote, `{"units":"lb"}`)

			res := r.Resolve(local, remote, changeFor(local, models.ChangeUpdate))
			assert.Equal(t, tt.winner, res.Winner)
			assert.Contains(t, res.Reason, "tie")
		})
	}
}

func TestResolve_IsPure(t *testing.T) {
	r := newTestResolver(t, nil)

	local := record(models.EntityTypeProgress, 3, t1, "dev-a", `{"reps":5,"badges":["a"]}`)
	remote := record(models.EntityTypeProgress, 4, t2, "dev-b", `{"reps":7,"badges":["b"]}`)
	localCopy, remoteCopy := local.Clone(), remote.Clone()
	change := changeFor(local, models.ChangeUpdate)

	first := r.Resolve(local, remote, change)
	second := r.Resolve(local, remote, change)

	assert.True(t, first.ResolvedRecord.Equal(second.ResolvedRecord))
	assert.Equal(t, first.Reason, second.Reason)

	// Входные записи не изменились
	assert.True(t, local.Equal(localCopy))
	assert.True(t, remote.Equal(remoteCopy))

	// Результат не разделяет память с входами
	first.ResolvedRecord.Payload[0] = '['
	assert.True(t, remote.Equal(remoteCopy))
}

func TestResolve_FieldMergeForAdditiveTypes(t *testing.T) {
	r := newTestResolver(t, nil)

	local := record(models.EntityTypeAchievement, 3, t1, "dev-a",
		`{"unlocked":["first-run","5k"],"points":10,"meta":{"streak":2,"title":"local"},"note":"mine"}`)
	remote := record(models.EntityTypeAchievement, 4, t2, "dev-b",
		`{"unlocked":["first-run","10k"],"points":15,"meta":{"streak":1,"title":"remote"},"extra":true}`)

	res := r.Resolve(local, remote, changeFor(local, models.ChangeUpdate))

	assert.Equal(t, models.StrategyFieldMerge, res.Strategy)
	assert.Equal(t, models.WinnerMerged, res.Winner)
	assert.JSONEq(t,
		`{"unlocked":["first-run","10k","5k"],"points":25,"meta":{"streak":3,"title":"remote"},"note":"mine","extra":true}`,
		string(res.ResolvedRecord.Payload))
	assert.Equal(t, int64(5), res.ResolvedRecord.Version)
	assert.Equal(t, t2, res.ResolvedRecord.UpdatedAt)
	assert.Contains(t, res.Reason, "merged")
}

func TestResolve_FieldMergeIsCommutative(t *testing.T) {
	r := newTestResolver(t, nil)

	a := record(models.EntityTypeProgress, 3, t1, "dev-a", `{"km":2.5,"sessions":1}`)
	b := record(models.EntityTypeProgress, 3, t2, "dev-b", `{"km":1.25,"sessions":2}`)

	ab := r.Resolve(a, b, nil)
	ba := r.Resolve(b, a, nil)

	assert.JSONEq(t, `{"km":3.75,"sessions":3}`, string(ab.ResolvedRecord.Payload))
	assert.JSONEq(t, string(ab.ResolvedRecord.Payload), string(ba.ResolvedRecord.Payload))
}

func TestResolve_FieldMergeFallsBackToLWW(t *testing.T) {
	r := newTestResolver(t, nil)

	local := record(models.EntityTypeProgress, 3, t1, "dev-a", `[1,2,3]`)
	remote := record(models.EntityTypeProgress, 4, t2, "dev-b", `{"reps":7}`)

	res := r.Resolve(local, remote, changeFor(local, models.ChangeUpdate))

	assert.Equal(t, models.StrategyFieldMerge, res.Strategy)
	assert.Equal(t, models.WinnerRemote, res.Winner)
	assert.True(t, remote.Equal(res.ResolvedRecord))
	assert.Contains(t, res.Reason, "not mergeable")
}

func TestResolve_DeleteOfAdditiveUsesLWW(t *testing.T) {
	r := newTestResolver(t, nil)

	local := record(models.EntityTypeAchievement, 3, t2, "dev-a", `{"unlocked":["a"]}`)
	remote := record(models.EntityTypeAchievement, 4, t1, "dev-b", `{"unlocked":["b"]}`)

	res := r.Resolve(local, remote, changeFor(local, models.ChangeDelete))
	assert.Equal(t, models.StrategyLastWriteWins, res.Strategy)
	assert.Equal(t, models.WinnerLocal, res.Winner)
}

func TestResolve_ManualOverride(t *testing.T) {
	r := newTestResolver(t, map[string]models.Strategy{
		models.EntityTypeCheckIn: models.StrategyManual,
	})
	assert.Equal(t, models.StrategyManual, r.StrategyFor(models.EntityTypeCheckIn))
	assert.Equal(t, models.StrategyLastWriteWins, r.StrategyFor(models.EntityTypeSession))
	assert.Equal(t, models.StrategyFieldMerge, r.StrategyFor(models.EntityTypeProgress))

	// Даже более новая локальная версия не перезаписывает удалённую
	local := record(models.EntityTypeCheckIn, 3, t2, "dev-a", `{"mood":4}`)
	remote := record(models.EntityTypeCheckIn, 4, t1, "dev-b", `{"mood":2}`)

	res := r.Resolve(local, remote, changeFor(local, models.ChangeUpdate))
	assert.Equal(t, models.StrategyManual, res.Strategy)
	assert.Equal(t, models.WinnerRemote, res.Winner)
	assert.True(t, remote.Equal(res.ResolvedRecord))
	assert.True(t, local.Equal(res.LocalRecord))
}

func TestNewResolver_UnknownStrategy(t *testing.T) {
	_, err := NewResolver(clock.NewFake(t1), map[string]models.Strategy{"session": "coin-flip"})
	assert.Error(t, err)
}

func TestResolve_MissingSides(t *testing.T) {
	r := newTestResolver(t, nil)
	local := record(models.EntityTypeSession, 1, t1, "dev-a", `{}`)

	res := r.Resolve(local, nil, nil)
	assert.Equal(t, models.WinnerLocal, res.Winner)
	assert.True(t, local.Equal(res.ResolvedRecord))

	res = r.Resolve(nil, local, nil)
	assert.Equal(t, models.WinnerRemote, res.Winner)
}
