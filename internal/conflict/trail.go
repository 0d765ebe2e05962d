package conflict

import (
	"sync"

	"github.com/iudanet/fitsync/internal/models"
)

// Trail is the append-only audit trail of conflict resolutions for the
// session. Entries are never removed or modified.
type Trail struct {
	entries []models.ConflictResolution
	mu      sync.RWMutex
}

// NewTrail creates an empty trail
func NewTrail() *Trail {
	return &Trail{}
}

// Append records a resolution.
func (t *Trail) Append(res models.ConflictResolution) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, res.Clone())
}

// All returns copies of every resolution in the order they were appended.
func (t *Trail) All() []models.ConflictResolution {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]models.ConflictResolution, len(t.entries))
	for i, res := range t.entries {
		result[i] = res.Clone()
	}
	return result
}

// ForRecord returns the resolutions that involved the given record id.
func (t *Trail) ForRecord(id string) []models.ConflictResolution {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []models.ConflictResolution
	for _, res := range t.entries {
		if (res.RemoteRecord != nil && res.RemoteRecord.ID == id) ||
			(res.LocalRecord != nil && res.LocalRecord.ID == id) {
			result = append(result, res.Clone())
		}
	}
	return result
}

// Len returns the number of recorded resolutions.
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
