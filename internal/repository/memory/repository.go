package memory

import (
	"sync/atomic"

	"github.com/gladiators/warstats/internal/models"
)

// Repository holds the latest published snapshot. The refresh cycle
// builds a complete snapshot and publishes it with one atomic store, so
// readers never observe a half-updated view.
type Repository struct {
	snapshot atomic.Pointer[models.Snapshot]
}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Publish(s *models.Snapshot) {
	r.snapshot.Store(s)
}

// Latest returns the most recent complete snapshot, or nil before the
// first refresh finishes.
func (r *Repository) Latest() *models.Snapshot {
	return r.snapshot.Load()
}
