package ledger

import (
	"sync"

	"aiguidepro/internal/domain"
	"aiguidepro/internal/ports"
	"aiguidepro/internal/store"
)

// Courses owns the generated part of the course catalog. The catalog only
// grows: there is no delete or edit operation.
type Courses struct {
	mu sync.Mutex
	kv ports.KV
}

// NewCourses binds the ledger to its persisted slot.
func NewCourses(kv ports.KV) *Courses {
	return &Courses{kv: kv}
}

// List returns the stored courses.
func (c *Courses) List() []domain.Course {
	c.mu.Lock()
	defer c.mu.Unlock()

	return store.Load[domain.Course](c.kv, store.KeyCourses)
}

// Append merges new courses by numeric id, last write wins, persists and
// returns the merged catalog.
func (c *Courses) Append(incoming []domain.Course) []domain.Course {
	c.mu.Lock()
	defer c.mu.Unlock()

	return store.MergeByID(c.kv, store.KeyCourses, incoming, func(v domain.Course) int64 {
		return v.ID
	})
}
