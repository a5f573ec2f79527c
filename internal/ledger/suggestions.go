package ledger

import (
	"sync"

	"aiguidepro/internal/domain"
	"aiguidepro/internal/ports"
	"aiguidepro/internal/store"
)

// Suggestions owns the community suggestion collection. All mutation goes
// through this ledger as single read-modify-write operations serialized by
// the internal mutex.
type Suggestions struct {
	mu sync.Mutex
	kv ports.KV
}

// NewSuggestions binds the ledger to its persisted slot.
func NewSuggestions(kv ports.KV) *Suggestions {
	return &Suggestions{kv: kv}
}

// List returns the current suggestion pool.
func (s *Suggestions) List() []domain.CourseSuggestion {
	s.mu.Lock()
	defer s.mu.Unlock()

	return store.Load[domain.CourseSuggestion](s.kv, store.KeySuggestions)
}

// Add merges incoming suggestions by id and returns the full updated list.
// An incoming entry never downgrades an existing one: votes already cast
// are kept and a generated status never reverts.
func (s *Suggestions) Add(incoming []domain.CourseSuggestion) []domain.CourseSuggestion {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := store.Load[domain.CourseSuggestion](s.kv, store.KeySuggestions)
	byID := make(map[string]domain.CourseSuggestion, len(existing))
	for _, e := range existing {
		byID[e.ID] = e
	}

	adjusted := make([]domain.CourseSuggestion, 0, len(incoming))
	for _, in := range incoming {
		if prev, ok := byID[in.ID]; ok {
			if prev.Votes > in.Votes {
				in.Votes = prev.Votes
			}
			if prev.Status == domain.StatusGenerated {
				in.Status = domain.StatusGenerated
			}
		}
		adjusted = append(adjusted, in)
	}

	return store.MergeByID(s.kv, store.KeySuggestions, adjusted, func(v domain.CourseSuggestion) string {
		return v.ID
	})
}

// Vote increments the vote counter by delta and returns the updated list.
// Non-positive deltas and unknown ids are no-ops, not errors.
func (s *Suggestions) Vote(id string, delta int) []domain.CourseSuggestion {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := store.Load[domain.CourseSuggestion](s.kv, store.KeySuggestions)
	if delta <= 0 {
		return list
	}

	changed := false
	for i := range list {
		if list[i].ID == id {
			list[i].Votes += delta
			changed = true
			break
		}
	}
	if changed {
		store.Save(s.kv, store.KeySuggestions, list)
	}
	return list
}

// MarkGenerated transitions a suggestion to its terminal status. Repeated
// calls and unknown ids are no-ops.
func (s *Suggestions) MarkGenerated(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := store.Load[domain.CourseSuggestion](s.kv, store.KeySuggestions)
	for i := range list {
		if list[i].ID == id {
			if list[i].Status == domain.StatusGenerated {
				return
			}
			list[i].Status = domain.StatusGenerated
			store.Save(s.kv, store.KeySuggestions, list)
			return
		}
	}
}

// ClearAll removes every suggestion. Bulk maintenance only; individual
// entries are never deleted.
func (s *Suggestions) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	store.Save(s.kv, store.KeySuggestions, []domain.CourseSuggestion{})
}
