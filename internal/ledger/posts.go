package ledger

import (
	"sort"
	"sync"

	"aiguidepro/internal/domain"
	"aiguidepro/internal/ports"
	"aiguidepro/internal/store"
)

// Posts owns the localized-news collections: the raw feed item pool and the
// synthesized Arabic posts. Both are bounded; items are superseded, never
// individually deleted.
type Posts struct {
	mu       sync.Mutex
	kv       ports.KV
	maxPosts int
}

// NewPosts binds the ledger to its persisted slots. maxPosts bounds both
// collections.
func NewPosts(kv ports.KV, maxPosts int) *Posts {
	if maxPosts <= 0 {
		maxPosts = 200
	}
	return &Posts{kv: kv, maxPosts: maxPosts}
}

// RawItems returns the merged feed item pool.
func (p *Posts) RawItems() []domain.FeedItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	return store.Load[domain.FeedItem](p.kv, store.KeyNewsRaw)
}

// MergeRawItems merges harvested items by id, trims the pool to its bound
// and returns it.
func (p *Posts) MergeRawItems(incoming []domain.FeedItem) []domain.FeedItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	merged := store.MergeByID(p.kv, store.KeyNewsRaw, incoming, func(v domain.FeedItem) string {
		return v.ID
	})
	if len(merged) > p.maxPosts {
		merged = merged[len(merged)-p.maxPosts:]
		store.Save(p.kv, store.KeyNewsRaw, merged)
	}
	return merged
}

// ListPosts returns the synthesized posts, newest first.
func (p *Posts) ListPosts() []domain.ArabicPost {
	p.mu.Lock()
	defer p.mu.Unlock()

	return store.Load[domain.ArabicPost](p.kv, store.KeyNewsPosts)
}

// PrependPosts adds fresh posts ahead of the stored ones, sorts newest
// first and trims to the bound.
func (p *Posts) PrependPosts(fresh []domain.ArabicPost) []domain.ArabicPost {
	if len(fresh) == 0 {
		return p.ListPosts()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	existing := store.Load[domain.ArabicPost](p.kv, store.KeyNewsPosts)
	combined := make([]domain.ArabicPost, 0, len(fresh)+len(existing))
	combined = append(combined, fresh...)
	combined = append(combined, existing...)

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].CreatedAt.After(combined[j].CreatedAt)
	})
	if len(combined) > p.maxPosts {
		combined = combined[:p.maxPosts]
	}

	store.Save(p.kv, store.KeyNewsPosts, combined)
	return combined
}
