package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiguidepro/internal/config"
	"aiguidepro/internal/domain"
	"aiguidepro/internal/ledger"
	"aiguidepro/internal/store"
)

type allowHosts map[string]bool

func (a allowHosts) HostAllowed(host string) bool { return a[host] }

type newsFixture struct {
	flow      *NewsFlow
	kv        *store.MemoryKV
	clock     *fakeClock
	source    *fakeSource
	generator *fakeGenerator
	posts     *ledger.Posts
}

func newNewsFixture(t *testing.T, hosts allowHosts) *newsFixture {
	t.Helper()

	kv := store.NewMemoryKV()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	source := &fakeSource{}
	generator := &fakeGenerator{}
	posts := ledger.NewPosts(kv, 50)

	flow := NewNewsFlow(NewsDeps{
		KV:        kv,
		Clock:     clock,
		Source:    source,
		Hosts:     hosts,
		Generator: generator,
		Posts:     posts,
		Config: config.News{
			Cooldown:   "24h",
			MaxPapers:  8,
			MaxPerFeed: 4,
			MaxPosts:   50,
		},
	})

	return &newsFixture{flow: flow, kv: kv, clock: clock, source: source, generator: generator, posts: posts}
}

func TestNewsFlowSynthesizesBothTypes(t *testing.T) {
	t.Parallel()

	fx := newNewsFixture(t, allowHosts{"openai.com": true})
	fx.source.papers = []domain.FeedItem{
		{ID: "p1", Title: "ورقة", Source: "arXiv", Host: "export.arxiv.org"},
	}
	fx.source.blogs = []domain.FeedItem{
		{ID: "b1", Title: "تدوينة", Source: "rss", Link: "https://openai.com/blog/x"},
	}

	fx.flow.Run(context.Background())

	// Raw pool holds papers plus allowed blogs before synthesis.
	raw := fx.posts.RawItems()
	require.Len(t, raw, 2)

	posts := fx.posts.ListPosts()
	require.Len(t, posts, 2)
	types := map[domain.PostType]int{}
	for _, p := range posts {
		types[p.Type]++
	}
	assert.Equal(t, 1, types[domain.PostTypePaper])
	assert.Equal(t, 1, types[domain.PostTypeNews])

	assert.False(t, store.GetTime(fx.kv, store.KeyNewsLastFetched).IsZero())
}

func TestNewsFlowFiltersDisallowedLinks(t *testing.T) {
	t.Parallel()

	fx := newNewsFixture(t, allowHosts{"openai.com": true})
	fx.source.blogs = []domain.FeedItem{
		{ID: "ok", Title: "مسموح", Link: "https://openai.com/a"},
		{ID: "bad", Title: "مرفوض", Link: "https://evil.example/a"},
	}

	fx.flow.Run(context.Background())

	raw := fx.posts.RawItems()
	require.Len(t, raw, 1)
	assert.Equal(t, "ok", raw[0].ID)

	require.Len(t, fx.generator.summarized, 1)
	assert.Equal(t, "ok", fx.generator.summarized[0][0].ID)
}

func TestNewsFlowUsesFallbackWhenFeedsEmpty(t *testing.T) {
	t.Parallel()

	fx := newNewsFixture(t, allowHosts{})
	fx.source.fallback = []domain.FeedItem{
		{ID: "seed-1", Title: "مدخل مُنسَّق", Source: "curated"},
	}

	fx.flow.Run(context.Background())

	// Curated entries carry no link and no host; they survive the filter.
	raw := fx.posts.RawItems()
	require.Len(t, raw, 1)
	assert.Equal(t, "seed-1", raw[0].ID)

	posts := fx.posts.ListPosts()
	require.Len(t, posts, 1)
	assert.Equal(t, domain.PostTypeNews, posts[0].Type)
}

func TestNewsFlowCooldown(t *testing.T) {
	t.Parallel()

	fx := newNewsFixture(t, allowHosts{"openai.com": true})
	fx.source.blogs = []domain.FeedItem{
		{ID: "b1", Title: "تدوينة", Link: "https://openai.com/a"},
	}

	fx.flow.Run(context.Background())
	require.Len(t, fx.generator.summarized, 1)

	fx.clock.advance(2 * time.Hour)
	fx.flow.Run(context.Background())
	assert.Len(t, fx.generator.summarized, 1)

	fx.clock.advance(23 * time.Hour)
	fx.flow.Run(context.Background())
	assert.Len(t, fx.generator.summarized, 2)
}

func TestNewsFlowKeepsRetryArmedWhenSynthesisFails(t *testing.T) {
	t.Parallel()

	fx := newNewsFixture(t, allowHosts{"openai.com": true})
	fx.source.blogs = []domain.FeedItem{
		{ID: "b1", Title: "تدوينة", Link: "https://openai.com/a"},
	}
	fx.generator.summarizeErr = errors.New("model offline")

	fx.flow.Run(context.Background())

	// Raw harvest is persisted even when synthesis fails, and the cooldown
	// slot stays clear so the next session retries.
	assert.Len(t, fx.posts.RawItems(), 1)
	assert.Empty(t, fx.posts.ListPosts())
	assert.True(t, store.GetTime(fx.kv, store.KeyNewsLastFetched).IsZero())

	// The lock window passes, the cooldown does not block, and the session
	// runs again.
	fx.clock.advance(2 * time.Minute)
	fx.generator.summarizeErr = nil
	fx.flow.Run(context.Background())
	assert.Len(t, fx.posts.ListPosts(), 1)
	assert.False(t, store.GetTime(fx.kv, store.KeyNewsLastFetched).IsZero())
}

func TestNewsFlowLockDebounce(t *testing.T) {
	t.Parallel()

	fx := newNewsFixture(t, allowHosts{"openai.com": true})
	fx.source.blogs = []domain.FeedItem{
		{ID: "b1", Title: "تدوينة", Link: "https://openai.com/a"},
	}

	fx.flow.Run(context.Background())
	fx.flow.Run(context.Background())

	assert.Len(t, fx.generator.summarized, 1)
}

func TestNewsFlowDisabled(t *testing.T) {
	t.Parallel()

	kv := store.NewMemoryKV()
	disabled := false
	flow := NewNewsFlow(NewsDeps{
		KV:     kv,
		Source: &fakeSource{},
		Posts:  ledger.NewPosts(kv, 10),
		Config: config.News{Enabled: &disabled},
	})

	flow.Run(context.Background())
	assert.True(t, store.GetTime(kv, store.KeyNewsLock).IsZero())
}
