package orchestrator

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"aiguidepro/internal/config"
	"aiguidepro/internal/domain"
	"aiguidepro/internal/ledger"
	"aiguidepro/internal/ports"
	"aiguidepro/internal/store"
)

// Allowed-host lookup used by the news flow for post-harvest filtering.
type hostChecker interface {
	HostAllowed(host string) bool
}

// NewsFlow refreshes the localized-news collections daily: harvest papers
// and community items, merge the raw pool, synthesize Arabic posts.
type NewsFlow struct {
	kv          ports.KV
	clock       ports.Clock
	source      ports.FeedSource
	hosts       hostChecker
	generator   ports.ContentGenerator
	posts       *ledger.Posts
	cfg         config.News
	lockWindow  time.Duration
	callTimeout time.Duration
	logger      *slog.Logger
	group       singleflight.Group
}

// NewsDeps wires collaborators into the flow. Clock defaults to the system
// clock; Hosts is optional.
type NewsDeps struct {
	KV          ports.KV
	Clock       ports.Clock
	Source      ports.FeedSource
	Hosts       hostChecker
	Generator   ports.ContentGenerator
	Posts       *ledger.Posts
	Config      config.News
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// NewNewsFlow constructs the flow from its dependencies.
func NewNewsFlow(deps NewsDeps) *NewsFlow {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.CallTimeout <= 0 {
		deps.CallTimeout = 20 * time.Second
	}
	return &NewsFlow{
		kv:          deps.KV,
		clock:       deps.Clock,
		source:      deps.Source,
		hosts:       deps.Hosts,
		generator:   deps.Generator,
		posts:       deps.Posts,
		cfg:         deps.Config,
		lockWindow:  time.Minute,
		callTimeout: deps.CallTimeout,
		logger:      deps.Logger,
	}
}

// Run executes one news refresh session, debounced by its own lock slot
// and gated by the daily cooldown.
func (f *NewsFlow) Run(ctx context.Context) {
	if !f.cfg.IsEnabled() {
		return
	}

	_, _, _ = f.group.Do("arabic-news", func() (interface{}, error) {
		now := f.clock.Now()
		if now.Sub(store.GetTime(f.kv, store.KeyNewsLock)) < f.lockWindow {
			return nil, nil
		}
		store.SetTime(f.kv, store.KeyNewsLock, now)

		if now.Sub(store.GetTime(f.kv, store.KeyNewsLastFetched)) <= f.cfg.CooldownDuration() {
			return nil, nil
		}

		f.refresh(ctx)
		return nil, nil
	})
}

func (f *NewsFlow) refresh(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	papers := f.source.FetchArxivRecent(callCtx, f.cfg.MaxPapers)
	cancel()

	callCtx, cancel = context.WithTimeout(ctx, f.callTimeout)
	blogs := f.source.FetchCommunityFeeds(callCtx, f.cfg.MaxPerFeed)
	cancel()
	if len(blogs) == 0 {
		blogs = f.source.FallbackItems()
	}

	safeBlogs := f.filterAllowed(blogs)

	// Merge the raw pool before synthesis so attribution targets exist even
	// if a later step fails.
	raw := make([]domain.FeedItem, 0, len(papers)+len(safeBlogs))
	raw = append(raw, papers...)
	raw = append(raw, safeBlogs...)
	f.posts.MergeRawItems(raw)

	paperPosts := f.summarize(ctx, capItems(papers, 4), domain.PostTypePaper)
	newsPosts := f.summarize(ctx, capItems(safeBlogs, 6), domain.PostTypeNews)

	if len(paperPosts)+len(newsPosts) > 0 {
		fresh := append(paperPosts, newsPosts...)
		f.posts.PrependPosts(fresh)
		store.SetTime(f.kv, store.KeyNewsLastFetched, f.clock.Now())
		f.debug("news refreshed", "papers", len(paperPosts), "news", len(newsPosts))
		return
	}

	// Nothing produced: leave the timestamp untouched so the next
	// invocation retries.
	f.debug("news refresh produced no posts")
}

func (f *NewsFlow) summarize(ctx context.Context, items []domain.FeedItem, postType domain.PostType) []domain.ArabicPost {
	if len(items) == 0 {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	posts, err := f.generator.SummarizeToArabic(callCtx, items, postType)
	if err != nil {
		f.warn("summarize failed", "type", postType, "error", err)
		return nil
	}
	return posts
}

// filterAllowed drops items that neither link to nor originate from an
// allow-listed host.
func (f *NewsFlow) filterAllowed(items []domain.FeedItem) []domain.FeedItem {
	if f.hosts == nil {
		return items
	}

	out := make([]domain.FeedItem, 0, len(items))
	for _, it := range items {
		if it.Link == "" {
			if it.Host != "" && f.hosts.HostAllowed(it.Host) {
				out = append(out, it)
			} else if it.Host == "" && it.Source != "" {
				// Curated fallback entries carry no link on purpose.
				out = append(out, it)
			}
			continue
		}
		parsed, err := url.Parse(it.Link)
		if err != nil {
			continue
		}
		if f.hosts.HostAllowed(parsed.Host) {
			out = append(out, it)
		}
	}
	return out
}

func capItems(items []domain.FeedItem, max int) []domain.FeedItem {
	if len(items) > max {
		return items[:max]
	}
	return items
}

func (f *NewsFlow) debug(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

func (f *NewsFlow) warn(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
