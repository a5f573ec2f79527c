package ports

import (
	"context"
	"time"

	"aiguidepro/internal/domain"
)

// KV is the durable key-value medium backing every persisted collection and
// scalar slot. Implementations are best-effort: a missing or unreadable key
// reads as absent, and failed writes are dropped rather than surfaced, since
// the store backs a non-critical feature rather than a system of record.
type KV interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// FeedSource harvests candidate content from external feeds. All fetch
// methods degrade to an empty slice on network failures or disallowed
// hosts; callers must treat empty as "try again later", not as an error.
type FeedSource interface {
	FetchArxivRecent(ctx context.Context, max int) []domain.FeedItem
	FetchCommunityFeeds(ctx context.Context, maxPerFeed int) []domain.FeedItem
	FallbackItems() []domain.FeedItem
	FetchTopics(ctx context.Context) []string
}

// ContentGenerator produces structured course content from the external
// text-generation service.
type ContentGenerator interface {
	SuggestCourses(ctx context.Context, topicHint string, count int) ([]domain.CourseSuggestion, error)
	GenerateCourses(ctx context.Context, topics []string, countPerTopic int) ([]domain.Course, error)
	SummarizeToArabic(ctx context.Context, items []domain.FeedItem, postType domain.PostType) ([]domain.ArabicPost, error)
}

// Notifier publishes digests of engine activity to an external channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler re-runs the orchestration session on an interval; cooldowns
// still gate the actual work.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Clock abstracts time for cooldown gating so tests can advance it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }
