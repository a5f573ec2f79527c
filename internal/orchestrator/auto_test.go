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

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeSource struct {
	topics   []string
	papers   []domain.FeedItem
	blogs    []domain.FeedItem
	fallback []domain.FeedItem
}

func (s *fakeSource) FetchArxivRecent(ctx context.Context, max int) []domain.FeedItem {
	if len(s.papers) > max {
		return s.papers[:max]
	}
	return s.papers
}

func (s *fakeSource) FetchCommunityFeeds(ctx context.Context, maxPerFeed int) []domain.FeedItem {
	return s.blogs
}

func (s *fakeSource) FallbackItems() []domain.FeedItem { return s.fallback }

func (s *fakeSource) FetchTopics(ctx context.Context) []string { return s.topics }

type fakeGenerator struct {
	suggestions    []domain.CourseSuggestion
	suggestCalls   int
	generateCalls  []string
	failTitles     map[string]bool
	nextID         int64
	summarized     [][]domain.FeedItem
	summarizeErr   error
	summarizeEmpty bool
}

func (g *fakeGenerator) SuggestCourses(ctx context.Context, topicHint string, count int) ([]domain.CourseSuggestion, error) {
	g.suggestCalls++
	return g.suggestions, nil
}

func (g *fakeGenerator) GenerateCourses(ctx context.Context, topics []string, countPerTopic int) ([]domain.Course, error) {
	g.generateCalls = append(g.generateCalls, topics[0])
	if g.failTitles[topics[0]] {
		return nil, errors.New("generation unavailable")
	}
	g.nextID++
	return []domain.Course{{
		ID:     g.nextID,
		Title:  topics[0],
		Level:  "تأسيسي",
		Source: domain.SourceGenerated,
	}}, nil
}

func (g *fakeGenerator) SummarizeToArabic(ctx context.Context, items []domain.FeedItem, postType domain.PostType) ([]domain.ArabicPost, error) {
	g.summarized = append(g.summarized, items)
	if g.summarizeErr != nil {
		return nil, g.summarizeErr
	}
	if g.summarizeEmpty {
		return nil, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return []domain.ArabicPost{{
		ID:          "post-" + ids[0],
		Title:       "ملخص",
		Type:        postType,
		OriginalIDs: ids,
	}}, nil
}

type fakeNotifier struct {
	digests []string
}

func (n *fakeNotifier) PublishDigest(ctx context.Context, digest string) error {
	n.digests = append(n.digests, digest)
	return nil
}

type autoFixture struct {
	flow        *AutoCourseFlow
	kv          *store.MemoryKV
	clock       *fakeClock
	generator   *fakeGenerator
	notifier    *fakeNotifier
	suggestions *ledger.Suggestions
	courses     *ledger.Courses
}

func newAutoFixture(t *testing.T, cfg config.Auto) *autoFixture {
	t.Helper()

	kv := store.NewMemoryKV()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	generator := &fakeGenerator{}
	notifier := &fakeNotifier{}
	suggestions := ledger.NewSuggestions(kv)
	courses := ledger.NewCourses(kv)

	flow := NewAutoCourseFlow(AutoCourseDeps{
		KV:          kv,
		Clock:       clock,
		Source:      &fakeSource{topics: []string{"وكلاء الذكاء الاصطناعي"}},
		Generator:   generator,
		Suggestions: suggestions,
		Courses:     courses,
		Notifier:    notifier,
		Config:      cfg,
	})

	return &autoFixture{
		flow:        flow,
		kv:          kv,
		clock:       clock,
		generator:   generator,
		notifier:    notifier,
		suggestions: suggestions,
		courses:     courses,
	}
}

func defaultAutoConfig() config.Auto {
	return config.Auto{
		SuggestionCooldown: "24h",
		GenerationCooldown: "168h",
		LockWindow:         "1m",
		MaxPerWindow:       2,
		SuggestionCount:    6,
	}
}

// seedSuggestion puts a suggestion with the given votes into the pool without
// touching the cooldown slots.
func (f *autoFixture) seedSuggestion(id, title string, votes int) {
	f.suggestions.Add([]domain.CourseSuggestion{{
		ID:        id,
		Title:     title,
		Status:    domain.StatusSuggested,
		CreatedAt: f.clock.now,
	}})
	if votes > 0 {
		f.suggestions.Vote(id, votes)
	}
}

// freezeSuggestionBranch marks the suggestion cooldown as just satisfied so a
// session exercises only the promotion branch.
func (f *autoFixture) freezeSuggestionBranch() {
	store.SetTime(f.kv, store.KeyLastSuggestion, f.clock.now)
}

func TestAutoFlowFirstSessionRefreshesPool(t *testing.T) {
	t.Parallel()

	fx := newAutoFixture(t, defaultAutoConfig())
	fx.generator.suggestions = []domain.CourseSuggestion{
		{ID: "s1", Title: "مقدمة في الوكلاء", Status: domain.StatusSuggested},
	}

	fx.flow.Run(context.Background())

	assert.Equal(t, 1, fx.generator.suggestCalls)
	require.Len(t, fx.suggestions.List(), 1)

	// No votes yet, so nothing is promoted and the generation window stays
	// armed for the next session.
	assert.Empty(t, fx.generator.generateCalls)
	assert.True(t, store.GetTime(fx.kv, store.KeyLastGeneration).IsZero())
	assert.False(t, store.GetTime(fx.kv, store.KeyLastSuggestion).IsZero())
}

func TestAutoFlowSuggestionCooldown(t *testing.T) {
	t.Parallel()

	fx := newAutoFixture(t, defaultAutoConfig())
	fx.flow.Run(context.Background())
	require.Equal(t, 1, fx.generator.suggestCalls)

	// An hour later the daily cooldown still holds.
	fx.clock.advance(time.Hour)
	fx.flow.Run(context.Background())
	assert.Equal(t, 1, fx.generator.suggestCalls)

	// Past 24h the pool refreshes again.
	fx.clock.advance(24 * time.Hour)
	fx.flow.Run(context.Background())
	assert.Equal(t, 2, fx.generator.suggestCalls)
}

func TestAutoFlowPromotesTopVotedWithinQuota(t *testing.T) {
	t.Parallel()

	fx := newAutoFixture(t, defaultAutoConfig())
	fx.seedSuggestion("s1", "الوكلاء الذكية", 5)
	fx.seedSuggestion("s2", "تعلم الآلة", 3)
	fx.seedSuggestion("s3", "الرؤية الحاسوبية", 4)
	fx.freezeSuggestionBranch()

	fx.flow.Run(context.Background())

	assert.Equal(t, []string{"الوكلاء الذكية", "الرؤية الحاسوبية"}, fx.generator.generateCalls)
	assert.Len(t, fx.courses.List(), 2)
	assert.False(t, store.GetTime(fx.kv, store.KeyLastGeneration).IsZero())

	byID := map[string]domain.CourseSuggestion{}
	for _, s := range fx.suggestions.List() {
		byID[s.ID] = s
	}
	assert.Equal(t, domain.StatusGenerated, byID["s1"].Status)
	assert.Equal(t, domain.StatusGenerated, byID["s3"].Status)
	assert.Equal(t, domain.StatusSuggested, byID["s2"].Status)

	require.Len(t, fx.notifier.digests, 1)
	assert.Contains(t, fx.notifier.digests[0], "الوكلاء الذكية")
}

func TestAutoFlowZeroVoteSlotIsNotPromoted(t *testing.T) {
	t.Parallel()

	// The quota slices first, then the vote floor applies: a zero-vote entry
	// inside the window occupies its slot without being generated.
	fx := newAutoFixture(t, defaultAutoConfig())
	fx.seedSuggestion("s1", "موضوع مدعوم", 2)
	fx.seedSuggestion("s2", "موضوع بلا أصوات", 0)
	fx.freezeSuggestionBranch()

	fx.flow.Run(context.Background())

	assert.Equal(t, []string{"موضوع مدعوم"}, fx.generator.generateCalls)
	assert.Len(t, fx.courses.List(), 1)
}

func TestAutoFlowFailedCandidateDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	fx := newAutoFixture(t, defaultAutoConfig())
	fx.generator.failTitles = map[string]bool{"موضوع معطل": true}
	fx.seedSuggestion("s1", "موضوع معطل", 9)
	fx.seedSuggestion("s2", "موضوع سليم", 4)
	fx.freezeSuggestionBranch()

	fx.flow.Run(context.Background())

	assert.Equal(t, []string{"موضوع معطل", "موضوع سليم"}, fx.generator.generateCalls)
	require.Len(t, fx.courses.List(), 1)
	assert.Equal(t, "موضوع سليم", fx.courses.List()[0].Title)

	byID := map[string]domain.CourseSuggestion{}
	for _, s := range fx.suggestions.List() {
		byID[s.ID] = s
	}
	assert.Equal(t, domain.StatusSuggested, byID["s1"].Status)
	assert.Equal(t, domain.StatusGenerated, byID["s2"].Status)

	// One course landed, so the weekly window advanced.
	assert.False(t, store.GetTime(fx.kv, store.KeyLastGeneration).IsZero())
}

func TestAutoFlowLockDebouncesRapidSessions(t *testing.T) {
	t.Parallel()

	fx := newAutoFixture(t, defaultAutoConfig())

	fx.flow.Run(context.Background())
	fx.flow.Run(context.Background())

	assert.Equal(t, 1, fx.generator.suggestCalls)
}

func TestAutoFlowDisabled(t *testing.T) {
	t.Parallel()

	disabled := false
	cfg := defaultAutoConfig()
	cfg.Enabled = &disabled

	fx := newAutoFixture(t, cfg)
	fx.flow.Run(context.Background())

	assert.Zero(t, fx.generator.suggestCalls)
	assert.True(t, store.GetTime(fx.kv, store.KeyAutoLock).IsZero())
}

func TestAutoFlowGenerationCooldown(t *testing.T) {
	t.Parallel()

	fx := newAutoFixture(t, defaultAutoConfig())
	fx.seedSuggestion("s1", "الموضوع الأول", 3)
	fx.freezeSuggestionBranch()

	fx.flow.Run(context.Background())
	require.Len(t, fx.generator.generateCalls, 1)

	// A newly voted suggestion must wait out the weekly window.
	fx.clock.advance(2 * time.Hour)
	fx.seedSuggestion("s2", "الموضوع الثاني", 7)
	fx.flow.Run(context.Background())
	assert.Len(t, fx.generator.generateCalls, 1)

	fx.clock.advance(168 * time.Hour)
	fx.flow.Run(context.Background())
	assert.Len(t, fx.generator.generateCalls, 2)
	assert.Equal(t, "الموضوع الثاني", fx.generator.generateCalls[1])
}

func TestAutoFlowVotingEndToEnd(t *testing.T) {
	t.Parallel()

	cfg := defaultAutoConfig()
	cfg.MaxPerWindow = 1

	fx := newAutoFixture(t, cfg)
	fx.suggestions.Add([]domain.CourseSuggestion{{
		ID:     "s1",
		Title:  "A",
		Status: domain.StatusSuggested,
	}})
	for i := 0; i < 4; i++ {
		fx.suggestions.Vote("s1", 5)
	}

	list := fx.suggestions.List()
	require.Len(t, list, 1)
	require.Equal(t, 20, list[0].Votes)

	fx.freezeSuggestionBranch()
	fx.flow.Run(context.Background())

	courses := fx.courses.List()
	require.Len(t, courses, 1)
	assert.Equal(t, "A", courses[0].Title)

	list = fx.suggestions.List()
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusGenerated, list[0].Status)
	assert.Equal(t, 20, list[0].Votes, "promotion must not reset the tally")
}

func TestAutoFlowStableOrderOnVoteTies(t *testing.T) {
	t.Parallel()

	cfg := defaultAutoConfig()
	cfg.MaxPerWindow = 1

	fx := newAutoFixture(t, cfg)
	fx.seedSuggestion("s1", "الأول", 2)
	fx.seedSuggestion("s2", "الثاني", 2)
	fx.freezeSuggestionBranch()

	fx.flow.Run(context.Background())

	// Equal votes keep insertion order, so the earlier suggestion wins the
	// single slot.
	assert.Equal(t, []string{"الأول"}, fx.generator.generateCalls)
}

func TestAutoFlowDoesNotRegenerate(t *testing.T) {
	t.Parallel()

	fx := newAutoFixture(t, defaultAutoConfig())
	fx.seedSuggestion("s1", "دورة واحدة", 5)
	fx.freezeSuggestionBranch()

	fx.flow.Run(context.Background())
	require.Len(t, fx.generator.generateCalls, 1)

	// Clear the weekly window and run again: the generated suggestion is no
	// longer a candidate.
	fx.clock.advance(169 * time.Hour)
	fx.freezeSuggestionBranch()
	fx.flow.Run(context.Background())

	assert.Len(t, fx.generator.generateCalls, 1)
	assert.Len(t, fx.courses.List(), 1)
}
