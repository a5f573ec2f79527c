package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"aiguidepro/internal/config"
	"aiguidepro/internal/domain"
	"aiguidepro/internal/ledger"
	"aiguidepro/internal/ports"
	"aiguidepro/internal/store"
)

// AutoCourseFlow is the cooldown-gated loop that refreshes the suggestion
// pool daily and promotes top-voted suggestions into generated courses
// weekly. It is a background path: nothing here escapes as an error, every
// failure is logged and retried on a later invocation.
type AutoCourseFlow struct {
	kv          ports.KV
	clock       ports.Clock
	source      ports.FeedSource
	generator   ports.ContentGenerator
	suggestions *ledger.Suggestions
	courses     *ledger.Courses
	notifier    ports.Notifier
	cfg         config.Auto
	callTimeout time.Duration
	logger      *slog.Logger
	group       singleflight.Group
}

// AutoCourseDeps wires collaborators into the flow. Clock defaults to the
// system clock; Notifier is optional.
type AutoCourseDeps struct {
	KV          ports.KV
	Clock       ports.Clock
	Source      ports.FeedSource
	Generator   ports.ContentGenerator
	Suggestions *ledger.Suggestions
	Courses     *ledger.Courses
	Notifier    ports.Notifier
	Config      config.Auto
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// NewAutoCourseFlow constructs the flow from its dependencies.
func NewAutoCourseFlow(deps AutoCourseDeps) *AutoCourseFlow {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.CallTimeout <= 0 {
		deps.CallTimeout = 20 * time.Second
	}
	return &AutoCourseFlow{
		kv:          deps.KV,
		clock:       deps.Clock,
		source:      deps.Source,
		generator:   deps.Generator,
		suggestions: deps.Suggestions,
		courses:     deps.Courses,
		notifier:    deps.Notifier,
		cfg:         deps.Config,
		callTimeout: deps.CallTimeout,
		logger:      deps.Logger,
	}
}

// Run executes one orchestration session. Concurrent entries collapse into
// a single execution, and rapid re-entries across processes are debounced
// by the persisted lock timestamp. The lock is best-effort: two invocations
// racing between read and write can both proceed, which is acceptable for
// this workload.
func (f *AutoCourseFlow) Run(ctx context.Context) {
	if !f.cfg.IsEnabled() {
		return
	}

	_, _, _ = f.group.Do("auto-course", func() (interface{}, error) {
		if !f.tryLock() {
			f.debug("lock fresh, skipping session")
			return nil, nil
		}
		f.refreshSuggestions(ctx)
		f.promoteSuggestions(ctx)
		return nil, nil
	})
}

func (f *AutoCourseFlow) tryLock() bool {
	now := f.clock.Now()
	if now.Sub(store.GetTime(f.kv, store.KeyAutoLock)) < f.cfg.LockWindowDuration() {
		return false
	}
	store.SetTime(f.kv, store.KeyAutoLock, now)
	return true
}

// refreshSuggestions runs the daily branch: harvest topics, ask the model
// for a suggestion batch and merge it. The cooldown timestamp advances only
// on success so the next invocation retries after a failure.
func (f *AutoCourseFlow) refreshSuggestions(ctx context.Context) {
	now := f.clock.Now()
	if now.Sub(store.GetTime(f.kv, store.KeyLastSuggestion)) <= f.cfg.SuggestionCooldownDuration() {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	topics := f.source.FetchTopics(callCtx)
	cancel()

	callCtx, cancel = context.WithTimeout(ctx, f.callTimeout)
	defer cancel()
	fresh, err := f.generator.SuggestCourses(callCtx, strings.Join(topics, "، "), f.cfg.SuggestionCount)
	if err != nil {
		f.warn("suggestion refresh failed", "error", err)
		return
	}

	f.suggestions.Add(fresh)
	store.SetTime(f.kv, store.KeyLastSuggestion, f.clock.Now())
	f.debug("suggestion pool refreshed", "added", len(fresh))
}

// promoteSuggestions runs the weekly branch: pick the top-voted suggestions
// not yet generated and turn each into one course. Candidates are isolated
// from each other: one failure is logged and the loop continues. The window
// timestamp advances only if at least one course landed, so an empty
// candidate pool keeps the branch armed for the next invocation.
func (f *AutoCourseFlow) promoteSuggestions(ctx context.Context) {
	now := f.clock.Now()
	if now.Sub(store.GetTime(f.kv, store.KeyLastGeneration)) <= f.cfg.GenerationCooldownDuration() {
		return
	}

	candidates := make([]domain.CourseSuggestion, 0)
	for _, s := range f.suggestions.List() {
		if s.Status != domain.StatusGenerated {
			candidates = append(candidates, s)
		}
	}

	// Stable sort: equal-vote entries keep their original relative order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Votes > candidates[j].Votes
	})
	if len(candidates) > f.cfg.MaxPerWindow {
		candidates = candidates[:f.cfg.MaxPerWindow]
	}

	produced := 0
	var promoted []domain.Course
	for _, s := range candidates {
		if s.Votes < 1 {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
		courses, err := f.generator.GenerateCourses(callCtx, []string{s.Title}, 1)
		cancel()
		if err != nil {
			f.warn("course generation failed", "suggestion", s.ID, "error", err)
			continue
		}

		f.courses.Append(courses)
		f.suggestions.MarkGenerated(s.ID)
		produced += len(courses)
		promoted = append(promoted, courses...)
		f.debug("suggestion promoted", "suggestion", s.ID, "title", s.Title)
	}

	if produced > 0 {
		store.SetTime(f.kv, store.KeyLastGeneration, f.clock.Now())
		f.notifyPromoted(ctx, promoted)
	}
}

// notifyPromoted publishes a digest of newly generated courses; delivery is
// best-effort.
func (f *AutoCourseFlow) notifyPromoted(ctx context.Context, courses []domain.Course) {
	if f.notifier == nil || len(courses) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString("دورات جديدة من تصويت المجتمع:\n")
	for _, c := range courses {
		fmt.Fprintf(&b, "- %s (%s)\n", c.Title, c.Level)
	}

	if err := f.notifier.PublishDigest(ctx, b.String()); err != nil {
		f.warn("digest publish failed", "error", err)
	}
}

func (f *AutoCourseFlow) debug(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

func (f *AutoCourseFlow) warn(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
