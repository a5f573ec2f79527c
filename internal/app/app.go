package app

import (
	"context"
	"log/slog"
	"time"

	"aiguidepro/internal/config"
	"aiguidepro/internal/feeds"
	"aiguidepro/internal/genai"
	"aiguidepro/internal/ledger"
	"aiguidepro/internal/logging"
	"aiguidepro/internal/notify"
	"aiguidepro/internal/orchestrator"
	"aiguidepro/internal/ports"
	"aiguidepro/internal/schedule"
	"aiguidepro/internal/store"
)

// Application wires configuration to the engine components and owns their
// lifecycle. Everything is constructed once here and passed down
// explicitly so tests can substitute fakes.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	kv          ports.KV
	suggestions *ledger.Suggestions
	courses     *ledger.Courses
	posts       *ledger.Posts
	generator   *genai.Client

	autoFlow *orchestrator.AutoCourseFlow
	newsFlow *orchestrator.NewsFlow

	closers []func() error
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	a := &Application{cfg: cfg, logger: baseLogger}
	a.kv = a.openStore()

	a.suggestions = ledger.NewSuggestions(a.kv)
	a.courses = ledger.NewCourses(a.kv)
	a.posts = ledger.NewPosts(a.kv, cfg.News.MaxPosts)

	gateway := feeds.NewGateway(cfg.Feeds, nil, logging.Component(baseLogger, "feeds"))
	generator := genai.NewClient(cfg.Gemini, nil)
	a.generator = generator

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = notify.NewTelegramNotifier(tg.BotToken, tg.ChatID)
	}

	timeout := cfg.Feeds.FetchTimeoutDuration()
	a.autoFlow = orchestrator.NewAutoCourseFlow(orchestrator.AutoCourseDeps{
		KV:          a.kv,
		Source:      gateway,
		Generator:   generator,
		Suggestions: a.suggestions,
		Courses:     a.courses,
		Notifier:    notifier,
		Config:      cfg.Auto,
		CallTimeout: timeout,
		Logger:      logging.Component(baseLogger, "orchestrator.auto"),
	})
	a.newsFlow = orchestrator.NewNewsFlow(orchestrator.NewsDeps{
		KV:          a.kv,
		Source:      gateway,
		Hosts:       gateway,
		Generator:   generator,
		Posts:       a.posts,
		Config:      cfg.News,
		CallTimeout: timeout,
		Logger:      logging.Component(baseLogger, "orchestrator.news"),
	})

	return a
}

// openStore picks the configured durable backend, degrading to
// memory-only when the medium is unavailable so the process never crashes
// over storage.
func (a *Application) openStore() ports.KV {
	logger := logging.Component(a.logger, "store")
	switch a.cfg.Storage.Backend {
	case "postgres":
		kv, err := store.OpenPostgresKV(a.cfg.Storage.DSN, logger)
		if err != nil {
			logger.Warn("postgres unavailable, degrading to in-memory store", "error", err)
			return store.NewMemoryKV()
		}
		a.closers = append(a.closers, kv.Close)
		return kv
	case "memory":
		return store.NewMemoryKV()
	default:
		return store.NewFileKV(a.cfg.Storage.StateDir, logger)
	}
}

// Suggestions exposes the voting ledger for foreground callers.
func (a *Application) Suggestions() *ledger.Suggestions { return a.suggestions }

// Courses exposes the course ledger for foreground callers.
func (a *Application) Courses() *ledger.Courses { return a.courses }

// Posts exposes the localized-news ledger for foreground callers.
func (a *Application) Posts() *ledger.Posts { return a.posts }

// Chat answers a visitor message through the assistant persona.
func (a *Application) Chat(ctx context.Context, message string) (string, error) {
	return a.generator.Chat(ctx, message)
}

// TranslatePaper localizes a paper title and abstract, falling back to the
// originals when translation is unavailable.
func (a *Application) TranslatePaper(ctx context.Context, title, summary string) (string, string) {
	return a.generator.TranslatePaper(ctx, title, summary)
}

// RunSession executes one orchestration session: suggestion refresh and
// promotion first, then the localized-news refresh. Both flows swallow
// their own failures.
func (a *Application) RunSession(ctx context.Context) {
	a.autoFlow.Run(ctx)
	a.newsFlow.Run(ctx)
}

// Run executes one session; when a re-run interval is configured it keeps
// re-triggering sessions until the context is done.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	interval := a.cfg.Scheduler.RunEveryDuration()
	if interval <= 0 {
		a.RunSession(ctx)
		return nil
	}

	driver := schedule.NewIntervalScheduler(interval)
	if err := driver.Start(ctx, func(time.Time) { a.RunSession(ctx) }); err != nil {
		return err
	}
	<-ctx.Done()
	return driver.Stop(context.Background())
}

func (a *Application) close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}
