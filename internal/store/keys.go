package store

// Persisted slot names. Each entity collection occupies one slot holding a
// JSON array; the scalar slots hold RFC3339 timestamps for cooldown state
// and the re-entrancy locks.
const (
	KeyCourses     = "aiguidepro.courses"
	KeySuggestions = "aiguidepro.suggestions"
	KeyNewsPosts   = "aiguidepro.news.posts"
	KeyNewsRaw     = "aiguidepro.news.raw"

	KeyNewsLastFetched = "aiguidepro.news.lastFetchedAt"
	KeyNewsLock        = "aiguidepro.news.lock"
	KeyLastSuggestion  = "aiguidepro.auto.lastSuggestionAt"
	KeyLastGeneration  = "aiguidepro.auto.lastGenerationAt"
	KeyAutoLock        = "aiguidepro.auto.lock"
)
