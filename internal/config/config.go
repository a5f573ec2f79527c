package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "COURSE_ENGINE_CONFIG"
	databaseDSNEnv  = "DATABASE_DSN"
	stateDirEnv     = "STATE_DIR"
	geminiAPIKeyEnv = "GEMINI_API_KEY"
	geminiModelEnv  = "GEMINI_MODEL"
	proxyURLEnv     = "NEWS_PROXY_URL"
	allowedHostsEnv = "NEWS_ALLOWED_HOSTS"
	newsSourcesEnv  = "NEWS_SOURCES"
	autoCoursesEnv  = "AUTO_COURSES"
	arabicNewsEnv   = "ARABIC_NEWS"
	telegramToken   = "TELEGRAM_BOT_TOKEN"
	telegramChatID  = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       Logging       `yaml:"logging"`
	Storage       Storage       `yaml:"storage"`
	Feeds         Feeds         `yaml:"feeds"`
	Gemini        Gemini        `yaml:"gemini"`
	Auto          Auto          `yaml:"auto"`
	News          News          `yaml:"news"`
	Scheduler     Scheduler     `yaml:"scheduler"`
	Notifications Notifications `yaml:"notifications"`
}

// Scheduler controls the optional re-run loop. Empty runEvery means a
// single orchestration session per process.
type Scheduler struct {
	RunEvery string `yaml:"runEvery"`
}

// RunEveryDuration resolves the re-run interval; zero disables the loop.
func (s Scheduler) RunEveryDuration() time.Duration {
	if s.RunEvery == "" {
		return 0
	}
	return parseDuration(s.RunEvery, 0)
}

// Notifications encapsulates outbound channels.
type Notifications struct {
	Telegram Telegram `yaml:"telegram"`
}

// Telegram wires all data required to send digests.
type Telegram struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Logging controls the slog handler level.
type Logging struct {
	Level string `yaml:"level"`
}

// Storage selects and parameterizes the persisted key-value backend.
type Storage struct {
	Backend  string `yaml:"backend"` // file, postgres or memory
	StateDir string `yaml:"stateDir"`
	DSN      string `yaml:"dsn"`
}

// Feeds describes external feed endpoints and the trust boundary around them.
type Feeds struct {
	ArxivQueryURL string   `yaml:"arxivQueryUrl"`
	Sources       []string `yaml:"sources"`
	ExtraHosts    []string `yaml:"extraHosts"`
	ProxyURL      string   `yaml:"proxyUrl"`
	FetchTimeout  string   `yaml:"fetchTimeout"`
}

// FetchTimeoutDuration resolves the per-call timeout, defaulting to 20s.
func (f Feeds) FetchTimeoutDuration() time.Duration {
	return parseDuration(f.FetchTimeout, 20*time.Second)
}

// Gemini defines how to contact the generative-language API.
type Gemini struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// Auto parameterizes the autonomous course-generation loop.
type Auto struct {
	Enabled            *bool  `yaml:"enabled"`
	SuggestionCooldown string `yaml:"suggestionCooldown"`
	GenerationCooldown string `yaml:"generationCooldown"`
	LockWindow         string `yaml:"lockWindow"`
	MaxPerWindow       int    `yaml:"maxPerWindow"`
	SuggestionCount    int    `yaml:"suggestionCount"`
}

// IsEnabled defaults the loop to on unless explicitly disabled.
func (a Auto) IsEnabled() bool { return a.Enabled == nil || *a.Enabled }

// SuggestionCooldownDuration resolves the daily suggestion cadence.
func (a Auto) SuggestionCooldownDuration() time.Duration {
	return parseDuration(a.SuggestionCooldown, 24*time.Hour)
}

// GenerationCooldownDuration resolves the weekly promotion cadence.
func (a Auto) GenerationCooldownDuration() time.Duration {
	return parseDuration(a.GenerationCooldown, 7*24*time.Hour)
}

// LockWindowDuration resolves the re-entrancy debounce window.
func (a Auto) LockWindowDuration() time.Duration {
	return parseDuration(a.LockWindow, time.Minute)
}

// News parameterizes the localized-news loop.
type News struct {
	Enabled    *bool  `yaml:"enabled"`
	Cooldown   string `yaml:"cooldown"`
	MaxPapers  int    `yaml:"maxPapers"`
	MaxPerFeed int    `yaml:"maxPerFeed"`
	MaxPosts   int    `yaml:"maxPosts"`
}

// IsEnabled defaults the loop to on unless explicitly disabled.
func (n News) IsEnabled() bool { return n.Enabled == nil || *n.Enabled }

// CooldownDuration resolves the daily refresh cadence.
func (n News) CooldownDuration() time.Duration {
	return parseDuration(n.Cooldown, 24*time.Hour)
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.DSN = v
		c.Storage.Backend = "postgres"
	}

	if v := os.Getenv(stateDirEnv); v != "" {
		c.Storage.StateDir = v
	}

	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Gemini.APIKey = v
	}

	if v := os.Getenv(geminiModelEnv); v != "" {
		c.Gemini.Model = v
	}

	if v := os.Getenv(proxyURLEnv); v != "" {
		c.Feeds.ProxyURL = v
	}

	if v := os.Getenv(allowedHostsEnv); v != "" {
		c.Feeds.ExtraHosts = splitList(v)
	}

	if v := os.Getenv(newsSourcesEnv); v != "" {
		c.Feeds.Sources = splitList(v)
	}

	if v := os.Getenv(autoCoursesEnv); v != "" {
		enabled := v != "false"
		c.Auto.Enabled = &enabled
	}

	if v := os.Getenv(arabicNewsEnv); v != "" {
		enabled := v != "false"
		c.News.Enabled = &enabled
	}

	if v := os.Getenv(telegramToken); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatID); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Storage.Backend != "" {
		base.Storage.Backend = override.Storage.Backend
	}
	if override.Storage.StateDir != "" {
		base.Storage.StateDir = override.Storage.StateDir
	}
	if override.Storage.DSN != "" {
		base.Storage.DSN = override.Storage.DSN
	}

	if override.Feeds.ArxivQueryURL != "" {
		base.Feeds.ArxivQueryURL = override.Feeds.ArxivQueryURL
	}
	if len(override.Feeds.Sources) > 0 {
		base.Feeds.Sources = override.Feeds.Sources
	}
	if len(override.Feeds.ExtraHosts) > 0 {
		base.Feeds.ExtraHosts = override.Feeds.ExtraHosts
	}
	if override.Feeds.ProxyURL != "" {
		base.Feeds.ProxyURL = override.Feeds.ProxyURL
	}
	if override.Feeds.FetchTimeout != "" {
		base.Feeds.FetchTimeout = override.Feeds.FetchTimeout
	}

	if override.Gemini.Endpoint != "" {
		base.Gemini.Endpoint = override.Gemini.Endpoint
	}
	if override.Gemini.Model != "" {
		base.Gemini.Model = override.Gemini.Model
	}
	if override.Gemini.APIKey != "" {
		base.Gemini.APIKey = override.Gemini.APIKey
	}

	if override.Auto.Enabled != nil {
		base.Auto.Enabled = override.Auto.Enabled
	}
	if override.Auto.SuggestionCooldown != "" {
		base.Auto.SuggestionCooldown = override.Auto.SuggestionCooldown
	}
	if override.Auto.GenerationCooldown != "" {
		base.Auto.GenerationCooldown = override.Auto.GenerationCooldown
	}
	if override.Auto.LockWindow != "" {
		base.Auto.LockWindow = override.Auto.LockWindow
	}
	if override.Auto.MaxPerWindow > 0 {
		base.Auto.MaxPerWindow = override.Auto.MaxPerWindow
	}
	if override.Auto.SuggestionCount > 0 {
		base.Auto.SuggestionCount = override.Auto.SuggestionCount
	}

	if override.News.Enabled != nil {
		base.News.Enabled = override.News.Enabled
	}
	if override.News.Cooldown != "" {
		base.News.Cooldown = override.News.Cooldown
	}
	if override.News.MaxPapers > 0 {
		base.News.MaxPapers = override.News.MaxPapers
	}
	if override.News.MaxPerFeed > 0 {
		base.News.MaxPerFeed = override.News.MaxPerFeed
	}
	if override.News.MaxPosts > 0 {
		base.News.MaxPosts = override.News.MaxPosts
	}

	if override.Scheduler.RunEvery != "" {
		base.Scheduler.RunEvery = override.Scheduler.RunEvery
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: Logging{Level: "info"},
		Storage: Storage{Backend: "file", StateDir: "./state"},
		Feeds: Feeds{
			ArxivQueryURL: "https://export.arxiv.org/api/query?search_query=cat:cs.AI&sortBy=submittedDate&sortOrder=descending",
			Sources: []string{
				"https://ai.googleblog.com/feeds/posts/default?alt=rss",
				"https://openai.com/blog/rss/",
				"https://thegradient.pub/rss/",
				"https://blogs.nvidia.com/blog/category/ai/feed/",
			},
			FetchTimeout: "20s",
		},
		Gemini: Gemini{
			Endpoint: "https://generativelanguage.googleapis.com/v1beta/models",
			Model:    "gemini-2.0-flash-exp",
		},
		Auto: Auto{
			SuggestionCooldown: "24h",
			GenerationCooldown: "168h",
			LockWindow:         "1m",
			MaxPerWindow:       2,
			SuggestionCount:    6,
		},
		News: News{
			Cooldown:   "24h",
			MaxPapers:  8,
			MaxPerFeed: 4,
			MaxPosts:   200,
		},
	}
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
