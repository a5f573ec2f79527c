package feeds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"aiguidepro/internal/config"
	"aiguidepro/internal/domain"
	"aiguidepro/internal/ports"
)

// defaultAllowedHosts is the trust boundary for external content. Feeds and
// item links resolving outside this set (plus configured extras) are
// rejected silently.
var defaultAllowedHosts = []string{
	"export.arxiv.org", "arxiv.org",
	"ai.googleblog.com", "openai.com", "thegradient.pub", "blogs.nvidia.com",
	"deepmind.google", "huggingface.co", "meta.com", "pytorch.org", "paperswithcode.com",
	"semanticscholar.org", "nature.com", "science.org", "acm.org", "ieee.org",
}

const maxFeedBody = 4 << 20

// Gateway fetches and normalizes items from the configured external feeds.
// Every public fetch degrades to an empty slice on failure; callers treat
// empty as "try again later".
type Gateway struct {
	client   *http.Client
	parser   *gofeed.Parser
	arxivURL string
	sources  []string
	proxyURL string
	allowed  map[string]struct{}
	logger   *slog.Logger
}

var _ ports.FeedSource = (*Gateway)(nil)

// NewGateway wires the gateway from feed configuration.
func NewGateway(cfg config.Feeds, client *http.Client, logger *slog.Logger) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeoutDuration()}
	}

	allowed := make(map[string]struct{}, len(defaultAllowedHosts)+len(cfg.ExtraHosts))
	for _, h := range defaultAllowedHosts {
		allowed[h] = struct{}{}
	}
	for _, h := range cfg.ExtraHosts {
		if h = strings.TrimSpace(h); h != "" {
			allowed[h] = struct{}{}
		}
	}

	return &Gateway{
		client:   client,
		parser:   gofeed.NewParser(),
		arxivURL: cfg.ArxivQueryURL,
		sources:  cfg.Sources,
		proxyURL: cfg.ProxyURL,
		allowed:  allowed,
		logger:   logger,
	}
}

// AllowedHosts returns a copy of the resolved allow-list.
func (g *Gateway) AllowedHosts() map[string]struct{} {
	out := make(map[string]struct{}, len(g.allowed))
	for h := range g.allowed {
		out[h] = struct{}{}
	}
	return out
}

// HostAllowed reports whether a host is inside the trust boundary.
func (g *Gateway) HostAllowed(host string) bool {
	_, ok := g.allowed[host]
	return ok
}

// FetchArxivRecent queries the arXiv API for recent cs.AI submissions.
func (g *Gateway) FetchArxivRecent(ctx context.Context, max int) []domain.FeedItem {
	queryURL, err := withQueryParam(g.arxivURL, "max_results", fmt.Sprint(max))
	if err != nil {
		return nil
	}

	body, err := g.fetchBody(ctx, queryURL)
	if err != nil {
		g.debug("arxiv fetch failed", "error", err)
		return nil
	}

	items := g.parseFeed(body, "arXiv")
	for i := range items {
		items[i].Host = "export.arxiv.org"
		items[i].ArxivID = arxivIDFromLink(items[i].Link)
	}
	if len(items) > max {
		items = items[:max]
	}
	return items
}

// FetchRSS fetches a single generic feed. The resolved host must be inside
// the allow-list; otherwise no network access is attempted and the result
// is empty (fail closed, not an error).
func (g *Gateway) FetchRSS(ctx context.Context, feedURL string, max int) []domain.FeedItem {
	parsed, err := url.Parse(feedURL)
	if err != nil {
		return nil
	}
	if !g.HostAllowed(parsed.Host) {
		g.debug("host not allowed", "host", parsed.Host)
		return nil
	}

	body, err := g.fetchBody(ctx, feedURL)
	if err != nil {
		g.debug("rss fetch failed", "url", feedURL, "error", err)
		return nil
	}

	items := g.parseFeed(body, parsed.Host)
	if len(items) > max {
		items = items[:max]
	}
	return items
}

// FetchCommunityFeeds aggregates all configured generic feeds, keeping only
// items whose own link host is allow-listed.
func (g *Gateway) FetchCommunityFeeds(ctx context.Context, maxPerFeed int) []domain.FeedItem {
	var all []domain.FeedItem
	for _, source := range g.sources {
		for _, item := range g.FetchRSS(ctx, source, maxPerFeed) {
			if !g.linkAllowed(item) {
				continue
			}
			all = append(all, item)
		}
	}
	return all
}

// FallbackItems supplies the curated list used when every source fails, so
// consumers are never left empty.
func (g *Gateway) FallbackItems() []domain.FeedItem {
	now := time.Now()
	return []domain.FeedItem{
		{
			ID:          "blog-1",
			Title:       "أفضل ممارسات تبنّي وكلاء الذكاء الاصطناعي في الشركات",
			Source:      "blog-curated",
			PublishedAt: now.Add(-24 * time.Hour),
		},
		{
			ID:          "news-1",
			Title:       "إطلاق تقنيات جديدة لتحسين كفاءة نماذج اللغة الكبيرة",
			Source:      "news-curated",
			PublishedAt: now.Add(-48 * time.Hour),
		},
	}
}

// linkAllowed applies the post-fetch filter: a feed fetched from a trusted
// host can still reference off-list content.
func (g *Gateway) linkAllowed(item domain.FeedItem) bool {
	if item.Link == "" {
		return item.Host == "" || g.HostAllowed(item.Host)
	}
	parsed, err := url.Parse(item.Link)
	if err != nil {
		return false
	}
	return g.HostAllowed(parsed.Host)
}

// parseFeed runs the structured parser first and falls back to the lenient
// extractor when the payload is malformed.
func (g *Gateway) parseFeed(body []byte, sourceHint string) []domain.FeedItem {
	feed, err := g.parser.Parse(bytes.NewReader(body))
	if err != nil {
		g.debug("structured parse failed, using lenient extraction", "source", sourceHint, "error", err)
		return parseLenient(body, sourceHint)
	}

	items := make([]domain.FeedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil || strings.TrimSpace(entry.Title) == "" {
			continue
		}

		item := domain.FeedItem{
			Title:   strings.TrimSpace(entry.Title),
			Link:    entry.Link,
			Source:  sourceHint,
			Summary: strings.TrimSpace(entry.Description),
		}
		item.ID = entry.GUID
		if item.ID == "" {
			item.ID = entry.Link
		}
		if item.ID == "" {
			item.ID = item.Title
		}
		if entry.PublishedParsed != nil {
			item.PublishedAt = *entry.PublishedParsed
		} else if entry.Published != "" {
			if ts, perr := dateparse.ParseAny(entry.Published); perr == nil {
				item.PublishedAt = ts
			}
		}
		if doi := extensionValue(entry, "arxiv", "doi"); doi != "" {
			item.DOI = doi
		}

		items = append(items, item)
	}
	return items
}

func (g *Gateway) fetchBody(ctx context.Context, target string) ([]byte, error) {
	finalURL := target
	if g.proxyURL != "" {
		finalURL = g.proxyURL + "?url=" + url.QueryEscape(target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "aiguidepro-engine/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	return body, nil
}

func (g *Gateway) debug(msg string, args ...interface{}) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}
}

func extensionValue(entry *gofeed.Item, namespace, field string) string {
	exts, ok := entry.Extensions[namespace]
	if !ok {
		return ""
	}
	for _, ext := range exts[field] {
		if v := strings.TrimSpace(ext.Value); v != "" {
			return v
		}
	}
	return ""
}

func arxivIDFromLink(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}
	path := strings.Trim(parsed.Path, "/")
	if idx := strings.LastIndex(path, "abs/"); idx >= 0 {
		return path[idx+len("abs/"):]
	}
	return ""
}

func withQueryParam(base, key, value string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid feed url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set(key, value)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
