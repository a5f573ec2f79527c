package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiguidepro/internal/config"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>AI Blog</title>
    <item>
      <title>Scaling Agents</title>
      <link>https://openai.com/blog/scaling-agents</link>
      <pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate>
      <description>Notes on agent infrastructure.</description>
    </item>
    <item>
      <title>Untrusted Post</title>
      <link>https://evil.example/post</link>
      <pubDate>Mon, 02 Mar 2026 09:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>arXiv query results</title>
  <entry>
    <id>http://arxiv.org/abs/2603.01234v1</id>
    <title>Retrieval Augmentation: A Survey</title>
    <link href="http://arxiv.org/abs/2603.01234v1"/>
    <published>2026-03-01T00:00:00Z</published>
    <summary>Survey of retrieval augmentation.</summary>
    <arxiv:doi>10.1000/xyz</arxiv:doi>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2603.05678v1</id>
    <title>Sparse Training - Efficient Methods</title>
    <link href="http://arxiv.org/abs/2603.05678v1"/>
    <published>2026-03-01T00:00:00Z</published>
    <summary>Second entry.</summary>
  </entry>
</feed>`

func testGateway(t *testing.T, handler http.Handler, mutate func(*config.Feeds)) (*Gateway, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	serverHost := mustHost(t, server.URL)
	cfg := config.Feeds{
		ArxivQueryURL: server.URL + "/api/query?search_query=cat:cs.AI",
		Sources:       []string{server.URL + "/feed"},
		ExtraHosts:    []string{serverHost},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return NewGateway(cfg, server.Client(), nil), server
}

func mustHost(t *testing.T, raw string) string {
	t.Helper()

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	return parsed.Host
}

func TestFetchRSSRejectsUnknownHostWithoutNetwork(t *testing.T) {
	t.Parallel()

	var hits int32
	gateway, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}), nil)

	items := gateway.FetchRSS(context.Background(), "https://evil.example/rss", 10)

	assert.Empty(t, items)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestFetchRSSParsesStructuredFeed(t *testing.T) {
	t.Parallel()

	gateway, server := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}), nil)

	items := gateway.FetchRSS(context.Background(), server.URL+"/feed", 10)
	require.Len(t, items, 2)

	assert.Equal(t, "Scaling Agents", items[0].Title)
	assert.Equal(t, "https://openai.com/blog/scaling-agents", items[0].Link)
	assert.Equal(t, mustHost(t, server.URL), items[0].Source)
	assert.False(t, items[0].PublishedAt.IsZero())
}

func TestFetchRSSEmptyOnServerError(t *testing.T) {
	t.Parallel()

	gateway, server := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}), nil)

	assert.Empty(t, gateway.FetchRSS(context.Background(), server.URL+"/feed", 10))
}

func TestFetchCommunityFeedsFiltersOffListLinks(t *testing.T) {
	t.Parallel()

	gateway, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}), nil)

	items := gateway.FetchCommunityFeeds(context.Background(), 10)

	require.Len(t, items, 1)
	assert.Equal(t, "Scaling Agents", items[0].Title)
}

func TestFetchArxivRecent(t *testing.T) {
	t.Parallel()

	gateway, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("max_results"))
		w.Write([]byte(sampleAtom))
	}), nil)

	items := gateway.FetchArxivRecent(context.Background(), 2)
	require.Len(t, items, 2)

	assert.Equal(t, "arXiv", items[0].Source)
	assert.Equal(t, "export.arxiv.org", items[0].Host)
	assert.Equal(t, "2603.01234v1", items[0].ArxivID)
	assert.Equal(t, "10.1000/xyz", items[0].DOI)
	assert.Empty(t, items[1].DOI)
}

func TestProxyRewrite(t *testing.T) {
	t.Parallel()

	var proxied string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied = r.URL.Query().Get("url")
		w.Write([]byte(sampleAtom))
	}))
	t.Cleanup(server.Close)

	cfg := config.Feeds{
		ArxivQueryURL: "https://export.arxiv.org/api/query?search_query=cat:cs.AI",
		ProxyURL:      server.URL + "/relay",
	}
	gateway := NewGateway(cfg, server.Client(), nil)

	items := gateway.FetchArxivRecent(context.Background(), 2)

	require.NotEmpty(t, items)
	parsed, err := url.Parse(proxied)
	require.NoError(t, err)
	assert.Equal(t, "export.arxiv.org", parsed.Host)
}

func TestParseLenientSkipsBrokenEntries(t *testing.T) {
	t.Parallel()

	broken := `<rss><channel>
      <item><title>Good One</title><link>https://openai.com/a</link><pubDate>garbage date</pubDate></item>
      <item><link>https://openai.com/no-title</link></item>
    </channel>`

	items := parseLenient([]byte(broken), "hint")

	require.Len(t, items, 1)
	assert.Equal(t, "Good One", items[0].Title)
	assert.Equal(t, "hint", items[0].Source)
	assert.True(t, items[0].PublishedAt.IsZero())
}

func TestFallbackItemsNeverEmpty(t *testing.T) {
	t.Parallel()

	gateway := NewGateway(config.Feeds{}, http.DefaultClient, nil)

	items := gateway.FallbackItems()
	require.NotEmpty(t, items)
	for _, it := range items {
		assert.NotEmpty(t, it.ID)
		assert.NotEmpty(t, it.Title)
		assert.Empty(t, it.Link)
	}
}

func TestFetchTopicsPadsWithFallback(t *testing.T) {
	t.Parallel()

	gateway, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleAtom))
	}), nil)

	topics := gateway.FetchTopics(context.Background())

	require.Len(t, topics, 6)
	assert.Equal(t, "Retrieval Augmentation", topics[0])
	assert.Equal(t, "Sparse Training", topics[1])
	// Remaining slots filled from the curated pool.
	assert.Contains(t, topics, "نماذج اللغة الكبيرة في التعليم")
}

func TestExtractKeyword(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Deep Learning: A Survey", "Deep Learning"},
		{"LLM Alignment - New Methods", "Alignment"},
		{"arXiv 2603.01234", ""},
		{"ab", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, extractKeyword(tc.in), "input %q", tc.in)
	}
}
