package domain

import "time"

// FeedItem is a normalized reference to external content fetched from a
// feed source (arXiv, community RSS, curated fallback).
type FeedItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link,omitempty"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Host        string    `json:"host,omitempty"`
	ArxivID     string    `json:"arxivId,omitempty"`
	DOI         string    `json:"doi,omitempty"`
}

// PostType classifies where a synthesized post originated from.
type PostType string

const (
	PostTypePaper PostType = "paper"
	PostTypeNews  PostType = "news"
	PostTypeBlog  PostType = "blog"
)

// PostSource attributes a synthesized post back to an original item.
type PostSource struct {
	Title  string `json:"title"`
	URL    string `json:"url,omitempty"`
	Source string `json:"source"`
}

// ArabicPost is localized content synthesized from one or more feed items.
type ArabicPost struct {
	ID          string       `json:"id"`
	OriginalIDs []string     `json:"originalIds"`
	Title       string       `json:"title"`
	Body        string       `json:"body"`
	Sources     []PostSource `json:"sources"`
	CreatedAt   time.Time    `json:"createdAt"`
	Type        PostType     `json:"type"`
}
