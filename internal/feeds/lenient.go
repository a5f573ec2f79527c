package feeds

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"aiguidepro/internal/domain"
)

// parseLenient is the best-effort fallback when the structured parser
// rejects a payload. It walks whatever item/entry elements survive the
// lenient HTML tokenizer and skips anything without a title; it never
// fails outright.
func parseLenient(body []byte, sourceHint string) []domain.FeedItem {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	selection := doc.Find("item")
	if selection.Length() == 0 {
		selection = doc.Find("entry")
	}

	var items []domain.FeedItem
	selection.Each(func(_ int, entry *goquery.Selection) {
		title := strings.TrimSpace(entry.Find("title").First().Text())
		if title == "" {
			return
		}

		link := strings.TrimSpace(entry.Find("link").First().Text())
		if link == "" {
			link, _ = entry.Find("link").First().Attr("href")
		}

		item := domain.FeedItem{
			ID:      link,
			Title:   title,
			Link:    link,
			Source:  sourceHint,
			Summary: strings.TrimSpace(entry.Find("description, summary").First().Text()),
		}
		if item.ID == "" {
			item.ID = title
		}

		published := strings.TrimSpace(entry.Find("pubDate, published").First().Text())
		if published != "" {
			if ts, perr := dateparse.ParseAny(published); perr == nil {
				item.PublishedAt = ts
			}
		}

		items = append(items, item)
	})
	return items
}
