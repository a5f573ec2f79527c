package genai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"aiguidepro/internal/domain"
)

const summarizeHeader = `أنت ملخّص أكاديمي عربي دقيق. لا تُخترع مصادر ولا تضف محتوى غير موجود.
نوع المحتوى: %s
العناصر الأصلية (لا تتجاهل أي مصدر، واستخدم فقط ما هو موجود):
%s

أعد فقط JSON بالشكل التالي دون أي شرح إضافي:
{
  "posts": [
    {
      "title": string,
      "body": string,
      "sources": [ { "title": string, "url": string | null, "source": string } ],
      "sourceIndices": number[]
    }
  ]
}

التحقق:
- لا تذكر أي مصدر غير وارد.
- لا تبتكر نتائج أو استنتاجات.
- إذا كان الملخص الأصلي ناقصاً اكتفِ ببيان ذلك.
`

type postsPayload struct {
	Posts []struct {
		Title   string `json:"title"`
		Body    string `json:"body"`
		Sources []struct {
			Title  string `json:"title"`
			URL    string `json:"url"`
			Source string `json:"source"`
		} `json:"sources"`
		SourceIndices []int `json:"sourceIndices"`
	} `json:"posts"`
}

// SummarizeToArabic synthesizes localized posts from the given feed items,
// keeping attribution tied to the original items.
func (c *Client) SummarizeToArabic(ctx context.Context, items []domain.FeedItem, postType domain.PostType) ([]domain.ArabicPost, error) {
	if len(items) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(summarizeHeader, postType, describeItems(items))

	raw, err := c.Complete(ctx, prompt, PresetUtility)
	if err != nil {
		return nil, fmt.Errorf("complete summaries: %w", err)
	}

	var payload postsPayload
	if err := decodeInto(raw, &payload); err != nil {
		return nil, err
	}

	now := time.Now()
	posts := make([]domain.ArabicPost, 0, len(payload.Posts))
	for i, p := range payload.Posts {
		post := domain.ArabicPost{
			ID:        fmt.Sprintf("ar-%d-%d", now.UnixMilli(), i),
			Title:     firstNonEmpty(p.Title, "تحديث الذكاء الاصطناعي"),
			Body:      p.Body,
			CreatedAt: now,
			Type:      postType,
		}

		// Resolve 1-based source indices back to the input items.
		for _, n := range p.SourceIndices {
			if n < 1 || n > len(items) {
				continue
			}
			ref := items[n-1]
			post.OriginalIDs = append(post.OriginalIDs, ref.ID)
			post.Sources = append(post.Sources, domain.PostSource{
				Title:  ref.Title,
				URL:    ref.Link,
				Source: ref.Source,
			})
		}

		// Prefer explicit attribution from the model when present.
		if len(p.Sources) > 0 {
			post.Sources = post.Sources[:0]
			for _, s := range p.Sources {
				post.Sources = append(post.Sources, domain.PostSource{
					Title:  s.Title,
					URL:    s.URL,
					Source: s.Source,
				})
			}
		}

		posts = append(posts, post)
	}
	return posts, nil
}

func describeItems(items []domain.FeedItem) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "(%d) عنوان: %s\nمصدر: %s\nرابط: %s\nالمعرّف: %s\nDOI: %s\nملخص أصلي (قد يكون خام): %s",
			i+1,
			it.Title,
			it.Source,
			orDash(it.Link, "بدون"),
			orDash(it.ArxivID, "—"),
			orDash(it.DOI, "—"),
			orDash(truncateRunes(it.Summary, 400), "—"))
	}
	return b.String()
}

func orDash(value, placeholder string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	return value
}

func truncateRunes(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
