package feeds

import (
	"context"
	"regexp"
	"strings"
)

const topicTarget = 6

// fallbackTopics keeps the topic pool useful when research feeds are
// unreachable.
var fallbackTopics = []string{
	"نماذج اللغة الكبيرة في التعليم",
	"الرؤية الحاسوبية في الرعاية الصحية",
	"أتمتة الأعمال الصغيرة بالذكاء الاصطناعي",
	"السلامة والأخلاقيات في الذكاء الاصطناعي",
	"الهندسة المعمارية لوكلاء الذكاء الاصطناعي",
	"تحسين تجربة العملاء باستخدام روبوتات الدردشة",
}

var (
	noiseExpr     = regexp.MustCompile(`(?i)\b(arXiv|AI|LLM|NLP|CV|\d{4}\.\d{4,5})\b`)
	separatorExpr = regexp.MustCompile(`[:\-–|]`)
)

// FetchTopics distills recent research titles into a small pool of course
// topic candidates, padding with curated topics when the harvest is thin.
func (g *Gateway) FetchTopics(ctx context.Context) []string {
	var topics []string
	for _, item := range g.FetchArxivRecent(ctx, 10) {
		if kw := extractKeyword(item.Title); kw != "" {
			topics = append(topics, kw)
		}
	}

	for _, fb := range fallbackTopics {
		if len(topics) >= topicTarget {
			break
		}
		topics = append(topics, fb)
	}

	return dedupeStrings(topics, topicTarget)
}

// extractKeyword reduces a paper title to its leading phrase, dropping
// identifiers and field acronyms.
func extractKeyword(title string) string {
	cleaned := noiseExpr.ReplaceAllString(title, "")
	head := separatorExpr.Split(cleaned, 2)[0]
	head = strings.TrimSpace(head)
	if len(head) <= 2 {
		return ""
	}
	return head
}

func dedupeStrings(values []string, max int) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) == max {
			break
		}
	}
	return out
}
