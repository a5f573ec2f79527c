package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"aiguidepro/internal/domain"
)

const consultantURL = "https://chatgpt.com/g/g-sw3sWxPbP-aiguidepro"

// Output caps keep a partially-malformed model response from flooding the
// ledgers.
const (
	maxWeeksPerCourse   = 3
	maxTopicsPerWeek    = 6
	maxDetailsPerCourse = 2
	maxItemsPerDetail   = 8
)

const suggestPromptTemplate = `
اقترح أفكار دورات عربية حول الذكاء الاصطناعي وفق المخطط التالي. اكتب بالعربية الفصحى المبسطة.
تلميح الموضوع: %s
العدد المطلوب: %d

قيود:
- عناوين قصيرة وواضحة.
- وصف موجز ≤ 160 حرفاً.
- مستوى تقريبي لكل اقتراح.

أعد JSON فقط بهذا الشكل:
{
  "suggestions": [
    { "id": string, "title": string, "description": string, "level": "تأسيسي" | "مبتدئ" | "مبتدئ إلى متوسط" | "متوسط" | "متوسط إلى متقدم" | "متقدم" | "استراتيجي" }
  ]
}`

const generatePromptTemplate = `
أنشئ دورات عربية مبسطة وفق المخطط التالي. للجمهور العام، بلغة واضحة.
المواضيع: %s
عدد الدورات لكل موضوع: %d

قيود:
- لا تستخدم الإنجليزية أو لاتينية.
- عناوين مختصرة.
- الوصف ≤ 220 حرفاً.
- 3 أسابيع كحد أقصى لكل دورة، وكل أسبوع 3-5 مواضيع قصيرة.
- التفاصيل عنصران كحد أقصى من نوع "list" بعناصر موجزة.

أعد JSON بالمخطط التالي فقط:
{
  "courses": [
    {
      "id": number,
      "headline": string,
      "title": string,
      "level": "تأسيسي" | "مبتدئ" | "مبتدئ إلى متوسط" | "متوسط" | "متوسط إلى متقدم" | "متقدم" | "استراتيجي",
      "description": string,
      "weeks": [
        { "title": string, "description": string, "topics": string[] }
      ],
      "details": [
        { "type": "list", "title": string, "items": string[] }
      ]
    }
  ]
}`

type suggestionPayload struct {
	Suggestions []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Level       string `json:"level"`
	} `json:"suggestions"`
}

type coursePayload struct {
	Courses []struct {
		ID          json.RawMessage `json:"id"`
		Headline    string          `json:"headline"`
		Title       string          `json:"title"`
		Level       string          `json:"level"`
		Description string          `json:"description"`
		Weeks       []struct {
			Title       string   `json:"title"`
			Description string   `json:"description"`
			Topics      []string `json:"topics"`
		} `json:"weeks"`
		Details []struct {
			Type  string   `json:"type"`
			Title string   `json:"title"`
			Items []string `json:"items"`
		} `json:"details"`
	} `json:"courses"`
}

// SuggestCourses asks the model for a batch of course suggestions seeded by
// the harvested topic hint.
func (c *Client) SuggestCourses(ctx context.Context, topicHint string, count int) ([]domain.CourseSuggestion, error) {
	prompt := fmt.Sprintf(suggestPromptTemplate, topicHint, count)

	raw, err := c.Complete(ctx, prompt, PresetUtility)
	if err != nil {
		return nil, fmt.Errorf("complete suggestions: %w", err)
	}

	var payload suggestionPayload
	if err := decodeInto(raw, &payload); err != nil {
		return nil, err
	}

	now := time.Now()
	suggestions := make([]domain.CourseSuggestion, 0, len(payload.Suggestions))
	for _, s := range payload.Suggestions {
		if strings.TrimSpace(s.Title) == "" {
			continue
		}

		id := strings.TrimSpace(s.ID)
		if id == "" {
			id = uuid.NewString()
		}

		suggestions = append(suggestions, domain.CourseSuggestion{
			ID:          id,
			Title:       strings.TrimSpace(s.Title),
			Description: strings.TrimSpace(s.Description),
			Level:       s.Level,
			Votes:       0,
			CreatedAt:   now,
			Status:      domain.StatusSuggested,
		})
	}
	return suggestions, nil
}

// GenerateCourses asks the model for complete courses on the given topics,
// sanitizing every field so a partially-malformed response never corrupts
// the catalog.
func (c *Client) GenerateCourses(ctx context.Context, topics []string, countPerTopic int) ([]domain.Course, error) {
	prompt := fmt.Sprintf(generatePromptTemplate, strings.Join(topics, ", "), countPerTopic)

	raw, err := c.Complete(ctx, prompt, PresetUtility)
	if err != nil {
		return nil, fmt.Errorf("complete courses: %w", err)
	}

	var payload coursePayload
	if err := decodeInto(raw, &payload); err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	courses := make([]domain.Course, 0, len(payload.Courses))
	for idx, rc := range payload.Courses {
		course := domain.Course{
			ID:            coerceID(rc.ID, now+int64(idx)),
			Headline:      firstNonEmpty(rc.Headline, rc.Title, "دورة"),
			Title:         firstNonEmpty(rc.Title, rc.Headline, "دورة"),
			Level:         normalizeLevel(rc.Level),
			Description:   rc.Description,
			ConsultantURL: consultantURL,
			Source:        domain.SourceGenerated,
		}

		for _, w := range capSlice(rc.Weeks, maxWeeksPerCourse) {
			course.Weeks = append(course.Weeks, domain.Week{
				Title:       firstNonEmpty(w.Title, "الأسبوع"),
				Description: w.Description,
				Topics:      capSlice(w.Topics, maxTopicsPerWeek),
			})
		}

		for _, d := range capSlice(rc.Details, maxDetailsPerCourse) {
			detailType := domain.DetailList
			if d.Type == string(domain.DetailText) {
				detailType = domain.DetailText
			}
			course.Details = append(course.Details, domain.CourseDetail{
				Type:  detailType,
				Title: d.Title,
				Items: capSlice(d.Items, maxItemsPerDetail),
			})
		}

		courses = append(courses, course)
	}
	return courses, nil
}

// coerceID accepts either a JSON number or a numeric string, falling back
// to a locally derived id otherwise.
func coerceID(raw json.RawMessage, fallback int64) int64 {
	if len(raw) == 0 {
		return fallback
	}

	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil && asNumber > 0 {
		return asNumber
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		var parsed int64
		if _, serr := fmt.Sscan(asString, &parsed); serr == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

// normalizeLevel maps anything outside the known proficiency ladder to the
// foundational level.
func normalizeLevel(level string) string {
	level = strings.TrimSpace(level)
	for _, known := range domain.Levels {
		if level == known {
			return level
		}
	}
	return domain.Levels[0]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func capSlice[T any](values []T, max int) []T {
	if len(values) > max {
		return values[:max]
	}
	return values
}
