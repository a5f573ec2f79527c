package domain

import "time"

// SuggestionStatus tracks whether a community suggestion has been promoted.
type SuggestionStatus string

const (
	StatusSuggested SuggestionStatus = "suggested"
	StatusGenerated SuggestionStatus = "generated"
)

// Level labels follow the Arabic proficiency ladder used across the catalog.
var Levels = []string{
	"تأسيسي",
	"مبتدئ",
	"مبتدئ إلى متوسط",
	"متوسط",
	"متوسط إلى متقدم",
	"متقدم",
	"استراتيجي",
}

// CourseSuggestion is a community-proposed course topic with a vote counter.
// Votes only increase; once Status reaches generated it never reverts.
type CourseSuggestion struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Level       string           `json:"level,omitempty"`
	Votes       int              `json:"votes"`
	CreatedAt   time.Time        `json:"createdAt"`
	Status      SuggestionStatus `json:"status"`
}

// CourseSource distinguishes seeded catalog entries from generated ones.
type CourseSource string

const (
	SourceStatic    CourseSource = "static"
	SourceGenerated CourseSource = "generated"
)

// Week is a single unit of a course plan.
type Week struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Topics      []string `json:"topics"`
}

// DetailType selects the rendering of a course detail block.
type DetailType string

const (
	DetailList DetailType = "list"
	DetailText DetailType = "text"
)

// CourseDetail is an auxiliary block attached to a course.
type CourseDetail struct {
	Type  DetailType `json:"type"`
	Title string     `json:"title,omitempty"`
	Items []string   `json:"items"`
}

// Course is a published catalog entry. Generated courses are appended
// post-hoc and merged by numeric ID, last write wins.
type Course struct {
	ID            int64          `json:"id"`
	Headline      string         `json:"headline"`
	Title         string         `json:"title"`
	Level         string         `json:"level"`
	Description   string         `json:"description"`
	Weeks         []Week         `json:"weeks"`
	Details       []CourseDetail `json:"details"`
	ConsultantURL string         `json:"consultantUrl,omitempty"`
	Source        CourseSource   `json:"source,omitempty"`
}
