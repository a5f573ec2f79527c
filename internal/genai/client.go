package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aiguidepro/internal/config"
)

// ErrMissingAPIKey is returned on first use when no credential is
// configured. The message is shown to the user as-is.
var ErrMissingAPIKey = errors.New("لم يتم إعداد مفتاح Gemini. أضف GEMINI_API_KEY إلى البيئة")

// MalformedResponseError reports a model response that stayed unparseable
// after the repair pass. Callers treat it as retryable by the user, not
// fatal to the process.
type MalformedResponseError struct {
	Excerpt string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %v (excerpt: %s)", e.Err, e.Excerpt)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Preset names a generation-parameter profile. Schema-bound tasks use the
// low-randomness utility profile; conversational replies use the looser one.
type Preset struct {
	Name             string
	Temperature      float64
	TopP             float64
	TopK             int
	MaxOutputTokens  int
	ResponseMIMEType string
}

var (
	// PresetUtility pins the response to machine-parseable JSON.
	PresetUtility = Preset{
		Name:             "utility",
		Temperature:      0.3,
		TopP:             0.9,
		TopK:             32,
		MaxOutputTokens:  2048,
		ResponseMIMEType: "application/json",
	}

	// PresetConversational trades determinism for fluency.
	PresetConversational = Preset{
		Name:            "conversational",
		Temperature:     0.7,
		MaxOutputTokens: 2048,
	}
)

// Client wraps the generative-language generateContent endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg config.Gemini, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP,omitempty"`
	TopK             int     `json:"topK,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the prompt with the preset's generation parameters and
// returns the raw generated text.
func (c *Client) Complete(ctx context.Context, prompt string, preset Preset) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:      preset.Temperature,
			TopP:             preset.TopP,
			TopK:             preset.TopK,
			MaxOutputTokens:  preset.MaxOutputTokens,
			ResponseMIMEType: preset.ResponseMIMEType,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate payload: %w", err)
	}

	target := fmt.Sprintf("%s/%s:generateContent?key=%s", c.endpoint, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call generative endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("generative endpoint error %s: %s", resp.Status, strings.TrimSpace(string(excerpt)))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("generative endpoint error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &MalformedResponseError{Excerpt: "no candidates", Err: errors.New("empty response")}
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// decodeInto parses generated text as strict JSON, applying one repair pass
// that strips code-fence wrapping before giving up.
func decodeInto(raw string, v interface{}) error {
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}

	repaired := stripCodeFences(raw)
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return &MalformedResponseError{Excerpt: excerpt(raw), Err: err}
	}
	return nil
}

// stripCodeFences removes a leading ```json/``` marker and a trailing ```.
func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func excerpt(raw string) string {
	raw = strings.TrimSpace(raw)
	runes := []rune(raw)
	if len(runes) > 120 {
		return string(runes[:120]) + "…"
	}
	return raw
}
