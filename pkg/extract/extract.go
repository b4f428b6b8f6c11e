// Package extract turns raw scraped HTML into a strictly validated draft
// document via the Anthropic API. The schema is enforced here, at the
// collaborator boundary: malformed model output surfaces as an explicit
// error and never leaks downstream as partial-but-valid data.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-directory/internal/model"
	"github.com/sells-group/provider-directory/pkg/anthropic"
)

const systemPrompt = `You extract structured data about home-service businesses from scraped web pages.

Respond with a single valid JSON object and nothing else, using exactly this top-level shape:
{
  "business_info": {
    "name": "<business name, required>",
    "description": "", "phone": "", "website": "", "address": "",
    "service_areas": [], "years_in_business": 0, "employee_count": 0,
    "license": {"number": "", "type": "", "state": "", "verified": false},
    "payment_methods": [], "social_links": [], "awards": []
  },
  "services": {"offered": [], "specialties": []},
  "reviews": {
    "rating": 0.0, "total_reviews": 0, "distribution": {},
    "items": [{"reviewer": "", "date": "", "platform": "", "rating": 0.0, "text": ""}]
  },
  "customer_interaction": {"response_time": "", "availability": "", "booking_url": "", "emergency_service": false},
  "media": {"photo_count": 0, "video_count": 0, "gallery_links": []}
}

Omit fields you cannot find rather than guessing. Ratings are on a 0-5 scale.
Review dates use YYYY-MM-DD when the page shows one. Do not invent reviews,
license numbers, or contact details that are not on the page.`

const userPromptTemplate = `Source URL: %s

Page HTML:
%s%s`

// maxHTMLChars bounds how much raw HTML goes into one request.
const maxHTMLChars = 150000

// Page is one scraped page handed to the extraction collaborator.
type Page struct {
	SourceURL string
	RawHTML   string

	// RawText is an optional plain-text rendering used as a cross-check
	// alongside the HTML.
	RawText string
}

// Client extracts a draft document from a scraped page.
type Client interface {
	Extract(ctx context.Context, page Page) (*model.DraftDocument, error)
}

// Config holds the extraction model settings.
type Config struct {
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

type llmExtractor struct {
	ai  anthropic.Client
	cfg Config
}

// New creates an extraction client over the given Anthropic client.
func New(ai anthropic.Client, cfg Config) Client {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &llmExtractor{ai: ai, cfg: cfg}
}

// Extract runs one extraction call and validates the result against the
// draft schema.
func (e *llmExtractor) Extract(ctx context.Context, page Page) (*model.DraftDocument, error) {
	if strings.TrimSpace(page.RawHTML) == "" {
		return nil, eris.Errorf("extract: page %s has no html", page.SourceURL)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	html := page.RawHTML
	if len(html) > maxHTMLChars {
		html = html[:maxHTMLChars]
	}

	var crossCheck string
	if page.RawText != "" {
		text := page.RawText
		if len(text) > maxHTMLChars/3 {
			text = text[:maxHTMLChars/3]
		}
		crossCheck = "\n\nPlain-text rendering for cross-checking:\n" + text
	}

	temp := 0.0
	resp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		System: []anthropic.SystemBlock{
			{Text: systemPrompt, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, page.SourceURL, html, crossCheck)},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: model call for %s", page.SourceURL)
	}

	resp.Usage.LogCost(e.cfg.Model, "extract")

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, eris.Errorf("extract: empty model output for %s", page.SourceURL)
	}

	draft, err := model.ParseDraft([]byte(cleanJSON(text)))
	if err != nil {
		zap.L().Warn("extract: rejected malformed draft",
			zap.String("url", page.SourceURL),
			zap.Error(err),
		)
		return nil, eris.Wrapf(err, "extract: malformed draft for %s", page.SourceURL)
	}
	return draft, nil
}

// cleanJSON strips markdown fences and any prose around the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
