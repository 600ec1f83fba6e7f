// Package analyze classifies feedback text and generates embeddings.
package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/triage/internal/models"
)

// ErrInvalidResponse indicates the LLM returned output that failed strict
// shape validation. Callers should fall back to the deterministic analyzer.
var ErrInvalidResponse = errors.New("invalid analysis response")

// Analyzer produces a structured analysis for one piece of feedback.
type Analyzer interface {
	ProcessFeedback(ctx context.Context, content, title string) (models.Analysis, error)
}

// EmbedFunc generates an embedding vector for a text fragment. It matches
// chromem-go's EmbeddingFunc signature so chromem's embedding providers can
// be used directly.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Client wraps the Anthropic API for feedback classification.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an analysis client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildPrompt constructs the system and user prompts for classification.
func buildPrompt(content, title string) (system string, user string) {
	system = `You are a feedback analyzer. Analyze the user feedback and return a JSON object with these exact fields:
- "summary": 1-2 sentence summary of the feedback
- "category": one of "bug", "feature_request", "complaint", "question", "praise", "other"
- "sentiment": one of "positive", "negative", "neutral", "mixed"
- "sentiment_score": number from -1 (very negative) to 1 (very positive)
- "keywords": array of 3-5 relevant keywords
- "urgency": one of "low", "medium", "high", "critical"

Return ONLY valid JSON, no explanation or markdown.`

	var sb strings.Builder
	if title != "" {
		sb.WriteString(title)
		sb.WriteString("\n\n")
	}
	sb.WriteString(content)
	user = sb.String()
	return
}

// rawAnalysis is the wire shape of the LLM response.
type rawAnalysis struct {
	Summary        string    `json:"summary"`
	Category       string    `json:"category"`
	Sentiment      string    `json:"sentiment"`
	SentimentScore *float64  `json:"sentiment_score"`
	Keywords       []string  `json:"keywords"`
	Urgency        string    `json:"urgency"`
}

// ProcessFeedback sends feedback text to the LLM and returns the parsed
// analysis. The response must pass strict shape validation; anything else
// returns ErrInvalidResponse so the caller can degrade to Fallback.
func (c *Client) ProcessFeedback(ctx context.Context, content, title string) (models.Analysis, error) {
	systemPrompt, userPrompt := buildPrompt(content, title)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return models.Analysis{}, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return models.Analysis{}, fmt.Errorf("%w: no text content in API response", ErrInvalidResponse)
	}

	return parseAnalysis(text)
}

// parseAnalysis validates and converts the raw LLM output.
func parseAnalysis(text string) (models.Analysis, error) {
	text = stripFencing(text)

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return models.Analysis{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if raw.Summary == "" {
		return models.Analysis{}, fmt.Errorf("%w: missing summary", ErrInvalidResponse)
	}
	if raw.SentimentScore == nil {
		return models.Analysis{}, fmt.Errorf("%w: missing sentiment_score", ErrInvalidResponse)
	}
	score := *raw.SentimentScore
	if score < -1 || score > 1 {
		return models.Analysis{}, fmt.Errorf("%w: sentiment_score %v out of range", ErrInvalidResponse, score)
	}

	return models.Analysis{
		Summary:        raw.Summary,
		Category:       validCategory(raw.Category),
		Sentiment:      validSentiment(raw.Sentiment),
		SentimentScore: score,
		Keywords:       raw.Keywords,
		Urgency:        validUrgency(raw.Urgency),
	}, nil
}

// stripFencing removes markdown code fencing if present.
func stripFencing(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

func validCategory(s string) models.Category {
	switch c := models.Category(s); c {
	case models.CategoryBug, models.CategoryFeatureRequest, models.CategoryComplaint,
		models.CategoryQuestion, models.CategoryPraise, models.CategoryOther:
		return c
	}
	return models.CategoryOther
}

func validSentiment(s string) models.Sentiment {
	switch v := models.Sentiment(s); v {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral, models.SentimentMixed:
		return v
	}
	return models.SentimentNeutral
}

func validUrgency(s string) models.Urgency {
	switch u := models.Urgency(s); u {
	case models.UrgencyLow, models.UrgencyMedium, models.UrgencyHigh, models.UrgencyCritical:
		return u
	}
	return models.UrgencyMedium
}
