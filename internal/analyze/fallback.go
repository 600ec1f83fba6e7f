package analyze

import (
	"context"
	"strings"

	"github.com/joescharf/triage/internal/models"
)

var negativeWords = []string{
	"crash", "broken", "terrible", "awful", "frustrated", "angry",
	"worst", "hate", "blocking",
}

var positiveWords = []string{
	"great", "awesome", "love", "fantastic", "excellent", "best",
	"amazing", "helpful",
}

// Fallback derives an analysis from keyword heuristics alone. It is used
// when the LLM is unavailable or returns an unparseable response, so the
// pipeline always makes forward progress.
func Fallback(content, title string) models.Analysis {
	text := content
	if title != "" {
		text = title + "\n\n" + content
	}
	lower := strings.ToLower(text)

	summary := content
	if len(summary) > 200 {
		summary = summary[:200] + "..."
	}

	sentiment, score := fallbackSentiment(lower)

	return models.Analysis{
		Summary:        summary,
		Category:       fallbackCategory(lower),
		Sentiment:      sentiment,
		SentimentScore: score,
		Keywords:       fallbackKeywords(lower),
		Urgency:        fallbackUrgency(lower),
	}
}

func fallbackCategory(lower string) models.Category {
	switch {
	case containsAny(lower, "bug", "crash", "error", "broken"):
		return models.CategoryBug
	case containsAny(lower, "feature", "would love", "please add"):
		return models.CategoryFeatureRequest
	case containsAny(lower, "terrible", "awful", "disappointed"):
		return models.CategoryComplaint
	case containsAny(lower, "how", "?"):
		return models.CategoryQuestion
	case containsAny(lower, "great", "love", "awesome"):
		return models.CategoryPraise
	}
	return models.CategoryOther
}

func fallbackSentiment(lower string) (models.Sentiment, float64) {
	var neg, pos int
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}

	switch {
	case neg > pos:
		return models.SentimentNegative, clamp(-(0.5 + 0.1*float64(neg)), -1, 1)
	case pos > neg:
		return models.SentimentPositive, clamp(0.5+0.1*float64(pos), -1, 1)
	}
	return models.SentimentNeutral, 0
}

func fallbackUrgency(lower string) models.Urgency {
	if containsAny(lower, "urgent", "critical", "asap", "blocker") {
		return models.UrgencyCritical
	}
	if containsAny(lower, "important", "need") {
		return models.UrgencyHigh
	}
	return models.UrgencyMedium
}

// fallbackKeywords takes the first five distinct words longer than four
// characters, in order of appearance.
func fallbackKeywords(lower string) []string {
	seen := make(map[string]bool)
	var keywords []string
	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,!?;:\"'()[]")
		if len(word) <= 4 || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) == 5 {
			break
		}
	}
	return keywords
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FallbackAnalyzer is an Analyzer that always uses the heuristic path.
// Useful when no API key is configured.
type FallbackAnalyzer struct{}

func (FallbackAnalyzer) ProcessFeedback(_ context.Context, content, title string) (models.Analysis, error) {
	return Fallback(content, title), nil
}
