package analyze

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/triage/internal/models"
)

func TestFallback_NegativeBugReport(t *testing.T) {
	a := Fallback("The app is broken and keeps crashing. This is terrible and blocking my team, please fix it urgent.", "App crash")

	assert.Equal(t, models.CategoryBug, a.Category)
	assert.Equal(t, models.SentimentNegative, a.Sentiment)
	assert.Less(t, a.SentimentScore, 0.0)
	assert.GreaterOrEqual(t, a.SentimentScore, -1.0)
	assert.Equal(t, models.UrgencyCritical, a.Urgency)
}

func TestFallback_PositivePraise(t *testing.T) {
	a := Fallback("I love this tool, it is awesome and the support was excellent. Thank you!", "")

	assert.Equal(t, models.CategoryPraise, a.Category)
	assert.Equal(t, models.SentimentPositive, a.Sentiment)
	// love + awesome + excellent + best? no — 3 hits: 0.5 + 0.3
	assert.InDelta(t, 0.8, a.SentimentScore, 0.001)
	assert.Equal(t, models.UrgencyMedium, a.Urgency)
}

func TestFallback_NeutralWhenBalanced(t *testing.T) {
	a := Fallback("The export is broken but support was great.", "")

	assert.Equal(t, models.SentimentNeutral, a.Sentiment)
	assert.Equal(t, 0.0, a.SentimentScore)
}

func TestFallback_SentimentScoreScalesWithHits(t *testing.T) {
	one := Fallback("this is broken", "")
	three := Fallback("this is broken, terrible, the worst", "")

	assert.InDelta(t, -0.6, one.SentimentScore, 0.001)
	assert.InDelta(t, -0.8, three.SentimentScore, 0.001)
}

func TestFallback_CategoryPriorityOrder(t *testing.T) {
	// Bug markers win over feature markers when both are present.
	a := Fallback("Please add a fix for this error", "")
	assert.Equal(t, models.CategoryBug, a.Category)

	// "would love" is a feature phrase, not praise, despite containing "love".
	a = Fallback("Would love to have dark mode", "")
	assert.Equal(t, models.CategoryFeatureRequest, a.Category)

	a = Fallback("Please add keyboard shortcuts", "")
	assert.Equal(t, models.CategoryFeatureRequest, a.Category)

	a = Fallback("How do I change my plan?", "")
	assert.Equal(t, models.CategoryQuestion, a.Category)

	a = Fallback("meh", "")
	assert.Equal(t, models.CategoryOther, a.Category)
}

func TestFallback_UrgencyTiers(t *testing.T) {
	assert.Equal(t, models.UrgencyCritical, Fallback("this is a blocker", "").Urgency)
	assert.Equal(t, models.UrgencyCritical, Fallback("please respond asap", "").Urgency)
	assert.Equal(t, models.UrgencyHigh, Fallback("we need this to ship", "").Urgency)
	assert.Equal(t, models.UrgencyMedium, Fallback("just a thought", "").Urgency)
}

func TestFallback_Keywords(t *testing.T) {
	a := Fallback("Export pipeline timeout: export pipeline retries forever, dashboard unusable afterwards today", "")

	// Distinct words longer than four characters, first five, in order.
	assert.Equal(t, []string{"export", "pipeline", "timeout", "retries", "forever"}, a.Keywords)
}

func TestFallback_KeywordsStripPunctuation(t *testing.T) {
	a := Fallback(`"Billing!" (invoices) [totals]...`, "")
	assert.Equal(t, []string{"billing", "invoices", "totals"}, a.Keywords)
}

func TestFallback_SummaryTruncation(t *testing.T) {
	long := strings.Repeat("x", 500)
	a := Fallback(long, "")

	require.Len(t, a.Summary, 203)
	assert.True(t, strings.HasSuffix(a.Summary, "..."))

	short := "short feedback"
	assert.Equal(t, short, Fallback(short, "").Summary)
}

func TestFallback_TitleInfluencesClassification(t *testing.T) {
	// Category markers in the title count even when absent from the body.
	a := Fallback("it happens every time I open the page", "Crash on startup")
	assert.Equal(t, models.CategoryBug, a.Category)
}

func TestFallbackAnalyzer_ImplementsAnalyzer(t *testing.T) {
	var analyzer Analyzer = FallbackAnalyzer{}

	a, err := analyzer.ProcessFeedback(context.Background(), "the app is broken", "")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryBug, a.Category)
}
