// Package severity computes issue severity scores and priority tiers.
// Everything here is pure and deterministic: callers pass the reference
// time explicitly.
package severity

import (
	"math"
	"time"

	"github.com/joescharf/triage/internal/models"
)

// Factors are the weighted inputs to a severity calculation.
type Factors struct {
	SentimentScore  float64 // -1..1; only negative sentiment contributes
	Urgency         models.Urgency
	FeedbackCount   int
	AffectedUsers   int // approximated as feedback count upstream
	Category        models.Category
	FirstReportedAt time.Time
	LastFeedbackAt  time.Time
}

// Result is a computed severity score pair with its derived priority.
type Result struct {
	BaseSeverity    float64
	CurrentSeverity float64
	Priority        models.Priority
}

const (
	weightSentiment     = 0.15
	weightUrgency       = 0.20
	weightFeedbackCount = 0.20
	weightAffectedUsers = 0.15
	weightCategory      = 0.15
	weightRecency       = 0.15

	timeWeightPerDay  = 0.05
	maxTimeMultiplier = 2.0
)

var urgencyScores = map[models.Urgency]float64{
	models.UrgencyCritical: 10,
	models.UrgencyHigh:     7,
	models.UrgencyMedium:   4,
	models.UrgencyLow:      1,
}

var categoryScores = map[models.Category]float64{
	models.CategoryBug:            8,
	models.CategoryComplaint:      7,
	models.CategoryFeatureRequest: 4,
	models.CategoryQuestion:       2,
	models.CategoryPraise:         0,
	models.CategoryOther:          3,
}

// Calculate derives base severity from the weighted factors, applies the
// unresolved-time multiplier, and maps the result to a priority tier.
func Calculate(f Factors, now time.Time) Result {
	base := baseSeverity(f, now)
	current := math.Min(base*timeMultiplier(f.FirstReportedAt, now), 10)

	return Result{
		BaseSeverity:    round2(base),
		CurrentSeverity: round2(current),
		Priority:        PriorityFor(current),
	}
}

func baseSeverity(f Factors, now time.Time) float64 {
	var score float64

	// Negative sentiment raises severity; positive sentiment is neutral here.
	if f.SentimentScore < 0 {
		score += math.Abs(f.SentimentScore) * 10 * weightSentiment
	}

	urgency, ok := urgencyScores[f.Urgency]
	if !ok {
		urgency = 4
	}
	score += urgency * weightUrgency

	// Logarithmic curves: diminishing marginal severity per duplicate report.
	score += logCurve(f.FeedbackCount) * weightFeedbackCount
	score += logCurve(f.AffectedUsers) * weightAffectedUsers

	category, ok := categoryScores[f.Category]
	if !ok {
		category = 3
	}
	score += category * weightCategory

	// Fresher activity raises severity.
	daysSinceLast := math.Max(0, now.Sub(f.LastFeedbackAt).Hours()/24)
	score += math.Max(0, 10-daysSinceLast) * weightRecency

	return math.Min(score, 10)
}

func logCurve(count int) float64 {
	return math.Min(math.Log10(float64(count)+1)*5, 10)
}

func timeMultiplier(firstReportedAt, now time.Time) float64 {
	daysUnresolved := now.Sub(firstReportedAt).Hours() / 24
	return math.Min(1+daysUnresolved*timeWeightPerDay, maxTimeMultiplier)
}

// RecalculateWithTime re-derives current severity from a stored base
// severity and first-report time, without touching other factors. Used for
// periodic aging of open issues.
func RecalculateWithTime(baseSeverity float64, firstReportedAt, now time.Time) float64 {
	return round2(math.Min(baseSeverity*timeMultiplier(firstReportedAt, now), 10))
}

// PriorityFor maps a severity score to its priority tier.
func PriorityFor(severity float64) models.Priority {
	switch {
	case severity >= 8:
		return models.PriorityCritical
	case severity >= 6:
		return models.PriorityHigh
	case severity >= 3:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
