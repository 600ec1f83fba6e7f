package models

import "time"

// Category classifies what kind of feedback an item or issue represents.
type Category string

const (
	CategoryBug            Category = "bug"
	CategoryFeatureRequest Category = "feature_request"
	CategoryComplaint      Category = "complaint"
	CategoryQuestion       Category = "question"
	CategoryPraise         Category = "praise"
	CategoryOther          Category = "other"
)

// Sentiment is the overall tone of a piece of feedback.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentMixed    Sentiment = "mixed"
)

// Urgency is the classification-derived tier feeding into severity.
// Distinct from Priority, which is derived from the severity score.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// ContentType tags the format of raw feedback content.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeHTML     ContentType = "html"
)

// Analysis holds the classification result for one feedback item,
// produced either by the LLM or by the deterministic fallback.
type Analysis struct {
	Summary        string
	Category       Category
	Sentiment      Sentiment
	SentimentScore float64 // -1 (very negative) .. 1 (very positive)
	Keywords       []string
	Urgency        Urgency
}

// FeedbackItem is one normalized unit of feedback ingested from a provider.
// (ProviderID, ExternalID) is unique: re-ingesting the same external record
// is a no-op. Processed transitions false->true exactly once, written only
// by the classification step.
type FeedbackItem struct {
	ID           string
	ProviderID   string
	ExternalID   string
	SourceURL    string
	AuthorID     string
	AuthorName   string
	AuthorEmail  string
	AuthorAvatar string
	Title        string
	Content      string
	ContentType  ContentType
	Processed    bool

	// Set by MarkProcessed after classification.
	Summary        string
	Category       Category
	Sentiment      Sentiment
	SentimentScore float64
	Keywords       []string

	Metadata        map[string]string
	SourceCreatedAt time.Time
	ProcessedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
