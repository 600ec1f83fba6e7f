package models

import "time"

// IssueStatus represents the lifecycle state of an issue.
type IssueStatus string

const (
	IssueStatusNew        IssueStatus = "new"
	IssueStatusTriaged    IssueStatus = "triaged"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusResolved   IssueStatus = "resolved"
	IssueStatusClosed     IssueStatus = "closed"
	IssueStatusWontFix    IssueStatus = "wont_fix"
)

// Terminal reports whether the status excludes an issue from severity aging.
func (s IssueStatus) Terminal() bool {
	switch s {
	case IssueStatusResolved, IssueStatusClosed, IssueStatusWontFix:
		return true
	}
	return false
}

// Priority is the discrete tier derived from current severity.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Issue is a cluster of semantically related feedback items.
//
// Invariants maintained by the pipeline:
//   - FeedbackCount equals the number of issue_feedback links
//   - BaseSeverity is monotonically non-decreasing
//   - CurrentSeverity is in [0,10] and Priority is a pure function of it
//   - FirstReportedAt is set at creation and never mutated
type Issue struct {
	ID              string
	Title           string
	Description     string
	Summary         string
	Category        Category
	BaseSeverity    float64
	CurrentSeverity float64
	Priority        Priority
	Sentiment       Sentiment
	SentimentScore  float64
	FeedbackCount   int
	Status          IssueStatus
	AssignedTo      string
	Resolution      string
	FirstReportedAt time.Time
	LastFeedbackAt  time.Time
	ResolvedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IssueFeedbackLink joins one feedback item to one issue with the similarity
// score that justified the link (1.0 for the founding item of a new issue).
type IssueFeedbackLink struct {
	IssueID         string
	FeedbackID      string
	SimilarityScore float64
	CreatedAt       time.Time
}
