package models

import "time"

// ActionType tags the kind of operation performed against an issue.
type ActionType string

const (
	ActionTypeTicket       ActionType = "jira_ticket"
	ActionTypeAssignment   ActionType = "assignment"
	ActionTypeStatusChange ActionType = "status_change"
	ActionTypeResolution   ActionType = "resolution"
	ActionTypeComment      ActionType = "comment"
	ActionTypeEscalation   ActionType = "escalation"
)

// ActionStatus is the execution state of an action.
type ActionStatus string

const (
	ActionStatusPending   ActionStatus = "pending"
	ActionStatusCompleted ActionStatus = "completed"
	ActionStatusFailed    ActionStatus = "failed"
)

// Action records an operation performed against an issue. Rows are
// append-only; only Status, ErrorMessage, and CompletedAt mutate after
// creation.
type Action struct {
	ID           string
	IssueID      string
	Type         ActionType
	Payload      map[string]string
	ExternalID   string
	ExternalURL  string
	PerformedBy  string
	Status       ActionStatus
	ErrorMessage string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}
