package store

import (
	"context"
	"errors"
	"time"

	"github.com/joescharf/triage/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// FeedbackListFilter specifies filters for listing feedback items.
type FeedbackListFilter struct {
	ProviderID string
	Processed  *bool
	Limit      int
}

// IssueListFilter specifies filters for listing issues.
type IssueListFilter struct {
	Status   models.IssueStatus
	Priority models.Priority
	Category models.Category
	Limit    int
}

// Store defines the persistence interface for triage.
type Store interface {
	// Providers
	UpsertProvider(ctx context.Context, p *models.Provider) error
	GetProvider(ctx context.Context, id string) (*models.Provider, error)
	ListProviders(ctx context.Context) ([]*models.Provider, error)
	TouchProviderSync(ctx context.Context, id string, at time.Time) error

	// Feedback
	CreateFeedbackItem(ctx context.Context, item *models.FeedbackItem) error
	GetFeedbackItem(ctx context.Context, id string) (*models.FeedbackItem, error)
	FindFeedbackByExternalID(ctx context.Context, providerID, externalID string) (*models.FeedbackItem, error)
	ListFeedback(ctx context.Context, filter FeedbackListFilter) ([]*models.FeedbackItem, error)
	UnprocessedFeedback(ctx context.Context, limit int) ([]*models.FeedbackItem, error)
	MarkFeedbackProcessed(ctx context.Context, id string, analysis models.Analysis) error

	// Issues
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error)
	ListOpenIssues(ctx context.Context) ([]*models.Issue, error)
	UpdateIssue(ctx context.Context, issue *models.Issue) error

	// Issue <-> Feedback links
	LinkFeedback(ctx context.Context, link *models.IssueFeedbackLink) error
	ListIssueFeedback(ctx context.Context, issueID string) ([]*models.IssueFeedbackLink, error)
	CountIssueFeedback(ctx context.Context, issueID string) (int, error)

	// Actions
	CreateAction(ctx context.Context, action *models.Action) error
	ListActions(ctx context.Context, issueID string) ([]*models.Action, error)
	CompleteAction(ctx context.Context, id string, status models.ActionStatus, errorMessage string) error

	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
