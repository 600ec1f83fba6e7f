package models

import "time"

// ProviderType identifies the kind of feedback source.
type ProviderType string

const (
	ProviderTypeDiscord ProviderType = "discord"
	ProviderTypeSlack   ProviderType = "slack"
	ProviderTypeGitHub  ProviderType = "github"
	ProviderTypeTwitter ProviderType = "twitter"
	ProviderTypeSupport ProviderType = "support"
	ProviderTypeCustom  ProviderType = "custom"
)

// ProviderStatus is the operational state of a registered provider.
type ProviderStatus string

const (
	ProviderStatusActive   ProviderStatus = "active"
	ProviderStatusInactive ProviderStatus = "inactive"
	ProviderStatusError    ProviderStatus = "error"
)

// Provider is the stored record for a feedback source.
type Provider struct {
	ID         string
	Name       string
	Type       ProviderType
	Status     ProviderStatus
	LastSyncAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserRole is the role of a user in the triage system.
type UserRole string

const (
	UserRolePM        UserRole = "pm"
	UserRoleAdmin     UserRole = "admin"
	UserRoleDeveloper UserRole = "developer"
)

// User is an assignee for issues.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      UserRole
	CreatedAt time.Time
	UpdatedAt time.Time
}
