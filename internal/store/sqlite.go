package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/triage/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors during pipeline runs.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// marshalJSON encodes v, falling back to the given literal on error.
func marshalJSON(v any, fallback string) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(data)
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Providers ---

func (s *SQLiteStore) UpsertProvider(ctx context.Context, p *models.Provider) error {
	now := time.Now().UTC()
	if p.Status == "" {
		p.Status = models.ProviderStatusActive
	}
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO providers (id, name, type, status, last_sync_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, type=excluded.type, status=excluded.status, updated_at=excluded.updated_at`,
		p.ID, p.Name, string(p.Type), string(p.Status), p.LastSyncAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert provider: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	p := &models.Provider{}
	var ptype, status string
	var lastSync sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, status, last_sync_at, created_at, updated_at FROM providers WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &ptype, &status, &lastSync, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("provider %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}

	p.Type = models.ProviderType(ptype)
	p.Status = models.ProviderStatus(status)
	if lastSync.Valid {
		p.LastSyncAt = &lastSync.Time
	}
	return p, nil
}

func (s *SQLiteStore) ListProviders(ctx context.Context) ([]*models.Provider, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, status, last_sync_at, created_at, updated_at FROM providers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var providers []*models.Provider
	for rows.Next() {
		p := &models.Provider{}
		var ptype, status string
		var lastSync sql.NullTime
		if err := rows.Scan(&p.ID, &p.Name, &ptype, &status, &lastSync, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		p.Type = models.ProviderType(ptype)
		p.Status = models.ProviderStatus(status)
		if lastSync.Valid {
			p.LastSyncAt = &lastSync.Time
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (s *SQLiteStore) TouchProviderSync(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE providers SET last_sync_at=?, updated_at=? WHERE id=?`, at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch provider sync: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("provider %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Feedback ---

const feedbackColumns = `id, provider_id, external_id, source_url, author_id, author_name, author_email, author_avatar,
	title, content, content_type, processed, summary, category, sentiment, sentiment_score, keywords, metadata,
	source_created_at, processed_at, created_at, updated_at`

func (s *SQLiteStore) CreateFeedbackItem(ctx context.Context, item *models.FeedbackItem) error {
	if item.ID == "" {
		item.ID = newULID()
	}
	if item.ContentType == "" {
		item.ContentType = models.ContentTypeText
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback_items (`+feedbackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ProviderID, item.ExternalID, item.SourceURL,
		item.AuthorID, item.AuthorName, item.AuthorEmail, item.AuthorAvatar,
		item.Title, item.Content, string(item.ContentType), boolToInt(item.Processed),
		item.Summary, string(item.Category), string(item.Sentiment), item.SentimentScore,
		marshalJSON(item.Keywords, "[]"), marshalJSON(item.Metadata, "{}"),
		item.SourceCreatedAt.UTC(), item.ProcessedAt, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create feedback item: %w", err)
	}
	return nil
}

// scanFeedback scans one feedback row from the given row scanner.
func scanFeedback(scan func(dest ...any) error) (*models.FeedbackItem, error) {
	item := &models.FeedbackItem{}
	var contentType, category, sentiment, keywordsJSON, metadataJSON string
	var processed int
	var processedAt sql.NullTime

	err := scan(&item.ID, &item.ProviderID, &item.ExternalID, &item.SourceURL,
		&item.AuthorID, &item.AuthorName, &item.AuthorEmail, &item.AuthorAvatar,
		&item.Title, &item.Content, &contentType, &processed,
		&item.Summary, &category, &sentiment, &item.SentimentScore,
		&keywordsJSON, &metadataJSON,
		&item.SourceCreatedAt, &processedAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	item.ContentType = models.ContentType(contentType)
	item.Category = models.Category(category)
	item.Sentiment = models.Sentiment(sentiment)
	item.Processed = processed != 0
	if processedAt.Valid {
		item.ProcessedAt = &processedAt.Time
	}
	_ = json.Unmarshal([]byte(keywordsJSON), &item.Keywords)
	_ = json.Unmarshal([]byte(metadataJSON), &item.Metadata)
	return item, nil
}

func (s *SQLiteStore) GetFeedbackItem(ctx context.Context, id string) (*models.FeedbackItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+feedbackColumns+` FROM feedback_items WHERE id = ?`, id)
	item, err := scanFeedback(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("feedback %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get feedback item: %w", err)
	}
	return item, nil
}

func (s *SQLiteStore) FindFeedbackByExternalID(ctx context.Context, providerID, externalID string) (*models.FeedbackItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+feedbackColumns+` FROM feedback_items WHERE provider_id = ? AND external_id = ?`,
		providerID, externalID)
	item, err := scanFeedback(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("feedback %s/%s: %w", providerID, externalID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find feedback by external id: %w", err)
	}
	return item, nil
}

func (s *SQLiteStore) ListFeedback(ctx context.Context, filter FeedbackListFilter) ([]*models.FeedbackItem, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback_items`
	var conditions []string
	var args []any

	if filter.ProviderID != "" {
		conditions = append(conditions, "provider_id = ?")
		args = append(args, filter.ProviderID)
	}
	if filter.Processed != nil {
		conditions = append(conditions, "processed = ?")
		args = append(args, boolToInt(*filter.Processed))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryFeedback(ctx, query, args...)
}

func (s *SQLiteStore) UnprocessedFeedback(ctx context.Context, limit int) ([]*models.FeedbackItem, error) {
	return s.queryFeedback(ctx,
		`SELECT `+feedbackColumns+` FROM feedback_items WHERE processed = 0 ORDER BY created_at ASC LIMIT ?`,
		limit)
}

func (s *SQLiteStore) queryFeedback(ctx context.Context, query string, args ...any) ([]*models.FeedbackItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*models.FeedbackItem
	for rows.Next() {
		item, err := scanFeedback(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan feedback item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) MarkFeedbackProcessed(ctx context.Context, id string, analysis models.Analysis) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE feedback_items SET
			processed = 1, summary = ?, category = ?, sentiment = ?, sentiment_score = ?,
			keywords = ?, processed_at = ?, updated_at = ?
		WHERE id = ?`,
		analysis.Summary, string(analysis.Category), string(analysis.Sentiment), analysis.SentimentScore,
		marshalJSON(analysis.Keywords, "[]"), now, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark feedback processed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("feedback %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Issues ---

const issueColumns = `id, title, description, summary, category, base_severity, current_severity, priority,
	sentiment, sentiment_score, feedback_count, status, assigned_to, resolution,
	first_reported_at, last_feedback_at, resolved_at, created_at, updated_at`

func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = newULID()
	}
	if issue.Status == "" {
		issue.Status = models.IssueStatusNew
	}
	now := time.Now().UTC()
	issue.CreatedAt = now
	issue.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (`+issueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, issue.Title, issue.Description, issue.Summary, string(issue.Category),
		issue.BaseSeverity, issue.CurrentSeverity, string(issue.Priority),
		string(issue.Sentiment), issue.SentimentScore, issue.FeedbackCount, string(issue.Status),
		issue.AssignedTo, issue.Resolution,
		issue.FirstReportedAt.UTC(), issue.LastFeedbackAt.UTC(), issue.ResolvedAt,
		issue.CreatedAt, issue.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

func scanIssue(scan func(dest ...any) error) (*models.Issue, error) {
	issue := &models.Issue{}
	var category, priority, sentiment, status string
	var resolvedAt sql.NullTime

	err := scan(&issue.ID, &issue.Title, &issue.Description, &issue.Summary, &category,
		&issue.BaseSeverity, &issue.CurrentSeverity, &priority,
		&sentiment, &issue.SentimentScore, &issue.FeedbackCount, &status,
		&issue.AssignedTo, &issue.Resolution,
		&issue.FirstReportedAt, &issue.LastFeedbackAt, &resolvedAt,
		&issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		return nil, err
	}

	issue.Category = models.Category(category)
	issue.Priority = models.Priority(priority)
	issue.Sentiment = models.Sentiment(sentiment)
	issue.Status = models.IssueStatus(status)
	if resolvedAt.Valid {
		issue.ResolvedAt = &resolvedAt.Time
	}
	return issue, nil
}

func (s *SQLiteStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	issue, err := scanIssue(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	var conditions []string
	var args []any

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(filter.Priority))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(filter.Category))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY current_severity DESC, last_feedback_at DESC`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryIssues(ctx, query, args...)
}

func (s *SQLiteStore) ListOpenIssues(ctx context.Context) ([]*models.Issue, error) {
	return s.queryIssues(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE status NOT IN ('resolved', 'closed', 'wont_fix')
		ORDER BY current_severity DESC`)
}

func (s *SQLiteStore) queryIssues(ctx context.Context, query string, args ...any) ([]*models.Issue, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func (s *SQLiteStore) UpdateIssue(ctx context.Context, issue *models.Issue) error {
	issue.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE issues SET title=?, description=?, summary=?, category=?, base_severity=?, current_severity=?,
			priority=?, sentiment=?, sentiment_score=?, feedback_count=?, status=?, assigned_to=?, resolution=?,
			last_feedback_at=?, resolved_at=?, updated_at=?
		WHERE id=?`,
		issue.Title, issue.Description, issue.Summary, string(issue.Category),
		issue.BaseSeverity, issue.CurrentSeverity, string(issue.Priority),
		string(issue.Sentiment), issue.SentimentScore, issue.FeedbackCount, string(issue.Status),
		issue.AssignedTo, issue.Resolution,
		issue.LastFeedbackAt.UTC(), issue.ResolvedAt, issue.UpdatedAt, issue.ID,
	)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("issue %s: %w", issue.ID, ErrNotFound)
	}
	return nil
}

// --- Issue <-> Feedback links ---

func (s *SQLiteStore) LinkFeedback(ctx context.Context, link *models.IssueFeedbackLink) error {
	link.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issue_feedback (issue_id, feedback_id, similarity_score, created_at) VALUES (?, ?, ?, ?)`,
		link.IssueID, link.FeedbackID, link.SimilarityScore, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("link feedback: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListIssueFeedback(ctx context.Context, issueID string) ([]*models.IssueFeedbackLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT issue_id, feedback_id, similarity_score, created_at FROM issue_feedback
		WHERE issue_id = ? ORDER BY created_at ASC`, issueID)
	if err != nil {
		return nil, fmt.Errorf("list issue feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []*models.IssueFeedbackLink
	for rows.Next() {
		l := &models.IssueFeedbackLink{}
		if err := rows.Scan(&l.IssueID, &l.FeedbackID, &l.SimilarityScore, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan issue feedback link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *SQLiteStore) CountIssueFeedback(ctx context.Context, issueID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issue_feedback WHERE issue_id = ?`, issueID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count issue feedback: %w", err)
	}
	return count, nil
}

// --- Actions ---

func (s *SQLiteStore) CreateAction(ctx context.Context, action *models.Action) error {
	if action.ID == "" {
		action.ID = newULID()
	}
	if action.Status == "" {
		action.Status = models.ActionStatusPending
	}
	action.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO actions (id, issue_id, type, payload, external_id, external_url, performed_by, status, error_message, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		action.ID, action.IssueID, string(action.Type), marshalJSON(action.Payload, "{}"),
		action.ExternalID, action.ExternalURL, action.PerformedBy,
		string(action.Status), action.ErrorMessage, action.CreatedAt, action.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("create action: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListActions(ctx context.Context, issueID string) ([]*models.Action, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, issue_id, type, payload, external_id, external_url, performed_by, status, error_message, created_at, completed_at
		FROM actions WHERE issue_id = ? ORDER BY created_at DESC`, issueID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var actions []*models.Action
	for rows.Next() {
		a := &models.Action{}
		var atype, status, payloadJSON string
		var completedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.IssueID, &atype, &payloadJSON,
			&a.ExternalID, &a.ExternalURL, &a.PerformedBy,
			&status, &a.ErrorMessage, &a.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Type = models.ActionType(atype)
		a.Status = models.ActionStatus(status)
		if completedAt.Valid {
			a.CompletedAt = &completedAt.Time
		}
		_ = json.Unmarshal([]byte(payloadJSON), &a.Payload)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func (s *SQLiteStore) CompleteAction(ctx context.Context, id string, status models.ActionStatus, errorMessage string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE actions SET status=?, error_message=?, completed_at=? WHERE id=?`,
		string(status), errorMessage, now, id)
	if err != nil {
		return fmt.Errorf("complete action: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("action %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = newULID()
	}
	if user.Role == "" {
		user.Role = models.UserRolePM
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, string(user.Role), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u := &models.User{}
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, role, created_at, updated_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.Name, &role, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	u.Role = models.UserRole(role)
	return u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, name, role, created_at, updated_at FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		var role string
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = models.UserRole(role)
		users = append(users, u)
	}
	return users, rows.Err()
}
