package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Meeting statuses. The UI never invents new ones.
const (
	MeetingScheduled = "scheduled"
	MeetingCancelled = "cancelled"
)

// Meeting holds a scheduled interaction, optionally linked to a lead and/or
// a contact.
type Meeting struct {
	ID          string
	Subject     string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	JoinURL     string
	LeadID      string
	ContactID   string
	Status      string
	CreatedBy   string
	CreatedAt   time.Time
}

// EmailTemplate is a reusable outreach message with {{placeholder}} tokens in
// its subject and body.
type EmailTemplate struct {
	ID        string
	Name      string
	Subject   string
	Body      string
	CreatedAt time.Time
}

// AuditEntry records a mutating action for the admin audit panel.
type AuditEntry struct {
	ID        int64
	Actor     string
	Action    string
	Entity    string
	Detail    string
	CreatedAt time.Time
}

// CreateMeeting inserts a new meeting. Optional fields are stored as NULL
// when empty.
func (s *Store) CreateMeeting(ctx context.Context, m *Meeting) error {
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("meeting subject required")
	}
	if m.StartTime.IsZero() || m.EndTime.IsZero() {
		return fmt.Errorf("meeting times required")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = MeetingScheduled
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO meetings (id, subject, description, start_time, end_time, join_url, lead_id, contact_id, status, created_by, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, strings.TrimSpace(m.Subject), nullString(m.Description),
		m.StartTime.UTC().Format(time.RFC3339), m.EndTime.UTC().Format(time.RFC3339),
		nullString(m.JoinURL), nullString(m.LeadID), nullString(m.ContactID),
		m.Status, m.CreatedBy, m.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

// UpdateMeeting persists changes to an existing meeting keyed by its id.
func (s *Store) UpdateMeeting(ctx context.Context, m *Meeting) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("meeting id required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("meeting subject required")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE meetings SET subject = ?, description = ?, start_time = ?, end_time = ?, join_url = ?, lead_id = ?, contact_id = ?, status = ? WHERE id = ?`,
		strings.TrimSpace(m.Subject), nullString(m.Description),
		m.StartTime.UTC().Format(time.RFC3339), m.EndTime.UTC().Format(time.RFC3339),
		nullString(m.JoinURL), nullString(m.LeadID), nullString(m.ContactID),
		m.Status, m.ID)
	if err != nil {
		return fmt.Errorf("update meeting: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MeetingByID retrieves a meeting by its identifier.
func (s *Store) MeetingByID(ctx context.Context, id string) (*Meeting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, subject, description, start_time, end_time, join_url, lead_id, contact_id, status, created_by, created_at FROM meetings WHERE id = ?`, id)
	meeting, err := scanMeeting(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get meeting: %w", err)
	}
	return &meeting, nil
}

// ListMeetings fetches meetings sorted by start time ascending.
func (s *Store) ListMeetings(ctx context.Context) ([]Meeting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, subject, description, start_time, end_time, join_url, lead_id, contact_id, status, created_by, created_at FROM meetings ORDER BY start_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("query meetings: %w", err)
	}
	defer rows.Close()

	var meetings []Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return meetings, nil
}

// ListTemplates loads all email templates ordered by name.
func (s *Store) ListTemplates(ctx context.Context) ([]EmailTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, subject, body, created_at FROM email_templates ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var templates []EmailTemplate
	for rows.Next() {
		var t EmailTemplate
		var created string
		if err := rows.Scan(&t.ID, &t.Name, &t.Subject, &t.Body, &created); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339, created); err == nil {
			t.CreatedAt = parsed
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return templates, nil
}

// CreateTemplate inserts a new email template.
func (s *Store) CreateTemplate(ctx context.Context, t *EmailTemplate) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template name required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO email_templates (id, name, subject, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, strings.TrimSpace(t.Name), t.Subject, t.Body, t.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraint(err) {
			return fmt.Errorf("template %q already exists", t.Name)
		}
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// SeedTemplates installs the starter templates on an empty table.
func (s *Store) SeedTemplates(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_templates`).Scan(&count); err != nil {
		return fmt.Errorf("count templates: %w", err)
	}
	if count > 0 {
		return nil
	}
	starters := []EmailTemplate{
		{
			Name:    "Introduction",
			Subject: "Hello {{contact_name}} from {{company_name}}",
			Body:    "Hi {{contact_name}},\n\nGreat connecting with you. I'd love to learn more about your work as {{position}} at {{company_name}}.\n\nBest regards",
		},
		{
			Name:    "Follow up",
			Subject: "Following up, {{contact_name}}",
			Body:    "Hi {{contact_name}},\n\nJust checking in after our last conversation. Let me know if {{company_name}} has any questions.\n\nThanks",
		},
	}
	for i := range starters {
		if err := s.CreateTemplate(ctx, &starters[i]); err != nil {
			return err
		}
	}
	return nil
}

// AppendAudit records a mutating action for the audit trail.
func (s *Store) AppendAudit(ctx context.Context, e *AuditEntry) error {
	if e.Action == "" || e.Entity == "" {
		return fmt.Errorf("audit action and entity required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO audit_log (actor, action, entity, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Actor, e.Action, e.Entity, nullString(e.Detail), e.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// ListAudit returns the newest audit entries first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, actor, action, entity, detail, created_at FROM audit_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var detail sql.NullString
		var created string
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Entity, &detail, &created); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Detail = nullStringToString(detail)
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func scanMeeting(rs rowScanner) (Meeting, error) {
	var m Meeting
	var description, joinURL, leadID, contactID sql.NullString
	var start, end, created string
	if err := rs.Scan(&m.ID, &m.Subject, &description, &start, &end, &joinURL, &leadID, &contactID, &m.Status, &m.CreatedBy, &created); err != nil {
		return Meeting{}, err
	}
	m.Description = nullStringToString(description)
	m.JoinURL = nullStringToString(joinURL)
	m.LeadID = nullStringToString(leadID)
	m.ContactID = nullStringToString(contactID)
	if t, err := time.Parse(time.RFC3339, start); err == nil {
		m.StartTime = t
	}
	if t, err := time.Parse(time.RFC3339, end); err == nil {
		m.EndTime = t
	}
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		m.CreatedAt = t
	}
	return m, nil
}

// SplitMeetings groups meetings relative to a reference time.
func SplitMeetings(meetings []Meeting, now time.Time) (today, upcoming, past []Meeting) {
	loc := now.Location()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	endOfDay := startOfDay.Add(24 * time.Hour)

	for _, m := range meetings {
		t := m.StartTime.In(loc)
		switch {
		case !t.Before(startOfDay) && t.Before(endOfDay):
			today = append(today, m)
		case t.After(now):
			upcoming = append(upcoming, m)
		default:
			past = append(past, m)
		}
	}
	return today, upcoming, past
}
