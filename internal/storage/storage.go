package storage

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	driverName = "sqlite3"
)

// Store wraps the SQLite database and exposes higher-level helpers.
type Store struct {
	db   *sql.DB
	path string
}

// Contact represents a person attached to a customer account.
type Contact struct {
	ID        string
	Name      string
	Email     string
	Company   string
	Position  string
	Phone     string
	Creator   string
	CreatedAt time.Time
}

// Lead represents an unqualified prospect. Read-only reference data for the
// meeting composer.
type Lead struct {
	ID        string
	Name      string
	Email     string
	Company   string
	Status    string
	CreatedAt time.Time
}

// ImportResult summarizes a CSV import operation.
type ImportResult struct {
	Created int
	Skipped int
	Errors  []string
}

var (
	// ErrContactExists indicates a duplicate contact name.
	ErrContactExists = errors.New("contact already exists")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Open bootstraps the SQLite store. An empty path resolves to the default
// location under the user config dir.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		resolved, err := resolveDBPath()
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases DB resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func resolveDBPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = os.Getenv("HOME")
		if base == "" {
			return "", fmt.Errorf("cannot resolve data dir: %w", err)
		}
	}
	dir := filepath.Join(base, "pipeterm")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create db dir: %w", err)
	}
	return filepath.Join(dir, "pipeterm.db"), nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS contacts (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            email TEXT,
            company TEXT,
            position TEXT,
            phone TEXT,
            creator TEXT NOT NULL,
            created_at TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS leads (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT,
            company TEXT,
            status TEXT,
            created_at TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS email_templates (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            subject TEXT NOT NULL,
            body TEXT NOT NULL,
            created_at TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS meetings (
            id TEXT PRIMARY KEY,
            subject TEXT NOT NULL,
            description TEXT,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            join_url TEXT,
            lead_id TEXT,
            contact_id TEXT,
            status TEXT NOT NULL DEFAULT 'scheduled',
            created_by TEXT NOT NULL,
            created_at TEXT NOT NULL,
            FOREIGN KEY(lead_id) REFERENCES leads(id) ON DELETE SET NULL,
            FOREIGN KEY(contact_id) REFERENCES contacts(id) ON DELETE SET NULL
        );`,
		`CREATE TABLE IF NOT EXISTS audit_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            actor TEXT NOT NULL,
            action TEXT NOT NULL,
            entity TEXT NOT NULL,
            detail TEXT,
            created_at TEXT NOT NULL
        );`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migrations: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// ListContacts loads all contacts ordered alphabetically.
func (s *Store) ListContacts(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, company, position, phone, creator, created_at FROM contacts ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contacts rows: %w", err)
	}
	return contacts, nil
}

// SearchContacts performs a case-insensitive substring search on contact names.
func (s *Store) SearchContacts(ctx context.Context, term string) ([]Contact, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.ListContacts(ctx)
	}
	like := fmt.Sprintf("%%%s%%", strings.ToLower(term))
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, company, position, phone, creator, created_at FROM contacts WHERE lower(name) LIKE ? ORDER BY name COLLATE NOCASE`, like)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contacts, nil
}

// ContactByID retrieves a contact by its identifier.
func (s *Store) ContactByID(ctx context.Context, id string) (*Contact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, email, company, position, phone, creator, created_at FROM contacts WHERE id = ?`, id)
	contact, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &contact, nil
}

// CreateContact inserts a new contact enforcing name uniqueness.
func (s *Store) CreateContact(ctx context.Context, c *Contact) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("contact name required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO contacts (id, name, email, company, position, phone, creator, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, strings.TrimSpace(c.Name), nullString(c.Email), nullString(c.Company), nullString(c.Position), nullString(c.Phone), c.Creator, c.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraint(err) {
			return ErrContactExists
		}
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

// UpdateContact persists changes to an existing contact.
func (s *Store) UpdateContact(ctx context.Context, c *Contact) error {
	if c == nil {
		return fmt.Errorf("nil contact")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("contact name required")
	}
	_, err := s.db.ExecContext(ctx, `UPDATE contacts SET name = ?, email = ?, company = ?, position = ?, phone = ? WHERE id = ?`,
		strings.TrimSpace(c.Name), nullString(c.Email), nullString(c.Company), nullString(c.Position), nullString(c.Phone), c.ID)
	if err != nil {
		if isUniqueConstraint(err) {
			return ErrContactExists
		}
		return fmt.Errorf("update contact: %w", err)
	}
	return nil
}

// DeleteContacts removes the given contacts in a single transaction and
// returns the number of rows removed.
func (s *Store) DeleteContacts(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete: %w", err)
	}
	deleted := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("delete contact: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			deleted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}
	return deleted, nil
}

// ListLeads loads all leads ordered alphabetically.
func (s *Store) ListLeads(ctx context.Context) ([]Lead, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, company, status, created_at FROM leads ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		var l Lead
		var email, company, status sql.NullString
		var created string
		if err := rows.Scan(&l.ID, &l.Name, &email, &company, &status, &created); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		l.Email = nullStringToString(email)
		l.Company = nullStringToString(company)
		l.Status = nullStringToString(status)
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			l.CreatedAt = t
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return leads, nil
}

// CreateLead inserts a new lead.
func (s *Store) CreateLead(ctx context.Context, l *Lead) error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("lead name required")
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO leads (id, name, email, company, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, strings.TrimSpace(l.Name), nullString(l.Email), nullString(l.Company), nullString(l.Status), l.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// ImportContactsCSV ingests contacts from a CSV reader.
func (s *Store) ImportContactsCSV(ctx context.Context, r io.Reader, defaultCreator string, loc *time.Location) (ImportResult, error) {
	result := ImportResult{}
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return result, fmt.Errorf("read header: %w", err)
	}
	index := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if key != "" {
			index[key] = i
		}
	}
	nameIdx, ok := index["name"]
	if !ok {
		return result, fmt.Errorf("csv missing 'name' column")
	}
	locUsed := loc
	if locUsed == nil {
		locUsed = time.Local
	}
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row+1, err))
			continue
		}
		row++
		if nameIdx >= len(record) {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: missing name field", row))
			result.Skipped++
			continue
		}
		name := strings.TrimSpace(record[nameIdx])
		if name == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: contact name required", row))
			result.Skipped++
			continue
		}
		contact := Contact{Name: name}
		if idx, ok := index["email"]; ok && idx < len(record) {
			contact.Email = strings.TrimSpace(record[idx])
		}
		if idx, ok := index["company"]; ok && idx < len(record) {
			contact.Company = strings.TrimSpace(record[idx])
		}
		if idx, ok := index["position"]; ok && idx < len(record) {
			contact.Position = strings.TrimSpace(record[idx])
		}
		if idx, ok := index["phone"]; ok && idx < len(record) {
			contact.Phone = strings.TrimSpace(record[idx])
		}
		creator := defaultCreator
		if idx, ok := index["creator"]; ok && idx < len(record) {
			val := strings.TrimSpace(record[idx])
			if val != "" {
				creator = val
			}
		}
		if creator == "" {
			creator = "Import"
		}
		contact.Creator = creator
		if idx, ok := index["created_at"]; ok && idx < len(record) {
			stamp := strings.TrimSpace(record[idx])
			if stamp != "" {
				if parsed, ok := parseImportTime(stamp, locUsed); ok {
					contact.CreatedAt = parsed
				}
			}
		}
		if contact.CreatedAt.IsZero() {
			contact.CreatedAt = time.Now().In(locUsed)
		}
		if err := s.CreateContact(ctx, &contact); err != nil {
			if errors.Is(err, ErrContactExists) {
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: duplicate contact '%s'", row, contact.Name))
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row, err))
			result.Skipped++
			continue
		}
		result.Created++
	}
	return result, nil
}

// ExportContactsCSV writes the given contacts as CSV. An empty id set exports
// every contact.
func (s *Store) ExportContactsCSV(ctx context.Context, w io.Writer, ids []string) (int, error) {
	contacts, err := s.ListContacts(ctx)
	if err != nil {
		return 0, err
	}
	wanted := map[string]struct{}{}
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"name", "email", "company", "position", "phone", "creator", "created_at"}); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	exported := 0
	for _, c := range contacts {
		if len(wanted) > 0 {
			if _, ok := wanted[c.ID]; !ok {
				continue
			}
		}
		record := []string{c.Name, c.Email, c.Company, c.Position, c.Phone, c.Creator, c.CreatedAt.UTC().Format(time.RFC3339)}
		if err := writer.Write(record); err != nil {
			return exported, fmt.Errorf("write record: %w", err)
		}
		exported++
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return exported, fmt.Errorf("flush csv: %w", err)
	}
	return exported, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(rs rowScanner) (Contact, error) {
	var c Contact
	var email, company, position, phone sql.NullString
	var created string
	if err := rs.Scan(&c.ID, &c.Name, &email, &company, &position, &phone, &c.Creator, &created); err != nil {
		return Contact{}, err
	}
	c.Email = nullStringToString(email)
	c.Company = nullStringToString(company)
	c.Position = nullStringToString(position)
	c.Phone = nullStringToString(phone)
	if created != "" {
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			c.CreatedAt = t
		}
	}
	return c, nil
}

func nullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func parseImportTime(value string, loc *time.Location) (time.Time, bool) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC1123, value); err == nil {
		return t.In(loc), true
	}
	return time.Time{}, false
}

// nullString maps empty strings onto SQL NULL so optional columns never hold
// empty text.
func nullString(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func isUniqueConstraint(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
