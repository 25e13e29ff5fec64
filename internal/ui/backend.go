package ui

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pipeterm/internal/storage"
)

// Backend is the slice of the store the UI depends on. Tests substitute
// fakes; *storage.Store satisfies it.
type Backend interface {
	ListContacts(ctx context.Context) ([]storage.Contact, error)
	SearchContacts(ctx context.Context, term string) ([]storage.Contact, error)
	ContactByID(ctx context.Context, id string) (*storage.Contact, error)
	CreateContact(ctx context.Context, c *storage.Contact) error
	UpdateContact(ctx context.Context, c *storage.Contact) error
	DeleteContacts(ctx context.Context, ids []string) (int, error)
	ImportContactsCSV(ctx context.Context, r io.Reader, defaultCreator string, loc *time.Location) (storage.ImportResult, error)
	ExportContactsCSV(ctx context.Context, w io.Writer, ids []string) (int, error)
	ListLeads(ctx context.Context) ([]storage.Lead, error)
	ListTemplates(ctx context.Context) ([]storage.EmailTemplate, error)
	CreateMeeting(ctx context.Context, m *storage.Meeting) error
	UpdateMeeting(ctx context.Context, m *storage.Meeting) error
	ListMeetings(ctx context.Context) ([]storage.Meeting, error)
	AppendAudit(ctx context.Context, e *storage.AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]storage.AuditEntry, error)
	Path() string
}

const callTimeout = 15 * time.Second

// Async results carry the session token of the dialog that issued them.
// A message bearing a stale token is dropped so a late response never
// touches a closed dialog's state.
type leadsLoadedMsg struct {
	session int
	leads   []storage.Lead
	err     error
}

type composerContactsMsg struct {
	session  int
	contacts []storage.Contact
	err      error
}

type templatesLoadedMsg struct {
	session   int
	templates []storage.EmailTemplate
	err       error
}

type linkGeneratedMsg struct {
	session int
	joinURL string
	err     error
}

type meetingSavedMsg struct {
	session int
	meeting storage.Meeting
	created bool
	err     error
}

func (m *model) loadLeadsCmd(session int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		leads, err := m.store.ListLeads(ctx)
		return leadsLoadedMsg{session: session, leads: leads, err: err}
	}
}

func (m *model) loadComposerContactsCmd(session int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		contacts, err := m.store.ListContacts(ctx)
		return composerContactsMsg{session: session, contacts: contacts, err: err}
	}
}

func (m *model) loadTemplatesCmd(session int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		templates, err := m.store.ListTemplates(ctx)
		return templatesLoadedMsg{session: session, templates: templates, err: err}
	}
}

func (m *model) saveMeetingCmd(session int, meeting storage.Meeting, update bool) tea.Cmd {
	actor := m.cfg.Config.Name
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		var err error
		if update {
			err = m.store.UpdateMeeting(ctx, &meeting)
		} else {
			err = m.store.CreateMeeting(ctx, &meeting)
		}
		if err == nil {
			action := "created"
			if update {
				action = "updated"
			}
			_ = m.store.AppendAudit(ctx, &storage.AuditEntry{
				Actor:  actor,
				Action: action,
				Entity: "meeting",
				Detail: meeting.Subject,
			})
		}
		return meetingSavedMsg{session: session, meeting: meeting, created: !update, err: err}
	}
}
