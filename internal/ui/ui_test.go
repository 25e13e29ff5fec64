package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeterm/internal/conference"
	"pipeterm/internal/config"
	"pipeterm/internal/storage"
	"pipeterm/internal/theme"
)

// fakeBackend keeps everything in slices so tests never touch a database.
type fakeBackend struct {
	contacts  []storage.Contact
	leads     []storage.Lead
	templates []storage.EmailTemplate
	meetings  []storage.Meeting
	audit     []storage.AuditEntry

	listLeadsErr error
}

func (f *fakeBackend) ListContacts(ctx context.Context) ([]storage.Contact, error) {
	return f.contacts, nil
}

func (f *fakeBackend) SearchContacts(ctx context.Context, term string) ([]storage.Contact, error) {
	var out []storage.Contact
	for _, c := range f.contacts {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(term)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeBackend) ContactByID(ctx context.Context, id string) (*storage.Contact, error) {
	for i := range f.contacts {
		if f.contacts[i].ID == id {
			c := f.contacts[i]
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeBackend) CreateContact(ctx context.Context, c *storage.Contact) error {
	f.contacts = append(f.contacts, *c)
	return nil
}

func (f *fakeBackend) UpdateContact(ctx context.Context, c *storage.Contact) error {
	for i := range f.contacts {
		if f.contacts[i].ID == c.ID {
			f.contacts[i] = *c
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeBackend) DeleteContacts(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	var kept []storage.Contact
	for _, c := range f.contacts {
		drop := false
		for _, id := range ids {
			if c.ID == id {
				drop = true
				break
			}
		}
		if drop {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	f.contacts = kept
	return deleted, nil
}

func (f *fakeBackend) ImportContactsCSV(ctx context.Context, r io.Reader, defaultCreator string, loc *time.Location) (storage.ImportResult, error) {
	return storage.ImportResult{}, nil
}

func (f *fakeBackend) ExportContactsCSV(ctx context.Context, w io.Writer, ids []string) (int, error) {
	return len(ids), nil
}

func (f *fakeBackend) ListLeads(ctx context.Context) ([]storage.Lead, error) {
	if f.listLeadsErr != nil {
		return nil, f.listLeadsErr
	}
	return f.leads, nil
}

func (f *fakeBackend) ListTemplates(ctx context.Context) ([]storage.EmailTemplate, error) {
	return f.templates, nil
}

func (f *fakeBackend) CreateMeeting(ctx context.Context, m *storage.Meeting) error {
	if m.ID == "" {
		m.ID = fmt.Sprintf("m-%d", len(f.meetings)+1)
	}
	f.meetings = append(f.meetings, *m)
	return nil
}

func (f *fakeBackend) UpdateMeeting(ctx context.Context, m *storage.Meeting) error {
	for i := range f.meetings {
		if f.meetings[i].ID == m.ID {
			f.meetings[i] = *m
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeBackend) ListMeetings(ctx context.Context) ([]storage.Meeting, error) {
	return f.meetings, nil
}

func (f *fakeBackend) AppendAudit(ctx context.Context, e *storage.AuditEntry) error {
	e.ID = int64(len(f.audit) + 1)
	f.audit = append(f.audit, *e)
	return nil
}

func (f *fakeBackend) ListAudit(ctx context.Context, limit int) ([]storage.AuditEntry, error) {
	return f.audit, nil
}

func (f *fakeBackend) Path() string { return "/tmp/fake.db" }

type fakeConference struct {
	joinURL string
	err     error
	got     conference.MeetingRequest
	calls   int
}

func (f *fakeConference) CreateMeeting(ctx context.Context, req conference.MeetingRequest) (string, error) {
	f.calls++
	f.got = req
	return f.joinURL, f.err
}

func testConfig(role string) *config.Store {
	return &config.Store{Config: config.Data{Name: "Tester", Role: role, Timezone: "UTC"}}
}

func newTestModel(t *testing.T, store *fakeBackend, conf conference.Client) *model {
	t.Helper()
	if store == nil {
		store = &fakeBackend{}
	}
	return newModel(Deps{Store: store, Conference: conf, Config: testConfig("admin")})
}

func TestBulkBar(t *testing.T) {
	th := theme.Default()

	t.Run("zero count renders nothing and handles nothing", func(t *testing.T) {
		called := false
		bar := BulkBar{Count: 0, OnDelete: func() { called = true }}
		assert.Empty(t, bar.View(th))
		assert.False(t, bar.Handle("delete"))
		assert.False(t, called)
	})

	t.Run("dispatches exactly one callback", func(t *testing.T) {
		var got []string
		bar := BulkBar{
			Count:    2,
			OnDelete: func() { got = append(got, "delete") },
			OnExport: func() { got = append(got, "export") },
			OnClear:  func() { got = append(got, "clear") },
		}
		assert.True(t, bar.Handle("Export"))
		assert.Equal(t, []string{"export"}, got)
		assert.False(t, bar.Handle("unknown"))
		assert.Equal(t, []string{"export"}, got)
	})

	t.Run("count shows in the rendering", func(t *testing.T) {
		bar := BulkBar{Count: 3}
		assert.Contains(t, bar.View(th), "3 records selected")
	})
}

func TestBulkDeleteRemovesSelectionAndAudits(t *testing.T) {
	store := &fakeBackend{contacts: []storage.Contact{
		{ID: "c1", Name: "Ada"},
		{ID: "c2", Name: "Bob"},
		{ID: "c3", Name: "Cleo"},
	}}
	m := newTestModel(t, store, nil)
	m.contacts.selected = map[string]struct{}{"c1": {}, "c3": {}}

	handled := m.bulkBar().Handle("delete")
	require.True(t, handled)

	require.Len(t, store.contacts, 1)
	assert.Equal(t, "Bob", store.contacts[0].Name)
	assert.Empty(t, m.contacts.selected)
	assert.Contains(t, m.infoMessage, "Deleted 2 contact(s)")

	require.Len(t, store.audit, 1)
	assert.Equal(t, "Tester", store.audit[0].Actor)
	assert.Equal(t, "deleted", store.audit[0].Action)
	assert.Equal(t, "contacts", store.audit[0].Entity)
	assert.Contains(t, store.audit[0].Detail, "2 record(s)")
}

func TestMeetingComposerDefaults(t *testing.T) {
	m := newTestModel(t, nil, nil)
	cmd := m.openMeetingComposer(nil, nil, nil)
	require.NotNil(t, cmd)
	assert.Equal(t, stateMeetingComposer, m.state)

	c := m.composer
	assert.False(t, c.editing)
	assert.True(t, c.loadingLeads)
	assert.True(t, c.loadingContacts)
	assert.Empty(t, c.fields[fieldSubject].value)

	start, err := time.Parse(composerTimeLayout, c.fields[fieldStart].value)
	require.NoError(t, err)
	end, err := time.Parse(composerTimeLayout, c.fields[fieldEnd].value)
	require.NoError(t, err)
	assert.Zero(t, start.Minute())
	assert.True(t, start.After(time.Now().UTC().Add(-time.Minute)))
	assert.Equal(t, time.Hour, end.Sub(start))
}

func TestMeetingComposerEditSeedsFields(t *testing.T) {
	start := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	existing := storage.Meeting{
		ID:        "m-1",
		Subject:   "Review",
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		JoinURL:   "https://teams.example.com/join/1",
		Status:    storage.MeetingScheduled,
		CreatedBy: "Tester",
	}
	m := newTestModel(t, nil, nil)
	m.openMeetingComposer(&existing, nil, nil)

	c := m.composer
	assert.True(t, c.editing)
	assert.Equal(t, "Review", c.fields[fieldSubject].value)
	assert.Equal(t, "2026-09-10T14:00", c.fields[fieldStart].value)
	assert.Equal(t, "2026-09-10T14:30", c.fields[fieldEnd].value)
	assert.Equal(t, "https://teams.example.com/join/1", c.fields[fieldJoinURL].value)
}

func TestMeetingComposerStaleMessagesDropped(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.openMeetingComposer(nil, nil, nil)
	session := m.composer.session

	m.updateMeetingComposer(leadsLoadedMsg{session: session + 99, leads: []storage.Lead{{ID: "l1", Name: "Ghost"}}})
	assert.Empty(t, m.composer.leads)
	assert.True(t, m.composer.loadingLeads)

	m.updateMeetingComposer(leadsLoadedMsg{session: session, leads: []storage.Lead{{ID: "l1", Name: "Real"}}})
	require.Len(t, m.composer.leads, 1)
	assert.False(t, m.composer.loadingLeads)

	// After the dialog closes no token matches any longer.
	m.closeMeetingComposer()
	m.updateMeetingComposer(linkGeneratedMsg{session: session, joinURL: "https://late.example.com"})
	assert.Empty(t, m.composer.fields)
}

func TestMeetingComposerLoadFailureKeepsDialog(t *testing.T) {
	store := &fakeBackend{}
	m := newTestModel(t, store, nil)
	m.openMeetingComposer(nil, nil, nil)

	store.listLeadsErr = fmt.Errorf("disk on fire")
	cmd := m.loadLeadsCmd(m.composer.session)
	msg := cmd().(leadsLoadedMsg)
	m.updateMeetingComposer(msg)

	assert.Equal(t, stateMeetingComposer, m.state)
	assert.Contains(t, m.composer.err, "disk on fire")
	assert.False(t, m.composer.loadingLeads)
}

func TestMeetingComposerValidation(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.openMeetingComposer(nil, nil, nil)

	t.Run("subject required for save", func(t *testing.T) {
		assert.Nil(t, m.startMeetingSave())
		assert.Equal(t, "Subject is required", m.composer.err)
	})

	t.Run("subject required for link generation", func(t *testing.T) {
		assert.Nil(t, m.startLinkGeneration())
		assert.Equal(t, "Subject is required", m.composer.err)
	})

	t.Run("times must parse", func(t *testing.T) {
		m.composer.fields[fieldSubject].value = "Sync"
		m.composer.fields[fieldStart].value = "not-a-time"
		assert.Nil(t, m.startMeetingSave())
		assert.Contains(t, m.composer.err, "start time")
	})

	t.Run("end before start rejected at save", func(t *testing.T) {
		m.composer.fields[fieldStart].value = "2026-09-10T15:00"
		m.composer.fields[fieldEnd].value = "2026-09-10T14:00"
		assert.Nil(t, m.startMeetingSave())
		assert.Equal(t, "End time must not be before start time", m.composer.err)
	})
}

func TestMeetingComposerSave(t *testing.T) {
	store := &fakeBackend{}
	m := newTestModel(t, store, nil)
	m.openMeetingComposer(nil, nil, nil)

	m.composer.fields[fieldSubject].value = "Kickoff"
	m.composer.fields[fieldStart].value = "2026-09-10T14:00"
	m.composer.fields[fieldEnd].value = "2026-09-10T15:00"

	cmd := m.startMeetingSave()
	require.NotNil(t, cmd)
	assert.True(t, m.composer.saving)

	msg, ok := cmd().(meetingSavedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	assert.True(t, msg.created)

	require.Len(t, store.meetings, 1)
	assert.Equal(t, "Kickoff", store.meetings[0].Subject)
	assert.Equal(t, storage.MeetingScheduled, store.meetings[0].Status)
	assert.Equal(t, "Tester", store.meetings[0].CreatedBy)

	require.Len(t, store.audit, 1)
	assert.Equal(t, "created", store.audit[0].Action)
	assert.Equal(t, "meeting", store.audit[0].Entity)

	m.updateMeetingComposer(msg)
	assert.NotEqual(t, stateMeetingComposer, m.state)
	assert.Contains(t, m.infoMessage, "Kickoff")
}

func TestMeetingComposerGenerateLink(t *testing.T) {
	conf := &fakeConference{joinURL: "https://teams.example.com/join/new"}
	m := newTestModel(t, nil, conf)
	lead := storage.Lead{ID: "l1", Name: "Prospect", Email: "p@example.com"}
	contact := storage.Contact{ID: "c1", Name: "No Mail"}
	m.openMeetingComposer(nil, &lead, &contact)

	m.composer.fields[fieldSubject].value = "Demo"
	m.composer.fields[fieldStart].value = "2026-09-10T14:00"
	m.composer.fields[fieldEnd].value = "2026-09-10T15:00"

	cmd := m.startLinkGeneration()
	require.NotNil(t, cmd)
	assert.True(t, m.composer.generating)

	msg, ok := cmd().(linkGeneratedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)

	assert.Equal(t, 1, conf.calls)
	assert.Equal(t, "Demo", conf.got.Subject)
	// The contact without an email is dropped from the attendee list.
	require.Len(t, conf.got.Attendees, 1)
	assert.Equal(t, "p@example.com", conf.got.Attendees[0].Email)

	m.updateMeetingComposer(msg)
	assert.Equal(t, "https://teams.example.com/join/new", m.composer.fields[fieldJoinURL].value)
	assert.False(t, m.composer.generating)
	assert.Equal(t, stateMeetingComposer, m.state)
}

func TestMeetingComposerGenerateFailureKeepsDialog(t *testing.T) {
	conf := &fakeConference{err: fmt.Errorf("graph api unavailable")}
	m := newTestModel(t, nil, conf)
	m.openMeetingComposer(nil, nil, nil)
	m.composer.fields[fieldSubject].value = "Demo"

	cmd := m.startLinkGeneration()
	require.NotNil(t, cmd)
	msg := cmd().(linkGeneratedMsg)
	m.updateMeetingComposer(msg)

	assert.Equal(t, stateMeetingComposer, m.state)
	assert.Contains(t, m.composer.err, "graph api unavailable")
	assert.Empty(t, m.composer.fields[fieldJoinURL].value)
}

func TestEmailComposer(t *testing.T) {
	templates := []storage.EmailTemplate{
		{ID: "t1", Name: "Introduction", Subject: "Hello {{contact_name}}", Body: "From {{company_name}}"},
	}

	t.Run("nil contact renders nothing", func(t *testing.T) {
		m := newTestModel(t, nil, nil)
		assert.Nil(t, m.openEmailComposer(nil))
		assert.Empty(t, m.viewEmailComposer())
	})

	t.Run("template application substitutes and stays editable", func(t *testing.T) {
		m := newTestModel(t, nil, nil)
		contact := storage.Contact{ID: "c1", Name: "Ada", Email: "ada@example.com", Company: "AE"}
		cmd := m.openEmailComposer(&contact)
		require.NotNil(t, cmd)
		session := m.email.session

		m.updateEmailComposer(templatesLoadedMsg{session: session, templates: templates})
		require.Len(t, m.email.templates, 1)

		m.applyEmailTemplate("1")
		assert.Equal(t, "Hello Ada", m.email.subject)
		assert.Equal(t, "From AE", m.email.body)

		m.email.subject = "Edited subject"
		m.applyEmailTemplate("1")
		assert.Equal(t, "Hello Ada", m.email.subject, "re-selection overwrites edits")

		m.applyEmailTemplate("none")
		assert.Empty(t, m.email.subject)
		assert.Empty(t, m.email.body)
	})

	t.Run("send requires an email address", func(t *testing.T) {
		m := newTestModel(t, nil, nil)
		opened := []string{}
		m.openURL = func(uri string) error {
			opened = append(opened, uri)
			return nil
		}
		contact := storage.Contact{ID: "c1", Name: "No Mail"}
		m.openEmailComposer(&contact)

		m.sendEmailDraft()
		assert.Equal(t, "Contact has no email address", m.email.err)
		assert.Empty(t, opened)
		assert.Equal(t, stateEmailComposer, m.state)
	})

	t.Run("send opens a mailto link and closes", func(t *testing.T) {
		m := newTestModel(t, nil, nil)
		opened := []string{}
		m.openURL = func(uri string) error {
			opened = append(opened, uri)
			return nil
		}
		contact := storage.Contact{ID: "c1", Name: "Ada", Email: "ada@example.com"}
		m.openEmailComposer(&contact)
		m.email.subject = "Hi there"

		m.sendEmailDraft()
		require.Len(t, opened, 1)
		assert.Equal(t, "mailto:ada@example.com?subject=Hi%20there", opened[0])
		assert.NotEqual(t, stateEmailComposer, m.state)
		assert.Contains(t, m.infoMessage, "Ada")
	})
}

func TestSettingsVisibility(t *testing.T) {
	t.Run("admin sees every panel", func(t *testing.T) {
		sections := visibleSections(config.RoleAdmin)
		require.Len(t, sections, 3)
		total := 0
		for _, sec := range sections {
			total += len(sec.panels)
		}
		assert.Equal(t, 12, total)
	})

	t.Run("member loses the administration section entirely", func(t *testing.T) {
		sections := visibleSections(config.RoleMember)
		require.Len(t, sections, 2)
		for _, sec := range sections {
			assert.NotEqual(t, "Administration", sec.title)
		}
	})

	t.Run("section lookup falls back for unknown keys", func(t *testing.T) {
		assert.Equal(t, "Administration", sectionTitleFor("backups"))
		assert.Equal(t, "Settings", sectionTitleFor("nope"))
	})

	t.Run("unknown panel key renders the profile panel", func(t *testing.T) {
		m := newTestModel(t, nil, nil)
		m.settings = newSettingsShell()
		m.settings.active = "nope"
		out := m.viewSettings()
		assert.Contains(t, out, "Tester")
	})
}
