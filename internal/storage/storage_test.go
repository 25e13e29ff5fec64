package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestContactLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	c := Contact{Name: "Ada Lovelace", Email: "ada@example.com", Company: "AE", Creator: "tester"}
	require.NoError(t, store.CreateContact(ctx, &c))
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())

	t.Run("duplicate name rejected", func(t *testing.T) {
		dup := Contact{Name: "Ada Lovelace", Creator: "tester"}
		assert.ErrorIs(t, store.CreateContact(ctx, &dup), ErrContactExists)
	})

	t.Run("lookup by id", func(t *testing.T) {
		got, err := store.ContactByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", got.Name)
		assert.Equal(t, "ada@example.com", got.Email)

		_, err = store.ContactByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update", func(t *testing.T) {
		c.Position = "Chief Engineer"
		c.Email = ""
		require.NoError(t, store.UpdateContact(ctx, &c))
		got, err := store.ContactByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Chief Engineer", got.Position)
		assert.Empty(t, got.Email)
	})

	t.Run("list is name ordered case insensitively", func(t *testing.T) {
		require.NoError(t, store.CreateContact(ctx, &Contact{Name: "bob", Creator: "tester"}))
		require.NoError(t, store.CreateContact(ctx, &Contact{Name: "Charlie", Creator: "tester"}))
		contacts, err := store.ListContacts(ctx)
		require.NoError(t, err)
		names := make([]string, 0, len(contacts))
		for _, c := range contacts {
			names = append(names, c.Name)
		}
		assert.Equal(t, []string{"Ada Lovelace", "bob", "Charlie"}, names)
	})

	t.Run("search matches substring", func(t *testing.T) {
		found, err := store.SearchContacts(ctx, "love")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Ada Lovelace", found[0].Name)
	})

	t.Run("bulk delete counts rows", func(t *testing.T) {
		contacts, err := store.ListContacts(ctx)
		require.NoError(t, err)
		ids := []string{contacts[0].ID, "no-such-id"}
		deleted, err := store.DeleteContacts(ctx, ids)
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		deleted, err = store.DeleteContacts(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}

func TestImportContactsCSV(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateContact(ctx, &Contact{Name: "Existing", Creator: "tester"}))

	csvData := strings.Join([]string{
		"Name,Email,Company,Created_At",
		"New Person,new@example.com,Acme,2024-05-01",
		"Existing,dup@example.com,,",
		",missing@example.com,,",
	}, "\n")

	result, err := store.ImportContactsCSV(ctx, strings.NewReader(csvData), "importer", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, result.Errors, 2)

	found, err := store.SearchContacts(ctx, "new person")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "importer", found[0].Creator)
	assert.Equal(t, 2024, found[0].CreatedAt.Year())
}

func TestExportContactsCSV(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := Contact{Name: "Alpha", Creator: "tester"}
	b := Contact{Name: "Beta", Creator: "tester"}
	require.NoError(t, store.CreateContact(ctx, &a))
	require.NoError(t, store.CreateContact(ctx, &b))

	var buf bytes.Buffer
	exported, err := store.ExportContactsCSV(ctx, &buf, []string{b.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, exported)
	out := buf.String()
	assert.Contains(t, out, "Beta")
	assert.NotContains(t, out, "Alpha")

	buf.Reset()
	exported, err = store.ExportContactsCSV(ctx, &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, exported)
}

func TestMeetingLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	lead := Lead{Name: "Prospect", Email: "p@example.com", Status: "New"}
	require.NoError(t, store.CreateLead(ctx, &lead))

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	m := Meeting{
		Subject:   "Kickoff",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		LeadID:    lead.ID,
		CreatedBy: "tester",
	}
	require.NoError(t, store.CreateMeeting(ctx, &m))
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, MeetingScheduled, m.Status)

	t.Run("round trip", func(t *testing.T) {
		got, err := store.MeetingByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "Kickoff", got.Subject)
		assert.True(t, got.StartTime.Equal(start))
		assert.Equal(t, lead.ID, got.LeadID)
		assert.Empty(t, got.ContactID)
	})

	t.Run("update", func(t *testing.T) {
		m.JoinURL = "https://teams.example.com/join/xyz"
		m.Status = MeetingCancelled
		require.NoError(t, store.UpdateMeeting(ctx, &m))
		got, err := store.MeetingByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, MeetingCancelled, got.Status)
		assert.Equal(t, "https://teams.example.com/join/xyz", got.JoinURL)
	})

	t.Run("update of missing meeting", func(t *testing.T) {
		ghost := Meeting{ID: "ghost", Subject: "x", StartTime: start, EndTime: start}
		assert.ErrorIs(t, store.UpdateMeeting(ctx, &ghost), ErrNotFound)
	})

	t.Run("list sorted by start", func(t *testing.T) {
		earlier := Meeting{Subject: "Earlier", StartTime: start.Add(-time.Hour), EndTime: start, CreatedBy: "tester"}
		require.NoError(t, store.CreateMeeting(ctx, &earlier))
		meetings, err := store.ListMeetings(ctx)
		require.NoError(t, err)
		require.Len(t, meetings, 2)
		assert.Equal(t, "Earlier", meetings[0].Subject)
	})
}

func TestSplitMeetings(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	mk := func(subject string, start time.Time) Meeting {
		return Meeting{Subject: subject, StartTime: start, EndTime: start.Add(time.Hour)}
	}
	meetings := []Meeting{
		mk("this morning", now.Add(-3*time.Hour)),
		mk("tonight", now.Add(8*time.Hour)),
		mk("tomorrow", now.Add(24*time.Hour)),
		mk("last week", now.Add(-7*24*time.Hour)),
	}

	today, upcoming, past := SplitMeetings(meetings, now)
	require.Len(t, today, 2)
	assert.Equal(t, "this morning", today[0].Subject)
	assert.Equal(t, "tonight", today[1].Subject)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "tomorrow", upcoming[0].Subject)
	require.Len(t, past, 1)
	assert.Equal(t, "last week", past[0].Subject)
}

func TestSeedTemplates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SeedTemplates(ctx))
	templates, err := store.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 2)

	// Seeding again must not duplicate.
	require.NoError(t, store.SeedTemplates(ctx))
	templates, err = store.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, templates, 2)

	// Custom templates survive alongside.
	require.NoError(t, store.CreateTemplate(ctx, &EmailTemplate{Name: "Win-back", Subject: "s", Body: "b"}))
	err = store.CreateTemplate(ctx, &EmailTemplate{Name: "Win-back", Subject: "s", Body: "b"})
	assert.Error(t, err)
}

func TestAuditLog(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		e := AuditEntry{Actor: "tester", Action: "created", Entity: "contact", Detail: "n", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, store.AppendAudit(ctx, &e))
		assert.NotZero(t, e.ID)
	}

	assert.Error(t, store.AppendAudit(ctx, &AuditEntry{Actor: "tester"}))

	entries, err := store.ListAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].CreatedAt.After(entries[1].CreatedAt))
}
