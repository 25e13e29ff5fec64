package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"pipeterm/internal/conference"
	"pipeterm/internal/storage"
)

// Minute precision, matching what the date-time fields accept.
const composerTimeLayout = "2006-01-02T15:04"

// Composer field indices.
const (
	fieldSubject = iota
	fieldDescription
	fieldStart
	fieldEnd
	fieldJoinURL
)

// meetingComposer collects meeting fields and persists exactly one insert or
// update per submission. The mode is fixed when the dialog opens.
type meetingComposer struct {
	session  int
	editing  bool
	original storage.Meeting

	fields    []formField
	editField int // -1 means command mode
	input     textinput.Model

	leads           []storage.Lead
	contacts        []storage.Contact
	loadingLeads    bool
	loadingContacts bool
	linkedLead      *storage.Lead
	linkedContact   *storage.Contact
	leadID          string
	contactID       string

	generating bool
	saving     bool
	err        string
	info       string
}

func composerFields() []formField {
	return []formField{
		{label: "Subject", required: true},
		{label: "Description", required: false},
		{label: "Start (YYYY-MM-DDTHH:MM)", required: true},
		{label: "End (YYYY-MM-DDTHH:MM)", required: true},
		{label: "Join link", required: false},
	}
}

// nextHourBoundary returns the top of the hour after now.
func nextHourBoundary(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location()).Add(time.Hour)
}

// openMeetingComposer opens the dialog in Edit mode when an existing record
// is supplied, Create mode otherwise. A preset lead or contact arrives
// pre-linked. Both reference lists load concurrently.
func (m *model) openMeetingComposer(existing *storage.Meeting, lead *storage.Lead, contact *storage.Contact) tea.Cmd {
	session := m.newSession()
	loc := m.cfg.Location()

	c := meetingComposer{
		session:         session,
		fields:          composerFields(),
		editField:       -1,
		input:           textinput.New(),
		loadingLeads:    true,
		loadingContacts: true,
	}
	c.input.Prompt = ""
	c.input.Placeholder = "Field number, lead <n>, contact <n>, g=link, save, /"
	c.input.CharLimit = 256
	focus := c.input.Focus()

	if existing != nil {
		clone := *existing
		c.editing = true
		c.original = clone
		c.fields[fieldSubject].value = clone.Subject
		c.fields[fieldDescription].value = clone.Description
		c.fields[fieldStart].value = clone.StartTime.In(loc).Format(composerTimeLayout)
		c.fields[fieldEnd].value = clone.EndTime.In(loc).Format(composerTimeLayout)
		c.fields[fieldJoinURL].value = clone.JoinURL
		c.leadID = clone.LeadID
		c.contactID = clone.ContactID
	} else {
		start := nextHourBoundary(time.Now().In(loc))
		c.fields[fieldStart].value = start.Format(composerTimeLayout)
		c.fields[fieldEnd].value = start.Add(time.Hour).Format(composerTimeLayout)
	}
	if lead != nil {
		clone := *lead
		c.linkedLead = &clone
		c.leadID = clone.ID
	}
	if contact != nil {
		clone := *contact
		c.linkedContact = &clone
		c.contactID = clone.ID
	}

	m.composer = c
	m.pushState(stateMeetingComposer)
	return batchCmds([]tea.Cmd{focus, m.loadLeadsCmd(session), m.loadComposerContactsCmd(session)})
}

// closeMeetingComposer discards the dialog state. Invalidating the session
// token makes any in-flight response for this dialog unactionable.
func (m *model) closeMeetingComposer() {
	m.composer = meetingComposer{session: 0}
	m.popState()
}

func (m *model) updateMeetingComposer(msg tea.Msg) tea.Cmd {
	c := &m.composer

	switch msg := msg.(type) {
	case leadsLoadedMsg:
		if msg.session != c.session {
			return nil
		}
		c.loadingLeads = false
		if msg.err != nil {
			c.err = fmt.Sprintf("load leads: %v", msg.err)
			m.log.Warn("composer leads fetch", zap.Error(msg.err))
			return nil
		}
		c.leads = msg.leads
		if c.leadID != "" && c.linkedLead == nil {
			for i := range c.leads {
				if c.leads[i].ID == c.leadID {
					lead := c.leads[i]
					c.linkedLead = &lead
					break
				}
			}
		}
		return nil
	case composerContactsMsg:
		if msg.session != c.session {
			return nil
		}
		c.loadingContacts = false
		if msg.err != nil {
			c.err = fmt.Sprintf("load contacts: %v", msg.err)
			m.log.Warn("composer contacts fetch", zap.Error(msg.err))
			return nil
		}
		c.contacts = msg.contacts
		if c.contactID != "" && c.linkedContact == nil {
			for i := range c.contacts {
				if c.contacts[i].ID == c.contactID {
					contact := c.contacts[i]
					c.linkedContact = &contact
					break
				}
			}
		}
		return nil
	case linkGeneratedMsg:
		if msg.session != c.session {
			return nil
		}
		c.generating = false
		if msg.err != nil {
			c.err = fmt.Sprintf("generate link: %v", msg.err)
			return nil
		}
		c.fields[fieldJoinURL].value = msg.joinURL
		c.err = ""
		c.info = "Conferencing link added"
		return nil
	case meetingSavedMsg:
		if msg.session != c.session {
			return nil
		}
		c.saving = false
		if msg.err != nil {
			c.err = msg.err.Error()
			m.log.Warn("meeting save", zap.Error(msg.err))
			return nil
		}
		verb := "created"
		if !msg.created {
			verb = "updated"
		}
		m.infoMessage = fmt.Sprintf("Meeting '%s' %s", msg.meeting.Subject, verb)
		m.closeMeetingComposer()
		m.refreshMeetings()
		return nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return batchCmds(cmds)
	}
	if key.Type == tea.KeyEsc {
		m.closeMeetingComposer()
		return batchCmds(cmds)
	}
	if key.Type != tea.KeyEnter {
		return batchCmds(cmds)
	}

	value := strings.TrimSpace(c.input.Value())
	if c.editField >= 0 {
		if isBackCommand(value) {
			m.composerCommandMode()
			return batchCmds(cmds)
		}
		c.fields[c.editField].value = value
		m.composerCommandMode()
		return batchCmds(cmds)
	}

	c.input.SetValue("")
	lower := strings.ToLower(value)
	switch {
	case value == "":
		return batchCmds(cmds)
	case isExitCommand(value):
		m.composer = meetingComposer{session: 0}
		return m.returnToMenu(cmds)
	case isBackCommand(value):
		m.closeMeetingComposer()
		return batchCmds(cmds)
	case lower == "g" || lower == "generate":
		if cmd := m.startLinkGeneration(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return batchCmds(cmds)
	case lower == "s" || lower == "save":
		if cmd := m.startMeetingSave(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return batchCmds(cmds)
	case strings.HasPrefix(lower, "lead "):
		m.selectComposerLead(strings.TrimSpace(value[5:]))
		return batchCmds(cmds)
	case strings.HasPrefix(lower, "contact "):
		m.selectComposerContact(strings.TrimSpace(value[8:]))
		return batchCmds(cmds)
	}
	if idx, ok := composerFieldIndex(lower); ok {
		c.editField = idx
		c.err = ""
		c.info = ""
		c.input.SetValue(c.fields[idx].value)
		c.input.Placeholder = c.fields[idx].label
		return batchCmds(cmds)
	}
	c.err = "Unknown choice"
	return batchCmds(cmds)
}

func (m *model) composerCommandMode() {
	c := &m.composer
	c.editField = -1
	c.err = ""
	c.input.SetValue("")
	c.input.Placeholder = "Field number, lead <n>, contact <n>, g=link, save, /"
}

func composerFieldIndex(input string) (int, bool) {
	switch input {
	case "1", "subject":
		return fieldSubject, true
	case "2", "desc", "description":
		return fieldDescription, true
	case "3", "start":
		return fieldStart, true
	case "4", "end":
		return fieldEnd, true
	case "5", "link", "join", "url":
		return fieldJoinURL, true
	}
	return 0, false
}

func (m *model) selectComposerLead(query string) {
	c := &m.composer
	if strings.EqualFold(query, "none") {
		c.linkedLead = nil
		c.leadID = ""
		return
	}
	if idx, err := strconv.Atoi(query); err == nil && idx > 0 && idx <= len(c.leads) {
		lead := c.leads[idx-1]
		c.linkedLead = &lead
		c.leadID = lead.ID
		return
	}
	for i := range c.leads {
		if strings.EqualFold(c.leads[i].Name, query) {
			lead := c.leads[i]
			c.linkedLead = &lead
			c.leadID = lead.ID
			return
		}
	}
	c.err = "No such lead"
}

func (m *model) selectComposerContact(query string) {
	c := &m.composer
	if strings.EqualFold(query, "none") {
		c.linkedContact = nil
		c.contactID = ""
		return
	}
	if idx, err := strconv.Atoi(query); err == nil && idx > 0 && idx <= len(c.contacts) {
		contact := c.contacts[idx-1]
		c.linkedContact = &contact
		c.contactID = contact.ID
		return
	}
	for i := range c.contacts {
		if strings.EqualFold(c.contacts[i].Name, query) {
			contact := c.contacts[i]
			c.linkedContact = &contact
			c.contactID = contact.ID
			return
		}
	}
	c.err = "No such contact"
}

// missingRequired reports the first empty required field, or "".
func (c *meetingComposer) missingRequired() string {
	switch {
	case strings.TrimSpace(c.fields[fieldSubject].value) == "":
		return "Subject is required"
	case strings.TrimSpace(c.fields[fieldStart].value) == "":
		return "Start time is required"
	case strings.TrimSpace(c.fields[fieldEnd].value) == "":
		return "End time is required"
	}
	return ""
}

func (c *meetingComposer) parseTimes(loc *time.Location) (start, end time.Time, err error) {
	start, err = parseComposerTime(c.fields[fieldStart].value, loc)
	if err != nil {
		return start, end, fmt.Errorf("start time: %w", err)
	}
	end, err = parseComposerTime(c.fields[fieldEnd].value, loc)
	if err != nil {
		return start, end, fmt.Errorf("end time: %w", err)
	}
	return start, end, nil
}

func parseComposerTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{composerTimeLayout, "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("expected YYYY-MM-DDTHH:MM, got %q", value)
}

// attendees gathers email/name pairs from the linked lead and contact,
// silently skipping entries without an email.
func (c *meetingComposer) attendees() []conference.Attendee {
	var picked []conference.Attendee
	if c.linkedLead != nil {
		picked = append(picked, conference.Attendee{Email: c.linkedLead.Email, Name: c.linkedLead.Name})
	}
	if c.linkedContact != nil {
		picked = append(picked, conference.Attendee{Email: c.linkedContact.Email, Name: c.linkedContact.Name})
	}
	return lo.Filter(picked, func(a conference.Attendee, _ int) bool { return a.Email != "" })
}

func (m *model) startLinkGeneration() tea.Cmd {
	c := &m.composer
	if msg := c.missingRequired(); msg != "" {
		c.err = msg
		return nil
	}
	start, end, err := c.parseTimes(m.cfg.Location())
	if err != nil {
		c.err = err.Error()
		return nil
	}
	req := conference.MeetingRequest{
		Subject:   strings.TrimSpace(c.fields[fieldSubject].value),
		Attendees: c.attendees(),
		StartTime: start,
		EndTime:   end,
	}
	c.generating = true
	c.err = ""
	c.info = ""
	return m.generateLinkCmd(c.session, req)
}

func (m *model) generateLinkCmd(session int, req conference.MeetingRequest) tea.Cmd {
	conf := m.conf
	return func() tea.Msg {
		if conf == nil {
			return linkGeneratedMsg{session: session, err: fmt.Errorf("conferencing is not configured")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		joinURL, err := conf.CreateMeeting(ctx, req)
		return linkGeneratedMsg{session: session, joinURL: joinURL, err: err}
	}
}

func (m *model) startMeetingSave() tea.Cmd {
	c := &m.composer
	if msg := c.missingRequired(); msg != "" {
		c.err = msg
		return nil
	}
	start, end, err := c.parseTimes(m.cfg.Location())
	if err != nil {
		c.err = err.Error()
		return nil
	}
	if end.Before(start) {
		c.err = "End time must not be before start time"
		return nil
	}

	meeting := storage.Meeting{
		Subject:     strings.TrimSpace(c.fields[fieldSubject].value),
		Description: strings.TrimSpace(c.fields[fieldDescription].value),
		StartTime:   start,
		EndTime:     end,
		JoinURL:     strings.TrimSpace(c.fields[fieldJoinURL].value),
		LeadID:      c.leadID,
		ContactID:   c.contactID,
		Status:      storage.MeetingScheduled,
		CreatedBy:   m.cfg.Config.Name,
	}
	if c.editing {
		meeting.ID = c.original.ID
		meeting.Status = c.original.Status
		meeting.CreatedBy = c.original.CreatedBy
		meeting.CreatedAt = c.original.CreatedAt
	}
	c.saving = true
	c.err = ""
	c.info = ""
	return m.saveMeetingCmd(c.session, meeting, c.editing)
}

func (m *model) viewMeetingComposer() string {
	c := &m.composer
	title := "New Meeting"
	if c.editing {
		title = "Edit Meeting"
	}
	lines := []string{m.theme.Title.Render(title)}
	lines = append(lines, m.theme.Faint.Render("Pick a field number to edit it. 'g' requests a conferencing link, 'save' submits, '/' cancels."))
	lines = append(lines, "")

	for i, f := range c.fields {
		label := fmt.Sprintf("%d. %s", i+1, f.label)
		value := f.value
		if value == "" {
			value = m.theme.Faint.Render("—")
		}
		marker := "  "
		if c.editField == i {
			marker = m.theme.Accent.Render("> ")
		}
		lines = append(lines, marker+m.theme.Primary.Render(label)+"  "+value)
	}

	leadLabel := "none"
	if c.linkedLead != nil {
		leadLabel = c.linkedLead.Name
	} else if c.loadingLeads {
		leadLabel = "loading..."
	}
	contactLabel := "none"
	if c.linkedContact != nil {
		contactLabel = c.linkedContact.Name
	} else if c.loadingContacts {
		contactLabel = "loading..."
	}
	lines = append(lines, "")
	lines = append(lines, m.theme.Secondary.Render(fmt.Sprintf("Lead: %s (%d available)", leadLabel, len(c.leads))))
	lines = append(lines, m.theme.Secondary.Render(fmt.Sprintf("Contact: %s (%d available)", contactLabel, len(c.contacts))))

	if c.generating {
		lines = append(lines, "", m.theme.Warning.Render("Requesting conferencing link..."))
	}
	if c.saving {
		lines = append(lines, "", m.theme.Warning.Render("Saving..."))
	}
	if c.info != "" {
		lines = append(lines, "", m.theme.Success.Render(c.info))
	}
	if c.err != "" {
		lines = append(lines, "", m.theme.Danger.Render(c.err))
	}
	lines = append(lines, "")
	lines = append(lines, m.theme.Accent.Render("> ")+c.input.View())
	return strings.Join(lines, "\n") + "\n"
}
