package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"pipeterm/internal/mailer"
	"pipeterm/internal/storage"
	"pipeterm/internal/template"
)

// emailComposer drafts an email for one contact. Applying a template fills
// subject and body with placeholders resolved against the contact; both stay
// editable afterwards. Sending hands the draft to the system mail client.
type emailComposer struct {
	session    int
	contact    storage.Contact
	hasContact bool

	templates []storage.EmailTemplate
	loading   bool
	applied   int // index into templates, -1 when none applied

	subject string
	body    string

	editField int // -1 command mode, 0 subject, 1 body
	input     textinput.Model
	err       string
	info      string
}

func (m *model) openEmailComposer(contact *storage.Contact) tea.Cmd {
	if contact == nil {
		return nil
	}
	session := m.newSession()
	c := emailComposer{
		session:    session,
		contact:    *contact,
		hasContact: true,
		loading:    true,
		applied:    -1,
		editField:  -1,
		input:      textinput.New(),
	}
	c.input.Prompt = ""
	c.input.Placeholder = "t <n> applies a template, subject, body, send, /"
	c.input.CharLimit = 1024
	focus := c.input.Focus()

	m.email = c
	m.pushState(stateEmailComposer)
	return batchCmds([]tea.Cmd{focus, m.loadTemplatesCmd(session)})
}

func (m *model) closeEmailComposer() {
	m.email = emailComposer{session: 0}
	m.popState()
}

func (m *model) updateEmailComposer(msg tea.Msg) tea.Cmd {
	c := &m.email

	if msg, ok := msg.(templatesLoadedMsg); ok {
		if msg.session != c.session {
			return nil
		}
		c.loading = false
		if msg.err != nil {
			c.err = fmt.Sprintf("load templates: %v", msg.err)
			m.log.Warn("template fetch", zap.Error(msg.err))
			return nil
		}
		c.templates = msg.templates
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
		m.closeEmailComposer()
		return batchCmds(cmds)
	}
	if key.Type != tea.KeyEnter {
		return batchCmds(cmds)
	}

	value := strings.TrimSpace(c.input.Value())
	if c.editField >= 0 {
		if !isBackCommand(value) {
			if c.editField == 0 {
				c.subject = value
			} else {
				c.body = value
			}
		}
		c.editField = -1
		c.input.SetValue("")
		c.input.Placeholder = "t <n> applies a template, subject, body, send, /"
		return batchCmds(cmds)
	}

	c.input.SetValue("")
	lower := strings.ToLower(value)
	switch {
	case value == "":
		return batchCmds(cmds)
	case isExitCommand(value):
		m.email = emailComposer{session: 0}
		return m.returnToMenu(cmds)
	case isBackCommand(value):
		m.closeEmailComposer()
		return batchCmds(cmds)
	case lower == "subject":
		c.editField = 0
		c.err = ""
		c.input.SetValue(c.subject)
		c.input.Placeholder = "Subject"
		return batchCmds(cmds)
	case lower == "body":
		c.editField = 1
		c.err = ""
		c.input.SetValue(c.body)
		c.input.Placeholder = "Body"
		return batchCmds(cmds)
	case lower == "s" || lower == "send":
		m.sendEmailDraft()
		return batchCmds(cmds)
	case strings.HasPrefix(lower, "t "):
		m.applyEmailTemplate(strings.TrimSpace(value[2:]))
		return batchCmds(cmds)
	}
	if _, err := strconv.Atoi(value); err == nil {
		m.applyEmailTemplate(value)
		return batchCmds(cmds)
	}
	c.err = "Unknown choice"
	return batchCmds(cmds)
}

func (m *model) applyEmailTemplate(query string) {
	c := &m.email
	if strings.EqualFold(query, "none") {
		c.applied = -1
		c.subject = ""
		c.body = ""
		c.err = ""
		c.info = "Template cleared"
		return
	}
	idx, err := strconv.Atoi(query)
	if err != nil || idx < 1 || idx > len(c.templates) {
		c.err = "No such template"
		return
	}
	t := c.templates[idx-1]
	c.applied = idx - 1
	c.subject, c.body = template.RenderParts(t, c.contact)
	c.err = ""
	c.info = fmt.Sprintf("Applied template '%s'", t.Name)
}

// sendEmailDraft refuses to compose without a recipient address.
func (m *model) sendEmailDraft() {
	c := &m.email
	if c.contact.Email == "" {
		c.err = "Contact has no email address"
		return
	}
	uri := mailer.ComposeLink(c.contact.Email, c.subject, c.body)
	if m.openURL == nil {
		c.err = "No mail client launcher available"
		return
	}
	if err := m.openURL(uri); err != nil {
		c.err = fmt.Sprintf("open mail client: %v", err)
		m.log.Warn("mailto launch", zap.Error(err))
		return
	}
	m.log.Info("email draft handed off", zap.String("to", c.contact.Email))
	m.infoMessage = fmt.Sprintf("Email draft for %s opened in your mail client", c.contact.Name)
	m.closeEmailComposer()
}

func (m *model) viewEmailComposer() string {
	c := &m.email
	if !c.hasContact {
		return ""
	}
	lines := []string{m.theme.Title.Render("Email " + c.contact.Name)}
	lines = append(lines, m.theme.Faint.Render("'t <n>' applies a template, 'subject'/'body' edit the draft, 'send' opens your mail client, '/' cancels."))
	lines = append(lines, "")

	to := c.contact.Email
	if to == "" {
		to = m.theme.Danger.Render("no email on file")
	}
	lines = append(lines, m.theme.Secondary.Render("To: ")+to)
	lines = append(lines, "")

	if c.loading {
		lines = append(lines, m.theme.Warning.Render("Loading templates..."))
	} else if len(c.templates) == 0 {
		lines = append(lines, m.theme.Faint.Render("No templates yet."))
	} else {
		lines = append(lines, m.theme.Subtitle.Render("Templates"))
		for i, t := range c.templates {
			marker := "  "
			if i == c.applied {
				marker = m.theme.Accent.Render("* ")
			}
			lines = append(lines, fmt.Sprintf("%s%d. %s", marker, i+1, t.Name))
		}
	}
	lines = append(lines, "")
	subject := c.subject
	if subject == "" {
		subject = m.theme.Faint.Render("—")
	}
	body := c.body
	if body == "" {
		body = m.theme.Faint.Render("—")
	}
	lines = append(lines, m.theme.Primary.Render("Subject:  ")+subject)
	lines = append(lines, m.theme.Primary.Render("Body:     ")+body)

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
