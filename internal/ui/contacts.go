package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"pipeterm/internal/storage"
)

type contactsScreen struct {
	all      []storage.Contact
	filtered []storage.Contact
	filter   textinput.Model
	selected map[string]struct{}
}

type contactForm struct {
	index    int
	fields   []formField
	input    textinput.Model
	err      string
	editing  bool
	original storage.Contact
}

type formField struct {
	label    string
	value    string
	required bool
}

func newContactsScreen() contactsScreen {
	filter := textinput.New()
	filter.Prompt = ""
	filter.Placeholder = "Type to search, / to go back"
	filter.CharLimit = 64
	return contactsScreen{
		filter:   filter,
		selected: map[string]struct{}{},
	}
}

func newContactForm(existing *storage.Contact) contactForm {
	ti := textinput.New()
	ti.Placeholder = "Full name"
	ti.CharLimit = 96
	ti.Focus()
	fields := []formField{
		{label: "Full name", required: true},
		{label: "Email", required: false},
		{label: "Company", required: false},
		{label: "Position", required: false},
		{label: "Phone", required: false},
	}
	form := contactForm{
		index:  0,
		fields: fields,
		input:  ti,
	}
	if existing != nil {
		clone := *existing
		form.editing = true
		form.original = clone
		form.fields[0].value = existing.Name
		form.fields[1].value = existing.Email
		form.fields[2].value = existing.Company
		form.fields[3].value = existing.Position
		form.fields[4].value = existing.Phone
		form.input.SetValue(existing.Name)
	}
	return form
}

func (m *model) bulkBar() BulkBar {
	return BulkBar{
		Count:    len(m.contacts.selected),
		OnDelete: m.deleteSelectedContacts,
		OnExport: m.exportSelectedContacts,
		OnClear:  m.clearContactSelection,
	}
}

func (m *model) deleteSelectedContacts() {
	ids := make([]string, 0, len(m.contacts.selected))
	for id := range m.contacts.selected {
		ids = append(ids, id)
	}
	ctx := context.Background()
	deleted, err := m.store.DeleteContacts(ctx, ids)
	if err != nil {
		m.errMessage = fmt.Sprintf("delete contacts: %v", err)
		m.log.Warn("bulk delete", zap.Error(err))
		return
	}
	_ = m.store.AppendAudit(ctx, &storage.AuditEntry{
		Actor:  m.cfg.Config.Name,
		Action: "deleted",
		Entity: "contacts",
		Detail: fmt.Sprintf("%d record(s)", deleted),
	})
	m.contacts.selected = map[string]struct{}{}
	m.infoMessage = fmt.Sprintf("Deleted %d contact(s)", deleted)
	m.errMessage = ""
	m.refreshContacts()
}

func (m *model) exportSelectedContacts() {
	ids := make([]string, 0, len(m.contacts.selected))
	for id := range m.contacts.selected {
		ids = append(ids, id)
	}
	name := fmt.Sprintf("contacts-%s.csv", time.Now().Format("20060102-150405"))
	file, err := os.Create(name)
	if err != nil {
		m.errMessage = fmt.Sprintf("create export file: %v", err)
		return
	}
	defer file.Close()
	ctx := context.Background()
	exported, err := m.store.ExportContactsCSV(ctx, file, ids)
	if err != nil {
		m.errMessage = fmt.Sprintf("export contacts: %v", err)
		m.log.Warn("bulk export", zap.Error(err))
		return
	}
	_ = m.store.AppendAudit(ctx, &storage.AuditEntry{
		Actor:  m.cfg.Config.Name,
		Action: "exported",
		Entity: "contacts",
		Detail: name,
	})
	m.infoMessage = fmt.Sprintf("Exported %d contact(s) to %s", exported, name)
	m.errMessage = ""
}

func (m *model) clearContactSelection() {
	m.contacts.selected = map[string]struct{}{}
	m.infoMessage = "Selection cleared"
}

func (m *model) contactAt(input string) (storage.Contact, bool) {
	var empty storage.Contact
	query := strings.TrimSpace(input)
	if query == "" {
		return empty, false
	}
	if idx, err := strconv.Atoi(query); err == nil {
		if idx > 0 && idx <= len(m.contacts.filtered) {
			return m.contacts.filtered[idx-1], true
		}
		return empty, false
	}
	for _, list := range [][]storage.Contact{m.contacts.filtered, m.contacts.all} {
		for i := range list {
			if strings.EqualFold(list[i].Name, query) {
				return list[i], true
			}
		}
	}
	return empty, false
}

// CONTACTS LIST
func (m *model) updateContacts(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.contacts.filter, cmd = m.contacts.filter.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	switch key := msg.(type) {
	case tea.KeyMsg:
		switch key.Type {
		case tea.KeyEnter:
			value := strings.TrimSpace(m.contacts.filter.Value())
			if isExitCommand(value) {
				m.contacts.filter.SetValue("")
				return m.returnToMenu(cmds)
			}
			if isBackCommand(value) {
				m.contacts.filter.SetValue("")
				m.popState()
				if m.state == stateMainMenu {
					if focus := m.setMenuInput("Choose an option", 32); focus != nil {
						cmds = append(cmds, focus)
					}
				}
				return batchCmds(cmds)
			}
			if handled := m.handleContactCommand(value, &cmds); handled {
				m.contacts.filter.SetValue("")
				return batchCmds(cmds)
			}
			m.refreshContacts()
		case tea.KeyEsc:
			m.popState()
			if m.state == stateMainMenu {
				if focus := m.setMenuInput("Choose an option", 32); focus != nil {
					cmds = append(cmds, focus)
				}
			}
			return batchCmds(cmds)
		}
	}

	filter := strings.TrimSpace(m.contacts.filter.Value())
	if filter == "" {
		m.contacts.filtered = m.contacts.all
	} else {
		contacts, err := m.store.SearchContacts(context.Background(), filter)
		if err == nil {
			m.contacts.filtered = contacts
		}
	}
	return batchCmds(cmds)
}

func (m *model) handleContactCommand(value string, cmds *[]tea.Cmd) bool {
	lower := strings.ToLower(value)
	switch {
	case value == "":
		return false
	case m.bulkBar().Handle(lower):
		return true
	case lower == "add":
		m.resetMessages()
		m.openContactForm(nil)
		return true
	case strings.HasPrefix(lower, "edit "):
		if contact, ok := m.contactAt(value[5:]); ok {
			m.resetMessages()
			m.openContactForm(&contact)
			return true
		}
		m.errMessage = "No such contact"
		return true
	case strings.HasPrefix(lower, "sel "):
		if contact, ok := m.contactAt(value[4:]); ok {
			m.toggleContactSelection(contact.ID)
			return true
		}
		m.errMessage = "No such contact"
		return true
	case lower == "all":
		for _, c := range m.contacts.filtered {
			m.contacts.selected[c.ID] = struct{}{}
		}
		return true
	case strings.HasPrefix(lower, "email "):
		if contact, ok := m.contactAt(value[6:]); ok {
			m.resetMessages()
			if cmd := m.openEmailComposer(&contact); cmd != nil {
				*cmds = append(*cmds, cmd)
			}
			return true
		}
		m.errMessage = "No such contact"
		return true
	case strings.HasPrefix(lower, "meet "):
		if contact, ok := m.contactAt(value[5:]); ok {
			m.resetMessages()
			if cmd := m.openMeetingComposer(nil, nil, &contact); cmd != nil {
				*cmds = append(*cmds, cmd)
			}
			return true
		}
		m.errMessage = "No such contact"
		return true
	case strings.HasPrefix(lower, "import "):
		m.handleContactImport(strings.TrimSpace(value[len("import "):]))
		m.refreshContacts()
		return true
	default:
		if contact, ok := m.contactAt(value); ok {
			m.toggleContactSelection(contact.ID)
			return true
		}
	}
	return false
}

func (m *model) toggleContactSelection(id string) {
	if _, ok := m.contacts.selected[id]; ok {
		delete(m.contacts.selected, id)
	} else {
		m.contacts.selected[id] = struct{}{}
	}
}

func (m *model) openContactForm(existing *storage.Contact) {
	m.contactForm = newContactForm(existing)
	m.pushState(stateContactForm)
}

func (m *model) viewContacts() string {
	lines := []string{m.theme.Title.Render("Contacts")}
	lines = append(lines, m.theme.Faint.Render("Type to search. <n> toggles selection; add, edit <n>, email <n>, meet <n>, sel <n>, all, import <path>. '/' to go back."))
	lines = append(lines, "")
	if len(m.contacts.filtered) == 0 {
		lines = append(lines, m.theme.Warning.Render("No contacts found."))
	} else {
		for i, c := range m.contacts.filtered {
			marker := "  "
			style := m.theme.Primary
			if _, ok := m.contacts.selected[c.ID]; ok {
				marker = "* "
				style = m.theme.Selected
			}
			header := fmt.Sprintf("%s%d. %s", marker, i+1, c.Name)
			lines = append(lines, style.Render(header))
			meta := []string{}
			if c.Email != "" {
				meta = append(meta, fmt.Sprintf("Email: %s", c.Email))
			}
			if c.Company != "" {
				meta = append(meta, fmt.Sprintf("Company: %s", c.Company))
			}
			if c.Position != "" {
				meta = append(meta, fmt.Sprintf("Position: %s", c.Position))
			}
			if c.Phone != "" {
				meta = append(meta, fmt.Sprintf("Phone: %s", c.Phone))
			}
			if len(meta) > 0 {
				lines = append(lines, "    "+m.theme.Secondary.Render(strings.Join(meta, "  |  ")))
			}
			lines = append(lines, "    "+m.theme.Faint.Render(fmt.Sprintf("Created by %s on %s", c.Creator, formatStamp(c.CreatedAt, m.cfg.Location()))))
		}
	}
	if bar := m.bulkBar().View(m.theme); bar != "" {
		lines = append(lines, "", bar)
	}
	if m.infoMessage != "" {
		lines = append(lines, "", m.theme.Success.Render(m.infoMessage))
	}
	if m.errMessage != "" {
		lines = append(lines, "", m.theme.Danger.Render(m.errMessage))
	}
	lines = append(lines, m.theme.Border.Render(strings.Repeat("─", 40)))
	lines = append(lines, m.theme.Accent.Render("find> ")+m.contacts.filter.View())
	return strings.Join(lines, "\n") + "\n"
}

func (m *model) handleContactImport(path string) {
	m.infoMessage = ""
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		m.errMessage = "Provide a CSV path"
		return
	}
	resolved, err := expandPath(trimmed)
	if err != nil {
		m.errMessage = fmt.Sprintf("import path: %v", err)
		return
	}
	file, err := os.Open(resolved)
	if err != nil {
		m.errMessage = fmt.Sprintf("open file: %v", err)
		return
	}
	defer file.Close()
	ctx := context.Background()
	result, err := m.store.ImportContactsCSV(ctx, file, m.cfg.Config.Name, m.cfg.Location())
	if err != nil {
		m.errMessage = fmt.Sprintf("import csv: %v", err)
		return
	}
	_ = m.store.AppendAudit(ctx, &storage.AuditEntry{
		Actor:  m.cfg.Config.Name,
		Action: "imported",
		Entity: "contacts",
		Detail: fmt.Sprintf("%d record(s) from %s", result.Created, filepath.Base(resolved)),
	})
	parts := []string{fmt.Sprintf("Imported %d contact(s)", result.Created)}
	if result.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("skipped %d", result.Skipped))
	}
	m.infoMessage = strings.Join(parts, ", ")
	if len(result.Errors) > 0 {
		m.errMessage = strings.Join(result.Errors, "; ")
	} else {
		m.errMessage = ""
	}
}

func expandPath(p string) (string, error) {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			switch {
			case len(trimmed) == 1:
				trimmed = home
			case trimmed[1] == '/', trimmed[1] == '\\':
				trimmed = filepath.Join(home, trimmed[2:])
			}
		}
	}
	return filepath.Abs(trimmed)
}

// CONTACT FORM
func (m *model) updateContactForm(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.contactForm.input, cmd = m.contactForm.input.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			value := strings.TrimSpace(m.contactForm.input.Value())
			if isExitCommand(value) {
				m.contactForm = newContactForm(nil)
				return m.returnToMenu(cmds)
			}
			if isBackCommand(value) {
				if m.contactForm.index == 0 {
					m.contactForm = newContactForm(nil)
					m.popState()
					return batchCmds(cmds)
				}
				m.contactForm.index--
				prev := m.contactForm.fields[m.contactForm.index]
				m.contactForm.input.Placeholder = prev.label
				m.contactForm.input.SetValue(prev.value)
				m.contactForm.err = ""
				return batchCmds(cmds)
			}
			if m.contactForm.fields[m.contactForm.index].required && value == "" {
				m.contactForm.err = "This field is required"
				return batchCmds(cmds)
			}
			m.contactForm.fields[m.contactForm.index].value = value
			m.contactForm.input.SetValue("")
			m.contactForm.err = ""
			if m.contactForm.index >= len(m.contactForm.fields)-1 {
				return m.submitContactForm(cmds)
			}
			m.contactForm.index++
			next := m.contactForm.fields[m.contactForm.index]
			m.contactForm.input.Placeholder = next.label
			m.contactForm.input.SetValue(next.value)
		case tea.KeyEsc:
			m.contactForm = newContactForm(nil)
			m.popState()
			return batchCmds(cmds)
		}
	}
	return batchCmds(cmds)
}

func (m *model) submitContactForm(cmds []tea.Cmd) tea.Cmd {
	base := storage.Contact{}
	if m.contactForm.editing {
		base = m.contactForm.original
	}
	contact := buildContact(m.contactForm.fields, base)
	ctx := context.Background()
	if m.contactForm.editing {
		if err := m.store.UpdateContact(ctx, &contact); err != nil {
			m.contactFormError(err)
			return batchCmds(cmds)
		}
		m.infoMessage = fmt.Sprintf("Contact '%s' updated", contact.Name)
	} else {
		contact.Creator = m.cfg.Config.Name
		contact.CreatedAt = time.Now().In(m.cfg.Location())
		if err := m.store.CreateContact(ctx, &contact); err != nil {
			m.contactFormError(err)
			return batchCmds(cmds)
		}
		m.infoMessage = fmt.Sprintf("Contact '%s' created", contact.Name)
	}
	m.contactForm = newContactForm(nil)
	m.popState()
	m.refreshContacts()
	return batchCmds(cmds)
}

func (m *model) contactFormError(err error) {
	if err == storage.ErrContactExists {
		m.contactForm.err = "A contact with that name already exists"
		m.contactForm.index = 0
		m.contactForm.input.SetValue(m.contactForm.fields[0].value)
		m.contactForm.input.Placeholder = m.contactForm.fields[0].label
		return
	}
	m.contactForm.err = err.Error()
}

func buildContact(fields []formField, base storage.Contact) storage.Contact {
	contact := base
	if len(fields) > 0 {
		contact.Name = fields[0].value
	}
	if len(fields) > 1 {
		contact.Email = fields[1].value
	}
	if len(fields) > 2 {
		contact.Company = fields[2].value
	}
	if len(fields) > 3 {
		contact.Position = fields[3].value
	}
	if len(fields) > 4 {
		contact.Phone = fields[4].value
	}
	return contact
}

func (m *model) viewContactForm() string {
	field := m.contactForm.fields[m.contactForm.index]
	title := "Add Contact"
	if m.contactForm.editing {
		title = "Edit Contact"
	}
	lines := []string{
		m.theme.Title.Render(title),
		m.theme.Faint.Render("Enter details. '/' to go back, 'exit.' to cancel."),
		"",
		m.theme.Secondary.Render(fmt.Sprintf("%d/%d", m.contactForm.index+1, len(m.contactForm.fields))),
		m.theme.Primary.Render(field.label + ":"),
		m.contactForm.input.View(),
	}
	if m.contactForm.err != "" {
		lines = append(lines, "", m.theme.Danger.Render(m.contactForm.err))
	}
	return strings.Join(lines, "\n") + "\n"
}
