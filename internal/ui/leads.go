package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"pipeterm/internal/storage"
)

// leadsScreen is a read-only reference list; leads are qualified elsewhere.
type leadsScreen struct {
	all      []storage.Lead
	filtered []storage.Lead
	filter   textinput.Model
}

func newLeadsScreen() leadsScreen {
	filter := textinput.New()
	filter.Prompt = ""
	filter.Placeholder = "Type to search, / to go back"
	filter.CharLimit = 64
	return leadsScreen{filter: filter}
}

func (s *leadsScreen) applyFilter() {
	term := strings.ToLower(strings.TrimSpace(s.filter.Value()))
	if term == "" {
		s.filtered = s.all
		return
	}
	var filtered []storage.Lead
	for _, l := range s.all {
		if strings.Contains(strings.ToLower(l.Name), term) {
			filtered = append(filtered, l)
		}
	}
	s.filtered = filtered
}

func (m *model) leadAt(input string) (storage.Lead, bool) {
	var empty storage.Lead
	query := strings.TrimSpace(input)
	if query == "" {
		return empty, false
	}
	if idx, err := strconv.Atoi(query); err == nil {
		if idx > 0 && idx <= len(m.leads.filtered) {
			return m.leads.filtered[idx-1], true
		}
		return empty, false
	}
	for _, list := range [][]storage.Lead{m.leads.filtered, m.leads.all} {
		for i := range list {
			if strings.EqualFold(list[i].Name, query) {
				return list[i], true
			}
		}
	}
	return empty, false
}

func (m *model) updateLeads(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.leads.filter, cmd = m.leads.filter.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	switch key := msg.(type) {
	case tea.KeyMsg:
		switch key.Type {
		case tea.KeyEnter:
			value := strings.TrimSpace(m.leads.filter.Value())
			if isExitCommand(value) {
				m.leads.filter.SetValue("")
				return m.returnToMenu(cmds)
			}
			if isBackCommand(value) {
				m.leads.filter.SetValue("")
				m.popState()
				if m.state == stateMainMenu {
					if focus := m.setMenuInput("Choose an option", 32); focus != nil {
						cmds = append(cmds, focus)
					}
				}
				return batchCmds(cmds)
			}
			if strings.HasPrefix(strings.ToLower(value), "meet ") {
				if lead, ok := m.leadAt(value[5:]); ok {
					m.resetMessages()
					m.leads.filter.SetValue("")
					if cmd := m.openMeetingComposer(nil, &lead, nil); cmd != nil {
						cmds = append(cmds, cmd)
					}
					return batchCmds(cmds)
				}
				m.errMessage = "No such lead"
				return batchCmds(cmds)
			}
			m.refreshLeads()
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

	m.leads.applyFilter()
	return batchCmds(cmds)
}

func (m *model) viewLeads() string {
	lines := []string{m.theme.Title.Render("Leads")}
	lines = append(lines, m.theme.Faint.Render("Type to search. 'meet <n>' schedules a meeting with a lead. '/' to go back."))
	lines = append(lines, "")
	if len(m.leads.filtered) == 0 {
		lines = append(lines, m.theme.Warning.Render("No leads found."))
	} else {
		for i, l := range m.leads.filtered {
			header := fmt.Sprintf("%d. %s", i+1, l.Name)
			lines = append(lines, m.theme.Primary.Render(header))
			meta := []string{}
			if l.Email != "" {
				meta = append(meta, fmt.Sprintf("Email: %s", l.Email))
			}
			if l.Company != "" {
				meta = append(meta, fmt.Sprintf("Company: %s", l.Company))
			}
			if l.Status != "" {
				meta = append(meta, fmt.Sprintf("Status: %s", l.Status))
			}
			if len(meta) > 0 {
				lines = append(lines, "  "+m.theme.Secondary.Render(strings.Join(meta, "  |  ")))
			}
		}
	}
	if m.infoMessage != "" {
		lines = append(lines, "", m.theme.Success.Render(m.infoMessage))
	}
	if m.errMessage != "" {
		lines = append(lines, "", m.theme.Danger.Render(m.errMessage))
	}
	lines = append(lines, m.theme.Border.Render(strings.Repeat("─", 40)))
	lines = append(lines, m.theme.Accent.Render("find> ")+m.leads.filter.View())
	return strings.Join(lines, "\n") + "\n"
}
