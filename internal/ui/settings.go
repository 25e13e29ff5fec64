package ui

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"pipeterm/internal/config"
	"pipeterm/internal/storage"
)

const defaultPanelKey = "profile"

type settingsPanel struct {
	key        string
	title      string
	capability config.Capability // empty means visible to every role
}

type settingsSection struct {
	title  string
	panels []settingsPanel
}

// settingsSections is the full shell layout. Panels carrying a capability
// are removed entirely for roles that lack it.
var settingsSections = []settingsSection{
	{
		title: "General",
		panels: []settingsPanel{
			{key: defaultPanelKey, title: "Profile"},
			{key: "notifications", title: "Notifications"},
			{key: "appearance", title: "Appearance"},
			{key: "security", title: "Security"},
		},
	},
	{
		title: "Communication",
		panels: []settingsPanel{
			{key: "email", title: "Email"},
			{key: "calendar", title: "Calendar"},
		},
	},
	{
		title: "Administration",
		panels: []settingsPanel{
			{key: "users", title: "Users", capability: config.CapManageUsers},
			{key: "pipeline", title: "Pipeline", capability: config.CapManagePipeline},
			{key: "custom-fields", title: "Custom Fields", capability: config.CapManageFields},
			{key: "audit-logs", title: "Audit Logs", capability: config.CapViewAuditLog},
			{key: "backups", title: "Backups", capability: config.CapManageBackups},
			{key: "integrations", title: "Integrations", capability: config.CapManageIntegrable},
		},
	},
}

// settingsShell tracks which panel is active. Selection state only; panel
// content renders from config and storage each frame.
type settingsShell struct {
	active    string
	editField int // -1 none, 0 name, 1 timezone
	input     textinput.Model
	audit     []storage.AuditEntry
	err       string
	info      string
}

func newSettingsShell() settingsShell {
	s := settingsShell{active: defaultPanelKey, editField: -1, input: textinput.New()}
	s.input.Prompt = ""
	s.input.Placeholder = "Panel name or number, '/' to go back"
	s.input.CharLimit = 128
	s.input.Focus()
	return s
}

// visibleSections filters the layout down to what the role may see. Sections
// left without panels disappear.
func visibleSections(role config.Role) []settingsSection {
	return lo.FilterMap(settingsSections, func(sec settingsSection, _ int) (settingsSection, bool) {
		panels := lo.Filter(sec.panels, func(p settingsPanel, _ int) bool {
			return p.capability == "" || role.Can(p.capability)
		})
		if len(panels) == 0 {
			return settingsSection{}, false
		}
		return settingsSection{title: sec.title, panels: panels}, true
	})
}

// sectionTitleFor resolves the section header for a panel key, falling back
// to a generic label for keys outside the layout.
func sectionTitleFor(key string) string {
	for _, sec := range settingsSections {
		for _, p := range sec.panels {
			if p.key == key {
				return sec.title
			}
		}
	}
	return "Settings"
}

// panelRenderers maps panel keys to their content. Unknown keys fall back to
// the profile panel.
var panelRenderers = map[string]func(*model) []string{
	defaultPanelKey: (*model).renderProfilePanel,
	"notifications": staticPanel("Desktop notifications follow your terminal bell settings.", "Meeting reminders are delivered by your calendar client."),
	"appearance":    staticPanel("The color theme follows your terminal palette.", "No per-user overrides yet."),
	"security":      staticPanel("The database lives on your local disk.", "Access follows your operating system user account."),
	"email":         staticPanel("Sending opens a draft in your system mail client.", "Templates are managed in the email composer."),
	"calendar":      staticPanel("Meetings are kept locally.", "Conferencing links come from the configured endpoint."),
	"users":         staticPanel("User provisioning is handled by your administrator tooling."),
	"pipeline":      staticPanel("Lead statuses: New, Contacted, Qualified, Lost."),
	"custom-fields": staticPanel("Contact fields are fixed in this release."),
	"audit-logs":    (*model).renderAuditPanel,
	"backups":       (*model).renderBackupsPanel,
	"integrations":  (*model).renderIntegrationsPanel,
}

func staticPanel(lines ...string) func(*model) []string {
	return func(m *model) []string {
		out := make([]string, 0, len(lines))
		for _, l := range lines {
			out = append(out, m.theme.Secondary.Render(l))
		}
		return out
	}
}

func (m *model) renderProfilePanel() []string {
	cfg := m.cfg.Config
	return []string{
		m.theme.Primary.Render("Name:     ") + cfg.Name,
		m.theme.Primary.Render("Role:     ") + string(m.cfg.UserRole()),
		m.theme.Primary.Render("Timezone: ") + cfg.Timezone,
		"",
		m.theme.Faint.Render("'name' and 'tz' edit the profile."),
	}
}

func (m *model) renderAuditPanel() []string {
	if len(m.settings.audit) == 0 {
		return []string{m.theme.Faint.Render("No audit entries yet.")}
	}
	lines := make([]string, 0, len(m.settings.audit))
	loc := m.cfg.Location()
	for _, e := range m.settings.audit {
		stamp := formatStamp(e.CreatedAt, loc)
		lines = append(lines, fmt.Sprintf("%s  %s %s %s  %s",
			m.theme.Faint.Render(stamp), e.Actor, e.Action, e.Entity, m.theme.Secondary.Render(e.Detail)))
	}
	return lines
}

func (m *model) renderBackupsPanel() []string {
	path := m.store.Path()
	lines := []string{m.theme.Primary.Render("Database: ") + path}
	if info, err := os.Stat(path); err == nil {
		lines = append(lines, m.theme.Secondary.Render(fmt.Sprintf("Size: %.1f KiB", float64(info.Size())/1024)))
		lines = append(lines, m.theme.Secondary.Render("Last modified: "+info.ModTime().In(m.cfg.Location()).Format(time.RFC822)))
	}
	lines = append(lines, "", m.theme.Faint.Render("Copy this file while the app is closed to take a backup."))
	return lines
}

func (m *model) renderIntegrationsPanel() []string {
	endpoint := m.cfg.Config.Conference.Endpoint
	if endpoint == "" {
		return []string{m.theme.Warning.Render("No conferencing endpoint configured.")}
	}
	return []string{m.theme.Primary.Render("Conferencing: ") + endpoint}
}

// selectSettingsPanel switches the active panel. The audit panel reads its
// entries once on entry.
func (m *model) selectSettingsPanel(key string) {
	s := &m.settings
	s.active = key
	s.err = ""
	s.info = ""
	if key != "audit-logs" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	entries, err := m.store.ListAudit(ctx, 50)
	if err != nil {
		s.err = fmt.Sprintf("load audit log: %v", err)
		m.log.Warn("audit fetch", zap.Error(err))
		return
	}
	s.audit = entries
}

func (m *model) updateSettings(msg tea.Msg) tea.Cmd {
	s := &m.settings

	var cmds []tea.Cmd
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return batchCmds(cmds)
	}
	if key.Type == tea.KeyEsc {
		m.popState()
		return batchCmds(cmds)
	}
	if key.Type != tea.KeyEnter {
		return batchCmds(cmds)
	}

	value := strings.TrimSpace(s.input.Value())
	if s.editField >= 0 {
		m.applyProfileEdit(value)
		return batchCmds(cmds)
	}

	s.input.SetValue("")
	lower := strings.ToLower(value)
	switch {
	case value == "":
		return batchCmds(cmds)
	case isExitCommand(value):
		return m.returnToMenu(cmds)
	case isBackCommand(value):
		m.popState()
		return batchCmds(cmds)
	case lower == "name" && s.active == defaultPanelKey:
		s.editField = 0
		s.input.SetValue(m.cfg.Config.Name)
		s.input.Placeholder = "Display name"
		return batchCmds(cmds)
	case lower == "tz" && s.active == defaultPanelKey:
		s.editField = 1
		s.input.SetValue(m.cfg.Config.Timezone)
		s.input.Placeholder = "IANA timezone, e.g. Europe/Berlin"
		return batchCmds(cmds)
	}

	panels := lo.FlatMap(visibleSections(m.cfg.UserRole()), func(sec settingsSection, _ int) []settingsPanel {
		return sec.panels
	})
	if idx, err := strconv.Atoi(value); err == nil && idx > 0 && idx <= len(panels) {
		m.selectSettingsPanel(panels[idx-1].key)
		return batchCmds(cmds)
	}
	for _, p := range panels {
		if strings.EqualFold(p.key, lower) || strings.EqualFold(p.title, value) {
			m.selectSettingsPanel(p.key)
			return batchCmds(cmds)
		}
	}
	s.err = "Unknown choice"
	return batchCmds(cmds)
}

func (m *model) applyProfileEdit(value string) {
	s := &m.settings
	field := s.editField
	s.editField = -1
	s.input.SetValue("")
	s.input.Placeholder = "Panel name or number, '/' to go back"
	if isBackCommand(value) {
		return
	}
	switch field {
	case 0:
		if value == "" {
			s.err = "Name cannot be empty"
			return
		}
		m.cfg.Config.Name = value
		s.info = "Name updated"
	case 1:
		if _, err := time.LoadLocation(value); err != nil {
			s.err = fmt.Sprintf("unknown timezone %q", value)
			return
		}
		m.cfg.Config.Timezone = value
		s.info = "Timezone updated"
	}
	if err := m.cfg.Save(); err != nil {
		s.err = fmt.Sprintf("save config: %v", err)
		m.log.Warn("config save", zap.Error(err))
		return
	}
	s.err = ""
}

func (m *model) viewSettings() string {
	s := &m.settings
	role := m.cfg.UserRole()
	lines := []string{m.theme.Title.Render("Settings")}
	lines = append(lines, m.theme.Faint.Render("Pick a panel by name or number. '/' to go back."))
	lines = append(lines, "")

	n := 0
	for _, sec := range visibleSections(role) {
		lines = append(lines, m.theme.Subtitle.Render(sec.title))
		for _, p := range sec.panels {
			n++
			marker := "  "
			style := m.theme.Primary
			if p.key == s.active {
				marker = m.theme.Accent.Render("> ")
				style = m.theme.Selected
			}
			lines = append(lines, fmt.Sprintf("%s%d. %s", marker, n, style.Render(p.title)))
		}
		lines = append(lines, "")
	}

	render, ok := panelRenderers[s.active]
	if !ok {
		render = panelRenderers[defaultPanelKey]
	}
	lines = append(lines, m.theme.Subtitle.Render(sectionTitleFor(s.active)+" / "+panelTitle(s.active)))
	lines = append(lines, render(m)...)

	if s.info != "" {
		lines = append(lines, "", m.theme.Success.Render(s.info))
	}
	if s.err != "" {
		lines = append(lines, "", m.theme.Danger.Render(s.err))
	}
	lines = append(lines, "")
	lines = append(lines, m.theme.Accent.Render("> ")+s.input.View())
	return strings.Join(lines, "\n") + "\n"
}

func panelTitle(key string) string {
	for _, sec := range settingsSections {
		for _, p := range sec.panels {
			if p.key == key {
				return p.title
			}
		}
	}
	return "Profile"
}
