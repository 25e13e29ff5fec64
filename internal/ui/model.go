package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"pipeterm/internal/conference"
	"pipeterm/internal/config"
	"pipeterm/internal/mailer"
	"pipeterm/internal/theme"
)

// Program wraps the Bubble Tea program lifecycle.
type Program struct {
	program *tea.Program
}

// Deps carries the collaborators the UI needs. Everything is injected so
// tests can substitute fakes.
type Deps struct {
	Store      Backend
	Conference conference.Client
	OpenURL    mailer.Opener
	Config     *config.Store
	Log        *zap.Logger
}

// NewProgram constructs a new interactive CRM session.
func NewProgram(deps Deps) *Program {
	m := newModel(deps)
	return &Program{program: tea.NewProgram(m)}
}

// Start launches the Bubble Tea program.
func (p *Program) Start() error {
	if p == nil || p.program == nil {
		return fmt.Errorf("nil program")
	}
	return p.program.Start()
}

type viewState int

const (
	stateMainMenu viewState = iota
	stateContacts
	stateContactForm
	stateLeads
	stateMeetings
	stateMeetingComposer
	stateEmailComposer
	stateSettings
)

type model struct {
	state       viewState
	prevStates  []viewState
	store       Backend
	conf        conference.Client
	openURL     mailer.Opener
	cfg         *config.Store
	log         *zap.Logger
	theme       theme.Theme
	width       int
	height      int
	infoMessage string
	errMessage  string
	showSplash  bool
	nextSession int

	menuInput textinput.Model

	contacts    contactsScreen
	contactForm contactForm
	leads       leadsScreen
	meetings    meetingsScreen
	composer    meetingComposer
	email       emailComposer
	settings    settingsShell
}

type menuOption struct {
	id       string
	keywords []string
	synonyms []string
}

const (
	menuContacts   = "contacts"
	menuLeads      = "leads"
	menuMeetings   = "meetings"
	menuNewMeeting = "new-meeting"
	menuSettings   = "settings"
	menuQuit       = "quit"
)

var mainMenuOptions = []menuOption{
	{
		id:       menuContacts,
		keywords: []string{"contacts"},
		synonyms: []string{"1", "c", "contact", "contacts"},
	},
	{
		id:       menuLeads,
		keywords: []string{"leads"},
		synonyms: []string{"2", "l", "lead", "leads"},
	},
	{
		id:       menuMeetings,
		keywords: []string{"meetings"},
		synonyms: []string{"3", "m", "meeting", "meetings"},
	},
	{
		id:       menuNewMeeting,
		keywords: []string{"new", "schedule"},
		synonyms: []string{"4", "new", "new meeting", "schedule"},
	},
	{
		id:       menuSettings,
		keywords: []string{"settings", "help"},
		synonyms: []string{"5", "settings", "help"},
	},
	{
		id:       menuQuit,
		keywords: []string{"quit", "exit"},
		synonyms: []string{"6", "quit", "exit", "exit.", "q"},
	},
}

const splashBanner = `        _            __
  ___  (_)__  ___   / /____ ______ _  ___
 / _ \/ / _ \/ -_) / __/ -_) __/  ' \(_-<
/ .__/_/ .__/\__/  \__/\__/_/ /_/_/_/___/
/_/   /_/
`

func newModel(deps Deps) *model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "Choose an option"
	ti.CharLimit = 32
	ti.Focus()

	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	openURL := deps.OpenURL
	if openURL == nil {
		openURL = mailer.OpenSystem
	}

	m := model{
		state:      stateMainMenu,
		store:      deps.Store,
		conf:       deps.Conference,
		openURL:    openURL,
		cfg:        deps.Config,
		log:        log,
		theme:      theme.Default(),
		menuInput:  ti,
		showSplash: true,
	}
	m.contacts = newContactsScreen()
	m.leads = newLeadsScreen()
	m.meetings = newMeetingsScreen()
	m.settings = newSettingsShell()
	m.refreshContacts()
	m.refreshLeads()
	m.refreshMeetings()
	return &m
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case leadsLoadedMsg, composerContactsMsg, linkGeneratedMsg, meetingSavedMsg:
		return m, m.updateMeetingComposer(msg)
	case templatesLoadedMsg:
		return m, m.updateEmailComposer(msg)
	}

	var cmd tea.Cmd
	switch m.state {
	case stateMainMenu:
		cmd = m.updateMainMenu(msg)
	case stateContacts:
		cmd = m.updateContacts(msg)
	case stateContactForm:
		cmd = m.updateContactForm(msg)
	case stateLeads:
		cmd = m.updateLeads(msg)
	case stateMeetings:
		cmd = m.updateMeetings(msg)
	case stateMeetingComposer:
		cmd = m.updateMeetingComposer(msg)
	case stateEmailComposer:
		cmd = m.updateEmailComposer(msg)
	case stateSettings:
		cmd = m.updateSettings(msg)
	default:
		m.state = stateMainMenu
		cmd = m.updateMainMenu(msg)
	}
	return m, cmd
}

func (m *model) View() string {
	switch m.state {
	case stateMainMenu:
		return m.viewMainMenu()
	case stateContacts:
		return m.viewContacts()
	case stateContactForm:
		return m.viewContactForm()
	case stateLeads:
		return m.viewLeads()
	case stateMeetings:
		return m.viewMeetings()
	case stateMeetingComposer:
		return m.viewMeetingComposer()
	case stateEmailComposer:
		return m.viewEmailComposer()
	case stateSettings:
		return m.viewSettings()
	default:
		return ""
	}
}

// Navigation helpers
func (m *model) pushState(next viewState) {
	m.prevStates = append(m.prevStates, m.state)
	m.state = next
}

func (m *model) popState() {
	if len(m.prevStates) == 0 {
		m.state = stateMainMenu
		return
	}
	idx := len(m.prevStates) - 1
	m.state = m.prevStates[idx]
	m.prevStates = m.prevStates[:idx]
}

func (m *model) resetMessages() {
	m.errMessage = ""
	m.infoMessage = ""
}

// newSession mints a token tying async results to the dialog that issued
// them.
func (m *model) newSession() int {
	m.nextSession++
	return m.nextSession
}

func (m *model) setMenuInput(placeholder string, limit int) tea.Cmd {
	input := textinput.New()
	input.Prompt = ""
	input.Placeholder = placeholder
	if limit > 0 {
		input.CharLimit = limit
	}
	cmd := input.Focus()
	m.menuInput = input
	return cmd
}

func (m *model) ensureMenuInput(placeholder string, limit int) tea.Cmd {
	if strings.TrimSpace(m.menuInput.Placeholder) == placeholder {
		if limit <= 0 || m.menuInput.CharLimit == limit {
			if !m.menuInput.Focused() {
				return m.menuInput.Focus()
			}
			return nil
		}
	}
	return m.setMenuInput(placeholder, limit)
}

func resolveMenuSelection(options []menuOption, input string) (string, bool) {
	value := strings.TrimSpace(strings.ToLower(input))
	if value == "" {
		return "", false
	}
	// direct matches first
	for _, option := range options {
		for _, syn := range option.synonyms {
			if value == syn {
				return option.id, true
			}
		}
	}

	matches := make(map[string]struct{})
	for _, option := range options {
		for _, keyword := range option.keywords {
			if strings.HasPrefix(keyword, value) {
				matches[option.id] = struct{}{}
				break
			}
		}
	}
	if len(matches) == 1 {
		for id := range matches {
			return id, true
		}
	}
	return "", false
}

func batchCmds(cmds []tea.Cmd) tea.Cmd {
	filtered := cmds[:0]
	for _, c := range cmds {
		if c != nil {
			filtered = append(filtered, c)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	default:
		return tea.Batch(filtered...)
	}
}

// global command helpers
func isExitCommand(value string) bool {
	v := strings.TrimSpace(strings.ToLower(value))
	return v == "exit." || v == "quit"
}

func isBackCommand(value string) bool {
	v := strings.TrimSpace(strings.ToLower(value))
	return v == "/" || v == "back"
}

func (m *model) refreshContacts() {
	ctx := context.Background()
	contacts, err := m.store.ListContacts(ctx)
	if err != nil {
		m.errMessage = fmt.Sprintf("load contacts: %v", err)
		m.log.Warn("load contacts", zap.Error(err))
		return
	}
	m.contacts.all = contacts
	filter := strings.TrimSpace(m.contacts.filter.Value())
	if filter == "" {
		m.contacts.filtered = contacts
		return
	}
	filtered, err := m.store.SearchContacts(ctx, filter)
	if err != nil {
		m.errMessage = fmt.Sprintf("search contacts: %v", err)
		return
	}
	m.contacts.filtered = filtered
}

func (m *model) refreshLeads() {
	ctx := context.Background()
	leads, err := m.store.ListLeads(ctx)
	if err != nil {
		m.errMessage = fmt.Sprintf("load leads: %v", err)
		m.log.Warn("load leads", zap.Error(err))
		return
	}
	m.leads.all = leads
	m.leads.applyFilter()
}

func (m *model) refreshMeetings() {
	ctx := context.Background()
	meetings, err := m.store.ListMeetings(ctx)
	if err != nil {
		m.errMessage = fmt.Sprintf("load meetings: %v", err)
		m.log.Warn("load meetings", zap.Error(err))
		return
	}
	m.meetings.all = meetings
}

// returnToMenu collapses the nav stack back to the main menu.
func (m *model) returnToMenu(cmds []tea.Cmd) tea.Cmd {
	m.prevStates = nil
	m.state = stateMainMenu
	if focus := m.setMenuInput("Choose an option", 32); focus != nil {
		cmds = append(cmds, focus)
	}
	return batchCmds(cmds)
}

// MAIN MENU
func (m *model) updateMainMenu(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	if focus := m.ensureMenuInput("Choose an option", 32); focus != nil {
		cmds = append(cmds, focus)
	}

	var cmd tea.Cmd
	m.menuInput, cmd = m.menuInput.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEnter {
		choice := strings.TrimSpace(strings.ToLower(m.menuInput.Value()))
		m.menuInput.SetValue("")
		m.showSplash = false
		action, ok := resolveMenuSelection(mainMenuOptions, choice)
		if !ok {
			if choice == "" || choice == "0" {
				return batchCmds(cmds)
			}
			m.errMessage = "Unknown choice"
			return batchCmds(cmds)
		}
		switch action {
		case menuContacts:
			m.resetMessages()
			m.pushState(stateContacts)
			if !m.contacts.filter.Focused() {
				if focus := m.contacts.filter.Focus(); focus != nil {
					cmds = append(cmds, focus)
				}
			}
			m.refreshContacts()
		case menuLeads:
			m.resetMessages()
			m.pushState(stateLeads)
			if !m.leads.filter.Focused() {
				if focus := m.leads.filter.Focus(); focus != nil {
					cmds = append(cmds, focus)
				}
			}
			m.refreshLeads()
		case menuMeetings:
			m.resetMessages()
			m.pushState(stateMeetings)
			m.refreshMeetings()
			if focus := m.setMenuInput("new | edit <n> | cancel <n> | r=refresh | /", 48); focus != nil {
				cmds = append(cmds, focus)
			}
		case menuNewMeeting:
			m.resetMessages()
			cmds = append(cmds, m.openMeetingComposer(nil, nil, nil))
		case menuSettings:
			m.resetMessages()
			m.settings = newSettingsShell()
			m.pushState(stateSettings)
		case menuQuit:
			cmds = append(cmds, tea.Quit)
		}
	}

	return batchCmds(cmds)
}

func (m *model) viewMainMenu() string {
	lines := []string{}
	if m.showSplash {
		lines = append(lines, splashBanner)
		lines = append(lines, "")
	}
	lines = append(lines, m.theme.Title.Render("pipeterm"))
	lines = append(lines, m.theme.Secondary.Render("Your pipeline, one terminal away"))
	if m.infoMessage != "" {
		lines = append(lines, m.theme.Success.Render(m.infoMessage))
	}
	if m.errMessage != "" {
		lines = append(lines, m.theme.Danger.Render(m.errMessage))
	}
	menu := []string{
		"1. Contacts",
		"2. Leads",
		"3. Meetings",
		"4. New meeting",
		"5. Settings",
		"6. Quit",
	}
	lines = append(lines, "")
	for _, item := range menu {
		lines = append(lines, m.theme.Primary.Render(item))
	}
	lines = append(lines, "")
	lines = append(lines, m.theme.Accent.Render("> ")+m.menuInput.View())
	lines = append(lines, "")
	help := []string{
		m.theme.HelpKey.Render("enter") + m.theme.HelpValue.Render(" select"),
		m.theme.HelpKey.Render("/") + m.theme.HelpValue.Render(" back"),
		m.theme.HelpKey.Render("ctrl+c") + m.theme.HelpValue.Render(" quit"),
	}
	lines = append(lines, strings.Join(help, "   "))
	return strings.Join(lines, "\n") + "\n"
}

func formatStamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Jan 02 2006 15:04")
}
