package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pipeterm/internal/storage"
)

type meetingsScreen struct {
	all []storage.Meeting
}

func newMeetingsScreen() meetingsScreen {
	return meetingsScreen{}
}

func (m *model) meetingAt(input string) (storage.Meeting, bool) {
	var empty storage.Meeting
	idx, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || idx < 1 || idx > len(m.meetings.all) {
		return empty, false
	}
	return m.meetings.all[idx-1], true
}

func (m *model) updateMeetings(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	if focus := m.ensureMenuInput("new | edit <n> | cancel <n> | r=refresh | /", 48); focus != nil {
		cmds = append(cmds, focus)
	}
	var cmd tea.Cmd
	m.menuInput, cmd = m.menuInput.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			value := strings.TrimSpace(m.menuInput.Value())
			m.menuInput.SetValue("")
			lower := strings.ToLower(value)
			switch {
			case isExitCommand(value):
				return m.returnToMenu(cmds)
			case isBackCommand(value):
				m.popState()
				if m.state == stateMainMenu {
					if focus := m.setMenuInput("Choose an option", 32); focus != nil {
						cmds = append(cmds, focus)
					}
				}
				return batchCmds(cmds)
			case lower == "r" || lower == "refresh":
				m.refreshMeetings()
			case lower == "new" || lower == "n":
				m.resetMessages()
				if cmd := m.openMeetingComposer(nil, nil, nil); cmd != nil {
					cmds = append(cmds, cmd)
				}
				return batchCmds(cmds)
			case strings.HasPrefix(lower, "edit "):
				if meeting, ok := m.meetingAt(value[5:]); ok {
					m.resetMessages()
					if cmd := m.openMeetingComposer(&meeting, nil, nil); cmd != nil {
						cmds = append(cmds, cmd)
					}
					return batchCmds(cmds)
				}
				m.errMessage = "No such meeting"
			case strings.HasPrefix(lower, "cancel "):
				if meeting, ok := m.meetingAt(value[7:]); ok {
					m.cancelMeeting(meeting)
					return batchCmds(cmds)
				}
				m.errMessage = "No such meeting"
			default:
				if meeting, ok := m.meetingAt(value); ok {
					m.resetMessages()
					if cmd := m.openMeetingComposer(&meeting, nil, nil); cmd != nil {
						cmds = append(cmds, cmd)
					}
					return batchCmds(cmds)
				}
				if value != "" {
					m.errMessage = "Unknown choice"
				}
			}
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
	return batchCmds(cmds)
}

func (m *model) cancelMeeting(meeting storage.Meeting) {
	meeting.Status = storage.MeetingCancelled
	ctx := context.Background()
	if err := m.store.UpdateMeeting(ctx, &meeting); err != nil {
		m.errMessage = fmt.Sprintf("cancel meeting: %v", err)
		return
	}
	_ = m.store.AppendAudit(ctx, &storage.AuditEntry{
		Actor:  m.cfg.Config.Name,
		Action: "cancelled",
		Entity: "meeting",
		Detail: meeting.Subject,
	})
	m.infoMessage = fmt.Sprintf("Meeting '%s' cancelled", meeting.Subject)
	m.refreshMeetings()
}

func (m *model) viewMeetings() string {
	loc := m.cfg.Location()
	now := time.Now().In(loc)
	today, upcoming, past := storage.SplitMeetings(m.meetings.all, now)

	lines := []string{m.theme.Title.Render("Meetings")}
	lines = append(lines, m.theme.Faint.Render("new, edit <n>, cancel <n>, r to refresh, '/' to go back."))
	lines = append(lines, "")

	render := func(title string, group []storage.Meeting) {
		if len(group) == 0 {
			return
		}
		lines = append(lines, m.theme.Subtitle.Render(title))
		for _, meeting := range group {
			idx := m.meetingIndex(meeting.ID)
			when := meeting.StartTime.In(loc).Format("Jan 02 15:04")
			label := fmt.Sprintf("%d. %s — %s", idx, meeting.Subject, when)
			style := m.theme.Primary
			if meeting.Status == storage.MeetingCancelled {
				style = m.theme.Faint
				label += " (cancelled)"
			}
			lines = append(lines, style.Render(label))
			detail := []string{}
			if meeting.JoinURL != "" {
				detail = append(detail, meeting.JoinURL)
			}
			if meeting.Description != "" {
				detail = append(detail, meeting.Description)
			}
			if len(detail) > 0 {
				lines = append(lines, "  "+m.theme.Faint.Render(strings.Join(detail, "  |  ")))
			}
		}
		lines = append(lines, "")
	}
	render("Today", today)
	render("Upcoming", upcoming)
	render("Past", past)
	if len(m.meetings.all) == 0 {
		lines = append(lines, m.theme.Warning.Render("No meetings scheduled."))
		lines = append(lines, "")
	}

	if m.infoMessage != "" {
		lines = append(lines, m.theme.Success.Render(m.infoMessage))
	}
	if m.errMessage != "" {
		lines = append(lines, m.theme.Danger.Render(m.errMessage))
	}
	lines = append(lines, m.theme.Accent.Render("> ")+m.menuInput.View())
	return strings.Join(lines, "\n") + "\n"
}

// meetingIndex maps an id back to the 1-based position used by commands.
func (m *model) meetingIndex(id string) int {
	for i := range m.meetings.all {
		if m.meetings.all[i].ID == id {
			return i + 1
		}
	}
	return 0
}
