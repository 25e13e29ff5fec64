package ui

import (
	"fmt"
	"strings"

	"pipeterm/internal/theme"
)

// Bulk bar actions.
const (
	bulkActionDelete = "delete"
	bulkActionExport = "export"
	bulkActionClear  = "clear"
)

// BulkBar presents destructive/export actions for a batch of selected rows.
// It holds no state beyond the count it is given and performs no I/O; every
// effect is delegated to the caller through the callbacks.
type BulkBar struct {
	Count    int
	OnDelete func()
	OnExport func()
	OnClear  func()
}

// View renders the bar, or nothing at all when the count is zero. Callers
// gate visibility entirely on the count.
func (b BulkBar) View(th theme.Theme) string {
	if b.Count <= 0 {
		return ""
	}
	noun := "record"
	if b.Count != 1 {
		noun = "records"
	}
	parts := []string{
		th.Highlight.Render(fmt.Sprintf("%d %s selected", b.Count, noun)),
		th.Danger.Render("delete") + th.Faint.Render(" remove selected"),
		th.Primary.Render("export") + th.Faint.Render(" write CSV"),
		th.Secondary.Render("clear") + th.Faint.Render(" drop selection"),
	}
	return strings.Join(parts, "   ")
}

// Handle dispatches a bar action to exactly one callback. It reports whether
// the input named a bar action.
func (b BulkBar) Handle(action string) bool {
	if b.Count <= 0 {
		return false
	}
	switch strings.TrimSpace(strings.ToLower(action)) {
	case bulkActionDelete:
		if b.OnDelete != nil {
			b.OnDelete()
		}
		return true
	case bulkActionExport:
		if b.OnExport != nil {
			b.OnExport()
		}
		return true
	case bulkActionClear:
		if b.OnClear != nil {
			b.OnClear()
		}
		return true
	}
	return false
}
