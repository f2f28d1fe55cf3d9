package main

import (
	"strings"

	"charm.land/bubbles/v2/spinner"
	"github.com/charmbracelet/lipgloss"

	"tfcview/internal/watch"
)

var (
	labelOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	labelWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	labelError   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	labelRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	labelMuted   = lipgloss.NewStyle().Faint(true)
)

var loadingFrames = spinner.MiniDot.Frames

// iconGlyph maps the icon names used in status labels to terminal glyphs.
func iconGlyph(name string, frame int) string {
	switch name {
	case watch.IconLoading:
		return labelMuted.Render(loadingFrames[frame%len(loadingFrames)])
	case watch.IconWarning:
		return labelWarn.Render("!")
	case watch.IconNoRuns:
		return labelMuted.Render("■")
	case watch.IconLocked:
		return labelWarn.Render("⊘")
	case "pass":
		return labelOK.Render("✓")
	case "error":
		return labelError.Render("✗")
	case "stop":
		return labelMuted.Render("■")
	case "report":
		return labelWarn.Render("?")
	case "watch":
		return labelMuted.Render("…")
	case "debug-start":
		return labelRunning.Render("▶")
	default:
		return labelMuted.Render("·")
	}
}

// renderLabel substitutes every $(icon) in label.
func renderLabel(label string, frame int) string {
	var b strings.Builder
	for {
		start := strings.Index(label, "$(")
		if start < 0 {
			b.WriteString(label)
			return b.String()
		}
		end := strings.Index(label[start:], ")")
		if end < 0 {
			b.WriteString(label)
			return b.String()
		}
		b.WriteString(label[:start])
		b.WriteString(iconGlyph(label[start+2:start+end], frame))
		label = label[start+end+1:]
	}
}
