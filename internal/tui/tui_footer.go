package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// hintStyle is the style for key hints in the footer
	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	// errorStyle is the style for error notices
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

const keyHints = "enter send · ctrl+r reconnect · esc quit"

// renderMainFooter renders the status bar below the input
func (m *Model) renderMainFooter() string {
	footerLeft := ""
	if m.busy {
		if m.flags.AnimationsEnabled() {
			footerLeft = statusStyle.Render(fmt.Sprintf("%s Streaming...", m.spinner.View()))
		} else {
			footerLeft = statusStyle.Render("Streaming...")
		}
	}

	return m.renderFooter(footerLeft, hintStyle.Render(keyHints))
}

// renderFooter is a layout helper that places strings at the left and right ends of a line,
// expanding the space between them as needed.
func (m *Model) renderFooter(left, right string) string {
	width := m.contentWidth
	if width <= 0 {
		switch {
		case left == "":
			return right
		case right == "":
			return left
		default:
			return left + " " + right
		}
	}

	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(right)
	space := width - leftWidth - rightWidth
	if space < 1 {
		space = 1
	}

	return left + strings.Repeat(" ", space) + right
}
