package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/codefionn/pulseterm/internal/consts"
	"github.com/codefionn/pulseterm/internal/socketclient"
)

var (
	// titleStyle is the style for the application title in the header
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginLeft(2)

	// statusStyle is the style for status indicators
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginLeft(2)

	badgeStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)
)

// badgeLabel is the connection badge text for a state
func badgeLabel(state socketclient.ConnectionState) string {
	switch state {
	case socketclient.StateConnected:
		return "Live"
	case socketclient.StateConnecting:
		return "Connecting"
	case socketclient.StateReconnecting:
		return "Reconnecting"
	default:
		return "Offline"
	}
}

func badgeColor(state socketclient.ConnectionState) lipgloss.Color {
	switch state {
	case socketclient.StateConnected:
		return lipgloss.Color("42")
	case socketclient.StateConnecting, socketclient.StateReconnecting:
		return lipgloss.Color("214")
	default:
		return lipgloss.Color("196")
	}
}

// renderHeader renders the title and the connection badge
func (m *Model) renderHeader() string {
	title := titleStyle.Render(consts.Title)
	badge := badgeStyle.
		Foreground(badgeColor(m.state)).
		Render("● " + badgeLabel(m.state))
	return m.renderFooter(title, badge)
}
