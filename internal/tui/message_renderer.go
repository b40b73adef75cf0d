package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/codefionn/pulseterm/internal/session"
	"github.com/muesli/reflow/wordwrap"
)

const (
	labelUser      = "You"
	labelAssistant = "Pulse AI"
	streamCursor   = "▌"
)

var (
	userLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	sourcesStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// MessageRenderer handles rendering of transcript entries with consistent styling
type MessageRenderer struct {
	contentWidth    int
	renderWrapWidth int
	cursor          bool
}

// NewMessageRenderer creates a new message renderer. cursor shows a block
// after text that is still streaming.
func NewMessageRenderer(contentWidth, renderWrapWidth int, cursor bool) *MessageRenderer {
	return &MessageRenderer{
		contentWidth:    contentWidth,
		renderWrapWidth: renderWrapWidth,
		cursor:          cursor,
	}
}

// RenderHeader creates the label line of an entry. User entries are
// labelled on the right, answers on the left.
func (mr *MessageRenderer) RenderHeader(e session.Entry) string {
	timestamp := timestampStyle.Render(e.CreatedAt.Format("15:04"))

	var label string
	if e.Role == session.RoleUser {
		label = userLabelStyle.Render(labelUser)
	} else {
		label = assistantLabelStyle.Render(labelAssistant)
		if e.SourcesScanned != nil {
			label += sourcesStyle.Render(fmt.Sprintf(" · %d sources", *e.SourcesScanned))
		}
	}

	availableWidth := mr.contentWidth - 4
	if availableWidth < 20 {
		availableWidth = 20
	}
	padding := availableWidth - lipgloss.Width(label) - lipgloss.Width(timestamp)
	if padding < 1 {
		padding = 1
	}

	if e.Role == session.RoleUser {
		return timestamp + strings.Repeat(" ", padding) + label
	}
	return label + strings.Repeat(" ", padding) + timestamp
}

// RenderBody renders the content of an entry. markdown renders a frozen
// answer and reports false when it cannot.
func (mr *MessageRenderer) RenderBody(e session.Entry, markdown func(session.Entry) (string, bool)) string {
	if e.Role == session.RoleUser {
		return wordwrap.String(e.Content, mr.renderWrapWidth)
	}

	if e.Streaming {
		body := wordwrap.String(e.Content, mr.renderWrapWidth)
		if mr.cursor {
			body += streamCursor
		}
		return body
	}

	if isErrorNotice(e) {
		return errorStyle.Render(wordwrap.String(e.Content, mr.renderWrapWidth))
	}

	if markdown != nil {
		if rendered, ok := markdown(e); ok {
			return rendered
		}
	}
	return wordwrap.String(e.Content, mr.renderWrapWidth)
}

// isErrorNotice reports whether a frozen answer ended in an error
func isErrorNotice(e session.Entry) bool {
	return e.Role == session.RoleAssistant &&
		e.SourcesScanned == nil &&
		strings.Contains(e.Content, session.FormatError(""))
}
