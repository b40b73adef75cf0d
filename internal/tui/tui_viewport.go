package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/codefionn/pulseterm/internal/session"
)

type viewportRefreshMsg struct {
	token int
}

const (
	// resizeViewportDebounce is the time to wait before refreshing the viewport after a resize
	resizeViewportDebounce = 75 * time.Millisecond

	// chromeHeight is the number of lines around the viewport: header, input and footer
	chromeHeight = 4

	emptyHint = "Ask a question about markets, stocks, or crypto"
)

var emptyHintStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")).
	Italic(true).
	MarginLeft(2)

// updateViewport refreshes the content of the transcript viewport
func (m *Model) updateViewport() {
	if len(m.entries) == 0 {
		m.viewport.SetContent("\n" + emptyHintStyle.Render(emptyHint))
		return
	}

	renderer := NewMessageRenderer(m.contentWidth, m.wrapWidth(), m.flags.AnimationsEnabled())
	rendered := acquireBuilder()

	for i, e := range m.entries {
		if i > 0 {
			rendered.WriteString("\n\n")
		}
		rendered.WriteString(renderer.RenderHeader(e))
		rendered.WriteString("\n")
		rendered.WriteString(renderer.RenderBody(e, m.renderMarkdown))
	}

	// follow the stream, or stay put if the user scrolled up
	shouldScroll := m.viewport.AtBottom() || m.busy

	m.viewport.SetContent(builderString(rendered))
	if shouldScroll {
		m.viewport.GotoBottom()
	}
}

func (m *Model) wrapWidth() int {
	if m.renderWrapWidth > 0 {
		return m.renderWrapWidth
	}
	return 76
}

// renderMarkdown renders a frozen answer through glamour, caching by entry ID
func (m *Model) renderMarkdown(e session.Entry) (string, bool) {
	if m.renderer == nil || !m.flags.IsMarkdownEnabled() {
		return "", false
	}
	if cached, ok := m.markdown[e.ID]; ok {
		return cached, true
	}

	out, err := m.renderer.Render(e.Content)
	if err != nil {
		m.log.Debug("markdown render failed: %v", err)
		return "", false
	}
	out = strings.Trim(out, "\n")
	m.markdown[e.ID] = out
	return out, true
}
