package tui

const (
	placeholderConnected = "Ask about markets, stocks, or crypto..."
	placeholderWaiting   = "Waiting for connection..."
)

// renderInput renders the question input line
func (m *Model) renderInput() string {
	return m.input.View() + "\n"
}
