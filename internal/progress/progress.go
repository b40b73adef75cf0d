package progress

import "strings"

type ReportMode int

const (
	// ReportNoStatus streams only (no status indicator).
	ReportNoStatus ReportMode = iota
	// ReportJustStatus reports to status indicator only.
	ReportJustStatus
	// ReportStreamAndStatus reports to both stream and status indicator.
	ReportStreamAndStatus
)

// Update is one piece of output produced while an answer is streamed: either
// answer text or a status line such as the sources count.
type Update struct {
	// Message is the content to deliver.
	Message string
	// AddNewLine appends a newline to Message if one is not already present.
	AddNewLine bool
	// Mode controls where the message should be surfaced.
	Mode ReportMode
}

// Stream creates an update carrying answer text
func Stream(text string) Update {
	return Update{Message: text, Mode: ReportNoStatus}
}

// Status creates a status line update
func Status(text string) Update {
	return Update{Message: text, AddNewLine: true, Mode: ReportJustStatus}
}

// ShouldStream returns true if the update belongs in the answer output.
func (u Update) ShouldStream() bool {
	return u.Mode == ReportNoStatus || u.Mode == ReportStreamAndStatus
}

// ShouldStatus returns true if the update should be shown as status.
func (u Update) ShouldStatus() bool {
	return u.Mode == ReportJustStatus || u.Mode == ReportStreamAndStatus
}

// Callback receives progress updates.
type Callback func(Update) error

// Normalize ensures the update reflects requested formatting (currently newline handling).
func Normalize(update Update) Update {
	if update.AddNewLine && update.Message != "" && !strings.HasSuffix(update.Message, "\n") {
		update.Message += "\n"
	}
	return update
}

// Dispatch normalizes and sends the update if the callback is set.
func Dispatch(cb Callback, update Update) error {
	if cb == nil {
		return nil
	}
	return cb(Normalize(update))
}
