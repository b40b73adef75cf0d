package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored an entry
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one item of the conversation log
type Entry struct {
	ID        string
	Role      Role
	Content   string
	Streaming bool // true while tokens are still being appended
	// SourcesScanned is set only when the answer completed normally
	SourcesScanned *int
	CreatedAt      time.Time
}

func (e Entry) clone() Entry {
	if e.SourcesScanned != nil {
		n := *e.SourcesScanned
		e.SourcesScanned = &n
	}
	return e
}

// transcript is the ordered, append-only conversation log. Only the entry
// referenced by the session's in-flight handle is ever mutated.
type transcript struct {
	entries []Entry
	now     func() time.Time
}

func newTranscript(now func() time.Time) *transcript {
	return &transcript{now: now}
}

func (t *transcript) append(role Role, content string, streaming bool) int {
	t.entries = append(t.entries, Entry{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Streaming: streaming,
		CreatedAt: t.now(),
	})
	return len(t.entries) - 1
}

func (t *transcript) at(i int) *Entry {
	return &t.entries[i]
}

// snapshot returns deep copies of all entries
func (t *transcript) snapshot() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.clone()
	}
	return out
}
