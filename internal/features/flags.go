package features

import "sync"

// FeatureFlags manages runtime feature flags for the client.
// This structure is NOT persisted to disk - it's in-memory only and seeded from config at startup.
type FeatureFlags struct {
	mu sync.RWMutex

	// FailStreamOnDisconnect turns an answer that is still streaming into a terminal
	// error entry when the connection drops. Off by default: the entry stays streaming.
	FailStreamOnDisconnect bool

	// Markdown renders completed assistant answers as markdown in the terminal UI
	Markdown bool

	// Animations enables spinners and the streaming cursor
	Animations bool
}

// NewFeatureFlags creates a new FeatureFlags instance with default values
func NewFeatureFlags() *FeatureFlags {
	return &FeatureFlags{
		FailStreamOnDisconnect: false,
		Markdown:               true,
		Animations:             true,
	}
}

// FailsStreamOnDisconnect reports whether a dropped connection terminates the open answer
func (f *FeatureFlags) FailsStreamOnDisconnect() bool {
	if f == nil {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.FailStreamOnDisconnect
}

// SetFailStreamOnDisconnect toggles terminating the open answer on disconnect
func (f *FeatureFlags) SetFailStreamOnDisconnect(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailStreamOnDisconnect = enabled
}

// IsMarkdownEnabled checks if markdown rendering is enabled
func (f *FeatureFlags) IsMarkdownEnabled() bool {
	if f == nil {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.Markdown
}

// SetMarkdownEnabled enables or disables markdown rendering
func (f *FeatureFlags) SetMarkdownEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Markdown = enabled
}

// AnimationsEnabled checks if animations are enabled
func (f *FeatureFlags) AnimationsEnabled() bool {
	if f == nil {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.Animations
}

// SetAnimationsEnabled enables or disables animations
func (f *FeatureFlags) SetAnimationsEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Animations = enabled
}
