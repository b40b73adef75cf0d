package consts

import "time"

// Application identity
const (
	// AppName is used for config/state directories and log file names
	AppName = "pulseterm"
	// Title is shown in the terminal header
	Title = "MarketPulse AI Terminal"
)

// Endpoint defaults for the remote query service
const (
	// DefaultHost is the host used when none is configured
	DefaultHost = "localhost"
	// DefaultPort is the fixed port the query service listens on
	DefaultPort = 8000
	// DefaultPath is the fixed websocket path of the query service
	DefaultPath = "/ws"
)

// Reconnect policy defaults
const (
	// DefaultBaseDelay is the first retry delay after an unexpected close
	DefaultBaseDelay = 1 * time.Second
	// DefaultMaxDelay caps the exponential retry delay
	DefaultMaxDelay = 30 * time.Second
	// DefaultMaxRetries bounds consecutive automatic reconnect attempts
	DefaultMaxRetries = 10
)

// Timeouts for various operations
const (
	// Timeout5Seconds is a 5 second timeout
	Timeout5Seconds = 5 * time.Second
	// Timeout10Seconds is a 10 second timeout
	Timeout10Seconds = 10 * time.Second
	// Timeout2Minutes is a 2 minute timeout
	Timeout2Minutes = 2 * time.Minute
)

// Buffer sizes for various operations
const (
	// BufferSize1KB is 1 kilobyte
	BufferSize1KB = 1024
	// BufferSize64KB is 64 kilobytes
	BufferSize64KB = 64 * 1024
)
