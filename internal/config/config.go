package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/codefionn/pulseterm/internal/consts"
)

// ErrInvalid is returned by Validate for unusable configuration values
var ErrInvalid = errors.New("invalid configuration")

// ReconnectConfig holds the automatic reconnect policy
type ReconnectConfig struct {
	BaseDelayMS int `json:"base_delay_ms"`
	MaxDelayMS  int `json:"max_delay_ms"`
	MaxRetries  int `json:"max_retries"`
}

// Config represents application configuration
type Config struct {
	Host                   string          `json:"host"`
	Port                   int             `json:"port"`
	Path                   string          `json:"path"`
	Secure                 bool            `json:"secure"` // wss:// instead of ws://
	Reconnect              ReconnectConfig `json:"reconnect"`
	ConnectTimeout         int             `json:"connect_timeout_seconds"`
	LogLevel               string          `json:"log_level"` // debug, info, warn, error, none
	LogPath                string          `json:"-"`
	MetricsAddr            string          `json:"metrics_addr,omitempty"` // e.g. "localhost:2112"; empty disables
	DisableAnimations      bool            `json:"disable_animations"`
	Markdown               bool            `json:"markdown"`
	FailStreamOnDisconnect bool            `json:"fail_stream_on_disconnect"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, consts.AppName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", consts.AppName)
	default:
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, consts.AppName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", consts.AppName)
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, consts.AppName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", consts.AppName)
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, consts.AppName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", consts.AppName)
	default:
		return defaultConfigDir()
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Host: consts.DefaultHost,
		Port: consts.DefaultPort,
		Path: consts.DefaultPath,
		Reconnect: ReconnectConfig{
			BaseDelayMS: int(consts.DefaultBaseDelay / time.Millisecond),
			MaxDelayMS:  int(consts.DefaultMaxDelay / time.Millisecond),
			MaxRetries:  consts.DefaultMaxRetries,
		},
		ConnectTimeout: int(consts.Timeout10Seconds / time.Second),
		LogLevel:       "info",
		LogPath:        filepath.Join(defaultStateDir(), consts.AppName+".log"),
		Markdown:       true,
	}
}

// Load loads configuration from file. A missing file yields the defaults;
// fields present in the file override the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	defaults := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	if cfg.Path == "" {
		cfg.Path = defaults.Path
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.LogPath == "" {
		cfg.LogPath = defaults.LogPath
	}

	return cfg, nil
}

// ApplyEnv overrides fields from PULSETERM_* environment variables.
// getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("PULSETERM_HOST")); v != "" {
		c.Host = v
	}
	if v := strings.TrimSpace(getenv("PULSETERM_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PULSETERM_PORT=%q", ErrInvalid, v)
		}
		c.Port = port
	}
	if v := strings.TrimSpace(getenv("PULSETERM_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(getenv("PULSETERM_LOG_PATH")); v != "" {
		c.LogPath = v
	}
	return nil
}

// Validate reports unusable values wrapped in ErrInvalid
func (c *Config) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("%w: host is empty", ErrInvalid)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Port)
	case !strings.HasPrefix(c.Path, "/"):
		return fmt.Errorf("%w: path %q must start with /", ErrInvalid, c.Path)
	case c.Reconnect.BaseDelayMS <= 0 || c.Reconnect.MaxDelayMS <= 0:
		return fmt.Errorf("%w: reconnect delays must be positive", ErrInvalid)
	case c.Reconnect.MaxRetries < 0:
		return fmt.Errorf("%w: reconnect.max_retries must not be negative", ErrInvalid)
	case c.ConnectTimeout <= 0:
		return fmt.Errorf("%w: connect_timeout_seconds must be positive", ErrInvalid)
	}
	return nil
}

// Endpoint returns the websocket URL of the query service
func (c *Config) Endpoint() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   c.Path,
	}
	return u.String()
}

// BaseDelay returns the first reconnect delay
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.Reconnect.BaseDelayMS) * time.Millisecond
}

// MaxDelay returns the reconnect delay cap
func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.Reconnect.MaxDelayMS) * time.Millisecond
}

// DialTimeout returns the connect timeout as a duration
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}
