package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/privilege"
	"github.com/vivekkundariya/wgtunnel/internal/logging"
)

const (
	// HomeDir is the directory for wgtunnel settings, below the user's home
	HomeDir = ".wgtunnel"

	// SettingsFile is the settings file name inside the home directory
	SettingsFile = "config.yaml"

	// EnvConfigFile is the environment variable for a custom settings file path
	EnvConfigFile = "WGTUNNEL_CONFIG"

	// EnvHome is the environment variable for the wgtunnel home directory
	EnvHome = "WGTUNNEL_HOME"

	// DefaultAppDir holds the configs directory
	DefaultAppDir = "/etc/wireguard"

	// Authority settings
	AuthorityPolkit = "polkit"
	AuthorityNone   = "none"
)

// Settings is the wgtunnel configuration stored at ~/.wgtunnel/config.yaml
type Settings struct {
	// AppDir is the WireGuard directory; tunnel configs live in AppDir/configs
	// unless ConfigsDir is set
	AppDir     string `yaml:"app_dir,omitempty"`
	ConfigsDir string `yaml:"configs_dir,omitempty"`

	// PollInterval is how often the status of an up tunnel is refreshed
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`

	Files     FileSettings      `yaml:"files,omitempty"`
	Tools     ToolSettings      `yaml:"tools,omitempty"`
	Timeouts  TimeoutSettings   `yaml:"timeouts,omitempty"`
	Privilege PrivilegeSettings `yaml:"privilege,omitempty"`
	Logging   LoggingSettings   `yaml:"logging,omitempty"`
	Export    ExportSettings    `yaml:"export,omitempty"`
}

// FileSettings holds ownership of written config files. Empty keeps the
// ownership of the writing process.
type FileSettings struct {
	Owner string `yaml:"owner,omitempty"`
	Group string `yaml:"group,omitempty"`
}

// ToolSettings names the WireGuard binaries
type ToolSettings struct {
	WG      string `yaml:"wg,omitempty"`
	WGQuick string `yaml:"wg_quick,omitempty"`
}

// TimeoutSettings bound each external command
type TimeoutSettings struct {
	Up     time.Duration `yaml:"up,omitempty"`
	Down   time.Duration `yaml:"down,omitempty"`
	Status time.Duration `yaml:"status,omitempty"`
}

// PrivilegeSettings choose who authorizes and how commands get root
type PrivilegeSettings struct {
	// Authority is polkit or none
	Authority string `yaml:"authority,omitempty"`
	// Elevation is none, pkexec or sudo
	Elevation string        `yaml:"elevation,omitempty"`
	TicketTTL time.Duration `yaml:"ticket_ttl,omitempty"`
}

// LoggingSettings mirror logging.Options
type LoggingSettings struct {
	Level      string `yaml:"level,omitempty"`
	Output     string `yaml:"output,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSize    int    `yaml:"max_size,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAge     int    `yaml:"max_age,omitempty"`
}

// ExportSettings configure export targets
type ExportSettings struct {
	// Root is the tree file exports must stay inside
	Root string     `yaml:"root,omitempty"`
	S3   S3Settings `yaml:"s3,omitempty"`
}

// S3Settings configure s3:// export targets
type S3Settings struct {
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	Profile         string `yaml:"profile,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// LoggingOptions converts the settings for logging.Configure
func (l LoggingSettings) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      l.Level,
		Output:     l.Output,
		File:       l.File,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
	}
}

// GetHome returns the wgtunnel home directory
// Priority: WGTUNNEL_HOME env var > ~/.wgtunnel
func GetHome() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(userHome, HomeDir), nil
}

// DefaultSettings returns the default settings
func DefaultSettings() *Settings {
	return &Settings{
		AppDir:       DefaultAppDir,
		PollInterval: 5 * time.Second,
		Tools: ToolSettings{
			WG:      "wg",
			WGQuick: "wg-quick",
		},
		Timeouts: TimeoutSettings{
			Up:     30 * time.Second,
			Down:   30 * time.Second,
			Status: 5 * time.Second,
		},
		Privilege: PrivilegeSettings{
			Authority: AuthorityPolkit,
			Elevation: privilege.ElevationNone,
			TicketTTL: 30 * time.Second,
		},
		Logging: LoggingSettings{
			Level:      "warn",
			Output:     logging.OutputStderr,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
		Export: ExportSettings{
			Root: "/home",
		},
	}
}

// LoadSettings reads settings from path. A missing file yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}

	// Apply defaults for values cleared in the file
	settings.applyDefaults()

	return settings, nil
}

// SaveSettings writes settings to path, creating its directory
func SaveSettings(path string, settings *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	// may hold S3 credentials
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return nil
}

// applyDefaults applies default values to unset fields
func (s *Settings) applyDefaults() {
	defaults := DefaultSettings()

	if s.AppDir == "" {
		s.AppDir = defaults.AppDir
	}
	if s.PollInterval == 0 {
		s.PollInterval = defaults.PollInterval
	}
	if s.Tools.WG == "" {
		s.Tools.WG = defaults.Tools.WG
	}
	if s.Tools.WGQuick == "" {
		s.Tools.WGQuick = defaults.Tools.WGQuick
	}
	if s.Timeouts.Up == 0 {
		s.Timeouts.Up = defaults.Timeouts.Up
	}
	if s.Timeouts.Down == 0 {
		s.Timeouts.Down = defaults.Timeouts.Down
	}
	if s.Timeouts.Status == 0 {
		s.Timeouts.Status = defaults.Timeouts.Status
	}
	if s.Privilege.Authority == "" {
		s.Privilege.Authority = defaults.Privilege.Authority
	}
	if s.Privilege.Elevation == "" {
		s.Privilege.Elevation = defaults.Privilege.Elevation
	}
	if s.Privilege.TicketTTL == 0 {
		s.Privilege.TicketTTL = defaults.Privilege.TicketTTL
	}
	if s.Logging.Level == "" {
		s.Logging.Level = defaults.Logging.Level
	}
	if s.Logging.Output == "" {
		s.Logging.Output = defaults.Logging.Output
	}
	if s.Export.Root == "" {
		s.Export.Root = defaults.Export.Root
	}
}

// ApplyEnv overrides settings from WGTUNNEL_* environment variables.
// Values that do not parse are ignored.
func (s *Settings) ApplyEnv() {
	if val := os.Getenv("WGTUNNEL_APP_DIR"); val != "" {
		s.AppDir = val
	}
	if val := os.Getenv("WGTUNNEL_CONFIGS_DIR"); val != "" {
		s.ConfigsDir = val
	}
	if val := os.Getenv("WGTUNNEL_POLL_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			s.PollInterval = d
		}
	}
	if val := os.Getenv("WGTUNNEL_CONFIG_OWNER"); val != "" {
		s.Files.Owner = val
	}
	if val := os.Getenv("WGTUNNEL_CONFIG_GROUP"); val != "" {
		s.Files.Group = val
	}
	if val := os.Getenv("WGTUNNEL_WG"); val != "" {
		s.Tools.WG = val
	}
	if val := os.Getenv("WGTUNNEL_WG_QUICK"); val != "" {
		s.Tools.WGQuick = val
	}
	if val := os.Getenv("WGTUNNEL_AUTHORITY"); val != "" {
		s.Privilege.Authority = val
	}
	if val := os.Getenv("WGTUNNEL_ELEVATION"); val != "" {
		s.Privilege.Elevation = val
	}
	if val := os.Getenv("WGTUNNEL_LOG_LEVEL"); val != "" {
		s.Logging.Level = val
	}
	if val := os.Getenv("WGTUNNEL_LOG_OUTPUT"); val != "" {
		s.Logging.Output = val
	}
	if val := os.Getenv("WGTUNNEL_LOG_FILE"); val != "" {
		s.Logging.File = val
	}
	if val := os.Getenv("WGTUNNEL_LOG_MAX_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			s.Logging.MaxSize = n
		}
	}
	if val := os.Getenv("WGTUNNEL_S3_REGION"); val != "" {
		s.Export.S3.Region = val
	}
	if val := os.Getenv("WGTUNNEL_S3_ENDPOINT"); val != "" {
		s.Export.S3.Endpoint = val
	}
}

// ConfigsPath returns the directory holding the tunnel configs
func (s *Settings) ConfigsPath() string {
	if s.ConfigsDir != "" {
		return expandPath(s.ConfigsDir)
	}
	return filepath.Join(expandPath(s.AppDir), "configs")
}

// Validate validates the settings
func (s *Settings) Validate() error {
	if s.AppDir == "" && s.ConfigsDir == "" {
		return fmt.Errorf("app_dir cannot be empty")
	}
	if s.PollInterval < time.Second {
		return fmt.Errorf("poll_interval must be at least 1s, got %s", s.PollInterval)
	}
	if s.Tools.WG == "" || s.Tools.WGQuick == "" {
		return fmt.Errorf("tools.wg and tools.wg_quick cannot be empty")
	}
	for name, d := range map[string]time.Duration{
		"timeouts.up":     s.Timeouts.Up,
		"timeouts.down":   s.Timeouts.Down,
		"timeouts.status": s.Timeouts.Status,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	switch s.Privilege.Authority {
	case AuthorityPolkit, AuthorityNone:
	default:
		return fmt.Errorf("invalid privilege authority: %s (want polkit or none)", s.Privilege.Authority)
	}
	switch s.Privilege.Elevation {
	case privilege.ElevationNone, privilege.ElevationPkexec, privilege.ElevationSudo:
	default:
		return fmt.Errorf("invalid privilege elevation: %s (want none, pkexec or sudo)", s.Privilege.Elevation)
	}
	if s.Privilege.TicketTTL <= 0 {
		return fmt.Errorf("privilege.ticket_ttl must be positive")
	}

	switch s.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", s.Logging.Level)
	}
	switch strings.ToLower(s.Logging.Output) {
	case logging.OutputStderr, logging.OutputStdout, logging.OutputSyslog:
	default:
		return fmt.Errorf("invalid logging output: %s", s.Logging.Output)
	}

	if !filepath.IsAbs(s.Export.Root) {
		return fmt.Errorf("export.root must be an absolute path, got %q", s.Export.Root)
	}
	if (s.Export.S3.AccessKeyID == "") != (s.Export.S3.SecretAccessKey == "") {
		return fmt.Errorf("export.s3 needs both access_key_id and secret_access_key, or neither")
	}
	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}

	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if len(path) > 1 {
			return filepath.Join(home, path[2:])
		}
		return home
	}

	return path
}
