package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hardscan/hardscan/internal/errors"
)

// validate is the shared validator instance for config structs
var validate = validator.New()

type Config struct {
	ProfileDir     string        `yaml:"profileDir"`
	Level          int           `yaml:"level" validate:"omitempty,oneof=1 2"`
	Format         string        `yaml:"format" validate:"omitempty,oneof=text json yaml sarif summary compact"`
	MaxConcurrency int           `yaml:"maxConcurrency" validate:"min=0"`
	ControlTimeout int           `yaml:"controlTimeoutSeconds" validate:"min=0,max=600"`
	AttributesFile string        `yaml:"attributesFile"`
	ExceptionsFile string        `yaml:"exceptionsFile"`
	MaskData       bool          `yaml:"maskData"`
	Timeouts       TimeoutConfig `yaml:"timeouts"`
	Daemon         DaemonConfig  `yaml:"daemon"`
	Notifications  NotifyConfig  `yaml:"notifications"`
	Metrics        MetricsConfig `yaml:"metrics"`
	Exceptions     *Exceptions   `yaml:"-"` // Loaded separately
}

// TimeoutConfig defines configurable timeout durations
type TimeoutConfig struct {
	Short    int `yaml:"short" validate:"min=0"`     // Short operations (default: 5s)
	Medium   int `yaml:"medium" validate:"min=0"`    // Medium operations (default: 10s)
	Long     int `yaml:"long" validate:"min=0"`      // Long operations (default: 30s)
	VeryLong int `yaml:"very_long" validate:"min=0"` // Very long operations (default: 120s)
}

// DaemonConfig holds the periodic rescan loop settings
type DaemonConfig struct {
	Enabled         bool   `yaml:"enabled"`
	IntervalSeconds int    `yaml:"intervalSeconds"`
	LogDir          string `yaml:"logDir"`
	WatchReload     bool   `yaml:"watchReload"` // Reload profiles/config on file change
}

// NotifyConfig holds webhook notification settings
type NotifyConfig struct {
	Enabled          bool          `yaml:"enabled"`
	OnlyOnIssues     bool          `yaml:"onlyOnIssues"`
	MinSeverity      string        `yaml:"minSeverity" validate:"omitempty,oneof=critical high medium low info"`
	SuppressMinutes  int           `yaml:"suppressMinutes" validate:"min=0"` // Unchanged findings do not re-alert within this window
	Discord          DiscordConfig `yaml:"discord"`
	Slack            SlackConfig   `yaml:"slack"`
	GenericWebhook   WebhookConfig `yaml:"webhook"`
}

type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhookUrl"`
	Username   string `yaml:"username"`
	AvatarURL  string `yaml:"avatarUrl"`
}

type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhookUrl"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
}

type WebhookConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method" validate:"omitempty,oneof=POST PUT"`
	Headers map[string]string `yaml:"headers"`
}

// MetricsConfig controls Prometheus export, either as a textfile for
// node_exporter or over a scrape endpoint served by the daemon
type MetricsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TextfilePath string `yaml:"textfilePath"`
	ListenAddr   string `yaml:"listenAddr"`
}

func Default() *Config {
	return &Config{
		ProfileDir:     "/etc/hardscan/profiles",
		Level:          1,
		Format:         "text",
		MaxConcurrency: 0,
		ControlTimeout: 10,
		MaskData:       true,
		Timeouts: TimeoutConfig{
			Short:    5,
			Medium:   10,
			Long:     30,
			VeryLong: 120,
		},
		Daemon: DaemonConfig{
			Enabled:         false,
			IntervalSeconds: 21600,
			LogDir:          "/var/log/hardscan",
			WatchReload:     true,
		},
		Notifications: NotifyConfig{
			Enabled:         false,
			OnlyOnIssues:    true,
			MinSeverity:     "high",
			SuppressMinutes: 0,
			Discord: DiscordConfig{
				Username: "Hardscan",
			},
			Slack: SlackConfig{
				Username: "Hardscan",
			},
			GenericWebhook: WebhookConfig{
				Method: "POST",
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func Load() (*Config, error) {
	cfg := Default()
	home, _ := os.UserHomeDir()

	// Build search paths with priority order
	searchPaths := []string{}

	// 1. Environment variable (highest priority - for Docker)
	if configDir := os.Getenv("HARDSCAN_CONFIG_DIR"); configDir != "" {
		searchPaths = append(searchPaths,
			filepath.Join(configDir, ".hardscan.yaml"),
			filepath.Join(configDir, ".hardscan.yml"),
		)
	}

	// 2. Current directory
	searchPaths = append(searchPaths,
		".hardscan.yaml", ".hardscan.yml",
	)

	// 3. Home directory
	if home != "" {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".hardscan.yaml"),
			filepath.Join(home, ".hardscan.yml"),
		)
	}

	// 4. System-wide config
	searchPaths = append(searchPaths, "/etc/hardscan/config.yaml")

	// Try each path in priority order
	configLoaded := false
	for _, path := range searchPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config at %s: %w", path, err)
		}
		configLoaded = true
		break
	}

	// Validate config if loaded
	if configLoaded {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	// Load exceptions separately. An explicitly configured file must
	// exist; the search-path loader tolerates absence.
	var (
		exc *Exceptions
		err error
	)
	if cfg.ExceptionsFile != "" {
		exc, err = LoadExceptionsFile(cfg.ExceptionsFile)
	} else {
		exc, err = LoadExceptions()
	}
	if err != nil {
		return nil, err
	}
	cfg.Exceptions = exc

	return cfg, nil
}

// GetMaxConcurrency returns the control worker pool size
func (c *Config) GetMaxConcurrency() int {
	if c.MaxConcurrency <= 0 {
		return runtime.NumCPU() * 2
	}
	return c.MaxConcurrency
}

// GetControlTimeout returns the per-control execution timeout
func (c *Config) GetControlTimeout() time.Duration {
	if c.ControlTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ControlTimeout) * time.Second
}

// GetDaemonInterval returns the rescan interval for daemon mode
func (c *Config) GetDaemonInterval() time.Duration {
	if c.Daemon.IntervalSeconds <= 0 {
		return 6 * time.Hour
	}
	return time.Duration(c.Daemon.IntervalSeconds) * time.Second
}

// Validate checks config for errors
func (c *Config) Validate() error {
	// Struct-tag rules first (enums, ranges)
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			f := verrs[0]
			return errors.Wrap(errors.ErrInvalidConfig, "field %s failed '%s' rule", f.Namespace(), f.Tag())
		}
		return err
	}

	// Validate Discord webhook
	if c.Notifications.Discord.Enabled && c.Notifications.Discord.WebhookURL != "" {
		url := strings.TrimSpace(c.Notifications.Discord.WebhookURL)
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return errors.Wrap(errors.ErrInvalidConfig, "Discord webhook URL must start with http:// or https://")
		}
	}

	// Validate Slack webhook
	if c.Notifications.Slack.Enabled && c.Notifications.Slack.WebhookURL != "" {
		url := strings.TrimSpace(c.Notifications.Slack.WebhookURL)
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return errors.Wrap(errors.ErrInvalidConfig, "Slack webhook URL must start with http:// or https://")
		}
	}

	// Validate generic webhook
	if c.Notifications.GenericWebhook.Enabled && c.Notifications.GenericWebhook.URL != "" {
		url := strings.TrimSpace(c.Notifications.GenericWebhook.URL)
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return errors.Wrap(errors.ErrInvalidConfig, "generic webhook URL must start with http:// or https://")
		}
	}

	// Validate daemon interval
	if c.Daemon.Enabled && (c.Daemon.IntervalSeconds < 10 || c.Daemon.IntervalSeconds > 86400) {
		return errors.Wrap(errors.ErrInvalidConfig, "daemon interval must be between 10 and 86400 seconds, got %d", c.Daemon.IntervalSeconds)
	}

	// Metrics export needs at least one destination
	if c.Metrics.Enabled && c.Metrics.TextfilePath == "" && c.Metrics.ListenAddr == "" {
		return errors.Wrap(errors.ErrInvalidConfig, "metrics enabled but neither textfilePath nor listenAddr is set")
	}

	return nil
}
