package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	defaultMinChars      = 20
	defaultMaxChars      = 200_000
	defaultPort          = 8080
	defaultRatePerMinute = 30
)

func checkFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %04o; should be 0600", path, perm)
	}
	return nil
}

type Config struct {
	Analysis Analysis     `yaml:"analysis"`
	History  History      `yaml:"history"`
	Server   Server       `yaml:"server"`
	Inbox    InboxConfig  `yaml:"inbox,omitempty"`
	Notify   NotifyConfig `yaml:"notify,omitempty"`
	Logging  Logging      `yaml:"logging"`
}

// Analysis bounds the text accepted by the analyzer.
type Analysis struct {
	MinChars int `yaml:"min_chars"`
	MaxChars int `yaml:"max_chars"`
}

// History controls the local store of past verdicts.
type History struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // default: ~/.amtspost/history.db
}

// Server holds settings for the local web interface.
type Server struct {
	Port          int `yaml:"port"`
	RatePerMinute int `yaml:"rate_per_minute"` // analysis requests per client
}

// InboxConfig holds IMAP settings for letters that arrive by e-mail
type InboxConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Provider      string   `yaml:"provider"`       // "gmail", "outlook", "imap"
	Server        string   `yaml:"server"`         // e.g., "imap.gmail.com"
	Port          int      `yaml:"port"`           // e.g., 993
	Email         string   `yaml:"email"`          // Email address to monitor
	Password      string   `yaml:"password"`       // App password (not main password)
	Folder        string   `yaml:"folder"`         // Folder to monitor (default: "INBOX")
	Senders       []string `yaml:"senders"`        // Sender domains to analyze; empty means all
	AutoArchive   bool     `yaml:"auto_archive"`   // Move analyzed emails to archive folder
	ArchiveFolder string   `yaml:"archive_folder"` // Folder to archive emails to (default: "Amtspost")
}

// NotifyConfig holds SMTP settings for urgent-letter alerts
type NotifyConfig struct {
	Enabled bool       `yaml:"enabled"`
	From    string     `yaml:"from"`
	To      string     `yaml:"to"`
	MinTier string     `yaml:"min_tier"` // "red" or "yellow" (default: "red")
	SMTP    SMTPConfig `yaml:"smtp,omitempty"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
}

// Logging selects the slog handler.
type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".amtspost")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{History: History{Enabled: true}}
	cfg.applyDefaults()
	return cfg
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("config file not found, using defaults", "path", path)
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := checkFilePermissions(path); err != nil {
		slog.Warn("insecure config file", "error", err)
	}

	cfg := Config{History: History{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Analysis.MinChars == 0 {
		c.Analysis.MinChars = defaultMinChars
	}
	if c.Analysis.MaxChars == 0 {
		c.Analysis.MaxChars = defaultMaxChars
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(DefaultDir(), "history.db")
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.RatePerMinute == 0 {
		c.Server.RatePerMinute = defaultRatePerMinute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	// Set inbox defaults
	if c.Inbox.Folder == "" {
		c.Inbox.Folder = "INBOX"
	}
	if c.Inbox.ArchiveFolder == "" {
		c.Inbox.ArchiveFolder = "Amtspost"
	}
	if c.Inbox.Provider == "gmail" && c.Inbox.Server == "" {
		c.Inbox.Server = "imap.gmail.com"
		c.Inbox.Port = 993
	}
	if c.Inbox.Provider == "outlook" && c.Inbox.Server == "" {
		c.Inbox.Server = "outlook.office365.com"
		c.Inbox.Port = 993
	}

	if c.Notify.MinTier == "" {
		c.Notify.MinTier = "red"
	}
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	if c.Analysis.MinChars < 1 {
		return fmt.Errorf("analysis: min_chars must be positive")
	}
	if c.Analysis.MaxChars != 0 && c.Analysis.MaxChars < c.Analysis.MinChars {
		return fmt.Errorf("analysis: max_chars must not be below min_chars")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port %d out of range", c.Server.Port)
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history: path is required")
	}
	return nil
}

// ValidateInbox validates inbox configuration (only called when inbox monitoring is used)
func (c *Config) ValidateInbox() error {
	if !c.Inbox.Enabled {
		return fmt.Errorf("inbox: monitoring is not enabled in config")
	}
	if c.Inbox.Email == "" {
		return fmt.Errorf("inbox: email address is required")
	}
	if c.Inbox.Password == "" {
		return fmt.Errorf("inbox: password (app password) is required")
	}
	if c.Inbox.Server == "" {
		return fmt.Errorf("inbox: IMAP server is required")
	}
	if c.Inbox.Port == 0 {
		return fmt.Errorf("inbox: IMAP port is required")
	}
	return nil
}

// ValidateNotify validates alert settings (only called when alerts are sent)
func (c *Config) ValidateNotify() error {
	if !c.Notify.Enabled {
		return fmt.Errorf("notify: alerts are not enabled in config")
	}
	if _, err := mail.ParseAddress(c.Notify.From); err != nil {
		return fmt.Errorf("notify: from address is invalid: %w", err)
	}
	if _, err := mail.ParseAddress(c.Notify.To); err != nil {
		return fmt.Errorf("notify: to address is invalid: %w", err)
	}
	if c.Notify.MinTier != "red" && c.Notify.MinTier != "yellow" {
		return fmt.Errorf("notify: min_tier must be red or yellow, got %q", c.Notify.MinTier)
	}
	if c.Notify.SMTP.Host == "" {
		return fmt.Errorf("notify.smtp: host is required")
	}
	if c.Notify.SMTP.Port == 0 {
		return fmt.Errorf("notify.smtp: port is required")
	}
	return nil
}
