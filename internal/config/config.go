package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the alarm binaries.
type Config struct {
	// ServerAddress is the gRPC address of the alarm bridge.
	ServerAddress string `yaml:"server_addr"`
	// Timeout bounds every client RPC.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is applied at startup and on every reload.
	LogLevel string `yaml:"log_level"`
	// LogFormat is "console" or "json"; read at startup only.
	LogFormat string `yaml:"log_format,omitempty"`
	// Timezone is the IANA zone daily alarms are computed in; "Local" uses the host zone.
	Timezone string `yaml:"timezone"`
	// StrictTriggers rejects one-shot alarms whose delay is not positive.
	StrictTriggers bool `yaml:"strict_triggers"`
	// ExactAlarms mirrors the platform permission for exact wake-ups; nil means granted.
	ExactAlarms *bool `yaml:"exact_alarms,omitempty"`
	// Store configures where pending alarms are persisted.
	Store StoreConfig `yaml:"store"`
	// Sink configures how notifications are shown.
	Sink SinkConfig `yaml:"sink"`
	// MetricsAddress enables the Prometheus exporter when not empty.
	MetricsAddress string `yaml:"metrics_addr,omitempty"`
}

// StoreConfig selects the pending-alarm store.
type StoreConfig struct {
	// Driver is one of "sqlite", "file" or "memory".
	Driver string `yaml:"driver"`
	// Path is the database or JSON file location.
	Path string `yaml:"path"`
	// BusyTimeout is passed to SQLite as busy_timeout.
	BusyTimeout time.Duration `yaml:"busy_timeout,omitempty"`
}

// SinkConfig selects the notification sink.
type SinkConfig struct {
	// Driver is one of "log", "memory" or "telegram".
	Driver string `yaml:"driver"`
	// Enabled set to false models revoked notification permission; nil means enabled.
	Enabled *bool `yaml:"enabled,omitempty"`
	// RatePerSec limits deliveries; zero disables limiting.
	RatePerSec int `yaml:"rate_per_sec,omitempty"`
	// Telegram holds the bot settings for the telegram driver.
	Telegram TelegramConfig `yaml:"telegram,omitempty"`
}

// TelegramConfig holds Telegram bot credentials.
type TelegramConfig struct {
	// Token is the bot API token.
	Token string `yaml:"token"`
	// ChatID is the chat receiving notifications.
	ChatID int64 `yaml:"chat_id"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "alarm-scheduler-settings.yaml"

	// DefaultStoreFilename is the default SQLite database for pending alarms.
	DefaultStoreFilename = "alarm-scheduler.db"

	// DefaultTimeout is the default duration for RPC calls.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the permission used for files this project writes.
	DefaultFilePermissions = 0o600

	// Store drivers.
	StoreSQLite = "sqlite"
	StoreFile   = "file"
	StoreMemory = "memory"

	// Log formats.
	LogFormatConsole = "console"
	LogFormatJSON    = "json"

	// Sink drivers.
	SinkLog      = "log"
	SinkMemory   = "memory"
	SinkTelegram = "telegram"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errTelegramCredentials is returned when the telegram sink lacks a token or chat.
	errTelegramCredentials = errors.New("telegram sink requires token and chat_id")
)

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults in place.
//
//nolint:cyclop // Flat list of independent checks.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if _, err := settings.Location(); err != nil {
		return err
	}

	switch strings.ToLower(settings.LogFormat) {
	case "":
		settings.LogFormat = LogFormatConsole
	case LogFormatConsole, LogFormatJSON:
		settings.LogFormat = strings.ToLower(settings.LogFormat)
	default:
		return fmt.Errorf("unknown log format %q", settings.LogFormat)
	}

	switch strings.ToLower(settings.Store.Driver) {
	case "":
		settings.Store.Driver = StoreSQLite
	case StoreSQLite, StoreFile, StoreMemory:
		settings.Store.Driver = strings.ToLower(settings.Store.Driver)
	default:
		return fmt.Errorf("unknown store driver %q", settings.Store.Driver)
	}

	if settings.Store.Path == "" && settings.Store.Driver != StoreMemory {
		settings.Store.Path = DefaultStoreFilename
	}

	switch strings.ToLower(settings.Sink.Driver) {
	case "":
		settings.Sink.Driver = SinkLog
	case SinkLog, SinkMemory:
		settings.Sink.Driver = strings.ToLower(settings.Sink.Driver)
	case SinkTelegram:
		settings.Sink.Driver = SinkTelegram
		if settings.Sink.Telegram.Token == "" || settings.Sink.Telegram.ChatID == 0 {
			return errTelegramCredentials
		}
	default:
		return fmt.Errorf("unknown sink driver %q", settings.Sink.Driver)
	}

	if settings.Sink.RatePerSec < 0 {
		settings.Sink.RatePerSec = 0
	}

	if settings.MetricsAddress != "" {
		if _, _, err := net.SplitHostPort(settings.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics address: %w", err)
		}
	}

	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	return loc, nil
}

// ExactAlarmsGranted reports whether exact wake-ups are permitted.
func (c *Config) ExactAlarmsGranted() bool {
	return c.ExactAlarms == nil || *c.ExactAlarms
}

// SinkEnabled reports whether notification delivery is permitted.
func (c *SinkConfig) SinkEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
