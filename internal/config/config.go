package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envPollInterval         = "PHPVM_POLL_INTERVAL"
	envLogLevel             = "PHPVM_LOG_LEVEL"
	envSlackWebhookURL      = "PHPVM_SLACK_WEBHOOK_URL"
	envWebhookURL           = "PHPVM_WEBHOOK_URL"
	envWebhookTemplate      = "PHPVM_WEBHOOK_TEMPLATE"
	envDesktopNotifications = "PHPVM_DESKTOP_NOTIFICATIONS"
	envDryRun               = "PHPVM_DRY_RUN"
	envDynamicStatus        = "PHPVM_DYNAMIC_STATUS"
	envHealthPort           = "PHPVM_HEALTH_PORT"
	envMetricsPort          = "PHPVM_METRICS_PORT"
	envStateFile            = "PHPVM_STATE_FILE"
	envServicesFile         = "PHPVM_SERVICES_FILE"
)

const (
	defaultPollInterval = 60 * time.Second
	defaultLogLevel     = "info"
)

// Config describes runtime configuration loaded from the environment.
type Config struct {
	PollInterval         time.Duration
	LogLevel             string
	SlackWebhookURL      string
	WebhookURL           string
	WebhookTemplate      string
	DesktopNotifications bool
	DryRun               bool
	DynamicStatus        bool
	HealthPort           int
	MetricsPort          int
	StateFile            string
	ServicesFile         string
}

// Load reads configuration from environment variables and a local .env file if present.
// Existing environment variables take precedence over values in .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		PollInterval:         defaultPollInterval,
		LogLevel:             defaultLogLevel,
		DesktopNotifications: true,
		DynamicStatus:        true,
	}

	if value, ok := lookupTrimmed(envPollInterval); ok {
		interval, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envPollInterval, err)
		}
		if interval <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than zero", envPollInterval)
		}
		cfg.PollInterval = interval
	}

	if value, ok := lookupTrimmed(envLogLevel); ok {
		cfg.LogLevel = value
	}

	if value, ok := lookupTrimmed(envSlackWebhookURL); ok {
		cfg.SlackWebhookURL = value
	}

	if value, ok := lookupTrimmed(envWebhookURL); ok {
		cfg.WebhookURL = value
	}

	if value, ok := lookupTrimmed(envWebhookTemplate); ok {
		cfg.WebhookTemplate = value
	}

	var err error
	if cfg.DesktopNotifications, err = lookupBool(envDesktopNotifications, cfg.DesktopNotifications); err != nil {
		return Config{}, err
	}
	if cfg.DryRun, err = lookupBool(envDryRun, cfg.DryRun); err != nil {
		return Config{}, err
	}
	if cfg.DynamicStatus, err = lookupBool(envDynamicStatus, cfg.DynamicStatus); err != nil {
		return Config{}, err
	}

	if cfg.HealthPort, err = lookupPort(envHealthPort); err != nil {
		return Config{}, err
	}
	if cfg.MetricsPort, err = lookupPort(envMetricsPort); err != nil {
		return Config{}, err
	}

	if value, ok := lookupTrimmed(envStateFile); ok && value != "" {
		cfg.StateFile = value
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory for state file: %w", err)
		}
		cfg.StateFile = filepath.Join(home, ".phpvm", "state.json")
	}

	if value, ok := lookupTrimmed(envServicesFile); ok {
		cfg.ServicesFile = value
	}

	if cfg.SlackWebhookURL != "" {
		if err := validateURL(cfg.SlackWebhookURL, envSlackWebhookURL); err != nil {
			return Config{}, err
		}
	}

	if cfg.WebhookURL != "" {
		if err := validateURL(cfg.WebhookURL, envWebhookURL); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func lookupBool(key string, fallback bool) (bool, error) {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

// lookupPort parses an optional listen port. Zero (or unset) disables the
// listener.
func lookupPort(key string) (int, error) {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return 0, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("%s must be between 0 and 65535", key)
	}
	return port, nil
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}
