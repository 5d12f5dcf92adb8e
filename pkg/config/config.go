// Package config loads monitor configuration from a YAML file and
// maps it onto the service and transport configurations. Absent
// fields keep their defaults, so a minimal file carries only
// credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fr33mang/helki-go/pkg/connection"
	"github.com/fr33mang/helki-go/pkg/service"
	"github.com/fr33mang/helki-go/pkg/transport"
)

// ErrInvalid indicates a config file that parsed but fails
// validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the monitor configuration file.
type Config struct {
	// API configures the cloud endpoints and credentials.
	API API `yaml:"api"`

	// Sync tunes the synchronization engine. All fields optional.
	Sync Sync `yaml:"sync"`

	// Log configures protocol logging.
	Log Log `yaml:"log"`
}

// API is the cloud endpoint section.
type API struct {
	// BaseURL overrides the production endpoint. Optional.
	BaseURL string `yaml:"base_url"`

	// Token is the bearer access token. Required unless passed on the
	// command line.
	Token string `yaml:"token"`

	// SocketPath overrides the realtime handshake path. Optional.
	SocketPath string `yaml:"socket_path"`

	// Namespace overrides the realtime namespace. Optional.
	Namespace string `yaml:"namespace"`
}

// Sync is the engine tuning section. Zero values keep the defaults.
type Sync struct {
	PollTimeout      time.Duration `yaml:"poll_timeout"`
	BootstrapTimeout time.Duration `yaml:"bootstrap_timeout"`
	IdleWindow       time.Duration `yaml:"idle_window"`
	StaleWindow      time.Duration `yaml:"stale_window"`
	KeepaliveEvery   int           `yaml:"keepalive_every"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	BackoffInitial   time.Duration `yaml:"backoff_initial"`
	BackoffMax       time.Duration `yaml:"backoff_max"`
}

// Log is the logging section.
type Log struct {
	// Level is the slog level: debug, info, warn, error.
	Level string `yaml:"level"`

	// File captures the full protocol event stream as CBOR. Optional.
	File string `yaml:"file"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates config bytes.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"poll_timeout", c.Sync.PollTimeout},
		{"bootstrap_timeout", c.Sync.BootstrapTimeout},
		{"idle_window", c.Sync.IdleWindow},
		{"stale_window", c.Sync.StaleWindow},
		{"cooldown", c.Sync.Cooldown},
		{"backoff_initial", c.Sync.BackoffInitial},
		{"backoff_max", c.Sync.BackoffMax},
	} {
		if d.value < 0 {
			return fmt.Errorf("%w: sync.%s must not be negative", ErrInvalid, d.name)
		}
	}
	if c.Sync.KeepaliveEvery < 0 {
		return fmt.Errorf("%w: sync.keepalive_every must not be negative", ErrInvalid)
	}
	if c.Sync.FailureThreshold < 0 {
		return fmt.Errorf("%w: sync.failure_threshold must not be negative", ErrInvalid)
	}
	if c.Sync.BackoffMax > 0 && c.Sync.BackoffInitial > c.Sync.BackoffMax {
		return fmt.Errorf("%w: sync.backoff_initial exceeds sync.backoff_max", ErrInvalid)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}

// ServiceConfig maps the sync section onto a service configuration.
// Unset fields keep the defaults.
func (c *Config) ServiceConfig() service.Config {
	cfg := service.DefaultConfig()
	if c.Sync.PollTimeout > 0 {
		cfg.PollTimeout = c.Sync.PollTimeout
	}
	if c.Sync.BootstrapTimeout > 0 {
		cfg.BootstrapTimeout = c.Sync.BootstrapTimeout
	}
	if c.Sync.IdleWindow > 0 {
		cfg.IdleWindow = c.Sync.IdleWindow
	}
	if c.Sync.StaleWindow > 0 {
		cfg.StaleWindow = c.Sync.StaleWindow
	}
	if c.Sync.KeepaliveEvery > 0 {
		cfg.KeepaliveEvery = c.Sync.KeepaliveEvery
	}
	if c.Sync.FailureThreshold > 0 {
		cfg.FailureThreshold = c.Sync.FailureThreshold
	}
	if c.Sync.Cooldown > 0 {
		cfg.Cooldown = c.Sync.Cooldown
	}
	if c.Sync.BackoffInitial > 0 || c.Sync.BackoffMax > 0 {
		cfg.Backoff = connection.BackoffConfig{
			Initial:    c.Sync.BackoffInitial,
			Max:        c.Sync.BackoffMax,
			Multiplier: connection.BackoffMultiplier,
			Jitter:     connection.JitterFactor,
		}
	}
	return cfg
}

// TransportConfig maps the api section onto a transport configuration
// for the given device.
func (c *Config) TransportConfig(deviceID string) transport.Config {
	cfg := transport.Config{
		BaseURL:    c.API.BaseURL,
		SocketPath: c.API.SocketPath,
		Namespace:  c.API.Namespace,
		DeviceID:   deviceID,
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = transport.DefaultSocketPath
	}
	if cfg.Namespace == "" {
		cfg.Namespace = transport.DefaultNamespace
	}
	return cfg
}
