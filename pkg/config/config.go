package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/sofactl/internal/actuator"
	"github.com/srg/sofactl/internal/device"
	"github.com/srg/sofactl/internal/protocol"
	"github.com/srg/sofactl/pkg/connection"
	"github.com/srg/sofactl/scanner"
	"gopkg.in/yaml.v3"
)

// Press duration bounds accepted from configuration and the command line.
const (
	MinPressDuration = time.Second
	MaxPressDuration = 180 * time.Second
	maxHoldDuration  = 10 * time.Minute
)

// Config holds application configuration
type Config struct {
	Address  string         `yaml:"address"`
	LogLevel string         `yaml:"log_level" default:"info"`
	Protocol string         `yaml:"protocol" default:"fama-v1"`
	Codes    map[string]int `yaml:"codes,omitempty"`

	ServiceUUID          string `yaml:"service_uuid" default:"0000ffe0-0000-1000-8000-00805f9b34fb"`
	CharUUID             string `yaml:"char_uuid" default:"0000ffe1-0000-1000-8000-00805f9b34fb"`
	WriteStrategy        string `yaml:"write_strategy" default:"broadcast"`
	WriteWithoutResponse bool   `yaml:"write_without_response"`

	CommandInterval time.Duration `yaml:"command_interval" default:"200ms"`
	PressDuration   time.Duration `yaml:"press_duration" default:"60s"`
	MaxDuration     time.Duration `yaml:"max_duration" default:"120s"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"15s"`
	MaxAttempts    int           `yaml:"max_attempts" default:"4"`
	Backoff        time.Duration `yaml:"backoff" default:"250ms"`
	WriteTimeout   time.Duration `yaml:"write_timeout" default:"2s"`

	ScanTimeout time.Duration `yaml:"scan_timeout" default:"10s"`
	NamePrefix  string        `yaml:"name_prefix" default:"Sofa"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Parse reads YAML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads the config file at path. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if _, err := c.CodeTable(); err != nil {
		errs = append(errs, err)
	}
	if _, err := device.ValidateUUID(c.ServiceUUID, c.CharUUID); err != nil {
		errs = append(errs, fmt.Errorf("service_uuid/char_uuid: %w", err))
	}
	check(connection.WriteStrategy(c.WriteStrategy).Valid(),
		"write_strategy: %q is not one of %q, %q", c.WriteStrategy, connection.StrategyFirst, connection.StrategyBroadcast)
	check(c.CommandInterval > 0 && c.CommandInterval <= time.Second,
		"command_interval: %v must be in (0s, 1s]", c.CommandInterval)
	check(c.PressDuration >= MinPressDuration && c.PressDuration <= MaxPressDuration,
		"press_duration: %v must be in [%v, %v]", c.PressDuration, MinPressDuration, MaxPressDuration)
	check(c.MaxDuration > 0 && c.MaxDuration <= maxHoldDuration,
		"max_duration: %v must be in (0s, %v]", c.MaxDuration, maxHoldDuration)
	check(c.ConnectTimeout > 0, "connect_timeout: must be positive")
	check(c.MaxAttempts >= 1, "max_attempts: %d must be at least 1", c.MaxAttempts)
	check(c.Backoff >= 0, "backoff: must not be negative")
	check(c.WriteTimeout > 0, "write_timeout: must be positive")
	check(c.ScanTimeout > 0, "scan_timeout: must be positive")

	return errors.Join(errs...)
}

// CodeTable resolves the protocol profile and applies per-code overrides.
func (c *Config) CodeTable() (protocol.CodeTable, error) {
	table, err := protocol.Profile(c.Protocol)
	if err != nil {
		return nil, fmt.Errorf("protocol: %w", err)
	}

	overrides := make(map[protocol.Command]byte, len(c.Codes))
	for name, code := range c.Codes {
		cmd, err := protocol.ParseCommand(name)
		if err != nil {
			return nil, fmt.Errorf("codes: %w", err)
		}
		if code < 0 || code > 0xFF {
			return nil, fmt.Errorf("codes: %s: 0x%X does not fit in one byte", name, code)
		}
		overrides[cmd] = byte(code)
	}

	table = table.With(overrides)
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("codes: %w", err)
	}
	return table, nil
}

// ConnectionOptions maps the link settings for the given address.
// An empty address falls back to the configured one.
func (c *Config) ConnectionOptions(address string) *connection.Options {
	if address == "" {
		address = c.Address
	}
	return &connection.Options{
		Address:              address,
		ServiceUUID:          c.ServiceUUID,
		CharUUID:             c.CharUUID,
		Strategy:             connection.WriteStrategy(c.WriteStrategy),
		WriteWithoutResponse: c.WriteWithoutResponse,
		ConnectTimeout:       c.ConnectTimeout,
		MaxAttempts:          c.MaxAttempts,
		Backoff:              c.Backoff,
		WriteTimeout:         c.WriteTimeout,
	}
}

// ControllerOptions maps the timing and code settings.
func (c *Config) ControllerOptions() (*actuator.Options, error) {
	codes, err := c.CodeTable()
	if err != nil {
		return nil, err
	}

	maxDuration := MaxPressDuration
	if c.MaxDuration > maxDuration {
		maxDuration = c.MaxDuration
	}

	opts := actuator.DefaultOptions()
	opts.Codes = codes
	opts.CommandInterval = c.CommandInterval
	opts.MaxDuration = maxDuration
	return opts, nil
}

// ScanOptions maps the discovery settings.
func (c *Config) ScanOptions() *scanner.ScanOptions {
	opts := scanner.DefaultScanOptions()
	opts.Duration = c.ScanTimeout
	opts.NamePrefix = c.NamePrefix
	return opts
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
