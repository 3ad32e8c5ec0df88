// Package config provides YAML configuration parsing for clipwatch.
//
// This package enables running clipwatch as a standalone binary with a
// configuration file, as an alternative to wiring the SDK programmatically.
//
// Example configuration:
//
//	title: Clip progress
//	port: 8080
//	upstream: ${CLIP_APP_URL:-http://localhost:5000}
//	poll_interval: 2s
//	request_timeout: 10s
//	log_level: info
//
//	rate_limit:
//	  requests_per_second: 20
//	  burst: 5
//
//	guard:
//	  field: youtube_url
//	  message: Please enter a valid YouTube URL
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/clipwatch/formguard"
)

const (
	defaultTitle          = "Clip progress"
	defaultPort           = 8080
	defaultPollInterval   = 2 * time.Second
	defaultRequestTimeout = 10 * time.Second

	// minPollInterval keeps a misconfigured page from hammering the status
	// endpoint.
	minPollInterval = 100 * time.Millisecond
	maxPollInterval = time.Hour
)

// Config is the root configuration structure for clipwatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the page title. Defaults to "Clip progress".
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Upstream is the base URL of the clip application. Status requests go
	// to {upstream}/status/{session}. Required.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Upstream string `yaml:"upstream"`

	// PollInterval is the delay between status requests of one session.
	// Defaults to 2s.
	PollInterval Duration `yaml:"poll_interval"`

	// RequestTimeout bounds a single status request. Defaults to 10s.
	RequestTimeout Duration `yaml:"request_timeout"`

	// RateLimit caps status requests across all sessions. Disabled when
	// requests_per_second is 0.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Guard configures form submission validation.
	Guard GuardConfig `yaml:"guard"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`
}

// RateLimitConfig configures the shared status request limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst defaults to 1 when a rate is set.
	Burst int `yaml:"burst"`
}

// Enabled reports whether a rate limit is configured.
func (r RateLimitConfig) Enabled() bool {
	return r.RequestsPerSecond > 0
}

// GuardConfig configures the submission guard.
type GuardConfig struct {
	// Field is the form field holding the video URL. Defaults to youtube_url.
	Field string `yaml:"field"`

	// Message is shown when a submission is rejected.
	Message string `yaml:"message"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, applies defaults and validates the
// result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Title == "" {
		c.Title = defaultTitle
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(defaultPollInterval)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(defaultRequestTimeout)
	}
	if c.RateLimit.Enabled() && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 1
	}
	if c.Guard.Field == "" {
		c.Guard.Field = formguard.DefaultField
	}
	if c.Guard.Message == "" {
		c.Guard.Message = formguard.DefaultMessage
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.Upstream == "" {
		return errors.New("upstream is required")
	}
	expanded, err := expandEnvVars(c.Upstream)
	if err != nil {
		return fmt.Errorf("upstream: %w", err)
	}
	c.Upstream = strings.TrimRight(expanded, "/")

	parsedURL, err := url.Parse(c.Upstream)
	if err != nil {
		return fmt.Errorf("invalid upstream: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("upstream must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("upstream scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return errors.New("upstream must have a host")
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.PollInterval.Duration() > maxPollInterval {
		return fmt.Errorf("poll_interval must not exceed %s, got %s", maxPollInterval, c.PollInterval.Duration())
	}

	if c.RequestTimeout.Duration() < 0 {
		return fmt.Errorf("request_timeout cannot be negative, got %s", c.RequestTimeout.Duration())
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second cannot be negative, got %v", c.RateLimit.RequestsPerSecond)
	}
	if c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit.burst cannot be negative, got %d", c.RateLimit.Burst)
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// UpstreamURL returns the parsed upstream URL. Only valid on a Config
// returned by [Parse] or [Load].
func (c *Config) UpstreamURL() *url.URL {
	u, _ := url.Parse(c.Upstream)
	return u
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level must be debug, info, warn or error, got %q", s)
	}
}
