package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `upstream: http://localhost:5000`

	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Title != "Clip progress" {
		t.Errorf("Title = %q, want Clip progress", cfg.Title)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.PollInterval.Duration() != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", cfg.PollInterval.Duration())
	}
	if cfg.RequestTimeout.Duration() != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want 10s", cfg.RequestTimeout.Duration())
	}
	if cfg.RateLimit.Enabled() {
		t.Error("RateLimit should be disabled by default")
	}
	if cfg.Guard.Field != "youtube_url" {
		t.Errorf("Guard.Field = %q, want youtube_url", cfg.Guard.Field)
	}
	if cfg.Guard.Message != "Please enter a valid YouTube URL" {
		t.Errorf("Guard.Message = %q", cfg.Guard.Message)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Clip jobs
port: 9090
upstream: https://clips.example.com/
poll_interval: 500ms
request_timeout: 3s
log_level: debug
rate_limit:
  requests_per_second: 20
  burst: 5
guard:
  field: video_url
  message: 有効なYouTube URLを入力してください
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Clip jobs" {
		t.Errorf("Title = %q, want Clip jobs", cfg.Title)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Upstream != "https://clips.example.com" {
		t.Errorf("Upstream = %q, want trailing slash trimmed", cfg.Upstream)
	}
	if cfg.PollInterval.Duration() != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", cfg.PollInterval.Duration())
	}
	if cfg.RequestTimeout.Duration() != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", cfg.RequestTimeout.Duration())
	}
	if cfg.RateLimit.RequestsPerSecond != 20 || cfg.RateLimit.Burst != 5 {
		t.Errorf("RateLimit = %+v, want 20/5", cfg.RateLimit)
	}
	if cfg.Guard.Field != "video_url" {
		t.Errorf("Guard.Field = %q, want video_url", cfg.Guard.Field)
	}
	if cfg.Guard.Message != "有効なYouTube URLを入力してください" {
		t.Errorf("Guard.Message = %q", cfg.Guard.Message)
	}
	if u := cfg.UpstreamURL(); u == nil || u.Host != "clips.example.com" {
		t.Errorf("UpstreamURL() = %v, want host clips.example.com", u)
	}
}

func TestParse_RateLimitBurstDefault(t *testing.T) {
	yaml := `
upstream: http://localhost:5000
rate_limit:
  requests_per_second: 2.5
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.RateLimit.Burst != 1 {
		t.Errorf("Burst = %d, want 1", cfg.RateLimit.Burst)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("TEST_CLIP_HOST", "clips.test.com")

	cfg, err := Parse([]byte(`upstream: https://${TEST_CLIP_HOST}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Upstream != "https://clips.test.com" {
		t.Errorf("Upstream = %q, want https://clips.test.com", cfg.Upstream)
	}
}

func TestParse_EnvVarDefault(t *testing.T) {
	// UNSET_VAR is expected to not exist in the environment
	cfg, err := Parse([]byte(`upstream: ${UNSET_VAR:-http://localhost:5000}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Upstream != "http://localhost:5000" {
		t.Errorf("Upstream = %q, want http://localhost:5000", cfg.Upstream)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	// MISSING_VAR is expected to not exist in the environment
	_, err := Parse([]byte(`upstream: https://${MISSING_VAR}`))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "MISSING_VAR") {
		t.Errorf("error should mention MISSING_VAR: %v", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantErrLike string
	}{
		{
			name:        "missing upstream",
			yaml:        `port: 8080`,
			wantErrLike: "upstream is required",
		},
		{
			name:        "upstream without scheme",
			yaml:        `upstream: localhost:5000`,
			wantErrLike: "scheme",
		},
		{
			name:        "upstream ftp scheme",
			yaml:        `upstream: ftp://example.com`,
			wantErrLike: "http or https",
		},
		{
			name:        "upstream without host",
			yaml:        `upstream: "http://"`,
			wantErrLike: "host",
		},
		{
			name: "port out of range",
			yaml: `
upstream: http://localhost:5000
port: 70000
`,
			wantErrLike: "port must be between",
		},
		{
			name: "poll interval too short",
			yaml: `
upstream: http://localhost:5000
poll_interval: 10ms
`,
			wantErrLike: "poll_interval must be at least",
		},
		{
			name: "poll interval too long",
			yaml: `
upstream: http://localhost:5000
poll_interval: 2h
`,
			wantErrLike: "poll_interval must not exceed",
		},
		{
			name: "negative timeout",
			yaml: `
upstream: http://localhost:5000
request_timeout: -1s
`,
			wantErrLike: "request_timeout cannot be negative",
		},
		{
			name: "negative rate",
			yaml: `
upstream: http://localhost:5000
rate_limit:
  requests_per_second: -1
`,
			wantErrLike: "requests_per_second cannot be negative",
		},
		{
			name: "negative burst",
			yaml: `
upstream: http://localhost:5000
rate_limit:
  burst: -2
`,
			wantErrLike: "burst cannot be negative",
		},
		{
			name: "unknown log level",
			yaml: `
upstream: http://localhost:5000
log_level: verbose
`,
			wantErrLike: "log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Parse() expected error containing %q, got nil", tt.wantErrLike)
			}
			if !strings.Contains(err.Error(), tt.wantErrLike) {
				t.Errorf("Parse() error = %q, want error containing %q", err.Error(), tt.wantErrLike)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("upstream: [unclosed"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse YAML") {
		t.Errorf("error = %v, want failed to parse YAML", err)
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	yaml := `
upstream: http://localhost:5000
poll_interval: often
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error = %v, want invalid duration", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipwatch.yaml")
	if err := os.WriteFile(path, []byte("upstream: http://localhost:5000\nport: 8181\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8181 {
		t.Errorf("Port = %d, want 8181", cfg.Port)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ParseLevel() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}
