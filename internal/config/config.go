package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Auth      AuthConfig      `yaml:"auth"`
	Capture   CaptureConfig   `yaml:"capture"`
	Live      LiveConfig      `yaml:"live"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Idle      IdleConfig      `yaml:"idle"`
	Loop      LoopConfig      `yaml:"loop"`
	Health    HealthConfig    `yaml:"health"`
	Log       LogConfig       `yaml:"log"`
	Status    StatusConfig    `yaml:"status"`
	Mock      bool            `yaml:"mock" env:"WORKTRACK_MOCK"`
}

type BackendConfig struct {
	URL           string        `yaml:"url" env:"BACKEND_URL"`
	APIPrefix     string        `yaml:"api_prefix" env:"WORKTRACK_API_PREFIX"`
	Timeout       time.Duration `yaml:"timeout" env:"WORKTRACK_BACKEND_TIMEOUT"`
	UploadTimeout time.Duration `yaml:"upload_timeout" env:"WORKTRACK_UPLOAD_TIMEOUT"`
}

type AuthConfig struct {
	Email    string `yaml:"email" env:"WORKTRACK_EMAIL"`
	Password string `yaml:"password" env:"WORKTRACK_PASSWORD"`
	Role     string `yaml:"role" env:"WORKTRACK_ROLE"`
}

type CaptureConfig struct {
	// DefaultInterval is the cadence in seconds used until the backend
	// assigns one.
	DefaultInterval int      `yaml:"default_interval" env:"SCREENSHOT_INTERVAL_SECONDS"`
	FullQuality     int      `yaml:"full_quality"`
	PreviewQuality  int      `yaml:"preview_quality"`
	PreviewWidth    int      `yaml:"preview_width"`
	PreviewHeight   int      `yaml:"preview_height"`
	Command         []string `yaml:"command" env:"WORKTRACK_CAPTURE_COMMAND" envSeparator:" "`
}

type LiveConfig struct {
	Interval time.Duration `yaml:"interval" env:"WORKTRACK_LIVE_INTERVAL"`
}

type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval" env:"WORKTRACK_HEARTBEAT_INTERVAL"`
}

type IdleConfig struct {
	// Command prints idle time in milliseconds. Defaults to xprintidle.
	Command []string `yaml:"command" env:"WORKTRACK_IDLE_COMMAND" envSeparator:" "`
}

type LoopConfig struct {
	Tick time.Duration `yaml:"tick"`
}

type HealthConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"WORKTRACK_LOG_LEVEL"`
	File  string `yaml:"file" env:"WORKTRACK_LOG_FILE"`
}

// StatusConfig controls the loopback status API. An empty Addr disables it.
type StatusConfig struct {
	Addr     string        `yaml:"addr" env:"WORKTRACK_STATUS_ADDR"`
	Token    string        `yaml:"token" env:"WORKTRACK_STATUS_TOKEN"`
	Throttle time.Duration `yaml:"throttle"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:           "http://localhost:4001",
			APIPrefix:     "/api",
			Timeout:       15 * time.Second,
			UploadTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			Role: "employee",
		},
		Capture: CaptureConfig{
			DefaultInterval: 180,
			FullQuality:     70,
			PreviewQuality:  60,
			PreviewWidth:    960,
			PreviewHeight:   540,
		},
		Live:      LiveConfig{Interval: 2 * time.Second},
		Heartbeat: HeartbeatConfig{Interval: 60 * time.Second},
		Idle:      IdleConfig{Command: []string{"xprintidle"}},
		Loop:      LoopConfig{Tick: 500 * time.Millisecond},
		Health:    HealthConfig{FailureThreshold: 3},
		Log:       LogConfig{Level: "INFO"},
		Status:    StatusConfig{Throttle: 250 * time.Millisecond},
	}
}

// Load reads a YAML file over the defaults, then applies environment
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to the defaults (plus
// environment) when path is empty or does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		cfg, err := Load(path)
		if err == nil || !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}
	cfg := Default()
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any variables set in the environment. Unset
// variables leave the current value untouched.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Backend.URL) == "" {
		errs = append(errs, errors.New("backend.url is required"))
	}
	if c.Capture.DefaultInterval <= 0 {
		errs = append(errs, fmt.Errorf("capture.default_interval must be positive, got %d", c.Capture.DefaultInterval))
	}
	for name, q := range map[string]int{
		"capture.full_quality":    c.Capture.FullQuality,
		"capture.preview_quality": c.Capture.PreviewQuality,
	} {
		if q < 1 || q > 100 {
			errs = append(errs, fmt.Errorf("%s must be within 1..100, got %d", name, q))
		}
	}
	if c.Capture.PreviewWidth <= 0 || c.Capture.PreviewHeight <= 0 {
		errs = append(errs, errors.New("capture preview size must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"backend.timeout":    c.Backend.Timeout,
		"live.interval":      c.Live.Interval,
		"heartbeat.interval": c.Heartbeat.Interval,
		"loop.tick":          c.Loop.Tick,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.Health.FailureThreshold <= 0 {
		errs = append(errs, fmt.Errorf("health.failure_threshold must be positive, got %d", c.Health.FailureThreshold))
	}
	if c.Status.Addr != "" {
		host, _, err := net.SplitHostPort(c.Status.Addr)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("status.addr: %w", err))
		case !isLoopback(host):
			errs = append(errs, fmt.Errorf("status.addr must be a loopback address, got %q", c.Status.Addr))
		}
	}
	return errors.Join(errs...)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Endpoint joins the backend URL, API prefix and path.
func (b BackendConfig) Endpoint(path string) string {
	parts := []string{strings.TrimRight(b.URL, "/")}
	if p := strings.Trim(b.APIPrefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, strings.TrimLeft(path, "/"))
	return strings.Join(parts, "/")
}
