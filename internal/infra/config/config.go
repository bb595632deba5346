// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server       ServerConfig           `yaml:"server"`
	Admin        AdminConfig            `yaml:"admin"`
	Spotify      SpotifyConfig          `yaml:"spotify"`
	Player       PlayerConfig           `yaml:"player"`
	Notification NotificationConfig     `yaml:"notification"`
	Checks       map[string]CheckConfig `yaml:"checks"`
	GetSongBPM   GetSongBPMConfig       `yaml:"getsongbpm"`
	PlansAPI     PlansAPIConfig         `yaml:"plans_api"`
	Generator    GeneratorConfig        `yaml:"generator"`
}

// ServerConfig represents RPC server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":8080"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// SpotifyConfig represents Spotify API configuration.
// Credentials are optional; without them the player runs timer-only.
type SpotifyConfig struct {
	ClientID          string  `yaml:"client_id"`
	ClientSecret      string  `yaml:"client_secret"`
	RefreshToken      string  `yaml:"refresh_token"`
	Market            string  `yaml:"market" validate:"omitempty,len=2" default:"JP"`
	Device            string  `yaml:"device"`
	RequestsPerSecond float64 `yaml:"requests_per_second" default:"5" validate:"gte=0"`
	Burst             int     `yaml:"burst" default:"5" validate:"gte=1"`
}

// PlayerConfig represents playback session configuration.
type PlayerConfig struct {
	TimerOnly        bool    `yaml:"timer_only"`
	Volume           float64 `yaml:"volume" default:"1" validate:"gt=0,lte=1"`
	AudioCues        bool    `yaml:"audio_cues"`
	WarningSeconds   int     `yaml:"warning_seconds" default:"10" validate:"gte=0"`
	CountdownSeconds int     `yaml:"countdown_seconds" default:"3" validate:"gte=0,lte=10"`
	TickIntervalMs   int     `yaml:"tick_interval_ms" default:"1000" validate:"gte=100,lte=10000"`
	CommandTimeoutMs int     `yaml:"command_timeout_ms" default:"5000" validate:"gte=100"`
}

// NotificationConfig represents subscriber notification configuration.
type NotificationConfig struct {
	SendTimeoutMs int `yaml:"send_timeout_ms" default:"500" validate:"gte=10,lte=10000"`
}

// CheckConfig represents a plan check's configuration.
type CheckConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// GetSongBPMConfig represents GetSongBPM API configuration.
type GetSongBPMConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
	TimeoutMs int    `yaml:"timeout_ms" default:"10000" validate:"gte=100"`
}

// PlansAPIConfig represents plans API configuration.
type PlansAPIConfig struct {
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	Token   string `yaml:"token"`
}

// GeneratorConfig represents AI plan generation configuration.
type GeneratorConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model" default:"claude-sonnet-4-20250514"`
	MaxTokens int    `yaml:"max_tokens" default:"4096" validate:"gte=256"`
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses YAML configuration, applies environment overrides and defaults, and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"SPOTIFY_CLIENT_ID", &c.Spotify.ClientID},
		{"SPOTIFY_CLIENT_SECRET", &c.Spotify.ClientSecret},
		{"SPOTIFY_REFRESH_TOKEN", &c.Spotify.RefreshToken},
		{"SPOTIFY_DEVICE", &c.Spotify.Device},
		{"ADMIN_TOKEN", &c.Admin.Token},
		{"GETSONGBPM_API_KEY", &c.GetSongBPM.APIKey},
		{"PLANS_API_TOKEN", &c.PlansAPI.Token},
		{"ANTHROPIC_API_KEY", &c.Generator.APIKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	// Spotify credentials are all-or-nothing
	s := c.Spotify
	set := 0
	for _, v := range []string{s.ClientID, s.ClientSecret, s.RefreshToken} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return errors.New("spotify client_id, client_secret and refresh_token must be set together")
	}

	return nil
}

// SpotifyEnabled reports whether Spotify credentials are configured.
func (c *Config) SpotifyEnabled() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != "" && c.Spotify.RefreshToken != ""
}

// IsCheckEnabled checks if a plan check is enabled.
func (c *Config) IsCheckEnabled(name string) bool {
	if chk, ok := c.Checks[name]; ok {
		return chk.Enabled
	}
	return false
}

// EnabledChecks returns the settings of every enabled check, keyed by name.
func (c *Config) EnabledChecks() map[string]map[string]any {
	enabled := make(map[string]map[string]any)
	for name, chk := range c.Checks {
		if chk.Enabled {
			enabled[name] = chk.Settings
		}
	}
	return enabled
}

// EnabledCheckNames returns the sorted names of enabled checks.
func (c *Config) EnabledCheckNames() []string {
	names := make([]string, 0, len(c.Checks))
	for name := range c.EnabledChecks() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TickInterval returns the player tick interval.
func (p PlayerConfig) TickInterval() time.Duration {
	return time.Duration(p.TickIntervalMs) * time.Millisecond
}

// CommandTimeout returns the per-command playback timeout.
func (p PlayerConfig) CommandTimeout() time.Duration {
	return time.Duration(p.CommandTimeoutMs) * time.Millisecond
}

// SendTimeout returns the per-subscriber send timeout.
func (n NotificationConfig) SendTimeout() time.Duration {
	return time.Duration(n.SendTimeoutMs) * time.Millisecond
}

// Timeout returns the GetSongBPM request timeout.
func (g GetSongBPMConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMs) * time.Millisecond
}
