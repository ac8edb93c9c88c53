// Package config loads the YAML configuration file and applies it over
// built-in defaults. Everything is read once at startup; nothing is
// revalidated or reloaded mid-session.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/olivier-w/vudial/internal/meter"
	"github.com/olivier-w/vudial/internal/watch"
)

const (
	DefaultWatchThresholdDB = -40.0
	DefaultWatchDurationSec = 15.0
	DefaultWatchRecoverySec = 5.0
	DefaultEmailPort        = 587
	DefaultEmailFromName    = "vudial"
)

// MeterConfig carries the session parameters. Zero values keep the
// defaults derived from the opened source.
type MeterConfig struct {
	ReferenceDB float64 `yaml:"reference_db,omitempty"` // dBFS at 0 VU; 0 picks -18 (stereo) or -20 (mono)
	ChannelMode string  `yaml:"channel_mode,omitempty"` // mono, left or right
	WindowSec   float64 `yaml:"window_sec,omitempty"`
	AttackSec   float64 `yaml:"attack_sec,omitempty"`
	ReleaseSec  float64 `yaml:"release_sec,omitempty"`
	ClipDeg     float64 `yaml:"clip_deg,omitempty"`
	PeakHoldMs  float64 `yaml:"peak_hold_ms,omitempty"`
	PeakFadeMs  float64 `yaml:"peak_fade_ms,omitempty"`
}

// FeedConfig enables the WebSocket level feed when Addr is set.
type FeedConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// WatchConfig holds the silence watch thresholds.
type WatchConfig struct {
	Enabled     bool    `yaml:"enabled,omitempty"`
	ThresholdDB float64 `yaml:"threshold_db,omitempty"`
	DurationSec float64 `yaml:"duration_sec,omitempty"`
	RecoverySec float64 `yaml:"recovery_sec,omitempty"`
}

// EmailConfig holds SMTP settings for silence alerts.
type EmailConfig struct {
	Host       string `yaml:"host,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	FromName   string `yaml:"from_name,omitempty"`
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
	Recipients string `yaml:"recipients,omitempty"` // comma separated
}

// NotifyConfig selects the alarm sinks. A sink is active when its
// settings are filled in.
type NotifyConfig struct {
	WebhookURL string      `yaml:"webhook_url,omitempty"`
	LogPath    string      `yaml:"log_path,omitempty"`
	Email      EmailConfig `yaml:"email,omitempty"`
}

// UpdateConfig controls the background release check.
type UpdateConfig struct {
	Disabled bool `yaml:"disabled,omitempty"`
}

// Config is the full file surface.
type Config struct {
	Meter  MeterConfig  `yaml:"meter,omitempty"`
	Feed   FeedConfig   `yaml:"feed,omitempty"`
	Watch  WatchConfig  `yaml:"watch,omitempty"`
	Notify NotifyConfig `yaml:"notify,omitempty"`
	Update UpdateConfig `yaml:"update,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Meter: MeterConfig{
			ChannelMode: "mono",
			WindowSec:   meter.DefaultWindowSec,
			AttackSec:   meter.DefaultAttackSec,
			ReleaseSec:  meter.DefaultReleaseSec,
			ClipDeg:     meter.DefaultClipDeg,
			PeakHoldMs:  float64(meter.DefaultPeakHold.Milliseconds()),
			PeakFadeMs:  float64(meter.DefaultPeakFade.Milliseconds()),
		},
		Watch: WatchConfig{
			ThresholdDB: DefaultWatchThresholdDB,
			DurationSec: DefaultWatchDurationSec,
			RecoverySec: DefaultWatchRecoverySec,
		},
		Notify: NotifyConfig{
			Email: EmailConfig{Port: DefaultEmailPort, FromName: DefaultEmailFromName},
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vudial", "config.yml"), nil
}

// Load reads path over the built-in defaults. A missing file is not an
// error; the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults refills fields an explicit zero in the file would
// otherwise blank out.
func (c *Config) applyDefaults() {
	if c.Meter.ChannelMode == "" {
		c.Meter.ChannelMode = "mono"
	}
	if c.Watch.ThresholdDB == 0 {
		c.Watch.ThresholdDB = DefaultWatchThresholdDB
	}
	if c.Watch.DurationSec == 0 {
		c.Watch.DurationSec = DefaultWatchDurationSec
	}
	if c.Watch.RecoverySec == 0 {
		c.Watch.RecoverySec = DefaultWatchRecoverySec
	}
	if c.Notify.Email.Port == 0 {
		c.Notify.Email.Port = DefaultEmailPort
	}
	if c.Notify.Email.FromName == "" {
		c.Notify.Email.FromName = DefaultEmailFromName
	}
}

// Validate rejects values the config layer owns. The session build
// validates the numeric metering parameters separately.
func (c *Config) Validate() error {
	if _, err := meter.ParseChannelMode(c.Meter.ChannelMode); err != nil {
		return fmt.Errorf("meter: %w", err)
	}
	if c.Meter.ReferenceDB > 0 {
		return fmt.Errorf("meter: reference_db is dBFS and must not be positive, got %g", c.Meter.ReferenceDB)
	}
	if c.Watch.Enabled {
		if c.Watch.ThresholdDB >= 0 {
			return fmt.Errorf("watch: threshold_db must be negative, got %g", c.Watch.ThresholdDB)
		}
		if c.Watch.DurationSec <= 0 || c.Watch.RecoverySec <= 0 {
			return fmt.Errorf("watch: duration_sec and recovery_sec must be positive, got %g/%g",
				c.Watch.DurationSec, c.Watch.RecoverySec)
		}
	}
	if c.Notify.Email.Host != "" {
		if p := c.Notify.Email.Port; p < 1 || p > 65535 {
			return fmt.Errorf("notify: email port out of range, got %d", p)
		}
	}
	return nil
}

// Apply overlays the file values onto a session config built for the
// opened source. Zero values keep the source-derived defaults.
func (m *MeterConfig) Apply(cfg meter.Config) (meter.Config, error) {
	mode, err := meter.ParseChannelMode(m.ChannelMode)
	if err != nil {
		return cfg, err
	}
	cfg.Mode = mode
	if m.ReferenceDB != 0 {
		cfg.ReferenceDB = m.ReferenceDB
	}
	if m.WindowSec > 0 {
		cfg.WindowSec = m.WindowSec
	}
	if m.AttackSec > 0 {
		cfg.AttackSec = m.AttackSec
	}
	if m.ReleaseSec > 0 {
		cfg.ReleaseSec = m.ReleaseSec
	}
	if m.ClipDeg != 0 {
		cfg.ClipDeg = m.ClipDeg
	}
	if m.PeakHoldMs > 0 {
		cfg.PeakHold = time.Duration(m.PeakHoldMs * float64(time.Millisecond))
	}
	if m.PeakFadeMs > 0 {
		cfg.PeakFade = time.Duration(m.PeakFadeMs * float64(time.Millisecond))
	}
	return cfg, nil
}

// Build converts the watch settings to the watcher's form.
func (w *WatchConfig) Build() watch.Config {
	return watch.Config{
		Threshold: w.ThresholdDB,
		Trigger:   time.Duration(w.DurationSec * float64(time.Second)),
		Recovery:  time.Duration(w.RecoverySec * float64(time.Second)),
	}
}

func (n *NotifyConfig) HasWebhook() bool { return n.WebhookURL != "" }
func (n *NotifyConfig) HasEmail() bool   { return n.Email.Host != "" && n.Email.Recipients != "" }
func (n *NotifyConfig) HasLog() bool     { return n.LogPath != "" }
