package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/bulwark/internal/scheduler"
	"github.com/five82/bulwark/internal/sections"
	"github.com/five82/bulwark/internal/views"
)

// Config holds console settings.
type Config struct {
	AdminURL        string
	RequestTimeout  time.Duration
	LogPath         string
	LogLevel        string
	EventsHours     int
	CDPEventsLimit  int
	MonitoringLimit int
	// BanSeconds is the manual ban length when none is given.
	BanSeconds int
	Refresh    map[views.View]time.Duration
	MaxAge     map[views.View]time.Duration
}

const (
	defaultConfigPath      = "~/.config/bulwark/config.toml"
	defaultAdminURL        = "http://127.0.0.1:3000"
	defaultLogPath         = "~/.local/state/bulwark/bulwark.log"
	defaultLogLevel        = "info"
	defaultRequestTimeout  = 10 * time.Second
	defaultEventsHours     = 24
	defaultCDPEventsLimit  = 500
	defaultMonitoringLimit = 10
	defaultBanSeconds      = 3600
)

// defaultMaxAge keeps the polled views moving: a tick refetches once the
// data is older than this even if no write invalidated it.
var defaultMaxAge = map[views.View]time.Duration{
	views.Monitoring: 25 * time.Second,
	views.IPBans:     40 * time.Second,
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		AdminURL:        defaultAdminURL,
		RequestTimeout:  defaultRequestTimeout,
		LogPath:         mustExpand(defaultLogPath),
		LogLevel:        defaultLogLevel,
		EventsHours:     defaultEventsHours,
		CDPEventsLimit:  defaultCDPEventsLimit,
		MonitoringLimit: defaultMonitoringLimit,
		BanSeconds:      defaultBanSeconds,
		Refresh:         copyDurations(scheduler.DefaultIntervals),
		MaxAge:          copyDurations(defaultMaxAge),
	}
}

type rawConfig struct {
	AdminURL        string            `toml:"admin_url"`
	RequestTimeout  string            `toml:"request_timeout"`
	LogPath         string            `toml:"log_path"`
	LogLevel        string            `toml:"log_level"`
	EventsHours     int               `toml:"events_hours"`
	CDPEventsLimit  int               `toml:"cdp_events_limit"`
	MonitoringLimit int               `toml:"monitoring_limit"`
	BanSeconds      int               `toml:"ban_seconds"`
	Refresh         map[string]string `toml:"refresh"`
	MaxAge          map[string]string `toml:"max_age"`
}

// Load parses the config at path, falling back to defaults when the file is
// missing. Fields left empty keep their default.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.AdminURL); v != "" {
		cfg.AdminURL = v
	}
	if v := strings.TrimSpace(raw.RequestTimeout); v != "" {
		d, err := parsePositive("request_timeout", v)
		if err != nil {
			return Config{}, err
		}
		cfg.RequestTimeout = d
	}
	if v := strings.TrimSpace(raw.LogPath); v != "" {
		cfg.LogPath = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if raw.EventsHours > 0 {
		cfg.EventsHours = raw.EventsHours
	}
	if raw.CDPEventsLimit > 0 {
		cfg.CDPEventsLimit = raw.CDPEventsLimit
	}
	if raw.MonitoringLimit > 0 {
		cfg.MonitoringLimit = raw.MonitoringLimit
	}
	if raw.BanSeconds != 0 {
		if raw.BanSeconds < sections.MinBanSeconds || raw.BanSeconds > sections.MaxBanSeconds {
			return Config{}, fmt.Errorf("ban_seconds: must be between %d and %d, got %d",
				sections.MinBanSeconds, sections.MaxBanSeconds, raw.BanSeconds)
		}
		cfg.BanSeconds = raw.BanSeconds
	}
	if err := mergeDurations("refresh", cfg.Refresh, raw.Refresh, false); err != nil {
		return Config{}, err
	}
	if err := mergeDurations("max_age", cfg.MaxAge, raw.MaxAge, true); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeDurations overlays per-view durations keyed by view name. With
// allowZero, "0" disables the entry.
func mergeDurations(table string, dst map[views.View]time.Duration, src map[string]string, allowZero bool) error {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, name := range keys {
		view := views.View(strings.ToLower(strings.TrimSpace(name)))
		if !view.Valid() {
			return fmt.Errorf("parse config: [%s] unknown view %q", table, name)
		}
		raw := strings.TrimSpace(src[name])
		if allowZero && raw == "0" {
			delete(dst, view)
			continue
		}
		d, err := parsePositive(table+"."+name, raw)
		if err != nil {
			return err
		}
		dst[view] = d
	}
	return nil
}

func parsePositive(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse config: %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse config: %s must be positive, got %s", field, raw)
	}
	return d, nil
}

func copyDurations(in map[views.View]time.Duration) map[views.View]time.Duration {
	out := make(map[views.View]time.Duration, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return ExpandPath(defaultConfigPath)
	}
	return ExpandPath(path)
}

func mustExpand(path string) string {
	expanded, err := ExpandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath trims path, expands a leading ~ to the home directory and makes
// the result absolute.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
