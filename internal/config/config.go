package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	ModePushToTalk = "PushToTalk"
	ModeToggle     = "Toggle"

	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"

	// DefaultDeviceID selects the host's default input device.
	DefaultDeviceID = "default"
)

type Config struct {
	Mode               string        `json:"mode"`          // "PushToTalk" or "Toggle"
	Hotkey             string        `json:"hotkey"`        // e.g. "Alt+Space"
	HotkeyDarwin       string        `json:"hotkey_darwin"` // overrides Hotkey on macOS
	LogLevel           string        `json:"log_level"`
	Audio              AudioConfig   `json:"audio"`
	Overlay            OverlayConfig `json:"overlay"`
	SnapshotIntervalMs int           `json:"snapshot_interval_ms"`

	path string
}

// AudioConfig holds the capture settings for one recording session.
type AudioConfig struct {
	Backend            string  `json:"backend"` // "portaudio" or "malgo"
	InputDeviceID      string  `json:"input_device_id"`
	SampleRateHz       int     `json:"sample_rate_hz"`
	Channels           int     `json:"channels"`
	InputGainDB        float32 `json:"input_gain_db"`
	NoiseGateEnabled   bool    `json:"noise_gate_enabled"`
	NoiseGateThreshold float32 `json:"noise_gate_threshold"`
	VADEnabled         bool    `json:"vad_enabled"`
	VADThreshold       float32 `json:"vad_threshold"`
	VADSilenceMs       uint32  `json:"vad_silence_ms"`
	VADResumeMs        uint32  `json:"vad_resume_ms"`
}

type OverlayConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"` // empty: OverlayDir()
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mode:               ModeToggle,
		Hotkey:             "Alt+Space",
		HotkeyDarwin:       "Alt+Space", // Option+Space
		LogLevel:           "info",
		Audio:              DefaultAudio(),
		Overlay:            OverlayConfig{Enabled: overlayDefault(runtime.GOOS)},
		SnapshotIntervalMs: 1000,
	}
}

// DefaultAudio returns 16kHz mono capture from the default device with every filter off.
func DefaultAudio() AudioConfig {
	return AudioConfig{
		Backend:            BackendPortAudio,
		InputDeviceID:      DefaultDeviceID,
		SampleRateHz:       16000,
		Channels:           1,
		InputGainDB:        0,
		NoiseGateEnabled:   false,
		NoiseGateThreshold: 0.02,
		VADEnabled:         false,
		VADThreshold:       0.02,
		VADSilenceMs:       800,
		VADResumeMs:        120,
	}
}

// Load reads the config from the platform config path or returns defaults
func Load() (*Config, error) {
	return LoadFrom(configPath())
}

// LoadFrom reads the config at path over the defaults. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config back to the path it was loaded from
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		path = configPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings no component can act on.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModePushToTalk, ModeToggle:
	default:
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	if c.SnapshotIntervalMs <= 0 {
		return fmt.Errorf("snapshot_interval_ms must be positive, got %d", c.SnapshotIntervalMs)
	}
	return c.Audio.Validate()
}

func (a AudioConfig) Validate() error {
	switch a.Backend {
	case BackendPortAudio, BackendMalgo:
	default:
		return fmt.Errorf("invalid audio backend %q", a.Backend)
	}
	if a.SampleRateHz <= 0 {
		return fmt.Errorf("sample_rate_hz must be positive, got %d", a.SampleRateHz)
	}
	if a.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", a.Channels)
	}
	return nil
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "whispr", "config.json")
}

// PlatformHotkey returns the appropriate hotkey for the current platform
func (c *Config) PlatformHotkey() string {
	if runtime.GOOS == "darwin" && c.HotkeyDarwin != "" {
		return c.HotkeyDarwin
	}
	return c.Hotkey
}

// overlayDefault enables the overlay file only where a status display polls it.
func overlayDefault(goos string) bool {
	return goos == "linux"
}

// OverlayDir returns where the overlay state file lives when no directory is
// configured.
func OverlayDir() string {
	return overlayDirFor(runtime.GOOS)
}

func overlayDirFor(goos string) string {
	switch goos {
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "whispr")
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "whispr")
	default:
		return statePathFor(goos)
	}
}

// StatePath returns the platform-specific directory for logs and, on Linux,
// runtime state.
func StatePath() string {
	return statePathFor(runtime.GOOS)
}

func statePathFor(goos string) string {
	var base string

	switch goos {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Logs"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			base = xdg
		} else if home := os.Getenv("HOME"); home != "" {
			base = home + "/.local/state"
		} else {
			base = os.TempDir()
		}
	}

	return filepath.Join(base, "whispr")
}
