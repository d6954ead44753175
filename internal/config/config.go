package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a config file read by Load.
const MaxConfigFileBytes = 64 << 10

// CameraConfig describes where frames come from.
// Type selects a concrete backend ("ffmpeg", "imagesnap" or "mock").
type CameraConfig struct {
	Type       string `yaml:"type"`        // e.g., "ffmpeg"
	Device     string `yaml:"device"`      // e.g., "/dev/video0"; empty = first listed device
	Width      int    `yaml:"width"`       // capture width in pixels
	Height     int    `yaml:"height"`      // capture height in pixels
	IntervalMs int    `yaml:"interval_ms"` // time between spooled frames
	Verbose    bool   `yaml:"verbose"`     // pipe backend stdout/stderr to ours
}

// CaptureConfig holds the sequence timings.
type CaptureConfig struct {
	TickMs  int `yaml:"tick_ms"`  // countdown tick (default 1000)
	FlashMs int `yaml:"flash_ms"` // flash pulse length (default 200)
	PauseMs int `yaml:"pause_ms"` // pause after each shot (default 1000)
}

// ExportConfig describes the polaroid export.
type ExportConfig struct {
	Filename  string `yaml:"filename"`   // download name (default "polaroid.png")
	Scale     int    `yaml:"scale"`      // resolution multiplier (default 2)
	OutputDir string `yaml:"output_dir"` // headless mode destination (default ".")
}

// PinConfig is an optional GPIO line. Pin 0 = not used.
type PinConfig struct {
	Pin        int `yaml:"pin"`         // BCM pin number
	DebounceMs int `yaml:"debounce_ms"` // trigger only
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	Filter     string `yaml:"filter"`      // initial filter name (default "none")
	DebugLevel int    `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool   `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Capture  CaptureConfig  `yaml:"capture"`
	Export   ExportConfig   `yaml:"export"`
	Flash    PinConfig      `yaml:"flash"`
	Trigger  PinConfig      `yaml:"trigger"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath checks that path names a .yaml file inside a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if strings.Contains(filepath.ToSlash(path), "..") {
		return fmt.Errorf("config path %q must not contain '..'", path)
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if fi.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fi.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	// Basic validation
	if c.Camera.Type == "" {
		return fmt.Errorf("camera.type is required")
	}
	switch c.Camera.Type {
	case "ffmpeg", "imagesnap", "mock":
	default:
		return fmt.Errorf("unsupported camera.type %q", c.Camera.Type)
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		return fmt.Errorf("camera size must be positive, got %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.Width == 0 {
		c.Camera.Width = 640
	}
	if c.Camera.Height == 0 {
		c.Camera.Height = 480
	}
	if c.Camera.IntervalMs <= 0 {
		c.Camera.IntervalMs = 100 // 10 fps preview
	}

	// Sequence timings
	if c.Capture.TickMs <= 0 {
		c.Capture.TickMs = 1000
	}
	if c.Capture.FlashMs <= 0 {
		c.Capture.FlashMs = 200
	}
	if c.Capture.PauseMs <= 0 {
		c.Capture.PauseMs = 1000
	}

	if c.Export.Filename == "" {
		c.Export.Filename = "polaroid.png"
	}
	if filepath.Base(c.Export.Filename) != c.Export.Filename {
		return fmt.Errorf("export.filename must be a bare file name, got %q", c.Export.Filename)
	}
	if c.Export.Scale < 0 || c.Export.Scale > 8 {
		return fmt.Errorf("export.scale must be between 1 and 8, got %d", c.Export.Scale)
	}
	if c.Export.Scale == 0 {
		c.Export.Scale = 2
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = "."
	}

	if c.Flash.Pin < 0 || c.Trigger.Pin < 0 {
		return fmt.Errorf("gpio pins must be >= 0")
	}
	if c.Flash.Pin != 0 && c.Flash.Pin == c.Trigger.Pin {
		return fmt.Errorf("flash.pin and trigger.pin must differ, both are %d", c.Flash.Pin)
	}
	if c.Trigger.DebounceMs <= 0 {
		c.Trigger.DebounceMs = 50
	}

	if c.Defaults.Filter == "" {
		c.Defaults.Filter = "none"
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// Tick returns the countdown tick duration.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Capture.TickMs) * time.Millisecond
}

// FlashPulse returns the flash pulse duration.
func (c *Config) FlashPulse() time.Duration {
	return time.Duration(c.Capture.FlashMs) * time.Millisecond
}

// Pause returns the pause after each shot.
func (c *Config) Pause() time.Duration {
	return time.Duration(c.Capture.PauseMs) * time.Millisecond
}

// FrameInterval returns the time between spooled camera frames.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Camera.IntervalMs) * time.Millisecond
}

// Debounce returns the trigger button debounce time.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Trigger.DebounceMs) * time.Millisecond
}

// ExportPath returns where headless mode writes the polaroid.
func (c *Config) ExportPath() string {
	return filepath.Join(c.Export.OutputDir, c.Export.Filename)
}
