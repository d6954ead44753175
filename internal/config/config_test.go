package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "default.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
}

func TestValidateConfigPath_PathTraversal(t *testing.T) {
	cases := []string{
		"../../etc/passwd",
		"configs/../../../etc/shadow",
		"../configs/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for traversal path %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_WrongExtension(t *testing.T) {
	cases := []string{
		"configs/default.json",
		"configs/default.yml",
		"configs/default.txt",
		"configs/default",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for extension in %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_NotInConfigsDir(t *testing.T) {
	cases := []string{
		"other/default.yaml",
		"default.yaml",
		"/tmp/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for path outside configs/ %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_EmptyPath(t *testing.T) {
	if err := ValidateConfigPath(""); err == nil {
		t.Error("expected error for empty path, got nil")
	}
}

func TestValidateConfigPath_SpecialChars(t *testing.T) {
	for _, name := range []string{"con fig.yaml", "café.yaml"} {
		path := filepath.Join("configs", name)
		if err := ValidateConfigPath(path); err != nil {
			t.Errorf("unexpected error for %q: %v", name, err)
		}
	}
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
camera:
  type: "ffmpeg"
  device: "/dev/video2"
  width: 1280
  height: 720
  interval_ms: 50
capture:
  tick_ms: 900
  flash_ms: 150
  pause_ms: 800
export:
  filename: "strip.png"
  scale: 3
  output_dir: "/tmp/booth"
flash:
  pin: 18
trigger:
  pin: 23
  debounce_ms: 30
defaults:
  filter: "noir"
  debug_level: 2
  mock_gpio: true
`

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Camera.Type != "ffmpeg" {
		t.Errorf("camera.type = %q, want %q", cfg.Camera.Type, "ffmpeg")
	}
	if cfg.Camera.Device != "/dev/video2" {
		t.Errorf("camera.device = %q, want /dev/video2", cfg.Camera.Device)
	}
	if cfg.Camera.Width != 1280 || cfg.Camera.Height != 720 {
		t.Errorf("camera size = %dx%d, want 1280x720", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Capture.TickMs != 900 {
		t.Errorf("capture.tick_ms = %d, want 900", cfg.Capture.TickMs)
	}
	if cfg.Export.Filename != "strip.png" {
		t.Errorf("export.filename = %q, want strip.png", cfg.Export.Filename)
	}
	if cfg.Export.Scale != 3 {
		t.Errorf("export.scale = %d, want 3", cfg.Export.Scale)
	}
	if cfg.Flash.Pin != 18 || cfg.Trigger.Pin != 23 {
		t.Errorf("pins = flash %d trigger %d, want 18 and 23", cfg.Flash.Pin, cfg.Trigger.Pin)
	}
	if cfg.Defaults.Filter != "noir" {
		t.Errorf("defaults.filter = %q, want noir", cfg.Defaults.Filter)
	}
	if got := cfg.ExportPath(); got != filepath.Join("/tmp/booth", "strip.png") {
		t.Errorf("ExportPath() = %q", got)
	}
}

func TestLoad_MissingCameraType(t *testing.T) {
	path := writeConfig(t, `
capture:
  tick_ms: 1000
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for missing camera.type, got nil")
	}
}

func TestLoad_UnsupportedCameraType(t *testing.T) {
	path := writeConfig(t, `
camera:
  type: "nikon_d90_gpio"
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for unsupported camera.type, got nil")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"negative_width", "camera:\n  type: mock\n  width: -1\n"},
		{"scale_too_large", "camera:\n  type: mock\nexport:\n  scale: 9\n"},
		{"filename_with_dir", "camera:\n  type: mock\nexport:\n  filename: ../x.png\n"},
		{"same_pins", "camera:\n  type: mock\nflash:\n  pin: 4\ntrigger:\n  pin: 4\n"},
		{"debug_level", "camera:\n  type: mock\ndefaults:\n  debug_level: 7\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for %s, got nil", tc.name)
			}
		})
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	path := writeConfig(t, `
camera:
  type: "mock"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Camera.Width != 640 || cfg.Camera.Height != 480 {
		t.Errorf("camera size default = %dx%d, want 640x480", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Capture.TickMs != 1000 {
		t.Errorf("tick_ms default = %d, want 1000", cfg.Capture.TickMs)
	}
	if cfg.Capture.FlashMs != 200 {
		t.Errorf("flash_ms default = %d, want 200", cfg.Capture.FlashMs)
	}
	if cfg.Capture.PauseMs != 1000 {
		t.Errorf("pause_ms default = %d, want 1000", cfg.Capture.PauseMs)
	}
	if cfg.Export.Filename != "polaroid.png" {
		t.Errorf("filename default = %q, want polaroid.png", cfg.Export.Filename)
	}
	if cfg.Export.Scale != 2 {
		t.Errorf("scale default = %d, want 2", cfg.Export.Scale)
	}
	if cfg.Defaults.Filter != "none" {
		t.Errorf("filter default = %q, want none", cfg.Defaults.Filter)
	}
	if cfg.Trigger.DebounceMs != 50 {
		t.Errorf("debounce default = %d, want 50", cfg.Trigger.DebounceMs)
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	path := writeConfig(t, strings.Repeat("#", MaxConfigFileBytes+1))
	if _, err := Load(path); err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "{{{{invalid yaml!!!!")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	if _, err := Load(path); err == nil {
		t.Error("expected error for empty config (camera.type missing), got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	path := writeConfig(t, `
camera:
  type: "mock"
unknown_section:
  foo: bar
`)
	if _, err := Load(path); err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filepath.Join(cfgDir, "nonexistent.yaml")); err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

func TestLoad_ShippedConfigs(t *testing.T) {
	for _, name := range []string{"default.yaml", "mock.yaml"} {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(filepath.Join("..", "..", "configs", name)); err == nil {
				// ".." is rejected on purpose; load through a copy instead.
				t.Fatal("expected '..' path to be rejected")
			}
			data, err := os.ReadFile(filepath.Join("..", "..", "configs", name))
			if err != nil {
				t.Fatalf("read shipped config: %v", err)
			}
			if _, err := Load(writeConfig(t, string(data))); err != nil {
				t.Errorf("shipped config %s does not load: %v", name, err)
			}
		})
	}
}

// ---------- Helper methods ----------

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Camera:  CameraConfig{IntervalMs: 100},
		Capture: CaptureConfig{TickMs: 1000, FlashMs: 200, PauseMs: 500},
		Trigger: PinConfig{DebounceMs: 40},
	}
	cases := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"Tick", cfg.Tick(), time.Second},
		{"FlashPulse", cfg.FlashPulse(), 200 * time.Millisecond},
		{"Pause", cfg.Pause(), 500 * time.Millisecond},
		{"FrameInterval", cfg.FrameInterval(), 100 * time.Millisecond},
		{"Debounce", cfg.Debounce(), 40 * time.Millisecond},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s() = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}
