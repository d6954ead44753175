package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/cjeanneret/PolaGo/internal/config"
	"github.com/cjeanneret/PolaGo/internal/debug"
	"github.com/cjeanneret/PolaGo/internal/hw/button"
	"github.com/cjeanneret/PolaGo/internal/hw/camera"
	"github.com/cjeanneret/PolaGo/internal/hw/flash"
	"github.com/cjeanneret/PolaGo/internal/hw/gpio"
	"github.com/cjeanneret/PolaGo/internal/logic/capture"
	"github.com/cjeanneret/PolaGo/internal/logic/filter"
	"github.com/cjeanneret/PolaGo/internal/web"
)

// cliOverrides holds the command-line values that take precedence over the
// config file. Zero values mean "use config".
type cliOverrides struct {
	Filter string
	Device string
	Out    string
	Scale  int
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	filterName := flag.String("filter", "", "override the initial filter ("+strings.Join(filterNames(), ", ")+")")
	device := flag.String("device", "", "override the camera device")
	out := flag.String("out", "", "headless mode: write the polaroid to this .png file")
	scale := flag.Int("scale", 0, "override the export scale (1-8)")
	listDevices := flag.Bool("listdevices", false, "list camera devices and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	overrides := cliOverrides{Filter: *filterName, Device: *device, Out: *out, Scale: *scale}
	if err := validateCLIOverrides(overrides); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides)

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Camera type", cfg.Camera.Type)

	if *listDevices {
		if err := printDevices(os.Stdout, cfg.Camera.Type); err != nil {
			log.Fatalf("list devices failed: %v", err)
		}
		return
	}

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	var lamp flash.Lamp
	if cfg.Flash.Pin > 0 {
		lamp = flash.NewGPIOLamp(gpioDriver, cfg.Flash.Pin)
		debug.Value("Flash pin", cfg.Flash.Pin)
	}

	// Initialize camera
	debug.Step(2, "Initializing camera source")
	src, err := camera.NewSource(cfg.Camera.Type, cameraOptions(cfg))
	if err != nil {
		log.Fatalf("init camera failed: %v", err)
	}
	debug.PrintStruct("Camera config", cfg.Camera)

	debug.Step(3, "Creating capture session")
	session, err := capture.NewSession(sessionOptions(cfg, src, lamp))
	if err != nil {
		log.Fatalf("create session failed: %v", err)
	}
	defer session.Close()
	debug.Value("Session", session.ID())
	debug.Value("Filter", session.Filter())
	debug.Value("Sequence length", session.Timing().Total())

	if cfg.Trigger.Pin > 0 {
		debug.Value("Trigger pin", cfg.Trigger.Pin)
		btn := button.New(gpioDriver, cfg.Trigger.Pin, cfg.Debounce())
		go func() {
			err := btn.Watch(ctx, func() { onTrigger(ctx, session) })
			if err != nil && !errors.Is(err, context.Canceled) {
				debug.Error(fmt.Errorf("trigger button: %w", err))
			}
		}()
	}

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		session.Subscribe(func(st capture.State) { broadcaster.BroadcastState(st) })

		srv, err := web.NewServer(webAddr, broadcaster, session)
		if err != nil {
			log.Fatalf("web server: %v", err)
		}
		h := srv.Handlers()
		h.ExportFilename = cfg.Export.Filename
		h.PreviewInterval = cfg.FrameInterval()
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	path := cfg.ExportPath()
	if overrides.Out != "" {
		path = overrides.Out
	}
	if err := runHeadless(ctx, session, path); err != nil {
		log.Fatalf("capture failed: %v", err)
	}
}

// runHeadless turns the camera on, runs one sequence and writes the polaroid
// to path.
func runHeadless(ctx context.Context, s *capture.Session, path string) error {
	debug.Section("Headless capture")
	if err := s.SetCameraActive(ctx, true); err != nil {
		var aerr *capture.AcquisitionError
		if errors.As(err, &aerr) {
			return fmt.Errorf("%s: %w", aerr.Message(), err)
		}
		return err
	}
	defer func() {
		if err := s.SetCameraActive(context.Background(), false); err != nil {
			debug.Error(err)
		}
	}()

	debug.Info("Sequence starts, about %s", s.Timing().Total())
	if err := s.Run(ctx); err != nil {
		return err
	}

	debug.Step(4, "Exporting polaroid")
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := s.Export(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	debug.Summary("Polaroid saved")
	debug.Info("Wrote %s", path)
	return nil
}

// onTrigger handles a trigger button press: turn the camera on if needed,
// then start a sequence. Presses during a sequence are ignored.
func onTrigger(ctx context.Context, s *capture.Session) {
	if !s.CameraActive() {
		if err := s.SetCameraActive(ctx, true); err != nil {
			debug.Error(err)
			return
		}
	}
	if err := s.Start(ctx); err != nil {
		debug.Verbose("Trigger ignored: %v", err)
	}
}

func printDevices(w io.Writer, kind string) error {
	devices, err := camera.ListDevices(kind)
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\n", d.ID, d.Name)
	}
	return nil
}

func cameraOptions(cfg *config.Config) camera.Options {
	return camera.Options{
		Device:   cfg.Camera.Device,
		Width:    cfg.Camera.Width,
		Height:   cfg.Camera.Height,
		Interval: cfg.FrameInterval(),
		Verbose:  cfg.Camera.Verbose,
	}
}

func sessionOptions(cfg *config.Config, src camera.Source, lamp flash.Lamp) capture.Options {
	return capture.Options{
		Source: src,
		Lamp:   lamp,
		Timing: capture.Timing{
			Tick:  cfg.Tick(),
			Flash: cfg.FlashPulse(),
			Pause: cfg.Pause(),
		},
		Scale:  cfg.Export.Scale,
		Filter: filter.Parse(cfg.Defaults.Filter),
	}
}

func filterNames() []string {
	all := filter.All()
	names := make([]string, len(all))
	for i, f := range all {
		names[i] = f.String()
	}
	return names
}

// validateCLIOverrides checks that non-zero CLI overrides are usable.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(o cliOverrides) error {
	if o.Filter != "" {
		name := strings.ToLower(strings.TrimSpace(o.Filter))
		if filter.Parse(name).String() != name {
			return fmt.Errorf("filter must be one of %s, got %q", strings.Join(filterNames(), ", "), o.Filter)
		}
	}
	if o.Scale != 0 && (o.Scale < 1 || o.Scale > 8) {
		return fmt.Errorf("scale must be between 1 and 8, got %d", o.Scale)
	}
	if o.Out != "" && !strings.EqualFold(filepath.Ext(o.Out), ".png") {
		return fmt.Errorf("out must name a .png file, got %q", o.Out)
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
// Out is not a config field; main uses it directly.
func applyOverrides(cfg *config.Config, o cliOverrides) {
	if o.Filter != "" {
		cfg.Defaults.Filter = strings.ToLower(strings.TrimSpace(o.Filter))
	}
	if o.Device != "" {
		cfg.Camera.Device = o.Device
	}
	if o.Scale > 0 {
		cfg.Export.Scale = o.Scale
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
