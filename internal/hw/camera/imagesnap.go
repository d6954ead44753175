package camera

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/cjeanneret/PolaGo/internal/debug"
	"github.com/fsnotify/fsnotify"
)

// ListImagesnapDevices returns the devices reported by `imagesnap -l` (macOS).
func ListImagesnapDevices() ([]Device, error) {
	buf, err := exec.Command("imagesnap", "-l").Output()
	if err != nil {
		return nil, fmt.Errorf("%w: listing devices with imagesnap -l: %v", ErrNoDevice, err)
	}
	return parseImagesnapDevices(string(buf))
}

func parseImagesnapDevices(s string) ([]Device, error) {
	devs := []Device{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "=> "):
			// => FaceTime HD Camera (Built-in)
			name := line[len("=> "):]
			devs = append(devs, Device{Name: name, ID: name})
		case strings.HasPrefix(line, "<"):
			// <AVCaptureDALDevice: 0x7fa2c7852fd0 [FaceTime HD Camera (Built-in)][0x8020000005ac8514]>
			t := strings.Split(line, "[")
			if len(t) < 2 {
				continue
			}
			name := strings.Split(t[1], "]")[0]
			devs = append(devs, Device{Name: name, ID: name})
		}
	}
	if len(devs) == 0 {
		return nil, fmt.Errorf("%w: no devices available", ErrNoDevice)
	}
	return devs, nil
}

// Imagesnap captures frames on macOS with imagesnap's timelapse mode.
type Imagesnap struct {
	opts Options
}

var _ Source = (*Imagesnap)(nil)

// NewImagesnap creates an imagesnap source. Nothing is started until Open.
func NewImagesnap(opts Options) *Imagesnap {
	return &Imagesnap{opts: opts.withDefaults()}
}

// Open starts imagesnap and waits for the first frame. macOS reports a
// missing camera permission as an imagesnap exit, which surfaces as
// ErrNoDevice.
func (i *Imagesnap) Open(ctx context.Context) (Stream, error) {
	device := i.opts.Device
	if device == "" {
		devs, err := ListImagesnapDevices()
		if err != nil {
			return nil, err
		}
		device = devs[0].ID
	}
	debug.Verbose("imagesnap: opening %q", device)

	s, err := newSpool("imagesnap", fsnotify.Create)
	if err != nil {
		return nil, err
	}
	args := []string{
		"-d", device,
		"-t", fmt.Sprintf("%.2f", i.opts.Interval.Seconds()),
	}
	if err := s.start(args, i.opts.Verbose); err != nil {
		s.Close()
		return nil, fmt.Errorf("starting imagesnap: %w", err)
	}
	if err := s.awaitFirstFrame(ctx, i.opts.StartTimeout); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
