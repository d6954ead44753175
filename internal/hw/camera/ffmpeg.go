package camera

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cjeanneret/PolaGo/internal/debug"
	"github.com/fsnotify/fsnotify"
)

var errFFmpegHint = errors.New("executable not found, install with: sudo apt install -y ffmpeg v4l-utils")

// ListV4L2Devices returns the video4linux devices reported by v4l2-ctl.
func ListV4L2Devices() ([]Device, error) {
	buf, err := exec.Command("v4l2-ctl", "--list-devices").Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errFFmpegHint
		}
		return nil, fmt.Errorf("%w: listing devices using v4l2-ctl: %v", ErrNoDevice, err)
	}
	return parseV4L2Devices(string(buf))
}

// parseV4L2Devices parses `v4l2-ctl --list-devices`: a card name line
// followed by tab-indented device nodes. Only the first node of each card is
// a capture node; the Pi's internal codec cards are skipped.
func parseV4L2Devices(s string) ([]Device, error) {
	var card string
	var first bool
	devices := []Device{}
	for _, line := range strings.Split(s, "\n") {
		if !strings.HasPrefix(line, "\t") {
			card = strings.TrimSuffix(strings.TrimSpace(line), ":")
			first = true
			continue
		}
		if card == "" || strings.HasPrefix(card, "bcm2835-") || !first {
			continue
		}
		node := strings.TrimSpace(line)
		if !strings.HasPrefix(node, "/dev/video") {
			continue
		}
		first = false
		devices = append(devices, Device{
			Name: fmt.Sprintf("%s (%s)", card, node),
			ID:   node,
		})
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no devices available", ErrNoDevice)
	}
	return devices, nil
}

// checkDevice maps device node access errors to ErrNoDevice and
// ErrPermissionDenied before ffmpeg gets a chance to fail with an exit code.
func checkDevice(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	switch {
	case err == nil:
		return f.Close()
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNoDevice, path)
	default:
		return fmt.Errorf("opening %s: %w", path, err)
	}
}

// FFmpeg captures MJPEG frames from a video4linux device with ffmpeg.
type FFmpeg struct {
	opts Options
}

var _ Source = (*FFmpeg)(nil)

// NewFFmpeg creates an ffmpeg source. Nothing is started until Open.
func NewFFmpeg(opts Options) *FFmpeg {
	return &FFmpeg{opts: opts.withDefaults()}
}

func ffmpegArgs(opts Options, device string) []string {
	fps := int(time.Second / opts.Interval)
	if fps < 1 {
		fps = 1
	}
	return []string{
		"-f", "v4l2",
		"-framerate", fmt.Sprintf("%d", fps),
		"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-c:v", "mjpeg",
		"-i", device,
		"-f", "image2",
		"-c:v", "copy",
		"-bsf:v", "mjpeg2jpeg",
		"-qscale:v", "2",
		"frame%d.jpg",
	}
}

// Open starts ffmpeg and waits for the first frame.
func (f *FFmpeg) Open(ctx context.Context) (Stream, error) {
	device := f.opts.Device
	if device == "" {
		devs, err := ListV4L2Devices()
		if err != nil {
			return nil, err
		}
		device = devs[0].ID
	}
	if err := checkDevice(device); err != nil {
		return nil, err
	}
	debug.Verbose("ffmpeg: opening %s at %dx%d", device, f.opts.Width, f.opts.Height)

	s, err := newSpool("ffmpeg", fsnotify.Write)
	if err != nil {
		return nil, err
	}
	if err := s.start(ffmpegArgs(f.opts, device), f.opts.Verbose); err != nil {
		s.Close()
		if errors.Is(err, exec.ErrNotFound) {
			err = errFFmpegHint
		}
		return nil, fmt.Errorf("starting command ffmpeg: %w", err)
	}
	if err := s.awaitFirstFrame(ctx, f.opts.StartTimeout); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
