// Package camera provides live frame sources for the booth. A Source is
// opened into a Stream; the Stream keeps the most recent frame available to
// the preview and to the capture sequence until it is closed.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

var (
	// ErrPermissionDenied means the device exists but may not be opened.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrNoDevice means no usable capture device was found.
	ErrNoDevice = errors.New("no camera device")
	// ErrFrameNotReady is returned by Frame before the first frame arrived.
	ErrFrameNotReady = errors.New("no frame received yet")
	// ErrStreamClosed is returned by Frame after Close.
	ErrStreamClosed = errors.New("stream closed")
)

// Device is a capture device as reported by a backend's listing tool.
type Device struct {
	Name string
	ID   string
}

// Source opens live streams.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open camera. Close is idempotent.
type Stream interface {
	// Frame returns the latest frame. The image must not be modified.
	Frame() (image.Image, error)
	Close() error
}

// Options configures a backend.
type Options struct {
	Device       string        // backend device ID; empty = first listed device
	Width        int           // requested frame width
	Height       int           // requested frame height
	Interval     time.Duration // time between frames
	Verbose      bool          // pipe the capture process output to ours
	StartTimeout time.Duration // how long Open waits for the first frame
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 640
	}
	if o.Height <= 0 {
		o.Height = 480
	}
	if o.Interval <= 0 {
		o.Interval = 100 * time.Millisecond
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = 5 * time.Second
	}
	return o
}

// NewSource returns the backend named kind ("ffmpeg", "imagesnap" or "mock").
func NewSource(kind string, opts Options) (Source, error) {
	switch kind {
	case "ffmpeg":
		return NewFFmpeg(opts), nil
	case "imagesnap":
		return NewImagesnap(opts), nil
	case "mock":
		return NewMock(opts), nil
	default:
		return nil, fmt.Errorf("unsupported camera type %q", kind)
	}
}

// ListDevices lists the devices available to the backend named kind.
func ListDevices(kind string) ([]Device, error) {
	switch kind {
	case "ffmpeg":
		return ListV4L2Devices()
	case "imagesnap":
		return ListImagesnapDevices()
	case "mock":
		return []Device{{Name: "Test pattern", ID: "mock"}}, nil
	default:
		return nil, fmt.Errorf("unsupported camera type %q", kind)
	}
}
