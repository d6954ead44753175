package capture

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/PolaGo/internal/hw/camera"
)

var (
	// ErrSequenceRunning is returned when a sequence is started while one runs.
	ErrSequenceRunning = errors.New("a capture sequence is already running")
	// ErrCameraInactive is returned when a frame is needed but the camera is off.
	ErrCameraInactive = errors.New("camera is not active")
	// ErrNotReady is returned by Export until exactly three photos exist.
	ErrNotReady = errors.New("export needs exactly three photos")
	// ErrCanceled is the cause of a sequence stopped by Cancel or Close.
	ErrCanceled = errors.New("capture canceled")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session closed")
)

// AcquisitionError reports a camera that could not be started.
type AcquisitionError struct {
	Err error
}

func (e *AcquisitionError) Error() string {
	return "camera acquisition failed: " + e.Err.Error()
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Message is the short status line shown to the user.
func (e *AcquisitionError) Message() string {
	switch {
	case errors.Is(e.Err, camera.ErrPermissionDenied):
		return "camera permission denied"
	case errors.Is(e.Err, camera.ErrNoDevice):
		return "no camera found"
	default:
		return "camera unavailable"
	}
}

// CaptureError reports a failed snapshot. Round is 1-based.
type CaptureError struct {
	Round int
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture failed on photo %d: %v", e.Round, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// ExportError reports a composition that could not be produced.
type ExportError struct {
	Err error
}

func (e *ExportError) Error() string {
	return "export failed: " + e.Err.Error()
}

func (e *ExportError) Unwrap() error { return e.Err }
