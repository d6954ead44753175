// Package render turns camera frames into stills and stills into the
// exported polaroid strip.
package render

import (
	"errors"
	"image"
	"io"
	"time"

	"github.com/cjeanneret/PolaGo/internal/debug"
	"github.com/cjeanneret/PolaGo/internal/logic/filter"
	"github.com/disintegration/imaging"
)

// Filename is the name the composition is downloaded and saved under.
const Filename = "polaroid.png"

// DateLayout formats the caption date as DD-MM-YYYY.
const DateLayout = "02-01-2006"

// PreviewQuality is the JPEG quality of live preview frames.
const PreviewQuality = 80

// ErrNoFrame is returned when there is no frame to rasterize.
var ErrNoFrame = errors.New("no frame available")

// FormatDate renders t as a caption date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Snapshot rasterizes frame through f at the frame's native size. The
// result is a new image; frame is left untouched.
func Snapshot(frame image.Image, f filter.Filter) (*image.NRGBA, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, ErrNoFrame
	}
	debug.Verbose("snapshot %dx%d filter=%s", frame.Bounds().Dx(), frame.Bounds().Dy(), f)
	return f.Apply(frame), nil
}

// Preview is Snapshot mirrored horizontally, the way the booth shows the
// live image. Captured stills are not mirrored.
func Preview(frame image.Image, f filter.Filter) (*image.NRGBA, error) {
	img, err := Snapshot(frame, f)
	if err != nil {
		return nil, err
	}
	return imaging.FlipH(img), nil
}

// EncodePreview writes img as a JPEG preview frame.
func EncodePreview(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(PreviewQuality))
}
