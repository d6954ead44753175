// Package filter implements the booth's cosmetic filters. Every filter is a
// short list of CSS-like operations so that the browser preview (CSS
// `filter:` expression) and the captured still (pixels, via imaging) are
// produced from the same definition.
package filter

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// Filter identifies one of the fixed cosmetic filters.
type Filter int

// The order matches the selection control.
const (
	None Filter = iota
	Grayscale
	Sepia
	Brightness
	Contrast
	Blur
	Saturate
	Vintage
	Warm
	Noir
)

var names = [...]string{
	None:       "none",
	Grayscale:  "grayscale",
	Sepia:      "sepia",
	Brightness: "brightness",
	Contrast:   "contrast",
	Blur:       "blur",
	Saturate:   "saturate",
	Vintage:    "vintage",
	Warm:       "warm",
	Noir:       "noir",
}

// OpKind is a single CSS filter function.
type OpKind string

const (
	OpGrayscale  OpKind = "grayscale"
	OpSepia      OpKind = "sepia"
	OpBrightness OpKind = "brightness"
	OpContrast   OpKind = "contrast"
	OpBlur       OpKind = "blur"
	OpSaturate   OpKind = "saturate"
)

// Op is one step of a filter. Amount is a ratio (1.0 = 100%) for every kind
// except OpBlur, where it is the radius in pixels.
type Op struct {
	Kind   OpKind
	Amount float64
}

var ops = [...][]Op{
	None:       nil,
	Grayscale:  {{OpGrayscale, 1}},
	Sepia:      {{OpSepia, 1}},
	Brightness: {{OpBrightness, 1.5}},
	Contrast:   {{OpContrast, 1.5}},
	Blur:       {{OpBlur, 2}},
	Saturate:   {{OpSaturate, 2}},
	Vintage:    {{OpSepia, 0.6}, {OpContrast, 0.9}, {OpBrightness, 0.8}},
	Warm:       {{OpSepia, 0.4}, {OpBrightness, 1.1}},
	Noir:       {{OpGrayscale, 1}, {OpContrast, 1.2}},
}

// All returns every filter in selection order.
func All() []Filter {
	all := make([]Filter, len(names))
	for i := range names {
		all[i] = Filter(i)
	}
	return all
}

// Parse maps a filter name to its Filter. Unknown names fall back to None.
func Parse(name string) Filter {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range names {
		if n == name {
			return Filter(i)
		}
	}
	return None
}

// Valid reports whether f is one of the known filters.
func (f Filter) Valid() bool {
	return f >= None && int(f) < len(names)
}

func (f Filter) String() string {
	if !f.Valid() {
		return names[None]
	}
	return names[f]
}

// Label is the capitalized name shown in the selection control.
func (f Filter) Label() string {
	s := f.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// Ops returns the operations making up f.
func (f Filter) Ops() []Op {
	if !f.Valid() {
		return nil
	}
	return append([]Op(nil), ops[f]...)
}

// Expression renders f as a CSS filter value, e.g. "grayscale(100%) contrast(120%)".
func (f Filter) Expression() string {
	o := f.Ops()
	if len(o) == 0 {
		return "none"
	}
	parts := make([]string, len(o))
	for i, op := range o {
		if op.Kind == OpBlur {
			parts[i] = fmt.Sprintf("blur(%gpx)", op.Amount)
			continue
		}
		parts[i] = fmt.Sprintf("%s(%g%%)", op.Kind, math.Round(op.Amount*100))
	}
	return strings.Join(parts, " ")
}

// MarshalText encodes f as its name.
func (f Filter) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText decodes a filter name; unknown names decode to None.
func (f *Filter) UnmarshalText(b []byte) error {
	*f = Parse(string(b))
	return nil
}

// Apply draws img through f and returns a new image. None returns a copy of
// img unchanged.
func (f Filter) Apply(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for _, op := range f.Ops() {
		out = applyOp(out, op)
	}
	return out
}

func applyOp(img *image.NRGBA, op Op) *image.NRGBA {
	switch op.Kind {
	case OpGrayscale:
		return imaging.AdjustFunc(img, colorMatrix(grayscaleMatrix(op.Amount)))
	case OpSepia:
		return imaging.AdjustFunc(img, colorMatrix(sepiaMatrix(op.Amount)))
	case OpBrightness:
		return imaging.AdjustFunc(img, scaleChannels(op.Amount))
	case OpContrast:
		return imaging.AdjustFunc(img, contrast(op.Amount))
	case OpSaturate:
		// HSL saturation, close enough to the CSS matrix for the preview.
		return imaging.AdjustSaturation(img, (op.Amount-1)*100)
	case OpBlur:
		return imaging.Blur(img, op.Amount)
	default:
		return img
	}
}
