package filter

import (
	"image/color"
	"math"
)

// matrix is a 3x3 RGB color matrix as used by the CSS filter functions.
type matrix [3][3]float64

func grayscaleMatrix(a float64) matrix {
	a = clampUnit(a)
	r := 1 - a
	return matrix{
		{0.2126 + 0.7874*r, 0.7152 - 0.7152*r, 0.0722 - 0.0722*r},
		{0.2126 - 0.2126*r, 0.7152 + 0.2848*r, 0.0722 - 0.0722*r},
		{0.2126 - 0.2126*r, 0.7152 - 0.7152*r, 0.0722 + 0.9278*r},
	}
}

func sepiaMatrix(a float64) matrix {
	a = clampUnit(a)
	r := 1 - a
	return matrix{
		{0.393 + 0.607*r, 0.769 - 0.769*r, 0.189 - 0.189*r},
		{0.349 - 0.349*r, 0.686 + 0.314*r, 0.168 - 0.168*r},
		{0.272 - 0.272*r, 0.534 - 0.534*r, 0.131 + 0.869*r},
	}
}

func colorMatrix(m matrix) func(color.NRGBA) color.NRGBA {
	return func(c color.NRGBA) color.NRGBA {
		r, g, b := float64(c.R), float64(c.G), float64(c.B)
		return color.NRGBA{
			R: clampByte(m[0][0]*r + m[0][1]*g + m[0][2]*b),
			G: clampByte(m[1][0]*r + m[1][1]*g + m[1][2]*b),
			B: clampByte(m[2][0]*r + m[2][1]*g + m[2][2]*b),
			A: c.A,
		}
	}
}

// scaleChannels is CSS brightness(): a linear multiplier on each channel.
func scaleChannels(k float64) func(color.NRGBA) color.NRGBA {
	return func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clampByte(float64(c.R) * k),
			G: clampByte(float64(c.G) * k),
			B: clampByte(float64(c.B) * k),
			A: c.A,
		}
	}
}

// contrast is CSS contrast(): slope k around mid-gray.
func contrast(k float64) func(color.NRGBA) color.NRGBA {
	f := func(v uint8) uint8 {
		return clampByte((float64(v)-127.5)*k + 127.5)
	}
	return func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: f(c.R), G: f(c.G), B: f(c.B), A: c.A}
	}
}

func clampUnit(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}
