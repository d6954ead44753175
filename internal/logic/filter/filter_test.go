package filter

import (
	"image"
	"image/color"
	"testing"
)

func TestAll_SelectionOrder(t *testing.T) {
	want := []string{"none", "grayscale", "sepia", "brightness", "contrast", "blur", "saturate", "vintage", "warm", "noir"}
	all := All()
	if len(all) != len(want) {
		t.Fatalf("len(All()) = %d, want %d", len(all), len(want))
	}
	for i, f := range all {
		if f.String() != want[i] {
			t.Errorf("All()[%d] = %q, want %q", i, f, want[i])
		}
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Filter
	}{
		{"none", None},
		{"noir", Noir},
		{"  Sepia ", Sepia},
		{"VINTAGE", Vintage},
		{"", None},
		{"invert", None},
		{"hue-rotate", None},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			if got := Parse(tc.in); got != tc.want {
				t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestExpression(t *testing.T) {
	cases := map[Filter]string{
		None:       "none",
		Grayscale:  "grayscale(100%)",
		Sepia:      "sepia(100%)",
		Brightness: "brightness(150%)",
		Contrast:   "contrast(150%)",
		Blur:       "blur(2px)",
		Saturate:   "saturate(200%)",
		Vintage:    "sepia(60%) contrast(90%) brightness(80%)",
		Warm:       "sepia(40%) brightness(110%)",
		Noir:       "grayscale(100%) contrast(120%)",
	}
	for f, want := range cases {
		if got := f.Expression(); got != want {
			t.Errorf("%s.Expression() = %q, want %q", f, got, want)
		}
	}
}

func TestInvalidFilterFallsBackToNone(t *testing.T) {
	f := Filter(42)
	if f.Valid() {
		t.Error("Filter(42) should not be valid")
	}
	if f.String() != "none" {
		t.Errorf("String() = %q, want none", f.String())
	}
	if f.Expression() != "none" {
		t.Errorf("Expression() = %q, want none", f.Expression())
	}
}

func TestLabel(t *testing.T) {
	if got := Noir.Label(); got != "Noir" {
		t.Errorf("Label() = %q, want Noir", got)
	}
}

func TestTextRoundTrip(t *testing.T) {
	var f Filter
	if err := f.UnmarshalText([]byte("warm")); err != nil {
		t.Fatal(err)
	}
	if f != Warm {
		t.Errorf("UnmarshalText(warm) = %v", f)
	}
	if err := f.UnmarshalText([]byte("bogus")); err != nil {
		t.Fatal(err)
	}
	if f != None {
		t.Errorf("UnmarshalText(bogus) = %v, want none", f)
	}
}

func solid(c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestApply_NoneIsUnfiltered(t *testing.T) {
	src := solid(color.NRGBA{200, 100, 50, 255})
	out := None.Apply(src)
	if got := out.NRGBAAt(3, 3); got != src.NRGBAAt(3, 3) {
		t.Errorf("None.Apply changed pixel: %v -> %v", src.NRGBAAt(3, 3), got)
	}
	if &out.Pix[0] == &src.Pix[0] {
		t.Error("Apply must return a copy, not the source buffer")
	}
}

func TestApply_NoirIsGrayscalePlusContrast(t *testing.T) {
	src := solid(color.NRGBA{200, 100, 50, 255})
	got := Noir.Apply(src).NRGBAAt(3, 3)
	if got.R != got.G || got.G != got.B {
		t.Fatalf("noir pixel not gray: %v", got)
	}
	// luma 117.65 -> 118, then (118-127.5)*1.2+127.5 = 116.1
	if got.R != 116 {
		t.Errorf("noir gray = %d, want 116", got.R)
	}

	gray := Grayscale.Apply(src).NRGBAAt(3, 3)
	if gray.R == got.R {
		t.Error("noir should differ from plain grayscale (contrast step missing)")
	}
}

func TestApply_Brightness(t *testing.T) {
	got := Brightness.Apply(solid(color.NRGBA{100, 200, 10, 255})).NRGBAAt(0, 0)
	want := color.NRGBA{150, 255, 15, 255}
	if got != want {
		t.Errorf("brightness(150%%) = %v, want %v", got, want)
	}
}

func TestApply_ContrastAroundMidGray(t *testing.T) {
	got := Contrast.Apply(solid(color.NRGBA{200, 55, 128, 255})).NRGBAAt(0, 0)
	// (200-127.5)*1.5+127.5 = 236.25; (55-127.5)*1.5+127.5 = 18.75; 128 -> 128.25
	want := color.NRGBA{236, 19, 128, 255}
	if got != want {
		t.Errorf("contrast(150%%) = %v, want %v", got, want)
	}
}

func TestApply_SepiaFullMatrix(t *testing.T) {
	got := Sepia.Apply(solid(color.NRGBA{100, 100, 100, 255})).NRGBAAt(0, 0)
	// rows sum to 1.351, 1.203, 0.937
	want := color.NRGBA{135, 120, 94, 255}
	if got != want {
		t.Errorf("sepia(100%%) = %v, want %v", got, want)
	}
}

func TestApply_PreservesAlphaAndBounds(t *testing.T) {
	src := solid(color.NRGBA{10, 20, 30, 128})
	for _, f := range All() {
		out := f.Apply(src)
		if out.Bounds().Size() != src.Bounds().Size() {
			t.Errorf("%s changed size to %v", f, out.Bounds())
		}
		if f != Blur && out.NRGBAAt(4, 4).A != 128 {
			t.Errorf("%s changed alpha to %d", f, out.NRGBAAt(4, 4).A)
		}
	}
}
