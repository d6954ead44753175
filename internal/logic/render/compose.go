package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"

	"github.com/cjeanneret/PolaGo/internal/debug"
	"github.com/cjeanneret/PolaGo/internal/logic/geometry"
	"github.com/disintegration/imaging"
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
)

const (
	cardColor    = "#FFFFFF"
	captionColor = "#374151"
)

var (
	fontOnce   sync.Once
	fontSource *text.FontSource
	fontErr    error
)

func captionFont(size float64) (text.Face, error) {
	fontOnce.Do(func() {
		fontSource, fontErr = text.NewFontSource(gobold.TTF)
	})
	if fontErr != nil {
		return nil, fmt.Errorf("load caption font: %w", fontErr)
	}
	return fontSource.Face(size), nil
}

// Compose lays photos out top to bottom on a white card with the date
// caption underneath. Every measurement is multiplied by scale.
func Compose(photos []image.Image, date string, scale int) (*image.NRGBA, error) {
	sizes := make([]image.Point, len(photos))
	for i, p := range photos {
		if p == nil {
			return nil, fmt.Errorf("photo %d: %w", i+1, ErrNoFrame)
		}
		sizes[i] = p.Bounds().Size()
	}
	plan, err := geometry.CalculateStripPlan(sizes, scale)
	if err != nil {
		return nil, fmt.Errorf("strip layout: %w", err)
	}
	debug.PrintStruct("strip plan", *plan)

	w, h := float64(plan.CardWidth), float64(plan.CardHeight)
	dc := gg.NewContext(plan.CardWidth, plan.CardHeight)
	defer dc.Close()

	dc.SetHexColor(cardColor)
	dc.DrawRoundedRectangle(0, 0, w, h, plan.CornerRadius)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("fill card: %w", err)
	}

	// Photos are pasted at their final place on a card-sized layer, which
	// then fills each rounded photo rectangle as a pattern.
	layer := imaging.New(plan.CardWidth, plan.CardHeight, color.NRGBA{})
	for i, p := range photos {
		size := plan.PhotoSize(i)
		fitted := imaging.Fill(p, size.X, size.Y, imaging.Center, imaging.Lanczos)
		layer = imaging.Paste(layer, fitted, plan.Photos[i].Min)
	}
	dc.SetFillPattern(dc.CreateImagePattern(gg.ImageBufFromImage(layer), 0, 0, plan.CardWidth, plan.CardHeight))
	for i, r := range plan.Photos {
		dc.DrawRoundedRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()), plan.CornerRadius)
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("draw photo %d: %w", i+1, err)
		}
	}

	face, err := captionFont(plan.CaptionSize)
	if err != nil {
		return nil, err
	}
	dc.SetFont(face)
	dc.SetHexColor(captionColor)
	dc.DrawStringAnchored(date, plan.CaptionCenterX(), plan.CaptionBaseline, 0.5, 0)

	if err := dc.FlushGPU(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	return imaging.Clone(dc.Image()), nil
}

// Export composes photos and writes the strip as PNG to w.
func Export(w io.Writer, photos []image.Image, date string, scale int) error {
	img, err := Compose(photos, date, scale)
	if err != nil {
		return err
	}
	if err := imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return fmt.Errorf("encode %s: %w", Filename, err)
	}
	debug.Info("Exported %s (%dx%d, date %s)", Filename, img.Bounds().Dx(), img.Bounds().Dy(), date)
	return nil
}
