package geometry

import (
	"fmt"
	"image"
)

// Base measurements of the polaroid card at scale 1, in pixels.
const (
	BaseCardWidth     = 288 // w-72
	BasePadding       = 16  // p-4
	BasePhotoGap      = 8   // mb-2 under every photo
	BaseCaptionGap    = 8   // mt-2 above the caption
	BaseCaptionHeight = 28  // text-lg line height
	BaseCaptionSize   = 18  // text-lg font size
	BaseCornerRadius  = 6   // rounded-md
)

// StripPlan is the layout of a polaroid strip: photos stacked in one column
// above a centered date caption.
type StripPlan struct {
	Scale      int
	CardWidth  int
	CardHeight int
	Padding    int

	Photos []image.Rectangle // destination rectangle of each photo, in order

	CaptionBox      image.Rectangle
	CaptionBaseline float64 // y of the caption baseline
	CaptionSize     float64 // font size in points
	CornerRadius    float64
}

// CalculateStripPlan lays out one photo per frame size, top to bottom, each
// scaled to the card's inner width while keeping its aspect ratio.
// scale multiplies every measurement (2 = double resolution export).
func CalculateStripPlan(frames []image.Point, scale int) (*StripPlan, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("strip needs at least one photo")
	}
	if scale < 1 {
		return nil, fmt.Errorf("scale must be >= 1, got %d", scale)
	}

	pad := BasePadding * scale
	cardW := BaseCardWidth * scale
	innerW := cardW - 2*pad
	gap := BasePhotoGap * scale

	plan := &StripPlan{
		Scale:        scale,
		CardWidth:    cardW,
		Padding:      pad,
		Photos:       make([]image.Rectangle, 0, len(frames)),
		CaptionSize:  float64(BaseCaptionSize * scale),
		CornerRadius: float64(BaseCornerRadius * scale),
	}

	y := pad
	for i, f := range frames {
		if f.X <= 0 || f.Y <= 0 {
			return nil, fmt.Errorf("photo %d has invalid size %v", i+1, f)
		}
		h := (innerW*f.Y + f.X/2) / f.X
		if h < 1 {
			h = 1
		}
		plan.Photos = append(plan.Photos, image.Rect(pad, y, pad+innerW, y+h))
		y += h + gap
	}

	captionTop := y + BaseCaptionGap*scale
	captionH := BaseCaptionHeight * scale
	plan.CaptionBox = image.Rect(pad, captionTop, pad+innerW, captionTop+captionH)
	plan.CaptionBaseline = float64(captionTop) + float64(captionH)*0.72
	plan.CardHeight = captionTop + captionH + pad

	return plan, nil
}

// PhotoSize returns the destination size of photo i.
func (p *StripPlan) PhotoSize(i int) image.Point {
	return p.Photos[i].Size()
}

// CaptionCenterX returns the x coordinate the caption is centered on.
func (p *StripPlan) CaptionCenterX() float64 {
	return float64(p.CaptionBox.Min.X+p.CaptionBox.Max.X) / 2
}
