package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
)

// Mock is a Source producing a moving colour-bar test pattern. Setting Err
// makes Open fail with it, which stands in for a refused or missing camera.
type Mock struct {
	opts Options
	Err  error

	mu    sync.Mutex
	opens int
}

var _ Source = (*Mock)(nil)

// NewMock creates a test-pattern source.
func NewMock(opts Options) *Mock {
	return &Mock{opts: opts.withDefaults()}
}

// Open returns a new test-pattern stream.
func (m *Mock) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.opens++
	return &mockStream{width: m.opts.Width, height: m.opts.Height}, nil
}

// Opens returns how many streams were opened successfully.
func (m *Mock) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

var bars = [...]color.NRGBA{
	{192, 192, 192, 255}, // gray
	{192, 192, 0, 255},   // yellow
	{0, 192, 192, 255},   // cyan
	{0, 192, 0, 255},     // green
	{192, 0, 192, 255},   // magenta
	{192, 0, 0, 255},     // red
	{0, 0, 192, 255},     // blue
}

type mockStream struct {
	width, height int

	mu     sync.Mutex
	frame  int
	closed bool
}

func (s *mockStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	s.frame++
	return testPattern(s.width, s.height, s.frame), nil
}

func (s *mockStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// testPattern draws vertical colour bars with a white square sliding along
// the bottom quarter, so consecutive frames differ.
func testPattern(w, h, n int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	barW := (w + len(bars) - 1) / len(bars)
	side := h / 4
	boxX := (n * 8) % (w + side)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := bars[x/barW]
			if y >= h-side && x >= boxX-side && x < boxX {
				c = color.NRGBA{255, 255, 255, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}
