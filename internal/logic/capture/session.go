// Package capture owns the booth's session state: camera stream, selected
// filter, the three-shot countdown sequence and the captured photos.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/cjeanneret/PolaGo/internal/debug"
	"github.com/cjeanneret/PolaGo/internal/hw/camera"
	"github.com/cjeanneret/PolaGo/internal/hw/flash"
	"github.com/cjeanneret/PolaGo/internal/logic/filter"
	"github.com/cjeanneret/PolaGo/internal/logic/render"
	"github.com/cjeanneret/PolaGo/internal/store"
	"github.com/google/uuid"
)

// StatusLevel qualifies the status message.
type StatusLevel string

const (
	StatusInfo  StatusLevel = "info"
	StatusError StatusLevel = "error"
)

// State is a snapshot of the session, as sent to the browser.
type State struct {
	ID           string         `json:"id"`
	CameraActive bool           `json:"camera_active"`
	Filter       filter.Filter  `json:"filter"`
	FilterExpr   string         `json:"filter_expr"`
	Capturing    bool           `json:"is_capturing"`
	Countdown    *int           `json:"countdown"`
	Round        int            `json:"round"`
	Flash        bool           `json:"flash"`
	Images       []store.Handle `json:"images"`
	ExportReady  bool           `json:"export_ready"`
	Date         string         `json:"date"`
	Status       string         `json:"status,omitempty"`
	StatusLevel  StatusLevel    `json:"status_level,omitempty"`
}

// Options configures a Session.
type Options struct {
	Source camera.Source
	Images *store.Images    // nil = private registry
	Lamp   flash.Lamp       // optional GPIO flash
	Timing Timing           // zero fields = DefaultTiming
	Scale  int              // export resolution multiplier, default 2
	Filter filter.Filter    // initial filter
	Now    func() time.Time // caption clock, default time.Now
}

// Session is one booth session. It is safe for concurrent use: HTTP
// handlers, the trigger button and the sequence goroutine all share it.
type Session struct {
	id     uuid.UUID
	source camera.Source
	images *store.Images
	lamp   flash.Lamp
	timing Timing
	scale  int
	now    func() time.Time

	mu         sync.Mutex
	stream     camera.Stream
	filter     filter.Filter
	capturing  bool
	countdown  int // 0 = hidden
	round      int
	flash      bool
	flashTimer *time.Timer
	shots      []store.Handle
	status     string
	level      StatusLevel
	cancel     context.CancelCauseFunc
	done       chan struct{}
	closed     bool

	// notifyMu is held from snapshot to delivery so that observers see
	// states in the order they were taken.
	notifyMu  sync.Mutex
	obsMu     sync.Mutex
	observers map[int]func(State)
	nextObs   int
}

// NewSession creates a session with the camera off and no photos.
func NewSession(opts Options) (*Session, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("camera source is required")
	}
	if opts.Images == nil {
		opts.Images = store.NewImages()
	}
	if opts.Scale <= 0 {
		opts.Scale = 2
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if !opts.Filter.Valid() {
		opts.Filter = filter.None
	}
	return &Session{
		id:        uuid.New(),
		source:    opts.Source,
		images:    opts.Images,
		lamp:      opts.Lamp,
		timing:    opts.Timing.withDefaults(),
		scale:     opts.Scale,
		now:       opts.Now,
		filter:    opts.Filter,
		observers: make(map[int]func(State)),
	}, nil
}

// ID identifies the session.
func (s *Session) ID() uuid.UUID { return s.id }

// Timing returns the sequence timings in use.
func (s *Session) Timing() Timing { return s.timing }

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		ID:           s.id.String(),
		CameraActive: s.stream != nil,
		Filter:       s.filter,
		FilterExpr:   s.filter.Expression(),
		Capturing:    s.capturing,
		Round:        s.round,
		Flash:        s.flash,
		Images:       append([]store.Handle{}, s.shots...),
		ExportReady:  len(s.shots) == ShotsPerSequence,
		Date:         render.FormatDate(s.now()),
		Status:       s.status,
		StatusLevel:  s.level,
	}
	if s.countdown > 0 {
		n := s.countdown
		st.Countdown = &n
	}
	return st
}

// Subscribe registers fn to receive the state after every change. The
// returned function removes it. Deliveries are serialized; fn must not
// modify the session.
func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Session) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	st := s.State()
	s.obsMu.Lock()
	fns := make([]func(State), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// update applies fn under the lock and notifies observers.
func (s *Session) update(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
	s.notify()
}

func (s *Session) setStatus(level StatusLevel, msg string) {
	s.update(func() {
		s.status = msg
		s.level = level
	})
}

// SetFilter selects a filter by name; unknown names select none.
func (s *Session) SetFilter(name string) filter.Filter {
	f := filter.Parse(name)
	s.update(func() { s.filter = f })
	debug.Verbose("Filter: %s (%s)", f, f.Expression())
	return f
}

// Filter returns the selected filter.
func (s *Session) Filter() filter.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// CameraActive reports whether a stream is open.
func (s *Session) CameraActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// SetCameraActive opens or releases the camera stream. A failed
// acquisition leaves the camera off, sets an error status and returns an
// *AcquisitionError. Releasing an inactive camera does nothing.
func (s *Session) SetCameraActive(ctx context.Context, active bool) error {
	if !active {
		s.mu.Lock()
		st := s.stream
		s.stream = nil
		s.mu.Unlock()
		if st == nil {
			return nil
		}
		if err := st.Close(); err != nil {
			debug.Error(fmt.Errorf("release camera: %w", err))
		}
		debug.Camera(false, fmt.Sprintf("%T", s.source))
		s.setStatus(StatusInfo, "camera off")
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.stream != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	st, err := s.source.Open(ctx)
	if err != nil {
		aerr := &AcquisitionError{Err: err}
		debug.Error(aerr)
		s.setStatus(StatusError, aerr.Message())
		return aerr
	}

	s.mu.Lock()
	if s.closed || s.stream != nil {
		// Closed or activated concurrently; keep the existing state.
		s.mu.Unlock()
		st.Close()
		return nil
	}
	s.stream = st
	s.mu.Unlock()
	debug.Camera(true, fmt.Sprintf("%T", s.source))
	s.setStatus(StatusInfo, "camera on")
	return nil
}

// Preview returns the current frame, filtered and mirrored.
func (s *Session) Preview() (image.Image, error) {
	s.mu.Lock()
	st, f := s.stream, s.filter
	s.mu.Unlock()
	if st == nil {
		return nil, ErrCameraInactive
	}
	frame, err := st.Frame()
	if err != nil {
		return nil, err
	}
	return render.Preview(frame, f)
}

// begin takes the sequence slot. The returned context is canceled by
// Cancel, Close or the parent.
func (s *Session) begin(parent context.Context) (context.Context, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.capturing {
		s.mu.Unlock()
		debug.Verbose("Sequence already running, ignoring start")
		return nil, ErrSequenceRunning
	}
	released := s.images.Release(s.shots...)
	s.shots = nil
	s.capturing = true
	s.round = 0
	s.countdown = 0
	s.status = "capture started"
	s.level = StatusInfo
	ctx, cancel := context.WithCancelCause(parent)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	debug.Info("Sequence started (%d previous photos released)", released)
	s.notify()
	return ctx, nil
}

// finish resets the sequence flags and reports err as status.
func (s *Session) finish(err error) {
	var msg string
	level := StatusInfo
	switch {
	case err == nil:
		msg = fmt.Sprintf("%d photos captured", ShotsPerSequence)
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		msg = "capture canceled"
	default:
		cause := err
		var cerr *CaptureError
		if errors.As(err, &cerr) {
			cause = cerr.Err
		}
		msg = "capture failed: " + cause.Error()
		level = StatusError
	}

	s.mu.Lock()
	s.capturing = false
	s.countdown = 0
	s.round = 0
	cancel := s.cancel
	s.cancel = nil
	done := s.done
	s.status = msg
	s.level = level
	s.mu.Unlock()

	if cancel != nil {
		cancel(nil)
	}
	if err != nil {
		debug.Error(fmt.Errorf("sequence: %w", err))
	} else {
		debug.Info("Sequence complete")
	}
	s.notify()
	if done != nil {
		close(done)
	}
}

// Run starts a sequence and blocks until it ends. It returns
// ErrSequenceRunning, leaving the running sequence untouched, when one is
// already in progress.
func (s *Session) Run(ctx context.Context) error {
	seqCtx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	err = s.sequence(seqCtx)
	s.finish(err)
	return err
}

// Start is Run in the background. Errors after the start are reported
// through the status and the debug log.
func (s *Session) Start(ctx context.Context) error {
	seqCtx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	go func() {
		s.finish(s.sequence(seqCtx))
	}()
	return nil
}

// Wait blocks until the current sequence, if any, has ended.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Cancel stops the running sequence at its next wait. It reports whether a
// sequence was running.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel(ErrCanceled)
	return true
}

// ExportReady reports whether the strip can be exported.
func (s *Session) ExportReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shots) == ShotsPerSequence
}

// ImagePNG returns the encoded still of a photo of this session.
func (s *Session) ImagePNG(id uuid.UUID) ([]byte, error) {
	s.mu.Lock()
	found := false
	for _, h := range s.shots {
		if h.ID == id {
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return nil, store.ErrNotFound
	}
	return s.images.PNG(id)
}

// Export writes the polaroid strip of the three photos to w as PNG.
func (s *Session) Export(w io.Writer) error {
	s.mu.Lock()
	shots := append([]store.Handle(nil), s.shots...)
	s.mu.Unlock()
	if len(shots) != ShotsPerSequence {
		return &ExportError{Err: ErrNotReady}
	}

	photos := make([]image.Image, len(shots))
	for i, h := range shots {
		img, err := s.images.Image(h.ID)
		if err != nil {
			return &ExportError{Err: fmt.Errorf("photo %d: %w", i+1, err)}
		}
		photos[i] = img
	}
	if err := render.Export(w, photos, render.FormatDate(s.now()), s.scale); err != nil {
		eerr := &ExportError{Err: err}
		debug.Error(eerr)
		s.setStatus(StatusError, "export failed")
		return eerr
	}
	return nil
}

// Close cancels any running sequence, then releases the camera and the
// session's photos.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel(ErrCanceled)
	}
	s.Wait()

	s.mu.Lock()
	st := s.stream
	s.stream = nil
	if s.flashTimer != nil {
		s.flashTimer.Stop()
	}
	s.flash = false
	shots := s.shots
	s.shots = nil
	s.mu.Unlock()

	if st != nil {
		st.Close()
	}
	if s.lamp != nil {
		s.lamp.Off()
	}
	n := s.images.Release(shots...)
	debug.Verbose("Session closed, %d photos released", n)
	return nil
}
