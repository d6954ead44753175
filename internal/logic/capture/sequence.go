package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/PolaGo/internal/debug"
	"github.com/cjeanneret/PolaGo/internal/hw/camera"
	"github.com/cjeanneret/PolaGo/internal/logic/render"
	"github.com/cjeanneret/PolaGo/internal/store"
)

const (
	// ShotsPerSequence is the number of photos in a strip.
	ShotsPerSequence = 3
	// CountdownFrom is the first countdown value of every round.
	CountdownFrom = 3
)

// Timing holds the durations of one round.
type Timing struct {
	Tick  time.Duration // one countdown step
	Flash time.Duration // flash pulse
	Pause time.Duration // after each shot
}

// DefaultTiming is one second per tick, a 200 ms flash and a one second pause.
var DefaultTiming = Timing{
	Tick:  time.Second,
	Flash: 200 * time.Millisecond,
	Pause: time.Second,
}

func (t Timing) withDefaults() Timing {
	if t.Tick <= 0 {
		t.Tick = DefaultTiming.Tick
	}
	if t.Flash <= 0 {
		t.Flash = DefaultTiming.Flash
	}
	if t.Pause <= 0 {
		t.Pause = DefaultTiming.Pause
	}
	return t
}

// Total returns the duration of a complete sequence.
func (t Timing) Total() time.Duration {
	return ShotsPerSequence * (CountdownFrom*t.Tick + t.Pause)
}

// sleep waits d or until ctx is done, returning the cancellation cause.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-timer.C:
		return nil
	}
}

// sequence runs the rounds: countdown, flash, snapshot, pause. Every wait
// is a cancellation point.
func (s *Session) sequence(ctx context.Context) error {
	debug.Section("Capture sequence")
	for round := 1; round <= ShotsPerSequence; round++ {
		s.update(func() { s.round = round })

		for n := CountdownFrom; n >= 1; n-- {
			s.update(func() { s.countdown = n })
			debug.Countdown(round, ShotsPerSequence, n)
			if err := sleep(ctx, s.timing.Tick); err != nil {
				return err
			}
		}
		s.update(func() { s.countdown = 0 })

		s.fireFlash()
		h, err := s.snapshot()
		if err != nil {
			return &CaptureError{Round: round, Err: err}
		}
		debug.Shot(round, ShotsPerSequence, h.ID.String())

		if err := sleep(ctx, s.timing.Pause); err != nil {
			return err
		}
	}
	return nil
}

// fireFlash turns the flash on and schedules it off. The sequence does not
// wait for the off timer.
func (s *Session) fireFlash() {
	s.update(func() { s.flash = true })
	debug.Flash(true)
	if s.lamp != nil {
		if err := s.lamp.On(); err != nil {
			debug.Error(fmt.Errorf("flash lamp on: %w", err))
		}
	}

	t := time.AfterFunc(s.timing.Flash, s.flashOff)
	s.mu.Lock()
	if s.flashTimer != nil {
		s.flashTimer.Stop()
	}
	s.flashTimer = t
	s.mu.Unlock()
}

func (s *Session) flashOff() {
	s.update(func() { s.flash = false })
	debug.Flash(false)
	if s.lamp != nil {
		if err := s.lamp.Off(); err != nil {
			debug.Error(fmt.Errorf("flash lamp off: %w", err))
		}
	}
}

// snapshot grabs the current frame, runs it through the selected filter and
// registers the still.
func (s *Session) snapshot() (store.Handle, error) {
	s.mu.Lock()
	st, f := s.stream, s.filter
	s.mu.Unlock()
	if st == nil {
		return store.Handle{}, ErrCameraInactive
	}

	frame, err := st.Frame()
	if err != nil {
		switch {
		case errors.Is(err, camera.ErrStreamClosed):
			return store.Handle{}, fmt.Errorf("%w: %v", ErrCameraInactive, err)
		case errors.Is(err, camera.ErrFrameNotReady):
			return store.Handle{}, fmt.Errorf("%w: %v", render.ErrNoFrame, err)
		}
		return store.Handle{}, fmt.Errorf("grab frame: %w", err)
	}
	img, err := render.Snapshot(frame, f)
	if err != nil {
		return store.Handle{}, err
	}
	h, err := s.images.Put(img)
	if err != nil {
		return store.Handle{}, err
	}

	s.mu.Lock()
	if s.closed || !s.capturing {
		s.mu.Unlock()
		s.images.Release(h)
		return store.Handle{}, ErrCanceled
	}
	s.shots = append(s.shots, h)
	s.mu.Unlock()
	s.notify()
	return h, nil
}
