package button

import (
	"context"
	"time"

	"github.com/cjeanneret/PolaGo/internal/debug"
	"github.com/cjeanneret/PolaGo/internal/hw/gpio"
)

// Button is a push button wired between a pulled-up input pin and ground:
// idle reads HIGH, pressed reads LOW.
type Button struct {
	gpio     gpio.Driver
	pin      int
	poll     time.Duration
	debounce time.Duration
}

// New configures pin as an input. A press must read LOW for at least
// debounce before it is reported.
func New(g gpio.Driver, pin int, debounce time.Duration) *Button {
	_ = g.SetupPin(pin, gpio.Input)

	poll := debounce / 5
	if poll <= 0 {
		poll = time.Millisecond
	}
	return &Button{
		gpio:     g,
		pin:      pin,
		poll:     poll,
		debounce: debounce,
	}
}

// Watch polls the pin until ctx is cancelled and calls onPress once per
// debounced press. Holding the button down does not repeat.
func (b *Button) Watch(ctx context.Context, onPress func()) error {
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	var (
		lowSince time.Time
		fired    bool
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			lvl, err := b.gpio.ReadPin(b.pin)
			if err != nil {
				return err
			}
			if lvl == gpio.High {
				lowSince = time.Time{}
				fired = false
				continue
			}
			if lowSince.IsZero() {
				lowSince = now
			}
			if !fired && now.Sub(lowSince) >= b.debounce {
				fired = true
				debug.Live("Trigger button pressed (pin %d)", b.pin)
				onPress()
			}
		}
	}
}
