package flash

import (
	"github.com/cjeanneret/PolaGo/internal/debug"
	"github.com/cjeanneret/PolaGo/internal/hw/gpio"
)

// Lamp is a light fired for the duration of a flash pulse.
type Lamp interface {
	On() error
	Off() error
}

// GPIOLamp drives a lamp (LED strip behind a MOSFET, relay, ...) from one
// output pin. HIGH = lit.
type GPIOLamp struct {
	gpio gpio.Driver
	pin  int
}

// NewGPIOLamp configures pin as an output and leaves the lamp off.
func NewGPIOLamp(g gpio.Driver, pin int) *GPIOLamp {
	_ = g.SetupPin(pin, gpio.Output)
	_ = g.WritePin(pin, gpio.Low)
	return &GPIOLamp{gpio: g, pin: pin}
}

// On lights the lamp.
func (l *GPIOLamp) On() error {
	debug.Trace("Flash: pin %d -> HIGH", l.pin)
	return l.gpio.WritePin(l.pin, gpio.High)
}

// Off turns the lamp off.
func (l *GPIOLamp) Off() error {
	debug.Trace("Flash: pin %d -> LOW", l.pin)
	return l.gpio.WritePin(l.pin, gpio.Low)
}
