// Package indicator lights an LED while the sensor is integrating.
package indicator

import (
	"github.com/cjeanneret/ssag/internal/debug"
	"github.com/cjeanneret/ssag/internal/hw/gpio"
)

// Indicator signals that an exposure is in progress.
type Indicator interface {
	On() error
	Off() error
}

// Nop is used when no indicator pin is configured.
type Nop struct{}

func (Nop) On() error  { return nil }
func (Nop) Off() error { return nil }

// LED is an active-high LED wired to a single GPIO pin.
type LED struct {
	gpio gpio.Driver
	pin  int
}

// NewLED configures pin as an output and drives it low (off).
func NewLED(g gpio.Driver, pin int) (*LED, error) {
	if err := g.SetupOutput(pin); err != nil {
		return nil, err
	}
	if err := g.WritePin(pin, gpio.Low); err != nil {
		return nil, err
	}
	return &LED{gpio: g, pin: pin}, nil
}

// On lights the LED.
func (l *LED) On() error {
	debug.Trace("Indicator: pin %d -> HIGH", l.pin)
	return l.gpio.WritePin(l.pin, gpio.High)
}

// Off turns the LED off.
func (l *LED) Off() error {
	debug.Trace("Indicator: pin %d -> LOW", l.pin)
	return l.gpio.WritePin(l.pin, gpio.Low)
}
