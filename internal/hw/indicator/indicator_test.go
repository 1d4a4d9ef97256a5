package indicator

import (
	"errors"
	"testing"

	"github.com/cjeanneret/ssag/internal/hw/gpio"
)

// recordingDriver records GPIO calls for verification.
type recordingDriver struct {
	calls    []gpioCall
	setupErr error
}

type gpioCall struct {
	op    string
	pin   int
	level gpio.Level
}

func (d *recordingDriver) SetupOutput(pin int) error {
	d.calls = append(d.calls, gpioCall{op: "setup", pin: pin})
	return d.setupErr
}

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	d.calls = append(d.calls, gpioCall{op: "write", pin: pin, level: level})
	return nil
}

func (d *recordingDriver) Close() error { return nil }

func TestNewLED_StartsOff(t *testing.T) {
	drv := &recordingDriver{}
	if _, err := NewLED(drv, 18); err != nil {
		t.Fatalf("NewLED: %v", err)
	}
	want := []gpioCall{
		{op: "setup", pin: 18},
		{op: "write", pin: 18, level: gpio.Low},
	}
	if len(drv.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", drv.calls, want)
	}
	for i := range want {
		if drv.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, drv.calls[i], want[i])
		}
	}
}

func TestLED_OnOff(t *testing.T) {
	drv := &recordingDriver{}
	led, err := NewLED(drv, 23)
	if err != nil {
		t.Fatalf("NewLED: %v", err)
	}
	drv.calls = nil

	if err := led.On(); err != nil {
		t.Fatalf("On: %v", err)
	}
	if err := led.Off(); err != nil {
		t.Fatalf("Off: %v", err)
	}

	want := []gpioCall{
		{op: "write", pin: 23, level: gpio.High},
		{op: "write", pin: 23, level: gpio.Low},
	}
	if len(drv.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", drv.calls, want)
	}
	for i := range want {
		if drv.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, drv.calls[i], want[i])
		}
	}
}

func TestNewLED_SetupError(t *testing.T) {
	drv := &recordingDriver{setupErr: errors.New("no such pin")}
	if _, err := NewLED(drv, 99); err == nil {
		t.Error("expected setup error, got nil")
	}
}

func TestImplementsIndicator(t *testing.T) {
	var _ Indicator = Nop{}
	var _ Indicator = &LED{}
}
