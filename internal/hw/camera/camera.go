// Package camera talks to the Orion StarShoot Autoguider (SSAG).
//
// Two device sessions exist. A Loader talks to the bare Cypress FX2 that
// enumerates when the camera is plugged in without firmware, and uploads the
// firmware image. A Camera talks to the re-enumerated device once firmware
// runs, and exposes single frames off the MT9M001 sensor.
package camera

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sensor geometry of a full frame.
const (
	ImageWidth  = 1280
	ImageHeight = 1024
)

// Gain limits accepted by SetGain.
const (
	MinGain = 1
	MaxGain = 15
)

// Exposure limits accepted by Expose. The duration travels as a 16-bit
// control value in milliseconds.
const (
	MinExposure = time.Millisecond
	MaxExposure = 65535 * time.Millisecond
)

var (
	// ErrNotFound is returned by Connect when no matching USB device is present.
	ErrNotFound = errors.New("camera: device not found")

	// ErrNotConnected is returned by operations that need an open session.
	ErrNotConnected = errors.New("camera: not connected")

	// ErrInvalidGain is returned by SetGain for values outside [MinGain, MaxGain].
	ErrInvalidGain = errors.New("camera: invalid gain")

	// ErrInvalidExposure is returned by Expose for durations outside [MinExposure, MaxExposure].
	ErrInvalidExposure = errors.New("camera: invalid exposure duration")
)

// RawFrame is an unencoded 8-bit intensity grid read off the sensor,
// row-major, one byte per pixel.
type RawFrame struct {
	Width  int
	Height int
	Data   []byte
}

// Size returns the number of pixel bytes the frame must carry.
func (f *RawFrame) Size() int {
	return f.Width * f.Height
}

// Validate checks that Data holds at least Width*Height bytes.
func (f *RawFrame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame geometry %dx%d", f.Width, f.Height)
	}
	if len(f.Data) < f.Size() {
		return fmt.Errorf("frame %dx%d carries %d bytes, want %d", f.Width, f.Height, len(f.Data), f.Size())
	}
	return nil
}

// Camera is the imaging session.
// Disconnect must be safe to call on a session that never connected.
type Camera interface {
	Connect() error
	Disconnect() error
	// SetGain selects the analog gain used by the next exposure.
	SetGain(gain int) error
	// Expose integrates for d and returns a complete frame or an error.
	Expose(ctx context.Context, d time.Duration) (*RawFrame, error)
}

// Loader is the firmware boot session.
type Loader interface {
	Connect() error
	LoadFirmware(ctx context.Context) error
	Disconnect() error
}

// GainRegister maps a gain setting (1-15) to the MT9M001 global gain
// register value: 1-4 use the analog gain in 0.125 steps, 5-8 add the
// 2x multiplier, 9-15 add digital gain on top.
func GainRegister(gain int) (byte, error) {
	switch {
	case gain < MinGain || gain > MaxGain:
		return 0, fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidGain, gain, MinGain, MaxGain)
	case gain <= 4:
		return byte(gain * 8), nil
	case gain <= 8:
		return byte(gain*4 + 0x40), nil
	default:
		return byte((gain - 8) + 0x60), nil
	}
}

func validateExposure(d time.Duration) error {
	if d < MinExposure || d > MaxExposure {
		return fmt.Errorf("%w: %v (must be %v-%v)", ErrInvalidExposure, d, MinExposure, MaxExposure)
	}
	return nil
}
