package camera

import (
	"context"
	"time"

	"github.com/cjeanneret/ssag/internal/debug"
)

// Mock is a simulated camera for development without hardware.
// It produces a dark sky with a few stars, brighter with more gain.
type Mock struct {
	Width  int
	Height int

	connected bool
	gain      int
}

// NewMock creates a simulated camera producing width x height frames.
func NewMock(width, height int) *Mock {
	return &Mock{Width: width, Height: height, gain: MinGain}
}

func (m *Mock) Connect() error {
	debug.Info("Using MOCK camera (development mode)")
	m.connected = true
	return nil
}

func (m *Mock) Disconnect() error {
	if m.connected {
		debug.Trace("Mock camera disconnected")
	}
	m.connected = false
	return nil
}

func (m *Mock) SetGain(gain int) error {
	if _, err := GainRegister(gain); err != nil {
		return err
	}
	m.gain = gain
	debug.Live("Mock gain set to %d", gain)
	return nil
}

// Expose waits for d, honoring ctx, and returns a synthetic frame.
func (m *Mock) Expose(ctx context.Context, d time.Duration) (*RawFrame, error) {
	if !m.connected {
		return nil, ErrNotConnected
	}
	if err := validateExposure(d); err != nil {
		return nil, err
	}

	debug.Live("Mock exposing for %v", d)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	frame := &RawFrame{
		Width:  m.Width,
		Height: m.Height,
		Data:   m.render(),
	}
	debug.Frame(frame.Width, frame.Height, len(frame.Data))
	return frame, nil
}

func (m *Mock) render() []byte {
	data := make([]byte, m.Width*m.Height)
	sky := byte(2 * m.gain)
	for i := range data {
		data[i] = sky
	}
	// Stars on a fixed lattice so frames are reproducible.
	for y := m.Height / 8; y < m.Height; y += m.Height/4 + 1 {
		for x := m.Width / 8; x < m.Width; x += m.Width/4 + 1 {
			m.star(data, x, y)
		}
	}
	return data
}

func (m *Mock) star(data []byte, cx, cy int) {
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			x, y := cx+dx, cy+dy
			if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
				continue
			}
			v := 255 - 50*(abs(dx)+abs(dy))
			data[y*m.Width+x] = byte(v)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// MockLoader simulates the firmware boot session. When Present is false,
// Connect fails as it does on a camera that already runs firmware.
type MockLoader struct {
	Present bool

	connected bool
	Loaded    bool
}

// NewMockLoader creates a simulated loader.
func NewMockLoader(present bool) *MockLoader {
	return &MockLoader{Present: present}
}

func (l *MockLoader) Connect() error {
	if !l.Present {
		return ErrNotFound
	}
	l.connected = true
	return nil
}

func (l *MockLoader) LoadFirmware(ctx context.Context) error {
	if !l.connected {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	debug.Info("Mock firmware loaded")
	l.Loaded = true
	return nil
}

func (l *MockLoader) Disconnect() error {
	l.connected = false
	return nil
}
