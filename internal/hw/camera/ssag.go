package camera

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cjeanneret/ssag/internal/debug"
)

// Vendor requests understood by the SSAG firmware.
const (
	requestExpose        = 18
	requestSetInitPacket = 19
	requestPreExpose     = 20
)

// Sensor readout layout. Every row is followed by horizontal blanking and
// the frame by vertical blanking plus one extra line.
const (
	horizontalBlanking = 244
	verticalBlanking   = 25
	pixelOffset        = 8
	rowStart           = 12
	columnStart        = 20

	bufferWidth    = ImageWidth + horizontalBlanking
	bufferHeight   = ImageHeight + verticalBlanking + 1
	bufferSize     = bufferWidth * bufferHeight
	bufferEndpoint = 2
)

// SSAG is the imaging session of a StarShoot Autoguider running firmware.
type SSAG struct {
	open    opener
	timeout time.Duration

	dev  transport
	gain byte // MT9M001 register value
}

// NewSSAG creates a session for the device at vid:pid. Nothing is opened
// until Connect.
func NewSSAG(vid, pid uint16, timeout time.Duration) *SSAG {
	return newSSAG(func() (transport, error) {
		return openUSB(vid, pid, timeout, bufferEndpoint)
	}, timeout)
}

func newSSAG(open opener, timeout time.Duration) *SSAG {
	gain, _ := GainRegister(MinGain)
	return &SSAG{
		open:    open,
		timeout: timeout,
		gain:    gain,
	}
}

// Connect opens the device. Calling it on a connected session is a no-op.
func (s *SSAG) Connect() error {
	if s.dev != nil {
		return nil
	}
	dev, err := s.open()
	if err != nil {
		return err
	}
	s.dev = dev
	debug.Info("Camera connected")
	return nil
}

// Disconnect closes the device. It is a no-op if the session is not connected.
func (s *SSAG) Disconnect() error {
	if s.dev == nil {
		return nil
	}
	err := s.dev.Close()
	s.dev = nil
	debug.Verbose("Camera disconnected")
	return err
}

// SetGain stores the gain; it is sent to the sensor with the next exposure.
func (s *SSAG) SetGain(gain int) error {
	reg, err := GainRegister(gain)
	if err != nil {
		return err
	}
	s.gain = reg
	debug.Live("Gain set to %d (register 0x%02x)", gain, reg)
	return nil
}

// Expose integrates for d and reads one full frame off the bulk endpoint.
func (s *SSAG) Expose(ctx context.Context, d time.Duration) (*RawFrame, error) {
	if s.dev == nil {
		return nil, ErrNotConnected
	}
	if err := validateExposure(d); err != nil {
		return nil, err
	}

	if err := s.initSequence(); err != nil {
		return nil, err
	}

	ms := uint16(d / time.Millisecond)
	ack := make([]byte, 2)
	debug.Live("Exposing for %v", d)
	if _, err := s.dev.Control(vendorIn, requestExpose, ms, 0, ack); err != nil {
		return nil, fmt.Errorf("start exposure: %w", err)
	}

	// Readout starts once integration ends.
	readCtx, cancel := context.WithTimeout(ctx, d+s.timeout)
	defer cancel()

	buf := make([]byte, bufferSize)
	if err := readFull(readCtx, s.dev, buf); err != nil {
		return nil, err
	}

	frame := &RawFrame{
		Width:  ImageWidth,
		Height: ImageHeight,
		Data:   trimBuffer(buf),
	}
	debug.Frame(frame.Width, frame.Height, len(frame.Data))
	return frame, nil
}

// initSequence uploads the sensor window and gain, then arms the readout.
func (s *SSAG) initSequence() error {
	packet := initPacket(s.gain)
	if _, err := s.dev.Control(vendorOut, requestSetInitPacket, bufferWidth, 0, packet); err != nil {
		return fmt.Errorf("send init packet: %w", err)
	}
	if _, err := s.dev.Control(vendorOut, requestPreExpose, pixelOffset, 0, nil); err != nil {
		return fmt.Errorf("pre-expose: %w", err)
	}
	return nil
}

// initPacket lays out the MT9M001 window and gain registers, big-endian:
// four per-channel gains, row start, column start, window height-1,
// window width-1, horizontal and vertical blanking.
func initPacket(gain byte) []byte {
	p := make([]byte, 18)
	p[0], p[1], p[2], p[3] = gain, gain, gain, gain
	binary.BigEndian.PutUint16(p[4:], rowStart)
	binary.BigEndian.PutUint16(p[6:], columnStart)
	binary.BigEndian.PutUint16(p[8:], ImageHeight-1)
	binary.BigEndian.PutUint16(p[10:], ImageWidth-1)
	binary.BigEndian.PutUint16(p[12:], horizontalBlanking)
	binary.BigEndian.PutUint16(p[14:], verticalBlanking)
	return p
}

func readFull(ctx context.Context, t transport, buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := t.ReadBulk(ctx, buf[n:])
		n += m
		if err != nil {
			return fmt.Errorf("read frame after %d of %d bytes: %w", n, len(buf), err)
		}
		if m == 0 {
			return fmt.Errorf("read frame: device sent no data after %d of %d bytes", n, len(buf))
		}
	}
	debug.Trace("Read %d bytes from bulk endpoint", n)
	return nil
}

// trimBuffer drops the blanking columns and trailing lines of a raw
// sensor buffer, keeping ImageWidth x ImageHeight pixels.
func trimBuffer(buf []byte) []byte {
	img := make([]byte, ImageWidth*ImageHeight)
	for y := 0; y < ImageHeight; y++ {
		copy(img[y*ImageWidth:(y+1)*ImageWidth], buf[y*bufferWidth:])
	}
	return img
}
