package camera

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cjeanneret/ssag/internal/debug"
	"github.com/dustin/go-humanize"
	"github.com/marcinbor85/gohex"
)

// FX2 firmware upload protocol: vendor request 0xA0 writes internal RAM,
// and writing CPUCS holds or releases the 8051 core.
const (
	requestFirmwareLoad = 0xA0
	cpucsAddress        = 0xE600
	firmwareChunkSize   = 1024
)

// FirmwareLoader is the boot session of a camera without firmware.
type FirmwareLoader struct {
	open         opener
	firmwarePath string

	dev transport
}

// NewFirmwareLoader creates a loader session for the bare FX2 at vid:pid.
// firmwarePath points to an Intel HEX image.
func NewFirmwareLoader(vid, pid uint16, timeout time.Duration, firmwarePath string) *FirmwareLoader {
	return &FirmwareLoader{
		open: func() (transport, error) {
			return openUSB(vid, pid, timeout, 0)
		},
		firmwarePath: firmwarePath,
	}
}

// Connect opens the loader device. ErrNotFound here usually means the
// camera already runs firmware and enumerates under its imaging id.
func (l *FirmwareLoader) Connect() error {
	if l.dev != nil {
		return nil
	}
	dev, err := l.open()
	if err != nil {
		return err
	}
	l.dev = dev
	debug.Info("Loader connected")
	return nil
}

// Disconnect closes the loader device. It is a no-op if not connected.
func (l *FirmwareLoader) Disconnect() error {
	if l.dev == nil {
		return nil
	}
	err := l.dev.Close()
	l.dev = nil
	return err
}

// LoadFirmware uploads the firmware image with the CPU held in reset, then
// releases it. The device re-enumerates under its imaging id afterwards.
func (l *FirmwareLoader) LoadFirmware(ctx context.Context) error {
	if l.dev == nil {
		return ErrNotConnected
	}

	f, err := os.Open(l.firmwarePath)
	if err != nil {
		return fmt.Errorf("open firmware: %w", err)
	}
	defer f.Close()

	segments, err := readFirmware(f)
	if err != nil {
		return fmt.Errorf("parse firmware %s: %w", l.firmwarePath, err)
	}
	return uploadFirmware(ctx, l.dev, segments)
}

// readFirmware parses an Intel HEX image into address-ordered data segments.
func readFirmware(r io.Reader) ([]gohex.DataSegment, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, err
	}
	return mem.GetDataSegments(), nil
}

// uploadFirmware writes the segments with the CPU held in reset. On a failed
// write the reset is released again so the device does not stay halted.
func uploadFirmware(ctx context.Context, dev transport, segments []gohex.DataSegment) error {
	total := 0
	for _, s := range segments {
		if s.Address+uint32(len(s.Data)) > 0x10000 {
			return fmt.Errorf("firmware segment at 0x%x does not fit in 16-bit address space", s.Address)
		}
		total += len(s.Data)
	}
	debug.Live("Uploading firmware: %d segments, %s", len(segments), humanize.Bytes(uint64(total)))

	if err := setCPUReset(dev, true); err != nil {
		return err
	}
	if err := writeSegments(ctx, dev, segments); err != nil {
		if rerr := setCPUReset(dev, false); rerr != nil {
			debug.Error(rerr)
		}
		return err
	}
	if err := setCPUReset(dev, false); err != nil {
		return err
	}
	debug.Info("Firmware loaded")
	return nil
}

func writeSegments(ctx context.Context, dev transport, segments []gohex.DataSegment) error {
	for _, s := range segments {
		for off := 0; off < len(s.Data); off += firmwareChunkSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			end := off + firmwareChunkSize
			if end > len(s.Data) {
				end = len(s.Data)
			}
			addr := uint16(s.Address) + uint16(off)
			if _, err := dev.Control(vendorOut, requestFirmwareLoad, addr, 0, s.Data[off:end]); err != nil {
				return fmt.Errorf("write firmware at 0x%04x: %w", addr, err)
			}
		}
	}
	return nil
}

func setCPUReset(dev transport, hold bool) error {
	v := byte(0)
	if hold {
		v = 1
	}
	if _, err := dev.Control(vendorOut, requestFirmwareLoad, cpucsAddress, 0, []byte{v}); err != nil {
		return fmt.Errorf("write CPUCS=%d: %w", v, err)
	}
	return nil
}
