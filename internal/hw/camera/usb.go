package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/ssag/internal/debug"
	"github.com/google/gousb"
)

// Request types for vendor control transfers addressed to the device.
const (
	vendorOut = uint8(gousb.ControlOut | gousb.ControlVendor | gousb.ControlDevice)
	vendorIn  = uint8(gousb.ControlIn | gousb.ControlVendor | gousb.ControlDevice)
)

// transport is the part of an open USB device handle the SSAG protocol uses.
type transport interface {
	Control(rType, request uint8, value, index uint16, data []byte) (int, error)
	ReadBulk(ctx context.Context, buf []byte) (int, error)
	Close() error
}

// opener opens a transport or returns an error wrapping ErrNotFound.
type opener func() (transport, error)

// usbTransport owns a libusb context and, for imaging sessions, a claimed
// interface with its bulk IN endpoint.
type usbTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
}

// openUSB opens the first device matching vid:pid. When endpoint is non-zero,
// configuration 1 / interface 0 is claimed and the bulk IN endpoint opened.
func openUSB(vid, pid uint16, timeout time.Duration, endpoint int) (transport, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("open %04x:%04x: %w", vid, pid, err)
	}
	if dev == nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("%w (%04x:%04x)", ErrNotFound, vid, pid)
	}
	debug.Verbose("USB: opened %04x:%04x", vid, pid)
	dev.ControlTimeout = timeout

	t := &usbTransport{ctx: ctx, dev: dev}
	if endpoint == 0 {
		return t, nil
	}

	if err := dev.SetAutoDetach(true); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("set auto detach: %w", err)
	}
	if t.cfg, err = dev.Config(1); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("select configuration 1: %w", err)
	}
	if t.intf, err = t.cfg.Interface(0, 0); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("claim interface 0: %w", err)
	}
	if t.in, err = t.intf.InEndpoint(endpoint); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("open endpoint %d: %w", endpoint, err)
	}
	return t, nil
}

func (t *usbTransport) Control(rType, request uint8, value, index uint16, data []byte) (int, error) {
	dir := "out"
	if rType&gousb.ControlIn != 0 {
		dir = "in"
	}
	debug.USB(dir, request, value, index, len(data))
	return t.dev.Control(rType, request, value, index, data)
}

func (t *usbTransport) ReadBulk(ctx context.Context, buf []byte) (int, error) {
	if t.in == nil {
		return 0, fmt.Errorf("no bulk endpoint claimed")
	}
	return t.in.ReadContext(ctx, buf)
}

// Close releases interface, configuration, device and context in reverse
// order of acquisition and reports the first failure.
func (t *usbTransport) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		keep(t.cfg.Close())
		t.cfg = nil
	}
	if t.dev != nil {
		keep(t.dev.Close())
		t.dev = nil
	}
	if t.ctx != nil {
		keep(t.ctx.Close())
		t.ctx = nil
	}
	return first
}
