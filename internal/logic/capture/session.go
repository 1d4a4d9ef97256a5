package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cjeanneret/ssag/internal/debug"
	"github.com/cjeanneret/ssag/internal/hw/camera"
	"github.com/cjeanneret/ssag/internal/hw/indicator"
	"github.com/cjeanneret/ssag/internal/persist"
)

// DefaultExposure is used when a capture is requested without a duration.
const DefaultExposure = 1000 * time.Millisecond

var (
	// ErrDeviceNotFound is returned when the imaging camera cannot be connected.
	ErrDeviceNotFound = errors.New("device not found or could not connect")

	// ErrBootDeviceNotFound is returned when no camera waits for firmware.
	ErrBootDeviceNotFound = errors.New("device not found or the device already has firmware loaded")

	// ErrExposureFailed is returned when the camera produced no frame.
	ErrExposureFailed = errors.New("exposure failed")

	// ErrShortFrame is returned when a frame carries fewer than Width*Height bytes.
	ErrShortFrame = errors.New("incomplete frame")
)

// Action is what one invocation does.
type Action int

const (
	ActionHelp Action = iota
	ActionBoot
	ActionCapture
)

func (a Action) String() string {
	switch a {
	case ActionHelp:
		return "help"
	case ActionBoot:
		return "boot"
	case ActionCapture:
		return "capture"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Request is the parsed intent of one invocation.
type Request struct {
	Action   Action
	Gain     int           // 0 = leave the camera default
	Duration time.Duration // exposure length for ActionCapture
}

// Controller runs one device session per invocation.
type Controller struct {
	camera    camera.Camera
	newLoader func() camera.Loader
	persister persist.ImagePersister
	indicator indicator.Indicator
	stdout    io.Writer
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Camera    camera.Camera
	NewLoader func() camera.Loader // called only for ActionBoot
	Persister persist.ImagePersister
	Indicator indicator.Indicator // optional
	Stdout    io.Writer           // usage text
}

func NewController(d Deps) *Controller {
	ind := d.Indicator
	if ind == nil {
		ind = indicator.Nop{}
	}
	return &Controller{
		camera:    d.Camera,
		newLoader: d.NewLoader,
		persister: d.Persister,
		indicator: ind,
		stdout:    d.Stdout,
	}
}

// Run dispatches the request. Whatever the branch, the imaging camera is
// disconnected before Run returns.
func (c *Controller) Run(ctx context.Context, req Request) error {
	defer func() {
		if err := c.camera.Disconnect(); err != nil {
			debug.Error(fmt.Errorf("disconnect: %w", err))
		}
	}()

	debug.Value("Action", req.Action)
	switch req.Action {
	case ActionBoot:
		return c.boot(ctx)
	case ActionCapture:
		return c.capture(ctx, req)
	default:
		WriteUsage(c.stdout)
		return nil
	}
}

func (c *Controller) boot(ctx context.Context) error {
	debug.Section("Firmware Boot")
	loader := c.newLoader()

	debug.Step(1, "Connecting to loader")
	if err := loader.Connect(); err != nil {
		return fmt.Errorf("%w: %v", ErrBootDeviceNotFound, err)
	}
	defer func() {
		if err := loader.Disconnect(); err != nil {
			debug.Error(fmt.Errorf("loader disconnect: %w", err))
		}
	}()

	debug.Step(2, "Uploading firmware")
	if err := loader.LoadFirmware(ctx); err != nil {
		return fmt.Errorf("load firmware: %w", err)
	}
	return nil
}

func (c *Controller) capture(ctx context.Context, req Request) error {
	debug.Section("Capture")
	duration := req.Duration
	if duration == 0 {
		duration = DefaultExposure
	}

	debug.Step(1, "Connecting to camera")
	if err := c.camera.Connect(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	}

	if req.Gain != 0 {
		debug.Step(2, "Setting gain")
		if err := c.camera.SetGain(req.Gain); err != nil {
			return fmt.Errorf("set gain: %w", err)
		}
	}

	debug.Step(3, "Exposing")
	frame, err := c.expose(ctx, duration)
	if err != nil {
		return err
	}

	debug.Step(4, "Writing frame")
	if err := frame.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrShortFrame, err)
	}
	path, err := c.persister.Persist(frame)
	if err != nil {
		return fmt.Errorf("persist frame: %w", err)
	}
	debug.Info("Frame saved to %s", path)
	return nil
}

// expose keeps the indicator lit for the length of the exposure.
func (c *Controller) expose(ctx context.Context, d time.Duration) (*camera.RawFrame, error) {
	if err := c.indicator.On(); err != nil {
		debug.Error(fmt.Errorf("indicator on: %w", err))
	}
	frame, err := c.camera.Expose(ctx, d)
	if err := c.indicator.Off(); err != nil {
		debug.Error(fmt.Errorf("indicator off: %w", err))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExposureFailed, err)
	}
	if frame == nil {
		return nil, fmt.Errorf("%w: camera returned no frame", ErrExposureFailed)
	}
	return frame, nil
}
