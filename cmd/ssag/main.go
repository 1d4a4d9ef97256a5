package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cjeanneret/ssag/internal/config"
	"github.com/cjeanneret/ssag/internal/debug"
	"github.com/cjeanneret/ssag/internal/hw/camera"
	"github.com/cjeanneret/ssag/internal/hw/gpio"
	"github.com/cjeanneret/ssag/internal/hw/indicator"
	"github.com/cjeanneret/ssag/internal/logic/capture"
	"github.com/cjeanneret/ssag/internal/persist"
	"github.com/spf13/cobra"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks a malformed command line.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run parses args, executes one session and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(newOptions(args, stderr), stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "ssag: %v\n", err)
		var ue *usageError
		if errors.As(err, &ue) {
			return exitUsage
		}
		return exitFailure
	}
	return exitOK
}

func newRootCmd(opts *options, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssag",
		Short: "Capture images from an Orion StarShoot Autoguider",
		// Unknown flags are ignored; with no action they fall through to usage.
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), opts, stdout)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	opts.register(cmd.Flags())
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	return cmd
}

func execute(ctx context.Context, opts *options, stdout io.Writer) error {
	cfgPath := opts.resolveConfigPath()
	cfg := config.Default()
	// Usage is printed even when the config file is broken.
	if cfgPath != "" && opts.requested() != capture.ActionHelp {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	level := cfg.Defaults.DebugLevel
	if opts.debugLevel >= 0 {
		if opts.debugLevel > debug.LevelTrace {
			return &usageError{err: fmt.Errorf("--debug must be between 0 and %d, got %d", debug.LevelTrace, opts.debugLevel)}
		}
		level = opts.debugLevel
	}
	debug.Init(level)
	debug.Section("Initialization")
	debug.Value("Config path", cfgPath)
	debug.Value("Debug level", level)

	req := opts.request(cfg)
	debug.PrintStruct("Request", req)

	// Only a capture drives the indicator.
	var ind indicator.Indicator = indicator.Nop{}
	if req.Action == capture.ActionCapture {
		led, closeIndicator, err := newIndicator(cfg.Indicator)
		if err != nil {
			return err
		}
		defer closeIndicator()
		ind = led
	}

	cam, newLoader := newDevice(cfg)
	ctrl := capture.NewController(capture.Deps{
		Camera:    cam,
		NewLoader: newLoader,
		Persister: persist.Select(cfg.Output),
		Indicator: ind,
		Stdout:    stdout,
	})
	return ctrl.Run(ctx, req)
}

// newDevice selects the USB driver or the mock based on configuration.
func newDevice(cfg *config.Config) (camera.Camera, func() camera.Loader) {
	dev := cfg.Device
	debug.Value("Mock device", dev.Mock)
	if dev.Mock {
		return camera.NewMock(camera.ImageWidth, camera.ImageHeight),
			func() camera.Loader { return camera.NewMockLoader(true) }
	}
	debug.Info("Using USB device %04x:%04x", dev.VendorID, dev.ProductID)
	cam := camera.NewSSAG(uint16(dev.VendorID), uint16(dev.ProductID), cfg.Timeout())
	newLoader := func() camera.Loader {
		return camera.NewFirmwareLoader(uint16(dev.VendorID), uint16(dev.LoaderProductID), cfg.Timeout(), dev.FirmwarePath)
	}
	return cam, newLoader
}

// newIndicator returns the exposure LED, or a no-op when no pin is configured.
// The returned func releases the GPIO driver.
func newIndicator(cfg config.IndicatorConfig) (indicator.Indicator, func(), error) {
	if cfg.Pin == 0 {
		return indicator.Nop{}, func() {}, nil
	}
	debug.Value("Indicator pin", cfg.Pin)
	debug.Value("Mock GPIO", cfg.MockGPIO)
	g, err := gpio.NewDriver(cfg.MockGPIO)
	if err != nil {
		return nil, nil, fmt.Errorf("init GPIO: %w", err)
	}
	closeDriver := func() {
		if err := g.Close(); err != nil {
			debug.Error(fmt.Errorf("closing GPIO driver: %w", err))
		}
	}
	led, err := indicator.NewLED(g, cfg.Pin)
	if err != nil {
		closeDriver()
		return nil, nil, fmt.Errorf("init indicator: %w", err)
	}
	return led, closeDriver, nil
}
