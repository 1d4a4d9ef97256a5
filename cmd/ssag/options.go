package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cjeanneret/ssag/internal/config"
	"github.com/cjeanneret/ssag/internal/hw/camera"
	"github.com/cjeanneret/ssag/internal/logic/capture"
	"github.com/spf13/pflag"
)

// captureDefault is what pflag hands to captureValue when -c is given bare.
const captureDefault = "default"

// configEnv names the config file when --config is absent.
const configEnv = "SSAG_CONFIG"

// options holds the raw command line. It is turned into a capture.Request by
// request once config defaults are known.
type options struct {
	argv       []string
	action     capture.Action
	actionSet  bool
	gain       gainValue
	capture    captureValue
	configPath string
	debugLevel int
}

func newOptions(argv []string, warn io.Writer) *options {
	o := &options{
		argv:       argv,
		gain:       gainValue{warn: warn},
		debugLevel: -1,
	}
	o.capture = captureValue{opts: o, warn: warn}
	return o
}

func (o *options) register(fs *pflag.FlagSet) {
	fs.VarP(&actionFlag{opts: o, action: capture.ActionHelp}, "help", "h", "show this help")
	fs.Lookup("help").NoOptDefVal = "true"
	fs.VarP(&actionFlag{opts: o, action: capture.ActionBoot}, "boot", "b", "load the firmware onto the camera")
	fs.Lookup("boot").NoOptDefVal = "true"
	fs.VarP(&o.gain, "gain", "g", "gain for the capture (1-15)")
	fs.VarP(&o.capture, "capture", "c", "capture an image; optional exposure in ms")
	fs.Lookup("capture").NoOptDefVal = captureDefault
	fs.StringVar(&o.configPath, "config", "", "YAML configuration file")
	fs.IntVar(&o.debugLevel, "debug", -1, "diagnostic level 0-4")
}

// see records the first action named on the command line; later ones are
// ignored. pflag calls Set in argument order.
func (o *options) see(a capture.Action) {
	if o.actionSet {
		return
	}
	o.action = a
	o.actionSet = true
}

// requested returns the action to run. A gain alone does not start a capture.
func (o *options) requested() capture.Action {
	if !o.actionSet {
		return capture.ActionHelp
	}
	return o.action
}

// resolveConfigPath returns the --config value, then $SSAG_CONFIG, then "".
func (o *options) resolveConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	return os.Getenv(configEnv)
}

// request resolves the parsed flags into one request. The gain is collected
// from the whole command line.
func (o *options) request(cfg *config.Config) capture.Request {
	action := o.requested()
	if action != capture.ActionCapture {
		return capture.Request{Action: action}
	}

	// pflag reads `-c 500` as a bare -c followed by a positional 500.
	if o.capture.bare {
		if v, ok := captureOperand(o.argv); ok {
			o.capture.setMillis(v)
		}
	}

	req := capture.Request{
		Action:   capture.ActionCapture,
		Gain:     cfg.Defaults.Gain,
		Duration: cfg.Exposure(),
	}
	if o.gain.val != 0 {
		req.Gain = o.gain.val
	}
	if o.capture.ms != 0 {
		req.Duration = time.Duration(o.capture.ms) * time.Millisecond
	}
	return req
}

// captureOperand returns the integer token directly following the last bare
// -c or --capture in argv.
func captureOperand(argv []string) (string, bool) {
	var (
		operand string
		found   bool
	)
	for i := 0; i < len(argv); i++ {
		switch argv[i] {
		case "--":
			return operand, found
		case "-g", "--gain", "--config", "--debug":
			i++ // value
		case "-c", "--capture":
			operand, found = "", false
			if i+1 < len(argv) {
				if _, err := strconv.Atoi(argv[i+1]); err == nil {
					operand, found = argv[i+1], true
					i++
				}
			}
		}
	}
	return operand, found
}

// actionFlag is a boolean flag that selects an action. String always reports
// false so cobra does not short-circuit -h; the action order decides instead.
type actionFlag struct {
	opts   *options
	action capture.Action
}

func (f *actionFlag) String() string { return "false" }

func (f *actionFlag) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if v {
		f.opts.see(f.action)
	}
	return nil
}

func (f *actionFlag) Type() string { return "bool" }

// gainValue implements pflag.Value for -g. An invalid value is reported and
// dropped; the previous valid value stays and parsing continues.
type gainValue struct {
	val  int
	warn io.Writer
}

func (g *gainValue) String() string {
	if g.val == 0 {
		return ""
	}
	return strconv.Itoa(g.val)
}

func (g *gainValue) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil || v < camera.MinGain || v > camera.MaxGain {
		fmt.Fprintf(g.warn, "Ignoring invalid gain setting: %s\n", s)
		return nil
	}
	g.val = v
	return nil
}

func (g *gainValue) Type() string { return "int" }

// captureValue implements pflag.Value for -c: ms is the exposure in
// milliseconds (0 = configured default).
type captureValue struct {
	opts *options
	bare bool
	ms   int
	warn io.Writer
}

func (c *captureValue) String() string {
	if c.ms == 0 {
		return ""
	}
	return strconv.Itoa(c.ms)
}

func (c *captureValue) Set(s string) error {
	c.opts.see(capture.ActionCapture)
	c.bare = s == captureDefault
	if !c.bare {
		c.setMillis(s)
	}
	return nil
}

// setMillis stores a duration, or warns and falls back to the default.
func (c *captureValue) setMillis(s string) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 || v > int(camera.MaxExposure.Milliseconds()) {
		fmt.Fprintf(c.warn, "Ignoring invalid exposure duration: %s\n", s)
		c.ms = 0
		return
	}
	c.ms = v
}

func (c *captureValue) Type() string { return "ms" }
