package capture

import (
	"fmt"
	"io"
)

// WriteUsage prints the command-line help.
func WriteUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ssag [OPTION]...")
	fmt.Fprintln(w, "Capture images from an Orion StarShoot Autoguider.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -c, --capture [DURATION]   Capture an image from the camera. DURATION is the exposure time in ms (default 1000).")
	fmt.Fprintln(w, "  -g, --gain [1-15]          Set the gain to be used for the capture. Only accepts values between 1 and 15.")
	fmt.Fprintln(w, "  -b, --boot                 Load the firmware onto the camera.")
	fmt.Fprintln(w, "  -h, --help                 Show this help.")
	fmt.Fprintln(w, "      --config PATH          YAML configuration file (default $SSAG_CONFIG).")
	fmt.Fprintln(w, "      --debug LEVEL          Diagnostic level 0-4 on stderr.")
}
