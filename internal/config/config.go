package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cjeanneret/ssag/internal/hw/camera"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatAuto    = "auto"    // encoder if the file extension is supported, else raw
	FormatEncoder = "encoder" // same selection as auto, kept for explicit configs
	FormatRaw     = "raw"     // always dump raw bytes
)

// DeviceConfig describes how to reach the camera and its firmware loader.
type DeviceConfig struct {
	Mock            bool   `yaml:"mock"`              // use a simulated camera (true=dev/test)
	VendorID        int    `yaml:"vendor_id"`         // USB vendor id, e.g. 0x1856
	ProductID       int    `yaml:"product_id"`        // USB product id with firmware loaded
	LoaderProductID int    `yaml:"loader_product_id"` // USB product id before firmware is loaded
	FirmwarePath    string `yaml:"firmware_path"`     // Intel HEX firmware image
	TimeoutMs       int    `yaml:"timeout_ms"`        // USB transfer timeout (ms)
}

// OutputConfig controls where and how a captured frame is written.
type OutputConfig struct {
	Format      string `yaml:"format"`       // auto | encoder | raw
	Dir         string `yaml:"dir"`          // directory for the output file
	ImageName   string `yaml:"image_name"`   // encoded output, format inferred from extension
	RawName     string `yaml:"raw_name"`     // raw fallback output
	JPEGQuality int    `yaml:"jpeg_quality"` // 1-100
}

// IndicatorConfig is an optional LED lit for the duration of an exposure.
type IndicatorConfig struct {
	Pin      int  `yaml:"pin"`       // BCM pin. 0 = no indicator.
	MockGPIO bool `yaml:"mock_gpio"` // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// DefaultsConfig contains capture defaults applied when the command line is silent.
type DefaultsConfig struct {
	Gain       int `yaml:"gain"`        // 0 = leave the driver default
	ExposureMs int `yaml:"exposure_ms"` // exposure for a bare --capture
	DebugLevel int `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Output    OutputConfig    `yaml:"output"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.applyDefaults() // the zero config always validates
	return cfg
}

// ValidateConfigPath rejects empty paths, parent-directory traversal and
// files that are not YAML.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path must not contain '..': %s", path)
		}
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
	default:
		return fmt.Errorf("config file must have a .yaml or .yml extension: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	// Orion StarShoot Autoguider ids
	if c.Device.VendorID == 0 {
		c.Device.VendorID = 0x1856
	}
	if c.Device.ProductID == 0 {
		c.Device.ProductID = 0x0012
	}
	if c.Device.LoaderProductID == 0 {
		c.Device.LoaderProductID = 0x0011
	}
	if c.Device.VendorID < 0 || c.Device.VendorID > 0xFFFF {
		return fmt.Errorf("device.vendor_id must be a 16-bit value, got %#x", c.Device.VendorID)
	}
	if c.Device.ProductID < 0 || c.Device.ProductID > 0xFFFF {
		return fmt.Errorf("device.product_id must be a 16-bit value, got %#x", c.Device.ProductID)
	}
	if c.Device.LoaderProductID < 0 || c.Device.LoaderProductID > 0xFFFF {
		return fmt.Errorf("device.loader_product_id must be a 16-bit value, got %#x", c.Device.LoaderProductID)
	}
	if c.Device.FirmwarePath == "" {
		c.Device.FirmwarePath = filepath.Join("firmware", "ssag.hex")
	}
	if c.Device.TimeoutMs <= 0 {
		c.Device.TimeoutMs = 5000
	}

	switch c.Output.Format {
	case "":
		c.Output.Format = FormatAuto
	case FormatAuto, FormatEncoder, FormatRaw:
	default:
		return fmt.Errorf("output.format must be one of auto, encoder, raw, got %q", c.Output.Format)
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	if c.Output.ImageName == "" {
		c.Output.ImageName = "image.jpg"
	}
	if c.Output.RawName == "" {
		c.Output.RawName = "image.8bit"
	}
	if c.Output.JPEGQuality == 0 {
		c.Output.JPEGQuality = 95
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpeg_quality must be between 1 and 100, got %d", c.Output.JPEGQuality)
	}

	if c.Indicator.Pin < 0 {
		return fmt.Errorf("indicator.pin must be >= 0, got %d", c.Indicator.Pin)
	}

	if c.Defaults.Gain != 0 && (c.Defaults.Gain < camera.MinGain || c.Defaults.Gain > camera.MaxGain) {
		return fmt.Errorf("defaults.gain must be between %d and %d, got %d", camera.MinGain, camera.MaxGain, c.Defaults.Gain)
	}
	if c.Defaults.ExposureMs <= 0 {
		c.Defaults.ExposureMs = 1000
	}
	if c.Exposure() > camera.MaxExposure {
		return fmt.Errorf("defaults.exposure_ms must be <= %d, got %d", camera.MaxExposure.Milliseconds(), c.Defaults.ExposureMs)
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// Timeout returns the USB transfer timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Device.TimeoutMs) * time.Millisecond
}

// Exposure returns the default exposure duration.
func (c *Config) Exposure() time.Duration {
	return time.Duration(c.Defaults.ExposureMs) * time.Millisecond
}
