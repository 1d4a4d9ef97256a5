// Package persist writes a captured frame to disk.
//
// Two strategies exist: Encoder produces a standard image file whose format
// follows the file extension, and Raw dumps the pixel bytes verbatim. Select
// picks one at startup; Raw is always available.
package persist

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/cjeanneret/ssag/internal/config"
	"github.com/cjeanneret/ssag/internal/debug"
	"github.com/cjeanneret/ssag/internal/hw/camera"
	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
)

// ImagePersister writes a frame and returns the path it wrote.
type ImagePersister interface {
	Persist(frame *camera.RawFrame) (string, error)
}

// Encoder writes frames as a single-channel 8-bit image through imaging.
type Encoder struct {
	Path        string
	JPEGQuality int
}

// Persist encodes the frame as an intensity image; the format is inferred
// from the extension of e.Path.
func (e *Encoder) Persist(frame *camera.RawFrame) (string, error) {
	if err := frame.Validate(); err != nil {
		return "", err
	}
	img := grayImage(frame)
	if err := imaging.Save(img, e.Path, imaging.JPEGQuality(e.JPEGQuality)); err != nil {
		return "", fmt.Errorf("encode %s: %w", e.Path, err)
	}
	logWritten(e.Path)
	return e.Path, nil
}

// grayImage wraps the frame buffer without copying it.
func grayImage(frame *camera.RawFrame) *image.Gray {
	return &image.Gray{
		Pix:    frame.Data[:frame.Size()],
		Stride: frame.Width,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
}

// Raw writes exactly Width*Height bytes, row-major, no header.
type Raw struct {
	Path string
}

// Persist creates or truncates r.Path and dumps the pixel bytes.
func (r *Raw) Persist(frame *camera.RawFrame) (string, error) {
	if err := frame.Validate(); err != nil {
		return "", err
	}
	f, err := os.Create(r.Path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", r.Path, err)
	}
	if _, err := f.Write(frame.Data[:frame.Size()]); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", r.Path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", r.Path, err)
	}
	logWritten(r.Path)
	return r.Path, nil
}

func logWritten(path string) {
	if !debug.IsEnabled(debug.LevelInfo) {
		return
	}
	st, err := os.Stat(path)
	if err != nil {
		return
	}
	debug.Info("Wrote %s (%s)", path, humanize.Bytes(uint64(st.Size())))
}

// Select builds the persister for the output configuration. The encoder is
// used when the format allows it and imaging recognizes the image file
// extension; otherwise frames fall back to the raw dump.
func Select(out config.OutputConfig) ImagePersister {
	raw := &Raw{Path: filepath.Join(out.Dir, out.RawName)}
	if out.Format == config.FormatRaw {
		debug.Verbose("Output: raw dump to %s", raw.Path)
		return raw
	}
	if _, err := imaging.FormatFromFilename(out.ImageName); err != nil {
		debug.Info("No encoder for %s (%v), falling back to raw output", out.ImageName, err)
		return raw
	}
	enc := &Encoder{
		Path:        filepath.Join(out.Dir, out.ImageName),
		JPEGQuality: out.JPEGQuality,
	}
	debug.Verbose("Output: encoded image to %s", enc.Path)
	return enc
}
