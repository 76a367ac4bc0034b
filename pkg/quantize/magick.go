package quantize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"
)

// Magick quantizes by shelling out to ImageMagick, one short-lived stateless
// invocation per image. The image is piped in as PNG and comes back as a
// dithered RGB565 BMP.
type Magick struct {
	binary string
}

// NewMagick locates the ImageMagick binary ("magick", falling back to the
// legacy "convert") and returns a quantizer using it. Returns
// ErrToolUnavailable when neither is installed.
func NewMagick() (*Magick, error) {
	for _, name := range []string{"magick", "convert"} {
		if path, err := exec.LookPath(name); err == nil {
			return &Magick{binary: path}, nil
		}
	}
	return nil, fmt.Errorf("%w: neither magick nor convert found in PATH", ErrToolUnavailable)
}

// NewMagickWithBinary uses an explicit binary path, verifying it exists.
func NewMagickWithBinary(binary string) (*Magick, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrToolUnavailable, binary)
	}
	return &Magick{binary: path}, nil
}

// QuantizeAndEncode pipes img through ImageMagick, requesting Floyd-Steinberg
// dithered posterization and RGB565 BMP output.
func (m *Magick) QuantizeAndEncode(ctx context.Context, img *image.NRGBA) ([]byte, error) {
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return nil, fmt.Errorf("encode intermediate png: %w", err)
	}

	args := []string{
		"png:-",
		"-dither", "FloydSteinberg",
		"-posterize", "32",
		"-define", "bmp:subtype=RGB565",
		"bmp3:-",
	}

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.binary, args...)
	cmd.Stdin = &in
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrToolFailure, err, strings.TrimSpace(stderr.String()))
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrToolFailure)
	}
	return out.Bytes(), nil
}
