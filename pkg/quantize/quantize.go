// Package quantize reduces full-color rasters to the 16-bit RGB565 target
// depth with error-diffusion dithering and encodes the result as a BMP
// container.
//
// Two implementations are provided: Native runs in-process and is fully
// deterministic, Magick shells out to ImageMagick. Both produce a 16bpp
// bitfields BMP with 5/6/5 bits per red/green/blue channel.
package quantize

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrToolUnavailable reports that the external quantization tool is
	// missing from the runtime environment.
	ErrToolUnavailable = errors.New("quantization tool unavailable")

	// ErrToolFailure reports that the external quantization tool was found
	// but failed to process the image.
	ErrToolFailure = errors.New("quantization tool failed")
)

// Quantizer converts one full-color image into an encoded RGB565 BMP.
// Implementations are stateless per invocation and safe for concurrent use.
type Quantizer interface {
	QuantizeAndEncode(ctx context.Context, img *image.NRGBA) ([]byte, error)
}
