// Package pipeline converts one source image into one encoded target raster:
// decode, orientation normalization, color normalization, crop, resize,
// quantize, encode.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/omervk/ditherworks/internal/utils"
	"github.com/omervk/ditherworks/pkg/geometry"
	"github.com/omervk/ditherworks/pkg/quantize"
	"github.com/omervk/ditherworks/pkg/types"
)

// ErrUnreadableImage reports a source that could not be decoded.
var ErrUnreadableImage = errors.New("unreadable image")

// Pipeline processes source images into target rasters using the configured
// quantizer. Safe for concurrent use.
type Pipeline struct {
	quantizer quantize.Quantizer
}

// New creates a pipeline around the given quantization capability.
func New(q quantize.Quantizer) *Pipeline {
	return &Pipeline{quantizer: q}
}

// Decode parses source bytes into a normalized NRGBA image. Embedded EXIF
// orientation is applied so pixel data matches the intended display
// orientation, and the result is in the sRGB working space.
func Decode(data []byte) (*image.NRGBA, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return imaging.Clone(img), nil
	}

	// Fallback: explicit WebP decode for variants the registered decoders
	// reject.
	if w, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return imaging.Clone(w), nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
}

// Process runs the full per-image chain and returns the encoded RGB565 BMP.
// The requested offset is clamped by the crop geometry; the crop is resized
// by exact fill to the fixed target resolution.
func (p *Pipeline) Process(ctx context.Context, data []byte, requestedY int) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	win := geometry.Compute(b.Dx(), b.Dy(), requestedY, types.TargetAspect)

	cropped := imaging.Crop(img, image.Rect(win.Left, win.Top, win.Left+win.Width, win.Top+win.Height))
	resized := imaging.Resize(cropped, types.TargetWidth, types.TargetHeight, imaging.Lanczos)

	return p.quantizer.QuantizeAndEncode(ctx, resized)
}

// OutputName returns the archive entry name for a source file name:
// <base-name-without-extension>_<targetWidth>x<targetHeight>.<ext>.
func OutputName(fileName string) string {
	base := filepath.Base(fileName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = utils.SanitizeFilename(base)
	return fmt.Sprintf("%s_%dx%d.%s", base, types.TargetWidth, types.TargetHeight, types.TargetExt)
}
