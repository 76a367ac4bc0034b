// Package detect locates faces in source images using a vision model
// backend and maps the result into pixel coordinates.
package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/omervk/ditherworks/pkg/client"
	"github.com/omervk/ditherworks/pkg/types"
)

// DefaultPrompt is the default prompt for face localization
const DefaultPrompt = `You are a face locator.

Return JSON only:
{
  "faces": [
    {"x": 0.0, "y": 0.0, "width": 0.0, "height": 0.0, "confidence": 0.0}
  ]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- x,y is the top-left corner of the face box; width,height its extent.
- Include every clearly visible human face, one entry per face.
- Confidence reflects how certain you are the box contains a face.
- If no face is visible, return: {"faces": []}
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Longest side of the image sent to the model. Vision models downsample
// internally anyway; shipping full-resolution photos just wastes tokens.
const maxModelEdge = 1536

const jpegQuality = 85

// Detector finds faces in decoded images using a vision model
type Detector struct {
	client client.VisionClient
	model  string
}

// New creates a detector around a vision backend and model name.
func New(c client.VisionClient, model string) *Detector {
	return &Detector{client: c, model: model}
}

// DetectFaces locates faces in the image and returns boxes in pixel
// coordinates of the original image, largest first ordering is left to the
// caller.
func (d *Detector) DetectFaces(ctx context.Context, img *image.NRGBA) ([]types.FaceBox, error) {
	imgB64, err := encodeForModel(img)
	if err != nil {
		return nil, err
	}

	faces, err := d.client.DetectFaces(ctx, d.model, DefaultPrompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	b := img.Bounds()
	return scaleToPixels(faces, b.Dx(), b.Dy()), nil
}

// encodeForModel downscales the image for transport and returns it as
// base64 JPEG.
func encodeForModel(img *image.NRGBA) (string, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	scaled := img
	if w > maxModelEdge || h > maxModelEdge {
		if w >= h {
			scaled = imaging.Resize(img, maxModelEdge, 0, imaging.Lanczos)
		} else {
			scaled = imaging.Resize(img, 0, maxModelEdge, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, scaled, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("failed to encode image for model: %v", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// scaleToPixels converts normalized boxes into pixel coordinates of an
// image with the given dimensions, dropping boxes that collapse to nothing.
func scaleToPixels(faces []types.FaceBox, width, height int) []types.FaceBox {
	out := make([]types.FaceBox, 0, len(faces))
	fw, fh := float64(width), float64(height)
	for _, f := range faces {
		px := types.FaceBox{
			X:          math.Round(f.X * fw),
			Y:          math.Round(f.Y * fh),
			Width:      math.Round(f.Width * fw),
			Height:     math.Round(f.Height * fh),
			Confidence: f.Confidence,
		}
		if px.X+px.Width > fw {
			px.Width = fw - px.X
		}
		if px.Y+px.Height > fh {
			px.Height = fh - px.Y
		}
		if px.Width <= 0 || px.Height <= 0 {
			continue
		}
		out = append(out, px)
	}
	return out
}
