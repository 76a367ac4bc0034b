// Package geometry implements the crop-window math shared by the pixel
// pipeline and the suggestion engine. All functions are pure.
package geometry

import "math"

// Window describes a crop rectangle within a source image, together with the
// largest valid top offset (MaxY) for the current image geometry.
type Window struct {
	Top    int
	Left   int
	Width  int
	Height int
	MaxY   int
}

// Compute returns the crop window for an image of the given natural size and
// a requested top offset. The window always satisfies the target aspect ratio
// and always lies within the source bounds.
//
// In the common case the crop spans the full width and the requested offset
// is clamped to [0, MaxY]. When the image is too short for a full-width crop
// at the target aspect, the window falls back to full height, horizontally
// centered, with no vertical travel (MaxY = 0).
func Compute(naturalWidth, naturalHeight, requestedY int, aspect float64) Window {
	cropHeight := int(math.Round(float64(naturalWidth) / aspect))

	if cropHeight <= naturalHeight {
		maxY := naturalHeight - cropHeight
		if maxY < 0 {
			maxY = 0
		}
		return Window{
			Top:    Clamp(requestedY, 0, maxY),
			Left:   0,
			Width:  naturalWidth,
			Height: cropHeight,
			MaxY:   maxY,
		}
	}

	// Image too short for a full-width crop: use the full height instead.
	width := int(math.Round(float64(naturalHeight) * aspect))
	if width > naturalWidth {
		width = naturalWidth
	}
	return Window{
		Top:    0,
		Left:   (naturalWidth - width) / 2,
		Width:  width,
		Height: naturalHeight,
		MaxY:   0,
	}
}

// Clamp restricts v to the closed interval [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
