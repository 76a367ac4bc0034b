package quantize

import (
	"context"
	"image"
	"math"
)

// Native is the in-process quantizer. It posterizes each channel to the
// RGB565 depth while diffusing the rounding error to neighboring pixels
// (Floyd-Steinberg), preserving visible gradients under the reduced palette.
// Identical input always yields byte-identical output.
type Native struct{}

// NewNative returns the in-process quantizer.
func NewNative() Native {
	return Native{}
}

// QuantizeAndEncode dithers img down to RGB565 and encodes it as a BMP.
func (Native) QuantizeAndEncode(ctx context.Context, img *image.NRGBA) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// Working copies of each channel so diffusion error can go fractional.
	r := make([]float64, w*h)
	g := make([]float64, w*h)
	bl := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			i := y*w + x
			r[i] = float64(img.Pix[p])
			g[i] = float64(img.Pix[p+1])
			bl[i] = float64(img.Pix[p+2])
		}
	}

	pix := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			r5 := diffuse(r, w, h, x, y, 31)
			g6 := diffuse(g, w, h, x, y, 63)
			b5 := diffuse(bl, w, h, x, y, 31)
			pix[i] = uint16(r5)<<11 | uint16(g6)<<5 | uint16(b5)
		}
	}

	return encodeBMP565(w, h, pix), nil
}

// diffuse quantizes the channel value at (x, y) to levels+1 steps and spreads
// the rounding error over the four Floyd-Steinberg neighbors.
func diffuse(ch []float64, w, h, x, y int, levels float64) int {
	i := y*w + x
	old := ch[i]
	q := math.Round(old / 255 * levels)
	if q < 0 {
		q = 0
	}
	if q > levels {
		q = levels
	}
	err := old - q*255/levels

	if x+1 < w {
		ch[i+1] += err * 7 / 16
	}
	if y+1 < h {
		if x > 0 {
			ch[i+w-1] += err * 3 / 16
		}
		ch[i+w] += err * 5 / 16
		if x+1 < w {
			ch[i+w+1] += err * 1 / 16
		}
	}
	return int(q)
}
