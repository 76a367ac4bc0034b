package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/omervk/ditherworks/pkg/quantize"
)

// encodeJPEG builds an in-memory JPEG source of the given size.
func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestProcessProducesTargetRaster(t *testing.T) {
	p := New(quantize.NewNative())
	out, err := p.Process(context.Background(), encodeJPEG(t, 1600, 1200), 0)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if out[0] != 'B' || out[1] != 'M' {
		t.Fatalf("output is not a BMP")
	}
	le := binary.LittleEndian
	if w := le.Uint32(out[18:]); w != 800 {
		t.Errorf("expected width 800, got %d", w)
	}
	if h := le.Uint32(out[22:]); h != 480 {
		t.Errorf("expected height 480, got %d", h)
	}
	if bpp := le.Uint16(out[28:]); bpp != 16 {
		t.Errorf("expected 16bpp, got %d", bpp)
	}
}

func TestProcessIdempotent(t *testing.T) {
	p := New(quantize.NewNative())
	src := encodeJPEG(t, 1024, 768)

	first, err := p.Process(context.Background(), src, 50)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	second, err := p.Process(context.Background(), src, 50)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical input produced different output bytes")
	}
}

func TestProcessUnreadableSource(t *testing.T) {
	p := New(quantize.NewNative())
	_, err := p.Process(context.Background(), []byte("not an image at all"), 0)
	if !errors.Is(err, ErrUnreadableImage) {
		t.Errorf("expected ErrUnreadableImage, got %v", err)
	}
}

func TestProcessEmptySource(t *testing.T) {
	p := New(quantize.NewNative())
	if _, err := p.Process(context.Background(), nil, 0); !errors.Is(err, ErrUnreadableImage) {
		t.Errorf("expected ErrUnreadableImage, got %v", err)
	}
}

func TestDecodeNormalizesToNRGBA(t *testing.T) {
	img, err := Decode(encodeJPEG(t, 64, 48))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("expected 64x48, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestOutputName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a.jpg", "a_800x480.bmp"},
		{"holiday photo.jpeg", "holiday photo_800x480.bmp"},
		{"noext", "noext_800x480.bmp"},
		{"dir/nested.png", "nested_800x480.bmp"},
		{"we?ird*name.webp", "we_ird_name_800x480.bmp"},
	}
	for _, tc := range cases {
		if got := OutputName(tc.in); got != tc.want {
			t.Errorf("OutputName(%q) = %q, expected %q", tc.in, got, tc.want)
		}
	}
}
