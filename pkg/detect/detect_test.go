package detect

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"testing"

	"github.com/omervk/ditherworks/pkg/types"
)

type fakeClient struct {
	faces   []types.FaceBox
	err     error
	gotB64  string
	gotProm string
}

func (f *fakeClient) DetectFaces(ctx context.Context, model, prompt, imgB64 string) ([]types.FaceBox, error) {
	f.gotB64 = imgB64
	f.gotProm = prompt
	return f.faces, f.err
}

func testImage(w, h int) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

func TestDetectFacesScalesToPixels(t *testing.T) {
	fc := &fakeClient{faces: []types.FaceBox{
		{X: 0.25, Y: 0.5, Width: 0.1, Height: 0.2, Confidence: 0.9},
	}}
	d := New(fc, "test-model")

	faces, err := d.DetectFaces(context.Background(), testImage(1000, 500))
	if err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(faces))
	}
	f := faces[0]
	if f.X != 250 || f.Y != 250 || f.Width != 100 || f.Height != 100 {
		t.Errorf("unexpected pixel box %+v", f)
	}
	if f.Confidence != 0.9 {
		t.Errorf("confidence must pass through, got %v", f.Confidence)
	}
}

func TestDetectFacesSendsPromptAndImage(t *testing.T) {
	fc := &fakeClient{}
	d := New(fc, "test-model")

	if _, err := d.DetectFaces(context.Background(), testImage(10, 10)); err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if fc.gotProm != DefaultPrompt {
		t.Error("detector must send the default prompt")
	}
	if _, err := base64.StdEncoding.DecodeString(fc.gotB64); err != nil || fc.gotB64 == "" {
		t.Errorf("image payload must be valid base64, got err %v", err)
	}
}

func TestDetectFacesDropsDegenerateBoxes(t *testing.T) {
	fc := &fakeClient{faces: []types.FaceBox{
		{X: 1.0, Y: 0.5, Width: 0.001, Height: 0.2, Confidence: 0.8}, // collapses at right edge
		{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2, Confidence: 0.8},
	}}
	d := New(fc, "test-model")

	faces, err := d.DetectFaces(context.Background(), testImage(100, 100))
	if err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("expected degenerate box dropped, got %d faces", len(faces))
	}
	if faces[0].X != 10 {
		t.Errorf("kept the wrong face: %+v", faces[0])
	}
}

func TestDetectFacesBackendError(t *testing.T) {
	wantErr := errors.New("model offline")
	d := New(&fakeClient{err: wantErr}, "test-model")

	if _, err := d.DetectFaces(context.Background(), testImage(10, 10)); !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped backend error, got %v", err)
	}
}

func TestScaleToPixelsClampsOverflow(t *testing.T) {
	faces := scaleToPixels([]types.FaceBox{
		{X: 0.9, Y: 0.9, Width: 0.3, Height: 0.3, Confidence: 1},
	}, 200, 100)
	if len(faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(faces))
	}
	f := faces[0]
	if f.X+f.Width > 200 || f.Y+f.Height > 100 {
		t.Errorf("box must stay inside the image, got %+v", f)
	}
}
