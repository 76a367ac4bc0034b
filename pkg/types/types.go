package types

// Target profile: every conversion produces a raster of exactly this shape.
const (
	TargetWidth  = 800
	TargetHeight = 480
	TargetExt    = "bmp"
)

// TargetAspect is the fixed width:height ratio (5:3) every crop window must
// satisfy.
const TargetAspect = float64(TargetWidth) / float64(TargetHeight)

// FaceBox represents a detected face bounding rectangle in natural
// (post-orientation) pixel coordinates.
type FaceBox struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence,omitempty"`
}

// CenterY returns the vertical center of the face box.
func (f FaceBox) CenterY() float64 {
	return f.Y + f.Height/2
}

// Area returns the face box area in square pixels.
func (f FaceBox) Area() float64 {
	return f.Width * f.Height
}

// SourceImage is one uploaded image: raw bytes plus the declared name used to
// match it against crop requests. The caller owns the bytes for the duration
// of one conversion call.
type SourceImage struct {
	Name string
	Data []byte
}
