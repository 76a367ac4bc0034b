// Package ditherworks converts batches of photos into fixed-resolution
// RGB565 BMP rasters for low-color display hardware, streamed into a ZIP
// archive.
//
// Each source image runs through a fixed chain: decode with EXIF
// orientation applied, crop to the target aspect at a caller-chosen
// vertical offset, high-quality downscale to 800x480, posterize with
// Floyd-Steinberg dithering, and encode as a 16-bit BMP. A batch is
// all-or-nothing: the first failing image aborts the whole job and the
// archive is left unfinalized.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"os"
//
//		"github.com/omervk/ditherworks"
//		"github.com/omervk/ditherworks/pkg/manifest"
//		"github.com/omervk/ditherworks/pkg/types"
//	)
//
//	func main() {
//		data, err := os.ReadFile("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		out, err := os.Create("converted.zip")
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer out.Close()
//
//		conv := ditherworks.New()
//		m := manifest.Manifest{Images: []manifest.CropRequest{{FileName: "photo.jpg", Y: 120}}}
//		sources := []types.SourceImage{{Name: "photo.jpg", Data: data}}
//
//		jobID, err := conv.Convert(context.Background(), m, sources, out)
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("job %s done", jobID)
//	}
//
// The package consists of the following main components:
//
// 1. Pipeline (pkg/pipeline): Per-image decode, crop, resize and encode
// 2. Geometry (pkg/geometry): Pure crop window math
// 3. Suggest (pkg/suggest): Face-aware crop offset suggestions
// 4. Runner (pkg/runner): Bounded-concurrency batch execution
// 5. Progress (pkg/progress): Per-job progress broadcasting
// 6. Archive (pkg/archive): Streamed, exactly-once ZIP writing
//
// Face detection for offset suggestions is optional and backed by a vision
// model server (Ollama or llama.cpp); without one, suggestions fall back to
// the geometric center.
package ditherworks

import (
	"context"
	"io"
	"log/slog"

	"github.com/omervk/ditherworks/pkg/archive"
	"github.com/omervk/ditherworks/pkg/client"
	"github.com/omervk/ditherworks/pkg/detect"
	"github.com/omervk/ditherworks/pkg/manifest"
	"github.com/omervk/ditherworks/pkg/pipeline"
	"github.com/omervk/ditherworks/pkg/progress"
	"github.com/omervk/ditherworks/pkg/quantize"
	"github.com/omervk/ditherworks/pkg/runner"
	"github.com/omervk/ditherworks/pkg/suggest"
	"github.com/omervk/ditherworks/pkg/types"
)

// Version of the ditherworks library
const Version = "1.0.0"

// Options configures a Converter. The zero value selects the native
// quantizer, default concurrency and no face detection.
type Options struct {
	// Quantizer overrides the posterize-and-encode backend.
	Quantizer quantize.Quantizer

	// Concurrency bounds the number of images processed in parallel.
	Concurrency int

	// Vision enables face detection for crop suggestions.
	Vision client.VisionClient

	// Model names the vision model to query. Only used with Vision.
	Model string

	// MinConfidence filters detected faces before suggestion. Zero selects
	// suggest.DefaultMinConfidence.
	MinConfidence float64

	// Logger receives batch lifecycle logs.
	Logger *slog.Logger
}

// Converter is the high-level entry point: it resolves manifests, runs
// batches and exposes per-job progress. Safe for concurrent use.
type Converter struct {
	pipe          *pipeline.Pipeline
	hub           *progress.Hub
	run           *runner.Runner
	detector      *detect.Detector
	minConfidence float64
}

// New creates a Converter with default configuration.
func New() *Converter {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a Converter with custom configuration.
func NewWithOptions(opts Options) *Converter {
	q := opts.Quantizer
	if q == nil {
		q = quantize.NewNative()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	pipe := pipeline.New(q)
	hub := progress.NewHub()

	var detector *detect.Detector
	if opts.Vision != nil {
		detector = detect.New(opts.Vision, opts.Model)
	}
	minConfidence := opts.MinConfidence
	if minConfidence <= 0 {
		minConfidence = suggest.DefaultMinConfidence
	}

	return &Converter{
		pipe:          pipe,
		hub:           hub,
		run:           runner.New(pipe, hub, opts.Concurrency, log),
		detector:      detector,
		minConfidence: minConfidence,
	}
}

// Convert validates the manifest against the uploaded sources and runs the
// batch, streaming the finished archive to out. It returns the job id under
// which progress is published.
//
// On any failure the batch aborts, nothing more is written and the archive
// is left without its central directory, so the output must be discarded.
func (c *Converter) Convert(ctx context.Context, m manifest.Manifest, sources []types.SourceImage, out io.Writer) (string, error) {
	tasks, err := manifest.Resolve(m, sources)
	if err != nil {
		return "", err
	}

	jobID := m.ResolveJobID()
	w := archive.NewWriter(out)
	if err := c.run.Run(ctx, jobID, tasks, w); err != nil {
		w.Abort()
		return jobID, err
	}
	return jobID, nil
}

// Subscribe attaches to a job's progress stream. The first event replays
// the job's current state; the channel closes when the job terminates or
// the returned function is called.
func (c *Converter) Subscribe(jobID string) (<-chan progress.Event, func()) {
	return c.hub.Subscribe(jobID)
}

// Suggest proposes a vertical crop offset for one source image. With a
// vision backend configured the offset keeps as many detected faces as
// possible inside the crop window; otherwise it is the geometric center.
func (c *Converter) Suggest(ctx context.Context, data []byte) (suggest.Suggestion, error) {
	img, err := pipeline.Decode(data)
	if err != nil {
		return suggest.Suggestion{}, err
	}
	b := img.Bounds()

	var faces []types.FaceBox
	if c.detector != nil {
		faces, err = c.detector.DetectFaces(ctx, img)
		if err != nil {
			return suggest.Suggestion{}, err
		}
	}

	return suggest.Suggestion{
		Y:             suggest.Offset(b.Dx(), b.Dy(), faces, c.minConfidence),
		NaturalWidth:  b.Dx(),
		NaturalHeight: b.Dy(),
		Faces:         faces,
	}, nil
}
