package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/omervk/ditherworks"
	"github.com/omervk/ditherworks/internal/config"
	"github.com/omervk/ditherworks/internal/utils"
	"github.com/omervk/ditherworks/pkg/client"
	"github.com/omervk/ditherworks/pkg/llamacpp"
	"github.com/omervk/ditherworks/pkg/manifest"
	"github.com/omervk/ditherworks/pkg/ollama"
	"github.com/omervk/ditherworks/pkg/pipeline"
	"github.com/omervk/ditherworks/pkg/progress"
	"github.com/omervk/ditherworks/pkg/quantize"
	"github.com/omervk/ditherworks/pkg/suggest"
	"github.com/omervk/ditherworks/pkg/types"
)

func main() {
	var manifestPath, dir, out, configPath string
	var backend, detectBackend, url, model string
	var concurrency int
	var suggestPath string
	var verbose bool

	flag.StringVar(&manifestPath, "manifest", "", "manifest JSON file naming sources and crop offsets")
	flag.StringVar(&dir, "dir", "", "directory of images to convert (alternative to -manifest, centered crops)")
	flag.StringVar(&out, "out", "converted.zip", "output archive path")
	flag.IntVar(&concurrency, "c", 0, "images processed in parallel (0 = default)")
	flag.StringVar(&backend, "backend", "", "quantizer backend: native or magick")
	flag.StringVar(&configPath, "config", "", "config file path (JSON)")

	flag.StringVar(&suggestPath, "suggest", "", "print a crop offset suggestion for one image and exit")
	flag.StringVar(&detectBackend, "detect", "", "face detection backend for -suggest: ollama or llamacpp")
	flag.StringVar(&url, "url", "", "vision server URL")
	flag.StringVar(&model, "model", "", "vision model name")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}
	// Flags win over config file
	if backend != "" {
		cfg.Quantizer.Backend = backend
	}
	if concurrency > 0 {
		cfg.Runner.Concurrency = concurrency
	}
	if detectBackend != "" {
		cfg.Detector.Backend = detectBackend
	}
	if url != "" {
		cfg.Detector.URL = url
	}
	if model != "" {
		cfg.Detector.Model = model
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logOut := io.Discard
	if verbose {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, nil))

	opts := ditherworks.Options{
		Quantizer:     buildQuantizer(cfg),
		Concurrency:   cfg.Runner.Concurrency,
		MinConfidence: cfg.Detector.MinConfidence,
		Logger:        logger,
	}

	if suggestPath != "" {
		opts.Vision = buildVisionClient(cfg)
		opts.Model = cfg.Detector.Model
		runSuggest(opts, suggestPath)
		return
	}

	m, sources := loadBatch(manifestPath, dir)
	runConvert(opts, m, sources, out)
}

func buildQuantizer(cfg *config.Config) quantize.Quantizer {
	switch cfg.Quantizer.Backend {
	case "magick":
		var q *quantize.Magick
		var err error
		if cfg.Quantizer.Binary != "" {
			q, err = quantize.NewMagickWithBinary(cfg.Quantizer.Binary)
		} else {
			q, err = quantize.NewMagick()
		}
		if err != nil {
			log.Fatal(err)
		}
		return q
	default:
		return quantize.NewNative()
	}
}

func buildVisionClient(cfg *config.Config) client.VisionClient {
	var c client.VisionClient
	var err error
	switch cfg.Detector.Backend {
	case "llamacpp":
		c, err = llamacpp.NewClient(cfg.Detector.URL)
	default:
		c, err = ollama.NewClient(cfg.Detector.URL)
	}
	if err != nil {
		log.Fatalf("Failed to create %s client: %v", cfg.Detector.Backend, err)
	}
	return c
}

// loadBatch builds the manifest and source list from either an explicit
// manifest file or a directory of images with centered crops.
func loadBatch(manifestPath, dir string) (manifest.Manifest, []types.SourceImage) {
	if manifestPath == "" && dir == "" {
		log.Fatalf("usage: %s -manifest batch.json|-dir photos [-out converted.zip] [-c 4] [-backend native|magick]", filepath.Base(os.Args[0]))
	}

	var m manifest.Manifest
	var names []string

	if manifestPath != "" {
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			log.Fatal(err)
		}
		m, err = manifest.Parse(data)
		if err != nil {
			log.Fatal(err)
		}
		for _, req := range m.Images {
			names = append(names, req.FileName)
		}
		dir = filepath.Dir(manifestPath)
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Fatal(err)
		}
		for _, e := range entries {
			if !e.IsDir() && utils.IsImageFile(e.Name()) {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
	}

	sources := make([]types.SourceImage, 0, len(names))
	for _, n := range names {
		data, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			log.Fatal(err)
		}
		sources = append(sources, types.SourceImage{Name: n, Data: data})
	}

	if manifestPath == "" {
		// Directory mode has no requested offsets; center every crop.
		for _, src := range sources {
			y := 0
			if img, err := pipeline.Decode(src.Data); err == nil {
				b := img.Bounds()
				y = suggest.Offset(b.Dx(), b.Dy(), nil, 0)
			}
			m.Images = append(m.Images, manifest.CropRequest{FileName: src.Name, Y: y})
		}
	}
	return m, sources
}

func runConvert(opts ditherworks.Options, m manifest.Manifest, sources []types.SourceImage, out string) {
	if err := utils.EnsureDir(filepath.Dir(out)); err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	conv := ditherworks.NewWithOptions(opts)
	jobID := m.ResolveJobID()
	m.JobID = jobID

	events, unsubscribe := conv.Subscribe(jobID)
	defer unsubscribe()

	done := make(chan error, 1)
	go func() {
		_, err := conv.Convert(context.Background(), m, sources, f)
		done <- err
	}()

	failure, err := watchBatch(events, done, os.Stderr)
	if err != nil {
		// The partial archive is useless without its central directory.
		os.Remove(out)
		if failure != "" && !strings.Contains(err.Error(), failure) {
			log.Printf("batch failed: %s", failure)
		}
		log.Fatal(err)
	}
	log.Printf("wrote %s (%d images)", out, len(sources))
}

// watchBatch renders the progress stream until the job terminates. A batch
// rejected before it starts never publishes a terminal event, so the done
// channel is watched alongside the event stream.
func watchBatch(events <-chan progress.Event, done <-chan error, barOut io.Writer) (string, error) {
	var bar *progressbar.ProgressBar
	var failure string
	var err error
	finished := false

	for events != nil {
		select {
		case ev, open := <-events:
			if !open {
				events = nil
				break
			}
			switch ev.Kind {
			case progress.KindInit:
				bar = progressbar.NewOptions(ev.Total,
					progressbar.OptionSetDescription("converting"),
					progressbar.OptionSetWriter(barOut),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			case progress.KindProgress:
				if bar != nil {
					_ = bar.Set(ev.Current)
				}
			case progress.KindError:
				failure = ev.Message
			}
		case err = <-done:
			finished = true
			if err != nil {
				// Nothing more is coming on a pre-start failure.
				events = nil
			}
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	if !finished {
		err = <-done
	}
	return failure, err
}

func runSuggest(opts ditherworks.Options, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}

	conv := ditherworks.NewWithOptions(opts)
	s, err := conv.Suggest(context.Background(), data)
	if err != nil {
		log.Fatal(err)
	}

	js, _ := json.MarshalIndent(s, "", "  ")
	fmt.Println(string(js))
}
