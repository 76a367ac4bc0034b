// Package manifest parses and validates conversion manifests. Validation
// runs before any processing starts and has no side effects.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/omervk/ditherworks/internal/utils"
	"github.com/omervk/ditherworks/pkg/pipeline"
	"github.com/omervk/ditherworks/pkg/runner"
	"github.com/omervk/ditherworks/pkg/types"
)

// Batch limits.
const (
	MaxSources     = 200
	MaxSourceBytes = 30 << 20
)

// ErrValidation tags every manifest validation failure.
var ErrValidation = errors.New("invalid manifest")

// CropRequest references one uploaded source by name. Y is the requested
// crop offset in pixels from the top, before clamping.
type CropRequest struct {
	FileName string `json:"fileName"`
	Y        int    `json:"y"`
}

// Manifest is the unit of one conversion call: an optional job id plus an
// ordered list of crop requests.
type Manifest struct {
	JobID  string        `json:"jobId,omitempty"`
	Images []CropRequest `json:"images"`
}

// Parse decodes a JSON manifest payload.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return m, nil
}

// ResolveJobID returns the manifest's job id, generating a fresh one when
// the manifest omits it.
func (m Manifest) ResolveJobID() string {
	if m.JobID != "" {
		return m.JobID
	}
	return uuid.NewString()
}

// Resolve checks every crop request against the uploaded sources and builds
// the ordered task list. Each request must match exactly one source; file
// names must be unique within the manifest.
func Resolve(m Manifest, sources []types.SourceImage) ([]runner.Task, error) {
	if len(m.Images) == 0 {
		return nil, fmt.Errorf("%w: no images requested", ErrValidation)
	}
	if len(m.Images) > MaxSources {
		return nil, fmt.Errorf("%w: %d images exceed the limit of %d", ErrValidation, len(m.Images), MaxSources)
	}

	byName := make(map[string][]byte, len(sources))
	for _, src := range sources {
		if len(src.Data) > MaxSourceBytes {
			return nil, fmt.Errorf("%w: source %q is %s, limit is %s",
				ErrValidation, src.Name,
				utils.FormatFileSize(int64(len(src.Data))),
				utils.FormatFileSize(MaxSourceBytes))
		}
		byName[src.Name] = src.Data
	}

	seen := make(map[string]struct{}, len(m.Images))
	tasks := make([]runner.Task, 0, len(m.Images))
	for _, req := range m.Images {
		if req.FileName == "" {
			return nil, fmt.Errorf("%w: request with empty fileName", ErrValidation)
		}
		if _, dup := seen[req.FileName]; dup {
			return nil, fmt.Errorf("%w: duplicate fileName %q", ErrValidation, req.FileName)
		}
		seen[req.FileName] = struct{}{}

		data, ok := byName[req.FileName]
		if !ok {
			return nil, fmt.Errorf("%w: no uploaded source matches %q", ErrValidation, req.FileName)
		}
		tasks = append(tasks, runner.Task{
			FileName:   req.FileName,
			OutputName: pipeline.OutputName(req.FileName),
			Data:       data,
			Y:          req.Y,
		})
	}
	return tasks, nil
}
