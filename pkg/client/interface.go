// Package client defines the vision-backend interface used for face
// detection, plus shared parsing of model JSON answers.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/omervk/ditherworks/pkg/types"
)

// VisionClient is implemented by model backends able to locate faces in a
// base64-encoded image. Returned boxes are normalized to the [0,1] range.
type VisionClient interface {
	DetectFaces(ctx context.Context, model, prompt, imgB64 string) ([]types.FaceBox, error)
}

type faceList struct {
	Faces []types.FaceBox `json:"faces"`
}

// ParseFaces parses the JSON face list returned by a vision model, stripping
// the usual model noise first. Degenerate boxes are dropped and coordinates
// clamped into [0,1].
func ParseFaces(raw string) ([]types.FaceBox, error) {
	raw = SanitizeModelJSON(raw)

	if !strings.HasPrefix(raw, "{") {
		return nil, fmt.Errorf("model returned non-JSON response")
	}

	var list faceList
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("failed to parse face list: %v", err)
	}

	faces := make([]types.FaceBox, 0, len(list.Faces))
	for _, f := range list.Faces {
		f.X = clamp01(f.X)
		f.Y = clamp01(f.Y)
		f.Width = clamp01(f.Width)
		f.Height = clamp01(f.Height)
		f.Confidence = clamp01(f.Confidence)
		if f.Width <= 0 || f.Height <= 0 {
			continue
		}
		faces = append(faces, f)
	}
	return faces, nil
}

// SanitizeModelJSON strips code fences, comments and trailing commas that
// vision models commonly wrap around their JSON answers.
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	// Remove /* ... */ block comments
	reBlock := regexp.MustCompile(`(?s)/\*.*?\*/`)
	raw = reBlock.ReplaceAllString(raw, "")

	// Remove // line/inline comments
	reLine := regexp.MustCompile(`(?m)^\s*//.*$`)
	raw = reLine.ReplaceAllString(raw, "")

	// Remove trailing commas before } or ]
	reTrailing := regexp.MustCompile(`,(\s*[}\]])`)
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}

	return strings.TrimSpace(raw)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
