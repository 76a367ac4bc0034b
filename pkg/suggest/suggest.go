// Package suggest selects the initial vertical crop offset for an image from
// detected face boxes, maximizing the face area kept inside the crop window.
package suggest

import (
	"math"
	"sort"

	"github.com/omervk/ditherworks/pkg/geometry"
	"github.com/omervk/ditherworks/pkg/types"
)

// DefaultMinConfidence is the confidence threshold below which detected
// faces are ignored.
const DefaultMinConfidence = 0.5

// Suggestion is the result of a crop-offset suggestion for one image.
// Faces is populated only when the caller requested diagnostics.
type Suggestion struct {
	Y             int             `json:"y"`
	NaturalWidth  int             `json:"naturalWidth"`
	NaturalHeight int             `json:"naturalHeight"`
	Faces         []types.FaceBox `json:"faces,omitempty"`
}

// Offset picks the vertical crop offset that keeps the most faces inside the
// crop window. Faces below minConfidence are discarded. With no usable faces
// the geometrically centered offset is returned.
//
// Faces are ranked by descending area (rank 0 = largest). Each face's
// inclusion interval is the range of window top offsets for which its
// vertical center stays inside the window. A sweep over interval endpoints
// evaluates one candidate per maximal span, selected by: most included
// faces, then the rank set keeping the largest faces, then summed face
// area, then proximity of the band center to the mean face center.
// Identical inputs always yield the same offset.
func Offset(naturalWidth, naturalHeight int, faces []types.FaceBox, minConfidence float64) int {
	win := geometry.Compute(naturalWidth, naturalHeight, 0, types.TargetAspect)
	cropHeight := win.Height
	maxY := win.MaxY

	centered := geometry.Clamp(int(math.Round(float64(naturalHeight-cropHeight)/2)), 0, maxY)

	kept := make([]types.FaceBox, 0, len(faces))
	for _, f := range faces {
		if f.Confidence >= minConfidence && f.Width > 0 && f.Height > 0 {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 || maxY == 0 {
		return centered
	}

	// Rank by descending area; equal areas keep detection order.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Area() > kept[j].Area()
	})

	best, ok := sweep(kept, cropHeight, maxY)
	if !ok || best.count == 0 {
		return centered
	}
	return best.offset
}

type event struct {
	pos   float64
	start bool
	rank  int
}

type candidate struct {
	offset  int
	mid     float64
	count   int
	ranks   []int
	areaSum float64
	dist    float64 // band center distance to mean face center
}

// sweep walks all inclusion-interval endpoints in increasing position,
// starts before ends at equal positions, and records one candidate per
// maximal span between distinct endpoint positions.
func sweep(faces []types.FaceBox, cropHeight, maxY int) (candidate, bool) {
	events := make([]event, 0, 2*len(faces))
	for rank, f := range faces {
		lo := clampFloat(f.CenterY()-float64(cropHeight), 0, float64(maxY))
		hi := clampFloat(f.CenterY(), 0, float64(maxY))
		events = append(events, event{pos: lo, start: true, rank: rank})
		events = append(events, event{pos: hi, start: false, rank: rank})
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].pos != events[j].pos {
			return events[i].pos < events[j].pos
		}
		if events[i].start != events[j].start {
			return events[i].start
		}
		return events[i].rank < events[j].rank
	})

	active := make([]bool, len(faces))
	var best candidate
	found := false

	i := 0
	for i < len(events) {
		pos := events[i].pos
		for i < len(events) && events[i].pos == pos {
			active[events[i].rank] = events[i].start
			i++
		}
		if i == len(events) {
			break
		}
		c := evaluate(faces, active, pos, events[i].pos, cropHeight, maxY)
		if !found || better(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

// evaluate builds the candidate for the span [from, to] given the currently
// active face ranks.
func evaluate(faces []types.FaceBox, active []bool, from, to float64, cropHeight, maxY int) candidate {
	mid := (from + to) / 2
	c := candidate{
		offset: geometry.Clamp(int(math.Round(mid)), 0, maxY),
		mid:    mid,
	}
	var centerSum float64
	for rank, in := range active {
		if !in {
			continue
		}
		c.count++
		c.ranks = append(c.ranks, rank)
		c.areaSum += faces[rank].Area()
		centerSum += faces[rank].CenterY()
	}
	if c.count > 0 {
		mean := centerSum / float64(c.count)
		c.dist = math.Abs(mid + float64(cropHeight)/2 - mean)
	}
	return c
}

// better reports whether a should be preferred over b. Tie-breaking, in
// order: higher included-face count; rank set keeping the largest faces
// (membership compared rank by rank, bounded by the detected face count);
// higher summed area; smaller band-center distance.
func better(a, b candidate) bool {
	if a.count != b.count {
		return a.count > b.count
	}
	// Both rank slices are ascending, so the first mismatch is the lowest
	// rank whose membership differs; the set containing it wins.
	ia, ib := 0, 0
	for ia < len(a.ranks) && ib < len(b.ranks) {
		if a.ranks[ia] == b.ranks[ib] {
			ia++
			ib++
			continue
		}
		return a.ranks[ia] < b.ranks[ib]
	}
	if ia < len(a.ranks) {
		return true
	}
	if ib < len(b.ranks) {
		return false
	}
	if a.areaSum != b.areaSum {
		return a.areaSum > b.areaSum
	}
	return a.dist < b.dist
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
