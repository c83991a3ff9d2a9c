package compare

import (
	"time"

	"github.com/ironsheep/ui-regions-mcp/internal/detection"
	"github.com/ironsheep/ui-regions-mcp/internal/imaging"
)

const (
	// ChangeThreshold is the 8-bit similarity at or below which a pixel
	// counts as changed.
	ChangeThreshold = 127

	// MinChangeArea is the contour area a changed region must exceed.
	MinChangeArea = 50
)

// Stage names reported to an Options.Observer.
const (
	StageNormalize = "normalize"
	StageSSIM      = "ssim"
	StageRegions   = "regions"
)

// ChangeRegion is a rectangle where the two screenshots differ.
type ChangeRegion struct {
	detection.BoundingBox

	// Area is the integer part of the region contour's polygon area.
	Area int `json:"area"`
}

// Result is the outcome of comparing two screenshots.
type Result struct {
	// SimilarityScore is the mean structural similarity rounded to four
	// decimals. 1.0 means identical.
	SimilarityScore float64 `json:"similarity_score"`

	// Changes lists the changed regions in discovery order.
	Changes []ChangeRegion `json:"changes"`
}

// Options controls CompareWith.
type Options struct {
	// Alpha controls how 4-channel images are flattened. Both inputs use
	// the same mode.
	Alpha imaging.AlphaMode

	// Observer, when set, receives one event per finished stage.
	Observer detection.Observer
}

// DefaultOptions drops alpha and has no observer.
func DefaultOptions() Options {
	return Options{Alpha: imaging.AlphaDrop}
}

// Compare scores the similarity of two screenshots and locates the regions
// that changed, using DefaultOptions.
func Compare(a, b *imaging.Image) (*Result, error) {
	return CompareWith(a, b, DefaultOptions())
}

// CompareWith is Compare with explicit options.
//
// Both images are normalized to RGB. When the sizes differ b is resized to
// a's dimensions, so regions are reported in a's coordinates. The score and
// the regions come from a 7x7 windowed SSIM map over luminance; images
// smaller than the window use the largest odd window that fits.
//
// Returns an INVALID_IMAGE error if either image is malformed.
func CompareWith(a, b *imaging.Image, opts Options) (*Result, error) {
	started := time.Now()
	rgbA, err := imaging.Normalize(a, opts.Alpha)
	if err != nil {
		return nil, err
	}
	rgbB, err := imaging.Normalize(b, opts.Alpha)
	if err != nil {
		return nil, err
	}
	rgbB = imaging.Resize(rgbB, rgbA.Width, rgbA.Height)
	notify(opts.Observer, StageNormalize, rgbA.Width*rgbA.Height, started)

	started = time.Now()
	m := computeSSIM(imaging.Luminance(rgbA), imaging.Luminance(rgbB))
	score := round4(m.mean())
	notify(opts.Observer, StageSSIM, len(m.values), started)

	started = time.Now()
	changes := []ChangeRegion{}
	for _, c := range detection.FindContours(m.dissimilarMask(ChangeThreshold)) {
		if c.Area > MinChangeArea {
			changes = append(changes, ChangeRegion{BoundingBox: c.Box, Area: int(c.Area)})
		}
	}
	notify(opts.Observer, StageRegions, len(changes), started)

	return &Result{SimilarityScore: score, Changes: changes}, nil
}

func notify(o detection.Observer, stage string, count int, started time.Time) {
	if o != nil {
		o(detection.StageEvent{Stage: stage, Count: count, Elapsed: time.Since(started)})
	}
}
