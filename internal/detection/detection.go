package detection

import (
	"math"
	"time"

	"github.com/ironsheep/ui-regions-mcp/internal/errors"
	"github.com/ironsheep/ui-regions-mcp/internal/imaging"
)

// Detection is one labeled UI region.
type Detection struct {
	// Label is the classifier's category, e.g. "window" or "button".
	Label string `json:"label"`

	// Confidence is in [0.5, 0.95] for fresh detections. Merged detections
	// carry the highest confidence of their parts.
	Confidence float64 `json:"confidence"`

	// Box is the region in image pixels.
	Box BoundingBox `json:"box"`
}

// Candidate is a detection before overlap merging, with the measurements
// it was classified and scored from.
type Candidate struct {
	Detection

	// Area is the contour's polygon area.
	Area float64 `json:"area"`

	// Rectangularity is Area divided by the box area.
	Rectangularity float64 `json:"rectangularity"`
}

// Pipeline stage names reported to an Observer.
const (
	StageNormalize = "normalize"
	StageEdges     = "edges"
	StageDilate    = "dilate"
	StageContours  = "contours"
	StageClassify  = "classify"
	StageMerge     = "merge"
)

// StageEvent describes one finished pipeline stage.
type StageEvent struct {
	Stage   string
	Count   int // pixels or items the stage produced
	Elapsed time.Duration
}

// Observer receives stage events. It is called synchronously on the
// detecting goroutine.
type Observer func(StageEvent)

func (o Observer) emit(stage string, count int, started time.Time) {
	if o != nil {
		o(StageEvent{Stage: stage, Count: count, Elapsed: time.Since(started)})
	}
}

// Params controls detection.
type Params struct {
	// Sensitivity in [0, 1] sets the edge thresholds. Out-of-range values
	// are clamped. NaN is rejected.
	Sensitivity float64

	// MinArea and MaxArea bound the contour area of candidates. A MaxArea of
	// 0 means 90% of the image area.
	MinArea float64
	MaxArea float64

	// Profile picks the classifier rule list.
	Profile Profile

	// Alpha controls how 4-channel images are flattened.
	Alpha imaging.AlphaMode

	// Observer, when set, is told about every finished stage.
	Observer Observer
}

// DefaultParams returns sensitivity 0.5, minimum area 100, automatic
// maximum area, the desktop profile and alpha compositing over white.
func DefaultParams() Params {
	return Params{
		Sensitivity: 0.5,
		MinArea:     100,
		Profile:     ProfileDesktop,
		Alpha:       imaging.AlphaComposite,
	}
}

// DefaultMaxAreaRatio is the share of the image area used when MaxArea is 0.
const DefaultMaxAreaRatio = 0.9

// resolved holds validated parameters for one image.
type resolved struct {
	sensitivity float64
	minArea     float64
	maxArea     float64
}

func (p Params) resolve(width, height int) (resolved, error) {
	if math.IsNaN(p.Sensitivity) {
		return resolved{}, errors.NewInvalidParameterError("sensitivity", p.Sensitivity, "not a number")
	}
	if math.IsNaN(p.MinArea) || p.MinArea < 0 {
		return resolved{}, errors.NewInvalidParameterError("min_area", p.MinArea, "must be >= 0")
	}
	if math.IsNaN(p.MaxArea) || p.MaxArea < 0 {
		return resolved{}, errors.NewInvalidParameterError("max_area", p.MaxArea, "must be >= 0")
	}
	if _, ok := profiles[p.Profile]; !ok {
		return resolved{}, errors.NewInvalidParameterError("profile", int(p.Profile), "unknown profile")
	}

	r := resolved{
		sensitivity: math.Max(0, math.Min(1, p.Sensitivity)),
		minArea:     p.MinArea,
		maxArea:     p.MaxArea,
	}
	if r.maxArea == 0 {
		r.maxArea = float64(width) * float64(height) * DefaultMaxAreaRatio
	}
	if r.minArea > r.maxArea {
		return resolved{}, errors.NewInvalidParameterError("min_area", p.MinArea,
			"exceeds max_area")
	}
	return r, nil
}
