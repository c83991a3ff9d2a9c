package detection

import "math"

// Confidence bounds.
const (
	MinConfidence = 0.5
	MaxConfidence = 0.95
)

// Confidence scores a candidate from its rectangularity and its area
// relative to the largest area the detection accepts:
//
//	clamp(rectangularity × (area / maxArea) × 2, 0.5, 0.95)
//
// Large, box-shaped regions score highest. A non-positive maxArea yields
// the minimum.
func Confidence(rectangularity, area, maxArea float64) float64 {
	if maxArea <= 0 {
		return MinConfidence
	}
	raw := rectangularity * (area / maxArea) * 2
	return math.Min(MaxConfidence, math.Max(MinConfidence, raw))
}
