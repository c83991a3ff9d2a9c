package detection

import "math"

// MergeThreshold is the candidate count above which overlapping same-label
// detections are merged. Smaller lists are returned unchanged.
const MergeThreshold = 3

// MergeOverlapRatio is the fraction of the smaller box that must be covered
// by the intersection for two boxes to merge.
const MergeOverlapRatio = 0.5

// Merge collapses overlapping detections that share a label.
//
// Lists of MergeThreshold or fewer detections are returned as a copy,
// unmodified. Otherwise a single greedy pass runs in input order: each
// unmerged detection i absorbs every later unmerged detection j with the
// same label whose box intersects i's current box by more than half of the
// smaller of the two areas. The absorbed box grows to the union and the
// confidence becomes the maximum of the two. Because i's box grows as it
// absorbs, a later j can be absorbed through an earlier one even when it
// does not overlap its starting box, so the result depends on input order.
//
// The input slice is not modified.
func Merge(detections []Detection) []Detection {
	if len(detections) <= MergeThreshold {
		out := make([]Detection, len(detections))
		copy(out, detections)
		return out
	}

	merged := make([]bool, len(detections))
	out := make([]Detection, 0, len(detections))

	for i, d := range detections {
		if merged[i] {
			continue
		}
		current := d
		for j := i + 1; j < len(detections); j++ {
			if merged[j] || detections[j].Label != current.Label {
				continue
			}
			other := detections[j].Box
			inter := intersectionArea(current.Box, other)
			if inter == 0 {
				continue
			}
			smaller := math.Min(float64(current.Box.Area()), float64(other.Area()))
			if float64(inter) > MergeOverlapRatio*smaller {
				current = Detection{
					Label:      current.Label,
					Confidence: math.Max(current.Confidence, detections[j].Confidence),
					Box:        unionBox(current.Box, other),
				}
				merged[j] = true
			}
		}
		out = append(out, current)
	}

	return out
}

// intersectionArea is the overlap of two boxes, or 0 when they only touch
// or are disjoint.
func intersectionArea(a, b BoundingBox) int {
	w := minInt(a.X2(), b.X2()) - maxInt(a.X, b.X)
	h := minInt(a.Y2(), b.Y2()) - maxInt(a.Y, b.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// unionBox is the smallest box containing both boxes.
func unionBox(a, b BoundingBox) BoundingBox {
	x1, y1 := minInt(a.X, b.X), minInt(a.Y, b.Y)
	x2, y2 := maxInt(a.X2(), b.X2()), maxInt(a.Y2(), b.Y2())
	return BoundingBox{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}
