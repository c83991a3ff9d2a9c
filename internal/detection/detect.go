package detection

import (
	"time"

	"github.com/ironsheep/ui-regions-mcp/internal/imaging"
)

// Detect proposes labeled UI regions in a screenshot.
//
// Parameters:
//   - img: Screenshot with 1, 3 or 4 channels. It is not modified.
//   - p: Detection parameters. See DefaultParams.
//
// Returns:
//   - []Detection: Regions in contour discovery order (top-left first),
//     after overlap merging. Empty when nothing qualifies.
//   - error: INVALID_IMAGE for malformed images, INVALID_PARAMETER for
//     rejected parameters. No partial result is returned with an error.
//
// # Pipeline
//
//  1. Normalize to RGB and take the luminance.
//  2. Gaussian blur and two-threshold edge detection. The sensitivity maps
//     to the thresholds through imaging.EdgeThresholds.
//  3. Dilate the edge map twice with a 3x3 element.
//  4. Extract the outermost contours.
//  5. Keep contours with MinArea <= area <= MaxArea, classify and score them.
//  6. Merge overlapping same-label regions when there are more than three.
//
// The result depends only on the pixels and the parameters.
func Detect(img *imaging.Image, p Params) ([]Detection, error) {
	candidates, err := Candidates(img, p)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	detections := make([]Detection, len(candidates))
	for i, c := range candidates {
		detections[i] = c.Detection
	}
	merged := Merge(detections)
	p.Observer.emit(StageMerge, len(merged), started)

	return merged, nil
}

// Candidates runs every stage of Detect except the final merge.
func Candidates(img *imaging.Image, p Params) ([]Candidate, error) {
	started := time.Now()
	rgb, err := imaging.Normalize(img, p.Alpha)
	if err != nil {
		return nil, err
	}
	r, err := p.resolve(rgb.Width, rgb.Height)
	if err != nil {
		return nil, err
	}
	p.Observer.emit(StageNormalize, rgb.Width*rgb.Height, started)

	contours := extractContours(rgb, r.sensitivity, p.Observer)

	started = time.Now()
	candidates := make([]Candidate, 0, len(contours))
	for _, c := range contours {
		box := c.Box
		if box.Width <= 0 || box.Height <= 0 {
			continue
		}
		if c.Area < r.minArea || c.Area > r.maxArea {
			continue
		}

		rect := c.Area / float64(box.Area())
		label := Classify(Shape{
			Width:          box.Width,
			Height:         box.Height,
			ImageWidth:     rgb.Width,
			ImageHeight:    rgb.Height,
			Rectangularity: rect,
		}, p.Profile)

		candidates = append(candidates, Candidate{
			Detection: Detection{
				Label:      label,
				Confidence: Confidence(rect, c.Area, r.maxArea),
				Box:        box,
			},
			Area:           c.Area,
			Rectangularity: rect,
		})
	}
	p.Observer.emit(StageClassify, len(candidates), started)

	return candidates, nil
}

// ExtractContours returns the outermost contours of the dilated edge map
// of img, before any area filtering.
func ExtractContours(img *imaging.Image, p Params) ([]Contour, error) {
	rgb, err := imaging.Normalize(img, p.Alpha)
	if err != nil {
		return nil, err
	}
	r, err := p.resolve(rgb.Width, rgb.Height)
	if err != nil {
		return nil, err
	}
	return extractContours(rgb, r.sensitivity, p.Observer), nil
}

func extractContours(rgb *imaging.Image, sensitivity float64, obs Observer) []Contour {
	started := time.Now()
	edges := imaging.DetectEdges(rgb, sensitivity)
	obs.emit(StageEdges, countSet(edges.Pix), started)

	started = time.Now()
	mask := imaging.Dilate(edges, imaging.DefaultDilateIterations)
	obs.emit(StageDilate, countSet(mask.Pix), started)

	started = time.Now()
	contours := FindContours(mask)
	obs.emit(StageContours, len(contours), started)
	return contours
}

func countSet(pix []uint8) int {
	n := 0
	for _, v := range pix {
		if v != 0 {
			n++
		}
	}
	return n
}
