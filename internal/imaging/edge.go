package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/anthonynsimon/bild/convolution"
)

// EdgeDetectResult contains an edge map encoded as base64 PNG.
//
// The result is a grayscale image where white pixels (255) are edge pixels
// and black pixels (0) are background.
type EdgeDetectResult struct {
	// Width of the output image in pixels (same as input).
	Width int `json:"width"`

	// Height of the output image in pixels (same as input).
	Height int `json:"height"`

	// EdgePixels is the number of white pixels in the map.
	EdgePixels int `json:"edge_pixels"`

	// ThresholdLow and ThresholdHigh are the hysteresis thresholds that
	// the sensitivity resolved to.
	ThresholdLow  int `json:"threshold_low"`
	ThresholdHigh int `json:"threshold_high"`

	// ImageBase64 is the edge map encoded as base64 PNG.
	ImageBase64 string `json:"image_base64"`

	// MimeType is always "image/png".
	MimeType string `json:"mime_type"`
}

// EdgeThresholds derives the two hysteresis thresholds from a sensitivity in
// [0, 1]. Higher sensitivity lowers the low threshold and raises the high one:
//
//	low  = floor(100 * (1 - sensitivity))
//	high = floor(200 * sensitivity + 100)
func EdgeThresholds(sensitivity float64) (low, high int) {
	low = int(math.Floor(100 * (1 - sensitivity)))
	high = int(math.Floor(200*sensitivity + 100))
	return low, high
}

// DetectEdges runs luminance conversion, Gaussian smoothing and the
// two-threshold edge operator over a 3-channel image.
func DetectEdges(rgb *Image, sensitivity float64) *image.Gray {
	low, high := EdgeThresholds(sensitivity)
	return Canny(GaussianBlur(Luminance(rgb)), low, high)
}

// EdgeMap produces the dilated edge map the contour extractor works on and
// encodes it as a base64 PNG.
//
// Parameters:
//   - img: Source image with 1, 3 or 4 channels.
//   - sensitivity: Edge sensitivity in [0, 1]. Values outside are clamped.
//   - mode: How a 4-channel source loses its alpha channel.
//
// Returns:
//   - *EdgeDetectResult: Binary edge map as base64 PNG.
//   - error: INVALID_IMAGE for a malformed source, or a PNG encoding failure.
func EdgeMap(img *Image, sensitivity float64, mode AlphaMode) (*EdgeDetectResult, error) {
	rgb, err := Normalize(img, mode)
	if err != nil {
		return nil, err
	}
	sensitivity = math.Max(0, math.Min(1, sensitivity))
	low, high := EdgeThresholds(sensitivity)

	mask := Dilate(DetectEdges(rgb, sensitivity), DefaultDilateIterations)

	count := 0
	for _, v := range mask.Pix {
		if v != 0 {
			count++
		}
	}

	encoded, err := encodeBase64PNG(mask)
	if err != nil {
		return nil, fmt.Errorf("failed to encode edge image: %w", err)
	}

	return &EdgeDetectResult{
		Width:         rgb.Width,
		Height:        rgb.Height,
		EdgePixels:    count,
		ThresholdLow:  low,
		ThresholdHigh: high,
		ImageBase64:   encoded,
		MimeType:      "image/png",
	}, nil
}

// GaussianBlur smooths a gray plane with the 5x5 binomial kernel
//
//	[1 4 6 4 1]ᵀ · [1 4 6 4 1] / 256
//
// which is the Gaussian a 5-tap kernel gets when sigma is derived from the
// kernel size. Borders replicate the edge pixels.
func GaussianBlur(gray *image.Gray) *image.Gray {
	taps := [5]float64{1, 4, 6, 4, 1}
	k := convolution.NewKernel(5, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			k.Matrix[y*5+x] = taps[y] * taps[x] / 256
		}
	}

	// Bias 0.5 turns the truncating store into round-half-up.
	blurred := convolution.Convolve(gray, k, &convolution.Options{Bias: 0.5, Wrap: false})

	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for i := range out.Pix {
		out.Pix[i] = blurred.Pix[i*4]
	}
	return out
}

// tan(22.5°) in Q15 fixed point.
const tg22 = 13573

// Canny applies the two-threshold edge operator to a smoothed gray plane.
//
// # Algorithm
//
//  1. Gradients: 3x3 Sobel operators, replicated borders.
//     magnitude = |Gx| + |Gy|
//
//  2. Non-maximum suppression: the gradient direction is quantized into
//     horizontal, vertical and two diagonal sectors, and a pixel survives
//     only if its magnitude exceeds the neighbor behind it and is not below
//     the neighbor ahead of it (strictly greater than both on diagonals).
//
//  3. Hysteresis: surviving pixels above thresholdHigh seed edges, pixels
//     above thresholdLow join an edge when 8-connected to one.
//
// Thresholds are on the raw magnitude scale (0..2040 for 8-bit input).
// Output pixels are 255 on edges and 0 elsewhere.
func Canny(gray *image.Gray, thresholdLow, thresholdHigh int) *image.Gray {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	if thresholdLow > thresholdHigh {
		thresholdLow, thresholdHigh = thresholdHigh, thresholdLow
	}

	at := func(x, y int) int {
		x = clamp(x, 0, width-1)
		y = clamp(y, 0, height-1)
		return int(gray.Pix[gray.PixOffset(x+b.Min.X, y+b.Min.Y)])
	}

	gradX := make([]int, width*height)
	gradY := make([]int, width*height)
	magnitude := make([]int, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			i := y*width + x
			gradX[i] = gx
			gradY[i] = gy
			magnitude[i] = absInt(gx) + absInt(gy)
		}
	}

	mag := func(x, y int) int {
		if x < 0 || y < 0 || x >= width || y >= height {
			return 0
		}
		return magnitude[y*width+x]
	}

	const (
		none = iota
		weak
		strong
	)
	state := make([]uint8, width*height)
	stack := make([]int, 0, 1024)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			m := magnitude[i]
			if m <= thresholdLow {
				continue
			}

			gx, gy := gradX[i], gradY[i]
			xs, ys := absInt(gx), absInt(gy)
			tg22x := xs * tg22
			yq := ys << 15

			var keep bool
			switch {
			case yq < tg22x:
				keep = m > mag(x-1, y) && m >= mag(x+1, y)
			case yq > tg22x+(xs<<16):
				keep = m > mag(x, y-1) && m >= mag(x, y+1)
			default:
				s := 1
				if (gx < 0) != (gy < 0) {
					s = -1
				}
				keep = m > mag(x-s, y-1) && m > mag(x+s, y+1)
			}
			if !keep {
				continue
			}

			if m > thresholdHigh {
				state[i] = strong
				stack = append(stack, i)
			} else {
				state[i] = weak
			}
		}
	}

	// Grow strong edges through 8-connected weak pixels.
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%width, i/width
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= width || ny >= height {
					continue
				}
				j := ny*width + nx
				if state[j] == weak {
					state[j] = strong
					stack = append(stack, j)
				}
			}
		}
	}

	result := image.NewGray(image.Rect(0, 0, width, height))
	for i, s := range state {
		if s == strong {
			result.Pix[i] = 255
		}
	}
	return result
}

func encodeBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
