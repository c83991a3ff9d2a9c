package compare

import (
	"image"
	"math"
)

// SSIM constants for 8-bit data.
const (
	DefaultWindow = 7
	k1            = 0.01
	k2            = 0.03
	dataRange     = 255.0
)

var (
	c1 = (k1 * dataRange) * (k1 * dataRange)
	c2 = (k2 * dataRange) * (k2 * dataRange)
)

// ssimMap holds the per-pixel similarity of two equally sized gray planes.
type ssimMap struct {
	width, height int
	window        int
	values        []float64
}

// windowFor returns the largest odd window no larger than DefaultWindow
// that fits inside a width x height plane.
func windowFor(width, height int) int {
	win := DefaultWindow
	if width < win {
		win = width
	}
	if height < win {
		win = height
	}
	if win%2 == 0 {
		win--
	}
	if win < 1 {
		win = 1
	}
	return win
}

// computeSSIM builds the structural similarity map of a and b with a
// uniform window and sample covariance. Borders are mirrored.
func computeSSIM(a, b *image.Gray) *ssimMap {
	ab := a.Bounds()
	width, height := ab.Dx(), ab.Dy()
	n := width * height
	win := windowFor(width, height)

	x := planeOf(a)
	y := planeOf(b)
	xx := make([]float64, n)
	yy := make([]float64, n)
	xy := make([]float64, n)
	for i := 0; i < n; i++ {
		xx[i] = x[i] * x[i]
		yy[i] = y[i] * y[i]
		xy[i] = x[i] * y[i]
	}

	ux := boxFilter(x, width, height, win)
	uy := boxFilter(y, width, height, win)
	uxx := boxFilter(xx, width, height, win)
	uyy := boxFilter(yy, width, height, win)
	uxy := boxFilter(xy, width, height, win)

	np := float64(win * win)
	covNorm := 1.0
	if np > 1 {
		covNorm = np / (np - 1)
	}

	values := make([]float64, n)
	for i := 0; i < n; i++ {
		vx := covNorm * (uxx[i] - ux[i]*ux[i])
		vy := covNorm * (uyy[i] - uy[i]*uy[i])
		vxy := covNorm * (uxy[i] - ux[i]*uy[i])

		a1 := 2*ux[i]*uy[i] + c1
		a2 := 2*vxy + c2
		b1 := ux[i]*ux[i] + uy[i]*uy[i] + c1
		b2 := vx + vy + c2
		values[i] = (a1 * a2) / (b1 * b2)
	}

	return &ssimMap{width: width, height: height, window: win, values: values}
}

// mean averages the map away from the border band that the window
// reaches past the image. The whole map is used when that band leaves
// nothing.
func (m *ssimMap) mean() float64 {
	pad := m.window / 2
	x0, y0, x1, y1 := pad, pad, m.width-pad, m.height-pad
	if x1 <= x0 || y1 <= y0 {
		x0, y0, x1, y1 = 0, 0, m.width, m.height
	}

	sum := 0.0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			sum += m.values[y*m.width+x]
		}
	}
	return sum / float64((x1-x0)*(y1-y0))
}

// dissimilarMask scales the map to 8 bits and marks pixels at or below
// threshold as 255.
func (m *ssimMap) dissimilarMask(threshold uint8) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, m.width, m.height))
	for i, s := range m.values {
		v := s * 255
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		if uint8(v) <= threshold {
			mask.Pix[i] = 255
		}
	}
	return mask
}

func planeOf(g *image.Gray) []float64 {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			out[y*w+x] = float64(g.Pix[off+x])
		}
	}
	return out
}

// boxFilter is a separable mean filter. Samples past an edge mirror the
// plane including the edge pixel (d c b a | a b c d).
func boxFilter(src []float64, width, height, win int) []float64 {
	pad := win / 2
	tmp := make([]float64, len(src))
	for y := 0; y < height; y++ {
		row := src[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			sum := 0.0
			for k := -pad; k <= pad; k++ {
				sum += row[mirror(x+k, width)]
			}
			tmp[y*width+x] = sum
		}
	}

	out := make([]float64, len(src))
	scale := 1 / float64(win*win)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum := 0.0
			for k := -pad; k <= pad; k++ {
				sum += tmp[mirror(y+k, height)*width+x]
			}
			out[y*width+x] = sum * scale
		}
	}
	return out
}

func mirror(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		} else {
			i = 2*n - i - 1
		}
	}
	return i
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
