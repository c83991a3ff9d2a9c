package detection

import (
	"image"
	"math"
)

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// BoundingBox is an axis-aligned rectangle in pixel coordinates.
//
// (X, Y) is the top-left pixel. Width and Height count pixels, so the box
// covers columns X..X+Width-1 and rows Y..Y+Height-1.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// X2 is the exclusive right edge.
func (b BoundingBox) X2() int { return b.X + b.Width }

// Y2 is the exclusive bottom edge.
func (b BoundingBox) Y2() int { return b.Y + b.Height }

// Area is Width × Height.
func (b BoundingBox) Area() int { return b.Width * b.Height }

// Contour is the outer border of one connected group of foreground pixels.
type Contour struct {
	// Points is the closed border polyline through pixel centers. Runs of
	// collinear border pixels are reduced to their end points.
	Points []Point

	// Box is the tightest box containing every border pixel.
	Box BoundingBox

	// Area is the polygon area enclosed by Points (shoelace formula). A
	// filled w×h block has area (w-1)×(h-1); lines and single pixels have 0.
	Area float64
}

// Neighbor offsets in clockwise screen order starting east.
var neighbors = [8]Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

const dirWest = 4

// FindContours extracts the outermost contours of a binary mask.
//
// Foreground is any non-zero pixel. Foreground pixels are 8-connected and
// background pixels 4-connected. The image is treated as surrounded by
// background, so shapes touching the border still get closed contours.
// A component lying inside a hole of another component is not reported.
//
// Contours are returned in the order their top-left pixel is met by a
// row-major scan. An empty mask yields an empty slice.
//
// # Algorithm
//
//  1. Pad the mask with a one-pixel background frame.
//  2. Flood the background reachable from the frame (4-connected). This is
//     the region outside every component.
//  3. Scan rows. The first pixel of each new component is always on its
//     outer border, and its upper neighbor is background. The component is
//     outermost exactly when that neighbor belongs to the outside region.
//  4. Follow the outer border from that pixel (Suzuki–Abe border following)
//     and label the component so it is not visited again.
func FindContours(mask *image.Gray) []Contour {
	b := mask.Bounds()
	width, height := b.Dx(), b.Dy()
	contours := make([]Contour, 0)
	if width == 0 || height == 0 {
		return contours
	}

	pw, ph := width+2, height+2
	fg := make([]bool, pw*ph)
	for y := 0; y < height; y++ {
		off := mask.PixOffset(b.Min.X, y+b.Min.Y)
		row := mask.Pix[off : off+width]
		for x, v := range row {
			if v != 0 {
				fg[(y+1)*pw+x+1] = true
			}
		}
	}

	outside := floodBackground(fg, pw, ph)
	labeled := make([]bool, pw*ph)
	stack := make([]int, 0, 256)

	for y := 1; y <= height; y++ {
		for x := 1; x <= width; x++ {
			p := y*pw + x
			if !fg[p] || labeled[p] {
				continue
			}

			// Label the whole 8-connected component.
			labeled[p] = true
			stack = append(stack[:0], p)
			for len(stack) > 0 {
				q := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				qx, qy := q%pw, q/pw
				for _, d := range neighbors {
					n := (qy+d.Y)*pw + qx + d.X
					if fg[n] && !labeled[n] {
						labeled[n] = true
						stack = append(stack, n)
					}
				}
			}

			if !outside[p-pw] {
				continue
			}
			contours = append(contours, traceBorder(fg, pw, x, y))
		}
	}

	return contours
}

// floodBackground marks background pixels 4-connected to the padded frame.
func floodBackground(fg []bool, pw, ph int) []bool {
	outside := make([]bool, pw*ph)
	outside[0] = true
	stack := []int{0}
	for len(stack) > 0 {
		q := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		qx, qy := q%pw, q/pw
		for _, d := range [4]Point{{1, 0}, {0, 1}, {-1, 0}, {0, -1}} {
			nx, ny := qx+d.X, qy+d.Y
			if nx < 0 || ny < 0 || nx >= pw || ny >= ph {
				continue
			}
			n := ny*pw + nx
			if !fg[n] && !outside[n] {
				outside[n] = true
				stack = append(stack, n)
			}
		}
	}
	return outside
}

// traceBorder follows the outer border that starts at padded pixel (sx, sy),
// whose west neighbor is background.
func traceBorder(fg []bool, pw, sx, sy int) Contour {
	at := func(x, y, dir int) (int, int, bool) {
		nx, ny := x+neighbors[dir].X, y+neighbors[dir].Y
		return nx, ny, fg[ny*pw+nx]
	}

	// Clockwise from the west neighbor for the last pixel of the border.
	firstDir := -1
	var x1, y1 int
	for k := 0; k < 8; k++ {
		d := (dirWest + k) % 8
		if nx, ny, ok := at(sx, sy, d); ok {
			firstDir, x1, y1 = d, nx, ny
			break
		}
	}

	start := Point{sx - 1, sy - 1}
	if firstDir < 0 {
		return Contour{
			Points: []Point{start},
			Box:    BoundingBox{X: start.X, Y: start.Y, Width: 1, Height: 1},
		}
	}

	border := []Point{start}
	cx, cy := sx, sy
	back := firstDir // direction from the current pixel to the previous one
	for {
		// Counterclockwise from the previous pixel for the next one.
		var nx, ny, dir int
		for k := 1; k <= 8; k++ {
			d := (back - k + 16) % 8
			if px, py, ok := at(cx, cy, d); ok {
				nx, ny, dir = px, py, d
				break
			}
		}
		if nx == sx && ny == sy && cx == x1 && cy == y1 {
			break
		}
		cx, cy = nx, ny
		back = (dir + 4) % 8
		border = append(border, Point{cx - 1, cy - 1})
	}

	return Contour{
		Points: compressChain(border),
		Box:    boundingBox(border),
		Area:   polygonArea(border),
	}
}

// compressChain drops border points that continue in the same direction as
// the previous step.
func compressChain(pts []Point) []Point {
	n := len(pts)
	if n < 3 {
		return pts
	}
	out := make([]Point, 0, n)
	for i, p := range pts {
		prev := pts[(i-1+n)%n]
		next := pts[(i+1)%n]
		inX, inY := p.X-prev.X, p.Y-prev.Y
		outX, outY := next.X-p.X, next.Y-p.Y
		if inX != outX || inY != outY {
			out = append(out, p)
		}
	}
	return out
}

func boundingBox(pts []Point) BoundingBox {
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = minInt(minX, p.X)
		minY = minInt(minY, p.Y)
		maxX = maxInt(maxX, p.X)
		maxY = maxInt(maxY, p.Y)
	}
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
}

// polygonArea is the absolute shoelace area of a closed polyline.
func polygonArea(pts []Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	var sum int
	for i, p := range pts {
		q := pts[(i+1)%n]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(float64(sum)) / 2
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
