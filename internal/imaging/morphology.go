package imaging

import "image"

// DefaultDilateIterations is how often the 3x3 element is applied to the
// edge map before contour extraction. It closes small gaps in element
// outlines.
const DefaultDilateIterations = 2

// Dilate grows the non-zero pixels of a binary plane with a 3x3 all-ones
// structuring element, repeated iterations times. Pixels outside the image
// never contribute.
func Dilate(mask *image.Gray, iterations int) *image.Gray {
	b := mask.Bounds()
	width, height := b.Dx(), b.Dy()

	cur := make([]uint8, width*height)
	for y := 0; y < height; y++ {
		off := mask.PixOffset(b.Min.X, y+b.Min.Y)
		copy(cur[y*width:(y+1)*width], mask.Pix[off:off+width])
	}
	tmp := make([]uint8, width*height)

	// The square element is separable: a horizontal max then a vertical max.
	for it := 0; it < iterations; it++ {
		for y := 0; y < height; y++ {
			row := cur[y*width : (y+1)*width]
			out := tmp[y*width : (y+1)*width]
			for x := 0; x < width; x++ {
				v := row[x]
				if x > 0 && row[x-1] > v {
					v = row[x-1]
				}
				if x < width-1 && row[x+1] > v {
					v = row[x+1]
				}
				out[x] = v
			}
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				v := tmp[i]
				if y > 0 && tmp[i-width] > v {
					v = tmp[i-width]
				}
				if y < height-1 && tmp[i+width] > v {
					v = tmp[i+width]
				}
				cur[i] = v
			}
		}
	}

	return &image.Gray{Pix: cur, Stride: width, Rect: image.Rect(0, 0, width, height)}
}
