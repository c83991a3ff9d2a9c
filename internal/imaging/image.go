package imaging

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/ui-regions-mcp/internal/errors"
)

// Image is a decoded raster held as a dense, interleaved 8-bit buffer.
//
// Pixel (x, y) channel c lives at Pix[(y*Width+x)*Channels+c]. Channel order
// is gray for 1 channel, RGB for 3 and RGBA (non-premultiplied) for 4.
//
// An Image is never modified after construction. Every processing stage
// allocates its own output buffer.
type Image struct {
	Pix      []uint8
	Width    int
	Height   int
	Channels int
}

// NewImage validates the geometry and copies pix into a new Image.
//
// Returns an INVALID_IMAGE error when width or height is not positive, the
// channel count is not 1, 3 or 4, or len(pix) != width*height*channels.
func NewImage(pix []uint8, width, height, channels int) (*Image, error) {
	if err := validateGeometry(width, height, channels); err != nil {
		return nil, err
	}
	if len(pix) != width*height*channels {
		return nil, errors.NewInvalidImageError(width, height, channels, "buffer length does not match dimensions")
	}

	owned := make([]uint8, len(pix))
	copy(owned, pix)
	return &Image{Pix: owned, Width: width, Height: height, Channels: channels}, nil
}

func validateGeometry(width, height, channels int) error {
	if width <= 0 || height <= 0 {
		return errors.NewInvalidImageError(width, height, channels, "dimensions must be positive")
	}
	if channels != 1 && channels != 3 && channels != 4 {
		return errors.NewInvalidImageError(width, height, channels, "channel count must be 1, 3 or 4")
	}
	return nil
}

// FromImage converts a decoded Go image into an Image.
//
// Grayscale sources become 1-channel images, sources whose color model can
// carry transparency become 4-channel images and everything else becomes a
// 3-channel RGB image.
func FromImage(src image.Image) (*Image, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, errors.NewInvalidImageError(w, h, 0, "dimensions must be positive")
	}

	switch s := src.(type) {
	case *image.Gray:
		pix := make([]uint8, w*h)
		for y := 0; y < h; y++ {
			off := s.PixOffset(b.Min.X, y+b.Min.Y)
			copy(pix[y*w:(y+1)*w], s.Pix[off:off+w])
		}
		return &Image{Pix: pix, Width: w, Height: h, Channels: 1}, nil
	case *image.Gray16:
		pix := make([]uint8, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				pix[y*w+x] = uint8(s.Gray16At(x+b.Min.X, y+b.Min.Y).Y >> 8)
			}
		}
		return &Image{Pix: pix, Width: w, Height: h, Channels: 1}, nil
	}

	nrgba := imaging.Clone(src)
	if hasAlphaModel(src) {
		return &Image{Pix: nrgba.Pix, Width: w, Height: h, Channels: 4}, nil
	}

	pix := make([]uint8, w*h*3)
	for i, j := 0, 0; i < len(nrgba.Pix); i, j = i+4, j+3 {
		pix[j] = nrgba.Pix[i]
		pix[j+1] = nrgba.Pix[i+1]
		pix[j+2] = nrgba.Pix[i+2]
	}
	return &Image{Pix: pix, Width: w, Height: h, Channels: 3}, nil
}

func hasAlphaModel(src image.Image) bool {
	switch s := src.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return true
	case *image.Paletted:
		for _, c := range s.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// ToNRGBA renders the image as an *image.NRGBA for encoding and drawing.
func (m *Image) ToNRGBA() *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	n := m.Width * m.Height
	for i := 0; i < n; i++ {
		d := dst.Pix[i*4 : i*4+4]
		switch m.Channels {
		case 1:
			v := m.Pix[i]
			d[0], d[1], d[2], d[3] = v, v, v, 0xff
		case 3:
			s := m.Pix[i*3 : i*3+3]
			d[0], d[1], d[2], d[3] = s[0], s[1], s[2], 0xff
		case 4:
			copy(d, m.Pix[i*4:i*4+4])
		}
	}
	return dst
}

// AlphaMode selects how 4-channel inputs lose their alpha channel.
type AlphaMode int

const (
	// AlphaComposite blends the pixels over an opaque white background.
	AlphaComposite AlphaMode = iota
	// AlphaDrop discards alpha and keeps the stored color values.
	AlphaDrop
)

// ParseAlphaMode maps "composite" (or "") and "drop" to an AlphaMode.
func ParseAlphaMode(s string) (AlphaMode, error) {
	switch s {
	case "", "composite":
		return AlphaComposite, nil
	case "drop":
		return AlphaDrop, nil
	default:
		return AlphaComposite, errors.NewInvalidParameterError("alpha", s, "must be composite or drop")
	}
}

func (a AlphaMode) String() string {
	if a == AlphaDrop {
		return "drop"
	}
	return "composite"
}

// Normalize converts img into the 3-channel RGB working form.
//
// 1-channel images are replicated across R, G and B. 4-channel images follow
// mode. 3-channel images are copied unchanged.
func Normalize(img *Image, mode AlphaMode) (*Image, error) {
	if img == nil {
		return nil, errors.NewInvalidImageError(0, 0, 0, "image is nil")
	}
	if err := validateGeometry(img.Width, img.Height, img.Channels); err != nil {
		return nil, err
	}
	n := img.Width * img.Height
	if len(img.Pix) != n*img.Channels {
		return nil, errors.NewInvalidImageError(img.Width, img.Height, img.Channels, "buffer length does not match dimensions")
	}

	out := &Image{Pix: make([]uint8, n*3), Width: img.Width, Height: img.Height, Channels: 3}

	switch img.Channels {
	case 1:
		for i, v := range img.Pix {
			out.Pix[i*3], out.Pix[i*3+1], out.Pix[i*3+2] = v, v, v
		}
	case 3:
		copy(out.Pix, img.Pix)
	case 4:
		src := img.Pix
		if mode == AlphaComposite {
			bg := imaging.New(img.Width, img.Height, color.White)
			fg := &image.NRGBA{Pix: img.Pix, Stride: img.Width * 4, Rect: image.Rect(0, 0, img.Width, img.Height)}
			src = imaging.Overlay(bg, fg, image.Pt(0, 0), 1.0).Pix
		}
		for i := 0; i < n; i++ {
			out.Pix[i*3] = src[i*4]
			out.Pix[i*3+1] = src[i*4+1]
			out.Pix[i*3+2] = src[i*4+2]
		}
	}
	return out, nil
}

// Luminance converts a 3-channel RGB image to 8-bit gray using BT.601
// weights in 14-bit fixed point.
func Luminance(rgb *Image) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, rgb.Width, rgb.Height))
	for i := range gray.Pix {
		r := uint32(rgb.Pix[i*3])
		g := uint32(rgb.Pix[i*3+1])
		b := uint32(rgb.Pix[i*3+2])
		gray.Pix[i] = uint8((r*4899 + g*9617 + b*1868 + 8192) >> 14)
	}
	return gray
}

// Resize returns rgb scaled to width x height with bilinear filtering.
// The input is returned unchanged when it already has those dimensions.
func Resize(rgb *Image, width, height int) *Image {
	if rgb.Width == width && rgb.Height == height {
		return rgb
	}
	resized := imaging.Resize(rgb.ToNRGBA(), width, height, imaging.Linear)
	out := &Image{Pix: make([]uint8, width*height*3), Width: width, Height: height, Channels: 3}
	for i, j := 0, 0; i < len(resized.Pix); i, j = i+4, j+3 {
		out.Pix[j] = resized.Pix[i]
		out.Pix[j+1] = resized.Pix[i+1]
		out.Pix[j+2] = resized.Pix[i+2]
	}
	return out
}
