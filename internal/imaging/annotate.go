package imaging

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/ui-regions-mcp/internal/errors"
)

// Box is one rectangle to draw on an overlay.
type Box struct {
	Label      string
	Confidence float64
	X, Y       int
	Width      int
	Height     int
}

// AnnotateOptions controls overlay rendering.
type AnnotateOptions struct {
	// Thickness of the box outline in pixels. Default 2.
	Thickness int

	// ShowLabels draws "label 0.87" above each box.
	ShowLabels bool

	// ColorHex overrides the per-label palette with one "#RRGGBB" color.
	ColorHex string
}

// AnnotateResult contains the image with boxes drawn on it
type AnnotateResult struct {
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Boxes       int               `json:"boxes"`
	Legend      map[string]string `json:"legend"`
	ImageBase64 string            `json:"image_base64"`
	MimeType    string            `json:"mime_type"`
}

// Annotate draws boxes over img and returns the result as a base64 PNG.
//
// Each distinct label gets a stable color derived from the label text, so
// the same label has the same color across calls. The legend maps label to
// hex color.
func Annotate(img *Image, boxes []Box, opts AnnotateOptions) (*AnnotateResult, error) {
	if opts.Thickness <= 0 {
		opts.Thickness = 2
	}

	var override *colorful.Color
	if opts.ColorHex != "" {
		c, err := colorful.Hex(opts.ColorHex)
		if err != nil {
			return nil, errors.NewInvalidParameterError("color", opts.ColorHex, err.Error())
		}
		override = &c
	}

	result := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	draw.Draw(result, result.Bounds(), img.ToNRGBA(), image.Point{}, draw.Src)

	legend := make(map[string]string)
	for _, b := range boxes {
		c := labelColor(b.Label)
		if override != nil {
			c = *override
		}
		legend[b.Label] = c.Hex()

		r, g, bl := c.RGB255()
		stroke := color.RGBA{R: r, G: g, B: bl, A: 255}
		drawRect(result, image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height), opts.Thickness, stroke)

		if opts.ShowLabels {
			text := fmt.Sprintf("%s %.2f", b.Label, b.Confidence)
			drawLabel(result, b.X, b.Y, text, stroke)
		}
	}

	encoded, err := encodeBase64PNG(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &AnnotateResult{
		Width:       img.Width,
		Height:      img.Height,
		Boxes:       len(boxes),
		Legend:      legend,
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// labelColor hashes the label onto the hue circle.
func labelColor(label string) colorful.Color {
	h := fnv.New32a()
	h.Write([]byte(label))
	hue := float64(h.Sum32() % 360)
	return colorful.Hsv(hue, 0.85, 0.95).Clamped()
}

// drawRect strokes the outline of r, clipped to the image.
func drawRect(img *image.RGBA, r image.Rectangle, thickness int, c color.RGBA) {
	u := image.NewUniform(c)
	bounds := img.Bounds()
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(bounds), u, image.Point{}, draw.Src)
	}
}

// drawLabel writes text on a filled tab above (x, y), or just inside the box
// when there is no room above it.
func drawLabel(img *image.RGBA, x, y int, text string, bg color.RGBA) {
	face := basicfont.Face7x13
	tabW := font.MeasureString(face, text).Ceil() + 4
	tabH := face.Height + 2

	top := y - tabH
	if top < 0 {
		top = y
	}
	tab := image.Rect(x, top, x+tabW, top+tabH).Intersect(img.Bounds())
	draw.Draw(img, tab, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x + 2), Y: fixed.I(top + face.Ascent + 1)},
	}
	d.DrawString(text)
}
