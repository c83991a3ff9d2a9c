package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/ui-regions-mcp/internal/errors"
)

// CropResult contains the cropped image data
type CropResult struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropRegion extracts the rectangle at (x, y) with the given size, optionally
// scaled, and returns it as a base64 PNG. The rectangle uses the same
// {X, Y, Width, Height} form detections and change regions are reported in,
// so a detection box can be passed straight back in.
//
// An optional padding grows the rectangle on every side, clipped to the
// image bounds.
func CropRegion(img *Image, x, y, width, height, padding int, scale float64) (*CropResult, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.NewInvalidParameterError("width", width, "width and height must be positive")
	}
	full := image.Rect(0, 0, img.Width, img.Height)
	if x < 0 || y < 0 || x+width > img.Width || y+height > img.Height {
		return nil, errors.NewInvalidParameterError("region", fmt.Sprintf("%d,%d %dx%d", x, y, width, height),
			fmt.Sprintf("outside image bounds %dx%d", img.Width, img.Height))
	}

	rect := image.Rect(x-padding, y-padding, x+width+padding, y+height+padding).Intersect(full)
	cropped := imaging.Crop(img.ToNRGBA(), rect)

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		if newWidth < 1 || newHeight < 1 {
			return nil, errors.NewInvalidParameterError("scale", scale, "collapses the region to nothing")
		}
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	encoded, err := encodeBase64PNG(cropped)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &CropResult{
		X:           rect.Min.X,
		Y:           rect.Min.Y,
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}
