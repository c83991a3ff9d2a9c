package imaging

import (
	"encoding/base64"
	"image"
	"image/png"
	"strings"
	"testing"
)

func decodeResultPNG(t *testing.T, b64 string) image.Image {
	t.Helper()
	decoded, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(strings.NewReader(string(decoded)))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	return img
}

func TestAnnotate_DrawsOutline(t *testing.T) {
	img := solidRGB(60, 40, 0, 0, 0)
	boxes := []Box{{Label: "button", Confidence: 0.9, X: 10, Y: 10, Width: 20, Height: 10}}

	result, err := Annotate(img, boxes, AnnotateOptions{ColorHex: "#00ff00"})
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if result.Boxes != 1 || result.Width != 60 || result.Height != 40 {
		t.Errorf("result = %+v", result)
	}
	if result.Legend["button"] != "#00ff00" {
		t.Errorf("legend = %v", result.Legend)
	}

	out := decodeResultPNG(t, result.ImageBase64)

	tests := []struct {
		name      string
		x, y      int
		wantGreen bool
	}{
		{"left edge", 10, 15, true},
		{"left edge inner stroke", 11, 15, true},
		{"top edge", 20, 10, true},
		{"right edge", 29, 15, true},
		{"interior", 20, 15, false},
		{"outside", 5, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, g, _, _ := out.At(tt.x, tt.y).RGBA()
			isGreen := g>>8 == 255
			if isGreen != tt.wantGreen {
				t.Errorf("pixel (%d,%d) green=%v, want %v", tt.x, tt.y, isGreen, tt.wantGreen)
			}
		})
	}
}

func TestAnnotate_StableLabelColors(t *testing.T) {
	img := solidRGB(80, 80, 255, 255, 255)
	boxes := []Box{
		{Label: "icon", X: 5, Y: 5, Width: 10, Height: 10},
		{Label: "window", X: 20, Y: 20, Width: 50, Height: 50},
		{Label: "icon", X: 60, Y: 5, Width: 10, Height: 10},
	}

	first, err := Annotate(img, boxes, AnnotateOptions{ShowLabels: true})
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	second, err := Annotate(img, boxes, AnnotateOptions{ShowLabels: true})
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	if len(first.Legend) != 2 {
		t.Errorf("legend should have one entry per label, got %v", first.Legend)
	}
	for label, c := range first.Legend {
		if second.Legend[label] != c {
			t.Errorf("label %s color changed between calls: %s vs %s", label, c, second.Legend[label])
		}
	}
	if first.ImageBase64 != second.ImageBase64 {
		t.Error("rendering should be deterministic")
	}
}

func TestAnnotate_InvalidColor(t *testing.T) {
	img := solidRGB(10, 10, 0, 0, 0)
	if _, err := Annotate(img, nil, AnnotateOptions{ColorHex: "green"}); err == nil {
		t.Error("expected error for invalid color")
	}
}
