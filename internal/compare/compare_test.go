package compare

import (
	"math"
	"reflect"
	"testing"

	"github.com/ironsheep/ui-regions-mcp/internal/detection"
	"github.com/ironsheep/ui-regions-mcp/internal/errors"
	"github.com/ironsheep/ui-regions-mcp/internal/imaging"
)

// solid returns a width x height RGB image filled with one color.
func solid(width, height int, r, g, b uint8) *imaging.Image {
	pix := make([]uint8, width*height*3)
	for i := 0; i < len(pix); i += 3 {
		pix[i], pix[i+1], pix[i+2] = r, g, b
	}
	return &imaging.Image{Pix: pix, Width: width, Height: height, Channels: 3}
}

// paint fills [x0,x1) x [y0,y1) of an RGB image in place.
func paint(img *imaging.Image, x0, y0, x1, y1 int, r, g, b uint8) *imaging.Image {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			i := (y*img.Width + x) * 3
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = r, g, b
		}
	}
	return img
}

func near(got, want, tol int) bool {
	return got >= want-tol && got <= want+tol
}

func TestCompare_IdenticalImages(t *testing.T) {
	tests := []struct {
		name string
		img  *imaging.Image
	}{
		{"flat white", solid(120, 80, 255, 255, 255)},
		{"with content", paint(solid(200, 150, 240, 240, 240), 20, 30, 90, 70, 10, 80, 200)},
		{"smaller than window", paint(solid(5, 4, 0, 0, 0), 1, 1, 3, 3, 255, 255, 255)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Compare(tt.img, tt.img)
			if err != nil {
				t.Fatalf("Compare failed: %v", err)
			}
			if res.SimilarityScore != 1.0 {
				t.Errorf("SimilarityScore = %v, want exactly 1", res.SimilarityScore)
			}
			if len(res.Changes) != 0 {
				t.Errorf("identical images produced changes: %+v", res.Changes)
			}
		})
	}
}

func TestCompare_RedSquare(t *testing.T) {
	a := solid(300, 300, 255, 255, 255)
	b := paint(solid(300, 300, 255, 255, 255), 50, 50, 150, 150, 255, 0, 0)

	res, err := Compare(a, b)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if res.SimilarityScore <= 0 || res.SimilarityScore >= 1 {
		t.Errorf("SimilarityScore = %v, want strictly between 0 and 1", res.SimilarityScore)
	}
	if len(res.Changes) != 1 {
		t.Fatalf("got %d changes, want 1: %+v", len(res.Changes), res.Changes)
	}

	c := res.Changes[0]
	if !near(c.X, 50, 4) || !near(c.Y, 50, 4) || !near(c.Width, 100, 8) || !near(c.Height, 100, 8) {
		t.Errorf("change box = %+v, want about {50 50 100 100}", c.BoundingBox)
	}
	if c.Area < 9000 || c.Area > 12000 {
		t.Errorf("change area = %d, want about 10000", c.Area)
	}
}

func TestCompare_Symmetric(t *testing.T) {
	a := paint(solid(160, 120, 255, 255, 255), 10, 10, 60, 40, 0, 0, 0)
	b := paint(solid(160, 120, 255, 255, 255), 80, 50, 150, 110, 30, 120, 30)

	ab, err := Compare(a, b)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := Compare(b, a)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ab, ba) {
		t.Errorf("Compare(a,b) = %+v\nCompare(b,a) = %+v", ab, ba)
	}
	if len(ab.Changes) != 2 {
		t.Errorf("expected both painted areas as changes, got %+v", ab.Changes)
	}
}

func TestCompare_ScoreIsRounded(t *testing.T) {
	a := paint(solid(64, 64, 200, 200, 200), 8, 8, 30, 30, 20, 20, 20)
	b := paint(solid(64, 64, 200, 200, 200), 12, 10, 34, 28, 20, 20, 20)

	res, err := Compare(a, b)
	if err != nil {
		t.Fatal(err)
	}
	scaled := res.SimilarityScore * 10000
	if math.Abs(scaled-math.Round(scaled)) > 1e-6 {
		t.Errorf("score %v has more than four decimals", res.SimilarityScore)
	}
}

func TestCompare_DifferentSizes(t *testing.T) {
	a := solid(300, 200, 255, 255, 255)
	b := solid(150, 100, 255, 255, 255)

	res, err := Compare(a, b)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if res.SimilarityScore < 0.99 {
		t.Errorf("resized flat images should match, score %v", res.SimilarityScore)
	}
	if len(res.Changes) != 0 {
		t.Errorf("unexpected changes: %+v", res.Changes)
	}

	// Regions come back in the first image's coordinates.
	b = paint(solid(150, 100, 255, 255, 255), 50, 25, 100, 75, 0, 0, 0)
	res, err = Compare(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(res.Changes))
	}
	c := res.Changes[0]
	if !near(c.X, 100, 6) || !near(c.Y, 50, 6) || !near(c.Width, 100, 12) || !near(c.Height, 100, 12) {
		t.Errorf("change box = %+v, want about {100 50 100 100}", c.BoundingBox)
	}
}

func TestCompare_TinyImages(t *testing.T) {
	black := solid(1, 1, 0, 0, 0)
	white := solid(1, 1, 255, 255, 255)

	res, err := Compare(black, white)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if res.SimilarityScore > 0.01 {
		t.Errorf("black vs white score = %v", res.SimilarityScore)
	}
	if len(res.Changes) != 0 {
		t.Errorf("a single pixel cannot exceed the change area: %+v", res.Changes)
	}
}

func TestCompare_AlphaModes(t *testing.T) {
	// Fully transparent red over white versus plain white.
	w, h := 40, 40
	pix := make([]uint8, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i] = 255
	}
	transparent, err := imaging.NewImage(pix, w, h, 4)
	if err != nil {
		t.Fatal(err)
	}
	white := solid(w, h, 255, 255, 255)

	composite, err := CompareWith(transparent, white, Options{Alpha: imaging.AlphaComposite})
	if err != nil {
		t.Fatal(err)
	}
	if composite.SimilarityScore != 1 {
		t.Errorf("composited transparent image should equal white, got %v", composite.SimilarityScore)
	}

	dropped, err := Compare(transparent, white)
	if err != nil {
		t.Fatal(err)
	}
	if dropped.SimilarityScore >= 1 {
		t.Errorf("dropping alpha should expose the red, got %v", dropped.SimilarityScore)
	}
}

func TestCompare_InvalidImage(t *testing.T) {
	good := solid(10, 10, 0, 0, 0)
	bad := &imaging.Image{Pix: make([]uint8, 5), Width: 10, Height: 10, Channels: 3}

	tests := []struct {
		name string
		a, b *imaging.Image
	}{
		{"nil first", nil, good},
		{"nil second", good, nil},
		{"short buffer", good, bad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Compare(tt.a, tt.b)
			if !errors.IsInvalidImage(err) {
				t.Fatalf("expected INVALID_IMAGE, got %v", err)
			}
			if res != nil {
				t.Error("no result expected on error")
			}
		})
	}
}

func TestCompare_Observer(t *testing.T) {
	var stages []string
	opts := DefaultOptions()
	opts.Observer = func(e detection.StageEvent) { stages = append(stages, e.Stage) }

	img := solid(20, 20, 10, 10, 10)
	if _, err := CompareWith(img, img, opts); err != nil {
		t.Fatal(err)
	}
	want := []string{StageNormalize, StageSSIM, StageRegions}
	if !reflect.DeepEqual(stages, want) {
		t.Errorf("stages = %v, want %v", stages, want)
	}
}
