package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/ironsheep/ui-regions-mcp/internal/errors"
)

// writeTestPNG writes img to a temp file and returns its path.
func writeTestPNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "screen.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func pngBase64(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func opaqueNRGBA(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestImageCache_LoadImage(t *testing.T) {
	path := writeTestPNG(t, opaqueNRGBA(20, 10, color.NRGBA{255, 0, 0, 255}))
	cache := NewImageCache()

	img, err := cache.LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if img.Width != 20 || img.Height != 10 {
		t.Errorf("size = %dx%d, want 20x10", img.Width, img.Height)
	}
	if cache.Len() != 1 {
		t.Errorf("Len = %d, want 1", cache.Len())
	}

	if _, err := cache.Load(path); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if cache.Len() != 1 {
		t.Errorf("second Load should hit the cache, Len = %d", cache.Len())
	}

	cache.Evict(path)
	if cache.Len() != 0 {
		t.Errorf("Evict left %d entries", cache.Len())
	}

	cache.LoadImage(path)
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Clear left %d entries", cache.Len())
	}
}

func TestImageCache_Errors(t *testing.T) {
	cache := NewImageCache()

	if _, err := cache.Load(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for a missing file")
	}

	garbage := filepath.Join(t.TempDir(), "garbage.png")
	os.WriteFile(garbage, []byte("not an image"), 0644)
	_, err := cache.Load(garbage)
	if !errors.IsClientError(err) {
		t.Errorf("undecodable file should be a DECODE_FAILED error, got %v", err)
	}
}

func TestImageCache_Concurrent(t *testing.T) {
	path := writeTestPNG(t, opaqueNRGBA(8, 8, color.NRGBA{0, 0, 255, 255}))
	cache := NewImageCache()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.LoadImage(path); err != nil {
				t.Errorf("LoadImage failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if cache.Len() != 1 {
		t.Errorf("Len = %d, want 1", cache.Len())
	}
}

func TestDecodeBase64(t *testing.T) {
	src := opaqueNRGBA(6, 4, color.NRGBA{10, 20, 30, 255})
	raw := pngBase64(t, src)

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"bare", raw, false},
		{"data url", "data:image/png;base64," + raw, false},
		{"surrounding whitespace", "\n " + raw + "\n", false},
		{"empty", "", true},
		{"data url without comma", "data:image/png;base64", true},
		{"not base64", "!!!!", true},
		{"base64 of text", base64.StdEncoding.EncodeToString([]byte("hello")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeBase64Image(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeBase64Image() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.IsClientError(err) {
					t.Errorf("decode failures should be client errors, got %v", err)
				}
				return
			}
			if img.Width != 6 || img.Height != 4 {
				t.Errorf("size = %dx%d, want 6x4", img.Width, img.Height)
			}
		})
	}
}

func TestLoadImageInfo(t *testing.T) {
	cache := NewImageCache()

	rgbaPath := writeTestPNG(t, opaqueNRGBA(12, 7, color.NRGBA{1, 2, 3, 255}))
	info, err := LoadImageInfo(cache, rgbaPath)
	if err != nil {
		t.Fatalf("LoadImageInfo failed: %v", err)
	}
	if info.Width != 12 || info.Height != 7 || info.Format != "png" {
		t.Errorf("info = %+v", info)
	}
	if info.FileSizeBytes <= 0 {
		t.Errorf("FileSizeBytes = %d", info.FileSizeBytes)
	}

	grayPath := filepath.Join(t.TempDir(), "gray.png")
	f, _ := os.Create(grayPath)
	png.Encode(f, image.NewGray(image.Rect(0, 0, 3, 3)))
	f.Close()

	info, err = LoadImageInfo(cache, grayPath)
	if err != nil {
		t.Fatalf("LoadImageInfo failed: %v", err)
	}
	if info.Channels != 1 || info.HasAlpha {
		t.Errorf("gray info = %+v", info)
	}
}

func TestLoadImageInfo_BMP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screen.bmp")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if err := bmp.Encode(f, opaqueNRGBA(33, 21, color.NRGBA{10, 20, 30, 255})); err != nil {
		f.Close()
		t.Fatalf("failed to encode bmp: %v", err)
	}
	f.Close()

	info, err := LoadImageInfo(NewImageCache(), path)
	if err != nil {
		t.Fatalf("LoadImageInfo failed: %v", err)
	}
	if info.Format != "bmp" || info.Width != 33 || info.Height != 21 {
		t.Errorf("info = %+v", info)
	}
}

func TestLoadFile(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 5, 4))
	src.SetGray(2, 1, color.Gray{Y: 90})
	path := writeTestPNG(t, src)

	img, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if img.Width != 5 || img.Height != 4 || img.Channels != 1 {
		t.Fatalf("got %dx%d with %d channels", img.Width, img.Height, img.Channels)
	}
	if img.Pix[1*5+2] != 90 {
		t.Errorf("pixel (2,1) = %d, want 90", img.Pix[1*5+2])
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
