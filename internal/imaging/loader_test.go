package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"
)

// encodeTestImage returns a solid-colour image encoded as PNG.
func encodeTestImage(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	data := encodeTestImage(t, 100, 50, color.RGBA{255, 0, 0, 255})

	d, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d.Format != "png" {
		t.Errorf("Format: got %s, want png", d.Format)
	}
	if d.Image.Bounds().Dx() != 100 || d.Image.Bounds().Dy() != 50 {
		t.Errorf("unexpected dimensions: %v", d.Image.Bounds())
	}
	if d.Key != ContentKey(data) {
		t.Error("Key should be the content key of the input")
	}
}

func TestDecode_JPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}

	d, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d.Format != "jpeg" {
		t.Errorf("Format: got %s, want jpeg", d.Format)
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrEmptyData) {
		t.Errorf("nil data: got %v, want ErrEmptyData", err)
	}
	if _, err := Decode([]byte("%PDF-1.7 not an image")); err == nil {
		t.Error("Decode should fail for non-image data")
	}
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache(4)
	data := encodeTestImage(t, 10, 10, color.White)

	d1, err := cache.Load(data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	d2, err := cache.Load(append([]byte(nil), data...))
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if d1 != d2 {
		t.Error("identical bytes should return the cached decode")
	}
	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}
}

func TestImageCache_Eviction(t *testing.T) {
	cache := NewImageCache(2)
	for i := 0; i < 3; i++ {
		data := encodeTestImage(t, 5+i, 5, color.Black)
		if _, err := cache.Load(data); err != nil {
			t.Fatalf("Load %d failed: %v", i, err)
		}
	}
	if cache.Len() != 2 {
		t.Errorf("Len: got %d, want 2", cache.Len())
	}
}

func TestImageCache_LoadInvalid(t *testing.T) {
	cache := NewImageCache(0)
	if _, err := cache.Load([]byte("garbage")); err == nil {
		t.Error("Load should fail for invalid data")
	}
	if cache.Len() != 0 {
		t.Error("failed decodes must not be cached")
	}
}

func TestImageCache_Clear(t *testing.T) {
	cache := NewImageCache(0)
	cache.Load(encodeTestImage(t, 5, 5, color.White))
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len after Clear: got %d", cache.Len())
	}
}

func TestImageCache_Concurrent(t *testing.T) {
	cache := NewImageCache(8)
	data := encodeTestImage(t, 30, 30, color.Gray{Y: 128})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(data); err != nil {
				t.Errorf("concurrent Load failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}
}
