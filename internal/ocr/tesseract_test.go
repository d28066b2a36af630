package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"os/exec"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ensureTesseractAvailable skips tests that need a real Tesseract install.
func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("Tesseract not available")
	}
}

// drawText draws text on an image using basicfont
func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// renderText returns PNG bytes with the text drawn and scaled up for OCR.
func renderText(t *testing.T, text string, scale int) []byte {
	t.Helper()

	// basicfont.Face7x13 is 7 pixels wide, 13 pixels tall per character
	w := len(text)*7 + 40
	h := 40
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	drawText(small, 20, 25, text, color.Black)

	img := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := small.At(x, y)
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.Set(x*scale+dx, y*scale+dy, c)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

type stubEngine struct {
	got    Input
	result *Result
	err    error
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Recognize(_ context.Context, in Input) (*Result, error) {
	s.got = in
	return s.result, s.err
}

func TestRecognize_EmptyImage(t *testing.T) {
	e := NewTesseractEngine("")
	_, err := e.Recognize(context.Background(), Input{})
	if !errors.Is(err, ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage, got %v", err)
	}
}

func TestRecognize_CancelledContext(t *testing.T) {
	e := NewTesseractEngine("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Recognize(ctx, Input{Image: []byte{0x89, 'P', 'N', 'G'}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParseLanguages(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"fra+eng", []string{"fra", "eng"}},
		{"eng", []string{"eng"}},
		{"fra, eng", []string{"fra", "eng"}},
		{"", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseLanguages(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMeanConfidence(t *testing.T) {
	if got := MeanConfidence(nil); got != 0 {
		t.Errorf("no words: got %f, want 0", got)
	}
	words := []Word{{Text: "Facture", Confidence: 90}, {Text: "N°", Confidence: 60}}
	if got := MeanConfidence(words); got != 75 {
		t.Errorf("got %f, want 75", got)
	}
}

func TestExtractText_NonExistentFile(t *testing.T) {
	_, err := ExtractText(context.Background(), &stubEngine{}, "/nonexistent/path/image.png", "eng")
	if err == nil {
		t.Error("ExtractText should fail for non-existent file")
	}
}

func TestExtractText_PassesLanguages(t *testing.T) {
	tmp, err := os.CreateTemp("", "ocr-stub-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmp.Name())
	tmp.Write(renderText(t, "X", 1))
	tmp.Close()

	stub := &stubEngine{result: &Result{Text: "X"}}
	res, err := ExtractText(context.Background(), stub, tmp.Name(), "fra+eng")
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if res.Text != "X" {
		t.Errorf("Text: got %q", res.Text)
	}
	if !reflect.DeepEqual(stub.got.Languages, []string{"fra", "eng"}) {
		t.Errorf("Languages: got %v", stub.got.Languages)
	}
	if len(stub.got.Image) == 0 {
		t.Error("image bytes were not passed to the engine")
	}
}

func TestTesseractEngine_RealText(t *testing.T) {
	ensureTesseractAvailable(t)

	e := NewTesseractEngine("")
	res, err := e.Recognize(context.Background(), Input{
		Image:     renderText(t, "BON DE LIVRAISON 2024", 4),
		Languages: []string{"eng"},
	})
	if err != nil {
		if strings.Contains(err.Error(), "language") {
			t.Skip("eng traineddata not installed")
		}
		t.Fatalf("Recognize failed: %v", err)
	}

	t.Logf("Extracted text: %q (confidence %.1f, %d words)",
		strings.TrimSpace(res.Text), res.Confidence, len(res.Words))

	if res.Confidence < 0 || res.Confidence > 100 {
		t.Errorf("confidence out of range: %f", res.Confidence)
	}
	for _, w := range res.Words {
		if w.Bounds.X2 < w.Bounds.X1 || w.Bounds.Y2 < w.Bounds.Y1 {
			t.Errorf("invalid bounds for %q: %+v", w.Text, w.Bounds)
		}
	}
}

func TestTesseractEngine_BlankImage(t *testing.T) {
	ensureTesseractAvailable(t)

	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}

	res, err := NewTesseractEngine("").Recognize(context.Background(), Input{
		Image:     buf.Bytes(),
		Languages: []string{"eng"},
	})
	if err != nil {
		t.Skipf("Recognize unavailable: %v", err)
	}
	if strings.TrimSpace(res.Text) != "" {
		t.Logf("blank image produced text %q", res.Text)
	}
	if len(res.Words) == 0 && res.Confidence != 0 {
		t.Errorf("no words should mean zero confidence, got %f", res.Confidence)
	}
}

func TestTesseractEngine_Info(t *testing.T) {
	ensureTesseractAvailable(t)

	info := NewTesseractEngine("").Info()
	if info.Backend != "gosseract" {
		t.Errorf("Backend: got %s", info.Backend)
	}
	if info.Available && info.Version == "" {
		t.Error("available engine should report a version")
	}
}
