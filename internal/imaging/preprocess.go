package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// MinOCRWidth is the width below which scans are upscaled before OCR.
// Tesseract accuracy drops sharply on glyphs under ~20px tall.
const MinOCRWidth = 1000

// maxOCRScale caps upscaling of tiny images.
const maxOCRScale = 4.0

// PrepareForOCR normalises a scan for Tesseract and returns it PNG-encoded.
//
// The pipeline is:
//  1. Upscale with Lanczos when narrower than MinOCRWidth (at most 4x)
//  2. Boost contrast by 20%
//  3. Convert to 8-bit grayscale
func PrepareForOCR(img image.Image) ([]byte, error) {
	w := img.Bounds().Dx()
	if w > 0 && w < MinOCRWidth {
		scale := math.Min(float64(MinOCRWidth)/float64(w), maxOCRScale)
		img = imaging.Resize(img, int(float64(w)*scale), 0, imaging.Lanczos)
	}

	gray := toGray(effect.Grayscale(adjust.Contrast(img, 0.2)))

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("failed to encode OCR image: %w", err)
	}
	return buf.Bytes(), nil
}

// lightness maps an 8-bit gray level to CIE L* (0-100).
var lightness = func() (t [256]float64) {
	for v := range t {
		g := float64(v) / 255
		l, _, _ := colorful.Color{R: g, G: g, B: g}.Lab()
		t[v] = l * 100
	}
	return t
}()

// toGray flattens img onto a white background as 8-bit grayscale.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, image.White, image.Point{}, draw.Src)
	draw.Draw(gray, b, img, b.Min, draw.Over)
	return gray
}

// LuminanceStdDev returns the standard deviation of CIE L* (0-100) over every
// pixel. Transparent areas count as white paper.
func LuminanceStdDev(img image.Image) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	gray := toGray(img)

	var hist [256]int
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}

	var n, sum, sumSq float64
	for v, count := range hist {
		if count == 0 {
			continue
		}
		c, l := float64(count), lightness[v]
		n += c
		sum += c * l
		sumSq += c * l * l
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// IsBlank reports whether an image is visually uniform, i.e. its luminance
// standard deviation is at most threshold.
func IsBlank(img image.Image, threshold float64) bool {
	return LuminanceStdDev(img) <= threshold
}
