package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguages is the language set used when an Input carries none.
var DefaultLanguages = []string{"fra", "eng"}

// ErrEmptyImage is returned when an Input carries no image bytes.
var ErrEmptyImage = errors.New("empty image")

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// Word is a single recognized token with its location and confidence (0-100).
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Bounds     Bounds  `json:"bounds"`
}

// Input is one encoded image submitted for recognition.
type Input struct {
	// Image is the encoded image payload (PNG, JPEG, TIFF, BMP).
	Image []byte

	// Languages are Tesseract language codes, e.g. "fra", "eng".
	Languages []string
}

// Result contains the recognized text of an image.
type Result struct {
	// Text is all recognized text with original spacing/newlines.
	Text string `json:"text"`

	// Confidence is the mean word confidence (0-100).
	Confidence float64 `json:"confidence"`

	// Words may be empty if bounding box extraction fails.
	Words []Word `json:"words"`
}

// Engine is an OCR provider: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (*Result, error)
}

// TesseractEngine implements Engine with the gosseract client.
type TesseractEngine struct {
	tessdataPrefix string
	clientFactory  func() *gosseract.Client
}

// NewTesseractEngine constructs a Tesseract-backed engine. An empty
// tessdataPrefix keeps Tesseract's compiled-in default.
func NewTesseractEngine(tessdataPrefix string) *TesseractEngine {
	return &TesseractEngine{
		tessdataPrefix: tessdataPrefix,
		clientFactory:  gosseract.NewClient,
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize performs OCR on a single encoded image.
//
// A fresh gosseract client is created per call; clients are not safe for
// concurrent use and the readability checker runs uploads in parallel.
func (e *TesseractEngine) Recognize(ctx context.Context, in Input) (*Result, error) {
	if len(in.Image) == 0 {
		return nil, ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := e.clientFactory()
	defer client.Close()

	if e.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}

	langs := in.Languages
	if len(langs) == 0 {
		langs = DefaultLanguages
	}
	if err := client.SetLanguage(langs...); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}

	if err := client.SetImageFromBytes(in.Image); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	return recognize(client)
}

func recognize(client *gosseract.Client) (*Result, error) {
	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	// Get word-level bounding boxes
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Return just text if boxes fail
		return &Result{Text: text, Words: []Word{}}, nil
	}

	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) == "" {
			continue
		}
		words = append(words, Word{
			Text:       box.Word,
			Confidence: box.Confidence,
			Bounds: Bounds{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}

	return &Result{
		Text:       text,
		Confidence: MeanConfidence(words),
		Words:      words,
	}, nil
}

// MeanConfidence averages word confidences; it is 0 for no words.
func MeanConfidence(words []Word) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

// ParseLanguages splits a Tesseract language string such as "fra+eng".
func ParseLanguages(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '+' || r == ',' || r == ' '
	})
}

// ExtractText performs OCR on an image file on disk.
//
// Parameters:
//   - imagePath: Path to the image file. Supports PNG, JPEG, TIFF, BMP.
//   - language: Tesseract language string (e.g., "eng" or "fra+eng").
func ExtractText(ctx context.Context, engine Engine, imagePath string, language string) (*Result, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return engine.Recognize(ctx, Input{Image: data, Languages: ParseLanguages(language)})
}

// Info contains information about the OCR subsystem.
type Info struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
	Backend   string `json:"backend"`
}

// Info returns information about OCR availability.
func (e *TesseractEngine) Info() Info {
	client := e.clientFactory()
	defer client.Close()

	version := client.Version()
	if version == "" {
		return Info{
			Available: false,
			Error:     "tesseract version unavailable",
			Backend:   "gosseract",
		}
	}
	return Info{
		Available: true,
		Version:   version,
		Backend:   "gosseract",
	}
}
