// Package readability decides whether an uploaded document can be read.
//
// Images are OCR'd and accepted only when the recognized text is long enough
// and Tesseract is confident enough about it. PDFs are not OCR'd; they are
// accepted when they parse and contain at least one page.
package readability

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/ironsheep/inverif/internal/imaging"
	"github.com/ironsheep/inverif/internal/logger"
	"github.com/ironsheep/inverif/internal/ocr"
)

// User-facing failure messages.
const (
	MsgNotEnoughText = "Document ne contient pas assez de texte lisible."
	MsgLowQuality    = "La qualité du document est trop faible pour être lue correctement."
	MsgCheckFailed   = "Erreur lors de la vérification du document: %s"
)

const (
	DefaultMinTextLength = 20
	DefaultMinConfidence = 60.0
	DefaultBlankStdDev   = 2.0
)

var ErrNoPages = errors.New("document has no pages")

// Config holds the acceptance thresholds. Both comparisons are strict:
// a document needs more than MinTextLength characters and more than
// MinConfidence percent.
type Config struct {
	Languages     []string
	MinTextLength int
	MinConfidence float64
	BlankStdDev   float64
}

// DefaultConfig returns the thresholds used by the intake form.
func DefaultConfig() Config {
	return Config{
		Languages:     ocr.DefaultLanguages,
		MinTextLength: DefaultMinTextLength,
		MinConfidence: DefaultMinConfidence,
		BlankStdDev:   DefaultBlankStdDev,
	}
}

// Upload is a file submitted for a readability check.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Result is the outcome of a readability check. Error is non-empty exactly
// when Readable is false.
type Result struct {
	Readable   bool    `json:"readable"`
	Error      string  `json:"error,omitempty"`
	TextLength int     `json:"textLength"`
	Confidence float64 `json:"confidence"`
	Pages      int     `json:"pages,omitempty"`
	// Skipped is set when no OCR ran (non-image content).
	Skipped bool `json:"skipped"`
}

// Checker runs readability checks. It is safe for concurrent use.
type Checker struct {
	engine    ocr.Engine
	cache     *imaging.ImageCache
	cfg       Config
	log       logger.Logger
	pageCount func(data []byte) (int, error)
}

// NewChecker builds a Checker. Zero thresholds in cfg fall back to defaults.
func NewChecker(engine ocr.Engine, cfg Config, log logger.Logger) *Checker {
	def := DefaultConfig()
	if len(cfg.Languages) == 0 {
		cfg.Languages = def.Languages
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = def.MinTextLength
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.BlankStdDev <= 0 {
		cfg.BlankStdDev = def.BlankStdDev
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Checker{
		engine:    engine,
		cache:     imaging.NewImageCache(32),
		cfg:       cfg,
		log:       log,
		pageCount: pdfPageCount,
	}
}

// Config returns the effective thresholds.
func (c *Checker) Config() Config { return c.cfg }

// Check evaluates one upload.
func (c *Checker) Check(ctx context.Context, up Upload) Result {
	if !strings.HasPrefix(up.ContentType, "image/") {
		return c.checkDocument(up)
	}

	res, err := c.checkImage(ctx, up)
	if err != nil {
		c.log.Warn("readability", "check failed", map[string]interface{}{
			"file":  up.FileName,
			"error": err.Error(),
		})
		return Result{Readable: false, Error: fmt.Sprintf(MsgCheckFailed, err.Error())}
	}
	return res
}

func (c *Checker) checkImage(ctx context.Context, up Upload) (Result, error) {
	decoded, err := c.cache.Load(up.Data)
	if err != nil {
		return Result{}, err
	}

	if imaging.IsBlank(decoded.Image, c.cfg.BlankStdDev) {
		c.log.Debug("readability", "blank image", map[string]interface{}{"file": up.FileName})
		return Result{Readable: false, Error: MsgNotEnoughText}, nil
	}

	prepared, err := imaging.PrepareForOCR(decoded.Image)
	if err != nil {
		return Result{}, err
	}

	out, err := c.engine.Recognize(ctx, ocr.Input{Image: prepared, Languages: c.cfg.Languages})
	if err != nil {
		return Result{}, err
	}

	res := c.Evaluate(out.Text, out.Confidence)
	c.log.Debug("readability", "image checked", map[string]interface{}{
		"file":       up.FileName,
		"engine":     c.engine.Name(),
		"textLength": res.TextLength,
		"confidence": res.Confidence,
		"readable":   res.Readable,
	})
	return res, nil
}

// Evaluate applies the thresholds to OCR output. Text length is checked
// before confidence, so an image with little text reports MsgNotEnoughText
// even when its confidence is also low.
func (c *Checker) Evaluate(text string, confidence float64) Result {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	res := Result{TextLength: n, Confidence: confidence}

	switch {
	case n <= c.cfg.MinTextLength:
		res.Error = MsgNotEnoughText
	case confidence <= c.cfg.MinConfidence:
		res.Error = MsgLowQuality
	default:
		res.Readable = true
	}
	return res
}

func (c *Checker) checkDocument(up Upload) Result {
	if up.ContentType != "application/pdf" {
		return Result{Readable: true, Skipped: true}
	}

	pages, err := c.pageCount(up.Data)
	if err == nil && pages < 1 {
		err = ErrNoPages
	}
	if err != nil {
		c.log.Warn("readability", "invalid pdf", map[string]interface{}{
			"file":  up.FileName,
			"error": err.Error(),
		})
		return Result{Readable: false, Skipped: true, Error: fmt.Sprintf(MsgCheckFailed, err.Error())}
	}
	return Result{Readable: true, Skipped: true, Pages: pages}
}

var disablePDFConfigDir sync.Once

func pdfPageCount(data []byte) (int, error) {
	// keep pdfcpu from writing a config directory under the user's home
	disablePDFConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}

// WithLanguages returns a checker sharing c's engine and image cache that
// recognizes langs instead. An empty list returns c.
func (c *Checker) WithLanguages(langs []string) *Checker {
	if len(langs) == 0 {
		return c
	}
	cp := *c
	cp.cfg.Languages = langs
	return &cp
}
