// Package imaging decodes uploaded scans and prepares them for OCR.
//
// Uploads arrive as encoded bytes (PNG, JPEG or GIF). Decode turns them into
// image.Image values, ImageCache avoids decoding the same bytes twice, and
// PrepareForOCR produces the grayscale, upscaled PNG that Tesseract reads best.
//
// # Blank Page Detection
//
// IsBlank measures the spread of perceptual lightness (CIE L*, via go-colorful)
// over every pixel. A scanned blank page or a photo of a white sheet has a
// standard deviation close to zero; a single printed line pushes it above 2.
// The readability checker uses this to reject empty scans without running
// Tesseract.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. All other functions are
// stateless and can be called concurrently on different images.
package imaging
