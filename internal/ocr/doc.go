// Package ocr provides Optical Character Recognition (OCR) functionality using Tesseract.
//
// This package wraps the Tesseract OCR engine (via gosseract/v2) behind a small
// Engine interface. The readability checker only needs the recognized text and
// an overall confidence score, so the interface is deliberately narrow and
// callers can substitute their own engine in tests.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr
//   - macOS: brew install tesseract
//   - Windows: Download from https://github.com/UB-Mannheim/tesseract/wiki
//
// Language data files are required for each language:
//   - Ubuntu/Debian: apt-get install tesseract-ocr-fra tesseract-ocr-eng
//   - Other languages: tesseract-ocr-<lang> packages
//
// # Languages
//
// Intake documents are French or English, so the default language set is
// "fra+eng". Languages are passed as a list and joined by gosseract.
//
// # Confidence
//
// Result.Confidence is the mean word confidence reported by Tesseract on a
// 0-100 scale. Word-level confidences are kept in Result.Words on the same
// scale. An image with no recognized words has a confidence of 0.
//
// # Error Handling
//
// Recognize returns errors for:
//   - Empty or undecodable image payloads
//   - Unsupported language codes
//   - Tesseract initialization failures
//   - Context cancellation before recognition starts
//
// If bounding box extraction fails (e.g., Tesseract version mismatch),
// Recognize still returns the extracted text with a confidence of 0.
package ocr
