package readability

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ironsheep/inverif/internal/catalog"
)

// LoadFile reads a local document and applies the upload acceptance rules.
func LoadFile(path string, maxBytes int64) (Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return Upload{}, fmt.Errorf("%s is a directory", path)
	}

	name := filepath.Base(path)
	if err := catalog.ValidateUpload(name, info.Size(), maxBytes); err != nil {
		return Upload{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to read file: %w", err)
	}
	contentType, _ := catalog.ContentTypeFor(name)
	return Upload{FileName: name, ContentType: contentType, Data: data}, nil
}
