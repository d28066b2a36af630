package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"sync"
)

// ErrEmptyData is returned when Decode is given no bytes.
var ErrEmptyData = errors.New("empty image data")

// Decoded is an uploaded image after decoding.
type Decoded struct {
	Image  image.Image
	Format string // "png", "jpeg" or "gif"
	Key    string // sha256 of the encoded bytes
}

// Decode decodes an uploaded image from memory.
//
// Supported formats are PNG, JPEG and GIF. The format is detected from the
// content, not from the file name.
func Decode(data []byte) (*Decoded, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return &Decoded{Image: img, Format: format, Key: ContentKey(data)}, nil
}

// ContentKey identifies encoded image bytes.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ImageCache provides thread-safe caching of decoded uploads.
//
// Entries are keyed by the SHA-256 of the encoded bytes, so the same file
// uploaded into two slots, or re-uploaded after a retry, is decoded once.
// Entries beyond the capacity are evicted in insertion order.
//
// ImageCache is safe for concurrent use by multiple goroutines.
type ImageCache struct {
	mu       sync.RWMutex
	images   map[string]*Decoded
	order    []string
	capacity int
}

// NewImageCache creates an empty cache holding at most capacity images.
// A capacity <= 0 defaults to 32.
func NewImageCache(capacity int) *ImageCache {
	if capacity <= 0 {
		capacity = 32
	}
	return &ImageCache{
		images:   make(map[string]*Decoded),
		capacity: capacity,
	}
}

// Load returns the decoded image for data, decoding it on a cache miss.
func (c *ImageCache) Load(data []byte) (*Decoded, error) {
	key := ContentKey(data)

	c.mu.RLock()
	if d, ok := c.images[key]; ok {
		c.mu.RUnlock()
		return d, nil
	}
	c.mu.RUnlock()

	d, err := Decode(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.images[key]; !ok {
		c.images[key] = d
		c.order = append(c.order, key)
		for len(c.order) > c.capacity {
			delete(c.images, c.order[0])
			c.order = c.order[1:]
		}
	}
	return d, nil
}

// Len reports the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*Decoded)
	c.order = nil
	c.mu.Unlock()
}
