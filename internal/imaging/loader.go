package imaging

import (
	"fmt"
	"image"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/patrickmn/go-cache"
)

// DefaultCacheTTL is how long a decoded file stays cached when no TTL is given.
const DefaultCacheTTL = 10 * time.Minute

// ImageCache caches decoded image files keyed by their path.
//
// Loading the same file twice (for example re-opening a photo after a reset)
// returns the cached decode instead of reading the disk again, as long as the
// file's modification time and size are unchanged. A file rewritten on disk
// is decoded afresh. Entries expire
// after the configured TTL so long sessions do not pin every file ever opened.
//
// ImageCache is safe for concurrent use by multiple goroutines. Cached images
// are shared; callers that want to modify pixels must copy first (the state
// package always does).
type ImageCache struct {
	images *cache.Cache
}

// cachedImage is a decode together with the file stamp it was read at.
type cachedImage struct {
	img     image.Image
	modTime time.Time
	size    int64
}

// NewImageCache creates an empty cache whose entries expire after ttl.
// A non-positive ttl uses DefaultCacheTTL.
func NewImageCache(ttl time.Duration) *ImageCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ImageCache{
		images: cache.New(ttl, 2*ttl),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Supported formats are PNG, JPEG, GIF, BMP and TIFF. JPEG EXIF orientation is
// applied while decoding, so camera photos come out upright.
//
// # Errors
//
//   - Returns error if the file does not exist or cannot be read
//   - Returns error if the file is not a decodable image
func (c *ImageCache) Load(path string) (image.Image, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	if v, ok := c.images.Get(path); ok {
		entry := v.(cachedImage)
		if entry.modTime.Equal(stat.ModTime()) && entry.size == stat.Size() {
			return entry.img, nil
		}
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	c.images.SetDefault(path, cachedImage{img: img, modTime: stat.ModTime(), size: stat.Size()})
	return img, nil
}

// Len returns the number of cached images, including expired entries that
// have not been cleaned up yet.
func (c *ImageCache) Len() int {
	return c.images.ItemCount()
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.images.Flush()
}

// Evict removes a specific image from the cache by its path.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.images.Delete(path)
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	Path string `json:"path,omitempty"`

	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the format derived from the file extension: "png", "jpeg",
	// "gif", "bmp", "tiff", or "unknown".
	Format string `json:"format"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through the cache and returns it together with
// its metadata.
func LoadImageInfo(cache *ImageCache, path string) (image.Image, *ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	if f, err := imaging.FormatFromFilename(path); err == nil {
		format = strings.ToLower(f.String())
	}

	bounds := img.Bounds()
	return img, &ImageInfo{
		Path:          path,
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		FileSizeBytes: stat.Size(),
	}, nil
}
