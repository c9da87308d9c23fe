// Package storage uploads listing images to object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectStore stores objects under a key and serves them from a public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

var allowedExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// IsImageContentType reports whether contentType is an accepted image type.
func IsImageContentType(contentType string) bool {
	_, ok := allowedExtensions[normaliseContentType(contentType)]
	return ok
}

// NewImageKey returns a unique key for an image uploaded by sellerID.
func NewImageKey(sellerID, filename, contentType string) string {
	d := time.Now().UTC()
	ext := strings.ToLower(path.Ext(filename))
	if known, ok := allowedExtensions[normaliseContentType(contentType)]; ok && ext == "" {
		ext = known
	}
	return fmt.Sprintf("items/%s/%d/%02d/%02d/%v%s", sellerID, d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

func normaliseContentType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}
