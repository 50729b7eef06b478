package objectstore

import (
	"context"
	"mime"
	"path"

	"github.com/google/uuid"
)

// Store accepts a raw object and returns a stable URL it can be fetched from.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// PhotoKey returns a fresh object key under photos/ with an extension
// matching contentType.
func PhotoKey(contentType string) string {
	ext := ".jpg"
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 && contentType != "image/jpeg" {
		ext = exts[0]
	}
	return path.Join("photos", uuid.NewString()+ext)
}
