package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore keeps objects under a directory that the kiosk server exposes
// as static files.
type DiskStore struct {
	dir           string
	publicBaseURL string
}

func NewDiskStore(dir, publicBaseURL string) *DiskStore {
	return &DiskStore{
		dir:           dir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	clean := filepath.Clean("/" + key)
	dst := filepath.Join(s.dir, clean)

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}

	return s.publicBaseURL + filepath.ToSlash(clean), nil
}
