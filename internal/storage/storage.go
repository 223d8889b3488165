// Package storage keeps reference photos of registered cases.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/kozaktomas/facewatch/internal/config"
)

// ErrNotFound is returned when an image key does not exist.
var ErrNotFound = errors.New("image not found")

// ErrInvalidKey is returned for keys that would escape the store root.
var ErrInvalidKey = errors.New("invalid image key")

// ImageStore persists reference photos by key.
type ImageStore interface {
	// Put writes the image, replacing any previous content under key
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get reads the image bytes
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the image. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// NewImageKey returns a unique key for a new reference photo.
func NewImageKey(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return "cases/" + uuid.NewString() + ext
}

// ContentType maps an image extension to its MIME type.
func ContentType(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

// cleanKey rejects absolute keys and parent directory references.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

// New creates the image store selected by configuration.
func New(ctx context.Context, cfg *config.StorageConfig) (ImageStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.UploadDir)
	case "s3":
		return NewS3Store(ctx, &cfg.S3)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
