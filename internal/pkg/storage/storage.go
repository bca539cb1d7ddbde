package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ManuelReschke/ScriptHub/internal/pkg/env"
)

const (
	DriverLocal = "local"
	DriverS3    = "s3"

	PrefixImages  = "images"
	PrefixScripts = "scripts"
)

var (
	ErrNotFound   = errors.New("stored file not found")
	ErrInvalidKey = errors.New("invalid storage key")
)

// FileStore keeps uploaded script artifacts and cover images.
type FileStore interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key; a missing object is not an error.
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// NewKey builds "<prefix>/<uuid><ext>" from the client supplied filename.
func NewKey(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(prefix, uuid.New().String()+ext)
}

// NewFromEnv selects the driver named by STORAGE_DRIVER.
func NewFromEnv(ctx context.Context) (FileStore, error) {
	switch driver := env.GetEnv("STORAGE_DRIVER", DriverLocal); driver {
	case DriverLocal:
		return NewLocalStore(env.GetEnv("UPLOAD_DIR", "./uploads"), env.GetEnv("BACKEND_URL", "")+"/uploads")
	case DriverS3:
		cfg, err := LoadS3Config()
		if err != nil {
			return nil, err
		}
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", driver)
	}
}

// ContentType returns the MIME type for a file extension.
func ContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".zip":
		return "application/zip"
	case ".json":
		return "application/json"
	case ".txt", ".lua", ".py", ".js", ".ts", ".ahk", ".sh", ".ps1":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(key, "\\", "/")), "/")
	if key == "" || key == "." {
		return "", ErrInvalidKey
	}
	return key, nil
}
