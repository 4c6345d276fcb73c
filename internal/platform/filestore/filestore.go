// Package filestore stores uploaded files (library documents, charge receipts)
// on the local disk or in Google Cloud Storage.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/domu-platform/domu/internal/config"
	"github.com/google/uuid"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Store persists opaque objects under slash separated keys.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// URL returns a time-limited download link for the object.
	URL(ctx context.Context, key string) (string, error)
	Close() error
}

// New builds the store selected by the configuration. Local links are signed
// with the JWT secret so they survive restarts.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	st := cfg.Storage
	switch st.Backend {
	case "gcs":
		return NewGCS(ctx, st.GCSBucket, st.GCSCredentials, st.SignedURLExpiry)
	case "local", "":
		baseURL := strings.TrimRight(cfg.Server.PublicBaseURL, "/") + "/files"
		return NewLocal(st.LocalDir, baseURL, st.SignedURLExpiry, cfg.Auth.JWTSecret)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", st.Backend)
	}
}

// ObjectKey builds "<prefix>/<uuid>-<file name>" with the file name reduced to
// its base name.
func ObjectKey(prefix, fileName string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return path.Join(strings.Trim(prefix, "/"), uuid.NewString()+"-"+base)
}

func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + key)
	if cleaned == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}
