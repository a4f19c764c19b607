// Package storage keeps uploaded project attachments in a blob backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"research-showcase-api/config"
)

var ErrNotFound = errors.New("blob not found")

// PutOptions carries object metadata for Put.
type PutOptions struct {
	ContentType string
}

// Info describes a stored object.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the attachment backend. Keys are slash separated relative paths.
type Store interface {
	Driver() string
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// URL returns the address clients use to download key.
	URL(key string) string
}

// Open builds the backend selected by BLOB_DRIVER.
func Open(ctx context.Context, c *config.Config) (Store, error) {
	switch c.BlobDriver {
	case "", "fs":
		return NewFSStore(c.UploadPath, joinURL(c.BlobPublicURL, "/uploads"))
	case "s3":
		return NewS3Store(ctx, S3Config{
			Bucket:    c.BlobS3Bucket,
			Region:    c.BlobS3Region,
			Endpoint:  c.BlobS3Endpoint,
			PathStyle: c.BlobS3PathStyle,
			PublicURL: c.BlobPublicURL,

			AccessKeyID:     c.BlobS3AccessKeyID,
			SecretAccessKey: c.BlobS3SecretAccessKey,
		})
	}
	return nil, fmt.Errorf("unsupported BLOB_DRIVER %q", c.BlobDriver)
}

// sanitizeKey ensures key doesn't escape the store root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key contains '..'")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return path.Clean(key), nil
}

func joinURL(base, p string) string {
	if base == "" {
		return p
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}
