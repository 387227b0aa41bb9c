package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a key has no stored content.
var ErrNotFound = errors.New("storage: object not found")

// FileInfo represents metadata about a stored file.
type FileInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Storage defines the file storage operations used for archived exports.
type Storage interface {
	// Write stores content from the reader with the given key.
	// The size parameter is the expected content size (-1 if unknown).
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read retrieves content for the given key. The caller closes the reader.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content with the given key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// List returns all files whose keys start with prefix.
	List(ctx context.Context, prefix string) ([]FileInfo, error)

	// Exists reports whether content with the given key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns a URL a browser can download the content from.
	// For S3 this is a presigned URL valid for expires.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}
