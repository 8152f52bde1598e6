package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// copyBufferSize is used for streaming uploads to the backend. Image files
// are typically a few megabytes, so one buffer per save is fine.
const copyBufferSize = 8 * 1024 * 1024

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// SaveOptions carries metadata about the incoming object.
type SaveOptions struct {
	// Filename is the name to store the object under, relative to the
	// backend root. Callers are responsible for generating collision-free
	// names; backends reject path traversal.
	Filename string

	// ContentType is the MIME type of the object, used by backends that
	// serve objects directly (S3).
	ContentType string
}

// SaveResult describes a stored object.
type SaveResult struct {
	Path string
	Hash string // sha256 hex of the stored bytes
	Size int64
}

// ObjectInfo describes an existing object.
type ObjectInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Backend abstracts where gallery images live.
type Backend interface {
	// Save streams r to the backend and returns the stored path, content
	// hash and size.
	Save(ctx context.Context, r io.Reader, opts SaveOptions) (SaveResult, error)

	// Open returns a reader for the object at path. The caller must close
	// it. Returns ErrNotFound if the object does not exist.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the object at path. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, path string) error

	// Stat returns metadata for the object at path.
	Stat(ctx context.Context, path string) (ObjectInfo, error)

	// HealthCheck verifies the backend is reachable. Cheap enough to call
	// from a health endpoint.
	HealthCheck(ctx context.Context) error
}
