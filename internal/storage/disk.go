package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/artfolio/artfolio/internal/logger"
)

// DiskBackend stores objects on the local filesystem under a sandboxed root.
type DiskBackend struct {
	root     *os.Root
	basePath string
}

// NewDiskBackend creates the base directory if needed and opens it as a
// sandboxed root, so path traversal in object names cannot escape it.
func NewDiskBackend(basePath string) (*DiskBackend, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	root, err := os.OpenRoot(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage root: %w", err)
	}

	logger.Info("disk storage initialized", "path", basePath)
	return &DiskBackend{root: root, basePath: basePath}, nil
}

func (d *DiskBackend) Save(ctx context.Context, r io.Reader, opts SaveOptions) (SaveResult, error) {
	filename := filepath.Base(opts.Filename)
	if filename == "." || filename == "/" || filename == "" {
		return SaveResult{}, fmt.Errorf("invalid filename %q", opts.Filename)
	}

	file, err := d.root.Create(filename)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	// Hash while writing so saving is a single pass over the data.
	hasher := sha256.New()
	writer := io.MultiWriter(file, hasher)
	buf := make([]byte, copyBufferSize)

	size, err := io.CopyBuffer(writer, r, buf)
	if err != nil {
		d.root.Remove(filename)
		return SaveResult{}, fmt.Errorf("failed to write file: %w", err)
	}

	return SaveResult{
		Path: filename,
		Hash: hex.EncodeToString(hasher.Sum(nil)),
		Size: size,
	}, nil
}

func (d *DiskBackend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := d.root.Open(filepath.Base(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (d *DiskBackend) Delete(ctx context.Context, path string) error {
	err := d.root.Remove(filepath.Base(path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (d *DiskBackend) Stat(ctx context.Context, path string) (ObjectInfo, error) {
	info, err := d.root.Stat(filepath.Base(path))
	if err != nil {
		if os.IsNotExist(err) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}
	return ObjectInfo{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

func (d *DiskBackend) HealthCheck(ctx context.Context) error {
	if _, err := os.Stat(d.basePath); err != nil {
		return fmt.Errorf("storage directory inaccessible: %w", err)
	}
	return nil
}

// ValidateAccess performs a full write/read/delete round trip. Intended for
// startup checks, not the health endpoint.
func (d *DiskBackend) ValidateAccess(ctx context.Context) error {
	const probe = ".storage-check"

	file, err := d.root.Create(probe)
	if err != nil {
		return fmt.Errorf("storage not writable: %w", err)
	}
	if _, err := file.Write([]byte("ok")); err != nil {
		file.Close()
		return fmt.Errorf("storage write failed: %w", err)
	}
	file.Close()

	if _, err := d.root.Stat(probe); err != nil {
		return fmt.Errorf("storage read-back failed: %w", err)
	}
	if err := d.root.Remove(probe); err != nil {
		return fmt.Errorf("storage cleanup failed: %w", err)
	}
	return nil
}
