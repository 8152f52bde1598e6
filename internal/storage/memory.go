package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/liamg/memoryfs"
)

// MemoryBackend keeps objects in an in-memory filesystem. Used in tests and
// for ephemeral development setups.
type MemoryBackend struct {
	mu sync.RWMutex
	fs *memoryfs.FS
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{fs: memoryfs.New()}
}

func (m *MemoryBackend) Save(ctx context.Context, r io.Reader, opts SaveOptions) (SaveResult, error) {
	filename := filepath.Base(opts.Filename)
	if filename == "." || filename == "/" || filename == "" {
		return SaveResult{}, fmt.Errorf("invalid filename %q", opts.Filename)
	}

	var buf bytes.Buffer
	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(&buf, hasher), r)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to read upload: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fs.WriteFile(filename, buf.Bytes(), 0o644); err != nil {
		return SaveResult{}, fmt.Errorf("failed to write file: %w", err)
	}

	return SaveResult{
		Path: filename,
		Hash: hex.EncodeToString(hasher.Sum(nil)),
		Size: size,
	}, nil
}

func (m *MemoryBackend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := m.fs.ReadFile(filepath.Base(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryBackend) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.fs.Remove(filepath.Base(path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (m *MemoryBackend) Stat(ctx context.Context, path string) (ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, err := m.fs.Stat(filepath.Base(path))
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

func (m *MemoryBackend) HealthCheck(ctx context.Context) error {
	return nil
}
