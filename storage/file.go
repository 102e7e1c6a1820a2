package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruteri/watchstate/interfaces"
)

// FileBackend implements a KVStore using the local file system.
// Every key is one file in the base directory, named by its path-escaped key.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a new file storage backend using the specified base directory.
// The directory is created if it doesn't exist.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("%w: empty file backend directory", interfaces.ErrInvalidStorageConfig)
	}

	// Ensure base directory exists
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Get reads the file for key. Returns ErrKeyNotFound if the file doesn't exist.
func (b *FileBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(b.getFilePath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Set writes value to a temporary file and renames it into place, so readers
// never observe a partially written value.
func (b *FileBackend) Set(ctx context.Context, key string, value []byte) error {
	filePath := b.getFilePath(key)

	tmp, err := os.CreateTemp(b.baseDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	b.log.Debug("Stored value in file",
		slog.String("path", filePath),
		slog.Int("size", len(value)))
	return nil
}

func (b *FileBackend) Delete(ctx context.Context, key string) error {
	err := os.Remove(b.getFilePath(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (b *FileBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(b.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}

	keys := []string{}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".tmp-") {
			continue
		}
		key, err := url.PathUnescape(entry.Name())
		if err != nil {
			b.log.Debug("Skipping foreign file", slog.String("name", entry.Name()))
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Available checks if the file backend is accessible by verifying the base directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

func (b *FileBackend) Close() error { return nil }

// getFilePath maps a key onto a single file name inside the base directory.
func (b *FileBackend) getFilePath(key string) string {
	return filepath.Join(b.baseDir, url.PathEscape(key))
}
