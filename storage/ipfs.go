package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/watchstate/interfaces"
)

// IPFSBackend implements a KVStore in the mutable file system (MFS) of an IPFS node.
// Every key is one file in baseDir named by its path-escaped key.
type IPFSBackend struct {
	shell       *shell.Shell
	apiAddr     string
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// ParseIPFSURI parses ipfs://host:port/base/dir?timeout=10s and creates the backend.
func ParseIPFSURI(uri string, log *slog.Logger) (*IPFSBackend, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "ipfs" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid ipfs uri %q", interfaces.ErrInvalidStorageConfig, uri)
	}

	timeout := 30 * time.Second
	if raw := u.Query().Get("timeout"); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid ipfs timeout %q", interfaces.ErrInvalidStorageConfig, raw)
		}
	}

	return NewIPFSBackend(u.Host, u.Path, timeout, log)
}

// NewIPFSBackend creates a backend talking to the node API at apiAddr (host:port).
func NewIPFSBackend(apiAddr, baseDir string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	if apiAddr == "" {
		return nil, fmt.Errorf("%w: ipfs api address is required", interfaces.ErrInvalidStorageConfig)
	}

	baseDir = "/" + strings.Trim(baseDir, "/")
	if baseDir == "/" {
		baseDir = "/watchstate"
	}

	sh := shell.NewShell(apiAddr)
	sh.SetTimeout(timeout)

	return &IPFSBackend{
		shell:       sh,
		apiAddr:     apiAddr,
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s%s?timeout=%s", apiAddr, baseDir, timeout),
	}, nil
}

func (b *IPFSBackend) filePath(key string) string {
	return path.Join(b.baseDir, url.PathEscape(key))
}

func (b *IPFSBackend) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	filePath := b.filePath(key)

	reader, err := b.shell.FilesRead(ctx, filePath)
	if err != nil {
		if isMfsNotExist(err) {
			return nil, interfaces.ErrKeyNotFound
		}
		b.log.Error("Failed to read file from IPFS",
			slog.String("path", filePath),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}
	return data, nil
}

func (b *IPFSBackend) Set(ctx context.Context, key string, value []byte) error {
	filePath := b.filePath(key)

	err := b.shell.FilesWrite(ctx, filePath, bytes.NewReader(value),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true))
	if err != nil {
		return fmt.Errorf("failed to write data to IPFS: %w", err)
	}

	b.log.Debug("Stored file in IPFS",
		slog.String("path", filePath),
		slog.Int("size", len(value)))
	return nil
}

func (b *IPFSBackend) Delete(ctx context.Context, key string) error {
	err := b.shell.FilesRm(ctx, b.filePath(key), true)
	if err != nil && !isMfsNotExist(err) {
		return fmt.Errorf("failed to remove data from IPFS: %w", err)
	}
	return nil
}

func (b *IPFSBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	entries, err := b.shell.FilesLs(ctx, b.baseDir)
	if err != nil {
		if isMfsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list IPFS directory: %w", err)
	}

	keys := []string{}
	for _, entry := range entries {
		key, err := url.PathUnescape(entry.Name)
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Available checks that the node is up and the base directory can be created.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable", slog.String("api", b.apiAddr))
		return false
	}
	if err := b.shell.FilesMkdir(ctx, b.baseDir, shell.FilesMkdir.Parents(true)); err != nil {
		b.log.Warn("IPFS base directory unavailable",
			slog.String("path", b.baseDir),
			"err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s", b.apiAddr)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func (b *IPFSBackend) Close() error { return nil }

func isMfsNotExist(err error) bool {
	return strings.Contains(err.Error(), "does not exist") || strings.Contains(err.Error(), "no link named")
}
