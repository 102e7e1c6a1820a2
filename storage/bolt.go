package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ruteri/watchstate/interfaces"
	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("watchstate")

// BoltBackend implements a KVStore in a single bbolt database file.
type BoltBackend struct {
	db          *bolt.DB
	path        string
	log         *slog.Logger
	locationURI string
}

// NewBoltBackend opens (or creates) the database at path.
// Opening fails after timeout if another process holds the file lock.
func NewBoltBackend(path string, timeout time.Duration, log *slog.Logger) (*BoltBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty bolt database path", interfaces.ErrInvalidStorageConfig)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltBackend{
		db:          db,
		path:        path,
		log:         log,
		locationURI: fmt.Sprintf("bolt://%s", path),
	}, nil
}

func (b *BoltBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(key))
		if v == nil {
			return interfaces.ErrKeyNotFound
		}
		// v is only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

func (b *BoltBackend) Set(ctx context.Context, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), value)
	})
}

func (b *BoltBackend) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
}

// Update reads and writes key in a single read-write transaction.
func (b *BoltBackend) Update(ctx context.Context, key string, fn interfaces.UpdateFunc) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		var current []byte
		if v := bucket.Get([]byte(key)); v != nil {
			current = append([]byte(nil), v...)
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), next)
	})
	if errors.Is(err, interfaces.ErrNoUpdate) {
		return nil
	}
	return err
}

func (b *BoltBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

func (b *BoltBackend) Available(ctx context.Context) bool {
	err := b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(boltBucket) == nil {
			return fmt.Errorf("bucket %s missing", boltBucket)
		}
		return nil
	})
	if err != nil {
		b.log.Debug("Bolt backend unavailable", "err", err)
		return false
	}
	return true
}

func (b *BoltBackend) Name() string {
	return fmt.Sprintf("bolt-%s", filepath.Base(b.path))
}

func (b *BoltBackend) LocationURI() string {
	return b.locationURI
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}
