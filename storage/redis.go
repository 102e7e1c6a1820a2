package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ruteri/watchstate/interfaces"
)

// scanBatchSize is the COUNT hint passed to SCAN.
const scanBatchSize = 500

// RedisBackend implements a KVStore over the Redis protocol. Kvrocks speaks
// the same protocol and uses this backend under its own family name.
type RedisBackend struct {
	client      *redis.Client
	family      string
	log         *slog.Logger
	locationURI string
}

// NewRedisBackend creates a backend from a redis:// or rediss:// URL.
// family names the backend in logs ("redis" or "kvrocks").
func NewRedisBackend(family, redisURL string, log *slog.Logger) (*RedisBackend, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("%w: %s url is required", interfaces.ErrInvalidStorageConfig, family)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidStorageConfig, err)
	}

	return &RedisBackend{
		client:      redis.NewClient(opts),
		family:      family,
		log:         log,
		locationURI: fmt.Sprintf("%s://%s/%d", family, opts.Addr, opts.DB),
	}, nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s GET failed: %w", b.family, err)
	}
	return data, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := b.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("%s SET failed: %w", b.family, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s DEL failed: %w", b.family, err)
	}
	return nil
}

// Update runs fn inside WATCH/MULTI. The transaction is retried when another
// client wrote the key between the read and EXEC.
func (b *RedisBackend) Update(ctx context.Context, key string, fn interfaces.UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			current, err = nil, nil
		}
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := b.client.Watch(ctx, txf, key)
		switch {
		case err == nil, errors.Is(err, interfaces.ErrNoUpdate):
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return fmt.Errorf("%s update failed: %w", b.family, err)
		}
	}
	return contentionError(b.family, key)
}

// Keys walks the keyspace with SCAN, which does not block the server the way KEYS does.
func (b *RedisBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys := []string{}
	seen := make(map[string]struct{})

	iter := b.client.Scan(ctx, 0, globEscape(prefix)+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		// SCAN may return a key more than once
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s SCAN failed: %w", b.family, err)
	}

	b.log.Debug("Scanned keys",
		slog.String("backend_name", b.Name()),
		slog.String("prefix", prefix),
		slog.Int("count", len(keys)),
		slog.Duration("duration", time.Since(start)))
	return keys, nil
}

// Available checks if the server answers PING.
func (b *RedisBackend) Available(ctx context.Context) bool {
	if err := b.client.Ping(ctx).Err(); err != nil {
		b.log.Warn("Redis backend unavailable",
			slog.String("backend_name", b.Name()),
			"err", err)
		return false
	}
	return true
}

func (b *RedisBackend) Name() string {
	return b.family
}

func (b *RedisBackend) LocationURI() string {
	return b.locationURI
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// globEscape quotes the characters MATCH treats as a pattern.
func globEscape(s string) string {
	return globEscaper.Replace(s)
}
