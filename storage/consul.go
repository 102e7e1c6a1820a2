package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/ruteri/watchstate/interfaces"
)

// ConsulBackend implements a KVStore on the Consul KV store.
// All keys live under a single path prefix.
type ConsulBackend struct {
	kv          *consulapi.KV
	client      *consulapi.Client
	path        string
	log         *slog.Logger
	locationURI string
}

// NewConsulBackend creates a backend for the agent at address (host:port or URL).
// Keys are stored below path, e.g. "watchstate/".
func NewConsulBackend(address, token, path string, log *slog.Logger) (*ConsulBackend, error) {
	if address == "" {
		return nil, fmt.Errorf("%w: consul address is required", interfaces.ErrInvalidStorageConfig)
	}

	config := consulapi.DefaultConfig()
	config.Address = address
	if token != "" {
		config.Token = token
	}

	client, err := consulapi.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %w", err)
	}

	path = strings.Trim(path, "/")
	if path != "" {
		path += "/"
	}

	return &ConsulBackend{
		kv:          client.KV(),
		client:      client,
		path:        path,
		log:         log,
		locationURI: fmt.Sprintf("consul://%s/%s", address, path),
	}, nil
}

func (b *ConsulBackend) Get(ctx context.Context, key string) ([]byte, error) {
	pair, _, err := b.kv.Get(b.path+key, (&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("consul get failed: %w", err)
	}
	if pair == nil {
		return nil, interfaces.ErrKeyNotFound
	}
	return pair.Value, nil
}

func (b *ConsulBackend) Set(ctx context.Context, key string, value []byte) error {
	pair := &consulapi.KVPair{Key: b.path + key, Value: value}
	if _, err := b.kv.Put(pair, (&consulapi.WriteOptions{}).WithContext(ctx)); err != nil {
		return fmt.Errorf("consul put failed: %w", err)
	}
	return nil
}

// Update writes with check-and-set on the ModifyIndex that was read, and
// retries when the key changed in between. Index 0 only creates the key.
func (b *ConsulBackend) Update(ctx context.Context, key string, fn interfaces.UpdateFunc) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		pair, _, err := b.kv.Get(b.path+key, (&consulapi.QueryOptions{}).WithContext(ctx))
		if err != nil {
			return fmt.Errorf("consul get failed: %w", err)
		}

		var current []byte
		var index uint64
		if pair != nil {
			current, index = pair.Value, pair.ModifyIndex
		}

		next, err := fn(current)
		if errors.Is(err, interfaces.ErrNoUpdate) {
			return nil
		}
		if err != nil {
			return err
		}

		ok, _, err := b.kv.CAS(&consulapi.KVPair{Key: b.path + key, Value: next, ModifyIndex: index}, (&consulapi.WriteOptions{}).WithContext(ctx))
		if err != nil {
			return fmt.Errorf("consul cas failed: %w", err)
		}
		if ok {
			return nil
		}
	}
	return contentionError("consul", key)
}

func (b *ConsulBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.kv.Delete(b.path+key, (&consulapi.WriteOptions{}).WithContext(ctx)); err != nil {
		return fmt.Errorf("consul delete failed: %w", err)
	}
	return nil
}

func (b *ConsulBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	found, _, err := b.kv.Keys(b.path+prefix, "", (&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("consul keys failed: %w", err)
	}

	keys := make([]string, 0, len(found))
	for _, k := range found {
		keys = append(keys, strings.TrimPrefix(k, b.path))
	}
	return keys, nil
}

// Available checks that the agent can see a cluster leader.
func (b *ConsulBackend) Available(ctx context.Context) bool {
	leader, err := b.client.Status().LeaderWithQueryOptions((&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil || leader == "" {
		b.log.Warn("Consul backend unavailable",
			slog.String("location", b.locationURI),
			"err", err)
		return false
	}
	return true
}

func (b *ConsulBackend) Name() string {
	return "consul"
}

func (b *ConsulBackend) LocationURI() string {
	return b.locationURI
}

func (b *ConsulBackend) Close() error { return nil }
