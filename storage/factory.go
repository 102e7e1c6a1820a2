package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/watchstate/interfaces"
)

// DriverConstructor builds the driver for one backend family from the configuration.
type DriverConstructor func(cfg Config, log *slog.Logger) (interfaces.KVStore, error)

// StorageFactory turns a Config into a ready-to-use interfaces.Storage.
//
// Selection never fails: a missing, unrecognized, misconfigured or unreachable
// backend is logged and replaced by EmptyStorage.
type StorageFactory struct {
	log          *slog.Logger
	constructors map[interfaces.StorageType]DriverConstructor
}

// NewStorageFactory creates a factory that knows every built-in backend family.
func NewStorageFactory(logger *slog.Logger) *StorageFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageFactory{
		log: logger,
		constructors: map[interfaces.StorageType]DriverConstructor{
			interfaces.StorageTypeRedis:   createRedisBackend,
			interfaces.StorageTypeKvrocks: createKvrocksBackend,
			interfaces.StorageTypeUpstash: createUpstashBackend,
			interfaces.StorageTypeConsul:  createConsulBackend,
			interfaces.StorageTypeVault:   createVaultBackend,
			interfaces.StorageTypeS3:      createS3Backend,
			interfaces.StorageTypeIPFS:    createIPFSBackend,
			interfaces.StorageTypeFile:    createFileBackend,
			interfaces.StorageTypeBolt:    createBoltBackend,
			interfaces.StorageTypeMemory:  createMemoryBackend,
		},
	}
}

// Register replaces the constructor for a backend family.
func (sf *StorageFactory) Register(storageType interfaces.StorageType, constructor DriverConstructor) {
	sf.constructors[storageType] = constructor
}

// StorageFor selects the backend named by cfg.Type and returns it, or the
// EmptyStorage when no usable backend results.
func (sf *StorageFactory) StorageFor(cfg Config) interfaces.Storage {
	storageType, ok := interfaces.ParseStorageType(cfg.Type)
	if !ok {
		return NewEmptyStorage(sf.log, fmt.Sprintf("unknown storage type %q", cfg.Type))
	}
	if storageType == interfaces.StorageTypeNone {
		return NewEmptyStorage(sf.log, "no storage backend configured")
	}

	constructor, ok := sf.constructors[storageType]
	if !ok {
		sf.log.Error("No constructor for storage type",
			slog.String("storage_type", string(storageType)))
		return NewEmptyStorage(sf.log, fmt.Sprintf("storage type %s is not supported", storageType))
	}

	start := time.Now()
	kv, err := sf.buildDriver(storageType, constructor, cfg)
	if err != nil {
		sf.log.Error("Failed to initialize storage backend, falling back to empty storage",
			slog.String("storage_type", string(storageType)),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return NewEmptyStorage(sf.log, err.Error())
	}

	sf.log.Info("Storage backend initialized",
		slog.String("storage_type", string(storageType)),
		slog.String("backend_name", kv.Name()),
		slog.String("location", kv.LocationURI()),
		slog.Duration("duration", time.Since(start)))
	return NewKVStorage(kv, cfg.KeyPrefix, sf.log)
}

// buildDriver runs the constructor and the availability check. A panic in
// either is converted to an error.
func (sf *StorageFactory) buildDriver(storageType interfaces.StorageType, constructor DriverConstructor, cfg Config) (kv interfaces.KVStore, err error) {
	defer func() {
		if r := recover(); r != nil {
			kv = nil
			err = fmt.Errorf("%s backend constructor panicked: %v", storageType, r)
		}
	}()

	kv, err = constructor(cfg, sf.log)
	if err != nil {
		return nil, err
	}
	if kv == nil {
		return nil, fmt.Errorf("%s backend constructor returned no driver", storageType)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if !kv.Available(ctx) {
		kv.Close()
		return nil, fmt.Errorf("%w: %s at %s", interfaces.ErrBackendUnavailable, storageType, kv.LocationURI())
	}
	return kv, nil
}

func createRedisBackend(cfg Config, log *slog.Logger) (interfaces.KVStore, error) {
	return NewRedisBackend(string(interfaces.StorageTypeRedis), cfg.RedisURL, log)
}

func createKvrocksBackend(cfg Config, log *slog.Logger) (interfaces.KVStore, error) {
	return NewRedisBackend(string(interfaces.StorageTypeKvrocks), cfg.KvrocksURL, log)
}

func createUpstashBackend(cfg Config, log *slog.Logger) (interfaces.KVStore, error) {
	return NewUpstashBackend(cfg.UpstashURL, cfg.UpstashToken, requestTimeout(cfg), log)
}

func createConsulBackend(cfg Config, log *slog.Logger) (interfaces.KVStore, error) {
	return NewConsulBackend(cfg.ConsulAddr, cfg.ConsulToken, cfg.ConsulPath, log)
}

func createVaultBackend(cfg Config, log *slog.Logger) (interfaces.KVStore, error) {
	return NewVaultBackend(cfg.VaultAddr, cfg.VaultToken, cfg.VaultMount, cfg.VaultPath, requestTimeout(cfg), log)
}

func createS3Backend(cfg Config, log *slog.Logger) (interfaces.KVStore, error) {
	return ParseS3URI(cfg.S3URI, log)
}

func createIPFSBackend(cfg Config, log *slog.Logger) (interfaces.KVStore, error) {
	return ParseIPFSURI(cfg.IPFSURI, log)
}

func createFileBackend(cfg Config, log *slog.Logger) (interfaces.KVStore, error) {
	return NewFileBackend(cfg.FilePath, log)
}

func createBoltBackend(cfg Config, log *slog.Logger) (interfaces.KVStore, error) {
	// the lock wait is part of connecting
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ConnectTimeout
	}
	return NewBoltBackend(cfg.BoltPath, timeout, log)
}

func createMemoryBackend(Config, *slog.Logger) (interfaces.KVStore, error) {
	return NewMemoryBackend(), nil
}

// requestTimeout is the per-request timeout handed to HTTP based drivers.
func requestTimeout(cfg Config) time.Duration {
	if cfg.ConnectTimeout > 0 {
		return 6 * cfg.ConnectTimeout
	}
	return 30 * time.Second
}
