package interfaces

import (
	"context"
	"errors"
	"strings"
)

// StorageType selects the backend family used for the lifetime of the process.
type StorageType string

const (
	// StorageTypeNone runs without persistence: reads are empty and writes are dropped.
	StorageTypeNone StorageType = "none"

	StorageTypeRedis   StorageType = "redis"
	StorageTypeUpstash StorageType = "upstash"
	StorageTypeKvrocks StorageType = "kvrocks"
	StorageTypeConsul  StorageType = "consul"
	StorageTypeVault   StorageType = "vault"
	StorageTypeS3      StorageType = "s3"
	StorageTypeIPFS    StorageType = "ipfs"
	StorageTypeFile    StorageType = "file"
	StorageTypeBolt    StorageType = "bolt"

	// StorageTypeMemory keeps everything in process memory. Development and tests only.
	StorageTypeMemory StorageType = "memory"
)

var knownStorageTypes = []StorageType{
	StorageTypeNone,
	StorageTypeRedis,
	StorageTypeUpstash,
	StorageTypeKvrocks,
	StorageTypeConsul,
	StorageTypeVault,
	StorageTypeS3,
	StorageTypeIPFS,
	StorageTypeFile,
	StorageTypeBolt,
	StorageTypeMemory,
}

// ParseStorageType maps a configuration value onto a StorageType.
// Unrecognized and empty values, as well as the legacy "localstorage",
// resolve to StorageTypeNone; ok reports whether the value was recognized.
func ParseStorageType(value string) (st StorageType, ok bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "", "localstorage":
		return StorageTypeNone, true
	}
	for _, known := range knownStorageTypes {
		if v == string(known) {
			return known, true
		}
	}
	return StorageTypeNone, false
}

var (
	// ErrKeyNotFound is returned by a KVStore when the requested key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidStorageConfig is returned when the parameters for the selected
	// backend family are missing or malformed.
	ErrInvalidStorageConfig = errors.New("invalid storage configuration")

	// ErrNoUpdate is returned by an UpdateFunc to leave the key unchanged.
	ErrNoUpdate = errors.New("no update")
)

// Storage is the data-access contract every backend implements in full.
//
// Lookups return a nil pointer (never an error) when the item is absent, and
// boolean checks return false for unknown users. Writes and deletes are
// idempotent. Backends that cannot persist an entity implement its methods as
// explicit no-ops rather than omitting them.
//
// Play records and favorites are addressed by the composite key derived from
// (source, id). Skip configs deliberately keep source and id as separate arguments.
type Storage interface {
	GetPlayRecord(ctx context.Context, userName, key string) (*PlayRecord, error)
	SetPlayRecord(ctx context.Context, userName, key string, record PlayRecord) error
	GetAllPlayRecords(ctx context.Context, userName string) (map[string]PlayRecord, error)
	DeletePlayRecord(ctx context.Context, userName, key string) error

	GetFavorite(ctx context.Context, userName, key string) (*Favorite, error)
	SetFavorite(ctx context.Context, userName, key string, favorite Favorite) error
	GetAllFavorites(ctx context.Context, userName string) (map[string]Favorite, error)
	DeleteFavorite(ctx context.Context, userName, key string) error

	RegisterUser(ctx context.Context, userName, password string) error
	VerifyUser(ctx context.Context, userName, password string) (bool, error)
	CheckUserExist(ctx context.Context, userName string) (bool, error)
	ChangePassword(ctx context.Context, userName, newPassword string) error
	// DeleteUser removes the credential and every entity owned by the user.
	DeleteUser(ctx context.Context, userName string) error
	GetAllUsers(ctx context.Context) ([]string, error)

	// GetSearchHistory returns keywords most-recent-first.
	GetSearchHistory(ctx context.Context, userName string) ([]string, error)
	AddSearchHistory(ctx context.Context, userName, keyword string) error
	// DeleteSearchHistory removes one keyword, ignoring surrounding whitespace,
	// or the whole history when keyword is empty.
	DeleteSearchHistory(ctx context.Context, userName, keyword string) error

	GetSkipConfig(ctx context.Context, userName, source, id string) (*SkipConfig, error)
	SetSkipConfig(ctx context.Context, userName, source, id string, config SkipConfig) error
	DeleteSkipConfig(ctx context.Context, userName, source, id string) error
	GetAllSkipConfigs(ctx context.Context, userName string) (map[string]SkipConfig, error)

	GetAdminConfig(ctx context.Context) (*AdminConfig, error)
	SetAdminConfig(ctx context.Context, config AdminConfig) error

	ClearAllData(ctx context.Context) error

	// Name returns identifier for logging.
	Name() string
}

// KVStore is the byte-level driver a backend family provides.
// Storage implementations layer the entity model on top of it.
type KVStore interface {
	// Get returns ErrKeyNotFound when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend, with secrets redacted.
	LocationURI() string

	// Close releases connections and file handles.
	Close() error
}

// UpdateFunc computes the next value of a key from its current one. current
// is nil when the key does not exist. Returning ErrNoUpdate leaves the key as
// it is; any other error aborts the update and is returned to the caller.
type UpdateFunc func(current []byte) ([]byte, error)

// AtomicUpdater is implemented by drivers that can read-modify-write a single
// key without losing concurrent writes. fn may be called more than once.
type AtomicUpdater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}
