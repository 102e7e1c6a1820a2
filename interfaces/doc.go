// Package interfaces defines the storage contract and entity types shared by
// the storage backends, the db façade and the HTTP layer.
//
// # Storage Interfaces
//
// Storage: the full per-user data-access contract (play records, favorites,
// skip configs, search history, credentials) plus the global admin config.
// Every backend implements all of it; a backend that cannot persist an
// entity implements the corresponding methods as no-ops.
//
// KVStore: the byte-level driver each backend family provides (Redis,
// Upstash, Kvrocks, Consul, Vault, S3, IPFS, file, bolt, memory).
//
// # Types
//
//   - PlayRecord, Favorite, SkipConfig: per-user, per-content state
//   - AdminConfig: singleton site configuration
//   - StorageType: the backend family discriminator
//
// # Error Types
//
//   - ErrKeyNotFound: a KVStore key does not exist
//   - ErrBackendUnavailable: the backend is not accessible
//   - ErrInvalidStorageConfig: backend parameters are missing or malformed
package interfaces
