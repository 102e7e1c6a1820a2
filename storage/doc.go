// Package storage persists watch state (play records, favorites, skip
// configs, search history, credentials and the admin configuration) on one
// of several pluggable key-value backends.
//
// Every family is a small interfaces.KVStore driver:
//
//   - redis, kvrocks: Redis protocol via go-redis
//   - upstash: Upstash REST API
//   - consul: Consul KV
//   - vault: Vault KV v2 secrets engine
//   - s3: S3-compatible object storage
//   - ipfs: files in the IPFS node's MFS
//   - file: one file per key in a local directory
//   - bolt: a single bbolt database file
//   - memory: process memory, for development and tests
//
// KVStorage maps the entity model onto a driver:
//
//	<prefix>u:<user>:pwd            credential
//	<prefix>u:<user>:pr:<key>       play record
//	<prefix>u:<user>:fav:<key>      favorite
//	<prefix>u:<user>:skip:<key>     skip config
//	<prefix>u:<user>:sh             search history
//	<prefix>admin:config            admin configuration
//
// Values are JSON. <key> is the composite key built by DeriveKey.
//
// # Backend Selection
//
// StorageFactory builds the backend named in Config.Type and checks it with
// Available. An unknown type, a constructor error or panic, and a failed
// availability check all yield EmptyStorage, which accepts every call and
// persists nothing. Selection never fails.
//
// Shared (and db.New on top of it) selects once per process and returns the
// same backend to every caller afterwards.
//
// # Usage
//
//	cfg := storage.DefaultConfig()
//	cfg.Type = "redis"
//	cfg.RedisURL = "redis://localhost:6379/0"
//
//	s := storage.NewStorageFactory(logger).StorageFor(cfg)
//	err := s.SetFavorite(ctx, "alice", storage.DeriveKey("src1", "123"), fav)
package storage
