package storage

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config selects and parameterizes the storage backend. Only the fields of
// the selected family are read.
type Config struct {
	// Type is the backend family, see interfaces.ParseStorageType.
	Type string `toml:"type"`
	// KeyPrefix namespaces every key, so several deployments can share one store.
	KeyPrefix string `toml:"key_prefix"`
	// ConnectTimeout bounds the availability check made at construction.
	ConnectTimeout time.Duration `toml:"connect_timeout"`

	RedisURL   string `toml:"redis_url"`
	KvrocksURL string `toml:"kvrocks_url"`

	UpstashURL   string `toml:"upstash_url"`
	UpstashToken string `toml:"upstash_token"`

	ConsulAddr  string `toml:"consul_addr"`
	ConsulToken string `toml:"consul_token"`
	ConsulPath  string `toml:"consul_path"`

	VaultAddr  string `toml:"vault_addr"`
	VaultToken string `toml:"vault_token"`
	VaultMount string `toml:"vault_mount"`
	VaultPath  string `toml:"vault_path"`

	// S3URI has the form s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=&endpoint=
	S3URI string `toml:"s3_uri"`
	// IPFSURI has the form ipfs://host:port/base/dir?timeout=30s
	IPFSURI string `toml:"ipfs_uri"`

	FilePath string `toml:"file_path"`
	BoltPath string `toml:"bolt_path"`
}

// DefaultConfig returns a configuration without persistence.
func DefaultConfig() Config {
	return Config{
		Type:           "none",
		ConnectTimeout: 5 * time.Second,
		ConsulPath:     "watchstate",
		VaultMount:     "secret",
		VaultPath:      "watchstate",
		FilePath:       "./data",
		BoltPath:       "./watchstate.db",
	}
}

// LoadConfigFile overlays the [storage] table of the TOML file at path onto cfg.
// Durations are written as strings, e.g. connect_timeout = "3s".
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	file := struct {
		Storage *Config `toml:"storage"`
	}{Storage: cfg}

	meta, err := toml.Decode(string(data), &file)
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys in config file %s: %v", path, undecoded)
	}
	return nil
}
