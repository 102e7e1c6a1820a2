package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchstate.toml")
	require.NoError(t, writeFile(path, `
[storage]
type = "redis"
redis_url = "redis://cache:6379/0"
key_prefix = "ws:"
connect_timeout = "2s"
`))

	cfg := DefaultConfig()
	require.NoError(t, LoadConfigFile(path, &cfg))

	assert.Equal(t, "redis", cfg.Type)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
	assert.Equal(t, "ws:", cfg.KeyPrefix)
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
	// defaults not named in the file survive
	assert.Equal(t, "secret", cfg.VaultMount)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()

	err := LoadConfigFile(filepath.Join(dir, "missing.toml"), &cfg)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, writeFile(bad, "[storage\ntype = "))
	assert.Error(t, LoadConfigFile(bad, &cfg))

	unknown := filepath.Join(dir, "unknown.toml")
	require.NoError(t, writeFile(unknown, "[storage]\nredis_uri = \"typo\"\n"))
	assert.Error(t, LoadConfigFile(unknown, &cfg))
}
