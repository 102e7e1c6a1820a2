package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/watchstate/interfaces"
)

// VaultBackend implements a KVStore on a HashiCorp Vault KV v2 secrets engine.
// Each key is one secret under mountPath/dataPath, holding its value in the "value" field.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a new Vault storage backend authenticated with a token.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - token: Vault token with read/write/list/delete on the data path
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "watchstate")
//   - timeout: HTTP client timeout
//   - log: Structured logger for operational insights
func NewVaultBackend(address, token, mountPath, dataPath string, timeout time.Duration, log *slog.Logger) (*VaultBackend, error) {
	if address == "" || token == "" {
		return nil, fmt.Errorf("%w: vault address and token are required", interfaces.ErrInvalidStorageConfig)
	}

	// Create Vault config
	config := api.DefaultConfig()
	if config.Error != nil {
		return nil, fmt.Errorf("failed to create Vault config: %w", config.Error)
	}
	config.Address = address
	config.Timeout = timeout

	// Create Vault client
	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)

	// Ensure paths are properly formatted
	mountPath = strings.Trim(mountPath, "/")
	if mountPath == "" {
		mountPath = "secret"
	}
	dataPath = strings.Trim(dataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

// secretPath builds a KV v2 path, e.g. secret/data/watchstate/<key>.
func (b *VaultBackend) secretPath(kind, key string) string {
	parts := []string{b.mountPath, kind}
	if b.dataPath != "" {
		parts = append(parts, b.dataPath)
	}
	if key != "" {
		parts = append(parts, url.PathEscape(key))
	}
	return strings.Join(parts, "/")
}

func (b *VaultBackend) Get(ctx context.Context, key string) ([]byte, error) {
	path := b.secretPath("data", key)

	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		b.log.Error("Failed to read from Vault",
			slog.String("path", path),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	// Missing and soft-deleted secrets both come back without data
	if secret == nil || secret.Data == nil || secret.Data["data"] == nil {
		return nil, interfaces.ErrKeyNotFound
	}

	// Extract data from the response (KV v2 format)
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response for %s", path)
	}
	value, ok := data["value"].(string)
	if !ok {
		return nil, fmt.Errorf("value key not found in Vault data for %s", path)
	}
	return []byte(value), nil
}

func (b *VaultBackend) Set(ctx context.Context, key string, value []byte) error {
	path := b.secretPath("data", key)

	// Prepare data for Vault (KV v2 format)
	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"value": string(value),
		},
	}

	if _, err := b.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		b.log.Error("Failed to write to Vault",
			slog.String("path", path),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

// Delete removes the secret with all its versions.
func (b *VaultBackend) Delete(ctx context.Context, key string) error {
	path := b.secretPath("metadata", key)
	if _, err := b.client.Logical().DeleteWithContext(ctx, path); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

func (b *VaultBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	path := b.secretPath("metadata", "")

	secret, err := b.client.Logical().ListWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	keys := []string{}
	if secret == nil || secret.Data == nil {
		return keys, nil
	}
	raw, _ := secret.Data["keys"].([]interface{})
	for _, item := range raw {
		name, ok := item.(string)
		if !ok || strings.HasSuffix(name, "/") {
			continue
		}
		key, err := url.PathUnescape(name)
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Available checks if the Vault backend is accessible.
// It uses the health endpoint to verify that Vault is initialized and unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	health, err := b.client.Sys().HealthWithContext(ctx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}

	// Check if Vault is initialized and unsealed
	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

func (b *VaultBackend) Close() error { return nil }
