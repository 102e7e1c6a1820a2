package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ruteri/watchstate/interfaces"
)

// SearchHistoryLimit is the maximum number of keywords kept per user.
const SearchHistoryLimit = 20

const (
	userKeyPrefix  = "u:"
	adminConfigKey = "admin:config"
)

var _ interfaces.Storage = (*KVStorage)(nil)

// KVStorage implements interfaces.Storage on top of any KVStore driver.
// Entities are JSON encoded under per-user key prefixes such as "u:<name>:pr:".
type KVStorage struct {
	kv     interfaces.KVStore
	prefix string
	log    *slog.Logger

	// serializes read-modify-write on drivers without interfaces.AtomicUpdater
	updateMu sync.Mutex
}

// NewKVStorage creates a storage on top of kv. Every key is prefixed with
// namespace, which lets several deployments share one store.
func NewKVStorage(kv interfaces.KVStore, namespace string, log *slog.Logger) *KVStorage {
	if log == nil {
		log = slog.Default()
	}
	return &KVStorage{
		kv:     kv,
		prefix: namespace,
		log:    log,
	}
}

// Name returns the name of the underlying driver.
func (s *KVStorage) Name() string {
	return s.kv.Name()
}

// Driver returns the underlying KVStore.
func (s *KVStorage) Driver() interfaces.KVStore {
	return s.kv
}

// Close closes the underlying driver.
func (s *KVStorage) Close() error {
	return s.kv.Close()
}

func (s *KVStorage) userPrefix(userName string) string {
	return s.prefix + userKeyPrefix + escapeSegment(userName) + ":"
}

func (s *KVStorage) passwordKey(userName string) string {
	return s.userPrefix(userName) + "pwd"
}

func (s *KVStorage) playRecordPrefix(userName string) string {
	return s.userPrefix(userName) + "pr:"
}

func (s *KVStorage) favoritePrefix(userName string) string {
	return s.userPrefix(userName) + "fav:"
}

func (s *KVStorage) skipConfigPrefix(userName string) string {
	return s.userPrefix(userName) + "skip:"
}

func (s *KVStorage) searchHistoryKey(userName string) string {
	return s.userPrefix(userName) + "sh"
}

// getJSON decodes the value under key into dest. found is false when the key does not exist.
func (s *KVStorage) getJSON(ctx context.Context, key string, dest any) (found bool, err error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *KVStorage) setJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, data)
}

// getAllJSON loads every value under prefix, keyed by the remainder of the key.
func getAllJSON[T any](ctx context.Context, s *KVStorage, prefix string) (map[string]T, error) {
	keys, err := s.kv.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	result := make(map[string]T, len(keys))
	for _, key := range keys {
		var value T
		found, err := s.getJSON(ctx, key, &value)
		if err != nil {
			return nil, err
		}
		if !found {
			// deleted between Keys and Get
			continue
		}
		result[strings.TrimPrefix(key, prefix)] = value
	}
	return result, nil
}

func getOneJSON[T any](ctx context.Context, s *KVStorage, key string) (*T, error) {
	var value T
	found, err := s.getJSON(ctx, key, &value)
	if err != nil || !found {
		return nil, err
	}
	return &value, nil
}

func (s *KVStorage) GetPlayRecord(ctx context.Context, userName, key string) (*interfaces.PlayRecord, error) {
	return getOneJSON[interfaces.PlayRecord](ctx, s, s.playRecordPrefix(userName)+key)
}

func (s *KVStorage) SetPlayRecord(ctx context.Context, userName, key string, record interfaces.PlayRecord) error {
	return s.setJSON(ctx, s.playRecordPrefix(userName)+key, record)
}

func (s *KVStorage) GetAllPlayRecords(ctx context.Context, userName string) (map[string]interfaces.PlayRecord, error) {
	return getAllJSON[interfaces.PlayRecord](ctx, s, s.playRecordPrefix(userName))
}

func (s *KVStorage) DeletePlayRecord(ctx context.Context, userName, key string) error {
	return s.kv.Delete(ctx, s.playRecordPrefix(userName)+key)
}

func (s *KVStorage) GetFavorite(ctx context.Context, userName, key string) (*interfaces.Favorite, error) {
	return getOneJSON[interfaces.Favorite](ctx, s, s.favoritePrefix(userName)+key)
}

func (s *KVStorage) SetFavorite(ctx context.Context, userName, key string, favorite interfaces.Favorite) error {
	return s.setJSON(ctx, s.favoritePrefix(userName)+key, favorite)
}

func (s *KVStorage) GetAllFavorites(ctx context.Context, userName string) (map[string]interfaces.Favorite, error) {
	return getAllJSON[interfaces.Favorite](ctx, s, s.favoritePrefix(userName))
}

func (s *KVStorage) DeleteFavorite(ctx context.Context, userName, key string) error {
	return s.kv.Delete(ctx, s.favoritePrefix(userName)+key)
}

func (s *KVStorage) RegisterUser(ctx context.Context, userName, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.passwordKey(userName), []byte(hash))
}

func (s *KVStorage) VerifyUser(ctx context.Context, userName, password string) (bool, error) {
	stored, err := s.kv.Get(ctx, s.passwordKey(userName))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return checkPassword(string(stored), password), nil
}

func (s *KVStorage) CheckUserExist(ctx context.Context, userName string) (bool, error) {
	_, err := s.kv.Get(ctx, s.passwordKey(userName))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ChangePassword replaces the credential of an existing user. Unknown users,
// including one deleted while the call is in flight, are left alone.
func (s *KVStorage) ChangePassword(ctx context.Context, userName, newPassword string) error {
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.update(ctx, s.passwordKey(userName), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, interfaces.ErrNoUpdate
		}
		return []byte(hash), nil
	})
}

// DeleteUser removes every key owned by the user. The cascade is not atomic:
// a failure part way leaves the remaining keys in place, and the call can be retried.
func (s *KVStorage) DeleteUser(ctx context.Context, userName string) error {
	start := time.Now()
	unlock := s.lockUpdates()
	defer unlock()

	keys, err := s.kv.Keys(ctx, s.userPrefix(userName))
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}

	s.log.Debug("Deleted user data",
		slog.String("backend_name", s.kv.Name()),
		slog.Int("keys", len(keys)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (s *KVStorage) GetAllUsers(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, s.prefix+userKeyPrefix)
	if err != nil {
		return nil, err
	}

	users := []string{}
	for _, key := range keys {
		rest := strings.TrimPrefix(key, s.prefix+userKeyPrefix)
		name, field, found := strings.Cut(rest, ":")
		if !found || field != "pwd" {
			continue
		}
		users = append(users, unescapeSegment(name))
	}
	sort.Strings(users)
	return users, nil
}

func (s *KVStorage) GetSearchHistory(ctx context.Context, userName string) ([]string, error) {
	history := []string{}
	if _, err := s.getJSON(ctx, s.searchHistoryKey(userName), &history); err != nil {
		return nil, err
	}
	return history, nil
}

// updateSearchHistory applies change to the stored history in one atomic
// update. change reports false when the history is left as it was.
func (s *KVStorage) updateSearchHistory(ctx context.Context, userName string, change func(history []string) ([]string, bool)) error {
	key := s.searchHistoryKey(userName)
	return s.update(ctx, key, func(current []byte) ([]byte, error) {
		history := []string{}
		if current != nil {
			if err := json.Unmarshal(current, &history); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", key, err)
			}
		}
		updated, changed := change(history)
		if !changed {
			return nil, interfaces.ErrNoUpdate
		}
		return json.Marshal(updated)
	})
}

// AddSearchHistory moves keyword to the front of the history, dropping older
// duplicates and trimming to SearchHistoryLimit.
func (s *KVStorage) AddSearchHistory(ctx context.Context, userName, keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil
	}

	return s.updateSearchHistory(ctx, userName, func(history []string) ([]string, bool) {
		updated := make([]string, 0, len(history)+1)
		updated = append(updated, keyword)
		for _, k := range history {
			if k != keyword {
				updated = append(updated, k)
			}
		}
		if len(updated) > SearchHistoryLimit {
			updated = updated[:SearchHistoryLimit]
		}
		return updated, true
	})
}

// DeleteSearchHistory removes keyword, matched the way AddSearchHistory stored
// it. An empty keyword clears the history; one of only whitespace is a no-op.
func (s *KVStorage) DeleteSearchHistory(ctx context.Context, userName, keyword string) error {
	if keyword == "" {
		unlock := s.lockUpdates()
		defer unlock()
		return s.kv.Delete(ctx, s.searchHistoryKey(userName))
	}
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil
	}

	return s.updateSearchHistory(ctx, userName, func(history []string) ([]string, bool) {
		updated := make([]string, 0, len(history))
		for _, k := range history {
			if k != keyword {
				updated = append(updated, k)
			}
		}
		return updated, len(updated) != len(history)
	})
}

func (s *KVStorage) GetSkipConfig(ctx context.Context, userName, source, id string) (*interfaces.SkipConfig, error) {
	return getOneJSON[interfaces.SkipConfig](ctx, s, s.skipConfigPrefix(userName)+DeriveKey(source, id))
}

func (s *KVStorage) SetSkipConfig(ctx context.Context, userName, source, id string, config interfaces.SkipConfig) error {
	return s.setJSON(ctx, s.skipConfigPrefix(userName)+DeriveKey(source, id), config)
}

func (s *KVStorage) DeleteSkipConfig(ctx context.Context, userName, source, id string) error {
	return s.kv.Delete(ctx, s.skipConfigPrefix(userName)+DeriveKey(source, id))
}

func (s *KVStorage) GetAllSkipConfigs(ctx context.Context, userName string) (map[string]interfaces.SkipConfig, error) {
	return getAllJSON[interfaces.SkipConfig](ctx, s, s.skipConfigPrefix(userName))
}

func (s *KVStorage) GetAdminConfig(ctx context.Context) (*interfaces.AdminConfig, error) {
	return getOneJSON[interfaces.AdminConfig](ctx, s, s.prefix+adminConfigKey)
}

func (s *KVStorage) SetAdminConfig(ctx context.Context, config interfaces.AdminConfig) error {
	return s.setJSON(ctx, s.prefix+adminConfigKey, config)
}

// ClearAllData removes every user's data and the admin config. Keys outside
// the storage layout, or outside the namespace, are not touched.
func (s *KVStorage) ClearAllData(ctx context.Context) error {
	start := time.Now()
	unlock := s.lockUpdates()
	defer unlock()

	keys, err := s.kv.Keys(ctx, s.prefix+userKeyPrefix)
	if err != nil {
		return err
	}
	keys = append(keys, s.prefix+adminConfigKey)

	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}

	s.log.Info("Cleared all data",
		slog.String("backend_name", s.kv.Name()),
		slog.Int("keys", len(keys)),
		slog.Duration("duration", time.Since(start)))
	return nil
}
