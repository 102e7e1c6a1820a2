package db

import (
	"context"
	"io"
	"log/slog"

	"github.com/ruteri/watchstate/interfaces"
	"github.com/ruteri/watchstate/storage"
)

// Manager is the data access entry point for the rest of the application.
// It holds one interfaces.Storage for its whole life and derives composite
// keys for play records and favorites.
//
// Errors returned by the backend during a call are passed through unchanged.
// Only backend selection degrades silently, see storage.StorageFactory.
type Manager struct {
	storage interfaces.Storage
}

// New returns a Manager on the process-wide backend, selecting it from cfg if
// no Manager has done so yet.
func New(cfg storage.Config, log *slog.Logger) *Manager {
	return &Manager{storage: storage.Shared(cfg, log)}
}

// NewWithStorage returns a Manager on an explicitly provided backend.
func NewWithStorage(s interfaces.Storage) *Manager {
	return &Manager{storage: s}
}

// StorageName identifies the active backend, "empty" when running without persistence.
func (m *Manager) StorageName() string {
	return m.storage.Name()
}

// Close releases the backend's connections. The empty backend holds none.
func (m *Manager) Close() error {
	if c, ok := m.storage.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (m *Manager) SavePlayRecord(ctx context.Context, userName, source, id string, record interfaces.PlayRecord) error {
	return m.storage.SetPlayRecord(ctx, userName, storage.DeriveKey(source, id), record)
}

// GetPlayRecord returns nil when the user has no record for the item.
func (m *Manager) GetPlayRecord(ctx context.Context, userName, source, id string) (*interfaces.PlayRecord, error) {
	return m.storage.GetPlayRecord(ctx, userName, storage.DeriveKey(source, id))
}

// GetAllPlayRecords returns the user's records keyed by composite key.
func (m *Manager) GetAllPlayRecords(ctx context.Context, userName string) (map[string]interfaces.PlayRecord, error) {
	records, err := m.storage.GetAllPlayRecords(ctx, userName)
	if err != nil {
		return nil, err
	}
	return nonNilMap(records), nil
}

func (m *Manager) DeletePlayRecord(ctx context.Context, userName, source, id string) error {
	return m.storage.DeletePlayRecord(ctx, userName, storage.DeriveKey(source, id))
}

func (m *Manager) SaveFavorite(ctx context.Context, userName, source, id string, favorite interfaces.Favorite) error {
	return m.storage.SetFavorite(ctx, userName, storage.DeriveKey(source, id), favorite)
}

func (m *Manager) GetFavorite(ctx context.Context, userName, source, id string) (*interfaces.Favorite, error) {
	return m.storage.GetFavorite(ctx, userName, storage.DeriveKey(source, id))
}

func (m *Manager) GetAllFavorites(ctx context.Context, userName string) (map[string]interfaces.Favorite, error) {
	favorites, err := m.storage.GetAllFavorites(ctx, userName)
	if err != nil {
		return nil, err
	}
	return nonNilMap(favorites), nil
}

func (m *Manager) DeleteFavorite(ctx context.Context, userName, source, id string) error {
	return m.storage.DeleteFavorite(ctx, userName, storage.DeriveKey(source, id))
}

// IsFavorited reports whether GetFavorite finds the item. It has no backend
// call of its own, so the two can never disagree.
func (m *Manager) IsFavorited(ctx context.Context, userName, source, id string) (bool, error) {
	favorite, err := m.GetFavorite(ctx, userName, source, id)
	if err != nil {
		return false, err
	}
	return favorite != nil, nil
}

func (m *Manager) RegisterUser(ctx context.Context, userName, password string) error {
	return m.storage.RegisterUser(ctx, userName, password)
}

func (m *Manager) VerifyUser(ctx context.Context, userName, password string) (bool, error) {
	return m.storage.VerifyUser(ctx, userName, password)
}

func (m *Manager) CheckUserExist(ctx context.Context, userName string) (bool, error) {
	return m.storage.CheckUserExist(ctx, userName)
}

func (m *Manager) ChangePassword(ctx context.Context, userName, newPassword string) error {
	return m.storage.ChangePassword(ctx, userName, newPassword)
}

// DeleteUser removes the user and everything the user owns.
func (m *Manager) DeleteUser(ctx context.Context, userName string) error {
	return m.storage.DeleteUser(ctx, userName)
}

func (m *Manager) GetAllUsers(ctx context.Context) ([]string, error) {
	users, err := m.storage.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(users), nil
}

// GetSearchHistory returns keywords most-recent-first.
func (m *Manager) GetSearchHistory(ctx context.Context, userName string) ([]string, error) {
	history, err := m.storage.GetSearchHistory(ctx, userName)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(history), nil
}

func (m *Manager) AddSearchHistory(ctx context.Context, userName, keyword string) error {
	return m.storage.AddSearchHistory(ctx, userName, keyword)
}

// DeleteSearchHistory removes keyword, or the whole history if keyword is empty.
func (m *Manager) DeleteSearchHistory(ctx context.Context, userName, keyword string) error {
	return m.storage.DeleteSearchHistory(ctx, userName, keyword)
}

func (m *Manager) GetSkipConfig(ctx context.Context, userName, source, id string) (*interfaces.SkipConfig, error) {
	return m.storage.GetSkipConfig(ctx, userName, source, id)
}

func (m *Manager) SetSkipConfig(ctx context.Context, userName, source, id string, config interfaces.SkipConfig) error {
	return m.storage.SetSkipConfig(ctx, userName, source, id, config)
}

func (m *Manager) DeleteSkipConfig(ctx context.Context, userName, source, id string) error {
	return m.storage.DeleteSkipConfig(ctx, userName, source, id)
}

func (m *Manager) GetAllSkipConfigs(ctx context.Context, userName string) (map[string]interfaces.SkipConfig, error) {
	configs, err := m.storage.GetAllSkipConfigs(ctx, userName)
	if err != nil {
		return nil, err
	}
	return nonNilMap(configs), nil
}

// GetAdminConfig returns nil when no configuration was ever saved.
func (m *Manager) GetAdminConfig(ctx context.Context) (*interfaces.AdminConfig, error) {
	return m.storage.GetAdminConfig(ctx)
}

func (m *Manager) SaveAdminConfig(ctx context.Context, config interfaces.AdminConfig) error {
	return m.storage.SetAdminConfig(ctx, config)
}

// ClearAllData removes every user's data and the admin configuration.
func (m *Manager) ClearAllData(ctx context.Context) error {
	return m.storage.ClearAllData(ctx)
}

func nonNilMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
