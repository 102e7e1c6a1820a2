package storage

import (
	"context"
	"log/slog"

	"github.com/ruteri/watchstate/interfaces"
	"go.uber.org/atomic"
)

var _ interfaces.Storage = (*EmptyStorage)(nil)

// emptyStorageWarned makes the degraded-mode warning a once-per-process event.
var emptyStorageWarned atomic.Bool

// EmptyStorage is the fallback used when no backend is configured or the
// configured one could not be constructed. Reads return nothing, boolean
// checks return false and writes are silently dropped. No method ever fails.
//
// Users of a deployment running on EmptyStorage see their data "saved" but
// never read back; the only trace is the warning logged on construction.
type EmptyStorage struct{}

// NewEmptyStorage creates the fallback backend. The first call in a process
// logs a warning with reason; later calls are silent.
func NewEmptyStorage(log *slog.Logger, reason string) *EmptyStorage {
	if emptyStorageWarned.CompareAndSwap(false, true) {
		if log == nil {
			log = slog.Default()
		}
		log.Warn("Storage running without a backend, data will not be persisted",
			slog.String("reason", reason))
	}
	return &EmptyStorage{}
}

func (EmptyStorage) Name() string { return "empty" }

func (EmptyStorage) GetPlayRecord(context.Context, string, string) (*interfaces.PlayRecord, error) {
	return nil, nil
}

func (EmptyStorage) SetPlayRecord(context.Context, string, string, interfaces.PlayRecord) error {
	return nil
}

func (EmptyStorage) GetAllPlayRecords(context.Context, string) (map[string]interfaces.PlayRecord, error) {
	return map[string]interfaces.PlayRecord{}, nil
}

func (EmptyStorage) DeletePlayRecord(context.Context, string, string) error { return nil }

func (EmptyStorage) GetFavorite(context.Context, string, string) (*interfaces.Favorite, error) {
	return nil, nil
}

func (EmptyStorage) SetFavorite(context.Context, string, string, interfaces.Favorite) error {
	return nil
}

func (EmptyStorage) GetAllFavorites(context.Context, string) (map[string]interfaces.Favorite, error) {
	return map[string]interfaces.Favorite{}, nil
}

func (EmptyStorage) DeleteFavorite(context.Context, string, string) error { return nil }

func (EmptyStorage) RegisterUser(context.Context, string, string) error { return nil }

func (EmptyStorage) VerifyUser(context.Context, string, string) (bool, error) { return false, nil }

func (EmptyStorage) CheckUserExist(context.Context, string) (bool, error) { return false, nil }

func (EmptyStorage) ChangePassword(context.Context, string, string) error { return nil }

func (EmptyStorage) DeleteUser(context.Context, string) error { return nil }

func (EmptyStorage) GetAllUsers(context.Context) ([]string, error) { return []string{}, nil }

func (EmptyStorage) GetSearchHistory(context.Context, string) ([]string, error) {
	return []string{}, nil
}

func (EmptyStorage) AddSearchHistory(context.Context, string, string) error { return nil }

func (EmptyStorage) DeleteSearchHistory(context.Context, string, string) error { return nil }

func (EmptyStorage) GetSkipConfig(context.Context, string, string, string) (*interfaces.SkipConfig, error) {
	return nil, nil
}

func (EmptyStorage) SetSkipConfig(context.Context, string, string, string, interfaces.SkipConfig) error {
	return nil
}

func (EmptyStorage) DeleteSkipConfig(context.Context, string, string, string) error { return nil }

func (EmptyStorage) GetAllSkipConfigs(context.Context, string) (map[string]interfaces.SkipConfig, error) {
	return map[string]interfaces.SkipConfig{}, nil
}

func (EmptyStorage) GetAdminConfig(context.Context) (*interfaces.AdminConfig, error) { return nil, nil }

func (EmptyStorage) SetAdminConfig(context.Context, interfaces.AdminConfig) error { return nil }

func (EmptyStorage) ClearAllData(context.Context) error { return nil }
