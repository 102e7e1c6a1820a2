package storage

import (
	"context"

	"github.com/ruteri/watchstate/interfaces"
	"github.com/stretchr/testify/mock"
)

var _ interfaces.Storage = (*MockStorage)(nil)

// MockStorage mocks the Storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockStorage) GetPlayRecord(ctx context.Context, userName, key string) (*interfaces.PlayRecord, error) {
	args := m.Called(ctx, userName, key)
	record, _ := args.Get(0).(*interfaces.PlayRecord)
	return record, args.Error(1)
}

func (m *MockStorage) SetPlayRecord(ctx context.Context, userName, key string, record interfaces.PlayRecord) error {
	args := m.Called(ctx, userName, key, record)
	return args.Error(0)
}

func (m *MockStorage) GetAllPlayRecords(ctx context.Context, userName string) (map[string]interfaces.PlayRecord, error) {
	args := m.Called(ctx, userName)
	records, _ := args.Get(0).(map[string]interfaces.PlayRecord)
	return records, args.Error(1)
}

func (m *MockStorage) DeletePlayRecord(ctx context.Context, userName, key string) error {
	args := m.Called(ctx, userName, key)
	return args.Error(0)
}

func (m *MockStorage) GetFavorite(ctx context.Context, userName, key string) (*interfaces.Favorite, error) {
	args := m.Called(ctx, userName, key)
	favorite, _ := args.Get(0).(*interfaces.Favorite)
	return favorite, args.Error(1)
}

func (m *MockStorage) SetFavorite(ctx context.Context, userName, key string, favorite interfaces.Favorite) error {
	args := m.Called(ctx, userName, key, favorite)
	return args.Error(0)
}

func (m *MockStorage) GetAllFavorites(ctx context.Context, userName string) (map[string]interfaces.Favorite, error) {
	args := m.Called(ctx, userName)
	favorites, _ := args.Get(0).(map[string]interfaces.Favorite)
	return favorites, args.Error(1)
}

func (m *MockStorage) DeleteFavorite(ctx context.Context, userName, key string) error {
	args := m.Called(ctx, userName, key)
	return args.Error(0)
}

func (m *MockStorage) RegisterUser(ctx context.Context, userName, password string) error {
	args := m.Called(ctx, userName, password)
	return args.Error(0)
}

func (m *MockStorage) VerifyUser(ctx context.Context, userName, password string) (bool, error) {
	args := m.Called(ctx, userName, password)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) CheckUserExist(ctx context.Context, userName string) (bool, error) {
	args := m.Called(ctx, userName)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) ChangePassword(ctx context.Context, userName, newPassword string) error {
	args := m.Called(ctx, userName, newPassword)
	return args.Error(0)
}

func (m *MockStorage) DeleteUser(ctx context.Context, userName string) error {
	args := m.Called(ctx, userName)
	return args.Error(0)
}

func (m *MockStorage) GetAllUsers(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]string)
	return users, args.Error(1)
}

func (m *MockStorage) GetSearchHistory(ctx context.Context, userName string) ([]string, error) {
	args := m.Called(ctx, userName)
	history, _ := args.Get(0).([]string)
	return history, args.Error(1)
}

func (m *MockStorage) AddSearchHistory(ctx context.Context, userName, keyword string) error {
	args := m.Called(ctx, userName, keyword)
	return args.Error(0)
}

func (m *MockStorage) DeleteSearchHistory(ctx context.Context, userName, keyword string) error {
	args := m.Called(ctx, userName, keyword)
	return args.Error(0)
}

func (m *MockStorage) GetSkipConfig(ctx context.Context, userName, source, id string) (*interfaces.SkipConfig, error) {
	args := m.Called(ctx, userName, source, id)
	config, _ := args.Get(0).(*interfaces.SkipConfig)
	return config, args.Error(1)
}

func (m *MockStorage) SetSkipConfig(ctx context.Context, userName, source, id string, config interfaces.SkipConfig) error {
	args := m.Called(ctx, userName, source, id, config)
	return args.Error(0)
}

func (m *MockStorage) DeleteSkipConfig(ctx context.Context, userName, source, id string) error {
	args := m.Called(ctx, userName, source, id)
	return args.Error(0)
}

func (m *MockStorage) GetAllSkipConfigs(ctx context.Context, userName string) (map[string]interfaces.SkipConfig, error) {
	args := m.Called(ctx, userName)
	configs, _ := args.Get(0).(map[string]interfaces.SkipConfig)
	return configs, args.Error(1)
}

func (m *MockStorage) GetAdminConfig(ctx context.Context) (*interfaces.AdminConfig, error) {
	args := m.Called(ctx)
	config, _ := args.Get(0).(*interfaces.AdminConfig)
	return config, args.Error(1)
}

func (m *MockStorage) SetAdminConfig(ctx context.Context, config interfaces.AdminConfig) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

func (m *MockStorage) ClearAllData(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
