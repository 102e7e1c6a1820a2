package db

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ruteri/watchstate/interfaces"
	"github.com/ruteri/watchstate/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMemoryManager() *Manager {
	return NewWithStorage(storage.NewKVStorage(storage.NewMemoryBackend(), "", testLogger()))
}

func TestManager_DerivesCompositeKeys(t *testing.T) {
	ctx := context.Background()
	m := new(storage.MockStorage)
	mgr := NewWithStorage(m)

	record := interfaces.PlayRecord{Title: "Show", Index: 3}
	m.On("SetPlayRecord", ctx, "alice", "src1+ep1", record).Return(nil)
	m.On("GetPlayRecord", ctx, "alice", "src1+ep1").Return(&record, nil)
	m.On("DeletePlayRecord", ctx, "alice", "src1+ep1").Return(nil)
	m.On("SetFavorite", ctx, "alice", "src%2B1+ep1", mock.Anything).Return(nil)
	m.On("DeleteFavorite", ctx, "alice", "src%2B1+ep1").Return(nil)

	require.NoError(t, mgr.SavePlayRecord(ctx, "alice", "src1", "ep1", record))
	got, err := mgr.GetPlayRecord(ctx, "alice", "src1", "ep1")
	require.NoError(t, err)
	assert.Equal(t, &record, got)
	require.NoError(t, mgr.DeletePlayRecord(ctx, "alice", "src1", "ep1"))

	// a separator inside the source is escaped
	require.NoError(t, mgr.SaveFavorite(ctx, "alice", "src+1", "ep1", interfaces.Favorite{}))
	require.NoError(t, mgr.DeleteFavorite(ctx, "alice", "src+1", "ep1"))

	m.AssertExpectations(t)
}

func TestManager_SkipConfigKeepsSourceAndID(t *testing.T) {
	ctx := context.Background()
	m := new(storage.MockStorage)
	mgr := NewWithStorage(m)

	config := interfaces.SkipConfig{Enable: true, IntroTime: 90, OutroTime: 60}
	m.On("SetSkipConfig", ctx, "alice", "src1", "ep1", config).Return(nil)
	m.On("GetSkipConfig", ctx, "alice", "src1", "ep1").Return(&config, nil)
	m.On("DeleteSkipConfig", ctx, "alice", "src1", "ep1").Return(nil)

	require.NoError(t, mgr.SetSkipConfig(ctx, "alice", "src1", "ep1", config))
	got, err := mgr.GetSkipConfig(ctx, "alice", "src1", "ep1")
	require.NoError(t, err)
	assert.Equal(t, config, *got)
	require.NoError(t, mgr.DeleteSkipConfig(ctx, "alice", "src1", "ep1"))

	m.AssertExpectations(t)
}

func TestManager_IsFavoritedComposesGetFavorite(t *testing.T) {
	ctx := context.Background()
	m := new(storage.MockStorage)
	mgr := NewWithStorage(m)

	m.On("GetFavorite", ctx, "alice", "src1+ep1").Return(&interfaces.Favorite{Title: "Show"}, nil)
	m.On("GetFavorite", ctx, "alice", "src1+ep2").Return(nil, nil)

	favorited, err := mgr.IsFavorited(ctx, "alice", "src1", "ep1")
	require.NoError(t, err)
	assert.True(t, favorited)

	favorited, err = mgr.IsFavorited(ctx, "alice", "src1", "ep2")
	require.NoError(t, err)
	assert.False(t, favorited)

	m.AssertNumberOfCalls(t, "GetFavorite", 2)
}

func TestManager_IsFavoritedMatchesGetFavorite(t *testing.T) {
	ctx := context.Background()
	mgr := newMemoryManager()

	check := func() {
		favorite, err := mgr.GetFavorite(ctx, "alice", "src1", "ep1")
		require.NoError(t, err)
		favorited, err := mgr.IsFavorited(ctx, "alice", "src1", "ep1")
		require.NoError(t, err)
		assert.Equal(t, favorite != nil, favorited)
	}

	check()
	require.NoError(t, mgr.SaveFavorite(ctx, "alice", "src1", "ep1", interfaces.Favorite{Title: "Show"}))
	check()
	require.NoError(t, mgr.SaveFavorite(ctx, "alice", "src1", "ep1", interfaces.Favorite{Title: "Show"}))
	check()
	require.NoError(t, mgr.DeleteFavorite(ctx, "alice", "src1", "ep1"))
	check()
	require.NoError(t, mgr.DeleteFavorite(ctx, "alice", "src1", "ep1"))
	check()
}

func TestManager_PropagatesCallErrors(t *testing.T) {
	ctx := context.Background()
	backendErr := errors.New("connection reset")
	m := new(storage.MockStorage)
	mgr := NewWithStorage(m)

	m.On("SetPlayRecord", ctx, "alice", "src1+ep1", mock.Anything).Return(backendErr)
	m.On("GetAllFavorites", ctx, "alice").Return(nil, backendErr)
	m.On("GetFavorite", ctx, "alice", "src1+ep1").Return(nil, backendErr)
	m.On("GetAllUsers", ctx).Return(nil, backendErr)
	m.On("ClearAllData", ctx).Return(backendErr)

	err := mgr.SavePlayRecord(ctx, "alice", "src1", "ep1", interfaces.PlayRecord{})
	assert.ErrorIs(t, err, backendErr)

	favorites, err := mgr.GetAllFavorites(ctx, "alice")
	assert.ErrorIs(t, err, backendErr)
	assert.Nil(t, favorites)

	favorited, err := mgr.IsFavorited(ctx, "alice", "src1", "ep1")
	assert.ErrorIs(t, err, backendErr)
	assert.False(t, favorited)

	_, err = mgr.GetAllUsers(ctx)
	assert.ErrorIs(t, err, backendErr)

	assert.ErrorIs(t, mgr.ClearAllData(ctx), backendErr)
}

func TestManager_NormalizesNilCollections(t *testing.T) {
	ctx := context.Background()
	m := new(storage.MockStorage)
	mgr := NewWithStorage(m)

	m.On("GetAllPlayRecords", ctx, "alice").Return(nil, nil)
	m.On("GetAllFavorites", ctx, "alice").Return(nil, nil)
	m.On("GetAllSkipConfigs", ctx, "alice").Return(nil, nil)
	m.On("GetSearchHistory", ctx, "alice").Return(nil, nil)
	m.On("GetAllUsers", ctx).Return(nil, nil)

	records, err := mgr.GetAllPlayRecords(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	favorites, err := mgr.GetAllFavorites(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, favorites)

	configs, err := mgr.GetAllSkipConfigs(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, configs)

	history, err := mgr.GetSearchHistory(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, history)

	users, err := mgr.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.NotNil(t, users)
}

func TestManager_EmptyBackend(t *testing.T) {
	ctx := context.Background()
	mgr := NewWithStorage(storage.NewEmptyStorage(testLogger(), "test"))
	assert.Equal(t, "empty", mgr.StorageName())

	require.NoError(t, mgr.SavePlayRecord(ctx, "alice", "src1", "ep1", interfaces.PlayRecord{Title: "Show"}))
	record, err := mgr.GetPlayRecord(ctx, "alice", "src1", "ep1")
	require.NoError(t, err)
	assert.Nil(t, record)

	records, err := mgr.GetAllPlayRecords(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, mgr.SaveFavorite(ctx, "alice", "src1", "ep1", interfaces.Favorite{}))
	favorited, err := mgr.IsFavorited(ctx, "alice", "src1", "ep1")
	require.NoError(t, err)
	assert.False(t, favorited)

	require.NoError(t, mgr.RegisterUser(ctx, "alice", "p1"))
	ok, err := mgr.VerifyUser(ctx, "alice", "p1")
	require.NoError(t, err)
	assert.False(t, ok)
	exists, err := mgr.CheckUserExist(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mgr.ChangePassword(ctx, "alice", "p2"))
	require.NoError(t, mgr.DeleteUser(ctx, "alice"))

	users, err := mgr.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, mgr.AddSearchHistory(ctx, "alice", "kw"))
	history, err := mgr.GetSearchHistory(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, history)
	require.NoError(t, mgr.DeleteSearchHistory(ctx, "alice", ""))

	require.NoError(t, mgr.SetSkipConfig(ctx, "alice", "src1", "ep1", interfaces.SkipConfig{Enable: true}))
	skip, err := mgr.GetSkipConfig(ctx, "alice", "src1", "ep1")
	require.NoError(t, err)
	assert.Nil(t, skip)

	require.NoError(t, mgr.SaveAdminConfig(ctx, interfaces.AdminConfig{ConfigFile: "{}"}))
	adminConfig, err := mgr.GetAdminConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, adminConfig)

	require.NoError(t, mgr.ClearAllData(ctx))
}

func TestManager_Scenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("password change", func(t *testing.T) {
		mgr := newMemoryManager()
		require.NoError(t, mgr.RegisterUser(ctx, "alice", "p1"))

		ok, err := mgr.VerifyUser(ctx, "alice", "p1")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = mgr.VerifyUser(ctx, "alice", "wrong")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, mgr.ChangePassword(ctx, "alice", "p2"))
		ok, err = mgr.VerifyUser(ctx, "alice", "p1")
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = mgr.VerifyUser(ctx, "alice", "p2")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("play record round trip", func(t *testing.T) {
		mgr := newMemoryManager()
		record := interfaces.PlayRecord{
			Title:         "Show",
			SourceName:    "Source One",
			Cover:         "https://img.example/cover.jpg",
			Year:          "2024",
			Index:         2,
			TotalEpisodes: 12,
			PlayTime:      300,
			TotalTime:     1400,
			SaveTime:      1717000000000,
			SearchTitle:   "show",
		}
		require.NoError(t, mgr.SavePlayRecord(ctx, "alice", "src1", "ep1", record))

		got, err := mgr.GetPlayRecord(ctx, "alice", "src1", "ep1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, record, *got)

		other, err := mgr.GetPlayRecord(ctx, "alice", "src1", "ep2")
		require.NoError(t, err)
		assert.Nil(t, other)
	})

	t.Run("same id under two sources", func(t *testing.T) {
		mgr := newMemoryManager()
		require.NoError(t, mgr.SaveFavorite(ctx, "alice", "src1", "ep1", interfaces.Favorite{Title: "One"}))
		require.NoError(t, mgr.SaveFavorite(ctx, "alice", "src2", "ep1", interfaces.Favorite{Title: "Two"}))

		favorites, err := mgr.GetAllFavorites(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, favorites, 2)
		assert.Equal(t, "One", favorites["src1+ep1"].Title)
		assert.Equal(t, "Two", favorites["src2+ep1"].Title)
	})

	t.Run("delete user cascades", func(t *testing.T) {
		mgr := newMemoryManager()
		require.NoError(t, mgr.RegisterUser(ctx, "alice", "p1"))
		require.NoError(t, mgr.RegisterUser(ctx, "bob", "p1"))
		for _, user := range []string{"alice", "bob"} {
			require.NoError(t, mgr.SavePlayRecord(ctx, user, "src1", "ep1", interfaces.PlayRecord{Title: "Show"}))
			require.NoError(t, mgr.SaveFavorite(ctx, user, "src1", "ep1", interfaces.Favorite{Title: "Show"}))
			require.NoError(t, mgr.SetSkipConfig(ctx, user, "src1", "ep1", interfaces.SkipConfig{Enable: true}))
			require.NoError(t, mgr.AddSearchHistory(ctx, user, "show"))
		}

		require.NoError(t, mgr.DeleteUser(ctx, "alice"))

		records, err := mgr.GetAllPlayRecords(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, records)
		favorites, err := mgr.GetAllFavorites(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, favorites)
		configs, err := mgr.GetAllSkipConfigs(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, configs)
		history, err := mgr.GetSearchHistory(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, history)

		users, err := mgr.GetAllUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, users)
		records, err = mgr.GetAllPlayRecords(ctx, "bob")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}

func TestManager_FallbackDropsWrites(t *testing.T) {
	cfg := storage.DefaultConfig()
	cfg.Type = "redis"
	cfg.RedisURL = "not a url"

	mgr := NewWithStorage(storage.NewStorageFactory(testLogger()).StorageFor(cfg))
	assert.Equal(t, "empty", mgr.StorageName())

	ctx := context.Background()
	require.NoError(t, mgr.SaveFavorite(ctx, "alice", "src1", "ep1", interfaces.Favorite{}))
	favorites, err := mgr.GetAllFavorites(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, favorites)
}

// TestNew_SharesProcessBackend is the only test that goes through New, since
// the backend it selects is kept for the life of the test binary.
func TestNew_SharesProcessBackend(t *testing.T) {
	first := storage.DefaultConfig()
	first.Type = "redis"
	first.RedisURL = "not a url"

	second := storage.DefaultConfig()
	second.Type = "memory"

	mgr := New(first, testLogger())
	assert.Equal(t, "empty", mgr.StorageName())

	// later configuration is ignored
	other := New(second, testLogger())
	assert.Equal(t, "empty", other.StorageName())
	assert.Same(t, mgr.storage, other.storage)

	ctx := context.Background()
	require.NoError(t, other.AddSearchHistory(ctx, "alice", "kw"))
	history, err := mgr.GetSearchHistory(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestManager_Close(t *testing.T) {
	dir := t.TempDir()
	bolt, err := storage.NewBoltBackend(dir+"/state.db", time.Second, testLogger())
	require.NoError(t, err)

	mgr := NewWithStorage(storage.NewKVStorage(bolt, "", testLogger()))
	require.NoError(t, mgr.Close())

	// The file lock is released, so the database opens again
	reopened, err := storage.NewBoltBackend(dir+"/state.db", time.Second, testLogger())
	require.NoError(t, err)
	require.NoError(t, reopened.Close())

	assert.NoError(t, NewWithStorage(storage.NewEmptyStorage(testLogger(), "test")).Close())
}
