package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ruteri/watchstate/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKVStorage(t *testing.T, namespace string) (*KVStorage, *MemoryBackend) {
	kv := NewMemoryBackend()
	return NewKVStorage(kv, namespace, testLogger()), kv
}

func TestKVStorage_Users(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestKVStorage(t, "")

	exists, err := s.CheckUserExist(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)

	ok, err := s.VerifyUser(ctx, "alice", "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RegisterUser(ctx, "alice", "p1"))
	exists, err = s.CheckUserExist(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	// stored hashed
	stored, err := kv.Get(ctx, "u:alice:pwd")
	require.NoError(t, err)
	assert.NotEqual(t, "p1", string(stored))

	require.NoError(t, s.ChangePassword(ctx, "alice", "p2"))
	ok, err = s.VerifyUser(ctx, "alice", "p1")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.VerifyUser(ctx, "alice", "p2")
	require.NoError(t, err)
	assert.True(t, ok)

	// changing the password of an unknown user does not create it
	require.NoError(t, s.ChangePassword(ctx, "ghost", "x"))
	exists, err = s.CheckUserExist(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestKVStorage_LegacyPlaintextPassword(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestKVStorage(t, "")

	require.NoError(t, kv.Set(ctx, "u:old:pwd", []byte("secret")))
	ok, err := s.VerifyUser(ctx, "old", "secret")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKVStorage_GetAllUsers(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestKVStorage(t, "")

	users, err := s.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	for _, name := range []string{"carol", "alice", "b:ob"} {
		require.NoError(t, s.RegisterUser(ctx, name, "pw"))
	}
	// data without a credential does not make a user
	require.NoError(t, s.SetPlayRecord(ctx, "dave", "src+ep", interfaces.PlayRecord{}))
	require.NoError(t, s.AddSearchHistory(ctx, "alice", "kw"))

	users, err = s.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "b:ob", "carol"}, users)
}

func TestKVStorage_UserNamesCannotForgeNamespaces(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestKVStorage(t, "")

	require.NoError(t, s.SetPlayRecord(ctx, "alice", "src+ep", interfaces.PlayRecord{Title: "mine"}))
	// "alice:pr" would share alice's prefix without escaping
	require.NoError(t, s.RegisterUser(ctx, "alice:pr", "pw"))
	require.NoError(t, s.DeleteUser(ctx, "alice:pr"))

	record, err := s.GetPlayRecord(ctx, "alice", "src+ep")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "mine", record.Title)
}

func TestKVStorage_PlayRecords(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestKVStorage(t, "")

	record, err := s.GetPlayRecord(ctx, "alice", DeriveKey("src1", "ep1"))
	require.NoError(t, err)
	assert.Nil(t, record)

	all, err := s.GetAllPlayRecords(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	first := interfaces.PlayRecord{Title: "One", Index: 1, PlayTime: 10}
	second := interfaces.PlayRecord{Title: "Two", Index: 2, PlayTime: 20}
	require.NoError(t, s.SetPlayRecord(ctx, "alice", DeriveKey("src1", "ep1"), first))
	require.NoError(t, s.SetPlayRecord(ctx, "alice", DeriveKey("src1", "ep2"), second))
	require.NoError(t, s.SetPlayRecord(ctx, "bob", DeriveKey("src1", "ep1"), second))

	all, err = s.GetAllPlayRecords(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]interfaces.PlayRecord{
		"src1+ep1": first,
		"src1+ep2": second,
	}, all)

	require.NoError(t, s.DeletePlayRecord(ctx, "alice", DeriveKey("src1", "ep1")))
	require.NoError(t, s.DeletePlayRecord(ctx, "alice", DeriveKey("src1", "ep1")))
	all, err = s.GetAllPlayRecords(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestKVStorage_Favorites(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestKVStorage(t, "")

	favorite := interfaces.Favorite{Title: "Show", Origin: "live"}
	require.NoError(t, s.SetFavorite(ctx, "alice", DeriveKey("src1", "ep1"), favorite))
	require.NoError(t, s.SetFavorite(ctx, "alice", DeriveKey("src2", "ep1"), favorite))

	got, err := s.GetFavorite(ctx, "alice", DeriveKey("src1", "ep1"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, favorite, *got)

	all, err := s.GetAllFavorites(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.DeleteFavorite(ctx, "alice", DeriveKey("src1", "ep1")))
	got, err = s.GetFavorite(ctx, "alice", DeriveKey("src1", "ep1"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKVStorage_SkipConfigs(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestKVStorage(t, "")

	config := interfaces.SkipConfig{Enable: true, IntroTime: 85.5, OutroTime: 120}
	require.NoError(t, s.SetSkipConfig(ctx, "alice", "src1", "ep1", config))

	got, err := s.GetSkipConfig(ctx, "alice", "src1", "ep1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, config, *got)

	all, err := s.GetAllSkipConfigs(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]interfaces.SkipConfig{"src1+ep1": config}, all)

	require.NoError(t, s.DeleteSkipConfig(ctx, "alice", "src1", "ep1"))
	got, err = s.GetSkipConfig(ctx, "alice", "src1", "ep1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKVStorage_SearchHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("most recent first without duplicates", func(t *testing.T) {
		s, _ := newTestKVStorage(t, "")
		for _, kw := range []string{"a", "b", "c", "a"} {
			require.NoError(t, s.AddSearchHistory(ctx, "alice", kw))
		}

		history, err := s.GetSearchHistory(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c", "b"}, history)
	})

	t.Run("blank keywords are ignored", func(t *testing.T) {
		s, _ := newTestKVStorage(t, "")
		require.NoError(t, s.AddSearchHistory(ctx, "alice", "  "))
		require.NoError(t, s.AddSearchHistory(ctx, "alice", " show "))

		history, err := s.GetSearchHistory(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"show"}, history)
	})

	t.Run("trimmed to the limit", func(t *testing.T) {
		s, _ := newTestKVStorage(t, "")
		for i := 0; i < SearchHistoryLimit+5; i++ {
			require.NoError(t, s.AddSearchHistory(ctx, "alice", fmt.Sprintf("kw%d", i)))
		}

		history, err := s.GetSearchHistory(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, history, SearchHistoryLimit)
		assert.Equal(t, fmt.Sprintf("kw%d", SearchHistoryLimit+4), history[0])
		assert.Equal(t, "kw5", history[SearchHistoryLimit-1])
	})

	t.Run("delete one or all", func(t *testing.T) {
		s, _ := newTestKVStorage(t, "")
		for _, kw := range []string{"a", "b", "c"} {
			require.NoError(t, s.AddSearchHistory(ctx, "alice", kw))
		}

		require.NoError(t, s.DeleteSearchHistory(ctx, "alice", "b"))
		history, err := s.GetSearchHistory(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a"}, history)

		require.NoError(t, s.DeleteSearchHistory(ctx, "alice", "missing"))
		require.NoError(t, s.DeleteSearchHistory(ctx, "alice", ""))
		history, err = s.GetSearchHistory(ctx, "alice")
		require.NoError(t, err)
		assert.NotNil(t, history)
		assert.Empty(t, history)
	})
}

func TestKVStorage_AdminConfig(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestKVStorage(t, "")

	config, err := s.GetAdminConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, config)

	want := interfaces.AdminConfig{
		ConfigFile: `{"api_site":{}}`,
		SiteConfig: interfaces.SiteConfig{SiteName: "Watch", SearchDownstreamMaxPage: 5},
		UserConfig: interfaces.UserConfig{Users: []interfaces.UserEntry{{Username: "alice", Role: "owner"}}},
	}
	require.NoError(t, s.SetAdminConfig(ctx, want))

	config, err = s.GetAdminConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Equal(t, want, *config)
}

func TestKVStorage_ClearAllData(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryBackend()
	s := NewKVStorage(kv, "app1:", testLogger())
	other := NewKVStorage(kv, "app2:", testLogger())

	require.NoError(t, s.RegisterUser(ctx, "alice", "pw"))
	require.NoError(t, s.SetFavorite(ctx, "alice", "src+ep", interfaces.Favorite{}))
	require.NoError(t, s.SetAdminConfig(ctx, interfaces.AdminConfig{ConfigFile: "{}"}))
	require.NoError(t, other.RegisterUser(ctx, "alice", "pw"))
	require.NoError(t, kv.Set(ctx, "unrelated", []byte("keep")))

	require.NoError(t, s.ClearAllData(ctx))

	users, err := s.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	config, err := s.GetAdminConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, config)

	// other namespaces and foreign keys are untouched
	users, err = other.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, users)
	_, err = kv.Get(ctx, "unrelated")
	assert.NoError(t, err)
}

func TestKVStorage_DecodeErrorsSurface(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestKVStorage(t, "")

	require.NoError(t, kv.Set(ctx, "u:alice:pr:src+ep", []byte("{not json")))
	_, err := s.GetPlayRecord(ctx, "alice", "src+ep")
	assert.Error(t, err)
	_, err = s.GetAllPlayRecords(ctx, "alice")
	assert.Error(t, err)
}

// failingKV fails every call, like a backend that went away after startup.
type failingKV struct{ MemoryBackend }

var errBackendDown = errors.New("backend down")

func (*failingKV) Get(context.Context, string) ([]byte, error)    { return nil, errBackendDown }
func (*failingKV) Set(context.Context, string, []byte) error      { return errBackendDown }
func (*failingKV) Delete(context.Context, string) error           { return errBackendDown }
func (*failingKV) Keys(context.Context, string) ([]string, error) { return nil, errBackendDown }
func (*failingKV) Update(context.Context, string, interfaces.UpdateFunc) error {
	return errBackendDown
}

func TestKVStorage_CallErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	s := NewKVStorage(&failingKV{}, "", testLogger())

	assert.ErrorIs(t, s.SetPlayRecord(ctx, "alice", "k", interfaces.PlayRecord{}), errBackendDown)
	_, err := s.GetFavorite(ctx, "alice", "k")
	assert.ErrorIs(t, err, errBackendDown)
	_, err = s.VerifyUser(ctx, "alice", "pw")
	assert.ErrorIs(t, err, errBackendDown)
	_, err = s.CheckUserExist(ctx, "alice")
	assert.ErrorIs(t, err, errBackendDown)
	assert.ErrorIs(t, s.ChangePassword(ctx, "alice", "pw"), errBackendDown)
	assert.ErrorIs(t, s.DeleteUser(ctx, "alice"), errBackendDown)
	assert.ErrorIs(t, s.AddSearchHistory(ctx, "alice", "kw"), errBackendDown)
	assert.ErrorIs(t, s.ClearAllData(ctx), errBackendDown)
	_, err = s.GetAllUsers(ctx)
	assert.ErrorIs(t, err, errBackendDown)
}
