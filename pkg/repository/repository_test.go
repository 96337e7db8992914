package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitsched/orbit/pkg/storage"
	"github.com/orbitsched/orbit/pkg/types"
)

func newRunSpec(id types.PathId, instances int, v time.Time) types.RunSpec {
	return types.RunSpec{
		ID:          id,
		Instances:   instances,
		IPAddress:   true,
		VersionInfo: types.OnlyVersion(types.Version(v)),
	}
}

func TestRootReturnsEmptyGroupBeforeAnyStore(t *testing.T) {
	repo := New(storage.NewMemStore())
	group, err := repo.Root()
	require.NoError(t, err)
	assert.Equal(t, types.RootId, group.ID)
	assert.Empty(t, group.Apps)
}

func TestStoreRootThenRootReturnsSameGroupWithoutReadingStoreAgain(t *testing.T) {
	store := storage.NewMemStore()
	repo := New(store)

	app := newRunSpec("/myapp", 2, time.Unix(100, 0))
	group := types.Group{
		ID:      types.RootId,
		Apps:    map[types.PathId]types.RunSpec{"/myapp": app},
		Groups:  map[types.PathId]types.Group{},
		Version: types.Version(time.Unix(100, 0)),
	}

	require.NoError(t, repo.StoreRoot(group, []types.RunSpec{app}, nil))

	got, err := repo.Root()
	require.NoError(t, err)
	assert.Len(t, got.Apps, 1)
	assert.Equal(t, 2, got.Apps["/myapp"].Instances)
}

func TestStoreRootRevertsOnAppValidationFailure(t *testing.T) {
	store := storage.NewMemStore()
	repo := New(store)

	good := newRunSpec("/ok", 1, time.Unix(1, 0))
	group := types.Group{
		ID:      types.RootId,
		Apps:    map[types.PathId]types.RunSpec{"/ok": good},
		Groups:  map[types.PathId]types.Group{},
		Version: types.Version(time.Unix(1, 0)),
	}
	require.NoError(t, repo.StoreRoot(group, []types.RunSpec{good}, nil))

	bad := types.RunSpec{ID: "/bad", IPAddress: false, Ports: nil} // violates ipAddress XOR ports
	brokenGroup := group
	brokenGroup.Apps = map[types.PathId]types.RunSpec{"/ok": good, "/bad": bad}

	err := repo.StoreRoot(brokenGroup, []types.RunSpec{bad}, nil)
	require.Error(t, err)

	got, rootErr := repo.Root()
	require.NoError(t, rootErr)
	assert.Len(t, got.Apps, 1, "revert should keep the previously stored root")
	_, hasBad := got.Apps["/bad"]
	assert.False(t, hasBad)
}

func TestAppVersionHistoryIsRetrievable(t *testing.T) {
	store := storage.NewMemStore()
	repo := New(store)

	v1 := newRunSpec("/myapp", 1, time.Unix(1, 0))
	require.NoError(t, repo.Store(v1))

	v2 := newRunSpec("/myapp", 3, time.Unix(2, 0))
	require.NoError(t, repo.Store(v2))

	current, ok, err := repo.Get("/myapp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, current.Instances)

	old, ok, err := repo.GetVersion("/myapp", types.Version(time.Unix(1, 0)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, old.Instances)
}

func TestGroupValidateTreeRejectsCycles(t *testing.T) {
	g := types.Group{
		ID: types.RootId,
		Apps: map[types.PathId]types.RunSpec{
			"/a": {ID: "/a", Dependencies: []types.PathId{"/b"}},
			"/b": {ID: "/b", Dependencies: []types.PathId{"/a"}},
		},
		Groups: map[types.PathId]types.Group{},
	}
	err := g.ValidateTree()
	assert.Error(t, err)
}
