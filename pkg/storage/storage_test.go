package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	bolt, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	return map[string]Store{
		"bolt": bolt,
		"mem":  NewMemStore(),
	}
}

func TestStoreReadAfterWrite(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Store(KindApp, "/a", "v1", []byte("hello")))

			data, ok, err := store.GetCurrent(KindApp, "/a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("hello"), data)

			data, ok, err = store.Get(KindApp, "/a", "v1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("hello"), data)
		})
	}
}

func TestStoreVersionHistoryRetainedAfterNewCurrent(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Store(KindApp, "/a", "v1", []byte("one")))
			require.NoError(t, store.Store(KindApp, "/a", "v2", []byte("two")))

			current, _, err := store.GetCurrent(KindApp, "/a")
			require.NoError(t, err)
			assert.Equal(t, []byte("two"), current)

			v1, ok, err := store.Get(KindApp, "/a", "v1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("one"), v1)

			versions, err := store.Versions(KindApp, "/a")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"v1", "v2"}, versions)
		})
	}
}

func TestStoreDeleteCurrentKeepsVersions(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Store(KindGroup, "/", "v1", []byte("root")))
			require.NoError(t, store.DeleteCurrent(KindGroup, "/"))

			_, ok, err := store.GetCurrent(KindGroup, "/")
			require.NoError(t, err)
			assert.False(t, ok)

			_, ok, err = store.Get(KindGroup, "/", "v1")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestStoreIdsListsStoredPaths(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Store(KindApp, "/a", "v1", []byte("a")))
			require.NoError(t, store.Store(KindApp, "/b", "v1", []byte("b")))

			ids, err := store.Ids(KindApp)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"/a", "/b"}, ids)
		})
	}
}
