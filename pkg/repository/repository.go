// Package repository implements the Group/App Versioned Repository of
// a read/write-through cache over the persistent store that
// guarantees read-after-write consistency for the root application tree,
// and versioned access to individual RunSpecs.
package repository

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/orbitsched/orbit/pkg/log"
	"github.com/orbitsched/orbit/pkg/orberr"
	"github.com/orbitsched/orbit/pkg/storage"
	"github.com/orbitsched/orbit/pkg/types"
)

// PreStoreHook is invoked with the candidate group immediately before
// storeRoot attempts any write; returning an error aborts the write
// before the rootFuture handoff begins.
type PreStoreHook func(types.Group) error

// rootPromise is the future-like handle the caching invariant revolves
// around: a cell that is either still being resolved (done not yet
// closed) or carries a final (group, err) pair.
type rootPromise struct {
	done  chan struct{}
	group types.Group
	err   error
}

// Repository is the Group/App versioned repository. The mutex guards only
// the rootFuture pointer swap; it is never held across a store call.
type Repository struct {
	store        storage.Store
	mu           sync.Mutex
	current      *rootPromise
	preStoreHook PreStoreHook
}

// New creates a repository backed by store.
func New(store storage.Store) *Repository {
	return &Repository{store: store}
}

// SetPreStoreHook registers a hook run before every storeRoot call.
func (r *Repository) SetPreStoreHook(hook PreStoreHook) {
	r.preStoreHook = hook
}

// Root returns the cached current Group, loading it from the store on
// first access or after a prior failed load.
func (r *Repository) Root() (types.Group, error) {
	r.mu.Lock()
	p := r.current
	r.mu.Unlock()

	if p != nil {
		<-p.done
		if p.err == nil {
			return p.group, nil
		}
	}

	r.mu.Lock()
	if r.current != nil && r.current != p {
		fresh := r.current
		r.mu.Unlock()
		<-fresh.done
		return fresh.group, fresh.err
	}
	newPromise := &rootPromise{done: make(chan struct{})}
	r.current = newPromise
	r.mu.Unlock()

	group, err := r.fetchRoot()
	newPromise.group = group
	newPromise.err = err
	close(newPromise.done)
	return group, err
}

// RootVersion returns the Group as it existed at a specific version, if
// retained by the store.
func (r *Repository) RootVersion(v types.Version) (types.Group, bool, error) {
	data, ok, err := r.store.Get(storage.KindGroup, string(types.RootId), v.String())
	if err != nil || !ok {
		return types.Group{}, ok, err
	}
	var stored types.StoredGroup
	if err := json.Unmarshal(data, &stored); err != nil {
		return types.Group{}, false, err
	}
	group, err := r.resolve(stored)
	return group, true, err
}

func (r *Repository) fetchRoot() (types.Group, error) {
	data, ok, err := r.store.GetCurrent(storage.KindGroup, string(types.RootId))
	if err != nil {
		return types.Group{}, &orberr.StoreFailure{Op: "root", Err: err}
	}
	if !ok {
		// No root persisted yet: an empty root group, per Marathon's
		// own bootstrap behavior.
		return types.Group{ID: types.RootId, Apps: map[types.PathId]types.RunSpec{}, Groups: map[types.PathId]types.Group{}}, nil
	}
	var stored types.StoredGroup
	if err := json.Unmarshal(data, &stored); err != nil {
		return types.Group{}, &orberr.StoreFailure{Op: "root", Err: err}
	}
	return r.resolve(stored)
}

// resolve concurrently fetches every app version a StoredGroup tree
// references; apps that fail to load are omitted with a warning. The
// resolved Group carries the original version stamp.
func (r *Repository) resolve(stored types.StoredGroup) (types.Group, error) {
	apps := make(map[types.PathId]types.RunSpec)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for id, version := range stored.AppRefs {
		wg.Add(1)
		go func(id types.PathId, version types.Version) {
			defer wg.Done()
			app, ok, err := r.GetVersion(id, version)
			if err != nil || !ok {
				log.Logger.Warn().Str("app", string(id)).Msg("repository: dropping unresolved app reference")
				return
			}
			mu.Lock()
			apps[id] = app
			mu.Unlock()
		}(id, version)
	}
	wg.Wait()

	subgroups := make(map[types.PathId]types.Group, len(stored.Groups))
	for _, sub := range stored.Groups {
		resolved, err := r.resolve(sub)
		if err != nil {
			return types.Group{}, err
		}
		subgroups[sub.ID] = resolved
	}

	return types.Group{
		ID:           stored.ID,
		Apps:         apps,
		Groups:       subgroups,
		Dependencies: stored.Dependencies,
		Version:      stored.Version,
	}, nil
}

// StoreRoot persists group and the app versions it newly references or
// drops, per the storeRoot algorithm.
func (r *Repository) StoreRoot(group types.Group, updatedApps []types.RunSpec, deletedApps []types.PathId) error {
	if r.preStoreHook != nil {
		if err := r.preStoreHook(group); err != nil {
			return err
		}
	}
	if err := group.ValidateTree(); err != nil {
		return err
	}

	r.mu.Lock()
	oldPromise := r.current
	newPromise := &rootPromise{done: make(chan struct{})}
	r.current = newPromise
	r.mu.Unlock()

	for _, app := range updatedApps {
		var prior *types.RunSpec
		if existing, ok, err := r.Get(app.ID); err == nil && ok {
			prior = &existing
		}
		if err := app.Validate(prior); err != nil {
			r.revert(oldPromise, newPromise, err)
			return err
		}
		if err := r.Store(app); err != nil {
			wrapped := &orberr.StoreFailure{Op: "storeRoot:app", Err: err}
			r.revert(oldPromise, newPromise, wrapped)
			return wrapped
		}
	}

	for _, id := range deletedApps {
		if err := r.DeleteCurrent(id); err != nil {
			log.Logger.Warn().Str("app", string(id)).Err(err).Msg("repository: best-effort app delete failed")
		}
	}

	data, err := json.Marshal(toStoredGroup(group))
	if err != nil {
		wrapped := &orberr.StoreFailure{Op: "storeRoot:marshal", Err: err}
		r.revert(oldPromise, newPromise, wrapped)
		return wrapped
	}
	if err := r.store.Store(storage.KindGroup, string(types.RootId), group.Version.String(), data); err != nil {
		wrapped := &orberr.StoreFailure{Op: "storeRoot:group", Err: err}
		r.revert(oldPromise, newPromise, wrapped)
		return wrapped
	}

	newPromise.group = group
	close(newPromise.done)
	return nil
}

// revert completes newPromise from oldPromise's resolved value (waiting
// for it if still in-flight), so the next Root() sees the pre-write state
// instead of a half-applied one.
func (r *Repository) revert(oldPromise, newPromise *rootPromise, writeErr error) {
	if oldPromise == nil {
		newPromise.err = errors.New("repository: no prior root to revert to")
		close(newPromise.done)
		return
	}
	<-oldPromise.done
	newPromise.group = oldPromise.group
	newPromise.err = oldPromise.err
	close(newPromise.done)
	_ = writeErr // the caller already returns writeErr to its own caller
}

func toStoredGroup(g types.Group) types.StoredGroup {
	refs := make(map[types.PathId]types.Version, len(g.Apps))
	for id, app := range g.Apps {
		refs[id] = app.VersionInfo.Version
	}
	subs := make([]types.StoredGroup, 0, len(g.Groups))
	for _, sub := range g.Groups {
		subs = append(subs, toStoredGroup(sub))
	}
	return types.StoredGroup{
		ID:           g.ID,
		AppRefs:      refs,
		Groups:       subs,
		Dependencies: g.Dependencies,
		Version:      g.Version,
	}
}

// Get returns the current version of appId, if stored.
func (r *Repository) Get(appId types.PathId) (types.RunSpec, bool, error) {
	data, ok, err := r.store.GetCurrent(storage.KindApp, string(appId))
	if err != nil || !ok {
		return types.RunSpec{}, ok, err
	}
	var app types.RunSpec
	if err := json.Unmarshal(data, &app); err != nil {
		return types.RunSpec{}, false, err
	}
	return app, true, nil
}

// GetVersion returns appId as it existed at version v.
func (r *Repository) GetVersion(appId types.PathId, v types.Version) (types.RunSpec, bool, error) {
	data, ok, err := r.store.Get(storage.KindApp, string(appId), v.String())
	if err != nil || !ok {
		return types.RunSpec{}, ok, err
	}
	var app types.RunSpec
	if err := json.Unmarshal(data, &app); err != nil {
		return types.RunSpec{}, false, err
	}
	return app, true, nil
}

// Store persists app at its current VersionInfo.Version.
func (r *Repository) Store(app types.RunSpec) error {
	data, err := json.Marshal(app)
	if err != nil {
		return err
	}
	return r.store.Store(storage.KindApp, string(app.ID), app.VersionInfo.Version.String(), data)
}

// DeleteCurrent removes appId's current pointer (history is retained).
func (r *Repository) DeleteCurrent(appId types.PathId) error {
	return r.store.DeleteCurrent(storage.KindApp, string(appId))
}

// Ids streams (returns) every known app id.
func (r *Repository) Ids() ([]types.PathId, error) {
	raw, err := r.store.Ids(storage.KindApp)
	if err != nil {
		return nil, err
	}
	ids := make([]types.PathId, len(raw))
	for i, s := range raw {
		ids[i] = types.PathId(s)
	}
	return ids, nil
}
