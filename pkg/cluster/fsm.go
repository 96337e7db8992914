package cluster

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/orbitsched/orbit/pkg/storage"
)

// opKind names one FSM replicated operation.
type opKind string

const (
	opStore         opKind = "store"
	opDeleteCurrent opKind = "delete_current"
	opDeleteVersion opKind = "delete_version"
)

// Command is one replicated log entry: a single storage.Store mutation.
type Command struct {
	Op      opKind            `json:"op"`
	Kind    storage.EntityKind `json:"kind"`
	Path    string            `json:"path"`
	Version string            `json:"version,omitempty"`
	Data    []byte            `json:"data,omitempty"`
}

// FSM replicates storage.Store mutations across the raft group. Every
// mutating Store call (repository.StoreRoot, deployment-plan persistence)
// is submitted as a Command through Cluster.Apply rather than calling the
// store directly, so every voter's store converges.
type FSM struct {
	mu    sync.RWMutex
	store storage.Store
}

// NewFSM wraps store for raft replication.
func NewFSM(store storage.Store) *FSM {
	return &FSM{store: store}
}

// Store returns the local store the FSM applies committed commands to,
// for read paths that bypass raft (every read in storage.Store is
// already locally consistent on a voter; only mutations replicate).
func (f *FSM) Store() storage.Store {
	return f.store
}

// Apply applies one committed log entry to the local store.
func (f *FSM) Apply(entry *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(entry.Data, &cmd); err != nil {
		return fmt.Errorf("fsm: unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opStore:
		return f.store.Store(cmd.Kind, cmd.Path, cmd.Version, cmd.Data)
	case opDeleteCurrent:
		return f.store.DeleteCurrent(cmd.Kind, cmd.Path)
	case opDeleteVersion:
		return f.store.DeleteVersion(cmd.Kind, cmd.Path, cmd.Version)
	default:
		return fmt.Errorf("fsm: unknown op %q", cmd.Op)
	}
}

// Snapshot captures every (kind, path, current-version) blob the store
// currently holds.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := &Snapshot{}
	for _, kind := range []storage.EntityKind{storage.KindApp, storage.KindGroup, storage.KindPlan} {
		ids, err := f.store.Ids(kind)
		if err != nil {
			return nil, fmt.Errorf("fsm: snapshot list %s: %w", kind, err)
		}
		for _, path := range ids {
			data, ok, err := f.store.GetCurrent(kind, path)
			if err != nil {
				return nil, fmt.Errorf("fsm: snapshot read %s/%s: %w", kind, path, err)
			}
			if !ok {
				continue
			}
			snap.Entries = append(snap.Entries, snapshotEntry{Kind: kind, Path: path, Data: data})
		}
	}
	return snap, nil
}

// Restore replaces the store's current-version contents with a prior
// snapshot's.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("fsm: decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range snap.Entries {
		if err := f.store.Store(e.Kind, e.Path, "restored", e.Data); err != nil {
			return fmt.Errorf("fsm: restore %s/%s: %w", e.Kind, e.Path, err)
		}
	}
	return nil
}

type snapshotEntry struct {
	Kind storage.EntityKind `json:"kind"`
	Path string            `json:"path"`
	Data []byte            `json:"data"`
}

// Snapshot is a point-in-time capture of every current-version blob.
type Snapshot struct {
	Entries []snapshotEntry `json:"entries"`
}

// Persist writes the snapshot to sink as JSON.
func (s *Snapshot) Persist(sink raft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(s); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

// Release is a no-op; Snapshot holds no external resources.
func (s *Snapshot) Release() {}
