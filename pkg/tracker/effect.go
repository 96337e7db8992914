// Package tracker implements the Instance Tracker and the Instance State
// Machine: the exclusive owner of the in-memory instance map, and
// the pure per-update transition rules that decide how a broker status
// report mutates it.
package tracker

import "github.com/orbitsched/orbit/pkg/types"

// EffectKind names the outcome of applying an InstanceUpdateOperation.
type EffectKind int

const (
	// EffectUpdate means the instance was created or changed; Old is nil
	// for a brand new instance.
	EffectUpdate EffectKind = iota
	// EffectExpunge means the instance (or its owning task) reached a
	// terminal state and was removed from the tracker.
	EffectExpunge
	// EffectNoop means the operation applied cleanly but changed nothing
	// observable (e.g. a duplicate status already reflected).
	EffectNoop
	// EffectFailure means the operation was illegal for the instance's
	// current state; the tracker's map is left untouched.
	EffectFailure
)

// Effect carries enough information for downstream persistence and event
// emission: the old and new instance state.
type Effect struct {
	Kind       EffectKind
	InstanceID types.InstanceId
	New        types.Instance
	Old        *types.Instance
	Err        error
}
