// Package storage implements the persistent-store surface: a
// versioned key-value store indexed by (entityKind, path, version), with
// read-after-write guaranteed per key and no cross-key atomicity (that is
// emulated above this package by the repository's rootFuture discipline).
package storage

// EntityKind partitions the store's keyspace: "app", "group", or "plan".
type EntityKind string

const (
	KindApp   EntityKind = "app"
	KindGroup EntityKind = "group"
	KindPlan  EntityKind = "plan"
)

// Store is the versioned key-value surface the Group/App repository and
// the Deployment Manager persist against. version is the caller-supplied
// version stamp (a Version, formatted via its String method); "current"
// semantics (most-recently stored) are exposed through GetCurrent.
type Store interface {
	// Get returns the blob stored at (kind, path, version).
	Get(kind EntityKind, path string, version string) ([]byte, bool, error)

	// GetCurrent returns the most recently stored blob at (kind, path).
	GetCurrent(kind EntityKind, path string) ([]byte, bool, error)

	// Store persists data at (kind, path, version) and advances the
	// kind/path's current pointer to version.
	Store(kind EntityKind, path string, version string, data []byte) error

	// DeleteCurrent removes the current pointer for (kind, path); prior
	// versions remain retrievable via Get.
	DeleteCurrent(kind EntityKind, path string) error

	// DeleteVersion permanently removes one version of (kind, path).
	DeleteVersion(kind EntityKind, path string, version string) error

	// Versions lists every version stamp stored for (kind, path), in
	// ascending lexical order of the version strings.
	Versions(kind EntityKind, path string) ([]string, error)

	// Ids lists every path currently stored under kind.
	Ids(kind EntityKind) ([]string, error)

	// Close releases the underlying database handle.
	Close() error
}
