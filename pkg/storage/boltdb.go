package storage

import (
	"fmt"
	"path/filepath"
	"sort"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketApps   = []byte("apps")
	bucketGroups = []byte("groups")
	bucketPlans  = []byte("plans")

	currentMarker = []byte("\x00current")
)

func bucketFor(kind EntityKind) []byte {
	switch kind {
	case KindApp:
		return bucketApps
	case KindGroup:
		return bucketGroups
	case KindPlan:
		return bucketPlans
	default:
		return nil
	}
}

// BoltStore implements Store using nested BoltDB buckets:
// kind-bucket → path-bucket → {version: blob, "\x00current": version}.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a BoltDB-backed Store under
// dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "orbit.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketApps, bucketGroups, bucketPlans} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(kind EntityKind, path string, version string) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		pathBucket := pathBucket(tx, kind, path)
		if pathBucket == nil {
			return nil
		}
		if v := pathBucket.Get([]byte(version)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	return data, data != nil, err
}

func (s *BoltStore) GetCurrent(kind EntityKind, path string) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		pathBucket := pathBucket(tx, kind, path)
		if pathBucket == nil {
			return nil
		}
		current := pathBucket.Get(currentMarker)
		if current == nil {
			return nil
		}
		if v := pathBucket.Get(current); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	return data, data != nil, err
}

func (s *BoltStore) Store(kind EntityKind, path string, version string, data []byte) error {
	root := bucketFor(kind)
	if root == nil {
		return fmt.Errorf("storage: unknown entity kind %q", kind)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		kindBucket := tx.Bucket(root)
		pb, err := kindBucket.CreateBucketIfNotExists([]byte(path))
		if err != nil {
			return fmt.Errorf("create path bucket %s: %w", path, err)
		}
		if err := pb.Put([]byte(version), data); err != nil {
			return err
		}
		return pb.Put(currentMarker, []byte(version))
	})
}

func (s *BoltStore) DeleteCurrent(kind EntityKind, path string) error {
	root := bucketFor(kind)
	if root == nil {
		return fmt.Errorf("storage: unknown entity kind %q", kind)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		kindBucket := tx.Bucket(root)
		pb := kindBucket.Bucket([]byte(path))
		if pb == nil {
			return nil
		}
		return pb.Delete(currentMarker)
	})
}

func (s *BoltStore) DeleteVersion(kind EntityKind, path string, version string) error {
	root := bucketFor(kind)
	if root == nil {
		return fmt.Errorf("storage: unknown entity kind %q", kind)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		kindBucket := tx.Bucket(root)
		pb := kindBucket.Bucket([]byte(path))
		if pb == nil {
			return nil
		}
		return pb.Delete([]byte(version))
	})
}

func (s *BoltStore) Versions(kind EntityKind, path string) ([]string, error) {
	var versions []string
	err := s.db.View(func(tx *bolt.Tx) error {
		pb := pathBucket(tx, kind, path)
		if pb == nil {
			return nil
		}
		return pb.ForEach(func(k, _ []byte) error {
			if string(k) == string(currentMarker) {
				return nil
			}
			versions = append(versions, string(k))
			return nil
		})
	})
	sort.Strings(versions)
	return versions, err
}

func (s *BoltStore) Ids(kind EntityKind) ([]string, error) {
	root := bucketFor(kind)
	if root == nil {
		return nil, fmt.Errorf("storage: unknown entity kind %q", kind)
	}
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		kindBucket := tx.Bucket(root)
		return kindBucket.ForEach(func(name, v []byte) error {
			if v == nil { // nil value means name is a nested bucket (a path)
				ids = append(ids, string(name))
			}
			return nil
		})
	})
	return ids, err
}

func pathBucket(tx *bolt.Tx, kind EntityKind, path string) *bolt.Bucket {
	root := bucketFor(kind)
	if root == nil {
		return nil
	}
	kindBucket := tx.Bucket(root)
	if kindBucket == nil {
		return nil
	}
	return kindBucket.Bucket([]byte(path))
}
