// Package objectstore implements the content-addressed blob and tree store
// that underlies every repository: entry content and directory snapshots
// are both stored keyed by a 20-byte digest of their canonicalized bytes,
// append-only and idempotent.
package objectstore

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/ridgeline/pkg/rerr"
)

// Digest is the 20-byte content address of a blob or tree.
type Digest [20]byte

func (d Digest) String() string { return fmt.Sprintf("%x", [20]byte(d)) }

// IsZero reports whether d is the zero digest (used to mark "no content",
// e.g. an empty directory's parent before the first commit).
func (d Digest) IsZero() bool { return d == Digest{} }

// HashBytes computes the digest of raw bytes.
func HashBytes(b []byte) Digest {
	return Digest(sha1.Sum(b))
}

// TreeEntryType mirrors types.EntryType for the narrower purpose of
// addressing a child within a tree.
type TreeEntryType string

const (
	TreeEntryBlob      TreeEntryType = "BLOB"
	TreeEntryTree      TreeEntryType = "TREE"
	TreeEntryDirectory TreeEntryType = "DIRECTORY" // empty directory, no child tree
)

// TreeEntry is one child of a tree, sorted by Name within its tree.
type TreeEntry struct {
	Name   string        `json:"name"`
	Type   TreeEntryType `json:"type"`
	Digest Digest        `json:"digest"`
}

// Tree is a sorted list of named, typed children — one level of a
// repository's directory structure at some revision.
type Tree []TreeEntry

// Encode canonicalizes t (sorted by Name, compact JSON) for hashing.
func (t Tree) Encode() []byte {
	sorted := make(Tree, len(t))
	copy(sorted, t)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	buf, err := json.Marshal(sorted)
	if err != nil {
		panic("objectstore: tree encode: " + err.Error())
	}
	return buf
}

var (
	bucketBlobs = []byte("blobs")
	bucketTrees = []byte("trees")
)

// Store is a single repository's content-addressed object store, backed by
// a dedicated bbolt database file.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the object store for one repository at
// dataDir/<project>/<repo>/objects.db.
func Open(dataDir, project, repo string) (*Store, error) {
	dir := filepath.Join(dataDir, project, repo)
	dbPath := filepath.Join(dir, "objects.db")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: create %s: %w", dir, err)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("objectstore: open %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketBlobs); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketTrees)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("objectstore: init buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// PutBlob writes content if its digest is not already present and returns
// the digest. Writing the same content twice is a no-op on the second call.
func (s *Store) PutBlob(content []byte) (Digest, error) {
	digest := HashBytes(content)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		key := digest[:]
		if b.Get(key) != nil {
			return nil
		}
		return b.Put(key, content)
	})
	return digest, err
}

// GetBlob reads the blob at digest.
func (s *Store) GetBlob(digest Digest) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		data := b.Get(digest[:])
		if data == nil {
			return rerr.New(rerr.EntryNotFound, "", fmt.Sprintf("blob %s not found", digest))
		}
		out = append([]byte(nil), data...)
		return nil
	})
	return out, err
}

// PutTree writes a tree's canonical encoding if not already present and
// returns its digest.
func (s *Store) PutTree(tree Tree) (Digest, error) {
	encoded := tree.Encode()
	digest := HashBytes(encoded)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTrees)
		key := digest[:]
		if b.Get(key) != nil {
			return nil
		}
		return b.Put(key, encoded)
	})
	return digest, err
}

// GetTree reads and decodes the tree at digest.
func (s *Store) GetTree(digest Digest) (Tree, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTrees)
		data := b.Get(digest[:])
		if data == nil {
			return rerr.New(rerr.EntryNotFound, "", fmt.Sprintf("tree %s not found", digest))
		}
		raw = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	var tree Tree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("objectstore: decode tree %s: %w", digest, err)
	}
	return tree, nil
}

// Has reports whether a blob or tree digest is present, without reading
// its bytes.
func (s *Store) Has(bucket TreeEntryType, digest Digest) bool {
	var bucketName []byte
	switch bucket {
	case TreeEntryTree:
		bucketName = bucketTrees
	default:
		bucketName = bucketBlobs
	}
	var found bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketName).Get(digest[:]) != nil
		return nil
	})
	return found
}

