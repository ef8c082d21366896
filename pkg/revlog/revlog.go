// Package revlog implements the per-repository append-only revision log:
// a strictly monotonic, gap-free sequence of commit records starting at
// revision 1, with an atomic compare-and-append at its head.
package revlog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/ridgeline/pkg/objectstore"
	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

// MaxMaxCommits bounds the maxCount argument accepted by Range, so a
// misbehaving caller cannot force an unbounded scan.
const MaxMaxCommits = 10000

// Record is one entry in a repository's revision log.
type Record struct {
	Revision       types.Revision    `json:"revision"`
	Commit         types.Commit      `json:"commit"`
	RootTreeDigest objectstore.Digest `json:"rootTreeDigest"`
	ParentRevision types.Revision    `json:"parentRevision"`
}

var bucketRevisions = []byte("revisions")

// Log is one repository's revision log, backed by a dedicated bbolt
// database file colocated with the repository's object store.
type Log struct {
	db *bolt.DB
}

// Open opens (creating if absent) the revision log for one repository at
// dataDir/<project>/<repo>/revlog.db.
func Open(dataDir, project, repo string) (*Log, error) {
	dir := filepath.Join(dataDir, project, repo)
	dbPath := filepath.Join(dir, "revlog.db")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("revlog: create %s: %w", dir, err)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("revlog: open %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRevisions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("revlog: init bucket: %w", err)
	}

	return &Log{db: db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error { return l.db.Close() }

func revisionKey(rev types.Revision) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(rev))
	return buf
}

// Head returns the current head revision, or 0 if the log is empty.
func (l *Log) Head() (types.Revision, error) {
	var head types.Revision
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRevisions).Cursor()
		k, _ := c.Last()
		if k == nil {
			head = 0
			return nil
		}
		head = types.Revision(binary.BigEndian.Uint64(k))
		return nil
	})
	return head, err
}

// Get returns the record at rev, or RevisionNotFound.
func (l *Log) Get(rev types.Revision) (Record, error) {
	var record Record
	err := l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRevisions).Get(revisionKey(rev))
		if data == nil {
			return rerr.New(rerr.RevisionNotFound, "", fmt.Sprintf("revision %d not found", rev))
		}
		return json.Unmarshal(data, &record)
	})
	return record, err
}

// Append writes a new record at head()+1, failing with ChangeConflict if
// parentRevision does not match the current head. This is the sole
// serialization point for a repository: bbolt's single-writer transaction
// makes the read-check-write atomic.
func (l *Log) Append(commit types.Commit, rootDigest objectstore.Digest, parentRevision types.Revision) (types.Revision, error) {
	var next types.Revision
	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRevisions)
		c := b.Cursor()
		k, _ := c.Last()

		var head types.Revision
		if k != nil {
			head = types.Revision(binary.BigEndian.Uint64(k))
		}

		if head != parentRevision {
			return rerr.New(rerr.ChangeConflict, "", fmt.Sprintf("expected head %d, got %d", parentRevision, head))
		}

		next = head + 1
		commit.Revision = next
		record := Record{
			Revision:       next,
			Commit:         commit,
			RootTreeDigest: rootDigest,
			ParentRevision: parentRevision,
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put(revisionKey(next), data)
	})
	return next, err
}

// Range returns records in [from, to] inclusive, ordered toward to
// (descending if from > to, ascending otherwise), bounded by maxCount.
// Revisions are gap-free, so this walks direct key lookups rather than a
// cursor scan, stopping at the first missing revision.
func (l *Log) Range(from, to types.Revision, maxCount int) ([]Record, error) {
	if maxCount <= 0 || maxCount > MaxMaxCommits {
		maxCount = MaxMaxCommits
	}
	descending := from > to
	step := types.Revision(1)
	if descending {
		step = -1
	}

	var records []Record
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRevisions)
		for rev := from; len(records) < maxCount; rev += step {
			data := b.Get(revisionKey(rev))
			if data == nil {
				break
			}
			var record Record
			if err := json.Unmarshal(data, &record); err != nil {
				return err
			}
			records = append(records, record)
			if rev == to {
				break
			}
		}
		return nil
	})
	return records, err
}
