/*
Package objectstore provides the content-addressed blob and tree store that
every repository's commit history is built on, backed by bbolt.

# Architecture

	┌──────────────────── OBJECT STORE ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │                Store                         │          │
	│  │  - File: <dataDir>/<project>/<repo>/objects.db│         │
	│  │  - Format: B+tree with MVCC (bbolt)          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Bucket Structure                │          │
	│  │    blobs  (20-byte digest → raw content)     │          │
	│  │    trees  (20-byte digest → encoded Tree)    │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

A blob is an opaque byte string: a JSON entry's canonicalized bytes, or a
TEXT entry's raw bytes. A tree is a sorted list of (name, type, digest)
children, encoded as compact JSON before hashing — one tree per directory
level of a repository's root at a given revision. The digest is the 20-byte
SHA-1 of those canonical bytes.

# Guarantees

Writes are append-only and idempotent: PutBlob/PutTree are no-ops if the
digest already exists. Any digest referenced by a persisted commit record
stays readable for the repository's lifetime — callers write the object
before appending the owning commit, so a crash between the two leaves an
unreferenced but harmless orphan object rather than a dangling reference.

# Integration Points

pkg/commit writes blobs and trees while computing a push's new root, and
reads them back to materialize entries for get/find/query/diff. pkg/revlog
stores only the root tree's digest per revision, never entry content
directly.
*/
package objectstore
