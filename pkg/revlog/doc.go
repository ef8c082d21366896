/*
Package revlog implements the per-repository revision log: an ordered
sequence of (revision, commit metadata, root tree digest, parent revision)
records, backed by bbolt.

# Architecture

Each repository gets its own revlog.db file alongside its object store.
Records are keyed by an 8-byte big-endian encoding of the revision number,
which keeps bbolt's B+tree iteration order equal to numeric order and
makes Head a single cursor.Last() call.

# Append semantics

Append is the sole serialization point for a repository: it runs inside a
single bbolt write transaction that reads the current head, compares it
against the caller's expected parent revision, and only then writes the
new record and advances the head — all within the same transaction, so a
racing Append from another goroutine either fully precedes or fully
follows this one, never interleaves. A mismatch fails with ChangeConflict
rather than silently overwriting.

# Integration Points

pkg/commit calls Append once per successful push or transform, after
writing the new root tree's objects to pkg/objectstore. pkg/executor's
CommandFSM is the only caller that reaches pkg/commit's push path, so in
replicated mode every replica's revlog advances in identical order.
*/
package revlog
