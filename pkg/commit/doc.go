/*
Package commit implements the per-repository commit engine: it materializes
entries from pkg/objectstore trees, applies Change operations with
JSON/text patch normalization, and advances pkg/revlog on push.

# Architecture

	┌───────────────────── COMMIT ENGINE ───────────────────────┐
	│                                                             │
	│  Engine                                                    │
	│   - one repoHandle per (project, repo), opened lazily      │
	│   - repoHandle.mu serializes pushes; status is lock-free   │
	│                                                             │
	│  Read path:  revlog.Get(rev).RootTreeDigest                │
	│              -> objectstore tree walk -> map[path]Entry    │
	│                                                             │
	│  Write path: materialize head -> stage each Change         │
	│              -> buildTree -> revlog.Append                 │
	└─────────────────────────────────────────────────────────────┘

# Change normalization

UPSERT_JSON and UPSERT_TEXT against an existing, differing target are
rewritten into APPLY_JSON_PATCH / APPLY_TEXT_PATCH (the latter via
sergi/go-diff's diffmatchpatch) before they are recorded as the commit's
actual changes; identical content is reported as redundant rather than
staged. APPLY_JSON_PATCH additionally supports a safeReplace operation
alongside RFC-6902 ops, verified against a JSON-Pointer lookup before being
rewritten into a plain replace and handed to evanphx/json-patch.

# Push semantics

Push always stages changes against the tree at the current head, not the
caller's base revision; an explicit (non-HeadRevision) base only gates
whether a losing race retries or fails with ChangeConflict. Append is the
sole point where two competing pushes are actually ordered — repoHandle.mu
reflects that a repository accepts one in-flight push at a time.

# Integration Points

pkg/executor's CommandFSM is the only caller that reaches Push/Transform in
replicated mode, so every replica's engine advances in identical order.
pkg/watch blocks on Engine.AwaitHeadChange and, once the head advances,
checks Engine.History for matching commits. pkg/executor drives every pkg/metadata mutation
through Transform against /metadata.json.
*/
package commit
