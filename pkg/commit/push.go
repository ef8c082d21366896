package commit

import (
	"github.com/cuemby/ridgeline/pkg/log"
	"github.com/cuemby/ridgeline/pkg/objectstore"
	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

func resolveBaseRevision(baseRev, head types.Revision) (types.Revision, error) {
	if baseRev.IsRelative() {
		resolved := head + 1 + baseRev
		if resolved < 0 || resolved > head {
			return 0, rerr.New(rerr.RevisionNotFound, "", "base revision out of range")
		}
		return resolved, nil
	}
	if baseRev < 1 || baseRev > head {
		return 0, rerr.New(rerr.RevisionNotFound, "", "base revision out of range")
	}
	return baseRev, nil
}

// Push stages changes against the tree at head() (not baseRev — step 3 of
// the push algorithm), appends the resulting commit, and retries against a
// newly advanced head only when baseRev was relative (HeadRevision) and
// another writer won the race; an explicit baseRev that loses the race
// fails with ChangeConflict instead of silently retrying.
func (e *Engine) Push(project, repo string, baseRev types.Revision, author, summary string, changes []types.Change, force bool) (types.CommitResult, error) {
	if err := validateChanges(changes); err != nil {
		return types.CommitResult{}, err
	}

	h, err := e.handle(project, repo)
	if err != nil {
		return types.CommitResult{}, err
	}
	if !force && h.currentStatus() == types.RepositoryReadOnly {
		return types.CommitResult{}, rerr.New(rerr.ReadOnly, "", "repository is in read-only mode")
	}

	explicitBase := !baseRev.IsRelative()

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		head, err := h.log.Head()
		if err != nil {
			return types.CommitResult{}, err
		}
		resolvedBase, err := resolveBaseRevision(baseRev, head)
		if err != nil {
			return types.CommitResult{}, err
		}
		if explicitBase && resolvedBase != head {
			return types.CommitResult{}, rerr.New(rerr.ChangeConflict, "", "base revision is behind head")
		}

		var rootDigest objectstore.Digest
		if head > 0 {
			record, err := h.log.Get(head)
			if err != nil {
				return types.CommitResult{}, err
			}
			rootDigest = record.RootTreeDigest
		}
		entries, err := materialize(h.store, rootDigest)
		if err != nil {
			return types.CommitResult{}, err
		}

		var actual []types.Change
		redundantCount := 0
		for _, change := range changes {
			result, err := stageChange(entries, change)
			if err != nil {
				return types.CommitResult{}, err
			}
			if result.redundant {
				redundantCount++
				continue
			}
			actual = append(actual, result.change)
		}
		if redundantCount == len(changes) {
			return types.CommitResult{}, rerr.New(rerr.RedundantChange, "", "push would produce no net effect")
		}

		newRoot, err := buildTree(h.store, entries)
		if err != nil {
			return types.CommitResult{}, err
		}

		commit := types.Commit{
			Author:          author,
			TimestampMillis: nowMillis(),
			Summary:         summary,
			Changes:         actual,
		}
		rev, err := h.log.Append(commit, newRoot, head)
		if err == nil {
			h.signalAdvance()
			log.WithCommit(project, repo, int64(rev), author).Debug().Msg(summary)
			return types.CommitResult{Revision: rev, ActualChanges: actual}, nil
		}
		if rerr.CodeOf(err) == rerr.ChangeConflict && !explicitBase {
			continue
		}
		return types.CommitResult{}, err
	}
}

// ForcePush is Push with the read-only gate bypassed; it never bypasses
// quota, role, or conflict checks.
func (e *Engine) ForcePush(project, repo string, baseRev types.Revision, author, summary string, changes []types.Change) (types.CommitResult, error) {
	return e.Push(project, repo, baseRev, author, summary, changes, true)
}

// TransformFunc computes a new entry body from the current head revision
// and content (nil if the entry does not yet exist).
type TransformFunc func(headRevision types.Revision, content []byte) ([]byte, error)

// Transform performs a server-side read-modify-write against path: it reads
// the entry at head, applies fn, and pushes the result, retrying once if
// another writer raced it between the read and the push.
func (e *Engine) Transform(project, repo string, author, summary, path string, entryType types.EntryType, fn TransformFunc) (types.CommitResult, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		h, err := e.handle(project, repo)
		if err != nil {
			return types.CommitResult{}, err
		}
		head, err := h.log.Head()
		if err != nil {
			return types.CommitResult{}, err
		}

		var current []byte
		if head > 0 {
			entry, _, err := e.Get(project, repo, types.HeadRevision, path)
			switch rerr.CodeOf(err) {
			case "":
				current = entry.Content
			case rerr.EntryNotFound:
				// no existing content; fn sees nil.
			default:
				if err != nil {
					return types.CommitResult{}, err
				}
			}
		}

		newContent, err := fn(head, current)
		if err != nil {
			return types.CommitResult{}, err
		}

		var change types.Change
		if entryType == types.EntryJSON {
			change = types.Change{Op: types.OpUpsertJSON, Path: path, Content: newContent}
		} else {
			change = types.Change{Op: types.OpUpsertText, Path: path, Text: string(newContent)}
		}

		result, err := e.Push(project, repo, types.HeadRevision, author, summary, []types.Change{change}, false)
		if err == nil {
			return result, nil
		}
		if rerr.CodeOf(err) == rerr.ChangeConflict {
			lastErr = err
			continue
		}
		return types.CommitResult{}, err
	}
	return types.CommitResult{}, lastErr
}
