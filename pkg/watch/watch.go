// Package watch implements the long-poll wait primitives over a
// pkg/commit.Engine: WatchRepository and WatchFile block until a commit
// touching a path or pattern lands, or a wait budget elapses.
package watch

import (
	"context"
	"time"

	"github.com/cuemby/ridgeline/pkg/commit"
	"github.com/cuemby/ridgeline/pkg/revlog"
	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

// Result is what a long-poll wait returns on a match; NotModified is
// reported as a distinct zero Result with ok=false from the callers below,
// never as an error.
type Result struct {
	Revision types.Revision
	Entry    types.Entry // only populated by WatchFile
}

// WatchRepository returns the first revision after lastKnown whose commit
// touches pattern, blocking up to wait. It returns ok=false (NotModified)
// on timeout, never an error, unless ctx is canceled first.
func WatchRepository(ctx context.Context, engine *commit.Engine, project, repo string, lastKnown types.Revision, pattern string, wait time.Duration) (Result, bool, error) {
	deadline := time.Now().Add(wait)
	for {
		head, err := engine.Head(project, repo)
		if err != nil {
			return Result{}, false, err
		}
		if head > lastKnown {
			commits, err := engine.History(project, repo, lastKnown+1, head, pattern, revlog.MaxMaxCommits)
			if err != nil {
				return Result{}, false, err
			}
			if len(commits) > 0 {
				return Result{Revision: head}, true, nil
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Result{}, false, nil
		}

		waitCh, err := engine.AwaitHeadChange(project, repo)
		if err != nil {
			return Result{}, false, err
		}
		select {
		case <-waitCh:
		case <-time.After(remaining):
			return Result{}, false, nil
		case <-ctx.Done():
			return Result{}, false, ctx.Err()
		}
	}
}

// WatchFile is WatchRepository narrowed to a single query, additionally
// returning the queried entry's content at the new revision. If the query
// no longer matches, it reports EntryNotFound only when
// errorOnEntryNotFound is set; otherwise it treats the query as absent and
// keeps waiting out the remaining budget.
func WatchFile(ctx context.Context, engine *commit.Engine, project, repo string, lastKnown types.Revision, query types.Query, wait time.Duration, errorOnEntryNotFound bool) (Result, bool, error) {
	deadline := time.Now().Add(wait)
	for {
		head, err := engine.Head(project, repo)
		if err != nil {
			return Result{}, false, err
		}
		if head > lastKnown {
			commits, err := engine.History(project, repo, lastKnown+1, head, query.Path, revlog.MaxMaxCommits)
			if err != nil {
				return Result{}, false, err
			}
			if len(commits) > 0 {
				entry, rev, err := engine.Query(project, repo, head, query)
				switch rerr.CodeOf(err) {
				case "":
					return Result{Revision: rev, Entry: entry}, true, nil
				case rerr.EntryNotFound:
					if errorOnEntryNotFound {
						return Result{}, false, err
					}
					// fall through to keep waiting
				default:
					return Result{}, false, err
				}
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Result{}, false, nil
		}

		waitCh, err := engine.AwaitHeadChange(project, repo)
		if err != nil {
			return Result{}, false, err
		}
		select {
		case <-waitCh:
		case <-time.After(remaining):
			return Result{}, false, nil
		case <-ctx.Done():
			return Result{}, false, ctx.Err()
		}
	}
}
