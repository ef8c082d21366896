// Package commit implements the per-repository commit engine: a
// content-addressed object store plus a serially advancing revision log,
// with atomic multi-change pushes, JSON/text patch normalization, and
// history/diff/query reads.
package commit

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/ridgeline/pkg/log"
	"github.com/cuemby/ridgeline/pkg/objectstore"
	"github.com/cuemby/ridgeline/pkg/revlog"
	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

// repoHandle bundles one repository's object store and revision log with
// the serialization primitives the commit engine needs: pushes queue on
// mu (matching the "at most one in-flight commit" rule even though the
// revision log's own compare-and-append is independently atomic), and
// status is read by every push without taking mu.
type repoHandle struct {
	store  *objectstore.Store
	log    *revlog.Log
	mu     sync.Mutex
	status atomic.Value // types.RepositoryStatus

	waitMu sync.Mutex
	waitCh chan struct{} // closed and replaced every time the head advances
}

// currentWaitChan returns the channel that will close on the next head
// advance, for pkg/watch's long-poll waits.
func (h *repoHandle) currentWaitChan() chan struct{} {
	h.waitMu.Lock()
	defer h.waitMu.Unlock()
	return h.waitCh
}

func (h *repoHandle) signalAdvance() {
	h.waitMu.Lock()
	old := h.waitCh
	h.waitCh = make(chan struct{})
	h.waitMu.Unlock()
	close(old)
}

// Engine owns every open repository handle for a node, opening storage
// lazily on first access and reusing it thereafter.
type Engine struct {
	dataDir string

	mu    sync.Mutex
	repos map[string]*repoHandle
}

// New creates an Engine rooted at dataDir. Nothing is opened until a
// repository is first accessed.
func New(dataDir string) *Engine {
	return &Engine{dataDir: dataDir, repos: make(map[string]*repoHandle)}
}

func repoKey(project, repo string) string { return project + "/" + repo }

func (e *Engine) handle(project, repo string) (*repoHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	k := repoKey(project, repo)
	if h, ok := e.repos[k]; ok {
		return h, nil
	}

	store, err := objectstore.Open(e.dataDir, project, repo)
	if err != nil {
		return nil, err
	}
	rlog, err := revlog.Open(e.dataDir, project, repo)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	h := &repoHandle{store: store, log: rlog, waitCh: make(chan struct{})}
	h.status.Store(types.RepositoryActive)
	e.repos[k] = h
	return h, nil
}

// Close closes every open repository handle.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for _, h := range e.repos {
		if err := h.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := h.log.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetStatus sets a repository's write gate; called by the command executor
// when a repository-status metadata mutation is applied.
func (e *Engine) SetStatus(project, repo string, status types.RepositoryStatus) error {
	h, err := e.handle(project, repo)
	if err != nil {
		return err
	}
	h.status.Store(status)
	return nil
}

// Head returns a repository's current head revision.
func (e *Engine) Head(project, repo string) (types.Revision, error) {
	h, err := e.handle(project, repo)
	if err != nil {
		return 0, err
	}
	return h.log.Head()
}

// AwaitHeadChange returns a channel that closes the next time this
// repository's head advances. pkg/watch selects on it alongside a wait
// timeout and caller cancellation.
func (e *Engine) AwaitHeadChange(project, repo string) (<-chan struct{}, error) {
	h, err := e.handle(project, repo)
	if err != nil {
		return nil, err
	}
	return h.currentWaitChan(), nil
}

func (h *repoHandle) currentStatus() types.RepositoryStatus {
	if s, ok := h.status.Load().(types.RepositoryStatus); ok {
		return s
	}
	return types.RepositoryActive
}

// resolveRevision turns a relative or absolute revision into an absolute
// one against the given head, validating it is in range.
func resolveRevision(rev, head types.Revision) (types.Revision, error) {
	resolved := rev
	if rev.IsRelative() {
		resolved = head + 1 + rev // HeadRevision(-1) + head + 1 = head
	}
	if resolved < 1 || resolved > head {
		return 0, rerr.New(rerr.RevisionNotFound, "", "revision out of range")
	}
	return resolved, nil
}

// CreateRepository appends the automatic revision-1 "Create a new
// repository" commit against an empty root tree.
func (e *Engine) CreateRepository(project, repo, author string) (types.CommitResult, error) {
	h, err := e.handle(project, repo)
	if err != nil {
		return types.CommitResult{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	head, err := h.log.Head()
	if err != nil {
		return types.CommitResult{}, err
	}
	if head != 0 {
		return types.CommitResult{}, rerr.New(rerr.RepositoryExists, "", "repository already initialized")
	}

	commit := types.Commit{
		Author:          author,
		TimestampMillis: nowMillis(),
		Summary:         "Create a new repository",
	}
	rev, err := h.log.Append(commit, objectstore.Digest{}, 0)
	if err != nil {
		return types.CommitResult{}, err
	}
	h.signalAdvance()
	log.WithCommit(project, repo, int64(rev), author).Info().Msg("repository created")
	return types.CommitResult{Revision: rev}, nil
}

func (e *Engine) snapshotAt(h *repoHandle, rev types.Revision) (map[string]types.Entry, types.Revision, error) {
	head, err := h.log.Head()
	if err != nil {
		return nil, 0, err
	}
	resolved, err := resolveRevision(rev, head)
	if err != nil {
		return nil, 0, err
	}
	record, err := h.log.Get(resolved)
	if err != nil {
		return nil, 0, err
	}
	entries, err := materialize(h.store, record.RootTreeDigest)
	if err != nil {
		return nil, 0, err
	}
	for path, entry := range entries {
		entry.Revision = resolved
		entries[path] = entry
	}
	return entries, resolved, nil
}

// Get resolves rev and walks path in the resulting tree.
func (e *Engine) Get(project, repo string, rev types.Revision, path string) (types.Entry, types.Revision, error) {
	h, err := e.handle(project, repo)
	if err != nil {
		return types.Entry{}, 0, err
	}
	entries, resolved, err := e.snapshotAt(h, rev)
	if err != nil {
		return types.Entry{}, 0, err
	}
	entry, ok := entries[path]
	if !ok {
		return types.Entry{}, resolved, rerr.New(rerr.EntryNotFound, path, "entry not found")
	}
	return entry, resolved, nil
}

// Find resolves rev and returns every entry matching pattern.
func (e *Engine) Find(project, repo string, rev types.Revision, pattern string) ([]types.Entry, types.Revision, error) {
	h, err := e.handle(project, repo)
	if err != nil {
		return nil, 0, err
	}
	entries, resolved, err := e.snapshotAt(h, rev)
	if err != nil {
		return nil, 0, err
	}
	return findEntries(entries, pattern), resolved, nil
}

// Query resolves rev and evaluates q against the resulting tree.
func (e *Engine) Query(project, repo string, rev types.Revision, q types.Query) (types.Entry, types.Revision, error) {
	h, err := e.handle(project, repo)
	if err != nil {
		return types.Entry{}, 0, err
	}
	entries, resolved, err := e.snapshotAt(h, rev)
	if err != nil {
		return types.Entry{}, 0, err
	}
	entry, err := runQuery(entries, q)
	return entry, resolved, err
}

// Merge resolves rev and right-folds mq's sources.
func (e *Engine) Merge(project, repo string, rev types.Revision, mq types.MergeQuery) (types.Entry, types.Revision, error) {
	h, err := e.handle(project, repo)
	if err != nil {
		return types.Entry{}, 0, err
	}
	entries, resolved, err := e.snapshotAt(h, rev)
	if err != nil {
		return types.Entry{}, 0, err
	}
	entry, err := runMerge(entries, mq)
	return entry, resolved, err
}

// History returns the commits in [from, to] (ordered toward to) whose
// change set intersects pattern, bounded by maxCommits.
func (e *Engine) History(project, repo string, from, to types.Revision, pattern string, maxCommits int) ([]types.Commit, error) {
	h, err := e.handle(project, repo)
	if err != nil {
		return nil, err
	}
	head, err := h.log.Head()
	if err != nil {
		return nil, err
	}
	resolvedFrom, err := resolveRevision(from, head)
	if err != nil {
		return nil, err
	}
	resolvedTo, err := resolveRevision(to, head)
	if err != nil {
		return nil, err
	}
	records, err := h.log.Range(resolvedFrom, resolvedTo, maxCommits)
	if err != nil {
		return nil, err
	}
	return filterHistory(records, pattern), nil
}

// Diff returns the minimal Change set transforming the matched entries at
// from into those at to. If path and jsonpath expressions are given, the
// comparison narrows to that single sub-document; otherwise pattern
// selects the compared path set.
func (e *Engine) Diff(project, repo string, from, to types.Revision, pattern, path string, expressions []string) ([]types.Change, error) {
	h, err := e.handle(project, repo)
	if err != nil {
		return nil, err
	}
	fromEntries, _, err := e.snapshotAt(h, from)
	if err != nil {
		return nil, err
	}
	toEntries, _, err := e.snapshotAt(h, to)
	if err != nil {
		return nil, err
	}
	if path != "" {
		return diffByQuery(fromEntries, toEntries, path, expressions)
	}
	return diffByPattern(fromEntries, toEntries, pattern)
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func validateChanges(changes []types.Change) error {
	if len(changes) == 0 {
		return rerr.New(rerr.InvalidPush, "", "push must contain at least one change")
	}
	seen := make(map[string]struct{}, len(changes))
	for _, c := range changes {
		if !strings.HasPrefix(c.Path, "/") {
			return rerr.New(rerr.InvalidPush, c.Path, "path must be absolute")
		}
		target := c.Path
		if c.Op == types.OpRename {
			target = c.NewPath
			if !strings.HasPrefix(c.NewPath, "/") {
				return rerr.New(rerr.InvalidPush, c.NewPath, "path must be absolute")
			}
		}
		if _, dup := seen[target]; dup {
			return rerr.New(rerr.InvalidPush, target, "duplicate target path in push")
		}
		seen[target] = struct{}{}
	}
	return nil
}
