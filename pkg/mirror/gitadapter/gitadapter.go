// Package gitadapter is the concrete, go-git-backed mirror.Task
// implementation. It is the only package in the mirror tree that imports
// go-git directly — regrounded on
// _examples/vfarcic-dot-ai-controller's GitClient, which clones fresh,
// reads or writes the tree, then discards the clone rather than keeping a
// long-lived working copy around.
package gitadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v6/plumbing/transport/ssh"

	"github.com/cuemby/ridgeline/pkg/mirror"
	"github.com/cuemby/ridgeline/pkg/types"
)

// Factory builds a gitadapter.Task for cfg, satisfying mirror.TaskFactory.
// workDir is the parent directory under which each run gets its own
// scratch clone, removed once the run finishes.
func Factory(workDir string) mirror.TaskFactory {
	return func(cfg types.MirrorTaskConfig, cred types.Credential, store mirror.LocalStore) (mirror.Task, error) {
		project, repo, err := splitLocalRepo(cfg.LocalRepo)
		if err != nil {
			return nil, err
		}
		auth, err := authMethod(cred)
		if err != nil {
			return nil, err
		}
		return &Task{
			cfg:     cfg,
			project: project,
			repo:    repo,
			auth:    auth,
			store:   store,
			workDir: workDir,
		}, nil
	}
}

// splitLocalRepo parses "project/repo" into its two components. A bare
// LocalRepo with no slash is rejected: the commit engine always addresses
// content by (project, repo) pair, never by repo name alone.
func splitLocalRepo(localRepo string) (project, repo string, err error) {
	idx := strings.IndexByte(localRepo, '/')
	if idx <= 0 || idx == len(localRepo)-1 {
		return "", "", fmt.Errorf("gitadapter: localRepo %q must be in \"project/repo\" form", localRepo)
	}
	return localRepo[:idx], localRepo[idx+1:], nil
}

func authMethod(cred types.Credential) (transport.AuthMethod, error) {
	switch cred.Kind {
	case types.CredentialNone, "":
		return nil, nil
	case types.CredentialAccessToken:
		// GitHub, GitLab, Bitbucket, and most hosts accept any non-empty
		// username alongside a token in the password field.
		return &http.BasicAuth{Username: "x-access-token", Password: cred.Secret}, nil
	case types.CredentialPassword:
		username := cred.Username
		if username == "" {
			username = "git"
		}
		return &http.BasicAuth{Username: username, Password: cred.Secret}, nil
	case types.CredentialSSHKey:
		username := cred.Username
		if username == "" {
			username = "git"
		}
		keys, err := gitssh.NewPublicKeys(username, []byte(cred.Secret), "")
		if err != nil {
			return nil, fmt.Errorf("gitadapter: parsing ssh key: %w", err)
		}
		return keys, nil
	default:
		return nil, fmt.Errorf("gitadapter: unsupported credential kind %q", cred.Kind)
	}
}

// Task performs one REMOTE_TO_LOCAL or LOCAL_TO_REMOTE mirror run.
type Task struct {
	cfg     types.MirrorTaskConfig
	project string
	repo    string
	auth    transport.AuthMethod
	store   mirror.LocalStore
	workDir string
}

// Run implements mirror.Task.
func (t *Task) Run(ctx context.Context) (types.MirrorResult, error) {
	startedAt := time.Now()
	cloneDir, err := os.MkdirTemp(t.workDir, "mirror-"+t.cfg.ID+"-")
	if err != nil {
		return types.MirrorResult{}, fmt.Errorf("gitadapter: creating scratch clone dir: %w", err)
	}
	defer os.RemoveAll(cloneDir)

	var result types.MirrorResult
	switch t.cfg.Direction {
	case types.RemoteToLocal:
		result, err = t.runRemoteToLocal(ctx, cloneDir)
	case types.LocalToRemote:
		result, err = t.runLocalToRemote(ctx, cloneDir)
	default:
		err = fmt.Errorf("gitadapter: unknown direction %q", t.cfg.Direction)
	}
	if err != nil {
		return types.MirrorResult{}, err
	}
	result.TaskID = t.cfg.ID
	result.StartedAt = startedAt
	result.FinishedAt = time.Now()
	return result, nil
}

func (t *Task) branchRef() plumbing.ReferenceName {
	branch := t.cfg.RemoteBranch
	if branch == "" {
		branch = "main"
	}
	return plumbing.NewBranchReferenceName(branch)
}

func (t *Task) runRemoteToLocal(ctx context.Context, cloneDir string) (types.MirrorResult, error) {
	repo, err := git.PlainCloneContext(ctx, cloneDir, &git.CloneOptions{
		URL:           t.cfg.RemoteURI,
		Auth:          t.auth,
		ReferenceName: t.branchRef(),
		SingleBranch:  true,
		Depth:         1,
	})
	if err != nil {
		return types.MirrorResult{}, fmt.Errorf("gitadapter: cloning %s: %w", t.cfg.RemoteURI, err)
	}

	head, err := repo.Head()
	if err != nil {
		return types.MirrorResult{}, fmt.Errorf("gitadapter: resolving HEAD: %w", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return types.MirrorResult{}, fmt.Errorf("gitadapter: reading commit %s: %w", head.Hash(), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return types.MirrorResult{}, fmt.Errorf("gitadapter: reading tree: %w", err)
	}

	excluded, err := t.gitignorePatterns(cloneDir)
	if err != nil {
		return types.MirrorResult{}, err
	}

	var changes []types.Change
	err = tree.Files().ForEach(func(f *object.File) error {
		if isExcluded(f.Name, excluded) {
			return nil
		}
		content, ferr := f.Contents()
		if ferr != nil {
			return fmt.Errorf("reading %s: %w", f.Name, ferr)
		}
		changes = append(changes, types.Change{
			Op:   types.OpUpsertText,
			Path: localPath(t.cfg.LocalPath, f.Name),
			Text: content,
		})
		return nil
	})
	if err != nil {
		return types.MirrorResult{}, err
	}

	if len(changes) == 0 {
		return types.MirrorResult{Status: types.MirrorUpToDate, Description: "remote tree is empty after gitignore filtering"}, nil
	}

	commitResult, err := t.store.Push(t.project, t.repo, types.HeadRevision, "mirror", mirrorSummary(t.cfg, head.Hash().String()), changes)
	if err != nil {
		return types.MirrorResult{}, fmt.Errorf("gitadapter: pushing mirrored content: %w", err)
	}

	return types.MirrorResult{
		Status:      types.MirrorSuccess,
		Description: fmt.Sprintf("mirrored %d file(s) from %s@%s", len(changes), t.cfg.RemoteURI, head.Hash().String()[:12]),
		Revision:    commitResult.Revision,
	}, nil
}

func (t *Task) runLocalToRemote(ctx context.Context, cloneDir string) (types.MirrorResult, error) {
	entries, rev, err := t.store.Find(t.project, t.repo, types.HeadRevision, "**")
	if err != nil {
		return types.MirrorResult{}, fmt.Errorf("gitadapter: reading local tree: %w", err)
	}

	repo, worktree, err := t.cloneOrInitRemote(ctx, cloneDir)
	if err != nil {
		return types.MirrorResult{}, err
	}

	excluded, err := t.gitignorePatterns(cloneDir)
	if err != nil {
		return types.MirrorResult{}, err
	}

	written := 0
	for _, entry := range entries {
		if entry.Type == types.EntryDirectory || isExcluded(worktreePath(entry.Path), excluded) {
			continue
		}
		body, err := fileBody(entry)
		if err != nil {
			return types.MirrorResult{}, fmt.Errorf("gitadapter: decoding %s: %w", entry.Path, err)
		}
		relPath := worktreePath(entry.Path)
		dest := filepath.Join(cloneDir, relPath)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return types.MirrorResult{}, fmt.Errorf("gitadapter: creating %s: %w", filepath.Dir(dest), err)
		}
		if err := os.WriteFile(dest, body, 0o644); err != nil {
			return types.MirrorResult{}, fmt.Errorf("gitadapter: writing %s: %w", entry.Path, err)
		}
		if _, err := worktree.Add(relPath); err != nil {
			return types.MirrorResult{}, fmt.Errorf("gitadapter: staging %s: %w", entry.Path, err)
		}
		written++
	}

	status, err := worktree.Status()
	if err != nil {
		return types.MirrorResult{}, fmt.Errorf("gitadapter: reading worktree status: %w", err)
	}
	if status.IsClean() {
		return types.MirrorResult{Status: types.MirrorUpToDate, Description: "remote already matches local tree"}, nil
	}

	commitHash, err := worktree.Commit(mirrorSummary(t.cfg, fmt.Sprintf("rev-%d", rev)), &git.CommitOptions{
		Author: &object.Signature{Name: "ridgeline-mirror", Email: "mirror@ridgeline.local", When: time.Now()},
	})
	if err != nil {
		return types.MirrorResult{}, fmt.Errorf("gitadapter: committing: %w", err)
	}

	refSpec := config.RefSpec(fmt.Sprintf("+HEAD:%s", t.branchRef()))
	if err := repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		Auth:       t.auth,
		RefSpecs:   []config.RefSpec{refSpec},
	}); err != nil {
		return types.MirrorResult{}, fmt.Errorf("gitadapter: pushing to %s: %w", t.cfg.RemoteURI, err)
	}

	return types.MirrorResult{
		Status:      types.MirrorSuccess,
		Description: fmt.Sprintf("mirrored %d file(s) to %s@%s", written, t.cfg.RemoteURI, commitHash.String()[:12]),
		Revision:    rev,
	}, nil
}

func (t *Task) cloneOrInitRemote(ctx context.Context, cloneDir string) (*git.Repository, *git.Worktree, error) {
	repo, err := git.PlainCloneContext(ctx, cloneDir, &git.CloneOptions{
		URL:           t.cfg.RemoteURI,
		Auth:          t.auth,
		ReferenceName: t.branchRef(),
		SingleBranch:  true,
		Depth:         1,
	})
	if err != nil {
		// Empty remote: initialize a fresh repo and wire origin by hand.
		repo, err = git.PlainInit(cloneDir, false)
		if err != nil {
			return nil, nil, fmt.Errorf("gitadapter: initializing clone for empty remote: %w", err)
		}
		if _, err := repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{t.cfg.RemoteURI}}); err != nil {
			return nil, nil, fmt.Errorf("gitadapter: wiring origin remote: %w", err)
		}
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, nil, fmt.Errorf("gitadapter: opening worktree: %w", err)
	}
	return repo, worktree, nil
}

// gitignorePatterns reads the gitignore field verbatim as a newline
// separated doublestar pattern list, the same pattern language used for
// MirrorAccessController's rules.
func (t *Task) gitignorePatterns(cloneDir string) ([]string, error) {
	if t.cfg.Gitignore == "" {
		return nil, nil
	}
	var patterns []string
	for _, line := range strings.Split(t.cfg.Gitignore, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, nil
}

func isExcluded(path string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, path); err == nil && ok {
			return true
		}
	}
	return false
}

// fileBody recovers an entry's on-disk bytes: TEXT entries store their
// content JSON-encoded (a quoted string), so they need one decode step;
// JSON entries are written out exactly as stored.
func fileBody(entry types.Entry) ([]byte, error) {
	if entry.Type == types.EntryText {
		var text string
		if err := json.Unmarshal(entry.Content, &text); err != nil {
			return nil, err
		}
		return []byte(text), nil
	}
	return entry.Content, nil
}

// localPath builds the repository-tree path (commit.Engine requires a
// leading "/") a mirrored file is pushed under.
func localPath(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return "/" + name
	}
	return "/" + prefix + "/" + name
}

// worktreePath strips the leading "/" commit.Engine paths carry, producing
// the repo-relative path go-git's Worktree expects.
func worktreePath(path string) string {
	return strings.TrimPrefix(path, "/")
}

func mirrorSummary(cfg types.MirrorTaskConfig, ref string) string {
	return fmt.Sprintf("mirror %s: %s", cfg.ID, ref)
}
