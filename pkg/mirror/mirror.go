package mirror

import (
	"context"

	"github.com/cuemby/ridgeline/pkg/types"
)

// LocalStore is the commit-engine surface a mirror Task needs: pushing
// content pulled from a remote, and enumerating content destined for one.
// Satisfied by pkg/executor.Executor; kept as an interface here so
// pkg/mirror never needs to know about Raft or the command catalogue.
type LocalStore interface {
	Push(project, repo string, baseRev types.Revision, author, summary string, changes []types.Change) (types.CommitResult, error)
	Find(project, repo string, rev types.Revision, pattern string) ([]types.Entry, types.Revision, error)
}

// Task performs one mirror run for a single MirrorTaskConfig.
type Task interface {
	Run(ctx context.Context) (types.MirrorResult, error)
}

// TaskFactory builds the concrete Task that executes cfg, using cred to
// authenticate against cfg.RemoteURI. pkg/mirror/gitadapter provides the
// only production implementation.
type TaskFactory func(cfg types.MirrorTaskConfig, cred types.Credential, store LocalStore) (Task, error)

// CredentialResolver resolves a task's CredentialRef to a concrete
// Credential. The scheduler calls it once per run so a rotated credential
// takes effect on the very next scheduled tick.
type CredentialResolver interface {
	Resolve(ref string) (types.Credential, error)
}

// StaticCredentialResolver resolves refs from an in-memory map; tests and
// single-node deployments that keep credentials in their own config file
// can use it directly instead of wiring a persistent secret store.
type StaticCredentialResolver map[string]types.Credential

// Resolve implements CredentialResolver.
func (m StaticCredentialResolver) Resolve(ref string) (types.Credential, error) {
	if ref == "" {
		return types.Credential{Kind: types.CredentialNone}, nil
	}
	cred, ok := m[ref]
	if !ok {
		return types.Credential{}, &UnknownCredentialError{Ref: ref}
	}
	return cred, nil
}

// UnknownCredentialError reports a CredentialRef with no registered secret.
type UnknownCredentialError struct{ Ref string }

func (e *UnknownCredentialError) Error() string {
	return "mirror: unknown credential ref " + e.Ref
}
