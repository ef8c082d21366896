package executor

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/cuemby/ridgeline/pkg/commit"
	"github.com/cuemby/ridgeline/pkg/metadata"
	"github.com/cuemby/ridgeline/pkg/quota"
	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

// CommandFSM implements raft.FSM: it is the single point every replica
// applies committed commands through, in the same order, driving the
// local commit.Engine (and the write-quota/status gates ahead of it) the
// way the teacher's WarrenFSM drove its storage.Store.
type CommandFSM struct {
	mu sync.Mutex

	engine *commit.Engine
	quota  *quota.Registry
	gate   *quota.StatusGate
}

// NewCommandFSM creates a CommandFSM over the given engine and gates.
func NewCommandFSM(engine *commit.Engine, quotaRegistry *quota.Registry, gate *quota.StatusGate) *CommandFSM {
	return &CommandFSM{engine: engine, quota: quotaRegistry, gate: gate}
}

// administrative commands bypass the read-only gate: ForcePush (by
// definition) and the status transition itself (otherwise REPLICATION_ONLY
// could never be cleared).
func (t CommandType) administrative() bool {
	switch t {
	case CmdForcePush, CmdUpdateServerStatus:
		return true
	default:
		return false
	}
}

// quotaGated commands target a single repository's write-quota bucket.
func (t CommandType) quotaGated() bool {
	switch t {
	case CmdPush, CmdForcePush, CmdTransform:
		return true
	default:
		return false
	}
}

// Apply applies one committed log entry. It returns either a
// types.CommitResult, nil (success with no result payload), or an error —
// never panics, matching the structured-result propagation policy every
// other Ridgeline component follows.
func (f *CommandFSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gate.ShuttingDown() {
		return rerr.New(rerr.ShuttingDown, "", "node is shutting down")
	}
	if !cmd.Type.administrative() {
		if err := f.gate.CheckWrite(); err != nil {
			return err
		}
	}

	switch cmd.Type {
	case CmdCreateProject:
		return f.applyCreateProject(cmd.Data)
	case CmdRemoveProject, CmdUnremoveProject, CmdPurgeProject:
		return f.applyProjectLifecycle(cmd.Type, cmd.Data)
	case CmdCreateRepository:
		return f.applyCreateRepository(cmd.Data)
	case CmdRemoveRepository, CmdUnremoveRepository, CmdPurgeRepository:
		return f.applyRepositoryLifecycle(cmd.Type, cmd.Data)
	case CmdPush, CmdForcePush:
		return f.applyPush(cmd.Type, cmd.Data)
	case CmdTransform:
		return f.applyTransform(cmd.Data)
	case CmdUpdateServerStatus:
		return f.applyUpdateServerStatus(cmd.Data)
	case CmdMetadataMutation:
		return f.applyMetadataMutation(cmd.Data)
	default:
		return fmt.Errorf("unknown command type: %s", cmd.Type)
	}
}

func (f *CommandFSM) checkQuota(t CommandType, project, repo string) error {
	if !t.quotaGated() {
		return nil
	}
	return f.quota.Check(project, repo)
}

func (f *CommandFSM) applyCreateProject(data json.RawMessage) interface{} {
	var p createProjectPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	op := metadata.Operation{Type: metadata.OpAddProject, Author: p.Author, Project: p.Name}
	return f.transformRegistry(p.Author, "create project "+p.Name, op)
}

func (f *CommandFSM) applyProjectLifecycle(t CommandType, data json.RawMessage) interface{} {
	var p projectLifecyclePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	opType := map[CommandType]metadata.OperationType{
		CmdRemoveProject:   metadata.OpRemoveProject,
		CmdUnremoveProject: metadata.OpRestoreProject,
		CmdPurgeProject:    metadata.OpPurgeProject,
	}[t]
	op := metadata.Operation{Type: opType, Author: p.Author, Project: p.Name}
	return f.transformRegistry(p.Author, string(t)+" "+p.Name, op)
}

func (f *CommandFSM) applyCreateRepository(data json.RawMessage) interface{} {
	var p createRepositoryPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := f.checkQuota(CmdCreateRepository, p.Project, p.Name); err != nil {
		return err
	}
	if _, err := f.engine.CreateRepository(p.Project, p.Name, p.Author); err != nil {
		return err
	}
	op := metadata.Operation{
		Type: metadata.OpAddRepo, Author: p.Author, Repository: p.Name, ProjectRoles: p.ProjectRoles,
	}
	return f.transformProjectMetadata(p.Project, p.Author, "create repository "+p.Name, op)
}

func (f *CommandFSM) applyRepositoryLifecycle(t CommandType, data json.RawMessage) interface{} {
	var p repositoryLifecyclePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	opType := map[CommandType]metadata.OperationType{
		CmdRemoveRepository:   metadata.OpRemoveRepo,
		CmdUnremoveRepository: metadata.OpRestoreRepo,
		CmdPurgeRepository:    metadata.OpPurgeRepo,
	}[t]
	op := metadata.Operation{Type: opType, Author: p.Author, Repository: p.Name}
	return f.transformProjectMetadata(p.Project, p.Author, string(t)+" "+p.Name, op)
}

func (f *CommandFSM) applyPush(t CommandType, data json.RawMessage) interface{} {
	var p pushPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := f.checkQuota(t, p.Project, p.Repo); err != nil {
		return err
	}
	force := t == CmdForcePush
	result, err := f.engine.Push(p.Project, p.Repo, p.BaseRev, p.Author, p.Summary, p.Changes, force)
	if err != nil {
		return err
	}
	return result
}

func (f *CommandFSM) applyTransform(data json.RawMessage) interface{} {
	var p transformPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := f.checkQuota(CmdTransform, p.Project, p.Repo); err != nil {
		return err
	}
	var change types.Change
	if p.EntryType == types.EntryJSON {
		change = types.Change{Op: types.OpUpsertJSON, Path: p.Path, Content: p.NewContent}
	} else {
		change = types.Change{Op: types.OpUpsertText, Path: p.Path, Text: string(p.NewContent)}
	}
	result, err := f.engine.Push(p.Project, p.Repo, types.HeadRevision, p.Author, p.Summary, []types.Change{change}, false)
	if err != nil {
		return err
	}
	return result
}

func (f *CommandFSM) applyUpdateServerStatus(data json.RawMessage) interface{} {
	var p updateServerStatusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	f.gate.SetStatus(p.Status)
	return nil
}

func (f *CommandFSM) applyMetadataMutation(data json.RawMessage) interface{} {
	var p metadataMutationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Op.Type == metadata.OpPurgeAppIdentity {
		return f.purgeAppIdentityEverywhere(p.Op)
	}

	var result interface{}
	if p.Op.Type.RegistryScoped() {
		result = f.transformRegistry(p.Op.Author, "metadata: "+string(p.Op.Type), p.Op)
	} else {
		result = f.transformProjectMetadata(p.Op.Project, p.Op.Author, "metadata: "+string(p.Op.Type), p.Op)
	}
	if err, ok := result.(error); ok && err != nil {
		return err
	}

	// The metadata document records the declared status/quota; the engine
	// and quota registry carry the enforcement side, so both must move
	// together whenever one of these two operations commits.
	switch p.Op.Type {
	case metadata.OpUpdateRepositoryStatus:
		if err := f.engine.SetStatus(p.Op.Project, p.Op.Repository, p.Op.Status); err != nil {
			return err
		}
	case metadata.OpUpdateRepositoryQuota:
		f.quota.SetQuota(p.Op.Project, p.Op.Repository, p.Op.Quota)
	}
	return result
}

// purgeAppIdentityEverywhere strips the app identity's repository roles
// from every non-removed project before deleting it from the registry,
// matching "removes from every project that registered it, then from the
// global registry." Each project rewrite and the final registry rewrite
// are separate commits; a crash partway leaves some project references
// dangling but harmless (they resolve to RoleNone once the identity is
// gone from the registry), and the operation is safe to resubmit.
func (f *CommandFSM) purgeAppIdentityEverywhere(op metadata.Operation) interface{} {
	registry, err := f.readRegistry()
	if err != nil {
		return err
	}
	for name, project := range registry.Projects {
		if project.Removal != nil {
			continue
		}
		cleanup := metadata.Operation{Type: metadata.OpPurgeAppIdentity, AppID: op.AppID}
		if res := f.transformProjectMetadata(name, op.Author, "purge app identity "+op.AppID, cleanup); res != nil {
			if err, ok := res.(error); ok {
				return err
			}
		}
	}
	return f.transformRegistry(op.Author, "purge app identity "+op.AppID, op)
}

func (f *CommandFSM) readRegistry() (types.GlobalRegistry, error) {
	entry, _, err := f.engine.Get(metadata.InternalProject, metadata.DogmaRepository, types.HeadRevision, "/metadata.json")
	if err != nil {
		if rerr.CodeOf(err) == rerr.EntryNotFound {
			return types.GlobalRegistry{}, nil
		}
		return types.GlobalRegistry{}, err
	}
	var reg types.GlobalRegistry
	if err := json.Unmarshal(entry.Content, &reg); err != nil {
		return types.GlobalRegistry{}, err
	}
	return reg, nil
}

// ensureDogmaRepository appends the automatic revision-1 "Create a new
// repository" commit to project's dogma repository the first time it is
// transformed, the same bookkeeping every user-created repository gets from
// applyCreateRepository's call to engine.CreateRepository. Without this, a
// project's (or the system project's) dogma repository would silently skip
// straight to its first metadata mutation as commit 1 instead of carrying
// the spec-mandated empty creation commit.
func (f *CommandFSM) ensureDogmaRepository(project, author string) error {
	head, err := f.engine.Head(project, metadata.DogmaRepository)
	if err != nil {
		return err
	}
	if head != 0 {
		return nil
	}
	_, err = f.engine.CreateRepository(project, metadata.DogmaRepository, author)
	return err
}

// migrateLegacyMetadata implements spec.md's one-shot, idempotent,
// per-project migration: "rewrites /metadata.json and moves /metadata.json
// from meta to dogma". It only applies to project-scoped ProjectMetadata
// documents, not the system project's GlobalRegistry (which has no legacy
// predecessor format of its own). It is a no-op once dogma already carries a
// /metadata.json entry (migrated already, or simply created fresh with no
// legacy predecessor) and a no-op when the project never had a legacy meta
// repository at all. Reading meta's content and writing the migrated result
// to dogma is a single commit against dogma, distinct from (and always
// after) the repository's own revision-1 creation commit, so a crash
// between the two leaves the project in a state this function safely
// resumes from on the next call.
func (f *CommandFSM) migrateLegacyMetadata(project, author string) error {
	_, _, err := f.engine.Get(project, metadata.DogmaRepository, types.HeadRevision, "/metadata.json")
	if err == nil {
		return nil
	}
	if rerr.CodeOf(err) != rerr.EntryNotFound {
		return err
	}

	legacyHead, err := f.engine.Head(project, metadata.LegacyMetaRepository)
	if err != nil {
		return err
	}
	if legacyHead == 0 {
		return nil
	}
	entry, _, err := f.engine.Get(project, metadata.LegacyMetaRepository, types.HeadRevision, "/metadata.json")
	if err != nil {
		if rerr.CodeOf(err) == rerr.EntryNotFound {
			return nil
		}
		return err
	}

	var legacy types.ProjectMetadata
	if err := json.Unmarshal(entry.Content, &legacy); err != nil {
		return err
	}
	migrated := metadata.Migrate(legacy)

	fn := func(_ types.Revision, _ []byte) ([]byte, error) {
		return json.Marshal(migrated)
	}
	_, err = f.engine.Transform(project, metadata.DogmaRepository, author, "migrate metadata from meta to dogma", "/metadata.json", types.EntryJSON, fn)
	return err
}

func (f *CommandFSM) transformRegistry(author, summary string, op metadata.Operation) interface{} {
	if err := f.ensureDogmaRepository(metadata.InternalProject, author); err != nil {
		return err
	}
	fn := func(_ types.Revision, content []byte) ([]byte, error) {
		var reg types.GlobalRegistry
		if content != nil {
			if err := json.Unmarshal(content, &reg); err != nil {
				return nil, err
			}
		}
		next, err := metadata.ApplyToRegistry(reg, op, nowMillis())
		if err != nil {
			return nil, err
		}
		return json.Marshal(next)
	}
	result, err := f.engine.Transform(metadata.InternalProject, metadata.DogmaRepository, author, summary, "/metadata.json", types.EntryJSON, fn)
	if err != nil {
		return err
	}
	return result
}

func (f *CommandFSM) transformProjectMetadata(project, author, summary string, op metadata.Operation) interface{} {
	if err := f.ensureDogmaRepository(project, author); err != nil {
		return err
	}
	if err := f.migrateLegacyMetadata(project, author); err != nil {
		return err
	}
	fn := func(_ types.Revision, content []byte) ([]byte, error) {
		var meta types.ProjectMetadata
		if content != nil {
			if err := json.Unmarshal(content, &meta); err != nil {
				return nil, err
			}
		}
		meta = metadata.Migrate(meta)
		next, err := metadata.ApplyToProjectMetadata(meta, op, nowMillis())
		if err != nil {
			return nil, err
		}
		return json.Marshal(next)
	}
	result, err := f.engine.Transform(project, metadata.DogmaRepository, author, summary, "/metadata.json", types.EntryJSON, fn)
	if err != nil {
		return err
	}
	return result
}

// Snapshot returns a minimal compaction marker. Repository content itself
// is not part of the FSM's snapshot: every repository's objectstore/revlog
// already durably persists its own state outside the Raft log (the commit
// engine's own compare-and-append is what makes a commit durable before
// it's observable), so a joining replica's state is reconstructed by
// replaying the command log from the start, not by installing an FSM
// snapshot of repository bytes. See DESIGN.md for the tradeoff this
// implies for snapshot-based catch-up of a far-behind replica.
func (f *CommandFSM) Snapshot() (raft.FSMSnapshot, error) {
	return commandFSMSnapshot{}, nil
}

// Restore is a no-op for the same reason: there is nothing this FSM owns
// outside of what commit.Engine already persists per repository.
func (f *CommandFSM) Restore(rc io.ReadCloser) error {
	return rc.Close()
}

type commandFSMSnapshot struct{}

func (commandFSMSnapshot) Persist(sink raft.SnapshotSink) error {
	if _, err := sink.Write([]byte("{}")); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (commandFSMSnapshot) Release() {}
