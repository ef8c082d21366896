package executor

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/cuemby/ridgeline/pkg/commit"
	"github.com/cuemby/ridgeline/pkg/log"
	"github.com/cuemby/ridgeline/pkg/metadata"
	"github.com/cuemby/ridgeline/pkg/quota"
	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

func nowMillis() int64 { return time.Now().UnixMilli() }

// Config configures an Executor. In standalone mode (Replicated=false),
// commands are applied directly against the local FSM in submission order
// with no Raft cluster underneath — suitable for a single-node deployment
// or for tests. In replicated mode, NodeID/BindAddr/DataDir configure the
// Raft transport, log, and stable stores the same way the teacher's
// Manager.Bootstrap/Join do.
type Config struct {
	NodeID     string
	BindAddr   string
	DataDir    string
	Replicated bool
}

// Executor is the single point through which every mutating operation is
// totally ordered before reaching commit.Engine: either via a Raft log
// (replicated) or a local mutex (standalone). It also owns the write-quota
// registry and read-only status gate every command passes through, and is
// the read-path the metrics collector samples (CurrentRegistry,
// ProjectMetadata, IsLeader, RaftStats).
type Executor struct {
	cfg    Config
	engine *commit.Engine
	quota  *quota.Registry
	gate   *quota.StatusGate
	fsm    *CommandFSM
	tokens *TokenManager

	raft      *raft.Raft
	localMu   sync.Mutex
	localOnly bool
}

// NewExecutor wires an Executor over engine, ready for Bootstrap (or direct
// use in standalone mode).
func NewExecutor(cfg Config, engine *commit.Engine) (*Executor, error) {
	quotaRegistry := quota.NewRegistry()
	gate := quota.NewStatusGate()
	fsm := NewCommandFSM(engine, quotaRegistry, gate)

	return &Executor{
		cfg:       cfg,
		engine:    engine,
		quota:     quotaRegistry,
		gate:      gate,
		fsm:       fsm,
		tokens:    NewTokenManager(),
		localOnly: !cfg.Replicated,
	}, nil
}

// QuotaRegistry exposes the per-repository rate limiter registry so the
// metadata layer's UpdateRepositoryQuota mutation can push a changed quota
// into effect immediately rather than waiting for the next read.
func (e *Executor) QuotaRegistry() *quota.Registry { return e.quota }

// Bootstrap initializes a brand-new single-node Raft cluster. A no-op in
// standalone mode.
func (e *Executor) Bootstrap() error {
	if e.localOnly {
		return nil
	}

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(e.cfg.NodeID)
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond
	config.LogOutput = log.Writer("raft")

	transport, snapshotStore, logStore, stableStore, err := e.raftStores()
	if err != nil {
		return err
	}

	r, err := raft.NewRaft(config, e.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return fmt.Errorf("create raft: %w", err)
	}
	e.raft = r

	configuration := raft.Configuration{
		Servers: []raft.Server{{ID: config.LocalID, Address: transport.LocalAddr()}},
	}
	future := r.BootstrapCluster(configuration)
	if err := future.Error(); err != nil {
		return fmt.Errorf("bootstrap cluster: %w", err)
	}
	return nil
}

// Join adds this node to an existing cluster by standing up its own Raft
// instance; the caller is then added as a voter from the leader side via
// AddVoter.
func (e *Executor) Join() error {
	if e.localOnly {
		return fmt.Errorf("join requires a replicated executor")
	}

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(e.cfg.NodeID)
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond
	config.LogOutput = log.Writer("raft")

	transport, snapshotStore, logStore, stableStore, err := e.raftStores()
	if err != nil {
		return err
	}

	r, err := raft.NewRaft(config, e.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return fmt.Errorf("create raft: %w", err)
	}
	e.raft = r
	return nil
}

func (e *Executor) raftStores() (*raft.NetworkTransport, *raft.FileSnapshotStore, raft.LogStore, raft.StableStore, error) {
	if err := os.MkdirAll(e.cfg.DataDir, 0o755); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	addr, err := net.ResolveTCPAddr("tcp", e.cfg.BindAddr)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(e.cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("create transport: %w", err)
	}
	snapshotStore, err := raft.NewFileSnapshotStore(e.cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("create snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(e.cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(e.cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("create stable store: %w", err)
	}
	return transport, snapshotStore, logStore, stableStore, nil
}

// AddVoter adds nodeID@address as a voter; must be called on the leader.
func (e *Executor) AddVoter(nodeID, address string) error {
	if e.localOnly || e.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !e.IsLeader() {
		return fmt.Errorf("not the leader, current leader: %s", e.LeaderAddr())
	}
	future := e.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	return future.Error()
}

// RemoveServer removes nodeID from the cluster; must be called on the leader.
func (e *Executor) RemoveServer(nodeID string) error {
	if e.localOnly || e.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !e.IsLeader() {
		return fmt.Errorf("not the leader")
	}
	future := e.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	return future.Error()
}

// GetClusterServers returns the current Raft configuration's server set.
func (e *Executor) GetClusterServers() ([]raft.Server, error) {
	if e.localOnly || e.raft == nil {
		return nil, fmt.Errorf("raft not initialized")
	}
	future := e.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, err
	}
	return future.Configuration().Servers, nil
}

// IsLeader reports whether this node is the Raft leader. Always true in
// standalone mode, since there is only ever one writer.
func (e *Executor) IsLeader() bool {
	if e.localOnly {
		return true
	}
	if e.raft == nil {
		return false
	}
	return e.raft.State() == raft.Leader
}

// LeaderAddr returns the current leader's address, empty in standalone mode.
func (e *Executor) LeaderAddr() string {
	if e.localOnly || e.raft == nil {
		return ""
	}
	return string(e.raft.Leader())
}

// RaftStats reports Raft progress, in the shape the metrics collector reads
// directly: state, last_log_index, applied_index, leader, num_peers. Nil in
// standalone mode, where there is no Raft log to report on.
func (e *Executor) RaftStats() map[string]interface{} {
	if e.localOnly || e.raft == nil {
		return nil
	}
	stats := map[string]interface{}{
		"state":          e.raft.State().String(),
		"last_log_index": e.raft.LastIndex(),
		"applied_index":  e.raft.AppliedIndex(),
		"leader":         string(e.raft.Leader()),
	}
	if configFuture := e.raft.GetConfiguration(); configFuture.Error() == nil {
		stats["num_peers"] = uint64(len(configFuture.Configuration().Servers) - 1)
	} else {
		stats["num_peers"] = uint64(0)
	}
	return stats
}

// Shutdown releases the Raft instance (replicated mode) and the underlying
// commit engine.
func (e *Executor) Shutdown() error {
	e.gate.BeginShutdown()
	if !e.localOnly && e.raft != nil {
		if err := e.raft.Shutdown().Error(); err != nil {
			return err
		}
	}
	return e.engine.Close()
}

// apply submits cmd through the Raft log (replicated) or directly against
// the local FSM (standalone), returning whatever Apply returned.
func (e *Executor) apply(cmd Command) (interface{}, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	if e.localOnly {
		e.localMu.Lock()
		defer e.localMu.Unlock()
		result := e.fsm.Apply(&raft.Log{Data: data})
		if err, ok := result.(error); ok && err != nil {
			return nil, err
		}
		return result, nil
	}

	if e.raft == nil {
		return nil, fmt.Errorf("raft not initialized")
	}
	future := e.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("apply command: %w", err)
	}
	resp := future.Response()
	if err, ok := resp.(error); ok && err != nil {
		return nil, err
	}
	return resp, nil
}

func (e *Executor) applyResult(cmd Command) (types.CommitResult, error) {
	resp, err := e.apply(cmd)
	if err != nil {
		return types.CommitResult{}, err
	}
	result, ok := resp.(types.CommitResult)
	if !ok {
		return types.CommitResult{}, nil
	}
	return result, nil
}

// CreateProject registers a new project in the global registry.
func (e *Executor) CreateProject(author, name string) error {
	cmd, err := encodeCommand(CmdCreateProject, createProjectPayload{Author: author, Name: name})
	if err != nil {
		return err
	}
	_, err = e.apply(cmd)
	return err
}

func (e *Executor) projectLifecycle(t CommandType, author, name string) error {
	cmd, err := encodeCommand(t, projectLifecyclePayload{Author: author, Name: name})
	if err != nil {
		return err
	}
	_, err = e.apply(cmd)
	return err
}

// RemoveProject marks a project removed.
func (e *Executor) RemoveProject(author, name string) error {
	return e.projectLifecycle(CmdRemoveProject, author, name)
}

// UnremoveProject clears a project's removal marker.
func (e *Executor) UnremoveProject(author, name string) error {
	return e.projectLifecycle(CmdUnremoveProject, author, name)
}

// PurgeProject permanently deletes a removed project.
func (e *Executor) PurgeProject(author, name string) error {
	return e.projectLifecycle(CmdPurgeProject, author, name)
}

// CreateRepository creates a repository within project and its dogma-file
// project-role grant in one command.
func (e *Executor) CreateRepository(author, project, name string, projectRoles *types.RepositoryProjectRoles) error {
	cmd, err := encodeCommand(CmdCreateRepository, createRepositoryPayload{
		Author: author, Project: project, Name: name, ProjectRoles: projectRoles,
	})
	if err != nil {
		return err
	}
	_, err = e.apply(cmd)
	return err
}

func (e *Executor) repositoryLifecycle(t CommandType, author, project, name string) error {
	cmd, err := encodeCommand(t, repositoryLifecyclePayload{Author: author, Project: project, Name: name})
	if err != nil {
		return err
	}
	_, err = e.apply(cmd)
	return err
}

// RemoveRepository marks a repository removed.
func (e *Executor) RemoveRepository(author, project, name string) error {
	return e.repositoryLifecycle(CmdRemoveRepository, author, project, name)
}

// UnremoveRepository clears a repository's removal marker.
func (e *Executor) UnremoveRepository(author, project, name string) error {
	return e.repositoryLifecycle(CmdUnremoveRepository, author, project, name)
}

// PurgeRepository permanently deletes a removed repository's metadata
// entry (the underlying object store/revision log are left for operators
// to reclaim out of band, matching the destructive-by-name-only scope a
// metadata purge has).
func (e *Executor) PurgeRepository(author, project, name string) error {
	return e.repositoryLifecycle(CmdPurgeRepository, author, project, name)
}

// Push proposes changes against baseRev.
func (e *Executor) Push(project, repo string, baseRev types.Revision, author, summary string, changes []types.Change) (types.CommitResult, error) {
	cmd, err := encodeCommand(CmdPush, pushPayload{
		Project: project, Repo: repo, BaseRev: baseRev, Author: author, Summary: summary, Changes: changes,
	})
	if err != nil {
		return types.CommitResult{}, err
	}
	return e.applyResult(cmd)
}

// Find reads entries matching pattern directly from the local commit
// engine at rev. Like CurrentRegistry and ProjectMetadata, reads never go
// through the command log: every replica's local state is authoritative
// for its own reads, and the mirror scheduler only ever reads from the
// node it is running on.
func (e *Executor) Find(project, repo string, rev types.Revision, pattern string) ([]types.Entry, types.Revision, error) {
	return e.engine.Find(project, repo, rev, pattern)
}

// ForcePush proposes changes bypassing the repository's read-only status.
func (e *Executor) ForcePush(project, repo string, baseRev types.Revision, author, summary string, changes []types.Change) (types.CommitResult, error) {
	cmd, err := encodeCommand(CmdForcePush, pushPayload{
		Project: project, Repo: repo, BaseRev: baseRev, Author: author, Summary: summary, Changes: changes,
	})
	if err != nil {
		return types.CommitResult{}, err
	}
	return e.applyResult(cmd)
}

// Transform computes fn's result against the currently observed head
// content on the submitting node and replicates the computed bytes as a
// single upsert. fn itself never crosses the command log: a Go closure is
// not serializable, so every replica applies the same concrete change
// rather than re-running fn locally. Callers that need fn to observe a
// guaranteed-fresh head (not just fresh as of submission time) should
// retry on rerr.ChangeConflict themselves, the same way commit.Engine.Push
// asks callers to for an explicit baseRev.
func (e *Executor) Transform(project, repo, author, summary, path string, entryType types.EntryType, fn commit.TransformFunc) (types.CommitResult, error) {
	head, err := e.engine.Head(project, repo)
	if err != nil {
		return types.CommitResult{}, err
	}
	var current []byte
	if head > 0 {
		entry, _, err := e.engine.Get(project, repo, types.HeadRevision, path)
		switch rerr.CodeOf(err) {
		case "":
			current = entry.Content
		case rerr.EntryNotFound:
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

	cmd, err := encodeCommand(CmdTransform, transformPayload{
		Project: project, Repo: repo, Author: author, Summary: summary,
		Path: path, EntryType: entryType, NewContent: newContent,
	})
	if err != nil {
		return types.CommitResult{}, err
	}
	return e.applyResult(cmd)
}

// UpdateServerStatus transitions this node's read-only gate.
func (e *Executor) UpdateServerStatus(status types.ServerStatus) error {
	cmd, err := encodeCommand(CmdUpdateServerStatus, updateServerStatusPayload{Status: status})
	if err != nil {
		return err
	}
	_, err = e.apply(cmd)
	return err
}

// MetadataMutation proposes op against the registry or project-scoped
// metadata document, whichever op.Type.RegistryScoped() selects.
func (e *Executor) MetadataMutation(op metadata.Operation) error {
	cmd, err := encodeCommand(CmdMetadataMutation, metadataMutationPayload{Op: op})
	if err != nil {
		return err
	}
	_, err = e.apply(cmd)
	return err
}

// CurrentRegistry reads and decodes the global registry document, applying
// any pending schema migration on the way out.
func (e *Executor) CurrentRegistry() (*types.GlobalRegistry, error) {
	entry, _, err := e.engine.Get(metadata.InternalProject, metadata.DogmaRepository, types.HeadRevision, "/metadata.json")
	if err != nil {
		if rerr.CodeOf(err) == rerr.EntryNotFound {
			return &types.GlobalRegistry{Projects: map[string]types.Project{}, AppIdentities: map[string]types.AppIdentity{}}, nil
		}
		return nil, err
	}
	var reg types.GlobalRegistry
	if err := json.Unmarshal(entry.Content, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// ProjectMetadata reads and decodes a project's metadata document.
func (e *Executor) ProjectMetadata(name string) (*types.ProjectMetadata, error) {
	entry, _, err := e.engine.Get(name, metadata.DogmaRepository, types.HeadRevision, "/metadata.json")
	if err != nil {
		if rerr.CodeOf(err) == rerr.EntryNotFound {
			empty := metadata.Migrate(types.ProjectMetadata{})
			return &empty, nil
		}
		return nil, err
	}
	var meta types.ProjectMetadata
	if err := json.Unmarshal(entry.Content, &meta); err != nil {
		return nil, err
	}
	meta = metadata.Migrate(meta)
	return &meta, nil
}
