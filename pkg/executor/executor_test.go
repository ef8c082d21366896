package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/ridgeline/pkg/commit"
	"github.com/cuemby/ridgeline/pkg/metadata"
	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	engine := commit.New(t.TempDir())
	t.Cleanup(func() { _ = engine.Close() })

	exec, err := NewExecutor(Config{Replicated: false}, engine)
	require.NoError(t, err)
	return exec
}

func TestStandaloneExecutorIsAlwaysLeader(t *testing.T) {
	exec := newTestExecutor(t)
	assert.True(t, exec.IsLeader())
	assert.Nil(t, exec.RaftStats())
}

func TestCreateProjectThenReadRegistry(t *testing.T) {
	exec := newTestExecutor(t)
	require.NoError(t, exec.CreateProject("alice", "acme"))

	registry, err := exec.CurrentRegistry()
	require.NoError(t, err)
	assert.Contains(t, registry.Projects, "acme")
}

func TestCreateProjectRejectsDuplicate(t *testing.T) {
	exec := newTestExecutor(t)
	require.NoError(t, exec.CreateProject("alice", "acme"))

	err := exec.CreateProject("alice", "acme")
	assert.Equal(t, rerr.ProjectExists, rerr.CodeOf(err))
}

func TestCreateRepositoryWritesBothEngineAndMetadata(t *testing.T) {
	exec := newTestExecutor(t)
	require.NoError(t, exec.CreateProject("alice", "acme"))
	require.NoError(t, exec.CreateRepository("alice", "acme", "configs", &types.RepositoryProjectRoles{
		Member: types.RoleWrite, Guest: types.RoleRead,
	}))

	meta, err := exec.ProjectMetadata("acme")
	require.NoError(t, err)
	require.Contains(t, meta.Repositories, "configs")
	assert.Equal(t, types.RoleWrite, meta.Repositories["configs"].ProjectRoles.Member)
}

func TestPushThenGetAppliesChange(t *testing.T) {
	exec := newTestExecutor(t)
	require.NoError(t, exec.CreateProject("alice", "acme"))
	require.NoError(t, exec.CreateRepository("alice", "acme", "configs", nil))

	result, err := exec.Push("acme", "configs", types.HeadRevision, "alice", "add a.json", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: []byte(`{"x":1}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, types.Revision(2), result.Revision)
}

func TestPushRespectsReadOnlyStatusUnlessForced(t *testing.T) {
	exec := newTestExecutor(t)
	require.NoError(t, exec.CreateProject("alice", "acme"))
	require.NoError(t, exec.CreateRepository("alice", "acme", "configs", nil))
	require.NoError(t, exec.engine.SetStatus("acme", "configs", types.RepositoryReadOnly))

	_, err := exec.Push("acme", "configs", types.HeadRevision, "alice", "blocked", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: []byte(`{}`)},
	})
	assert.Equal(t, rerr.ReadOnly, rerr.CodeOf(err))

	_, err = exec.ForcePush("acme", "configs", types.HeadRevision, "alice", "forced", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: []byte(`{}`)},
	})
	assert.NoError(t, err)
}

func TestUpdateServerStatusGatesOrdinaryWrites(t *testing.T) {
	exec := newTestExecutor(t)
	require.NoError(t, exec.CreateProject("alice", "acme"))
	require.NoError(t, exec.CreateRepository("alice", "acme", "configs", nil))

	require.NoError(t, exec.UpdateServerStatus(types.StatusReplicationOnly))

	_, err := exec.Push("acme", "configs", types.HeadRevision, "alice", "blocked", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: []byte(`{}`)},
	})
	assert.Equal(t, rerr.ReadOnly, rerr.CodeOf(err))

	require.NoError(t, exec.UpdateServerStatus(types.StatusWritable))
	_, err = exec.Push("acme", "configs", types.HeadRevision, "alice", "allowed", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: []byte(`{}`)},
	})
	assert.NoError(t, err)
}

func TestTransformComputesFromObservedHead(t *testing.T) {
	exec := newTestExecutor(t)
	require.NoError(t, exec.CreateProject("alice", "acme"))
	require.NoError(t, exec.CreateRepository("alice", "acme", "configs", nil))

	fn := func(_ types.Revision, content []byte) ([]byte, error) {
		return []byte(`{"counter":1}`), nil
	}
	result, err := exec.Transform("acme", "configs", "alice", "bump counter", "/counter.json", types.EntryJSON, fn)
	require.NoError(t, err)
	assert.Equal(t, types.Revision(2), result.Revision)
}

func TestMetadataMutationAddMemberThenEffectiveRole(t *testing.T) {
	exec := newTestExecutor(t)
	require.NoError(t, exec.CreateProject("alice", "acme"))
	require.NoError(t, exec.MetadataMutation(metadata.Operation{
		Type: metadata.OpAddMember, Project: "acme", Author: "alice", UserID: "bob", Role: string(types.ProjectRoleMember),
	}))

	meta, err := exec.ProjectMetadata("acme")
	require.NoError(t, err)
	require.Contains(t, meta.Members, "bob")
}

func TestMetadataMutationCreateTokenAffectsRegistry(t *testing.T) {
	exec := newTestExecutor(t)
	require.NoError(t, exec.MetadataMutation(metadata.Operation{
		Type: metadata.OpCreateToken, Author: "alice", AppID: "svc-1", Secret: []byte("ct"),
	}))

	registry, err := exec.CurrentRegistry()
	require.NoError(t, err)
	assert.Contains(t, registry.AppIdentities, "svc-1")
}

func TestPurgeAppIdentityClearsEveryProject(t *testing.T) {
	exec := newTestExecutor(t)
	require.NoError(t, exec.CreateProject("alice", "acme"))
	require.NoError(t, exec.CreateRepository("alice", "acme", "configs", nil))
	require.NoError(t, exec.MetadataMutation(metadata.Operation{
		Type: metadata.OpCreateToken, Author: "alice", AppID: "svc-1", Secret: []byte("ct"),
	}))
	require.NoError(t, exec.MetadataMutation(metadata.Operation{
		Type: metadata.OpAddAppIdentityRepositoryRole, Project: "acme", Repository: "configs", AppID: "svc-1", Role: string(types.RoleRead),
	}))

	require.NoError(t, exec.MetadataMutation(metadata.Operation{Type: metadata.OpPurgeAppIdentity, AppID: "svc-1"}))

	registry, err := exec.CurrentRegistry()
	require.NoError(t, err)
	assert.NotContains(t, registry.AppIdentities, "svc-1")

	meta, err := exec.ProjectMetadata("acme")
	require.NoError(t, err)
	assert.NotContains(t, meta.Repositories["configs"].AppIDs, "svc-1")
}

func TestGenerateAndValidateJoinToken(t *testing.T) {
	exec := newTestExecutor(t)
	token, err := exec.GenerateJoinToken()
	require.NoError(t, err)
	assert.NoError(t, exec.ValidateJoinToken(token.Token))
	assert.Error(t, exec.ValidateJoinToken("not-a-real-token"))
}
